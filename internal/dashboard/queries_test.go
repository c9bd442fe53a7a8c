package dashboard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ktlab/jirabridge/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Project{},
		&models.Task{},
		&models.WorklogIntegration{},
		&models.AttachmentIntegration{},
		&models.ImportSession{},
	); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	synced := &models.Project{
		Name: "Alpha", JiraURL: "https://jira.example.com",
		JiraLogin: "robot", JiraPassword: "pw", JiraJQLFilter: "project = ABC",
	}
	db.Create(synced)
	db.Create(&models.Project{Name: "Plain"})

	remoteID := int64(1)
	db.Create(&models.Task{Title: "Linked", GroupID: synced.ID, JiraID: &remoteID, ChangedAt: time.Now()})
	db.Create(&models.Task{Title: "Unlinked", GroupID: synced.ID, ChangedAt: time.Now()})

	db.Create(&models.ImportSession{
		Status: models.SessionStatusCompleted, StartedAt: time.Now().Add(-time.Hour),
		TasksImported: 4, ErrorCount: 1,
	})
}

func TestProjectSummary(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	rows, err := ProjectSummary(db)
	if err != nil {
		t.Fatalf("ProjectSummary: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if !rows[0].SyncEnabled || rows[0].LinkedTasks != 1 {
		t.Errorf("synced project row = %+v", rows[0])
	}
	if rows[1].SyncEnabled {
		t.Errorf("plain project reported as synced")
	}
}

func TestTotals(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	overview, err := Totals(db)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if overview.SyncedProjects != 1 {
		t.Errorf("SyncedProjects = %d, want 1", overview.SyncedProjects)
	}
	if overview.LinkedTasks != 1 {
		t.Errorf("LinkedTasks = %d, want 1", overview.LinkedTasks)
	}
	if overview.ImportInProgress {
		t.Error("no active session, ImportInProgress should be false")
	}
}

func TestRecentSessions(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	rows, err := RecentSessions(db, 10)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(rows) != 1 || rows[0].TasksImported != 4 || rows[0].ErrorCount != 1 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestRoutes(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	registerRoutes(router, db)

	for _, path := range []string{"/", "/projects", "/sessions"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("GET %s content type = %q", path, ct)
		}
	}
}
