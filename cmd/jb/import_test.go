package main

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ktlab/jirabridge/internal/config"
	"github.com/ktlab/jirabridge/internal/db"
	"github.com/ktlab/jirabridge/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return gormDB
}

func TestRunImport_NoopOutsideProduction(t *testing.T) {
	cfg := &config.Config{Environment: "dev"}
	errCount, err := runImport(context.Background(), cfg, nil, 0)
	if err != nil {
		t.Fatalf("runImport: %v", err)
	}
	if errCount != 0 {
		t.Errorf("errCount = %d, want 0", errCount)
	}
}

func TestSyncEnabledProjects(t *testing.T) {
	gormDB := testDB(t)

	enabled := &models.Project{
		Name: "Alpha", JiraURL: "https://jira.example.com",
		JiraLogin: "robot", JiraPassword: "pw", JiraJQLFilter: "project = ABC",
	}
	gormDB.Create(enabled)
	gormDB.Create(&models.Project{Name: "Plain"})
	closed := &models.Project{
		Name: "Closed", Closed: true, JiraURL: "https://jira.example.com",
		JiraLogin: "robot", JiraPassword: "pw", JiraJQLFilter: "project = X",
	}
	gormDB.Create(closed)

	projects, err := syncEnabledProjects(gormDB, 0)
	if err != nil {
		t.Fatalf("syncEnabledProjects: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != enabled.ID {
		t.Errorf("projects = %+v, want only the open configured one", projects)
	}

	projects, err = syncEnabledProjects(gormDB, enabled.ID+100)
	if err != nil {
		t.Fatalf("syncEnabledProjects with filter: %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("projects = %+v, want none for unknown id", projects)
	}
}

func TestCapExitCode(t *testing.T) {
	for in, want := range map[int]int{0: 0, 1: 1, 125: 125, 126: 125, 4000: 125} {
		if got := capExitCode(in); got != want {
			t.Errorf("capExitCode(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestExitCodeError(t *testing.T) {
	err := exitCodeError{code: 7, msg: "import finished with 7 errors"}
	if err.Error() != "import finished with 7 errors" {
		t.Errorf("Error() = %q", err.Error())
	}
}
