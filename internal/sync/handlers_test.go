package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ktlab/jirabridge/internal/config"
	"github.com/ktlab/jirabridge/internal/models"
)

func TestHandlers_RemoteIDUniqueness(t *testing.T) {
	db := testDB(t)
	project, _, dev := seedProject(t, db, "https://jira.example.com")

	remoteID := int64(777)
	existing := &models.Task{Title: "First", GroupID: project.ID, ResponsibleID: dev.ID, JiraID: &remoteID}
	db.Create(existing)

	h := NewHandlers(db, &config.Config{Environment: "dev"}, nil, nil)

	dup := &models.Task{Title: "Second", GroupID: project.ID, JiraID: &remoteID}
	if err := h.OnBeforeTaskAdd(dup); err == nil {
		t.Error("duplicate remote id in the same project should be rejected")
	}

	otherProject := &models.Project{Name: "Beta", OwnerID: dev.ID}
	db.Create(otherProject)
	elsewhere := &models.Task{Title: "Other", GroupID: otherProject.ID, JiraID: &remoteID}
	if err := h.OnBeforeTaskAdd(elsewhere); err != nil {
		t.Errorf("same remote id in another project should pass: %v", err)
	}

	// A task may keep its own binding on update.
	if err := h.OnBeforeTaskUpdate(existing); err != nil {
		t.Errorf("self update should pass: %v", err)
	}

	unbound := &models.Task{Title: "No link", GroupID: project.ID}
	if err := h.OnBeforeTaskAdd(unbound); err != nil {
		t.Errorf("task without remote id should pass: %v", err)
	}
}

func TestHandlers_CommentRemoteIDUniqueness(t *testing.T) {
	db := testDB(t)
	project, _, dev := seedProject(t, db, "https://jira.example.com")

	task := &models.Task{Title: "Task", GroupID: project.ID, ResponsibleID: dev.ID}
	db.Create(task)

	remoteID := int64(33)
	db.Create(&models.Comment{TaskID: task.ID, AuthorID: dev.ID, Body: "first", JiraCommentID: &remoteID})

	h := NewHandlers(db, &config.Config{Environment: "dev"}, nil, nil)

	dup := &models.Comment{TaskID: task.ID, AuthorID: dev.ID, Body: "again", JiraCommentID: &remoteID}
	if err := h.OnBeforeCommentAdd(dup); err == nil {
		t.Error("duplicate remote comment id in the same topic should be rejected")
	}

	other := &models.Task{Title: "Other", GroupID: project.ID, ResponsibleID: dev.ID}
	db.Create(other)
	elsewhere := &models.Comment{TaskID: other.ID, AuthorID: dev.ID, Body: "ok", JiraCommentID: &remoteID}
	if err := h.OnBeforeCommentAdd(elsewhere); err != nil {
		t.Errorf("same remote id under another task should pass: %v", err)
	}

	plain := &models.Comment{TaskID: task.ID, AuthorID: dev.ID, Body: "plain"}
	if err := h.OnBeforeCommentAdd(plain); err != nil {
		t.Errorf("comment without remote id should pass: %v", err)
	}
}

func TestHandlers_SkipOutsideProduction(t *testing.T) {
	db := testDB(t)

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	project, _, dev := seedProject(t, db, srv.URL)
	task := &models.Task{Title: "Task", GroupID: project.ID, ResponsibleID: dev.ID}
	db.Create(task)

	cfg := &config.Config{Environment: "dev"}
	h := NewHandlers(db, cfg, NewExporter(db, config.HTTPConfig{}, "", nil), nil)

	h.OnTaskAdd(context.Background(), task)
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("dev environment must not reach the remote")
	}
}

func TestHandlers_SkipWhileImportRunning(t *testing.T) {
	db := testDB(t)

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	project, _, dev := seedProject(t, db, srv.URL)
	task := &models.Task{Title: "Task", GroupID: project.ID, ResponsibleID: dev.ID}
	db.Create(task)

	if _, err := AcquireImportLock(db, 0); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	cfg := &config.Config{Environment: "prod"}
	h := NewHandlers(db, cfg, NewExporter(db, config.HTTPConfig{}, "", nil), nil)

	h.OnTaskAdd(context.Background(), task)
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("export must be skipped while an import session is active")
	}
}

func TestHandlers_ImporterCommentsNotReExported(t *testing.T) {
	db := testDB(t)

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	project, _, dev := seedProject(t, db, srv.URL)
	remoteID := int64(1)
	task := &models.Task{Title: "Task", GroupID: project.ID, ResponsibleID: dev.ID, JiraID: &remoteID}
	db.Create(task)

	cfg := &config.Config{Environment: "prod"}
	h := NewHandlers(db, cfg, NewExporter(db, config.HTTPConfig{}, "", nil), nil)

	imported := int64(33)
	comment := &models.Comment{TaskID: task.ID, AuthorID: dev.ID, Body: "x", JiraCommentID: &imported}
	h.OnCommentAdd(context.Background(), comment)
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("comments written by the importer must not be exported back")
	}

	echo := &models.Comment{TaskID: task.ID, AuthorID: dev.ID, Body: "topic", IsNewTopic: true}
	h.OnCommentAdd(context.Background(), echo)
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("topic echo comments must never be exported")
	}
}
