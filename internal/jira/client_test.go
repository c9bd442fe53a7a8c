package jira

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:  baseURL,
		Login:    "robot",
		Password: "secret",
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id":"42"}`))
	}))
	defer srv.Close()

	svc := NewIssueService(testClient(t, srv.URL))
	issue, err := svc.GetIssue(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetIssue after two 500s: %v", err)
	}
	if issue.ID != "42" {
		t.Errorf("issue.ID = %q, want 42", issue.ID)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestDo_ExhaustedRetriesSurface500(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewIssueService(testClient(t, srv.URL))
	_, err := svc.GetIssue(context.Background(), "42")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("server calls = %d, want 4 (initial attempt plus three retries)", got)
	}
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"errorMessages":["locked field"]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := NewIssueService(testClient(t, srv.URL))
	err := svc.UpdateIssue(context.Background(), "42", &IssueFields{Summary: "x"})
	if !IsBadRequest(err) {
		t.Fatalf("error = %v, want 400 APIError", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server calls = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestDo_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	svc := NewIssueService(testClient(t, srv.URL))
	if err := svc.DeleteWorklog(context.Background(), "42", "7"); err != nil {
		t.Fatalf("DeleteWorklog: %v", err)
	}
}

func TestDo_NetworkFailureHasZeroStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	svc := NewIssueService(testClient(t, srv.URL))
	_, err := svc.GetIssue(context.Background(), "42")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for network failure", apiErr.StatusCode)
	}
}

func TestDo_BasicAuthSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "robot" || pass != "secret" {
			t.Errorf("basic auth = %q/%q ok=%v", user, pass, ok)
		}
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	svc := NewIssueService(testClient(t, srv.URL))
	if _, err := svc.GetIssue(context.Background(), "1"); err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
}

func TestSearch_SendsJQLPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Write([]byte(`{"startAt":0,"maxResults":100,"total":1,"issues":[{"id":"10"}]}`))
	}))
	defer srv.Close()

	svc := NewIssueService(testClient(t, srv.URL))
	result, err := svc.Search(context.Background(), "project = ABC", []string{"summary"}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Total != 1 || len(result.Issues) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestDownload_WritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("file-content"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	c := testClient(t, srv.URL)
	if err := c.Download(context.Background(), srv.URL+"/secure/attachment/1/a.txt", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "file-content" {
		t.Errorf("downloaded = %q", data)
	}
}

func TestDownload_NoContentCreatesEmptyFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "empty.bin")
	c := testClient(t, srv.URL)
	if err := c.Download(context.Background(), srv.URL+"/secure/attachment/2/b.txt", dest); err != nil {
		t.Fatalf("Download with 204: %v", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat downloaded file: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("file size = %d, want 0", info.Size())
	}
}

func TestAddAttachment_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Atlassian-Token") != "no-check" {
			t.Errorf("missing X-Atlassian-Token header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if header.Filename != "report.txt" {
			t.Errorf("filename = %q", header.Filename)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{"id":"900","filename":"report.txt"}]`))
	}))
	defer srv.Close()

	src := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewIssueService(testClient(t, srv.URL))
	created, err := svc.AddAttachment(context.Background(), "42", src)
	if err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}
	if len(created) != 1 || created[0].ID != "900" {
		t.Errorf("created = %+v", created)
	}
}
