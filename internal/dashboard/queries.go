package dashboard

import (
	"time"

	"gorm.io/gorm"

	"github.com/ktlab/jirabridge/internal/models"
)

// ProjectRow holds per-project sync state for display.
type ProjectRow struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	SyncEnabled bool      `json:"sync_enabled"`
	JiraURL     string    `json:"jira_url,omitempty"`
	LinkedTasks int64     `json:"linked_tasks"`
	LastChange  time.Time `json:"last_change"`
}

// ProjectSummary returns all open projects with their sync state.
func ProjectSummary(db *gorm.DB) ([]ProjectRow, error) {
	var projects []models.Project
	if err := db.Where("closed = ?", false).Order("id ASC").Find(&projects).Error; err != nil {
		return nil, err
	}

	rows := make([]ProjectRow, len(projects))
	for i, p := range projects {
		rows[i] = ProjectRow{
			ID:          p.ID,
			Name:        p.Name,
			SyncEnabled: p.HasJiraIntegration(),
			JiraURL:     p.JiraURL,
		}
		db.Model(&models.Task{}).
			Where("group_id = ? AND jira_id IS NOT NULL", p.ID).
			Count(&rows[i].LinkedTasks)

		var latest models.Task
		if err := db.Where("group_id = ?", p.ID).
			Order("changed_at DESC").First(&latest).Error; err == nil {
			rows[i].LastChange = latest.ChangedAt
		}
	}
	return rows, nil
}

// SessionRow holds one import session for display.
type SessionRow struct {
	ID            uint       `json:"id"`
	Status        string     `json:"status"`
	Hostname      string     `json:"hostname"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	TasksImported int        `json:"tasks_imported"`
	ErrorCount    int        `json:"error_count"`
}

// RecentSessions returns the latest import sessions, newest first.
func RecentSessions(db *gorm.DB, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var sessions []models.ImportSession
	if err := db.Order("started_at DESC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, err
	}

	rows := make([]SessionRow, len(sessions))
	for i, s := range sessions {
		rows[i] = SessionRow{
			ID:            s.ID,
			Status:        s.Status,
			Hostname:      s.Hostname,
			StartedAt:     s.StartedAt,
			CompletedAt:   s.CompletedAt,
			TasksImported: s.TasksImported,
			ErrorCount:    s.ErrorCount,
		}
	}
	return rows, nil
}

// Overview holds top-level counters for the index endpoint.
type Overview struct {
	SyncedProjects   int64 `json:"synced_projects"`
	LinkedTasks      int64 `json:"linked_tasks"`
	LinkedWorklogs   int64 `json:"linked_worklogs"`
	LinkedFiles      int64 `json:"linked_files"`
	ImportInProgress bool  `json:"import_in_progress"`
}

// Totals returns the top-level counters.
func Totals(db *gorm.DB) (*Overview, error) {
	var o Overview
	if err := db.Model(&models.Project{}).
		Where("closed = ? AND jira_url <> '' AND jira_login <> '' AND jira_password <> '' AND jira_jql_filter <> ''", false).
		Count(&o.SyncedProjects).Error; err != nil {
		return nil, err
	}
	db.Model(&models.Task{}).Where("jira_id IS NOT NULL").Count(&o.LinkedTasks)
	db.Model(&models.WorklogIntegration{}).Where("jira_worklog_id IS NOT NULL").Count(&o.LinkedWorklogs)
	db.Model(&models.AttachmentIntegration{}).Where("jira_attachment_id IS NOT NULL").Count(&o.LinkedFiles)

	var active int64
	db.Model(&models.ImportSession{}).
		Where("status = ?", models.SessionStatusActive).Count(&active)
	o.ImportInProgress = active > 0
	return &o, nil
}
