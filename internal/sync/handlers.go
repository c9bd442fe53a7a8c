package sync

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/ktlab/jirabridge/internal/config"
	"github.com/ktlab/jirabridge/internal/models"
)

// Handlers are the per-record trigger points called when local tasks,
// comments or worklogs change. Outside production every handler is a
// no-op, and while a batch import holds the lock all export triggers
// are skipped so import writes are not pushed straight back out.
type Handlers struct {
	db       *gorm.DB
	cfg      *config.Config
	exporter *Exporter
	logger   *log.Logger
}

// NewHandlers wires the event handlers over the store and exporter.
func NewHandlers(db *gorm.DB, cfg *config.Config, exporter *Exporter, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.Default()
	}
	return &Handlers{db: db, cfg: cfg, exporter: exporter, logger: logger}
}

// shouldExport checks the production guard, the import lock, and the
// project's sync configuration.
func (h *Handlers) shouldExport(projectID uint) (*models.Project, bool) {
	if !h.cfg.IsProduction() {
		return nil, false
	}
	inProgress, err := ImportInProgress(h.db, 0)
	if err != nil {
		h.logger.Printf("sync: handler lock check: %v", err)
		return nil, false
	}
	if inProgress {
		return nil, false
	}
	var project models.Project
	if err := h.db.First(&project, projectID).Error; err != nil {
		return nil, false
	}
	if !project.HasJiraIntegration() {
		return nil, false
	}
	return &project, true
}

// OnBeforeTaskAdd rejects a new task whose remote id is already bound
// to another task in the same project. Unlike the export triggers this
// runs in every environment; the uniqueness invariant is not a sync
// side effect, it is a data rule.
func (h *Handlers) OnBeforeTaskAdd(task *models.Task) error {
	return h.checkRemoteIDUnique(task, 0)
}

// OnBeforeTaskUpdate applies the same uniqueness rule on update,
// ignoring the task's own row.
func (h *Handlers) OnBeforeTaskUpdate(task *models.Task) error {
	return h.checkRemoteIDUnique(task, task.ID)
}

func (h *Handlers) checkRemoteIDUnique(task *models.Task, excludeID uint) error {
	if task.JiraID == nil {
		return nil
	}
	var count int64
	q := h.db.Model(&models.Task{}).
		Where("group_id = ? AND jira_id = ?", task.GroupID, *task.JiraID)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("sync: uniqueness check for task: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("sync: remote issue %d already bound to another task in project %d",
			*task.JiraID, task.GroupID)
	}
	return nil
}

// OnTaskAdd exports a freshly created task. Export failures never
// block the local save; they go to the log only.
func (h *Handlers) OnTaskAdd(ctx context.Context, task *models.Task) {
	project, ok := h.shouldExport(task.GroupID)
	if !ok {
		return
	}
	if err := h.exporter.ExportTask(ctx, project, task); err != nil {
		h.logger.Printf("sync: export new task %d: %v", task.ID, err)
	}
}

// OnTaskUpdate exports a task change, including its checklist mirror.
func (h *Handlers) OnTaskUpdate(ctx context.Context, task *models.Task) {
	project, ok := h.shouldExport(task.GroupID)
	if !ok {
		return
	}
	if task.JiraID == nil {
		return
	}
	if err := h.exporter.ExportTask(ctx, project, task); err != nil {
		h.logger.Printf("sync: export task %d update: %v", task.ID, err)
	}
	if err := h.exporter.ExportChecklist(ctx, project, task); err != nil {
		h.logger.Printf("sync: export task %d checklist: %v", task.ID, err)
	}
}

// OnBeforeCommentAdd rejects a comment bound to a remote comment id
// that is already present in the same topic. Runs in every environment,
// like the task uniqueness guards.
func (h *Handlers) OnBeforeCommentAdd(comment *models.Comment) error {
	if comment.JiraCommentID == nil {
		return nil
	}
	var count int64
	if err := h.db.Model(&models.Comment{}).
		Where("task_id = ? AND jira_comment_id = ?", comment.TaskID, *comment.JiraCommentID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("sync: duplicate check for comment: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("sync: remote comment %d already bound in task %d",
			*comment.JiraCommentID, comment.TaskID)
	}
	return nil
}

// OnCommentAdd exports a new comment. Comments that already carry a
// remote id were written by the importer and are skipped.
func (h *Handlers) OnCommentAdd(ctx context.Context, comment *models.Comment) {
	if comment.IsNewTopic || comment.JiraCommentID != nil {
		return
	}
	var task models.Task
	if err := h.db.First(&task, comment.TaskID).Error; err != nil {
		return
	}
	if task.JiraID == nil {
		return
	}
	project, ok := h.shouldExport(task.GroupID)
	if !ok {
		return
	}
	result := h.exporter.ExportComments(ctx, project, &task, []models.Comment{*comment})
	for _, err := range result.Errors {
		h.logger.Printf("sync: export comment %d: %v", comment.ID, err)
	}
}

// OnWorklogAdd exports a new worklog entry.
func (h *Handlers) OnWorklogAdd(ctx context.Context, worklog *models.Worklog) {
	h.exportWorklog(ctx, worklog, "add")
}

// OnWorklogUpdate re-exports an edited worklog entry.
func (h *Handlers) OnWorklogUpdate(ctx context.Context, worklog *models.Worklog) {
	h.exportWorklog(ctx, worklog, "update")
}

func (h *Handlers) exportWorklog(ctx context.Context, worklog *models.Worklog, verb string) {
	var task models.Task
	if err := h.db.First(&task, worklog.TaskID).Error; err != nil {
		return
	}
	if task.JiraID == nil {
		return
	}
	if _, ok := h.shouldExport(task.GroupID); !ok {
		return
	}
	result := h.exporter.ExportWorklogs(ctx, []models.Worklog{*worklog})
	for _, err := range result.Errors {
		h.logger.Printf("sync: export worklog %d (%s): %v", worklog.ID, verb, err)
	}
}

// OnWorklogDelete removes the remote counterpart of a deleted worklog.
func (h *Handlers) OnWorklogDelete(ctx context.Context, worklog *models.Worklog) {
	var task models.Task
	if err := h.db.First(&task, worklog.TaskID).Error; err != nil {
		return
	}
	if task.JiraID == nil {
		return
	}
	if _, ok := h.shouldExport(task.GroupID); !ok {
		return
	}
	result := h.exporter.DeleteWorklogs(ctx, []models.Worklog{*worklog})
	for _, err := range result.Errors {
		h.logger.Printf("sync: delete remote worklog %d: %v", worklog.ID, err)
	}
}
