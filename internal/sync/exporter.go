package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"text/template"
	"time"

	"gorm.io/gorm"

	"github.com/ktlab/jirabridge/internal/config"
	"github.com/ktlab/jirabridge/internal/jira"
	"github.com/ktlab/jirabridge/internal/models"
)

// ErrInvalidArgument marks precondition violations on export calls.
// These are programming errors on the caller's side, never retried or
// accumulated into batch results.
var ErrInvalidArgument = errors.New("sync: invalid argument")

// Exporter pushes local changes out to the remote tracker.
type Exporter struct {
	db      *gorm.DB
	httpCfg config.HTTPConfig
	baseURL string
	logger  *log.Logger
}

// NewExporter builds an exporter over the given store. baseURL is the
// public URL of the local system, used in cross-link comments.
func NewExporter(db *gorm.DB, httpCfg config.HTTPConfig, baseURL string, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Default()
	}
	return &Exporter{db: db, httpCfg: httpCfg, baseURL: baseURL, logger: logger}
}

// ExportTask creates or updates the remote counterpart of a task. On
// first export the remote issue is created and its id stored locally,
// with a comment linking back to the local task. On later exports a
// direct field update is attempted; if the remote rejects it, the
// change is appended as a comment instead, but only when a value
// actually differs from the remote state.
func (ex *Exporter) ExportTask(ctx context.Context, project *models.Project, task *models.Task) error {
	if task.GroupID != project.ID {
		return fmt.Errorf("%w: task %d does not belong to project %d", ErrInvalidArgument, task.ID, project.ID)
	}
	svc, err := NewIssueService(project, ex.httpCfg)
	if err != nil {
		return err
	}

	if task.JiraID == nil {
		return ex.createRemoteIssue(ctx, svc, project, task)
	}
	return ex.updateRemoteIssue(ctx, svc, task)
}

func (ex *Exporter) createRemoteIssue(ctx context.Context, svc *jira.IssueService, project *models.Project, task *models.Task) error {
	fields := IssueFieldsFromTask(task, false)
	issue, err := svc.CreateIssue(ctx, fields)
	if err != nil {
		return fmt.Errorf("sync: create remote issue for task %d: %w", task.ID, err)
	}
	remoteID, err := strconv.ParseInt(issue.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("sync: parse created issue id %q: %w", issue.ID, err)
	}
	if err := ex.db.Model(task).Update("jira_id", remoteID).Error; err != nil {
		return fmt.Errorf("sync: store remote id for task %d: %w", task.ID, err)
	}
	task.JiraID = &remoteID

	if ex.baseURL != "" {
		link := fmt.Sprintf("Created from %s/tasks/%d", strings.TrimSuffix(ex.baseURL, "/"), task.ID)
		if _, err := svc.AddComment(ctx, issue.ID, link); err != nil {
			ex.logger.Printf("sync: cross-link comment for task %d: %v", task.ID, err)
		}

		// Mirror the link locally so both sides point at each other.
		local := &models.Comment{
			TaskID:     task.ID,
			AuthorName: "Jira sync",
			Body: fmt.Sprintf("Issue linked:\n%s/tasks/%d\n%s/browse/%s",
				strings.TrimSuffix(ex.baseURL, "/"), task.ID,
				strings.TrimSuffix(project.JiraURL, "/"), issue.Key),
			PostedAt: time.Now(),
		}
		if err := ex.db.Create(local).Error; err != nil {
			ex.logger.Printf("sync: local cross-link comment for task %d: %v", task.ID, err)
		}
	}
	return nil
}

func (ex *Exporter) updateRemoteIssue(ctx context.Context, svc *jira.IssueService, task *models.Task) error {
	idStr := strconv.FormatInt(*task.JiraID, 10)
	remote, err := svc.GetIssue(ctx, idStr)
	if err != nil {
		return fmt.Errorf("sync: fetch remote issue for task %d: %w", task.ID, err)
	}

	fields := IssueFieldsFromTask(task, true)

	// The remote side tracks remaining work itself; re-derive it from
	// the local estimate minus time already spent remotely.
	if fields.TimeTracking != nil {
		spent := int64(0)
		if remote.Fields.TimeTracking != nil {
			spent = remote.Fields.TimeTracking.TimeSpentSeconds
		}
		remaining := task.TimeEstimate - spent
		if remaining < 0 {
			remaining = 0
		}
		fields.TimeTracking.RemainingEstimate = jira.SecondsToEstimate(remaining)
	}

	err = svc.UpdateIssue(ctx, idStr, fields)
	if err == nil {
		return nil
	}
	if !jira.IsBadRequest(err) {
		return fmt.Errorf("sync: update remote issue for task %d: %w", task.ID, err)
	}

	// Workflow-locked fields reject direct updates. Degrade to a
	// comment describing the change, unless nothing actually differs.
	diff := describeDiff(task, remote)
	if diff == "" {
		return nil
	}
	if _, err := svc.AddComment(ctx, idStr, diff); err != nil {
		return fmt.Errorf("sync: change-summary comment for task %d: %w", task.ID, err)
	}
	return nil
}

// describeDiff renders the local values that differ from the remote
// issue, empty when in sync.
func describeDiff(task *models.Task, remote *jira.Issue) string {
	var lines []string
	if task.Title != remote.Fields.Summary {
		lines = append(lines, fmt.Sprintf("Summary: %s", task.Title))
	}
	if StripMarkup(task.Description) != remote.Fields.Description {
		lines = append(lines, fmt.Sprintf("Description: %s", StripMarkup(task.Description)))
	}
	if task.TimeEstimate > 0 {
		localEst := jira.SecondsToEstimate(task.TimeEstimate)
		remoteEst := ""
		if remote.Fields.TimeTracking != nil {
			remoteEst = remote.Fields.TimeTracking.OriginalEstimate
		}
		if localEst != remoteEst {
			lines = append(lines, fmt.Sprintf("Original estimate: %s", localEst))
		}
	}
	if task.Deadline != nil {
		localDue := task.Deadline.Format("2006-01-02")
		remoteDue := ""
		if remote.Fields.DueDate != nil && !remote.Fields.DueDate.IsZero() {
			remoteDue = remote.Fields.DueDate.Format("2006-01-02")
		}
		if localDue != remoteDue {
			lines = append(lines, fmt.Sprintf("Due date: %s", localDue))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Requested change (fields are locked for direct update):\n" + strings.Join(lines, "\n")
}

// worklogRefs holds the validated associations of one worklog.
type worklogRefs struct {
	task    *models.Task
	project *models.Project
	user    *models.User
}

// ExportWorklogs pushes local worklogs to the remote tracker. Entries
// that already have an integration record with a remote id are edited
// in place, the rest are added and their new remote ids recorded. The
// whole collection is validated up front; a precondition violation
// fails the batch before anything is pushed.
func (ex *Exporter) ExportWorklogs(ctx context.Context, worklogs []models.Worklog) *Result {
	result := NewResult()

	refs := make([]worklogRefs, len(worklogs))
	for i := range worklogs {
		task, project, user, err := ex.worklogContext(&worklogs[i])
		if err != nil {
			result.AddError(err)
			return result
		}
		refs[i] = worklogRefs{task: task, project: project, user: user}
	}

	for i := range worklogs {
		if err := ex.exportWorklog(ctx, &worklogs[i], refs[i]); err != nil {
			result.AddError(err)
		}
	}
	return result
}

func (ex *Exporter) exportWorklog(ctx context.Context, w *models.Worklog, refs worklogRefs) error {
	svc, err := NewIssueService(refs.project, ex.httpCfg)
	if err != nil {
		return err
	}

	payload := RemoteWorklogFromLocal(w, refs.user)
	idStr := strconv.FormatInt(*refs.task.JiraID, 10)

	var integration models.WorklogIntegration
	lookup := ex.db.Where("worklog_id = ?", w.ID).First(&integration)
	if lookup.Error == nil && integration.JiraWorklogID != nil {
		_, err := svc.UpdateWorklog(ctx, idStr, strconv.FormatInt(*integration.JiraWorklogID, 10), payload)
		if err != nil {
			return fmt.Errorf("sync: update remote worklog for worklog %d: %w", w.ID, err)
		}
		return nil
	}
	if lookup.Error != nil && lookup.Error != gorm.ErrRecordNotFound {
		return fmt.Errorf("sync: lookup worklog integration for worklog %d: %w", w.ID, lookup.Error)
	}

	created, err := svc.AddWorklog(ctx, idStr, payload)
	if err != nil {
		return fmt.Errorf("sync: add remote worklog for worklog %d: %w", w.ID, err)
	}
	remoteID, err := strconv.ParseInt(created.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("sync: parse created worklog id %q: %w", created.ID, err)
	}

	if lookup.Error == gorm.ErrRecordNotFound {
		rec := &models.WorklogIntegration{WorklogID: w.ID, JiraWorklogID: &remoteID}
		if err := ex.db.Create(rec).Error; err != nil {
			return fmt.Errorf("sync: create worklog integration for worklog %d: %w", w.ID, err)
		}
		return nil
	}
	if err := ex.db.Model(&integration).Update("jira_worklog_id", remoteID).Error; err != nil {
		return fmt.Errorf("sync: store remote id for worklog %d: %w", w.ID, err)
	}
	return nil
}

// DeleteWorklogs removes the remote counterparts of local worklogs.
// The integration record is kept with its remote id cleared, as an
// audit trail of the former binding. Like ExportWorklogs, the whole
// collection is validated before the first remote call.
func (ex *Exporter) DeleteWorklogs(ctx context.Context, worklogs []models.Worklog) *Result {
	result := NewResult()

	refs := make([]worklogRefs, len(worklogs))
	integrations := make([]models.WorklogIntegration, len(worklogs))
	for i := range worklogs {
		w := &worklogs[i]
		task, project, user, err := ex.worklogContext(w)
		if err != nil {
			result.AddError(err)
			return result
		}
		refs[i] = worklogRefs{task: task, project: project, user: user}

		err = ex.db.Where("worklog_id = ?", w.ID).First(&integrations[i]).Error
		if err != nil || integrations[i].JiraWorklogID == nil {
			result.AddError(fmt.Errorf("%w: worklog %d has no remote id", ErrInvalidArgument, w.ID))
			return result
		}
	}

	for i := range worklogs {
		w := &worklogs[i]
		integration := &integrations[i]

		svc, err := NewIssueService(refs[i].project, ex.httpCfg)
		if err != nil {
			result.AddError(err)
			continue
		}
		idStr := strconv.FormatInt(*refs[i].task.JiraID, 10)
		if err := svc.DeleteWorklog(ctx, idStr, strconv.FormatInt(*integration.JiraWorklogID, 10)); err != nil {
			result.AddError(fmt.Errorf("sync: delete remote worklog for worklog %d: %w", w.ID, err))
			continue
		}
		if err := ex.db.Model(integration).Update("jira_worklog_id", nil).Error; err != nil {
			result.AddError(fmt.Errorf("sync: clear remote id for worklog %d: %w", w.ID, err))
		}
	}
	return result
}

// worklogContext loads and validates the associations an export needs.
func (ex *Exporter) worklogContext(w *models.Worklog) (*models.Task, *models.Project, *models.User, error) {
	if w.TaskID == 0 || w.UserID == 0 {
		return nil, nil, nil, fmt.Errorf("%w: worklog %d missing task or user", ErrInvalidArgument, w.ID)
	}
	var task models.Task
	if err := ex.db.First(&task, w.TaskID).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("%w: worklog %d task %d not found", ErrInvalidArgument, w.ID, w.TaskID)
	}
	if task.JiraID == nil {
		return nil, nil, nil, fmt.Errorf("%w: task %d has no remote id", ErrInvalidArgument, task.ID)
	}
	var project models.Project
	if err := ex.db.First(&project, task.GroupID).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("%w: task %d project %d not found", ErrInvalidArgument, task.ID, task.GroupID)
	}
	if !project.HasJiraIntegration() {
		return nil, nil, nil, fmt.Errorf("%w: project %d has no jira integration", ErrInvalidArgument, project.ID)
	}
	var user models.User
	if err := ex.db.First(&user, w.UserID).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("%w: worklog %d user %d not found", ErrInvalidArgument, w.ID, w.UserID)
	}
	return &task, &project, &user, nil
}

// ExportComments pushes local comments to the remote tracker, updating
// in place when a remote id is already bound. New remote ids are stored
// with a raw column update so the write does not re-trigger comment
// event handlers.
func (ex *Exporter) ExportComments(ctx context.Context, project *models.Project, task *models.Task, comments []models.Comment) *Result {
	result := NewResult()
	if task.JiraID == nil {
		result.AddError(fmt.Errorf("%w: task %d has no remote id", ErrInvalidArgument, task.ID))
		return result
	}
	svc, err := NewIssueService(project, ex.httpCfg)
	if err != nil {
		result.AddError(err)
		return result
	}
	idStr := strconv.FormatInt(*task.JiraID, 10)

	for i := range comments {
		c := &comments[i]
		if c.IsNewTopic {
			continue
		}

		var author *models.User
		if c.AuthorID != 0 {
			var u models.User
			if err := ex.db.First(&u, c.AuthorID).Error; err == nil {
				author = &u
			}
		}
		body := RemoteCommentBody(c, author)

		if c.JiraCommentID != nil {
			if _, err := svc.UpdateComment(ctx, idStr, strconv.FormatInt(*c.JiraCommentID, 10), body); err != nil {
				result.AddError(fmt.Errorf("sync: update remote comment for comment %d: %w", c.ID, err))
			}
			continue
		}

		created, err := svc.AddComment(ctx, idStr, body)
		if err != nil {
			result.AddError(fmt.Errorf("sync: add remote comment for comment %d: %w", c.ID, err))
			continue
		}
		remoteID, err := strconv.ParseInt(created.ID, 10, 64)
		if err != nil {
			result.AddError(fmt.Errorf("sync: parse created comment id %q: %w", created.ID, err))
			continue
		}
		if err := ex.db.Model(&models.Comment{}).Where("id = ?", c.ID).
			Update("jira_comment_id", remoteID).Error; err != nil {
			result.AddError(fmt.Errorf("sync: store remote id for comment %d: %w", c.ID, err))
		}
	}
	return result
}

// ExportAttachments uploads local attachment bindings that have no
// remote counterpart yet.
func (ex *Exporter) ExportAttachments(ctx context.Context, project *models.Project, task *models.Task) *Result {
	result := NewResult()
	if task.JiraID == nil {
		result.AddError(fmt.Errorf("%w: task %d has no remote id", ErrInvalidArgument, task.ID))
		return result
	}
	svc, err := NewIssueService(project, ex.httpCfg)
	if err != nil {
		result.AddError(err)
		return result
	}
	idStr := strconv.FormatInt(*task.JiraID, 10)

	var bindings []models.AttachedObject
	if err := ex.db.Where("entity_id = ?", task.ID).Find(&bindings).Error; err != nil {
		result.AddError(fmt.Errorf("sync: load bindings for task %d: %w", task.ID, err))
		return result
	}

	for i := range bindings {
		binding := &bindings[i]

		var integration models.AttachmentIntegration
		err := ex.db.Where("attached_object_id = ?", binding.ID).First(&integration).Error
		if err == nil && integration.JiraAttachmentID != nil {
			continue
		}
		if err != nil && err != gorm.ErrRecordNotFound {
			result.AddError(fmt.Errorf("sync: lookup attachment integration for binding %d: %w", binding.ID, err))
			continue
		}

		var file models.FileObject
		if err := ex.db.First(&file, binding.FileID).Error; err != nil {
			result.AddError(fmt.Errorf("sync: load file %d for binding %d: %w", binding.FileID, binding.ID, err))
			continue
		}

		created, uploadErr := svc.AddAttachment(ctx, idStr, file.Path)
		if uploadErr != nil {
			result.AddError(fmt.Errorf("sync: upload %s for task %d: %w", file.Name, task.ID, uploadErr))
			continue
		}
		if len(created) == 0 {
			result.AddError(fmt.Errorf("sync: upload %s for task %d: empty response", file.Name, task.ID))
			continue
		}
		remoteID, err := strconv.ParseInt(created[0].ID, 10, 64)
		if err != nil {
			result.AddError(fmt.Errorf("sync: parse created attachment id %q: %w", created[0].ID, err))
			continue
		}

		if integration.ID != 0 {
			if err := ex.db.Model(&integration).Update("jira_attachment_id", remoteID).Error; err != nil {
				result.AddError(fmt.Errorf("sync: store remote id for binding %d: %w", binding.ID, err))
			}
			continue
		}
		rec := &models.AttachmentIntegration{AttachedObjectID: binding.ID, JiraAttachmentID: &remoteID}
		if err := ex.db.Create(rec).Error; err != nil {
			result.AddError(fmt.Errorf("sync: create attachment integration for binding %d: %w", binding.ID, err))
		}
	}
	return result
}

// checklistTemplate renders the checklist tree as a remote comment.
var checklistTemplate = template.Must(template.New("checklist").Parse(
	`Checklist:
{{range .}}{{.Indent}}{{if .Checked}}(x){{else}}( ){{end}} {{.Title}}
{{end}}`))

type checklistLine struct {
	Indent  string
	Checked bool
	Title   string
}

// ExportChecklist mirrors a task's checklist tree into a single remote
// comment. The comment slot is tracked by a dedicated field on the
// task; a missing remote comment means "create", any other remote
// failure surfaces.
func (ex *Exporter) ExportChecklist(ctx context.Context, project *models.Project, task *models.Task) error {
	if task.JiraID == nil {
		return fmt.Errorf("%w: task %d has no remote id", ErrInvalidArgument, task.ID)
	}
	svc, err := NewIssueService(project, ex.httpCfg)
	if err != nil {
		return err
	}
	idStr := strconv.FormatInt(*task.JiraID, 10)

	var items []models.ChecklistItem
	if err := ex.db.Where("task_id = ?", task.ID).
		Order("parent_id, sort_index").Find(&items).Error; err != nil {
		return fmt.Errorf("sync: load checklist for task %d: %w", task.ID, err)
	}
	if len(items) == 0 {
		return nil
	}

	var lines []checklistLine
	var walk func(parentID uint, indent string)
	walk = func(parentID uint, indent string) {
		for _, item := range items {
			if item.ParentID != parentID {
				continue
			}
			lines = append(lines, checklistLine{Indent: indent, Checked: item.Checked, Title: item.Title})
			walk(item.ID, indent+"  ")
		}
	}
	walk(0, "")

	var buf strings.Builder
	if err := checklistTemplate.Execute(&buf, lines); err != nil {
		return fmt.Errorf("sync: render checklist for task %d: %w", task.ID, err)
	}
	body := buf.String()

	if task.JiraChecklistCommentID != nil {
		commentID := strconv.FormatInt(*task.JiraChecklistCommentID, 10)
		_, err := svc.GetComment(ctx, idStr, commentID)
		if err == nil {
			if _, err := svc.UpdateComment(ctx, idStr, commentID, body); err != nil {
				return fmt.Errorf("sync: update checklist comment for task %d: %w", task.ID, err)
			}
			return nil
		}
		if !jira.IsNotFound(err) {
			return fmt.Errorf("sync: check checklist comment for task %d: %w", task.ID, err)
		}
		// Comment vanished remotely; fall through and create a new one.
	}

	created, err := svc.AddComment(ctx, idStr, body)
	if err != nil {
		return fmt.Errorf("sync: create checklist comment for task %d: %w", task.ID, err)
	}
	remoteID, err := strconv.ParseInt(created.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("sync: parse checklist comment id %q: %w", created.ID, err)
	}
	if err := ex.db.Model(task).Update("jira_checklist_comment_id", remoteID).Error; err != nil {
		return fmt.Errorf("sync: store checklist comment id for task %d: %w", task.ID, err)
	}
	task.JiraChecklistCommentID = &remoteID
	return nil
}
