// Package sync implements two-way reconciliation between the local task
// store and a remote Jira instance.
package sync

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gorm.io/gorm"

	"github.com/ktlab/jirabridge/internal/config"
	"github.com/ktlab/jirabridge/internal/jira"
	"github.com/ktlab/jirabridge/internal/models"
)

// issueFields is the field set requested from remote searches. Anything
// not listed here is never fetched.
var issueFields = []string{
	"id", "summary", "description", "created", "assignee", "creator",
	"updated", "timetracking", "duedate", "attachment", "parent",
}

// Importer pulls remote issues, comments, worklogs and attachments into
// the local store.
type Importer struct {
	db          *gorm.DB
	httpCfg     config.HTTPConfig
	downloadDir string
	logger      *log.Logger
}

// NewImporter builds an importer over the given store.
func NewImporter(db *gorm.DB, httpCfg config.HTTPConfig, downloadDir string, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.Default()
	}
	return &Importer{db: db, httpCfg: httpCfg, downloadDir: downloadDir, logger: logger}
}

// remoteIssueID parses the numeric issue id from a remote payload.
func remoteIssueID(issue *jira.Issue) (int64, error) {
	id, err := strconv.ParseInt(issue.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sync: parse remote issue id %q: %w", issue.ID, err)
	}
	return id, nil
}

// ImportTasks reconciles all remote issues matching the project's filter
// into local tasks. The run is two passes: the first creates and updates
// tasks page by page, the second links parent-child edges once the full
// remote id space exists locally. Search pages give no ordering
// guarantee between parents and children, so linking cannot happen
// inline.
func (im *Importer) ImportTasks(ctx context.Context, project *models.Project) *Result {
	result := NewResult()

	svc, err := NewIssueService(project, im.httpCfg)
	if err != nil {
		result.AddError(err)
		return result
	}

	var all []jira.Issue
	startAt := 0
	for {
		page, err := svc.Search(ctx, project.JiraJQLFilter, issueFields, startAt)
		if err != nil {
			result.AddError(fmt.Errorf("sync: search project %d at offset %d: %w", project.ID, startAt, err))
			return result
		}
		if page.Total == 0 {
			return result
		}

		im.importPage(ctx, project, page.Issues, result)
		all = append(all, page.Issues...)

		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 {
			break
		}
	}

	im.linkHierarchy(project, all, result)
	return result
}

// importPage creates or updates local tasks for one search page.
func (im *Importer) importPage(ctx context.Context, project *models.Project, issues []jira.Issue, result *Result) {
	remoteIDs := make([]int64, 0, len(issues))
	for i := range issues {
		id, err := remoteIssueID(&issues[i])
		if err != nil {
			result.AddError(err)
			continue
		}
		remoteIDs = append(remoteIDs, id)
	}

	// One batched local lookup per page, never per issue.
	var existing []models.Task
	if err := im.db.Where("group_id = ? AND jira_id IN ?", project.ID, remoteIDs).
		Find(&existing).Error; err != nil {
		result.AddError(fmt.Errorf("sync: lookup tasks for project %d: %w", project.ID, err))
		return
	}
	byRemoteID := make(map[int64]*models.Task, len(existing))
	for i := range existing {
		if existing[i].JiraID != nil {
			byRemoteID[*existing[i].JiraID] = &existing[i]
		}
	}

	for i := range issues {
		issue := &issues[i]
		remoteID, err := remoteIssueID(issue)
		if err != nil {
			continue
		}

		task, found := byRemoteID[remoteID]
		if !found {
			task = im.createTask(project, issue, remoteID, result)
		} else {
			im.updateTask(task, issue, result)
		}
		if task != nil && len(issue.Fields.Attachments) > 0 {
			result.Attachments[task.ID] = issue.Fields.Attachments
		}
	}
}

// createTask builds a local task from a remote issue. Issues whose
// assignee has no local account are skipped outright; tasks are never
// auto-created for unknown assignees.
func (im *Importer) createTask(project *models.Project, issue *jira.Issue, remoteID int64, result *Result) *models.Task {
	assignee := issue.Fields.Assignee
	if assignee == nil || assignee.EmailAddress == "" {
		result.UnmatchedAssignees++
		return nil
	}
	responsible, err := im.userByEmail(assignee.EmailAddress)
	if err != nil {
		result.AddError(err)
		return nil
	}
	if responsible == nil {
		result.UnmatchedAssignees++
		return nil
	}

	creatorID := project.OwnerID
	if issue.Fields.Creator != nil && issue.Fields.Creator.EmailAddress != "" {
		if creator, err := im.userByEmail(issue.Fields.Creator.EmailAddress); err == nil && creator != nil {
			creatorID = creator.ID
		}
	}

	task := &models.Task{
		GroupID:       project.ID,
		ResponsibleID: responsible.ID,
		CreatedBy:     creatorID,
		ChangedBy:     creatorID,
		JiraID:        &remoteID,
		Status:        models.TaskStatusNew,
	}
	ApplyIssueToTask(issue, task)

	if err := im.db.Create(task).Error; err != nil {
		result.AddError(fmt.Errorf("sync: create task for issue %s: %w", issue.Key, err))
		return nil
	}
	result.TasksCreated++
	return task
}

// updateTask applies remote fields onto an existing local task. Local
// state wins once the task is terminal, and local edits newer than the
// remote update timestamp are authoritative.
func (im *Importer) updateTask(task *models.Task, issue *jira.Issue, result *Result) {
	if task.Completed() || task.Zombie {
		return
	}
	if issue.Fields.Updated != nil && task.ChangedAt.After(issue.Fields.Updated.Time) {
		return
	}

	ApplyIssueToTask(issue, task)
	if err := im.db.Save(task).Error; err != nil {
		result.AddError(fmt.Errorf("sync: update task %d from issue %s: %w", task.ID, issue.Key, err))
		return
	}
	result.TasksUpdated++
}

// linkHierarchy sets parent links after every issue exists locally.
func (im *Importer) linkHierarchy(project *models.Project, issues []jira.Issue, result *Result) {
	for i := range issues {
		issue := &issues[i]
		if issue.Fields.Parent == nil || issue.Fields.Parent.ID == "" {
			continue
		}
		childID, err := remoteIssueID(issue)
		if err != nil {
			continue
		}
		parentID, err := strconv.ParseInt(issue.Fields.Parent.ID, 10, 64)
		if err != nil {
			result.AddError(fmt.Errorf("sync: parse parent id %q of issue %s: %w", issue.Fields.Parent.ID, issue.Key, err))
			continue
		}

		child, err := im.taskByRemoteID(project.ID, childID)
		if err != nil {
			result.AddError(err)
			continue
		}
		parent, err := im.taskByRemoteID(project.ID, parentID)
		if err != nil {
			result.AddError(err)
			continue
		}
		if child == nil || parent == nil || child.Zombie || parent.Zombie {
			continue
		}
		if child.ParentID != nil && *child.ParentID == parent.ID {
			continue
		}

		if err := im.db.Model(child).Update("parent_id", parent.ID).Error; err != nil {
			result.AddError(fmt.Errorf("sync: link task %d under %d: %w", child.ID, parent.ID, err))
		}
	}
}

// ImportComments reconciles a task's remote comments into the local
// discussion. The remote tracker is the source of truth for comment
// existence; local comments bound to a remote id that disappeared
// remotely are pruned.
func (im *Importer) ImportComments(ctx context.Context, project *models.Project, task *models.Task) *Result {
	result := NewResult()
	if task.JiraID == nil {
		result.AddError(fmt.Errorf("sync: task %d has no remote id", task.ID))
		return result
	}

	svc, err := NewIssueService(project, im.httpCfg)
	if err != nil {
		result.AddError(err)
		return result
	}

	list, err := svc.GetComments(ctx, strconv.FormatInt(*task.JiraID, 10))
	if err != nil {
		result.AddError(fmt.Errorf("sync: fetch comments for task %d: %w", task.ID, err))
		return result
	}

	var local []models.Comment
	if err := im.db.Where("task_id = ? AND is_new_topic = ?", task.ID, false).
		Find(&local).Error; err != nil {
		result.AddError(fmt.Errorf("sync: load comments for task %d: %w", task.ID, err))
		return result
	}

	// Every remote comment with a parseable id counts as present, even
	// ones skipped below. The prune pass must only remove comments whose
	// remote counterpart is actually gone.
	seen := make(map[int64]bool, len(list.Comments))
	for i := range list.Comments {
		rc := &list.Comments[i]
		if rc.ID == "" {
			continue
		}
		remoteID, err := strconv.ParseInt(rc.ID, 10, 64)
		if err != nil {
			result.AddError(fmt.Errorf("sync: parse comment id %q: %w", rc.ID, err))
			continue
		}
		seen[remoteID] = true

		if rc.Author == nil || rc.Author.EmailAddress == "" {
			continue
		}
		im.importComment(project, task, rc, remoteID, local, result)
	}

	// Prune local comments whose remote counterpart is gone.
	for i := range local {
		c := &local[i]
		if c.JiraCommentID == nil || seen[*c.JiraCommentID] {
			continue
		}
		if err := im.db.Delete(c).Error; err != nil {
			result.AddError(fmt.Errorf("sync: prune comment %d: %w", c.ID, err))
		}
	}
	return result
}

// importComment creates or updates one local comment from its remote
// counterpart, healing duplicate remote-id bindings along the way.
func (im *Importer) importComment(project *models.Project, task *models.Task, rc *jira.Comment, remoteID int64, local []models.Comment, result *Result) {
	author, err := im.userByEmail(rc.Author.EmailAddress)
	if err != nil {
		result.AddError(err)
		return
	}

	// The denormalized body carries the author name when the author has
	// no local account. Both the create and the update path compare and
	// store this form, so a re-import of an unchanged comment is a no-op.
	body := rc.Body
	if author == nil {
		body = fmt.Sprintf("[%s] %s", rc.Author.DisplayName, rc.Body)
	}

	var matches []*models.Comment
	for i := range local {
		if local[i].JiraCommentID != nil && *local[i].JiraCommentID == remoteID {
			matches = append(matches, &local[i])
		}
	}

	if len(matches) == 0 {
		c := CommentFromRemote(rc, task.ID)
		c.JiraCommentID = &remoteID
		c.Body = body
		c.BodyHTML = body

		if author != nil {
			c.AuthorID = author.ID
		} else {
			// No local account for the author: attribute to the project
			// owner, the name stays in the body.
			result.UnmatchedAuthors++
			c.AuthorID = project.OwnerID
		}

		if err := im.db.Create(c).Error; err != nil {
			result.AddError(fmt.Errorf("sync: create comment for task %d: %w", task.ID, err))
		}
		return
	}

	// Duplicate bindings are data drift; keep the first, drop the rest.
	for _, dup := range matches[1:] {
		if err := im.db.Delete(dup).Error; err != nil {
			result.AddError(fmt.Errorf("sync: delete duplicate comment %d: %w", dup.ID, err))
		}
	}

	kept := matches[0]
	if kept.Body == body {
		return
	}
	// Text only; authorship never changes after creation.
	updates := map[string]interface{}{
		"body":      body,
		"body_html": body,
	}
	if err := im.db.Model(kept).Updates(updates).Error; err != nil {
		result.AddError(fmt.Errorf("sync: update comment %d: %w", kept.ID, err))
	}
}

// ImportWorklogs reconciles a task's remote worklogs. An integration
// record for a remote worklog id means the entry was already imported;
// entries whose author has no local account are dropped by policy.
func (im *Importer) ImportWorklogs(ctx context.Context, project *models.Project, task *models.Task) *Result {
	result := NewResult()
	if task.JiraID == nil {
		result.AddError(fmt.Errorf("sync: task %d has no remote id", task.ID))
		return result
	}

	svc, err := NewIssueService(project, im.httpCfg)
	if err != nil {
		result.AddError(err)
		return result
	}

	list, err := svc.GetWorklogs(ctx, strconv.FormatInt(*task.JiraID, 10))
	if err != nil {
		result.AddError(fmt.Errorf("sync: fetch worklogs for task %d: %w", task.ID, err))
		return result
	}

	for i := range list.Worklogs {
		rw := &list.Worklogs[i]
		if rw.ID == "" || rw.Author == nil || rw.Author.EmailAddress == "" {
			continue
		}
		remoteID, err := strconv.ParseInt(rw.ID, 10, 64)
		if err != nil {
			result.AddError(fmt.Errorf("sync: parse worklog id %q: %w", rw.ID, err))
			continue
		}

		user, err := im.userByEmail(rw.Author.EmailAddress)
		if err != nil {
			result.AddError(err)
			continue
		}
		if user == nil {
			result.UnmatchedAuthors++
			continue
		}

		var integration models.WorklogIntegration
		lookup := im.db.Where("jira_worklog_id = ?", remoteID).First(&integration)
		if lookup.Error == nil {
			var count int64
			if err := im.db.Model(&models.Worklog{}).
				Where("id = ?", integration.WorklogID).Count(&count).Error; err != nil {
				result.AddError(fmt.Errorf("sync: check worklog %d: %w", integration.WorklogID, err))
				continue
			}
			if count > 0 {
				continue
			}
			// Orphaned integration record; heal and re-import.
			if err := im.db.Delete(&integration).Error; err != nil {
				result.AddError(fmt.Errorf("sync: delete stray worklog integration %d: %w", integration.ID, err))
				continue
			}
		} else if lookup.Error != gorm.ErrRecordNotFound {
			result.AddError(fmt.Errorf("sync: lookup worklog integration: %w", lookup.Error))
			continue
		}

		w := WorklogFromRemote(rw, task.ID, user.ID)
		if err := im.db.Create(w).Error; err != nil {
			result.AddError(fmt.Errorf("sync: create worklog for task %d: %w", task.ID, err))
			continue
		}
		rec := &models.WorklogIntegration{WorklogID: w.ID, JiraWorklogID: &remoteID}
		if err := im.db.Create(rec).Error; err != nil {
			result.AddError(fmt.Errorf("sync: create worklog integration for worklog %d: %w", w.ID, err))
		}
	}
	return result
}

// ImportAttachments downloads remote attachments into the local file
// storage and binds them to the task. attachments may come from the
// task-import pass; when nil the remote issue is re-fetched. Temp files
// are always removed before returning.
func (im *Importer) ImportAttachments(ctx context.Context, project *models.Project, task *models.Task, attachments []jira.Attachment) *Result {
	result := NewResult()
	if task.JiraID == nil {
		result.AddError(fmt.Errorf("sync: task %d has no remote id", task.ID))
		return result
	}

	svc, err := NewIssueService(project, im.httpCfg)
	if err != nil {
		result.AddError(err)
		return result
	}

	if attachments == nil {
		issue, err := svc.GetIssue(ctx, strconv.FormatInt(*task.JiraID, 10))
		if err != nil {
			// Absence of attachments is not an error state.
			im.logger.Printf("sync: refetch issue for task %d: %v", task.ID, err)
			return result
		}
		attachments = issue.Fields.Attachments
	}
	if len(attachments) == 0 {
		return result
	}

	var tempFiles []string
	defer func() {
		for _, f := range tempFiles {
			os.Remove(f)
		}
	}()

	var newFileIDs []uint
	newIntegrations := make(map[uint]int64)

	for i := range attachments {
		att := &attachments[i]
		if att.ID == "" {
			continue
		}
		remoteID, err := strconv.ParseInt(att.ID, 10, 64)
		if err != nil {
			result.AddError(fmt.Errorf("sync: parse attachment id %q: %w", att.ID, err))
			continue
		}

		already, err := im.attachmentImported(task.ID, remoteID)
		if err != nil {
			result.AddError(err)
			continue
		}
		if already {
			continue
		}

		tempPath := filepath.Join(im.downloadDir, fmt.Sprintf("jb-%d-%s", task.ID, att.Filename))
		// Registered before the download so a partial file is removed too.
		tempFiles = append(tempFiles, tempPath)
		if err := svc.DownloadAttachment(ctx, att, tempPath); err != nil {
			im.logger.Printf("sync: download attachment %s for task %d: %v", att.ID, task.ID, err)
			continue
		}

		fileID, err := im.promoteFile(project, task, tempPath, att.Filename)
		if err != nil {
			result.AddError(fmt.Errorf("sync: store attachment %s for task %d: %w", att.ID, task.ID, err))
			continue
		}
		newFileIDs = append(newFileIDs, fileID)
		newIntegrations[fileID] = remoteID
	}

	if len(newFileIDs) == 0 {
		return result
	}

	// One field write for the whole batch.
	task.WebdavFileList = AppendPending(task.WebdavFileList, newFileIDs)
	if err := im.db.Model(task).Update("webdav_file_list", task.WebdavFileList).Error; err != nil {
		result.AddError(fmt.Errorf("sync: update attachment list for task %d: %w", task.ID, err))
	}

	for fileID, remoteID := range newIntegrations {
		var binding models.AttachedObject
		if err := im.db.Where("file_id = ? AND entity_id = ?", fileID, task.ID).
			First(&binding).Error; err != nil {
			result.AddError(fmt.Errorf("sync: lookup binding for file %d: %w", fileID, err))
			continue
		}
		rid := remoteID
		rec := &models.AttachmentIntegration{AttachedObjectID: binding.ID, JiraAttachmentID: &rid}
		if err := im.db.Create(rec).Error; err != nil {
			result.AddError(fmt.Errorf("sync: create attachment integration for binding %d: %w", binding.ID, err))
		}
	}
	return result
}

// attachmentImported reports whether a remote attachment already has a
// binding on this exact task. Integration rows may reference bindings
// of deleted tasks, so ownership is checked, not just existence.
func (im *Importer) attachmentImported(taskID uint, remoteID int64) (bool, error) {
	var records []models.AttachmentIntegration
	if err := im.db.Where("jira_attachment_id = ?", remoteID).Find(&records).Error; err != nil {
		return false, fmt.Errorf("sync: lookup attachment integration %d: %w", remoteID, err)
	}
	for _, rec := range records {
		var binding models.AttachedObject
		err := im.db.Where("id = ?", rec.AttachedObjectID).First(&binding).Error
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("sync: lookup binding %d: %w", rec.AttachedObjectID, err)
		}
		if binding.EntityID == taskID {
			return true, nil
		}
	}
	return false, nil
}

// promoteFile moves a downloaded temp file into local storage and binds
// it to the task. The project's group storage is preferred; the task
// creator's personal storage is the fallback.
func (im *Importer) promoteFile(project *models.Project, task *models.Task, tempPath, filename string) (uint, error) {
	storage, err := im.storageForProject(project, task)
	if err != nil {
		return 0, err
	}

	destDir := filepath.Join(storage.RootPath, strconv.FormatUint(uint64(task.ID), 10))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir %s: %w", destDir, err)
	}
	dest := filepath.Join(destDir, filename)
	size, err := copyFile(tempPath, dest)
	if err != nil {
		return 0, err
	}

	file := &models.FileObject{
		StorageID: storage.ID,
		Name:      filename,
		Path:      dest,
		Size:      size,
		CreatedBy: task.CreatedBy,
	}
	if err := im.db.Create(file).Error; err != nil {
		return 0, fmt.Errorf("create file object: %w", err)
	}
	binding := &models.AttachedObject{FileID: file.ID, EntityID: task.ID}
	if err := im.db.Create(binding).Error; err != nil {
		return 0, fmt.Errorf("create attachment binding: %w", err)
	}
	return file.ID, nil
}

func (im *Importer) storageForProject(project *models.Project, task *models.Task) (*models.Storage, error) {
	var storage models.Storage
	err := im.db.Where("group_id = ?", project.ID).First(&storage).Error
	if err == nil {
		return &storage, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("lookup group storage: %w", err)
	}
	err = im.db.Where("user_id = ?", task.CreatedBy).First(&storage).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("no storage for project %d or user %d", project.ID, task.CreatedBy)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user storage: %w", err)
	}
	return &storage, nil
}

func copyFile(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()
	n, err := io.Copy(out, in)
	if err != nil {
		return 0, fmt.Errorf("copy to %s: %w", dest, err)
	}
	return n, nil
}

// taskByRemoteID finds a project's task by remote issue id, nil when
// absent.
func (im *Importer) taskByRemoteID(projectID uint, remoteID int64) (*models.Task, error) {
	var task models.Task
	err := im.db.Where("group_id = ? AND jira_id = ?", projectID, remoteID).First(&task).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sync: lookup task by remote id %d: %w", remoteID, err)
	}
	return &task, nil
}

// userByEmail finds a local account by email, nil when absent.
func (im *Importer) userByEmail(email string) (*models.User, error) {
	var user models.User
	err := im.db.Where("email = ?", email).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sync: lookup user %q: %w", email, err)
	}
	return &user, nil
}
