package sync

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ktlab/jirabridge/internal/jira"
	"github.com/ktlab/jirabridge/internal/models"
)

// Bidirectional mapping between local records and remote shapes. All
// functions here are stateless and never touch the database.

var (
	bbcodeURLRe  = regexp.MustCompile(`(?is)\[url=([^\]]+)\].*?\[/url\]`)
	htmlAnchorRe = regexp.MustCompile(`(?is)<a\s+[^>]*href="([^"]+)"[^>]*>.*?</a>`)
	tagRe        = regexp.MustCompile(`(?s)\[/?\w+[^\]]*\]|<[^>]+>`)
)

// StripMarkup collapses rich links to their bare URLs and removes the
// remaining BBCode and HTML tags. Lists and embedded images do not
// survive the transform; the remote side only accepts plain text.
func StripMarkup(s string) string {
	s = bbcodeURLRe.ReplaceAllString(s, "$1")
	s = htmlAnchorRe.ReplaceAllString(s, "$1")
	s = tagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ApplyIssueToTask copies a remote issue's fields onto a local task.
// Identity fields (project, parent, remote id) are handled by the
// importer, not here.
func ApplyIssueToTask(issue *jira.Issue, task *models.Task) {
	task.Title = issue.Fields.Summary
	task.Description = issue.Fields.Description
	if issue.Fields.Created != nil {
		task.CreatedAt = issue.Fields.Created.Time
	}
	if issue.Fields.Updated != nil {
		task.ChangedAt = issue.Fields.Updated.Time
	}
	if issue.Fields.DueDate != nil && !issue.Fields.DueDate.IsZero() {
		d := issue.Fields.DueDate.Time
		task.Deadline = &d
	}
	if tt := issue.Fields.TimeTracking; tt != nil {
		task.TimeEstimate = tt.OriginalEstimateSeconds
		task.AllowTimeTracking = tt.OriginalEstimateSeconds > 0
	}
}

// IssueFieldsFromTask renders a task as an outgoing issue payload. On
// update, assignee and project key are omitted: the remote side rejects
// re-specifying them after creation.
func IssueFieldsFromTask(task *models.Task, forUpdate bool) *jira.IssueFields {
	fields := &jira.IssueFields{
		Summary:     task.Title,
		Description: StripMarkup(task.Description),
	}
	if task.TimeEstimate > 0 {
		fields.TimeTracking = &jira.TimeTracking{
			OriginalEstimate: jira.SecondsToEstimate(task.TimeEstimate),
		}
	}
	if task.Deadline != nil {
		fields.DueDate = &jira.Date{Time: *task.Deadline}
	}
	if !forUpdate {
		if task.Responsible != nil && task.Responsible.Login != "" {
			fields.Assignee = &jira.UserRef{Name: task.Responsible.Login}
		}
		if task.Project != nil {
			if key := task.Project.JiraProjectKey(); key != "" {
				fields.Project = &jira.ProjectRef{Key: key}
			}
		}
	}
	return fields
}

// CommentFromRemote builds a local comment from a remote one. The
// author is resolved by the importer; attribution fallback text is
// prepended there when no local user matches.
func CommentFromRemote(rc *jira.Comment, taskID uint) *models.Comment {
	c := &models.Comment{
		TaskID:   taskID,
		Body:     rc.Body,
		BodyHTML: rc.Body,
	}
	if rc.Author != nil {
		c.AuthorName = rc.Author.DisplayName
		c.AuthorEmail = rc.Author.EmailAddress
	}
	if rc.UpdateAuthor != nil {
		c.EditorName = rc.UpdateAuthor.DisplayName
		c.EditorEmail = rc.UpdateAuthor.EmailAddress
	}
	if rc.Created != nil {
		c.PostedAt = rc.Created.Time
	}
	if rc.Updated != nil && (rc.Created == nil || !rc.Updated.Time.Equal(rc.Created.Time)) {
		t := rc.Updated.Time
		c.EditedAt = &t
	}
	return c
}

// RemoteCommentBody wraps a local comment body with an attribution
// line, since the remote side credits every comment to the API account.
func RemoteCommentBody(comment *models.Comment, author *models.User) string {
	body := StripMarkup(comment.Body)
	name := comment.AuthorName
	if author != nil {
		name = author.FormattedName()
	}
	if name == "" {
		return body
	}
	return fmt.Sprintf("[%s] %s", name, body)
}

// WorklogFromRemote builds a local worklog from a remote one. The user
// is matched by email in the importer; entries with no match are
// dropped before this is called.
func WorklogFromRemote(rw *jira.Worklog, taskID, userID uint) *models.Worklog {
	w := &models.Worklog{
		TaskID:      taskID,
		UserID:      userID,
		Seconds:     rw.TimeSpentSeconds,
		CommentText: rw.Comment,
	}
	if rw.Started != nil {
		w.StartedAt = rw.Started.Time
	}
	if rw.Created != nil {
		w.CreatedAt = rw.Created.Time
	}
	return w
}

// RemoteWorklogFromLocal renders a local worklog as an outgoing remote
// worklog. The comment is prefixed with the acting user's name to keep
// attribution, since the remote side credits the API account.
func RemoteWorklogFromLocal(w *models.Worklog, user *models.User) *jira.Worklog {
	comment := w.CommentText
	if user != nil {
		comment = strings.TrimSpace(fmt.Sprintf("[%s] %s", user.FormattedName(), comment))
	}
	started := w.StartedAt
	if started.IsZero() {
		started = w.CreatedAt
	}
	if started.IsZero() {
		started = time.Now()
	}
	return &jira.Worklog{
		Comment:          comment,
		TimeSpentSeconds: w.Seconds,
		Started:          &jira.Time{Time: started},
	}
}
