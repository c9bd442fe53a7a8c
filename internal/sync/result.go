package sync

import (
	"github.com/ktlab/jirabridge/internal/jira"
)

// Result aggregates the outcome of an import or export pass. Item-level
// failures are accumulated here so one bad record never stops the batch.
type Result struct {
	Errors []error

	// UnmatchedAssignees counts remote issues skipped because no local
	// user matched the assignee email. UnmatchedAuthors counts comments
	// and worklogs skipped the same way. Surfaced so a misconfigured
	// user directory shows up in summaries instead of silent data loss.
	UnmatchedAssignees int
	UnmatchedAuthors   int

	// Attachments maps local task ids to the attachment lists seen on
	// their remote issues during task import, saving a second remote
	// fetch in the attachment pass.
	Attachments map[uint][]jira.Attachment

	// TasksCreated and TasksUpdated count persisted task changes.
	TasksCreated int
	TasksUpdated int
}

// NewResult returns an empty Result ready to accumulate.
func NewResult() *Result {
	return &Result{Attachments: make(map[uint][]jira.Attachment)}
}

// AddError records a non-fatal item failure.
func (r *Result) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

// OK reports whether the pass completed without item failures.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

// Merge folds another result's counters and errors into r.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.UnmatchedAssignees += other.UnmatchedAssignees
	r.UnmatchedAuthors += other.UnmatchedAuthors
	r.TasksCreated += other.TasksCreated
	r.TasksUpdated += other.TasksUpdated
	for id, atts := range other.Attachments {
		r.Attachments[id] = atts
	}
}
