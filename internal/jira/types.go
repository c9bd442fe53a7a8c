package jira

import (
	"fmt"
	"strings"
	"time"
)

// timeLayout is the timestamp format Jira uses in issue and comment
// payloads, e.g. "2021-03-04T11:22:33.000+0300".
const timeLayout = "2006-01-02T15:04:05.000-0700"

// Time wraps time.Time with Jira's JSON timestamp encoding.
type Time struct {
	time.Time
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(timeLayout) + `"`), nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(timeLayout, s)
	if err != nil {
		return fmt.Errorf("jira: parse time %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// dateLayout is the format of date-only fields such as duedate.
const dateLayout = "2006-01-02"

// Date wraps a date-only field.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("jira: parse date %q: %w", s, err)
	}
	d.Time = parsed
	return nil
}

// UserRef is a user reference embedded in issues, comments and worklogs.
type UserRef struct {
	Name         string `json:"name,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
}

// TimeTracking carries estimate and elapsed-time fields of an issue.
// Estimates are in Jira's "Xh Ym" text format, seconds fields are raw.
type TimeTracking struct {
	OriginalEstimate         string `json:"originalEstimate,omitempty"`
	RemainingEstimate        string `json:"remainingEstimate,omitempty"`
	OriginalEstimateSeconds  int64  `json:"originalEstimateSeconds,omitempty"`
	RemainingEstimateSeconds int64  `json:"remainingEstimateSeconds,omitempty"`
	TimeSpentSeconds         int64  `json:"timeSpentSeconds,omitempty"`
}

// ParentRef identifies an issue's parent in the hierarchy.
type ParentRef struct {
	ID  string `json:"id,omitempty"`
	Key string `json:"key,omitempty"`
}

// ProjectRef identifies the project an issue belongs to.
type ProjectRef struct {
	Key string `json:"key,omitempty"`
}

// IssueFields is the mutable part of an issue.
type IssueFields struct {
	Summary      string        `json:"summary,omitempty"`
	Description  string        `json:"description,omitempty"`
	Created      *Time         `json:"created,omitempty"`
	Updated      *Time         `json:"updated,omitempty"`
	DueDate      *Date         `json:"duedate,omitempty"`
	Assignee     *UserRef      `json:"assignee,omitempty"`
	Creator      *UserRef      `json:"creator,omitempty"`
	Project      *ProjectRef   `json:"project,omitempty"`
	Parent       *ParentRef    `json:"parent,omitempty"`
	TimeTracking *TimeTracking `json:"timetracking,omitempty"`
	Attachments  []Attachment  `json:"attachment,omitempty"`
}

// Issue is a remote tracker issue.
type Issue struct {
	ID     string      `json:"id,omitempty"`
	Key    string      `json:"key,omitempty"`
	Fields IssueFields `json:"fields"`
}

// SearchResult is one page of a JQL search.
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Comment is a remote issue comment.
type Comment struct {
	ID           string   `json:"id,omitempty"`
	Body         string   `json:"body"`
	Author       *UserRef `json:"author,omitempty"`
	UpdateAuthor *UserRef `json:"updateAuthor,omitempty"`
	Created      *Time    `json:"created,omitempty"`
	Updated      *Time    `json:"updated,omitempty"`
}

// CommentList is the comment collection of an issue.
type CommentList struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Comments   []Comment `json:"comments"`
}

// Worklog is a remote elapsed-time record.
type Worklog struct {
	ID               string   `json:"id,omitempty"`
	Author           *UserRef `json:"author,omitempty"`
	Comment          string   `json:"comment,omitempty"`
	Started          *Time    `json:"started,omitempty"`
	Created          *Time    `json:"created,omitempty"`
	TimeSpentSeconds int64    `json:"timeSpentSeconds,omitempty"`
}

// WorklogList is the worklog collection of an issue.
type WorklogList struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Worklogs   []Worklog `json:"worklogs"`
}

// Attachment is a remote file attached to an issue.
type Attachment struct {
	ID       string   `json:"id,omitempty"`
	Filename string   `json:"filename"`
	Size     int64    `json:"size,omitempty"`
	Content  string   `json:"content,omitempty"`
	Author   *UserRef `json:"author,omitempty"`
	Created  *Time    `json:"created,omitempty"`
}
