package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
)

// DefaultPageSize is the page size used for issue searches.
const DefaultPageSize = 100

// IssueService exposes issue, comment, worklog and attachment
// operations of one Jira instance.
type IssueService struct {
	client *Client
}

// NewIssueService wraps a client with issue operations.
func NewIssueService(client *Client) *IssueService {
	return &IssueService{client: client}
}

// searchRequest is the POST body of a JQL search.
type searchRequest struct {
	JQL        string   `json:"jql"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields,omitempty"`
}

// Search runs one page of a JQL search. fields limits the returned
// issue fields; startAt is the zero-based page offset.
func (s *IssueService) Search(ctx context.Context, jql string, fields []string, startAt int) (*SearchResult, error) {
	req, err := s.client.newRequest(ctx, http.MethodPost, s.client.apiPath("/search"), searchRequest{
		JQL:        jql,
		StartAt:    startAt,
		MaxResults: DefaultPageSize,
		Fields:     fields,
	})
	if err != nil {
		return nil, err
	}
	var result SearchResult
	if err := s.client.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetIssue fetches one issue by id or key.
func (s *IssueService) GetIssue(ctx context.Context, idOrKey string) (*Issue, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet, s.client.apiPath("/issue/%s", url.PathEscape(idOrKey)), nil)
	if err != nil {
		return nil, err
	}
	var issue Issue
	if err := s.client.do(req, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// CreateIssue creates a new issue and returns the remote record.
func (s *IssueService) CreateIssue(ctx context.Context, fields *IssueFields) (*Issue, error) {
	req, err := s.client.newRequest(ctx, http.MethodPost, s.client.apiPath("/issue"), map[string]interface{}{
		"fields": fields,
	})
	if err != nil {
		return nil, err
	}
	var issue Issue
	if err := s.client.do(req, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// UpdateIssue replaces fields on an existing issue.
func (s *IssueService) UpdateIssue(ctx context.Context, idOrKey string, fields *IssueFields) error {
	req, err := s.client.newRequest(ctx, http.MethodPut, s.client.apiPath("/issue/%s", url.PathEscape(idOrKey)), map[string]interface{}{
		"fields": fields,
	})
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

// GetComments fetches all comments of an issue.
func (s *IssueService) GetComments(ctx context.Context, idOrKey string) (*CommentList, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet, s.client.apiPath("/issue/%s/comment", url.PathEscape(idOrKey)), nil)
	if err != nil {
		return nil, err
	}
	var list CommentList
	if err := s.client.do(req, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetComment fetches one comment by id.
func (s *IssueService) GetComment(ctx context.Context, idOrKey, commentID string) (*Comment, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet,
		s.client.apiPath("/issue/%s/comment/%s", url.PathEscape(idOrKey), url.PathEscape(commentID)), nil)
	if err != nil {
		return nil, err
	}
	var comment Comment
	if err := s.client.do(req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// AddComment posts a new comment and returns the remote record.
func (s *IssueService) AddComment(ctx context.Context, idOrKey, body string) (*Comment, error) {
	req, err := s.client.newRequest(ctx, http.MethodPost,
		s.client.apiPath("/issue/%s/comment", url.PathEscape(idOrKey)), Comment{Body: body})
	if err != nil {
		return nil, err
	}
	var comment Comment
	if err := s.client.do(req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateComment replaces the body of an existing comment.
func (s *IssueService) UpdateComment(ctx context.Context, idOrKey, commentID, body string) (*Comment, error) {
	req, err := s.client.newRequest(ctx, http.MethodPut,
		s.client.apiPath("/issue/%s/comment/%s", url.PathEscape(idOrKey), url.PathEscape(commentID)), Comment{Body: body})
	if err != nil {
		return nil, err
	}
	var comment Comment
	if err := s.client.do(req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment removes a comment from an issue.
func (s *IssueService) DeleteComment(ctx context.Context, idOrKey, commentID string) error {
	req, err := s.client.newRequest(ctx, http.MethodDelete,
		s.client.apiPath("/issue/%s/comment/%s", url.PathEscape(idOrKey), url.PathEscape(commentID)), nil)
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

// GetWorklogs fetches all worklogs of an issue.
func (s *IssueService) GetWorklogs(ctx context.Context, idOrKey string) (*WorklogList, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet, s.client.apiPath("/issue/%s/worklog", url.PathEscape(idOrKey)), nil)
	if err != nil {
		return nil, err
	}
	var list WorklogList
	if err := s.client.do(req, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// AddWorklog posts a new worklog and returns the remote record.
func (s *IssueService) AddWorklog(ctx context.Context, idOrKey string, worklog *Worklog) (*Worklog, error) {
	req, err := s.client.newRequest(ctx, http.MethodPost,
		s.client.apiPath("/issue/%s/worklog", url.PathEscape(idOrKey)), worklog)
	if err != nil {
		return nil, err
	}
	var created Worklog
	if err := s.client.do(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateWorklog replaces an existing worklog.
func (s *IssueService) UpdateWorklog(ctx context.Context, idOrKey, worklogID string, worklog *Worklog) (*Worklog, error) {
	req, err := s.client.newRequest(ctx, http.MethodPut,
		s.client.apiPath("/issue/%s/worklog/%s", url.PathEscape(idOrKey), url.PathEscape(worklogID)), worklog)
	if err != nil {
		return nil, err
	}
	var updated Worklog
	if err := s.client.do(req, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteWorklog removes a worklog from an issue.
func (s *IssueService) DeleteWorklog(ctx context.Context, idOrKey, worklogID string) error {
	req, err := s.client.newRequest(ctx, http.MethodDelete,
		s.client.apiPath("/issue/%s/worklog/%s", url.PathEscape(idOrKey), url.PathEscape(worklogID)), nil)
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

// AddAttachment uploads one local file to an issue and returns the
// remote attachment records. Jira answers with a one-element array.
func (s *IssueService) AddAttachment(ctx context.Context, idOrKey, filePath string) ([]Attachment, error) {
	var created []Attachment
	path := s.client.apiPath("/issue/%s/attachments", url.PathEscape(idOrKey))
	if err := s.client.upload(ctx, path, filePath, filepath.Base(filePath), &created); err != nil {
		return nil, err
	}
	return created, nil
}

// DownloadAttachment streams an attachment's content to dest.
func (s *IssueService) DownloadAttachment(ctx context.Context, att *Attachment, dest string) error {
	if att.Content == "" {
		return fmt.Errorf("jira: attachment %s has no content URL", att.ID)
	}
	return s.client.Download(ctx, att.Content, dest)
}
