// Package notify posts import summaries to a Slack incoming webhook.
package notify

import (
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"
)

// Summary is one import run's outcome, rendered into a Slack message.
type Summary struct {
	Projects           int
	TasksCreated       int
	TasksUpdated       int
	Errors             []error
	UnmatchedAssignees int
	UnmatchedAuthors   int
}

// Notifier posts summaries to a webhook. A zero webhook URL disables
// posting without erroring, so callers never need to branch.
type Notifier struct {
	webhookURL string
	post       func(url string, msg *slackapi.WebhookMessage) error
}

// New creates a Notifier for the given webhook URL.
func New(webhookURL string) *Notifier {
	return &Notifier{webhookURL: webhookURL, post: slackapi.PostWebhook}
}

// ImportSummary posts the outcome of a batch import run.
func (n *Notifier) ImportSummary(s Summary) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := &slackapi.WebhookMessage{Text: formatSummary(s)}
	if err := n.post(n.webhookURL, msg); err != nil {
		return fmt.Errorf("notify: post import summary: %w", err)
	}
	return nil
}

func formatSummary(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Jira import finished: %d projects, %d tasks created, %d updated",
		s.Projects, s.TasksCreated, s.TasksUpdated)
	if s.UnmatchedAssignees > 0 || s.UnmatchedAuthors > 0 {
		fmt.Fprintf(&b, "\nSkipped for missing local accounts: %d assignees, %d authors",
			s.UnmatchedAssignees, s.UnmatchedAuthors)
	}
	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "\n%d errors:", len(s.Errors))
		limit := len(s.Errors)
		if limit > 10 {
			limit = 10
		}
		for _, err := range s.Errors[:limit] {
			fmt.Fprintf(&b, "\n- %v", err)
		}
		if len(s.Errors) > limit {
			fmt.Fprintf(&b, "\n- and %d more", len(s.Errors)-limit)
		}
	}
	return b.String()
}
