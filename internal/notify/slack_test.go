package notify

import (
	"errors"
	"strings"
	"testing"

	slackapi "github.com/slack-go/slack"
)

func TestImportSummary_NoWebhookConfigured(t *testing.T) {
	n := New("")
	n.post = func(url string, msg *slackapi.WebhookMessage) error {
		t.Error("post called with empty webhook URL")
		return nil
	}
	if err := n.ImportSummary(Summary{Projects: 1}); err != nil {
		t.Fatalf("ImportSummary: %v", err)
	}
}

func TestImportSummary_Posts(t *testing.T) {
	var posted *slackapi.WebhookMessage
	n := New("https://hooks.slack.example.com/T000/B000/x")
	n.post = func(url string, msg *slackapi.WebhookMessage) error {
		posted = msg
		return nil
	}

	err := n.ImportSummary(Summary{
		Projects:           2,
		TasksCreated:       5,
		TasksUpdated:       3,
		UnmatchedAssignees: 1,
		Errors:             []error{errors.New("issue ABC-7: boom")},
	})
	if err != nil {
		t.Fatalf("ImportSummary: %v", err)
	}
	if posted == nil {
		t.Fatal("nothing posted")
	}
	for _, want := range []string{"2 projects", "5 tasks created", "3 updated", "1 assignees", "ABC-7"} {
		if !strings.Contains(posted.Text, want) {
			t.Errorf("message %q missing %q", posted.Text, want)
		}
	}
}

func TestFormatSummary_TruncatesErrors(t *testing.T) {
	s := Summary{}
	for i := 0; i < 15; i++ {
		s.Errors = append(s.Errors, errors.New("err"))
	}
	text := formatSummary(s)
	if !strings.Contains(text, "15 errors") {
		t.Errorf("text = %q, want total error count", text)
	}
	if !strings.Contains(text, "and 5 more") {
		t.Errorf("text = %q, want truncation marker", text)
	}
}

func TestImportSummary_PostError(t *testing.T) {
	n := New("https://hooks.slack.example.com/T000/B000/x")
	n.post = func(url string, msg *slackapi.WebhookMessage) error {
		return errors.New("webhook down")
	}
	if err := n.ImportSummary(Summary{}); err == nil {
		t.Fatal("expected error from failing webhook")
	}
}
