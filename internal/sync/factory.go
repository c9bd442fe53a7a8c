package sync

import (
	"errors"
	"fmt"

	"github.com/ktlab/jirabridge/internal/config"
	"github.com/ktlab/jirabridge/internal/jira"
	"github.com/ktlab/jirabridge/internal/models"
)

// ErrNoIntegration is returned when an issue service is requested for a
// project that does not have sync configured.
var ErrNoIntegration = errors.New("sync: project has no jira integration")

// NewIssueService builds an issue service scoped to the project's remote
// instance. A fresh client is built per call; call frequency is one
// project per import pass, so caching buys nothing.
func NewIssueService(project *models.Project, httpCfg config.HTTPConfig) (*jira.IssueService, error) {
	if project == nil || !project.HasJiraIntegration() {
		return nil, ErrNoIntegration
	}

	proxyURL := ""
	if httpCfg.Proxy.Host != "" {
		proxyURL = fmt.Sprintf("http://%s:%d", httpCfg.Proxy.Host, httpCfg.Proxy.Port)
		if httpCfg.Proxy.User != "" {
			proxyURL = fmt.Sprintf("http://%s:%s@%s:%d",
				httpCfg.Proxy.User, httpCfg.Proxy.Password, httpCfg.Proxy.Host, httpCfg.Proxy.Port)
		}
	}

	client, err := jira.NewClient(jira.Config{
		BaseURL:    project.JiraURL,
		Login:      project.JiraLogin,
		Password:   project.JiraPassword,
		AuthMode:   project.JiraAuthMode,
		APIVersion: project.JiraAPIVersion,
		Timeout:    httpCfg.Timeout(),
		ProxyURL:   proxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("sync: build client for project %d: %w", project.ID, err)
	}
	return jira.NewIssueService(client), nil
}
