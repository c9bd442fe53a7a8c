package models

import (
	"regexp"
	"strings"
)

// Auth modes accepted in Project.JiraAuthMode.
const (
	AuthModeBasic  = "basic"
	AuthModeBearer = "bearer"
)

// Project is a local workgroup that may be linked to a Jira project.
type Project struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	Name    string `gorm:"size:255;not null"`
	Closed  bool   `gorm:"default:false;index"`
	OwnerID uint   `gorm:"index"`

	// Sync configuration. All four of URL/login/password/JQL filter must be
	// set for sync to be enabled; anything less means "sync disabled".
	JiraURL        string `gorm:"size:255"`
	JiraLogin      string `gorm:"size:255"`
	JiraPassword   string `gorm:"size:255"`
	JiraJQLFilter  string `gorm:"size:1024"`
	JiraAPIVersion int    `gorm:"default:2"`
	JiraAuthMode   string `gorm:"size:16;default:basic"`

	Owner *User `gorm:"foreignKey:OwnerID"`
}

// HasJiraIntegration reports whether sync is configured for the project.
func (p *Project) HasJiraIntegration() bool {
	return strings.TrimSpace(p.JiraURL) != "" &&
		strings.TrimSpace(p.JiraLogin) != "" &&
		strings.TrimSpace(p.JiraPassword) != "" &&
		strings.TrimSpace(p.JiraJQLFilter) != ""
}

// JiraProjectKey extracts the Jira project key from the JQL filter,
// e.g. "project = ABC AND ..." yields "ABC". Empty when not present.
func (p *Project) JiraProjectKey() string {
	return projectKeyFromJQL(p.JiraJQLFilter)
}

var projectKeyRe = regexp.MustCompile(`(?i)project\s*=\s*(\w+)`)

func projectKeyFromJQL(jql string) string {
	m := projectKeyRe.FindStringSubmatch(jql)
	if m == nil {
		return ""
	}
	return m[1]
}
