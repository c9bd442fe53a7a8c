package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ktlab/jirabridge/internal/config"
	"github.com/ktlab/jirabridge/internal/models"
	"github.com/ktlab/jirabridge/internal/notify"
	"github.com/ktlab/jirabridge/internal/sync"
)

// taskPageSize bounds each local task query in the follow-up passes.
const taskPageSize = 100

func newImportCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run a batch import from all sync-enabled projects",
		Long:  "Imports remote issues, comments, worklogs and attachments for every sync-enabled project. Runs only in the production environment; elsewhere it is a no-op. The exit code is the number of accumulated errors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			errCount, err := runImport(cmd.Context(), cfg, gormDB, projectID)
			if err != nil {
				return err
			}
			if errCount > 0 {
				cmd.SilenceUsage = true
				return exitCodeError{code: capExitCode(errCount), msg: fmt.Sprintf("import finished with %d errors", errCount)}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().UintVar(&projectID, "project", 0, "limit the import to one project id")
	return cmd
}

// exitCodeError carries a specific process exit code through cobra.
type exitCodeError struct {
	code int
	msg  string
}

func (e exitCodeError) Error() string { return e.msg }

// capExitCode keeps error counts inside the usable exit-code range.
func capExitCode(n int) int {
	if n > 125 {
		return 125
	}
	return n
}

// runImport executes one full batch import and returns the number of
// accumulated item errors.
func runImport(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, projectID uint) (int, error) {
	logger := log.Default()

	if !cfg.IsProduction() {
		logger.Printf("import: environment %q is not production, nothing to do", cfg.Environment)
		return 0, nil
	}

	session, err := sync.AcquireImportLock(gormDB, 0)
	if err != nil {
		return 0, err
	}

	importer := sync.NewImporter(gormDB, cfg.HTTP, cfg.Import.DownloadDir, logger)
	total := sync.NewResult()

	projects, err := syncEnabledProjects(gormDB, projectID)
	if err != nil {
		sync.ReleaseImportLock(gormDB, session.ID, 0, 1)
		return 0, err
	}

	for i := range projects {
		project := &projects[i]
		result := importer.ImportTasks(ctx, project)
		total.Merge(result)

		if err := importLinkedRecords(ctx, gormDB, importer, project, result, total); err != nil {
			total.AddError(err)
		}

		if err := sync.Heartbeat(gormDB, session.ID); err != nil {
			logger.Printf("import: heartbeat: %v", err)
		}
	}

	for _, err := range total.Errors {
		logger.Printf("import: %v", err)
	}

	if err := sync.ReleaseImportLock(gormDB, session.ID, total.TasksCreated+total.TasksUpdated, len(total.Errors)); err != nil {
		logger.Printf("import: release lock: %v", err)
	}

	notifier := notify.New(cfg.Notify.SlackWebhookURL)
	if err := notifier.ImportSummary(notify.Summary{
		Projects:           len(projects),
		TasksCreated:       total.TasksCreated,
		TasksUpdated:       total.TasksUpdated,
		Errors:             total.Errors,
		UnmatchedAssignees: total.UnmatchedAssignees,
		UnmatchedAuthors:   total.UnmatchedAuthors,
	}); err != nil {
		logger.Printf("import: %v", err)
	}

	return len(total.Errors), nil
}

// importLinkedRecords runs the comment, worklog and attachment passes
// over every linked task of a project, in fixed-size pages.
func importLinkedRecords(ctx context.Context, gormDB *gorm.DB, importer *sync.Importer, project *models.Project, taskResult *sync.Result, total *sync.Result) error {
	offset := 0
	for {
		var tasks []models.Task
		if err := gormDB.Where("group_id = ? AND jira_id IS NOT NULL", project.ID).
			Order("id ASC").Offset(offset).Limit(taskPageSize).
			Find(&tasks).Error; err != nil {
			return fmt.Errorf("import: load tasks for project %d: %w", project.ID, err)
		}
		if len(tasks) == 0 {
			return nil
		}

		for i := range tasks {
			task := &tasks[i]
			total.Merge(importer.ImportComments(ctx, project, task))
			total.Merge(importer.ImportWorklogs(ctx, project, task))
			// A nil attachment list makes the importer re-fetch the issue.
			total.Merge(importer.ImportAttachments(ctx, project, task, taskResult.Attachments[task.ID]))
		}

		offset += len(tasks)
	}
}

// syncEnabledProjects returns all open projects with sync configured,
// optionally limited to one project id.
func syncEnabledProjects(gormDB *gorm.DB, projectID uint) ([]models.Project, error) {
	q := gormDB.Where("closed = ?", false)
	if projectID != 0 {
		q = q.Where("id = ?", projectID)
	}
	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("import: load projects: %w", err)
	}

	enabled := projects[:0]
	for _, p := range projects {
		if p.HasJiraIntegration() {
			enabled = append(enabled, p)
		}
	}
	return enabled, nil
}
