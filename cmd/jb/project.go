package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ktlab/jirabridge/internal/models"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect and configure project sync settings",
	}
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectCredentialsCmd())
	return cmd
}

func newProjectListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects and their sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			var projects []models.Project
			if err := gormDB.Order("id ASC").Find(&projects).Error; err != nil {
				return fmt.Errorf("project: list: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, p := range projects {
				state := "disabled"
				if p.HasJiraIntegration() {
					state = p.JiraURL
				}
				if p.Closed {
					state += " (closed)"
				}
				fmt.Fprintf(out, "%4d  %-30s  %s\n", p.ID, p.Name, state)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func newProjectCredentialsCmd() *cobra.Command {
	var (
		configPath string
		jiraURL    string
		login      string
		jqlFilter  string
		authMode   string
		apiVersion int
	)

	cmd := &cobra.Command{
		Use:   "credentials <project-id>",
		Short: "Set a project's Jira credentials",
		Long:  "Stores the remote URL, login, credential and JQL filter for a project. The credential is read from the terminal, never from arguments.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("project: parse id %q: %w", args[0], err)
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			var project models.Project
			if err := gormDB.First(&project, uint(id)).Error; err != nil {
				return fmt.Errorf("project: load %d: %w", id, err)
			}

			fmt.Fprint(cmd.OutOrStdout(), "Credential: ")
			secret, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("project: read credential: %w", err)
			}

			updates := map[string]interface{}{
				"jira_url":        jiraURL,
				"jira_login":      login,
				"jira_password":   string(secret),
				"jira_jql_filter": jqlFilter,
				"jira_auth_mode":  authMode,
			}
			if apiVersion > 0 {
				updates["jira_api_version"] = apiVersion
			}
			if err := gormDB.Model(&project).Updates(updates).Error; err != nil {
				return fmt.Errorf("project: update %d: %w", id, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sync credentials stored for project %d.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().StringVar(&jiraURL, "url", "", "Jira base URL")
	cmd.Flags().StringVar(&login, "login", "", "Jira login")
	cmd.Flags().StringVar(&jqlFilter, "jql", "", "JQL filter selecting the project's issues")
	cmd.Flags().StringVar(&authMode, "auth", models.AuthModeBasic, "auth mode: basic or bearer")
	cmd.Flags().IntVar(&apiVersion, "api-version", 0, "remote REST API version")
	cmd.MarkFlagRequired("url")
	cmd.MarkFlagRequired("login")
	cmd.MarkFlagRequired("jql")
	return cmd
}
