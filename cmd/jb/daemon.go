package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func newDaemonCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run batch imports on the configured schedule",
		Long:  "Stays in the foreground and runs the batch import on the cron schedule from the config file. Stops cleanly on SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runDaemon(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	sched, err := cronParser.Parse(cfg.Import.Schedule)
	if err != nil {
		return fmt.Errorf("daemon: parse schedule %q: %w", cfg.Import.Schedule, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.Default()
	logger.Printf("daemon: schedule %q, environment %q", cfg.Import.Schedule, cfg.Environment)

	runner := cron.New(cron.WithParser(cronParser))
	runner.Schedule(sched, cron.FuncJob(func() {
		errCount, err := runImport(ctx, cfg, gormDB, 0)
		if err != nil {
			logger.Printf("daemon: import run: %v", err)
			return
		}
		if errCount > 0 {
			logger.Printf("daemon: import run finished with %d errors", errCount)
		}
	}))
	runner.Start()

	<-ctx.Done()
	logger.Printf("daemon: shutting down")
	stopCtx := runner.Stop()
	<-stopCtx.Done()
	return nil
}
