package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"discripper/internal/api"
	"discripper/internal/daemonrun"
	"discripper/internal/logging"
	"discripper/internal/ripper"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the optical drives and rip every inserted disc",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				ConfigPath:  ctx.configPath,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log records")
	return cmd
}

func newRipCommand(ctx *commandContext) *cobra.Command {
	var jobID int64

	cmd := &cobra.Command{
		Use:   "rip",
		Short: "Run one job's pipeline in this process",
		Long: "Run the identify, rip, transcode and file steps for an existing job.\n" +
			"The daemon spawns this for every disc; run it by hand to retry a job.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobID <= 0 {
				return errors.New("--job is required")
			}
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return ctx.withEnv(func(e *env) error {
				logFactory := func(fileName string) (*slog.Logger, error) {
					return logging.NewFromConfig(e.cfg, fileName)
				}
				pipeline := ripper.New(e.cfg, e.jobs, ctx.controller(), e.logger,
					ripper.WithNotifier(ctx.notifications(e.cfg)),
					ripper.WithLogFactory(logFactory),
					ripper.WithVersion(version),
				)
				if err := pipeline.Run(signalCtx, jobID); err != nil {
					return fmt.Errorf("job %d: %w", jobID, err)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&jobID, "job", 0, "Job id to run")
	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API without watching drives",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return ctx.withEnv(func(e *env) error {
				cfg := *e.cfg
				if bind != "" {
					cfg.API.Bind = bind
				}
				server := api.New(&cfg, e.jobs, e.registry, e.renamer, e.logger)
				if err := server.Start(signalCtx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "API listening on %s\n", server.Addr())
				<-signalCtx.Done()
				server.Stop()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override api.bind")
	return cmd
}
