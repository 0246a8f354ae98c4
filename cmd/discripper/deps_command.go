package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"discripper/internal/deps"
	"discripper/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tools, directories and services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			statuses := preflight.CheckSystemDeps(cfg)
			fmt.Fprintln(out, renderSectionHeader("Tools", colorize))
			for _, status := range statuses {
				detail := status.Command
				if !status.Available {
					detail = status.Detail
				}
				fmt.Fprintln(out, renderCheckLine(status.Name, stateFor(status.Available, status.Optional), detail, colorize))
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			fmt.Fprintln(out, renderSectionHeader("Environment", colorize))
			for _, result := range results {
				fmt.Fprintln(out, renderCheckLine(result.Name, stateFor(result.Passed, false), result.Detail, colorize))
			}

			missing := len(deps.Missing(statuses)) + len(preflight.Failed(results))
			if missing > 0 {
				return errors.New("some required checks failed")
			}
			return nil
		},
	}
}
