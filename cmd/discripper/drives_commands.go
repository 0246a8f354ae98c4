package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"discripper/internal/api"
	"discripper/internal/disc"
	"discripper/internal/drives"
	"discripper/internal/store"
)

func newDrivesCommand(ctx *commandContext) *cobra.Command {
	drivesCmd := &cobra.Command{
		Use:     "drives",
		Aliases: []string{"drive"},
		Short:   "Inspect and configure optical drives",
	}
	drivesCmd.AddCommand(newDrivesListCommand(ctx))
	drivesCmd.AddCommand(newDrivesScanCommand(ctx))
	drivesCmd.AddCommand(newDrivesEjectCommand(ctx))
	drivesCmd.AddCommand(newDrivesEditCommand(ctx))
	return drivesCmd
}

func newDrivesListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered drives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(func(e *env) error {
				list, err := e.registry.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					items := make([]api.DriveItem, 0, len(list))
					for _, drive := range list {
						items = append(items, api.FromDrive(drive))
					}
					return writeJSON(cmd, api.DriveListResponse{Drives: items})
				}
				renderDrives(cmd, list)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newDrivesScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Rescan the system for optical drives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(func(e *env) error {
				result, err := e.registry.Refresh(cmd.Context(), drives.SyncOptions{})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d, updated %d, stale %d\n",
					result.Created, result.Updated, result.Stale)
				list, err := e.registry.List(cmd.Context())
				if err != nil {
					return err
				}
				renderDrives(cmd, list)
				return nil
			})
		},
	}
}

func newDrivesEjectCommand(ctx *commandContext) *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "eject <drive-id>",
		Short: "Open, close or toggle a drive tray",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDriveID(args[0])
			if err != nil {
				return err
			}
			ejectMethod, err := parseEjectMethod(method)
			if err != nil {
				return err
			}
			return ctx.withEnv(func(e *env) error {
				if err := e.registry.Eject(cmd.Context(), id, ejectMethod); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Drive %d: %s sent\n", id, ejectMethod)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&method, "method", string(disc.EjectOpen), "eject, close or toggle")
	return cmd
}

func newDrivesEditCommand(ctx *commandContext) *cobra.Command {
	var name, description, mode string

	cmd := &cobra.Command{
		Use:   "edit <drive-id>",
		Short: "Rename a drive or switch it between auto and manual mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDriveID(args[0])
			if err != nil {
				return err
			}
			return ctx.withEnv(func(e *env) error {
				current, err := e.store.GetDrive(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("name") {
					name = current.Name
				}
				if !cmd.Flags().Changed("description") {
					description = current.Description
				}
				if !cmd.Flags().Changed("mode") {
					mode = current.DriveMode
				}
				if err := e.registry.Update(cmd.Context(), id, name, description, mode); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Drive %d updated\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&description, "description", "", "Free-form description")
	cmd.Flags().StringVar(&mode, "mode", "", "auto or manual")
	return cmd
}

func renderDrives(cmd *cobra.Command, list []*store.Drive) {
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No drives registered")
		return
	}
	tbl := newListTable("ID", "Name", "Device", "Model", "Mode", "Job", "Stale").alignRight(0)
	for _, drive := range list {
		job := ""
		if drive.JobIDCurrent != nil {
			job = strconv.FormatInt(*drive.JobIDCurrent, 10)
		}
		model := strings.TrimSpace(drive.Maker + " " + drive.Model)
		tbl.add(
			strconv.FormatInt(drive.ID, 10),
			drive.Name,
			drive.Mount,
			model,
			drive.DriveMode,
			job,
			yesNo(drive.Stale),
		)
	}
	tbl.render(cmd.OutOrStdout())
}

func parseDriveID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid drive id %q", raw)
	}
	return id, nil
}

func parseEjectMethod(raw string) (disc.EjectMethod, error) {
	switch disc.EjectMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case "", disc.EjectOpen:
		return disc.EjectOpen, nil
	case disc.EjectClose:
		return disc.EjectClose, nil
	case disc.EjectToggle:
		return disc.EjectToggle, nil
	default:
		return "", fmt.Errorf("unknown eject method %q (want eject, close or toggle)", raw)
	}
}
