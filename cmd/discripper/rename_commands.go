package main

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"discripper/internal/api"
	"discripper/internal/naming"
	"discripper/internal/rename"
)

// renameFlags holds the batch selection shared by preview and execute.
type renameFlags struct {
	jobIDs      []int64
	style       string
	zeroPad     bool
	consolidate bool
	includeYear bool
	seriesKey   string
	seriesName  string
	forceSeries bool
	skip        []int64
	asJSON      bool
}

func (f *renameFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Int64SliceVar(&f.jobIDs, "jobs", nil, "Job ids to rename (comma separated)")
	cmd.Flags().StringVar(&f.style, "style", "underscore", "Folder naming style: underscore, dash or space")
	cmd.Flags().BoolVar(&f.zeroPad, "zero-pad", false, "Render S01D02 instead of S1D2")
	cmd.Flags().BoolVar(&f.consolidate, "consolidate", false, "Move every disc under one series folder")
	cmd.Flags().BoolVar(&f.includeYear, "include-year", false, "Append the year to the series folder")
	cmd.Flags().StringVar(&f.seriesKey, "series-key", "", "Series group to treat as authoritative")
	cmd.Flags().StringVar(&f.seriesName, "series-name", "", "Override the series name")
	cmd.Flags().BoolVar(&f.forceSeries, "force-series", false, "Apply the primary series name to outliers")
	cmd.Flags().Int64SliceVar(&f.skip, "skip", nil, "Outlier job ids to leave out")
	addJSONFlag(cmd, &f.asJSON)
	_ = cmd.MarkFlagRequired("jobs")
}

func (f *renameFlags) request() (rename.Request, error) {
	style, ok := naming.ParseStyle(f.style)
	if !ok {
		return rename.Request{}, fmt.Errorf("unknown naming style %q", f.style)
	}
	return rename.Request{
		JobIDs:      f.jobIDs,
		Style:       style,
		ZeroPad:     f.zeroPad,
		Consolidate: f.consolidate,
		IncludeYear: f.includeYear,
		SeriesKey:   f.seriesKey,
		SeriesName:  f.seriesName,
		ForceSeries: f.forceSeries,
		Skip:        f.skip,
		User:        currentUser(),
	}, nil
}

func newRenameCommand(ctx *commandContext) *cobra.Command {
	renameCmd := &cobra.Command{
		Use:   "rename",
		Short: "Batch rename finished TV disc folders",
	}
	renameCmd.AddCommand(newRenamePreviewCommand(ctx))
	renameCmd.AddCommand(newRenameExecuteCommand(ctx))
	renameCmd.AddCommand(newRenameRollbackCommand(ctx))
	renameCmd.AddCommand(newRenameBatchesCommand(ctx))
	return renameCmd
}

func newRenamePreviewCommand(ctx *commandContext) *cobra.Command {
	flags := &renameFlags{}
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the folders a batch rename would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			return ctx.withEnv(func(e *env) error {
				preview, err := e.renamer.Preview(cmd.Context(), req)
				if err != nil {
					return err
				}
				if flags.asJSON {
					return writeJSON(cmd, api.PreviewResponse{
						Preview: preview,
						Valid:   preview.Valid(),
						Errors:  preview.ErrorMessages(),
					})
				}
				renderPreview(cmd, preview)
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newRenameExecuteCommand(ctx *commandContext) *cobra.Command {
	flags := &renameFlags{}
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Rename the selected job folders and record a batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			return ctx.withEnv(func(e *env) error {
				result, err := e.renamer.Execute(cmd.Context(), req)
				if err != nil {
					return err
				}
				if flags.asJSON {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch %s: %d renamed, %d failed\n", result.BatchID, result.SuccessCount, result.FailedCount)
				for _, msg := range result.Errors {
					fmt.Fprintf(out, "  - %s\n", msg)
				}
				if result.FailedCount > 0 {
					return errors.New("some folders were not renamed")
				}
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newRenameRollbackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <batch-id>",
		Short: "Move the folders of a batch back to their old names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(func(e *env) error {
				result, err := e.renamer.Rollback(cmd.Context(), strings.TrimSpace(args[0]), currentUser())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch %s: %d rolled back, %d failed\n", result.BatchID, result.RolledBack, result.Failed)
				for _, msg := range result.Errors {
					fmt.Fprintf(out, "  - %s\n", msg)
				}
				return nil
			})
		},
	}
}

func newRenameBatchesCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List recent rename batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(func(e *env) error {
				batches, err := e.renamer.RecentBatches(cmd.Context(), limit)
				if err != nil {
					return err
				}
				items := make([]api.BatchItem, 0, len(batches))
				for _, b := range batches {
					items = append(items, api.FromBatch(b))
				}
				if asJSON {
					return writeJSON(cmd, api.BatchListResponse{Batches: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No rename batches")
					return nil
				}
				tbl := newListTable("Batch", "When", "By", "Series", "Renamed", "Failed", "Rolled back", "Undo").alignRight(4, 5, 6)
				for _, b := range items {
					tbl.add(
						b.BatchID,
						b.RenamedAt,
						b.RenamedBy,
						b.SeriesName,
						strconv.Itoa(b.Succeeded),
						strconv.Itoa(b.Failed),
						strconv.Itoa(b.RolledBack),
						yesNo(b.Rollbackable),
					)
				}
				tbl.render(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of batches to show")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func renderPreview(cmd *cobra.Command, preview *rename.Preview) {
	out := cmd.OutOrStdout()
	if preview.SeriesName != "" {
		fmt.Fprintf(out, "Series: %s\n", preview.SeriesName)
	}
	if preview.ParentFolder != "" {
		fmt.Fprintf(out, "Parent folder: %s\n", preview.ParentFolder)
	}
	if preview.RequiresSeriesSelection {
		fmt.Fprintln(out, "Jobs name different series; pass --series-key, --series-name or --force-series:")
		for _, group := range preview.Series.Groups {
			fmt.Fprintf(out, "  %s  %s  jobs %v\n", group.Key, group.DisplayName, group.JobIDs)
		}
	}
	if len(preview.Items) > 0 {
		tbl := newListTable("Job", "Old folder", "New folder", "Conflict").alignRight(0)
		for _, item := range preview.Items {
			tbl.add(strconv.FormatInt(item.JobID, 10), item.OldFolder, item.NewFolder, item.Conflict)
		}
		tbl.render(out)
	}
	for _, warning := range preview.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}
	for _, msg := range preview.ErrorMessages() {
		fmt.Fprintf(out, "error: %s\n", msg)
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cli"
}
