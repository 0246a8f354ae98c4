package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"discripper/internal/api"
	"discripper/internal/store"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job"},
		Short:   "Inspect and maintain rip jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsAbandonCommand(ctx))
	jobsCmd.AddCommand(newJobsDeleteCommand(ctx))
	jobsCmd.AddCommand(newJobsTitleCommand(ctx))
	jobsCmd.AddCommand(newJobsConfigCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter []string
	var active bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFilter)
			if err != nil {
				return err
			}
			if active {
				statuses = append(statuses, store.ActiveStatuses()...)
			}
			return ctx.withEnv(func(e *env) error {
				list, err := e.store.ListJobs(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				now := time.Now()
				if asJSON {
					return writeJobsJSON(cmd, list, now)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				tbl := newListTable("ID", "Status", "Type", "Label", "Title", "Device", "Runtime").alignRight(0, 6)
				for _, job := range list {
					tbl.add(
						strconv.FormatInt(job.ID, 10),
						string(job.Status),
						string(job.DiscType),
						job.Label,
						titleWithYear(job),
						job.DevPath,
						job.Duration(now).Truncate(time.Second).String(),
					)
				}
				tbl.render(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statusFilter, "status", nil, "Only show jobs with these statuses")
	cmd.Flags().BoolVar(&active, "active", false, "Only show unfinished jobs")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job and its tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withEnv(func(e *env) error {
				job, err := e.store.MustGetJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				tracks, err := e.store.ListTracks(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.JobResponse{Job: api.FromJob(job, tracks, time.Now())})
				}
				renderJob(cmd, job, tracks)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newJobsAbandonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "abandon <id>",
		Short: "Stop a job, kill its process and free its drive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withEnv(func(e *env) error {
				job, err := e.jobs.Abandon(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d abandoned (%s)\n", job.ID, job.Status)
				return nil
			})
		},
	}
}

func newJobsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a job and its tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withEnv(func(e *env) error {
				if err := e.jobs.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d deleted\n", id)
				return nil
			})
		},
	}
}

func newJobsTitleCommand(ctx *commandContext) *cobra.Command {
	var correction struct {
		title, year, videoType, imdbID, poster string
	}

	cmd := &cobra.Command{
		Use:   "title <id>",
		Short: "Correct a job's title, year or video type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withEnv(func(e *env) error {
				job, err := e.jobs.UpdateTitle(cmd.Context(), id, store.Correction{
					Title:     correction.title,
					Year:      correction.year,
					VideoType: store.VideoType(strings.ToLower(strings.TrimSpace(correction.videoType))),
					IMDBID:    strings.TrimSpace(correction.imdbID),
					PosterURL: strings.TrimSpace(correction.poster),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d title set to %s\n", job.ID, titleWithYear(job))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&correction.title, "title", "", "Corrected title")
	cmd.Flags().StringVar(&correction.year, "year", "", "Corrected release year")
	cmd.Flags().StringVar(&correction.videoType, "type", "", "movie or series")
	cmd.Flags().StringVar(&correction.imdbID, "imdb", "", "IMDb id")
	cmd.Flags().StringVar(&correction.poster, "poster", "", "Poster URL")
	return cmd
}

func newJobsConfigCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "config <id>",
		Short: "Print the settings snapshot a job runs with as TOML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withEnv(func(e *env) error {
				settings, err := e.store.JobSettings(cmd.Context(), id)
				if err != nil {
					return err
				}
				return toml.NewEncoder(cmd.OutOrStdout()).Encode(settings)
			})
		},
	}
}

func renderJob(cmd *cobra.Command, job *store.Job, tracks []*store.Track) {
	out := cmd.OutOrStdout()
	fields := [][2]string{
		{"Job", strconv.FormatInt(job.ID, 10)},
		{"Status", string(job.Status)},
		{"Stage", job.Stage},
		{"Device", job.DevPath},
		{"Disc type", string(job.DiscType)},
		{"Label", job.Label},
		{"Title", titleWithYear(job)},
		{"Video type", string(job.VideoType)},
		{"IMDb", job.IMDBID},
		{"Copy protected", yesNo(job.CopyProtected)},
		{"Path", job.Path},
		{"Log", job.LogFile},
		{"Runtime", job.Duration(time.Now()).Truncate(time.Second).String()},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		fmt.Fprintf(out, "%-15s %s\n", f[0]+":", f[1])
	}
	if job.Errors != "" {
		fmt.Fprintln(out, "Errors:")
		for _, msg := range strings.Split(job.Errors, "; ") {
			fmt.Fprintf(out, "  - %s\n", msg)
		}
	}
	if len(tracks) == 0 {
		return
	}
	fmt.Fprintln(out)
	tbl := newListTable("Track", "Length", "Main", "File", "Status", "Source").alignRight(1)
	for _, track := range tracks {
		name := track.NewFilename
		if name == "" {
			name = track.Filename
		}
		tbl.add(
			track.TrackNumber,
			(time.Duration(track.Length) * time.Second).String(),
			yesNo(track.MainFeature),
			name,
			string(track.Status),
			track.Source,
		)
	}
	tbl.render(out)
}

func titleWithYear(job *store.Job) string {
	title := job.DisplayTitle()
	if year := job.EffectiveYear(); year != "" && title != "" {
		return fmt.Sprintf("%s (%s)", title, year)
	}
	return title
}

func parseJobID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", raw)
	}
	return id, nil
}

func parseStatuses(values []string) ([]store.Status, error) {
	var statuses []store.Status
	for _, value := range values {
		status, ok := store.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
