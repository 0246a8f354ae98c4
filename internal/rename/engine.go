package rename

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"discripper/internal/config"
	"discripper/internal/fileutil"
	"discripper/internal/logging"
	"discripper/internal/naming"
	"discripper/internal/notifications"
	"discripper/internal/store"
)

// Engine plans and applies batch renames against one store.
type Engine struct {
	cfg      *config.Config
	store    *store.Store
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now for conflict suffixes and audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithBatchIDs replaces the uuid batch id generator.
func WithBatchIDs(next func() string) Option {
	return func(e *Engine) {
		if next != nil {
			e.newID = next
		}
	}
}

// New builds an engine. A nil notifier disables rename notifications.
func New(cfg *config.Config, st *store.Store, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		store:    st,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "rename"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecentBatches summarizes the newest batches.
func (e *Engine) RecentBatches(ctx context.Context, limit int) ([]store.BatchSummary, error) {
	return e.store.RecentBatches(ctx, limit)
}

// Preview validates req and computes the destination of every selected
// job. Selection and path problems are collected in Preview.Errors; the
// returned error is reserved for storage failures.
func (e *Engine) Preview(ctx context.Context, req Request) (*Preview, error) {
	style := req.Style
	if style == "" {
		style = naming.StyleUnderscore
	}
	preview := &Preview{Style: style, ZeroPad: req.ZeroPad}

	g, err := newGuard(e.cfg.Paths.CompletedDir)
	if err != nil {
		preview.Errors = append(preview.Errors, ValidationError{Reason: err.Error()})
		return preview, nil
	}
	jobs, err := e.selectJobs(ctx, req.JobIDs, preview)
	if err != nil || len(preview.Errors) > 0 {
		return preview, err
	}

	preview.Series = groupSeries(jobs)
	seriesName := strings.TrimSpace(req.SeriesName)
	if seriesName == "" && req.SeriesKey != "" {
		for _, group := range preview.Series.Groups {
			if group.Key == req.SeriesKey {
				seriesName = group.DisplayName
			}
		}
		if seriesName == "" {
			preview.Errors = append(preview.Errors, ValidationError{Reason: fmt.Sprintf("unknown series group %q", req.SeriesKey)})
			return preview, nil
		}
	}
	if !preview.Series.Consistent {
		if seriesName == "" && !req.ForceSeries {
			preview.RequiresSeriesSelection = true
			preview.Warnings = append(preview.Warnings, fmt.Sprintf(
				"%d series found in the selection; pick one series or supply a series name", len(preview.Series.Groups)))
			return preview, nil
		}
		if seriesName == "" {
			seriesName = preview.Series.Primary
		}
	}
	preview.SeriesName = seriesName
	if preview.SeriesName == "" {
		preview.SeriesName = preview.Series.Primary
	}

	if req.Consolidate {
		parentTitle := seriesName
		if parentTitle == "" {
			parentTitle = naming.SeriesTitle(jobs[0])
		}
		preview.ParentFolder = naming.SeriesParentFolder(parentTitle, jobs[0].EffectiveYear(), req.IncludeYear)
	}

	skip := make(map[int64]bool, len(req.Skip))
	for _, id := range req.Skip {
		skip[id] = true
	}
	seen := make(map[string]int64)
	for _, job := range jobs {
		if skip[job.ID] {
			continue
		}
		item, verr := e.planItem(g, job, seriesName, style, req.ZeroPad, preview.ParentFolder)
		if verr != nil {
			preview.Errors = append(preview.Errors, *verr)
			continue
		}
		if other, ok := seen[item.NewPath]; ok {
			item.Conflict = fmt.Sprintf("same destination as job %d", other)
		} else if item.NewPath != item.OldPath && fileutil.Exists(item.NewPath) {
			item.Conflict = "destination already exists"
		}
		seen[item.NewPath] = job.ID
		if item.Fallback {
			logging.WarnWithContext(e.logger, "disc label has no season/disc token, using the standard folder name",
				"rename_label_fallback",
				logging.JobID(job.ID),
				logging.String("label", job.Label),
			)
		}
		preview.Items = append(preview.Items, item)
	}
	if n := preview.Conflicts(); n > 0 {
		preview.Warnings = append(preview.Warnings, fmt.Sprintf("%d destinations are taken and get a timestamp suffix", n))
	}
	return preview, nil
}

// selectJobs loads the selection, recording a ValidationError for each
// unusable job.
func (e *Engine) selectJobs(ctx context.Context, ids []int64, preview *Preview) ([]*store.Job, error) {
	if len(ids) == 0 {
		preview.Errors = append(preview.Errors, ValidationError{Reason: "no jobs selected"})
		return nil, nil
	}
	var jobs []*store.Job
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		job, err := e.store.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		switch {
		case job == nil:
			preview.Errors = append(preview.Errors, ValidationError{JobID: id, Reason: "not found"})
			continue
		case !job.Status.IsTerminal():
			preview.Errors = append(preview.Errors, ValidationError{JobID: id, Reason: fmt.Sprintf("not finished (status %s)", job.Status)})
			continue
		case strings.TrimSpace(job.Path) == "" || !fileutil.Exists(job.Path):
			preview.Errors = append(preview.Errors, ValidationError{JobID: id, Reason: "has no output folder"})
			continue
		}
		if !job.IsSeries() {
			preview.Warnings = append(preview.Warnings, fmt.Sprintf("job %d (%s) is not a series", id, job.DisplayTitle()))
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// groupSeries groups jobs by operator title, else IMDb id, else title.
// Groups with an operator title rank first, then larger groups.
func groupSeries(jobs []*store.Job) Consistency {
	var (
		order  []string
		groups = make(map[string]*SeriesGroup)
	)
	for _, job := range jobs {
		key, display, manual := seriesKey(job)
		group, ok := groups[key]
		if !ok {
			group = &SeriesGroup{Key: key, DisplayName: display, IMDBID: job.IMDBID, Manual: manual}
			groups[key] = group
			order = append(order, key)
		}
		group.JobIDs = append(group.JobIDs, job.ID)
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := groups[order[i]], groups[order[j]]
		if a.Manual != b.Manual {
			return a.Manual
		}
		return len(a.JobIDs) > len(b.JobIDs)
	})

	var c Consistency
	for _, key := range order {
		c.Groups = append(c.Groups, *groups[key])
	}
	if len(c.Groups) == 0 {
		c.Consistent = true
		return c
	}
	c.Primary = c.Groups[0].DisplayName
	c.PrimaryKey = c.Groups[0].Key
	c.Consistent = len(c.Groups) == 1
	for _, group := range c.Groups[1:] {
		c.Outliers = append(c.Outliers, group.JobIDs...)
	}
	return c
}

func seriesKey(job *store.Job) (key, display string, manual bool) {
	if t := strings.TrimSpace(job.TitleManual); t != "" {
		return "manual:" + t, t, true
	}
	if id := strings.TrimSpace(job.IMDBID); id != "" {
		display = strings.TrimSpace(job.Title)
		if display == "" {
			display = id
		}
		return "imdb:" + id, display, false
	}
	return "title:" + strings.TrimSpace(job.Title), strings.TrimSpace(job.Title), false
}

// planItem computes one job's destination. seriesName overrides the job's
// own title when set.
func (e *Engine) planItem(g guard, job *store.Job, seriesName string, style naming.Style, zeroPad bool, parent string) (Item, *ValidationError) {
	oldPath, err := g.check(job.Path)
	if err != nil {
		return Item{}, &ValidationError{JobID: job.ID, Reason: "invalid source path: " + err.Error()}
	}
	series := seriesName
	if series == "" {
		series = naming.SeriesTitle(job)
	}

	item := Item{
		JobID:        job.ID,
		Title:        job.DisplayTitle(),
		Label:        job.Label,
		OldPath:      oldPath,
		OldFolder:    filepath.Base(oldPath),
		SeriesName:   series,
		Consolidated: parent != "",
		ParentFolder: parent,
	}
	if id, ok := naming.ParseDiscLabel(job.Label); ok {
		item.Identifier = id.Format(zeroPad)
		item.NewFolder = naming.SeriesFolderName(series, id, style, zeroPad)
	} else {
		item.Fallback = true
		item.NewFolder = naming.StandardFolderName(series, job.EffectiveYear())
	}
	item.NewFolder = naming.SafeFolderComponent(item.NewFolder)
	if item.NewFolder == "" {
		return Item{}, &ValidationError{JobID: job.ID, Reason: "no usable folder name"}
	}

	base := filepath.Dir(oldPath)
	if parent != "" {
		if filepath.Base(base) == parent {
			base = filepath.Dir(base)
		}
		base = filepath.Join(base, parent)
	}
	newPath, err := g.check(filepath.Join(base, item.NewFolder))
	if err != nil {
		return Item{}, &ValidationError{JobID: job.ID, Reason: "invalid destination: " + err.Error()}
	}
	item.NewPath = newPath
	return item, nil
}
