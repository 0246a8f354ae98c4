package rename_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"discripper/internal/config"
	"discripper/internal/logging"
	"discripper/internal/naming"
	"discripper/internal/rename"
	"discripper/internal/services"
	"discripper/internal/store"
	"discripper/internal/testsupport"
)

var renameNow = time.Date(2024, 3, 9, 14, 5, 6, 0, time.Local)

type renameNotifier struct {
	mu      sync.Mutex
	series  string
	renamed int
	failed  int
	calls   int
}

func (n *renameNotifier) NotifyJobStarted(context.Context, string, string) error { return nil }
func (n *renameNotifier) NotifyRipCompleted(context.Context, string) error { return nil }
func (n *renameNotifier) NotifyTranscodeCompleted(context.Context, string) error { return nil }
func (n *renameNotifier) NotifyJobCompleted(context.Context, string, string) error { return nil }
func (n *renameNotifier) NotifyJobFailed(context.Context, string, error) error { return nil }
func (n *renameNotifier) TestNotification(context.Context) error { return nil }
func (n *renameNotifier) NotifyRenameBatch(_ context.Context, series string, ok, failed int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.series, n.renamed, n.failed = series, ok, failed
	return nil
}

type fixture struct {
	t        *testing.T
	cfg      *config.Config
	st       *store.Store
	engine   *rename.Engine
	notifier *renameNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NotifyRename = true
	if err := os.MkdirAll(filepath.Join(cfg.Paths.CompletedDir, "tv"), 0o755); err != nil {
		t.Fatal(err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	n := &renameNotifier{}
	batch := 0
	engine := rename.New(cfg, st, n, logging.NewNop(),
		rename.WithClock(func() time.Time { return renameNow }),
		rename.WithBatchIDs(func() string {
			batch++
			return "batch-" + string(rune('0'+batch))
		}),
	)
	return &fixture{t: t, cfg: cfg, st: st, engine: engine, notifier: n}
}

// seriesJob records a finished series job whose output lives in
// completed/tv/<folder>.
func (f *fixture) seriesJob(label, title, year, folder string) *store.Job {
	f.t.Helper()
	return testsupport.FinishedSeriesJob(f.t, f.st, f.cfg, testsupport.SeriesRip{Label: label, Title: title, Year: year, Folder: folder})
}

func (f *fixture) job(id int64) *store.Job {
	f.t.Helper()
	job, err := f.st.MustGetJob(context.Background(), id)
	if err != nil {
		f.t.Fatalf("MustGetJob: %v", err)
	}
	return job
}

func (f *fixture) tv(parts ...string) string {
	return filepath.Join(append([]string{f.cfg.Paths.CompletedDir, "tv"}, parts...)...)
}

func ids(jobs ...*store.Job) []int64 {
	out := make([]int64, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func TestPreviewConsolidatesConsistentSeries(t *testing.T) {
	f := newFixture(t)
	a := f.seriesJob("FRIENDS_S01D01", "Friends", "1994", "Friends (1994)")
	b := f.seriesJob("FRIENDS_S01_D02", "Friends", "1994", "Friends (1994)_20240101_000000")
	c := f.seriesJob("Friends Season 2 Disc 1", "Friends", "1994", "Friends (1994)_20240102_000000")

	preview, err := f.engine.Preview(context.Background(), rename.Request{
		JobIDs:      ids(a, b, c),
		Consolidate: true,
		IncludeYear: true,
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !preview.Valid() || !preview.Series.Consistent {
		t.Fatalf("expected a valid consistent preview: %+v", preview)
	}
	if preview.ParentFolder != "Friends (1994)" {
		t.Fatalf("parent folder = %q", preview.ParentFolder)
	}
	want := []string{
		f.tv("Friends (1994)", "Friends_S1D1"),
		f.tv("Friends (1994)", "Friends_S1D2"),
		f.tv("Friends (1994)", "Friends_S2D1"),
	}
	if len(preview.Items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(preview.Items))
	}
	for i, item := range preview.Items {
		if item.NewPath != want[i] {
			t.Errorf("item %d new path = %q, want %q", i, item.NewPath, want[i])
		}
		if item.Conflict != "" || item.Fallback {
			t.Errorf("item %d unexpectedly flagged: %+v", i, item)
		}
	}
	if preview.Conflicts() != 0 {
		t.Fatalf("expected no conflicts")
	}
}

func TestPreviewStylesAndPadding(t *testing.T) {
	f := newFixture(t)
	job := f.seriesJob("SHOW_S1D2", "Doctor Who?", "2005", "Doctor Who (2005)")

	tests := []struct {
		style   naming.Style
		zeroPad bool
		want    string
	}{
		{naming.StyleUnderscore, false, "Doctor_Who_S1D2"},
		{naming.StyleDash, false, "doctor-who-S1D2"},
		{naming.StyleSpace, true, "Doctor Who S01D02"},
	}
	for _, tt := range tests {
		preview, err := f.engine.Preview(context.Background(), rename.Request{JobIDs: ids(job), Style: tt.style, ZeroPad: tt.zeroPad})
		if err != nil {
			t.Fatalf("Preview: %v", err)
		}
		if len(preview.Items) != 1 || preview.Items[0].NewFolder != tt.want {
			t.Errorf("style %s pad %v: got %+v, want %s", tt.style, tt.zeroPad, preview.Items, tt.want)
		}
	}
}

func TestPreviewFallsBackWhenLabelHasNoIdentifier(t *testing.T) {
	f := newFixture(t)
	job := f.seriesJob("FRIENDS", "Friends", "1994", "friends_raw")

	preview, err := f.engine.Preview(context.Background(), rename.Request{JobIDs: ids(job)})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	item := preview.Items[0]
	if !item.Fallback || item.NewFolder != "Friends (1994)" || item.Identifier != "" {
		t.Fatalf("unexpected fallback item: %+v", item)
	}
}

func TestPreviewRequiresSeriesSelection(t *testing.T) {
	f := newFixture(t)
	a := f.seriesJob("S1D1", "Friends", "1994", "a")
	b := f.seriesJob("S1D2", "Friends", "1994", "b")
	c := f.seriesJob("S1D3", "Frasier", "1993", "c")
	ctx := context.Background()

	preview, err := f.engine.Preview(ctx, rename.Request{JobIDs: ids(a, b, c)})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !preview.RequiresSeriesSelection || preview.Valid() || len(preview.Items) != 0 {
		t.Fatalf("expected a selection request, got %+v", preview)
	}
	if preview.Series.Primary != "Friends" || len(preview.Series.Outliers) != 1 || preview.Series.Outliers[0] != c.ID {
		t.Fatalf("unexpected grouping: %+v", preview.Series)
	}
	if _, err := f.engine.Execute(ctx, rename.Request{JobIDs: ids(a, b, c)}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("execute without a selection should fail validation, got %v", err)
	}

	preview, err = f.engine.Preview(ctx, rename.Request{JobIDs: ids(a, b, c), SeriesKey: "title:Frasier"})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !preview.Valid() || preview.SeriesName != "Frasier" || preview.Items[0].NewFolder != "Frasier_S1D1" {
		t.Fatalf("selected series not applied: %+v", preview)
	}
}

func TestManualTitleGroupRanksFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seriesJob("S1D1", "Friends", "1994", "a")
	b := f.seriesJob("S1D2", "Friends", "1994", "b")
	c := f.seriesJob("S1D3", "Friends", "1994", "c")
	if err := f.st.ApplyCorrection(ctx, c.ID, store.Correction{Title: "Friends Remastered"}); err != nil {
		t.Fatal(err)
	}
	preview, err := f.engine.Preview(ctx, rename.Request{JobIDs: ids(a, b, c), ForceSeries: true})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.Series.PrimaryKey != "manual:Friends Remastered" {
		t.Fatalf("primary key = %q", preview.Series.PrimaryKey)
	}
	if preview.Items[0].NewFolder != "Friends_Remastered_S1D1" {
		t.Fatalf("forced series not applied: %+v", preview.Items[0])
	}
}

func TestPreviewRejectsInvalidSelection(t *testing.T) {
	f := newFixture(t)
	running := testsupport.NewJob(t, f.st, f.cfg, "/dev/sr1")
	outside := f.seriesJob("S1D1", "Friends", "1994", "x")
	if err := f.st.UpdateJobPath(context.Background(), outside.ID, t.TempDir()); err != nil {
		t.Fatal(err)
	}

	preview, err := f.engine.Preview(context.Background(), rename.Request{JobIDs: []int64{running.ID, 999, outside.ID}})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.Valid() || len(preview.Errors) != 2 {
		t.Fatalf("expected two selection errors, got %v", preview.ErrorMessages())
	}
	for _, verr := range preview.Errors {
		if !errors.Is(verr, services.ErrValidation) {
			t.Fatalf("error %v is not a validation error", verr)
		}
	}
}

func TestPreviewRejectsPathsOutsideRoot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	outside := t.TempDir()
	if err := os.MkdirAll(filepath.Join(outside, "Show"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, f.tv("escape")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	escaped := f.seriesJob("S1D1", "Show", "2001", "plain")
	if err := f.st.UpdateJobPath(ctx, escaped.ID, filepath.Join(f.tv("escape"), "Show")); err != nil {
		t.Fatal(err)
	}
	preview, err := f.engine.Preview(ctx, rename.Request{JobIDs: ids(escaped)})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.Valid() || len(preview.Items) != 0 {
		t.Fatalf("symlinked source outside the root must be rejected: %+v", preview)
	}

	traversal := f.seriesJob("S1D2", "Show", "2001", "inside")
	if err := f.st.UpdateJobPath(ctx, traversal.ID, f.tv("inside")+"/../inside"); err != nil {
		t.Fatal(err)
	}
	preview, err = f.engine.Preview(ctx, rename.Request{JobIDs: ids(traversal)})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.Valid() || !strings.Contains(strings.Join(preview.ErrorMessages(), "; "), "parent reference") {
		t.Fatalf("parent traversal must be rejected, got %v", preview.ErrorMessages())
	}
	if _, err := os.Stat(f.tv("inside")); err != nil {
		t.Fatalf("rejected folder must stay untouched: %v", err)
	}
}

func TestExecuteAndRollbackRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seriesJob("FRIENDS_S1D1", "Friends", "1994", "Friends (1994)")
	b := f.seriesJob("FRIENDS_S1D2", "Friends", "1994", "Friends (1994)_2")
	req := rename.Request{JobIDs: ids(a, b), Consolidate: true, IncludeYear: true, User: "ops"}

	result, err := f.engine.Execute(ctx, req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.BatchID != "batch-1" || result.SuccessCount != 2 || result.FailedCount != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	for _, want := range []string{f.tv("Friends (1994)", "Friends_S1D1"), f.tv("Friends (1994)", "Friends_S1D2")} {
		if _, err := os.Stat(filepath.Join(want, "title_01.mkv")); err != nil {
			t.Fatalf("expected moved folder %s: %v", want, err)
		}
	}
	if got := f.job(a.ID).Path; got != f.tv("Friends (1994)", "Friends_S1D1") {
		t.Fatalf("job path not updated: %q", got)
	}
	if f.notifier.calls != 1 || f.notifier.renamed != 2 || f.notifier.series != "Friends" {
		t.Fatalf("unexpected notification: %+v", f.notifier)
	}

	batches, err := f.engine.RecentBatches(ctx, 5)
	if err != nil || len(batches) != 1 || batches[0].Succeeded != 2 || !batches[0].Rollbackable() {
		t.Fatalf("recent batches = %+v, %v", batches, err)
	}

	rolled, err := f.engine.Rollback(ctx, result.BatchID, "ops")
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if rolled.RolledBack != 2 || rolled.Failed != 0 {
		t.Fatalf("unexpected rollback: %+v", rolled)
	}
	if f.job(a.ID).Path != a.Path || f.job(b.ID).Path != b.Path {
		t.Fatal("job paths not restored")
	}
	if _, err := os.Stat(filepath.Join(a.Path, "title_01.mkv")); err != nil {
		t.Fatalf("folder not restored: %v", err)
	}
	records, err := f.st.BatchRecords(ctx, result.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range records {
		if !rec.RolledBack || rec.RollbackBy == nil || *rec.RollbackBy != "ops" {
			t.Fatalf("record not marked rolled back: %+v", rec)
		}
	}

	if _, err := f.engine.Rollback(ctx, result.BatchID, "ops"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("second rollback should find nothing, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(a.Path, "title_01.mkv")); err != nil {
		t.Fatalf("second rollback moved files: %v", err)
	}
}

func TestExecuteSuffixesTakenDestination(t *testing.T) {
	f := newFixture(t)
	job := f.seriesJob("SHOW_S2D1", "Show", "2001", "Show (2001)")
	preview, err := f.engine.Preview(context.Background(), rename.Request{JobIDs: ids(job)})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	// Appears between preview and execute.
	if err := os.MkdirAll(f.tv("Show_S2D1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if preview.Conflicts() != 0 {
		t.Fatal("no conflict expected at preview time")
	}

	result, err := f.engine.Execute(context.Background(), rename.Request{JobIDs: ids(job)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := f.tv("Show_S2D1_20240309_140506")
	if result.Items[0].NewPath != want || f.job(job.ID).Path != want {
		t.Fatalf("expected suffixed destination %s, got %+v", want, result.Items[0])
	}
}

func TestRollbackReportsMissingFolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seriesJob("S1D1", "Show", "2001", "one")
	b := f.seriesJob("S1D2", "Show", "2001", "two")

	result, err := f.engine.Execute(ctx, rename.Request{JobIDs: ids(a, b)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := os.RemoveAll(f.tv("Show_S1D2")); err != nil {
		t.Fatal(err)
	}

	rolled, err := f.engine.Rollback(ctx, result.BatchID, "ops")
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if rolled.RolledBack != 1 || rolled.Failed != 1 || len(rolled.Errors) != 1 {
		t.Fatalf("unexpected rollback: %+v", rolled)
	}
	if f.job(a.ID).Path != a.Path {
		t.Fatal("first job should be restored")
	}
}
