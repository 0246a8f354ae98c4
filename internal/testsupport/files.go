package testsupport

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"discripper/internal/config"
	"discripper/internal/store"
)

// WriteFile creates path holding size filler bytes, parents included.
// A size <= 0 writes one byte so the file never reads as empty.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SeriesRip describes a finished TV disc as the ripper leaves it.
type SeriesRip struct {
	Label  string
	Title  string
	Year   string // defaults to 1994
	Folder string // under <completed>/tv
}

// FinishedSeriesJob records a successful series job for rip and creates its
// library folder holding a single title file.
func FinishedSeriesJob(t testing.TB, st *store.Store, cfg *config.Config, rip SeriesRip) *store.Job {
	t.Helper()
	ctx := context.Background()
	if rip.Year == "" {
		rip.Year = "1994"
	}

	job := NewJob(t, st, cfg, "/dev/sr0")
	if err := st.SetAutoIdentity(ctx, job.ID, store.Identity{
		DiscType:     store.DiscDVD,
		Label:        rip.Label,
		Title:        rip.Title,
		Year:         rip.Year,
		VideoType:    store.VideoSeries,
		HasNiceTitle: true,
	}); err != nil {
		t.Fatalf("SetAutoIdentity: %v", err)
	}
	AdvanceJob(t, st, job.ID, store.EventIdentify, store.EventTranscode, store.EventActivate, store.EventComplete)

	dir := filepath.Join(cfg.Paths.CompletedDir, "tv", rip.Folder)
	WriteFile(t, filepath.Join(dir, "title_01.mkv"), 64)
	if err := st.UpdateJobPath(ctx, job.ID, dir); err != nil {
		t.Fatalf("UpdateJobPath: %v", err)
	}
	job, err := st.MustGetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	return job
}
