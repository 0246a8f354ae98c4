package preflight

import (
	"context"

	"discripper/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Raw directory", cfg.Paths.RawDir),
		CheckDirectoryAccess("Transcode directory", cfg.Paths.TranscodeDir),
		CheckDirectoryAccess("Completed directory", cfg.Paths.CompletedDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Paths.MusicDir != "" {
		results = append(results, CheckDirectoryAccess("Music directory", cfg.Paths.MusicDir))
	}
	if cfg.Workflow.MinFreeGiB > 0 {
		results = append(results, CheckFreeSpace("Raw free space", cfg.Paths.RawDir, cfg.Workflow.MinFreeGiB))
	}
	if cfg.Emby.Refresh {
		results = append(results, CheckEmby(ctx, cfg.EmbyURL(), cfg.Emby.APIKey, nil))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
