package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"discripper/internal/api"
	"discripper/internal/rename"
)

func TestRenamePreviewExecuteRollback(t *testing.T) {
	env := setupCLITestEnv(t)
	job := env.finishedSeriesJob(t, "FRIENDS_S1D1", "Friends", "Friends S1D1")
	ids := strconv.FormatInt(job.ID, 10)

	out, err := env.run(t, "rename", "preview", "--jobs", ids, "--style", "dash", "--json")
	if err != nil {
		t.Fatalf("rename preview: %v", err)
	}
	var preview api.PreviewResponse
	if err := json.Unmarshal([]byte(out), &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if !preview.Valid || len(preview.Items) != 1 || preview.Items[0].NewFolder != "friends-S1D1" {
		t.Fatalf("unexpected preview: %+v", preview)
	}

	out, err = env.run(t, "rename", "execute", "--jobs", ids, "--style", "dash", "--json")
	if err != nil {
		t.Fatalf("rename execute: %v", err)
	}
	var result rename.ExecuteResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.SuccessCount != 1 || result.BatchID == "" {
		t.Fatalf("unexpected execute result: %+v", result)
	}
	renamed := filepath.Join(env.cfg.Paths.CompletedDir, "tv", "friends-S1D1", "title_01.mkv")
	if _, err := os.Stat(renamed); err != nil {
		t.Fatalf("renamed folder missing: %v", err)
	}

	out, err = env.run(t, "rename", "batches")
	if err != nil {
		t.Fatalf("rename batches: %v", err)
	}
	requireContains(t, out, result.BatchID)

	out, err = env.run(t, "rename", "rollback", result.BatchID)
	if err != nil {
		t.Fatalf("rename rollback: %v", err)
	}
	requireContains(t, out, "1 rolled back")
	original := filepath.Join(env.cfg.Paths.CompletedDir, "tv", "Friends S1D1", "title_01.mkv")
	if _, err := os.Stat(original); err != nil {
		t.Fatalf("original folder not restored: %v", err)
	}
}

func TestRenameRejectsUnknownStyle(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "rename", "preview", "--jobs", "1", "--style", "camel"); err == nil {
		t.Fatal("expected unknown style to be rejected")
	}
	if _, err := env.run(t, "rename", "preview"); err == nil {
		t.Fatal("expected --jobs to be required")
	}
}
