package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"discripper/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary", Hint: "install the missing package"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" || results[0].Path != present {
		t.Fatalf("unexpected status for available dependency: %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if !strings.Contains(results[1].Detail, "not found") || !strings.Contains(results[1].Detail, "install the missing package") {
		t.Fatalf("detail should name the binary and the install hint, got %q", results[1].Detail)
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank command status: %#v", results[2])
	}
}

func TestRequirementsFollowBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Transcode.Backend = config.BackendFFmpeg

	optional := map[string]bool{}
	for _, req := range Requirements(&cfg) {
		optional[req.Name] = req.Optional
	}
	if optional["MakeMKV"] {
		t.Fatal("MakeMKV should always be required")
	}
	if !optional["HandBrake"] {
		t.Fatal("HandBrake should be optional with the ffmpeg backend")
	}
	if optional["FFmpeg"] || optional["FFprobe"] {
		t.Fatal("ffmpeg tools should be required with the ffmpeg backend")
	}
	if !optional["abcde"] {
		t.Fatal("abcde should be optional")
	}

	for _, req := range Requirements(&cfg) {
		if strings.TrimSpace(req.Hint) == "" {
			t.Errorf("%s has no install hint", req.Name)
		}
	}

	if Requirements(nil) != nil {
		t.Fatal("expected no requirements without a config")
	}
}

func TestMissingSkipsOptional(t *testing.T) {
	statuses := []Status{
		{Name: "a", Available: true},
		{Name: "b", Available: false, Optional: true},
		{Name: "c", Available: false},
	}
	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "c" {
		t.Fatalf("Missing = %#v, want only c", missing)
	}
}
