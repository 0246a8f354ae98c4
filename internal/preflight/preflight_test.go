package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"discripper/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("free", dir, 0); !result.Passed {
		t.Fatalf("expected pass with no minimum, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("free", dir, 1<<30); result.Passed {
		t.Fatalf("expected failure for an exabyte minimum, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("free", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckEmby_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/System/Info/Public" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckEmby(context.Background(), srv.URL, "key", srv.Client())
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckEmby_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	result := CheckEmby(context.Background(), srv.URL, "key", srv.Client())
	if result.Passed {
		t.Fatal("expected failure for server error")
	}
}

func TestCheckEmby_MissingSettings(t *testing.T) {
	if result := CheckEmby(context.Background(), "", "key", nil); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
	if result := CheckEmby(context.Background(), "http://localhost", "", nil); result.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.RawDir = t.TempDir()
	cfg.Paths.TranscodeDir = t.TempDir()
	cfg.Paths.CompletedDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.MusicDir = ""
	cfg.Workflow.MinFreeGiB = 0
	cfg.Emby.Refresh = false

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}
}

func TestRunAll_ReportsMissingDirectoryAndEmby(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.RawDir = t.TempDir()
	cfg.Paths.TranscodeDir = t.TempDir()
	cfg.Paths.CompletedDir = filepath.Join(t.TempDir(), "absent")
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.MusicDir = ""
	cfg.Workflow.MinFreeGiB = 0
	cfg.Emby.Refresh = true
	cfg.Emby.Server = ""

	failed := Failed(RunAll(context.Background(), &cfg))
	names := map[string]bool{}
	for _, r := range failed {
		names[r.Name] = true
	}
	if len(failed) != 2 || !names["Completed directory"] || !names["Emby"] {
		t.Fatalf("unexpected failures: %#v", failed)
	}
}
