package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"discripper/internal/config"
	"discripper/internal/logging"
	"discripper/internal/services"
)

func TestNewFromConfigWritesJobFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = config.LogFormatConsole

	logger, err := logging.NewFromConfig(&cfg, "job-1.log")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from job")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "job-1.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from job") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "ripper")
	component.Info("rip started", logging.String("label", "MY DISC"), logging.Int("tracks", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO ripper: rip started") {
		t.Fatalf("missing component prefix: %q", line)
	}
	if !strings.Contains(line, `label="MY DISC"`) || !strings.Contains(line, "tracks=3") {
		t.Fatalf("missing fields: %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), 42)
	ctx = services.WithStage(ctx, "ripping")
	logging.WarnWithContext(logging.WithContext(ctx, logger), "track skipped", "track_filtered")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	if entry["job_id"] != float64(42) || entry["stage"] != "ripping" {
		t.Fatalf("missing context fields: %v", entry)
	}
	if entry["level"] != "warn" || entry["msg"] != "track skipped" {
		t.Fatalf("unexpected level/msg: %v", entry)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected %s to be injected: %v", key, entry)
		}
	}
}

func TestWarnKeepsCallerImpact(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "track failed", "track_failed",
		logging.Track("3"),
		logging.String(logging.FieldImpact, "other tracks continue"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	if entry[logging.FieldTrack] != "3" || entry[logging.FieldImpact] != "other tracks continue" {
		t.Fatalf("caller fields lost: %v", entry)
	}
	if hint, _ := entry[logging.FieldErrorHint].(string); entry[logging.FieldEventType] != "track_failed" || hint == "" {
		t.Fatalf("defaults not injected: %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestJobLogName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 10, 11, 12, 0, time.UTC)

	if got := logging.JobLogName(dir, "MY DISC", false, now); got != "MY_DISC.log" {
		t.Fatalf("first name = %q", got)
	}
	if err := os.WriteFile(filepath.Join(dir, "MY_DISC.log"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := logging.JobLogName(dir, "MY DISC", false, now); got != "MY_DISC_20240309_101112.log" {
		t.Fatalf("collision name = %q", got)
	}
	if got := logging.JobLogName(dir, "not identified", true, now); got != "not_identified_20240309_101112.log" {
		t.Fatalf("forced name = %q", got)
	}
}
