package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"discripper/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OMDB_API_KEY", "omdb-key")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantRaw := filepath.Join(tempHome, ".local", "share", "discripper", "raw")
	if cfg.Paths.RawDir != wantRaw {
		t.Fatalf("unexpected raw dir: got %q want %q", cfg.Paths.RawDir, wantRaw)
	}
	if cfg.Paths.CompletedDir != filepath.Join(tempHome, "media", "completed") {
		t.Fatalf("unexpected completed dir: %q", cfg.Paths.CompletedDir)
	}
	if cfg.DatabasePath() != filepath.Join(tempHome, ".local", "share", "discripper", "discripper.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Metadata.OMDbAPIKey != "omdb-key" {
		t.Fatalf("expected OMDb key from env, got %q", cfg.Metadata.OMDbAPIKey)
	}
	if cfg.Ripper.RipMethod != config.RipMethodMKV {
		t.Fatalf("unexpected rip method %q", cfg.Ripper.RipMethod)
	}
	if cfg.Transcode.Backend != config.BackendHandBrake {
		t.Fatalf("unexpected backend %q", cfg.Transcode.Backend)
	}
	if cfg.Ripper.MinLength != 600 || cfg.Ripper.MaxLength != 99999 {
		t.Fatalf("unexpected length filter %d-%d", cfg.Ripper.MinLength, cfg.Ripper.MaxLength)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
completed_dir = "~/library"

[ripper]
rip_method = "BACKUP_DVD"
main_feature = true
min_length = 120
max_length = 7200
video_type = "Series"
disc_type_override = "auto"

[transcode]
backend = "ffmpeg"
dest_ext = ".MP4"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.CompletedDir != filepath.Join(tempHome, "library") {
		t.Fatalf("unexpected completed dir %q", cfg.Paths.CompletedDir)
	}
	if cfg.Ripper.RipMethod != config.RipMethodBackupDVD {
		t.Fatalf("rip method not normalized: %q", cfg.Ripper.RipMethod)
	}
	if cfg.Ripper.VideoType != config.VideoTypeSeries {
		t.Fatalf("video type not normalized: %q", cfg.Ripper.VideoType)
	}
	if cfg.Ripper.DiscTypeOverride != "" {
		t.Fatalf("expected auto override to clear, got %q", cfg.Ripper.DiscTypeOverride)
	}
	if cfg.Transcode.Backend != config.BackendFFmpeg || cfg.Transcode.DestExt != "mp4" {
		t.Fatalf("unexpected transcode settings %+v", cfg.Transcode)
	}
	if cfg.Logging.Format != config.LogFormatJSON || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging settings %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"rip method", func(c *config.Config) { c.Ripper.RipMethod = "iso" }, "ripper.rip_method"},
		{"backend", func(c *config.Config) { c.Transcode.Backend = "vlc" }, "transcode.backend"},
		{"length order", func(c *config.Config) { c.Ripper.MaxLength = 10; c.Ripper.MinLength = 20 }, "ripper.max_length"},
		{"extras path", func(c *config.Config) { c.Ripper.ExtrasSub = "../escape" }, "ripper.extras_sub"},
		{"emby server", func(c *config.Config) { c.Emby.Refresh = true }, "emby.server"},
		{"chmod", func(c *config.Config) { c.Files.SetPermissions = true; c.Files.ChmodValue = 789 }, "files.chmod_value"},
		{"poll", func(c *config.Config) { c.Workflow.TranscodePollInterval = 0 }, "workflow.transcode_poll_interval"},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestSnapshotRoundTripIsolatesJobSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Ripper.MainFeature = true
	cfg.Ripper.MaxConcurrentTranscodes = 2
	cfg.Transcode.Backend = config.BackendFFmpeg

	raw, err := config.EncodeSnapshot(cfg.Snapshot())
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}

	cfg.Ripper.MainFeature = false
	cfg.Transcode.Backend = config.BackendHandBrake

	snap, err := config.DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	jobCfg := cfg.WithSnapshot(snap)
	if !jobCfg.Ripper.MainFeature || jobCfg.Ripper.MaxConcurrentTranscodes != 2 {
		t.Fatalf("snapshot ripper settings lost: %+v", jobCfg.Ripper)
	}
	if jobCfg.Transcode.Backend != config.BackendFFmpeg {
		t.Fatalf("snapshot backend lost: %q", jobCfg.Transcode.Backend)
	}
	if cfg.Ripper.MainFeature {
		t.Fatal("WithSnapshot mutated the receiver")
	}
}

func TestFilesModeParsesOctalDigits(t *testing.T) {
	mode, err := config.Files{ChmodValue: 755}.Mode()
	if err != nil {
		t.Fatalf("Mode: %v", err)
	}
	if mode != 0o755 {
		t.Fatalf("mode = %o, want 755", mode)
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var parsed config.Config
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if parsed.Transcode.Backend != config.BackendHandBrake {
		t.Fatalf("unexpected sample backend %q", parsed.Transcode.Backend)
	}
	t.Setenv("HOME", t.TempDir())
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestEmbyURL(t *testing.T) {
	cfg := config.Default()
	if cfg.EmbyURL() != "" {
		t.Fatal("expected empty emby url when refresh disabled")
	}
	cfg.Emby.Refresh = true
	cfg.Emby.Server = "media.local"
	if got := cfg.EmbyURL(); got != "http://media.local:8096" {
		t.Fatalf("EmbyURL = %q", got)
	}
}
