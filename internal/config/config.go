package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	RawDir       string `toml:"raw_dir"`
	TranscodeDir string `toml:"transcode_dir"`
	CompletedDir string `toml:"completed_dir"`
	MusicDir     string `toml:"music_dir"`
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
}

// API contains the HTTP API listener configuration.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Ripper contains the per-job ripping policy. It is copied into every job's
// configuration snapshot at creation time.
type Ripper struct {
	RipMethod               string `toml:"rip_method"`
	MainFeature             bool   `toml:"main_feature"`
	SkipTranscode           bool   `toml:"skip_transcode"`
	MinLength               int    `toml:"min_length"`
	MaxLength               int    `toml:"max_length"`
	MaxConcurrentTranscodes int    `toml:"max_concurrent_transcodes"`
	AllowDuplicates         bool   `toml:"allow_duplicates"`
	UseDiscLabelForTV       bool   `toml:"use_disc_label_for_tv"`
	GroupTVDiscsUnderSeries bool   `toml:"group_tv_discs_under_series"`
	ExtrasSub               string `toml:"extras_sub"`
	VideoType               string `toml:"video_type"`
	DiscTypeOverride        string `toml:"disc_type_override"`
	ManualWait              bool   `toml:"manual_wait"`
	ManualWaitTime          int    `toml:"manual_wait_time"`
}

// MakeMKV contains disc ripping tool settings.
type MakeMKV struct {
	Binary     string `toml:"binary"`
	ExtraArgs  string `toml:"extra_args"`
	RipTimeout int    `toml:"rip_timeout"`
}

// Transcode contains the transcoding backend configuration.
type Transcode struct {
	Backend         string `toml:"backend"`
	HandBrakeBinary string `toml:"handbrake_binary"`
	PresetDVD       string `toml:"preset_dvd"`
	PresetBD        string `toml:"preset_bd"`
	ArgsDVD         string `toml:"args_dvd"`
	ArgsBD          string `toml:"args_bd"`
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	FFmpegArgs      string `toml:"ffmpeg_args"`
	DestExt         string `toml:"dest_ext"`
}

// Music contains audio CD ripping settings.
type Music struct {
	AbcdeBinary     string `toml:"abcde_binary"`
	AbcdeConfig     string `toml:"abcde_config"`
	DiscIDBinary    string `toml:"discid_binary"`
	ExtractCoverArt bool   `toml:"extract_cover_art"`
}

// Metadata contains title lookup provider settings.
type Metadata struct {
	Provider           string `toml:"provider"`
	OMDbAPIKey         string `toml:"omdb_api_key"`
	OMDbBaseURL        string `toml:"omdb_base_url"`
	MusicBrainzBaseURL string `toml:"musicbrainz_base_url"`
	UserAgent          string `toml:"user_agent"`
	RequestTimeout     int    `toml:"request_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	RequestTimeout  int    `toml:"request_timeout"`
	NotifyRip       bool   `toml:"notify_rip"`
	NotifyTranscode bool   `toml:"notify_transcode"`
	NotifyRename    bool   `toml:"notify_rename"`
}

// Emby contains library refresh settings.
type Emby struct {
	Refresh bool   `toml:"refresh"`
	Server  string `toml:"server"`
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key"`
}

// Workflow contains daemon timing and intervals.
type Workflow struct {
	DrivePollInterval     int `toml:"drive_poll_interval"`
	TranscodePollInterval int `toml:"transcode_poll_interval"`
	DBLockRetrySeconds    int `toml:"db_lock_retry_seconds"`
	MinFreeGiB            int `toml:"min_free_gib"`
}

// Files contains post-processing file handling.
type Files struct {
	SetPermissions bool `toml:"set_permissions"`
	ChmodValue     int  `toml:"chmod_value"`
	DeleteRawFiles bool `toml:"delete_raw_files"`
	AutoEject      bool `toml:"auto_eject"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for discripper.
//
// Configuration sections by subsystem:
//   - Paths: raw, transcode, completed, data and log directories
//   - API: HTTP API bind address and bearer token
//   - Ripper: rip method, main feature, length filter, naming policy
//   - MakeMKV: rip tool binary and arguments
//   - Transcode: HandBrake or FFmpeg backend settings
//   - Music: abcde and disc id tooling
//   - Metadata: OMDb and MusicBrainz lookups
//   - Notifications: ntfy push notification settings
//   - Emby: library refresh integration
//   - Workflow: polling intervals and retry windows
//   - Files: permissions, raw cleanup, eject
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Ripper        Ripper        `toml:"ripper"`
	MakeMKV       MakeMKV       `toml:"makemkv"`
	Transcode     Transcode     `toml:"transcode"`
	Music         Music         `toml:"music"`
	Metadata      Metadata      `toml:"metadata"`
	Notifications Notifications `toml:"notifications"`
	Emby          Emby          `toml:"emby"`
	Workflow      Workflow      `toml:"workflow"`
	Files         Files         `toml:"files"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/discripper/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("discripper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon and job operation.
// CompletedDir is created on a best-effort basis so jobs can start while
// network storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.RawDir, c.Paths.TranscodeDir, c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Paths.CompletedDir, c.Paths.MusicDir} {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// DatabasePath returns the location of the shared job database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "discripper.db")
}

// EmbyURL returns the Emby base URL or an empty string when refresh is disabled.
func (c *Config) EmbyURL() string {
	if !c.Emby.Refresh || c.Emby.Server == "" {
		return ""
	}
	server := strings.TrimRight(c.Emby.Server, "/")
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	if c.Emby.Port > 0 {
		return fmt.Sprintf("%s:%d", server, c.Emby.Port)
	}
	return server
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
