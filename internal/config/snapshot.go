package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// JobSettings is the subset of configuration frozen into a job when it is
// created. Later edits to the global file never reach an existing job.
type JobSettings struct {
	Ripper        Ripper        `toml:"ripper"`
	MakeMKV       MakeMKV       `toml:"makemkv"`
	Transcode     Transcode     `toml:"transcode"`
	Music         Music         `toml:"music"`
	Files         Files         `toml:"files"`
	Notifications Notifications `toml:"notifications"`
}

// Snapshot captures the job-scoped settings of c.
func (c *Config) Snapshot() JobSettings {
	return JobSettings{
		Ripper:        c.Ripper,
		MakeMKV:       c.MakeMKV,
		Transcode:     c.Transcode,
		Music:         c.Music,
		Files:         c.Files,
		Notifications: c.Notifications,
	}
}

// WithSnapshot returns a copy of c whose job-scoped sections are replaced by s.
func (c *Config) WithSnapshot(s JobSettings) *Config {
	clone := *c
	clone.Ripper = s.Ripper
	clone.MakeMKV = s.MakeMKV
	clone.Transcode = s.Transcode
	clone.Music = s.Music
	clone.Files = s.Files
	clone.Notifications.NotifyRip = s.Notifications.NotifyRip
	clone.Notifications.NotifyTranscode = s.Notifications.NotifyTranscode
	clone.Notifications.NotifyRename = s.Notifications.NotifyRename
	return &clone
}

// EncodeSnapshot renders s as TOML for storage alongside the job.
func EncodeSnapshot(s JobSettings) (string, error) {
	data, err := toml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode job settings: %w", err)
	}
	return string(data), nil
}

// DecodeSnapshot parses a stored snapshot.
func DecodeSnapshot(raw string) (JobSettings, error) {
	var s JobSettings
	if err := toml.Unmarshal([]byte(raw), &s); err != nil {
		return JobSettings{}, fmt.Errorf("decode job settings: %w", err)
	}
	return s, nil
}

// Mode interprets ChmodValue as octal digits, the way chmod(1) does.
func (f Files) Mode() (os.FileMode, error) {
	value, err := strconv.ParseUint(strconv.Itoa(f.ChmodValue), 8, 32)
	if err != nil || value > 0o777 {
		return 0, fmt.Errorf("files.chmod_value must be octal digits up to 777 (got %d)", f.ChmodValue)
	}
	return os.FileMode(value), nil
}
