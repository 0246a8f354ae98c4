package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeRipper()
	c.normalizeMakeMKV()
	c.normalizeTranscode()
	if err := c.normalizeMusic(); err != nil {
		return err
	}
	c.normalizeMetadata()
	c.normalizeNotifications()
	c.normalizeEmby()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
		def   string
	}{
		{"paths.raw_dir", &c.Paths.RawDir, defaultRawDir},
		{"paths.transcode_dir", &c.Paths.TranscodeDir, defaultTranscodeDir},
		{"paths.completed_dir", &c.Paths.CompletedDir, defaultCompletedDir},
		{"paths.music_dir", &c.Paths.MusicDir, defaultMusicDir},
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("DISCRIPPER_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeRipper() {
	c.Ripper.RipMethod = strings.ToLower(strings.TrimSpace(c.Ripper.RipMethod))
	if c.Ripper.RipMethod == "" {
		c.Ripper.RipMethod = defaultRipMethod
	}
	c.Ripper.VideoType = strings.ToLower(strings.TrimSpace(c.Ripper.VideoType))
	if c.Ripper.VideoType == "" {
		c.Ripper.VideoType = defaultVideoType
	}
	c.Ripper.DiscTypeOverride = strings.ToLower(strings.TrimSpace(c.Ripper.DiscTypeOverride))
	if c.Ripper.DiscTypeOverride == "auto" {
		c.Ripper.DiscTypeOverride = ""
	}
	c.Ripper.ExtrasSub = strings.TrimSpace(c.Ripper.ExtrasSub)
	if c.Ripper.ManualWaitTime <= 0 {
		c.Ripper.ManualWaitTime = defaultManualWaitTime
	}
	if c.Ripper.MaxConcurrentTranscodes < 0 {
		c.Ripper.MaxConcurrentTranscodes = 0
	}
}

func (c *Config) normalizeMakeMKV() {
	c.MakeMKV.Binary = strings.TrimSpace(c.MakeMKV.Binary)
	if c.MakeMKV.Binary == "" {
		c.MakeMKV.Binary = defaultMakeMKVBinary
	}
	c.MakeMKV.ExtraArgs = strings.TrimSpace(c.MakeMKV.ExtraArgs)
}

func (c *Config) normalizeTranscode() {
	c.Transcode.Backend = strings.ToLower(strings.TrimSpace(c.Transcode.Backend))
	if c.Transcode.Backend == "" {
		c.Transcode.Backend = defaultTranscodeBackend
	}
	if strings.TrimSpace(c.Transcode.HandBrakeBinary) == "" {
		c.Transcode.HandBrakeBinary = defaultHandBrakeBinary
	}
	if strings.TrimSpace(c.Transcode.FFmpegBinary) == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Transcode.FFprobeBinary) == "" {
		c.Transcode.FFprobeBinary = defaultFFprobeBinary
	}
	c.Transcode.DestExt = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Transcode.DestExt)), ".")
	if c.Transcode.DestExt == "" {
		c.Transcode.DestExt = defaultDestExt
	}
}

func (c *Config) normalizeMusic() error {
	if strings.TrimSpace(c.Music.AbcdeBinary) == "" {
		c.Music.AbcdeBinary = defaultAbcdeBinary
	}
	if strings.TrimSpace(c.Music.DiscIDBinary) == "" {
		c.Music.DiscIDBinary = defaultDiscIDBinary
	}
	if c.Music.AbcdeConfig != "" {
		expanded, err := expandPath(c.Music.AbcdeConfig)
		if err != nil {
			return fmt.Errorf("music.abcde_config: %w", err)
		}
		c.Music.AbcdeConfig = expanded
	}
	return nil
}

func (c *Config) normalizeMetadata() {
	c.Metadata.Provider = strings.ToLower(strings.TrimSpace(c.Metadata.Provider))
	if c.Metadata.Provider == "" {
		c.Metadata.Provider = defaultMetadataProvider
	}
	c.Metadata.OMDbAPIKey = strings.TrimSpace(c.Metadata.OMDbAPIKey)
	if c.Metadata.OMDbAPIKey == "" {
		if value, ok := os.LookupEnv("OMDB_API_KEY"); ok {
			c.Metadata.OMDbAPIKey = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Metadata.OMDbBaseURL) == "" {
		c.Metadata.OMDbBaseURL = defaultOMDbBaseURL
	}
	c.Metadata.MusicBrainzBaseURL = strings.TrimRight(strings.TrimSpace(c.Metadata.MusicBrainzBaseURL), "/")
	if c.Metadata.MusicBrainzBaseURL == "" {
		c.Metadata.MusicBrainzBaseURL = defaultMusicBrainzBaseURL
	}
	if strings.TrimSpace(c.Metadata.UserAgent) == "" {
		c.Metadata.UserAgent = defaultUserAgent
	}
	if c.Metadata.RequestTimeout <= 0 {
		c.Metadata.RequestTimeout = defaultMetadataRequestTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeEmby() {
	c.Emby.Server = strings.TrimSpace(c.Emby.Server)
	c.Emby.APIKey = strings.TrimSpace(c.Emby.APIKey)
	if c.Emby.APIKey == "" {
		if value, ok := os.LookupEnv("EMBY_API_KEY"); ok {
			c.Emby.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case LogFormatConsole, LogFormatJSON, LogFormatAuto:
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
