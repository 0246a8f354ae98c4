package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRipper(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateEmby(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateFiles(); err != nil {
		return err
	}
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateRipper() error {
	if _, ok := validRipMethods[c.Ripper.RipMethod]; !ok {
		return fmt.Errorf("ripper.rip_method must be mkv, backup or backup_dvd (got %q)", c.Ripper.RipMethod)
	}
	if _, ok := validVideoTypes[c.Ripper.VideoType]; !ok {
		return fmt.Errorf("ripper.video_type must be auto, movie or series (got %q)", c.Ripper.VideoType)
	}
	if _, ok := validDiscOverride[c.Ripper.DiscTypeOverride]; !ok {
		return fmt.Errorf("ripper.disc_type_override must be empty, dvd, bluray, music or data (got %q)", c.Ripper.DiscTypeOverride)
	}
	if c.Ripper.MinLength < 0 {
		return errors.New("ripper.min_length must be >= 0")
	}
	if c.Ripper.MaxLength < c.Ripper.MinLength {
		return errors.New("ripper.max_length must be >= ripper.min_length")
	}
	if strings.ContainsAny(c.Ripper.ExtrasSub, `/\`) || strings.Contains(c.Ripper.ExtrasSub, "..") {
		return errors.New("ripper.extras_sub must be a single folder name")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if !ValidBackend(c.Transcode.Backend) {
		return fmt.Errorf("transcode.backend must be handbrake or ffmpeg (got %q)", c.Transcode.Backend)
	}
	if strings.ContainsAny(c.Transcode.DestExt, `/\ `) {
		return errors.New("transcode.dest_ext must be a bare extension")
	}
	return nil
}

func (c *Config) validateMetadata() error {
	if _, ok := validProviders[c.Metadata.Provider]; !ok {
		return fmt.Errorf("metadata.provider must be omdb or none (got %q)", c.Metadata.Provider)
	}
	return nil
}

func (c *Config) validateEmby() error {
	if !c.Emby.Refresh {
		return nil
	}
	if c.Emby.Server == "" {
		return errors.New("emby.server must be set when emby.refresh is true")
	}
	if c.Emby.APIKey == "" {
		return errors.New("emby.api_key must be set when emby.refresh is true (or set EMBY_API_KEY)")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.drive_poll_interval":     c.Workflow.DrivePollInterval,
		"workflow.transcode_poll_interval": c.Workflow.TranscodePollInterval,
		"workflow.db_lock_retry_seconds":   c.Workflow.DBLockRetrySeconds,
		"notifications.request_timeout":    c.Notifications.RequestTimeout,
		"metadata.request_timeout":         c.Metadata.RequestTimeout,
	})
}

func (c *Config) validateFiles() error {
	if !c.Files.SetPermissions {
		return nil
	}
	if _, err := c.Files.Mode(); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
