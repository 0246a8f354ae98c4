package config

const (
	defaultRawDir                  = "~/.local/share/discripper/raw"
	defaultTranscodeDir            = "~/.local/share/discripper/transcode"
	defaultCompletedDir            = "~/media/completed"
	defaultMusicDir                = "~/media/music"
	defaultDataDir                 = "~/.local/share/discripper"
	defaultLogDir                  = "~/.local/share/discripper/logs"
	defaultAPIBind                 = "127.0.0.1:8089"
	defaultRipMethod               = RipMethodMKV
	defaultMinLength               = 600
	defaultMaxLength               = 99999
	defaultExtrasSub               = "extras"
	defaultVideoType               = VideoTypeAuto
	defaultManualWaitTime          = 60
	defaultMakeMKVBinary           = "makemkvcon"
	defaultTranscodeBackend        = BackendHandBrake
	defaultHandBrakeBinary         = "HandBrakeCLI"
	defaultPresetDVD               = "HQ 720p30 Surround"
	defaultPresetBD                = "HQ 1080p30 Surround"
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultFFmpegArgs              = "-c:v libx264 -crf 20 -preset medium -c:a copy -c:s copy"
	defaultDestExt                 = "mkv"
	defaultAbcdeBinary             = "abcde"
	defaultDiscIDBinary            = "cd-discid"
	defaultMetadataProvider        = ProviderOMDb
	defaultOMDbBaseURL             = "https://www.omdbapi.com/"
	defaultMusicBrainzBaseURL      = "https://musicbrainz.org/ws/2"
	defaultUserAgent               = "discripper/dev ( https://github.com/discripper/discripper )"
	defaultMetadataRequestTimeout  = 10
	defaultNotifyRequestTimeout    = 10
	defaultDrivePollInterval       = 5
	defaultTranscodePollInterval   = 10
	defaultDBLockRetrySeconds      = 90
	defaultMinFreeGiB              = 20
	defaultChmodValue              = 777
	defaultLogFormat               = LogFormatAuto
	defaultLogLevel                = "info"
	defaultEmbyPort                = 8096
	defaultMaxConcurrentTranscodes = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RawDir:       defaultRawDir,
			TranscodeDir: defaultTranscodeDir,
			CompletedDir: defaultCompletedDir,
			MusicDir:     defaultMusicDir,
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Ripper: Ripper{
			RipMethod:               defaultRipMethod,
			MainFeature:             false,
			MinLength:               defaultMinLength,
			MaxLength:               defaultMaxLength,
			MaxConcurrentTranscodes: defaultMaxConcurrentTranscodes,
			AllowDuplicates:         true,
			ExtrasSub:               defaultExtrasSub,
			VideoType:               defaultVideoType,
			ManualWaitTime:          defaultManualWaitTime,
		},
		MakeMKV: MakeMKV{
			Binary: defaultMakeMKVBinary,
		},
		Transcode: Transcode{
			Backend:         defaultTranscodeBackend,
			HandBrakeBinary: defaultHandBrakeBinary,
			PresetDVD:       defaultPresetDVD,
			PresetBD:        defaultPresetBD,
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			FFmpegArgs:      defaultFFmpegArgs,
			DestExt:         defaultDestExt,
		},
		Music: Music{
			AbcdeBinary:     defaultAbcdeBinary,
			DiscIDBinary:    defaultDiscIDBinary,
			ExtractCoverArt: true,
		},
		Metadata: Metadata{
			Provider:           defaultMetadataProvider,
			OMDbBaseURL:        defaultOMDbBaseURL,
			MusicBrainzBaseURL: defaultMusicBrainzBaseURL,
			UserAgent:          defaultUserAgent,
			RequestTimeout:     defaultMetadataRequestTimeout,
		},
		Notifications: Notifications{
			RequestTimeout:  defaultNotifyRequestTimeout,
			NotifyRip:       true,
			NotifyTranscode: true,
			NotifyRename:    false,
		},
		Emby: Emby{
			Port: defaultEmbyPort,
		},
		Workflow: Workflow{
			DrivePollInterval:     defaultDrivePollInterval,
			TranscodePollInterval: defaultTranscodePollInterval,
			DBLockRetrySeconds:    defaultDBLockRetrySeconds,
			MinFreeGiB:            defaultMinFreeGiB,
		},
		Files: Files{
			SetPermissions: false,
			ChmodValue:     defaultChmodValue,
			DeleteRawFiles: true,
			AutoEject:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
