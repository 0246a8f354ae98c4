package config

// Rip methods.
const (
	RipMethodMKV       = "mkv"
	RipMethodBackup    = "backup"
	RipMethodBackupDVD = "backup_dvd"
)

// Transcode backends.
const (
	BackendHandBrake = "handbrake"
	BackendFFmpeg    = "ffmpeg"
)

// Video type overrides.
const (
	VideoTypeAuto   = "auto"
	VideoTypeMovie  = "movie"
	VideoTypeSeries = "series"
)

// Metadata providers.
const (
	ProviderOMDb = "omdb"
	ProviderNone = "none"
)

// Log formats.
const (
	LogFormatAuto    = "auto"
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

var (
	validRipMethods   = map[string]struct{}{RipMethodMKV: {}, RipMethodBackup: {}, RipMethodBackupDVD: {}}
	validBackends     = map[string]struct{}{BackendHandBrake: {}, BackendFFmpeg: {}}
	validVideoTypes   = map[string]struct{}{VideoTypeAuto: {}, VideoTypeMovie: {}, VideoTypeSeries: {}}
	validProviders    = map[string]struct{}{ProviderOMDb: {}, ProviderNone: {}}
	validDiscOverride = map[string]struct{}{"": {}, "dvd": {}, "bluray": {}, "music": {}, "data": {}}
	validLogLevels    = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}
)

// ValidBackend reports whether name is a supported transcode backend.
func ValidBackend(name string) bool {
	_, ok := validBackends[name]
	return ok
}
