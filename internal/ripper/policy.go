package ripper

import (
	"discripper/internal/config"
	"discripper/internal/services/makemkv"
	"discripper/internal/store"
)

// protectionTitleCount is the title count at which a DVD is treated as
// carrying the 99-title copy protection scheme.
const protectionTitleCount = 99

// RipWithMakeMKV reports whether a video disc is ripped with MakeMKV before
// transcoding instead of being read by the transcoder directly.
func RipWithMakeMKV(job *store.Job, ripper config.Ripper, copyProtected bool) bool {
	use, _ := ripDecision(job.DiscType, ripper, copyProtected)
	return use
}

func ripDecision(discType store.DiscType, ripper config.Ripper, copyProtected bool) (bool, string) {
	switch {
	case discType == store.DiscDVD && copyProtected:
		return true, "dvd copy protection detected"
	case ripper.RipMethod == config.RipMethodBackupDVD:
		return true, "rip method backup_dvd"
	case discType == store.DiscBluray:
		return true, "blu-ray discs are always ripped with makemkv"
	case discType == store.DiscDVD && ripper.SkipTranscode:
		return true, "skip transcode keeps the makemkv output"
	case discType == store.DiscDVD && !ripper.MainFeature && ripper.RipMethod == config.RipMethodMKV:
		return true, "rip method mkv without main feature"
	}
	return false, "transcoder reads the disc directly"
}

// ripMode picks between a title extraction and a decrypted backup.
func ripMode(discType store.DiscType, ripMethod string) makemkv.Mode {
	switch {
	case ripMethod == config.RipMethodBackup && discType == store.DiscBluray:
		return makemkv.ModeBackup
	case ripMethod == config.RipMethodBackupDVD && discType == store.DiscDVD:
		return makemkv.ModeBackup
	}
	return makemkv.ModeMKV
}

// withinLength reports whether a title of the given length in seconds
// passes the [min, max] filter. A non-positive bound is open.
func withinLength(seconds, minLength, maxLength int) bool {
	if minLength > 0 && seconds < minLength {
		return false
	}
	if maxLength > 0 && seconds > maxLength {
		return false
	}
	return true
}

// libraryType is the completed-library sub-folder for a video type.
func libraryType(videoType store.VideoType) string {
	switch videoType {
	case store.VideoMovie:
		return "movies"
	case store.VideoSeries:
		return "tv"
	}
	return "unidentified"
}
