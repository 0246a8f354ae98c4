package logging

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

var logNameReplacer = strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")

// JobLogName returns the per-job log file name for label inside logDir.
// A timestamp suffix is added when forced or when the plain name is taken.
func JobLogName(logDir, label string, forceTimestamp bool, now time.Time) string {
	base := logNameReplacer.Replace(strings.TrimSpace(label))
	if base == "" {
		base = "job"
	}
	plain := base + ".log"
	if !forceTimestamp {
		if _, err := os.Stat(filepath.Join(logDir, plain)); os.IsNotExist(err) {
			return plain
		}
	}
	return base + "_" + now.UTC().Format("20060102_150405") + ".log"
}
