package disc

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Markers records the well-known directories found on a mounted disc.
type Markers struct {
	VideoTS bool
	BDMV    bool
	HVDVDTS bool
}

const hvdvdSearchDepth = 3

// InspectMarkers looks for VIDEO_TS (either case) and BDMV at the root of
// mountpoint, and for an HVDVD_TS entry anywhere in the top levels.
func InspectMarkers(mountpoint string) (Markers, error) {
	info, err := os.Stat(mountpoint)
	if err != nil {
		return Markers{}, err
	}
	if !info.IsDir() {
		return Markers{}, errors.New(mountpoint + " is not a directory")
	}

	var m Markers
	m.VideoTS = isDir(filepath.Join(mountpoint, "VIDEO_TS")) || isDir(filepath.Join(mountpoint, "video_ts"))
	m.BDMV = isDir(filepath.Join(mountpoint, "BDMV"))
	m.HVDVDTS = findEntry(mountpoint, "HVDVD_TS", hvdvdSearchDepth)
	return m, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func findEntry(root, name string, maxDepth int) bool {
	found := false
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		depth := 0
		if rel != "." {
			depth = strings.Count(rel, string(filepath.Separator)) + 1
		}
		if depth > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if depth > 0 && strings.EqualFold(d.Name(), name) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
