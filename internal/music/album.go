package music

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"discripper/internal/fileutil"
	"discripper/internal/store"
)

// AudioTrack pairs a ripped file with its tags.
type AudioTrack struct {
	Path string
	Tags Tags
}

// Album reads every file and returns them ordered by track number. Files
// that cannot be parsed are returned in errs keyed by path and still listed
// with name-derived tags.
func Album(files []string) ([]AudioTrack, map[string]error) {
	tracks := make([]AudioTrack, 0, len(files))
	errs := make(map[string]error)
	for _, path := range files {
		tags, err := ReadTags(path)
		if err != nil {
			errs[path] = err
			tags = tagsFromName(path)
		}
		tracks = append(tracks, AudioTrack{Path: path, Tags: tags})
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		if tracks[i].Tags.Number != tracks[j].Tags.Number {
			return tracks[i].Tags.Number < tracks[j].Tags.Number
		}
		return tracks[i].Path < tracks[j].Path
	})
	return tracks, errs
}

// StoreTrack converts t into a track row for jobID.
func (t AudioTrack) StoreTrack(jobID int64) *store.Track {
	name := filepath.Base(t.Path)
	return &store.Track{
		JobID:        jobID,
		TrackNumber:  strconv.Itoa(t.Tags.Number),
		Length:       t.Tags.Duration,
		Basename:     t.Tags.Title,
		Filename:     name,
		OrigFilename: name,
		Ripped:       true,
		Status:       store.TrackSuccess,
		Source:       store.SourceAbcde,
	}
}

// WriteCover saves the first embedded cover found among tracks as
// folder.jpg (or folder.png) beside the first file. An existing cover is
// left alone. The returned path is empty when nothing was written.
func WriteCover(tracks []AudioTrack) (string, error) {
	for _, t := range tracks {
		pic, err := ReadPicture(t.Path)
		if err != nil {
			return "", err
		}
		if pic == nil || len(pic.Data) == 0 {
			continue
		}
		target := filepath.Join(filepath.Dir(t.Path), "folder"+pic.Ext())
		if fileutil.Exists(target) {
			return "", nil
		}
		if err := os.WriteFile(target, pic.Data, 0o644); err != nil {
			return "", fmt.Errorf("write cover: %w", err)
		}
		return target, nil
	}
	return "", nil
}
