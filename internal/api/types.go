package api

import (
	"strings"
	"time"

	"discripper/internal/store"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobItem describes a job in a transport-friendly format.
type JobItem struct {
	ID            int64       `json:"job_id"`
	Status        string      `json:"status"`
	Stage         string      `json:"stage,omitempty"`
	DevPath       string      `json:"devpath"`
	DiscType      string      `json:"disctype"`
	Label         string      `json:"label"`
	Title         string      `json:"title"`
	TitleAuto     string      `json:"title_auto,omitempty"`
	TitleManual   string      `json:"title_manual,omitempty"`
	Year          string      `json:"year"`
	VideoType     string      `json:"video_type"`
	IMDBID        string      `json:"imdb_id,omitempty"`
	PosterURL     string      `json:"poster_url,omitempty"`
	CRCID         string      `json:"crc_id,omitempty"`
	HasNiceTitle  bool        `json:"hasnicetitle"`
	CopyProtected bool        `json:"copy_protected"`
	Path          string      `json:"path,omitempty"`
	LogFile       string      `json:"logfile,omitempty"`
	Errors        []string    `json:"errors"`
	Ejected       bool        `json:"ejected"`
	PID           int         `json:"pid,omitempty"`
	DriveID       int64       `json:"drive_id,omitempty"`
	StartTime     string      `json:"start_time,omitempty"`
	StopTime      string      `json:"stop_time,omitempty"`
	RunTime       string      `json:"job_length,omitempty"`
	Tracks        []TrackItem `json:"tracks,omitempty"`
}

// TrackItem describes one ripped title.
type TrackItem struct {
	ID          int64   `json:"track_id"`
	Number      string  `json:"track_number"`
	Length      int     `json:"length"`
	AspectRatio string  `json:"aspect_ratio,omitempty"`
	FPS         float64 `json:"fps,omitempty"`
	MainFeature bool    `json:"main_feature"`
	Filename    string  `json:"filename"`
	Ripped      bool    `json:"ripped"`
	Status      string  `json:"status"`
	Error       string  `json:"error,omitempty"`
	Source      string  `json:"source,omitempty"`
}

// DriveItem describes a registered optical drive.
type DriveItem struct {
	ID            int64  `json:"drive_id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Type          string `json:"type"`
	Mount         string `json:"mount"`
	Maker         string `json:"maker,omitempty"`
	Model         string `json:"model,omitempty"`
	Serial        string `json:"serial,omitempty"`
	Firmware      string `json:"firmware,omitempty"`
	Connection    string `json:"connection,omitempty"`
	Stale         bool   `json:"stale"`
	Mode          string `json:"drive_mode"`
	CurrentJobID  *int64 `json:"job_id_current,omitempty"`
	PreviousJobID *int64 `json:"job_id_previous,omitempty"`
}

// BatchItem summarizes one rename batch.
type BatchItem struct {
	BatchID      string `json:"batch_id"`
	RenamedAt    string `json:"renamed_at"`
	RenamedBy    string `json:"renamed_by,omitempty"`
	SeriesName   string `json:"series_name"`
	Total        int    `json:"total"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	RolledBack   int    `json:"rolled_back"`
	Rollbackable bool   `json:"can_rollback"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobItem `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobItem `json:"job"`
}

// DriveListResponse wraps the drive registry.
type DriveListResponse struct {
	Drives []DriveItem `json:"drives"`
}

// ScanResponse reports a drive rescan.
type ScanResponse struct {
	Created       int         `json:"created"`
	Updated       int         `json:"updated"`
	Stale         int         `json:"stale"`
	MountsCleared int         `json:"mounts_cleared"`
	Drives        []DriveItem `json:"drives"`
}

// BatchListResponse wraps recent rename batches.
type BatchListResponse struct {
	Batches []BatchItem `json:"batches"`
}

// StatusResponse is returned by actions without a richer payload.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse carries a failed request's message.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// FromJob converts a store job. now renders the run time of unfinished jobs.
func FromJob(job *store.Job, tracks []*store.Track, now time.Time) JobItem {
	item := JobItem{
		ID:            job.ID,
		Status:        string(job.Status),
		Stage:         job.Stage,
		DevPath:       job.DevPath,
		DiscType:      string(job.DiscType),
		Label:         job.Label,
		Title:         job.DisplayTitle(),
		TitleAuto:     job.TitleAuto,
		TitleManual:   job.TitleManual,
		Year:          job.EffectiveYear(),
		VideoType:     string(job.VideoType),
		IMDBID:        job.IMDBID,
		PosterURL:     job.PosterURL,
		CRCID:         job.CRCID,
		HasNiceTitle:  job.HasNiceTitle,
		CopyProtected: job.CopyProtected,
		Path:          job.Path,
		LogFile:       job.LogFile,
		Errors:        splitErrors(job.Errors),
		Ejected:       job.Ejected,
		PID:           job.PID,
		DriveID:       job.DriveID,
		StartTime:     formatTime(job.StartTime),
		StopTime:      formatTime(job.StopTime),
	}
	if d := job.Duration(now); d > 0 {
		item.RunTime = d.String()
	}
	for _, track := range tracks {
		item.Tracks = append(item.Tracks, FromTrack(track))
	}
	return item
}

// FromTrack converts a store track.
func FromTrack(track *store.Track) TrackItem {
	name := track.NewFilename
	if name == "" {
		name = track.Filename
	}
	return TrackItem{
		ID:          track.ID,
		Number:      track.TrackNumber,
		Length:      track.Length,
		AspectRatio: track.AspectRatio,
		FPS:         track.FPS,
		MainFeature: track.MainFeature,
		Filename:    name,
		Ripped:      track.Ripped,
		Status:      string(track.Status),
		Error:       track.Error,
		Source:      track.Source,
	}
}

// FromDrive converts a store drive.
func FromDrive(d *store.Drive) DriveItem {
	return DriveItem{
		ID:            d.ID,
		Name:          d.Name,
		Description:   d.Description,
		Type:          d.Type,
		Mount:         d.Mount,
		Maker:         d.Maker,
		Model:         d.Model,
		Serial:        d.Serial,
		Firmware:      d.Firmware,
		Connection:    d.Connection,
		Stale:         d.Stale,
		Mode:          d.DriveMode,
		CurrentJobID:  d.JobIDCurrent,
		PreviousJobID: d.JobIDPrevious,
	}
}

// FromBatch converts a batch summary.
func FromBatch(b store.BatchSummary) BatchItem {
	return BatchItem{
		BatchID:      b.BatchID,
		RenamedAt:    b.RenamedAt,
		RenamedBy:    b.RenamedBy,
		SeriesName:   b.SeriesName,
		Total:        b.Total,
		Succeeded:    b.Succeeded,
		Failed:       b.Failed,
		RolledBack:   b.RolledBack,
		Rollbackable: b.Rollbackable(),
	}
}

func splitErrors(text string) []string {
	out := []string{}
	for _, part := range strings.Split(text, "; ") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
