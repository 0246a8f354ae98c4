package store

import (
	"strconv"
	"strings"
	"time"
)

// DiscType classifies the physical disc.
type DiscType string

const (
	DiscUnknown   DiscType = "unknown"
	DiscDVD       DiscType = "dvd"
	DiscBluray    DiscType = "bluray"
	DiscMusic     DiscType = "music"
	DiscData      DiscType = "data"
	DiscUnhandled DiscType = "unhandled"
)

// ParseDiscType maps a stored or configured value onto a DiscType.
func ParseDiscType(value string) (DiscType, bool) {
	switch DiscType(strings.ToLower(strings.TrimSpace(value))) {
	case DiscDVD:
		return DiscDVD, true
	case DiscBluray:
		return DiscBluray, true
	case DiscMusic:
		return DiscMusic, true
	case DiscData:
		return DiscData, true
	case DiscUnhandled:
		return DiscUnhandled, true
	case DiscUnknown:
		return DiscUnknown, true
	}
	return DiscUnknown, false
}

// VideoType distinguishes movies from series.
type VideoType string

const (
	VideoUnknown VideoType = "unknown"
	VideoMovie   VideoType = "movie"
	VideoSeries  VideoType = "series"
)

// TrackStatus is the per-track processing outcome.
type TrackStatus string

const (
	TrackPending TrackStatus = "pending"
	TrackSuccess TrackStatus = "success"
	TrackFail    TrackStatus = "fail"
	TrackSkipped TrackStatus = "skipped"
)

// Track sources.
const (
	SourceMakeMKV   = "MakeMKV"
	SourceHandBrake = "HandBrake"
	SourceFFmpeg    = "FFmpeg"
	SourceAbcde     = "abcde"
)

// Job represents one attempt to process one physical disc.
//
// The *Auto fields hold the identification result and are frozen once
// Identified is set; user corrections write the plain and *Manual fields.
type Job struct {
	ID              int64
	AppVersion      string
	CRCID           string
	LogFile         string
	DevPath         string
	MountPoint      string
	Status          Status
	Stage           string
	DiscType        DiscType
	Label           string
	Title           string
	TitleAuto       string
	TitleManual     string
	Year            string
	YearAuto        string
	YearManual      string
	VideoType       VideoType
	VideoTypeAuto   VideoType
	VideoTypeManual VideoType
	IMDBID          string
	IMDBIDAuto      string
	IMDBIDManual    string
	PosterURL       string
	PosterURLAuto   string
	PosterURLManual string
	Identified      bool
	HasNiceTitle    bool
	CopyProtected   bool
	Updated         bool
	Path            string
	RawPath         string
	Errors          string
	Ejected         bool
	PID             int
	PIDHash         int64
	DriveID         int64
	StartTime       time.Time
	StopTime        time.Time
}

// NewJob builds a job for a freshly detected disc in devpath.
func NewJob(devpath string, now time.Time) *Job {
	devpath = strings.TrimSpace(devpath)
	if !strings.HasPrefix(devpath, "/") {
		devpath = "/dev/" + devpath
	}
	return &Job{
		DevPath:      devpath,
		MountPoint:   "/mnt" + devpath,
		Status:       StatusNew,
		Stage:        StageStamp(now),
		DiscType:     DiscUnknown,
		VideoType:    VideoUnknown,
		HasNiceTitle: false,
		StartTime:    now.UTC(),
	}
}

// StageStamp renders the centisecond progress marker written to Job.Stage.
func StageStamp(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli()/10, 10)
}

// IsSeries reports whether the job is a series disc.
func (j *Job) IsSeries() bool {
	return j != nil && j.VideoType == VideoSeries
}

// DisplayTitle returns the manual title when set, then the title, then the label.
func (j *Job) DisplayTitle() string {
	if j == nil {
		return ""
	}
	for _, candidate := range []string{j.TitleManual, j.Title, j.Label} {
		if strings.TrimSpace(candidate) != "" {
			return strings.TrimSpace(candidate)
		}
	}
	return ""
}

// EffectiveYear returns the manual year when set, otherwise the year.
func (j *Job) EffectiveYear() string {
	if j == nil {
		return ""
	}
	if strings.TrimSpace(j.YearManual) != "" {
		return strings.TrimSpace(j.YearManual)
	}
	return strings.TrimSpace(j.Year)
}

// Duration returns the elapsed run time.
func (j *Job) Duration(now time.Time) time.Duration {
	if j == nil || j.StartTime.IsZero() {
		return 0
	}
	end := j.StopTime
	if end.IsZero() {
		end = now
	}
	return end.Sub(j.StartTime).Round(time.Second)
}

// Identity is the automatic identification result.
type Identity struct {
	DiscType     DiscType
	Label        string
	Title        string
	Year         string
	VideoType    VideoType
	IMDBID       string
	PosterURL    string
	HasNiceTitle bool
	CRCID        string
}

// Correction is a user-supplied override of identification fields. Empty
// fields are left untouched.
type Correction struct {
	Title     string
	Year      string
	VideoType VideoType
	IMDBID    string
	PosterURL string
}

// Track is one title extracted from a disc.
type Track struct {
	ID           int64
	JobID        int64
	TrackNumber  string
	Length       int
	AspectRatio  string
	FPS          float64
	MainFeature  bool
	Basename     string
	Filename     string
	OrigFilename string
	NewFilename  string
	Ripped       bool
	Status       TrackStatus
	Error        string
	Source       string
}

// Drive is a physical optical drive known to the registry.
type Drive struct {
	ID            int64  `db:"drive_id"`
	Name          string `db:"name"`
	Description   string `db:"description"`
	Type          string `db:"type"`
	Mount         string `db:"mount"`
	SerialID      string `db:"serial_id"`
	Maker         string `db:"maker"`
	Model         string `db:"model"`
	Serial        string `db:"serial"`
	Connection    string `db:"connection"`
	Firmware      string `db:"firmware"`
	Location      string `db:"location"`
	ReadCD        bool   `db:"read_cd"`
	ReadDVD       bool   `db:"read_dvd"`
	ReadBD        bool   `db:"read_bd"`
	MDisc         *int64 `db:"mdisc"`
	Stale         bool   `db:"stale"`
	DriveMode     string `db:"drive_mode"`
	JobIDCurrent  *int64 `db:"job_id_current"`
	JobIDPrevious *int64 `db:"job_id_previous"`
}

// Drive modes.
const (
	DriveModeAuto   = "auto"
	DriveModeManual = "manual"
)

// TypeLabel renders the capability flags the way the drive list shows them.
func (d *Drive) TypeLabel() string {
	var parts []string
	if d.ReadCD {
		parts = append(parts, "CD")
	}
	if d.ReadDVD {
		parts = append(parts, "DVD")
	}
	if d.ReadBD {
		parts = append(parts, "BluRay")
	}
	return strings.Join(parts, "/")
}

// Busy reports whether a job currently holds the drive.
func (d *Drive) Busy() bool {
	return d != nil && d.JobIDCurrent != nil
}

// RenameRecord is one audit row of a batch rename.
type RenameRecord struct {
	ID                      int64   `db:"history_id"`
	BatchID                 string  `db:"batch_id"`
	JobID                   *int64  `db:"job_id"`
	OldPath                 string  `db:"old_path"`
	NewPath                 string  `db:"new_path"`
	OldFolderName           string  `db:"old_folder_name"`
	NewFolderName           string  `db:"new_folder_name"`
	SeriesName              string  `db:"series_name"`
	DiscIdentifier          string  `db:"disc_identifier"`
	ConsolidatedUnderSeries bool    `db:"consolidated_under_series"`
	SeriesParentFolder      string  `db:"series_parent_folder"`
	RenamedBy               string  `db:"renamed_by"`
	RenamedAt               string  `db:"renamed_at"`
	RolledBack              bool    `db:"rolled_back"`
	RollbackAt              *string `db:"rollback_at"`
	RollbackBy              *string `db:"rollback_by"`
	NamingStyle             string  `db:"naming_style"`
	ZeroPadded              bool    `db:"zero_padded"`
	RenameSuccess           bool    `db:"rename_success"`
	ErrorMessage            string  `db:"error_message"`
}

// BatchSummary aggregates the rows of one rename batch.
type BatchSummary struct {
	BatchID    string `db:"batch_id"`
	RenamedAt  string `db:"renamed_at"`
	RenamedBy  string `db:"renamed_by"`
	SeriesName string `db:"series_name"`
	Total      int    `db:"total"`
	Succeeded  int    `db:"succeeded"`
	Failed     int    `db:"failed"`
	RolledBack int    `db:"rolled_back"`
}

// Rollbackable reports whether any row of the batch can still be undone.
func (b BatchSummary) Rollbackable() bool {
	return b.Succeeded > b.RolledBack
}
