package store

import (
	"database/sql"
	"strings"
	"time"
)

const jobColumns = "job_id, app_version, crc_id, logfile, devpath, mountpoint, status, stage, disctype, label, " +
	"title, title_auto, title_manual, year, year_auto, year_manual, video_type, video_type_auto, video_type_manual, " +
	"imdb_id, imdb_id_auto, imdb_id_manual, poster_url, poster_url_auto, poster_url_manual, " +
	"identified, hasnicetitle, copy_protected, updated, path, raw_path, errors, ejected, pid, pid_hash, drive_id, " +
	"start_time, stop_time"

const trackColumns = "track_id, job_id, track_number, length, aspect_ratio, fps, main_feature, basename, filename, " +
	"orig_filename, new_filename, ripped, status, error, source"

const driveColumns = "drive_id, COALESCE(name, '') AS name, COALESCE(description, '') AS description, " +
	"COALESCE(type, '') AS type, COALESCE(mount, '') AS mount, COALESCE(serial_id, '') AS serial_id, " +
	"COALESCE(maker, '') AS maker, COALESCE(model, '') AS model, COALESCE(serial, '') AS serial, " +
	"COALESCE(connection, '') AS connection, COALESCE(firmware, '') AS firmware, COALESCE(location, '') AS location, " +
	"read_cd, read_dvd, read_bd, mdisc, stale, drive_mode, job_id_current, job_id_previous"

const historyColumns = "history_id, batch_id, job_id, old_path, new_path, old_folder_name, new_folder_name, " +
	"COALESCE(series_name, '') AS series_name, COALESCE(disc_identifier, '') AS disc_identifier, " +
	"consolidated_under_series, COALESCE(series_parent_folder, '') AS series_parent_folder, renamed_by, renamed_at, " +
	"rolled_back, rollback_at, rollback_by, COALESCE(naming_style, '') AS naming_style, zero_padded, rename_success, " +
	"COALESCE(error_message, '') AS error_message"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job                                           Job
		appVersion, crcID, logFile, mountPoint, stage sql.NullString
		status, discType, label                       sql.NullString
		title, titleAuto, titleManual                 sql.NullString
		year, yearAuto, yearManual                    sql.NullString
		videoType, videoTypeAuto, videoTypeManual     sql.NullString
		imdbID, imdbIDAuto, imdbIDManual              sql.NullString
		poster, posterAuto, posterManual              sql.NullString
		path, rawPath, errorsText                     sql.NullString
		pid, pidHash, driveID                         sql.NullInt64
		startRaw, stopRaw                             sql.NullString
	)
	if err := scanner.Scan(
		&job.ID, &appVersion, &crcID, &logFile, &job.DevPath, &mountPoint, &status, &stage, &discType, &label,
		&title, &titleAuto, &titleManual, &year, &yearAuto, &yearManual, &videoType, &videoTypeAuto, &videoTypeManual,
		&imdbID, &imdbIDAuto, &imdbIDManual, &poster, &posterAuto, &posterManual,
		&job.Identified, &job.HasNiceTitle, &job.CopyProtected, &job.Updated, &path, &rawPath, &errorsText,
		&job.Ejected, &pid, &pidHash, &driveID, &startRaw, &stopRaw,
	); err != nil {
		return nil, err
	}

	job.AppVersion = appVersion.String
	job.CRCID = crcID.String
	job.LogFile = logFile.String
	job.MountPoint = mountPoint.String
	job.Status = Status(status.String)
	job.Stage = stage.String
	job.DiscType = DiscType(discType.String)
	job.Label = label.String
	job.Title, job.TitleAuto, job.TitleManual = title.String, titleAuto.String, titleManual.String
	job.Year, job.YearAuto, job.YearManual = year.String, yearAuto.String, yearManual.String
	job.VideoType = VideoType(videoType.String)
	job.VideoTypeAuto = VideoType(videoTypeAuto.String)
	job.VideoTypeManual = VideoType(videoTypeManual.String)
	job.IMDBID, job.IMDBIDAuto, job.IMDBIDManual = imdbID.String, imdbIDAuto.String, imdbIDManual.String
	job.PosterURL, job.PosterURLAuto, job.PosterURLManual = poster.String, posterAuto.String, posterManual.String
	job.Path = path.String
	job.RawPath = rawPath.String
	job.Errors = errorsText.String
	job.PID = int(pid.Int64)
	job.PIDHash = pidHash.Int64
	job.DriveID = driveID.Int64
	job.StartTime = parseTimeString(startRaw.String)
	job.StopTime = parseTimeString(stopRaw.String)
	return &job, nil
}

func scanTrack(scanner rowScanner) (*Track, error) {
	var (
		track                                          Track
		number, aspect, basename, filename, orig, next sql.NullString
		status, errText, source                        sql.NullString
	)
	if err := scanner.Scan(
		&track.ID, &track.JobID, &number, &track.Length, &aspect, &track.FPS, &track.MainFeature, &basename,
		&filename, &orig, &next, &track.Ripped, &status, &errText, &source,
	); err != nil {
		return nil, err
	}
	track.TrackNumber = number.String
	track.AspectRatio = aspect.String
	track.Basename = basename.String
	track.Filename = filename.String
	track.OrigFilename = orig.String
	track.NewFilename = next.String
	track.Status = TrackStatus(status.String)
	track.Error = errText.String
	track.Source = source.String
	return &track, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return formatTime(value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func parseTimeString(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return ts
	}
	return time.Time{}
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
