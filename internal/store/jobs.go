package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"discripper/internal/config"
)

var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrIdentityFrozen is returned when automatic identification is written twice.
	ErrIdentityFrozen = errors.New("automatic identification already recorded")
)

// CreateJob inserts a job together with its configuration snapshot.
func (s *Store) CreateJob(ctx context.Context, job *Job, settings config.JobSettings) (*Job, error) {
	if job == nil {
		return nil, errors.New("create job: nil job")
	}
	encoded, err := config.EncodeSnapshot(settings)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if job.StartTime.IsZero() {
		job.StartTime = now
	}
	if job.Status == "" {
		job.Status = StatusNew
	}
	if job.DiscType == "" {
		job.DiscType = DiscUnknown
	}
	if job.VideoType == "" {
		job.VideoType = VideoUnknown
	}

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO job (
			app_version, devpath, mountpoint, status, stage, disctype, label, video_type,
			hasnicetitle, pid, pid_hash, drive_id, logfile, start_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullableString(job.AppVersion), job.DevPath, nullableString(job.MountPoint), string(job.Status),
			nullableString(job.Stage), string(job.DiscType), nullableString(job.Label), string(job.VideoType),
			boolToInt(job.HasNiceTitle), nullableInt(int64(job.PID)), nullableInt(job.PIDHash),
			nullableInt(job.DriveID), nullableString(job.LogFile), formatTime(job.StartTime),
		)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO config (
			job_id, rip_method, main_feature, skip_transcode, min_length, max_length,
			max_concurrent_transcodes, transcode_backend, settings, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, settings.Ripper.RipMethod, boolToInt(settings.Ripper.MainFeature),
			boolToInt(settings.Ripper.SkipTranscode), settings.Ripper.MinLength, settings.Ripper.MaxLength,
			settings.Ripper.MaxConcurrentTranscodes, settings.Transcode.Backend, encoded, formatTime(now),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by id. It returns nil, nil when the job does not exist.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+jobColumns+" FROM job WHERE job_id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// MustGetJob fetches a job by id, returning ErrJobNotFound when absent.
func (s *Store) MustGetJob(ctx context.Context, id int64) (*Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	return job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM job"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY job_id DESC"
	return s.queryJobs(ctx, query, args...)
}

// ListJobsByID returns the requested jobs in id order. Missing ids are skipped.
func (s *Store) ListJobsByID(ctx context.Context, ids []int64) ([]*Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := "SELECT " + jobColumns + " FROM job WHERE job_id IN (" + makePlaceholders(len(ids)) + ") ORDER BY job_id"
	return s.queryJobs(ctx, query, args...)
}

// ActiveJobForDevice returns the newest non-terminal job on devpath, or nil.
func (s *Store) ActiveJobForDevice(ctx context.Context, devpath string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+jobColumns+" FROM job WHERE devpath = ? AND status NOT IN (?, ?) ORDER BY job_id DESC LIMIT 1",
		devpath, string(StatusSuccess), string(StatusFail))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job for %s: %w", devpath, err)
	}
	return job, nil
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountByStatus counts jobs currently in any of the given statuses.
func (s *Store) CountByStatus(ctx context.Context, statuses ...Status) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM job WHERE status IN ("+makePlaceholders(len(statuses))+")", args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

// HasPriorRip reports whether another job already ripped the disc with
// crcID successfully.
func (s *Store) HasPriorRip(ctx context.Context, crcID string, excludeID int64) (bool, error) {
	if strings.TrimSpace(crcID) == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM job WHERE crc_id = ? AND status = ? AND job_id != ?",
		crcID, string(StatusSuccess), excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("look up prior rips: %w", err)
	}
	return count > 0, nil
}

// Transition applies event to the job's current status inside a transaction
// and returns the updated job. Terminal statuses also stamp stop_time.
func (s *Store) Transition(ctx context.Context, id int64, event Event, stage string) (*Job, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, "SELECT status FROM job WHERE job_id = ?", id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %d", ErrJobNotFound, id)
			}
			return err
		}
		next, err := Transition(Status(current), event)
		if err != nil {
			return err
		}
		var stop any
		if next.IsTerminal() {
			stop = formatTime(time.Now())
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE job SET status = ?, stage = COALESCE(?, stage), stop_time = COALESCE(?, stop_time) WHERE job_id = ?",
			string(next), nullableString(stage), stop, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("transition job %d (%s): %w", id, event, err)
	}
	return s.MustGetJob(ctx, id)
}

// SetAutoIdentity records the automatic identification result. The plain
// fields follow the automatic values unless a manual override exists.
func (s *Store) SetAutoIdentity(ctx context.Context, id int64, identity Identity) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var identified bool
		if err := tx.QueryRowContext(ctx, "SELECT identified FROM job WHERE job_id = ?", id).Scan(&identified); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %d", ErrJobNotFound, id)
			}
			return err
		}
		if identified {
			return ErrIdentityFrozen
		}
		videoType := identity.VideoType
		if videoType == "" {
			videoType = VideoUnknown
		}
		_, err := tx.ExecContext(ctx, `UPDATE job SET
			disctype = ?, label = ?, crc_id = ?, hasnicetitle = ?,
			title_auto = ?, title = COALESCE(NULLIF(title_manual, ''), ?),
			year_auto = ?, year = COALESCE(NULLIF(year_manual, ''), ?),
			video_type_auto = ?, video_type = COALESCE(NULLIF(video_type_manual, ''), ?),
			imdb_id_auto = ?, imdb_id = COALESCE(NULLIF(imdb_id_manual, ''), ?),
			poster_url_auto = ?, poster_url = COALESCE(NULLIF(poster_url_manual, ''), ?),
			identified = 1
			WHERE job_id = ?`,
			string(identity.DiscType), nullableString(identity.Label), nullableString(identity.CRCID),
			boolToInt(identity.HasNiceTitle),
			nullableString(identity.Title), nullableString(identity.Title),
			nullableString(identity.Year), nullableString(identity.Year),
			string(videoType), string(videoType),
			nullableString(identity.IMDBID), nullableString(identity.IMDBID),
			nullableString(identity.PosterURL), nullableString(identity.PosterURL),
			id,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("set identity for job %d: %w", id, err)
	}
	return nil
}

// ApplyCorrection writes a user correction to the plain and manual fields.
// Automatic fields are never touched.
func (s *Store) ApplyCorrection(ctx context.Context, id int64, c Correction) error {
	res, err := s.execWithRetry(ctx, `UPDATE job SET
		title = COALESCE(?, title), title_manual = COALESCE(?, title_manual),
		year = COALESCE(?, year), year_manual = COALESCE(?, year_manual),
		video_type = COALESCE(?, video_type), video_type_manual = COALESCE(?, video_type_manual),
		imdb_id = COALESCE(?, imdb_id), imdb_id_manual = COALESCE(?, imdb_id_manual),
		poster_url = COALESCE(?, poster_url), poster_url_manual = COALESCE(?, poster_url_manual),
		hasnicetitle = CASE WHEN ? IS NULL THEN hasnicetitle ELSE 1 END,
		updated = 1
		WHERE job_id = ?`,
		nullableString(c.Title), nullableString(c.Title),
		nullableString(c.Year), nullableString(c.Year),
		nullableString(string(c.VideoType)), nullableString(string(c.VideoType)),
		nullableString(c.IMDBID), nullableString(c.IMDBID),
		nullableString(c.PosterURL), nullableString(c.PosterURL),
		nullableString(c.Title),
		id,
	)
	if err != nil {
		return fmt.Errorf("apply correction to job %d: %w", id, err)
	}
	return requireAffected(res, id)
}

// UpdateJob persists the pipeline-owned fields of job. Status, errors and
// identification fields have dedicated writers.
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("update job: nil job")
	}
	res, err := s.execWithRetry(ctx, `UPDATE job SET
		app_version = ?, logfile = ?, mountpoint = ?, stage = ?, path = ?, raw_path = ?,
		ejected = ?, pid = ?, pid_hash = ?, drive_id = ?, copy_protected = ?
		WHERE job_id = ?`,
		nullableString(job.AppVersion), nullableString(job.LogFile), nullableString(job.MountPoint),
		nullableString(job.Stage), nullableString(job.Path), nullableString(job.RawPath),
		boolToInt(job.Ejected), nullableInt(int64(job.PID)),
		nullableInt(job.PIDHash), nullableInt(job.DriveID), boolToInt(job.CopyProtected),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %d: %w", job.ID, err)
	}
	return requireAffected(res, job.ID)
}

// UpdateJobPath records a new output location, used by batch rename.
func (s *Store) UpdateJobPath(ctx context.Context, id int64, path string) error {
	res, err := s.execWithRetry(ctx, "UPDATE job SET path = ? WHERE job_id = ?", path, id)
	if err != nil {
		return fmt.Errorf("update job %d path: %w", id, err)
	}
	return requireAffected(res, id)
}

// AppendJobError adds msg to the job's accumulated error text.
func (s *Store) AppendJobError(ctx context.Context, id int64, msg string) error {
	res, err := s.execWithRetry(ctx, `UPDATE job SET errors = CASE
		WHEN errors IS NULL OR errors = '' THEN ? ELSE errors || '; ' || ? END
		WHERE job_id = ?`, msg, msg, id)
	if err != nil {
		return fmt.Errorf("append job %d error: %w", id, err)
	}
	return requireAffected(res, id)
}

// DeleteJob removes a job. Tracks and the config snapshot cascade; drive
// current/previous references are cleared first so reused ids never point
// at the wrong job.
func (s *Store) DeleteJob(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE system_drives SET job_id_current = NULL WHERE job_id_current = ?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE system_drives SET job_id_previous = NULL WHERE job_id_previous = ?", id); err != nil {
			return err
		}
		// Cascades are spelled out rather than left to foreign keys.
		if _, err := tx.ExecContext(ctx, "UPDATE batch_rename_history SET job_id = NULL WHERE job_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM track WHERE job_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM config WHERE job_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM job WHERE job_id = ?", id)
		if err != nil {
			return err
		}
		return requireAffected(res, id)
	})
	if err != nil {
		return fmt.Errorf("delete job %d: %w", id, err)
	}
	return nil
}

// JobSettings returns the configuration snapshot taken when the job was created.
func (s *Store) JobSettings(ctx context.Context, jobID int64) (config.JobSettings, error) {
	var raw string
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT settings FROM config WHERE job_id = ?", jobID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return config.JobSettings{}, fmt.Errorf("%w: no settings for job %d", ErrJobNotFound, jobID)
	}
	if err != nil {
		return config.JobSettings{}, fmt.Errorf("load job %d settings: %w", jobID, err)
	}
	return config.DecodeSnapshot(raw)
}

func requireAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	return nil
}
