package store

import (
	"context"
	"errors"
	"fmt"
)

// AddTrack inserts a track row for its job and returns it with the id set.
func (s *Store) AddTrack(ctx context.Context, track *Track) (*Track, error) {
	if track == nil {
		return nil, errors.New("add track: nil track")
	}
	if track.Status == "" {
		track.Status = TrackPending
	}
	res, err := s.execWithRetry(ctx, `INSERT INTO track (
		job_id, track_number, length, aspect_ratio, fps, main_feature, basename, filename,
		orig_filename, new_filename, ripped, status, error, source
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		track.JobID, nullableString(track.TrackNumber), track.Length, nullableString(track.AspectRatio),
		track.FPS, boolToInt(track.MainFeature), nullableString(track.Basename), nullableString(track.Filename),
		nullableString(track.OrigFilename), nullableString(track.NewFilename), boolToInt(track.Ripped),
		string(track.Status), nullableString(track.Error), nullableString(track.Source),
	)
	if err != nil {
		return nil, fmt.Errorf("add track to job %d: %w", track.JobID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	track.ID = id
	return track, nil
}

// UpdateTrack persists the mutable track fields.
func (s *Store) UpdateTrack(ctx context.Context, track *Track) error {
	if track == nil {
		return errors.New("update track: nil track")
	}
	res, err := s.execWithRetry(ctx, `UPDATE track SET
		length = ?, aspect_ratio = ?, fps = ?, main_feature = ?, basename = ?, filename = ?,
		orig_filename = ?, new_filename = ?, ripped = ?, status = ?, error = ?, source = ?
		WHERE track_id = ?`,
		track.Length, nullableString(track.AspectRatio), track.FPS, boolToInt(track.MainFeature),
		nullableString(track.Basename), nullableString(track.Filename), nullableString(track.OrigFilename),
		nullableString(track.NewFilename), boolToInt(track.Ripped), string(track.Status),
		nullableString(track.Error), nullableString(track.Source), track.ID,
	)
	if err != nil {
		return fmt.Errorf("update track %d: %w", track.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("update track %d: not found", track.ID)
	}
	return nil
}

// ListTracks returns a job's tracks in insertion order.
func (s *Store) ListTracks(ctx context.Context, jobID int64) ([]*Track, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+trackColumns+" FROM track WHERE job_id = ? ORDER BY track_id", jobID)
	if err != nil {
		return nil, fmt.Errorf("list tracks for job %d: %w", jobID, err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}
