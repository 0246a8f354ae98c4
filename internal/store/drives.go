package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrDriveNotFound is returned when a drive id does not exist.
var ErrDriveNotFound = errors.New("drive not found")

// ListDrives returns every registered drive ordered by id.
func (s *Store) ListDrives(ctx context.Context) ([]*Drive, error) {
	var drives []*Drive
	if err := s.x.SelectContext(ensureContext(ctx), &drives,
		"SELECT "+driveColumns+" FROM system_drives ORDER BY drive_id"); err != nil {
		return nil, fmt.Errorf("list drives: %w", err)
	}
	return drives, nil
}

// GetDrive fetches one drive. It returns ErrDriveNotFound when absent.
func (s *Store) GetDrive(ctx context.Context, id int64) (*Drive, error) {
	return s.getDrive(ctx, "drive_id = ?", id)
}

// FindDriveBySerial looks up a drive by its hardware identity.
func (s *Store) FindDriveBySerial(ctx context.Context, serialID string) (*Drive, error) {
	return s.getDrive(ctx, "serial_id = ?", serialID)
}

// FindDriveByMount looks up a drive by its device path.
func (s *Store) FindDriveByMount(ctx context.Context, mount string) (*Drive, error) {
	return s.getDrive(ctx, "mount = ?", mount)
}

// DriveForJob returns the drive currently held by jobID.
func (s *Store) DriveForJob(ctx context.Context, jobID int64) (*Drive, error) {
	return s.getDrive(ctx, "job_id_current = ?", jobID)
}

func (s *Store) getDrive(ctx context.Context, where string, arg any) (*Drive, error) {
	var drive Drive
	err := s.x.GetContext(ensureContext(ctx), &drive,
		"SELECT "+driveColumns+" FROM system_drives WHERE "+where+" ORDER BY drive_id LIMIT 1", arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDriveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get drive: %w", err)
	}
	return &drive, nil
}

// InsertDrive registers a newly discovered drive.
func (s *Store) InsertDrive(ctx context.Context, d *Drive) (int64, error) {
	if d.DriveMode == "" {
		d.DriveMode = DriveModeAuto
	}
	res, err := s.execWithRetry(ctx, `INSERT INTO system_drives (
		name, description, type, mount, serial_id, maker, model, serial, connection, firmware, location,
		read_cd, read_dvd, read_bd, mdisc, stale, drive_mode
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(d.Name), nullableString(d.Description), nullableString(d.Type), nullableString(d.Mount),
		nullableString(d.SerialID), nullableString(d.Maker), nullableString(d.Model), nullableString(d.Serial),
		nullableString(d.Connection), nullableString(d.Firmware), nullableString(d.Location),
		boolToInt(d.ReadCD), boolToInt(d.ReadDVD), boolToInt(d.ReadBD), d.MDisc, boolToInt(d.Stale), d.DriveMode,
	)
	if err != nil {
		return 0, fmt.Errorf("insert drive: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

// UpdateDriveHardware refreshes the scanned attributes of a drive and
// clears its stale flag. User-edited name, description and mode are kept.
func (s *Store) UpdateDriveHardware(ctx context.Context, d *Drive) error {
	res, err := s.execWithRetry(ctx, `UPDATE system_drives SET
		type = ?, mount = ?, serial_id = ?, maker = ?, model = ?, serial = ?, connection = ?,
		firmware = ?, location = ?, read_cd = ?, read_dvd = ?, read_bd = ?, stale = 0
		WHERE drive_id = ?`,
		nullableString(d.Type), nullableString(d.Mount), nullableString(d.SerialID), nullableString(d.Maker),
		nullableString(d.Model), nullableString(d.Serial), nullableString(d.Connection),
		nullableString(d.Firmware), nullableString(d.Location),
		boolToInt(d.ReadCD), boolToInt(d.ReadDVD), boolToInt(d.ReadBD), d.ID,
	)
	if err != nil {
		return fmt.Errorf("update drive %d: %w", d.ID, err)
	}
	return requireDrive(res, d.ID)
}

// UpdateDriveDetails writes the user-editable fields.
func (s *Store) UpdateDriveDetails(ctx context.Context, id int64, name, description, mode string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE system_drives SET name = ?, description = ?, drive_mode = ? WHERE drive_id = ?",
		nullableString(name), nullableString(description), mode, id)
	if err != nil {
		return fmt.Errorf("update drive %d details: %w", id, err)
	}
	return requireDrive(res, id)
}

// MarkDriveStale flags a drive that was not seen by the last scan. When
// clearMount is set its device path is released so another drive may
// claim it.
func (s *Store) MarkDriveStale(ctx context.Context, id int64, clearMount bool) error {
	query := "UPDATE system_drives SET stale = 1 WHERE drive_id = ?"
	if clearMount {
		query = "UPDATE system_drives SET stale = 1, mount = NULL WHERE drive_id = ?"
	}
	res, err := s.execWithRetry(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark drive %d stale: %w", id, err)
	}
	return requireDrive(res, id)
}

// ClearDriveMount drops the device path of a drive.
func (s *Store) ClearDriveMount(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, "UPDATE system_drives SET mount = NULL WHERE drive_id = ?", id)
	if err != nil {
		return fmt.Errorf("clear drive %d mount: %w", id, err)
	}
	return requireDrive(res, id)
}

// SetDriveMDisc records the medium state reported by the last poll. A nil
// value means the state is unknown.
func (s *Store) SetDriveMDisc(ctx context.Context, id int64, state *int64) error {
	res, err := s.execWithRetry(ctx, "UPDATE system_drives SET mdisc = ? WHERE drive_id = ?", state, id)
	if err != nil {
		return fmt.Errorf("set drive %d mdisc: %w", id, err)
	}
	return requireDrive(res, id)
}

// ClearAllMDisc forgets every cached medium state, used at daemon startup.
func (s *Store) ClearAllMDisc(ctx context.Context) error {
	if _, err := s.execWithRetry(ctx, "UPDATE system_drives SET mdisc = NULL"); err != nil {
		return fmt.Errorf("clear mdisc: %w", err)
	}
	return nil
}

// AcquireDrive records jobID as the drive's current job. The previously
// current job moves into the previous slot.
func (s *Store) AcquireDrive(ctx context.Context, driveID, jobID int64) error {
	res, err := s.execWithRetry(ctx, `UPDATE system_drives SET
		job_id_previous = CASE
			WHEN job_id_current IS NOT NULL AND job_id_current != ? THEN job_id_current
			ELSE job_id_previous END,
		job_id_current = ?
		WHERE drive_id = ?`, jobID, jobID, driveID)
	if err != nil {
		return fmt.Errorf("acquire drive %d for job %d: %w", driveID, jobID, err)
	}
	return requireDrive(res, driveID)
}

// ReleaseDrive moves the current job into the previous slot and clears the
// current slot. Releasing an idle drive is a no-op.
func (s *Store) ReleaseDrive(ctx context.Context, driveID int64) error {
	_, err := s.execWithRetry(ctx, `UPDATE system_drives SET
		job_id_previous = job_id_current, job_id_current = NULL
		WHERE drive_id = ? AND job_id_current IS NOT NULL`, driveID)
	if err != nil {
		return fmt.Errorf("release drive %d: %w", driveID, err)
	}
	return nil
}

func requireDrive(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrDriveNotFound, id)
	}
	return nil
}
