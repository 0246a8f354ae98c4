package store

import (
	"context"
	"fmt"
	"time"
)

// InsertRenameRecord appends one audit row to the rename history.
func (s *Store) InsertRenameRecord(ctx context.Context, rec *RenameRecord) (int64, error) {
	if rec.RenamedAt == "" {
		rec.RenamedAt = formatTime(time.Now())
	}
	res, err := s.execWithRetry(ctx, `INSERT INTO batch_rename_history (
		batch_id, job_id, old_path, new_path, old_folder_name, new_folder_name, series_name,
		disc_identifier, consolidated_under_series, series_parent_folder, renamed_by, renamed_at,
		naming_style, zero_padded, rename_success, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BatchID, rec.JobID, rec.OldPath, rec.NewPath, rec.OldFolderName, rec.NewFolderName,
		nullableString(rec.SeriesName), nullableString(rec.DiscIdentifier),
		boolToInt(rec.ConsolidatedUnderSeries), nullableString(rec.SeriesParentFolder),
		rec.RenamedBy, rec.RenamedAt, nullableString(rec.NamingStyle), boolToInt(rec.ZeroPadded),
		boolToInt(rec.RenameSuccess), nullableString(rec.ErrorMessage),
	)
	if err != nil {
		return 0, fmt.Errorf("insert rename record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

// BatchRecords returns every row of a batch in insertion order.
func (s *Store) BatchRecords(ctx context.Context, batchID string) ([]*RenameRecord, error) {
	var records []*RenameRecord
	if err := s.x.SelectContext(ensureContext(ctx), &records,
		"SELECT "+historyColumns+" FROM batch_rename_history WHERE batch_id = ? ORDER BY history_id",
		batchID); err != nil {
		return nil, fmt.Errorf("load batch %s: %w", batchID, err)
	}
	return records, nil
}

// MarkRolledBack flags one successful row as undone. It reports false when
// the row was already rolled back or never succeeded.
func (s *Store) MarkRolledBack(ctx context.Context, historyID int64, by string, at time.Time) (bool, error) {
	res, err := s.execWithRetry(ctx, `UPDATE batch_rename_history
		SET rolled_back = 1, rollback_at = ?, rollback_by = ?
		WHERE history_id = ? AND rolled_back = 0 AND rename_success = 1`,
		nullableTime(at), by, historyID)
	if err != nil {
		return false, fmt.Errorf("mark rename %d rolled back: %w", historyID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RecentBatches summarizes the newest rename batches.
func (s *Store) RecentBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	var batches []BatchSummary
	err := s.x.SelectContext(ensureContext(ctx), &batches, `SELECT
			batch_id,
			MIN(renamed_at) AS renamed_at,
			MIN(renamed_by) AS renamed_by,
			COALESCE(MAX(series_name), '') AS series_name,
			COUNT(1) AS total,
			SUM(CASE WHEN rename_success = 1 THEN 1 ELSE 0 END) AS succeeded,
			SUM(CASE WHEN rename_success = 0 THEN 1 ELSE 0 END) AS failed,
			SUM(CASE WHEN rolled_back = 1 THEN 1 ELSE 0 END) AS rolled_back
		FROM batch_rename_history
		GROUP BY batch_id
		ORDER BY MAX(history_id) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent batches: %w", err)
	}
	return batches, nil
}
