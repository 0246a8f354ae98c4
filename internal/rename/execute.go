package rename

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"discripper/internal/fileutil"
	"discripper/internal/logging"
	"discripper/internal/services"
	"discripper/internal/store"
)

// Execute recomputes the preview for req and moves every planned folder.
// Items fail independently: each gets its own history row and the batch
// continues. An unusable selection returns the preview's first
// ValidationError and moves nothing.
func (e *Engine) Execute(ctx context.Context, req Request) (*ExecuteResult, error) {
	preview, err := e.Preview(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(preview.Errors) > 0 {
		return nil, preview.Errors[0]
	}
	if preview.RequiresSeriesSelection {
		return nil, ValidationError{Reason: "selection spans several series; pick one before renaming"}
	}
	if len(preview.Items) == 0 {
		return nil, ValidationError{Reason: "nothing to rename"}
	}
	g, err := newGuard(e.cfg.Paths.CompletedDir)
	if err != nil {
		return nil, ValidationError{Reason: err.Error()}
	}

	result := &ExecuteResult{BatchID: e.newID()}
	logger := e.logger.With(logging.String("batch_id", result.BatchID))
	for _, item := range preview.Items {
		done, err := e.moveItem(ctx, g, item)
		rec := historyRecord(result.BatchID, done, preview, req.User)
		rec.RenamedAt = e.now().UTC().Format(time.RFC3339Nano)
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("job %d: %v", item.JobID, err))
			rec.RenameSuccess = false
			rec.ErrorMessage = err.Error()
			logging.WarnWithContext(logger, "rename failed", "rename_item_failed",
				logging.JobID(item.JobID),
				logging.String("from", item.OldPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "folder keeps its old name"),
			)
		} else {
			result.SuccessCount++
			rec.RenameSuccess = true
			logger.Info("folder renamed",
				logging.JobID(item.JobID),
				logging.String("from", done.OldPath),
				logging.String("to", done.NewPath),
			)
		}
		if _, herr := e.store.InsertRenameRecord(ctx, rec); herr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("job %d: record history: %v", item.JobID, herr))
		}
		result.Items = append(result.Items, done)
	}

	logger.Info("rename batch finished",
		logging.Int("renamed", result.SuccessCount),
		logging.Int("failed", result.FailedCount),
		logging.String("series", preview.SeriesName),
	)
	if e.notifier != nil && e.cfg.Notifications.NotifyRename {
		if err := e.notifier.NotifyRenameBatch(ctx, preview.SeriesName, result.SuccessCount, result.FailedCount); err != nil {
			logging.WarnWithContext(logger, "rename notification failed", "notification_failed", logging.Error(err))
		}
	}
	return result, nil
}

// moveItem re-checks both paths, picks a free destination and moves the
// folder. The returned item carries the paths actually used.
func (e *Engine) moveItem(ctx context.Context, g guard, item Item) (Item, error) {
	oldPath, err := g.check(item.OldPath)
	if err != nil {
		return item, ValidationError{JobID: item.JobID, Reason: "invalid source path: " + err.Error()}
	}
	newPath, err := g.check(item.NewPath)
	if err != nil {
		return item, ValidationError{JobID: item.JobID, Reason: "invalid destination: " + err.Error()}
	}
	if !fileutil.Exists(oldPath) {
		return item, fmt.Errorf("source %s no longer exists", oldPath)
	}
	if newPath == oldPath {
		return item, nil
	}
	if fileutil.Exists(newPath) {
		suffixed, err := g.check(fileutil.UniquePath(newPath, e.now()))
		if err != nil {
			return item, ValidationError{JobID: item.JobID, Reason: "invalid destination: " + err.Error()}
		}
		e.logger.Info("destination taken, using a suffixed name",
			logging.Args(logging.DecisionAttrs("rename_conflict", filepath.Base(suffixed), "existing "+newPath)...)...)
		newPath = suffixed
	}
	if _, err := g.check(filepath.Dir(newPath)); err != nil {
		return item, ValidationError{JobID: item.JobID, Reason: "invalid destination: " + err.Error()}
	}
	if err := e.relocate(oldPath, newPath); err != nil {
		return item, err
	}
	item.OldPath, item.NewPath = oldPath, newPath
	item.NewFolder = filepath.Base(newPath)
	if err := e.store.UpdateJobPath(ctx, item.JobID, newPath); err != nil {
		return item, fmt.Errorf("folder moved to %s but job path not updated: %w", newPath, err)
	}
	return item, nil
}

// relocate moves src to dst. A destination nested
// under src (Show (2001) -> Show (2001)/Show_S1D1) is reached through a
// temporary sibling; the reverse case needs the emptied parent removed
// before the move.
func (e *Engine) relocate(src, dst string) error {
	switch {
	case inside(src, dst):
		staged := fileutil.UniquePath(src+"_renaming", e.now())
		if err := fileutil.Move(src, staged); err != nil {
			return err
		}
		if err := fileutil.Move(staged, dst); err != nil {
			return errors.Join(err, fileutil.Move(staged, src))
		}
		return nil
	case inside(dst, src):
		staged := fileutil.UniquePath(dst+"_renaming", e.now())
		if err := fileutil.Move(src, staged); err != nil {
			return err
		}
		if err := os.Remove(dst); err != nil {
			return errors.Join(fmt.Errorf("%s is occupied: %w", dst, err), fileutil.Move(staged, src))
		}
		return fileutil.Move(staged, dst)
	}
	return fileutil.Move(src, dst)
}

func historyRecord(batchID string, item Item, preview *Preview, user string) *store.RenameRecord {
	jobID := item.JobID
	return &store.RenameRecord{
		BatchID:                 batchID,
		JobID:                   &jobID,
		OldPath:                 item.OldPath,
		NewPath:                 item.NewPath,
		OldFolderName:           item.OldFolder,
		NewFolderName:           item.NewFolder,
		SeriesName:              item.SeriesName,
		DiscIdentifier:          item.Identifier,
		ConsolidatedUnderSeries: item.Consolidated,
		SeriesParentFolder:      item.ParentFolder,
		RenamedBy:               user,
		NamingStyle:             string(preview.Style),
		ZeroPadded:              preview.ZeroPad,
	}
}

// Rollback reverses the successful, not yet reversed rows of a batch,
// newest first. A row whose folder is gone is reported and skipped.
func (e *Engine) Rollback(ctx context.Context, batchID, user string) (*RollbackResult, error) {
	records, err := e.store.BatchRecords(ctx, batchID)
	if err != nil {
		return nil, err
	}
	var eligible []*store.RenameRecord
	for _, rec := range records {
		if rec.RenameSuccess && !rec.RolledBack {
			eligible = append(eligible, rec)
		}
	}
	if len(eligible) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "rename", "rollback",
			fmt.Sprintf("batch %s has nothing left to roll back", batchID), nil)
	}
	g, err := newGuard(e.cfg.Paths.CompletedDir)
	if err != nil {
		return nil, ValidationError{Reason: err.Error()}
	}

	result := &RollbackResult{BatchID: batchID}
	logger := e.logger.With(logging.String("batch_id", batchID))
	for i := len(eligible) - 1; i >= 0; i-- {
		rec := eligible[i]
		if err := e.undo(ctx, g, rec, user); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("history %d: %v", rec.ID, err))
			logging.WarnWithContext(logger, "rollback of one folder failed", "rename_rollback_failed",
				logging.Int64("history_id", rec.ID),
				logging.String("path", rec.NewPath),
				logging.Error(err),
			)
			continue
		}
		result.RolledBack++
	}
	logger.Info("rename batch rolled back",
		logging.Int("rolled_back", result.RolledBack),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (e *Engine) undo(ctx context.Context, g guard, rec *store.RenameRecord, user string) error {
	if !fileutil.Exists(rec.NewPath) {
		return fmt.Errorf("%s no longer exists", rec.NewPath)
	}
	from, err := g.check(rec.NewPath)
	if err != nil {
		return err
	}
	to, err := g.check(rec.OldPath)
	if err != nil {
		return err
	}
	if from != to {
		if fileutil.Exists(to) && !inside(to, from) {
			return fmt.Errorf("%s is occupied", to)
		}
		if err := e.relocate(from, to); err != nil {
			return err
		}
	}
	if rec.JobID != nil {
		if err := e.store.UpdateJobPath(ctx, *rec.JobID, rec.OldPath); err != nil && !errors.Is(err, store.ErrJobNotFound) {
			return err
		}
	}
	if _, err := e.store.MarkRolledBack(ctx, rec.ID, user, e.now()); err != nil {
		return err
	}
	if rec.ConsolidatedUnderSeries && filepath.Dir(from) != to {
		// Drops the series folder once its last disc has moved out.
		_ = os.Remove(filepath.Dir(from))
	}
	return nil
}
