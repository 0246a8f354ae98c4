package ripper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"discripper/internal/fileutil"
	"discripper/internal/logging"
	"discripper/internal/naming"
	"discripper/internal/services"
	"discripper/internal/store"
)

// ripData copies the raw device into <label>.iso under the completed
// data folder.
func (r *run) ripData(ctx context.Context) error {
	if err := r.advance(ctx, store.EventRip); err != nil {
		return err
	}
	now := r.p.now()
	label := naming.CleanForFilename(r.job.Label)
	if label == "" {
		label = "data_" + fileutil.TimestampSuffix(now)
	}

	if err := os.MkdirAll(r.cfg.Paths.RawDir, 0o755); err != nil {
		return fmt.Errorf("create raw directory: %w", err)
	}
	partial := fileutil.UniquePath(filepath.Join(r.cfg.Paths.RawDir, label+".part"), now)
	written, err := fileutil.CopyStream(ctx, r.job.DevPath, partial)
	if err != nil {
		return services.Wrap(services.ErrDevice, "ripper", "data copy", "could not read disc image", err)
	}

	folder := fileutil.UniquePath(filepath.Join(r.cfg.Paths.CompletedDir, "data", label), now)
	image := filepath.Join(folder, label+".iso")
	if err := fileutil.Move(partial, image); err != nil {
		return fmt.Errorf("file disc image: %w", err)
	}
	r.job.Path = folder
	if err := r.p.store.UpdateJob(ctx, r.job); err != nil {
		return err
	}
	r.applyPermissions(folder)
	r.logger.Info("data disc copied",
		logging.String("path", image),
		logging.Int64("bytes", written),
	)
	if r.settings.Notifications.NotifyRip {
		r.notify(ctx, "rip complete", func() error {
			return r.notifier.NotifyRipCompleted(ctx, r.displayName())
		})
	}
	return r.advance(ctx, store.EventActivate)
}
