package ripper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"discripper/internal/fileutil"
	"discripper/internal/logging"
	"discripper/internal/store"
)

// fileOutputs moves finished files into the library folder. Series discs
// keep every file as is; movies get one main feature named after the
// folder and the rest go to the extras sub-folder.
func (r *run) fileOutputs(ctx context.Context, paths videoPaths, outputs []output) error {
	if len(outputs) == 0 {
		r.logger.Info("no files to file")
		return nil
	}
	if err := os.MkdirAll(paths.final, 0o755); err != nil {
		return fmt.Errorf("create library folder: %w", err)
	}

	if r.job.IsSeries() {
		for _, o := range outputs {
			if err := r.place(ctx, o, filepath.Join(paths.final, filepath.Base(o.path))); err != nil {
				return err
			}
		}
		return nil
	}

	main := pickMain(outputs)
	extras := strings.TrimSpace(r.settings.Ripper.ExtrasSub)
	keepExtras := !r.settings.Ripper.MainFeature && extras != "" && !strings.EqualFold(extras, "none")
	for _, o := range outputs {
		if o.path == main.path {
			o.track.MainFeature = true
			if err := r.place(ctx, o, filepath.Join(paths.final, paths.folder+filepath.Ext(o.path))); err != nil {
				return err
			}
			r.logger.Info("main feature filed",
				logging.Track(o.track.TrackNumber),
				logging.String("path", filepath.Join(paths.final, paths.folder+filepath.Ext(o.path))),
			)
			continue
		}
		o.track.MainFeature = false
		if !keepExtras {
			r.logger.Debug("extra not filed", logging.String("file", o.path))
			if err := r.p.store.UpdateTrack(ctx, o.track); err != nil {
				return err
			}
			continue
		}
		if err := r.place(ctx, o, filepath.Join(paths.final, extras, filepath.Base(o.path))); err != nil {
			return err
		}
	}
	return nil
}

// pickMain returns the output flagged as the main feature before
// transcoding. Without a flag the largest file wins, and a single
// surviving file is always the main feature.
func pickMain(outputs []output) output {
	if len(outputs) == 1 {
		return outputs[0]
	}
	for _, o := range outputs {
		if o.track.MainFeature {
			return o
		}
	}
	files := make([]string, len(outputs))
	for i, o := range outputs {
		files[i] = o.path
	}
	largest, _, err := fileutil.LargestFile(files)
	if err != nil {
		return outputs[0]
	}
	for _, o := range outputs {
		if o.path == largest {
			return o
		}
	}
	return outputs[0]
}

func (r *run) place(ctx context.Context, o output, dst string) error {
	dst = fileutil.UniquePath(dst, r.p.now())
	if err := fileutil.Move(o.path, dst); err != nil {
		return fmt.Errorf("file %s: %w", filepath.Base(o.path), err)
	}
	o.track.NewFilename = filepath.Base(dst)
	return r.p.store.UpdateTrack(ctx, o.track)
}

// keepBackup files an untranscoded MakeMKV backup as the library folder.
func (r *run) keepBackup(ctx context.Context, paths videoPaths) ([]output, bool, error) {
	if err := fileutil.Move(paths.raw, paths.final); err != nil {
		return nil, false, fmt.Errorf("file backup: %w", err)
	}
	track := &store.Track{
		JobID:        r.job.ID,
		TrackNumber:  "0",
		MainFeature:  true,
		Filename:     filepath.Base(paths.raw),
		OrigFilename: filepath.Base(paths.raw),
		NewFilename:  filepath.Base(paths.final),
		Ripped:       true,
		Status:       store.TrackSuccess,
		Source:       store.SourceMakeMKV,
	}
	if _, err := r.p.store.AddTrack(ctx, track); err != nil {
		return nil, false, err
	}
	r.logger.Info("backup filed without transcoding", logging.String("path", paths.final))
	return nil, false, nil
}

// finishVideo records the library path and runs the post-processing steps:
// permissions, raw cleanup and the library refresh.
func (r *run) finishVideo(ctx context.Context, paths videoPaths) error {
	if fileutil.Exists(paths.final) {
		r.job.Path = paths.final
		if err := r.p.store.UpdateJob(ctx, r.job); err != nil {
			return err
		}
		r.applyPermissions(paths.final)
	}
	if r.settings.Files.DeleteRawFiles {
		for _, dir := range []string{paths.raw, paths.work} {
			if err := os.RemoveAll(dir); err != nil {
				logging.WarnWithContext(r.logger, "could not delete working files", "raw_cleanup_failed",
					logging.String("path", dir),
					logging.Error(err),
				)
			}
		}
	}
	r.refreshLibrary(ctx)
	return nil
}

func (r *run) applyPermissions(root string) {
	if !r.settings.Files.SetPermissions {
		return
	}
	mode, err := r.settings.Files.Mode()
	if err == nil {
		err = fileutil.ChmodTree(root, mode)
	}
	if err != nil {
		logging.WarnWithContext(r.logger, "could not set permissions", "chmod_failed",
			logging.String("path", root),
			logging.Error(err),
		)
	}
}

func (r *run) refreshLibrary(ctx context.Context) {
	refresher := r.refresher()
	if refresher == nil {
		return
	}
	if err := refresher.Refresh(ctx); err != nil {
		logging.WarnWithContext(r.logger, "library refresh failed", "emby_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "new files appear after the next scheduled scan"),
		)
		return
	}
	r.logger.Info("library refresh requested")
}
