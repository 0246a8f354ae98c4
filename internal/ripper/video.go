package ripper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"discripper/internal/fileutil"
	"discripper/internal/logging"
	"discripper/internal/naming"
	"discripper/internal/services"
	"discripper/internal/services/makemkv"
	"discripper/internal/store"
)

// videoPaths are the working and library locations of one video job.
type videoPaths struct {
	folder string
	raw    string
	work   string
	final  string
}

// output is a produced file waiting to be filed, with its track row.
type output struct {
	track *store.Track
	path  string
}

func (r *run) ripVideo(ctx context.Context) error {
	paths, err := r.videoPaths(ctx)
	if err != nil {
		return err
	}

	var discTitles []titleInfo
	protected := false
	if r.job.DiscType == store.DiscDVD {
		tc, err := r.transcoder()
		if err != nil {
			return err
		}
		discTitles, err = tc.scan(ctx, r.job.DevPath)
		if err != nil {
			return err
		}
		protected = len(discTitles) >= protectionTitleCount
		if protected {
			logging.WarnWithContext(r.logger, "dvd copy protection detected", "dvd_copy_protection",
				logging.Int("title_count", len(discTitles)),
				logging.String(logging.FieldImpact, "disc is ripped with makemkv regardless of settings"),
			)
			r.job.CopyProtected = true
			if err := r.p.store.UpdateJob(ctx, r.job); err != nil {
				return err
			}
		}
	}

	useMakeMKV, reason := ripDecision(r.job.DiscType, r.settings.Ripper, protected)
	tool := "transcoder"
	if useMakeMKV {
		tool = "makemkv"
	}
	r.logger.Info("rip tool selected", logging.Args(logging.DecisionAttrs("rip_tool", tool, reason)...)...)

	var (
		outputs    []output
		transcoded bool
	)
	if useMakeMKV {
		outputs, transcoded, err = r.viaMakeMKV(ctx, paths)
	} else {
		outputs, err = r.viaTranscoder(ctx, paths, discTitles)
		transcoded = true
	}
	if err != nil {
		return err
	}
	if err := r.advance(ctx, store.EventActivate); err != nil {
		return err
	}
	if err := r.checkOutcome(ctx); err != nil {
		return err
	}
	if transcoded && r.settings.Notifications.NotifyTranscode {
		r.notify(ctx, "transcode complete", func() error {
			return r.notifier.NotifyTranscodeCompleted(ctx, r.job.DisplayTitle())
		})
	}
	if err := r.fileOutputs(ctx, paths, outputs); err != nil {
		return err
	}
	return r.finishVideo(ctx, paths)
}

// videoPaths computes the raw, transcode and library folders, applying the
// duplicate-folder policy to the library folder.
func (r *run) videoPaths(ctx context.Context) (videoPaths, error) {
	now := r.p.now()
	folder := naming.SafeFolderComponent(naming.FolderName(r.job, r.settings.Ripper))
	if folder == "" {
		folder = naming.CleanForFilename(r.job.Label)
	}
	if folder == "" {
		folder = "disc_" + fileutil.TimestampSuffix(now)
	}
	kind := libraryType(r.job.VideoType)

	library := filepath.Join(r.cfg.Paths.CompletedDir, kind)
	if r.job.IsSeries() && r.settings.Ripper.GroupTVDiscsUnderSeries {
		if parent := naming.SeriesParentFolder(naming.SeriesTitle(r.job), r.job.EffectiveYear(), true); parent != "" {
			library = filepath.Join(library, naming.SafeFolderComponent(parent))
		}
	}
	final := filepath.Join(library, folder)
	if fileutil.Exists(final) {
		prior, err := r.p.store.HasPriorRip(ctx, r.job.CRCID, r.job.ID)
		if err != nil {
			return videoPaths{}, err
		}
		if prior && !r.settings.Ripper.AllowDuplicates {
			return videoPaths{}, services.Wrap(services.ErrValidation, "ripper", "duplicate check",
				fmt.Sprintf("%s was ripped before and duplicate rips are disabled", folder), nil)
		}
		unique := fileutil.UniquePath(final, now)
		r.logger.Info("library folder exists, using a suffixed folder",
			logging.Args(logging.DecisionAttrs("duplicate_folder", filepath.Base(unique), "existing "+final)...)...)
		final = unique
	}

	return videoPaths{
		folder: folder,
		raw:    fileutil.UniquePath(filepath.Join(r.cfg.Paths.RawDir, folder), now),
		work:   fileutil.UniquePath(filepath.Join(r.cfg.Paths.TranscodeDir, kind, folder), now),
		final:  final,
	}, nil
}

// viaMakeMKV rips with MakeMKV and transcodes the result unless
// skip_transcode keeps the rip as the final product.
func (r *run) viaMakeMKV(ctx context.Context, paths videoPaths) ([]output, bool, error) {
	client, err := r.makemkvClient()
	if err != nil {
		return nil, false, err
	}
	if err := r.advance(ctx, store.EventRip); err != nil {
		return nil, false, err
	}

	mode := ripMode(r.job.DiscType, r.settings.Ripper.RipMethod)
	var (
		tracks   []*store.Track
		selected []int
	)
	if mode == makemkv.ModeMKV {
		info, err := client.Info(ctx, r.job.DevPath, r.settings.Ripper.MinLength)
		if err != nil {
			return nil, false, err
		}
		tracks, selected, err = r.recordMakeMKVTitles(ctx, info)
		if err != nil {
			return nil, false, err
		}
		if len(selected) == 0 {
			logging.WarnWithContext(r.logger, "no titles within the length limits", "no_eligible_titles",
				logging.Int("titles", len(info.Titles)),
				logging.Int("min_length", r.settings.Ripper.MinLength),
				logging.Int("max_length", r.settings.Ripper.MaxLength),
				logging.String(logging.FieldImpact, "nothing is ripped for this disc"),
			)
			return nil, false, nil
		}
	}

	started := r.p.now()
	result, err := client.Rip(ctx, makemkv.RipRequest{
		Device:    r.job.DevPath,
		Mode:      mode,
		DestDir:   paths.raw,
		Titles:    selected,
		MinLength: r.settings.Ripper.MinLength,
	})
	if err != nil {
		return nil, false, err
	}
	r.job.RawPath = paths.raw
	if err := r.p.store.UpdateJob(ctx, r.job); err != nil {
		return nil, false, err
	}
	r.logger.Info("makemkv rip complete",
		logging.String("mode", string(mode)),
		logging.Int("files", len(result.Files)),
		logging.Int("saved", result.Saved),
		logging.Int("failed", result.Failed),
		logging.Duration("elapsed", r.p.now().Sub(started)),
	)
	if r.settings.Notifications.NotifyRip {
		r.notify(ctx, "rip complete", func() error {
			return r.notifier.NotifyRipCompleted(ctx, r.job.DisplayTitle())
		})
	}

	if mode == makemkv.ModeBackup {
		if r.settings.Ripper.SkipTranscode {
			return r.keepBackup(ctx, paths)
		}
		tc, err := r.transcoder()
		if err != nil {
			return nil, false, err
		}
		titles, err := tc.scan(ctx, paths.raw)
		if err != nil {
			return nil, false, err
		}
		if err := r.admitTranscode(ctx); err != nil {
			return nil, false, err
		}
		outputs, err := r.transcodeTitles(ctx, tc, paths.raw, titles, paths)
		return outputs, true, err
	}

	ripped, err := r.matchRipped(ctx, tracks, result.Files)
	if err != nil {
		return nil, false, err
	}
	if err := r.markLargestMain(ctx, ripped); err != nil {
		return nil, false, err
	}
	if r.settings.Ripper.SkipTranscode {
		r.logger.Info("skip transcode enabled, filing makemkv output", logging.Int("files", len(ripped)))
		return ripped, false, nil
	}
	tc, err := r.transcoder()
	if err != nil {
		return nil, false, err
	}
	if err := r.admitTranscode(ctx); err != nil {
		return nil, false, err
	}
	outputs, err := r.transcodeFiles(ctx, tc, ripped, paths)
	return outputs, true, err
}

// viaTranscoder feeds the disc straight to the transcoder.
func (r *run) viaTranscoder(ctx context.Context, paths videoPaths, titles []titleInfo) ([]output, error) {
	tc, err := r.transcoder()
	if err != nil {
		return nil, err
	}
	if titles == nil {
		if titles, err = tc.scan(ctx, r.job.DevPath); err != nil {
			return nil, err
		}
	}
	if err := r.admitTranscode(ctx); err != nil {
		return nil, err
	}
	if r.settings.Ripper.MainFeature && r.job.VideoType == store.VideoMovie && r.job.HasNiceTitle {
		return r.transcodeMainFeature(ctx, tc, r.job.DevPath, titles, paths)
	}
	return r.transcodeTitles(ctx, tc, r.job.DevPath, titles, paths)
}

// recordMakeMKVTitles stores a track row per listed title and returns the
// ids that pass the length filter.
func (r *run) recordMakeMKVTitles(ctx context.Context, info *makemkv.DiscInfo) ([]*store.Track, []int, error) {
	var (
		tracks   []*store.Track
		selected []int
	)
	for _, t := range info.Titles {
		track := &store.Track{
			JobID:        r.job.ID,
			TrackNumber:  strconv.Itoa(t.ID),
			Length:       t.Duration,
			AspectRatio:  t.AspectRatio,
			FPS:          t.FPS,
			Basename:     t.Name,
			Filename:     t.Filename,
			OrigFilename: t.Filename,
			Source:       store.SourceMakeMKV,
		}
		if withinLength(t.Duration, r.settings.Ripper.MinLength, r.settings.Ripper.MaxLength) {
			selected = append(selected, t.ID)
		} else {
			track.Status = store.TrackSkipped
			r.logSkipped(t.ID, t.Duration)
		}
		if _, err := r.p.store.AddTrack(ctx, track); err != nil {
			return nil, nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, selected, nil
}

// matchRipped pairs MakeMKV output files with their title rows. Files
// nobody listed get a row of their own; listed titles without a file fail.
func (r *run) matchRipped(ctx context.Context, tracks []*store.Track, files []string) ([]output, error) {
	pending := make(map[string]*store.Track)
	for _, t := range tracks {
		if t.Status == store.TrackPending && t.Filename != "" {
			pending[t.Filename] = t
		}
	}
	outputs := make([]output, 0, len(files))
	for i, file := range files {
		name := filepath.Base(file)
		track, ok := pending[name]
		if ok {
			delete(pending, name)
		} else {
			track = &store.Track{
				JobID:        r.job.ID,
				TrackNumber:  strconv.Itoa(len(tracks) + i),
				Filename:     name,
				OrigFilename: name,
				Source:       store.SourceMakeMKV,
			}
			if _, err := r.p.store.AddTrack(ctx, track); err != nil {
				return nil, err
			}
		}
		track.Ripped = true
		track.Status = store.TrackSuccess
		if err := r.p.store.UpdateTrack(ctx, track); err != nil {
			return nil, err
		}
		outputs = append(outputs, output{track: track, path: file})
	}
	for name, track := range pending {
		r.finishTrack(ctx, track, "", fmt.Errorf("makemkv did not produce %s", name))
	}
	return outputs, nil
}

// markLargestMain flags the largest ripped file of a movie as its main
// feature. MakeMKV listings carry no main-feature flag, and the choice must
// stand before transcoding so a failed main feature fails the job.
func (r *run) markLargestMain(ctx context.Context, ripped []output) error {
	if r.job.IsSeries() || len(ripped) == 0 {
		return nil
	}
	files := make([]string, len(ripped))
	for i, o := range ripped {
		files[i] = o.path
	}
	largest, size, err := fileutil.LargestFile(files)
	if err != nil {
		return fmt.Errorf("size ripped files: %w", err)
	}
	for _, o := range ripped {
		o.track.MainFeature = o.path == largest
		if !o.track.MainFeature {
			continue
		}
		if err := r.p.store.UpdateTrack(ctx, o.track); err != nil {
			return err
		}
		r.logger.Info("main feature chosen",
			logging.Args(logging.DecisionAttrs("main_feature", o.track.TrackNumber,
				fmt.Sprintf("largest ripped file (%d bytes)", size))...)...)
	}
	return nil
}

// transcodeFiles converts each ripped file on its own.
func (r *run) transcodeFiles(ctx context.Context, tc transcoder, inputs []output, paths videoPaths) ([]output, error) {
	if err := os.MkdirAll(paths.work, 0o755); err != nil {
		return nil, fmt.Errorf("create transcode directory: %w", err)
	}
	var outputs []output
	for _, in := range inputs {
		name := strings.TrimSuffix(filepath.Base(in.path), filepath.Ext(in.path)) + "." + r.destExt()
		target := filepath.Join(paths.work, name)
		err := tc.transcode(ctx, in.path, target, 0, false)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if r.finishTrack(ctx, in.track, target, err) {
			outputs = append(outputs, output{track: in.track, path: target})
		}
	}
	return outputs, nil
}

// transcodeTitles converts every title of input that passes the length
// filter. A failing title is recorded and the loop moves on.
func (r *run) transcodeTitles(ctx context.Context, tc transcoder, input string, titles []titleInfo, paths videoPaths) ([]output, error) {
	if err := os.MkdirAll(paths.work, 0o755); err != nil {
		return nil, fmt.Errorf("create transcode directory: %w", err)
	}
	main := r.mainTitle(titles)
	var outputs []output
	for _, t := range titles {
		track := r.titleTrack(t, tc.source())
		track.MainFeature = t.Index == main
		if !withinLength(t.Duration, r.settings.Ripper.MinLength, r.settings.Ripper.MaxLength) {
			track.Status = store.TrackSkipped
			track.MainFeature = false
			r.logSkipped(t.Index, t.Duration)
			if _, err := r.p.store.AddTrack(ctx, track); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := r.p.store.AddTrack(ctx, track); err != nil {
			return nil, err
		}
		target := filepath.Join(paths.work, track.Filename)
		err := tc.transcode(ctx, input, target, t.Index, false)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if r.finishTrack(ctx, track, target, err) {
			outputs = append(outputs, output{track: track, path: target})
		}
	}
	return outputs, nil
}

// mainTitle returns the index of a movie's main feature among the titles
// that pass the length filter: the flagged one, else the longest. Series
// and discs with no eligible title get -1.
func (r *run) mainTitle(titles []titleInfo) int {
	if r.job.IsSeries() {
		return -1
	}
	main, longest := -1, -1
	for _, t := range titles {
		if !withinLength(t.Duration, r.settings.Ripper.MinLength, r.settings.Ripper.MaxLength) {
			continue
		}
		if t.MainFeature {
			return t.Index
		}
		if t.Duration > longest {
			main, longest = t.Index, t.Duration
		}
	}
	return main
}

// transcodeMainFeature converts only the title the scan flagged as the main
// feature, or the longest title when none is flagged.
func (r *run) transcodeMainFeature(ctx context.Context, tc transcoder, input string, titles []titleInfo, paths videoPaths) ([]output, error) {
	if len(titles) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "ripper", "main feature", "scan found no titles", nil)
	}
	main := titles[0]
	for _, t := range titles {
		if t.MainFeature {
			main = t
			break
		}
		if t.Duration > main.Duration {
			main = t
		}
	}
	if err := os.MkdirAll(paths.work, 0o755); err != nil {
		return nil, fmt.Errorf("create transcode directory: %w", err)
	}
	track := r.titleTrack(main, tc.source())
	track.MainFeature = true
	if _, err := r.p.store.AddTrack(ctx, track); err != nil {
		return nil, err
	}
	target := filepath.Join(paths.work, track.Filename)
	err := tc.transcode(ctx, input, target, main.Index, true)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !r.finishTrack(ctx, track, target, err) {
		return nil, nil
	}
	return []output{{track: track, path: target}}, nil
}

func (r *run) titleTrack(t titleInfo, source string) *store.Track {
	name := fmt.Sprintf("title_%02d.%s", t.Index, r.destExt())
	return &store.Track{
		JobID:        r.job.ID,
		TrackNumber:  strconv.Itoa(t.Index),
		Length:       t.Duration,
		AspectRatio:  t.AspectRatio,
		FPS:          t.FPS,
		MainFeature:  t.MainFeature,
		Filename:     name,
		OrigFilename: name,
		Source:       source,
	}
}

// finishTrack records the transcode outcome of track and reports success.
func (r *run) finishTrack(ctx context.Context, track *store.Track, target string, cause error) bool {
	if cause != nil {
		track.Status = store.TrackFail
		track.Error = cause.Error()
		logging.WarnWithContext(r.logger, "track failed", "track_failed",
			logging.Track(track.TrackNumber),
			logging.Error(cause),
			logging.String(logging.FieldImpact, "other tracks continue"),
		)
		if err := r.p.store.AppendJobError(ctx, r.job.ID, fmt.Sprintf("track %s: %v", track.TrackNumber, cause)); err != nil {
			r.logger.Debug("could not record track error", logging.Error(err))
		}
	} else {
		track.Status = store.TrackSuccess
		track.Ripped = true
		track.Error = ""
		track.NewFilename = filepath.Base(target)
	}
	if err := r.p.store.UpdateTrack(ctx, track); err != nil {
		r.logger.Debug("could not update track", logging.Error(err))
	}
	return cause == nil
}

func (r *run) logSkipped(title, seconds int) {
	r.logger.Info("title skipped by length filter",
		logging.Int("title", title),
		logging.Int("seconds", seconds),
		logging.Int("min_length", r.settings.Ripper.MinLength),
		logging.Int("max_length", r.settings.Ripper.MaxLength),
	)
}

// admitTranscode waits in waiting_transcode while the number of
// transcoding jobs is at the configured limit, then moves to transcoding.
func (r *run) admitTranscode(ctx context.Context) error {
	limit := r.settings.Ripper.MaxConcurrentTranscodes
	queued := false
	for limit > 0 {
		running, err := r.p.store.CountByStatus(ctx, store.StatusTranscoding)
		if err != nil {
			return err
		}
		if running < limit {
			break
		}
		if !queued {
			if err := r.advance(ctx, store.EventQueueTranscode); err != nil {
				return err
			}
			queued = true
			r.logger.Info("waiting for a transcode slot",
				logging.Int("running", running),
				logging.Int("limit", limit),
			)
		} else if current, err := r.p.store.MustGetJob(ctx, r.job.ID); err == nil && current.Status.IsTerminal() {
			return errAbandoned
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.p.transcodePoll):
		}
	}
	return r.advance(ctx, store.EventTranscode)
}

// checkOutcome applies the failure policy to the recorded tracks: a movie
// fails with its main feature, a series only when every track failed.
func (r *run) checkOutcome(ctx context.Context) error {
	tracks, err := r.p.store.ListTracks(ctx, r.job.ID)
	if err != nil {
		return err
	}
	attempted, failed := 0, 0
	mainFailed := ""
	for _, t := range tracks {
		switch t.Status {
		case store.TrackSuccess:
			attempted++
		case store.TrackFail:
			attempted++
			failed++
			if t.MainFeature {
				mainFailed = t.TrackNumber
			}
		}
	}
	if attempted > 0 && failed == attempted {
		return services.Wrap(services.ErrExternalTool, "ripper", "transcode",
			fmt.Sprintf("all %d tracks failed", failed), nil)
	}
	if !r.job.IsSeries() && mainFailed != "" {
		return services.Wrap(services.ErrExternalTool, "ripper", "transcode",
			fmt.Sprintf("main feature (title %s) failed", mainFailed), nil)
	}
	if failed > 0 {
		logging.WarnWithContext(r.logger, "some tracks failed", "tracks_failed",
			logging.Int("failed", failed),
			logging.Int("attempted", attempted),
			logging.String(logging.FieldImpact, "job completes without the failed tracks"),
		)
	}
	return nil
}

func (r *run) destExt() string {
	ext := strings.TrimPrefix(strings.TrimSpace(r.settings.Transcode.DestExt), ".")
	if ext == "" {
		return "mkv"
	}
	return ext
}
