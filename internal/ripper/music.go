package ripper

import (
	"context"
	"fmt"
	"path/filepath"

	"discripper/internal/logging"
	"discripper/internal/music"
	"discripper/internal/store"
)

// ripMusic rips an audio CD with abcde and records a track per file from
// the tags the files carry.
func (r *run) ripMusic(ctx context.Context) error {
	client, err := r.musicClient()
	if err != nil {
		return err
	}
	if err := r.advance(ctx, store.EventRip); err != nil {
		return err
	}

	result, err := client.Rip(ctx, r.job.DevPath, r.cfg.Paths.MusicDir)
	if err != nil {
		return err
	}
	tracks, problems := music.Album(result.Files)
	for path, err := range problems {
		logging.WarnWithContext(r.logger, "could not read tags", "music_tags_failed",
			logging.String("file", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "track is recorded from its file name"),
		)
	}
	for _, t := range tracks {
		if _, err := r.p.store.AddTrack(ctx, t.StoreTrack(r.job.ID)); err != nil {
			return fmt.Errorf("record track %s: %w", filepath.Base(t.Path), err)
		}
	}
	if r.settings.Music.ExtractCoverArt {
		cover, err := music.WriteCover(tracks)
		switch {
		case err != nil:
			logging.WarnWithContext(r.logger, "cover art extraction failed", "cover_art_failed", logging.Error(err))
		case cover != "":
			r.logger.Info("cover art written", logging.String("path", cover))
		}
	}

	if len(tracks) > 0 {
		r.job.Path = filepath.Dir(tracks[0].Path)
		if err := r.p.store.UpdateJob(ctx, r.job); err != nil {
			return err
		}
		r.applyPermissions(r.job.Path)
	}
	r.logger.Info("audio cd ripped",
		logging.Int("tracks", len(tracks)),
		logging.String("path", r.job.Path),
	)
	if r.settings.Notifications.NotifyRip {
		r.notify(ctx, "rip complete", func() error {
			return r.notifier.NotifyRipCompleted(ctx, r.job.DisplayTitle())
		})
	}
	r.refreshLibrary(ctx)
	return r.advance(ctx, store.EventActivate)
}
