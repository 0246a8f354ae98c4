package identify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"discripper/internal/config"
	"discripper/internal/disc"
	"discripper/internal/logging"
	"discripper/internal/naming"
	"discripper/internal/services"
	"discripper/internal/services/musicbrainz"
	"discripper/internal/services/omdb"
	"discripper/internal/store"
)

// NotIdentified is the label and title given to discs no lookup could name.
const NotIdentified = "not identified"

// TitleLookup finds a video title. A nil result means no match.
type TitleLookup interface {
	Lookup(ctx context.Context, title, year, videoType string) (*omdb.Result, error)
}

// MusicLookup finds an audio CD by MusicBrainz disc id. A nil result means
// no match.
type MusicLookup interface {
	LookupDisc(ctx context.Context, discID string) (*musicbrainz.Release, error)
}

// TOCReader reads the table of contents of the audio CD in devpath.
type TOCReader func(ctx context.Context, devpath string) (disc.TOC, error)

// LabelReader returns the volume label of the disc in devpath.
type LabelReader func(ctx context.Context, devpath string) (string, error)

// Option customizes an Identifier.
type Option func(*Identifier)

// WithTitleLookup overrides the video title collaborator.
func WithTitleLookup(lookup TitleLookup) Option {
	return func(i *Identifier) { i.titles = lookup }
}

// WithMusicLookup overrides the music collaborator.
func WithMusicLookup(lookup MusicLookup) Option {
	return func(i *Identifier) { i.music = lookup }
}

// WithTOCReader overrides how audio TOCs are read.
func WithTOCReader(reader TOCReader) Option {
	return func(i *Identifier) {
		if reader != nil {
			i.readTOC = reader
		}
	}
}

// WithLabelReader overrides the lsblk label fallback.
func WithLabelReader(reader LabelReader) Option {
	return func(i *Identifier) {
		if reader != nil {
			i.readLabel = reader
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Identifier) {
		if now != nil {
			i.now = now
		}
	}
}

// Identifier runs the identification policy for one job.
type Identifier struct {
	cfg       *config.Config
	ctl       disc.Controller
	titles    TitleLookup
	music     MusicLookup
	readTOC   TOCReader
	readLabel LabelReader
	logger    *slog.Logger
	now       func() time.Time
}

// New builds an Identifier. Collaborators default to the OMDb and
// MusicBrainz clients configured in cfg; OMDb is skipped when the provider
// is "none" or no API key is set.
func New(cfg *config.Config, ctl disc.Controller, logger *slog.Logger, opts ...Option) *Identifier {
	i := &Identifier{
		cfg:    cfg,
		ctl:    ctl,
		logger: logging.NewComponentLogger(logger, "identify"),
		now:    time.Now,
	}
	if cfg.Metadata.Provider == config.ProviderOMDb && strings.TrimSpace(cfg.Metadata.OMDbAPIKey) != "" {
		i.titles = omdb.New(cfg.Metadata.OMDbAPIKey, cfg.Metadata.OMDbBaseURL, cfg.Metadata.RequestTimeout)
	}
	i.music = musicbrainz.New(cfg.Metadata.MusicBrainzBaseURL, cfg.Metadata.UserAgent, cfg.Metadata.RequestTimeout)
	i.readTOC = func(ctx context.Context, devpath string) (disc.TOC, error) {
		return disc.ReadTOC(ctx, nil, cfg.Music.DiscIDBinary, devpath)
	}
	i.readLabel = func(ctx context.Context, devpath string) (string, error) {
		return disc.ReadLabel(ctx, nil, devpath)
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Result is the outcome of identification.
type Result struct {
	Identity   store.Identity
	MountPoint string
	Markers    disc.Markers
	// LogName is the per-job log file name derived from the label.
	LogName string
}

// Identify inspects the disc held by job. An unreadable drive, an empty
// tray or a disc that cannot be mounted are returned as ErrDevice errors;
// lookup failures never are.
func (i *Identifier) Identify(ctx context.Context, job *store.Job, settings config.JobSettings) (*Result, error) {
	logger := logging.WithContext(ctx, i.logger)

	status, err := i.ctl.TrayStatus(job.DevPath)
	if err != nil {
		return nil, services.Wrap(services.ErrDevice, "identify", "tray status", "cannot read drive status", err)
	}
	if !status.Ready() {
		return nil, services.Wrap(services.ErrDevice, "identify", "tray status",
			fmt.Sprintf("no readable disc in %s (%s)", job.DevPath, status), nil)
	}

	props, err := i.ctl.Properties(ctx, job.DevPath)
	if err != nil {
		logging.WarnWithContext(logger, "udev properties unavailable", "udev_properties_failed",
			logging.Device(job.DevPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "audio CD detection relies on mount markers only"),
		)
		props = disc.Properties{}
	}
	media := props.Media()

	label := media.Label
	if label == "" {
		if fallback, err := i.readLabel(ctx, job.DevPath); err == nil {
			label = strings.TrimSpace(fallback)
		}
	}

	result := &Result{Identity: store.Identity{DiscType: store.DiscUnknown, Label: label, VideoType: store.VideoUnknown}}

	if media.AudioTracks > 0 {
		result.Identity.DiscType = store.DiscMusic
	} else {
		mountpoint, err := i.ctl.Mount(ctx, job.DevPath, job.MountPoint)
		if err != nil {
			return nil, services.Wrap(services.ErrDevice, "identify", "mount", "cannot mount disc", err)
		}
		result.MountPoint = mountpoint
		markers, err := disc.InspectMarkers(mountpoint)
		if err != nil {
			return nil, services.Wrap(services.ErrDevice, "identify", "inspect", "cannot read mounted disc", err)
		}
		result.Markers = markers
		result.Identity.DiscType = discTypeFromMarkers(markers)
	}

	if override, ok := store.ParseDiscType(settings.Ripper.DiscTypeOverride); ok && override != store.DiscUnknown {
		logger.Info("disc type override applied",
			logging.Args(logging.DecisionAttrs("disc_type", string(override),
				"overrides detected "+string(result.Identity.DiscType))...)...)
		result.Identity.DiscType = override
	}

	forceTimestamp := false
	switch result.Identity.DiscType {
	case store.DiscDVD, store.DiscBluray:
		i.identifyVideo(ctx, logger, result, settings)
	case store.DiscMusic:
		forceTimestamp = i.identifyMusic(ctx, logger, job.DevPath, result)
	case store.DiscData:
		if result.Identity.Label == "" {
			result.Identity.Label = NotIdentified
		}
		result.Identity.Title = result.Identity.Label
	case store.DiscUnhandled:
		result.Identity.Title = result.Identity.Label
		logging.WarnWithContext(logger, "legacy HD DVD disc is not supported", "disc_unhandled",
			logging.Device(job.DevPath),
			logging.String(logging.FieldImpact, "job will fail without ripping"),
		)
	}

	result.LogName = logging.JobLogName(i.cfg.Paths.LogDir, result.Identity.Label, forceTimestamp, i.now())
	logger.Info("disc identified",
		logging.String("disc_type", string(result.Identity.DiscType)),
		logging.String("label", result.Identity.Label),
		logging.String("title", result.Identity.Title),
		logging.String("year", result.Identity.Year),
		logging.String("video_type", string(result.Identity.VideoType)),
		logging.Bool("nice_title", result.Identity.HasNiceTitle),
	)
	return result, nil
}

func discTypeFromMarkers(m disc.Markers) store.DiscType {
	switch {
	case m.VideoTS:
		return store.DiscDVD
	case m.BDMV:
		return store.DiscBluray
	case m.HVDVDTS:
		return store.DiscUnhandled
	default:
		return store.DiscData
	}
}

func (i *Identifier) identifyMusic(ctx context.Context, logger *slog.Logger, devpath string, result *Result) bool {
	id := &result.Identity
	var release *musicbrainz.Release
	toc, err := i.readTOC(ctx, devpath)
	if err == nil {
		id.CRCID = toc.MusicBrainzID()
		release, err = i.music.LookupDisc(ctx, id.CRCID)
	}
	if err != nil {
		logging.WarnWithContext(logger, "music lookup failed", "musicbrainz_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "album will be filed as not identified"),
		)
	}
	if release == nil {
		id.Label = NotIdentified
		id.Title = NotIdentified
		return true
	}
	id.Title = naming.CleanForFilename(release.DisplayTitle())
	id.Label = id.Title
	id.Year = release.Year
	id.HasNiceTitle = true
	if release.ID != "" {
		id.CRCID = release.ID
	}
	return false
}
