package ripper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"discripper/internal/config"
	"discripper/internal/disc"
	"discripper/internal/identify"
	"discripper/internal/jobs"
	"discripper/internal/logging"
	"discripper/internal/notifications"
	"discripper/internal/services"
	"discripper/internal/services/abcde"
	"discripper/internal/services/emby"
	"discripper/internal/services/ffmpeg"
	"discripper/internal/services/handbrake"
	"discripper/internal/services/makemkv"
	"discripper/internal/store"
)

// MakeMKV is the subset of the makemkv client the pipeline uses.
type MakeMKV interface {
	Info(ctx context.Context, devpath string, minLength int) (*makemkv.DiscInfo, error)
	Rip(ctx context.Context, req makemkv.RipRequest) (*makemkv.RipResult, error)
}

// HandBrake is the subset of the HandBrakeCLI client the pipeline uses.
type HandBrake interface {
	Scan(ctx context.Context, source string) (*handbrake.Scan, error)
	Transcode(ctx context.Context, req handbrake.TranscodeRequest) error
}

// FFmpeg is the subset of the ffmpeg client the pipeline uses.
type FFmpeg interface {
	Probe(ctx context.Context, source string) (*ffmpeg.Probe, error)
	Transcode(ctx context.Context, req ffmpeg.TranscodeRequest) error
}

// MusicRipper rips an audio CD into a directory.
type MusicRipper interface {
	Rip(ctx context.Context, devpath, outputDir string) (*abcde.Result, error)
}

// Identifier names the disc held by a job.
type Identifier interface {
	Identify(ctx context.Context, job *store.Job, settings config.JobSettings) (*identify.Result, error)
}

// Refresher asks a media server to rescan its library.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// LogFactory opens a logger that also writes to fileName inside the log
// directory.
type LogFactory func(fileName string) (*slog.Logger, error)

// errAbandoned stops a run whose job was abandoned by an operator.
var errAbandoned = errors.New("job abandoned")

// recordedError wraps a failure that has already been written to the job.
type recordedError struct{ err error }

func (e recordedError) Error() string { return e.err.Error() }
func (e recordedError) Unwrap() error { return e.err }

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithIdentifier overrides disc identification.
func WithIdentifier(id Identifier) Option {
	return func(p *Pipeline) { p.identifier = id }
}

// WithMakeMKV overrides the MakeMKV client built from the job settings.
func WithMakeMKV(client MakeMKV) Option {
	return func(p *Pipeline) { p.makemkv = client }
}

// WithHandBrake overrides the HandBrake client built from the job settings.
func WithHandBrake(client HandBrake) Option {
	return func(p *Pipeline) { p.handbrake = client }
}

// WithFFmpeg overrides the FFmpeg client built from the job settings.
func WithFFmpeg(client FFmpeg) Option {
	return func(p *Pipeline) { p.ffmpeg = client }
}

// WithMusicRipper overrides the abcde client built from the job settings.
func WithMusicRipper(client MusicRipper) Option {
	return func(p *Pipeline) { p.music = client }
}

// WithNotifier overrides the notification service.
func WithNotifier(n notifications.Service) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithRefresher overrides the Emby library refresher.
func WithRefresher(r Refresher) Option {
	return func(p *Pipeline) { p.refresher = r }
}

// WithLogFactory switches the run onto a per-job log file once the disc
// label is known.
func WithLogFactory(f LogFactory) Option {
	return func(p *Pipeline) { p.logFactory = f }
}

// WithVersion sets the application version recorded on every job.
func WithVersion(version string) Option {
	return func(p *Pipeline) { p.version = version }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithTranscodePollInterval overrides workflow.transcode_poll_interval.
func WithTranscodePollInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.transcodePoll = d
		}
	}
}

// Pipeline runs jobs end to end.
type Pipeline struct {
	cfg           *config.Config
	jobs          *jobs.Manager
	store         *store.Store
	ctl           disc.Controller
	identifier    Identifier
	makemkv       MakeMKV
	handbrake     HandBrake
	ffmpeg        FFmpeg
	music         MusicRipper
	notifier      notifications.Service
	refresher     Refresher
	logFactory    LogFactory
	logger        *slog.Logger
	version       string
	now           func() time.Time
	transcodePoll time.Duration
}

// New builds a pipeline. Tool clients default to the binaries named in each
// job's settings snapshot.
func New(cfg *config.Config, manager *jobs.Manager, ctl disc.Controller, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:           cfg,
		jobs:          manager,
		store:         manager.Store(),
		ctl:           ctl,
		logger:        logging.NewComponentLogger(logger, "ripper"),
		now:           time.Now,
		transcodePoll: time.Duration(cfg.Workflow.TranscodePollInterval) * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.identifier == nil {
		p.identifier = identify.New(cfg, ctl, logger)
	}
	if p.transcodePoll <= 0 {
		p.transcodePoll = 10 * time.Second
	}
	return p
}

// run carries the state of one job through the pipeline.
type run struct {
	p        *Pipeline
	job      *store.Job
	settings config.JobSettings
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
}

// Run processes jobID until it succeeds or fails. The returned error is the
// cause of a failure that has already been recorded on the job.
func (p *Pipeline) Run(ctx context.Context, jobID int64) error {
	job, err := p.store.MustGetJob(ctx, jobID)
	if err != nil {
		return err
	}
	settings, err := p.store.JobSettings(ctx, jobID)
	if err != nil {
		return err
	}
	ctx = services.WithJobID(ctx, jobID)
	ctx = services.WithDevice(ctx, job.DevPath)

	cfg := p.cfg.WithSnapshot(settings)
	r := &run{
		p:        p,
		job:      job,
		settings: settings,
		cfg:      cfg,
		logger:   logging.WithContext(ctx, p.logger),
		notifier: p.notifier,
	}
	if r.notifier == nil {
		r.notifier = notifications.NewService(cfg)
	}

	err = r.execute(ctx)
	var recorded recordedError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &recorded):
		r.release(context.WithoutCancel(ctx))
		return recorded.err
	case errors.Is(err, errAbandoned):
		r.logger.Info("job abandoned, stopping")
		r.release(context.WithoutCancel(ctx))
		return nil
	}
	r.fail(context.WithoutCancel(ctx), err)
	return err
}

func (r *run) execute(ctx context.Context) error {
	if err := r.recordProcess(ctx); err != nil {
		return err
	}
	if err := r.advance(ctx, store.EventIdentify); err != nil {
		return err
	}

	ctx = services.WithStage(ctx, "identify")
	result, err := r.p.identifier.Identify(ctx, r.job, r.settings)
	if err != nil {
		return err
	}
	if err := r.commitIdentity(ctx, result); err != nil {
		return err
	}
	r.switchLog(result.LogName)
	r.notify(ctx, "job started", func() error {
		return r.notifier.NotifyJobStarted(ctx, r.job.DisplayTitle(), string(r.job.DiscType))
	})

	switch r.job.DiscType {
	case store.DiscDVD, store.DiscBluray:
		job, err := r.p.jobs.WaitForManualTitle(ctx, r.job.ID)
		if err != nil {
			return err
		}
		r.job = job
		if job.Status != store.StatusIdentifying {
			return errAbandoned
		}
		err = r.ripVideo(services.WithStage(ctx, "video"))
		if err != nil {
			return err
		}
	case store.DiscMusic:
		if err := r.ripMusic(services.WithStage(ctx, "music")); err != nil {
			return err
		}
	case store.DiscData:
		if err := r.ripData(services.WithStage(ctx, "data")); err != nil {
			return err
		}
	default:
		return services.Wrap(services.ErrValidation, "ripper", "dispatch",
			fmt.Sprintf("unhandled disc format %q", r.job.DiscType), nil)
	}

	job, err := r.p.jobs.Complete(ctx, r.job.ID)
	if err != nil {
		return err
	}
	r.job = job
	r.logger.Info("job finished",
		logging.String("title", job.DisplayTitle()),
		logging.String("path", job.Path),
		logging.Duration("elapsed", job.Duration(r.p.now())),
	)
	r.notify(ctx, "job complete", func() error {
		return r.notifier.NotifyJobCompleted(ctx, job.DisplayTitle(), job.Path)
	})
	r.release(ctx)
	return nil
}

// recordProcess stamps the pid and its fingerprint so abandon can find us.
func (r *run) recordProcess(ctx context.Context) error {
	r.job.PID = os.Getpid()
	fingerprint, err := disc.ProcessFingerprint(r.job.PID)
	if err != nil {
		r.logger.Debug("process fingerprint unavailable", logging.Error(err))
	}
	r.job.PIDHash = fingerprint
	if r.p.version != "" {
		r.job.AppVersion = r.p.version
	}
	return r.p.store.UpdateJob(ctx, r.job)
}

func (r *run) commitIdentity(ctx context.Context, result *identify.Result) error {
	err := r.p.jobs.CommitMetadata(ctx, r.job.ID, func(ctx context.Context) error {
		err := r.p.store.SetAutoIdentity(ctx, r.job.ID, result.Identity)
		if errors.Is(err, store.ErrIdentityFrozen) {
			r.logger.Info("identification already recorded, keeping it")
		} else if err != nil {
			return err
		}
		job, err := r.p.store.MustGetJob(ctx, r.job.ID)
		if err != nil {
			return err
		}
		if result.MountPoint != "" {
			job.MountPoint = result.MountPoint
		}
		if result.LogName != "" {
			job.LogFile = result.LogName
		}
		if err := r.p.store.UpdateJob(ctx, job); err != nil {
			return err
		}
		r.job = job
		return nil
	})
	if err != nil {
		return recordedError{err: err}
	}
	return nil
}

func (r *run) switchLog(fileName string) {
	if r.p.logFactory == nil || fileName == "" {
		return
	}
	logger, err := r.p.logFactory(fileName)
	if err != nil {
		logging.WarnWithContext(r.logger, "job log unavailable", "job_log_failed",
			logging.String("file", fileName),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job output stays in the daemon log"),
		)
		return
	}
	r.logger = logging.NewComponentLogger(logger, "ripper").With(
		logging.Args(logging.JobID(r.job.ID), logging.Device(r.job.DevPath))...)
}

// advance applies event, translating a rejected transition on an abandoned
// job into errAbandoned.
func (r *run) advance(ctx context.Context, event store.Event) error {
	job, err := r.p.jobs.Advance(ctx, r.job.ID, event, "")
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			if current, getErr := r.p.store.MustGetJob(ctx, r.job.ID); getErr == nil && current.Status.IsTerminal() {
				return errAbandoned
			}
		}
		return err
	}
	r.job = job
	return nil
}

func (r *run) fail(ctx context.Context, cause error) {
	job, err := r.p.jobs.Fail(ctx, r.job.ID, cause)
	if err != nil {
		logging.WarnWithContext(r.logger, "could not record job failure", "job_fail_record_failed",
			logging.Error(err),
		)
	} else {
		r.job = job
	}
	logging.ErrorWithContext(r.logger, "job pipeline failed", "job_pipeline_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, services.ErrorHint(cause)),
	)
	r.notify(ctx, "job failed", func() error {
		return r.notifier.NotifyJobFailed(ctx, r.job.DisplayTitle(), cause)
	})
	r.release(ctx)
}

// release unmounts the disc and ejects it when configured.
func (r *run) release(ctx context.Context) {
	if r.job.MountPoint != "" {
		if err := r.p.ctl.Unmount(ctx, r.job.MountPoint); err != nil {
			r.logger.Debug("unmount failed", logging.Error(err))
		}
	}
	if !r.settings.Files.AutoEject || r.job.Ejected {
		return
	}
	if err := r.p.ctl.Eject(ctx, r.job.DevPath, disc.EjectOpen); err != nil {
		logging.WarnWithContext(r.logger, "eject failed", "eject_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "disc stays in the drive"),
		)
		return
	}
	r.job.Ejected = true
	if err := r.p.store.UpdateJob(ctx, r.job); err != nil {
		r.logger.Debug("could not record eject", logging.Error(err))
	}
}

// notify sends one notification; failures never affect the job.
func (r *run) notify(ctx context.Context, what string, send func() error) {
	if err := send(); err != nil {
		logging.WarnWithContext(r.logger, "notification failed", "notification_failed",
			logging.String("notification", what),
			logging.Error(err),
		)
	}
}

func (r *run) refresher() Refresher {
	if r.p.refresher != nil {
		return r.p.refresher
	}
	timeout := time.Duration(r.cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := emby.New(r.cfg.EmbyURL(), r.cfg.Emby.APIKey, &http.Client{Timeout: timeout})
	if client == nil {
		return nil
	}
	return client
}

func (r *run) makemkvClient() (MakeMKV, error) {
	if r.p.makemkv != nil {
		return r.p.makemkv, nil
	}
	client, err := makemkv.New(r.settings.MakeMKV.Binary, r.settings.MakeMKV.ExtraArgs,
		r.settings.MakeMKV.RipTimeout, makemkv.WithLogger(r.logger))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ripper", "makemkv", "makemkv client unavailable", err)
	}
	return client, nil
}

func (r *run) musicClient() (MusicRipper, error) {
	if r.p.music != nil {
		return r.p.music, nil
	}
	client, err := abcde.New(r.settings.Music.AbcdeBinary, r.settings.Music.AbcdeConfig)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ripper", "abcde", "abcde client unavailable", err)
	}
	return client, nil
}

// displayName is a short label for log lines and file names.
func (r *run) displayName() string {
	if name := strings.TrimSpace(r.job.DisplayTitle()); name != "" {
		return name
	}
	return "disc"
}
