package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"discripper/internal/config"
	"discripper/internal/disc"
	"discripper/internal/logging"
	"discripper/internal/services"
	"discripper/internal/store"
)

const (
	defaultManualPoll = 5 * time.Second
	lockRetryInterval = time.Second
)

// ErrLockTimeout reports that a metadata commit kept hitting a locked
// database for the whole retry window.
var ErrLockTimeout = errors.New("database stayed locked")

// Killer terminates the OS process recorded on a job.
type Killer interface {
	Kill(pid int, fingerprint int64) error
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithManualPollInterval overrides how often the manual-wait loop re-reads the job.
func WithManualPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.manualPoll = d
		}
	}
}

// WithLockRetryInterval overrides the delay between locked-database retries.
func WithLockRetryInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lockRetry = d
		}
	}
}

// Manager applies job lifecycle operations.
type Manager struct {
	cfg        *config.Config
	store      *store.Store
	killer     Killer
	logger     *slog.Logger
	now        func() time.Time
	manualPoll time.Duration
	lockRetry  time.Duration
}

// NewManager builds a manager. killer may be nil when abandon never needs
// to signal a process (tests, read-only tools).
func NewManager(cfg *config.Config, st *store.Store, killer Killer, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:        cfg,
		store:      st,
		killer:     killer,
		logger:     logging.NewComponentLogger(logger, "jobs"),
		now:        time.Now,
		manualPoll: defaultManualPoll,
		lockRetry:  lockRetryInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store exposes the underlying store.
func (m *Manager) Store() *store.Store {
	return m.store
}

// Create records a job for the disc in devpath, snapshots the current
// configuration into it and makes it the drive's current job. drive may be
// nil when the device is not registered.
func (m *Manager) Create(ctx context.Context, drive *store.Drive, devpath string) (*store.Job, error) {
	job := store.NewJob(devpath, m.now())
	if drive != nil {
		job.DriveID = drive.ID
	}
	created, err := m.store.CreateJob(ctx, job, m.cfg.Snapshot())
	if err != nil {
		return nil, err
	}
	if drive != nil {
		if err := m.store.AcquireDrive(ctx, drive.ID, created.ID); err != nil {
			return nil, err
		}
	}
	m.logger.Info("job created",
		logging.JobID(created.ID),
		logging.Device(created.DevPath),
	)
	return created, nil
}

// Advance applies event and stamps stage (a progress marker; empty keeps
// the previous one).
func (m *Manager) Advance(ctx context.Context, id int64, event store.Event, stage string) (*store.Job, error) {
	if stage == "" {
		stage = store.StageStamp(m.now())
	}
	job, err := m.store.Transition(ctx, id, event, stage)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("job advanced",
		logging.JobID(id),
		logging.String("event", string(event)),
		logging.String("status", string(job.Status)),
	)
	return job, nil
}

// Fail records cause on the job, moves it to fail and releases its drive.
// Failing a job that already finished only records the error.
func (m *Manager) Fail(ctx context.Context, id int64, cause error) (*store.Job, error) {
	if cause != nil {
		if err := m.store.AppendJobError(ctx, id, cause.Error()); err != nil {
			return nil, err
		}
	}
	job, err := m.store.Transition(ctx, id, store.EventFail, store.StageStamp(m.now()))
	if errors.Is(err, store.ErrInvalidTransition) {
		return m.store.MustGetJob(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	m.releaseDrive(ctx, job)
	attrs := []logging.Attr{logging.JobID(id)}
	if cause != nil {
		attrs = append(attrs, logging.Error(cause))
	}
	logging.ErrorWithContext(m.logger, "job failed", "job_failed", attrs...)
	return job, nil
}

// Complete moves an active job to success and releases its drive.
func (m *Manager) Complete(ctx context.Context, id int64) (*store.Job, error) {
	job, err := m.store.Transition(ctx, id, store.EventComplete, store.StageStamp(m.now()))
	if err != nil {
		return nil, err
	}
	m.releaseDrive(ctx, job)
	m.logger.Info("job complete", logging.JobID(id))
	return job, nil
}

// Abandon marks the job failed and terminates its process. The status
// change stands even when the process has already exited.
func (m *Manager) Abandon(ctx context.Context, id int64) (*store.Job, error) {
	job, err := m.store.Transition(ctx, id, store.EventAbandon, store.StageStamp(m.now()))
	if err != nil {
		return nil, err
	}
	if err := m.store.AppendJobError(ctx, id, "job abandoned by user"); err != nil {
		return nil, err
	}
	m.releaseDrive(ctx, job)

	if job.PID > 0 && m.killer != nil {
		err := m.killer.Kill(job.PID, job.PIDHash)
		switch {
		case err == nil:
			m.logger.Info("job process terminated",
				logging.JobID(id),
				logging.Int("pid", job.PID),
			)
		case errors.Is(err, disc.ErrProcessGone):
			m.logger.Info("job process already exited",
				logging.JobID(id),
				logging.Int("pid", job.PID),
			)
		default:
			logging.WarnWithContext(m.logger, "could not terminate job process", "job_kill_failed",
				logging.JobID(id),
				logging.Int("pid", job.PID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "stop the process manually if it is still running"),
				logging.String(logging.FieldImpact, "job is marked failed but its tools may keep running"),
			)
		}
	}
	return m.store.MustGetJob(ctx, id)
}

// Delete removes the job with its tracks and snapshot.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if err := m.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	m.logger.Info("job deleted", logging.JobID(id))
	return nil
}

// UpdateTitle applies an operator correction. Automatic fields keep the
// original guess.
func (m *Manager) UpdateTitle(ctx context.Context, id int64, c store.Correction) (*store.Job, error) {
	c.Title = strings.TrimSpace(c.Title)
	c.Year = strings.TrimSpace(c.Year)
	switch c.VideoType {
	case "", store.VideoMovie, store.VideoSeries, store.VideoUnknown:
	default:
		return nil, services.Wrap(services.ErrValidation, "jobs", "update title",
			fmt.Sprintf("invalid video type %q", c.VideoType), nil)
	}
	if c == (store.Correction{}) {
		return nil, services.Wrap(services.ErrValidation, "jobs", "update title", "nothing to update", nil)
	}
	if err := m.store.ApplyCorrection(ctx, id, c); err != nil {
		return nil, err
	}
	return m.store.MustGetJob(ctx, id)
}

// CommitMetadata runs apply, retrying while the database reports itself
// locked for up to workflow.db_lock_retry_seconds. When the window runs out
// or apply fails any other way, the job is force-failed and the error is
// returned.
func (m *Manager) CommitMetadata(ctx context.Context, id int64, apply func(ctx context.Context) error) error {
	window := time.Duration(m.cfg.Workflow.DBLockRetrySeconds) * time.Second
	deadline := m.now().Add(window)
	attempt := 0
	for {
		attempt++
		err := apply(ctx)
		if err == nil {
			if attempt > 1 {
				m.logger.Info("metadata committed after retries",
					logging.JobID(id),
					logging.Int("attempts", attempt),
				)
			}
			return nil
		}
		if !store.IsBusy(err) {
			m.forceFail(ctx, id, err)
			return err
		}
		if !m.now().Before(deadline) {
			err = fmt.Errorf("%w after %d attempts: %w", ErrLockTimeout, attempt, err)
			m.forceFail(ctx, id, err)
			return err
		}
		m.logger.Debug("database locked, retrying metadata commit",
			logging.JobID(id),
			logging.Int("attempt", attempt),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.lockRetry):
		}
	}
}

func (m *Manager) forceFail(ctx context.Context, id int64, cause error) {
	if _, err := m.Fail(context.WithoutCancel(ctx), id, cause); err != nil {
		logging.WarnWithContext(m.logger, "could not mark job failed", "job_force_fail_failed",
			logging.JobID(id),
			logging.Error(err),
		)
	}
}

// WaitForManualTitle parks an identifying job in waiting for the
// configured manual-wait window so an operator can correct the title. The
// wait ends early as soon as a correction lands. The job returns to
// identifying either way.
func (m *Manager) WaitForManualTitle(ctx context.Context, id int64) (*store.Job, error) {
	settings, err := m.store.JobSettings(ctx, id)
	if err != nil {
		return nil, err
	}
	if !settings.Ripper.ManualWait || settings.Ripper.ManualWaitTime <= 0 {
		return m.store.MustGetJob(ctx, id)
	}
	if _, err := m.Advance(ctx, id, store.EventManualWait, ""); err != nil {
		return nil, err
	}
	m.logger.Info("waiting for manual title",
		logging.JobID(id),
		logging.Int("wait_seconds", settings.Ripper.ManualWaitTime),
	)

	deadline := m.now().Add(time.Duration(settings.Ripper.ManualWaitTime) * time.Second)
	ticker := time.NewTicker(m.manualPoll)
	defer ticker.Stop()
	for m.now().Before(deadline) {
		job, err := m.store.MustGetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status != store.StatusWaiting {
			// Abandoned while waiting.
			return job, nil
		}
		if job.Updated || strings.TrimSpace(job.TitleManual) != "" {
			m.logger.Info("manual title received", logging.JobID(id))
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return m.Advance(ctx, id, store.EventResume, "")
}

func (m *Manager) releaseDrive(ctx context.Context, job *store.Job) {
	if job == nil {
		return
	}
	drive, err := m.store.DriveForJob(ctx, job.ID)
	if errors.Is(err, store.ErrDriveNotFound) {
		return
	}
	if err == nil {
		err = m.store.ReleaseDrive(ctx, drive.ID)
	}
	if err != nil {
		logging.WarnWithContext(m.logger, "could not release drive", "drive_release_failed",
			logging.JobID(job.ID),
			logging.Error(err),
		)
	}
}
