package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"discripper/internal/api"
	"discripper/internal/config"
	"discripper/internal/disc"
	"discripper/internal/drives"
	"discripper/internal/jobs"
	"discripper/internal/logging"
	"discripper/internal/notifications"
	"discripper/internal/rename"
	"discripper/internal/services"
	"discripper/internal/store"
)

// Liveness reports whether pid is still the process recorded with
// fingerprint.
type Liveness func(pid int, fingerprint int64) bool

// Deps carries the daemon's collaborators. Only Store and Controller are
// required.
type Deps struct {
	Store      *store.Store
	Controller disc.Controller
	Notifier   notifications.Service
	Spawner    Spawner
	// Enumerator replaces the udev drive crawler.
	Enumerator drives.Enumerator
	Alive      Liveness
	// DisableNetlink leaves disc detection to tray polling.
	DisableNetlink bool
}

// Daemon watches the optical drives and starts one job process per loaded
// disc. It holds a file lock so only one instance runs per log directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	ctl      disc.Controller
	jobs     *jobs.Manager
	registry *drives.Registry
	monitor  *drives.Monitor
	api      *api.Server
	spawner  Spawner
	alive    Liveness

	lockPath string
	lock     *flock.Flock

	// loadMu serializes disc handling so two events for one drive never
	// create two jobs.
	loadMu  sync.Mutex
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	DatabasePath   string
	LockFilePath   string
	MonitorRunning bool
	APIAddress     string
	ActiveJobs     int
	Drives         int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Controller == nil {
		return nil, errors.New("daemon requires config, store and device controller")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	spawner := deps.Spawner
	if spawner == nil {
		spawner = NewExecSpawner("", "")
	}
	alive := deps.Alive
	if alive == nil {
		alive = processAlive
	}

	var regOpts []drives.Option
	if deps.Enumerator != nil {
		regOpts = append(regOpts, drives.WithEnumerator(deps.Enumerator))
	}
	manager := jobs.NewManager(cfg, deps.Store, deps.Controller, logger)
	registry := drives.NewRegistry(deps.Store, deps.Controller, logger, regOpts...)
	renamer := rename.New(cfg, deps.Store, notifier, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "discripperd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    deps.Store,
		ctl:      deps.Controller,
		jobs:     manager,
		registry: registry,
		spawner:  spawner,
		alive:    alive,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.monitor = drives.NewMonitor(logger, deps.Controller, d.HandleLoaded, drives.MonitorOptions{
		Devices:      d.driveDevices,
		PollInterval: time.Duration(cfg.Workflow.DrivePollInterval) * time.Second,
		Netlink:      !deps.DisableNetlink,
	})
	if strings.TrimSpace(cfg.API.Bind) != "" {
		d.api = api.New(cfg, manager, registry, renamer, logger)
	}
	return d, nil
}

// Start acquires the daemon lock, reconciles state left by a previous run
// and begins watching the drives.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another discripper daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if result, err := d.registry.Refresh(d.ctx, drives.SyncOptions{Startup: true}); err != nil {
		logging.WarnWithContext(d.logger, "startup drive scan failed", "drive_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check udev access and /dev/sr* permissions"),
			logging.String(logging.FieldImpact, "drive registry may be out of date"),
		)
	} else {
		d.logger.Info("drive registry synced",
			logging.Int("created", result.Created),
			logging.Int("updated", result.Updated),
			logging.Int("stale", result.Stale),
		)
	}
	d.reconcileOrphans(d.ctx)

	if err := d.monitor.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start drive monitor: %w", err)
	}
	if d.api != nil {
		if err := d.api.Start(d.ctx); err != nil {
			d.monitor.Stop()
			d.abortStart()
			return err
		}
	}
	d.running.Store(true)
	d.startupScan(d.ctx)
	d.logger.Info("discripper daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop stops watching and releases the daemon lock. Spawned job processes
// keep running.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.monitor.Stop()
	if d.api != nil {
		d.api.Stop()
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("discripper daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Jobs exposes the job service the daemon drives.
func (d *Daemon) Jobs() *jobs.Manager {
	return d.jobs
}

// Registry exposes the drive registry.
func (d *Daemon) Registry() *drives.Registry {
	return d.registry
}

// HandleLoaded starts a job for the disc just loaded in devpath. A drive
// that already runs a job, or is in manual mode, is left alone.
func (d *Daemon) HandleLoaded(ctx context.Context, devpath string) error {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()

	logger := d.logger.With(logging.Device(devpath))
	active, err := d.store.ActiveJobForDevice(ctx, devpath)
	if err != nil {
		return err
	}
	if active != nil {
		logger.Info("disc event ignored",
			append(logging.Args(logging.DecisionAttrs("disc_event", "ignored", "drive already has an active job")...),
				logging.JobID(active.ID))...,
		)
		return nil
	}

	drive, err := d.lookupDrive(ctx, devpath)
	if err != nil {
		return err
	}
	if drive == nil {
		if _, err := d.registry.Refresh(ctx, drives.SyncOptions{}); err != nil {
			return fmt.Errorf("rescan drives: %w", err)
		}
		if drive, err = d.lookupDrive(ctx, devpath); err != nil {
			return err
		}
		if drive == nil {
			logging.WarnWithContext(logger, "disc loaded in unregistered drive", "drive_unregistered",
				logging.String(logging.FieldImpact, "job runs without a drive record"),
				logging.String(logging.FieldErrorHint, "run `discripper drives scan` and check udev permissions"),
			)
		}
	}
	if drive != nil && drive.DriveMode == store.DriveModeManual {
		logger.Info("disc event ignored",
			logging.Args(logging.DecisionAttrs("disc_event", "ignored", "drive is in manual mode")...)...)
		return nil
	}

	job, err := d.jobs.Create(ctx, drive, devpath)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	pid, err := d.spawner.Spawn(ctx, job.ID)
	if err != nil {
		cause := services.Wrap(services.ErrExternalTool, "daemon", "spawn job", "could not start job process", err)
		if _, ferr := d.jobs.Fail(ctx, job.ID, cause); ferr != nil {
			return errors.Join(cause, ferr)
		}
		return cause
	}
	logger.Info("job process started",
		logging.JobID(job.ID),
		logging.Int("pid", pid),
	)
	return nil
}

// lookupDrive returns the registered drive for devpath, or nil when the
// device is not registered yet.
func (d *Daemon) lookupDrive(ctx context.Context, devpath string) (*store.Drive, error) {
	drive, err := d.registry.ForDevice(ctx, devpath)
	if errors.Is(err, store.ErrDriveNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up drive: %w", err)
	}
	return drive, nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		DatabasePath:   d.cfg.DatabasePath(),
		LockFilePath:   d.lockPath,
		MonitorRunning: d.monitor.Running(),
	}
	if d.api != nil {
		status.APIAddress = d.api.Addr()
	}
	if n, err := d.store.CountByStatus(ctx, store.ActiveStatuses()...); err == nil {
		status.ActiveJobs = n
	}
	if list, err := d.registry.List(ctx); err == nil {
		status.Drives = len(list)
	}
	return status
}

// driveDevices lists the device paths of drives present in the last scan.
func (d *Daemon) driveDevices(ctx context.Context) ([]string, error) {
	list, err := d.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(list))
	for _, drive := range list {
		if drive.Mount != "" && !drive.Stale {
			paths = append(paths, drive.Mount)
		}
	}
	return paths, nil
}

// startupScan handles discs already sitting in a drive when the daemon
// starts; the monitor only reacts to changes.
func (d *Daemon) startupScan(ctx context.Context) {
	devices, err := d.driveDevices(ctx)
	if err != nil {
		return
	}
	for _, devpath := range devices {
		status, err := d.ctl.TrayStatus(devpath)
		if err != nil || !status.Ready() {
			continue
		}
		if err := d.HandleLoaded(ctx, devpath); err != nil {
			logging.WarnWithContext(d.logger, "disc present at startup not processed", "startup_disc_failed",
				logging.Device(devpath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "eject and reinsert the disc to retry"),
			)
		}
	}
}

// reconcileOrphans fails jobs whose process ended without recording a
// terminal status, which frees their drives for the next disc.
func (d *Daemon) reconcileOrphans(ctx context.Context) {
	list, err := d.store.ListJobs(ctx, store.ActiveStatuses()...)
	if err != nil {
		logging.WarnWithContext(d.logger, "could not list unfinished jobs", "orphan_scan_failed", logging.Error(err))
		return
	}
	for _, job := range list {
		if job.PID > 0 && d.alive(job.PID, job.PIDHash) {
			continue
		}
		cause := services.Wrap(services.ErrTransient, "daemon", "reconcile", "job process is no longer running", nil)
		if _, err := d.jobs.Fail(ctx, job.ID, cause); err != nil {
			logging.WarnWithContext(d.logger, "could not fail orphaned job", "orphan_fail_failed",
				logging.JobID(job.ID),
				logging.Error(err),
			)
			continue
		}
		d.logger.Info("orphaned job failed",
			logging.JobID(job.ID),
			logging.String("status", string(job.Status)),
			logging.Int("pid", job.PID),
		)
	}
}

func processAlive(pid int, fingerprint int64) bool {
	current, err := disc.ProcessFingerprint(pid)
	if err != nil {
		return false
	}
	return fingerprint == 0 || current == fingerprint
}
