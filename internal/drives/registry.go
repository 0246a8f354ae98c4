package drives

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"

	"discripper/internal/disc"
	"discripper/internal/logging"
	"discripper/internal/store"
)

// DriveInfo is one optical drive found by Scan.
type DriveInfo = disc.Hardware

// Enumerator lists candidate optical device paths.
type Enumerator func(ctx context.Context) ([]string, error)

// Option configures a Registry.
type Option func(*Registry)

// WithEnumerator replaces the udev crawler (primarily for tests).
func WithEnumerator(fn Enumerator) Option {
	return func(r *Registry) {
		if fn != nil {
			r.enumerate = fn
		}
	}
}

// Registry coordinates drive records with the hardware present.
type Registry struct {
	store     *store.Store
	ctl       disc.Controller
	logger    *slog.Logger
	enumerate Enumerator
}

// NewRegistry builds a registry backed by st.
func NewRegistry(st *store.Store, ctl disc.Controller, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:     st,
		ctl:       ctl,
		logger:    logging.NewComponentLogger(logger, "drives"),
		enumerate: crawlOpticalDevices,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scan enumerates optical drives. A device whose properties cannot be read
// is logged and skipped; finding no drives is logged but not an error.
func (r *Registry) Scan(ctx context.Context) ([]DriveInfo, error) {
	paths, err := r.enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate block devices: %w", err)
	}

	drives := make([]DriveInfo, 0, len(paths))
	for _, devpath := range paths {
		props, err := r.ctl.Properties(ctx, devpath)
		if err != nil {
			logging.WarnWithContext(r.logger, "skipping drive with unreadable properties", "drive_scan_device_failed",
				logging.Device(devpath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check udevadm info for the device"),
				logging.String(logging.FieldImpact, "drive unavailable until the next scan"),
			)
			continue
		}
		if !props.IsOptical() {
			r.logger.Debug("ignoring non-optical block device", logging.Device(devpath))
			continue
		}
		info := props.Hardware()
		if info.DevPath == "" {
			info.DevPath = devpath
		}
		drives = append(drives, info)
	}

	if len(drives) == 0 {
		logging.WarnWithContext(r.logger, "system drive scan found no optical drives", "drive_scan_empty",
			logging.String(logging.FieldErrorHint, "attach a drive or check permissions on /dev/sr*"),
			logging.String(logging.FieldImpact, "no discs will be detected"),
		)
	} else {
		r.logger.Info("system drive scan complete", logging.Int("drives", len(drives)))
	}
	return drives, nil
}

// SyncOptions tunes Sync.
type SyncOptions struct {
	// Startup clears every drive's rip-backend disc index, which does not
	// survive a restart.
	Startup bool
}

// SyncResult counts what Sync changed.
type SyncResult struct {
	Created       int
	Updated       int
	Stale         int
	MountsCleared int
}

// Sync folds discovered drives into the registry. Each discovered drive
// matches a record by identity key, then by mount path, else a record is
// created. Records absent from the scan become stale; those without an
// active job also lose their mount. A record not matched by this scan that
// shares a mount with a matched one loses its mount.
func (r *Registry) Sync(ctx context.Context, discovered []DriveInfo, opts SyncOptions) (SyncResult, error) {
	var result SyncResult

	existing, err := r.store.ListDrives(ctx)
	if err != nil {
		return result, err
	}

	matched := make(map[int64]bool, len(discovered))
	claimed := make(map[string]int64, len(discovered))
	for _, info := range discovered {
		record := matchDrive(existing, info, matched)
		drive := toDrive(info)
		if record == nil {
			drive.Name = fmt.Sprintf("Drive %d", len(existing)+result.Created+1)
			if _, err := r.store.InsertDrive(ctx, drive); err != nil {
				return result, err
			}
			result.Created++
			r.logger.Info("registered new drive",
				logging.Int64("drive_id", drive.ID),
				logging.Device(drive.Mount),
				logging.String("serial_id", drive.SerialID),
			)
		} else {
			drive.ID = record.ID
			if err := r.store.UpdateDriveHardware(ctx, drive); err != nil {
				return result, err
			}
			if err := r.releaseStale(ctx, record); err != nil {
				return result, err
			}
			result.Updated++
		}
		matched[drive.ID] = true
		if drive.Mount != "" {
			claimed[drive.Mount] = drive.ID
		}
	}

	for _, record := range existing {
		if matched[record.ID] {
			continue
		}
		active, err := r.hasActiveJob(ctx, record)
		if err != nil {
			return result, err
		}
		if !active {
			if err := r.releaseStale(ctx, record); err != nil {
				return result, err
			}
		}
		conflict := record.Mount != "" && claimed[record.Mount] != 0
		clearMount := !active || conflict
		if err := r.store.MarkDriveStale(ctx, record.ID, clearMount); err != nil {
			return result, err
		}
		result.Stale++
		if clearMount && record.Mount != "" {
			result.MountsCleared++
		}
		if conflict {
			r.logger.Info("cleared duplicate mount from unmatched drive",
				append(logging.Args(logging.DecisionAttrs("drive_mount_conflict", "cleared", "mount claimed by a drive found in this scan")...),
					logging.Int64("drive_id", record.ID),
					logging.Device(record.Mount),
				)...,
			)
		}
	}

	if opts.Startup {
		if err := r.store.ClearAllMDisc(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Refresh scans and syncs in one step.
func (r *Registry) Refresh(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	discovered, err := r.Scan(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	return r.Sync(ctx, discovered, opts)
}

func matchDrive(existing []*store.Drive, info DriveInfo, matched map[int64]bool) *store.Drive {
	if key := info.IdentityKey(); key != "" {
		for _, d := range existing {
			if !matched[d.ID] && d.SerialID == key {
				return d
			}
		}
	}
	if info.DevPath != "" {
		for _, d := range existing {
			if !matched[d.ID] && d.Mount == info.DevPath {
				return d
			}
		}
	}
	return nil
}

func toDrive(info DriveInfo) *store.Drive {
	d := &store.Drive{
		Mount:      info.DevPath,
		SerialID:   info.IdentityKey(),
		Maker:      info.Maker,
		Model:      info.Model,
		Serial:     info.Serial,
		Connection: info.Connection,
		Firmware:   info.Firmware,
		Location:   info.Location,
		ReadCD:     info.ReadCD,
		ReadDVD:    info.ReadDVD,
		ReadBD:     info.ReadBD,
		DriveMode:  store.DriveModeAuto,
	}
	d.Type = d.TypeLabel()
	return d
}

// hasActiveJob reports whether the drive's current job is still running.
func (r *Registry) hasActiveJob(ctx context.Context, d *store.Drive) (bool, error) {
	if !d.Busy() {
		return false, nil
	}
	job, err := r.store.GetJob(ctx, *d.JobIDCurrent)
	if err != nil {
		return false, err
	}
	return job != nil && !job.Status.IsTerminal(), nil
}

// releaseStale frees a current slot that points at a finished or deleted
// job. A running job keeps the drive.
func (r *Registry) releaseStale(ctx context.Context, d *store.Drive) error {
	if !d.Busy() {
		return nil
	}
	active, err := r.hasActiveJob(ctx, d)
	if err != nil || active {
		return err
	}
	r.logger.Debug("released finished job from drive",
		logging.Int64("drive_id", d.ID),
		logging.JobID(*d.JobIDCurrent),
	)
	return r.store.ReleaseDrive(ctx, d.ID)
}

// Acquire records jobID as the drive's current job.
func (r *Registry) Acquire(ctx context.Context, driveID, jobID int64) error {
	if err := r.store.AcquireDrive(ctx, driveID, jobID); err != nil {
		return err
	}
	r.logger.Debug("drive acquired", logging.Int64("drive_id", driveID), logging.JobID(jobID))
	return nil
}

// Release clears the drive's current job.
func (r *Registry) Release(ctx context.Context, driveID int64) error {
	return r.store.ReleaseDrive(ctx, driveID)
}

// ForDevice returns the registered drive for devpath.
func (r *Registry) ForDevice(ctx context.Context, devpath string) (*store.Drive, error) {
	return r.store.FindDriveByMount(ctx, devpath)
}

// List returns all registered drives.
func (r *Registry) List(ctx context.Context) ([]*store.Drive, error) {
	return r.store.ListDrives(ctx)
}

// Update applies an operator edit of name, description and mode.
func (r *Registry) Update(ctx context.Context, driveID int64, name, description, mode string) error {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = store.DriveModeAuto
	}
	if mode != store.DriveModeAuto && mode != store.DriveModeManual {
		return fmt.Errorf("invalid drive mode %q (want auto or manual)", mode)
	}
	return r.store.UpdateDriveDetails(ctx, driveID, strings.TrimSpace(name), strings.TrimSpace(description), mode)
}

// Eject operates the tray of a registered drive.
func (r *Registry) Eject(ctx context.Context, driveID int64, method disc.EjectMethod) error {
	d, err := r.store.GetDrive(ctx, driveID)
	if err != nil {
		return err
	}
	if d.Mount == "" {
		return fmt.Errorf("drive %d has no device path", driveID)
	}
	return r.ctl.Eject(ctx, d.Mount, method)
}

// crawlOpticalDevices walks sysfs through the udev crawler and returns
// every sr* device node.
func crawlOpticalDevices(ctx context.Context) ([]string, error) {
	queue := make(chan crawler.Device)
	errs := make(chan error, 1)

	devname := `^sr[0-9]+$`
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{Env: map[string]string{"DEVNAME": devname}})

	quit := crawler.ExistingDevices(queue, errs, rules)
	var paths []string
	for {
		select {
		case <-ctx.Done():
			close(quit)
			return paths, ctx.Err()
		case err := <-errs:
			if err != nil {
				return paths, err
			}
		case device, more := <-queue:
			if !more {
				return paths, nil
			}
			name := strings.TrimSpace(device.Env["DEVNAME"])
			if name == "" {
				continue
			}
			if !strings.HasPrefix(name, "/") {
				name = "/dev/" + name
			}
			paths = append(paths, name)
		}
	}
}
