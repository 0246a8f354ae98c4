package disc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// ioctlCDROMDriveStatus is the Linux ioctl number for CDROM_DRIVE_STATUS.
const ioctlCDROMDriveStatus = 0x5326

// TrayStatus is the result of a CDROM_DRIVE_STATUS query.
type TrayStatus int

const (
	TrayNoInfo   TrayStatus = 0
	TrayNoDisc   TrayStatus = 1
	TrayOpen     TrayStatus = 2
	TrayNotReady TrayStatus = 3
	TrayDiscOK   TrayStatus = 4
)

func (s TrayStatus) String() string {
	switch s {
	case TrayNoInfo:
		return "no_info"
	case TrayNoDisc:
		return "no_disc"
	case TrayOpen:
		return "tray_open"
	case TrayNotReady:
		return "not_ready"
	case TrayDiscOK:
		return "disc_ok"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Ready reports whether a medium is loaded and readable.
func (s TrayStatus) Ready() bool {
	return s == TrayDiscOK
}

// ReadTrayStatus queries devpath with the CDROM_DRIVE_STATUS ioctl.
func ReadTrayStatus(devpath string) (TrayStatus, error) {
	devpath = strings.TrimSpace(devpath)
	if devpath == "" {
		return TrayNoInfo, fmt.Errorf("empty device path")
	}

	fd, err := unix.Open(devpath, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return TrayNoInfo, fmt.Errorf("open %s: %w", devpath, err)
	}
	defer unix.Close(fd) //nolint:errcheck

	status, err := unix.IoctlRetInt(fd, ioctlCDROMDriveStatus)
	if err != nil {
		return TrayNoInfo, fmt.Errorf("ioctl CDROM_DRIVE_STATUS on %s: %w", devpath, err)
	}
	return TrayStatus(status), nil
}

// WaitForReady polls the drive once per interval until it reports a loaded
// disc, the poll budget runs out or ctx is cancelled.
func WaitForReady(ctx context.Context, ctl Controller, devpath string, polls int, interval time.Duration) (TrayStatus, error) {
	if polls <= 0 {
		polls = 1
	}
	var last TrayStatus
	for i := 0; i < polls; i++ {
		status, err := ctl.TrayStatus(devpath)
		if err != nil {
			return status, err
		}
		last = status
		if status.Ready() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(interval):
		}
	}
	return last, fmt.Errorf("drive %s not ready after %d polls (last status: %s)", devpath, polls, last)
}
