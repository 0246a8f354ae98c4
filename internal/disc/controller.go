package disc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandRunner runs an external utility and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// Run executes name with args.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
	if err != nil {
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// EjectMethod selects what the eject utility does with the tray.
type EjectMethod string

const (
	EjectOpen   EjectMethod = "eject"
	EjectClose  EjectMethod = "close"
	EjectToggle EjectMethod = "toggle"
)

// Controller is the set of device side effects used by the job pipeline.
type Controller interface {
	// Mount makes the disc in devpath readable and returns where it lives.
	Mount(ctx context.Context, devpath, mountpoint string) (string, error)
	Unmount(ctx context.Context, mountpoint string) error
	Eject(ctx context.Context, devpath string, method EjectMethod) error
	TrayStatus(devpath string) (TrayStatus, error)
	Properties(ctx context.Context, devpath string) (Properties, error)
	Kill(pid int, fingerprint int64) error
}

var errMountNotFound = errors.New("mount point not found")

// System is the production Controller.
type System struct {
	runner     CommandRunner
	mountsFile string
	procRoot   string
}

// NewSystem builds a controller that shells out through runner. A nil
// runner uses ExecRunner.
func NewSystem(runner CommandRunner) *System {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &System{runner: runner, mountsFile: "/proc/mounts", procRoot: "/proc"}
}

// Mount returns the existing mount point when devpath is already mounted,
// otherwise mounts it read-only at mountpoint.
func (s *System) Mount(ctx context.Context, devpath, mountpoint string) (string, error) {
	existing, err := s.resolveMountPoint(devpath)
	if err != nil && !errors.Is(err, errMountNotFound) {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}
	if err := os.MkdirAll(mountpoint, 0o755); err != nil {
		return "", fmt.Errorf("create mount point %s: %w", mountpoint, err)
	}
	if out, err := s.runner.Run(ctx, "mount", "-o", "ro", devpath, mountpoint); err != nil {
		return "", fmt.Errorf("mount %s: %s: %w", devpath, strings.TrimSpace(string(out)), err)
	}
	return mountpoint, nil
}

// Unmount releases mountpoint. Unmounting something that is not mounted is
// not an error.
func (s *System) Unmount(ctx context.Context, mountpoint string) error {
	if strings.TrimSpace(mountpoint) == "" {
		return nil
	}
	out, err := s.runner.Run(ctx, "umount", mountpoint)
	if err != nil && !strings.Contains(string(out), "not mounted") {
		return fmt.Errorf("umount %s: %w", mountpoint, err)
	}
	return nil
}

// Eject opens, closes or toggles the tray of devpath.
func (s *System) Eject(ctx context.Context, devpath string, method EjectMethod) error {
	args := []string{"--cdrom", "--scsi"}
	switch method {
	case EjectClose:
		args = append(args, "--trayclose")
	case EjectToggle:
		args = append(args, "--traytoggle")
	case EjectOpen, "":
	default:
		return fmt.Errorf("unknown eject method %q", method)
	}
	args = append(args, devpath)
	if out, err := s.runner.Run(ctx, "eject", args...); err != nil {
		return fmt.Errorf("eject %s: %s: %w", devpath, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// TrayStatus queries the drive through the ioctl.
func (s *System) TrayStatus(devpath string) (TrayStatus, error) {
	return ReadTrayStatus(devpath)
}

// Properties returns the udev properties of devpath.
func (s *System) Properties(ctx context.Context, devpath string) (Properties, error) {
	out, err := s.runner.Run(ctx, "udevadm", "info", "--query=property", "--name="+devpath)
	if err != nil {
		return nil, fmt.Errorf("udev properties for %s: %w", devpath, err)
	}
	return ParseProperties(string(out)), nil
}

func (s *System) resolveMountPoint(devpath string) (string, error) {
	f, err := os.Open(s.mountsFile)
	if err != nil {
		return "", fmt.Errorf("open mounts: %w", err)
	}
	defer f.Close()

	requested := canonicalPath(devpath)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if canonicalPath(decodeMountField(fields[0])) == requested {
			return decodeMountField(fields[1]), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read mounts: %w", err)
	}
	return "", errMountNotFound
}

func canonicalPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil && resolved != "" {
		return resolved
	}
	return path
}

var mountFieldReplacer = strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)

func decodeMountField(field string) string {
	return mountFieldReplacer.Replace(field)
}
