package disc

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	// ErrProcessGone reports that the recorded process no longer exists.
	ErrProcessGone = errors.New("process not found")
	// ErrProcessMismatch reports that the pid now belongs to another program.
	ErrProcessMismatch = errors.New("process fingerprint mismatch")
)

// ProcessFingerprint identifies a running process by hashing its command
// line and start time, so a recycled pid is never mistaken for the job.
func ProcessFingerprint(pid int) (int64, error) {
	return processFingerprint("/proc", pid)
}

func processFingerprint(procRoot string, pid int) (int64, error) {
	base := filepath.Join(procRoot, strconv.Itoa(pid))
	cmdline, err := os.ReadFile(filepath.Join(base, "cmdline"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrProcessGone
		}
		return 0, fmt.Errorf("read cmdline for %d: %w", pid, err)
	}
	stat, err := os.ReadFile(filepath.Join(base, "stat"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrProcessGone
		}
		return 0, fmt.Errorf("read stat for %d: %w", pid, err)
	}
	h := fnv.New64a()
	_, _ = h.Write(cmdline)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(startTimeField(string(stat))))
	return int64(h.Sum64() >> 1), nil
}

// startTimeField returns field 22 of /proc/<pid>/stat. The command name in
// field 2 may contain spaces, so fields are counted after its closing paren.
func startTimeField(stat string) string {
	idx := strings.LastIndexByte(stat, ')')
	if idx < 0 {
		return ""
	}
	fields := strings.Fields(stat[idx+1:])
	// fields[0] is field 3 (state); field 22 is at index 19.
	if len(fields) < 20 {
		return ""
	}
	return fields[19]
}

// Kill sends SIGTERM to pid after checking its fingerprint. A zero
// fingerprint skips the check.
func (s *System) Kill(pid int, fingerprint int64) error {
	if pid <= 0 {
		return ErrProcessGone
	}
	if fingerprint != 0 {
		current, err := processFingerprint(s.procRoot, pid)
		if err != nil {
			return err
		}
		if current != fingerprint {
			return fmt.Errorf("%w: pid %d", ErrProcessMismatch, pid)
		}
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return ErrProcessGone
		}
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	return nil
}
