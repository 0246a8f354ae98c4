package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// Spawner starts the process that runs one job's pipeline.
type Spawner interface {
	Spawn(ctx context.Context, jobID int64) (int, error)
}

// ExecSpawner re-executes the discripper binary as `rip --job <id>` in its
// own session, so the job outlives a daemon restart.
type ExecSpawner struct {
	binary     string
	configPath string
}

// NewExecSpawner builds a spawner. An empty binary means the running
// executable; an empty configPath lets the child use the default search.
func NewExecSpawner(binary, configPath string) *ExecSpawner {
	return &ExecSpawner{binary: binary, configPath: configPath}
}

// Spawn starts the job process and returns its pid. The child is reaped in
// the background.
func (s *ExecSpawner) Spawn(_ context.Context, jobID int64) (int, error) {
	binary := s.binary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return 0, fmt.Errorf("resolve executable: %w", err)
		}
		binary = exe
	}
	cmd := exec.Command(binary, s.args(jobID)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", binary, err)
	}
	go func() { _ = cmd.Wait() }()
	return cmd.Process.Pid, nil
}

func (s *ExecSpawner) args(jobID int64) []string {
	args := []string{"rip", "--job", strconv.FormatInt(jobID, 10)}
	if s.configPath != "" {
		args = append(args, "--config", s.configPath)
	}
	return args
}
