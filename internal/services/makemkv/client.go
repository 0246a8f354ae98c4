package makemkv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"discripper/internal/logging"
	"discripper/internal/services"
)

// Mode selects between title extraction and a full decrypted backup.
type Mode string

const (
	ModeMKV    Mode = "mkv"
	ModeBackup Mode = "backup"
)

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger attaches a logger for MSG handling.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps makemkvcon.
type Client struct {
	binary     string
	extraArgs  []string
	ripTimeout time.Duration
	exec       Executor
	logger     *slog.Logger
}

// New constructs a MakeMKV client. extraArgs is split on whitespace and
// passed before the subcommand.
func New(binary, extraArgs string, ripTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("makemkv binary required")
	}
	client := &Client{
		binary:     binary,
		extraArgs:  strings.Fields(extraArgs),
		ripTimeout: time.Duration(ripTimeoutSeconds) * time.Second,
		exec:       commandExecutor{},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "makemkv")
	return client, nil
}

func (c *Client) collect(ctx context.Context, args []string) ([]string, error) {
	var lines []string
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		lines = append(lines, line)
	})
	return lines, err
}

// Drives lists the drives makemkvcon can see with their disc indices.
func (c *Client) Drives(ctx context.Context) ([]Drive, error) {
	lines, err := c.collect(ctx, []string{"-r", "--cache=1", "info", "disc:9999"})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "makemkv", "list drives", "makemkvcon drive listing failed", err)
	}
	return ParseDrives(lines), nil
}

// DriveIndex returns the makemkvcon disc index serving devpath.
func (c *Client) DriveIndex(ctx context.Context, devpath string) (int, error) {
	drives, err := c.Drives(ctx)
	if err != nil {
		return -1, err
	}
	for _, d := range drives {
		if d.Device == devpath {
			return d.Index, nil
		}
	}
	return -1, services.Wrap(services.ErrDevice, "makemkv", "list drives", fmt.Sprintf("makemkvcon does not list %s", devpath), nil)
}

// Info enumerates the titles on the disc in devpath. Titles shorter than
// minLength seconds are left out by makemkvcon itself.
func (c *Client) Info(ctx context.Context, devpath string, minLength int) (*DiscInfo, error) {
	args := []string{"-r", "--cache=1", "--messages=-stdout"}
	if minLength > 0 {
		args = append(args, "--minlength="+strconv.Itoa(minLength))
	}
	args = append(args, "info", "dev:"+devpath)
	lines, err := c.collect(ctx, args)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "makemkv", "info", "makemkvcon info failed", err)
	}
	info := ParseInfo(lines)
	c.logger.Info("makemkv disc info",
		logging.Device(devpath),
		logging.Int("title_count", info.TitleCount),
		logging.Int("titles_listed", len(info.Titles)),
	)
	return info, nil
}

// RipRequest describes one rip.
type RipRequest struct {
	Device    string
	Mode      Mode
	DestDir   string
	Titles    []int // empty rips every title
	MinLength int
	Progress  func(percent float64)
}

// RipResult is the typed outcome of a rip.
type RipResult struct {
	OutputDir string
	Files     []string
	Saved     int
	Failed    int
	Messages  string
}

// Rip runs makemkvcon and returns what it produced. A run that writes no
// output files is an error.
func (c *Client) Rip(ctx context.Context, req RipRequest) (*RipResult, error) {
	if strings.TrimSpace(req.DestDir) == "" {
		return nil, services.Wrap(services.ErrValidation, "makemkv", "rip", "destination directory required", nil)
	}
	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if c.ripTimeout > 0 {
		var stop context.CancelFunc
		runCtx, stop = context.WithTimeout(runCtx, c.ripTimeout)
		defer stop()
	}

	tracker := &msgTracker{logger: c.logger, cancel: cancel}
	titles := normalizeTitleIDs(req.Titles)
	batches := [][]int{nil}
	if len(titles) > 0 {
		batches = batches[:0]
		for _, id := range titles {
			batches = append(batches, []int{id})
		}
	}
	if req.Mode == ModeBackup {
		batches = [][]int{nil}
	}

	saved, failed := 0, 0
	for _, batch := range batches {
		args := c.ripArgs(req, batch)
		c.logger.Debug("running makemkvcon", logging.String("args", strings.Join(args, " ")))
		err := c.exec.Run(runCtx, c.binary, args, func(line string) {
			if strings.HasPrefix(line, "MSG:") {
				tracker.handle(line)
				return
			}
			if req.Progress != nil {
				if pct, ok := parseProgress(line); ok {
					req.Progress(pct)
				}
			}
		})
		if tracker.fatal != nil {
			return nil, services.Wrap(services.ErrExternalTool, "makemkv", "rip", "makemkv aborted", tracker.fatal)
		}
		if err != nil {
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				return nil, services.Wrap(services.ErrTimeout, "makemkv", "rip", "makemkv rip timed out", err)
			}
			return nil, services.Wrap(services.ErrExternalTool, "makemkv", "rip", "makemkvcon rip failed", err)
		}
		saved += tracker.saved
		failed += tracker.failed
		tracker.saved, tracker.failed = 0, 0
	}

	files, err := listOutputs(req.DestDir, req.Mode)
	if err != nil {
		return nil, fmt.Errorf("inspect rip outputs: %w", err)
	}
	if len(files) == 0 {
		var detail error
		if summary := tracker.summary(); summary != "" {
			detail = errors.New(summary)
		}
		return nil, services.Wrap(services.ErrExternalTool, "makemkv", "rip",
			"makemkv produced no output; check disc for read errors", detail)
	}
	if !tracker.sawSummary {
		saved = len(files)
	}
	return &RipResult{
		OutputDir: req.DestDir,
		Files:     files,
		Saved:     saved,
		Failed:    failed,
		Messages:  tracker.summary(),
	}, nil
}

func (c *Client) ripArgs(req RipRequest, titles []int) []string {
	args := append([]string(nil), c.extraArgs...)
	if req.Mode == ModeBackup {
		args = append(args, "backup", "--decrypt")
	} else {
		args = append(args, "mkv")
	}
	args = append(args, "-r", "--progress=-same", "--messages=-stdout")
	if req.MinLength > 0 {
		args = append(args, "--minlength="+strconv.Itoa(req.MinLength))
	}
	args = append(args, "dev:"+req.Device)
	if req.Mode != ModeBackup {
		if len(titles) == 0 {
			args = append(args, "all")
		} else {
			args = append(args, strconv.Itoa(titles[0]))
		}
	}
	return append(args, req.DestDir)
}

// listOutputs returns the rip products: .mkv files in mkv mode, every
// regular file beneath the directory in backup mode.
func listOutputs(dir string, mode Mode) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && mode != ModeBackup {
				return filepath.SkipDir
			}
			return nil
		}
		if mode == ModeBackup || strings.EqualFold(filepath.Ext(path), ".mkv") {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	sort.Strings(files)
	return files, err
}

func normalizeTitleIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	uniq := make([]int, 0, len(ids))
	for _, id := range ids {
		if id < 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Ints(uniq)
	return uniq
}
