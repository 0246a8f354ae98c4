// Package abcde rips audio CDs with the abcde script.
package abcde

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"discripper/internal/services"
)

// Runner executes abcde and returns its combined output.
type Runner interface {
	Output(ctx context.Context, binary string, args []string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, binary string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).CombinedOutput() //nolint:gosec
}

// Option configures a Client.
type Option func(*Client)

// WithRunner injects a runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.runner = r
		}
	}
}

// Client invokes abcde.
type Client struct {
	binary     string
	configPath string
	runner     Runner
}

// New constructs a client. configPath may be empty to use abcde's own lookup.
func New(binary, configPath string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("abcde binary required")
	}
	c := &Client{binary: binary, configPath: strings.TrimSpace(configPath), runner: execRunner{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Result lists the audio files a rip added beneath the output directory.
type Result struct {
	Files  []string
	Output string
}

var audioExtensions = map[string]bool{
	".flac": true, ".mp3": true, ".ogg": true, ".opus": true, ".m4a": true, ".wav": true, ".aiff": true,
}

// Rip runs abcde non-interactively against devpath. The files it adds to
// outputDir are reported; a rip that adds none is an error.
func (c *Client) Rip(ctx context.Context, devpath, outputDir string) (*Result, error) {
	before, err := audioFiles(outputDir)
	if err != nil {
		return nil, fmt.Errorf("list music directory: %w", err)
	}

	args := []string{"-N", "-d", devpath}
	if c.configPath != "" {
		args = append(args, "-c", c.configPath)
	}
	out, err := c.runner.Output(ctx, c.binary, args)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "abcde", "rip", "abcde failed",
			fmt.Errorf("%w: %s", err, lastLine(out)))
	}

	after, err := audioFiles(outputDir)
	if err != nil {
		return nil, fmt.Errorf("list music directory: %w", err)
	}
	result := &Result{Output: string(out)}
	for path := range after {
		if !before[path] {
			result.Files = append(result.Files, path)
		}
	}
	sort.Strings(result.Files)
	if len(result.Files) == 0 {
		return result, services.Wrap(services.ErrExternalTool, "abcde", "rip", "abcde produced no audio files", nil)
	}
	return result, nil
}

func audioFiles(root string) (map[string]bool, error) {
	files := make(map[string]bool)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() && audioExtensions[strings.ToLower(filepath.Ext(path))] {
			files[path] = true
		}
		return nil
	})
	return files, err
}

func lastLine(out []byte) string {
	text := strings.TrimSpace(string(out))
	if i := strings.LastIndex(text, "\n"); i >= 0 {
		return text[i+1:]
	}
	return text
}
