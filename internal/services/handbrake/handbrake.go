package handbrake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"discripper/internal/services"
)

// Runner executes HandBrakeCLI and returns its combined output.
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

// Client invokes HandBrakeCLI.
type Client struct {
	binary string
	runner Runner
}

// New constructs a client for binary.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("handbrake binary required")
	}
	c := &Client{binary: binary, runner: execRunner{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Title is one title from a scan.
type Title struct {
	Index       int
	Duration    int // seconds
	AspectRatio string
	FPS         float64
	MainFeature bool
}

// Scan is the result of a --scan run.
type Scan struct {
	Titles      []Title
	MainFeature int
}

// MainTitle returns the title HandBrake flagged as the main feature.
func (s *Scan) MainTitle() *Title {
	for i := range s.Titles {
		if s.Titles[i].MainFeature {
			return &s.Titles[i]
		}
	}
	return nil
}

// CopyProtected reports whether the scan shows the 99-title protection
// layout.
func (s *Scan) CopyProtected() bool {
	return s != nil && len(s.Titles) >= 99
}

// Scan lists every title of source. Failures are fatal to the caller:
// later steps depend on the title list.
func (c *Client) Scan(ctx context.Context, source string) (*Scan, error) {
	out, err := c.runner.Output(ctx, c.binary, []string{"-i", source, "-t", "0", "--scan", "--json"})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "handbrake", "scan", "HandBrakeCLI scan failed", toolError(err, out))
	}
	scan, err := ParseScan(out)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "handbrake", "scan", "unreadable HandBrakeCLI scan output", err)
	}
	return scan, nil
}

const titleSetMarker = "JSON Title Set:"

type scanPayload struct {
	MainFeature int `json:"MainFeature"`
	TitleList   []struct {
		Index    int `json:"Index"`
		Duration struct {
			Hours   int `json:"Hours"`
			Minutes int `json:"Minutes"`
			Seconds int `json:"Seconds"`
		} `json:"Duration"`
		FrameRate struct {
			Num int `json:"Num"`
			Den int `json:"Den"`
		} `json:"FrameRate"`
		Geometry struct {
			Width  int `json:"Width"`
			Height int `json:"Height"`
			PAR    struct {
				Num int `json:"Num"`
				Den int `json:"Den"`
			} `json:"PAR"`
		} `json:"Geometry"`
	} `json:"TitleList"`
}

// ParseScan extracts the title set from --scan --json output.
func ParseScan(output []byte) (*Scan, error) {
	idx := bytes.Index(output, []byte(titleSetMarker))
	if idx < 0 {
		return nil, errors.New("no title set in scan output")
	}
	var payload scanPayload
	dec := json.NewDecoder(bytes.NewReader(output[idx+len(titleSetMarker):]))
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode title set: %w", err)
	}

	scan := &Scan{MainFeature: payload.MainFeature}
	for _, t := range payload.TitleList {
		title := Title{
			Index:       t.Index,
			Duration:    t.Duration.Hours*3600 + t.Duration.Minutes*60 + t.Duration.Seconds,
			MainFeature: t.Index == payload.MainFeature,
		}
		if t.FrameRate.Den > 0 {
			title.FPS = float64(t.FrameRate.Num) / float64(t.FrameRate.Den)
		}
		if g := t.Geometry; g.Height > 0 {
			parNum, parDen := g.PAR.Num, g.PAR.Den
			if parNum <= 0 || parDen <= 0 {
				parNum, parDen = 1, 1
			}
			ratio := float64(g.Width*parNum) / float64(g.Height*parDen)
			title.AspectRatio = strconv.FormatFloat(ratio, 'f', 2, 64)
		}
		scan.Titles = append(scan.Titles, title)
	}
	return scan, nil
}

// TranscodeRequest describes one HandBrakeCLI run.
type TranscodeRequest struct {
	Input       string
	Output      string
	Preset      string
	Args        string
	Title       int // 0 leaves title selection to HandBrake
	MainFeature bool
}

// Transcode runs HandBrakeCLI once.
func (c *Client) Transcode(ctx context.Context, req TranscodeRequest) error {
	args := []string{"-i", req.Input, "-o", req.Output}
	switch {
	case req.MainFeature:
		args = append(args, "--main-feature")
	case req.Title > 0:
		args = append(args, "-t", strconv.Itoa(req.Title))
	}
	if preset := strings.TrimSpace(req.Preset); preset != "" {
		args = append(args, "--preset", preset)
	}
	args = append(args, strings.Fields(req.Args)...)

	out, err := c.runner.Output(ctx, c.binary, args)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "handbrake", "transcode",
			fmt.Sprintf("HandBrakeCLI failed for %s", req.Output), toolError(err, out))
	}
	return nil
}

// toolError folds the last lines of tool output into err.
func toolError(err error, out []byte) error {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	tail := strings.TrimSpace(strings.Join(lines, " | "))
	if tail == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, tail)
}
