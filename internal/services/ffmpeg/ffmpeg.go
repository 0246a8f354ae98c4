package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"discripper/internal/services"
)

// Runner executes a binary and returns its output.
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

// Client wraps ffmpeg and ffprobe.
type Client struct {
	ffmpeg  string
	ffprobe string
	runner  Runner
}

// New constructs a client.
func New(ffmpegBinary, ffprobeBinary string, opts ...Option) (*Client, error) {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	ffprobeBinary = strings.TrimSpace(ffprobeBinary)
	if ffmpegBinary == "" || ffprobeBinary == "" {
		return nil, errors.New("ffmpeg and ffprobe binaries required")
	}
	c := &Client{ffmpeg: ffmpegBinary, ffprobe: ffprobeBinary, runner: execRunner{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Title is one video stream treated as a title.
type Title struct {
	Index       int
	Duration    int
	AspectRatio string
	FPS         float64
	MainFeature bool
}

// Probe is the parsed ffprobe result.
type Probe struct {
	Duration int
	Titles   []Title
}

type probePayload struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		Duration     string `json:"duration"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// Probe inspects source. Each video stream becomes a title; the longest is
// flagged as the main feature. A source without video streams yields one
// title spanning the container.
func (c *Client) Probe(ctx context.Context, source string) (*Probe, error) {
	args := []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams", source}
	out, err := c.runner.Output(ctx, c.ffprobe, args)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "probe", "ffprobe failed", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))))
	}
	probe, err := ParseProbe(out)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "probe", "unreadable ffprobe output", err)
	}
	return probe, nil
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(data []byte) (*Probe, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode ffprobe json: %w", err)
	}
	probe := &Probe{Duration: seconds(payload.Format.Duration)}

	main, longest := -1, -1
	for _, s := range payload.Streams {
		if s.CodecType != "video" {
			continue
		}
		title := Title{Index: len(probe.Titles) + 1, Duration: seconds(s.Duration)}
		if title.Duration == 0 {
			title.Duration = probe.Duration
		}
		rate := s.RFrameRate
		if rate == "" || rate == "0/0" {
			rate = s.AvgFrameRate
		}
		title.FPS = frameRate(rate)
		if s.Width > 0 && s.Height > 0 {
			title.AspectRatio = strconv.FormatFloat(float64(s.Width)/float64(s.Height), 'f', 2, 64)
		}
		if title.Duration > longest {
			main, longest = len(probe.Titles), title.Duration
		}
		probe.Titles = append(probe.Titles, title)
	}
	if len(probe.Titles) == 0 {
		probe.Titles = []Title{{Index: 1, Duration: probe.Duration}}
		return probe, nil
	}
	probe.Titles[main].MainFeature = true
	return probe, nil
}

// MainTitle returns the flagged main title.
func (p *Probe) MainTitle() *Title {
	for i := range p.Titles {
		if p.Titles[i].MainFeature {
			return &p.Titles[i]
		}
	}
	return nil
}

func seconds(value string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return int(f)
}

func frameRate(value string) float64 {
	num, den, ok := strings.Cut(value, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return math.Round(n/d*1000) / 1000
}

// TranscodeRequest describes one ffmpeg run.
type TranscodeRequest struct {
	Input  string
	Output string
	Args   string
}

// Transcode runs ffmpeg -i input <args> output.
func (c *Client) Transcode(ctx context.Context, req TranscodeRequest) error {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", req.Input}
	args = append(args, strings.Fields(req.Args)...)
	args = append(args, req.Output)
	out, err := c.runner.Output(ctx, c.ffmpeg, args)
	if err != nil {
		tail := strings.TrimSpace(string(out))
		if i := strings.LastIndex(tail, "\n"); i >= 0 {
			tail = tail[i+1:]
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "transcode",
			fmt.Sprintf("ffmpeg failed for %s", req.Output), fmt.Errorf("%w: %s", err, tail))
	}
	return nil
}
