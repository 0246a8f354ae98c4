package ripper

import (
	"context"
	"fmt"
	"strings"

	"discripper/internal/config"
	"discripper/internal/services"
	"discripper/internal/services/ffmpeg"
	"discripper/internal/services/handbrake"
	"discripper/internal/store"
)

// titleInfo is one title reported by a transcoder scan.
type titleInfo struct {
	Index       int
	Duration    int
	AspectRatio string
	FPS         float64
	MainFeature bool
}

// transcoder hides the HandBrake/FFmpeg difference from the pipeline.
type transcoder interface {
	source() string
	scan(ctx context.Context, input string) ([]titleInfo, error)
	// transcode converts one title of input (0 = the whole input) into output.
	transcode(ctx context.Context, input, output string, title int, mainFeature bool) error
}

func (r *run) transcoder() (transcoder, error) {
	tc := r.settings.Transcode
	switch strings.ToLower(strings.TrimSpace(tc.Backend)) {
	case config.BackendHandBrake:
		client := r.p.handbrake
		if client == nil {
			hb, err := handbrake.New(tc.HandBrakeBinary)
			if err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "ripper", "transcode", "handbrake client unavailable", err)
			}
			client = hb
		}
		preset, args := tc.PresetDVD, tc.ArgsDVD
		if r.job.DiscType == store.DiscBluray {
			preset, args = tc.PresetBD, tc.ArgsBD
		}
		return handbrakeBackend{client: client, preset: preset, args: args}, nil
	case config.BackendFFmpeg:
		client := r.p.ffmpeg
		if client == nil {
			ff, err := ffmpeg.New(tc.FFmpegBinary, tc.FFprobeBinary)
			if err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "ripper", "transcode", "ffmpeg client unavailable", err)
			}
			client = ff
		}
		return ffmpegBackend{client: client, args: tc.FFmpegArgs}, nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "ripper", "transcode",
		fmt.Sprintf("unknown transcode backend %q", tc.Backend), nil)
}

type handbrakeBackend struct {
	client HandBrake
	preset string
	args   string
}

func (h handbrakeBackend) source() string { return store.SourceHandBrake }

func (h handbrakeBackend) scan(ctx context.Context, input string) ([]titleInfo, error) {
	scan, err := h.client.Scan(ctx, input)
	if err != nil {
		return nil, err
	}
	titles := make([]titleInfo, 0, len(scan.Titles))
	for _, t := range scan.Titles {
		titles = append(titles, titleInfo{
			Index:       t.Index,
			Duration:    t.Duration,
			AspectRatio: t.AspectRatio,
			FPS:         t.FPS,
			MainFeature: t.MainFeature,
		})
	}
	return titles, nil
}

func (h handbrakeBackend) transcode(ctx context.Context, input, output string, title int, mainFeature bool) error {
	return h.client.Transcode(ctx, handbrake.TranscodeRequest{
		Input:       input,
		Output:      output,
		Preset:      h.preset,
		Args:        h.args,
		Title:       title,
		MainFeature: mainFeature,
	})
}

type ffmpegBackend struct {
	client FFmpeg
	args   string
}

func (f ffmpegBackend) source() string { return store.SourceFFmpeg }

func (f ffmpegBackend) scan(ctx context.Context, input string) ([]titleInfo, error) {
	probe, err := f.client.Probe(ctx, input)
	if err != nil {
		return nil, err
	}
	titles := make([]titleInfo, 0, len(probe.Titles))
	for _, t := range probe.Titles {
		titles = append(titles, titleInfo{
			Index:       t.Index,
			Duration:    t.Duration,
			AspectRatio: t.AspectRatio,
			FPS:         t.FPS,
			MainFeature: t.MainFeature,
		})
	}
	return titles, nil
}

// transcode maps the selected video stream when a title is named; ffmpeg
// has no notion of disc titles.
func (f ffmpegBackend) transcode(ctx context.Context, input, output string, title int, _ bool) error {
	args := f.args
	if title > 0 {
		args = fmt.Sprintf("-map 0:v:%d -map 0:a? -map 0:s? %s", title-1, args)
	}
	return f.client.Transcode(ctx, ffmpeg.TranscodeRequest{Input: input, Output: output, Args: args})
}
