package handbrake_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"discripper/internal/services"
	"discripper/internal/services/handbrake"
)

const scanOutput = `[12:00:01] hb_init: starting libhb thread
Version: {"Name": "HandBrake"}
Progress: {"State": "SCANNING"}
JSON Title Set: {
    "MainFeature": 2,
    "TitleList": [
        {"Index": 1, "Duration": {"Hours": 0, "Minutes": 2, "Seconds": 5},
         "FrameRate": {"Num": 25, "Den": 1},
         "Geometry": {"Width": 720, "Height": 576, "PAR": {"Num": 64, "Den": 45}}},
        {"Index": 2, "Duration": {"Hours": 1, "Minutes": 30, "Seconds": 0},
         "FrameRate": {"Num": 24000, "Den": 1001},
         "Geometry": {"Width": 1920, "Height": 1080, "PAR": {"Num": 1, "Den": 1}}}
    ]
}
`

type stubRunner struct {
	out  string
	err  error
	args [][]string
}

func (s *stubRunner) Output(_ context.Context, _ string, args []string) ([]byte, error) {
	s.args = append(s.args, args)
	return []byte(s.out), s.err
}

func TestScanParsesTitles(t *testing.T) {
	runner := &stubRunner{out: scanOutput}
	client, err := handbrake.New("HandBrakeCLI", handbrake.WithRunner(runner))
	if err != nil {
		t.Fatal(err)
	}
	scan, err := client.Scan(context.Background(), "/dev/sr0")
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(scan.Titles) != 2 {
		t.Fatalf("expected 2 titles, got %d", len(scan.Titles))
	}
	main := scan.MainTitle()
	if main == nil || main.Index != 2 || main.Duration != 5400 || main.AspectRatio != "1.78" {
		t.Fatalf("unexpected main title: %+v", main)
	}
	if got := scan.Titles[0].AspectRatio; got != "1.78" {
		t.Fatalf("anamorphic aspect = %s", got)
	}
	if scan.CopyProtected() {
		t.Fatal("unexpected copy protection")
	}
	if strings.Join(runner.args[0], " ") != "-i /dev/sr0 -t 0 --scan --json" {
		t.Fatalf("unexpected scan args: %v", runner.args[0])
	}
}

func TestScanFailureIsExternalToolError(t *testing.T) {
	client, _ := handbrake.New("HandBrakeCLI", handbrake.WithRunner(&stubRunner{out: "libdvdnav: fatal", err: errors.New("exit status 3")}))
	_, err := client.Scan(context.Background(), "/dev/sr0")
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "libdvdnav") {
		t.Fatalf("expected tool error with output tail, got %v", err)
	}

	client, _ = handbrake.New("HandBrakeCLI", handbrake.WithRunner(&stubRunner{out: "no json here"}))
	if _, err := client.Scan(context.Background(), "/dev/sr0"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected error for missing title set, got %v", err)
	}
}

func TestTranscodeArgs(t *testing.T) {
	tests := []struct {
		name string
		req  handbrake.TranscodeRequest
		want string
	}{
		{
			name: "main feature",
			req:  handbrake.TranscodeRequest{Input: "/dev/sr0", Output: "/out/Movie.mkv", Preset: "HQ 1080p30 Surround", MainFeature: true},
			want: "-i /dev/sr0 -o /out/Movie.mkv --main-feature --preset HQ 1080p30 Surround",
		},
		{
			name: "single title with args",
			req:  handbrake.TranscodeRequest{Input: "/dev/sr0", Output: "/out/title_3.mkv", Title: 3, Args: "--subtitle scan -F"},
			want: "-i /dev/sr0 -o /out/title_3.mkv -t 3 --subtitle scan -F",
		},
		{
			name: "file input",
			req:  handbrake.TranscodeRequest{Input: "/raw/a.mkv", Output: "/out/a.mkv"},
			want: "-i /raw/a.mkv -o /out/a.mkv",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{}
			client, _ := handbrake.New("HandBrakeCLI", handbrake.WithRunner(runner))
			if err := client.Transcode(context.Background(), tt.req); err != nil {
				t.Fatalf("Transcode returned error: %v", err)
			}
			if got := strings.Join(runner.args[0], " "); got != tt.want {
				t.Fatalf("args = %q, want %q", got, tt.want)
			}
		})
	}
}
