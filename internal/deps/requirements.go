package deps

import (
	"strings"

	"discripper/internal/config"
)

// Requirements lists the external tools the configured pipeline invokes.
// Tools only needed for audio CDs or a backend that is not selected are
// marked optional.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	reqs := []Requirement{
		{Name: "MakeMKV", Command: cfg.MakeMKV.Binary, Description: "Rips DVD and Blu-ray titles", Hint: "install makemkv-bin and makemkv-oss, or set makemkv.binary"},
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Transcode.Backend))
	reqs = append(reqs,
		Requirement{
			Name:        "HandBrake",
			Command:     cfg.Transcode.HandBrakeBinary,
			Description: "Transcodes ripped titles",
			Hint:        "install HandBrakeCLI, or set transcode.handbrake_binary",
			Optional:    backend != config.BackendHandBrake,
		},
		Requirement{
			Name:        "FFmpeg",
			Command:     cfg.Transcode.FFmpegBinary,
			Description: "Transcodes ripped titles",
			Hint:        "install ffmpeg, or set transcode.ffmpeg_binary",
			Optional:    backend != config.BackendFFmpeg,
		},
		Requirement{
			Name:        "FFprobe",
			Command:     cfg.Transcode.FFprobeBinary,
			Description: "Probes title streams for the FFmpeg backend",
			Hint:        "ships with ffmpeg; set transcode.ffprobe_binary if it lives elsewhere",
			Optional:    backend != config.BackendFFmpeg,
		},
		Requirement{Name: "abcde", Command: cfg.Music.AbcdeBinary, Description: "Rips audio CDs", Hint: "install abcde", Optional: true},
		Requirement{Name: "discid", Command: cfg.Music.DiscIDBinary, Description: "Computes MusicBrainz disc ids", Hint: "install libdiscid tools", Optional: true},
		Requirement{Name: "eject", Command: "eject", Description: "Opens and closes drive trays", Hint: "install util-linux"},
		Requirement{Name: "mount", Command: "mount", Description: "Mounts data discs for identification", Hint: "install util-linux"},
		Requirement{Name: "udevadm", Command: "udevadm", Description: "Reads disc properties from udev", Hint: "install systemd-udev"},
		Requirement{Name: "lsblk", Command: "lsblk", Description: "Reads disc labels when udev has none", Hint: "install util-linux", Optional: true},
	)
	return reqs
}
