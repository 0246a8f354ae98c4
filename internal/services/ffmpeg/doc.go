// Package ffmpeg probes sources with ffprobe and transcodes them with
// ffmpeg. It is the alternative backend to HandBrake.
package ffmpeg
