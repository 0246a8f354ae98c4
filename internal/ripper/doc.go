// Package ripper runs the pipeline of a single job: identification, the
// manual title window and then the video, music or data path for the disc.
//
// Video discs go through MakeMKV whenever the rip policy asks for it, are
// transcoded with HandBrake or FFmpeg once a transcode slot is free, and are
// filed into the completed library with the main feature separated from the
// extras. External tools are reached through small interfaces so tests can
// substitute fakes for every binary.
package ripper
