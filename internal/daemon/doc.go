// Package daemon coordinates the long-running discripper process.
//
// It wires configuration, the store, the drive registry and the drive
// monitor into a single lifecycle with flock-based locking to prevent
// multiple instances. Each loaded disc becomes a job record and a separate
// `discripper rip --job <id>` process; the daemon never runs a pipeline
// itself. On start it fails jobs whose process is gone and picks up discs
// already sitting in a drive. When api.bind is set it also hosts the HTTP
// API.
//
// Keep orchestration logic here: the pipeline lives in internal/ripper
// while the daemon focuses on startup, shutdown, and disc detection.
package daemon
