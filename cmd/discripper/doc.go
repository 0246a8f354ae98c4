// Package main hosts the discripper CLI entrypoint and command graph.
//
// The Cobra command tree covers the daemon, the per-job `rip` runner the
// daemon spawns, operator maintenance of jobs, drives and rename batches,
// a live `watch` board, the standalone HTTP API and configuration
// scaffolding. Commands work directly against the SQLite store; the daemon
// does not need to be running for anything except automatic disc handling.
//
// Keep this package lean: behavior lives in the internal packages and the
// commands here only parse flags, call them and render the results.
package main
