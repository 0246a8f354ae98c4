// Package config loads, normalizes, and validates discripper configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OMDB_API_KEY. The Config value is built once per process and handed to each
// component explicitly; the job-scoped sections are frozen per job through
// Snapshot and restored in the job process with WithSnapshot.
package config
