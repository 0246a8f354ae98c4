// Package rename renames the library folders of finished TV-series disc
// jobs after their disc labels (Show_S1D2) in three explicit phases.
//
// Preview validates the selection, groups the jobs into series and
// computes every destination path without touching the filesystem.
// Execute recomputes the preview, moves each folder on its own and writes
// one audit row per item to batch_rename_history. Rollback reverses the
// successful rows of a batch, newest first.
//
// Every source and destination must resolve inside the completed-media
// root; paths with parent traversal or that escape through a symlink are
// reported as ValidationError values and never moved.
package rename
