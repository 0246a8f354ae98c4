// Package services defines shared utilities consumed by the job pipeline and
// its external tool and web integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, device paths, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     as device, tool, configuration, or validation problems.
//
// Subpackages wrap individual external tools and web services behind small
// interfaces so the pipeline can be tested with fakes.
package services
