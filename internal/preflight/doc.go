// Package preflight provides readiness checks for the directories, tools
// and services discripper depends on.
//
// The daemon runs RunAll at startup and logs every failed check; the CLI
// "deps" command prints the same results as a table. Checks for optional
// integrations are skipped when the integration is disabled.
package preflight
