// Package handbrake wraps HandBrakeCLI title scans and transcodes.
package handbrake
