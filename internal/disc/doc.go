// Package disc talks to optical drives and the discs loaded in them.
//
// It owns every OS-level side effect the job pipeline needs: tray status
// through the CDROM_DRIVE_STATUS ioctl, mounting and ejecting through the
// system utilities, udev property lookups, filesystem marker inspection,
// MusicBrainz disc id computation and fingerprint-checked process kills.
// Callers depend on the Controller interface so the state machine can be
// exercised without a real drive.
package disc
