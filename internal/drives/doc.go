// Package drives keeps the registry of physical optical drives.
//
// Scan enumerates sr* block devices through the udev crawler, Sync folds
// the result into the system_drives table by identity key and then mount
// path, and Acquire/Release move jobs through each drive's current and
// previous slots. Monitor turns netlink media events and tray polling into
// "disc loaded" callbacks for the daemon.
package drives
