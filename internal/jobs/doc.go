// Package jobs is the service layer over job rows.
//
// The store validates status changes; Manager adds the side effects that go
// with them: drive acquire and release, process termination on abandon, the
// bounded retry used when metadata commits hit a locked database, and the
// operator manual-wait window.
package jobs
