// Package identify decides what kind of disc a job holds and what it is
// called.
//
// Disc type comes from udev (audio track count), then from filesystem
// markers on the mounted disc, and finally from the operator override in
// the job's settings. Video discs get a title lookup against OMDb with a
// fallback sequence of progressively looser queries; music discs are looked
// up on MusicBrainz by disc id. An unidentified disc keeps its volume label
// as its title.
package identify
