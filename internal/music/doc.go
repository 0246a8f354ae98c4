// Package music reads the tags abcde writes into ripped audio files.
//
// FLAC files are read through go-flac (Vorbis comments, picture blocks and
// the stream info duration); MP3 files through id3v2. The orchestrator uses
// the result to record one Track per audio file and to drop the embedded
// cover next to the album as folder.jpg.
package music
