// Package makemkv drives the makemkvcon CLI in robot mode.
//
// Info enumerates the titles of a disc (TINFO/SINFO/CINFO lines) and Rip
// runs either an mkv extraction or a decrypted backup into a directory,
// returning the produced files together with the saved/failed counts that
// MakeMKV reports. The command runner is injectable so tests never need the
// real binary.
package makemkv
