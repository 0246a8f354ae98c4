// Package naming turns disc labels and titles into library folder names.
//
// ParseDiscLabel extracts the season/disc identifier series box sets print
// on their discs (S1D2, Season_01_Disc_02, ...). NormalizeSeriesName makes
// a title safe to embed in a folder name, and FolderName chooses between
// the label-based series layout and the standard "Title (Year)" folder.
package naming
