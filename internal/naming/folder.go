package naming

import (
	"regexp"
	"strings"

	"discripper/internal/config"
	"discripper/internal/store"
)

var (
	bracketed       = regexp.MustCompile(`\[(.*?)\]`)
	filenameUnsafe  = regexp.MustCompile(`[^\w\-.() ]`)
	filenameReplace = strings.NewReplacer(
		" : ", " - ",
		":", "-",
		"&", "and",
		`\`, " - ",
		"/", " - ",
	)
)

// CleanForFilename strips bracketed tags and characters that do not belong
// in a file or folder name.
func CleanForFilename(s string) string {
	s = bracketed.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = filenameReplace.Replace(s)
	s = strings.TrimSpace(s)
	s = filenameUnsafe.ReplaceAllString(s, "")
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ValidYear reports whether year is a usable four-digit year.
func ValidYear(year string) bool {
	year = strings.TrimSpace(year)
	if len(year) != 4 || year == "0000" {
		return false
	}
	for _, r := range year {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// StandardFolderName renders "Title (Year)", or just the title when the
// year is unknown.
func StandardFolderName(title, year string) string {
	title = CleanForFilename(title)
	if title == "" {
		return ""
	}
	if ValidYear(year) {
		return title + " (" + strings.TrimSpace(year) + ")"
	}
	return title
}

// SeriesTitle returns the title a job's series folders are named after:
// the operator's correction when present, otherwise the title.
func SeriesTitle(job *store.Job) string {
	if job == nil {
		return ""
	}
	if t := strings.TrimSpace(job.TitleManual); t != "" {
		return t
	}
	if t := strings.TrimSpace(job.Title); t != "" {
		return t
	}
	return strings.TrimSpace(job.Label)
}

// FolderName is the library folder for a job. Series discs whose label
// carries a season/disc identifier are named <Series>_<S#D#> when the
// ripper enables label-based naming; every other case, including labels
// that do not parse, uses StandardFolderName.
func FolderName(job *store.Job, ripper config.Ripper) string {
	if job == nil {
		return ""
	}
	if ripper.UseDiscLabelForTV && job.IsSeries() {
		if id, ok := ParseDiscLabel(job.Label); ok {
			if series := SeriesTitle(job); series != "" {
				return SeriesFolderName(series, id, StyleUnderscore, false)
			}
		}
	}
	return StandardFolderName(SeriesTitle(job), job.EffectiveYear())
}

// SeriesParentFolder is the folder that groups every disc of a series,
// "Series (Year)" when includeYear is set and the year is known.
func SeriesParentFolder(series, year string, includeYear bool) string {
	series = strings.TrimSpace(series)
	if includeYear && ValidYear(year) {
		series = series + " (" + strings.TrimSpace(year) + ")"
	}
	return SafeFolderComponent(series)
}

var separatorReplacer = strings.NewReplacer("/", "_", `\`, "_")

// SafeFolderComponent replaces path separators so a computed name can
// never introduce a directory level.
func SafeFolderComponent(name string) string {
	return separatorReplacer.Replace(name)
}
