package naming

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRun     = regexp.MustCompile(`\s+`)
	seriesUnsafeChars = regexp.MustCompile(`[^A-Za-z0-9_\-()]`)
)

// stripAccents folds accented letters to their base form (é -> e).
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeSeriesName converts a title into a folder-safe token:
// accents are folded to ASCII, whitespace runs become one underscore,
// anything other than letters, digits, underscore, hyphen and parentheses
// is dropped, and surrounding underscores are trimmed. Applying it twice
// gives the same result.
func NormalizeSeriesName(name string) string {
	name = strings.TrimSpace(stripAccents(name))
	if name == "" {
		return ""
	}
	name = whitespaceRun.ReplaceAllString(name, "_")
	name = seriesUnsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "_")
}

// Style selects how a series folder name joins its words.
type Style string

const (
	StyleUnderscore Style = "underscore"
	StyleDash       Style = "dash"
	StyleSpace      Style = "space"
)

// ParseStyle maps user input onto a Style. Empty selects underscore;
// "hyphen" is accepted for dash.
func ParseStyle(value string) (Style, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(StyleUnderscore):
		return StyleUnderscore, true
	case string(StyleDash), "hyphen":
		return StyleDash, true
	case string(StyleSpace):
		return StyleSpace, true
	}
	return StyleUnderscore, false
}

func (s Style) separator() string {
	switch s {
	case StyleDash:
		return "-"
	case StyleSpace:
		return " "
	default:
		return "_"
	}
}

// SeriesFolderName joins a normalized series name and disc identifier in
// the given style, e.g. Breaking_Bad_S1D1, breaking-bad-S1D1 or
// "Breaking Bad S01D01" with padding. The dash style lowercases the series
// name; the disc token keeps its case.
func SeriesFolderName(series string, id DiscIdentifier, style Style, zeroPad bool) string {
	normalized := NormalizeSeriesName(series)
	sep := style.separator()
	if sep != "_" {
		normalized = strings.ReplaceAll(normalized, "_", sep)
	}
	if style == StyleDash {
		normalized = strings.ToLower(normalized)
	}
	token := id.Format(zeroPad)
	if normalized == "" {
		return token
	}
	return normalized + sep + token
}
