package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DiscIdentifier is the season, disc and optional episode encoded in a
// disc label.
type DiscIdentifier struct {
	Season  int
	Disc    int
	Episode int
	// HasEpisode distinguishes S1E0D1 from S1D1.
	HasEpisode bool
}

// String renders the identifier without padding, e.g. S1D2 or S1E5D2.
func (d DiscIdentifier) String() string {
	if d.HasEpisode {
		return fmt.Sprintf("S%dE%dD%d", d.Season, d.Episode, d.Disc)
	}
	return fmt.Sprintf("S%dD%d", d.Season, d.Disc)
}

// Padded renders the identifier with two-digit fields, e.g. S01D02.
func (d DiscIdentifier) Padded() string {
	if d.HasEpisode {
		return fmt.Sprintf("S%02dE%02dD%02d", d.Season, d.Episode, d.Disc)
	}
	return fmt.Sprintf("S%02dD%02d", d.Season, d.Disc)
}

// Format renders the identifier padded or not.
func (d DiscIdentifier) Format(zeroPad bool) string {
	if zeroPad {
		return d.Padded()
	}
	return d.String()
}

const (
	sep      = `[\s_.\-]*`
	boundary = `(?:^|[^a-zA-Z])`
)

var (
	seasonEpisodeDiscPattern = regexp.MustCompile(`(?i)` + boundary + `s(\d+)` + sep + `e(\d+)` + sep + `d(\d+)`)
	seasonDiscPattern        = regexp.MustCompile(`(?i)` + boundary + `s(\d+)` + sep + `d(\d+)`)
	seasonDiscWordPattern    = regexp.MustCompile(`(?i)season` + sep + `(\d+)` + sep + `dis[ck]` + sep + `(\d+)`)
	seasonTokenPattern       = regexp.MustCompile(`(?i)` + boundary + `(?:season|s)` + sep + `(\d+)`)
	discTokenPattern         = regexp.MustCompile(`(?i)` + boundary + `(?:disc|disk|d)` + sep + `(\d+)`)
)

// ParseDiscLabel extracts a DiscIdentifier from a raw volume label. It
// accepts S1D1, S01_D02, S1-D1, "S1 D1", S1E1D1, Season1Disc1 and labels
// with the season and disc tokens in separate places. Labels without both
// a season and a disc token report false.
func ParseDiscLabel(label string) (DiscIdentifier, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return DiscIdentifier{}, false
	}
	if m := seasonEpisodeDiscPattern.FindStringSubmatch(label); m != nil {
		return DiscIdentifier{
			Season:     atoi(m[1]),
			Episode:    atoi(m[2]),
			Disc:       atoi(m[3]),
			HasEpisode: true,
		}, true
	}
	if m := seasonDiscPattern.FindStringSubmatch(label); m != nil {
		return DiscIdentifier{Season: atoi(m[1]), Disc: atoi(m[2])}, true
	}
	if m := seasonDiscWordPattern.FindStringSubmatch(label); m != nil {
		return DiscIdentifier{Season: atoi(m[1]), Disc: atoi(m[2])}, true
	}
	season := seasonTokenPattern.FindStringSubmatch(label)
	disc := discTokenPattern.FindStringSubmatch(label)
	if season != nil && disc != nil {
		return DiscIdentifier{Season: atoi(season[1]), Disc: atoi(disc[1])}, true
	}
	return DiscIdentifier{}, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
