package identify

import (
	"context"
	"encoding/xml"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"discripper/internal/config"
	"discripper/internal/logging"
	"discripper/internal/naming"
	"discripper/internal/services"
	"discripper/internal/services/omdb"
	"discripper/internal/store"
)

const blurayMetaPath = "BDMV/META/DL/bdmt_eng.xml"

var (
	nonLetters   = regexp.MustCompile(`[^a-zA-Z ]`)
	trailingSKU  = regexp.MustCompile(`(?i)\s*SKU\s*$`)
	spaceRun     = regexp.MustCompile(`\s+`)
	nonDigits    = regexp.MustCompile(`[^0-9]`)
	bluraySuffix = strings.NewReplacer(
		" - Blu-rayTM", "",
		" Blu-rayTM", "",
		" - BLU-RAYTM", "",
		" - BLU-RAY", "",
		" - Blu-ray", "",
	)
)

// CleanDVDLabel turns a DVD volume label such as "THE_MATRIX_16x9" into a
// lookup query ("THE MATRIX").
func CleanDVDLabel(label string) string {
	label = strings.ReplaceAll(label, "16x9", "")
	label = nonLetters.ReplaceAllString(label, " ")
	label = trailingSKU.ReplaceAllString(label, "")
	return strings.TrimSpace(spaceRun.ReplaceAllString(label, " "))
}

type blurayMeta struct {
	Name string `xml:"discinfo>title>name"`
}

// BlurayTitle reads the disc title and authoring year from the Blu-ray
// metadata file under mountpoint.
func BlurayTitle(mountpoint string) (title, year string, err error) {
	path := filepath.Join(mountpoint, blurayMetaPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	var meta blurayMeta
	if err := xml.Unmarshal(data, &meta); err != nil {
		return "", "", err
	}
	if info, err := os.Stat(path); err == nil {
		year = strconv.Itoa(info.ModTime().Year())
	}
	title = toASCII(meta.Name)
	title = bluraySuffix.Replace(title)
	title = naming.CleanForFilename(title)
	if title == "" {
		return "", year, errors.New("blu-ray metadata has no title")
	}
	return title, year, nil
}

func toASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool { return r > 127 })))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func (i *Identifier) identifyVideo(ctx context.Context, logger *slog.Logger, result *Result, settings config.JobSettings) {
	id := &result.Identity
	if id.Label == "" {
		id.Label = NotIdentified
	}

	query, year := "", ""
	switch id.DiscType {
	case store.DiscBluray:
		title, metaYear, err := BlurayTitle(result.MountPoint)
		if err != nil {
			logger.Debug("blu-ray metadata unavailable", logging.Error(err))
			query = CleanDVDLabel(id.Label)
		} else {
			query, year = title, metaYear
		}
	default:
		query = CleanDVDLabel(id.Label)
	}

	id.Title = id.Label
	if vt := configuredVideoType(settings.Ripper.VideoType); vt != store.VideoUnknown {
		id.VideoType = vt
	}
	if query == "" || strings.EqualFold(query, NotIdentified) {
		return
	}

	match := i.searchTitle(ctx, logger, query, year, settings.Ripper.VideoType)
	if match == nil {
		logger.Info("no title match, using disc label",
			logging.Args(logging.DecisionAttrs("title_source", "label", "lookup found no match for "+query)...)...)
		return
	}
	id.Title = naming.CleanForFilename(match.Title)
	id.Year = firstYear(match.Year)
	id.IMDBID = match.IMDBID
	id.PosterURL = match.PosterURL
	id.HasNiceTitle = true
	if vt := omdbVideoType(match.Type); vt != store.VideoUnknown {
		id.VideoType = vt
	}
}

// searchTitle tries the query, then the year before, then no year, then
// the query cut at its last hyphen, then with trailing words dropped.
func (i *Identifier) searchTitle(ctx context.Context, logger *slog.Logger, title, year, videoType string) *omdb.Result {
	if i.titles == nil {
		return nil
	}
	year = nonDigits.ReplaceAllString(year, "")
	title = strings.TrimSpace(strings.ReplaceAll(title, "_", " "))

	failed := false
	try := func(t, y string) *omdb.Result {
		if failed {
			return nil
		}
		logger.Debug("title lookup", logging.String("query", t), logging.String("year", y))
		res, err := i.titles.Lookup(ctx, t, y, videoType)
		if err != nil {
			failed = true
			hint := "check network access to the metadata provider"
			if errors.Is(err, services.ErrConfiguration) {
				hint = "check metadata.omdb_api_key"
			}
			logging.WarnWithContext(logger, "title lookup failed", "title_lookup_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hint),
				logging.String(logging.FieldImpact, "disc label is used as the title"),
			)
			return nil
		}
		return res
	}

	if res := try(title, year); res != nil {
		return res
	}
	if year != "" {
		if n, err := strconv.Atoi(year); err == nil {
			if res := try(title, strconv.Itoa(n-1)); res != nil {
				return res
			}
		}
		if res := try(title, ""); res != nil {
			return res
		}
	}
	for strings.LastIndex(title, "-") > 0 {
		title = strings.TrimSpace(title[:strings.LastIndex(title, "-")])
		if res := try(title, year); res != nil {
			return res
		}
	}
	for strings.Contains(title, " ") {
		title = strings.TrimSpace(title[:strings.LastIndex(title, " ")])
		if res := try(title, year); res != nil {
			return res
		}
		if year != "" {
			if res := try(title, ""); res != nil {
				return res
			}
		}
	}
	return nil
}

func configuredVideoType(value string) store.VideoType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case config.VideoTypeMovie:
		return store.VideoMovie
	case config.VideoTypeSeries:
		return store.VideoSeries
	}
	return store.VideoUnknown
}

func omdbVideoType(value string) store.VideoType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "movie":
		return store.VideoMovie
	case "series", "episode":
		return store.VideoSeries
	}
	return store.VideoUnknown
}

// firstYear reduces OMDb ranges such as "2008–2013" to the first year.
func firstYear(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 4 {
		if _, err := strconv.Atoi(value[:4]); err == nil {
			return value[:4]
		}
	}
	return value
}
