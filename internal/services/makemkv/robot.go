package makemkv

import (
	"strconv"
	"strings"
)

// Robot-mode attribute ids used by TINFO, SINFO and CINFO lines.
const (
	attrName        = 2
	attrChapters    = 8
	attrDuration    = 9
	attrSizeBytes   = 11
	attrAspectRatio = 20
	attrFrameRate   = 21
	attrFilename    = 27
)

// Title is one playable title reported by makemkvcon info.
type Title struct {
	ID          int
	Name        string
	Chapters    int
	Duration    int // seconds
	SizeBytes   int64
	Filename    string
	AspectRatio string
	FPS         float64
}

// DiscInfo is the parsed result of an info run.
type DiscInfo struct {
	DriveIndex int
	Label      string
	TitleCount int
	Titles     []Title
}

// protectionTitleCount is the title count authoring-based protection
// schemes inflate DVDs to.
const protectionTitleCount = 99

// CopyProtected reports whether the title count looks like a 99-title
// protection scheme.
func (d *DiscInfo) CopyProtected() bool {
	return d != nil && (d.TitleCount >= protectionTitleCount || len(d.Titles) >= protectionTitleCount)
}

// Longest returns the longest title, or nil.
func (d *DiscInfo) Longest() *Title {
	if d == nil {
		return nil
	}
	var best *Title
	for i := range d.Titles {
		if best == nil || d.Titles[i].Duration > best.Duration {
			best = &d.Titles[i]
		}
	}
	return best
}

// Drive is one DRV line of a disc:9999 listing.
type Drive struct {
	Index  int
	Name   string
	Label  string
	Device string
}

// splitRobotFields splits the payload after "KIND:" on commas outside
// double quotes and strips the quotes.
func splitRobotFields(payload string) []string {
	var fields []string
	var current strings.Builder
	inQuote := false
	for i := 0; i < len(payload); i++ {
		ch := payload[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
		case ch == ',' && !inQuote:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	fields = append(fields, current.String())
	return fields
}

func splitRobotLine(line string) (string, []string, bool) {
	kind, payload, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok || kind == "" {
		return "", nil, false
	}
	return kind, splitRobotFields(payload), true
}

// ParseInfo folds robot output lines into a DiscInfo.
func ParseInfo(lines []string) *DiscInfo {
	info := &DiscInfo{DriveIndex: -1}
	byID := make(map[int]*Title)
	var order []int

	title := func(id int) *Title {
		if t, ok := byID[id]; ok {
			return t
		}
		t := &Title{ID: id}
		byID[id] = t
		order = append(order, id)
		return t
	}

	for _, line := range lines {
		kind, fields, ok := splitRobotLine(line)
		if !ok {
			continue
		}
		switch kind {
		case "TCOUNT":
			if len(fields) > 0 {
				info.TitleCount, _ = strconv.Atoi(strings.TrimSpace(fields[0]))
			}
		case "CINFO":
			if len(fields) >= 3 && atoi(fields[0]) == attrName {
				info.Label = strings.TrimSpace(fields[2])
			}
		case "TINFO":
			if len(fields) < 4 {
				continue
			}
			t := title(atoi(fields[0]))
			value := strings.TrimSpace(fields[3])
			switch atoi(fields[1]) {
			case attrName:
				t.Name = value
			case attrChapters:
				t.Chapters = atoi(value)
			case attrDuration:
				t.Duration = parseDuration(value)
			case attrSizeBytes:
				t.SizeBytes, _ = strconv.ParseInt(value, 10, 64)
			case attrFilename:
				t.Filename = value
			}
		case "SINFO":
			// Only the first stream (video) carries aspect and frame rate.
			if len(fields) < 5 || atoi(fields[1]) != 0 {
				continue
			}
			t := title(atoi(fields[0]))
			value := strings.TrimSpace(fields[4])
			switch atoi(fields[2]) {
			case attrAspectRatio:
				t.AspectRatio = value
			case attrFrameRate:
				if first := strings.Fields(value); len(first) > 0 {
					t.FPS, _ = strconv.ParseFloat(first[0], 64)
				}
			}
		}
	}

	for _, id := range order {
		info.Titles = append(info.Titles, *byID[id])
	}
	return info
}

// ParseDrives extracts the DRV lines of a disc:9999 listing. Empty slots
// (no device path) are skipped.
func ParseDrives(lines []string) []Drive {
	var drives []Drive
	for _, line := range lines {
		kind, fields, ok := splitRobotLine(line)
		if !ok || kind != "DRV" || len(fields) < 7 {
			continue
		}
		device := strings.TrimSpace(fields[6])
		if device == "" {
			continue
		}
		drives = append(drives, Drive{
			Index:  atoi(fields[0]),
			Name:   strings.TrimSpace(fields[4]),
			Label:  strings.TrimSpace(fields[5]),
			Device: device,
		})
	}
	return drives
}

// parseDuration converts H:MM:SS into seconds.
func parseDuration(value string) int {
	parts := strings.Split(strings.TrimSpace(value), ":")
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}

func atoi(value string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(value))
	return n
}

// parseProgress reads a PRGV:current,total,max line into a percentage.
func parseProgress(line string) (float64, bool) {
	payload, ok := strings.CutPrefix(strings.TrimSpace(line), "PRGV:")
	if !ok {
		return 0, false
	}
	parts := strings.Split(payload, ",")
	if len(parts) < 3 {
		return 0, false
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, false
	}
	maximum, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || maximum <= 0 {
		return 0, false
	}
	return total / maximum * 100, true
}
