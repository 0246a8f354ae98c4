package disc

import (
	"context"
	"crypto/sha1" //nolint:gosec
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TOC is the table of contents of an audio CD as reported by cd-discid.
type TOC struct {
	FirstTrack int
	LastTrack  int
	// LeadOut is the lead-out sector offset.
	LeadOut int
	// Offsets holds the start sector of each track, first track first.
	Offsets []int
}

var musicBrainzEncoding = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789._").WithPadding('-')

// MusicBrainzID computes the MusicBrainz disc id of the TOC.
func (t TOC) MusicBrainzID() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%02X%02X%08X", t.FirstTrack, t.LastTrack, t.LeadOut)
	for i := 0; i < 99; i++ {
		offset := 0
		if i < len(t.Offsets) {
			offset = t.Offsets[i]
		}
		fmt.Fprintf(&b, "%08X", offset)
	}
	sum := sha1.Sum([]byte(b.String())) //nolint:gosec
	return musicBrainzEncoding.EncodeToString(sum[:])
}

// ParseMusicBrainzTOC parses `cd-discid --musicbrainz` output: the track
// count, one offset per track and the lead-out offset.
func ParseMusicBrainzTOC(output string) (TOC, error) {
	fields := strings.Fields(output)
	if len(fields) < 3 {
		return TOC{}, errors.New("cd-discid output too short")
	}
	values := make([]int, len(fields))
	for i, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			return TOC{}, fmt.Errorf("cd-discid field %q: %w", field, err)
		}
		values[i] = n
	}
	count := values[0]
	if count < 1 || count > 99 || len(values) != count+2 {
		return TOC{}, fmt.Errorf("cd-discid reported %d tracks but %d offsets", count, len(values)-2)
	}
	return TOC{
		FirstTrack: 1,
		LastTrack:  count,
		Offsets:    values[1 : count+1],
		LeadOut:    values[count+1],
	}, nil
}

// ReadTOC runs cd-discid against devpath.
func ReadTOC(ctx context.Context, runner CommandRunner, binary, devpath string) (TOC, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	if strings.TrimSpace(binary) == "" {
		binary = "cd-discid"
	}
	out, err := runner.Run(ctx, binary, "--musicbrainz", devpath)
	if err != nil {
		return TOC{}, err
	}
	return ParseMusicBrainzTOC(string(out))
}
