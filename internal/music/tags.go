package music

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	flac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
)

// ErrUnsupported reports an audio container the package cannot read.
var ErrUnsupported = errors.New("unsupported audio format")

// Tags is what a ripped audio file says about itself.
type Tags struct {
	Number   int
	Title    string
	Artist   string
	Album    string
	Year     string
	Duration int // seconds, zero when unknown
}

// Picture is an embedded cover image.
type Picture struct {
	MIME string
	Data []byte
}

// Ext returns the file extension matching the image type.
func (p Picture) Ext() string {
	if strings.Contains(p.MIME, "png") {
		return ".png"
	}
	return ".jpg"
}

// ReadTags reads the tags of path. Files without tags fall back to the
// track number and title encoded in the abcde file name ("01.Title.flac").
func ReadTags(path string) (Tags, error) {
	var (
		tags Tags
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		tags, _, err = readFLAC(path, false)
	case ".mp3":
		tags, _, err = readMP3(path, false)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	if err != nil && !errors.Is(err, ErrUnsupported) {
		return Tags{}, err
	}
	fallback := tagsFromName(path)
	if tags.Number == 0 {
		tags.Number = fallback.Number
	}
	if tags.Title == "" {
		tags.Title = fallback.Title
	}
	return tags, nil
}

// ReadPicture returns the front cover embedded in path, or nil when there
// is none.
func ReadPicture(path string) (*Picture, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		_, pic, err := readFLAC(path, true)
		return pic, err
	case ".mp3":
		_, pic, err := readMP3(path, true)
		return pic, err
	}
	return nil, nil
}

// readFLAC reads only the metadata blocks; the audio frames are never
// needed and may be absent in a file cut short.
func readFLAC(path string, wantPicture bool) (tags Tags, pic *Picture, err error) {
	defer func() {
		if r := recover(); r != nil {
			tags, pic, err = Tags{}, nil, fmt.Errorf("parse flac %s: malformed file: %v", filepath.Base(path), r)
		}
	}()
	f, err := os.Open(path)
	if err != nil {
		return Tags{}, nil, fmt.Errorf("parse flac %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	file, err := flac.ParseMetadata(f)
	if err != nil {
		return Tags{}, nil, fmt.Errorf("parse flac %s: %w", filepath.Base(path), err)
	}

	var front bool
	for _, block := range file.Meta {
		switch block.Type {
		case flac.StreamInfo:
			tags.Duration = streamSeconds(block.Data)
		case flac.VorbisComment:
			cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				return Tags{}, nil, fmt.Errorf("parse vorbis comment: %w", err)
			}
			tags.Title = firstComment(cmt, flacvorbis.FIELD_TITLE)
			tags.Artist = firstComment(cmt, flacvorbis.FIELD_ARTIST)
			tags.Album = firstComment(cmt, flacvorbis.FIELD_ALBUM)
			tags.Year = yearOf(firstComment(cmt, flacvorbis.FIELD_DATE))
			tags.Number = trackNumber(firstComment(cmt, flacvorbis.FIELD_TRACKNUMBER))
		case flac.Picture:
			if !wantPicture || front {
				continue
			}
			p, err := flacpicture.ParseFromMetaDataBlock(*block)
			if err != nil {
				return Tags{}, nil, fmt.Errorf("parse picture: %w", err)
			}
			front = p.PictureType == flacpicture.PictureTypeFrontCover
			if front || pic == nil {
				pic = &Picture{MIME: p.MIME, Data: p.ImageData}
			}
		}
	}
	return tags, pic, nil
}

func firstComment(cmt *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	values, err := cmt.Get(field)
	if err != nil || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// streamSeconds decodes the sample rate (20 bits) and total sample count
// (36 bits) packed into bytes 10-17 of a STREAMINFO block.
func streamSeconds(data []byte) int {
	if len(data) < 18 {
		return 0
	}
	packed := binary.BigEndian.Uint64(data[10:18])
	rate := packed >> 44
	samples := packed & (1<<36 - 1)
	if rate == 0 {
		return 0
	}
	return int(samples / rate)
}

func readMP3(path string, wantPicture bool) (Tags, *Picture, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Tags{}, nil, fmt.Errorf("open mp3 %s: %w", filepath.Base(path), err)
	}
	defer tag.Close()

	tags := Tags{
		Title:  strings.TrimSpace(tag.Title()),
		Artist: strings.TrimSpace(tag.Artist()),
		Album:  strings.TrimSpace(tag.Album()),
		Year:   yearOf(tag.Year()),
		Number: trackNumber(tag.GetTextFrame(tag.CommonID("Track number/Position in set")).Text),
	}
	if !wantPicture {
		return tags, nil, nil
	}
	var pic *Picture
	for _, frame := range tag.GetFrames(tag.CommonID("Attached picture")) {
		pf, ok := frame.(id3v2.PictureFrame)
		if !ok {
			continue
		}
		if pf.PictureType == id3v2.PTFrontCover {
			return tags, &Picture{MIME: pf.MimeType, Data: pf.Picture}, nil
		}
		if pic == nil {
			pic = &Picture{MIME: pf.MimeType, Data: pf.Picture}
		}
	}
	return tags, pic, nil
}

// trackNumber parses "3" or "3/12".
func trackNumber(value string) int {
	value, _, _ = strings.Cut(strings.TrimSpace(value), "/")
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func yearOf(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 4 {
		if _, err := strconv.Atoi(value[:4]); err == nil {
			return value[:4]
		}
	}
	return ""
}

// tagsFromName reads abcde's default "NN.Title.ext" output naming.
func tagsFromName(path string) Tags {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix, rest, ok := strings.Cut(base, ".")
	if !ok {
		prefix, rest, ok = strings.Cut(base, " - ")
	}
	if ok {
		if n, err := strconv.Atoi(strings.TrimSpace(prefix)); err == nil {
			return Tags{Number: n, Title: strings.TrimSpace(strings.ReplaceAll(rest, "_", " "))}
		}
	}
	return Tags{Title: base}
}
