package music_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	flac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"

	"discripper/internal/music"
	"discripper/internal/store"
)

func streamInfo(rate, seconds uint64) *flac.MetaDataBlock {
	data := make([]byte, 34)
	binary.BigEndian.PutUint16(data[0:2], 4096)
	binary.BigEndian.PutUint16(data[2:4], 4096)
	packed := rate<<44 | 1<<41 | 15<<36 | rate*seconds
	binary.BigEndian.PutUint64(data[10:18], packed)
	return &flac.MetaDataBlock{Type: flac.StreamInfo, Data: data}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeFLAC(t *testing.T, path string, comments map[string]string, cover []byte) {
	t.Helper()
	file := &flac.File{Meta: []*flac.MetaDataBlock{streamInfo(44100, 215)}}

	cmt := flacvorbis.New()
	for key, value := range comments {
		if err := cmt.Add(key, value); err != nil {
			t.Fatal(err)
		}
	}
	block := cmt.Marshal()
	file.Meta = append(file.Meta, &block)

	if cover != nil {
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front", cover, "image/png")
		if err != nil {
			t.Fatal(err)
		}
		picBlock := pic.Marshal()
		file.Meta = append(file.Meta, &picBlock)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := file.Save(path); err != nil {
		t.Fatalf("save flac: %v", err)
	}
}

func writeMP3(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("not really mpeg audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatal(err)
	}
	defer tag.Close()
	tag.SetTitle("Karma Police")
	tag.SetArtist("Radiohead")
	tag.SetAlbum("OK Computer")
	tag.SetYear("1997")
	tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), "6/12")
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Front",
		Picture:     []byte{0xff, 0xd8, 0xff},
	})
	if err := tag.Save(); err != nil {
		t.Fatal(err)
	}
}

func TestReadTagsFLAC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "03.Paranoid_Android.flac")
	writeFLAC(t, path, map[string]string{
		flacvorbis.FIELD_TITLE:       "Paranoid Android",
		flacvorbis.FIELD_ARTIST:      "Radiohead",
		flacvorbis.FIELD_ALBUM:       "OK Computer",
		flacvorbis.FIELD_DATE:        "1997-05-21",
		flacvorbis.FIELD_TRACKNUMBER: "2/12",
	}, nil)

	tags, err := music.ReadTags(path)
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	want := music.Tags{Number: 2, Title: "Paranoid Android", Artist: "Radiohead", Album: "OK Computer", Year: "1997", Duration: 215}
	if tags != want {
		t.Fatalf("tags = %+v, want %+v", tags, want)
	}
}

func TestReadTagsFallsBackToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "07.Fitter_Happier.flac")
	writeFLAC(t, path, nil, nil)

	tags, err := music.ReadTags(path)
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	if tags.Number != 7 || tags.Title != "Fitter Happier" {
		t.Fatalf("tags = %+v", tags)
	}

	wav := filepath.Join(t.TempDir(), "09 - Climbing Up.wav")
	if err := os.WriteFile(wav, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	tags, err = music.ReadTags(wav)
	if err != nil {
		t.Fatalf("ReadTags wav: %v", err)
	}
	if tags.Number != 9 || tags.Title != "Climbing Up" {
		t.Fatalf("wav tags = %+v", tags)
	}
}

func TestReadTagsFLACWithoutAudioFrames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "04.Exit_Music.flac")
	writeFLAC(t, path, map[string]string{flacvorbis.FIELD_TITLE: "Exit Music"}, nil)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	tags, err := music.ReadTags(path)
	if err != nil {
		t.Fatalf("ReadTags on metadata-only file: %v", err)
	}
	if tags.Title != "Exit Music" || tags.Number != 4 {
		t.Fatalf("tags = %+v", tags)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	truncated := filepath.Join(dir, "05.Let_Down.flac")
	if err := os.WriteFile(truncated, raw[:info.Size()/2], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := music.ReadTags(truncated); err == nil {
		t.Fatal("expected an error for a truncated file")
	}
	if _, err := music.ReadPicture(truncated); err == nil {
		t.Fatal("expected ReadPicture to fail on a truncated file")
	}
}

func TestReadTagsMP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "06.mp3")
	writeMP3(t, path)

	tags, err := music.ReadTags(path)
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	if tags.Number != 6 || tags.Title != "Karma Police" || tags.Year != "1997" || tags.Album != "OK Computer" {
		t.Fatalf("tags = %+v", tags)
	}

	pic, err := music.ReadPicture(path)
	if err != nil {
		t.Fatalf("ReadPicture: %v", err)
	}
	if pic == nil || pic.Ext() != ".jpg" || len(pic.Data) != 3 {
		t.Fatalf("picture = %+v", pic)
	}
}

func TestAlbumOrdersAndConvertsTracks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Radiohead", "OK Computer")
	second := filepath.Join(dir, "02.Two.flac")
	first := filepath.Join(dir, "01.One.flac")
	writeFLAC(t, second, map[string]string{flacvorbis.FIELD_TRACKNUMBER: "2", flacvorbis.FIELD_TITLE: "Two"}, nil)
	writeFLAC(t, first, map[string]string{flacvorbis.FIELD_TRACKNUMBER: "1", flacvorbis.FIELD_TITLE: "One"}, nil)
	broken := filepath.Join(dir, "03.Three.flac")
	if err := os.WriteFile(broken, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	tracks, errs := music.Album([]string{broken, second, first})
	if len(errs) != 1 || errs[broken] == nil {
		t.Fatalf("errs = %v", errs)
	}
	if len(tracks) != 3 || tracks[0].Path != first || tracks[2].Tags.Title != "Three" {
		t.Fatalf("tracks = %+v", tracks)
	}

	row := tracks[0].StoreTrack(42)
	if row.JobID != 42 || row.TrackNumber != "1" || row.Source != store.SourceAbcde || row.Status != store.TrackSuccess || !row.Ripped {
		t.Fatalf("row = %+v", row)
	}
	if row.Length != 215 || row.Filename != "01.One.flac" {
		t.Fatalf("row = %+v", row)
	}
}

func TestWriteCover(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "01.flac")
	withArt := filepath.Join(dir, "02.flac")
	writeFLAC(t, plain, map[string]string{flacvorbis.FIELD_TITLE: "One"}, nil)
	writeFLAC(t, withArt, map[string]string{flacvorbis.FIELD_TITLE: "Two"}, pngBytes(t))

	tracks, _ := music.Album([]string{plain, withArt})
	path, err := music.WriteCover(tracks)
	if err != nil {
		t.Fatalf("WriteCover: %v", err)
	}
	if path != filepath.Join(dir, "folder.png") {
		t.Fatalf("cover path = %q", path)
	}

	again, err := music.WriteCover(tracks)
	if err != nil || again != "" {
		t.Fatalf("second WriteCover = %q, %v", again, err)
	}
}
