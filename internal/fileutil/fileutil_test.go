package fileutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mkv")
	dst := filepath.Join(dir, "dst.mkv")

	content := strings.Repeat("verified content ", 4096)
	writeFile(t, src, content)

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != content {
		t.Fatal("content mismatch after verified copy")
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFileVerified(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestMoveDirectoryCreatesParent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw", "MOVIE")
	writeFile(t, filepath.Join(src, "title_t00.mkv"), "a")
	writeFile(t, filepath.Join(src, "sub", "title_t01.mkv"), "bb")

	dst := filepath.Join(dir, "completed", "movies", "Movie (2001)")
	if err := Move(src, dst); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if Exists(src) {
		t.Fatal("source still present")
	}
	if got, _ := os.ReadFile(filepath.Join(dst, "sub", "title_t01.mkv")); string(got) != "bb" {
		t.Fatalf("moved content = %q", got)
	}
}

func TestCopyTree(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "a.flac"), "one")
	writeFile(t, filepath.Join(src, "disc2", "b.flac"), "two")

	dst := filepath.Join(dir, "dst")
	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}
	if got, _ := os.ReadFile(filepath.Join(dst, "disc2", "b.flac")); string(got) != "two" {
		t.Fatalf("copied content = %q", got)
	}
	if !Exists(filepath.Join(src, "a.flac")) {
		t.Fatal("CopyTree must leave the source in place")
	}
}

func TestCopyStream(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "device")
	writeFile(t, src, "iso-bytes")

	n, err := CopyStream(context.Background(), src, filepath.Join(dir, "out", "DISC.iso"))
	if err != nil {
		t.Fatalf("CopyStream: %v", err)
	}
	if n != int64(len("iso-bytes")) {
		t.Fatalf("copied %d bytes", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dst := filepath.Join(dir, "out", "cancelled.iso")
	if _, err := CopyStream(ctx, src, dst); err == nil {
		t.Fatal("expected cancellation error")
	}
	if Exists(dst) {
		t.Fatal("partial output not removed")
	}
}

func TestChmodTree(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "Movie")
	writeFile(t, filepath.Join(root, "movie.mkv"), "x")

	if err := ChmodTree(root, 0o664); err != nil {
		t.Fatalf("ChmodTree: %v", err)
	}
	info, err := os.Stat(filepath.Join(root, "movie.mkv"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o664 {
		t.Fatalf("file mode = %o", info.Mode().Perm())
	}
	dirInfo, _ := os.Stat(root)
	if dirInfo.Mode().Perm() != 0o775 {
		t.Fatalf("dir mode = %o", dirInfo.Mode().Perm())
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

	free := filepath.Join(dir, "Alien (1979)")
	if got := UniquePath(free, now); got != free {
		t.Fatalf("free path changed: %s", got)
	}
	if err := os.MkdirAll(free, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := UniquePath(free, now); got != free+"_20240309_140506" {
		t.Fatalf("dir path = %s", got)
	}

	file := filepath.Join(dir, "movie.mkv")
	writeFile(t, file, "x")
	if got := UniquePath(file, now); got != filepath.Join(dir, "movie_20240309_140506.mkv") {
		t.Fatalf("file path = %s", got)
	}
}

func TestLargestFile(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "t01.mkv")
	big := filepath.Join(dir, "t00.mkv")
	writeFile(t, small, "x")
	writeFile(t, big, "xxxxxxxx")

	got, size, err := LargestFile([]string{small, big})
	if err != nil {
		t.Fatalf("LargestFile: %v", err)
	}
	if got != big || size != 8 {
		t.Fatalf("largest = %s (%d)", got, size)
	}
	if _, _, err := LargestFile(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
