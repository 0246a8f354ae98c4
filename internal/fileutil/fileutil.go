// Package fileutil moves and copies ripped media between directories that
// may live on different filesystems.
package fileutil

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// CopyFileVerified streams src to dst with SHA256 + size integrity verification.
// Removes dst on mismatch.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}

	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	return nil
}

// Move renames src to dst, creating dst's parent. When the two live on
// different filesystems the file or directory tree is copied with
// verification and the source removed afterwards.
func Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return fmt.Errorf("move %s: %w", src, err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		err = CopyTree(src, dst)
	} else {
		err = CopyFileVerified(src, dst)
	}
	if err != nil {
		return fmt.Errorf("copy across devices: %w", err)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// CopyTree copies the directory src into dst, verifying every file.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return CopyFileVerified(path, target)
	})
}

// CopyStream copies everything readable from src (a file or a block
// device) into a new file at dst and returns the byte count. The copy
// stops when ctx is cancelled; a partial dst is removed.
func CopyStream(ctx context.Context, src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create target directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, &contextReader{ctx: ctx, r: in})
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return written, err
	}
	return written, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// ChmodTree applies mode to every file and directory under root. Directories
// also get the execute bit wherever mode grants read.
func ChmodTree(root string, mode os.FileMode) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		m := mode
		if d.IsDir() {
			m |= (mode & 0o444) >> 2
		}
		return os.Chmod(path, m)
	})
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// TimestampSuffix renders the suffix appended to disambiguate duplicate
// folder and file names.
func TimestampSuffix(now time.Time) string {
	return now.Format("20060102_150405")
}

// UniquePath returns path unchanged when nothing exists there, otherwise
// path with "_<timestamp>" inserted before the extension.
func UniquePath(path string, now time.Time) string {
	if !Exists(path) {
		return path
	}
	ext := filepath.Ext(path)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		ext = ""
	}
	base := strings.TrimSuffix(path, ext)
	return base + "_" + TimestampSuffix(now) + ext
}

// LargestFile returns the biggest regular file among paths.
func LargestFile(paths []string) (string, int64, error) {
	var (
		best     string
		bestSize int64 = -1
	)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return "", 0, err
		}
		if info.Mode().IsRegular() && info.Size() > bestSize {
			best, bestSize = p, info.Size()
		}
	}
	if best == "" {
		return "", 0, errors.New("no regular files")
	}
	return best, bestSize, nil
}
