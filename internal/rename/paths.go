package rename

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// guard confines paths to the completed-media root.
type guard struct {
	root string
}

func newGuard(root string) (guard, error) {
	if strings.TrimSpace(root) == "" {
		return guard{}, errors.New("completed directory is not configured")
	}
	if hasTraversal(root) {
		return guard{}, fmt.Errorf("completed directory %q contains a parent reference", root)
	}
	resolved, err := resolve(root)
	if err != nil {
		return guard{}, err
	}
	return guard{root: resolved}, nil
}

// check returns the resolved form of path, or the reason it is unsafe.
func (g guard) check(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is empty")
	}
	if hasTraversal(path) {
		return "", fmt.Errorf("path %q contains a parent reference", path)
	}
	resolved, err := resolve(path)
	if err != nil {
		return "", err
	}
	if !inside(g.root, resolved) {
		return "", fmt.Errorf("path %q is outside %s", path, g.root)
	}
	return resolved, nil
}

func hasTraversal(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// resolve makes path absolute and follows symlinks through its longest
// existing prefix, so a destination that does not exist yet still cannot
// escape through a linked parent.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	existing, rest := abs, ""
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
	linked, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return filepath.Join(linked, rest), nil
}

// inside reports whether child lies strictly below parent.
func inside(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
