package rename

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGuardCheck(t *testing.T) {
	root := filepath.Join(t.TempDir(), "completed")
	if err := os.MkdirAll(filepath.Join(root, "tv", "Show"), 0o755); err != nil {
		t.Fatal(err)
	}
	g, err := newGuard(root)
	if err != nil {
		t.Fatalf("newGuard: %v", err)
	}

	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"existing folder", filepath.Join(root, "tv", "Show"), true},
		{"missing destination", filepath.Join(root, "tv", "Show (2001)", "Show_S1D1"), true},
		{"root itself", root, false},
		{"traversal", filepath.Join(root, "tv") + "/../../etc", false},
		{"sibling of root", filepath.Join(filepath.Dir(root), "completed-other"), false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.check(tt.path)
			if (err == nil) != tt.ok {
				t.Fatalf("check(%q) err = %v, want ok=%v", tt.path, err, tt.ok)
			}
		})
	}
}

func TestInside(t *testing.T) {
	if !inside("/a/b", "/a/b/c") || inside("/a/b", "/a/b") || inside("/a/b", "/a/bc") || inside("/a/b/c", "/a/b") {
		t.Fatal("inside misclassified a path")
	}
}
