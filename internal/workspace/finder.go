// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern selects the editor's C/C++ configuration files.
const DefaultPattern = "**/c_cpp_properties.json"

// defaultIgnores keeps discovery out of trees that never hold workspace
// configuration but can be very large.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/build/**",
}

// Finder locates configuration files under a root.
type Finder struct {
	// Pattern is a doublestar glob relative to the root. Empty means
	// DefaultPattern.
	Pattern string
	// Ignore adds patterns to the built-in ignores.
	Ignore []string
}

// NewFinder validates pattern and ignore and returns a Finder.
func NewFinder(pattern string, ignore []string) (*Finder, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid properties pattern %q", pattern)
	}
	for _, p := range ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	return &Finder{Pattern: pattern, Ignore: ignore}, nil
}

// Find returns the absolute paths of matching files under root in walk
// order. Ignored directories are not entered, and unreadable subdirectories
// are skipped.
func (f *Finder) Find(root Root) ([]string, error) {
	return f.find(os.DirFS(root.Path), root.Path)
}

func (f *Finder) find(fsys fs.FS, base string) ([]string, error) {
	pattern := f.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}

	var files []string
	err := fs.WalkDir(fsys, ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil {
			if rel == "." {
				return err
			}
			slog.Debug("skipping unreadable path", "path", rel, "error", err)
			return nil
		}
		if d.IsDir() {
			if rel != "." && f.ignoredDir(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if ok, _ := doublestar.Match(pattern, rel); !ok {
			return nil
		}
		if f.ignored(rel) {
			slog.Debug("ignoring configuration file", "path", rel)
			return nil
		}
		files = append(files, filepath.Join(base, filepath.FromSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search %s for %s: %w", base, pattern, err)
	}
	return files, nil
}

// ignoredDir reports whether nothing under the directory rel can match. The
// "**/x/**" form only matches paths below x, so a child is tried as well.
func (f *Finder) ignoredDir(rel string) bool {
	return f.ignored(rel) || f.ignored(rel+"/x")
}

func (f *Finder) ignored(rel string) bool {
	for _, list := range [][]string{defaultIgnores, f.Ignore} {
		for _, pat := range list {
			if ok, err := doublestar.Match(pat, rel); err == nil && ok {
				return true
			}
		}
	}
	return false
}
