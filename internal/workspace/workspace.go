// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// ErrNoRoots is returned when resolution produced no usable root.
var ErrNoRoots = errors.New("no workspace roots")

type (
	// Root is one workspace folder.
	Root struct {
		// Name is the display name, defaulting to the directory's base name.
		Name string
		// Path is absolute and cleaned.
		Path string
	}

	// Sources lists where roots may come from. The first non-empty source
	// wins.
	Sources struct {
		// Paths are explicit root directories (command-line flags).
		Paths []string
		// WorkspaceFile is a .code-workspace file.
		WorkspaceFile string
		// Configured are roots from the configuration file.
		Configured []string
		// WorkingDir is the fallback root and the base for relative Paths
		// and Configured entries. Empty means os.Getwd.
		WorkingDir string
	}
)

// String returns the root's name.
func (r Root) String() string {
	return r.Name
}

// Resolve returns the roots selected by src, deduplicated by path and each
// verified to be an existing directory.
func Resolve(src Sources) ([]Root, error) {
	wd := src.WorkingDir
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
	}

	switch {
	case len(src.Paths) > 0:
		return rootsFromPaths(src.Paths, wd)
	case src.WorkspaceFile != "":
		file := src.WorkspaceFile
		if !filepath.IsAbs(file) {
			file = filepath.Join(wd, file)
		}
		return LoadWorkspaceFile(file)
	case len(src.Configured) > 0:
		return rootsFromPaths(src.Configured, wd)
	default:
		return rootsFromPaths([]string{wd}, wd)
	}
}

// LoadWorkspaceFile reads the "folders" list of a VS Code .code-workspace
// file. Relative folder paths are resolved against the file's directory; a
// folder's "name" overrides the default display name.
func LoadWorkspaceFile(path string) ([]Root, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workspace file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("workspace file %s is not valid JSON", path)
	}

	folders := gjson.GetBytes(data, "folders")
	if !folders.IsArray() {
		return nil, fmt.Errorf("workspace file %s has no folders list", path)
	}

	base := filepath.Dir(path)
	var (
		paths []string
		names = map[string]string{}
	)
	for _, folder := range folders.Array() {
		p := folder.Get("path").String()
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, filepath.FromSlash(p))
		}
		p = filepath.Clean(p)
		paths = append(paths, p)
		if name := folder.Get("name").String(); name != "" {
			names[p] = name
		}
	}

	roots, err := rootsFromPaths(paths, base)
	if err != nil {
		return nil, err
	}
	for i := range roots {
		if name, ok := names[roots[i].Path]; ok {
			roots[i].Name = name
		}
	}
	return roots, nil
}

func rootsFromPaths(paths []string, base string) ([]Root, error) {
	roots := make([]Root, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		p = filepath.Clean(p)
		if _, dup := seen[p]; dup {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("workspace root %s: %w", p, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("workspace root %s is not a directory", p)
		}
		seen[p] = struct{}{}
		roots = append(roots, Root{Name: filepath.Base(p), Path: p})
	}
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	return roots, nil
}
