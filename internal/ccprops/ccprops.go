// SPDX-License-Identifier: MPL-2.0

package ccprops

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"
)

const (
	// FileName is the configuration file the merger edits.
	FileName = "c_cpp_properties.json"
	// DefaultWindowsName is the entry name used for the Windows platform.
	DefaultWindowsName = "Win32"
	// DefaultIntelliSenseMode is forced on the Windows entry so the editor
	// parses the ARM toolchain headers with clang rules.
	DefaultIntelliSenseMode = "clang-x64"
	// DefaultIndent matches the editor's own formatting of the file.
	DefaultIndent = "    "
)

type (
	// Options controls how entries are rewritten.
	Options struct {
		WindowsName      string
		IntelliSenseMode string
		Indent           string
	}

	// Merger applies include lists to configuration files on disk.
	Merger struct {
		Options Options
		// DryRun computes the merged document without writing it.
		DryRun bool
	}
)

// DefaultOptions returns the stock Windows override and formatting.
func DefaultOptions() Options {
	return Options{
		WindowsName:      DefaultWindowsName,
		IntelliSenseMode: DefaultIntelliSenseMode,
		Indent:           DefaultIndent,
	}
}

// MergeIncludes concatenates project and compiler directories, project first,
// keeping the first occurrence of any duplicate.
func MergeIncludes(project, compiler []string) []string {
	out := make([]string, 0, len(project)+len(compiler))
	seen := make(map[string]struct{}, len(project)+len(compiler))
	for _, list := range [][]string{project, compiler} {
		for _, dir := range list {
			if _, dup := seen[dir]; dup {
				continue
			}
			seen[dir] = struct{}{}
			out = append(out, dir)
		}
	}
	return out
}

// Merge replaces the includePath of every entry in data's "configurations"
// array with includes and, for the entry named opts.WindowsName, sets
// intelliSenseMode. The result is re-indented; other content is unchanged.
//
// Invalid JSON, a missing or non-array "configurations", or a non-object
// entry yields an *issue.ParseError.
func Merge(data []byte, includes []string, opts Options) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, &issue.ParseError{Reason: "invalid JSON"}
	}
	configs := gjson.GetBytes(data, "configurations")
	if !configs.Exists() {
		return nil, &issue.ParseError{Reason: `missing "configurations"`}
	}
	if !configs.IsArray() {
		return nil, &issue.ParseError{Reason: `"configurations" is not an array`}
	}

	if includes == nil {
		includes = []string{}
	}
	rawIncludes, err := marshalStrings(includes)
	if err != nil {
		return nil, fmt.Errorf("encode include list: %w", err)
	}

	out := data
	for i, entry := range configs.Array() {
		if !entry.IsObject() {
			return nil, &issue.ParseError{Reason: fmt.Sprintf("configurations[%d] is not an object", i)}
		}
		prefix := "configurations." + strconv.Itoa(i)

		out, err = sjson.SetRawBytes(out, prefix+".includePath", rawIncludes)
		if err != nil {
			return nil, fmt.Errorf("set %s.includePath: %w", prefix, err)
		}

		if opts.WindowsName != "" && entry.Get("name").String() == opts.WindowsName {
			out, err = sjson.SetBytes(out, prefix+".intelliSenseMode", opts.IntelliSenseMode)
			if err != nil {
				return nil, fmt.Errorf("set %s.intelliSenseMode: %w", prefix, err)
			}
		}
	}

	indent := opts.Indent
	if indent == "" {
		indent = DefaultIndent
	}
	// Width -1 keeps every array expanded one element per line.
	return pretty.PrettyOptions(out, &pretty.Options{Width: -1, Indent: indent}), nil
}

// MergeFile merges includes into the file at path and replaces it atomically.
// It returns the merged document. Read and write failures are
// *issue.WriteError; malformed content is an *issue.ParseError naming path.
// The file is left untouched on any error.
func (m *Merger) MergeFile(path string, includes []string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &issue.WriteError{Path: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &issue.WriteError{Path: path, Err: err}
	}

	merged, err := Merge(data, includes, m.Options)
	if err != nil {
		var pe *issue.ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}

	if m.DryRun {
		slog.Debug("dry run, not writing", "path", path)
		return merged, nil
	}
	if bytes.Equal(merged, data) {
		slog.Debug("configuration unchanged", "path", path)
		return merged, nil
	}
	if err := writeAtomic(path, merged, info.Mode().Perm()); err != nil {
		return nil, &issue.WriteError{Path: path, Err: err}
	}
	slog.Debug("configuration written", "path", path, "includes", len(includes))
	return merged, nil
}

// writeAtomic writes data to a temp file next to path and renames it over
// path, so readers see either the old or the new document.
func writeAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// marshalStrings encodes list as a JSON array without HTML escaping, so
// paths containing '<', '>' or '&' are written verbatim.
func marshalStrings(list []string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(list); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}
