// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// maxConfigFileSize bounds config.cue before it is handed to the CUE compiler.
const maxConfigFileSize = 1 << 20

// formatCUEError flattens a CUE error list into "<file>: <path>: <message>"
// lines, e.g. "config.cue: compiler.timeout: invalid value".
func formatCUEError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	lines := make([]string, 0, len(list))
	for _, e := range list {
		pathStr := formatPath(cueerrors.Path(e))
		msg := e.Error()
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, pathStr), ":"))
		}
		if pathStr != "" {
			lines = append(lines, pathStr+": "+msg)
		} else {
			lines = append(lines, msg)
		}
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filePath, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filePath, strings.Join(lines, "\n  "))
}

// formatPath renders ["workspace", "roots", "0"] as "workspace.roots[0]".
func formatPath(path []string) string {
	var result strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			result.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			result.WriteByte('.')
		}
		result.WriteString(part)
	}
	return result.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func checkFileSize(data []byte, filename string) error {
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, len(data), maxConfigFileSize)
	}
	return nil
}
