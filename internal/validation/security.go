// Package validation provides input checks for values that come from
// documents (include paths, URLs) and from the network (fetched text).
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateIncludePath validates the path inside an `<include>` tag.
func ValidateIncludePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a NUL byte")
	}

	if strings.ContainsAny(path, "\r\n") {
		return fmt.Errorf("path spans multiple lines")
	}

	return nil
}

// ResolveIncludePath resolves an include path relative to the directory of
// the including document. Absolute paths are used as they are.
func ResolveIncludePath(baseDir, path string) string {
	path = strings.TrimSpace(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}

// SanitizeInput removes NUL bytes and control characters other than common
// whitespace from text fetched over the network.
func SanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var sanitized strings.Builder
	sanitized.Grow(len(input))
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}
