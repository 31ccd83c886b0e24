package watcher

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchPatterns reports whether path matches any of patterns. Relative
// paths and patterns are resolved against baseDir.
//
//   - A pattern ending in a path separator matches every path inside that
//     directory.
//   - A pattern containing *, ? or [ is a glob matched against the absolute
//     path, against the pattern made absolute, and against the base name.
//     `**` crosses directories.
//   - Anything else must equal the absolute path.
//
// An empty pattern list matches nothing.
func MatchPatterns(path string, patterns []string, baseDir string) bool {
	abs := absolute(path, baseDir)
	slashPath := filepath.ToSlash(abs)
	base := filepath.Base(abs)

	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}

		switch {
		case strings.HasSuffix(pattern, "/") || strings.HasSuffix(pattern, `\`):
			dir := absolute(strings.TrimRight(pattern, `/\`), baseDir)
			if rel, err := filepath.Rel(dir, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return true
			}

		case strings.ContainsAny(pattern, "*?["):
			slashPattern := filepath.ToSlash(pattern)
			if ok, _ := doublestar.Match(slashPattern, slashPath); ok {
				return true
			}
			if ok, _ := doublestar.Match(filepath.ToSlash(absolute(pattern, baseDir)), slashPath); ok {
				return true
			}
			if ok, _ := doublestar.Match(slashPattern, base); ok {
				return true
			}

		default:
			if absolute(pattern, baseDir) == abs {
				return true
			}
		}
	}

	return false
}

func absolute(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if baseDir == "" {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}

// PatternFilter accepts paths that are targeted and not ignored. An empty
// target list targets every path.
func PatternFilter(target, ignore []string, baseDir string) FileFilter {
	return func(path string) bool {
		if MatchPatterns(path, ignore, baseDir) {
			return false
		}
		if len(target) == 0 {
			return true
		}
		return MatchPatterns(path, target, baseDir)
	}
}

// textSampleSize is how much of a file IsTextFile inspects.
const textSampleSize = 512

// IsTextFile sniffs the first bytes of path. A file is binary if the sample
// holds a NUL byte or if 30% or more of it is control characters other than
// the usual whitespace. Empty and unreadable files are not text.
func IsTextFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, textSampleSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false
	}
	return looksLikeText(buf[:n])
}

func looksLikeText(sample []byte) bool {
	if len(sample) == 0 || bytes.IndexByte(sample, 0) >= 0 {
		return false
	}

	nontext := 0
	for _, c := range sample {
		if !isTextByte(c) {
			nontext++
		}
	}
	return float64(nontext)/float64(len(sample)) < 0.30
}

func isTextByte(c byte) bool {
	switch c {
	case 7, 8, 9, 10, 12, 13, 27:
		return true
	}
	return c >= 0x20
}

// TextFileFilter is a FileFilter around IsTextFile. Paths that no longer
// exist pass, so deletions still reach handlers.
func TextFileFilter(path string) bool {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return true
	}
	return IsTextFile(path)
}

// NoGitFilter rejects paths inside a .git directory.
func NoGitFilter(path string) bool {
	slash := filepath.ToSlash(path)
	return !strings.HasPrefix(slash, ".git/") && !strings.Contains(slash, "/.git/")
}

// NoHiddenTempFilter rejects editor swap and backup files.
func NoHiddenTempFilter(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, ".#"):
		return false
	}
	return true
}
