package watcher

import (
	"path/filepath"
	"strings"
)

// DefaultIgnorePatterns returns the patterns of partial and lock files that never
// trigger a run.
func DefaultIgnorePatterns() []string {
	return []string{
		"*.tmp",
		"*.part",
		"*.partial",
		"*.download",
		"*.crdownload",
		"~$*", // Office lock files
		".~*", // LibreOffice lock files
		"Thumbs.db",
		".DS_Store",
	}
}

// FileFilter decides which files in the watched folder are worth a run.
type FileFilter struct {
	patterns   []string
	extensions map[string]struct{}
}

// NewFileFilter creates a new FileFilter with the given patterns.
// If patterns is nil or empty, default patterns are used.
func NewFileFilter(patterns []string) *FileFilter {
	if len(patterns) == 0 {
		patterns = DefaultIgnorePatterns()
	}
	return &FileFilter{patterns: patterns}
}

// WithExtensions restricts the filter to files carrying one of exts. Extensions
// are compared case-insensitively, with or without the leading dot.
func (f *FileFilter) WithExtensions(exts []string) *FileFilter {
	if len(exts) == 0 {
		f.extensions = nil
		return f
	}
	f.extensions = make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = struct{}{}
	}
	return f
}

// ShouldIgnore reports whether path matches an ignore pattern or lacks one of
// the accepted extensions. Patterns use filepath.Match syntax against the base name.
func (f *FileFilter) ShouldIgnore(path string) bool {
	filename := filepath.Base(path)

	for _, pattern := range f.patterns {
		if matched, err := filepath.Match(pattern, filename); err == nil && matched {
			return true
		}

		// A bare extension pattern like ".tmp" matches as a suffix
		if strings.HasPrefix(pattern, ".") && !strings.Contains(pattern, "*") {
			if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(pattern)) {
				return true
			}
		}
	}

	if f.extensions != nil {
		if _, ok := f.extensions[strings.ToLower(filepath.Ext(filename))]; !ok {
			return true
		}
	}
	return false
}

// GetPatterns returns the current ignore patterns.
func (f *FileFilter) GetPatterns() []string {
	result := make([]string, len(f.patterns))
	copy(result, f.patterns)
	return result
}

// AddPattern adds a new pattern to the filter.
func (f *FileFilter) AddPattern(pattern string) {
	f.patterns = append(f.patterns, pattern)
}

// IsTemporaryFile checks a path against the default ignore patterns.
func IsTemporaryFile(path string) bool {
	return NewFileFilter(nil).ShouldIgnore(path)
}
