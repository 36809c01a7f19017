// Package normalizer canonicalizes paths, names and extension lists for docmigrate.
//
// Everything here is pure string manipulation: no function touches the filesystem
// and none of them fail. Input that cannot be interpreted is returned trimmed and
// separator-normalized as a best effort.
package normalizer

import (
	"path/filepath"
	"strings"
)

// Path converts both '/' and '\' to the platform separator and trims surrounding
// whitespace. Spreadsheet paths are usually Windows paths, so a backslash is always
// treated as a separator, even on platforms where it is a legal filename character.
func Path(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	sep := string(filepath.Separator)
	p = strings.ReplaceAll(p, "\\", sep)
	p = strings.ReplaceAll(p, "/", sep)
	return p
}

// Relative normalizes p and then strips a two-character drive prefix ("C:") and any
// number of leading separators, turning an absolute path into one that can be joined
// under a destination root.
func Relative(p string) string {
	p = Path(p)
	if len(p) >= 2 && p[1] == ':' {
		p = p[2:]
	}
	return strings.TrimLeft(p, string(filepath.Separator))
}

// Trim removes leading and trailing separators from an already relative path.
func Trim(p string) string {
	return strings.Trim(Path(p), string(filepath.Separator))
}

// Dir returns the parent directory component of a normalized path, or "" when the
// path has no directory part. Unlike filepath.Dir it never returns ".".
func Dir(p string) string {
	p = Path(p)
	i := strings.LastIndex(p, string(filepath.Separator))
	if i < 0 {
		return ""
	}
	if i == 0 {
		return string(filepath.Separator)
	}
	return p[:i]
}

// Key folds a filename into the case-insensitive form used for matching.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// StripExt removes the final extension from a filename, if any.
// "drawing.dgn" -> "drawing", "archive.tar.gz" -> "archive.tar", ".profile" -> ".profile".
func StripExt(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

// Extension returns the canonical form of a single extension token:
// trimmed, lowercased and with exactly one leading dot. Empty input stays empty.
func Extension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	ext = strings.TrimLeft(ext, ".")
	if ext == "" {
		return ""
	}
	return "." + ext
}

// ParseExtensions splits a comma separated list like "docx, .XLSX,dwg" into
// canonical extensions, dropping blanks and exact duplicates while keeping the
// order in which each extension was first seen.
func ParseExtensions(text string) []string {
	exts := []string{}
	seen := make(map[string]bool)
	for _, part := range strings.Split(text, ",") {
		ext := Extension(part)
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		exts = append(exts, ext)
	}
	return exts
}

// HasExtension reports whether name ends with one of exts (case-insensitive).
// exts are expected in canonical form; an empty list matches nothing.
func HasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
