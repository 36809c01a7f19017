package organizer

import (
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	"docmigrate/internal/normalizer"
)

// FileExists checks if anything exists at the given path.
func FileExists(fsys afero.Fs, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}

// GenerateNumberedName returns filename unchanged when it is free in destDir.
// Otherwise it appends "_1", "_2", ... before the extension and returns the first
// name that does not exist yet.
//
// Examples:
//   - "report__000001.pdf" -> "report__000001_1.pdf" (if report__000001.pdf exists)
//   - "report__000001.pdf" -> "report__000001_2.pdf" (if _1 exists as well)
//   - "README" -> "README_1"
func GenerateNumberedName(fsys afero.Fs, destDir, filename string) string {
	return NumberedName(filename, func(name string) bool {
		return FileExists(fsys, filepath.Join(destDir, name))
	})
}

// NumberedName is GenerateNumberedName with the existence check supplied by the
// caller, so names planned but not yet written can be treated as taken.
func NumberedName(filename string, taken func(name string) bool) string {
	if !taken(filename) {
		return filename
	}

	base := normalizer.StripExt(filename)
	ext := filename[len(base):]

	for n := 1; ; n++ {
		candidate := base + "_" + strconv.Itoa(n) + ext
		if !taken(candidate) {
			return candidate
		}
	}
}
