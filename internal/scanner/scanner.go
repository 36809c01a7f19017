// Package scanner handles directory listing and tree walking for docmigrate.
package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"

	"docmigrate/internal/normalizer"
)

// ScanErrorType represents the type of scanning error.
type ScanErrorType string

const (
	// DirectoryNotFound indicates the directory does not exist or is not a directory.
	DirectoryNotFound ScanErrorType = "DIRECTORY_NOT_FOUND"
	// PermissionDenied indicates insufficient permissions to read the directory.
	PermissionDenied ScanErrorType = "PERMISSION_DENIED"
	// SymlinkError indicates a symlink was encountered with "error" policy.
	SymlinkError ScanErrorType = "SYMLINK_ERROR"
)

// Symlink policy constants
const (
	SymlinkPolicyFollow = "follow"
	SymlinkPolicySkip   = "skip"
	SymlinkPolicyError  = "error"
	// SymlinkPolicyFiles lists links to files as files. Links to directories are
	// not descended and, like broken links, are recorded in Listing.Skipped.
	SymlinkPolicyFiles = "files"
)

// DefaultExcludePatterns lists files that never count as documents: Windows
// thumbnail caches and partially written downloads. Office lock files ("~$name")
// are handled by ScanOptions.SkipLockFiles because '$' is not literal in
// gitignore pattern compilation.
func DefaultExcludePatterns() []string {
	return []string{
		"Thumbs.db",
		"desktop.ini",
		".DS_Store",
		"*.tmp",
		"*.part",
	}
}

// ScanError represents an error that occurred during directory scanning.
type ScanError struct {
	Type ScanErrorType
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return string(e.Type) + ": " + e.Path
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// ScanOptions configures scanning behavior.
type ScanOptions struct {
	MaxDepth      int      // Maximum depth to scan (0 = immediate only, -1 = unlimited)
	SymlinkPolicy string   // "follow", "files", "skip", or "error"
	Extensions    []string // Canonical extensions to keep; empty keeps everything
	Exclude       []string // gitignore-style patterns matched against the relative path
	SkipHidden    bool     // Skip dot-files and dot-directories
	SkipLockFiles bool     // Skip Office lock files ("~$report.docx")
}

// DefaultScanOptions returns the default scan options: a flat listing in which
// links to files count as files.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		MaxDepth:      0,
		SymlinkPolicy: SymlinkPolicyFiles,
	}
}

// TreeOptions returns options for an unlimited-depth walk with the default
// exclude patterns.
func TreeOptions() ScanOptions {
	return ScanOptions{
		MaxDepth:      -1,
		SymlinkPolicy: SymlinkPolicyFiles,
		Exclude:       DefaultExcludePatterns(),
		SkipLockFiles: true,
	}
}

// FileEntry represents a file found during scanning.
type FileEntry struct {
	Name     string // Filename only
	FullPath string // Path joined from the scan root
	RelDir   string // Containing directory relative to the scan root ("" at the root)
	Size     int64
}

// Listing is the result of a tree walk. Subdirectories that could not be read are
// recorded in Skipped and the walk carries on. Excluded holds the relative paths
// of the files and directories left out by the hidden, lock-file and exclude rules.
type Listing struct {
	Files    []FileEntry
	Skipped  []error
	Excluded []string
}

// Scan enumerates files in the given directory without recursion.
// It returns only files, excluding subdirectories.
// This is a convenience wrapper around ScanWithOptions with default options.
func Scan(fsys afero.Fs, directory string) ([]FileEntry, error) {
	listing, err := ScanWithOptions(fsys, directory, DefaultScanOptions())
	if err != nil {
		return nil, err
	}
	return listing.Files, nil
}

// Walk scans the whole tree under root with the given options, forcing unlimited depth.
func Walk(fsys afero.Fs, root string, opts ScanOptions) (*Listing, error) {
	opts.MaxDepth = -1
	return ScanWithOptions(fsys, root, opts)
}

// ScanWithOptions scans directory with configurable options.
//
// Directories are visited top-down: the files of a directory are reported before any
// of its subdirectories, files are ordered case-insensitively by name, and
// subdirectories are descended in name order.
func ScanWithOptions(fsys afero.Fs, directory string, opts ScanOptions) (*Listing, error) {
	if err := CheckDirectory(fsys, directory); err != nil {
		return nil, err
	}

	info, err := lstat(fsys, directory)
	if err != nil {
		return nil, err
	}

	// Handle symlink at root directory level
	if info.Mode()&os.ModeSymlink != 0 {
		switch opts.SymlinkPolicy {
		case SymlinkPolicyError:
			return nil, &ScanError{
				Type: SymlinkError,
				Path: directory,
				Err:  errors.New("symlink encountered with error policy"),
			}
		case SymlinkPolicySkip:
			return &Listing{Files: []FileEntry{}}, nil
		}
	}

	var matcher *ignore.GitIgnore
	if len(opts.Exclude) > 0 {
		matcher = ignore.CompileIgnoreLines(opts.Exclude...)
	}

	w := &walker{fs: fsys, root: directory, opts: opts, matcher: matcher}
	listing := &Listing{Files: []FileEntry{}}
	if err := w.scanDirectory(directory, "", 0, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// CheckDirectory verifies that path exists and is a directory.
func CheckDirectory(fsys afero.Fs, path string) error {
	info, err := fsys.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ScanError{Type: DirectoryNotFound, Path: path, Err: err}
		}
		if os.IsPermission(err) {
			return &ScanError{Type: PermissionDenied, Path: path, Err: err}
		}
		return err
	}
	if !info.IsDir() {
		return &ScanError{
			Type: DirectoryNotFound,
			Path: path,
			Err:  errors.New("path is not a directory"),
		}
	}
	return nil
}

type walker struct {
	fs      afero.Fs
	root    string
	opts    ScanOptions
	matcher *ignore.GitIgnore
}

// scanDirectory scans one directory and recurses up to the configured depth.
func (w *walker) scanDirectory(directory, relDir string, depth int, listing *Listing) error {
	entries, err := afero.ReadDir(w.fs, directory)
	if err != nil {
		scanErr := error(err)
		if os.IsPermission(err) {
			scanErr = &ScanError{Type: PermissionDenied, Path: directory, Err: err}
		}
		if depth == 0 {
			return scanErr
		}
		listing.Skipped = append(listing.Skipped, scanErr)
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	var subdirs []os.FileInfo
	for _, info := range entries {
		name := info.Name()
		fullPath := filepath.Join(directory, name)
		relPath := filepath.Join(relDir, name)

		if w.opts.SkipHidden && strings.HasPrefix(name, ".") {
			listing.Excluded = append(listing.Excluded, relPath)
			continue
		}
		if w.opts.SkipLockFiles && strings.HasPrefix(name, "~$") {
			listing.Excluded = append(listing.Excluded, relPath)
			continue
		}

		if info.Mode()&os.ModeSymlink != 0 {
			switch w.opts.SymlinkPolicy {
			case SymlinkPolicyError:
				return &ScanError{
					Type: SymlinkError,
					Path: fullPath,
					Err:  errors.New("symlink encountered with error policy"),
				}
			case SymlinkPolicySkip:
				continue
			case SymlinkPolicyFollow:
				target, err := w.fs.Stat(fullPath)
				if err != nil {
					continue // Skip broken symlinks
				}
				info = target
			case SymlinkPolicyFiles:
				target, err := w.fs.Stat(fullPath)
				if err != nil {
					listing.Skipped = append(listing.Skipped, &ScanError{Type: SymlinkError, Path: fullPath, Err: err})
					continue
				}
				if target.IsDir() {
					listing.Skipped = append(listing.Skipped, &ScanError{
						Type: SymlinkError,
						Path: fullPath,
						Err:  errors.New("linked directory is not descended"),
					})
					continue
				}
				info = target
			}
		}

		if w.excluded(relPath, info.IsDir()) {
			listing.Excluded = append(listing.Excluded, relPath)
			continue
		}

		if info.IsDir() {
			subdirs = append(subdirs, info)
			continue
		}

		if len(w.opts.Extensions) > 0 && !normalizer.HasExtension(name, w.opts.Extensions) {
			continue
		}

		listing.Files = append(listing.Files, FileEntry{
			Name:     name,
			FullPath: fullPath,
			RelDir:   relDir,
			Size:     info.Size(),
		})
	}

	// MaxDepth of -1 means unlimited, 0 means immediate only
	if w.opts.MaxDepth != -1 && depth >= w.opts.MaxDepth {
		return nil
	}
	for _, sub := range subdirs {
		name := sub.Name()
		if err := w.scanDirectory(filepath.Join(directory, name), filepath.Join(relDir, name), depth+1, listing); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) excluded(relPath string, isDir bool) bool {
	if w.matcher == nil {
		return false
	}
	p := filepath.ToSlash(relPath)
	if isDir {
		p += "/"
	}
	return w.matcher.MatchesPath(p)
}

// lstat uses Lstat when the filesystem supports it and falls back to Stat.
func lstat(fsys afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fsys.Stat(path)
}
