// Package index builds the lookup table of a flat output folder.
//
// Files are grouped by their case-folded name. A name carried by exactly one file is
// unique and may be matched; a name carried by two or more files is a duplicate group
// and is never selected as a match source. The index is immutable once built; callers
// that consume entries track consumption in their own set.
package index

import (
	"github.com/spf13/afero"

	"docmigrate/internal/normalizer"
	"docmigrate/internal/scanner"
)

// Entry is one physical file in the flat folder.
type Entry struct {
	Key      string // Case-folded filename
	Name     string // Filename with original casing
	FullPath string
	Size     int64
}

// DuplicateGroup is every file sharing one case-folded name.
type DuplicateGroup struct {
	Key   string
	Files []Entry
}

// Index is the lookup table for a single flat folder.
type Index struct {
	folder     string
	extensions []string
	order      []string // Keys in first-seen listing order
	unique     map[string]Entry
	duplicates map[string][]Entry
	all        map[string][]Entry
	skipped    []error
}

// Build lists the immediate files of folder and groups them by case-folded name.
// When exts is non-empty only files whose name ends with one of them are indexed.
// Links to files are indexed like files; broken links and links to directories
// are kept in Skipped. A missing folder, or a path that is not a directory, is
// reported as a *scanner.ScanError of type DirectoryNotFound.
func Build(fsys afero.Fs, folder string, exts []string) (*Index, error) {
	opts := scanner.DefaultScanOptions()
	opts.Extensions = exts

	listing, err := scanner.ScanWithOptions(fsys, folder, opts)
	if err != nil {
		return nil, err
	}
	idx := FromEntries(folder, exts, listing.Files)
	idx.skipped = listing.Skipped
	return idx, nil
}

// FromEntries builds an index from an existing listing.
func FromEntries(folder string, exts []string, files []scanner.FileEntry) *Index {
	idx := &Index{
		folder:     folder,
		extensions: exts,
		unique:     make(map[string]Entry),
		duplicates: make(map[string][]Entry),
		all:        make(map[string][]Entry),
	}

	for _, f := range files {
		key := normalizer.Key(f.Name)
		if _, seen := idx.all[key]; !seen {
			idx.order = append(idx.order, key)
		}
		idx.all[key] = append(idx.all[key], Entry{
			Key:      key,
			Name:     f.Name,
			FullPath: f.FullPath,
			Size:     f.Size,
		})
	}

	for _, key := range idx.order {
		entries := idx.all[key]
		if len(entries) == 1 {
			idx.unique[key] = entries[0]
		} else {
			idx.duplicates[key] = entries
		}
	}
	return idx
}

// Folder returns the indexed directory.
func (x *Index) Folder() string { return x.folder }

// Extensions returns the extension filter the index was built with.
func (x *Index) Extensions() []string { return x.extensions }

// Skipped returns the entries of the folder that could not be indexed.
func (x *Index) Skipped() []error { return x.skipped }

// Lookup returns the single file registered under key. It reports false for keys
// that are absent or that belong to a duplicate group.
func (x *Index) Lookup(key string) (Entry, bool) {
	e, ok := x.unique[key]
	return e, ok
}

// IsDuplicate reports whether key is shared by two or more files.
func (x *Index) IsDuplicate(key string) bool {
	_, ok := x.duplicates[key]
	return ok
}

// Contains reports whether any file is registered under key.
func (x *Index) Contains(key string) bool {
	_, ok := x.all[key]
	return ok
}

// Duplicates returns the files of the duplicate group for key, or nil.
func (x *Index) Duplicates(key string) []Entry {
	return x.duplicates[key]
}

// DuplicateGroups returns every duplicate group in listing order.
func (x *Index) DuplicateGroups() []DuplicateGroup {
	groups := make([]DuplicateGroup, 0, len(x.duplicates))
	for _, key := range x.order {
		if files, ok := x.duplicates[key]; ok {
			groups = append(groups, DuplicateGroup{Key: key, Files: files})
		}
	}
	return groups
}

// DuplicateGroupCount is the number of names shared by more than one file.
func (x *Index) DuplicateGroupCount() int { return len(x.duplicates) }

// DuplicateFileCount is the number of physical files inside duplicate groups.
func (x *Index) DuplicateFileCount() int {
	n := 0
	for _, files := range x.duplicates {
		n += len(files)
	}
	return n
}

// UniqueCount is the number of names carried by exactly one file.
func (x *Index) UniqueCount() int { return len(x.unique) }

// FileCount is the number of indexed files.
func (x *Index) FileCount() int {
	n := 0
	for _, files := range x.all {
		n += len(files)
	}
	return n
}

// Keys returns every indexed key in listing order.
func (x *Index) Keys() []string {
	keys := make([]string, len(x.order))
	copy(keys, x.order)
	return keys
}

// Orphans returns every file of a duplicate group plus every unique file whose key
// is not in consumed, in listing order.
func (x *Index) Orphans(consumed map[string]bool) []Entry {
	var orphans []Entry
	for _, key := range x.order {
		if x.IsDuplicate(key) || !consumed[key] {
			orphans = append(orphans, x.all[key]...)
		}
	}
	return orphans
}

