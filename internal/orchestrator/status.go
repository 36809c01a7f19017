package orchestrator

import (
	"docmigrate/internal/index"
	"docmigrate/internal/normalizer"
)

// FlatStatus describes what a flat folder currently holds, without touching it.
type FlatStatus struct {
	Folder          string
	Extensions      []string
	Files           int // Indexed files
	Unique          int // Names held by exactly one file
	DuplicateGroups int
	DuplicateFiles  int
	Duplicates      []index.DuplicateGroup
}

// Status indexes a flat folder and reports its unique and duplicate names. The
// duplicates listed here are the names a rebuild will skip.
func (o *Orchestrator) Status(flatFolder string, exts []string) (*FlatStatus, error) {
	canonical := make([]string, 0, len(exts))
	for _, ext := range exts {
		if e := normalizer.Extension(ext); e != "" {
			canonical = append(canonical, e)
		}
	}

	idx, err := index.Build(o.fs, flatFolder, canonical)
	if err != nil {
		return nil, err
	}

	return &FlatStatus{
		Folder:          flatFolder,
		Extensions:      canonical,
		Files:           idx.FileCount(),
		Unique:          idx.UniqueCount(),
		DuplicateGroups: idx.DuplicateGroupCount(),
		DuplicateFiles:  idx.DuplicateFileCount(),
		Duplicates:      idx.DuplicateGroups(),
	}, nil
}
