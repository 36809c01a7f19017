// Package structure captures a folder tree as a plain text template and recreates
// it elsewhere, optionally with empty placeholder files.
package structure

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"docmigrate/internal/normalizer"
	"docmigrate/internal/organizer"
)

// Entry is one line of a template: a directory, or a file when IsFile is set.
type Entry struct {
	Path   string // Relative, platform separators
	IsFile bool
}

// Status is what Create did with one entry.
type Status string

const (
	StatusCreated Status = "created"
	StatusExists  Status = "exists"  // Left untouched
	StatusTouched Status = "touched" // Existing file had its times updated
	StatusError   Status = "error"
)

// Outcome records the result for one entry.
type Outcome struct {
	Entry  Entry
	Path   string
	Status Status
	Err    error
}

// Options configure Create.
type Options struct {
	IncludeFiles bool // Create empty files for file entries; otherwise every entry is a directory
	Safe         bool // Never touch existing files
}

// Capture walks root and returns its directories (and files when includeFiles is
// set) as relative entries. A directory is listed before its contents and siblings
// are ordered case-insensitively. The root itself is not listed.
func Capture(fsys afero.Fs, root string, includeFiles bool) ([]Entry, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var entries []Entry
	var visit func(dir, rel string) error
	visit = func(dir, rel string) error {
		children, err := afero.ReadDir(fsys, dir)
		if err != nil {
			return err
		}
		sort.SliceStable(children, func(i, j int) bool {
			return strings.ToLower(children[i].Name()) < strings.ToLower(children[j].Name())
		})
		for _, c := range children {
			childRel := filepath.Join(rel, c.Name())
			if c.IsDir() {
				entries = append(entries, Entry{Path: childRel})
				if err := visit(filepath.Join(dir, c.Name()), childRel); err != nil {
					return err
				}
			} else if includeFiles {
				entries = append(entries, Entry{Path: childRel, IsFile: true})
			}
		}
		return nil
	}
	if err := visit(root, ""); err != nil {
		return nil, err
	}
	return entries, nil
}

// Parse reads a template: one relative path per line, either separator accepted,
// blank lines ignored. A line whose last element contains a dot is taken as a file.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p := normalizer.Relative(sc.Text())
		p = strings.TrimRight(p, string(filepath.Separator))
		if p == "" {
			continue
		}
		entries = append(entries, Entry{
			Path:   p,
			IsFile: strings.Contains(filepath.Base(p), "."),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Write writes entries as a template with forward slashes.
func Write(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := bw.WriteString(filepath.ToSlash(e.Path) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Create recreates entries under dest. Each entry is handled on its own; an entry
// that would leave dest or cannot be created is reported and the rest continue.
func Create(fsys afero.Fs, dest string, entries []Entry, opts Options) []Outcome {
	outcomes := make([]Outcome, 0, len(entries))
	for _, e := range entries {
		outcomes = append(outcomes, create(fsys, dest, e, opts))
	}
	return outcomes
}

func create(fsys afero.Fs, dest string, e Entry, opts Options) Outcome {
	out := Outcome{Entry: e}

	full, err := organizer.DestinationPath(dest, filepath.Dir(e.Path), filepath.Base(e.Path))
	if err != nil {
		out.Status, out.Err = StatusError, err
		return out
	}
	out.Path = full

	info, statErr := fsys.Stat(full)
	exists := statErr == nil

	if !opts.IncludeFiles || !e.IsFile {
		if exists {
			if !info.IsDir() {
				out.Status, out.Err = StatusError, fmt.Errorf("%s exists and is not a directory", full)
				return out
			}
			out.Status = StatusExists
			return out
		}
		if err := fsys.MkdirAll(full, 0755); err != nil {
			out.Status, out.Err = StatusError, err
			return out
		}
		out.Status = StatusCreated
		return out
	}

	if exists {
		if info.IsDir() {
			out.Status, out.Err = StatusError, fmt.Errorf("%s exists and is a directory", full)
			return out
		}
		if opts.Safe {
			out.Status = StatusExists
			return out
		}
		now := time.Now()
		if err := fsys.Chtimes(full, now, now); err != nil {
			out.Status, out.Err = StatusError, err
			return out
		}
		out.Status = StatusTouched
		return out
	}

	if err := fsys.MkdirAll(filepath.Dir(full), 0755); err != nil {
		out.Status, out.Err = StatusError, err
		return out
	}
	f, err := fsys.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		out.Status, out.Err = StatusError, err
		return out
	}
	if err := f.Close(); err != nil {
		out.Status, out.Err = StatusError, err
		return out
	}
	out.Status = StatusCreated
	return out
}
