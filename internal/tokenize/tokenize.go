// Package tokenize gives every document under a source tree a unique name before it
// is sent to OCR.
//
// Each file gets a token appended to its base name: either a global counter in walk
// order or the file size in bytes. Files are copied into a staging tree that mirrors
// the source layout, or renamed in place. A name that is already taken gets "_1",
// "_2", ... appended.
package tokenize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"docmigrate/internal/normalizer"
	"docmigrate/internal/organizer"
	"docmigrate/internal/scanner"
)

// DefaultSeparator sits between the original base name and the token.
const DefaultSeparator = "__"

// DefaultPadding is the zero padded width of counter tokens.
const DefaultPadding = 6

// Mode selects where tokenized names are written.
type Mode string

const (
	// ModeCopy keeps the source and writes renamed copies under the staging root.
	ModeCopy Mode = "copy"
	// ModeRename renames files in place.
	ModeRename Mode = "rename"
)

// TokenMode selects how tokens are generated.
type TokenMode string

const (
	// TokenCounter numbers files in walk order, starting at 1.
	TokenCounter TokenMode = "counter"
	// TokenSize uses the file size in bytes.
	TokenSize TokenMode = "size"
)

// Record statuses.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// ReasonDryRun marks records of a dry run.
const ReasonDryRun = "Dry run (no changes made)"

var (
	// ErrStagingRequired is returned when copy mode has no staging root.
	ErrStagingRequired = errors.New("staging root is required for copy mode")
	// ErrInvalidMode is returned for an unknown mode.
	ErrInvalidMode = errors.New("mode must be copy or rename")
	// ErrInvalidTokenMode is returned for an unknown token mode.
	ErrInvalidTokenMode = errors.New("token mode must be counter or size")
	// ErrStagingIsSource is returned when copy mode would stage into the source root itself.
	ErrStagingIsSource = errors.New("staging root must differ from the source root")
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCopy:
		return ModeCopy, nil
	case ModeRename:
		return ModeRename, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// ParseTokenMode validates a token mode name.
func ParseTokenMode(s string) (TokenMode, error) {
	switch TokenMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", TokenCounter:
		return TokenCounter, nil
	case TokenSize:
		return TokenSize, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTokenMode, s)
}

// Options configure a tokenize run.
type Options struct {
	SourceRoot  string
	StagingRoot string // Required in copy mode
	Mode        Mode
	TokenMode   TokenMode
	Padding     int      // Counter width; values below 1 mean 1
	Separator   string   // Defaults to DefaultSeparator when empty
	Include     []string // Canonical extensions; empty processes every file
	Exclude     []string // Extra gitignore-style patterns
	DryRun      bool     // Compute names and collisions without touching files
}

// Record is the outcome for one file.
type Record struct {
	SourcePath   string
	DestPath     string
	OriginalName string
	NewName      string
	Token        string
	Action       string // COPIED or RENAMED, or COPY / RENAME on error
	Status       string
	Reason       string
	Collided     bool
	Err          error
}

// Result summarizes a run.
type Result struct {
	Scanned    int
	Processed  int
	Skipped    int // Files outside the extension filter
	Excluded   int // Entries left out by the exclusion rules
	Collisions int
	Errors     int
	Records    []Record
	Cancelled  bool
}

// Observer receives each record as soon as it is decided.
type Observer func(Record)

// NewName inserts sep and token between the base name and the extension of filename.
func NewName(filename, token, sep string) string {
	base := normalizer.StripExt(filename)
	return base + sep + token + filename[len(base):]
}

// FormatCounter renders counter zero padded to padding digits.
func FormatCounter(counter, padding int) string {
	if padding < 1 {
		padding = 1
	}
	return fmt.Sprintf("%0*d", padding, counter)
}

// Validate checks the options that do not need the filesystem.
func (o Options) Validate() error {
	switch o.Mode {
	case ModeCopy:
		if strings.TrimSpace(o.StagingRoot) == "" {
			return ErrStagingRequired
		}
	case ModeRename:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, o.Mode)
	}
	if o.TokenMode != TokenCounter && o.TokenMode != TokenSize {
		return fmt.Errorf("%w: %q", ErrInvalidTokenMode, o.TokenMode)
	}
	return nil
}

type runner struct {
	fs      afero.Fs
	opts    Options
	mat     *organizer.Materializer
	planned map[string]bool
	counter int
}

// Run tokenizes every file under opts.SourceRoot. Invalid options or a missing source
// root fail before anything is written. Failures for a single file are recorded and
// the run continues; ctx is checked before each file.
func Run(ctx context.Context, fsys afero.Fs, opts Options, observe Observer) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}

	r := &runner{
		fs:      fsys,
		opts:    opts,
		planned: make(map[string]bool),
		counter: 1,
	}
	stagingRel, nested := r.nestedStaging()
	if nested && stagingRel == "" {
		return nil, ErrStagingIsSource
	}

	scanOpts := scanner.TreeOptions()
	scanOpts.Exclude = append(scanOpts.Exclude, opts.Exclude...)
	listing, err := scanner.Walk(fsys, opts.SourceRoot, scanOpts)
	if err != nil {
		return nil, err
	}

	if opts.Mode == ModeCopy && !opts.DryRun {
		if err := fsys.MkdirAll(opts.StagingRoot, 0755); err != nil {
			return nil, fmt.Errorf("create staging root: %w", err)
		}
	}

	if opts.DryRun {
		r.mat = organizer.NewDryRun(fsys)
	} else {
		r.mat = organizer.New(fsys)
	}

	result := &Result{Excluded: len(listing.Excluded)}

	for _, file := range listing.Files {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		if nested && within(file.RelDir, stagingRel) {
			continue
		}

		result.Scanned++
		if len(opts.Include) > 0 && !normalizer.HasExtension(file.Name, opts.Include) {
			result.Skipped++
			continue
		}

		rec := r.process(file)
		if rec.Status == StatusError {
			result.Errors++
		} else {
			result.Processed++
		}
		if rec.Collided {
			result.Collisions++
		}
		result.Records = append(result.Records, rec)
		if observe != nil {
			observe(rec)
		}
	}
	return result, nil
}

// process assigns a token to one file and writes it under its new name.
func (r *runner) process(file scanner.FileEntry) Record {
	rec := Record{
		SourcePath:   file.FullPath,
		OriginalName: file.Name,
		Action:       strings.ToUpper(string(r.opts.Mode)),
	}

	token, err := r.token(file)
	if err != nil {
		rec.Status = StatusError
		rec.Reason = "Could not create token: " + err.Error()
		rec.Err = err
		return rec
	}
	rec.Token = token

	destDir := filepath.Dir(file.FullPath)
	if r.opts.Mode == ModeCopy {
		destDir = filepath.Join(r.opts.StagingRoot, file.RelDir)
	}
	wanted := NewName(file.Name, token, r.opts.Separator)
	final := organizer.NumberedName(wanted, func(name string) bool {
		p := filepath.Join(destDir, name)
		return r.planned[p] || organizer.FileExists(r.fs, p)
	})
	rec.Collided = final != wanted
	rec.NewName = final
	rec.DestPath = filepath.Join(destDir, final)

	if err := r.write(file.FullPath, rec.DestPath); err != nil {
		rec.Status = StatusError
		rec.Reason = err.Error()
		rec.Err = err
		return rec
	}
	r.planned[rec.DestPath] = true

	rec.Status = StatusOK
	if r.opts.Mode == ModeRename {
		rec.Action = "RENAMED"
	} else {
		rec.Action = "COPIED"
	}
	if r.opts.DryRun {
		rec.Reason = ReasonDryRun
	}
	return rec
}

func (r *runner) token(file scanner.FileEntry) (string, error) {
	if r.opts.TokenMode == TokenSize {
		info, err := r.fs.Stat(file.FullPath)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(info.Size(), 10), nil
	}
	token := FormatCounter(r.counter, r.opts.Padding)
	r.counter++
	return token, nil
}

func (r *runner) write(src, dst string) error {
	if r.mat.DryRun() {
		return nil
	}
	if r.opts.Mode == ModeCopy {
		if err := r.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		return r.mat.Transfer(src, dst, organizer.ActionCopy)
	}
	return r.mat.Transfer(src, dst, organizer.ActionMove)
}

// nestedStaging returns the staging root relative to the source root when copies
// would land inside the tree being walked.
func (r *runner) nestedStaging() (string, bool) {
	if r.opts.Mode != ModeCopy {
		return "", false
	}
	rel, err := filepath.Rel(filepath.Clean(r.opts.SourceRoot), filepath.Clean(r.opts.StagingRoot))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		rel = ""
	}
	return rel, true
}

// within reports whether relDir is dir or lies below it. An empty dir contains everything.
func within(relDir, dir string) bool {
	if dir == "" {
		return true
	}
	return relDir == dir || strings.HasPrefix(relDir, dir+string(filepath.Separator))
}
