// Package compare checks an original document tree against the tree of OCR outputs
// produced from it, and can extract the sources of every document still missing.
//
// An original document is identified by its relative directory and its file name
// without extension, so "a/plan.dgn" and "a/plan.tif" are two variants of one
// document. The revised tree is expected to hold "a/plan" plus the output extension.
//
// In exact-path mode every file is its own document and both trees are keyed by
// the case-folded relative path, so "a/plan.dgn" is only matched by "a/plan.dgn".
package compare

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"docmigrate/internal/normalizer"
	"docmigrate/internal/organizer"
	"docmigrate/internal/scanner"
)

// Options configure a comparison.
type Options struct {
	OriginalRoot   string
	RevisedRoot    string
	OutputExt      string   // Defaults to .pdf
	SkipHidden     bool
	SkipExtensions []string // Canonical extensions ignored in both trees
	Exclude        []string // Extra gitignore-style patterns
	ExactPath      bool     // Match files by relative path instead of by document
}

// File is one file found in either tree.
type File struct {
	Name     string
	RelPath  string
	RelDir   string
	FullPath string
	Size     int64
	ModTime  time.Time
}

// Document groups the variants of one original document. An exact-path document
// holds a single file.
type Document struct {
	RelDir   string
	Stem     string
	Variants []File
	Exact    bool
}

// ExpectedName is the file name the revised tree should contain.
func (d Document) ExpectedName(outputExt string) string {
	if d.Exact {
		return d.Variants[0].Name
	}
	return d.Stem + outputExt
}

// ExpectedPath is the output path relative to the revised root.
func (d Document) ExpectedPath(outputExt string) string {
	return filepath.Join(d.RelDir, d.ExpectedName(outputExt))
}

// Extensions lists the distinct variant extensions, sorted.
func (d Document) Extensions() []string {
	seen := make(map[string]bool)
	var exts []string
	for _, v := range d.Variants {
		ext := strings.ToLower(filepath.Ext(v.Name))
		if !seen[ext] {
			seen[ext] = true
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// Representative returns the largest variant; on equal sizes an output-extension
// variant wins, then the earliest in walk order.
func (d Document) Representative(outputExt string) File {
	best := d.Variants[0]
	for _, v := range d.Variants[1:] {
		if v.Size > best.Size || (v.Size == best.Size && isOutput(v.Name, outputExt) && !isOutput(best.Name, outputExt)) {
			best = v
		}
	}
	return best
}

// Result is the outcome of a comparison.
type Result struct {
	OriginalRoot  string
	RevisedRoot   string
	OutputExt     string
	ExactPath     bool
	OriginalFiles int
	RevisedFiles  int
	Documents     int
	Matched       int
	Missing       []Document // Original documents with no output, in walk order
	Extra         []File     // Revised outputs with no original document, in walk order
}

// docKey is the matching key of f in the original tree.
func (r *Result) docKey(f File) string {
	if r.ExactPath {
		return normalizer.Key(f.RelPath)
	}
	return key(f.RelDir, normalizer.StripExt(f.Name))
}

// outputKey is the matching key of f in the revised tree. ok is false for files
// that are not outputs.
func (r *Result) outputKey(f File) (k string, ok bool) {
	if r.ExactPath {
		return normalizer.Key(f.RelPath), true
	}
	if !isOutput(f.Name, r.OutputExt) {
		return "", false
	}
	return key(f.RelDir, normalizer.StripExt(f.Name)), true
}

// Run walks both trees and compares them. Either root missing is an error.
func Run(ctx context.Context, fsys afero.Fs, opts Options) (*Result, error) {
	outputExt := normalizer.Extension(opts.OutputExt)
	if outputExt == "" {
		outputExt = ".pdf"
	}

	original, err := walk(ctx, fsys, opts.OriginalRoot, opts)
	if err != nil {
		return nil, err
	}
	revised, err := walk(ctx, fsys, opts.RevisedRoot, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{
		OriginalRoot:  opts.OriginalRoot,
		RevisedRoot:   opts.RevisedRoot,
		OutputExt:     outputExt,
		ExactPath:     opts.ExactPath,
		OriginalFiles: len(original),
		RevisedFiles:  len(revised),
	}

	var order []string
	docs := make(map[string]*Document)
	for _, f := range original {
		k := result.docKey(f)
		d, ok := docs[k]
		if !ok {
			d = &Document{RelDir: f.RelDir, Stem: normalizer.StripExt(f.Name), Exact: opts.ExactPath}
			docs[k] = d
			order = append(order, k)
		}
		d.Variants = append(d.Variants, f)
	}
	result.Documents = len(order)

	outputs := make(map[string]bool)
	for _, f := range revised {
		k, ok := result.outputKey(f)
		if !ok {
			continue
		}
		outputs[k] = true
		if docs[k] == nil {
			result.Extra = append(result.Extra, f)
		}
	}

	for _, k := range order {
		if outputs[k] {
			result.Matched++
			continue
		}
		result.Missing = append(result.Missing, *docs[k])
	}
	return result, nil
}

// ExtractResult counts the files copied by Extract.
type ExtractResult struct {
	Total     int
	Copied    int
	Failed    int
	Failures  []error
	Cancelled bool
}

// ExtractObserver is told about every file Extract attempts.
type ExtractObserver func(src, dst string, err error)

// Extract copies every variant of every missing document into destRoot, keeping the
// relative layout of the original tree. A failed copy is counted and the extraction
// continues; ctx is checked before each file.
func Extract(ctx context.Context, fsys afero.Fs, result *Result, destRoot string, observe ExtractObserver) (*ExtractResult, error) {
	if err := fsys.MkdirAll(destRoot, 0755); err != nil {
		return nil, fmt.Errorf("create extraction root: %w", err)
	}

	mat := organizer.New(fsys)
	out := &ExtractResult{}
	for _, d := range result.Missing {
		out.Total += len(d.Variants)
	}

	for _, d := range result.Missing {
		for _, v := range d.Variants {
			if ctx.Err() != nil {
				out.Cancelled = true
				return out, nil
			}
			_, err := mat.Place(organizer.PlaceRequest{
				Source:       v.FullPath,
				DestRoot:     destRoot,
				TargetRelDir: v.RelDir,
				Name:         v.Name,
				Action:       organizer.ActionCopy,
				Collision:    organizer.CollisionOverwrite,
			})
			dst := filepath.Join(destRoot, v.RelPath)
			if err != nil {
				out.Failed++
				out.Failures = append(out.Failures, err)
			} else {
				out.Copied++
			}
			if observe != nil {
				observe(v.FullPath, dst, err)
			}
		}
	}
	return out, nil
}

func walk(ctx context.Context, fsys afero.Fs, root string, opts Options) ([]File, error) {
	scanOpts := scanner.TreeOptions()
	scanOpts.SkipHidden = opts.SkipHidden
	scanOpts.Exclude = append(scanOpts.Exclude, opts.Exclude...)

	listing, err := scanner.Walk(fsys, root, scanOpts)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(listing.Files))
	for _, e := range listing.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(opts.SkipExtensions) > 0 && normalizer.HasExtension(e.Name, opts.SkipExtensions) {
			continue
		}
		f := File{
			Name:     e.Name,
			RelPath:  filepath.Join(e.RelDir, e.Name),
			RelDir:   e.RelDir,
			FullPath: e.FullPath,
			Size:     e.Size,
		}
		if info, err := fsys.Stat(e.FullPath); err == nil {
			f.ModTime = info.ModTime()
		}
		files = append(files, f)
	}
	return files, nil
}

func key(relDir, stem string) string {
	return normalizer.Key(filepath.Join(relDir, stem))
}

func isOutput(name, outputExt string) bool {
	return strings.EqualFold(filepath.Ext(name), outputExt)
}
