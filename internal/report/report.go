// Package report builds the xlsx documents written at the end of a run.
//
// Every writer emits a Summary sheet followed by one sheet per row category. A
// category with no rows is still written with its header row, so consumers can rely
// on the sheet set of each report kind.
package report

import (
	"fmt"

	"github.com/spf13/afero"

	"docmigrate/internal/workbook"
)

// Sheet names.
const (
	SheetSummary    = "Summary"
	SheetMissing    = "Missing"
	SheetDuplicates = "Duplicates"
	SheetOrphans    = "Orphans"
	SheetRenames    = "Renames"
	SheetExtra      = "Extra"
)

// Column headers per sheet.
var (
	MissingHeader   = []string{"row_index", "source", "target_folder_rel", "expected_output_name", "reason"}
	DuplicateHeader = []string{"flat_filename", "duplicate_count", "flat_full_path"}
	OrphanHeader    = []string{"flat_filename", "flat_full_path"}
	RenameHeader    = []string{"source_full_path", "new_full_path", "original_name", "new_name", "token", "action", "status", "reason"}
)

// Column headers of the comparison report.
var (
	CompareMissingHeader = []string{"relative_dir", "document", "expected_output", "variants", "source_extensions", "source_full_path", "size_bytes", "modified"}
	CompareExtraHeader   = []string{"relative_path", "file_name", "full_path", "size_bytes", "modified"}
)

// WriteError is returned when the report document could not be written.
// Files already moved or copied by the run are not rolled back.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write report %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Field is one named value of a run summary.
type Field struct {
	Key   string
	Value interface{}
}

// Summary is an ordered list of counters and configuration values. It is written
// as a single row under a header of its keys.
type Summary []Field

// Add appends a field and returns the extended summary.
func (s Summary) Add(key string, value interface{}) Summary {
	return append(s, Field{Key: key, Value: value})
}

// Get returns the value stored under key.
func (s Summary) Get(key string) (interface{}, bool) {
	for _, f := range s {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Header returns the summary keys in order.
func (s Summary) Header() []string {
	h := make([]string, len(s))
	for i, f := range s {
		h[i] = f.Key
	}
	return h
}

// Row returns the summary values in key order.
func (s Summary) Row() []interface{} {
	r := make([]interface{}, len(s))
	for i, f := range s {
		r[i] = f.Value
	}
	return r
}

func (s Summary) sheet() workbook.Sheet {
	return workbook.Sheet{
		Name:   SheetSummary,
		Header: s.Header(),
		Rows:   [][]interface{}{s.Row()},
	}
}

// MissingRow describes a source item that was not placed. RowIndex is the
// spreadsheet row in mapping mode and 0 (written as an empty cell) in tree mode.
type MissingRow struct {
	RowIndex           int
	Source             string
	TargetFolderRel    string
	ExpectedOutputName string
	Reason             string
}

func (r MissingRow) cells() []interface{} {
	var idx interface{}
	if r.RowIndex > 0 {
		idx = r.RowIndex
	}
	return []interface{}{idx, r.Source, r.TargetFolderRel, r.ExpectedOutputName, r.Reason}
}

// DuplicateRow is one physical flat file whose key is shared with another file.
type DuplicateRow struct {
	FlatFilename   string
	DuplicateCount int
	FlatFullPath   string
}

// OrphanRow is a flat file that no source item claimed.
type OrphanRow struct {
	FlatFilename string
	FlatFullPath string
}

// RenameRow is one file handled by the tokenize step.
type RenameRow struct {
	SourceFullPath string
	NewFullPath    string
	OriginalName   string
	NewName        string
	Token          string
	Action         string
	Status         string
	Reason         string
}

// CompareMissingRow is an original document with no output in the revised tree.
type CompareMissingRow struct {
	RelativeDir      string
	Document         string
	ExpectedOutput   string
	Variants         int
	SourceExtensions string
	SourceFullPath   string
	SizeBytes        int64
	Modified         string
}

// CompareExtraRow is a revised output that matches no original document.
type CompareExtraRow struct {
	RelativePath string
	FileName     string
	FullPath     string
	SizeBytes    int64
	Modified     string
}

// Rebuild is the content of a rebuild report.
type Rebuild struct {
	Summary    Summary
	Missing    []MissingRow
	Duplicates []DuplicateRow
	Orphans    []OrphanRow
}

// Sheets lays out the rebuild report.
func (r Rebuild) Sheets() []workbook.Sheet {
	missing := workbook.Sheet{Name: SheetMissing, Header: MissingHeader}
	for _, m := range r.Missing {
		missing.Rows = append(missing.Rows, m.cells())
	}
	dups := workbook.Sheet{Name: SheetDuplicates, Header: DuplicateHeader}
	for _, d := range r.Duplicates {
		dups.Rows = append(dups.Rows, []interface{}{d.FlatFilename, d.DuplicateCount, d.FlatFullPath})
	}
	orphans := workbook.Sheet{Name: SheetOrphans, Header: OrphanHeader}
	for _, o := range r.Orphans {
		orphans.Rows = append(orphans.Rows, []interface{}{o.FlatFilename, o.FlatFullPath})
	}
	return []workbook.Sheet{r.Summary.sheet(), missing, dups, orphans}
}

// Renames is the content of a tokenize report.
type Renames struct {
	Summary Summary
	Rows    []RenameRow
}

// Sheets lays out the tokenize report.
func (r Renames) Sheets() []workbook.Sheet {
	renames := workbook.Sheet{Name: SheetRenames, Header: RenameHeader}
	for _, row := range r.Rows {
		renames.Rows = append(renames.Rows, []interface{}{
			row.SourceFullPath, row.NewFullPath, row.OriginalName, row.NewName,
			row.Token, row.Action, row.Status, row.Reason,
		})
	}
	return []workbook.Sheet{r.Summary.sheet(), renames}
}

// Comparison is the content of a tree comparison report.
type Comparison struct {
	Summary Summary
	Missing []CompareMissingRow
	Extra   []CompareExtraRow
}

// Sheets lays out the comparison report.
func (c Comparison) Sheets() []workbook.Sheet {
	missing := workbook.Sheet{Name: SheetMissing, Header: CompareMissingHeader}
	for _, m := range c.Missing {
		missing.Rows = append(missing.Rows, []interface{}{
			m.RelativeDir, m.Document, m.ExpectedOutput, m.Variants,
			m.SourceExtensions, m.SourceFullPath, m.SizeBytes, m.Modified,
		})
	}
	extra := workbook.Sheet{Name: SheetExtra, Header: CompareExtraHeader}
	for _, e := range c.Extra {
		extra.Rows = append(extra.Rows, []interface{}{e.RelativePath, e.FileName, e.FullPath, e.SizeBytes, e.Modified})
	}
	return []workbook.Sheet{c.Summary.sheet(), missing, extra}
}

// Document is any report that can be laid out as worksheets.
type Document interface {
	Sheets() []workbook.Sheet
}

// Write saves doc at path. The file is either written completely or not at all.
func Write(fsys afero.Fs, path string, doc Document) error {
	if err := workbook.Write(fsys, path, doc.Sheets()); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// WriteRebuild writes a rebuild report.
func WriteRebuild(fsys afero.Fs, path string, summary Summary, missing []MissingRow, duplicates []DuplicateRow, orphans []OrphanRow) error {
	return Write(fsys, path, Rebuild{Summary: summary, Missing: missing, Duplicates: duplicates, Orphans: orphans})
}

// WriteRenames writes a tokenize report.
func WriteRenames(fsys afero.Fs, path string, summary Summary, rows []RenameRow) error {
	return Write(fsys, path, Renames{Summary: summary, Rows: rows})
}

// WriteComparison writes a tree comparison report.
func WriteComparison(fsys afero.Fs, path string, summary Summary, missing []CompareMissingRow, extra []CompareExtraRow) error {
	return Write(fsys, path, Comparison{Summary: summary, Missing: missing, Extra: extra})
}
