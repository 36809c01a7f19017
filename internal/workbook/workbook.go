// Package workbook reads mapping worksheets and writes multi-sheet xlsx reports.
package workbook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
)

// Default header names for the mapping columns.
const (
	DefaultDirectoryHeader = "Directory"
	DefaultNameHeader      = "Name"
)

// ErrSheetNotFound is returned when the requested worksheet does not exist.
var ErrSheetNotFound = errors.New("worksheet not found")

// ColumnError reports a header that is absent from a worksheet.
type ColumnError struct {
	Sheet  string
	Header string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q not found in sheet %q", e.Header, e.Sheet)
}

// Row is one data row of a worksheet.
type Row struct {
	Number int // Spreadsheet row number; the header is row 1
	Cells  []string
}

// Cell returns the trimmed value of column i, or "" when the row is shorter.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[i])
}

// Table is a worksheet read into memory: a header row and the data rows below it.
type Table struct {
	Sheet  string
	Header []string
	Rows   []Row
}

// ColumnBinding holds the resolved positions of the mapping columns.
type ColumnBinding struct {
	DirectoryHeader string
	NameHeader      string
	Directory       int
	Name            int
}

// Column returns the index of header. An exact match on the trimmed header wins;
// otherwise the first case-insensitive match is used.
func (t *Table) Column(header string) (int, bool) {
	want := strings.TrimSpace(header)
	for i, h := range t.Header {
		if strings.TrimSpace(h) == want {
			return i, true
		}
	}
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i, true
		}
	}
	return -1, false
}

// Bind resolves the directory and name columns once. Either header missing is an error.
func (t *Table) Bind(directoryHeader, nameHeader string) (ColumnBinding, error) {
	if directoryHeader == "" {
		directoryHeader = DefaultDirectoryHeader
	}
	if nameHeader == "" {
		nameHeader = DefaultNameHeader
	}
	dir, ok := t.Column(directoryHeader)
	if !ok {
		return ColumnBinding{}, &ColumnError{Sheet: t.Sheet, Header: directoryHeader}
	}
	name, ok := t.Column(nameHeader)
	if !ok {
		return ColumnBinding{}, &ColumnError{Sheet: t.Sheet, Header: nameHeader}
	}
	return ColumnBinding{
		DirectoryHeader: directoryHeader,
		NameHeader:      nameHeader,
		Directory:       dir,
		Name:            name,
	}, nil
}

// open reads an xlsx document from fsys.
func open(fsys afero.Fs, path string) (*excelize.File, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := excelize.OpenReader(f)
	if err != nil {
		return nil, fmt.Errorf("read workbook %s: %w", path, err)
	}
	return x, nil
}

// SheetNames lists the worksheets of the workbook at path in tab order.
func SheetNames(fsys afero.Fs, path string) ([]string, error) {
	x, err := open(fsys, path)
	if err != nil {
		return nil, err
	}
	defer x.Close()
	return x.GetSheetList(), nil
}

// Headers returns the first row of sheet.
func Headers(fsys afero.Fs, path, sheet string) ([]string, error) {
	t, err := ReadSheet(fsys, path, sheet)
	if err != nil {
		return nil, err
	}
	return t.Header, nil
}

// ReadSheet loads sheet from the workbook at path. The first row is the header;
// every later row, blank ones included, keeps its spreadsheet row number.
func ReadSheet(fsys afero.Fs, path, sheet string) (*Table, error) {
	x, err := open(fsys, path)
	if err != nil {
		return nil, err
	}
	defer x.Close()

	if idx, err := x.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q in %s", ErrSheetNotFound, sheet, path)
	}

	rows, err := x.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	t := &Table{Sheet: sheet, Header: []string{}}
	if len(rows) == 0 {
		return t, nil
	}
	t.Header = rows[0]
	for i, cells := range rows[1:] {
		t.Rows = append(t.Rows, Row{Number: i + 2, Cells: cells})
	}
	return t, nil
}

// Sheet is one worksheet of a report. Header is always written, even with no rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}

// Write saves sheets as a single xlsx document at path. The document is written to a
// temporary file in the target directory and renamed into place, so path either holds
// the complete workbook or is left untouched.
func Write(fsys afero.Fs, path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return errors.New("workbook needs at least one sheet")
	}

	x := excelize.NewFile()
	defer x.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := x.SetSheetName(x.GetSheetName(0), s.Name); err != nil {
				return err
			}
		} else if _, err := x.NewSheet(s.Name); err != nil {
			return err
		}
		if err := fillSheet(x, s); err != nil {
			return fmt.Errorf("sheet %s: %w", s.Name, err)
		}
	}
	x.SetActiveSheet(0)

	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := afero.TempFile(fsys, dir, ".docmigrate-*.xlsx")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := x.Write(tmp); err != nil {
		tmp.Close()
		fsys.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpName)
		return err
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		fsys.Remove(tmpName)
		return err
	}
	return nil
}

func fillSheet(x *excelize.File, s Sheet) error {
	header := make([]interface{}, len(s.Header))
	for i, h := range s.Header {
		header[i] = h
	}
	if err := x.SetSheetRow(s.Name, "A1", &header); err != nil {
		return err
	}
	for i, row := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row
		if err := x.SetSheetRow(s.Name, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether path names a regular file.
func Exists(fsys afero.Fs, path string) bool {
	info, err := fsys.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Mode()&os.ModeType == 0
}
