// Package resolver computes, for each source item, the output filename expected in
// the flat folder and the directory the output belongs in under the destination root.
package resolver

import (
	"strings"

	"docmigrate/internal/normalizer"
	"docmigrate/internal/scanner"
	"docmigrate/internal/workbook"
)

// DefaultOutputExt is used when no output extension is configured.
const DefaultOutputExt = ".pdf"

// Origin identifies where a source item came from.
type Origin int

const (
	// TreeWalk items are files found under the reference root.
	TreeWalk Origin = iota
	// MappingRow items are rows of a mapping worksheet.
	MappingRow
)

// String returns the report label of the origin.
func (o Origin) String() string {
	switch o {
	case TreeWalk:
		return "tree"
	case MappingRow:
		return "mapping"
	default:
		return "unknown"
	}
}

// SourceItem is one unit that is expected to have an output in the flat folder.
type SourceItem struct {
	Origin Origin

	// Tree items.
	FullPath string // Absolute path of the source file
	RelDir   string // Containing directory relative to the reference root
	FileName string

	// Mapping items.
	Row       int    // Spreadsheet row number
	DirValue  string // Raw directory cell
	NameValue string // Raw name cell
}

// Source is the identifier reported for the item: the file path for tree items and
// the normalized directory value for mapping rows.
func (s SourceItem) Source() string {
	if s.Origin == MappingRow {
		return normalizer.Path(s.DirValue)
	}
	return s.FullPath
}

// Expectation is what the flat folder should contain for a source item.
type Expectation struct {
	Key          string // Case-folded match key
	DisplayName  string // Expected filename with original casing
	TargetRelDir string // Directory under the destination root
}

// Naming appends the configured suffix and output extension to a base name.
type Naming struct {
	Suffix string
	Ext    string
}

// NewNaming trims suffix and canonicalizes ext, falling back to DefaultOutputExt.
func NewNaming(suffix, ext string) Naming {
	ext = normalizer.Extension(ext)
	if ext == "" {
		ext = DefaultOutputExt
	}
	return Naming{Suffix: strings.TrimSpace(suffix), Ext: ext}
}

// Expect returns the expected display name and match key for base.
func (n Naming) Expect(base string) (display, key string) {
	display = base + n.Suffix + n.Ext
	return display, normalizer.Key(display)
}

// Resolver maps a source item to its expectation. ok is false for items that carry
// nothing to match.
type Resolver interface {
	Resolve(item SourceItem) (exp Expectation, ok bool)
}

// TreeResolver resolves files found by walking the reference tree.
type TreeResolver struct {
	Naming Naming
}

// Resolve strips the extension of the source filename and keeps its relative directory.
func (r TreeResolver) Resolve(item SourceItem) (Expectation, bool) {
	if item.FileName == "" {
		return Expectation{}, false
	}
	display, key := r.Naming.Expect(normalizer.StripExt(item.FileName))
	return Expectation{
		Key:          key,
		DisplayName:  display,
		TargetRelDir: item.RelDir,
	}, true
}

// MappingResolver resolves rows of a mapping worksheet.
type MappingResolver struct {
	Naming Naming
	// AbsoluteDirs marks the directory column as holding full paths; the drive and
	// leading separators are stripped to make them destination-relative.
	AbsoluteDirs bool
}

// Resolve places the item in the parent directory of the directory value and expects
// the name value, without any extension it carries, plus suffix and output extension.
func (r MappingResolver) Resolve(item SourceItem) (Expectation, bool) {
	dirValue := normalizer.Path(item.DirValue)
	nameValue := strings.TrimSpace(item.NameValue)
	if dirValue == "" || nameValue == "" {
		return Expectation{}, false
	}

	base := strings.TrimSpace(normalizer.StripExt(nameValue))
	display, key := r.Naming.Expect(base)

	parent := normalizer.Dir(dirValue)
	var target string
	if r.AbsoluteDirs {
		target = normalizer.Relative(parent)
	} else {
		target = normalizer.Trim(parent)
	}

	return Expectation{
		Key:          key,
		DisplayName:  display,
		TargetRelDir: target,
	}, true
}

// FromTree turns a reference tree listing into source items. Files already carrying
// the output extension are left out so a rerun does not treat placed outputs as
// sources. When include is non-empty only files with one of those extensions are kept.
func FromTree(files []scanner.FileEntry, outputExt string, include []string) []SourceItem {
	outputExt = normalizer.Extension(outputExt)
	items := make([]SourceItem, 0, len(files))
	for _, f := range files {
		lower := strings.ToLower(f.Name)
		if outputExt != "" && strings.HasSuffix(lower, outputExt) {
			continue
		}
		if len(include) > 0 && !normalizer.HasExtension(f.Name, include) {
			continue
		}
		items = append(items, SourceItem{
			Origin:   TreeWalk,
			FullPath: f.FullPath,
			RelDir:   f.RelDir,
			FileName: f.Name,
		})
	}
	return items
}

// FromTable turns worksheet rows into source items in row order. Rows with a blank
// directory or name cell are dropped and counted in skipped.
func FromTable(table *workbook.Table, binding workbook.ColumnBinding) (items []SourceItem, skipped int) {
	for _, row := range table.Rows {
		dir := row.Cell(binding.Directory)
		name := row.Cell(binding.Name)
		if dir == "" || name == "" {
			skipped++
			continue
		}
		items = append(items, SourceItem{
			Origin:    MappingRow,
			Row:       row.Number,
			DirValue:  dir,
			NameValue: name,
		})
	}
	return items, skipped
}
