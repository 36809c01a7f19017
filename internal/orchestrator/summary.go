package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"docmigrate/internal/audit"
	"docmigrate/internal/config"
	"docmigrate/internal/engine"
	"docmigrate/internal/index"
	"docmigrate/internal/report"
)

const (
	summaryOpen  = "===== Summary ====="
	summaryClose = "==================="
)

// RunSummary holds the counters of a rebuild run.
type RunSummary struct {
	Mode              string // config.ModeTree or config.ModeMapping
	Considered        int    // Inputs scanned in tree mode, rows considered in mapping mode
	Placed            int
	Missing           int
	SkippedDuplicates int
	DuplicateGroups   int // Flat filenames shared by several files
	DuplicateFiles    int // Physical files behind those names
	Orphans           int
	Errors            int
	BlankRows         int // Mapping rows skipped for a blank cell
	Excluded          int // Tree entries left out by the exclusion rules
	DryRun            bool
	Cancelled         bool
	Duration          time.Duration
}

// GenerateSummary derives the run summary from an engine result.
func GenerateSummary(mode string, idx *index.Index, result *engine.Result, duration time.Duration) RunSummary {
	s := RunSummary{Mode: mode, Duration: duration}
	if idx != nil {
		s.DuplicateGroups = idx.DuplicateGroupCount()
		s.DuplicateFiles = idx.DuplicateFileCount()
	}
	if result == nil {
		return s
	}
	s.Considered = result.Counts.Considered
	s.Placed = result.Counts.Placed
	s.Missing = result.Counts.Missing
	s.SkippedDuplicates = result.Counts.SkippedDuplicates
	s.Errors = result.Counts.Errors
	s.Orphans = len(result.Orphans)
	s.Cancelled = result.Cancelled
	return s
}

// HasErrors returns true if any item failed.
func (s RunSummary) HasErrors() bool {
	return s.Errors > 0
}

// Lines renders the summary block narrated at the end of a run.
func (s RunSummary) Lines() []string {
	first := "Inputs scanned:"
	if s.Mode == config.ModeMapping {
		first = "Rows considered:"
	}
	lines := []string{
		summaryOpen,
		summaryRow(28, first, s.Considered),
		summaryRow(28, "Moved/Copied:", s.Placed),
		summaryRow(28, "Missing (not found):", s.Missing),
		summaryRow(28, "Skipped (duplicates):", s.SkippedDuplicates),
		summaryRow(28, "Duplicate filenames (flat):", s.DuplicateGroups),
		summaryRow(28, "Duplicate files (flat):", s.DuplicateFiles),
		summaryRow(28, "Orphans total:", s.Orphans),
		summaryRow(28, "Errors:", s.Errors),
	}
	if s.Mode == config.ModeMapping && s.BlankRows > 0 {
		lines = append(lines, summaryRow(28, "Blank rows skipped:", s.BlankRows))
	}
	if s.Mode != config.ModeMapping && s.Excluded > 0 {
		lines = append(lines, summaryRow(28, "Excluded by pattern:", s.Excluded))
	}
	if s.Cancelled {
		lines = append(lines, "Run interrupted before every item was processed")
	}
	return append(lines, summaryClose)
}

// summaryRow pads label to width so the counts line up.
func summaryRow(width int, label string, n int) string {
	return fmt.Sprintf("%-*s%d", width, label, n)
}

// Fields lays the summary out as the report's Summary sheet, echoing the
// configuration that produced it.
func (s RunSummary) Fields(cfg *config.Rebuild) report.Summary {
	var f report.Summary
	if s.Mode == config.ModeMapping {
		f = f.Add("mode", "XLSX mapping").
			Add("spreadsheet", cfg.Mapping.SheetFile).
			Add("worksheet", cfg.Mapping.Sheet).
			Add("directory_col", cfg.Mapping.DirectoryColumn).
			Add("name_col", cfg.Mapping.NameColumn).
			Add("flat_folder", cfg.FlatFolder)
	} else {
		f = f.Add("mode", "Original structure template").
			Add("original_root", cfg.SourceRoot).
			Add("flat_output_folder", cfg.FlatFolder)
	}
	f = f.Add("destination_root", cfg.DestRoot).
		Add("action", cfg.Action).
		Add("collision", cfg.Collision).
		Add("output_ext", cfg.OutputExt).
		Add("output_suffix", cfg.Suffix)
	if s.Mode == config.ModeMapping {
		f = f.Add("rows_considered", s.Considered).
			Add("rows_blank", s.BlankRows)
	} else {
		f = f.Add("include_exts", strings.Join(cfg.Include, ",")).
			Add("inputs_scanned", s.Considered).
			Add("excluded_by_pattern", s.Excluded)
	}
	return f.Add("moved_or_copied", s.Placed).
		Add("missing_not_found", s.Missing).
		Add("skipped_duplicates", s.SkippedDuplicates).
		Add("duplicate_filenames_in_flat", s.DuplicateGroups).
		Add("duplicate_files_in_flat", s.DuplicateFiles).
		Add("orphans_total", s.Orphans).
		Add("errors", s.Errors).
		Add("dry_run", s.DryRun).
		Add("interrupted", s.Cancelled)
}

// Audit converts the summary for the RUN_END event.
func (s RunSummary) Audit() audit.RunSummary {
	return audit.RunSummary{
		Considered:        s.Considered,
		Placed:            s.Placed,
		Missing:           s.Missing,
		SkippedDuplicates: s.SkippedDuplicates,
		Orphans:           s.Orphans,
		Errors:            s.Errors,
	}
}

// TokenizeSummary holds the counters of a tokenize run.
type TokenizeSummary struct {
	Scanned    int
	Processed  int
	Skipped    int
	Excluded   int
	Collisions int
	Errors     int
	DryRun     bool
	Cancelled  bool
	Duration   time.Duration
}

// HasErrors returns true if any file failed.
func (s TokenizeSummary) HasErrors() bool {
	return s.Errors > 0
}

// Lines renders the tokenize summary block.
func (s TokenizeSummary) Lines() []string {
	lines := []string{
		summaryOpen,
		summaryRow(13, "Scanned:", s.Scanned),
		summaryRow(13, "Processed:", s.Processed),
		summaryRow(13, "Skipped:", s.Skipped),
		summaryRow(13, "Collisions:", s.Collisions),
		summaryRow(13, "Errors:", s.Errors),
	}
	if s.Excluded > 0 {
		lines = append(lines, summaryRow(13, "Excluded:", s.Excluded))
	}
	if s.Cancelled {
		lines = append(lines, "Run interrupted before every file was processed")
	}
	return append(lines, summaryClose)
}

// Fields lays the tokenize summary out as the report's Summary sheet.
func (s TokenizeSummary) Fields(cfg *config.Tokenize) report.Summary {
	var padding interface{} = ""
	if cfg.Token == "counter" {
		padding = cfg.Padding
	}
	staging := ""
	if cfg.Mode == "copy" {
		staging = cfg.StagingRoot
	}
	return report.Summary{}.
		Add("mode", cfg.Mode).
		Add("token_mode", cfg.Token).
		Add("counter_padding", padding).
		Add("source_root", cfg.SourceRoot).
		Add("staging_root", staging).
		Add("separator", cfg.Separator).
		Add("filter_enabled", len(cfg.Include) > 0).
		Add("include_exts", strings.Join(cfg.Include, ",")).
		Add("files_scanned", s.Scanned).
		Add("files_processed", s.Processed).
		Add("skipped", s.Skipped).
		Add("excluded_by_pattern", s.Excluded).
		Add("collisions", s.Collisions).
		Add("errors", s.Errors).
		Add("dry_run", s.DryRun).
		Add("interrupted", s.Cancelled)
}

// Audit converts the summary for the RUN_END event.
func (s TokenizeSummary) Audit() audit.RunSummary {
	return audit.RunSummary{
		Considered: s.Processed + s.Errors,
		Placed:     s.Processed,
		Errors:     s.Errors,
	}
}

// CompareSummary holds the counters of a tree comparison.
type CompareSummary struct {
	OriginalFiles int
	RevisedFiles  int
	Documents     int
	Matched       int
	Missing       int
	Extra         int
	Extracted     int
	ExtractFailed int
	Cancelled     bool
	Duration      time.Duration
}

// HasErrors returns true if an extraction copy failed.
func (s CompareSummary) HasErrors() bool {
	return s.ExtractFailed > 0
}

// Lines renders the comparison summary block.
func (s CompareSummary) Lines() []string {
	lines := []string{
		summaryOpen,
		summaryRow(17, "Original files:", s.OriginalFiles),
		summaryRow(17, "Revised files:", s.RevisedFiles),
		summaryRow(17, "Documents:", s.Documents),
		summaryRow(17, "Matched:", s.Matched),
		summaryRow(17, "Missing:", s.Missing),
		summaryRow(17, "Extra:", s.Extra),
	}
	if s.Extracted > 0 || s.ExtractFailed > 0 {
		lines = append(lines,
			summaryRow(17, "Extracted:", s.Extracted),
			summaryRow(17, "Extract errors:", s.ExtractFailed),
		)
	}
	if s.Cancelled {
		lines = append(lines, "Run interrupted before every file was processed")
	}
	return append(lines, summaryClose)
}

// Fields lays the comparison summary out as the report's Summary sheet.
func (s CompareSummary) Fields(cfg *config.Compare) report.Summary {
	return report.Summary{}.
		Add("original_root", cfg.OriginalRoot).
		Add("revised_root", cfg.RevisedRoot).
		Add("match_mode", matchMode(cfg.ExactPath)).
		Add("output_ext", cfg.OutputExt).
		Add("skip_hidden", cfg.SkipHidden).
		Add("skip_extensions", strings.Join(cfg.SkipExtensions, ",")).
		Add("original_files", s.OriginalFiles).
		Add("revised_files", s.RevisedFiles).
		Add("documents", s.Documents).
		Add("matched", s.Matched).
		Add("missing", s.Missing).
		Add("extra", s.Extra).
		Add("extract_to", cfg.ExtractTo).
		Add("extracted", s.Extracted).
		Add("extract_errors", s.ExtractFailed)
}

// Audit converts the summary for the RUN_END event.
func (s CompareSummary) Audit() audit.RunSummary {
	return audit.RunSummary{
		Considered: s.Documents,
		Placed:     s.Matched,
		Missing:    s.Missing,
		Orphans:    s.Extra,
		Errors:     s.ExtractFailed,
	}
}
