package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"docmigrate/internal/normalizer"
	"docmigrate/internal/organizer"
	"docmigrate/internal/tokenize"
)

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ConfigValidationError represents a single validation issue.
type ConfigValidationError struct {
	Field    string             // Config field with issue (e.g., "rebuild.flatFolder")
	Message  string             // Human-readable description
	Severity ValidationSeverity // "error" or "warning"
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	Errors   []ConfigValidationError
	Warnings []ConfigValidationError
	Valid    bool // True if no errors (warnings OK)
}

func newResult() *ValidationResult {
	return &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
		Valid:    true,
	}
}

func (r *ValidationResult) add(field, message string, severity ValidationSeverity) {
	issue := ConfigValidationError{Field: field, Message: message, Severity: severity}
	if severity == SeverityError {
		r.Errors = append(r.Errors, issue)
		r.Valid = false
	} else {
		r.Warnings = append(r.Warnings, issue)
	}
}

func (r *ValidationResult) errorf(field, message string) { r.add(field, message, SeverityError) }

func (r *ValidationResult) warnf(field, message string) { r.add(field, message, SeverityWarning) }

// Err returns the errors as one VALIDATION_ERROR ConfigError, or nil when valid.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return &ConfigError{Type: ValidationError, Message: strings.Join(parts, "; ")}
}

// ValidateRebuild checks a rebuild job before any file is touched.
func ValidateRebuild(fsys afero.Fs, cfg *Rebuild) *ValidationResult {
	result := newResult()

	switch cfg.Mode {
	case ModeTree:
		requireDirectory(fsys, result, "rebuild.sourceRoot", cfg.SourceRoot)
	case ModeMapping:
		requireFile(fsys, result, "rebuild.mapping.sheetFile", cfg.Mapping.SheetFile)
	default:
		result.errorf("rebuild.mode", "invalid mode: \""+cfg.Mode+"\". Must be \"tree\" or \"mapping\"")
	}

	requireDirectory(fsys, result, "rebuild.flatFolder", cfg.FlatFolder)
	requireCreatable(fsys, result, "rebuild.destRoot", cfg.DestRoot)

	if _, err := organizer.ParseAction(cfg.Action); err != nil {
		result.errorf("rebuild.action", err.Error())
	}
	if _, err := organizer.ParseCollisionPolicy(cfg.Collision); err != nil {
		result.errorf("rebuild.collision", err.Error())
	}
	checkOutputExt(result, "rebuild.outputExt", cfg.OutputExt)

	if cfg.DestRoot != "" && cfg.FlatFolder != "" && isWithin(cfg.DestRoot, cfg.FlatFolder) {
		result.warnf("rebuild.destRoot", "destination is inside the flat folder: "+cfg.DestRoot)
	}
	if cfg.Mode == ModeTree && cfg.SourceRoot != "" {
		if cfg.DestRoot != "" && isWithin(cfg.DestRoot, cfg.SourceRoot) {
			result.warnf("rebuild.destRoot", "destination is inside the source tree: "+cfg.DestRoot)
		}
		if cfg.FlatFolder != "" && isWithin(cfg.FlatFolder, cfg.SourceRoot) {
			result.warnf("rebuild.flatFolder", "flat folder is inside the source tree: "+cfg.FlatFolder)
		}
	}
	checkPatterns(result, "rebuild.exclude", cfg.Exclude)
	checkReportPath(result, "rebuild.reportPath", cfg.ReportPath)

	return result
}

// ValidateTokenize checks a tokenize job before any file is touched.
func ValidateTokenize(fsys afero.Fs, cfg *Tokenize) *ValidationResult {
	result := newResult()

	requireDirectory(fsys, result, "tokenize.sourceRoot", cfg.SourceRoot)

	mode, err := tokenize.ParseMode(cfg.Mode)
	if err != nil {
		result.errorf("tokenize.mode", err.Error())
	}
	if _, err := tokenize.ParseTokenMode(cfg.Token); err != nil {
		result.errorf("tokenize.token", err.Error())
	}

	if mode == tokenize.ModeCopy {
		switch {
		case strings.TrimSpace(cfg.StagingRoot) == "":
			result.errorf("tokenize.stagingRoot", "a staging folder is required in copy mode")
		case cfg.SourceRoot != "" && filepath.Clean(cfg.StagingRoot) == filepath.Clean(cfg.SourceRoot):
			result.errorf("tokenize.stagingRoot", "staging folder must differ from the source folder")
		case cfg.SourceRoot != "" && isWithin(cfg.StagingRoot, cfg.SourceRoot):
			result.warnf("tokenize.stagingRoot", "staging folder is inside the source tree and is skipped by the walk: "+cfg.StagingRoot)
		}
	}

	if cfg.Padding < 0 {
		result.errorf("tokenize.padding", "padding must be a non-negative integer")
	}
	if strings.ContainsAny(cfg.Separator, `/\`) {
		result.errorf("tokenize.separator", "separator cannot contain a path separator")
	}
	checkPatterns(result, "tokenize.exclude", cfg.Exclude)
	checkReportPath(result, "tokenize.reportPath", cfg.ReportPath)

	return result
}

// ValidateCompare checks a comparison job.
func ValidateCompare(fsys afero.Fs, cfg *Compare) *ValidationResult {
	result := newResult()

	requireDirectory(fsys, result, "compare.originalRoot", cfg.OriginalRoot)
	requireDirectory(fsys, result, "compare.revisedRoot", cfg.RevisedRoot)
	checkOutputExt(result, "compare.outputExt", cfg.OutputExt)

	if cfg.OriginalRoot != "" && cfg.RevisedRoot != "" && directoriesOverlap(cfg.OriginalRoot, cfg.RevisedRoot) {
		result.warnf("compare.revisedRoot", "original and revised trees overlap")
	}
	if cfg.ExtractTo != "" {
		requireCreatable(fsys, result, "compare.extractTo", cfg.ExtractTo)
		for _, root := range []string{cfg.OriginalRoot, cfg.RevisedRoot} {
			if root != "" && isWithin(cfg.ExtractTo, root) {
				result.warnf("compare.extractTo", "extraction folder is inside a compared tree: "+cfg.ExtractTo)
				break
			}
		}
	}
	checkPatterns(result, "compare.exclude", cfg.Exclude)
	checkReportPath(result, "compare.reportPath", cfg.ReportPath)

	return result
}

// ValidateStructureCapture checks the source of a template capture.
func ValidateStructureCapture(fsys afero.Fs, cfg *Structure) *ValidationResult {
	result := newResult()
	requireDirectory(fsys, result, "structure.sourceRoot", cfg.SourceRoot)
	return result
}

// ValidateStructureCreate checks a structure creation job. Exactly one of a
// template file or a source tree must be given.
func ValidateStructureCreate(fsys afero.Fs, cfg *Structure) *ValidationResult {
	result := newResult()

	requireCreatable(fsys, result, "structure.destRoot", cfg.DestRoot)

	switch {
	case cfg.Template != "" && cfg.SourceRoot != "":
		result.errorf("structure.template", "give either a template or a source tree, not both")
	case cfg.Template != "":
		requireFile(fsys, result, "structure.template", cfg.Template)
	case cfg.SourceRoot != "":
		requireDirectory(fsys, result, "structure.sourceRoot", cfg.SourceRoot)
		if cfg.DestRoot != "" && directoriesOverlap(cfg.DestRoot, cfg.SourceRoot) {
			result.warnf("structure.destRoot", "destination overlaps the source tree")
		}
	default:
		result.errorf("structure.template", "a template or a source tree is required")
	}

	return result
}

// ValidateWatch checks watch timings.
func ValidateWatch(cfg *Watch) *ValidationResult {
	result := newResult()
	if cfg.DebounceMs < 0 {
		result.errorf("watch.debounceMs", "debounceMs must be a non-negative integer")
	}
	if cfg.StabilityMs < 0 {
		result.errorf("watch.stabilityMs", "stabilityMs must be a non-negative integer")
	}
	if cfg.StabilityChecks < 1 {
		result.errorf("watch.stabilityChecks", "stabilityChecks must be at least 1")
	}
	return result
}

// requireDirectory reports a missing, inaccessible or non-directory path.
func requireDirectory(fsys afero.Fs, result *ValidationResult, field, dir string) {
	if strings.TrimSpace(dir) == "" {
		result.errorf(field, "directory is required")
		return
	}
	info, err := fsys.Stat(dir)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			result.errorf(field, "directory does not exist: "+dir)
		case os.IsPermission(err):
			result.errorf(field, "directory is not accessible: "+dir)
		default:
			result.errorf(field, "error accessing directory: "+err.Error())
		}
		return
	}
	if !info.IsDir() {
		result.errorf(field, "path is not a directory: "+dir)
	}
}

// requireFile reports a missing path or one that is a directory.
func requireFile(fsys afero.Fs, result *ValidationResult, field, path string) {
	if strings.TrimSpace(path) == "" {
		result.errorf(field, "file is required")
		return
	}
	info, err := fsys.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			result.errorf(field, "file does not exist: "+path)
		} else {
			result.errorf(field, "error accessing file: "+err.Error())
		}
		return
	}
	if info.IsDir() {
		result.errorf(field, "path is a directory: "+path)
	}
}

// requireCreatable accepts an existing directory, or a missing one whose nearest
// existing ancestor is a directory.
func requireCreatable(fsys afero.Fs, result *ValidationResult, field, dir string) {
	if strings.TrimSpace(dir) == "" {
		result.errorf(field, "directory is required")
		return
	}

	info, err := fsys.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			result.errorf(field, "path exists but is not a directory: "+dir)
		}
		return
	}
	if !os.IsNotExist(err) {
		result.errorf(field, "error accessing directory: "+err.Error())
		return
	}

	parent := filepath.Dir(filepath.Clean(dir))
	for {
		info, err := fsys.Stat(parent)
		if err == nil {
			if !info.IsDir() {
				result.errorf(field, "parent path is not a directory: "+parent)
			}
			return
		}
		next := filepath.Dir(parent)
		if next == parent {
			result.errorf(field, "no existing parent directory for: "+dir)
			return
		}
		parent = next
	}
}

// checkPatterns rejects blank exclusion patterns.
func checkPatterns(result *ValidationResult, field string, patterns []string) {
	for i, p := range patterns {
		if strings.TrimSpace(p) == "" {
			result.errorf(formatField(field, i), "pattern cannot be empty")
		}
	}
}

// checkOutputExt rejects an extension that normalizes to nothing, such as "." or
// blanks. An empty value is left to the defaults.
func checkOutputExt(result *ValidationResult, field, ext string) {
	if ext == "" {
		return
	}
	canonical := normalizer.Extension(ext)
	switch {
	case canonical == "":
		result.errorf(field, "output extension is empty: \""+ext+"\"")
	case strings.ContainsAny(canonical, `/\`):
		result.errorf(field, "output extension cannot contain a path separator: \""+ext+"\"")
	}
}

func checkReportPath(result *ValidationResult, field, path string) {
	if path == "" {
		return
	}
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		result.warnf(field, "report is written as an xlsx workbook: "+path)
	}
}

// formatField creates a field reference string for validation errors.
func formatField(name string, index int) string {
	return name + "[" + strconv.Itoa(index) + "]"
}

// isWithin reports whether path is dir or lies below it.
func isWithin(path, dir string) bool {
	p := filepath.Clean(path)
	d := filepath.Clean(dir)
	return p == d || strings.HasPrefix(p, d+string(filepath.Separator))
}

// directoriesOverlap checks if two directories overlap (one is parent/ancestor of the other).
func directoriesOverlap(dir1, dir2 string) bool {
	return isWithin(dir1, dir2) || isWithin(dir2, dir1)
}
