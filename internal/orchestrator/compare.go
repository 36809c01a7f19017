package orchestrator

import (
	"context"
	"strings"
	"time"

	"docmigrate/internal/audit"
	"docmigrate/internal/compare"
	"docmigrate/internal/config"
	"docmigrate/internal/normalizer"
	"docmigrate/internal/report"
)

// modifiedLayout formats file times in comparison reports.
const modifiedLayout = "2006-01-02 15:04:05"

// CompareResult is the outcome of a tree comparison.
type CompareResult struct {
	Summary    CompareSummary
	Comparison *compare.Result
	Extraction *compare.ExtractResult // Nil unless an extraction folder was given
	RunID      audit.RunID
	ReportPath string
}

// Compare checks that every document of the original tree has an output in the
// revised tree, and optionally copies the sources of missing documents aside so
// they can be sent through OCR again.
func (o *Orchestrator) Compare(ctx context.Context, cfg *config.Compare) (*CompareResult, error) {
	start := time.Now()

	c := *cfg
	c.ApplyDefaults()
	if err := o.checkValidation(config.ValidateCompare(o.fs, &c)); err != nil {
		return nil, err
	}
	if err := o.prepareReport(c.ReportPath); err != nil {
		return nil, err
	}

	runID := o.startRun(audit.RunTypeCompare, map[string]string{
		"originalRoot": c.OriginalRoot,
		"revisedRoot":  c.RevisedRoot,
		"outputExt":    c.OutputExt,
		"matchMode":    matchMode(c.ExactPath),
		"extractTo":    c.ExtractTo,
	})

	cmp, err := compare.Run(ctx, o.fs, compare.Options{
		OriginalRoot:   c.OriginalRoot,
		RevisedRoot:    c.RevisedRoot,
		OutputExt:      c.OutputExt,
		SkipHidden:     c.SkipHidden,
		SkipExtensions: normalizer.ParseExtensions(strings.Join(c.SkipExtensions, ",")),
		Exclude:        c.Exclude,
		ExactPath:      c.ExactPath,
	})
	if err != nil {
		o.endRun(runID, audit.RunStatusFailed, audit.RunSummary{})
		return nil, err
	}

	for _, d := range cmp.Missing {
		rep := d.Representative(cmp.OutputExt)
		expected := d.ExpectedPath(cmp.OutputExt)
		o.logf("⚠️ Missing output: %s", expected)
		o.record(runID, func(w *audit.AuditWriter) error {
			return w.RecordMissing(rep.FullPath, expected, audit.ReasonNotFound, "No output in revised tree")
		})
	}
	for _, f := range cmp.Extra {
		o.logf("⚠️ No original for: %s", f.RelPath)
		o.record(runID, func(w *audit.AuditWriter) error {
			return w.RecordOrphan(f.FullPath)
		})
	}

	summary := CompareSummary{
		OriginalFiles: cmp.OriginalFiles,
		RevisedFiles:  cmp.RevisedFiles,
		Documents:     cmp.Documents,
		Matched:       cmp.Matched,
		Missing:       len(cmp.Missing),
		Extra:         len(cmp.Extra),
	}
	out := &CompareResult{Comparison: cmp, RunID: runID}

	if c.ExtractTo != "" && len(cmp.Missing) > 0 {
		extracted, err := o.extract(ctx, runID, cmp, c.ExtractTo)
		if err != nil {
			o.endRun(runID, audit.RunStatusFailed, summary.Audit())
			return nil, err
		}
		out.Extraction = extracted
		summary.Extracted = extracted.Copied
		summary.ExtractFailed = extracted.Failed
		summary.Cancelled = extracted.Cancelled
	}
	summary.Duration = time.Since(start)
	out.Summary = summary

	var writeErr error
	if c.ReportPath != "" {
		writeErr = report.WriteComparison(o.fs, c.ReportPath, summary.Fields(&c),
			compareMissingRows(cmp), compareExtraRows(cmp))
		if writeErr == nil {
			out.ReportPath = c.ReportPath
			o.log(reportWritten(c.ReportPath))
		} else {
			o.logf("❌ %v", writeErr)
		}
	}

	o.log("")
	for _, line := range summary.Lines() {
		o.log(line)
	}

	o.endRun(runID, runStatus(summary.Cancelled, writeErr), summary.Audit())
	return out, writeErr
}

func (o *Orchestrator) extract(ctx context.Context, runID audit.RunID, cmp *compare.Result, destRoot string) (*compare.ExtractResult, error) {
	total := 0
	for _, d := range cmp.Missing {
		total += len(d.Variants)
	}

	seq := 0
	o.progress.StartProgress("Extracting", total)
	defer o.progress.EndProgress()

	return compare.Extract(ctx, o.fs, cmp, destRoot, func(src, dst string, err error) {
		seq++
		if err != nil {
			o.logf("❌ Error extracting %s: %v", src, err)
			o.record(runID, func(w *audit.AuditWriter) error {
				return w.RecordError(src, "EXTRACT", err.Error(), "extract")
			})
		} else {
			o.logf("✅ Extracted: %s -> %s", src, dst)
			o.record(runID, func(w *audit.AuditWriter) error {
				return w.RecordExtracted(src, dst)
			})
		}
		o.progress.UpdateProgress(seq)
	})
}

// matchMode names how a comparison pairs files, for reports and the audit trail.
func matchMode(exact bool) string {
	if exact {
		return "exact path"
	}
	return "document"
}

func compareMissingRows(cmp *compare.Result) []report.CompareMissingRow {
	rows := make([]report.CompareMissingRow, 0, len(cmp.Missing))
	for _, d := range cmp.Missing {
		rep := d.Representative(cmp.OutputExt)
		rows = append(rows, report.CompareMissingRow{
			RelativeDir:      d.RelDir,
			Document:         d.Stem,
			ExpectedOutput:   d.ExpectedName(cmp.OutputExt),
			Variants:         len(d.Variants),
			SourceExtensions: strings.Join(d.Extensions(), ","),
			SourceFullPath:   rep.FullPath,
			SizeBytes:        rep.Size,
			Modified:         rep.ModTime.Format(modifiedLayout),
		})
	}
	return rows
}

func compareExtraRows(cmp *compare.Result) []report.CompareExtraRow {
	rows := make([]report.CompareExtraRow, 0, len(cmp.Extra))
	for _, f := range cmp.Extra {
		rows = append(rows, report.CompareExtraRow{
			RelativePath: f.RelPath,
			FileName:     f.Name,
			FullPath:     f.FullPath,
			SizeBytes:    f.Size,
			Modified:     f.ModTime.Format(modifiedLayout),
		})
	}
	return rows
}
