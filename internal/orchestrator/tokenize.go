package orchestrator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"docmigrate/internal/audit"
	"docmigrate/internal/config"
	"docmigrate/internal/normalizer"
	"docmigrate/internal/report"
	"docmigrate/internal/tokenize"
)

// TokenizeResult is the outcome of a tokenize run.
type TokenizeResult struct {
	Summary    TokenizeSummary
	Records    []tokenize.Record
	RunID      audit.RunID
	ReportPath string
}

// Tokenize gives every file under the source root a unique token before OCR,
// either copying into a staging tree or renaming in place.
func (o *Orchestrator) Tokenize(ctx context.Context, cfg *config.Tokenize) (*TokenizeResult, error) {
	start := time.Now()

	c := *cfg
	c.ApplyDefaults()
	if err := o.checkValidation(config.ValidateTokenize(o.fs, &c)); err != nil {
		return nil, err
	}
	mode, err := tokenize.ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}
	tokenMode, err := tokenize.ParseTokenMode(c.Token)
	if err != nil {
		return nil, err
	}
	if err := o.prepareReport(c.ReportPath); err != nil {
		return nil, err
	}

	runID := o.startRun(audit.RunTypeTokenize, map[string]string{
		"mode":        c.Mode,
		"token":       c.Token,
		"padding":     strconv.Itoa(c.Padding),
		"separator":   c.Separator,
		"sourceRoot":  c.SourceRoot,
		"stagingRoot": c.StagingRoot,
		"dryRun":      strconv.FormatBool(c.DryRun),
	})

	seq := 0
	o.progress.StartProgress("Tokenizing", 0)
	result, err := tokenize.Run(ctx, o.fs, tokenize.Options{
		SourceRoot:  c.SourceRoot,
		StagingRoot: c.StagingRoot,
		Mode:        mode,
		TokenMode:   tokenMode,
		Padding:     c.Padding,
		Separator:   c.Separator,
		Include:     normalizer.ParseExtensions(strings.Join(c.Include, ",")),
		Exclude:     c.Exclude,
		DryRun:      c.DryRun,
	}, func(rec tokenize.Record) {
		seq++
		o.log(NarrateToken(rec))
		o.recordToken(runID, rec)
		o.progress.UpdateProgress(seq)
	})
	o.progress.EndProgress()
	if err != nil {
		o.endRun(runID, audit.RunStatusFailed, audit.RunSummary{})
		return nil, err
	}

	summary := TokenizeSummary{
		Scanned:    result.Scanned,
		Processed:  result.Processed,
		Skipped:    result.Skipped,
		Excluded:   result.Excluded,
		Collisions: result.Collisions,
		Errors:     result.Errors,
		DryRun:     c.DryRun,
		Cancelled:  result.Cancelled,
		Duration:   time.Since(start),
	}
	out := &TokenizeResult{Summary: summary, Records: result.Records, RunID: runID}

	var writeErr error
	if c.ReportPath != "" {
		writeErr = report.WriteRenames(o.fs, c.ReportPath, summary.Fields(&c), renameRows(result.Records))
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

	o.endRun(runID, runStatus(result.Cancelled, writeErr), summary.Audit())
	return out, writeErr
}

func (o *Orchestrator) recordToken(runID audit.RunID, rec tokenize.Record) {
	o.record(runID, func(w *audit.AuditWriter) error {
		if rec.Status == tokenize.StatusError {
			return w.RecordError(rec.SourcePath, "TOKENIZE", rec.Reason, strings.ToLower(rec.Action))
		}
		return w.RecordToken(rec.SourcePath, rec.DestPath, rec.Token, rec.Collided)
	})
}

func renameRows(records []tokenize.Record) []report.RenameRow {
	rows := make([]report.RenameRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, report.RenameRow{
			SourceFullPath: r.SourcePath,
			NewFullPath:    r.DestPath,
			OriginalName:   r.OriginalName,
			NewName:        r.NewName,
			Token:          r.Token,
			Action:         r.Action,
			Status:         r.Status,
			Reason:         r.Reason,
		})
	}
	return rows
}
