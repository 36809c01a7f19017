package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"docmigrate/internal/audit"
	"docmigrate/internal/config"
	"docmigrate/internal/engine"
	"docmigrate/internal/index"
	"docmigrate/internal/normalizer"
	"docmigrate/internal/organizer"
	"docmigrate/internal/report"
	"docmigrate/internal/resolver"
	"docmigrate/internal/scanner"
	"docmigrate/internal/workbook"
)

// RebuildResult is the outcome of a rebuild run.
type RebuildResult struct {
	Summary    RunSummary
	Engine     *engine.Result
	RunID      audit.RunID
	ReportPath string // Empty when no report was written
}

// plan is everything a rebuild needs before the first file is touched.
type plan struct {
	cfg       config.Rebuild
	action    organizer.Action
	collision organizer.CollisionPolicy
	items     []resolver.SourceItem
	resolver  resolver.Resolver
	index     *index.Index
	blankRows int
	excluded  int // Tree entries left out by the exclusion rules
	runType   audit.RunType
}

// Rebuild reconciles the source items of cfg against the flat folder and places
// every match under the destination root. Configuration, sheet, column and index
// problems fail before any file is moved. Per-item failures are recorded and the
// run continues. A report that cannot be written fails the run after the moves;
// the returned result is still populated.
func (o *Orchestrator) Rebuild(ctx context.Context, cfg *config.Rebuild) (*RebuildResult, error) {
	start := time.Now()

	p, err := o.planRebuild(cfg)
	if err != nil {
		return nil, err
	}
	if err := o.prepareReport(p.cfg.ReportPath); err != nil {
		return nil, err
	}

	runID := o.startRun(p.runType, rebuildSettings(&p.cfg))

	var placer engine.Placer = organizer.New(o.fs)
	if p.cfg.DryRun {
		placer = organizer.NewDryRun(o.fs)
	}

	o.progress.StartProgress("Placing", len(p.items))
	result := engine.New(placer).Run(ctx, p.index, p.items, p.resolver, engine.Options{
		DestRoot:  p.cfg.DestRoot,
		Action:    p.action,
		Collision: p.collision,
		Observer: func(ir engine.ItemResult) {
			for _, line := range Narrate(ir, p.action, p.cfg.DryRun) {
				o.log(line)
			}
			o.recordItem(runID, p, ir)
			o.progress.UpdateProgress(ir.Seq)
		},
	})
	o.progress.EndProgress()

	for _, orphan := range result.Orphans {
		o.record(runID, func(w *audit.AuditWriter) error {
			return w.RecordOrphan(orphan.FullPath)
		})
	}

	summary := GenerateSummary(p.cfg.Mode, p.index, result, time.Since(start))
	summary.BlankRows = p.blankRows
	summary.Excluded = p.excluded
	summary.DryRun = p.cfg.DryRun

	out := &RebuildResult{Summary: summary, Engine: result, RunID: runID}
	if result.Cancelled {
		o.logger.Warn().Int("considered", result.Counts.Considered).Msg("rebuild interrupted")
	}

	var writeErr error
	if p.cfg.ReportPath != "" {
		writeErr = report.WriteRebuild(o.fs, p.cfg.ReportPath, summary.Fields(&p.cfg),
			missingRows(result), duplicateRows(p.index), orphanRows(result))
		if writeErr == nil {
			out.ReportPath = p.cfg.ReportPath
			o.log(reportWritten(p.cfg.ReportPath))
		} else {
			o.logf("❌ %v", writeErr)
		}
	}

	o.log("")
	for _, line := range summary.Lines() {
		o.log(line)
	}

	o.endRun(runID, runStatus(result.Cancelled, writeErr), summary.Audit())
	o.logger.Debug().
		Dur("duration", summary.Duration).
		Int("placed", summary.Placed).
		Int("missing", summary.Missing).
		Msg("rebuild finished")

	return out, writeErr
}

// planRebuild validates cfg and loads the source items and the flat index.
func (o *Orchestrator) planRebuild(cfg *config.Rebuild) (*plan, error) {
	p := &plan{cfg: *cfg}
	p.cfg.ApplyDefaults()
	c := &p.cfg

	if err := o.checkValidation(config.ValidateRebuild(o.fs, c)); err != nil {
		return nil, err
	}

	var err error
	if p.action, err = organizer.ParseAction(c.Action); err != nil {
		return nil, err
	}
	if p.collision, err = organizer.ParseCollisionPolicy(c.Collision); err != nil {
		return nil, err
	}
	naming := resolver.NewNaming(c.Suffix, c.OutputExt)
	c.OutputExt = naming.Ext

	switch c.Mode {
	case config.ModeMapping:
		if err := o.loadMapping(p, naming); err != nil {
			return nil, err
		}
		p.runType = audit.RunTypeRebuildMapping
	default:
		if err := o.loadTree(p, naming); err != nil {
			return nil, err
		}
		p.runType = audit.RunTypeRebuildTree
	}

	p.index, err = index.Build(o.fs, c.FlatFolder, []string{naming.Ext})
	if err != nil {
		return nil, &config.ConfigError{Type: config.ValidationError, Path: c.FlatFolder, Message: err.Error(), Err: err}
	}
	for _, skipped := range p.index.Skipped() {
		o.logger.Warn().Err(skipped).Msg("flat folder entry skipped")
		o.logf("⚠️ Skipped in flat: %v", skipped)
	}
	o.logger.Debug().
		Str("flatFolder", c.FlatFolder).
		Int("files", p.index.FileCount()).
		Int("unique", p.index.UniqueCount()).
		Int("duplicateGroups", p.index.DuplicateGroupCount()).
		Int("items", len(p.items)).
		Msg("flat folder indexed")

	return p, nil
}

func (o *Orchestrator) loadTree(p *plan, naming resolver.Naming) error {
	c := &p.cfg
	opts := scanner.TreeOptions()
	opts.Exclude = append(opts.Exclude, c.Exclude...)

	listing, err := scanner.Walk(o.fs, c.SourceRoot, opts)
	if err != nil {
		return &config.ConfigError{Type: config.ValidationError, Path: c.SourceRoot, Message: err.Error(), Err: err}
	}
	for _, skipped := range listing.Skipped {
		o.logger.Warn().Err(skipped).Msg("source tree entry skipped")
		o.logf("⚠️ Skipped in source tree: %v", skipped)
	}
	for _, rel := range listing.Excluded {
		o.logger.Debug().Str("path", rel).Msg("source tree entry excluded")
	}
	p.excluded = len(listing.Excluded)

	include := normalizer.ParseExtensions(strings.Join(c.Include, ","))
	p.items = resolver.FromTree(listing.Files, naming.Ext, include)
	p.resolver = resolver.TreeResolver{Naming: naming}
	return nil
}

func (o *Orchestrator) loadMapping(p *plan, naming resolver.Naming) error {
	m := &p.cfg.Mapping
	if m.Sheet == "" {
		names, err := workbook.SheetNames(o.fs, m.SheetFile)
		if err != nil {
			return fmt.Errorf("read workbook %s: %w", m.SheetFile, err)
		}
		if len(names) == 0 {
			return fmt.Errorf("read workbook %s: %w", m.SheetFile, workbook.ErrSheetNotFound)
		}
		m.Sheet = names[0]
	}
	if m.DirectoryColumn == "" {
		m.DirectoryColumn = workbook.DefaultDirectoryHeader
	}
	if m.NameColumn == "" {
		m.NameColumn = workbook.DefaultNameHeader
	}

	table, err := workbook.ReadSheet(o.fs, m.SheetFile, m.Sheet)
	if err != nil {
		return fmt.Errorf("read worksheet %q: %w", m.Sheet, err)
	}
	binding, err := table.Bind(m.DirectoryColumn, m.NameColumn)
	if err != nil {
		return err
	}

	p.items, p.blankRows = resolver.FromTable(table, binding)
	p.resolver = resolver.MappingResolver{Naming: naming, AbsoluteDirs: m.AbsoluteDirs}
	if p.blankRows > 0 {
		o.logger.Debug().Int("rows", p.blankRows).Msg("blank mapping rows skipped")
	}
	return nil
}

// recordItem writes the audit event for one decision.
func (o *Orchestrator) recordItem(runID audit.RunID, p *plan, ir engine.ItemResult) {
	source := ir.Item.Source()
	expected := filepath.Join(ir.Expectation.TargetRelDir, ir.Expectation.DisplayName)

	o.record(runID, func(w *audit.AuditWriter) error {
		switch ir.Outcome {
		case engine.Placed:
			var reason audit.ReasonCode
			switch {
			case p.cfg.DryRun:
				reason = audit.ReasonDryRun
			case ir.Renamed:
				reason = audit.ReasonRenamed
			case ir.Overwrote:
				reason = audit.ReasonOverwrote
			}
			meta := map[string]string{"key": ir.Expectation.Key, "action": string(p.action)}
			if ir.Item.Origin == resolver.MappingRow {
				meta["row"] = strconv.Itoa(ir.Item.Row)
			}
			return w.RecordPlaced(ir.FlatPath, ir.DestPath, reason, meta)
		case engine.Missing:
			reason := audit.ReasonNotFound
			if ir.Reason == engine.ReasonAlreadyPlaced {
				reason = audit.ReasonAlreadyPlaced
			}
			return w.RecordMissing(source, expected, reason, ir.Reason)
		case engine.SkippedDuplicate:
			return w.RecordSkippedDuplicate(source, ir.Expectation.Key, len(p.index.Duplicates(ir.Expectation.Key)))
		default:
			errType := string(organizer.IOFailure)
			var moveErr *organizer.MoveError
			if errors.As(ir.Err, &moveErr) {
				errType = string(moveErr.Type)
			}
			return w.RecordError(source, errType, fmt.Sprint(ir.Err), "place")
		}
	})
}

func rebuildSettings(c *config.Rebuild) map[string]string {
	s := map[string]string{
		"mode":       c.Mode,
		"flatFolder": c.FlatFolder,
		"destRoot":   c.DestRoot,
		"outputExt":  c.OutputExt,
		"suffix":     c.Suffix,
		"action":     c.Action,
		"collision":  c.Collision,
		"dryRun":     strconv.FormatBool(c.DryRun),
	}
	if c.Mode == config.ModeMapping {
		s["sheetFile"] = c.Mapping.SheetFile
		s["sheet"] = c.Mapping.Sheet
	} else {
		s["sourceRoot"] = c.SourceRoot
	}
	return s
}

func missingRows(result *engine.Result) []report.MissingRow {
	var rows []report.MissingRow
	for _, ir := range result.Items {
		if ir.Outcome == engine.Placed {
			continue
		}
		rows = append(rows, report.MissingRow{
			RowIndex:           ir.Item.Row,
			Source:             ir.Item.Source(),
			TargetFolderRel:    ir.Expectation.TargetRelDir,
			ExpectedOutputName: ir.Expectation.DisplayName,
			Reason:             ir.Reason,
		})
	}
	return rows
}

func duplicateRows(idx *index.Index) []report.DuplicateRow {
	var rows []report.DuplicateRow
	for _, group := range idx.DuplicateGroups() {
		for _, f := range group.Files {
			rows = append(rows, report.DuplicateRow{
				FlatFilename:   f.Name,
				DuplicateCount: len(group.Files),
				FlatFullPath:   f.FullPath,
			})
		}
	}
	return rows
}

func orphanRows(result *engine.Result) []report.OrphanRow {
	rows := make([]report.OrphanRow, 0, len(result.Orphans))
	for _, e := range result.Orphans {
		rows = append(rows, report.OrphanRow{FlatFilename: e.Name, FlatFullPath: e.FullPath})
	}
	return rows
}
