package orchestrator

import (
	"fmt"
	"io"

	"docmigrate/internal/config"
	"docmigrate/internal/structure"
)

// StructureResult counts the outcomes of a structure creation.
type StructureResult struct {
	Created  int
	Existing int
	Touched  int
	Errors   int
	Outcomes []structure.Outcome
}

// HasErrors returns true if any entry could not be created.
func (r *StructureResult) HasErrors() bool {
	return r.Errors > 0
}

// CaptureStructure writes the folder layout of cfg.SourceRoot as a template to w
// and returns the number of entries written.
func (o *Orchestrator) CaptureStructure(cfg *config.Structure, w io.Writer) (int, error) {
	if err := o.checkValidation(config.ValidateStructureCapture(o.fs, cfg)); err != nil {
		return 0, err
	}
	entries, err := structure.Capture(o.fs, cfg.SourceRoot, cfg.IncludeFiles)
	if err != nil {
		return 0, fmt.Errorf("capture %s: %w", cfg.SourceRoot, err)
	}
	if err := structure.Write(w, entries); err != nil {
		return 0, fmt.Errorf("write template: %w", err)
	}
	o.logger.Debug().Str("root", cfg.SourceRoot).Int("entries", len(entries)).Msg("structure captured")
	return len(entries), nil
}

// CreateStructure recreates a folder layout under cfg.DestRoot, read either from a
// template file or directly from a source tree.
func (o *Orchestrator) CreateStructure(cfg *config.Structure) (*StructureResult, error) {
	if err := o.checkValidation(config.ValidateStructureCreate(o.fs, cfg)); err != nil {
		return nil, err
	}

	var entries []structure.Entry
	if cfg.Template != "" {
		f, err := o.fs.Open(cfg.Template)
		if err != nil {
			return nil, fmt.Errorf("open template: %w", err)
		}
		entries, err = structure.Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", cfg.Template, err)
		}
	} else {
		var err error
		entries, err = structure.Capture(o.fs, cfg.SourceRoot, cfg.IncludeFiles)
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", cfg.SourceRoot, err)
		}
	}

	if err := o.fs.MkdirAll(cfg.DestRoot, 0755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	result := &StructureResult{}
	result.Outcomes = structure.Create(o.fs, cfg.DestRoot, entries, structure.Options{
		IncludeFiles: cfg.IncludeFiles,
		Safe:         cfg.Safe,
	})

	for _, out := range result.Outcomes {
		switch out.Status {
		case structure.StatusCreated:
			result.Created++
			o.logf("✅ Created: %s", out.Path)
		case structure.StatusExists:
			result.Existing++
			o.logf("Exists: %s", out.Path)
		case structure.StatusTouched:
			result.Touched++
			o.logf("Touched: %s", out.Path)
		default:
			result.Errors++
			o.logf("❌ Error creating %s: %v", out.Entry.Path, out.Err)
		}
	}

	o.log("")
	o.log(summaryOpen)
	o.log(summaryRow(11, "Created:", result.Created))
	o.log(summaryRow(11, "Existing:", result.Existing))
	o.log(summaryRow(11, "Touched:", result.Touched))
	o.log(summaryRow(11, "Errors:", result.Errors))
	o.log(summaryClose)
	return result, nil
}
