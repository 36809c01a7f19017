// Package orchestrator coordinates the docmigrate workflows: rebuilding a folder
// tree from a flat OCR output folder, the pre-OCR token step, tree comparison and
// folder structure templates.
//
// Every workflow validates its configuration before touching a file, narrates each
// decision through a LogFunc, records it in the audit trail when one is attached
// and writes an optional xlsx report at the end.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"docmigrate/internal/audit"
	"docmigrate/internal/config"
	"docmigrate/internal/organizer"
)

// LogFunc receives one human-readable line per notable step.
type LogFunc func(line string)

// Progress is told how far a run has got. output.Output implements it.
type Progress interface {
	StartProgress(label string, total int)
	UpdateProgress(current int)
	EndProgress()
}

// Options wires an Orchestrator to its collaborators. Every field is optional.
type Options struct {
	Logger     *zerolog.Logger    // Diagnostics; defaults to a no-op logger
	Audit      *audit.AuditWriter // Nil disables the audit trail
	Log        LogFunc            // Narration; defaults to discarding lines
	Progress   Progress
	AppVersion string
	Now        func() time.Time // Clock for report timestamps; defaults to time.Now
}

// Orchestrator runs workflows against one filesystem.
type Orchestrator struct {
	fs         afero.Fs
	logger     zerolog.Logger
	audit      *audit.AuditWriter
	log        LogFunc
	progress   Progress
	appVersion string
	machineID  string
	now        func() time.Time
}

// New creates an Orchestrator working on fsys.
func New(fsys afero.Fs, opts Options) *Orchestrator {
	o := &Orchestrator{
		fs:         fsys,
		logger:     zerolog.Nop(),
		audit:      opts.Audit,
		log:        opts.Log,
		progress:   opts.Progress,
		appVersion: opts.AppVersion,
		now:        opts.Now,
	}
	if opts.Logger != nil {
		o.logger = *opts.Logger
	}
	if o.log == nil {
		o.log = func(string) {}
	}
	if o.progress == nil {
		o.progress = noProgress{}
	}
	if o.appVersion == "" {
		o.appVersion = "dev"
	}
	if o.now == nil {
		o.now = time.Now
	}
	if host, err := os.Hostname(); err == nil {
		o.machineID = host
	}
	return o
}

type noProgress struct{}

func (noProgress) StartProgress(string, int) {}
func (noProgress) UpdateProgress(int)        {}
func (noProgress) EndProgress()              {}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	o.log(fmt.Sprintf(format, args...))
}

// checkValidation narrates validation warnings and returns the errors, if any.
func (o *Orchestrator) checkValidation(result *config.ValidationResult) error {
	for _, w := range result.Warnings {
		o.logger.Warn().Str("field", w.Field).Msg(w.Message)
		o.logf("⚠️ %s", w.Message)
	}
	return result.Err()
}

// prepareReport creates the report's directory before any file is moved, so an
// unwritable location fails the run up front.
func (o *Orchestrator) prepareReport(path string) error {
	if path == "" {
		return nil
	}
	if err := o.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	return nil
}

// startRun opens an audit run. Audit failures are logged and never stop a run.
func (o *Orchestrator) startRun(runType audit.RunType, settings map[string]string) audit.RunID {
	if o.audit == nil {
		return ""
	}
	id, err := o.audit.StartRun(runType, o.appVersion, o.machineID, settings)
	if err != nil {
		o.logger.Warn().Err(err).Msg("audit: start run")
		return ""
	}
	o.logger.Debug().Str("runId", string(id)).Str("runType", string(runType)).Msg("audit run started")
	return id
}

func (o *Orchestrator) endRun(id audit.RunID, status audit.RunStatus, summary audit.RunSummary) {
	if o.audit == nil || id == "" {
		return
	}
	if err := o.audit.EndRun(id, status, summary); err != nil {
		o.logger.Warn().Err(err).Msg("audit: end run")
	}
}

// record runs fn against the audit writer when a run is open.
func (o *Orchestrator) record(id audit.RunID, fn func(w *audit.AuditWriter) error) {
	if o.audit == nil || id == "" {
		return
	}
	if err := fn(o.audit); err != nil {
		o.logger.Warn().Err(err).Msg("audit: record event")
	}
}

// runStatus maps the end of a run onto an audit status.
func runStatus(cancelled bool, err error) audit.RunStatus {
	switch {
	case err != nil:
		return audit.RunStatusFailed
	case cancelled:
		return audit.RunStatusInterrupted
	default:
		return audit.RunStatusCompleted
	}
}

// TimestampedPath inserts a millisecond timestamp before the extension of path,
// so repeated runs in watch mode keep every report.
func TimestampedPath(path string, t time.Time) string {
	if path == "" {
		return ""
	}
	ext := filepath.Ext(path)
	stamp := fmt.Sprintf("%s-%03d", t.Format("20060102-150405"), t.Nanosecond()/int(time.Millisecond))
	return strings.TrimSuffix(path, ext) + "_" + stamp + ext
}

// passReportPath is the report path of one watch pass. A name already on disk
// gets a numbered suffix.
func (o *Orchestrator) passReportPath(path string) string {
	stamped := TimestampedPath(path, o.now())
	if stamped == "" {
		return ""
	}
	dir, name := filepath.Split(stamped)
	return filepath.Join(dir, organizer.GenerateNumberedName(o.fs, dir, name))
}
