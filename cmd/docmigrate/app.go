package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"docmigrate/internal/audit"
	"docmigrate/internal/config"
	"docmigrate/internal/orchestrator"
	"docmigrate/internal/output"
)

// app holds the state shared by every command: global flags, the loaded job file
// and the collaborators built from them.
type app struct {
	configPath string
	verbose    bool
	debug      bool
	logJSON    bool
	noAudit    bool

	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	fs     afero.Fs
	job    *config.Job
	logger zerolog.Logger
	out    *output.Output
	audit  *audit.AuditWriter
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		getenv: os.Getenv,
		fs:     afero.NewOsFs(),
		logger: zerolog.Nop(),
		job:    &config.Job{},
	}
}

// setup loads the job file and builds the logger and output. It runs before
// every command.
func (a *app) setup() error {
	a.logger = newLogger(a.stderr, a.debug, a.logJSON)

	outCfg := output.Config{Verbose: a.verbose, Writer: a.stdout, ErrWriter: a.stderr}
	if f, ok := a.stdout.(*os.File); ok {
		outCfg.IsTTY = term.IsTerminal(int(f.Fd()))
	}
	a.out = output.New(outCfg)

	path := a.configPath
	if path == "" {
		path = strings.TrimSpace(a.getenv(config.EnvConfig))
	}
	if path != "" {
		job, err := config.Load(a.fs, path)
		if err != nil {
			return err
		}
		a.job = job
		a.logger.Debug().Str("path", path).Msg("job file loaded")
	}
	a.job.ApplyEnv(a.getenv)
	return nil
}

func newLogger(w io.Writer, debug, jsonOut bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	if jsonOut {
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

// orchestrator opens the audit log, unless disabled, and returns an Orchestrator
// narrating through the output package.
func (a *app) orchestrator() *orchestrator.Orchestrator {
	if a.audit == nil && !a.noAudit && a.job.Audit != nil && !a.job.Audit.Disabled {
		w, err := audit.NewAuditWriter(a.fs, *a.job.Audit)
		if err != nil {
			a.logger.Warn().Err(err).Msg("audit log unavailable; continuing without it")
		} else {
			a.audit = w
		}
	}
	return orchestrator.New(a.fs, orchestrator.Options{
		Logger:     &a.logger,
		Audit:      a.audit,
		Log:        a.out.Line,
		Progress:   a.out,
		AppVersion: version,
	})
}

func (a *app) close() {
	if a.audit == nil {
		return
	}
	if err := a.audit.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close audit log")
	}
}

// reportPath tells a quiet run where its report went; verbose runs narrate it.
func (a *app) reportPath(path string) {
	if path != "" && !a.verbose {
		a.out.Info("Report: %s", path)
	}
}

// summaryTable prints label/count rows as a table in quiet mode. Verbose runs
// already narrated the plain summary block.
func (a *app) summaryTable(title string, rows []table.Row) {
	if a.verbose {
		return
	}
	t := newTable(a.stdout)
	t.SetTitle(title)
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.AppendRows(rows)
	t.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Row = text.Colors{text.Reset}
	return t
}

// Flag overrides. A flag only replaces the job file value when it was set on the
// command line.

func overrideString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func overrideBool(cmd *cobra.Command, name string, dst *bool) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}

func overrideInt(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

func overrideSlice(cmd *cobra.Command, name string, dst *[]string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetStringSlice(name)
	}
}

func overrideArray(cmd *cobra.Command, name string, dst *[]string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetStringArray(name)
	}
}

// finish maps the end state of a run onto the CLI errors that pick the exit code.
func finish(err error, cancelled, itemErrors bool) error {
	switch {
	case err != nil:
		return err
	case cancelled:
		return errInterrupted
	case itemErrors:
		return errItemFailures
	}
	return nil
}
