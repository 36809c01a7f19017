// Package output handles CLI output: run narration, verbose lines and a
// terminal progress indicator.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// clearWidth is how many columns the progress line may occupy.
const clearWidth = 72

// Config holds output configuration.
type Config struct {
	Verbose   bool      // Print every narrated line instead of a progress indicator
	Writer    io.Writer // Output destination (default: os.Stdout)
	ErrWriter io.Writer // Error output destination (default: os.Stderr)
	IsTTY     bool      // Whether output is a terminal
}

// Output handles formatted output with verbose and progress support.
// It is safe for concurrent use; watch mode narrates from its own goroutine.
type Output struct {
	config Config

	mu              sync.Mutex
	progressActive  bool
	progressLabel   string
	progressTotal   int
	progressCurrent int
}

// New creates a new Output instance with the given configuration.
func New(config Config) *Output {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.ErrWriter == nil {
		config.ErrWriter = os.Stderr
	}
	return &Output{config: config}
}

// DefaultConfig returns a Config writing to stdout and stderr with TTY detection.
func DefaultConfig() Config {
	return Config{
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		IsTTY:     term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Verbose prints a message only when verbose mode is enabled.
func (o *Output) Verbose(format string, args ...interface{}) {
	if !o.config.Verbose {
		return
	}
	o.print(o.config.Writer, fmt.Sprintf(format, args...))
}

// Info prints an informational message (always shown).
func (o *Output) Info(format string, args ...interface{}) {
	o.print(o.config.Writer, fmt.Sprintf(format, args...))
}

// Warn prints a warning to stderr.
func (o *Output) Warn(format string, args ...interface{}) {
	o.print(o.config.ErrWriter, "warning: "+fmt.Sprintf(format, args...))
}

// Error prints an error message to stderr.
func (o *Output) Error(format string, args ...interface{}) {
	o.print(o.config.ErrWriter, fmt.Sprintf(format, args...))
}

// Line prints one narrated run line. In verbose mode every line is shown; otherwise
// only lines reporting a problem are, so a quiet run still surfaces failures.
func (o *Output) Line(line string) {
	if o.config.Verbose || isProblem(line) {
		o.print(o.config.Writer, line)
	}
}

// isProblem reports whether a narrated line is a warning or an error.
func isProblem(line string) bool {
	return strings.HasPrefix(line, "❌") || strings.HasPrefix(line, "⚠️")
}

// print writes msg with a trailing newline, clearing any progress line first.
func (o *Output) print(w io.Writer, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clearProgressLocked()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)
	o.redrawProgressLocked()
}

func (o *Output) clearProgressLocked() {
	if o.progressActive && o.config.IsTTY {
		fmt.Fprint(o.config.Writer, "\r"+strings.Repeat(" ", clearWidth)+"\r")
	}
}

func (o *Output) redrawProgressLocked() {
	if o.progressActive && o.progressCurrent > 0 {
		fmt.Fprint(o.config.Writer, o.progressText())
	}
}

func (o *Output) progressText() string {
	if o.progressTotal > 0 {
		return fmt.Sprintf("\r%s %d/%d...", o.progressLabel, o.progressCurrent, o.progressTotal)
	}
	return fmt.Sprintf("\r%s %d...", o.progressLabel, o.progressCurrent)
}

// progressEnabled reports whether progress is drawn at all. It is suppressed when
// not on a terminal and in verbose mode, where every line is printed instead.
func (o *Output) progressEnabled() bool {
	return o.config.IsTTY && !o.config.Verbose
}

// StartProgress begins a progress indicator session. A total of 0 shows a
// running count without a denominator.
func (o *Output) StartProgress(label string, total int) {
	if !o.progressEnabled() {
		return
	}
	if label == "" {
		label = "Processing item"
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progressActive = true
	o.progressLabel = label
	o.progressTotal = total
	o.progressCurrent = 0
}

// UpdateProgress redraws the indicator in place.
func (o *Output) UpdateProgress(current int) {
	if !o.progressEnabled() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.progressActive {
		return
	}
	o.progressCurrent = current
	fmt.Fprint(o.config.Writer, o.progressText())
}

// EndProgress clears the progress indicator.
func (o *Output) EndProgress() {
	if !o.progressEnabled() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.progressActive {
		return
	}
	o.clearProgressLocked()
	o.progressActive = false
}

// IsVerbose returns whether verbose mode is enabled.
func (o *Output) IsVerbose() bool {
	return o.config.Verbose
}

// IsTTY returns whether the output is a terminal.
func (o *Output) IsTTY() bool {
	return o.config.IsTTY
}
