// Package main provides the CLI entry point for docmigrate.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docmigrate/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitOK         = 0
	exitFatal      = 1
	exitItemErrors = 2
)

var (
	// errItemFailures marks a run that completed with per-item errors.
	errItemFailures = errors.New("completed with errors")
	// errInterrupted marks a run stopped by a signal before it finished.
	errInterrupted = errors.New("interrupted")
)

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line in args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	defer a.close()

	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errItemFailures):
		return exitItemErrors
	case errors.Is(err, errInterrupted):
		fmt.Fprintln(stderr, "Interrupted; items already processed were kept.")
		return exitFatal
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "docmigrate",
		Short:         "Rebuild folder trees around a flat OCR output folder",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "job file (JSON or YAML); defaults to $"+config.EnvConfig)
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "print every narrated line instead of a progress indicator")
	flags.BoolVar(&a.debug, "debug", false, "enable debug diagnostics on stderr")
	flags.BoolVar(&a.logJSON, "log-json", false, "write diagnostics as JSON")
	flags.BoolVar(&a.noAudit, "no-audit", false, "do not record runs in the audit log")

	root.AddCommand(
		newRebuildCommand(a),
		newTokenizeCommand(a),
		newCompareCommand(a),
		newStructureCommand(a),
		newSheetsCommand(a),
		newStatusCommand(a),
		newHistoryCommand(a),
	)
	return root
}
