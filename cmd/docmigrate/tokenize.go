package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"docmigrate/internal/config"
)

func newTokenizeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokenize",
		Short: "Give every source file a unique token before OCR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &config.Tokenize{}
			if a.job.Tokenize != nil {
				*cfg = *a.job.Tokenize
			}
			overrideString(cmd, "source", &cfg.SourceRoot)
			overrideString(cmd, "staging", &cfg.StagingRoot)
			overrideString(cmd, "mode", &cfg.Mode)
			overrideString(cmd, "token", &cfg.Token)
			overrideInt(cmd, "padding", &cfg.Padding)
			overrideString(cmd, "separator", &cfg.Separator)
			overrideSlice(cmd, "include", &cfg.Include)
			overrideArray(cmd, "exclude", &cfg.Exclude)
			overrideString(cmd, "report", &cfg.ReportPath)
			overrideBool(cmd, "dry-run", &cfg.DryRun)

			result, err := a.orchestrator().Tokenize(cmd.Context(), cfg)
			if result == nil {
				return err
			}
			s := result.Summary
			a.summaryTable("Tokenize", []table.Row{
				{"Scanned", s.Scanned},
				{"Processed", s.Processed},
				{"Skipped", s.Skipped},
				{"Excluded", s.Excluded},
				{"Collisions", s.Collisions},
				{"Errors", s.Errors},
			})
			a.reportPath(result.ReportPath)
			return finish(err, s.Cancelled, s.HasErrors())
		},
	}

	f := cmd.Flags()
	f.String("source", "", "folder whose files receive tokens")
	f.String("mode", "", "copy into a staging folder or rename in place (default: copy)")
	f.String("staging", "", "staging folder for copy mode")
	f.String("token", "", "counter or size (default: counter)")
	f.Int("padding", 0, "counter width (default: 6)")
	f.String("separator", "", "text between the name and the token (default: __)")
	f.StringSlice("include", nil, "only files with these extensions (comma separated)")
	f.StringArray("exclude", nil, "gitignore-style pattern to leave out (repeatable)")
	f.String("report", "", "write an xlsx report to this path")
	f.Bool("dry-run", false, "compute names without copying or renaming")
	return cmd
}
