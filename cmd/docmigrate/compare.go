package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"docmigrate/internal/config"
)

func newCompareCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Check that every original document has an output in the revised tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &config.Compare{}
			if a.job.Compare != nil {
				*cfg = *a.job.Compare
			}
			overrideString(cmd, "original", &cfg.OriginalRoot)
			overrideString(cmd, "revised", &cfg.RevisedRoot)
			overrideString(cmd, "ext", &cfg.OutputExt)
			overrideBool(cmd, "skip-hidden", &cfg.SkipHidden)
			overrideBool(cmd, "exact", &cfg.ExactPath)
			overrideSlice(cmd, "skip-ext", &cfg.SkipExtensions)
			overrideArray(cmd, "exclude", &cfg.Exclude)
			overrideString(cmd, "report", &cfg.ReportPath)
			overrideString(cmd, "extract-to", &cfg.ExtractTo)

			result, err := a.orchestrator().Compare(cmd.Context(), cfg)
			if result == nil {
				return err
			}
			s := result.Summary
			rows := []table.Row{
				{"Original files", s.OriginalFiles},
				{"Revised files", s.RevisedFiles},
				{"Documents", s.Documents},
				{"Matched", s.Matched},
				{"Missing", s.Missing},
				{"Extra", s.Extra},
			}
			if result.Extraction != nil {
				rows = append(rows,
					table.Row{"Extracted", s.Extracted},
					table.Row{"Extract errors", s.ExtractFailed},
				)
			}
			a.summaryTable("Compare", rows)
			a.reportPath(result.ReportPath)
			return finish(err, s.Cancelled, s.HasErrors())
		},
	}

	f := cmd.Flags()
	f.String("original", "", "tree of original documents")
	f.String("revised", "", "tree of OCR outputs")
	f.String("ext", "", "output extension (default: .pdf)")
	f.Bool("skip-hidden", false, "ignore hidden files and folders")
	f.Bool("exact", false, "match files by relative path and name, extension included")
	f.StringSlice("skip-ext", nil, "extensions ignored in both trees (comma separated)")
	f.StringArray("exclude", nil, "gitignore-style pattern to leave out (repeatable)")
	f.String("report", "", "write an xlsx report to this path")
	f.String("extract-to", "", "copy the sources of missing documents here")
	return cmd
}
