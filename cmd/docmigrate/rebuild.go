package main

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"docmigrate/internal/config"
	"docmigrate/internal/orchestrator"
)

func newRebuildCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Place flat OCR outputs back into a folder tree",
	}
	cmd.AddCommand(newRebuildTreeCommand(a), newRebuildMappingCommand(a))
	return cmd
}

func newRebuildTreeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Mirror a reference folder tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.rebuildConfig(cmd, config.ModeTree)
			overrideString(cmd, "source", &cfg.SourceRoot)
			overrideSlice(cmd, "include", &cfg.Include)
			return a.runRebuild(cmd, cfg)
		},
	}
	cmd.Flags().String("source", "", "reference tree whose layout is rebuilt")
	cmd.Flags().StringSlice("include", nil, "only source files with these extensions (comma separated)")
	addRebuildFlags(cmd)
	return cmd
}

func newRebuildMappingCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Place outputs according to a mapping worksheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.rebuildConfig(cmd, config.ModeMapping)
			overrideString(cmd, "sheet-file", &cfg.Mapping.SheetFile)
			overrideString(cmd, "sheet", &cfg.Mapping.Sheet)
			overrideString(cmd, "dir-col", &cfg.Mapping.DirectoryColumn)
			overrideString(cmd, "name-col", &cfg.Mapping.NameColumn)
			overrideBool(cmd, "absolute-dirs", &cfg.Mapping.AbsoluteDirs)
			return a.runRebuild(cmd, cfg)
		},
	}
	cmd.Flags().String("sheet-file", "", "xlsx workbook holding the mapping")
	cmd.Flags().String("sheet", "", "worksheet name (default: the first sheet)")
	cmd.Flags().String("dir-col", "", "directory column header (default: Directory)")
	cmd.Flags().String("name-col", "", "name column header (default: Name)")
	cmd.Flags().Bool("absolute-dirs", false, "directory cells hold full paths; strip the drive and root")
	addRebuildFlags(cmd)
	return cmd
}

func addRebuildFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("flat", "", "flat folder holding the OCR outputs")
	f.String("dest", "", "destination root for the rebuilt tree")
	f.String("ext", "", "output extension (default: .pdf)")
	f.String("suffix", "", "suffix the OCR step appended to each name")
	f.String("action", "", "move or copy (default: move)")
	f.String("collision", "", "overwrite, fail or rename an existing destination file (default: overwrite)")
	f.StringArray("exclude", nil, "gitignore-style pattern to leave out of the source walk (repeatable)")
	f.String("report", "", "write an xlsx report to this path")
	f.Bool("dry-run", false, "decide and report without moving anything")
	f.Bool("watch", false, "keep running and rebuild again as new outputs arrive")
}

// rebuildConfig starts from the job file's rebuild section and applies the flags
// shared by both modes.
func (a *app) rebuildConfig(cmd *cobra.Command, mode string) *config.Rebuild {
	cfg := &config.Rebuild{}
	if a.job.Rebuild != nil {
		*cfg = *a.job.Rebuild
	}
	cfg.Mode = mode
	overrideString(cmd, "flat", &cfg.FlatFolder)
	overrideString(cmd, "dest", &cfg.DestRoot)
	overrideString(cmd, "ext", &cfg.OutputExt)
	overrideString(cmd, "suffix", &cfg.Suffix)
	overrideString(cmd, "action", &cfg.Action)
	overrideString(cmd, "collision", &cfg.Collision)
	overrideArray(cmd, "exclude", &cfg.Exclude)
	overrideString(cmd, "report", &cfg.ReportPath)
	overrideBool(cmd, "dry-run", &cfg.DryRun)
	return cfg
}

func (a *app) runRebuild(cmd *cobra.Command, cfg *config.Rebuild) error {
	o := a.orchestrator()

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		summary, err := o.WatchRebuild(cmd.Context(), cfg, a.job.Watch)
		if err != nil {
			return err
		}
		a.summaryTable("Watch", []table.Row{
			{"Rebuild passes", summary.Runs},
			{"Failed passes", summary.FailedRuns},
			{"Files settled", summary.FilesSettled},
			{"Files skipped", summary.FilesSkipped},
			{"Watched for", summary.Duration.Round(time.Second).String()},
		})
		return nil
	}

	result, err := o.Rebuild(cmd.Context(), cfg)
	if result == nil {
		return err
	}
	a.summaryTable("Rebuild", rebuildRows(result.Summary))
	a.reportPath(result.ReportPath)
	return finish(err, result.Summary.Cancelled, result.Summary.HasErrors())
}

func rebuildRows(s orchestrator.RunSummary) []table.Row {
	first := "Inputs scanned"
	if s.Mode == config.ModeMapping {
		first = "Rows considered"
	}
	rows := []table.Row{
		{first, s.Considered},
		{"Moved/Copied", s.Placed},
		{"Missing (not found)", s.Missing},
		{"Skipped (duplicates)", s.SkippedDuplicates},
		{"Duplicate filenames (flat)", s.DuplicateGroups},
		{"Duplicate files (flat)", s.DuplicateFiles},
		{"Orphans total", s.Orphans},
		{"Errors", s.Errors},
	}
	if s.BlankRows > 0 {
		rows = append(rows, table.Row{"Blank rows skipped", s.BlankRows})
	}
	if s.Excluded > 0 {
		rows = append(rows, table.Row{"Excluded by pattern", s.Excluded})
	}
	if s.DryRun {
		rows = append(rows, table.Row{"Dry run", "yes"})
	}
	return rows
}
