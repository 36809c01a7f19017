package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"docmigrate/internal/audit"
	"docmigrate/internal/workbook"
)

func newSheetsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List the worksheets of a workbook, or the headers of one worksheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			sheet, _ := cmd.Flags().GetString("sheet")
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			if sheet == "" {
				names, err := workbook.SheetNames(a.fs, file)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(a.stdout, name)
				}
				return nil
			}

			headers, err := workbook.Headers(a.fs, file, sheet)
			if err != nil {
				return err
			}
			for i, h := range headers {
				marker := ""
				if h == workbook.DefaultDirectoryHeader || h == workbook.DefaultNameHeader {
					marker = " (default)"
				}
				fmt.Fprintf(a.stdout, "%d\t%s%s\n", i+1, h, marker)
			}
			return nil
		},
	}
	cmd.Flags().String("file", "", "xlsx workbook")
	cmd.Flags().String("sheet", "", "list the header row of this worksheet")
	return cmd
}

func newStatusCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what a flat folder holds and which names a rebuild would skip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flat, _ := cmd.Flags().GetString("flat")
			exts, _ := cmd.Flags().GetStringSlice("ext")
			if a.job.Rebuild != nil {
				if flat == "" {
					flat = a.job.Rebuild.FlatFolder
				}
				if !cmd.Flags().Changed("ext") && a.job.Rebuild.OutputExt != "" {
					exts = []string{a.job.Rebuild.OutputExt}
				}
			}
			if flat == "" {
				return fmt.Errorf("--flat is required")
			}

			st, err := a.orchestrator().Status(flat, exts)
			if err != nil {
				return err
			}

			t := newTable(a.stdout)
			t.SetTitle(st.Folder)
			t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
			t.AppendRows([]table.Row{
				{"Extensions", strings.Join(st.Extensions, ",")},
				{"Files", st.Files},
				{"Unique names", st.Unique},
				{"Duplicate filenames", st.DuplicateGroups},
				{"Duplicate files", st.DuplicateFiles},
			})
			t.Render()

			if len(st.Duplicates) == 0 {
				return nil
			}
			dups := newTable(a.stdout)
			dups.SetTitle("Duplicates (skipped by rebuild)")
			dups.AppendHeader(table.Row{"Name", "Count", "Files"})
			for _, g := range st.Duplicates {
				names := make([]string, 0, len(g.Files))
				for _, f := range g.Files {
					names = append(names, f.Name)
				}
				dups.AppendRow(table.Row{g.Key, len(g.Files), strings.Join(names, ", ")})
			}
			dups.Render()
			return nil
		},
	}
	cmd.Flags().String("flat", "", "flat folder to inspect")
	cmd.Flags().StringSlice("ext", []string{".pdf"}, "extensions to index (comma separated)")
	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			runs, err := audit.NewAuditReader(a.fs, a.job.Audit.LogDirectory).ListRuns()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				a.out.Info("No runs recorded in %s", a.job.Audit.LogDirectory)
				return nil
			}
			if limit > 0 && len(runs) > limit {
				runs = runs[len(runs)-limit:]
			}

			t := newTable(a.stdout)
			t.AppendHeader(table.Row{"Run", "Type", "Started", "Status", "Considered", "Placed", "Missing", "Duplicates", "Orphans", "Errors"})
			for _, r := range runs {
				s := r.Summary
				t.AppendRow(table.Row{
					r.RunID, r.RunType, r.StartTime.Local().Format(time.DateTime), r.Status,
					s.Considered, s.Placed, s.Missing, s.SkippedDuplicates, s.Orphans, s.Errors,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "show only the most recent runs (0 for all)")
	return cmd
}
