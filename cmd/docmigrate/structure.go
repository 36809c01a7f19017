package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"docmigrate/internal/config"
)

func newStructureCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "structure",
		Short: "Capture and recreate folder layouts",
	}
	cmd.AddCommand(newStructureCaptureCommand(a), newStructureCreateCommand(a))
	return cmd
}

func (a *app) structureConfig(cmd *cobra.Command) *config.Structure {
	cfg := &config.Structure{}
	if a.job.Structure != nil {
		*cfg = *a.job.Structure
	}
	overrideString(cmd, "source", &cfg.SourceRoot)
	overrideBool(cmd, "files", &cfg.IncludeFiles)
	return cfg
}

func newStructureCaptureCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Write the folder layout of a tree as a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.structureConfig(cmd)
			outPath, _ := cmd.Flags().GetString("out")

			var w io.Writer = a.stdout
			if outPath != "" {
				f, err := a.fs.Create(outPath)
				if err != nil {
					return fmt.Errorf("create template: %w", err)
				}
				defer f.Close()
				w = f
			}

			n, err := a.orchestrator().CaptureStructure(cfg, w)
			if err != nil {
				return err
			}
			if outPath != "" {
				a.out.Info("Template written: %s (%d entries)", outPath, n)
			}
			return nil
		},
	}
	cmd.Flags().String("source", "", "tree to capture")
	cmd.Flags().Bool("files", false, "include files, not only folders")
	cmd.Flags().String("out", "", "template file (default: stdout)")
	return cmd
}

func newStructureCreateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Recreate a folder layout from a template or a source tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.structureConfig(cmd)
			overrideString(cmd, "dest", &cfg.DestRoot)
			overrideString(cmd, "template", &cfg.Template)
			overrideBool(cmd, "safe", &cfg.Safe)

			result, err := a.orchestrator().CreateStructure(cfg)
			if err != nil {
				return err
			}
			a.summaryTable("Structure", []table.Row{
				{"Created", result.Created},
				{"Existing", result.Existing},
				{"Touched", result.Touched},
				{"Errors", result.Errors},
			})
			return finish(nil, false, result.HasErrors())
		},
	}
	cmd.Flags().String("dest", "", "root the layout is created under")
	cmd.Flags().String("template", "", "template file to read")
	cmd.Flags().String("source", "", "tree to copy the layout from")
	cmd.Flags().Bool("files", false, "create empty placeholder files too")
	cmd.Flags().Bool("safe", false, "never touch existing files")
	return cmd
}
