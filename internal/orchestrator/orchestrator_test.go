package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmigrate/internal/audit"
	"docmigrate/internal/config"
	"docmigrate/internal/report"
	"docmigrate/internal/workbook"
)

// lineRecorder collects narrated lines.
type lineRecorder struct {
	lines []string
}

func (r *lineRecorder) log(line string) { r.lines = append(r.lines, line) }

func (r *lineRecorder) contains(substr string) bool {
	for _, l := range r.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func writeFiles(t *testing.T, fsys afero.Fs, contents map[string]string) {
	t.Helper()
	for path, body := range contents {
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(fsys, path, []byte(body), 0644))
	}
}

func newTestOrchestrator(t *testing.T, fsys afero.Fs, rec *lineRecorder, w *audit.AuditWriter) *Orchestrator {
	t.Helper()
	return New(fsys, Options{Log: rec.log, Audit: w, AppVersion: "test"})
}

func newAuditWriter(t *testing.T, fsys afero.Fs) *audit.AuditWriter {
	t.Helper()
	w, err := audit.NewAuditWriter(fsys, audit.AuditConfig{LogDirectory: "/audit"})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

// treeFixture lays out a reference tree and a flat folder holding:
// one.pdf and three.pdf (matches), DUP.pdf and dup.pdf (a duplicate group) and
// stray.pdf (an orphan). two.dgn has no output.
func treeFixture(t *testing.T, fsys afero.Fs) {
	writeFiles(t, fsys, map[string]string{
		"/src/A/one.dgn":   "one",
		"/src/A/two.dgn":   "two",
		"/src/B/three.dgn": "three",
		"/src/B/dup.dgn":   "dup",
		"/src/B/old.pdf":   "already an output",
		"/flat/one.pdf":    "ONE",
		"/flat/three.pdf":  "THREE",
		"/flat/dup.pdf":    "DUP 1",
		"/flat/DUP.pdf":    "DUP 2",
		"/flat/stray.pdf":  "STRAY",
		"/flat/notes.txt":  "not indexed",
	})
}

func treeConfig() *config.Rebuild {
	return &config.Rebuild{
		Mode:       config.ModeTree,
		SourceRoot: "/src",
		FlatFolder: "/flat",
		DestRoot:   "/out",
	}
}

func TestRebuildTree(t *testing.T) {
	fsys := afero.NewMemMapFs()
	treeFixture(t, fsys)
	rec := &lineRecorder{}

	cfg := treeConfig()
	cfg.ReportPath = "/reports/rebuild.xlsx"

	result, err := newTestOrchestrator(t, fsys, rec, nil).Rebuild(context.Background(), cfg)
	require.NoError(t, err)

	s := result.Summary
	assert.Equal(t, 4, s.Considered)
	assert.Equal(t, 2, s.Placed)
	assert.Equal(t, 1, s.Missing)
	assert.Equal(t, 1, s.SkippedDuplicates)
	assert.Equal(t, 1, s.DuplicateGroups)
	assert.Equal(t, 2, s.DuplicateFiles)
	assert.Equal(t, 3, s.Orphans)
	assert.Equal(t, 0, s.Errors)
	assert.False(t, s.HasErrors())

	data, err := afero.ReadFile(fsys, "/out/A/one.pdf")
	require.NoError(t, err)
	assert.Equal(t, "ONE", string(data))
	exists, _ := afero.Exists(fsys, "/out/B/three.pdf")
	assert.True(t, exists)
	exists, _ = afero.Exists(fsys, "/flat/one.pdf")
	assert.False(t, exists, "move should remove the flat file")
	exists, _ = afero.Exists(fsys, "/flat/dup.pdf")
	assert.True(t, exists, "duplicates stay in the flat folder")

	assert.True(t, rec.contains("✅ Moved: one.pdf -> "+filepath.Join("/out", "A", "one.pdf")))
	assert.True(t, rec.contains("⚠️ Missing in flat: two.pdf -> from "+filepath.Join("/src", "A", "two.dgn")))
	assert.True(t, rec.contains("⚠️ Duplicate in flat (skipped): dup.pdf"))
	assert.True(t, rec.contains("📄 Report written: /reports/rebuild.xlsx"))
	assert.True(t, rec.contains("===== Summary ====="))

	assert.Equal(t, "/reports/rebuild.xlsx", result.ReportPath)
	names, err := workbook.SheetNames(fsys, result.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, []string{report.SheetSummary, report.SheetMissing, report.SheetDuplicates, report.SheetOrphans}, names)

	missing, err := workbook.ReadSheet(fsys, result.ReportPath, report.SheetMissing)
	require.NoError(t, err)
	assert.Len(t, missing.Rows, 2, "missing sheet lists missing and skipped items")

	orphans, err := workbook.ReadSheet(fsys, result.ReportPath, report.SheetOrphans)
	require.NoError(t, err)
	assert.Len(t, orphans.Rows, 3)
}

func TestRebuildCopyTwiceIsIdempotent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	treeFixture(t, fsys)
	o := newTestOrchestrator(t, fsys, &lineRecorder{}, nil)

	cfg := treeConfig()
	cfg.Action = "copy"

	first, err := o.Rebuild(context.Background(), cfg)
	require.NoError(t, err)
	second, err := o.Rebuild(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Summary.Placed, second.Summary.Placed)
	assert.Equal(t, first.Summary.Missing, second.Summary.Missing)
	for _, path := range []string{"/out/A/one.pdf", "/out/B/three.pdf"} {
		data, err := afero.ReadFile(fsys, path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
	exists, _ := afero.Exists(fsys, "/flat/one.pdf")
	assert.True(t, exists, "copy leaves the flat folder intact")
	exists, _ = afero.Exists(fsys, "/out/A/one_1.pdf")
	assert.False(t, exists, "overwrite policy must not create renamed copies")
}

func TestRebuildMoveTwiceReportsMissing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	treeFixture(t, fsys)
	o := newTestOrchestrator(t, fsys, &lineRecorder{}, nil)

	first, err := o.Rebuild(context.Background(), treeConfig())
	require.NoError(t, err)
	require.Equal(t, 2, first.Summary.Placed)

	second, err := o.Rebuild(context.Background(), treeConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Summary.Placed)
	assert.Equal(t, 3, second.Summary.Missing)

	data, err := afero.ReadFile(fsys, "/out/A/one.pdf")
	require.NoError(t, err)
	assert.Equal(t, "ONE", string(data), "placed outputs survive a rerun")
}

func writeMapping(t *testing.T, fsys afero.Fs, path string, header []string, rows [][]interface{}) {
	t.Helper()
	require.NoError(t, workbook.Write(fsys, path, []workbook.Sheet{
		{Name: "Map", Header: header, Rows: rows},
		{Name: "Other", Header: []string{"x"}},
	}))
}

func TestRebuildMapping(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/flat/one_ocr.pdf": "ONE",
		"/flat/two_ocr.pdf": "TWO",
	})
	writeMapping(t, fsys, "/map.xlsx",
		[]string{"Directory", "Name"},
		[][]interface{}{
			{"Proj/A/one", "one.dgn"},
			{"Proj/B/two", "two"},
			{"", "blank.dgn"},
			{"Proj/C/three", "three.dgn"},
		})

	rec := &lineRecorder{}
	result, err := newTestOrchestrator(t, fsys, rec, nil).Rebuild(context.Background(), &config.Rebuild{
		Mode:       config.ModeMapping,
		Mapping:    config.Mapping{SheetFile: "/map.xlsx"},
		FlatFolder: "/flat",
		DestRoot:   "/out",
		Suffix:     "_ocr",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.Considered)
	assert.Equal(t, 2, result.Summary.Placed)
	assert.Equal(t, 1, result.Summary.Missing)
	assert.Equal(t, 1, result.Summary.BlankRows)

	exists, _ := afero.Exists(fsys, filepath.Join("/out", "Proj", "A", "one_ocr.pdf"))
	assert.True(t, exists)
	exists, _ = afero.Exists(fsys, filepath.Join("/out", "Proj", "B", "two_ocr.pdf"))
	assert.True(t, exists)
	assert.True(t, rec.contains("⚠️ Missing in flat: three_ocr.pdf (row 5)"))
	assert.True(t, rec.contains("Rows considered:"))
}

func TestRebuildMappingMissingColumnFailsBeforeMoves(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{"/flat/one.pdf": "ONE"})
	writeMapping(t, fsys, "/map.xlsx",
		[]string{"Folder", "Name"},
		[][]interface{}{{"A/one", "one"}})

	_, err := newTestOrchestrator(t, fsys, &lineRecorder{}, nil).Rebuild(context.Background(), &config.Rebuild{
		Mode:       config.ModeMapping,
		Mapping:    config.Mapping{SheetFile: "/map.xlsx"},
		FlatFolder: "/flat",
		DestRoot:   "/out",
	})
	require.Error(t, err)

	var colErr *workbook.ColumnError
	assert.True(t, errors.As(err, &colErr), "expected a column error, got %v", err)
	exists, _ := afero.Exists(fsys, "/flat/one.pdf")
	assert.True(t, exists)
	exists, _ = afero.DirExists(fsys, "/out")
	assert.False(t, exists)
}

func TestRebuildMappingUnknownSheet(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{"/flat/one.pdf": "ONE"})
	writeMapping(t, fsys, "/map.xlsx", []string{"Directory", "Name"}, nil)

	_, err := newTestOrchestrator(t, fsys, &lineRecorder{}, nil).Rebuild(context.Background(), &config.Rebuild{
		Mode:       config.ModeMapping,
		Mapping:    config.Mapping{SheetFile: "/map.xlsx", Sheet: "Nope"},
		FlatFolder: "/flat",
		DestRoot:   "/out",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, workbook.ErrSheetNotFound)
}

func TestRebuildValidationFailsBeforeMoves(t *testing.T) {
	tests := []struct {
		name  string
		alter func(*config.Rebuild)
	}{
		{"missing flat folder", func(c *config.Rebuild) { c.FlatFolder = "/nope" }},
		{"missing source root", func(c *config.Rebuild) { c.SourceRoot = "/nope" }},
		{"bad action", func(c *config.Rebuild) { c.Action = "teleport" }},
		{"bad collision", func(c *config.Rebuild) { c.Collision = "merge" }},
		{"bad mode", func(c *config.Rebuild) { c.Mode = "guess" }},
		{"output extension is only a dot", func(c *config.Rebuild) { c.OutputExt = "." }},
		{"output extension is blank", func(c *config.Rebuild) { c.OutputExt = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			treeFixture(t, fsys)
			cfg := treeConfig()
			tt.alter(cfg)

			result, err := newTestOrchestrator(t, fsys, &lineRecorder{}, nil).Rebuild(context.Background(), cfg)
			require.Error(t, err)
			assert.Nil(t, result)

			var cfgErr *config.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, config.ValidationError, cfgErr.Type)

			exists, _ := afero.Exists(fsys, "/flat/one.pdf")
			assert.True(t, exists)
		})
	}
}

func TestRebuildOutputExtensionSpellings(t *testing.T) {
	for _, ext := range []string{".pdf", "pdf", ".PDF", " PDF "} {
		t.Run(ext, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			treeFixture(t, fsys)
			cfg := treeConfig()
			cfg.OutputExt = ext

			result, err := newTestOrchestrator(t, fsys, &lineRecorder{}, nil).Rebuild(context.Background(), cfg)
			require.NoError(t, err)
			s := result.Summary
			assert.Equal(t, 2, s.Placed)
			assert.Equal(t, 1, s.Missing)
			assert.Equal(t, 1, s.SkippedDuplicates)
			assert.Equal(t, 3, s.Orphans)
		})
	}
}

func TestRebuildFollowsSymlinkedFiles(t *testing.T) {
	root := t.TempDir()
	fsys := afero.NewOsFs()
	src := filepath.Join(root, "src")
	flat := filepath.Join(root, "flat")
	store := filepath.Join(root, "store")
	writeFiles(t, fsys, map[string]string{
		filepath.Join(src, "A", "one.dgn"): "one",
		filepath.Join(store, "one.pdf"):    "ONE",
		filepath.Join(store, "two.dgn"):    "two",
		filepath.Join(flat, "two.pdf"):     "TWO",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(src, "B"), 0755))
	if err := os.Symlink(filepath.Join(store, "one.pdf"), filepath.Join(flat, "one.pdf")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(store, "two.dgn"), filepath.Join(src, "B", "two.dgn")))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing.pdf"), filepath.Join(flat, "broken.pdf")))

	rec := &lineRecorder{}
	result, err := newTestOrchestrator(t, fsys, rec, nil).Rebuild(context.Background(), &config.Rebuild{
		SourceRoot: src,
		FlatFolder: flat,
		DestRoot:   filepath.Join(root, "out"),
		Action:     "copy",
	})
	require.NoError(t, err)

	s := result.Summary
	assert.Equal(t, 2, s.Considered)
	assert.Equal(t, 2, s.Placed)
	assert.Equal(t, 0, s.Missing)
	assert.Equal(t, 0, s.Orphans)

	data, err := os.ReadFile(filepath.Join(root, "out", "A", "one.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "ONE", string(data))
	_, err = os.Stat(filepath.Join(root, "out", "B", "two.pdf"))
	assert.NoError(t, err)
	assert.True(t, rec.contains("⚠️ Skipped in flat: "), "broken links are reported")
}

func TestRebuildCountsExcludedSourceFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	treeFixture(t, fsys)
	writeFiles(t, fsys, map[string]string{
		"/src/A/Thumbs.db":    "cache",
		"/src/A/~$one.dgn":    "lock",
		"/src/B/partial.tmp":  "tmp",
		"/src/C/keep/new.dgn": "new",
	})
	rec := &lineRecorder{}

	cfg := treeConfig()
	cfg.Exclude = []string{"C/"}
	result, err := newTestOrchestrator(t, fsys, rec, nil).Rebuild(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Summary.Considered)
	assert.Equal(t, 4, result.Summary.Excluded)
	assert.True(t, rec.contains(summaryRow(28, "Excluded by pattern:", 4)))
}

func TestRebuildDoesNotMutateConfig(t *testing.T) {
	fsys := afero.NewMemMapFs()
	treeFixture(t, fsys)
	cfg := treeConfig()

	_, err := newTestOrchestrator(t, fsys, &lineRecorder{}, nil).Rebuild(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, cfg.Action)
	assert.Empty(t, cfg.OutputExt)
}

func TestRebuildDryRun(t *testing.T) {
	fsys := afero.NewMemMapFs()
	treeFixture(t, fsys)
	w := newAuditWriter(t, fsys)
	rec := &lineRecorder{}

	cfg := treeConfig()
	cfg.DryRun = true
	cfg.ReportPath = "/reports/dry.xlsx"

	result, err := newTestOrchestrator(t, fsys, rec, w).Rebuild(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Summary.Placed)
	assert.True(t, result.Summary.DryRun)

	exists, _ := afero.Exists(fsys, "/flat/one.pdf")
	assert.True(t, exists)
	exists, _ = afero.DirExists(fsys, "/out")
	assert.False(t, exists, "dry run must not create the destination")
	exists, _ = afero.Exists(fsys, "/reports/dry.xlsx")
	assert.True(t, exists, "dry run still writes its report")
	assert.True(t, rec.contains("✅ Would move: one.pdf"))

	placed, err := audit.NewAuditReader(fsys, "/audit").FilterEvents(result.RunID, audit.EventFilter{
		EventTypes: []audit.EventType{audit.EventPlaced},
	})
	require.NoError(t, err)
	require.Len(t, placed, 2)
	for _, e := range placed {
		assert.Equal(t, audit.ReasonDryRun, e.ReasonCode)
	}
}

func TestRebuildAuditTrail(t *testing.T) {
	fsys := afero.NewMemMapFs()
	treeFixture(t, fsys)
	w := newAuditWriter(t, fsys)

	result, err := newTestOrchestrator(t, fsys, &lineRecorder{}, w).Rebuild(context.Background(), treeConfig())
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)

	info, err := audit.NewAuditReader(fsys, "/audit").GetRunByID(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, audit.RunTypeRebuildTree, info.RunType)
	assert.Equal(t, audit.RunStatusCompleted, info.Status)
	assert.Equal(t, "test", info.AppVersion)
	assert.Equal(t, result.Summary.Audit(), info.Summary)

	orphans, err := audit.NewAuditReader(fsys, "/audit").FilterEvents(result.RunID, audit.EventFilter{
		EventTypes: []audit.EventType{audit.EventOrphan},
	})
	require.NoError(t, err)
	assert.Len(t, orphans, 3)
}

func TestRebuildCancelled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	treeFixture(t, fsys)
	w := newAuditWriter(t, fsys)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestOrchestrator(t, fsys, &lineRecorder{}, w).Rebuild(ctx, treeConfig())
	require.NoError(t, err)
	assert.True(t, result.Summary.Cancelled)
	assert.Equal(t, 0, result.Summary.Placed)

	info, err := audit.NewAuditReader(fsys, "/audit").GetRunByID(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, audit.RunStatusInterrupted, info.Status)
}

func TestRebuildReportFailureAfterMoves(t *testing.T) {
	root := t.TempDir()
	fsys := afero.NewOsFs()
	src := filepath.Join(root, "src")
	flat := filepath.Join(root, "flat")
	writeFiles(t, fsys, map[string]string{
		filepath.Join(src, "A", "one.dgn"): "one",
		filepath.Join(flat, "one.pdf"):     "ONE",
	})

	// A non-empty directory where the report should go cannot be replaced.
	reportPath := filepath.Join(root, "reports", "rebuild.xlsx")
	writeFiles(t, fsys, map[string]string{filepath.Join(reportPath, "keep.txt"): "x"})

	rec := &lineRecorder{}
	result, err := newTestOrchestrator(t, fsys, rec, nil).Rebuild(context.Background(), &config.Rebuild{
		SourceRoot: src,
		FlatFolder: flat,
		DestRoot:   filepath.Join(root, "out"),
		ReportPath: reportPath,
	})
	require.Error(t, err)

	var writeErr *report.WriteError
	require.True(t, errors.As(err, &writeErr))
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Summary.Placed)
	assert.Empty(t, result.ReportPath)

	_, statErr := os.Stat(filepath.Join(root, "out", "A", "one.pdf"))
	assert.NoError(t, statErr, "moves stand when the report fails")
	assert.True(t, rec.contains("❌ write report"))
}

func TestTokenizeCopy(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/src/a.dgn":     "a",
		"/src/sub/b.dgn": "b",
		"/src/c.txt":     "c",
	})
	rec := &lineRecorder{}

	result, err := newTestOrchestrator(t, fsys, rec, nil).Tokenize(context.Background(), &config.Tokenize{
		SourceRoot:  "/src",
		StagingRoot: "/stage",
		Include:     []string{"dgn"},
		ReportPath:  "/reports/renames.xlsx",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.Scanned)
	assert.Equal(t, 2, result.Summary.Processed)
	assert.Equal(t, 1, result.Summary.Skipped)
	assert.Equal(t, 0, result.Summary.Errors)
	require.Len(t, result.Records, 2)

	for _, r := range result.Records {
		assert.Regexp(t, `^[ab]__\d{6}\.dgn$`, r.NewName)
		exists, _ := afero.Exists(fsys, r.DestPath)
		assert.True(t, exists, "staged copy %s", r.DestPath)
		exists, _ = afero.Exists(fsys, r.SourcePath)
		assert.True(t, exists, "copy mode keeps %s", r.SourcePath)
	}
	assert.True(t, rec.contains("✅ COPIED: a.dgn -> a__"))

	names, err := workbook.SheetNames(fsys, "/reports/renames.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{report.SheetSummary, report.SheetRenames}, names)
}

func TestTokenizeValidation(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{"/src/a.dgn": "a"})

	_, err := newTestOrchestrator(t, fsys, &lineRecorder{}, nil).Tokenize(context.Background(), &config.Tokenize{
		SourceRoot: "/src",
		Mode:       "copy",
	})
	require.Error(t, err)
	var cfgErr *config.ConfigError
	assert.True(t, errors.As(err, &cfgErr))

	exists, _ := afero.Exists(fsys, "/src/a.dgn")
	assert.True(t, exists)
}

func TestTokenizeAuditTrail(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{"/src/a.dgn": "a", "/src/b.dgn": "b"})
	w := newAuditWriter(t, fsys)

	result, err := newTestOrchestrator(t, fsys, &lineRecorder{}, w).Tokenize(context.Background(), &config.Tokenize{
		SourceRoot: "/src",
		Mode:       "rename",
	})
	require.NoError(t, err)

	info, err := audit.NewAuditReader(fsys, "/audit").GetRunByID(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, audit.RunTypeTokenize, info.RunType)
	assert.Equal(t, audit.RunStatusCompleted, info.Status)
	assert.Equal(t, 2, info.Summary.Placed)

	exists, _ := afero.Exists(fsys, "/src/a.dgn")
	assert.False(t, exists, "rename mode renames in place")
}

func compareFixture(t *testing.T, fsys afero.Fs) {
	writeFiles(t, fsys, map[string]string{
		"/orig/A/x.dgn": "x",
		"/orig/A/y.dgn": "y",
		"/orig/A/y.dwg": "y2",
		"/rev/A/x.pdf":  "X",
		"/rev/A/z.pdf":  "Z",
	})
}

func TestCompareAndExtract(t *testing.T) {
	fsys := afero.NewMemMapFs()
	compareFixture(t, fsys)
	w := newAuditWriter(t, fsys)
	rec := &lineRecorder{}

	result, err := newTestOrchestrator(t, fsys, rec, w).Compare(context.Background(), &config.Compare{
		OriginalRoot: "/orig",
		RevisedRoot:  "/rev",
		ExtractTo:    "/extract",
		ReportPath:   "/reports/compare.xlsx",
	})
	require.NoError(t, err)

	s := result.Summary
	assert.Equal(t, 3, s.OriginalFiles)
	assert.Equal(t, 2, s.RevisedFiles)
	assert.Equal(t, 2, s.Documents)
	assert.Equal(t, 1, s.Matched)
	assert.Equal(t, 1, s.Missing)
	assert.Equal(t, 1, s.Extra)
	assert.Equal(t, 2, s.Extracted)
	assert.False(t, s.HasErrors())

	for _, path := range []string{"/extract/A/y.dgn", "/extract/A/y.dwg"} {
		exists, _ := afero.Exists(fsys, path)
		assert.True(t, exists, path)
	}
	assert.True(t, rec.contains("⚠️ Missing output: "+filepath.Join("A", "y.pdf")))
	assert.True(t, rec.contains("⚠️ No original for: "+filepath.Join("A", "z.pdf")))
	assert.True(t, rec.contains("✅ Extracted:"))

	names, err := workbook.SheetNames(fsys, "/reports/compare.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{report.SheetSummary, report.SheetMissing, report.SheetExtra}, names)

	info, err := audit.NewAuditReader(fsys, "/audit").GetRunByID(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, audit.RunTypeCompare, info.RunType)
	assert.Equal(t, 1, info.Summary.Missing)
}

func TestCompareWithoutExtraction(t *testing.T) {
	fsys := afero.NewMemMapFs()
	compareFixture(t, fsys)

	result, err := newTestOrchestrator(t, fsys, &lineRecorder{}, nil).Compare(context.Background(), &config.Compare{
		OriginalRoot: "/orig",
		RevisedRoot:  "/rev",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Extraction)
	assert.Empty(t, result.ReportPath)
	exists, _ := afero.DirExists(fsys, "/extract")
	assert.False(t, exists)
}

func TestCompareExactPath(t *testing.T) {
	fsys := afero.NewMemMapFs()
	compareFixture(t, fsys)
	rec := &lineRecorder{}

	result, err := newTestOrchestrator(t, fsys, rec, nil).Compare(context.Background(), &config.Compare{
		OriginalRoot: "/orig",
		RevisedRoot:  "/rev",
		ExactPath:    true,
		ExtractTo:    "/extract",
	})
	require.NoError(t, err)

	s := result.Summary
	assert.Equal(t, 3, s.Documents)
	assert.Equal(t, 0, s.Matched)
	assert.Equal(t, 3, s.Missing)
	assert.Equal(t, 2, s.Extra)
	assert.Equal(t, 3, s.Extracted)
	assert.True(t, rec.contains("⚠️ Missing output: "+filepath.Join("A", "x.dgn")))
	assert.True(t, rec.contains("⚠️ No original for: "+filepath.Join("A", "x.pdf")))
}

func TestCaptureAndCreateStructure(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/src/A/B/x.dgn": "x",
		"/src/C/y.dgn":   "y",
	})
	o := newTestOrchestrator(t, fsys, &lineRecorder{}, nil)

	var buf strings.Builder
	n, err := o.CaptureStructure(&config.Structure{SourceRoot: "/src"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "A\nA/B\nC\n", buf.String())

	require.NoError(t, afero.WriteFile(fsys, "/template.txt", []byte(buf.String()), 0644))
	require.NoError(t, fsys.MkdirAll("/dest/C", 0755))

	rec := &lineRecorder{}
	result, err := New(fsys, Options{Log: rec.log}).CreateStructure(&config.Structure{
		Template: "/template.txt",
		DestRoot: "/dest",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Existing)
	assert.False(t, result.HasErrors())

	exists, _ := afero.DirExists(fsys, "/dest/A/B")
	assert.True(t, exists)
	exists, _ = afero.Exists(fsys, "/dest/A/B/x.dgn")
	assert.False(t, exists, "directories only unless files are requested")
	assert.True(t, rec.contains(summaryRow(11, "Created:", 2)))
}

func TestCreateStructureFromTreeWithFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{"/src/A/x.dgn": "x"})

	result, err := newTestOrchestrator(t, fsys, &lineRecorder{}, nil).CreateStructure(&config.Structure{
		SourceRoot:   "/src",
		DestRoot:     "/dest",
		IncludeFiles: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)

	data, err := afero.ReadFile(fsys, "/dest/A/x.dgn")
	require.NoError(t, err)
	assert.Empty(t, data, "created files are empty placeholders")
}

func TestCreateStructureNeedsOneSource(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_, err := newTestOrchestrator(t, fsys, &lineRecorder{}, nil).CreateStructure(&config.Structure{DestRoot: "/dest"})
	require.Error(t, err)
}

func TestStatus(t *testing.T) {
	fsys := afero.NewMemMapFs()
	treeFixture(t, fsys)

	st, err := newTestOrchestrator(t, fsys, &lineRecorder{}, nil).Status("/flat", []string{"PDF", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{".pdf"}, st.Extensions)
	assert.Equal(t, 5, st.Files)
	assert.Equal(t, 3, st.Unique)
	assert.Equal(t, 1, st.DuplicateGroups)
	assert.Equal(t, 2, st.DuplicateFiles)
	require.Len(t, st.Duplicates, 1)

	_, err = newTestOrchestrator(t, fsys, &lineRecorder{}, nil).Status("/missing", nil)
	assert.Error(t, err)
}

func TestTimestampedPath(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 42*int(time.Millisecond), time.UTC)
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/r/report.xlsx", "/r/report_20240309-140507-042.xlsx"},
		{"report", "report_20240309-140507-042"},
		{"/r/a.b.xlsx", "/r/a.b_20240309-140507-042.xlsx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TimestampedPath(tt.in, at), tt.in)
	}
}

func TestPassReportPathNeverReusesAName(t *testing.T) {
	fsys := afero.NewMemMapFs()
	at := time.Date(2024, 3, 9, 14, 5, 7, 42*int(time.Millisecond), time.UTC)
	o := New(fsys, Options{Now: func() time.Time { return at }})

	first := o.passReportPath("/r/report.xlsx")
	assert.Equal(t, "/r/report_20240309-140507-042.xlsx", first)
	writeFiles(t, fsys, map[string]string{first: "x"})

	second := o.passReportPath("/r/report.xlsx")
	assert.Equal(t, "/r/report_20240309-140507-042_1.xlsx", second)
	assert.Empty(t, o.passReportPath(""))
}
