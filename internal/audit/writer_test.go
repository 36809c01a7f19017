package audit

import (
	"bytes"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"
)

// uuidV4Regex matches UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
var uuidV4Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func newTestWriter(t *testing.T, fsys afero.Fs, config AuditConfig) *AuditWriter {
	t.Helper()
	w, err := NewAuditWriter(fsys, config)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	return w
}

func readLines(t *testing.T, fsys afero.Fs, path string) []string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// Feature: audit-trail, Property 1: Run_ID Uniqueness and Format
func TestRunIDUniquenessAndFormat(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("Generated Run_IDs are unique and match UUID v4 format", prop.ForAll(
		func(count int) bool {
			runIDs := make(map[RunID]bool)
			for i := 0; i < count; i++ {
				runID := GenerateRunID()
				if !uuidV4Regex.MatchString(string(runID)) {
					t.Logf("Run_ID does not match UUID v4 format: %s", runID)
					return false
				}
				if runIDs[runID] {
					t.Logf("Duplicate Run_ID generated: %s", runID)
					return false
				}
				runIDs[runID] = true
			}
			return true
		},
		gen.IntRange(10, 50),
	))

	properties.TestingRun(t)
}

// Feature: audit-trail, Property 2: Append-Only Log Integrity
// For any sequence of writes, earlier records stay byte-identical and the log
// never shrinks.
func TestAppendOnlyLogIntegrity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("Append-only log integrity is maintained", prop.ForAll(
		func(eventCount int) bool {
			fsys := afero.NewMemMapFs()
			w, err := NewAuditWriter(fsys, AuditConfig{LogDirectory: "/audit"})
			if err != nil {
				t.Logf("Failed to create writer: %v", err)
				return false
			}
			defer w.Close()

			if _, err := w.StartRun(RunTypeRebuildTree, "1.0.0", "test-machine", nil); err != nil {
				t.Logf("StartRun failed: %v", err)
				return false
			}

			var previous []byte
			for i := 0; i < eventCount; i++ {
				if err := w.RecordPlaced("/flat/a.pdf", "/out/a.pdf", "", nil); err != nil {
					t.Logf("RecordPlaced failed: %v", err)
					return false
				}
				current, err := afero.ReadFile(fsys, w.LogPath())
				if err != nil {
					return false
				}
				if len(current) <= len(previous) || !bytes.HasPrefix(current, previous) {
					t.Logf("log was not appended to at write %d", i)
					return false
				}
				previous = current
			}
			return true
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

func TestNewAuditWriter_WritesLogInitializedOnce(t *testing.T) {
	fsys := afero.NewMemMapFs()
	config := AuditConfig{LogDirectory: "/audit"}

	w := newTestWriter(t, fsys, config)
	w.Close()
	w = newTestWriter(t, fsys, config)
	w.Close()

	lines := readLines(t, fsys, filepath.Join("/audit", LogFilename))
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	event, err := UnmarshalJSONLine([]byte(lines[0]))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.EventType != EventLogInitialized {
		t.Errorf("expected LOG_INITIALIZED, got %s", event.EventType)
	}
}

func TestNewAuditWriter_ReadOnlyFs(t *testing.T) {
	_, err := NewAuditWriter(afero.NewReadOnlyFs(afero.NewMemMapFs()), AuditConfig{LogDirectory: "/audit"})
	if err == nil {
		t.Error("expected error on a read-only filesystem")
	}
}

func TestRecordWithoutRun(t *testing.T) {
	w := newTestWriter(t, afero.NewMemMapFs(), AuditConfig{LogDirectory: "/audit"})
	defer w.Close()

	if err := w.RecordOrphan("/flat/x.pdf"); !errors.Is(err, ErrNoActiveRun) {
		t.Errorf("expected ErrNoActiveRun, got %v", err)
	}
}

func TestWriterStartRun_RecordsSettings(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := newTestWriter(t, fsys, AuditConfig{LogDirectory: "/audit"})
	defer w.Close()

	runID, err := w.StartRun(RunTypeTokenize, "2.0.0", "host", map[string]string{
		"mode":    "copy",
		"runType": "ignored",
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if current := w.CurrentRunID(); current == nil || *current != runID {
		t.Fatalf("expected current run %s", runID)
	}

	lines := readLines(t, fsys, w.LogPath())
	event, err := UnmarshalJSONLine([]byte(lines[len(lines)-1]))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.EventType != EventRunStart {
		t.Fatalf("expected RUN_START, got %s", event.EventType)
	}
	if event.Metadata["runType"] != string(RunTypeTokenize) {
		t.Errorf("settings must not override runType, got %q", event.Metadata["runType"])
	}
	if event.Metadata["mode"] != "copy" {
		t.Errorf("expected mode setting, got %q", event.Metadata["mode"])
	}
}

func TestWriterEndRun_RecordsSummary(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := newTestWriter(t, fsys, AuditConfig{LogDirectory: "/audit"})
	defer w.Close()

	runID, err := w.StartRun(RunTypeRebuildMapping, "1.0.0", "host", nil)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	summary := RunSummary{Considered: 5, Placed: 2, Missing: 1, SkippedDuplicates: 1, Orphans: 3, Errors: 1}
	if err := w.EndRun(runID, RunStatusCompleted, summary); err != nil {
		t.Fatalf("EndRun failed: %v", err)
	}
	if w.CurrentRunID() != nil {
		t.Error("expected no active run after EndRun")
	}

	lines := readLines(t, fsys, w.LogPath())
	event, err := UnmarshalJSONLine([]byte(lines[len(lines)-1]))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := parseSummaryFromMetadata(event.Metadata); got != summary {
		t.Errorf("expected summary %+v, got %+v", summary, got)
	}
	if event.Status != StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", event.Status)
	}
}

func TestEventFieldsByType(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := newTestWriter(t, fsys, AuditConfig{LogDirectory: "/audit"})
	defer w.Close()

	runID, err := w.StartRun(RunTypeRebuildTree, "1.0.0", "host", nil)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	steps := []func() error{
		func() error { return w.RecordPlaced("/flat/a.pdf", "/out/x/a.pdf", ReasonOverwrote, nil) },
		func() error { return w.RecordMissing("/src/b.dgn", "/out/b.pdf", ReasonNotFound, "Not found in flat folder") },
		func() error { return w.RecordSkippedDuplicate("/src/c.dgn", "c", 2) },
		func() error { return w.RecordOrphan("/flat/d.pdf") },
		func() error { return w.RecordToken("/src/e.dgn", "/stage/e__000001.dgn", "000001", true) },
		func() error { return w.RecordExtracted("/orig/f.tif", "/missing/f.tif") },
		func() error { return w.RecordError("/flat/g.pdf", "MoveError", "disk full", "place") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	lines := readLines(t, fsys, w.LogPath())
	events := make([]*AuditEvent, 0, len(lines))
	for _, line := range lines {
		e, err := UnmarshalJSONLine([]byte(line))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		events = append(events, e)
	}
	// LOG_INITIALIZED, RUN_START, then one event per step
	recorded := events[2:]
	if len(recorded) != len(steps) {
		t.Fatalf("expected %d events, got %d", len(steps), len(recorded))
	}

	want := []struct {
		eventType EventType
		status    OperationStatus
		reason    ReasonCode
	}{
		{EventPlaced, StatusSuccess, ReasonOverwrote},
		{EventMissing, StatusSkipped, ReasonNotFound},
		{EventSkippedDuplicate, StatusSkipped, ReasonDuplicateKey},
		{EventOrphan, StatusSkipped, ReasonUnclaimed},
		{EventTokenAssigned, StatusSuccess, ""},
		{EventExtracted, StatusSuccess, ""},
		{EventError, StatusFailure, ""},
	}
	for i, e := range recorded {
		if e.RunID != runID {
			t.Errorf("event %d: expected run %s, got %s", i, runID, e.RunID)
		}
		if e.EventType != want[i].eventType || e.Status != want[i].status || e.ReasonCode != want[i].reason {
			t.Errorf("event %d: got %s/%s/%s, want %+v", i, e.EventType, e.Status, e.ReasonCode, want[i])
		}
	}

	if recorded[1].Metadata["reason"] != "Not found in flat folder" {
		t.Errorf("missing event lost its reason: %v", recorded[1].Metadata)
	}
	if recorded[2].Metadata["count"] != "2" {
		t.Errorf("duplicate event lost its count: %v", recorded[2].Metadata)
	}
	if recorded[4].Metadata["collision"] != "true" {
		t.Errorf("token event lost its collision flag: %v", recorded[4].Metadata)
	}
	if recorded[6].ErrorDetails == nil || recorded[6].ErrorDetails.ErrorMessage != "disk full" {
		t.Errorf("error event lost its details: %+v", recorded[6].ErrorDetails)
	}
}
