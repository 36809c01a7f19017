package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/afero"
)

// maxLineSize bounds a single audit line.
const maxLineSize = 1024 * 1024

// IntegrityStatus represents the result of a log integrity check.
type IntegrityStatus string

const (
	IntegrityOK      IntegrityStatus = "OK"
	IntegrityMissing IntegrityStatus = "MISSING"
	IntegrityCorrupt IntegrityStatus = "CORRUPT" // e.g. truncated last line
	IntegrityEmpty   IntegrityStatus = "EMPTY"
)

// LogIntegrityResult contains the result of a log integrity check.
type LogIntegrityResult struct {
	Status       IntegrityStatus
	FilePath     string
	TotalLines   int    // Number of valid lines in the file
	ErrorMessage string // Description of any error found
	ErrorLine    int    // Line number where error was found (0 if N/A)
}

// EventFilter defines criteria for filtering audit events.
type EventFilter struct {
	EventTypes []EventType     // Filter by event types (empty = all types)
	Status     OperationStatus // Filter by status (empty = all statuses)
	StartTime  *time.Time      // Filter events after this time
	EndTime    *time.Time      // Filter events before this time
}

// AuditReader reads and parses audit events across the active log and its
// rotated segments.
type AuditReader struct {
	fs     afero.Fs
	logDir string
}

// NewAuditReader creates a new AuditReader for the given log directory.
func NewAuditReader(fsys afero.Fs, logDir string) *AuditReader {
	return &AuditReader{fs: fsys, logDir: logDir}
}

// ListRuns returns all runs with summary information, oldest first.
func (r *AuditReader) ListRuns() ([]RunInfo, error) {
	events, err := r.readAllEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return extractRunInfos(events), nil
}

// GetRun returns all events for a specific run.
func (r *AuditReader) GetRun(runID RunID) ([]AuditEvent, error) {
	events, err := r.readAllEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	var runEvents []AuditEvent
	for _, event := range events {
		if event.RunID == runID {
			runEvents = append(runEvents, event)
		}
	}

	if len(runEvents) == 0 {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	return runEvents, nil
}

// GetRunByID returns the RunInfo for a specific run ID.
func (r *AuditReader) GetRunByID(runID RunID) (*RunInfo, error) {
	runs, err := r.ListRuns()
	if err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].RunID == runID {
			return &runs[i], nil
		}
	}

	return nil, fmt.Errorf("run not found: %s", runID)
}

// GetLatestRun returns the most recent run by start timestamp.
func (r *AuditReader) GetLatestRun() (*RunInfo, error) {
	runs, err := r.ListRuns()
	if err != nil {
		return nil, err
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs found")
	}

	return &runs[len(runs)-1], nil
}

// FilterEvents returns events matching the filter criteria for a specific run.
func (r *AuditReader) FilterEvents(runID RunID, filter EventFilter) ([]AuditEvent, error) {
	events, err := r.GetRun(runID)
	if err != nil {
		return nil, err
	}

	var filtered []AuditEvent
	for _, event := range events {
		if filter.matches(event) {
			filtered = append(filtered, event)
		}
	}
	return filtered, nil
}

func (f EventFilter) matches(event AuditEvent) bool {
	if len(f.EventTypes) > 0 {
		found := false
		for _, et := range f.EventTypes {
			if event.EventType == et {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.Status != "" && event.Status != f.Status {
		return false
	}

	if f.StartTime != nil && event.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && event.Timestamp.After(*f.EndTime) {
		return false
	}

	return true
}

// readAllEvents reads all events from all log segments in chronological order.
func (r *AuditReader) readAllEvents() ([]AuditEvent, error) {
	if ok, _ := afero.DirExists(r.fs, r.logDir); !ok {
		return []AuditEvent{}, nil
	}

	logFiles, err := GetAllLogFiles(r.fs, r.logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get log files: %w", err)
	}

	var allEvents []AuditEvent
	for _, logFile := range logFiles {
		events, err := r.readEventsFromFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read events from %s: %w", logFile, err)
		}
		allEvents = append(allEvents, events...)
	}

	return allEvents, nil
}

func (r *AuditReader) readEventsFromFile(filePath string) ([]AuditEvent, error) {
	file, err := r.fs.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		event, err := UnmarshalJSONLine(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		events = append(events, *event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}

	return events, nil
}

// extractRunInfos groups events by run. System events without a run ID are skipped.
func extractRunInfos(events []AuditEvent) []RunInfo {
	runEvents := make(map[RunID][]AuditEvent)
	for _, event := range events {
		if event.RunID == "" {
			continue
		}
		runEvents[event.RunID] = append(runEvents[event.RunID], event)
	}

	runs := make([]RunInfo, 0, len(runEvents))
	for runID, events := range runEvents {
		runs = append(runs, buildRunInfo(runID, events))
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.Before(runs[j].StartTime)
	})

	return runs
}

// buildRunInfo tallies the run's events. A RUN_END summary replaces the tally,
// so an interrupted run still reports what it got through.
func buildRunInfo(runID RunID, events []AuditEvent) RunInfo {
	info := RunInfo{
		RunID:  runID,
		Status: RunStatusInProgress,
	}

	for _, event := range events {
		switch event.EventType {
		case EventRunStart:
			info.StartTime = event.Timestamp
			info.AppVersion = event.Metadata["appVersion"]
			info.MachineID = event.Metadata["machineId"]
			info.RunType = RunType(event.Metadata["runType"])

		case EventRunEnd:
			endTime := event.Timestamp
			info.EndTime = &endTime
			if status, ok := event.Metadata["status"]; ok {
				info.Status = RunStatus(status)
			}
			info.Summary = parseSummaryFromMetadata(event.Metadata)

		case EventPlaced, EventTokenAssigned, EventExtracted:
			info.Summary.Considered++
			info.Summary.Placed++

		case EventMissing:
			info.Summary.Considered++
			info.Summary.Missing++

		case EventSkippedDuplicate:
			info.Summary.Considered++
			info.Summary.SkippedDuplicates++

		case EventOrphan:
			info.Summary.Orphans++

		case EventError:
			info.Summary.Considered++
			info.Summary.Errors++
		}
	}

	return info
}

func parseSummaryFromMetadata(metadata map[string]string) RunSummary {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(metadata[key])
		return n
	}
	return RunSummary{
		Considered:        atoi("considered"),
		Placed:            atoi("placed"),
		Missing:           atoi("missing"),
		SkippedDuplicates: atoi("skippedDuplicates"),
		Orphans:           atoi("orphans"),
		Errors:            atoi("errors"),
	}
}

// GetActiveLogPath returns the path to the active log file.
func (r *AuditReader) GetActiveLogPath() string {
	return filepath.Join(r.logDir, LogFilename)
}

// CheckLogIntegrity validates the active log file.
func (r *AuditReader) CheckLogIntegrity() (*LogIntegrityResult, error) {
	return r.CheckFileIntegrity(r.GetActiveLogPath())
}

// CheckFileIntegrity checks that every line of the file is a complete event and
// that the file ends with a newline.
func (r *AuditReader) CheckFileIntegrity(filePath string) (*LogIntegrityResult, error) {
	result := &LogIntegrityResult{FilePath: filePath}

	data, err := afero.ReadFile(r.fs, filePath)
	if os.IsNotExist(err) {
		result.Status = IntegrityMissing
		result.ErrorMessage = "log file does not exist"
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	if len(data) == 0 {
		result.Status = IntegrityEmpty
		result.ErrorMessage = "log file is empty"
		return result, nil
	}

	for i, line := range bytes.Split(bytes.TrimSuffix(data, []byte("\n")), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var event AuditEvent
		if err := json.Unmarshal(line, &event); err != nil {
			result.Status = IntegrityCorrupt
			result.ErrorLine = i + 1
			result.ErrorMessage = fmt.Sprintf("failed to parse event at line %d: %v", i+1, err)
			return result, nil
		}
		result.TotalLines++
	}

	if data[len(data)-1] != '\n' {
		result.Status = IntegrityCorrupt
		result.ErrorMessage = "truncated last line: file does not end with newline"
		return result, nil
	}

	result.Status = IntegrityOK
	return result, nil
}
