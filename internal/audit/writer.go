package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// LogFilename is the name of the active audit log inside the log directory.
const LogFilename = "docmigrate-audit.jsonl"

// ErrNoActiveRun is returned by the Record helpers when StartRun has not been called.
var ErrNoActiveRun = errors.New("no active run: call StartRun first")

// AuditWriter handles all write operations to the audit log.
// It implements append-only semantics with fail-fast behavior.
type AuditWriter struct {
	mu              sync.Mutex
	fs              afero.Fs
	file            afero.File
	writer          *bufio.Writer
	logPath         string
	currentRun      *RunID
	config          AuditConfig
	rotationManager *RotationManager
}

// NewAuditWriter creates the log directory if needed and opens the log for appending.
// A new log starts with a LOG_INITIALIZED event.
func NewAuditWriter(fsys afero.Fs, config AuditConfig) (*AuditWriter, error) {
	if err := fsys.MkdirAll(config.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(config.LogDirectory, LogFilename)

	isNewLog := false
	if _, err := fsys.Stat(logPath); os.IsNotExist(err) {
		isNewLog = true
	}

	file, err := fsys.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	w := &AuditWriter{
		fs:              fsys,
		file:            file,
		writer:          bufio.NewWriter(file),
		logPath:         logPath,
		config:          config,
		rotationManager: NewRotationManager(fsys, config),
	}

	if isNewLog {
		event := AuditEvent{
			Timestamp: time.Now().UTC(),
			EventType: EventLogInitialized,
			Status:    StatusSuccess,
			Metadata:  map[string]string{"logPath": logPath},
		}
		if err := w.appendLocked(event); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write LOG_INITIALIZED event: %w", err)
		}
	}

	return w, nil
}

// GenerateRunID returns a new UUID v4 Run ID.
func GenerateRunID() RunID {
	return RunID(uuid.NewString())
}

// StartRun begins a run of the given type and writes its RUN_START event.
// Settings are recorded in the event metadata alongside the version and machine.
func (w *AuditWriter) StartRun(runType RunType, appVersion, machineID string, settings map[string]string) (RunID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	runID := GenerateRunID()

	metadata := map[string]string{
		"appVersion": appVersion,
		"machineId":  machineID,
		"runType":    string(runType),
	}
	for k, v := range settings {
		if _, reserved := metadata[k]; !reserved {
			metadata[k] = v
		}
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		EventType: EventRunStart,
		Status:    StatusSuccess,
		Metadata:  metadata,
	}

	// Set before writing so a rotation triggered by RUN_START carries the run ID.
	w.currentRun = &runID
	if err := w.writeEventLocked(event); err != nil {
		w.currentRun = nil
		return "", fmt.Errorf("failed to write RUN_START event: %w", err)
	}

	return runID, nil
}

// WriteEvent writes a single audit event to the log.
func (w *AuditWriter) WriteEvent(event AuditEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.writeEventLocked(event)
}

// writeEventLocked appends the event and rotates the log when it has grown too large.
func (w *AuditWriter) writeEventLocked(event AuditEvent) error {
	if err := w.appendLocked(event); err != nil {
		return err
	}

	if event.EventType != EventRotation {
		if err := w.checkAndRotate(); err != nil {
			return fmt.Errorf("failed to check/perform rotation: %w", err)
		}
	}

	return nil
}

// appendLocked writes one JSON line, flushes and syncs it.
func (w *AuditWriter) appendLocked(event AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync event to disk: %w", err)
	}

	return nil
}

// checkAndRotate writes a ROTATION event to the old file, renames it to a
// timestamped segment and reopens a fresh active log.
func (w *AuditWriter) checkAndRotate() error {
	needsRotation, err := w.rotationManager.NeedsRotation(w.logPath)
	if err != nil {
		return err
	}
	if !needsRotation {
		return nil
	}

	rotatedFilename := w.rotationManager.GenerateRotatedFilename()

	var runID RunID
	if w.currentRun != nil {
		runID = *w.currentRun
	}
	if err := w.appendLocked(CreateRotationEvent(runID, filepath.Base(w.logPath), rotatedFilename)); err != nil {
		return fmt.Errorf("failed to write rotation event: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file for rotation: %w", err)
	}

	if _, err := w.rotationManager.RotateWithFilename(w.logPath, rotatedFilename); err != nil {
		return fmt.Errorf("failed to rotate log: %w", err)
	}

	file, err := w.fs.OpenFile(w.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open new log file after rotation: %w", err)
	}

	w.file = file
	w.writer = bufio.NewWriter(file)
	return nil
}

// EndRun records the run completion status and summary.
func (w *AuditWriter) EndRun(runID RunID, status RunStatus, summary RunSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		EventType: EventRunEnd,
		Status:    runStatusToOperationStatus(status),
		Metadata: map[string]string{
			"status":            string(status),
			"considered":        strconv.Itoa(summary.Considered),
			"placed":            strconv.Itoa(summary.Placed),
			"missing":           strconv.Itoa(summary.Missing),
			"skippedDuplicates": strconv.Itoa(summary.SkippedDuplicates),
			"orphans":           strconv.Itoa(summary.Orphans),
			"errors":            strconv.Itoa(summary.Errors),
		},
	}

	if err := w.writeEventLocked(event); err != nil {
		return fmt.Errorf("failed to write RUN_END event: %w", err)
	}

	w.currentRun = nil
	return nil
}

func runStatusToOperationStatus(status RunStatus) OperationStatus {
	switch status {
	case RunStatusFailed, RunStatusInterrupted:
		return StatusFailure
	default:
		return StatusSuccess
	}
}

// Close flushes any buffered data and closes the audit log file.
func (w *AuditWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

// CurrentRunID returns the current run ID, or nil if no run is active.
func (w *AuditWriter) CurrentRunID() *RunID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentRun
}

// LogPath returns the path to the active audit log file.
func (w *AuditWriter) LogPath() string {
	return w.logPath
}

// GetConfig returns the audit configuration.
func (w *AuditWriter) GetConfig() AuditConfig {
	return w.config
}

// record stamps the event with the active run and writes it.
func (w *AuditWriter) record(event AuditEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentRun == nil {
		return ErrNoActiveRun
	}
	event.Timestamp = time.Now().UTC()
	event.RunID = *w.currentRun
	return w.writeEventLocked(event)
}

// RecordPlaced records a flat file copied or moved into the rebuilt tree.
// reason is ReasonOverwrote or ReasonRenamed when the destination was occupied.
func (w *AuditWriter) RecordPlaced(source, dest string, reason ReasonCode, metadata map[string]string) error {
	return w.record(AuditEvent{
		EventType:       EventPlaced,
		Status:          StatusSuccess,
		SourcePath:      source,
		DestinationPath: dest,
		ReasonCode:      reason,
		Metadata:        metadata,
	})
}

// RecordMissing records an item whose expected output could not be placed.
func (w *AuditWriter) RecordMissing(source, expected string, reason ReasonCode, message string) error {
	return w.record(AuditEvent{
		EventType:       EventMissing,
		Status:          StatusSkipped,
		SourcePath:      source,
		DestinationPath: expected,
		ReasonCode:      reason,
		Metadata:        map[string]string{"reason": message},
	})
}

// RecordSkippedDuplicate records an item whose key matched more than one flat file.
func (w *AuditWriter) RecordSkippedDuplicate(source, key string, count int) error {
	return w.record(AuditEvent{
		EventType:  EventSkippedDuplicate,
		Status:     StatusSkipped,
		SourcePath: source,
		ReasonCode: ReasonDuplicateKey,
		Metadata: map[string]string{
			"key":   key,
			"count": strconv.Itoa(count),
		},
	})
}

// RecordOrphan records a flat output that no item claimed.
func (w *AuditWriter) RecordOrphan(flatPath string) error {
	return w.record(AuditEvent{
		EventType:  EventOrphan,
		Status:     StatusSkipped,
		SourcePath: flatPath,
		ReasonCode: ReasonUnclaimed,
	})
}

// RecordToken records a source file renamed or copied under its token name.
func (w *AuditWriter) RecordToken(source, dest, token string, collided bool) error {
	metadata := map[string]string{"token": token}
	if collided {
		metadata["collision"] = "true"
	}
	return w.record(AuditEvent{
		EventType:       EventTokenAssigned,
		Status:          StatusSuccess,
		SourcePath:      source,
		DestinationPath: dest,
		Metadata:        metadata,
	})
}

// RecordExtracted records an original copied out because its output is missing.
func (w *AuditWriter) RecordExtracted(source, dest string) error {
	return w.record(AuditEvent{
		EventType:       EventExtracted,
		Status:          StatusSuccess,
		SourcePath:      source,
		DestinationPath: dest,
	})
}

// RecordError records an ERROR event when an error occurs during file processing.
func (w *AuditWriter) RecordError(source, errType, errMsg, operation string) error {
	return w.record(AuditEvent{
		EventType:  EventError,
		Status:     StatusFailure,
		SourcePath: source,
		ErrorDetails: &ErrorDetails{
			ErrorType:    errType,
			ErrorMessage: errMsg,
			Operation:    operation,
		},
	})
}
