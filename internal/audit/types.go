// Package audit provides the append-only audit trail of docmigrate runs.
// Every placement, miss, orphan and token assignment is written as one JSON line,
// so a migration can be traced file by file after the fact.
package audit

import "time"

// RunID is a unique identifier for each run, in UUID v4 format.
type RunID string

// EventType represents the type of audit event.
type EventType string

const (
	// Run lifecycle events
	EventRunStart EventType = "RUN_START"
	EventRunEnd   EventType = "RUN_END"

	// Rebuild events
	EventPlaced           EventType = "PLACED"
	EventMissing          EventType = "MISSING"
	EventSkippedDuplicate EventType = "SKIPPED_DUPLICATE"
	EventOrphan           EventType = "ORPHAN"

	// Tokenize and compare events
	EventTokenAssigned EventType = "TOKEN_ASSIGNED"
	EventExtracted     EventType = "EXTRACTED"

	EventError EventType = "ERROR"

	// System events
	EventRotation       EventType = "ROTATION"
	EventLogInitialized EventType = "LOG_INITIALIZED"
)

// OperationStatus represents the outcome of an operation.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "SUCCESS"
	StatusFailure OperationStatus = "FAILURE"
	StatusSkipped OperationStatus = "SKIPPED"
)

// ReasonCode qualifies an event.
type ReasonCode string

const (
	ReasonNotFound      ReasonCode = "NOT_FOUND"
	ReasonDuplicateKey  ReasonCode = "DUPLICATE_KEY"
	ReasonAlreadyPlaced ReasonCode = "ALREADY_PLACED"
	ReasonUnclaimed     ReasonCode = "UNCLAIMED"
	ReasonOverwrote     ReasonCode = "OVERWROTE"
	ReasonRenamed       ReasonCode = "RENAMED"
	ReasonDryRun        ReasonCode = "DRY_RUN"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusInProgress  RunStatus = "IN_PROGRESS"
	RunStatusCompleted   RunStatus = "COMPLETED"
	RunStatusFailed      RunStatus = "FAILED"
	RunStatusInterrupted RunStatus = "INTERRUPTED"
)

// RunType represents the kind of run.
type RunType string

const (
	RunTypeRebuildTree    RunType = "REBUILD_TREE"
	RunTypeRebuildMapping RunType = "REBUILD_MAPPING"
	RunTypeTokenize       RunType = "TOKENIZE"
	RunTypeCompare        RunType = "COMPARE"
)

// ErrorDetails contains detailed information about an error.
type ErrorDetails struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
	Operation    string `json:"operation"`
}

// AuditEvent represents a single audit record for a file operation or system event.
type AuditEvent struct {
	Timestamp       time.Time         `json:"timestamp"`
	RunID           RunID             `json:"runId"`
	EventType       EventType         `json:"eventType"`
	Status          OperationStatus   `json:"status"`
	SourcePath      string            `json:"sourcePath,omitempty"`
	DestinationPath string            `json:"destinationPath,omitempty"`
	ReasonCode      ReasonCode        `json:"reasonCode,omitempty"`
	ErrorDetails    *ErrorDetails     `json:"errorDetails,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// RunSummary contains the counters of a finished run.
type RunSummary struct {
	Considered        int `json:"considered"`
	Placed            int `json:"placed"`
	Missing           int `json:"missing"`
	SkippedDuplicates int `json:"skippedDuplicates"`
	Orphans           int `json:"orphans"`
	Errors            int `json:"errors"`
}

// RunInfo contains metadata and summary for a run.
type RunInfo struct {
	RunID      RunID      `json:"runId"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Status     RunStatus  `json:"status"`
	RunType    RunType    `json:"runType"`
	AppVersion string     `json:"appVersion"`
	MachineID  string     `json:"machineId"`
	Summary    RunSummary `json:"summary"`
}

// AuditConfig holds configuration for the audit system.
type AuditConfig struct {
	Disabled       bool   `json:"disabled" yaml:"disabled"`
	LogDirectory   string `json:"logDirectory" yaml:"logDirectory"`
	RotationSize   int64  `json:"rotationSizeBytes" yaml:"rotationSizeBytes"` // Rotate when file exceeds this size
	RotationPeriod string `json:"rotationPeriod" yaml:"rotationPeriod"`       // "daily", "weekly", or ""
}

// DefaultAuditConfig returns an AuditConfig with sensible defaults.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		LogDirectory:   ".docmigrate/audit",
		RotationSize:   10 * 1024 * 1024, // 10MB
		RotationPeriod: "",
	}
}
