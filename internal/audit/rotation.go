package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// IndexFilename is the rotation index kept next to the log segments.
const IndexFilename = "docmigrate-audit-index.json"

const segmentPrefix = "docmigrate-audit-"

// RotationIndex tracks all log segments for discovery.
type RotationIndex struct {
	Segments    []SegmentInfo `json:"segments"`
	ActiveLog   string        `json:"activeLog"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// SegmentInfo contains metadata about a rotated log segment.
type SegmentInfo struct {
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
}

// RotationManager handles log rotation logic.
type RotationManager struct {
	fs           afero.Fs
	config       AuditConfig
	lastRotation time.Time
}

// NewRotationManager creates a new RotationManager with the given configuration.
func NewRotationManager(fsys afero.Fs, config AuditConfig) *RotationManager {
	return &RotationManager{
		fs:           fsys,
		config:       config,
		lastRotation: time.Now(),
	}
}

// NeedsRotation checks if the log file needs rotation based on size or age.
func (rm *RotationManager) NeedsRotation(logPath string) (bool, error) {
	info, err := rm.fs.Stat(logPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat log file: %w", err)
	}

	if rm.config.RotationSize > 0 && info.Size() >= rm.config.RotationSize {
		return true, nil
	}

	if rm.config.RotationPeriod != "" {
		return rm.needsTimeBasedRotation(info.ModTime(), time.Now())
	}

	return false, nil
}

func (rm *RotationManager) needsTimeBasedRotation(lastModTime, now time.Time) (bool, error) {
	switch rm.config.RotationPeriod {
	case "daily":
		ly, lm, ld := lastModTime.Date()
		ny, nm, nd := now.Date()
		return ly != ny || lm != nm || ld != nd, nil

	case "weekly":
		lastYear, lastWeek := lastModTime.ISOWeek()
		currentYear, currentWeek := now.ISOWeek()
		return lastYear != currentYear || lastWeek != currentWeek, nil

	case "":
		return false, nil

	default:
		return false, fmt.Errorf("unknown rotation period: %s", rm.config.RotationPeriod)
	}
}

// GenerateRotatedFilename creates a filename for a rotated log segment:
// docmigrate-audit-YYYYMMDD-HHMMSS-NNN.jsonl, NNN being milliseconds. NNN is
// bumped past any segment that already exists in the log directory.
func (rm *RotationManager) GenerateRotatedFilename() string {
	now := time.Now()
	stamp := now.Format("20060102-150405")
	for ms := now.Nanosecond() / 1000000; ; ms++ {
		name := fmt.Sprintf("%s%s-%03d.jsonl", segmentPrefix, stamp, ms)
		if ok, _ := afero.Exists(rm.fs, filepath.Join(rm.config.LogDirectory, name)); !ok {
			return name
		}
	}
}

// Rotate renames the active log to a new segment and updates the index.
func (rm *RotationManager) Rotate(logPath string) (string, error) {
	return rm.RotateWithFilename(logPath, rm.GenerateRotatedFilename())
}

// RotateWithFilename rotates to a specific segment name, matching the one
// already recorded in the ROTATION event.
func (rm *RotationManager) RotateWithFilename(logPath, rotatedFilename string) (string, error) {
	dir := filepath.Dir(logPath)
	rotatedPath := filepath.Join(dir, rotatedFilename)

	info, err := rm.fs.Stat(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat log file for rotation: %w", err)
	}

	if err := rm.fs.Rename(logPath, rotatedPath); err != nil {
		return "", fmt.Errorf("failed to rename log file during rotation: %w", err)
	}

	// The index can be rebuilt from the directory, so a failed update is not fatal.
	if err := rm.updateIndex(dir, rotatedFilename, info.Size()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to update rotation index: %v\n", err)
	}

	rm.lastRotation = time.Now()
	return rotatedPath, nil
}

func (rm *RotationManager) updateIndex(logDir, rotatedFilename string, size int64) error {
	indexPath := filepath.Join(logDir, IndexFilename)

	index, err := LoadIndex(rm.fs, logDir)
	if err != nil {
		index = &RotationIndex{
			Segments:  []SegmentInfo{},
			ActiveLog: LogFilename,
		}
	}

	index.Segments = append(index.Segments, SegmentInfo{
		Filename:  rotatedFilename,
		CreatedAt: time.Now(),
		Size:      size,
	})
	index.LastUpdated = time.Now()

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	if err := afero.WriteFile(rm.fs, indexPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	return nil
}

// LoadIndex loads the rotation index from the log directory.
func LoadIndex(fsys afero.Fs, logDir string) (*RotationIndex, error) {
	data, err := afero.ReadFile(fsys, filepath.Join(logDir, IndexFilename))
	if err != nil {
		return nil, err
	}

	var index RotationIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}

	return &index, nil
}

// DiscoverSegments lists rotated segments in the directory, oldest first.
func DiscoverSegments(fsys afero.Fs, logDir string) ([]string, error) {
	entries, err := afero.ReadDir(fsys, logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, ".jsonl") {
			segments = append(segments, name)
		}
	}

	// The timestamp in the name sorts chronologically.
	sort.Strings(segments)
	return segments, nil
}

// GetAllLogFiles returns the rotated segments and the active log, oldest first.
func GetAllLogFiles(fsys afero.Fs, logDir string) ([]string, error) {
	segments, err := DiscoverSegments(fsys, logDir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(segments)+1)
	for _, seg := range segments {
		files = append(files, filepath.Join(logDir, seg))
	}

	activeLog := filepath.Join(logDir, LogFilename)
	if ok, _ := afero.Exists(fsys, activeLog); ok {
		files = append(files, activeLog)
	}

	return files, nil
}

// CreateRotationEvent creates a ROTATION event to be written before switching files.
func CreateRotationEvent(runID RunID, oldFile, newFile string) AuditEvent {
	return AuditEvent{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		EventType: EventRotation,
		Status:    StatusSuccess,
		Metadata: map[string]string{
			"previousFile": oldFile,
			"newFile":      newFile,
			"reason":       "rotation",
		},
	}
}
