// Package config handles job file loading and validation for docmigrate.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"docmigrate/internal/audit"
)

// Environment variables read by ApplyEnv and the CLI.
const (
	EnvConfig        = "DOCMIGRATE_CONFIG"
	EnvAuditDir      = "DOCMIGRATE_AUDIT_DIR"
	EnvAuditDisabled = "DOCMIGRATE_AUDIT_DISABLED"
)

// Rebuild modes.
const (
	ModeTree    = "tree"
	ModeMapping = "mapping"
)

// ConfigErrorType represents the type of configuration error.
type ConfigErrorType string

const (
	FileNotFound    ConfigErrorType = "FILE_NOT_FOUND"
	InvalidFormat   ConfigErrorType = "INVALID_FORMAT"
	ValidationError ConfigErrorType = "VALIDATION_ERROR"
)

// ConfigError represents an error that occurred while loading or validating a job.
type ConfigError struct {
	Type    ConfigErrorType
	Path    string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	switch e.Type {
	case FileNotFound:
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case InvalidFormat:
		return fmt.Sprintf("invalid configuration file %s: %s", e.Path, e.Message)
	case ValidationError:
		return fmt.Sprintf("configuration validation error: %s", e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Mapping selects the worksheet and columns of a mapping-mode rebuild.
type Mapping struct {
	SheetFile       string `json:"sheetFile" yaml:"sheetFile"`
	Sheet           string `json:"sheet" yaml:"sheet"`
	DirectoryColumn string `json:"directoryColumn" yaml:"directoryColumn"`
	NameColumn      string `json:"nameColumn" yaml:"nameColumn"`
	AbsoluteDirs    bool   `json:"absoluteDirs" yaml:"absoluteDirs"`
}

// Rebuild configures the folder rebuild from a flat output folder.
type Rebuild struct {
	Mode       string   `json:"mode" yaml:"mode"`             // "tree" or "mapping"
	SourceRoot string   `json:"sourceRoot" yaml:"sourceRoot"` // Reference tree, tree mode only
	Mapping    Mapping  `json:"mapping" yaml:"mapping"`
	FlatFolder string   `json:"flatFolder" yaml:"flatFolder"`
	DestRoot   string   `json:"destRoot" yaml:"destRoot"`
	OutputExt  string   `json:"outputExt" yaml:"outputExt"`
	Suffix     string   `json:"suffix" yaml:"suffix"`
	Action     string   `json:"action" yaml:"action"`       // "move" or "copy"
	Collision  string   `json:"collision" yaml:"collision"` // "overwrite", "fail" or "rename"
	Include    []string `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude    []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	ReportPath string   `json:"reportPath,omitempty" yaml:"reportPath,omitempty"`
	DryRun     bool     `json:"dryRun,omitempty" yaml:"dryRun,omitempty"`
}

// ApplyDefaults fills unset fields.
func (r *Rebuild) ApplyDefaults() {
	if r.Mode == "" {
		r.Mode = ModeTree
	}
	if r.OutputExt == "" {
		r.OutputExt = ".pdf"
	}
	if r.Action == "" {
		r.Action = "move"
	}
	if r.Collision == "" {
		r.Collision = "overwrite"
	}
}

// Tokenize configures the pre-OCR token step.
type Tokenize struct {
	SourceRoot  string   `json:"sourceRoot" yaml:"sourceRoot"`
	StagingRoot string   `json:"stagingRoot,omitempty" yaml:"stagingRoot,omitempty"`
	Mode        string   `json:"mode" yaml:"mode"`   // "copy" or "rename"
	Token       string   `json:"token" yaml:"token"` // "counter" or "size"
	Padding     int      `json:"padding" yaml:"padding"`
	Separator   string   `json:"separator" yaml:"separator"`
	Include     []string `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude     []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	ReportPath  string   `json:"reportPath,omitempty" yaml:"reportPath,omitempty"`
	DryRun      bool     `json:"dryRun,omitempty" yaml:"dryRun,omitempty"`
}

// ApplyDefaults fills unset fields.
func (t *Tokenize) ApplyDefaults() {
	if t.Mode == "" {
		t.Mode = "copy"
	}
	if t.Token == "" {
		t.Token = "counter"
	}
	if t.Padding == 0 {
		t.Padding = 6
	}
	if t.Separator == "" {
		t.Separator = "__"
	}
}

// Compare configures the original versus revised tree comparison.
type Compare struct {
	OriginalRoot   string   `json:"originalRoot" yaml:"originalRoot"`
	RevisedRoot    string   `json:"revisedRoot" yaml:"revisedRoot"`
	OutputExt      string   `json:"outputExt" yaml:"outputExt"`
	SkipHidden     bool     `json:"skipHidden" yaml:"skipHidden"`
	ExactPath      bool     `json:"exactPath,omitempty" yaml:"exactPath,omitempty"`
	SkipExtensions []string `json:"skipExtensions,omitempty" yaml:"skipExtensions,omitempty"`
	Exclude        []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	ReportPath     string   `json:"reportPath,omitempty" yaml:"reportPath,omitempty"`
	ExtractTo      string   `json:"extractTo,omitempty" yaml:"extractTo,omitempty"`
}

// ApplyDefaults fills unset fields.
func (c *Compare) ApplyDefaults() {
	if c.OutputExt == "" {
		c.OutputExt = ".pdf"
	}
}

// Structure configures folder template capture and creation.
type Structure struct {
	SourceRoot   string `json:"sourceRoot,omitempty" yaml:"sourceRoot,omitempty"`
	DestRoot     string `json:"destRoot,omitempty" yaml:"destRoot,omitempty"`
	Template     string `json:"template,omitempty" yaml:"template,omitempty"`
	IncludeFiles bool   `json:"includeFiles" yaml:"includeFiles"`
	Safe         bool   `json:"safe" yaml:"safe"`
}

// Watch configures rebuild watch mode.
type Watch struct {
	DebounceMs      int `json:"debounceMs" yaml:"debounceMs"`
	StabilityMs     int `json:"stabilityMs" yaml:"stabilityMs"`
	StabilityChecks int `json:"stabilityChecks" yaml:"stabilityChecks"`
}

// ApplyDefaults fills unset fields.
func (w *Watch) ApplyDefaults() {
	if w.DebounceMs == 0 {
		w.DebounceMs = 2000
	}
	if w.StabilityMs == 0 {
		w.StabilityMs = 1000
	}
	if w.StabilityChecks == 0 {
		w.StabilityChecks = 2
	}
}

// Job groups the settings of every command. Sections a job file leaves out stay nil.
type Job struct {
	Rebuild   *Rebuild           `json:"rebuild,omitempty" yaml:"rebuild,omitempty"`
	Tokenize  *Tokenize          `json:"tokenize,omitempty" yaml:"tokenize,omitempty"`
	Compare   *Compare           `json:"compare,omitempty" yaml:"compare,omitempty"`
	Structure *Structure         `json:"structure,omitempty" yaml:"structure,omitempty"`
	Watch     *Watch             `json:"watch,omitempty" yaml:"watch,omitempty"`
	Audit     *audit.AuditConfig `json:"audit,omitempty" yaml:"audit,omitempty"`
}

// ApplyAuditDefaults ensures the Audit configuration has sensible defaults.
func (j *Job) ApplyAuditDefaults() {
	defaults := audit.DefaultAuditConfig()

	if j.Audit == nil {
		j.Audit = &defaults
		return
	}

	if j.Audit.LogDirectory == "" {
		j.Audit.LogDirectory = defaults.LogDirectory
	}
	if j.Audit.RotationSize == 0 {
		j.Audit.RotationSize = defaults.RotationSize
	}
}

// ApplyEnv applies environment overrides for the audit trail.
func (j *Job) ApplyEnv(getenv func(string) string) {
	j.ApplyAuditDefaults()
	if dir := strings.TrimSpace(getenv(EnvAuditDir)); dir != "" {
		j.Audit.LogDirectory = dir
	}
	if v := strings.TrimSpace(getenv(EnvAuditDisabled)); v != "" {
		if disabled, err := strconv.ParseBool(v); err == nil {
			j.Audit.Disabled = disabled
		}
	}
}

// isYAML reports whether the path names a YAML job file.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads and parses a job file. YAML is used for .yaml and .yml files and JSON
// otherwise. Unknown fields are rejected so typos do not silently fall back to defaults.
func Load(fsys afero.Fs, filePath string) (*Job, error) {
	data, err := afero.ReadFile(fsys, filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Type: FileNotFound, Path: filePath, Err: err}
		}
		return nil, &ConfigError{Type: FileNotFound, Path: filePath, Message: err.Error(), Err: err}
	}

	var job Job
	if isYAML(filePath) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&job)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&job)
	}
	// An empty document is an empty job.
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Type: InvalidFormat, Path: filePath, Message: err.Error(), Err: err}
	}

	job.ApplyAuditDefaults()
	return &job, nil
}

// Save serializes a job to path, as YAML or JSON by extension.
func Save(fsys afero.Fs, job *Job, filePath string) error {
	var data []byte
	var err error
	if isYAML(filePath) {
		data, err = yaml.Marshal(job)
	} else {
		data, err = json.MarshalIndent(job, "", "  ")
	}
	if err != nil {
		return &ConfigError{Type: InvalidFormat, Path: filePath, Message: err.Error(), Err: err}
	}

	if err := afero.WriteFile(fsys, filePath, data, 0644); err != nil {
		return &ConfigError{
			Type:    ValidationError,
			Path:    filePath,
			Message: fmt.Sprintf("failed to write configuration file: %s", err.Error()),
			Err:     err,
		}
	}

	return nil
}
