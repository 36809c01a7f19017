// Package organizer places matched files into the recreated destination tree.
package organizer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// MoveErrorType represents the type of move error.
type MoveErrorType string

const (
	// SourceNotFound indicates the source file does not exist.
	SourceNotFound MoveErrorType = "SOURCE_NOT_FOUND"
	// DestinationExists indicates a file already exists at the destination.
	DestinationExists MoveErrorType = "DESTINATION_EXISTS"
	// PermissionDenied indicates insufficient permissions for the operation.
	PermissionDenied MoveErrorType = "PERMISSION_DENIED"
	// InvalidTarget indicates the destination would fall outside the destination root.
	InvalidTarget MoveErrorType = "INVALID_TARGET"
	// IOFailure covers every other filesystem failure.
	IOFailure MoveErrorType = "IO_FAILURE"
)

// MoveError represents an error that occurred during file movement.
type MoveError struct {
	Type MoveErrorType
	Path string
	Err  error
}

func (e *MoveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Path)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

// Action selects whether the source is kept.
type Action string

const (
	ActionMove Action = "move"
	ActionCopy Action = "copy"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionMove:
		return ActionMove, nil
	case ActionCopy:
		return ActionCopy, nil
	}
	return "", fmt.Errorf("unknown action %q (want move or copy)", s)
}

// CollisionPolicy decides what happens when the destination file already exists.
type CollisionPolicy string

const (
	// CollisionOverwrite replaces the existing file.
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionFail leaves both files alone and reports DESTINATION_EXISTS.
	CollisionFail CollisionPolicy = "fail"
	// CollisionRename places the file under the first free "_N" name.
	CollisionRename CollisionPolicy = "rename"
)

// ParseCollisionPolicy validates a collision policy name. An empty name selects overwrite.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CollisionOverwrite:
		return CollisionOverwrite, nil
	case CollisionFail:
		return CollisionFail, nil
	case CollisionRename:
		return CollisionRename, nil
	}
	return "", fmt.Errorf("unknown collision policy %q (want overwrite, fail or rename)", s)
}

// PlaceRequest describes one file to place.
type PlaceRequest struct {
	Source       string
	DestRoot     string
	TargetRelDir string
	Name         string
	Action       Action
	Collision    CollisionPolicy
}

// MoveResult represents the result of a successful placement.
type MoveResult struct {
	SourcePath      string
	DestinationPath string
	Overwrote       bool   // An existing destination file was replaced
	Renamed         bool   // The file was placed under a numbered name
	OriginalName    string // Requested name when Renamed is set
}

// Materializer moves and copies files on a filesystem.
type Materializer struct {
	fs     afero.Fs
	dryRun bool
}

// New creates a Materializer on fsys.
func New(fsys afero.Fs) *Materializer {
	return &Materializer{fs: fsys}
}

// NewDryRun creates a Materializer that validates and resolves every placement
// against fsys but never writes to it.
func NewDryRun(fsys afero.Fs) *Materializer {
	return &Materializer{fs: fsys, dryRun: true}
}

// DryRun reports whether the materializer leaves the filesystem untouched.
func (m *Materializer) DryRun() bool { return m.dryRun }

// Fs returns the filesystem the materializer works on.
func (m *Materializer) Fs() afero.Fs { return m.fs }

// DestinationPath joins destRoot, relDir and name, rejecting results that leave destRoot.
func DestinationPath(destRoot, relDir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return "", &MoveError{Type: InvalidTarget, Path: name, Err: errors.New("invalid file name")}
	}
	root := filepath.Clean(destRoot)
	dir := filepath.Join(root, relDir)
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &MoveError{
			Type: InvalidTarget,
			Path: relDir,
			Err:  errors.New("target directory escapes the destination root"),
		}
	}
	return filepath.Join(dir, name), nil
}

// Place creates the target directory and moves or copies the source into it.
func (m *Materializer) Place(req PlaceRequest) (*MoveResult, error) {
	destPath, err := DestinationPath(req.DestRoot, req.TargetRelDir, req.Name)
	if err != nil {
		return nil, err
	}
	destDir := filepath.Dir(destPath)

	srcInfo, err := m.fs.Stat(req.Source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MoveError{Type: SourceNotFound, Path: req.Source, Err: err}
		}
		return nil, wrap(req.Source, err)
	}
	if srcInfo.IsDir() {
		return nil, &MoveError{Type: IOFailure, Path: req.Source, Err: errors.New("source is a directory")}
	}

	if !m.dryRun {
		if err := m.fs.MkdirAll(destDir, 0755); err != nil {
			return nil, wrap(destDir, err)
		}
	}

	result := &MoveResult{SourcePath: req.Source}

	if destInfo, err := m.fs.Stat(destPath); err == nil {
		if os.SameFile(srcInfo, destInfo) || filepath.Clean(req.Source) == destPath {
			result.DestinationPath = destPath
			return result, nil
		}
		switch req.Collision {
		case CollisionFail:
			return nil, &MoveError{Type: DestinationExists, Path: destPath}
		case CollisionRename:
			result.Renamed = true
			result.OriginalName = req.Name
			destPath = filepath.Join(destDir, GenerateNumberedName(m.fs, destDir, req.Name))
		default:
			if destInfo.IsDir() {
				return nil, &MoveError{Type: DestinationExists, Path: destPath, Err: errors.New("destination is a directory")}
			}
			result.Overwrote = true
		}
	}

	if !m.dryRun {
		if err := m.Transfer(req.Source, destPath, req.Action); err != nil {
			return nil, err
		}
	}
	result.DestinationPath = destPath
	return result, nil
}

// Transfer moves or copies src to dst. The parent of dst must exist.
func (m *Materializer) Transfer(src, dst string, action Action) error {
	if action == ActionCopy {
		return m.copyFile(src, dst)
	}
	return m.move(src, dst)
}

// move renames src to dst, falling back to copy and delete when rename fails
// (e.g., cross-device moves).
func (m *Materializer) move(src, dst string) error {
	err := m.fs.Rename(src, dst)
	if err == nil {
		return nil
	}
	if os.IsPermission(err) {
		return &MoveError{Type: PermissionDenied, Path: src, Err: err}
	}
	return m.copyAndDelete(src, dst)
}

// copyAndDelete copies a file to a new location and deletes the original.
func (m *Materializer) copyAndDelete(src, dst string) error {
	if err := m.copyFile(src, dst); err != nil {
		return err
	}
	if err := m.fs.Remove(src); err != nil {
		// If we can't delete source, try to clean up destination
		m.fs.Remove(dst)
		return wrap(src, err)
	}
	return nil
}

// copyFile streams src into dst and carries over the permission bits and
// modification time. A partially written dst is removed on failure.
func (m *Materializer) copyFile(src, dst string) error {
	in, err := m.fs.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return &MoveError{Type: SourceNotFound, Path: src, Err: err}
		}
		return wrap(src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return wrap(src, err)
	}

	out, err := m.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return wrap(dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		m.fs.Remove(dst)
		return wrap(dst, err)
	}
	if err := out.Close(); err != nil {
		m.fs.Remove(dst)
		return wrap(dst, err)
	}

	// Metadata is best effort; the content is already in place.
	_ = m.fs.Chmod(dst, info.Mode().Perm())
	_ = m.fs.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}

func wrap(path string, err error) error {
	var moveErr *MoveError
	if errors.As(err, &moveErr) {
		return err
	}
	if os.IsPermission(err) {
		return &MoveError{Type: PermissionDenied, Path: path, Err: err}
	}
	return &MoveError{Type: IOFailure, Path: path, Err: err}
}
