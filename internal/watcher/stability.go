package watcher

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/afero"
)

// ErrFileNotFound is returned when the file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrFileUnstable is returned when the file does not stabilize within the timeout.
var ErrFileUnstable = errors.New("file did not stabilize within timeout")

const (
	minInterval = 10 * time.Millisecond
	minTimeout  = 30 * time.Second // least time WaitForStable waits before giving up
)

// StabilityChecker waits until a file stops growing. OCR engines write their
// output incrementally, so a freshly created file is not yet safe to move.
type StabilityChecker struct {
	fs       afero.Fs
	interval time.Duration // Time between size samples
	checks   int           // Consecutive unchanged samples required
	timeout  time.Duration // Maximum time to wait for stability
}

// NewStabilityChecker creates a checker that samples every interval and accepts
// a file once its size is unchanged for checks consecutive samples.
func NewStabilityChecker(fsys afero.Fs, interval time.Duration, checks int) *StabilityChecker {
	if checks < 1 {
		checks = 1
	}
	if interval < minInterval {
		interval = minInterval
	}
	timeout := 10 * interval * time.Duration(checks)
	if timeout < minTimeout {
		timeout = minTimeout
	}
	return NewStabilityCheckerWithOptions(fsys, interval, checks, timeout)
}

// NewStabilityCheckerWithOptions creates a StabilityChecker with a custom timeout.
func NewStabilityCheckerWithOptions(fsys afero.Fs, interval time.Duration, checks int, timeout time.Duration) *StabilityChecker {
	if checks < 1 {
		checks = 1
	}
	if interval < minInterval {
		interval = minInterval
	}
	return &StabilityChecker{
		fs:       fsys,
		interval: interval,
		checks:   checks,
		timeout:  timeout,
	}
}

// WaitForStable blocks until the file size is unchanged for the configured
// number of samples, the file disappears, the timeout passes or ctx ends.
func (s *StabilityChecker) WaitForStable(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lastSize, err := s.getFileSize(path)
	if err != nil {
		return err
	}
	unchanged := 0

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrFileUnstable
			}
			return ctx.Err()
		case <-ticker.C:
			currentSize, err := s.getFileSize(path)
			if err != nil {
				return err
			}

			if currentSize != lastSize {
				lastSize = currentSize
				unchanged = 0
				continue
			}
			unchanged++
			if unchanged >= s.checks {
				return nil
			}
		}
	}
}

// IsStable samples the file size twice, one interval apart.
func (s *StabilityChecker) IsStable(path string) bool {
	initialSize, err := s.getFileSize(path)
	if err != nil {
		return false
	}

	time.Sleep(s.interval)

	finalSize, err := s.getFileSize(path)
	if err != nil {
		return false
	}
	return initialSize == finalSize
}

func (s *StabilityChecker) getFileSize(path string) (int64, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrFileNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

// GetInterval returns the time between size samples.
func (s *StabilityChecker) GetInterval() time.Duration {
	return s.interval
}

// GetChecks returns the number of unchanged samples required.
func (s *StabilityChecker) GetChecks() int {
	return s.checks
}

// GetTimeout returns the configured timeout duration.
func (s *StabilityChecker) GetTimeout() time.Duration {
	return s.timeout
}
