package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmigrate/internal/config"
	"docmigrate/internal/watcher"
)

// syncRecorder collects lines narrated from the watcher goroutine.
type syncRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *syncRecorder) log(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *syncRecorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestWatchRebuildPlacesNewOutput(t *testing.T) {
	root := t.TempDir()
	fsys := afero.NewOsFs()
	src := filepath.Join(root, "src")
	flat := filepath.Join(root, "flat")
	out := filepath.Join(root, "out")
	writeFiles(t, fsys, map[string]string{
		filepath.Join(src, "A", "one.dgn"): "one",
		filepath.Join(src, "A", "two.dgn"): "two",
		filepath.Join(flat, "one.pdf"):     "ONE",
	})

	rec := &syncRecorder{}
	o := New(fsys, Options{Log: rec.log})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		summary *watcher.WatchSummary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		s, err := o.WatchRebuild(ctx, &config.Rebuild{
			SourceRoot: src,
			FlatFolder: flat,
			DestRoot:   out,
		}, &config.Watch{DebounceMs: 20, StabilityMs: 10, StabilityChecks: 1})
		done <- outcome{s, err}
	}()

	require.Eventually(t, func() bool { return rec.contains("Watching ") }, 5*time.Second, 10*time.Millisecond)
	exists, _ := afero.Exists(fsys, filepath.Join(out, "A", "one.pdf"))
	assert.True(t, exists, "the first pass runs before watching starts")

	require.NoError(t, afero.WriteFile(fsys, filepath.Join(flat, "two.pdf"), []byte("TWO"), 0644))

	require.Eventually(t, func() bool {
		ok, _ := afero.Exists(fsys, filepath.Join(out, "A", "two.pdf"))
		return ok
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, rec.contains("Detected 1 new file(s)"))

	cancel()
	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.NotNil(t, res.summary)
		assert.GreaterOrEqual(t, res.summary.Runs, 1)
		assert.Equal(t, 0, res.summary.FailedRuns)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatchRebuildFailsOnInvalidConfig(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_, err := New(fsys, Options{}).WatchRebuild(context.Background(), &config.Rebuild{
		SourceRoot: "/nope",
		FlatFolder: "/flat",
		DestRoot:   "/out",
	}, nil)
	require.Error(t, err)
}

func TestWatchRebuildRejectsBadTimings(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_, err := New(fsys, Options{}).WatchRebuild(context.Background(), treeConfig(), &config.Watch{DebounceMs: -1})
	require.Error(t, err)
}
