package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mvp-joe/flowscope/internal/detect"
	"github.com/mvp-joe/flowscope/internal/flow"
	"github.com/mvp-joe/flowscope/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Coordinator:
// - file changes force a re-detection and report the flow count
// - branch switches pause file events around a forced re-detection
// - detection errors are logged and the coordinator keeps running
// - a failing watcher start is returned and both watchers are stopped
// - cancellation stops both watchers
// - a nil git watcher is allowed

type mockFileWatcher struct {
	mu       sync.Mutex
	callback func([]string)
	startErr error
	calls    []string
}

func (m *mockFileWatcher) Start(ctx context.Context, callback func([]string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = callback
	return m.startErr
}

func (m *mockFileWatcher) Stop() error { m.record("stop"); return nil }
func (m *mockFileWatcher) Pause()      { m.record("pause") }
func (m *mockFileWatcher) Resume()     { m.record("resume") }

func (m *mockFileWatcher) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockFileWatcher) trigger(files []string) {
	m.mu.Lock()
	cb := m.callback
	m.mu.Unlock()
	cb(files)
}

func (m *mockFileWatcher) history() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockGitWatcher struct {
	mu       sync.Mutex
	callback func(string, string)
	stopped  bool
}

func (m *mockGitWatcher) Start(ctx context.Context, callback func(string, string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = callback
	return nil
}

func (m *mockGitWatcher) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

type mockDetector struct {
	mu     sync.Mutex
	forces []bool
	err    error
	files  *mockFileWatcher
}

func (m *mockDetector) Detect(ctx context.Context, force bool) (*detect.DetectResult, error) {
	if m.files != nil {
		m.files.record("detect")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forces = append(m.forces, force)
	if m.err != nil {
		return nil, m.err
	}
	reg := registry.New([]*flow.Flow{{FlowID: "a"}, {FlowID: "b"}}, time.Now())
	return &detect.DetectResult{Registry: reg, Refreshed: true}, nil
}

// runCoordinator starts c in the background and returns a stop function
// that waits for Start to return.
func runCoordinator(t *testing.T, c *Coordinator) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()
	time.Sleep(20 * time.Millisecond)

	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("coordinator did not stop")
			return nil
		}
	}
}

func TestCoordinator_FileChangeForcesDetection(t *testing.T) {
	t.Parallel()

	files := &mockFileWatcher{}
	det := &mockDetector{}
	c := NewCoordinator(nil, files, det, nil)

	var reported []string
	var flows int
	c.OnDetect = func(changed []string, n int) { reported, flows = changed, n }

	stop := runCoordinator(t, c)
	files.trigger([]string{"/repo/services/orders.ts"})
	files.trigger(nil)

	assert.ErrorIs(t, stop(), context.Canceled)
	assert.Equal(t, []bool{true}, det.forces, "empty batches are ignored")
	assert.Equal(t, []string{"/repo/services/orders.ts"}, reported)
	assert.Equal(t, 2, flows)
	assert.Contains(t, files.history(), "stop")
}

func TestCoordinator_BranchSwitchPausesFiles(t *testing.T) {
	t.Parallel()

	files := &mockFileWatcher{}
	git := &mockGitWatcher{}
	det := &mockDetector{files: files}
	c := NewCoordinator(git, files, det, nil)

	stop := runCoordinator(t, c)

	git.mu.Lock()
	cb := git.callback
	git.mu.Unlock()
	require.NotNil(t, cb)
	cb("main", "feature")

	assert.ErrorIs(t, stop(), context.Canceled)
	assert.Equal(t, []string{"pause", "detect", "resume", "stop"}, files.history())
	assert.True(t, git.stopped)
}

func TestCoordinator_DetectionErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	files := &mockFileWatcher{}
	det := &mockDetector{err: errors.New("parse failed")}
	c := NewCoordinator(nil, files, det, nil)

	called := false
	c.OnDetect = func([]string, int) { called = true }

	stop := runCoordinator(t, c)
	files.trigger([]string{"/repo/a.ts"})
	files.trigger([]string{"/repo/b.ts"})

	assert.ErrorIs(t, stop(), context.Canceled)
	assert.Len(t, det.forces, 2)
	assert.False(t, called)
}

func TestCoordinator_StartError(t *testing.T) {
	t.Parallel()

	boom := errors.New("cannot watch")
	files := &mockFileWatcher{startErr: boom}
	git := &mockGitWatcher{}
	c := NewCoordinator(git, files, &mockDetector{}, nil)

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, git.stopped)
	assert.Contains(t, files.history(), "stop")
}
