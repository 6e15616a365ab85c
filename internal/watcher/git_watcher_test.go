package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for GitWatcher:
// - a branch switch fires the callback with old and new names
// - no callback fires on start or when HEAD is rewritten unchanged
// - an emptied HEAD, as seen mid-rewrite, is not reported as a switch
// - a missing .git/HEAD fails construction
// - a panicking callback does not stop the watcher
// - parseBranch handles symbolic refs, SHA-1/SHA-256 detached heads and junk

type branchSwitch struct{ old, new string }

func newGitDir(t *testing.T, branch string) (string, string) {
	t.Helper()
	gitDir := filepath.Join(t.TempDir(), ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0755))
	head := filepath.Join(gitDir, "HEAD")
	require.NoError(t, os.WriteFile(head, []byte("ref: refs/heads/"+branch+"\n"), 0644))
	return gitDir, head
}

func TestGitWatcher_BranchSwitch(t *testing.T) {
	t.Parallel()

	gitDir, head := newGitDir(t, "main")

	var mu sync.Mutex
	var switches []branchSwitch
	done := make(chan struct{}, 4)

	w, err := NewGitWatcher(gitDir, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, func(oldBranch, newBranch string) {
		mu.Lock()
		switches = append(switches, branchSwitch{oldBranch, newBranch})
		mu.Unlock()
		done <- struct{}{}
	}))
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(head, []byte("ref: refs/heads/main\n"), 0644))
	require.NoError(t, os.WriteFile(head, []byte("ref: refs/heads/feature\n"), 0644))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("branch switch not reported")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []branchSwitch{{"main", "feature"}}, switches)
}

func TestGitWatcher_EmptyHeadIgnored(t *testing.T) {
	t.Parallel()

	gitDir, head := newGitDir(t, "main")

	switches := make(chan branchSwitch, 4)
	w, err := NewGitWatcher(gitDir, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, func(oldBranch, newBranch string) {
		switches <- branchSwitch{oldBranch, newBranch}
	}))
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(head, nil, 0644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(head, []byte("ref: refs/heads/feature\n"), 0644))

	select {
	case got := <-switches:
		assert.Equal(t, branchSwitch{"main", "feature"}, got)
	case <-time.After(3 * time.Second):
		t.Fatal("branch switch not reported")
	}

	select {
	case got := <-switches:
		t.Fatalf("unexpected switch %v", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestGitWatcher_MissingHead(t *testing.T) {
	t.Parallel()

	w, err := NewGitWatcher(filepath.Join(t.TempDir(), ".git"), nil)
	assert.Error(t, err)
	assert.Nil(t, w)
}

func TestGitWatcher_CallbackPanicRecovered(t *testing.T) {
	t.Parallel()

	gitDir, head := newGitDir(t, "main")
	w, err := NewGitWatcher(gitDir, nil)
	require.NoError(t, err)

	calls := make(chan string, 4)
	require.NoError(t, w.Start(context.Background(), func(_, newBranch string) {
		calls <- newBranch
		panic("boom")
	}))
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	for _, branch := range []string{"one", "two"} {
		require.NoError(t, os.WriteFile(head, []byte("ref: refs/heads/"+branch+"\n"), 0644))
		select {
		case got := <-calls:
			assert.Equal(t, branch, got)
		case <-time.After(3 * time.Second):
			t.Fatalf("switch to %s not reported", branch)
		}
	}
}

func TestParseBranch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		content string
		want    string
	}{
		{"ref: refs/heads/main\n", "main"},
		{"ref: refs/heads/feature/flows\n", "feature/flows"},
		{strings.Repeat("a1", 20) + "\n", "detached"},
		{strings.Repeat("b2", 32), "detached"},
		{"something-else", "something-else"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseBranch([]byte(tt.content)), tt.content)
	}
}
