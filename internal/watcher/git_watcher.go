package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// gitWatcher is the concrete implementation of GitWatcher.
type gitWatcher struct {
	gitDir   string
	headPath string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	lastBranch string
	mu         sync.RWMutex

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewGitWatcher creates a GitWatcher for the given .git directory.
// Returns an error if .git/HEAD cannot be read.
func NewGitWatcher(gitDir string, logger *slog.Logger) (GitWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	headPath := filepath.Join(gitDir, "HEAD")

	initial, err := readBranch(headPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read .git/HEAD: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &gitWatcher{
		gitDir:     gitDir,
		headPath:   headPath,
		watcher:    w,
		logger:     logger,
		lastBranch: initial,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Start begins monitoring .git/HEAD.
func (gw *gitWatcher) Start(ctx context.Context, callback func(oldBranch, newBranch string)) error {
	// HEAD is replaced rather than rewritten, so watch its directory.
	if err := gw.watcher.Add(gw.gitDir); err != nil {
		return fmt.Errorf("failed to watch .git directory: %w", err)
	}

	go gw.watch(ctx, callback)
	return nil
}

// Stop stops the watcher. It must only be called after Start.
func (gw *gitWatcher) Stop() error {
	var err error
	gw.stopOnce.Do(func() {
		close(gw.stopCh)
		<-gw.doneCh
		err = gw.watcher.Close()
	})
	return err
}

func (gw *gitWatcher) watch(ctx context.Context, callback func(oldBranch, newBranch string)) {
	defer close(gw.doneCh)

	for {
		select {
		case <-ctx.Done():
			return

		case <-gw.stopCh:
			return

		case event, ok := <-gw.watcher.Events:
			if !ok {
				return
			}
			if event.Name != gw.headPath || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			newBranch, err := readBranch(gw.headPath)
			if err != nil {
				gw.logger.Warn("failed to read .git/HEAD", "error", err)
				continue
			}
			// HEAD is truncated before it is rewritten
			if newBranch == "" {
				continue
			}

			gw.mu.Lock()
			oldBranch := gw.lastBranch
			gw.lastBranch = newBranch
			gw.mu.Unlock()

			if newBranch == oldBranch {
				continue
			}

			func() {
				defer func() {
					if r := recover(); r != nil {
						gw.logger.Error("branch switch handler panicked", "panic", r)
					}
				}()
				callback(oldBranch, newBranch)
			}()

		case err, ok := <-gw.watcher.Errors:
			if !ok {
				return
			}
			gw.logger.Warn("git watcher error", "error", err)
		}
	}
}

func readBranch(headPath string) (string, error) {
	content, err := os.ReadFile(headPath)
	if err != nil {
		return "", err
	}
	return parseBranch(content), nil
}

// parseBranch returns the branch named by HEAD content, or "detached" for a
// bare commit hash.
func parseBranch(content []byte) string {
	line := strings.TrimSpace(string(content))

	if name, ok := strings.CutPrefix(line, "ref: refs/heads/"); ok {
		return strings.TrimSpace(name)
	}
	if (len(line) == 40 || len(line) == 64) && isHex(line) {
		return "detached"
	}
	return line
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
