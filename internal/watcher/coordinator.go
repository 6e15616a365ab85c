package watcher

import (
	"context"
	"log/slog"
	"sync"
)

// Coordinator routes file changes and branch switches to the detector.
// Every trigger forces a full re-detection; the registry is rebuilt as a
// whole so partial updates are never persisted.
type Coordinator struct {
	git      GitWatcher // may be nil outside a git repository
	files    FileWatcher
	detector Detector
	logger   *slog.Logger

	// OnDetect, when set, is called after every successful run.
	OnDetect func(files []string, flows int)

	runMu sync.Mutex
}

// NewCoordinator creates a coordinator. git may be nil.
func NewCoordinator(git GitWatcher, files FileWatcher, detector Detector, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		git:      git,
		files:    files,
		detector: detector,
		logger:   logger,
	}
}

// Start begins routing events and blocks until ctx is cancelled or a
// watcher fails to start.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.git != nil {
		if err := c.git.Start(ctx, func(oldBranch, newBranch string) {
			c.handleBranchSwitch(ctx, oldBranch, newBranch)
		}); err != nil {
			c.cleanup()
			return err
		}
	}

	if err := c.files.Start(ctx, func(files []string) {
		c.handleFileChange(ctx, files)
	}); err != nil {
		c.cleanup()
		return err
	}

	<-ctx.Done()
	c.cleanup()
	return ctx.Err()
}

func (c *Coordinator) cleanup() {
	if c.git != nil {
		if err := c.git.Stop(); err != nil {
			c.logger.Warn("git watcher stop failed", "error", err)
		}
	}
	if err := c.files.Stop(); err != nil {
		c.logger.Warn("file watcher stop failed", "error", err)
	}
}

// handleBranchSwitch holds file events while the registry is rebuilt for the
// new branch, so checkout churn collapses into the branch run.
func (c *Coordinator) handleBranchSwitch(ctx context.Context, oldBranch, newBranch string) {
	c.logger.Info("branch switch detected", "from", oldBranch, "to", newBranch)

	c.files.Pause()
	defer c.files.Resume()

	c.run(ctx, nil)
}

func (c *Coordinator) handleFileChange(ctx context.Context, files []string) {
	if len(files) == 0 {
		return
	}
	c.logger.Info("source change detected", "files", len(files))
	c.run(ctx, files)
}

func (c *Coordinator) run(ctx context.Context, files []string) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	res, err := c.detector.Detect(ctx, true)
	if err != nil {
		c.logger.Error("flow detection failed", "error", err)
		return
	}

	flows := len(res.Registry.Flows)
	c.logger.Info("flow registry refreshed", "flows", flows)
	if c.OnDetect != nil {
		c.OnDetect(files, flows)
	}
}
