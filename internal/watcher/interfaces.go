// Package watcher keeps the flow registry current while a project is being
// edited: source file changes and branch switches trigger re-detection.
package watcher

import (
	"context"

	"github.com/mvp-joe/flowscope/internal/detect"
)

// FileWatcher monitors source files for changes with debouncing and pause/resume support.
type FileWatcher interface {
	// Start begins watching the project tree, calling callback with debounced file changes.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the file watcher and cleans up resources.
	Stop() error

	// Pause stops firing callbacks but continues accumulating events.
	Pause()

	// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
	Resume()
}

// GitWatcher reports branch switches by watching .git/HEAD.
type GitWatcher interface {
	Start(ctx context.Context, callback func(oldBranch, newBranch string)) error
	Stop() error
}

// Detector recomputes the flow registry. *detect.System satisfies it.
type Detector interface {
	Detect(ctx context.Context, forceUpdate bool) (*detect.DetectResult, error)
}
