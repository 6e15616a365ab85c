package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mvp-joe/flowscope/internal/config"
	"github.com/mvp-joe/flowscope/internal/files"
	"github.com/mvp-joe/flowscope/internal/git"
	"github.com/mvp-joe/flowscope/internal/watcher"
	"github.com/spf13/cobra"
)

var watchDebounceFlag time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the flow registry current while files change",
	Long: `Watch runs detection once, then re-detects all flows whenever source files
change or the git branch switches. Runs until interrupted.

Example:
  flowscope watch --debounce 2s
`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounceFlag, "debounce", watcher.DefaultDebounce, "quiet period before re-detecting")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys, cfg, err := newSystem(cmd)
	if err != nil {
		return err
	}
	logger := slog.Default()
	out := cmd.OutOrStdout()

	if err := executeDetect(ctx, out, sys, false, false); err != nil {
		return err
	}

	fd, err := files.NewDiscovery(sys.RootDir(), cfg.Paths.Code, cfg.Paths.Ignore)
	if err != nil {
		return err
	}
	fw, err := watcher.NewFileWatcher(sys.RootDir(), watchedExtensions(cfg),
		watcher.WithDebounce(watchDebounceFlag),
		watcher.WithIgnore(fd.ShouldIgnore),
		watcher.WithFileLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", sys.RootDir(), err)
	}

	var gw watcher.GitWatcher
	gitDir := filepath.Join(git.NewOperations().GetWorktreeRoot(sys.RootDir()), ".git")
	if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
		if gw, err = watcher.NewGitWatcher(gitDir, logger); err != nil {
			logger.Warn("branch switches will not be watched", "error", err)
			gw = nil
		}
	}

	coord := watcher.NewCoordinator(gw, fw, sys, logger)
	coord.OnDetect = func(changed []string, flows int) {
		fmt.Fprintf(out, "✓ %s: %s flows (%d changed files)\n",
			time.Now().Format("15:04:05"), formatNumber(flows), len(changed))
	}

	fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", sys.RootDir())
	if err := coord.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchedExtensions are the resolver extensions plus the TypeScript module
// variants the parser accepts.
func watchedExtensions(cfg *config.Config) []string {
	seen := map[string]bool{}
	var exts []string
	for _, ext := range append(append([]string{}, cfg.Resolve.Extensions...), ".mts", ".cts") {
		if !seen[ext] {
			seen[ext] = true
			exts = append(exts, ext)
		}
	}
	return exts
}
