package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mvp-joe/flowscope/internal/config"
	"github.com/mvp-joe/flowscope/internal/detect"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	rootDir string
	verbose bool
	quiet   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flowscope",
	Short: "Flowscope - execution flow and change impact analysis for JS/TS projects",
	Long: `Flowscope statically traces execution flows through JavaScript and TypeScript
projects, starting at API routes, background workers, services and utilities.

Detected flows are kept in a registry (.flowscope/flow-registry.json) that is
refreshed when it grows stale. The impact command matches a change set against
the registry and rates how risky the change is.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), verbose))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <root>/.flowscope/config.yml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", ".", "project root")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig loads the configuration for root, honoring --config.
func loadConfig(root string) (*config.Config, error) {
	loader := config.NewLoader(root)
	if cfgFile != "" {
		loader = config.NewFileLoader(root, cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newSystem builds the detection system for --root with CLI logging and
// progress reporting.
func newSystem(cmd *cobra.Command) (*detect.System, *config.Config, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, nil, err
	}

	sys, err := detect.NewSystem(root, cfg,
		detect.WithLogger(slog.Default()),
		detect.WithProgress(NewCLIProgressReporter(cmd.ErrOrStderr(), quiet)),
	)
	if err != nil {
		return nil, nil, err
	}
	return sys, cfg, nil
}
