package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mvp-joe/flowscope/internal/detect"
	"github.com/mvp-joe/flowscope/internal/git"
	"github.com/mvp-joe/flowscope/internal/report"
	"github.com/spf13/cobra"
)

var (
	impactStagedFlag bool
	impactRangeFlag  string
	impactDiffFlag   string
	impactJSONFlag   bool
	impactFailOnFlag string
)

// ErrImpactThreshold is returned when --fail-on is met, so CI can gate on it.
var ErrImpactThreshold = errors.New("impact threshold reached")

// impactCmd represents the impact command
var impactCmd = &cobra.Command{
	Use:   "impact [files...]",
	Short: "Analyze the impact of a change set on known flows",
	Long: `Impact matches changed files against every step of the flow registry and
reports the affected flows, the critical steps and an overall impact scope.

Changed files come from the arguments, or from git:
  (default)      uncommitted working tree changes
  --staged       changes staged for commit
  --range a..b   changes between two commits
  --diff FILE    a unified diff ("-" reads stdin)

A missing or stale registry is refreshed first.

Examples:
  flowscope impact services/orders.ts
  flowscope impact --staged
  flowscope impact --range main..HEAD --fail-on high
  git diff main | flowscope impact --diff -
`,
	RunE: runImpact,
}

func init() {
	rootCmd.AddCommand(impactCmd)
	impactCmd.Flags().BoolVar(&impactStagedFlag, "staged", false, "use staged changes")
	impactCmd.Flags().StringVar(&impactRangeFlag, "range", "", "use changes in a commit range (from..to)")
	impactCmd.Flags().StringVar(&impactDiffFlag, "diff", "", "read changes from a unified diff file, - for stdin")
	impactCmd.Flags().BoolVar(&impactJSONFlag, "json", false, "print the analysis as JSON")
	impactCmd.Flags().StringVar(&impactFailOnFlag, "fail-on", "", "exit non-zero at this scope or above (low, medium, high)")
}

// impactOptions are the resolved impact command inputs.
type impactOptions struct {
	files  []string
	source git.Source
	asJSON bool
	failOn detect.ImpactScope
}

func runImpact(cmd *cobra.Command, args []string) error {
	opts := impactOptions{
		files:  args,
		source: git.Source{Staged: impactStagedFlag, Range: impactRangeFlag},
		asJSON: impactJSONFlag,
		failOn: detect.ImpactScope(impactFailOnFlag),
	}

	if impactDiffFlag != "" {
		data, err := readDiff(cmd.InOrStdin(), impactDiffFlag)
		if err != nil {
			return err
		}
		opts.source.Diff = data
	}

	sys, _, err := newSystem(cmd)
	if err != nil {
		return err
	}
	return executeImpact(cmd.Context(), cmd.OutOrStdout(), sys, git.NewOperations(), opts)
}

func readDiff(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read diff: %w", err)
	}
	// An empty diff is still an explicit source
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func executeImpact(ctx context.Context, out io.Writer, sys *detect.System, ops git.Operations, opts impactOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.failOn != "" && rank(opts.failOn) < 0 {
		return fmt.Errorf("invalid --fail-on %q: expected low, medium or high", opts.failOn)
	}

	changed := opts.files
	if len(changed) == 0 {
		var err error
		changed, err = git.CollectChanges(ops, sys.RootDir(), opts.source)
		if err != nil {
			return fmt.Errorf("failed to list changes: %w", err)
		}
	} else if opts.source.Staged || opts.source.Range != "" || opts.source.Diff != nil {
		return errors.New("file arguments cannot be combined with --staged, --range or --diff")
	}

	if _, err := sys.DetectAllFlows(ctx, false); err != nil {
		return err
	}

	analysis, err := sys.AnalyzeChangeImpact(changed)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(analysis); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, report.GenerateAnalysisReport(analysis, report.WithRoot(sys.RootDir())))
	}

	if opts.failOn != "" && rank(analysis.ImpactScope) >= rank(opts.failOn) {
		return fmt.Errorf("%w: %s", ErrImpactThreshold, analysis.ImpactScope)
	}
	return nil
}

func rank(s detect.ImpactScope) int {
	switch s {
	case detect.ImpactLow:
		return 0
	case detect.ImpactMedium:
		return 1
	case detect.ImpactHigh:
		return 2
	default:
		return -1
	}
}
