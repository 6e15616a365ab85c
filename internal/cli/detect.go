package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mvp-joe/flowscope/internal/detect"
	"github.com/spf13/cobra"
)

var (
	detectForceFlag bool
	detectJSONFlag  bool
)

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect all execution flows and update the flow registry",
	Long: `Detect parses the project, discovers entry points by convention and traces
the flow of each one. The result is persisted to the flow registry.

When the registry is younger than the staleness window (7 days by default) it
is reused as is unless --force is given.

Examples:
  # Refresh the registry if it is missing or stale
  flowscope detect

  # Always re-analyze
  flowscope detect --force

  # Print the registry as JSON
  flowscope detect --json
`,
	Args: cobra.NoArgs,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().BoolVarP(&detectForceFlag, "force", "f", false, "re-analyze even when the registry is fresh")
	detectCmd.Flags().BoolVar(&detectJSONFlag, "json", false, "print the registry as JSON")
}

func runDetect(cmd *cobra.Command, args []string) error {
	sys, _, err := newSystem(cmd)
	if err != nil {
		return err
	}
	return executeDetect(cmd.Context(), cmd.OutOrStdout(), sys, detectForceFlag, detectJSONFlag)
}

func executeDetect(ctx context.Context, out io.Writer, sys *detect.System, force, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := sys.Detect(ctx, force)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Registry)
	}

	if res.Refreshed {
		fmt.Fprintf(out, "✓ Detected %s flows (previous registry: %s)\n", formatNumber(len(res.Registry.Flows)), res.Previous)
		for _, st := range res.Stats {
			fmt.Fprintf(out, "  %-8s %s built, %s skipped of %s candidates\n",
				st.Kind, formatNumber(st.Built), formatNumber(st.Skipped), formatNumber(st.Candidates))
		}
	} else {
		fmt.Fprintf(out, "✓ Flow registry is fresh: %s flows, updated %s\n",
			formatNumber(len(res.Registry.Flows)), res.Registry.LastUpdated.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(out, "Registry: %s\n", sys.Rel(sys.RegistryPath()))
	return nil
}
