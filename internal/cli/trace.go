package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mvp-joe/flowscope/internal/detect"
	"github.com/mvp-joe/flowscope/internal/flow"
	"github.com/spf13/cobra"
)

var (
	traceJSONFlag   bool
	graphOutputFlag string
)

// traceCmd represents the trace command
var traceCmd = &cobra.Command{
	Use:   "trace <file> <function>",
	Short: "Trace the execution flow starting at one function",
	Long: `Trace follows every resolvable call from the entry function, depth first,
and prints each step with its classification.

Examples:
  flowscope trace app/api/orders/route.ts POST
  flowscope trace services/orders.ts create --json
`,
	Args: cobra.ExactArgs(2),
	RunE: runTrace,
}

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <file> <function>",
	Short: "Render the execution flow of one function as a Graphviz DOT graph",
	Long: `Graph traces like the trace command and writes the call graph in DOT format.
Calls that leave the project appear as dashed external: or opaque: vertices.

Example:
  flowscope graph app/api/orders/route.ts POST | dot -Tsvg > orders.svg
`,
	Args: cobra.ExactArgs(2),
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(graphCmd)
	traceCmd.Flags().BoolVar(&traceJSONFlag, "json", false, "print the flow as JSON")
	graphCmd.Flags().StringVarP(&graphOutputFlag, "output", "o", "", "write the graph to a file instead of stdout")
}

func runTrace(cmd *cobra.Command, args []string) error {
	sys, _, err := newSystem(cmd)
	if err != nil {
		return err
	}
	return executeTrace(cmd.Context(), cmd.OutOrStdout(), sys, args[0], args[1], traceJSONFlag)
}

func executeTrace(ctx context.Context, out io.Writer, sys *detect.System, file, function string, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f, _, err := sys.TraceFlow(ctx, file, function)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}

	fmt.Fprintf(out, "Flow %s (%d steps, %d end steps)\n", f.FlowID, len(f.Steps), len(f.EndSteps))
	for i, s := range f.Steps {
		fmt.Fprintf(out, "%3d. %s:%s", i+1, sys.Rel(s.File), s.Function)
		if s.Line > 0 {
			fmt.Fprintf(out, " (line %d)", s.Line)
		}
		if t := stepTags(s); len(t) > 0 {
			fmt.Fprintf(out, " [%s]", strings.Join(t, ", "))
		}
		fmt.Fprintln(out)

		for _, e := range s.OutgoingEdges {
			target := "unresolved"
			if e.Resolved() {
				target = sys.Rel(e.ResolvedFile)
			}
			callee := e.CalleeName
			if e.Receiver != "" {
				callee = e.Receiver + "." + callee
			}
			if e.TargetName != "" {
				callee += " as " + e.TargetName
			}
			async := ""
			if e.IsAsync {
				async = "await "
			}
			fmt.Fprintf(out, "       -> %s%s (%s)\n", async, callee, target)
		}
	}
	return nil
}

func stepTags(s flow.Step) []string {
	var tags []string
	if s.MutatesData {
		tags = append(tags, "mutates-data")
	}
	if s.IsExternalCall {
		tags = append(tags, "external-call")
	}
	if s.OpaqueCalls {
		tags = append(tags, "opaque-calls")
	}
	if s.IsEndPoint {
		tags = append(tags, "end-point")
	}
	return tags
}

func runGraph(cmd *cobra.Command, args []string) error {
	sys, _, err := newSystem(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if graphOutputFlag != "" {
		file, err := os.Create(graphOutputFlag)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", graphOutputFlag, err)
		}
		defer file.Close()
		out = file
	}
	return executeGraph(cmd.Context(), out, sys, args[0], args[1])
}

func executeGraph(ctx context.Context, out io.Writer, sys *detect.System, file, function string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f, a, err := sys.TraceFlow(ctx, file, function)
	if err != nil {
		return err
	}
	return f.WriteDOT(out, sys.Rel, a)
}
