package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/mvp-joe/flowscope/internal/git"
	"github.com/mvp-joe/flowscope/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for flow detection and impact analysis",
	Long: `Start the Model Context Protocol (MCP) server that lets coding assistants
query the execution flows of the project.

Tools:
- flowscope_detect   detect flows and read the registry
- flowscope_impact   rate the impact of a change set
- flowscope_trace    trace one entry point (JSON or DOT)

The server communicates via stdio; logs go to stderr.

Example:
  flowscope mcp --root ./my-app`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout belongs to the protocol
	quiet = true

	sys, _, err := newSystem(cmd)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "Flowscope MCP Server\n")
	fmt.Fprintf(stderr, "Project Root: %s\n", sys.RootDir())
	fmt.Fprintf(stderr, "Registry:     %s\n\n", sys.RegistryPath())

	server, err := mcp.NewServer(sys, git.NewOperations(), serverLogger(stderr))
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if err := server.Serve(cmd.Context()); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

func serverLogger(w io.Writer) *slog.Logger {
	return newLogger(w, verbose).With("component", "mcp")
}
