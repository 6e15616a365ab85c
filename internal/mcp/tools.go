package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mvp-joe/flowscope/internal/detect"
	"github.com/mvp-joe/flowscope/internal/flow"
	"github.com/mvp-joe/flowscope/internal/git"
	mcputils "github.com/mvp-joe/flowscope/internal/mcp-utils"
	"github.com/mvp-joe/flowscope/internal/report"
)

const (
	defaultFlowLimit = 200
	maxFlowLimit     = 5000
)

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// AddDetectTool registers the flowscope_detect tool.
func AddDetectTool(s *server.MCPServer, svc FlowService) {
	tool := mcp.NewTool(
		"flowscope_detect",
		mcp.WithDescription("Detect the execution flows of the project (routes, workers, services, utilities). Returns the persisted flow registry when it is younger than the staleness window, otherwise re-analyzes the project and persists a new registry."),
		mcp.WithBoolean("force",
			mcp.Description("Re-analyze even when the registry is fresh (default: false)")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of flows to list (default: 200)")),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createDetectHandler(svc))
}

func createDetectHandler(svc FlowService) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args DetectRequest
		if err := mcputils.CoerceBindArguments(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		limit := defaultFlowLimit
		if args.Limit != 0 {
			limit = clamp(args.Limit, 1, maxFlowLimit)
		}

		res, err := svc.Detect(ctx, args.Force)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("flow detection failed: %v", err)), nil
		}

		return marshalToolResponse(&DetectResponse{
			Refreshed:   res.Refreshed,
			LastUpdated: res.Registry.LastUpdated,
			Total:       len(res.Registry.Flows),
			Flows:       summarize(svc, res.Registry.Flows, limit),
			Stats:       res.Stats,
		})
	}
}

// AddImpactTool registers the flowscope_impact tool.
func AddImpactTool(s *server.MCPServer, svc FlowService, ops git.Operations) {
	tool := mcp.NewTool(
		"flowscope_impact",
		mcp.WithDescription("Analyze which execution flows a change set touches and rate the impact (low, medium, high). Changes come from an explicit file list, the staged index, a commit range, or by default the uncommitted working tree."),
		mcp.WithArray("files",
			mcp.Description("Changed files, relative to the project root or absolute"),
			mcp.WithStringItems()),
		mcp.WithBoolean("staged",
			mcp.Description("Use the changes staged for commit")),
		mcp.WithString("range",
			mcp.Description("Commit range 'from..to', e.g. 'main..HEAD'")),
		mcp.WithBoolean("refresh",
			mcp.Description("Re-detect flows first when the registry is missing or stale (default: true)")),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createImpactHandler(svc, ops))
}

func createImpactHandler(svc FlowService, ops git.Operations) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ImpactRequest
		if err := mcputils.CoerceBindArguments(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		changed := args.Files
		if changed == nil {
			var err error
			changed, err = git.CollectChanges(ops, svc.RootDir(), git.Source{Staged: args.Staged, Range: args.Range})
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to list changes: %v", err)), nil
			}
		} else if args.Staged || args.Range != "" {
			return mcp.NewToolResultError("files cannot be combined with staged or range"), nil
		}

		if args.Refresh == nil || *args.Refresh {
			if _, err := svc.Detect(ctx, false); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("flow detection failed: %v", err)), nil
			}
		}

		analysis, err := svc.AnalyzeChangeImpact(changed)
		if errors.Is(err, detect.ErrRegistryUnavailable) {
			return mcp.NewToolResultError("no flow registry; call flowscope_detect first"), nil
		}
		if err != nil {
			return nil, fmt.Errorf("impact analysis failed: %w", err)
		}

		return marshalToolResponse(&ImpactResponse{
			Analysis: analysis,
			Report:   report.GenerateAnalysisReport(analysis, report.WithRoot(svc.RootDir())),
		})
	}
}

// AddTraceTool registers the flowscope_trace tool.
func AddTraceTool(s *server.MCPServer, svc FlowService) {
	tool := mcp.NewTool(
		"flowscope_trace",
		mcp.WithDescription("Trace the execution flow starting at one function: every reachable step with its outgoing calls and whether it mutates data, calls external systems, or ends the flow."),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("Entry file, relative to the project root or absolute")),
		mcp.WithString("function",
			mcp.Required(),
			mcp.Description("Entry function name, e.g. 'GET' or a class method name such as 'create'")),
		mcp.WithString("format",
			mcp.Description("'json' (default) or 'dot' for a Graphviz graph"),
			mcp.Enum("json", "dot")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createTraceHandler(svc))
}

func createTraceHandler(svc FlowService) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args TraceRequest
		if err := mcputils.CoerceBindArguments(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if args.File == "" {
			return mcp.NewToolResultError("file parameter is required"), nil
		}
		if args.Function == "" {
			return mcp.NewToolResultError("function parameter is required"), nil
		}

		f, a, err := svc.TraceFlow(ctx, args.File, args.Function)
		if errors.Is(err, flow.ErrEntryPointNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no function %s in %s", args.Function, args.File)), nil
		}
		if err != nil {
			return nil, fmt.Errorf("trace failed: %w", err)
		}

		switch strings.ToLower(args.Format) {
		case "", "json":
			return marshalToolResponse(&TraceResponse{Flow: f})
		case "dot":
			var b strings.Builder
			if err := f.WriteDOT(&b, svc.Rel, a); err != nil {
				return nil, fmt.Errorf("failed to render graph: %w", err)
			}
			return marshalToolResponse(&TraceResponse{DOT: b.String()})
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", args.Format)), nil
		}
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
