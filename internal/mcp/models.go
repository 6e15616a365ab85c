package mcp

import (
	"context"
	"time"

	"github.com/mvp-joe/flowscope/internal/analyzer"
	"github.com/mvp-joe/flowscope/internal/detect"
	"github.com/mvp-joe/flowscope/internal/flow"
)

// FlowService is the detection surface the tools need. *detect.System
// satisfies it.
type FlowService interface {
	RootDir() string
	Rel(path string) string
	Detect(ctx context.Context, forceUpdate bool) (*detect.DetectResult, error)
	AnalyzeChangeImpact(changedFiles []string) (*detect.ChangeImpactAnalysis, error)
	TraceFlow(ctx context.Context, entryFile, entryFunction string) (*flow.Flow, *analyzer.Analyzer, error)
}

// DetectRequest is the flowscope_detect input.
type DetectRequest struct {
	Force bool `json:"force"`
	Limit int  `json:"limit"`
}

// ImpactRequest is the flowscope_impact input.
type ImpactRequest struct {
	Files   []string `json:"files"`
	Staged  bool     `json:"staged"`
	Range   string   `json:"range"`
	Refresh *bool    `json:"refresh"` // nil means true
}

// TraceRequest is the flowscope_trace input.
type TraceRequest struct {
	File     string `json:"file"`
	Function string `json:"function"`
	Format   string `json:"format"`
}

// FlowSummary is the compact listing of one registry flow.
type FlowSummary struct {
	FlowID   string    `json:"flowId"`
	Kind     flow.Kind `json:"kind"`
	File     string    `json:"file"`
	Function string    `json:"function"`
	Steps    int       `json:"steps"`
	EndSteps int       `json:"endSteps"`
}

// DetectResponse is the flowscope_detect result.
type DetectResponse struct {
	Refreshed   bool                  `json:"refreshed"`
	LastUpdated time.Time             `json:"lastUpdated"`
	Total       int                   `json:"total"`
	Flows       []FlowSummary         `json:"flows"`
	Stats       []flow.DiscoveryStats `json:"stats,omitempty"`
}

// ImpactResponse is the flowscope_impact result.
type ImpactResponse struct {
	Analysis *detect.ChangeImpactAnalysis `json:"analysis"`
	Report   string                       `json:"report"`
}

// TraceResponse is the flowscope_trace result. Exactly one of Flow and DOT
// is set, depending on the requested format.
type TraceResponse struct {
	Flow *flow.Flow `json:"flow,omitempty"`
	DOT  string     `json:"dot,omitempty"`
}

func summarize(svc FlowService, flows []*flow.Flow, limit int) []FlowSummary {
	if limit > len(flows) {
		limit = len(flows)
	}
	out := make([]FlowSummary, 0, limit)
	for _, f := range flows[:limit] {
		out = append(out, FlowSummary{
			FlowID:   f.FlowID,
			Kind:     f.Kind,
			File:     svc.Rel(f.EntryStep.File),
			Function: f.EntryStep.Function,
			Steps:    len(f.Steps),
			EndSteps: len(f.EndSteps),
		})
	}
	return out
}
