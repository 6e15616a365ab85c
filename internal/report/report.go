// Package report renders change impact analyses as plain text.
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mvp-joe/flowscope/internal/detect"
	"github.com/mvp-joe/flowscope/internal/flow"
)

const rule = "=================================================="

var recommendations = map[detect.ImpactScope]string{
	detect.ImpactHigh:   "Run the full integration test suite before merging.",
	detect.ImpactMedium: "Run the tests related to the affected flows.",
	detect.ImpactLow:    "Basic tests are sufficient.",
}

type options struct {
	root string
}

// Option configures report rendering.
type Option func(*options)

// WithRoot prints paths relative to root.
func WithRoot(root string) Option {
	return func(o *options) { o.root = root }
}

// GenerateAnalysisReport renders analysis. The output depends only on the
// analysis and options.
func GenerateAnalysisReport(analysis *detect.ChangeImpactAnalysis, opts ...Option) string {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var b strings.Builder
	b.WriteString("Change Impact Analysis Report\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Impact scope: %s\n", strings.ToUpper(string(analysis.ImpactScope)))
	fmt.Fprintf(&b, "Changed files: %d\n", len(analysis.ChangedFiles))
	fmt.Fprintf(&b, "Affected flows: %d\n", len(analysis.AffectedFlows))
	fmt.Fprintf(&b, "Critical steps: %d\n", len(analysis.CriticalSteps))

	b.WriteString("\nChanged files:\n")
	for _, f := range analysis.ChangedFiles {
		fmt.Fprintf(&b, "  - %s\n", o.path(f))
	}
	none(&b, len(analysis.ChangedFiles))

	b.WriteString("\nAffected flows:\n")
	for _, f := range analysis.AffectedFlows {
		fmt.Fprintf(&b, "  - %s:%s (%d steps)\n", o.path(f.EntryStep.File), f.EntryStep.Function, len(f.Steps))
	}
	none(&b, len(analysis.AffectedFlows))

	b.WriteString("\nCritical steps:\n")
	for _, s := range analysis.CriticalSteps {
		fmt.Fprintf(&b, "  - %s:%s", o.path(s.File), s.Function)
		if t := tags(s); len(t) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(t, ", "))
		}
		b.WriteString("\n")
	}
	none(&b, len(analysis.CriticalSteps))

	fmt.Fprintf(&b, "\nRecommendation: %s\n", recommendations[analysis.ImpactScope])
	return b.String()
}

// tags lists the classifications of a step in a fixed order.
func tags(s flow.Step) []string {
	var out []string
	if s.MutatesData {
		out = append(out, "mutates-data")
	}
	if s.IsExternalCall {
		out = append(out, "external-call")
	}
	if s.IsEndPoint {
		out = append(out, "end-point")
	}
	return out
}

func none(b *strings.Builder, n int) {
	if n == 0 {
		b.WriteString("  (none)\n")
	}
}

func (o *options) path(p string) string {
	if o.root == "" {
		return p
	}
	rel, err := filepath.Rel(o.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return filepath.ToSlash(rel)
}
