package detect

import (
	"path/filepath"
	"strings"

	"github.com/mvp-joe/flowscope/internal/files"
	"github.com/mvp-joe/flowscope/internal/flow"
)

// ImpactScope is the coarse risk of a change set.
type ImpactScope string

const (
	ImpactLow    ImpactScope = "low"
	ImpactMedium ImpactScope = "medium"
	ImpactHigh   ImpactScope = "high"
)

// ChangeImpactAnalysis describes which flows and steps a change set touches.
type ChangeImpactAnalysis struct {
	ChangedFiles  []string     `json:"changedFiles"`
	AffectedFlows []*flow.Flow `json:"affectedFlows"`
	CriticalSteps []flow.Step  `json:"criticalSteps"`
	ImpactScope   ImpactScope  `json:"impactScope"`
}

// AnalyzeChangeImpact matches changedFiles against every step of the
// persisted registry. Relative paths are taken from the project root.
// A stale registry is used as is.
func (s *System) AnalyzeChangeImpact(changedFiles []string) (*ChangeImpactAnalysis, error) {
	reg := s.load()
	if reg == nil {
		return nil, ErrRegistryUnavailable
	}

	changed := s.normalize(changedFiles)
	set := make(map[string]bool, len(changed))
	for _, f := range changed {
		set[f] = true
	}

	analysis := &ChangeImpactAnalysis{
		ChangedFiles:  changed,
		AffectedFlows: []*flow.Flow{},
		CriticalSteps: []flow.Step{},
	}
	seen := make(map[flow.Key]bool)
	for _, f := range reg.Flows {
		affected := false
		for _, step := range f.Steps {
			if !set[step.File] {
				continue
			}
			affected = true
			if !seen[step.Key()] {
				seen[step.Key()] = true
				analysis.CriticalSteps = append(analysis.CriticalSteps, step)
			}
		}
		if affected {
			analysis.AffectedFlows = append(analysis.AffectedFlows, f)
		}
	}

	analysis.ImpactScope = s.EvaluateImpactScope(analysis.AffectedFlows, analysis.CriticalSteps)
	s.logger.Debug("change impact analyzed",
		"changed", len(changed), "affected", len(analysis.AffectedFlows), "scope", analysis.ImpactScope)
	return analysis, nil
}

// EvaluateImpactScope scores a change:
//
//	High   a route flow is affected and a critical step mutates data or calls out
//	Medium a route flow is affected, or a critical step mutates data or calls out
//	Low    otherwise
func (s *System) EvaluateImpactScope(affectedFlows []*flow.Flow, criticalSteps []flow.Step) ImpactScope {
	route := false
	for _, f := range affectedFlows {
		if s.IsRouteFile(f.EntryStep.File) {
			route = true
			break
		}
	}

	effectful := false
	for _, step := range criticalSteps {
		if step.MutatesData || step.IsExternalCall {
			effectful = true
			break
		}
	}

	switch {
	case route && effectful:
		return ImpactHigh
	case route || effectful:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// IsRouteFile reports whether path follows the route-handler file convention.
func (s *System) IsRouteFile(path string) bool {
	return s.routeFiles.Match(s.files.Rel(path))
}

// Rel returns the project-relative form of path.
func (s *System) Rel(path string) string {
	return s.files.Rel(path)
}

// normalize makes paths absolute and drops duplicates, keeping order.
func (s *System) normalize(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs := filepath.Clean(p)
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(s.rootDir, abs)
		} else if !within(s.rootDir, abs) {
			abs = files.Canonical(abs)
		}
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	}
	return out
}

func within(root, path string) bool {
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
