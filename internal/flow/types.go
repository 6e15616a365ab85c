package flow

import (
	"github.com/mvp-joe/flowscope/internal/analyzer"
)

// Kind records how a flow's entry point was found.
type Kind string

const (
	KindRoute   Kind = "route"   // HTTP handler in a route-convention file
	KindWorker  Kind = "worker"  // background-job handler
	KindService Kind = "service" // service-layer naming convention
	KindUtility Kind = "utility" // utility-layer naming convention
	KindManual  Kind = "manual"  // explicit BuildFlow call
)

// Key identifies a function within the repository.
type Key struct {
	File     string
	Function string
}

// EdgeClassifier classifies call edges.
type EdgeClassifier interface {
	IsExternalCallEdge(edge analyzer.CallEdge) bool
	MutatesDataEdge(edge analyzer.CallEdge) bool
}

// Step is one function of a processing flow with its classified outgoing calls.
// The flags are derived from the edges by NewStep and never change afterwards.
type Step struct {
	File           string              `json:"file"`
	Function       string              `json:"function"`
	Line           int                 `json:"line,omitempty"`
	OutgoingEdges  []analyzer.CallEdge `json:"outgoingEdges"`
	IsEndPoint     bool                `json:"isEndPoint"`
	IsExternalCall bool                `json:"isExternalCall"`
	MutatesData    bool                `json:"mutatesData"`
	OpaqueCalls    bool                `json:"opaqueCalls"` // some call is neither resolved nor external
}

// NewStep builds a step and computes its flags:
//
//	IsEndPoint     = no edges, or every edge is external
//	IsExternalCall = some edge is external
//	MutatesData    = some edge mutates data
//	OpaqueCalls    = some edge is unresolved and not external
func NewStep(file, function string, line int, edges []analyzer.CallEdge, c EdgeClassifier) Step {
	if edges == nil {
		edges = []analyzer.CallEdge{}
	}

	s := Step{
		File:          file,
		Function:      function,
		Line:          line,
		OutgoingEdges: edges,
		IsEndPoint:    true,
	}
	for _, e := range edges {
		external := c.IsExternalCallEdge(e)
		if external {
			s.IsExternalCall = true
		} else {
			s.IsEndPoint = false
			if !e.Resolved() {
				s.OpaqueCalls = true
			}
		}
		if c.MutatesDataEdge(e) {
			s.MutatesData = true
		}
	}
	return s
}

// Key returns the (file, function) identity of the step.
func (s Step) Key() Key {
	return Key{File: s.File, Function: s.Function}
}

// Flow is a processing flow: the steps reachable from one entry point in
// depth-first pre-order.
type Flow struct {
	FlowID    string `json:"flowId"`
	Kind      Kind   `json:"kind"`
	EntryStep Step   `json:"entryStep"`
	Steps     []Step `json:"steps"`
	EndSteps  []Step `json:"endSteps"`
}

// EntryKey returns the identity of the entry step.
func (f *Flow) EntryKey() Key {
	return f.EntryStep.Key()
}

// endSteps returns the subsequence of steps that are end points.
func endSteps(steps []Step) []Step {
	out := []Step{}
	for _, s := range steps {
		if s.IsEndPoint {
			out = append(out, s)
		}
	}
	return out
}
