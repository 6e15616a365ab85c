package flow

import (
	"errors"
	"fmt"
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

// Graph returns the call graph of a flow. Steps are vertices keyed by
// "file:function" (file relative via rel). Calls that leave the traced code
// become leaf vertices: "external:<callee>" for external calls and
// "opaque:<callee>" for unresolved ones.
func (f *Flow) Graph(rel func(string) string, c EdgeClassifier) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed())

	id := func(file, function string) string {
		return rel(file) + ":" + function
	}

	inFlow := make(map[Key]bool, len(f.Steps))
	for _, s := range f.Steps {
		inFlow[s.Key()] = true

		attrs := []func(*graph.VertexProperties){graph.VertexAttribute("shape", "box")}
		switch {
		case s.Key() == f.EntryKey():
			attrs = append(attrs, graph.VertexAttribute("style", "bold"))
		case s.MutatesData:
			attrs = append(attrs, graph.VertexAttribute("color", "red"))
		}
		if err := g.AddVertex(id(s.File, s.Function), attrs...); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, err
		}
	}

	for _, s := range f.Steps {
		from := id(s.File, s.Function)
		for _, e := range s.OutgoingEdges {
			var to string
			switch {
			case e.Resolved() && inFlow[Key{File: e.ResolvedFile, Function: e.Target()}]:
				to = id(e.ResolvedFile, e.Target())
			case c.IsExternalCallEdge(e):
				to = "external:" + e.CalleeName
			case !e.Resolved():
				to = "opaque:" + e.CalleeName
			default:
				// Internal call cut off by the depth bound
				continue
			}

			if err := g.AddVertex(to, graph.VertexAttribute("style", "dashed")); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, err
			}
			if err := g.AddEdge(from, to); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, fmt.Errorf("add edge %s -> %s: %w", from, to, err)
			}
		}
	}
	return g, nil
}

// WriteDOT renders the flow's call graph in Graphviz DOT format.
func (f *Flow) WriteDOT(w io.Writer, rel func(string) string, c EdgeClassifier) error {
	g, err := f.Graph(rel, c)
	if err != nil {
		return err
	}
	return draw.DOT(g, w, draw.GraphAttribute("rankdir", "LR"))
}
