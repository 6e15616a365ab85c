// Package flow builds processing flows: bounded, cycle-safe depth-first
// traversals of the call graph produced by the analyzer.
package flow

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mvp-joe/flowscope/internal/analyzer"
	"github.com/mvp-joe/flowscope/internal/config"
)

// ErrEntryPointNotFound indicates that no call-edge map exists for the
// requested (file, function) entry point.
var ErrEntryPointNotFound = errors.New("entry point not found")

// Source provides the call-edge facts a traversal reads. It must be safe for
// concurrent reads.
type Source interface {
	EdgeClassifier
	Function(file, name string) (*analyzer.Function, bool)
	FunctionNames(file string) []string
	Abs(path string) string
	Rel(path string) string
}

// Builder builds flows from a Source.
type Builder struct {
	source   Source
	maxDepth int
	now      func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithMaxDepth bounds the number of steps along one call chain. Values below
// one are raised to one so the entry step is always built.
func WithMaxDepth(depth int) BuilderOption {
	return func(b *Builder) { b.maxDepth = depth }
}

// WithClock sets the time source used for flow ids.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a builder over source.
func NewBuilder(source Source, opts ...BuilderOption) *Builder {
	b := &Builder{
		source:   source,
		maxDepth: config.DefaultMaxDepth,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxDepth < 1 {
		b.maxDepth = 1
	}
	return b
}

// Source returns the facts the builder reads.
func (b *Builder) Source() Source {
	return b.source
}

// BuildFlow traces the flow starting at entryFunction in entryFile.
// Relative paths are taken from the project root.
func (b *Builder) BuildFlow(entryFile, entryFunction string) (*Flow, error) {
	return b.build(entryFile, entryFunction, KindManual)
}

// traversal is the state of one BuildFlow call. It is never shared.
type traversal struct {
	visited map[Key]bool
	steps   []Step
}

func (b *Builder) build(entryFile, entryFunction string, kind Kind) (*Flow, error) {
	file := b.source.Abs(entryFile)
	if _, ok := b.source.Function(file, entryFunction); !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrEntryPointNotFound, b.source.Rel(file), entryFunction)
	}

	t := &traversal{visited: make(map[Key]bool)}
	b.visit(t, file, entryFunction, 0)

	return &Flow{
		FlowID:    b.flowID(file, entryFunction),
		Kind:      kind,
		EntryStep: t.steps[0],
		Steps:     t.steps,
		EndSteps:  endSteps(t.steps),
	}, nil
}

// visit appends the step for (file, function) and recurses into its
// resolved, non-external calls. The visited set stops cycles and the depth
// bound stops runaway chains.
func (b *Builder) visit(t *traversal, file, function string, depth int) {
	key := Key{File: file, Function: function}
	if t.visited[key] || depth >= b.maxDepth {
		return
	}
	t.visited[key] = true

	var (
		edges []analyzer.CallEdge
		line  int
	)
	if fn, ok := b.source.Function(file, function); ok {
		edges = fn.Edges
		line = fn.Line
	}
	t.steps = append(t.steps, NewStep(file, function, line, edges, b.source))

	for _, e := range edges {
		if !e.Resolved() || b.source.IsExternalCallEdge(e) {
			continue
		}
		b.visit(t, e.ResolvedFile, e.Target(), depth+1)
	}
}

// flowID is unique per entry file, entry function and build time.
func (b *Builder) flowID(file, function string) string {
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return fmt.Sprintf("%s_%s_%d_%s", base, function, b.now().UnixMilli(), uuid.NewString()[:8])
}
