// Package analyzer turns JavaScript and TypeScript source into per-function
// call-edge facts.
//
// All in-scope files are parsed once by New. After construction an Analyzer is
// read-only, so any number of flow traversals may query it concurrently.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/mvp-joe/flowscope/internal/classify"
	"github.com/mvp-joe/flowscope/internal/config"
	"github.com/mvp-joe/flowscope/internal/files"
	"golang.org/x/sync/errgroup"
)

// ErrConfiguration indicates that the analyzer cannot be initialized, most
// commonly because no module-resolution config exists.
var ErrConfiguration = errors.New("analyzer configuration error")

// Stats summarizes a parse run.
type Stats struct {
	Files  int
	Parsed int
	Failed int
	Edges  int
}

// Analyzer holds the parsed facts of one analysis run.
type Analyzer struct {
	discovery  *files.Discovery
	resolver   *resolver
	classifier *classify.Classifier

	logger      *slog.Logger
	progress    ProgressReporter
	concurrency int

	facts map[string]*FileFacts
	paths []string
	stats Stats
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithProgress sets the progress reporter.
func WithProgress(p ProgressReporter) Option {
	return func(a *Analyzer) { a.progress = p }
}

// WithConcurrency bounds the number of files parsed at once. Values < 1 mean GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) { a.concurrency = n }
}

// WithClassifier replaces the classifier built from the configuration.
func WithClassifier(c *classify.Classifier) Option {
	return func(a *Analyzer) { a.classifier = c }
}

// New loads module resolution and parses every source file found by d.
func New(ctx context.Context, d *files.Discovery, cfg *config.Config, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		discovery:   d,
		logger:      slog.Default(),
		progress:    NoOpProgressReporter{},
		concurrency: cfg.Flows.Concurrency,
		facts:       make(map[string]*FileFacts),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.concurrency < 1 {
		a.concurrency = runtime.GOMAXPROCS(0)
	}

	resolution, err := config.LoadResolution(d.RootDir(), &cfg.Resolve)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	a.resolver = newResolver(resolution)
	a.logger.Debug("module resolution loaded", "source", resolution.Source, "aliases", len(resolution.Aliases))

	if a.classifier == nil {
		c, err := classify.FromConfig(&cfg.Classify)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		a.classifier = c
	}

	if err := a.parseAll(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// parseAll extracts and resolves every source file in parallel.
// Unparseable files are logged and skipped.
func (a *Analyzer) parseAll(ctx context.Context) error {
	paths, err := a.discovery.SourceFiles()
	if err != nil {
		return fmt.Errorf("failed to discover source files: %w", err)
	}
	a.progress.OnParseStart(len(paths))

	results := make([]*FileFacts, len(paths))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			facts, err := extractFile(path)
			if err != nil {
				failed.Add(1)
				a.logger.Warn("failed to parse file", "file", a.discovery.Rel(path), "error", err)
			} else {
				a.resolveEdges(facts)
				results[i] = facts
			}
			a.progress.OnFileParsed(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, facts := range results {
		if facts != nil {
			a.facts[facts.Path] = facts
			a.paths = append(a.paths, facts.Path)
		}
	}

	a.stats = Stats{Files: len(paths), Parsed: len(a.paths), Failed: int(failed.Load())}
	for _, facts := range a.facts {
		for _, fn := range facts.Functions {
			a.stats.Edges += len(fn.Edges)
		}
	}
	a.progress.OnParseComplete(a.stats.Parsed, a.stats.Failed)
	a.logger.Debug("source analysis complete",
		"files", a.stats.Files, "parsed", a.stats.Parsed, "failed", a.stats.Failed, "edges", a.stats.Edges)
	return nil
}

// resolveEdges fills ResolvedFile on every edge of facts.
//
// A bare call resolves through an import binding of the callee, then to a
// function of the same file. A member call resolves through an import binding
// of its receiver when the receiver is a plain identifier; this.method()
// resolves to the same file.
func (a *Analyzer) resolveEdges(facts *FileFacts) {
	for _, fn := range facts.Functions {
		for i := range fn.Edges {
			e := &fn.Edges[i]
			e.ResolvedFile, e.TargetName = a.resolveEdge(facts, *e)
		}
	}
}

// resolveEdge returns the file defining the callee and, for a bare call
// through a renamed named import, the name it is exported under.
func (a *Analyzer) resolveEdge(facts *FileFacts, edge CallEdge) (string, string) {
	if edge.Receiver == "" {
		if target := a.resolveBinding(facts, edge.CalleeName); target != "" {
			var name string
			if imported := facts.Imports[edge.CalleeName].Imported; imported != edge.CalleeName {
				name = imported
			}
			return target, name
		}
		if _, local := facts.Functions[edge.CalleeName]; local {
			return facts.Path, ""
		}
		return "", ""
	}

	if edge.Receiver == "this" {
		if _, local := facts.Functions[edge.CalleeName]; local {
			return facts.Path, ""
		}
		return "", ""
	}

	if root := receiverRoot(edge.Receiver); root != "" {
		return a.resolveBinding(facts, root), ""
	}
	return "", ""
}

func (a *Analyzer) resolveBinding(facts *FileFacts, symbol string) string {
	binding, ok := facts.Imports[symbol]
	if !ok {
		return ""
	}
	return a.resolver.resolve(binding.Specifier, facts.Path)
}

// lookup returns the facts of file, extracting and resolving files outside
// the parsed set on demand without caching them.
func (a *Analyzer) lookup(file string) (*FileFacts, error) {
	path := a.Abs(file)
	if facts, ok := a.facts[path]; ok {
		return facts, nil
	}
	facts, err := extractFile(path)
	if err != nil {
		return nil, err
	}
	a.resolveEdges(facts)
	return facts, nil
}

// ExtractCallEdges returns, for every named function in file, the calls its
// body makes in source order.
func (a *Analyzer) ExtractCallEdges(file string) (map[string][]CallEdge, error) {
	facts, err := a.lookup(file)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]CallEdge, len(facts.Functions))
	for name, fn := range facts.Functions {
		out[name] = fn.Edges
	}
	return out, nil
}

// Function returns a named function of file, or false when the file cannot be
// parsed or defines no such function.
func (a *Analyzer) Function(file, name string) (*Function, bool) {
	facts, err := a.lookup(file)
	if err != nil {
		return nil, false
	}
	fn, ok := facts.Functions[name]
	return fn, ok
}

// FunctionNames returns the function names of file in definition order.
func (a *Analyzer) FunctionNames(file string) []string {
	facts, err := a.lookup(file)
	if err != nil {
		return nil
	}
	return facts.Order
}

// ResolveImportTarget returns the absolute path of the module that file
// imports symbolName from, or "" when there is no such binding or the module
// is outside the repository.
func (a *Analyzer) ResolveImportTarget(symbolName, file string) string {
	facts, err := a.lookup(file)
	if err != nil {
		return ""
	}
	return a.resolveBinding(facts, symbolName)
}

// IsAsyncCallEdge reports whether the call is awaited at its call site.
func (a *Analyzer) IsAsyncCallEdge(edge CallEdge) bool {
	return edge.IsAsync
}

// IsExternalCallEdge reports whether the callee, its receiver, or its
// resolved file matches the external rule table.
func (a *Analyzer) IsExternalCallEdge(edge CallEdge) bool {
	resolved := ""
	if edge.Resolved() {
		resolved = a.discovery.Rel(edge.ResolvedFile)
	}
	return a.classifier.IsExternal(edge.CalleeName, edge.Receiver, resolved)
}

// MutatesDataEdge reports whether the callee name matches the mutation rule
// table. A renamed import is also checked under its exported name, so
// import { createOrder as makeOrder } mutates like createOrder does.
func (a *Analyzer) MutatesDataEdge(edge CallEdge) bool {
	return a.classifier.MutatesData(edge.CalleeName) || a.classifier.MutatesData(edge.Target())
}

// Files returns the parsed files, sorted.
func (a *Analyzer) Files() []string {
	out := make([]string, len(a.paths))
	copy(out, a.paths)
	sort.Strings(out)
	return out
}

// Stats returns the parse statistics.
func (a *Analyzer) Stats() Stats {
	return a.stats
}

// Discovery returns the file enumeration the analyzer was built from.
func (a *Analyzer) Discovery() *files.Discovery {
	return a.discovery
}

// RootDir returns the absolute project root.
func (a *Analyzer) RootDir() string {
	return a.discovery.RootDir()
}

// Abs makes a path absolute against the project root.
func (a *Analyzer) Abs(path string) string {
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		if strings.HasPrefix(clean, a.discovery.RootDir()+string(filepath.Separator)) {
			return clean
		}
		return files.Canonical(clean)
	}
	return filepath.Join(a.discovery.RootDir(), filepath.FromSlash(path))
}

// Rel returns the slash-separated project-relative form of path.
func (a *Analyzer) Rel(path string) string {
	return a.discovery.Rel(path)
}
