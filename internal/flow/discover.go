package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mvp-joe/flowscope/internal/config"
	"github.com/mvp-joe/flowscope/internal/files"
	"golang.org/x/sync/errgroup"
)

// DiscoveryStats counts the outcome of one discovery category.
type DiscoveryStats struct {
	Kind       Kind `json:"kind"`
	Candidates int  `json:"candidates"`
	Built      int  `json:"built"`
	Skipped    int  `json:"skipped"`
}

// candidate is an entry point discovery will try to build.
type candidate struct {
	key  Key
	kind Kind
}

// fileLister is implemented by sources that already enumerated the project,
// such as *analyzer.Analyzer.
type fileLister interface {
	Files() []string
}

// Discoverer finds entry points by file and naming conventions and builds
// their flows.
type Discoverer struct {
	builder     *Builder
	files       *files.Discovery
	logger      *slog.Logger
	concurrency int

	listOnce sync.Once
	paths    []string
	listErr  error

	routeFiles   *files.Matcher
	routeMethods []string

	workerFiles *files.Matcher
	workerNames []*regexp.Regexp

	serviceFiles *files.Matcher
	serviceNames []*regexp.Regexp

	utilityFiles *files.Matcher
	utilityNames []*regexp.Regexp
}

// DiscovererOption configures a Discoverer.
type DiscovererOption func(*Discoverer)

// WithDiscoveryLogger sets the logger. Defaults to slog.Default().
func WithDiscoveryLogger(logger *slog.Logger) DiscovererOption {
	return func(d *Discoverer) { d.logger = logger }
}

// WithDiscoveryConcurrency bounds the number of flows built at once.
func WithDiscoveryConcurrency(n int) DiscovererOption {
	return func(d *Discoverer) { d.concurrency = n }
}

// NewDiscoverer compiles the conventions of cfg.
func NewDiscoverer(b *Builder, fd *files.Discovery, cfg *config.FlowsConfig, opts ...DiscovererOption) (*Discoverer, error) {
	d := &Discoverer{
		builder:      b,
		files:        fd,
		logger:       slog.Default(),
		concurrency:  cfg.Concurrency,
		routeMethods: cfg.RouteMethods,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.concurrency < 1 {
		d.concurrency = runtime.GOMAXPROCS(0)
	}

	var err error
	if d.routeFiles, err = files.NewMatcher(cfg.RoutePatterns); err != nil {
		return nil, fmt.Errorf("route patterns: %w", err)
	}
	if d.workerFiles, err = files.NewMatcher(cfg.WorkerPatterns); err != nil {
		return nil, fmt.Errorf("worker patterns: %w", err)
	}
	if d.serviceFiles, err = files.NewMatcher(cfg.ServicePatterns); err != nil {
		return nil, fmt.Errorf("service patterns: %w", err)
	}
	if d.utilityFiles, err = files.NewMatcher(cfg.UtilityPatterns); err != nil {
		return nil, fmt.Errorf("utility patterns: %w", err)
	}
	if d.workerNames, err = compileAll(cfg.WorkerFunctionPatterns); err != nil {
		return nil, fmt.Errorf("worker function patterns: %w", err)
	}
	if d.serviceNames, err = compileAll(cfg.ServiceFunctionPatterns); err != nil {
		return nil, fmt.Errorf("service function patterns: %w", err)
	}
	if d.utilityNames, err = compileAll(cfg.UtilityFunctionPatterns); err != nil {
		return nil, fmt.Errorf("utility function patterns: %w", err)
	}
	return d, nil
}

// IsRouteFile reports whether path follows the route-handler file convention.
func (d *Discoverer) IsRouteFile(path string) bool {
	return d.routeFiles.Match(d.files.Rel(path))
}

// DiscoverRouteFlows builds a flow for every HTTP-verb function exported from
// a route-convention file. Verbs a file does not define are skipped.
func (d *Discoverer) DiscoverRouteFlows(ctx context.Context) ([]*Flow, DiscoveryStats, error) {
	paths, err := d.matching(d.routeFiles)
	if err != nil {
		return nil, DiscoveryStats{Kind: KindRoute}, err
	}

	var cands []candidate
	for _, path := range paths {
		for _, method := range d.routeMethods {
			cands = append(cands, candidate{key: Key{File: path, Function: method}, kind: KindRoute})
		}
	}
	return d.buildAll(ctx, KindRoute, cands)
}

// DiscoverWorkerFlows builds a flow for every process/handle/execute-style
// function in a worker-convention file.
func (d *Discoverer) DiscoverWorkerFlows(ctx context.Context) ([]*Flow, DiscoveryStats, error) {
	cands, err := d.namedCandidates(d.workerFiles, d.workerNames, KindWorker)
	if err != nil {
		return nil, DiscoveryStats{Kind: KindWorker}, err
	}
	return d.buildAll(ctx, KindWorker, cands)
}

// DiscoverNamedEntryPoints builds flows for service-layer and utility-layer
// functions matching the naming conventions. A function qualifying as both
// is built once, as a service.
func (d *Discoverer) DiscoverNamedEntryPoints(ctx context.Context) ([]*Flow, []DiscoveryStats, error) {
	services, err := d.namedCandidates(d.serviceFiles, d.serviceNames, KindService)
	if err != nil {
		return nil, nil, err
	}
	utilities, err := d.namedCandidates(d.utilityFiles, d.utilityNames, KindUtility)
	if err != nil {
		return nil, nil, err
	}
	utilities = without(utilities, services)

	serviceFlows, serviceStats, err := d.buildAll(ctx, KindService, services)
	if err != nil {
		return nil, nil, err
	}
	utilityFlows, utilityStats, err := d.buildAll(ctx, KindUtility, utilities)
	if err != nil {
		return nil, nil, err
	}
	return sortFlows(append(serviceFlows, utilityFlows...)), []DiscoveryStats{serviceStats, utilityStats}, nil
}

// DiscoverAll runs every category and returns the union, sorted by entry file
// then function. An entry point found by several categories is kept once,
// by the first category in route, worker, service, utility order.
func (d *Discoverer) DiscoverAll(ctx context.Context) ([]*Flow, []DiscoveryStats, error) {
	routes, routeStats, err := d.DiscoverRouteFlows(ctx)
	if err != nil {
		return nil, nil, err
	}
	workers, workerStats, err := d.DiscoverWorkerFlows(ctx)
	if err != nil {
		return nil, nil, err
	}
	named, namedStats, err := d.DiscoverNamedEntryPoints(ctx)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[Key]bool)
	var all []*Flow
	for _, group := range [][]*Flow{routes, workers, named} {
		for _, f := range group {
			if seen[f.EntryKey()] {
				continue
			}
			seen[f.EntryKey()] = true
			all = append(all, f)
		}
	}

	stats := append([]DiscoveryStats{routeStats, workerStats}, namedStats...)
	return sortFlows(all), stats, nil
}

// namedCandidates lists the functions of matching files whose names match
// any of the patterns.
func (d *Discoverer) namedCandidates(m *files.Matcher, names []*regexp.Regexp, kind Kind) ([]candidate, error) {
	if m.Empty() || len(names) == 0 {
		return nil, nil
	}
	paths, err := d.matching(m)
	if err != nil {
		return nil, err
	}

	var cands []candidate
	for _, path := range paths {
		for _, name := range d.builder.source.FunctionNames(path) {
			if matchAny(names, name) {
				cands = append(cands, candidate{key: Key{File: path, Function: name}, kind: kind})
			}
		}
	}
	return cands, nil
}

// matching returns the project source files matched by m. The tree is
// enumerated at most once per Discoverer, and not at all when the builder's
// source already holds the file list.
func (d *Discoverer) matching(m *files.Matcher) ([]string, error) {
	d.listOnce.Do(func() {
		if l, ok := d.builder.source.(fileLister); ok {
			d.paths = l.Files()
			return
		}
		d.paths, d.listErr = d.files.SourceFiles()
	})
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.files.Filter(d.paths, m), nil
}

// buildAll builds every candidate in parallel. Candidates that fail are
// counted and skipped; only cancellation aborts the batch.
func (d *Discoverer) buildAll(ctx context.Context, kind Kind, cands []candidate) ([]*Flow, DiscoveryStats, error) {
	stats := DiscoveryStats{Kind: kind, Candidates: len(cands)}
	results := make([]*Flow, len(cands))
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, c := range cands {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := d.builder.build(c.key.File, c.key.Function, c.kind)
			if err != nil {
				skipped.Add(1)
				if !errors.Is(err, ErrEntryPointNotFound) {
					d.logger.Warn("failed to build flow", "kind", kind, "error", err)
				}
				return nil
			}
			results[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	flows := make([]*Flow, 0, len(results))
	for _, f := range results {
		if f != nil {
			flows = append(flows, f)
		}
	}
	stats.Built = len(flows)
	stats.Skipped = int(skipped.Load())

	d.logger.Debug("discovery complete",
		"kind", kind, "candidates", stats.Candidates, "built", stats.Built, "skipped", stats.Skipped)
	return sortFlows(flows), stats, nil
}

func sortFlows(flows []*Flow) []*Flow {
	sort.SliceStable(flows, func(i, j int) bool {
		a, b := flows[i].EntryStep, flows[j].EntryStep
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Function < b.Function
	})
	return flows
}

func without(cands, exclude []candidate) []candidate {
	skip := make(map[Key]bool, len(exclude))
	for _, c := range exclude {
		skip[c.key] = true
	}
	out := cands[:0:0]
	for _, c := range cands {
		if !skip[c.key] {
			out = append(out, c)
		}
	}
	return out
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(patterns []*regexp.Regexp, name string) bool {
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
