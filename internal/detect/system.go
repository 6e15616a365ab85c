// Package detect orchestrates repository-wide flow discovery, keeps the flow
// registry fresh, and scores the impact of changed files on known flows.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mvp-joe/flowscope/internal/analyzer"
	"github.com/mvp-joe/flowscope/internal/config"
	"github.com/mvp-joe/flowscope/internal/files"
	"github.com/mvp-joe/flowscope/internal/flow"
	"github.com/mvp-joe/flowscope/internal/registry"
)

// ErrRegistryUnavailable indicates that impact analysis was requested before
// any registry was persisted.
var ErrRegistryUnavailable = errors.New("flow registry unavailable; run detection first")

// System ties the analyzer, flow discovery and the registry together for one
// project root.
//
// Detection runs must be serialized per registry path; System does not lock
// the registry file.
type System struct {
	rootDir    string
	cfg        *config.Config
	files      *files.Discovery
	storage    registry.Storage
	routeFiles *files.Matcher

	now      func() time.Time
	logger   *slog.Logger
	progress analyzer.ProgressReporter
}

// Option configures a System.
type Option func(*System)

// WithClock sets the time source for timestamps and staleness checks.
func WithClock(now func() time.Time) Option {
	return func(s *System) { s.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *System) { s.logger = logger }
}

// WithProgress sets the parse progress reporter.
func WithProgress(p analyzer.ProgressReporter) Option {
	return func(s *System) { s.progress = p }
}

// WithStorage replaces the registry storage.
func WithStorage(st registry.Storage) Option {
	return func(s *System) { s.storage = st }
}

// NewSystem creates a detection system for rootDir.
func NewSystem(rootDir string, cfg *config.Config, opts ...Option) (*System, error) {
	fd, err := files.NewDiscovery(rootDir, cfg.Paths.Code, cfg.Paths.Ignore)
	if err != nil {
		return nil, fmt.Errorf("invalid path patterns: %w", err)
	}
	routeFiles, err := files.NewMatcher(cfg.Flows.RoutePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid route patterns: %w", err)
	}

	registryPath := cfg.Flows.RegistryPath
	if !filepath.IsAbs(registryPath) {
		registryPath = filepath.Join(fd.RootDir(), registryPath)
	}

	s := &System{
		rootDir:    fd.RootDir(),
		cfg:        cfg,
		files:      fd,
		storage:    registry.NewStorage(registryPath),
		routeFiles: routeFiles,
		now:        time.Now,
		logger:     slog.Default(),
		progress:   analyzer.NoOpProgressReporter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RootDir returns the absolute project root.
func (s *System) RootDir() string {
	return s.rootDir
}

// RegistryPath returns the registry file path.
func (s *System) RegistryPath() string {
	return s.storage.Path()
}

// DetectResult is the outcome of a detection run.
type DetectResult struct {
	Registry  *registry.Registry
	Refreshed bool                  // false when the persisted registry was fresh and returned as is
	Previous  registry.State        // registry state before this run
	Stats     []flow.DiscoveryStats // empty unless Refreshed
}

// DetectAllFlows returns the persisted registry when it is fresh, and
// otherwise (or when forceUpdate is set) recomputes every flow, persists the
// new registry and returns it.
func (s *System) DetectAllFlows(ctx context.Context, forceUpdate bool) (*registry.Registry, error) {
	res, err := s.Detect(ctx, forceUpdate)
	if err != nil {
		return nil, err
	}
	return res.Registry, nil
}

// Detect is DetectAllFlows with run details.
func (s *System) Detect(ctx context.Context, forceUpdate bool) (*DetectResult, error) {
	now := s.now()
	existing := s.load()
	state := registry.StateOf(existing, now, s.cfg.Flows.StaleAfter)

	if !forceUpdate && state == registry.StateFresh {
		s.logger.Debug("flow registry is fresh", "path", s.storage.Path(), "updated", existing.LastUpdated)
		return &DetectResult{Registry: existing, Previous: state}, nil
	}

	s.logger.Info("detecting flows", "reason", reason(state, forceUpdate))

	a, err := s.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	d, err := flow.NewDiscoverer(s.builder(a), s.files, &s.cfg.Flows, flow.WithDiscoveryLogger(s.logger))
	if err != nil {
		return nil, err
	}
	flows, stats, err := d.DiscoverAll(ctx)
	if err != nil {
		return nil, err
	}

	reg := registry.New(flows, s.now())
	if err := s.storage.Save(reg); err != nil {
		return nil, err
	}
	s.logger.Info("flow registry updated", "flows", len(flows), "path", s.storage.Path())

	return &DetectResult{Registry: reg, Refreshed: true, Previous: state, Stats: stats}, nil
}

// Analyze parses the project.
func (s *System) Analyze(ctx context.Context) (*analyzer.Analyzer, error) {
	return analyzer.New(ctx, s.files, s.cfg,
		analyzer.WithLogger(s.logger),
		analyzer.WithProgress(s.progress),
	)
}

// TraceFlow parses the project and builds the flow of one entry point.
func (s *System) TraceFlow(ctx context.Context, entryFile, entryFunction string) (*flow.Flow, *analyzer.Analyzer, error) {
	a, err := s.Analyze(ctx)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.builder(a).BuildFlow(entryFile, entryFunction)
	if err != nil {
		return nil, nil, err
	}
	return f, a, nil
}

func (s *System) builder(a *analyzer.Analyzer) *flow.Builder {
	return flow.NewBuilder(a, flow.WithMaxDepth(s.cfg.Flows.MaxDepth), flow.WithClock(s.now))
}

// load reads the persisted registry. A corrupt registry is reported as absent.
func (s *System) load() *registry.Registry {
	reg, err := s.storage.Load()
	if err != nil {
		s.logger.Warn("ignoring unreadable flow registry", "path", s.storage.Path(), "error", err)
		return nil
	}
	return reg
}

func reason(state registry.State, force bool) string {
	if force {
		return "forced"
	}
	return string(state)
}
