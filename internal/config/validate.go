package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidDepth indicates a non-positive traversal depth bound
	ErrInvalidDepth = errors.New("invalid max depth")

	// ErrInvalidStaleness indicates a non-positive registry staleness window
	ErrInvalidStaleness = errors.New("invalid stale_after")

	// ErrInvalidConcurrency indicates a negative worker count
	ErrInvalidConcurrency = errors.New("invalid concurrency")

	// ErrEmptyRegistryPath indicates a missing registry location
	ErrEmptyRegistryPath = errors.New("empty registry path")

	// ErrInvalidGlob indicates a glob pattern that does not compile
	ErrInvalidGlob = errors.New("invalid glob pattern")

	// ErrInvalidPattern indicates a regular expression that does not compile
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrEmptyCodePatterns indicates that no source files could ever be selected
	ErrEmptyCodePatterns = errors.New("empty code patterns")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validatePaths(&cfg.Paths); err != nil {
		errs = append(errs, err)
	}

	if err := validateFlows(&cfg.Flows); err != nil {
		errs = append(errs, err)
	}

	if err := validateClassify(&cfg.Classify); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validatePaths(cfg *PathsConfig) error {
	var errs []error

	if len(cfg.Code) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one code pattern required", ErrEmptyCodePatterns))
	}

	errs = append(errs, checkGlobs("paths.code", cfg.Code)...)
	errs = append(errs, checkGlobs("paths.ignore", cfg.Ignore)...)

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateFlows(cfg *FlowsConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.RegistryPath) == "" {
		errs = append(errs, fmt.Errorf("%w: flows.registry_path is required", ErrEmptyRegistryPath))
	}

	if cfg.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_depth must be positive, got %d", ErrInvalidDepth, cfg.MaxDepth))
	}

	if cfg.StaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("%w: stale_after must be positive, got %s", ErrInvalidStaleness, cfg.StaleAfter))
	}

	if cfg.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("%w: concurrency cannot be negative, got %d", ErrInvalidConcurrency, cfg.Concurrency))
	}

	errs = append(errs, checkGlobs("flows.route_patterns", cfg.RoutePatterns)...)
	errs = append(errs, checkGlobs("flows.worker_patterns", cfg.WorkerPatterns)...)
	errs = append(errs, checkGlobs("flows.service_patterns", cfg.ServicePatterns)...)
	errs = append(errs, checkGlobs("flows.utility_patterns", cfg.UtilityPatterns)...)

	errs = append(errs, checkRegexps("flows.worker_function_patterns", cfg.WorkerFunctionPatterns)...)
	errs = append(errs, checkRegexps("flows.service_function_patterns", cfg.ServiceFunctionPatterns)...)
	errs = append(errs, checkRegexps("flows.utility_function_patterns", cfg.UtilityFunctionPatterns)...)

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateClassify(cfg *ClassifyConfig) error {
	var errs []error

	for _, group := range []struct {
		key   string
		rules []RuleConfig
	}{
		{"classify.external_rules", cfg.ExternalRules},
		{"classify.mutation_rules", cfg.MutationRules},
	} {
		for i, rule := range group.rules {
			if strings.TrimSpace(rule.Pattern) == "" {
				errs = append(errs, fmt.Errorf("%w: %s[%d] has an empty pattern", ErrInvalidPattern, group.key, i))
				continue
			}
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				errs = append(errs, fmt.Errorf("%w: %s[%d] %q: %v", ErrInvalidPattern, group.key, i, rule.Pattern, err))
			}
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func checkGlobs(key string, patterns []string) []error {
	var errs []error
	for _, pattern := range patterns {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s %q: %v", ErrInvalidGlob, key, pattern, err))
		}
	}
	return errs
}

func checkRegexps(key string, patterns []string) []error {
	var errs []error
	for _, pattern := range patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s %q: %v", ErrInvalidPattern, key, pattern, err))
		}
	}
	return errs
}

// joinErrors combines multiple errors into a single error with clear formatting.
// The sentinel errors stay reachable through errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	return &validationError{errs: errs}
}

type validationError struct {
	errs []error
}

func (e *validationError) Error() string {
	msgs := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e *validationError) Unwrap() []error {
	return e.errs
}
