package config

import (
	"time"
)

// Config represents the complete flowscope configuration.
// It can be loaded from .flowscope/config.yml with environment variable overrides.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Resolve  ResolveConfig  `yaml:"resolve" mapstructure:"resolve"`
	Flows    FlowsConfig    `yaml:"flows" mapstructure:"flows"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
}

// PathsConfig defines which files to analyze and which to ignore.
type PathsConfig struct {
	Code   []string `yaml:"code" mapstructure:"code"`     // glob patterns for source files
	Ignore []string `yaml:"ignore" mapstructure:"ignore"` // glob patterns to ignore
}

// ResolveConfig configures syntactic import resolution.
type ResolveConfig struct {
	TSConfig   string            `yaml:"tsconfig" mapstructure:"tsconfig"`     // explicit tsconfig/jsconfig path (relative to root)
	Aliases    map[string]string `yaml:"aliases" mapstructure:"aliases"`       // prefix -> directory, e.g. "@/" -> "src"
	Extensions []string          `yaml:"extensions" mapstructure:"extensions"` // probed in order for extensionless specifiers
}

// FlowsConfig configures flow discovery and the flow registry.
type FlowsConfig struct {
	RegistryPath string        `yaml:"registry_path" mapstructure:"registry_path"` // relative to project root
	MaxDepth     int           `yaml:"max_depth" mapstructure:"max_depth"`         // steps along one call chain
	StaleAfter   time.Duration `yaml:"stale_after" mapstructure:"stale_after"`     // registry age that triggers recomputation
	Concurrency  int           `yaml:"concurrency" mapstructure:"concurrency"`     // 0 means GOMAXPROCS

	RoutePatterns []string `yaml:"route_patterns" mapstructure:"route_patterns"`
	RouteMethods  []string `yaml:"route_methods" mapstructure:"route_methods"`

	WorkerPatterns         []string `yaml:"worker_patterns" mapstructure:"worker_patterns"`
	WorkerFunctionPatterns []string `yaml:"worker_function_patterns" mapstructure:"worker_function_patterns"`

	ServicePatterns         []string `yaml:"service_patterns" mapstructure:"service_patterns"`
	ServiceFunctionPatterns []string `yaml:"service_function_patterns" mapstructure:"service_function_patterns"`

	UtilityPatterns         []string `yaml:"utility_patterns" mapstructure:"utility_patterns"`
	UtilityFunctionPatterns []string `yaml:"utility_function_patterns" mapstructure:"utility_function_patterns"`
}

// ClassifyConfig extends the built-in call classification rule tables.
// Extra rules are appended after the defaults.
type ClassifyConfig struct {
	ExternalRules []RuleConfig `yaml:"external_rules" mapstructure:"external_rules"`
	MutationRules []RuleConfig `yaml:"mutation_rules" mapstructure:"mutation_rules"`
}

// RuleConfig is a single named regular-expression rule.
type RuleConfig struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Category string `yaml:"category" mapstructure:"category"`
	Pattern  string `yaml:"pattern" mapstructure:"pattern"`
}

const (
	// DefaultRegistryPath is where the flow registry is persisted, relative to the project root.
	DefaultRegistryPath = ".flowscope/flow-registry.json"

	// DefaultMaxDepth bounds a single traversal branch.
	DefaultMaxDepth = 20

	// DefaultStaleAfter is the registry age after which detection recomputes all flows.
	DefaultStaleAfter = 7 * 24 * time.Hour
)

// sourceExt is the brace group used by the default convention globs.
const sourceExt = "{ts,tsx,js,jsx,mjs,cjs}"

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Code: []string{
				"**/*.ts",
				"**/*.tsx",
				"**/*.mts",
				"**/*.cts",
				"**/*.js",
				"**/*.jsx",
				"**/*.mjs",
				"**/*.cjs",
			},
			Ignore: []string{
				"**/node_modules/**",
				"dist/**",
				"build/**",
				"out/**",
				".next/**",
				"coverage/**",
				".git/**",
				"**/*.d.ts",
				"**/*.min.js",
			},
		},
		Resolve: ResolveConfig{
			TSConfig:   "",
			Aliases:    map[string]string{},
			Extensions: []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
		},
		Flows: FlowsConfig{
			RegistryPath: DefaultRegistryPath,
			MaxDepth:     DefaultMaxDepth,
			StaleAfter:   DefaultStaleAfter,
			Concurrency:  0,

			RoutePatterns: []string{"**/api/**/route." + sourceExt},
			RouteMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH"},

			WorkerPatterns:         []string{"**/workers/**/*." + sourceExt},
			WorkerFunctionPatterns: []string{"(?i)process|handle|execute"},

			ServicePatterns: []string{"**/services/**/*." + sourceExt},
			ServiceFunctionPatterns: []string{
				"(?i)^(create|update|delete|get|find|send|process|execute|handle|generate)",
				"(?i)Service$",
				"(?i)Manager$",
				"(?i)Handler$",
			},

			UtilityPatterns: []string{
				"**/lib/**/*." + sourceExt,
				"**/utils/**/*." + sourceExt,
			},
			UtilityFunctionPatterns: []string{
				"(?i)^(validate|parse|format|transform|calculate|compute)",
				"(?i)Util$",
				"(?i)Helper$",
			},
		},
		Classify: ClassifyConfig{
			ExternalRules: []RuleConfig{},
			MutationRules: []RuleConfig{},
		},
	}
}
