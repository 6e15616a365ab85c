package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// NewFileLoader creates a loader that reads an explicit config file instead of
// searching .flowscope/ under rootDir.
func NewFileLoader(rootDir, configFile string) Loader {
	return &loader{
		rootDir:    rootDir,
		configFile: configFile,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (FLOWSCOPE_*)
// 2. Config file (.flowscope/config.yml or .flowscope/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, ".flowscope"))
	}

	// Environment overrides, e.g. FLOWSCOPE_FLOWS_MAX_DEPTH
	v.SetEnvPrefix("FLOWSCOPE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("resolve.tsconfig")
	v.BindEnv("flows.registry_path")
	v.BindEnv("flows.max_depth")
	v.BindEnv("flows.stale_after")
	v.BindEnv("flows.concurrency")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("paths.code", defaults.Paths.Code)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	v.SetDefault("resolve.tsconfig", defaults.Resolve.TSConfig)
	v.SetDefault("resolve.aliases", defaults.Resolve.Aliases)
	v.SetDefault("resolve.extensions", defaults.Resolve.Extensions)

	v.SetDefault("flows.registry_path", defaults.Flows.RegistryPath)
	v.SetDefault("flows.max_depth", defaults.Flows.MaxDepth)
	v.SetDefault("flows.stale_after", defaults.Flows.StaleAfter)
	v.SetDefault("flows.concurrency", defaults.Flows.Concurrency)
	v.SetDefault("flows.route_patterns", defaults.Flows.RoutePatterns)
	v.SetDefault("flows.route_methods", defaults.Flows.RouteMethods)
	v.SetDefault("flows.worker_patterns", defaults.Flows.WorkerPatterns)
	v.SetDefault("flows.worker_function_patterns", defaults.Flows.WorkerFunctionPatterns)
	v.SetDefault("flows.service_patterns", defaults.Flows.ServicePatterns)
	v.SetDefault("flows.service_function_patterns", defaults.Flows.ServiceFunctionPatterns)
	v.SetDefault("flows.utility_patterns", defaults.Flows.UtilityPatterns)
	v.SetDefault("flows.utility_function_patterns", defaults.Flows.UtilityFunctionPatterns)
}
