package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tailscale/hujson"
)

// ErrNoResolutionConfig indicates that neither a tsconfig/jsconfig file nor an
// explicit alias table is available for import resolution.
var ErrNoResolutionConfig = errors.New("no module resolution config (tsconfig.json, jsconfig.json or resolve.aliases)")

// tsconfigCandidates are probed in order when resolve.tsconfig is empty.
var tsconfigCandidates = []string{"tsconfig.json", "jsconfig.json"}

// Alias maps an import specifier prefix to a directory (or, when Exact, a single path).
type Alias struct {
	Prefix string
	Target string // absolute
	Exact  bool
}

// Resolution is the root-alias table consumed by the analyzer.
type Resolution struct {
	Source     string // tsconfig/jsconfig file the aliases came from, empty when only explicit aliases exist
	Aliases    []Alias
	Extensions []string
}

// Match rewrites an alias specifier to an absolute candidate path.
// The longest matching prefix wins.
func (r *Resolution) Match(specifier string) (string, bool) {
	for _, a := range r.Aliases {
		if a.Exact {
			if specifier == a.Prefix {
				return a.Target, true
			}
			continue
		}
		if strings.HasPrefix(specifier, a.Prefix) {
			return filepath.Join(a.Target, filepath.FromSlash(strings.TrimPrefix(specifier, a.Prefix))), true
		}
	}
	return "", false
}

type tsconfigFile struct {
	Extends         string `json:"extends"`
	CompilerOptions struct {
		BaseURL *string             `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// LoadResolution builds the alias table for rootDir. Aliases from the
// tsconfig/jsconfig `compilerOptions.paths` come first; entries in
// resolve.aliases override them for identical prefixes.
func LoadResolution(rootDir string, cfg *ResolveConfig) (*Resolution, error) {
	res := &Resolution{Extensions: cfg.Extensions}
	byPrefix := make(map[string]Alias)

	tsPath, err := findTSConfig(rootDir, cfg.TSConfig)
	if err != nil {
		return nil, err
	}

	if tsPath != "" {
		aliases, err := readTSConfigAliases(tsPath, map[string]bool{})
		if err != nil {
			return nil, err
		}
		res.Source = tsPath
		for _, a := range aliases {
			byPrefix[a.Prefix] = a
		}
	}

	for prefix, target := range cfg.Aliases {
		a := newAlias(prefix, target, rootDir)
		byPrefix[a.Prefix] = a
	}

	if tsPath == "" && len(cfg.Aliases) == 0 {
		return nil, ErrNoResolutionConfig
	}

	for _, a := range byPrefix {
		res.Aliases = append(res.Aliases, a)
	}
	sort.Slice(res.Aliases, func(i, j int) bool {
		if len(res.Aliases[i].Prefix) != len(res.Aliases[j].Prefix) {
			return len(res.Aliases[i].Prefix) > len(res.Aliases[j].Prefix)
		}
		return res.Aliases[i].Prefix < res.Aliases[j].Prefix
	})

	return res, nil
}

func findTSConfig(rootDir, explicit string) (string, error) {
	if explicit != "" {
		p := explicit
		if !filepath.IsAbs(p) {
			p = filepath.Join(rootDir, p)
		}
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("resolve.tsconfig %s: %w", explicit, err)
		}
		return p, nil
	}

	for _, name := range tsconfigCandidates {
		p := filepath.Join(rootDir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

// readTSConfigAliases reads paths from a tsconfig file, following relative
// "extends" chains. Paths declared in a child replace the parent's entirely.
func readTSConfigAliases(path string, seen map[string]bool) ([]Alias, error) {
	if seen[path] {
		return nil, fmt.Errorf("tsconfig extends cycle at %s", path)
	}
	seen[path] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var tc tsconfigFile
	if err := json.Unmarshal(std, &tc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)

	if len(tc.CompilerOptions.Paths) == 0 {
		if strings.HasPrefix(tc.Extends, "./") || strings.HasPrefix(tc.Extends, "../") {
			parent := filepath.Join(dir, tc.Extends)
			if _, err := os.Stat(parent); err != nil && !strings.HasSuffix(parent, ".json") {
				parent += ".json"
			}
			return readTSConfigAliases(parent, seen)
		}
		return nil, nil
	}

	base := dir
	if tc.CompilerOptions.BaseURL != nil {
		base = filepath.Join(dir, *tc.CompilerOptions.BaseURL)
	}

	var aliases []Alias
	for key, targets := range tc.CompilerOptions.Paths {
		if len(targets) == 0 {
			continue
		}
		aliases = append(aliases, newAlias(key, targets[0], base))
	}
	return aliases, nil
}

// newAlias converts a tsconfig-style "@/*" -> "./src/*" pair into an Alias.
func newAlias(key, target, base string) Alias {
	if strings.HasSuffix(key, "*") {
		prefix := strings.TrimSuffix(key, "*")
		dir := strings.TrimSuffix(target, "*")
		return Alias{Prefix: prefix, Target: absJoin(base, dir)}
	}
	if strings.HasSuffix(key, "/") {
		return Alias{Prefix: key, Target: absJoin(base, target)}
	}
	return Alias{Prefix: key, Target: absJoin(base, target), Exact: true}
}

func absJoin(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	joined := filepath.Join(base, filepath.FromSlash(p))
	if abs, err := filepath.Abs(joined); err == nil {
		return abs
	}
	return joined
}
