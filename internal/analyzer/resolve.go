package analyzer

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mvp-joe/flowscope/internal/config"
)

// jsToTS maps emitted-JavaScript extensions written in ESM imports
// ("./util.js") to the TypeScript sources they are compiled from.
var jsToTS = map[string][]string{
	".js":  {".ts", ".tsx"},
	".jsx": {".tsx"},
	".mjs": {".mts"},
	".cjs": {".cts"},
}

// resolver turns module specifiers into absolute file paths. It is purely
// syntactic: relative and alias specifiers are probed on disk, package names
// never resolve.
type resolver struct {
	resolution *config.Resolution
	extensions []string

	stats sync.Map // path -> bool (is regular file)
}

func newResolver(resolution *config.Resolution) *resolver {
	return &resolver{
		resolution: resolution,
		extensions: resolution.Extensions,
	}
}

// resolve returns the absolute file a specifier imported from fromFile refers
// to, or "" when it cannot be resolved to an in-repo file.
func (r *resolver) resolve(specifier, fromFile string) string {
	var base string
	switch {
	case isRelative(specifier):
		base = filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(specifier))
	default:
		target, ok := r.resolution.Match(specifier)
		if !ok {
			return ""
		}
		base = target
	}
	return r.probe(base)
}

// probe tries the literal path, then each extension, then an index file
// inside the path.
func (r *resolver) probe(base string) string {
	if r.isFile(base) {
		return base
	}

	ext := filepath.Ext(base)
	for _, alt := range jsToTS[ext] {
		if candidate := strings.TrimSuffix(base, ext) + alt; r.isFile(candidate) {
			return candidate
		}
	}

	for _, ext := range r.extensions {
		if candidate := base + ext; r.isFile(candidate) {
			return candidate
		}
	}

	for _, ext := range r.extensions {
		if candidate := filepath.Join(base, "index"+ext); r.isFile(candidate) {
			return candidate
		}
	}
	return ""
}

func (r *resolver) isFile(path string) bool {
	if cached, ok := r.stats.Load(path); ok {
		return cached.(bool)
	}
	info, err := os.Stat(path)
	isFile := err == nil && info.Mode().IsRegular()
	r.stats.Store(path, isFile)
	return isFile
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// receiverRoot returns the receiver when it is a plain identifier, else "".
func receiverRoot(receiver string) string {
	if receiver == "" {
		return ""
	}
	for _, c := range receiver {
		if !(c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return ""
		}
	}
	return receiver
}
