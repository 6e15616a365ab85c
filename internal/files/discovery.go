// Package files enumerates project source files with glob include and ignore rules.
package files

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// compiledPattern holds both the pattern string and its compiled variants.
type compiledPattern struct {
	pattern  string
	variants []glob.Glob
}

// Matcher matches slash-separated relative paths against a set of glob patterns.
//
// A "**/" segment also matches zero directories, so "**/api/**/route.ts" matches
// both "app/api/orders/route.ts" and "api/route.ts".
type Matcher struct {
	patterns []compiledPattern
}

// NewMatcher compiles patterns into a Matcher.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, pattern := range patterns {
		cp := compiledPattern{pattern: pattern}
		for _, variant := range expandZeroDirs(pattern) {
			g, err := glob.Compile(variant, '/')
			if err != nil {
				return nil, err
			}
			cp.variants = append(cp.variants, g)
		}
		m.patterns = append(m.patterns, cp)
	}
	return m, nil
}

// Match reports whether relPath matches any pattern.
func (m *Matcher) Match(relPath string) bool {
	if m == nil {
		return false
	}
	for _, cp := range m.patterns {
		for _, g := range cp.variants {
			if g.Match(relPath) {
				return true
			}
		}
	}
	return false
}

// Empty reports whether the matcher has no patterns.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// expandZeroDirs returns the pattern plus the variants in which a leading "**/"
// and inner "/**/" segments match no directory at all.
func expandZeroDirs(pattern string) []string {
	seen := map[string]bool{pattern: true}
	variants := []string{pattern}

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			variants = append(variants, p)
		}
	}

	for i := 0; i < len(variants); i++ {
		p := variants[i]
		if strings.HasPrefix(p, "**/") {
			add(strings.TrimPrefix(p, "**/"))
		}
		if strings.Contains(p, "/**/") {
			add(strings.Replace(p, "/**/", "/", 1))
		}
	}
	return variants
}

// Discovery walks a project tree and returns source files.
type Discovery struct {
	rootDir string
	code    *Matcher
	ignore  *Matcher
}

// NewDiscovery creates a new file discovery instance.
func NewDiscovery(rootDir string, codePatterns, ignorePatterns []string) (*Discovery, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	abs = Canonical(abs)

	code, err := NewMatcher(codePatterns)
	if err != nil {
		return nil, err
	}

	ignore, err := NewMatcher(ignorePatterns)
	if err != nil {
		return nil, err
	}

	return &Discovery{
		rootDir: abs,
		code:    code,
		ignore:  ignore,
	}, nil
}

// Canonical resolves symlinks in an absolute path so that paths reported by
// git and paths found by walking the tree compare equal. When path does not
// exist, its deepest existing parent is resolved and the rest is kept.
func Canonical(path string) string {
	dir, rest := filepath.Clean(path), ""
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Clean(path)
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// RootDir returns the absolute project root with symlinks resolved.
func (d *Discovery) RootDir() string {
	return d.rootDir
}

// SourceFiles returns the absolute paths of all source files, sorted.
func (d *Discovery) SourceFiles() ([]string, error) {
	return d.collect(d.code)
}

// Glob returns the absolute paths of source files whose project-relative path
// matches pattern, honoring the ignore list. Results are sorted.
func (d *Discovery) Glob(pattern string) ([]string, error) {
	m, err := NewMatcher([]string{pattern})
	if err != nil {
		return nil, err
	}
	return d.GlobMatcher(m)
}

// GlobMatcher is Glob for an already compiled matcher.
func (d *Discovery) GlobMatcher(m *Matcher) ([]string, error) {
	all, err := d.SourceFiles()
	if err != nil {
		return nil, err
	}
	return d.Filter(all, m), nil
}

// Filter returns the paths whose project-relative form matches m, keeping
// their order. It does not touch the filesystem.
func (d *Discovery) Filter(paths []string, m *Matcher) []string {
	var matched []string
	for _, path := range paths {
		if m.Match(d.Rel(path)) {
			matched = append(matched, path)
		}
	}
	return matched
}

// Rel returns the slash-separated path of path relative to the project root.
// Paths outside the root are returned unchanged.
func (d *Discovery) Rel(path string) string {
	rel, err := filepath.Rel(d.rootDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// ShouldIgnore checks if a relative path matches any ignore pattern.
func (d *Discovery) ShouldIgnore(relPath string) bool {
	// Always ignore the flowscope state directory
	if strings.HasPrefix(relPath, ".flowscope/") || relPath == ".flowscope" {
		return true
	}

	if d.ignore.Match(relPath) {
		return true
	}

	// Also check if this is a directory that would match with /** suffix
	// For example, "node_modules" should match pattern "node_modules/**"
	return d.ignore.Match(relPath + "/**")
}

func (d *Discovery) collect(m *Matcher) ([]string, error) {
	files := []string{}

	err := filepath.WalkDir(d.rootDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == d.rootDir {
				return err
			}
			// Unreadable subtrees are skipped
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == d.rootDir {
			return nil
		}

		relPath := d.Rel(path)

		if entry.IsDir() {
			if d.ShouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.ShouldIgnore(relPath) {
			return nil
		}

		if !entry.Type().IsRegular() {
			if info, statErr := os.Stat(path); statErr != nil || !info.Mode().IsRegular() {
				return nil
			}
		}

		if m.Match(relPath) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
