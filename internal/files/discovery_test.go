package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Discovery:
// - SourceFiles returns matching files sorted and absolute
// - ignored directories are skipped entirely
// - root-level files match "**/" patterns
// - Glob filters by a convention pattern while honoring ignores
// - Matcher treats "**/" as zero or more directories
// - Rel produces slash-separated project-relative paths
// - invalid patterns are rejected
// - a symlinked root is resolved, and Canonical keeps the missing tail of a path

func TestDiscovery_SourceFiles(t *testing.T) {
	t.Parallel()

	root := Canonical(t.TempDir())
	touch(t, root, "index.ts")
	touch(t, root, "src/app.tsx")
	touch(t, root, "src/util.js")
	touch(t, root, "README.md")
	touch(t, root, "node_modules/react/index.js")
	touch(t, root, "packages/web/node_modules/lodash/index.js")
	touch(t, root, "dist/bundle.js")
	touch(t, root, "types/global.d.ts")

	d, err := NewDiscovery(root, []string{"**/*.ts", "**/*.tsx", "**/*.js"}, []string{"**/node_modules/**", "dist/**", "**/*.d.ts"})
	require.NoError(t, err)

	got, err := d.SourceFiles()
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "index.ts"),
		filepath.Join(root, "src", "app.tsx"),
		filepath.Join(root, "src", "util.js"),
	}, got)
}

func TestDiscovery_Glob(t *testing.T) {
	t.Parallel()

	root := Canonical(t.TempDir())
	touch(t, root, "app/api/orders/route.ts")
	touch(t, root, "app/api/route.ts")
	touch(t, root, "api/health/route.js")
	touch(t, root, "app/page.tsx")
	touch(t, root, "dist/api/x/route.ts")

	d, err := NewDiscovery(root, []string{"**/*.ts", "**/*.tsx", "**/*.js"}, []string{"dist/**"})
	require.NoError(t, err)

	got, err := d.Glob("**/api/**/route.{ts,tsx,js}")
	require.NoError(t, err)

	rels := make([]string, 0, len(got))
	for _, p := range got {
		rels = append(rels, d.Rel(p))
	}
	assert.Equal(t, []string{"api/health/route.js", "app/api/orders/route.ts", "app/api/route.ts"}, rels)
}

func TestMatcher_ZeroDirectories(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher([]string{"**/workers/**/*.ts"})
	require.NoError(t, err)

	assert.True(t, m.Match("workers/email.ts"))
	assert.True(t, m.Match("src/workers/email.ts"))
	assert.True(t, m.Match("src/workers/jobs/email.ts"))
	assert.False(t, m.Match("src/worker/email.ts"))
	assert.False(t, m.Match("src/workers/email.js"))
}

func TestMatcher_NilAndEmpty(t *testing.T) {
	t.Parallel()

	var m *Matcher
	assert.False(t, m.Match("anything"))
	assert.True(t, m.Empty())

	empty, err := NewMatcher(nil)
	require.NoError(t, err)
	assert.True(t, empty.Empty())
	assert.False(t, empty.Match("a.ts"))
}

func TestDiscovery_Rel(t *testing.T) {
	t.Parallel()

	root := Canonical(t.TempDir())
	d, err := NewDiscovery(root, []string{"**/*.ts"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "src/a/b.ts", d.Rel(filepath.Join(root, "src", "a", "b.ts")))
	assert.Equal(t, root, d.RootDir())
}

func TestDiscovery_AlwaysIgnoresStateDir(t *testing.T) {
	t.Parallel()

	root := Canonical(t.TempDir())
	touch(t, root, ".flowscope/cache.ts")
	touch(t, root, "main.ts")

	d, err := NewDiscovery(root, []string{"**/*.ts"}, nil)
	require.NoError(t, err)

	got, err := d.SourceFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "main.ts")}, got)
}

func TestDiscovery_SymlinkedRoot(t *testing.T) {
	t.Parallel()

	resolved := Canonical(t.TempDir())
	touch(t, resolved, "src/app.ts")
	link := filepath.Join(t.TempDir(), "project")
	require.NoError(t, os.Symlink(resolved, link))

	d, err := NewDiscovery(link, []string{"**/*.ts"}, nil)
	require.NoError(t, err)
	assert.Equal(t, resolved, d.RootDir())

	got, err := d.SourceFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(resolved, "src", "app.ts")}, got)

	assert.Equal(t, filepath.Join(resolved, "src", "deleted.ts"), Canonical(filepath.Join(link, "src", "deleted.ts")))
	assert.Equal(t, filepath.Join(resolved, "gone", "x.ts"), Canonical(filepath.Join(link, "gone", "x.ts")))
}

func TestNewDiscovery_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewDiscovery(t.TempDir(), []string{"[unclosed"}, nil)
	assert.Error(t, err)
}

func touch(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("// "+rel+"\n"), 0644))
}
