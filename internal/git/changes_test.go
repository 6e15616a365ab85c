package git

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for change parsing:
// - porcelain output maps M/A/D/R/?? to change types, renames keep both paths
// - quoted porcelain paths are decoded
// - name-status output handles similarity-scored renames and copies
// - unified diffs classify added, deleted, renamed and modified files
// - ChangedPaths drops deletions and joins the worktree root
// - the mock serves configured changes
// - CollectChanges picks exactly one source and rejects malformed ranges

func TestParsePorcelain(t *testing.T) {
	t.Parallel()

	output := " M src/app.ts\n" +
		"M  src/staged.ts\n" +
		"A  src/new.ts\n" +
		" D src/gone.ts\n" +
		"R  src/old.ts -> src/renamed.ts\n" +
		"?? scratch.ts\n" +
		"?? \"with space.ts\"\n\n"

	assert.Equal(t, []Change{
		{Path: "src/app.ts", Type: ChangeModified},
		{Path: "src/staged.ts", Type: ChangeModified},
		{Path: "src/new.ts", Type: ChangeAdded},
		{Path: "src/gone.ts", Type: ChangeDeleted},
		{Path: "src/renamed.ts", OldPath: "src/old.ts", Type: ChangeRenamed},
		{Path: "scratch.ts", Type: ChangeAdded},
		{Path: "with space.ts", Type: ChangeAdded},
	}, ParsePorcelain(output))
}

func TestParseNameStatus(t *testing.T) {
	t.Parallel()

	output := "M\tsrc/app.ts\n" +
		"A\tsrc/new.ts\n" +
		"D\tsrc/gone.ts\n" +
		"R087\tsrc/old.ts\tsrc/renamed.ts\n" +
		"C100\tsrc/base.ts\tsrc/copy.ts\n"

	assert.Equal(t, []Change{
		{Path: "src/app.ts", Type: ChangeModified},
		{Path: "src/new.ts", Type: ChangeAdded},
		{Path: "src/gone.ts", Type: ChangeDeleted},
		{Path: "src/renamed.ts", OldPath: "src/old.ts", Type: ChangeRenamed},
		{Path: "src/copy.ts", OldPath: "src/base.ts", Type: ChangeAdded},
	}, ParseNameStatus(output))

	assert.Empty(t, ParseNameStatus(""))
}

const sampleDiff = `diff --git a/services/orders.ts b/services/orders.ts
index 1111111..2222222 100644
--- a/services/orders.ts
+++ b/services/orders.ts
@@ -1,3 +1,3 @@
 export async function createOrder(data) {
-  return data;
+  return { ...data };
 }
diff --git a/lib/new.ts b/lib/new.ts
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/lib/new.ts
@@ -0,0 +1 @@
+export const x = 1;
diff --git a/lib/old.ts b/lib/old.ts
deleted file mode 100644
index 4444444..0000000
--- a/lib/old.ts
+++ /dev/null
@@ -1 +0,0 @@
-export const y = 2;
`

func TestParseUnifiedDiff(t *testing.T) {
	t.Parallel()

	changes, err := ParseUnifiedDiff([]byte(sampleDiff))
	require.NoError(t, err)

	assert.Equal(t, []Change{
		{Path: "services/orders.ts", Type: ChangeModified},
		{Path: "lib/new.ts", Type: ChangeAdded},
		{Path: "lib/old.ts", Type: ChangeDeleted},
	}, changes)
}

func TestParseUnifiedDiff_Empty(t *testing.T) {
	t.Parallel()

	changes, err := ParseUnifiedDiff([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestChangedPaths(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/work/repo")
	paths := ChangedPaths(root, []Change{
		{Path: "services/orders.ts", Type: ChangeModified},
		{Path: "lib/old.ts", Type: ChangeDeleted},
		{Path: "lib/renamed.ts", OldPath: "lib/x.ts", Type: ChangeRenamed},
	})

	assert.Equal(t, []string{
		filepath.Join(root, "services", "orders.ts"),
		filepath.Join(root, "lib", "renamed.ts"),
	}, paths)
}

func TestMockGitOps(t *testing.T) {
	t.Parallel()

	m := NewMockGitOps()
	m.Staged = []Change{{Path: "a.ts", Type: ChangeAdded}}
	m.Ranges["main..HEAD"] = []Change{{Path: "b.ts", Type: ChangeModified}}

	var ops Operations = m

	staged, err := ops.StagedChanges("/any")
	require.NoError(t, err)
	assert.Equal(t, m.Staged, staged)

	ranged, err := ops.RangeChanges("/any", "main", "HEAD")
	require.NoError(t, err)
	assert.Len(t, ranged, 1)

	_, err = ops.RangeChanges("/any", "v1", "v2")
	assert.Error(t, err)
	assert.Equal(t, "/tmp/test-repo", ops.GetWorktreeRoot("/any"))
}

func TestCollectChanges(t *testing.T) {
	t.Parallel()

	m := NewMockGitOps()
	m.WorktreeRoot = filepath.FromSlash("/work/repo")
	m.Working = []Change{{Path: "a.ts", Type: ChangeModified}, {Path: "gone.ts", Type: ChangeDeleted}}
	m.Staged = []Change{{Path: "b.ts", Type: ChangeAdded}}
	m.Ranges["main..HEAD"] = []Change{{Path: "c.ts", Type: ChangeModified}}

	abs := func(p string) string { return filepath.Join(m.WorktreeRoot, p) }

	tests := []struct {
		name string
		src  Source
		want []string
	}{
		{"working tree", Source{}, []string{abs("a.ts")}},
		{"staged", Source{Staged: true}, []string{abs("b.ts")}},
		{"range", Source{Range: "main..HEAD"}, []string{abs("c.ts")}},
		{"open range defaults to HEAD", Source{Range: "main.."}, []string{abs("c.ts")}},
		{"diff", Source{Diff: []byte(sampleDiff)}, []string{abs("services/orders.ts"), abs("lib/new.ts")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CollectChanges(m, "/work/repo/sub", tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectChanges_Errors(t *testing.T) {
	t.Parallel()

	m := NewMockGitOps()

	_, err := CollectChanges(m, "/repo", Source{Staged: true, Range: "a..b"})
	assert.ErrorIs(t, err, ErrConflictingSources)

	for _, r := range []string{"main", "..HEAD", "a...b"} {
		_, err = CollectChanges(m, "/repo", Source{Range: r})
		assert.Error(t, err, r)
	}

	m.Err = assert.AnError
	_, err = CollectChanges(m, "/repo", Source{})
	assert.ErrorIs(t, err, assert.AnError)
}
