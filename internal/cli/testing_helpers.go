package cli

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/mvp-joe/flowscope/internal/config"
	"github.com/mvp-joe/flowscope/internal/detect"
	"github.com/stretchr/testify/require"
)

// testProject is a small Next.js style project: one route calling a service
// that writes to the database, plus a utility.
var testProject = map[string]string{
	"tsconfig.json": `{
  // aliases
  "compilerOptions": {"baseUrl": ".", "paths": {"@/*": ["./*"]},},
}`,

	"app/api/orders/route.ts": `import { createOrder } from '@/services/orders';

export async function POST(request) {
  const body = await request.json();
  return Response.json(await createOrder(body));
}
`,

	"services/orders.ts": `export async function createOrder(data) {
  return await prisma.order.create({ data });
}
`,

	"lib/format.ts": `export function formatPrice(cents) {
  return (cents / 100).toFixed(2);
}
`,
}

// writeProject writes testProject under dir and returns dir.
func writeProject(t *testing.T, dir string) string {
	t.Helper()
	for rel, content := range testProject {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

// newTestSystem creates a detection system over root with logging discarded.
func newTestSystem(t *testing.T, root string) *detect.System {
	t.Helper()
	sys, err := detect.NewSystem(root, config.Default(),
		detect.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return sys
}

// initGitRepo initializes a git repository on main and commits everything
// currently in dir. Only tests that need real git use it; prefer
// git.NewMockGitOps() elsewhere.
func initGitRepo(t *testing.T, dir string) {
	t.Helper()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	run("init", "-b", "main")
	run("config", "user.name", "Test User")
	run("config", "user.email", "test@example.com")
	run("add", ".")
	run("commit", "-m", "Initial commit")
}
