package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mvp-joe/flowscope/internal/config"
	"github.com/mvp-joe/flowscope/internal/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Analyzer:
// - calls are attributed to the innermost named function, module-level calls are ignored
// - callbacks inside a named function contribute to that function
// - class methods, arrow functions and CommonJS exports count as functions
// - edges carry receiver, argument texts and await status
// - imports resolve relative, alias, index and .js-to-.ts targets
// - renamed named imports and require pairs record the exported name
// - package imports stay unresolved
// - same-file calls and this.method() resolve to the same file
// - New fails with ErrConfiguration when no resolution config exists
// - external and mutation classification delegate to the rule tables

const tsconfig = `{
  // comments are allowed
  "compilerOptions": {
    "baseUrl": ".",
    "paths": { "@/*": ["src/*"] },
  }
}`

const handlerSource = `import { helper, other as renamed } from './util';
import db from '@/lib/db';
import * as ns from './util';
import _ from 'lodash';

setup();

export async function handle(req) {
  const data = await helper(req.body, 42);
  renamed();
  ns.helper();
  _.map([1, 2], (x) => transform(x));
  db.query("select 1");
  return data;
}

const transform = (x) => x * 2;

class Worker {
  run() {
    this.step();
  }
  step() {}
}
`

const utilSource = `export function helper(...args) {
  return format(args);
}

function format(v) {
  return JSON.stringify(v);
}

export const other = () => {};
`

const legacySource = `const { helper } = require('./util');
const path = require('path');
const store = require('./util.js');

exports.run = function () {
  helper();
  path.join('a', 'b');
};

module.exports.stop = async () => {
  await store.format();
};
`

func TestAnalyzer_ExtractCallEdges(t *testing.T) {
	t.Parallel()

	a, root := newFixture(t)

	edges, err := a.ExtractCallEdges(filepath.Join(root, "src", "handler.ts"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"handle", "transform", "run", "step"}, keys(edges))
	assert.Empty(t, edges["transform"])

	handle := edges["handle"]
	require.Len(t, handle, 6)

	assert.Equal(t, "helper", handle[0].CalleeName)
	assert.True(t, handle[0].IsAsync)
	assert.Equal(t, []string{"req.body", "42"}, handle[0].ArgumentTexts)
	assert.Equal(t, filepath.Join(root, "src", "util.ts"), handle[0].ResolvedFile)

	assert.Equal(t, "renamed", handle[1].CalleeName)
	assert.False(t, handle[1].IsAsync)
	assert.Equal(t, filepath.Join(root, "src", "util.ts"), handle[1].ResolvedFile)
	assert.Equal(t, "other", handle[1].TargetName)
	assert.Equal(t, "other", handle[1].Target())
	assert.Empty(t, handle[0].TargetName)
	assert.Equal(t, "helper", handle[0].Target())

	assert.Equal(t, "helper", handle[2].CalleeName)
	assert.Equal(t, "ns", handle[2].Receiver)
	assert.Equal(t, filepath.Join(root, "src", "util.ts"), handle[2].ResolvedFile)

	assert.Equal(t, "map", handle[3].CalleeName)
	assert.Equal(t, "_", handle[3].Receiver)
	assert.False(t, handle[3].Resolved())

	assert.Equal(t, "transform", handle[4].CalleeName)
	assert.Equal(t, filepath.Join(root, "src", "handler.ts"), handle[4].ResolvedFile)

	assert.Equal(t, "query", handle[5].CalleeName)
	assert.Equal(t, "db", handle[5].Receiver)
	assert.Equal(t, filepath.Join(root, "src", "lib", "db", "index.ts"), handle[5].ResolvedFile)

	require.Len(t, edges["run"], 1)
	assert.Equal(t, "step", edges["run"][0].CalleeName)
	assert.Equal(t, "this", edges["run"][0].Receiver)
	assert.Equal(t, filepath.Join(root, "src", "handler.ts"), edges["run"][0].ResolvedFile)
}

func TestAnalyzer_FunctionLineAndOrder(t *testing.T) {
	t.Parallel()

	a, root := newFixture(t)
	file := filepath.Join(root, "src", "handler.ts")

	fn, ok := a.Function(file, "handle")
	require.True(t, ok)
	assert.Equal(t, 8, fn.Line)

	assert.Equal(t, []string{"handle", "transform", "run", "step"}, a.FunctionNames(file))

	_, ok = a.Function(file, "missing")
	assert.False(t, ok)
}

func TestAnalyzer_CommonJS(t *testing.T) {
	t.Parallel()

	a, root := newFixture(t)

	edges, err := a.ExtractCallEdges(filepath.Join(root, "src", "legacy.js"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run", "stop"}, keys(edges))

	run := edges["run"]
	require.Len(t, run, 2)
	assert.Equal(t, filepath.Join(root, "src", "util.ts"), run[0].ResolvedFile)
	assert.Equal(t, "join", run[1].CalleeName)
	assert.False(t, run[1].Resolved())

	stop := edges["stop"]
	require.Len(t, stop, 1)
	assert.True(t, stop[0].IsAsync)
	assert.Equal(t, filepath.Join(root, "src", "util.ts"), stop[0].ResolvedFile)
}

func TestAnalyzer_ResolveImportTarget(t *testing.T) {
	t.Parallel()

	a, root := newFixture(t)
	handler := filepath.Join(root, "src", "handler.ts")

	assert.Equal(t, filepath.Join(root, "src", "util.ts"), a.ResolveImportTarget("helper", handler))
	assert.Equal(t, filepath.Join(root, "src", "lib", "db", "index.ts"), a.ResolveImportTarget("db", handler))
	assert.Equal(t, "", a.ResolveImportTarget("_", handler), "package imports are unresolved")
	assert.Equal(t, "", a.ResolveImportTarget("transform", handler), "not an import")
	assert.Equal(t, "", a.ResolveImportTarget("helper", filepath.Join(root, "missing.ts")))
}

func TestAnalyzer_ExplicitAliasesWithoutTSConfig(t *testing.T) {
	t.Parallel()

	root := files.Canonical(t.TempDir())
	writeSource(t, root, "app/main.ts", "import { save } from '~/store';\nexport function main() { save(); }\n")
	writeSource(t, root, "lib/store.ts", "export function save() {}\n")

	cfg := config.Default()
	cfg.Resolve.Aliases = map[string]string{"~/": "lib"}

	a := newAnalyzer(t, root, cfg)
	assert.Equal(t, filepath.Join(root, "lib", "store.ts"), a.ResolveImportTarget("save", filepath.Join(root, "app", "main.ts")))
}

func TestAnalyzer_RequirePairRecordsExportedName(t *testing.T) {
	t.Parallel()

	root := files.Canonical(t.TempDir())
	writeSource(t, root, "app/main.js", "const { save: persist } = require('../lib/store');\nfunction main() { persist(); }\n")
	writeSource(t, root, "lib/store.js", "exports.save = function () {};\n")

	cfg := config.Default()
	cfg.Resolve.Aliases = map[string]string{"~/": "lib"}

	a := newAnalyzer(t, root, cfg)
	edges, err := a.ExtractCallEdges(filepath.Join(root, "app", "main.js"))
	require.NoError(t, err)

	require.Len(t, edges["main"], 1)
	edge := edges["main"][0]
	assert.Equal(t, "persist", edge.CalleeName)
	assert.Equal(t, filepath.Join(root, "lib", "store.js"), edge.ResolvedFile)
	assert.Equal(t, "save", edge.Target())
}

func TestNew_ConfigurationError(t *testing.T) {
	t.Parallel()

	root := files.Canonical(t.TempDir())
	writeSource(t, root, "main.ts", "export function main() {}\n")

	cfg := config.Default()
	d, err := files.NewDiscovery(root, cfg.Paths.Code, cfg.Paths.Ignore)
	require.NoError(t, err)

	_, err = New(context.Background(), d, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, config.ErrNoResolutionConfig))
}

func TestAnalyzer_Classification(t *testing.T) {
	t.Parallel()

	a, root := newFixture(t)

	assert.True(t, a.IsExternalCallEdge(CallEdge{CalleeName: "sendEmailNotification"}))
	assert.True(t, a.IsExternalCallEdge(CallEdge{CalleeName: "query", Receiver: "db"}))
	assert.True(t, a.IsExternalCallEdge(CallEdge{
		CalleeName:   "load",
		ResolvedFile: filepath.Join(root, "src", "lib", "db", "index.ts"),
	}))
	assert.False(t, a.IsExternalCallEdge(CallEdge{
		CalleeName:   "createOrder",
		ResolvedFile: filepath.Join(root, "src", "services", "orders.ts"),
	}))

	assert.True(t, a.MutatesDataEdge(CallEdge{CalleeName: "createOrder"}))
	assert.False(t, a.MutatesDataEdge(CallEdge{CalleeName: "formatDate"}))
	assert.True(t, a.MutatesDataEdge(CallEdge{CalleeName: "makeOrder", TargetName: "createOrder"}))
	assert.False(t, a.MutatesDataEdge(CallEdge{CalleeName: "fmt", TargetName: "formatDate"}))

	assert.True(t, a.IsAsyncCallEdge(CallEdge{IsAsync: true}))
}

func TestAnalyzer_Stats(t *testing.T) {
	t.Parallel()

	a, _ := newFixture(t)

	stats := a.Stats()
	assert.Equal(t, 4, stats.Files)
	assert.Equal(t, 4, stats.Parsed)
	assert.Zero(t, stats.Failed)
	assert.Len(t, a.Files(), 4)
}

func newFixture(t *testing.T) (*Analyzer, string) {
	t.Helper()

	root := files.Canonical(t.TempDir())
	writeSource(t, root, "tsconfig.json", tsconfig)
	writeSource(t, root, "src/handler.ts", handlerSource)
	writeSource(t, root, "src/util.ts", utilSource)
	writeSource(t, root, "src/legacy.js", legacySource)
	writeSource(t, root, "src/lib/db/index.ts", "export default { query() {} };\n")
	writeSource(t, root, "node_modules/lodash/index.js", "module.exports = {};\n")

	return newAnalyzer(t, root, config.Default()), root
}

func newAnalyzer(t *testing.T, root string, cfg *config.Config) *Analyzer {
	t.Helper()

	d, err := files.NewDiscovery(root, cfg.Paths.Code, cfg.Paths.Ignore)
	require.NoError(t, err)

	a, err := New(context.Background(), d, cfg, WithConcurrency(2))
	require.NoError(t, err)
	return a
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func keys(m map[string][]CallEdge) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
