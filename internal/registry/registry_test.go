package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvp-joe/flowscope/internal/analyzer"
	"github.com/mvp-joe/flowscope/internal/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Registry storage:
// - Save and Load round-trip flows, timestamp and schema version
// - Load of a missing file returns nil without error
// - Save creates the parent directory and leaves no temp files
// - unparseable files and unknown schema versions are ErrRegistryCorrupt
// - StateOf distinguishes absent, fresh and stale
// - the persisted JSON uses the documented field names

func sampleFlow() *flow.Flow {
	step := flow.Step{
		File:     "/repo/app/api/orders/route.ts",
		Function: "GET",
		Line:     3,
		OutgoingEdges: []analyzer.CallEdge{{
			CalleeName:    "createOrder",
			ResolvedFile:  "/repo/services/orders.ts",
			IsAsync:       true,
			ArgumentTexts: []string{"body"},
		}},
		MutatesData: true,
	}
	return &flow.Flow{
		FlowID:    "route_GET_1_abcd1234",
		Kind:      flow.KindRoute,
		EntryStep: step,
		Steps:     []flow.Step{step},
		EndSteps:  []flow.Step{},
	}
}

func TestStorage_SaveAndLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".flowscope", "flow-registry.json")
	s := NewStorage(path)
	assert.False(t, s.Exists())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(New([]*flow.Flow{sampleFlow()}, now)))
	assert.True(t, s.Exists())

	loaded, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, SchemaVersion, loaded.SchemaVersion)
	assert.True(t, now.Equal(loaded.LastUpdated))
	require.Len(t, loaded.Flows, 1)
	assert.Equal(t, sampleFlow(), loaded.Flows[0])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestStorage_LoadMissing(t *testing.T) {
	t.Parallel()

	r, err := NewStorage(filepath.Join(t.TempDir(), "none.json")).Load()
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestStorage_Corrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", "{not json"},
		{"wrong schema", `{"flows": [], "lastUpdated": "2026-01-01T00:00:00Z", "schemaVersion": "0.9.0"}`},
		{"missing schema", `{"flows": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "flow-registry.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			r, err := NewStorage(path).Load()
			assert.Nil(t, r)
			assert.True(t, errors.Is(err, ErrRegistryCorrupt))
		})
	}
}

func TestStateOf(t *testing.T) {
	t.Parallel()

	now := time.Now()
	week := 7 * 24 * time.Hour

	assert.Equal(t, StateAbsent, StateOf(nil, now, week))
	assert.Equal(t, StateFresh, StateOf(New(nil, now.Add(-time.Hour)), now, week))
	assert.Equal(t, StateStale, StateOf(New(nil, now.Add(-8*24*time.Hour)), now, week))
}

func TestRegistry_JSONShape(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(New([]*flow.Flow{sampleFlow()}, time.Unix(0, 0)))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "1.0.0", raw["schemaVersion"])
	assert.Equal(t, "1970-01-01T00:00:00Z", raw["lastUpdated"])

	flows := raw["flows"].([]any)
	f := flows[0].(map[string]any)
	assert.Contains(t, f, "flowId")
	assert.Contains(t, f, "entryStep")
	assert.Contains(t, f, "endSteps")

	step := f["entryStep"].(map[string]any)
	for _, key := range []string{"file", "function", "outgoingEdges", "isEndPoint", "isExternalCall", "mutatesData"} {
		assert.Contains(t, step, key)
	}
	edge := step["outgoingEdges"].([]any)[0].(map[string]any)
	for _, key := range []string{"calleeName", "resolvedFile", "isAsync", "argumentTexts"} {
		assert.Contains(t, edge, key)
	}
}
