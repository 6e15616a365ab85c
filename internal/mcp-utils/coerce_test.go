package mcputils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockArgumentGetter implements ArgumentGetter for testing
type mockArgumentGetter struct {
	args map[string]any
}

func (m *mockArgumentGetter) GetArguments() map[string]any {
	return m.args
}

type testRequest struct {
	Files   []string      `json:"files"`
	Staged  bool          `json:"staged"`
	Refresh *bool         `json:"refresh"`
	Limit   int           `json:"limit"`
	Range   string        `json:"range"`
	Timeout time.Duration `json:"timeout"`
}

func TestCoerceBindArguments(t *testing.T) {
	t.Parallel()

	t.Run("JSON strings", func(t *testing.T) {
		var got testRequest
		err := CoerceBindArguments(&mockArgumentGetter{args: map[string]any{
			"files":   `["services/orders.ts", "lib/format.ts"]`,
			"staged":  "true",
			"refresh": "false",
			"limit":   "10",
			"timeout": "2s",
		}}, &got)
		require.NoError(t, err)

		assert.Equal(t, []string{"services/orders.ts", "lib/format.ts"}, got.Files)
		assert.True(t, got.Staged)
		require.NotNil(t, got.Refresh)
		assert.False(t, *got.Refresh)
		assert.Equal(t, 10, got.Limit)
		assert.Equal(t, 2*time.Second, got.Timeout)
	})

	t.Run("proper types", func(t *testing.T) {
		var got testRequest
		err := CoerceBindArguments(&mockArgumentGetter{args: map[string]any{
			"files":  []any{"a.ts"},
			"staged": true,
			"limit":  float64(3),
			"range":  "main..HEAD",
		}}, &got)
		require.NoError(t, err)

		assert.Equal(t, []string{"a.ts"}, got.Files)
		assert.True(t, got.Staged)
		assert.Nil(t, got.Refresh, "absent optional stays nil")
		assert.Equal(t, 3, got.Limit)
		assert.Equal(t, "main..HEAD", got.Range)
	})

	t.Run("single string becomes one-element slice", func(t *testing.T) {
		var got testRequest
		require.NoError(t, CoerceBindArguments(&mockArgumentGetter{args: map[string]any{
			"files": "services/orders.ts",
		}}, &got))
		assert.Equal(t, []string{"services/orders.ts"}, got.Files)
	})

	t.Run("nil arguments", func(t *testing.T) {
		var got testRequest
		require.NoError(t, CoerceBindArguments(&mockArgumentGetter{}, &got))
		assert.Empty(t, got.Files)
	})

	t.Run("invalid number", func(t *testing.T) {
		var got testRequest
		err := CoerceBindArguments(&mockArgumentGetter{args: map[string]any{"limit": "many"}}, &got)
		assert.Error(t, err)
	})
}
