// ABOUTME: Tests for the tool pack registry and execution wrapper.
// ABOUTME: Covers collisions, unknown tools, panic capture, and results.

package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okTool(name string) *Tool {
	return &Tool{
		Name: name,
		Handler: func(_ context.Context, _ map[string]any) Result {
			return OK(name + " ran")
		},
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry(nil)

	require.NoError(t, reg.RegisterPack(&Pack{
		ID:    "pack-a",
		Tools: []*Tool{okTool("alpha"), okTool("beta")},
	}))

	tool, ok := reg.Lookup("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", tool.Name)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	assert.Len(t, reg.Tools(), 2)
}

func TestRegistry_DuplicatePackRejected(t *testing.T) {
	reg := NewRegistry(nil)

	require.NoError(t, reg.RegisterPack(&Pack{ID: "pack-a"}))
	err := reg.RegisterPack(&Pack{ID: "pack-a"})
	assert.ErrorIs(t, err, ErrPackAlreadyRegistered)
}

func TestRegistry_ToolCollisionRejected(t *testing.T) {
	reg := NewRegistry(nil)

	require.NoError(t, reg.RegisterPack(&Pack{ID: "pack-a", Tools: []*Tool{okTool("shared")}}))
	err := reg.RegisterPack(&Pack{ID: "pack-b", Tools: []*Tool{okTool("shared")}})
	require.ErrorIs(t, err, ErrToolCollision)
	assert.Contains(t, err.Error(), "pack-a")

	// The rejected pack must not be partially registered.
	_, ok := reg.Lookup("shared")
	assert.True(t, ok)
	assert.Len(t, reg.Tools(), 1)
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry(nil)

	result := reg.Execute(context.Background(), "nope", nil)
	assert.False(t, result.Success())
	assert.Equal(t, "Unknown tool: nope", result.Message())
}

func TestRegistry_ExecutePassesArguments(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.RegisterPack(&Pack{
		ID: "p",
		Tools: []*Tool{{
			Name: "greet",
			Handler: func(_ context.Context, args map[string]any) Result {
				name, _ := args["name"].(string)
				return OK("hello " + name)
			},
		}},
	}))

	result := reg.Execute(context.Background(), "greet", map[string]any{"name": "ada"})
	assert.True(t, result.Success())
	assert.Equal(t, "hello ada", result.Message())
}

func TestRegistry_ExecuteNilArgsBecomeEmptyMap(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.RegisterPack(&Pack{
		ID: "p",
		Tools: []*Tool{{
			Name: "inspect",
			Handler: func(_ context.Context, args map[string]any) Result {
				require.NotNil(t, args)
				return OK("ok")
			},
		}},
	}))

	result := reg.Execute(context.Background(), "inspect", nil)
	assert.True(t, result.Success())
}

func TestRegistry_ExecuteCapturesPanic(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.RegisterPack(&Pack{
		ID: "p",
		Tools: []*Tool{{
			Name: "explode",
			Handler: func(_ context.Context, _ map[string]any) Result {
				panic("boom")
			},
		}},
	}))

	result := reg.Execute(context.Background(), "explode", nil)
	assert.False(t, result.Success())
	assert.Contains(t, result.Message(), "boom")
}

func TestResult_JSONShape(t *testing.T) {
	result := OK("done").With("count", 3)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.JSON()), &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "done", decoded["message"])
	assert.Equal(t, float64(3), decoded["count"])
}

func TestResult_JSONUnserializableDegrades(t *testing.T) {
	result := OK("x").With("bad", make(chan int))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.JSON()), &decoded))
	assert.Equal(t, false, decoded["success"])
}
