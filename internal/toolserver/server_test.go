// ABOUTME: Tests for the tool invocation HTTP server.
// ABOUTME: Drives a real listener against an in-process registry.

package toolserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternworks/atelier/internal/tools"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()

	reg := tools.NewRegistry(nil)
	require.NoError(t, reg.RegisterPack(&tools.Pack{
		ID: "test",
		Tools: []*tools.Tool{
			{
				Name: "greet",
				Handler: func(ctx context.Context, args map[string]any) tools.Result {
					name, _ := args["name"].(string)
					return tools.OK("Hello, " + name)
				},
			},
		},
	}))

	srv := NewServer(reg, nil)
	require.NoError(t, srv.Start("127.0.0.1:0"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv, "http://" + srv.Addr()
}

func invoke(t *testing.T, url string, body any) (int, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestServer_InvokeTool(t *testing.T) {
	_, url := startServer(t)

	status, out := invoke(t, url, map[string]any{
		"function_name": "greet",
		"arguments":     map[string]any{"name": "world"},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Hello, world", out["message"])
}

func TestServer_UnknownToolIsFailedResult(t *testing.T) {
	_, url := startServer(t)

	status, out := invoke(t, url, map[string]any{"function_name": "nope"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Unknown tool: nope", out["message"])
}

func TestServer_MissingFunctionName(t *testing.T) {
	_, url := startServer(t)

	status, out := invoke(t, url, map[string]any{"arguments": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, out["success"])
}

func TestServer_InvalidJSON(t *testing.T) {
	_, url := startServer(t)

	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_GetRejected(t *testing.T) {
	_, url := startServer(t)

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_OptionsPreflight(t *testing.T) {
	_, url := startServer(t)

	req, err := http.NewRequest(http.MethodOptions, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_DoubleStartRejected(t *testing.T) {
	srv, _ := startServer(t)
	assert.ErrorIs(t, srv.Start("127.0.0.1:0"), ErrAlreadyRunning)
}

func TestServer_StopIdempotent(t *testing.T) {
	srv, _ := startServer(t)
	ctx := context.Background()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx))
}
