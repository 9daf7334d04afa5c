// ABOUTME: Tests for the files pack: listing, reading, and searching.
// ABOUTME: Exercises root confinement and result shapes end to end.

package builtins

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternworks/atelier/internal/tools"
)

func newFilesRegistry(t *testing.T, root string) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry(nil)
	require.NoError(t, reg.RegisterPack(FilesPack(root)))
	return reg
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestFilesPack_List(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "readme.md", "# hi\n")
	writeFile(t, root, "assets/logo.png", "png")

	reg := newFilesRegistry(t, root)

	res := reg.Execute(context.Background(), "list_project_files", nil)
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, []string{"main.go", "readme.md"}, res["files"])
	assert.Equal(t, []string{"assets"}, res["directories"])
}

func TestFilesPack_ListWithFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "")
	writeFile(t, root, "b.go", "")
	writeFile(t, root, "c.txt", "")

	reg := newFilesRegistry(t, root)

	res := reg.Execute(context.Background(), "list_project_files", map[string]any{"filter": "*.go"})
	require.True(t, res.Success())
	assert.Equal(t, []string{"a.go", "b.go"}, res["files"])
}

func TestFilesPack_ListMissingDir(t *testing.T) {
	reg := newFilesRegistry(t, t.TempDir())

	res := reg.Execute(context.Background(), "list_project_files", map[string]any{"dir": "nope"})
	assert.False(t, res.Success())
	assert.Contains(t, res.Message(), "Could not open directory")
}

func TestFilesPack_Read(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", "one\ntwo\nthree\n")

	reg := newFilesRegistry(t, root)

	res := reg.Execute(context.Background(), "read_file_content", map[string]any{"path": "notes.txt"})
	require.True(t, res.Success())
	assert.Equal(t, "one\ntwo\nthree\n", res["content"])
}

func TestFilesPack_ReadLineRange(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", "one\ntwo\nthree\nfour\n")

	reg := newFilesRegistry(t, root)

	// JSON numbers arrive as float64; the decoder must tolerate that.
	res := reg.Execute(context.Background(), "read_file_content", map[string]any{
		"path":       "notes.txt",
		"start_line": float64(2),
		"end_line":   float64(3),
	})
	require.True(t, res.Success())
	assert.Equal(t, "two\nthree\n", res["content"])
}

func TestFilesPack_ReadMissingPath(t *testing.T) {
	reg := newFilesRegistry(t, t.TempDir())

	res := reg.Execute(context.Background(), "read_file_content", nil)
	assert.False(t, res.Success())
	assert.Equal(t, "Missing 'path' argument.", res.Message())
}

func TestFilesPack_EscapeRejected(t *testing.T) {
	reg := newFilesRegistry(t, t.TempDir())

	for _, path := range []string{"../secret", "a/../../secret", "/etc/passwd"} {
		res := reg.Execute(context.Background(), "read_file_content", map[string]any{"path": path})
		assert.False(t, res.Success(), "path %q should be rejected", path)
	}
}

func TestFilesPack_Search(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\nfunc Hello() {}\n")
	writeFile(t, root, "sub/b.go", "package b\n// hello again\n")
	writeFile(t, root, ".git/config", "hello = hidden\n")

	reg := newFilesRegistry(t, root)

	res := reg.Execute(context.Background(), "search_project_files", map[string]any{"query": "hello"})
	require.True(t, res.Success())

	matches := res["matches"].([]searchMatch)
	require.Len(t, matches, 2)
	paths := []string{matches[0].Path, matches[1].Path}
	assert.Contains(t, paths, "a.go")
	assert.Contains(t, paths, "sub/b.go")
	for _, m := range matches {
		assert.Greater(t, m.Line, 0)
		assert.NotEmpty(t, m.Text)
	}
}

func TestFilesPack_SearchWithFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "target\n")
	writeFile(t, root, "b.txt", "target\n")

	reg := newFilesRegistry(t, root)

	res := reg.Execute(context.Background(), "search_project_files", map[string]any{
		"query":  "target",
		"filter": "*.go",
	})
	require.True(t, res.Success())
	matches := res["matches"].([]searchMatch)
	require.Len(t, matches, 1)
	assert.Equal(t, "a.go", matches[0].Path)
}

func TestFilesPack_SearchMissingQuery(t *testing.T) {
	reg := newFilesRegistry(t, t.TempDir())

	res := reg.Execute(context.Background(), "search_project_files", map[string]any{})
	assert.False(t, res.Success())
	assert.Equal(t, "Missing 'query' argument.", res.Message())
}

func TestSliceLines(t *testing.T) {
	content := "a\nb\nc\n"

	assert.Equal(t, "a\nb\nc\n", sliceLines(content, 0, 0))
	assert.Equal(t, "b\nc\n", sliceLines(content, 2, 0))
	assert.Equal(t, "a\nb\n", sliceLines(content, 1, 2))
	assert.Equal(t, "", sliceLines(content, 10, 20))
	assert.Equal(t, "", sliceLines(content, 3, 2))
}
