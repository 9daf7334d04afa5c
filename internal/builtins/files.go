// ABOUTME: Files pack exposes read-only project file access as tools.
// ABOUTME: All paths are confined to the configured project root.

package builtins

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/lanternworks/atelier/internal/tools"
)

const (
	// maxReadBytes bounds read_file_content so a single tool result
	// cannot balloon the conversation payload.
	maxReadBytes = 1 << 20

	// maxSearchMatches caps search_project_files output.
	maxSearchMatches = 100
)

// FilesPack creates the files pack rooted at the given directory.
func FilesPack(root string) *tools.Pack {
	f := &fileHandlers{root: root}
	return &tools.Pack{
		ID: "builtin:files",
		Tools: []*tools.Tool{
			{
				Name:        "list_project_files",
				Description: "List files and directories under a project path",
				InputSchema: `{"type":"object","properties":{"dir":{"type":"string"},"filter":{"type":"string"}}}`,
				Handler:     f.List,
			},
			{
				Name:        "read_file_content",
				Description: "Read the content of a project file",
				InputSchema: `{"type":"object","properties":{"path":{"type":"string"},"start_line":{"type":"integer"},"end_line":{"type":"integer"}},"required":["path"]}`,
				Handler:     f.Read,
			},
			{
				Name:        "search_project_files",
				Description: "Search project file contents for a query string",
				InputSchema: `{"type":"object","properties":{"query":{"type":"string"},"dir":{"type":"string"},"filter":{"type":"string"}},"required":["query"]}`,
				Handler:     f.Search,
			},
		},
	}
}

type fileHandlers struct {
	root string
}

// resolve maps a tool-supplied relative path onto the project root.
// Absolute paths and traversal outside the root are rejected.
func (f *fileHandlers) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", rel)
	}
	clean := path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path escapes the project root: %s", rel)
	}
	return filepath.Join(f.root, filepath.FromSlash(clean)), nil
}

type listFilesInput struct {
	Dir    string `mapstructure:"dir"`
	Filter string `mapstructure:"filter"`
}

func (f *fileHandlers) List(ctx context.Context, args map[string]any) tools.Result {
	var in listFilesInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Fail(err.Error())
	}
	if in.Dir == "" {
		in.Dir = "."
	}

	dir, err := f.resolve(in.Dir)
	if err != nil {
		return tools.Fail(err.Error())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return tools.Fail("Could not open directory: " + in.Dir)
	}

	files := []string{}
	dirs := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			dirs = append(dirs, name)
			continue
		}
		if in.Filter != "" {
			ok, matchErr := path.Match(in.Filter, name)
			if matchErr != nil {
				return tools.Fail("Invalid filter pattern: " + in.Filter)
			}
			if !ok {
				continue
			}
		}
		files = append(files, name)
	}
	sort.Strings(files)
	sort.Strings(dirs)

	return tools.OK("Listed " + in.Dir).
		With("files", files).
		With("directories", dirs)
}

type readFileInput struct {
	Path      string `mapstructure:"path"`
	StartLine int    `mapstructure:"start_line"`
	EndLine   int    `mapstructure:"end_line"`
}

func (f *fileHandlers) Read(ctx context.Context, args map[string]any) tools.Result {
	var in readFileInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Fail(err.Error())
	}
	if in.Path == "" {
		return tools.Fail("Missing 'path' argument.")
	}

	full, err := f.resolve(in.Path)
	if err != nil {
		return tools.Fail(err.Error())
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return tools.Fail("Failed to read file: " + in.Path)
	}
	if info.Size() > maxReadBytes {
		return tools.Fail(fmt.Sprintf("File too large to read: %s (%d bytes)", in.Path, info.Size()))
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return tools.Fail("Failed to read file: " + in.Path)
	}
	content := string(data)

	if in.StartLine > 0 || in.EndLine > 0 {
		content = sliceLines(content, in.StartLine, in.EndLine)
	}

	return tools.OK("Read " + in.Path).With("content", content)
}

// sliceLines keeps lines start..end inclusive, 1-based. A zero start
// means line 1; a zero or negative end means through the last line.
func sliceLines(content string, start, end int) string {
	if start < 1 {
		start = 1
	}
	lines := strings.Split(content, "\n")
	if start > len(lines) {
		return ""
	}
	if end < 1 || end > len(lines) {
		end = len(lines)
	}
	if end < start {
		return ""
	}
	out := strings.Join(lines[start-1:end], "\n")
	if end < len(lines) {
		out += "\n"
	}
	return out
}

type searchFilesInput struct {
	Query  string `mapstructure:"query"`
	Dir    string `mapstructure:"dir"`
	Filter string `mapstructure:"filter"`
}

// searchMatch is one line-level hit from search_project_files.
type searchMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

func (f *fileHandlers) Search(ctx context.Context, args map[string]any) tools.Result {
	var in searchFilesInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Fail(err.Error())
	}
	if in.Query == "" {
		return tools.Fail("Missing 'query' argument.")
	}
	if in.Dir == "" {
		in.Dir = "."
	}

	dir, err := f.resolve(in.Dir)
	if err != nil {
		return tools.Fail(err.Error())
	}

	query := strings.ToLower(in.Query)
	matches := []searchMatch{}
	truncated := false

	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && p != dir {
				return fs.SkipDir
			}
			return nil
		}
		if in.Filter != "" {
			if ok, _ := path.Match(in.Filter, name); !ok {
				return nil
			}
		}
		rel, relErr := filepath.Rel(f.root, p)
		if relErr != nil {
			return nil
		}
		if found := searchFile(p, filepath.ToSlash(rel), query, &matches); found && len(matches) >= maxSearchMatches {
			truncated = true
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil && ctx.Err() != nil {
		return tools.Fail("Search cancelled.")
	}

	result := tools.OK(fmt.Sprintf("Found %d match(es) for %q", len(matches), in.Query)).
		With("matches", matches)
	if truncated {
		result.With("truncated", true)
	}
	return result
}

// searchFile appends case-insensitive substring hits from one file.
// Binary files (NUL in the first chunk) are skipped.
func searchFile(full, rel, query string, matches *[]searchMatch) bool {
	file, err := os.Open(full)
	if err != nil {
		return false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	found := false
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 && strings.ContainsRune(line, '\x00') {
			return false
		}
		if strings.Contains(strings.ToLower(line), query) {
			*matches = append(*matches, searchMatch{Path: rel, Line: lineNo, Text: strings.TrimSpace(line)})
			found = true
			if len(*matches) >= maxSearchMatches {
				return true
			}
		}
	}
	return found
}

// decodeArgs maps a tool-call argument map onto a typed input struct.
// Weak typing tolerates JSON numbers arriving as float64.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}
