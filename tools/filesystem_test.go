package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestReadFileFull(t *testing.T) {
	path := writeTemp(t, "hello.txt", "hello\nworld\n")
	tool := NewReadFileTool(1024)

	args, _ := json.Marshal(map[string]string{"path": path})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}
	if result.Output != "hello\nworld\n" {
		t.Errorf("unexpected output: %q", result.Output)
	}
}

func TestReadFileOffsetLimit(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sb, "line%d\n", i)
	}
	path := writeTemp(t, "lines.txt", sb.String())
	tool := NewReadFileTool(1024)

	tests := []struct {
		name   string
		offset int
		limit  int
		want   string
	}{
		{"middle window", 3, 2, "line3\nline4\n... (6 more lines)"},
		{"from offset to end", 9, 0, "line9\nline10"},
		{"limit only", 0, 2, "line1\nline2\n... (8 more lines)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := map[string]interface{}{"path": path}
			if tt.offset > 0 {
				m["offset"] = tt.offset
			}
			if tt.limit > 0 {
				m["limit"] = tt.limit
			}
			args, _ := json.Marshal(m)
			result, err := tool.Execute(context.Background(), args)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if !result.Success() {
				t.Fatalf("expected success, got error: %v", result.Error)
			}
			if result.Output != tt.want {
				t.Errorf("got %q, want %q", result.Output, tt.want)
			}
		})
	}
}

func TestReadFileOffsetPastEnd(t *testing.T) {
	path := writeTemp(t, "short.txt", "only\n")
	tool := NewReadFileTool(1024)

	args, _ := json.Marshal(map[string]interface{}{"path": path, "offset": 5})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for offset past end of file")
	}
}

func TestReadFileMissing(t *testing.T) {
	tool := NewReadFileTool(1024)
	args, _ := json.Marshal(map[string]string{"path": filepath.Join(t.TempDir(), "nope.txt")})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for missing file")
	}
}

func TestReadFileTooLarge(t *testing.T) {
	path := writeTemp(t, "big.txt", strings.Repeat("x", 100))
	tool := NewReadFileTool(10)

	args, _ := json.Marshal(map[string]string{"path": path})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for oversized file")
	}
	if !strings.Contains(result.Error.Error(), "too large") {
		t.Errorf("unexpected error: %v", result.Error)
	}
}

func TestReadFilePathNotAllowed(t *testing.T) {
	allowed := t.TempDir()
	path := writeTemp(t, "secret.txt", "secret")
	tool := NewReadFileTool(1024).WithAllowedPaths([]string{allowed})

	args, _ := json.Marshal(map[string]string{"path": path})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for path outside allowed prefixes")
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "out.txt")
	tool := NewWriteFileTool(1024)

	args, _ := json.Marshal(map[string]string{"path": path, "content": "written"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back file: %v", err)
	}
	if string(data) != "written" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestWriteFileContentTooLarge(t *testing.T) {
	tool := NewWriteFileTool(5)
	args, _ := json.Marshal(map[string]string{
		"path":    filepath.Join(t.TempDir(), "out.txt"),
		"content": "this is more than five bytes",
	})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for oversized content")
	}
}

func TestEditFileSingleAndAll(t *testing.T) {
	path := writeTemp(t, "edit.txt", "foo bar foo")
	tool := NewEditFileTool(1024)

	// Two occurrences without replace_all should fail
	args, _ := json.Marshal(map[string]interface{}{"path": path, "search": "foo", "replace": "baz"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure when search string is not unique")
	}

	args, _ = json.Marshal(map[string]interface{}{"path": path, "search": "foo", "replace": "baz", "replace_all": true})
	result, err = tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "baz bar baz" {
		t.Errorf("unexpected content after edit: %q", data)
	}
}

func TestAppendFile(t *testing.T) {
	path := writeTemp(t, "log.txt", "first\n")
	tool := NewAppendFileTool(1024)

	args, _ := json.Marshal(map[string]string{"path": path, "content": "second\n"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "first\nsecond\n" {
		t.Errorf("unexpected content after append: %q", data)
	}
}
