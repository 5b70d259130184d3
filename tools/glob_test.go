package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func globDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := []string{
		"main.go",
		"util.go",
		"notes.txt",
		filepath.Join("pkg", "sub", "deep.go"),
		filepath.Join(".hidden", "secret.go"),
	}
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func runGlob(t *testing.T, pattern, path string) ToolResult {
	t.Helper()
	tool := NewGlobTool(0)
	args, _ := json.Marshal(map[string]string{"pattern": pattern, "path": path})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return result
}

func TestGlobSimplePattern(t *testing.T) {
	dir := globDir(t)
	result := runGlob(t, "*.go", dir)
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}
	if !strings.Contains(result.Output, "main.go") || !strings.Contains(result.Output, "util.go") {
		t.Errorf("expected top-level .go files: %q", result.Output)
	}
	if strings.Contains(result.Output, "deep.go") {
		t.Errorf("simple pattern should not recurse: %q", result.Output)
	}
}

func TestGlobRecursivePattern(t *testing.T) {
	dir := globDir(t)
	result := runGlob(t, "**/*.go", dir)
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}
	if !strings.Contains(result.Output, filepath.Join("pkg", "sub", "deep.go")) {
		t.Errorf("recursive pattern missed nested file: %q", result.Output)
	}
	if strings.Contains(result.Output, "secret.go") {
		t.Errorf("hidden directories should be skipped: %q", result.Output)
	}
	if strings.Contains(result.Output, "notes.txt") {
		t.Errorf("non-matching extension included: %q", result.Output)
	}
}

func TestGlobNoMatches(t *testing.T) {
	dir := globDir(t)
	result := runGlob(t, "*.rs", dir)
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}
	if !strings.Contains(result.Output, "No files found") {
		t.Errorf("expected no-files message: %q", result.Output)
	}
}

func TestGlobMissingPath(t *testing.T) {
	result := runGlob(t, "*.go", filepath.Join(t.TempDir(), "nope"))
	if result.Success() {
		t.Error("expected failure for missing base path")
	}
}

func TestGlobValidate(t *testing.T) {
	tool := NewGlobTool(0)
	if err := tool.Validate(json.RawMessage(`{"pattern": ""}`)); err == nil {
		t.Error("expected error for empty pattern")
	}
	if err := tool.Validate(json.RawMessage(`{"pattern": "*.go"}`)); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}
}
