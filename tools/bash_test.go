package tools

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
)

func TestBashRunsAllowedCommand(t *testing.T) {
	tool := NewBashTool(10).WithAllowedCommands([]string{"echo"})

	args, _ := json.Marshal(map[string]interface{}{
		"command": "echo",
		"argv":    []string{"hello"},
	})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}
	if strings.TrimSpace(result.Output) != "hello" {
		t.Errorf("unexpected output: %q", result.Output)
	}
}

func TestBashRejectsDisallowedCommand(t *testing.T) {
	tool := NewBashTool(10).WithAllowedCommands([]string{"echo"})

	args, _ := json.Marshal(map[string]string{"command": "rm"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for command outside allowlist")
	}
	if !strings.Contains(result.Error.Error(), "not allowed") {
		t.Errorf("unexpected error: %v", result.Error)
	}
}

func TestBashRejectsDisallowedFlag(t *testing.T) {
	tool := NewBashTool(10).
		WithAllowedCommands([]string{"ls"}).
		WithAllowedFlags([]string{"-l"})

	args, _ := json.Marshal(map[string]interface{}{
		"command": "ls",
		"argv":    []string{"-R"},
	})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for flag outside allowlist")
	}
}

func TestBashArgPattern(t *testing.T) {
	tool := NewBashTool(10).
		WithAllowedCommands([]string{"echo"}).
		WithArgPattern(regexp.MustCompile(`^[a-z]+$`))

	args, _ := json.Marshal(map[string]interface{}{
		"command": "echo",
		"argv":    []string{"ok; rm -rf /"},
	})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for argument outside pattern")
	}
}

func TestBashEmptyCommand(t *testing.T) {
	tool := NewBashTool(10)
	if err := tool.Validate(json.RawMessage(`{"command": " "}`)); err == nil {
		t.Error("expected validation error for blank command")
	}
}

func TestBashNonZeroExit(t *testing.T) {
	tool := NewBashTool(10).WithAllowedCommands([]string{"false"})

	args, _ := json.Marshal(map[string]string{"command": "false"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for non-zero exit")
	}
	if !strings.Contains(result.Error.Error(), "exit code") {
		t.Errorf("unexpected error: %v", result.Error)
	}
}

func TestShellCommandAllowlist(t *testing.T) {
	tool := NewShellTool(10).WithAllowedCommands([]string{"echo"})

	args, _ := json.Marshal(map[string]string{"command": "echo shell"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}
	if strings.TrimSpace(result.Output) != "shell" {
		t.Errorf("unexpected output: %q", result.Output)
	}

	args, _ = json.Marshal(map[string]string{"command": "cat /etc/passwd"})
	result, err = tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for command outside allowlist")
	}
}

func TestRegistryDefaults(t *testing.T) {
	registry, err := WithDefaults()
	if err != nil {
		t.Fatalf("WithDefaults failed: %v", err)
	}

	for _, name := range []string{"read_file", "write_file", "edit_file", "append_file", "grep", "glob", "execute_bash", "execute_shell"} {
		if !registry.Has(name) {
			t.Errorf("default registry missing tool %q", name)
		}
	}

	if err := registry.Register(NewGlobTool(0)); err == nil {
		t.Error("expected error for duplicate registration")
	}
}
