// Grep Tool - Fast repository search via ripgrep.
//
// Information Hiding:
// - Ripgrep command construction hidden
// - Output parsing abstracted
// - Error handling internalized

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// GrepTool provides fast file searching via ripgrep.
type GrepTool struct {
	BaseTool
	timeoutSecs       uint64
	defaultMaxResults int
}

// NewGrepTool creates a new grep tool with the given timeout.
func NewGrepTool(timeoutSecs uint64) *GrepTool {
	return &GrepTool{
		timeoutSecs:       timeoutSecs,
		defaultMaxResults: 200,
	}
}

// WithMaxResults sets the default maximum results.
func (t *GrepTool) WithMaxResults(max int) *GrepTool {
	t.defaultMaxResults = max
	return t
}

// Metadata returns the tool metadata.
func (t *GrepTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "grep",
		Description: "Search file contents using ripgrep (rg). Returns matching lines with file names and line numbers.",
		Parameters: []ToolParameter{
			{Name: "pattern", ParamType: "string", Description: "The regex pattern to search for", Required: true},
			{Name: "path", ParamType: "string", Description: "Path to search in (default: current directory)", Required: false},
			{Name: "glob", ParamType: "array", Description: "Glob patterns to filter files", Required: false, Items: map[string]interface{}{"type": "string"}},
			{Name: "case_sensitive", ParamType: "boolean", Description: "Case sensitive search (default: true)", Required: false},
			{Name: "fixed_strings", ParamType: "boolean", Description: "Treat pattern as literal string", Required: false},
			{Name: "max_results", ParamType: "integer", Description: "Maximum matching lines per file", Required: false},
			{Name: "context", ParamType: "integer", Description: "Lines of context around matches (-C flag)", Required: false},
		},
	}
}

type grepArgs struct {
	Pattern       string   `json:"pattern"`
	Path          string   `json:"path"`
	Glob          []string `json:"glob"`
	CaseSensitive *bool    `json:"case_sensitive"`
	FixedStrings  *bool    `json:"fixed_strings"`
	MaxResults    *int     `json:"max_results"`
	Context       *int     `json:"context"`
}

// Validate validates the arguments.
func (t *GrepTool) Validate(args json.RawMessage) error {
	var a grepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Pattern) == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	return nil
}

// Execute runs the ripgrep search. No matches is a success with empty output,
// matching rg's exit code 1 semantics.
func (t *GrepTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a grepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if strings.TrimSpace(a.Pattern) == "" {
		return FailureResultf("pattern cannot be empty"), nil
	}

	// Build rg arguments
	rgArgs := []string{"--no-messages", "--color=never", "--line-number"}

	// Context lines around matches
	if a.Context != nil && *a.Context > 0 {
		rgArgs = append(rgArgs, "-C", fmt.Sprintf("%d", *a.Context))
	}

	// Max results - limits matching lines per file
	maxCount := t.defaultMaxResults
	if a.MaxResults != nil && *a.MaxResults > 0 {
		maxCount = *a.MaxResults
	}
	if maxCount > 0 {
		rgArgs = append(rgArgs, "--max-count", fmt.Sprintf("%d", maxCount))
	}

	// Case sensitivity
	if a.CaseSensitive != nil && !*a.CaseSensitive {
		rgArgs = append(rgArgs, "-i")
	}

	// Fixed strings
	if a.FixedStrings != nil && *a.FixedStrings {
		rgArgs = append(rgArgs, "-F")
	}

	// Glob patterns
	for _, g := range a.Glob {
		if strings.TrimSpace(g) != "" {
			rgArgs = append(rgArgs, "-g", g)
		}
	}

	// Search path
	searchPath := a.Path
	if searchPath == "" {
		searchPath = "."
	}

	// End options, then pattern and path
	rgArgs = append(rgArgs, "--", a.Pattern, searchPath)

	// Create timeout context
	timeout := time.Duration(t.timeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "rg", rgArgs...)
	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return FailureResultf("rg timed out after %d seconds", t.timeoutSecs), nil
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode := exitErr.ExitCode()
			// rg returns exit code 1 when no matches are found
			if exitCode == 1 {
				return SuccessResult(""), nil
			}
			return FailureResultf("rg failed with exit code %d\noutput: %s", exitCode, string(output)), nil
		}
		return FailureResult(fmt.Errorf("failed to execute rg: %w", err)), nil
	}

	return SuccessResult(string(output)), nil
}
