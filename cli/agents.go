// Pre-built agent configurations for CLI commands.
//
// Information Hiding:
// - Agent creation details hidden
// - Tool configuration hidden

package cli

import (
	"github.com/richinex/theseus/agent"
	"github.com/richinex/theseus/llm"
	"github.com/richinex/theseus/tools"
)

// AgentType represents available agent types.
type AgentType string

const (
	AgentGeneral AgentType = "general"
	AgentFile    AgentType = "file"
	AgentShell   AgentType = "shell"
)

const (
	defaultMaxFileSize = 1024 * 1024 // 1MB
	defaultTimeout     = 30          // seconds
	defaultGlobResults = 1000
)

// CreateAgent creates an agent by name with the given provider.
// extraTools (e.g. discovered MCP tools) are added after the built-ins;
// duplicates by name are skipped so built-ins win.
func CreateAgent(name string, systemPrompt string, provider llm.Provider, toolConfig tools.ToolConfig, extraTools []tools.Tool) (*agent.Agent, error) {
	var builder *agent.Builder

	switch AgentType(name) {
	case AgentGeneral:
		prompt := systemPrompt
		if prompt == "" {
			prompt = "You are a helpful assistant. Answer questions clearly and concisely."
		}
		builder = agent.NewBuilder("general").
			Description("General assistant").
			SystemPrompt(prompt).
			Tools(fileTools())

	case AgentFile:
		prompt := systemPrompt
		if prompt == "" {
			prompt = `You are a file operations specialist.

Workflow:
1. glob to discover files, grep to locate content across them
2. read_file to load what you found (use offset/limit for large files)
3. write_file / edit_file / append_file to make changes

Never guess file content. Read it first.`
		}
		builder = agent.NewBuilder("file").
			Description("File operations agent with search capabilities").
			SystemPrompt(prompt).
			Tools(fileTools())

	case AgentShell:
		prompt := systemPrompt
		if prompt == "" {
			prompt = "You are a shell command specialist. Execute commands safely and report results."
		}
		builder = agent.NewBuilder("shell").
			Description("Shell command executor").
			SystemPrompt(prompt).
			Tool(tools.NewShellTool(defaultTimeout)).
			Tool(tools.NewBashTool(defaultTimeout))

	default:
		prompt := systemPrompt
		if prompt == "" {
			prompt = "You are a helpful assistant."
		}
		builder = agent.NewBuilder(name).
			Description("Custom agent").
			SystemPrompt(prompt).
			Tools(fileTools())
	}

	builder = addExtraTools(builder, extraTools)

	config := builder.Build()
	a := agent.New(config, provider).WithToolConfig(toolConfig)

	return a, nil
}

// fileTools returns the standard local tool set.
func fileTools() []tools.Tool {
	return []tools.Tool{
		tools.NewReadFileTool(defaultMaxFileSize),
		tools.NewWriteFileTool(defaultMaxFileSize),
		tools.NewEditFileTool(defaultMaxFileSize),
		tools.NewAppendFileTool(defaultMaxFileSize),
		tools.NewGrepTool(defaultTimeout),
		tools.NewGlobTool(defaultGlobResults),
		tools.NewShellTool(defaultTimeout),
	}
}

// addExtraTools appends tools whose names don't collide with built-ins.
func addExtraTools(builder *agent.Builder, extraTools []tools.Tool) *agent.Builder {
	if len(extraTools) == 0 {
		return builder
	}

	seen := make(map[string]bool)
	config := builder.Build()
	for _, t := range config.Tools {
		seen[t.Metadata().Name] = true
	}

	for _, t := range extraTools {
		name := t.Metadata().Name
		if seen[name] {
			continue
		}
		seen[name] = true
		builder = builder.Tool(t)
	}
	return builder
}

// ListAvailableAgents returns the names and descriptions of available agents.
func ListAvailableAgents() []agent.AgentInfo {
	return []agent.AgentInfo{
		{Name: "general", Description: "General assistant - answer questions and provide help"},
		{Name: "file", Description: "File operations - read, write, edit, search with grep/glob"},
		{Name: "shell", Description: "Shell commands - execute terminal commands"},
	}
}
