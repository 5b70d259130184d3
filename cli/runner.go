// Command execution for CLI commands.
//
// Information Hiding:
// - Command dispatch logic hidden
// - Agent setup hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/richinex/theseus/agent"
	"github.com/richinex/theseus/auth"
	"github.com/richinex/theseus/config"
	"github.com/richinex/theseus/llm"
	"github.com/richinex/theseus/mcp"
	"github.com/richinex/theseus/mcp/server"
	"github.com/richinex/theseus/storage"
	"github.com/richinex/theseus/taskstore"
	"github.com/richinex/theseus/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider    string
	MaxIter     int
	ToolRetries uint32
	Verbose     bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		MaxIter:     10,
		ToolRetries: 3,
		Verbose:     false,
	}
}

// Login runs the OAuth device-code flow and caches the credentials.
func Login(ctx context.Context) error {
	authorizer := auth.NewDeviceAuthorizer()
	creds, err := authorizer.Login(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("Login successful. Credentials cached")
	if !creds.Expiry.IsZero() {
		fmt.Printf(" (access token expires %s)", creds.Expiry.Format("2006-01-02 15:04:05"))
	}
	fmt.Println(".")
	return nil
}

// Whoami reports the detected auth type and credential cache status.
func Whoami() error {
	authType := auth.DefaultAuthType()
	fmt.Printf("Auth type: %s\n", authType)

	if err := auth.ValidateAuthType(authType); err != nil {
		fmt.Printf("Validation: %v\n", err)
	} else {
		fmt.Println("Validation: ok")
	}

	creds, err := auth.LoadCredentials()
	switch {
	case err != nil:
		fmt.Printf("Credential cache: unreadable (%v)\n", err)
	case creds == nil:
		fmt.Println("Credential cache: not found (run 'theseus login')")
	case creds.Valid():
		fmt.Printf("Credential cache: valid until %s\n", creds.Expiry.Format("2006-01-02 15:04:05"))
	case creds.RefreshToken != "":
		fmt.Println("Credential cache: expired, refresh token available")
	default:
		fmt.Println("Credential cache: expired (run 'theseus login')")
	}
	return nil
}

// RunTask executes a single task with an agent.
func RunTask(ctx context.Context, task, agentName, systemPrompt string, mcpServers []string, mcpConfigPath string, opts Options) error {
	provider, err := createProvider(opts.Provider)
	if err != nil {
		return err
	}

	serverCmds, err := loadMCPServers(mcpServers, mcpConfigPath, opts.Verbose)
	if err != nil {
		return err
	}
	conn := connectMCPServers(ctx, serverCmds, opts.Verbose)
	defer conn.Close()

	toolConfig := tools.ToolConfig{MaxRetries: opts.ToolRetries}
	a, err := CreateAgent(agentName, systemPrompt, provider, toolConfig, conn.tools)
	if err != nil {
		return err
	}

	if opts.Verbose {
		a = a.Verbose(true)
	}

	fmt.Printf("Running task with %s agent...\n\n", agentName)

	response := a.Execute(ctx, task, opts.MaxIter)

	switch response.Type {
	case agent.ResponseSuccess:
		if opts.Verbose {
			printAgentSteps(response.Steps)
		}
		fmt.Printf("%s\n\n", response.Result)
		if len(response.Steps) > 0 {
			fmt.Printf("(%d steps)\n", len(response.Steps))
		}
		return nil
	case agent.ResponseFailure:
		fmt.Fprintf(os.Stderr, "Error: %s\n", response.Error)
		return fmt.Errorf("task failed: %s", response.Error)
	case agent.ResponseTimeout:
		fmt.Printf("Timeout. Partial result:\n%s\n", response.PartialResult)
		return fmt.Errorf("task timed out")
	default:
		return fmt.Errorf("unknown response type: %v", response.Type)
	}
}

// Chat starts an interactive chat session. A generated session ID is used
// when none is given, so transcripts are still persisted and resumable.
func Chat(ctx context.Context, agentName, systemPrompt, sessionID, dbPath string, mcpServers []string, mcpConfigPath string, opts Options) error {
	provider, err := createProvider(opts.Provider)
	if err != nil {
		return err
	}

	serverCmds, err := loadMCPServers(mcpServers, mcpConfigPath, opts.Verbose)
	if err != nil {
		return err
	}
	conn := connectMCPServers(ctx, serverCmds, opts.Verbose)
	defer conn.Close()

	toolConfig := tools.ToolConfig{MaxRetries: opts.ToolRetries}
	a, err := CreateAgent(agentName, systemPrompt, provider, toolConfig, conn.tools)
	if err != nil {
		return err
	}

	if opts.Verbose {
		a = a.Verbose(true)
	}

	session := sessionID
	if session == "" {
		session = uuid.NewString()
	}

	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	history, err := store.Load(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) > 0 {
		fmt.Printf("Resuming session '%s' (%d messages)\n\n", session, len(history))
	} else {
		fmt.Printf("Session '%s'\n\n", session)
	}

	fmt.Printf("Chat with %s agent. Type 'exit' to quit.\n\n", agentName)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		response := a.ExecuteWithHistory(ctx, input, history, opts.MaxIter)

		switch response.Type {
		case agent.ResponseSuccess:
			fmt.Printf("\n%s\n\n", response.Result)

			history = append(history,
				llm.ChatMessage{Role: "user", Content: input},
				llm.ChatMessage{Role: "assistant", Content: response.Result},
			)

			if err := store.Save(ctx, session, history); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save history: %v\n", err)
			}
		case agent.ResponseFailure:
			fmt.Fprintf(os.Stderr, "\nError: %s\n\n", response.Error)
		case agent.ResponseTimeout:
			fmt.Printf("\nTimeout: %s\n\n", response.PartialResult)
		}
	}

	return scanner.Err()
}

// ServeTasks runs the task-manager MCP server on stdin/stdout.
// With an empty dbPath tasks live in memory for the life of the process.
func ServeTasks(ctx context.Context, dbPath string) error {
	var store taskstore.Store
	if dbPath != "" {
		sqlStore, err := taskstore.OpenSqlite(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open task database: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	} else {
		store = taskstore.NewMemoryStore()
	}

	registry := tools.NewRegistry()
	for _, tool := range taskstore.Tools(store) {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register task tool: %w", err)
		}
	}

	// Progress goes to stderr; stdout carries the protocol.
	fmt.Fprintln(os.Stderr, "task-manager MCP server listening on stdio")

	srv := server.New("theseus-tasks", Version, registry)
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}

// ListTools prints the built-in tools.
func ListTools(verbose bool) {
	registry, err := tools.WithDefaults()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	fmt.Println("Available tools:")
	fmt.Println()

	for _, meta := range registry.List() {
		fmt.Printf("  %s\n", meta.Name)
		fmt.Printf("    %s\n", meta.Description)

		if verbose && len(meta.Parameters) > 0 {
			fmt.Println("    Parameters:")
			for _, param := range meta.Parameters {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Printf("      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
			}
		}
		fmt.Println()
	}
}

// Helper functions

// Version is reported in the task server's serverInfo.
const Version = "0.1.0"

// loadMCPServers loads MCP server commands from config and merges with explicit list.
func loadMCPServers(mcpServers []string, mcpConfigPath string, verbose bool) ([]string, error) {
	allServers := mcpServers
	if mcpConfigPath == "" {
		return allServers, nil
	}

	cfg, err := mcp.LoadConfig(mcpConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load MCP config: %w", err)
	}

	allServers = append(allServers, cfg.ServerCommands()...)
	if verbose {
		fmt.Printf("Loaded %d MCP servers from config\n", len(cfg.MCPServers))
	}
	return allServers, nil
}

// mcpConnection holds MCP managers and discovered tools.
type mcpConnection struct {
	managers []*mcp.ToolManager
	tools    []tools.Tool
}

// Close closes all MCP managers.
func (c *mcpConnection) Close() {
	for _, m := range c.managers {
		m.Close()
	}
}

// connectMCPServers connects to MCP servers and discovers their tools.
func connectMCPServers(ctx context.Context, serverCmds []string, verbose bool) *mcpConnection {
	conn := &mcpConnection{}

	for _, serverCmd := range serverCmds {
		parts := strings.Fields(serverCmd)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		if verbose {
			fmt.Printf("Connecting to MCP server: %s\n", serverCmd)
		}

		manager, err := mcp.DiscoverTools(ctx, cmd, args...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to connect to MCP server '%s': %v\n", serverCmd, err)
			continue
		}

		conn.managers = append(conn.managers, manager)
		conn.tools = append(conn.tools, manager.Tools()...)

		if verbose {
			fmt.Printf("Discovered %d tools from MCP server\n", len(manager.Tools()))
		}
	}

	return conn
}

func createProvider(providerName string) (llm.Provider, error) {
	if providerName == "" {
		providerName = llm.ProviderCodeAssist.String()
	}

	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, err
	}

	settings, err := config.New(providerName)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		FromEnv()
}

const maxAgentObservationLen = 400

func printAgentSteps(steps []agent.Step) {
	fmt.Println("--- Steps ---")
	for _, step := range steps {
		fmt.Printf("[%d] %s\n", step.Iteration, step.Thought)
		if step.Action != nil {
			fmt.Printf("    Action: %s\n", *step.Action)
		}
		if step.Observation != nil {
			obs := truncateString(*step.Observation, maxAgentObservationLen)
			fmt.Printf("    Observation: %s\n", obs)
		}
		fmt.Println()
	}
	fmt.Println("-------------")
	fmt.Println()
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
