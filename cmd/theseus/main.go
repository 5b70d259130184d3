// Package main provides the theseus CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/richinex/theseus/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider    string
	maxIter     int
	toolRetries uint32
	verbose     bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "theseus",
		Short: "Code Assist agents, local tools, and an MCP task manager",
		Long: `A CLI for running LLM agents against Google's Code Assist API and other
providers, with local file/shell tools, MCP client support, and a sample
MCP task-manager server.

Authenticate once with 'theseus login' (OAuth device flow), then run tasks
or chat. API-key providers (gemini, copilot, iflow, anthropic) read their
keys from the environment instead.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (codeassist, gemini, copilot, iflow, anthropic)")
	rootCmd.PersistentFlags().IntVarP(&maxIter, "max-iter", "m", 10, "Maximum iterations for agent execution")
	rootCmd.PersistentFlags().Uint32Var(&toolRetries, "tool-retries", 3, "Maximum retries for tool execution")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the OAuth device-code flow",
		Long: `Run the OAuth device-code flow: prints a verification URL and user code,
waits for browser approval, then caches the credentials under ~/.gemini.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Login(context.Background())
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the detected auth type and credential cache status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Whoami()
		},
	}
}

func runCmd() *cobra.Command {
	var agentName string
	var systemPrompt string
	var mcpServers []string
	var mcpConfigPath string

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Execute a single task with an agent",
		Long: `Execute a task with an agent using the built-in file and shell tools.
MCP servers can be added with --mcp (repeatable) or --mcp-config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider:    provider,
				MaxIter:     maxIter,
				ToolRetries: toolRetries,
				Verbose:     verbose,
			}
			return cli.RunTask(context.Background(), args[0], agentName, systemPrompt, mcpServers, mcpConfigPath, opts)
		},
	}

	cmd.Flags().StringVarP(&agentName, "agent", "a", "general", "Agent to use (general, file, shell)")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "Override the agent's system prompt")
	cmd.Flags().StringArrayVar(&mcpServers, "mcp", nil, "MCP server command (repeatable)")
	cmd.Flags().StringVar(&mcpConfigPath, "mcp-config", "", "Path to MCP config file")

	return cmd
}

func chatCmd() *cobra.Command {
	var agentName string
	var systemPrompt string
	var sessionID string
	var dbPath string
	var mcpServers []string
	var mcpConfigPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session. Conversation history is persisted
per session in a SQLite database; pass --session to resume one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider:    provider,
				MaxIter:     maxIter,
				ToolRetries: toolRetries,
				Verbose:     verbose,
			}
			return cli.Chat(context.Background(), agentName, systemPrompt, sessionID, dbPath, mcpServers, mcpConfigPath, opts)
		},
	}

	cmd.Flags().StringVarP(&agentName, "agent", "a", "general", "Agent to use (general, file, shell)")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "Override the agent's system prompt")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence (generated if empty)")
	cmd.Flags().StringVar(&dbPath, "db", ".theseus/theseus.db", "Database path for storage")
	cmd.Flags().StringArrayVar(&mcpServers, "mcp", nil, "MCP server command (repeatable)")
	cmd.Flags().StringVar(&mcpConfigPath, "mcp-config", "", "Path to MCP config file")

	return cmd
}

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task-manager MCP server",
	}
	cmd.AddCommand(tasksServeCmd())
	return cmd
}

func tasksServeCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task manager over MCP on stdio",
		Long: `Run the task-manager MCP server on stdin/stdout. Without --db tasks are
kept in memory for the life of the process; with --db they persist in SQLite.

Connect it to an agent in another terminal:
  theseus run "create a task to review the PR" --mcp "theseus tasks serve"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ServeTasks(context.Background(), dbPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite path for task persistence (in-memory if empty)")

	return cmd
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.ListTools(verboseTools)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}
