package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/akademi4eg/aka-assistant/internal/cache"
	"github.com/akademi4eg/aka-assistant/internal/config"
	"github.com/akademi4eg/aka-assistant/internal/db"
	"github.com/akademi4eg/aka-assistant/internal/document"
	"github.com/akademi4eg/aka-assistant/internal/llm"
	"github.com/akademi4eg/aka-assistant/internal/logger"
	"github.com/akademi4eg/aka-assistant/internal/mcp"
	"github.com/akademi4eg/aka-assistant/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"embed": true, "summarize": true, "summary": true, "cache": true, "web": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	// Global flags and help/version → CLI
	if len(arg) > 1 && arg[0] == '-' {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
    _    _  __    _
   / \  | |/ /   / \
  / _ \ | ' /   / _ \
 / ___ \| . \  / ___ \
/_/   \_\_|\_\/_/   \_\

  Cached embeddings and resumable document summaries

  Usage: aka <command> [options]
         aka --help

  MCP server mode requires piped input.`)
}

// unavailableLLM stands in for the API client when it cannot be built,
// so commands that never call it still work.
type unavailableLLM struct{ err error }

func (u unavailableLLM) Embed(context.Context, string, string) ([]float64, error) {
	return nil, u.err
}

func (u unavailableLLM) Chat(context.Context, string, []llm.Message) (*llm.ChatResult, error) {
	return nil, u.err
}

// buildDeps wires the cache, API client and fetcher from cfg.
func buildDeps(database *sql.DB, cfg *config.Config) (*ops.Deps, error) {
	store, err := cache.New(cfg.Storage, cfg.MemCacheSize)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	deps := &ops.Deps{
		DB:      database,
		Config:  cfg,
		Store:   store,
		Fetcher: document.NewFetcher(cfg.DocsDir, timeout),
	}

	client, err := llm.NewClient(llm.Config{
		APIKeyEnv: cfg.APIKeyEnv,
		BaseURL:   cfg.BaseURL,
		Timeout:   timeout,
	})
	if err != nil {
		deps.Embedder = unavailableLLM{err: err}
		deps.Chat = unavailableLLM{err: err}
		return deps, nil
	}
	deps.Embedder = client
	deps.Chat = client
	return deps, nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	// A missing .env is fine; the environment may already carry the key
	_ = godotenv.Load()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fail("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, ".aka")

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fail("failed to load config: %v", err)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fail("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	deps, err := buildDeps(database, cfg)
	if err != nil {
		fail("%v", err)
	}

	// Ctrl-C stops a summary between chunks; progress so far is kept
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if isCLIMode() {
		app := newCLIApp(deps)
		if err := app.RunContext(ctx, os.Args); err != nil {
			stop()
			database.Close()
			fail("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'aka --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default). stdout carries the protocol, logs go to stderr.
	log := logger.New(loggerConfig(os.Getenv("AKA_LOG_LEVEL"), os.Getenv("AKA_LOG_JSON") != ""))
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		database.Close()
		fail("unknown tools in disabled_tools: %s", strings.Join(unknown, ", "))
	}
	if err := mcp.Run(deps, Version, log); err != nil {
		database.Close()
		fail("%v", err)
	}
}
