package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hpungsan/tipe/internal/config"
	"github.com/hpungsan/tipe/internal/db"
	"github.com/hpungsan/tipe/internal/logging"
	"github.com/hpungsan/tipe/internal/mcp"
	"github.com/hpungsan/tipe/internal/source"
	"github.com/hpungsan/tipe/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "sync": true,
	"leads": true, "lead": true, "set-leads": true, "next": true, "status": true, "swipe": true, "approved": true,
	"conversations": true, "conversation-add": true, "messages": true, "message-add": true, "toggle-ai": true,
	"meetings": true, "meeting-add": true, "meeting-status": true,
	"posts": true, "post-add": true, "post-update": true,
	"stats": true, "analytics": true, "ask": true,
	"export": true, "import": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args) || strings.HasPrefix(arg, "-")
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	switch args[1] {
	case "--help", "-h", "--version", "-v", "help":
		return true
	}
	return false
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
   _____ ___ ___  ___
  |_   _|_ _| _ \| __|
    | |  | ||  _/| _|
    |_| |___|_|  |___|

  Lead review and outreach store

  Usage: tipe <command> [options]
         tipe serve
         tipe --help

  MCP server mode requires piped input.`)
}

// runtime is everything a command needs: a store loaded from the last
// checkpoint, the configured lead source and the checkpointer that persists
// every change.
type runtime struct {
	db   *sql.DB
	cfg  *config.Config
	st   *store.Store
	src  source.Source
	ckpt *db.Checkpointer
	log  zerolog.Logger
}

// openRuntime initializes baseDir, loads config and restores the last snapshot.
// The returned func detaches the checkpointer and closes the database.
func openRuntime(ctx context.Context, baseDir, workDir, defaultLevel string) (*runtime, func(), error) {
	database, err := db.Init(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cfg, err := config.LoadWithRepo(baseDir, workDir)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	db.ConfigurePool(database, cfg)

	level := cfg.LogLevel
	if level == "" {
		level = defaultLevel
	}
	log := logging.New(logging.Options{Level: level, Out: os.Stderr})

	for _, name := range mcp.ValidateDisabledTools(cfg.DisabledTools) {
		log.Warn().Str("tool", name).Msg("unknown tool in disabled_tools")
	}
	for _, name := range mcp.ValidateDisabledTypes(cfg.DisabledTypes) {
		log.Warn().Str("type", name).Msg("unknown type in disabled_types")
	}

	src, err := source.New(cfg, logging.Component(log, "source"))
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	st := store.New()
	ckpt := db.NewCheckpointer(database, st, logging.Component(log, "checkpoint"))
	if _, err := ckpt.Load(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	detach := ckpt.Attach()

	rt := &runtime{db: database, cfg: cfg, st: st, src: src, ckpt: ckpt, log: log}
	return rt, func() {
		detach()
		database.Close()
	}, nil
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Help and version need no database
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if !isCLIMode(os.Args) && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'tipe --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	workDir, err := os.Getwd()
	if err != nil {
		workDir = homeDir
	}

	level := "warn"
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		level = "info"
	}
	rt, closeRuntime, err := openRuntime(context.Background(), filepath.Join(homeDir, ".tipe"), workDir, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if isCLIMode(os.Args) {
		err = newCLIApp(rt).Run(os.Args)
	} else {
		err = mcp.Run(mcp.NewHandlers(rt.st, rt.cfg, rt.src, logging.Component(rt.log, "mcp")), Version)
	}
	closeRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
