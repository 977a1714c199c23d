package main

import (
	"fmt"
	"os"

	"github.com/hpungsan/rutina/internal/config"
	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/logger"
	"github.com/hpungsan/rutina/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"generate": true, "refine": true, "routine": true, "profile": true,
	"feedback": true, "done": true, "close-day": true, "insights": true,
	"events": true, "reminders": true, "people": true,
	"export": true, "import": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
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

func printBanner() {
	fmt.Println(`
   ____        _   _
  |  _ \ _   _| |_(_)_ __   __ _
  | |_) | | | | __| | '_ \ / _' |
  |  _ <| |_| | |_| | | | | (_| |
  |_| \_\\__,_|\__|_|_| |_|\__,_|

  Visual daily routines for autistic children and their caregivers

  Usage: rutina <command> [options]
         rutina --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// No store needed for help or version.
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, "", logger.Nop())
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	if err := config.LoadDotEnv(); err != nil {
		fatal("%v", err)
	}

	baseDir, err := config.BaseDir()
	if err != nil {
		fatal("could not determine data directory: %v", err)
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fatal("failed to create logger: %v", err)
	}
	defer log.Sync()

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	kv, err := db.NewCachedKV(db.NewSQLiteKV(database), cfg.CacheSize)
	if err != nil {
		fatal("failed to create cache: %v", err)
	}

	if isCLIMode() {
		app := newCLIApp(kv, cfg, baseDir, log)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument on a terminal is a typo, not an MCP client.
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'rutina --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	if err := mcp.Run(kv, cfg, baseDir, Version, log); err != nil {
		database.Close()
		fatal("%v", err)
	}
}
