package main

import (
	"flag"
	"fmt"
	"os"

	"journal/internal/config"
	"journal/internal/logger"
)

const usageText = `usage: journal [flags] <command> [args]

commands:
  start <conversation> <prompt>   open a session for a conversation
  log <session> <type> <text>     append an entry
  finish <session> [status]       complete a session (completed|crashed)
  pause <session>                 pause a session
  unpause <session>               reactivate a paused session
  checkpoint <session>            summarize and fold the working set
  list                            list sessions
  show <session>                  show session detail
  entries <session>               dump entries
  resume <session>                synthesize resumption context
  tail <session>                  follow new entries on stdout
  watch <session>                 follow a session in the TUI
  repl                            interactive mode

flags:
  -config <path>   config file (JSON)
  -db <path>       database path override
`

func main() {
	var (
		configPath string
		dbPath     string
	)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	flag.StringVar(&configPath, "config", "", "Path to config JSON")
	flag.StringVar(&dbPath, "db", "", "Database path override")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Pretty)

	j, err := buildService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init journal failed: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	cmd, rest := args[0], args[1:]
	if err := dispatch(cmd, rest, cfg, j); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}
