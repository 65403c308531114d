package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"journal/internal/config"
	"journal/internal/journal"
	"journal/internal/record"
)

var replCommands = []string{
	"/start <conversation> <prompt>  open a session and make it current",
	"/use <session>                  switch the current session",
	"/log <type> <text>              append an entry to the current session",
	"/ckpt                           checkpoint the current session",
	"/finish [completed|crashed]     finish the current session",
	"/pause                          pause the current session",
	"/resume                         print resumption context",
	"/list                           list sessions",
	"/show                           show the current session",
	"/help                           show commands",
	"/exit                           quit",
}

func printREPLCommands(out io.Writer) {
	if out == nil {
		return
	}
	fmt.Fprintln(out, "commands:")
	for _, cmd := range replCommands {
		fmt.Fprintf(out, "  %s\n", cmd)
	}
}

// runREPL 交互式生产者：无前缀输入记为 thinking 条目
// runREPL is the interactive producer: bare input is logged as a thinking
// entry
func runREPL(ctx context.Context, cfg config.Config, j *journal.Journal) error {
	historyPath := filepath.Join(filepath.Dir(cfg.Storage.DBPath), "repl.history")
	input, inputErr := newLineInput(historyPath)
	if inputErr != nil {
		fmt.Fprintf(os.Stderr, "line editor unavailable, fallback to basic input: %v\n", inputErr)
	}
	defer input.Close()

	var currentSessionID string
	printREPLCommands(os.Stdout)

	for {
		prompt := "journal> "
		if currentSessionID != "" {
			prompt = currentSessionID + "> "
		}
		line, err := input.ReadLine(prompt)
		if err != nil {
			switch {
			case errors.Is(err, readline.ErrInterrupt):
				fmt.Fprintln(os.Stdout)
				continue
			case errors.Is(err, io.EOF):
				fmt.Fprintln(os.Stderr, "\nexit")
				return nil
			default:
				return fmt.Errorf("read input: %w", err)
			}
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "/") {
			exit := handleREPLCommand(ctx, j, text, &currentSessionID)
			if exit {
				return nil
			}
			continue
		}

		if currentSessionID == "" {
			fmt.Println("no current session; /start or /use one first")
			continue
		}
		e, err := j.LogEntry(ctx, currentSessionID, record.EntryThinking,
			record.ThinkingContent{Text: text}, record.ImportanceNormal)
		if err != nil {
			fmt.Printf("log failed: %v\n", err)
			continue
		}
		fmt.Printf("entry %d (~%d tokens)\n", e.Seq, e.TokenEstimate)
	}
}

func handleREPLCommand(ctx context.Context, j *journal.Journal, input string, currentSessionID *string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	switch cmd {
	case "/exit", "/quit":
		return true
	case "/help":
		printREPLCommands(os.Stdout)
	case "/start":
		if len(parts) < 3 {
			fmt.Println("usage: /start <conversation> <prompt>")
			return false
		}
		sess, err := j.CreateSession(ctx, parts[1], strings.Join(parts[2:], " "))
		if err != nil {
			fmt.Printf("start failed: %v\n", err)
			return false
		}
		*currentSessionID = sess.ID
		fmt.Printf("session: %s\n", sess.ID)
	case "/use":
		if len(parts) < 2 {
			fmt.Println("usage: /use <session>")
			return false
		}
		sess, err := j.GetSession(ctx, parts[1])
		if err != nil {
			fmt.Printf("load failed: %v\n", err)
			return false
		}
		*currentSessionID = sess.ID
		fmt.Printf("using session: %s (%s)\n", sess.ID, sess.Status)
	case "/log":
		if *currentSessionID == "" {
			fmt.Println("no current session")
			return false
		}
		if len(parts) < 3 {
			fmt.Println("usage: /log <type> <text>")
			return false
		}
		if err := cmdLog(ctx, j, append([]string{*currentSessionID}, parts[1:]...)); err != nil {
			fmt.Printf("log failed: %v\n", err)
		}
	case "/ckpt":
		if *currentSessionID == "" {
			fmt.Println("no current session")
			return false
		}
		if err := cmdCheckpoint(ctx, j, []string{*currentSessionID}); err != nil {
			fmt.Printf("checkpoint failed: %v\n", err)
		}
	case "/finish":
		if *currentSessionID == "" {
			fmt.Println("no current session")
			return false
		}
		if err := cmdFinish(ctx, j, append([]string{*currentSessionID}, parts[1:]...)); err != nil {
			fmt.Printf("finish failed: %v\n", err)
		}
	case "/pause":
		if *currentSessionID == "" {
			fmt.Println("no current session")
			return false
		}
		if err := cmdSetStatus(ctx, j, []string{*currentSessionID}, record.StatusPaused); err != nil {
			fmt.Printf("pause failed: %v\n", err)
		}
	case "/resume":
		if *currentSessionID == "" {
			fmt.Println("no current session")
			return false
		}
		if err := cmdResume(ctx, j, []string{*currentSessionID}); err != nil {
			fmt.Printf("resume failed: %v\n", err)
		}
	case "/list":
		if err := cmdList(ctx, j); err != nil {
			fmt.Printf("list failed: %v\n", err)
		}
	case "/show":
		if *currentSessionID == "" {
			fmt.Println("no current session")
			return false
		}
		if err := cmdShow(ctx, j, []string{*currentSessionID}); err != nil {
			fmt.Printf("show failed: %v\n", err)
		}
	default:
		fmt.Printf("unknown command %s (try /help)\n", cmd)
	}
	return false
}
