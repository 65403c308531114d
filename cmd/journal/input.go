package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"journal/internal/record"
)

type lineInput interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

type basicLineInput struct {
	reader *bufio.Reader
	out    io.Writer
}

func newBasicLineInput(in io.Reader, out io.Writer) *basicLineInput {
	return &basicLineInput{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (b *basicLineInput) ReadLine(prompt string) (string, error) {
	if b.out != nil {
		fmt.Fprint(b.out, prompt)
	}
	line, err := b.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *basicLineInput) Close() error { return nil }

type readlineInput struct {
	instance *readline.Instance
}

// replCompleter 补全 REPL 命令及其参数: /log 补条目类型, /finish 补终态
// replCompleter completes REPL commands and their arguments: entry types
// after /log, terminal statuses after /finish
func replCompleter() readline.AutoCompleter {
	typeItems := make([]readline.PrefixCompleterInterface, 0, len(loggableEntryTypes))
	for _, t := range loggableEntryTypes {
		typeItems = append(typeItems, readline.PcItem(string(t)))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("/start"),
		readline.PcItem("/use"),
		readline.PcItem("/log", typeItems...),
		readline.PcItem("/ckpt"),
		readline.PcItem("/finish",
			readline.PcItem(string(record.StatusCompleted)),
			readline.PcItem(string(record.StatusCrashed)),
		),
		readline.PcItem("/pause"),
		readline.PcItem("/resume"),
		readline.PcItem("/list"),
		readline.PcItem("/show"),
		readline.PcItem("/help"),
		readline.PcItem("/exit"),
	)
}

func newReadlineInput(historyPath string) (*readlineInput, error) {
	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	instance, err := readline.NewEx(&readline.Config{
		Prompt:            "journal> ",
		HistoryFile:       historyPath,
		HistorySearchFold: true,
		AutoComplete:      replCompleter(),
	})
	if err != nil {
		return nil, err
	}
	return &readlineInput{instance: instance}, nil
}

func (r *readlineInput) ReadLine(prompt string) (string, error) {
	r.instance.SetPrompt(prompt)
	return r.instance.Readline()
}

func (r *readlineInput) Close() error {
	if r == nil || r.instance == nil {
		return nil
	}
	return r.instance.Close()
}

func newLineInput(historyPath string) (lineInput, error) {
	readlineReader, err := newReadlineInput(historyPath)
	if err == nil {
		return readlineReader, nil
	}
	return newBasicLineInput(os.Stdin, os.Stdout), err
}
