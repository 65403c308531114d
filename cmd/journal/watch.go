package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"journal/internal/hub"
	"journal/internal/journal"
	"journal/internal/record"
	"journal/internal/store"
	"journal/internal/tui"
)

// cmdTail 在 stdout 上跟随新条目，Ctrl+C 退出
// cmdTail follows new entries on stdout until Ctrl+C
func cmdTail(ctx context.Context, j *journal.Journal, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tail <session>")
	}
	sessionID := args[0]
	if _, err := j.GetSession(ctx, sessionID); err != nil {
		return err
	}

	observerID := "tail-" + uuid.NewString()
	events := j.Subscribe(sessionID, observerID)
	defer j.Unsubscribe(sessionID, observerID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Fprintf(os.Stderr, "tailing %s (Ctrl+C to stop)\n", sessionID)
	for {
		select {
		case <-sigCh:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case hub.EventStatus:
				fmt.Printf("── session %s ──\n", ev.Status)
				if ev.Status.Terminal() {
					return nil
				}
			default:
				if ev.Entry != nil {
					fmt.Println(formatEntryLine(*ev.Entry))
				}
			}
		}
	}
}

// cmdWatch 打开 TUI 观察器：先注入快照，再订阅增量
// cmdWatch opens the TUI watcher: snapshot first, then the live feed
func cmdWatch(ctx context.Context, j *journal.Journal, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: watch <session>")
	}
	sessionID := args[0]

	sess, err := j.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	entries, err := j.Entries(ctx, sessionID, store.EntryFilter{})
	if err != nil {
		return err
	}
	checkpoints, err := j.Checkpoints(ctx, sessionID)
	if err != nil {
		return err
	}

	observerID := "watch-" + uuid.NewString()
	events := j.Subscribe(sessionID, observerID)
	defer j.Unsubscribe(sessionID, observerID)

	return tui.Run(tui.SnapshotMsg{
		Session:     sess,
		Entries:     entries,
		Checkpoints: checkpoints,
	}, events)
}

// renderSummaryMarkdown 终端上用 Glamour 渲染 checkpoint 摘要
// renderSummaryMarkdown renders the checkpoint summary with Glamour on a
// terminal
func renderSummaryMarkdown(cp record.Checkpoint) string {
	md := "**Summary**: " + cp.Summary + "\n\n**Current state**: " + cp.CurrentState + "\n"
	if len(cp.PendingActions) > 0 {
		md += "\n**Pending**:\n"
		for _, p := range cp.PendingActions {
			md += "- " + p + "\n"
		}
	}
	if !isTerminalOut() {
		return md
	}
	return tui.RenderMarkdown(md, 100)
}
