package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"journal/internal/config"
	"journal/internal/journal"
	"journal/internal/record"
	"journal/internal/store"
)

func dispatch(cmd string, args []string, cfg config.Config, j *journal.Journal) error {
	ctx := context.Background()
	switch cmd {
	case "start":
		return cmdStart(ctx, j, args)
	case "log":
		return cmdLog(ctx, j, args)
	case "finish":
		return cmdFinish(ctx, j, args)
	case "pause":
		return cmdSetStatus(ctx, j, args, record.StatusPaused)
	case "unpause":
		return cmdSetStatus(ctx, j, args, record.StatusActive)
	case "checkpoint":
		return cmdCheckpoint(ctx, j, args)
	case "list":
		return cmdList(ctx, j)
	case "show":
		return cmdShow(ctx, j, args)
	case "entries":
		return cmdEntries(ctx, j, args)
	case "resume":
		return cmdResume(ctx, j, args)
	case "tail":
		return cmdTail(ctx, j, args)
	case "watch":
		return cmdWatch(ctx, j, args)
	case "repl":
		return runREPL(ctx, cfg, j)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdStart(ctx context.Context, j *journal.Journal, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: start <conversation> <prompt>")
	}
	sess, err := j.CreateSession(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Printf("session: %s\n", sess.ID)
	return nil
}

func cmdLog(ctx context.Context, j *journal.Journal, args []string) error {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	importance := fs.String("importance", "", "entry importance (low|normal|high)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 3 {
		return fmt.Errorf("usage: log [-importance <level>] <session> <type> <text>")
	}
	sessionID := rest[0]
	entryType, err := parseEntryType(rest[1])
	if err != nil {
		return err
	}
	text := strings.Join(rest[2:], " ")

	e, err := j.LogEntry(ctx, sessionID, entryType, payloadFor(entryType, text),
		record.NormalizeImportance(*importance))
	if err != nil {
		return err
	}
	j.Flush()
	fmt.Printf("entry %d (%s, ~%d tokens)\n", e.Seq, e.Type, e.TokenEstimate)
	return nil
}

func cmdFinish(ctx context.Context, j *journal.Journal, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: finish <session> [completed|crashed]")
	}
	status := record.StatusCompleted
	if len(args) > 1 {
		status = record.SessionStatus(args[1])
	}
	sess, err := j.UpdateStatus(ctx, args[0], status)
	if err != nil {
		return err
	}
	fmt.Printf("session %s: %s\n", sess.ID, sess.Status)
	return nil
}

func cmdSetStatus(ctx context.Context, j *journal.Journal, args []string, status record.SessionStatus) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <session>", status)
	}
	sess, err := j.UpdateStatus(ctx, args[0], status)
	if err != nil {
		return err
	}
	fmt.Printf("session %s: %s\n", sess.ID, sess.Status)
	return nil
}

func cmdCheckpoint(ctx context.Context, j *journal.Journal, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: checkpoint <session>")
	}
	cp, err := j.CreateCheckpoint(ctx, args[0], true)
	if err != nil {
		return err
	}
	fmt.Printf("checkpoint %s covering %d..%d\n%s\n", cp.ID, cp.FromSeq, cp.ToSeq, cp.Summary)
	return nil
}

func cmdList(ctx context.Context, j *journal.Journal) error {
	sessions, err := j.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %-9s  entries=%-5d tokens=%-7d updated=%s  %s\n",
			s.ID, s.Status, s.EntryCount, s.TokenEstimate,
			s.UpdatedAt.Format("2006-01-02 15:04"), oneLine(s.OriginalPrompt, 60))
	}
	return nil
}

func cmdShow(ctx context.Context, j *journal.Journal, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: show <session>")
	}
	sess, err := j.GetSession(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("session:      %s\n", sess.ID)
	fmt.Printf("conversation: %s\n", sess.ConversationID)
	fmt.Printf("status:       %s\n", sess.Status)
	fmt.Printf("created:      %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
	if sess.CompletedAt != nil {
		fmt.Printf("completed:    %s\n", sess.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("entries:      %d (~%d tokens)\n", sess.EntryCount, sess.TokenEstimate)
	fmt.Printf("prompt:       %s\n", oneLine(sess.OriginalPrompt, 100))

	cp, ok, err := j.LatestCheckpoint(ctx, sess.ID)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("\nlatest checkpoint (%d..%d):\n", cp.FromSeq, cp.ToSeq)
		fmt.Println(renderSummaryMarkdown(cp))
	}
	return nil
}

func cmdEntries(ctx context.Context, j *journal.Journal, args []string) error {
	fs := flag.NewFlagSet("entries", flag.ContinueOnError)
	limit := fs.Int("limit", 0, "max entries")
	types := fs.String("type", "", "comma-separated entry types")
	minImp := fs.String("min-importance", "", "minimum importance (low|normal|high)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("usage: entries [-limit n] [-type a,b] [-min-importance lvl] <session>")
	}

	filter := store.EntryFilter{Limit: *limit}
	if *minImp != "" {
		filter.MinImportance = record.NormalizeImportance(*minImp)
	}
	if *types != "" {
		for _, t := range strings.Split(*types, ",") {
			et, err := parseEntryType(strings.TrimSpace(t))
			if err != nil {
				return err
			}
			filter.Types = append(filter.Types, et)
		}
	}

	entries, err := j.Entries(ctx, rest[0], filter)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Println(formatEntryLine(e))
	}
	return nil
}

func cmdResume(ctx context.Context, j *journal.Journal, args []string) error {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	tokens := fs.Int("tokens", 0, "token budget (0 = config default)")
	asJSON := fs.Bool("json", false, "emit JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("usage: resume [-tokens n] [-json] <session>")
	}

	rc, err := j.GenerateResumption(ctx, rest[0], *tokens)
	if err != nil {
		return err
	}
	if *asJSON {
		data, err := json.MarshalIndent(rc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Print(formatResumption(rc))
	return nil
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// loggableEntryTypes 用户可写的条目类型；生命周期类型由服务自身产生
// loggableEntryTypes are the user-writable entry types; lifecycle types are
// produced by the service itself
var loggableEntryTypes = []record.EntryType{
	record.EntryThinking, record.EntryToolRequest, record.EntryToolResult,
	record.EntryToolApproved, record.EntryToolRejected,
	record.EntryFileRead, record.EntryFileWritten,
	record.EntryError, record.EntryDecision, record.EntryUserFeedback,
}

func parseEntryType(s string) (record.EntryType, error) {
	t := record.EntryType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range loggableEntryTypes {
		if t == known {
			return t, nil
		}
	}
	switch t {
	case record.EntryCheckpoint, record.EntrySessionStart, record.EntrySessionEnd:
		return "", fmt.Errorf("entry type %q is reserved", t)
	}
	return "", fmt.Errorf("unknown entry type %q", s)
}

// payloadFor 为文本输入选择匹配的负载结构
// payloadFor picks the payload shape matching a text input
func payloadFor(entryType record.EntryType, text string) any {
	switch entryType {
	case record.EntryThinking:
		return record.ThinkingContent{Text: text}
	case record.EntryError:
		return record.ErrorContent{Message: text}
	case record.EntryDecision:
		return record.DecisionContent{Decision: text}
	case record.EntryFileRead, record.EntryFileWritten:
		return record.FileContent{Path: text}
	default:
		return record.TextContent{Text: text}
	}
}

func formatEntryLine(e record.Entry) string {
	return fmt.Sprintf("%s %5d  %-13s %s",
		e.Timestamp.Local().Format("15:04:05"), e.Seq, e.Type, record.Excerpt(e, 120))
}

func formatResumption(rc record.ResumptionContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Resuming session\n\n")
	fmt.Fprintf(&b, "## Original prompt\n%s\n\n", rc.OriginalPrompt)
	if rc.WorkSummary != "" {
		fmt.Fprintf(&b, "## Work so far\n%s\n\n", rc.WorkSummary)
	}
	if rc.CurrentState != "" {
		fmt.Fprintf(&b, "## Current state\n%s\n\n", rc.CurrentState)
	}
	writeListSection(&b, "Key decisions", rc.KeyDecisions)
	writeListSection(&b, "Files modified", rc.FilesModified)
	writeListSection(&b, "Pending actions", rc.PendingActions)
	writeListSection(&b, "Error history", rc.ErrorHistory)
	writeListSection(&b, "Suggested next steps", rc.SuggestedNextSteps)
	fmt.Fprintf(&b, "(~%d tokens)\n", rc.TokenCount)
	return b.String()
}

func writeListSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	fmt.Fprintln(b)
}

func isTerminalOut() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
