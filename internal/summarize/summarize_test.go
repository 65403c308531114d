package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"journal/internal/record"
)

type scriptedSummarizer struct {
	result Result
	err    error
	calls  int
}

func (s *scriptedSummarizer) Summarize(_ context.Context, _ []record.Entry, _ *record.Checkpoint) (Result, error) {
	s.calls++
	return s.result, s.err
}

func entryOf(t *testing.T, typ record.EntryType, payload any) record.Entry {
	t.Helper()
	raw, err := record.EncodeContent(payload)
	if err != nil {
		t.Fatalf("EncodeContent: %v", err)
	}
	return record.Entry{Type: typ, Content: raw, Seq: 1}
}

func TestResult_Validate(t *testing.T) {
	ok := Result{Summary: "did things", CurrentState: "mid-task"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid result rejected: %v", err)
	}
	if err := (Result{CurrentState: "x"}).Validate(); err == nil {
		t.Fatal("empty summary should be rejected")
	}
	if err := (Result{Summary: "x"}).Validate(); err == nil {
		t.Fatal("empty current state should be rejected")
	}
}

func TestHeuristic_ExtractsStructure(t *testing.T) {
	entries := []record.Entry{
		entryOf(t, record.EntryDecision, record.DecisionContent{Decision: "use channels", Rationale: "simpler fan-out"}),
		entryOf(t, record.EntryFileWritten, record.FileContent{Path: "internal/hub/hub.go"}),
		entryOf(t, record.EntryError, record.ErrorContent{Message: "flaky test", Recoverable: true}),
		entryOf(t, record.EntryToolRequest, record.ToolRequestContent{Tool: "go_test"}),
	}
	res, err := (&Heuristic{}).Summarize(context.Background(), entries, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if err := res.Validate(); err != nil {
		t.Fatalf("heuristic result invalid: %v", err)
	}
	if len(res.KeyDecisions) != 1 || !strings.Contains(res.KeyDecisions[0], "use channels") {
		t.Fatalf("KeyDecisions=%v", res.KeyDecisions)
	}
	if len(res.FilesModified) != 1 || res.FilesModified[0] != "internal/hub/hub.go" {
		t.Fatalf("FilesModified=%v", res.FilesModified)
	}
	if len(res.PendingActions) != 1 || !strings.Contains(res.PendingActions[0], "flaky test") {
		t.Fatalf("PendingActions=%v", res.PendingActions)
	}
}

func TestHeuristic_EmptyEntries(t *testing.T) {
	if _, err := (&Heuristic{}).Summarize(context.Background(), nil, nil); err == nil {
		t.Fatal("empty entry span should error")
	}
}

func TestFallback_PrimaryWins(t *testing.T) {
	primary := &scriptedSummarizer{result: Result{Summary: "primary", CurrentState: "ok"}}
	secondary := &scriptedSummarizer{result: Result{Summary: "secondary", CurrentState: "ok"}}
	f := NewFallback(primary, secondary)

	res, err := f.Summarize(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Summary != "primary" {
		t.Fatalf("Summary=%q, want primary", res.Summary)
	}
	if secondary.calls != 0 {
		t.Fatal("fallback should not run when primary succeeds")
	}
}

func TestFallback_FallsBackOnError(t *testing.T) {
	primary := &scriptedSummarizer{err: errors.New("model unavailable")}
	secondary := &scriptedSummarizer{result: Result{Summary: "secondary", CurrentState: "ok"}}
	f := NewFallback(primary, secondary)

	res, err := f.Summarize(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Summary != "secondary" {
		t.Fatalf("Summary=%q, want secondary", res.Summary)
	}
}

func TestFallback_AllFail(t *testing.T) {
	f := NewFallback(nil, nil)
	if _, err := f.Summarize(context.Background(), nil, nil); err == nil {
		t.Fatal("fallback with no strategies should error")
	}
}

func TestParseResult(t *testing.T) {
	raw := `{"summary":"s","key_decisions":["d"],"current_state":"c","files_modified":["f.go"],"pending_actions":["p"]}`
	res, err := parseResult(raw)
	if err != nil {
		t.Fatalf("parseResult: %v", err)
	}
	if res.Summary != "s" || res.CurrentState != "c" || len(res.KeyDecisions) != 1 {
		t.Fatalf("parsed=%+v", res)
	}
}

func TestParseResult_Fenced(t *testing.T) {
	raw := "```json\n{\"summary\":\"s\",\"current_state\":\"c\"}\n```"
	res, err := parseResult(raw)
	if err != nil {
		t.Fatalf("parseResult fenced: %v", err)
	}
	if res.Summary != "s" {
		t.Fatalf("Summary=%q", res.Summary)
	}
}

func TestParseResult_LeadingCommentary(t *testing.T) {
	raw := "Here is the summary you asked for:\n{\"summary\":\"s\",\"current_state\":\"c\"}"
	res, err := parseResult(raw)
	if err != nil {
		t.Fatalf("parseResult with preamble: %v", err)
	}
	if res.CurrentState != "c" {
		t.Fatalf("CurrentState=%q", res.CurrentState)
	}
}

func TestParseResult_Malformed(t *testing.T) {
	if _, err := parseResult("not json at all"); err == nil {
		t.Fatal("malformed output should error")
	}
	if _, err := parseResult(`{"summary":""}`); err == nil {
		t.Fatal("empty fields should be rejected as malformed")
	}
}

func TestBuildSummaryInput(t *testing.T) {
	prior := &record.Checkpoint{CurrentState: "halfway through refactor"}
	entries := []record.Entry{entryOf(t, record.EntryThinking, record.ThinkingContent{Text: "plan next step"})}
	input := buildSummaryInput(entries, prior)
	if !strings.Contains(input, "halfway through refactor") {
		t.Fatal("input should carry the prior checkpoint state")
	}
	if !strings.Contains(input, "plan next step") {
		t.Fatal("input should carry entry excerpts")
	}
}
