package main

import (
	"strings"
	"testing"
	"time"

	"journal/internal/record"
)

func TestParseEntryType(t *testing.T) {
	got, err := parseEntryType(" Decision ")
	if err != nil || got != record.EntryDecision {
		t.Fatalf("parseEntryType(decision)=%q, %v", got, err)
	}

	// 保留类型由服务自己写入 / Reserved types are written by the service only
	for _, reserved := range []string{"checkpoint", "session_start", "session_end"} {
		if _, err := parseEntryType(reserved); err == nil {
			t.Fatalf("parseEntryType(%s) should be rejected", reserved)
		}
	}

	if _, err := parseEntryType("bogus"); err == nil {
		t.Fatal("unknown type should be rejected")
	}

	// 补全列表里的每个类型都必须可写 / Every completed type must be writable
	for _, et := range loggableEntryTypes {
		if got, err := parseEntryType(string(et)); err != nil || got != et {
			t.Fatalf("parseEntryType(%s)=%q, %v", et, got, err)
		}
	}
}

func TestPayloadFor(t *testing.T) {
	if p, ok := payloadFor(record.EntryError, "boom").(record.ErrorContent); !ok || p.Message != "boom" {
		t.Fatalf("payloadFor(error)=%#v", p)
	}
	if p, ok := payloadFor(record.EntryFileWritten, "a/b.go").(record.FileContent); !ok || p.Path != "a/b.go" {
		t.Fatalf("payloadFor(file_written)=%#v", p)
	}
	if p, ok := payloadFor(record.EntryUserFeedback, "looks good").(record.TextContent); !ok || p.Text != "looks good" {
		t.Fatalf("payloadFor(user_feedback)=%#v", p)
	}
}

func TestOneLine(t *testing.T) {
	if got := oneLine("a\nb\tc", 40); got != "a b c" {
		t.Fatalf("oneLine()=%q", got)
	}
	got := oneLine(strings.Repeat("x", 50), 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "...") {
		t.Fatalf("oneLine() truncation=%q", got)
	}
}

func TestFormatEntryLine(t *testing.T) {
	raw, _ := record.EncodeContent(record.ThinkingContent{Text: "checking the index"})
	line := formatEntryLine(record.Entry{
		Seq:       12,
		Type:      record.EntryThinking,
		Timestamp: time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC),
		Content:   raw,
	})
	if !strings.Contains(line, "12") || !strings.Contains(line, "thinking") ||
		!strings.Contains(line, "checking the index") {
		t.Fatalf("formatEntryLine()=%q", line)
	}
}

func TestFormatResumption(t *testing.T) {
	rc := record.ResumptionContext{
		OriginalPrompt:     "Fix bug #42",
		WorkSummary:        "traced the fault to the cache layer",
		CurrentState:       "patch drafted, tests pending",
		KeyDecisions:       []string{"bypass the cache on miss"},
		ErrorHistory:       []string{"nil map write"},
		SuggestedNextSteps: []string{"run the race detector"},
		TokenCount:         88,
	}
	out := formatResumption(rc)
	for _, want := range []string{
		"Fix bug #42", "cache layer", "patch drafted",
		"bypass the cache", "nil map write", "race detector", "~88 tokens",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("formatResumption() missing %q:\n%s", want, out)
		}
	}
	// 空区段不输出标题 / Empty sections emit no heading
	if strings.Contains(out, "Files modified") {
		t.Fatalf("empty section rendered:\n%s", out)
	}
}
