package summarize

import (
	"context"
	"fmt"
	"strings"

	"journal/internal/record"
)

// Heuristic 无模型的确定性提取策略，LLM 不可用时兜底
// Heuristic is the deterministic, model-free extraction strategy used when
// no LLM is available
type Heuristic struct{}

func (h *Heuristic) Summarize(_ context.Context, entries []record.Entry, prior *record.Checkpoint) (Result, error) {
	if len(entries) == 0 {
		return Result{}, fmt.Errorf("heuristic summarize: no entries")
	}

	var (
		decisions []string
		files     []string
		pending   []string
		errCount  int
		toolCount int
		lastState string
	)
	seenFiles := make(map[string]struct{})

	for _, e := range entries {
		payload, err := record.DecodeContent(e)
		if err != nil {
			continue
		}
		switch v := payload.(type) {
		case record.DecisionContent:
			line := v.Decision
			if v.Rationale != "" {
				line += " (" + v.Rationale + ")"
			}
			decisions = append(decisions, line)
		case record.FileContent:
			if _, ok := seenFiles[v.Path]; !ok && v.Path != "" {
				seenFiles[v.Path] = struct{}{}
				if e.Type == record.EntryFileWritten {
					files = append(files, v.Path)
				}
			}
		case record.ErrorContent:
			errCount++
			if v.Recoverable {
				pending = append(pending, "retry after error: "+v.Message)
			}
		case record.ToolRequestContent:
			toolCount++
		}
		if e.Type != record.EntryError {
			lastState = record.Excerpt(e, 200)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recorded %d entries", len(entries))
	if toolCount > 0 {
		fmt.Fprintf(&b, ", %d tool calls", toolCount)
	}
	if len(files) > 0 {
		fmt.Fprintf(&b, ", %d files written", len(files))
	}
	if errCount > 0 {
		fmt.Fprintf(&b, ", %d errors", errCount)
	}
	b.WriteString(".")
	if prior != nil && strings.TrimSpace(prior.Summary) != "" {
		b.WriteString(" Continues prior checkpoint work.")
	}

	state := lastState
	if state == "" {
		state = "no recent non-error activity recorded"
	}

	return Result{
		Summary:        b.String(),
		KeyDecisions:   decisions,
		CurrentState:   "Last recorded activity: " + state,
		FilesModified:  files,
		PendingActions: pending,
	}, nil
}
