package summarize

import (
	"context"
	"fmt"
	"strings"

	"journal/internal/record"
)

// Result 摘要器的结构化输出，对应 checkpoint 的内容字段
// Result is the summarizer's structured output, matching the checkpoint
// content fields
type Result struct {
	Summary        string   `json:"summary"`
	KeyDecisions   []string `json:"key_decisions"`
	CurrentState   string   `json:"current_state"`
	FilesModified  []string `json:"files_modified"`
	PendingActions []string `json:"pending_actions"`
}

// Summarizer 摘要策略接口
// Summarizer is the summarization strategy interface
type Summarizer interface {
	// Summarize 对一段条目生成摘要；prior 为上一个 checkpoint (可为 nil)
	// Summarize summarizes a span of entries; prior is the previous
	// checkpoint (may be nil)
	Summarize(ctx context.Context, entries []record.Entry, prior *record.Checkpoint) (Result, error)
}

// Validate 校验摘要输出是否可用
// Validate reports whether the summarizer output is usable
func (r Result) Validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("summary is empty")
	}
	if strings.TrimSpace(r.CurrentState) == "" {
		return fmt.Errorf("current state is empty")
	}
	return nil
}

// Fallback 带回退的策略: 先 primary，失败则 fallback
// Fallback tries primary first, falls back on failure
type Fallback struct {
	primary  Summarizer
	fallback Summarizer
}

// NewFallback 创建带回退的摘要策略
// NewFallback creates a summarizer with fallback
func NewFallback(primary, fallback Summarizer) *Fallback {
	return &Fallback{primary: primary, fallback: fallback}
}

func (f *Fallback) Summarize(ctx context.Context, entries []record.Entry, prior *record.Checkpoint) (Result, error) {
	if f.primary != nil {
		res, err := f.primary.Summarize(ctx, entries, prior)
		if err == nil && res.Validate() == nil {
			return res, nil
		}
	}
	if f.fallback != nil {
		return f.fallback.Summarize(ctx, entries, prior)
	}
	return Result{}, fmt.Errorf("all summarization strategies failed")
}

// buildSummaryInput 从条目构建摘要输入文本
// buildSummaryInput builds the summarization input from entries
func buildSummaryInput(entries []record.Entry, prior *record.Checkpoint) string {
	var b strings.Builder
	if prior != nil {
		b.WriteString("Prior checkpoint state:\n")
		b.WriteString(strings.TrimSpace(prior.CurrentState))
		b.WriteString("\n\n")
	}
	b.WriteString("Journal entries to summarize:\n\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("[%d] %s: %s\n", e.Seq, e.Type, record.Excerpt(e, 300)))
	}
	return b.String()
}
