package journal

import (
	"context"
	"fmt"

	"journal/internal/record"
	"journal/internal/store"
	"journal/internal/summarize"
)

// excerptRunes 恢复上下文中单条摘录的长度上限
// excerptRunes caps one excerpt line in the resumption context
const excerptRunes = 200

// GenerateResumption 合成有界的恢复上下文。优先级:
// originalPrompt/currentState 永不截断，其后依次 errorHistory、keyDecisions、
// filesModified、suggestedNextSteps，超预算时从低优先级开始截。
// GenerateResumption synthesizes the bounded restart context. Priority:
// originalPrompt/currentState are never truncated; errorHistory,
// keyDecisions, filesModified and suggestedNextSteps follow, trimmed from
// the lowest priority up when over budget.
func (j *Journal) GenerateResumption(ctx context.Context, sessionID string, targetTokens int) (record.ResumptionContext, error) {
	if targetTokens <= 0 {
		targetTokens = j.opts.ResumptionTokens
	}

	sess, err := j.store.LoadSession(sessionID)
	if err != nil {
		return record.ResumptionContext{}, err
	}
	maxSeq, err := j.store.MaxSeq(sessionID)
	if err != nil {
		return record.ResumptionContext{}, err
	}
	if maxSeq == 0 {
		return record.ResumptionContext{}, fmt.Errorf("session %s: %w", sessionID, record.ErrNoCheckpointAvailable)
	}

	cp, hasCp, err := j.store.LatestCheckpoint(sessionID)
	if err != nil {
		return record.ResumptionContext{}, err
	}
	var foldedSeq int64
	if hasCp {
		foldedSeq = cp.ToSeq
	}

	// checkpoint 之后的原始条目 / Raw entries past the checkpoint boundary
	recent, err := j.store.Entries(sessionID, store.EntryFilter{Since: foldedSeq})
	if err != nil {
		return record.ResumptionContext{}, err
	}

	// 错误与决策全史，不受折叠影响 / Full error and decision history,
	// regardless of folding
	errEntries, err := j.store.Entries(sessionID, store.EntryFilter{
		Types: []record.EntryType{record.EntryError},
	})
	if err != nil {
		return record.ResumptionContext{}, err
	}
	decisionEntries, err := j.store.Entries(sessionID, store.EntryFilter{
		Types: []record.EntryType{record.EntryDecision},
	})
	if err != nil {
		return record.ResumptionContext{}, err
	}

	rc := record.ResumptionContext{
		OriginalPrompt: sess.OriginalPrompt,
	}

	if hasCp {
		rc.WorkSummary = cp.Summary
		rc.CurrentState = cp.CurrentState
		rc.PendingActions = append([]string(nil), cp.PendingActions...)
		rc.KeyDecisions = append([]string(nil), cp.KeyDecisions...)
		rc.FilesModified = append([]string(nil), cp.FilesModified...)
	} else if len(recent) > 0 {
		// 无 checkpoint 时直接从原始条目合成 / Synthesize straight from raw
		// entries when no checkpoint exists
		res, herr := (&summarize.Heuristic{}).Summarize(ctx, recent, nil)
		if herr == nil {
			rc.WorkSummary = res.Summary
			rc.CurrentState = res.CurrentState
			rc.PendingActions = res.PendingActions
			rc.KeyDecisions = res.KeyDecisions
			rc.FilesModified = res.FilesModified
		}
	}

	// 边界之后的决策与文件并入 / Fold in post-boundary decisions and files
	for _, e := range decisionEntries {
		if e.Seq > foldedSeq {
			rc.KeyDecisions = appendUnique(rc.KeyDecisions, record.Excerpt(e, excerptRunes))
		}
	}
	for _, e := range recent {
		if e.Type != record.EntryFileWritten {
			continue
		}
		payload, derr := record.DecodeContent(e)
		if derr != nil {
			continue
		}
		if fc, ok := payload.(record.FileContent); ok && fc.Path != "" {
			rc.FilesModified = appendUnique(rc.FilesModified, fc.Path)
		}
	}

	// 最近的错误排最前 / Most recent errors first
	for i := len(errEntries) - 1; i >= 0; i-- {
		rc.ErrorHistory = append(rc.ErrorHistory, record.Excerpt(errEntries[i], excerptRunes))
	}

	rc.SuggestedNextSteps = suggestNextSteps(rc)
	j.enforceBudget(&rc, targetTokens)
	return rc, nil
}

// suggestNextSteps 从待办与错误历史推导下一步建议
// suggestNextSteps derives next-step suggestions from pending actions and
// error history
func suggestNextSteps(rc record.ResumptionContext) []string {
	var steps []string
	if len(rc.ErrorHistory) > 0 {
		steps = append(steps, "Investigate most recent error: "+rc.ErrorHistory[0])
	}
	for _, action := range rc.PendingActions {
		steps = append(steps, "Resume pending action: "+action)
	}
	if len(steps) == 0 {
		steps = append(steps, "Continue from the recorded current state")
	}
	return steps
}

// enforceBudget 迭代裁剪低优先级区段直到满足预算；originalPrompt 与
// currentState 永不截断
// enforceBudget iteratively trims the lowest-priority sections until the
// budget holds; originalPrompt and currentState are never cut
func (j *Journal) enforceBudget(rc *record.ResumptionContext, targetTokens int) {
	rc.TokenCount = j.estimator.EstimateContent(*rc)
	for rc.TokenCount > targetTokens {
		switch {
		case len(rc.SuggestedNextSteps) > 0:
			rc.SuggestedNextSteps = rc.SuggestedNextSteps[:len(rc.SuggestedNextSteps)-1]
		case len(rc.FilesModified) > 0:
			rc.FilesModified = rc.FilesModified[:len(rc.FilesModified)-1]
		case len(rc.KeyDecisions) > 0:
			rc.KeyDecisions = rc.KeyDecisions[:len(rc.KeyDecisions)-1]
		case len(rc.ErrorHistory) > 0:
			// 尾部是最旧的错误 / The tail holds the oldest errors
			rc.ErrorHistory = rc.ErrorHistory[:len(rc.ErrorHistory)-1]
		case len(rc.PendingActions) > 0:
			rc.PendingActions = rc.PendingActions[:len(rc.PendingActions)-1]
		case len(rc.WorkSummary) > 0:
			r := []rune(rc.WorkSummary)
			rc.WorkSummary = string(r[:len(r)/2])
		default:
			// 只剩 prompt 与 currentState，按约定保留
			// Only prompt and currentState remain; kept by contract
			rc.TokenCount = j.estimator.EstimateContent(*rc)
			return
		}
		rc.TokenCount = j.estimator.EstimateContent(*rc)
	}
}

func appendUnique(items []string, v string) []string {
	if v == "" {
		return items
	}
	for _, existing := range items {
		if existing == v {
			return items
		}
	}
	return append(items, v)
}
