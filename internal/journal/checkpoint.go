package journal

import (
	"context"
	"fmt"
	"time"

	"journal/internal/record"
	"journal/internal/store"
)

// CreateCheckpoint 手动生成覆盖全部未折叠条目的 checkpoint；manual 请求不限频
// CreateCheckpoint manually produces a checkpoint covering every unfolded
// entry; manual requests are never rate-limited
func (j *Journal) CreateCheckpoint(ctx context.Context, sessionID string, manual bool) (record.Checkpoint, error) {
	if !manual {
		if !j.tryReserveAutoCheckpoint(sessionID) {
			return record.Checkpoint{}, fmt.Errorf("automatic checkpoint rate-limited for %s", sessionID)
		}
	}
	cp, err := j.createCheckpointRange(ctx, sessionID, 0)
	if err != nil && !manual {
		j.clearAutoCheckpoint(sessionID)
	}
	return cp, err
}

// LatestCheckpoint 返回最近的 checkpoint / Returns the most recent checkpoint
func (j *Journal) LatestCheckpoint(ctx context.Context, sessionID string) (record.Checkpoint, bool, error) {
	_ = ctx
	if _, err := j.store.LoadSession(sessionID); err != nil {
		return record.Checkpoint{}, false, err
	}
	return j.store.LatestCheckpoint(sessionID)
}

// Checkpoints 返回会话的 checkpoint 链，按覆盖区间升序
// Checkpoints returns the session's checkpoint chain in coverage order
func (j *Journal) Checkpoints(ctx context.Context, sessionID string) ([]record.Checkpoint, error) {
	_ = ctx
	if _, err := j.store.LoadSession(sessionID); err != nil {
		return nil, err
	}
	return j.store.Checkpoints(sessionID)
}

// createCheckpointRange 生成覆盖 (prev.ToSeq, toSeq] 的 checkpoint；
// toSeq=0 表示覆盖到当前最大 seq。摘要失败时不落盘、不折叠。
// createCheckpointRange produces a checkpoint covering (prev.ToSeq, toSeq];
// toSeq=0 means up to the current max seq. Nothing is persisted or folded on
// summarizer failure.
func (j *Journal) createCheckpointRange(ctx context.Context, sessionID string, toSeq int64) (record.Checkpoint, error) {
	sess, err := j.store.LoadSession(sessionID)
	if err != nil {
		return record.Checkpoint{}, err
	}

	// checkpoint 链按会话串行，保证无缝无重叠
	// The chain is serialized per session so coverage stays contiguous
	lock := j.checkpointLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	prev, hasPrev, err := j.store.LatestCheckpoint(sessionID)
	if err != nil {
		return record.Checkpoint{}, err
	}
	var fromSeq int64 = 1
	var prevPtr *record.Checkpoint
	if hasPrev {
		fromSeq = prev.ToSeq + 1
		prevPtr = &prev
	}

	if toSeq == 0 {
		toSeq, err = j.store.MaxSeq(sessionID)
		if err != nil {
			return record.Checkpoint{}, err
		}
	}
	if toSeq < fromSeq {
		return record.Checkpoint{}, fmt.Errorf("no unfolded entries to checkpoint in %s", sessionID)
	}

	entries, err := j.store.Entries(sessionID, store.EntryFilter{Since: fromSeq - 1, Until: toSeq})
	if err != nil {
		return record.Checkpoint{}, err
	}
	if len(entries) == 0 {
		return record.Checkpoint{}, fmt.Errorf("no unfolded entries to checkpoint in %s", sessionID)
	}

	if j.summarizer == nil {
		return record.Checkpoint{}, fmt.Errorf("no summarizer configured: %w", record.ErrSummarization)
	}
	sctx, cancel := context.WithTimeout(ctx, j.opts.SummarizerTimeout)
	defer cancel()
	res, err := j.summarizer.Summarize(sctx, entries, prevPtr)
	if err != nil {
		return record.Checkpoint{}, fmt.Errorf("summarize %s: %w: %v", sessionID, record.ErrSummarization, err)
	}
	if err := res.Validate(); err != nil {
		return record.Checkpoint{}, fmt.Errorf("summarize %s: %w: %v", sessionID, record.ErrSummarization, err)
	}

	cp := record.Checkpoint{
		ID:             store.NewCheckpointID(),
		SessionID:      sessionID,
		CreatedAt:      time.Now().UTC(),
		FromSeq:        fromSeq,
		ToSeq:          toSeq,
		Summary:        res.Summary,
		KeyDecisions:   res.KeyDecisions,
		CurrentState:   res.CurrentState,
		FilesModified:  res.FilesModified,
		PendingActions: res.PendingActions,
	}
	if err := j.store.SaveCheckpoint(cp); err != nil {
		return record.Checkpoint{}, err
	}

	// 活跃会话追加 checkpoint 标记条目；非活跃时跳过 (仍可手动 checkpoint)
	// Active sessions get a checkpoint marker entry; skipped when the session
	// is not active (manual checkpoints still work then)
	if sess.Status == record.StatusActive {
		if _, err := j.appendEntry(ctx, sessionID, record.EntryCheckpoint, record.CheckpointContent{
			CheckpointID: cp.ID,
			FromSeq:      cp.FromSeq,
			ToSeq:        cp.ToSeq,
		}, record.ImportanceHigh); err != nil {
			j.log.Warn().Str("session", sessionID).Err(err).Msg("checkpoint marker entry not recorded")
		}
	}

	return cp, nil
}

// tryReserveAutoCheckpoint 自动 checkpoint 限频：预约成功才允许执行，
// 失败方需调用 clearAutoCheckpoint 释放，保证下次 append 能重试
// tryReserveAutoCheckpoint rate-limits automatic checkpoints: execution is
// allowed only after a successful reservation, and failures must call
// clearAutoCheckpoint so the next append retries
func (j *Journal) tryReserveAutoCheckpoint(sessionID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	last, ok := j.lastAuto[sessionID]
	if ok && time.Since(last) < j.opts.TrimMinInterval {
		return false
	}
	j.lastAuto[sessionID] = time.Now()
	return true
}

func (j *Journal) clearAutoCheckpoint(sessionID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.lastAuto, sessionID)
}
