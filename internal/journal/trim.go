package journal

import "context"

// scheduleTrim 将裁剪评估排为 append 之后的异步工作；append 的成败与
// 裁剪无关
// scheduleTrim queues trim evaluation as asynchronous follow-up work after
// an append; append success never depends on it
func (j *Journal) scheduleTrim(sessionID string) {
	// 判定与 Add 在 j.mu 内一体完成；Close 持同一把锁关闭 closedCh
	// Check and Add happen as one step under j.mu; Close flips closedCh
	// under the same lock
	j.mu.Lock()
	if j.closed() {
		j.mu.Unlock()
		return
	}
	j.followUps.Add(1)
	j.mu.Unlock()
	go func() {
		defer j.followUps.Done()
		j.evaluateTrim(sessionID)
	}()
}

// evaluateTrim 工作集超限时折叠头部条目；摘要失败则跳过本轮，下次 append
// 重试，宁可超限也不丢数据
// evaluateTrim folds the working-set head when over the ceiling; summarizer
// failures skip this cycle and retry on the next append rather than lose
// data
func (j *Journal) evaluateTrim(sessionID string) {
	maxSeq, err := j.store.MaxSeq(sessionID)
	if err != nil {
		j.log.Warn().Str("session", sessionID).Err(err).Msg("trim: max seq unavailable")
		return
	}

	var foldedSeq int64
	if prev, ok, err := j.store.LatestCheckpoint(sessionID); err != nil {
		j.log.Warn().Str("session", sessionID).Err(err).Msg("trim: latest checkpoint unavailable")
		return
	} else if ok {
		foldedSeq = prev.ToSeq
	}

	workingSet := maxSeq - foldedSeq
	if workingSet <= int64(j.opts.TrimCeiling) {
		return
	}

	// 折叠到仅保留 Ceiling*Ratio 条最近条目，避免下次 append 立刻再触发
	// Fold down to Ceiling*Ratio recent entries so the very next append does
	// not retrigger
	keep := int64(float64(j.opts.TrimCeiling) * j.opts.TrimTargetRatio)
	toSeq := maxSeq - keep
	if toSeq <= foldedSeq {
		return
	}

	if !j.tryReserveAutoCheckpoint(sessionID) {
		return
	}
	cp, err := j.createCheckpointRange(context.Background(), sessionID, toSeq)
	if err != nil {
		// 本轮跳过；条目全部保留 / Cycle skipped; every entry is retained
		j.clearAutoCheckpoint(sessionID)
		j.log.Warn().Str("session", sessionID).Int64("working_set", workingSet).
			Err(err).Msg("trim skipped, will retry on next append")
		return
	}
	j.log.Debug().Str("session", sessionID).Str("checkpoint", cp.ID).
		Int64("folded_to", cp.ToSeq).Msg("working set trimmed")
}
