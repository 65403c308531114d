package journal

import (
	"context"
	"fmt"
	"time"

	"journal/internal/record"
	"journal/internal/store"
)

// CreateSession 为 conversation 创建活跃会话；首条日志为 session_start
// CreateSession opens the active session for a conversation; the first entry
// logged is session_start
func (j *Journal) CreateSession(ctx context.Context, conversationID, originalPrompt string) (record.Session, error) {
	now := time.Now().UTC()
	sess := record.Session{
		ID:             store.NewSessionID(),
		ConversationID: conversationID,
		OriginalPrompt: originalPrompt,
		Status:         record.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := j.store.CreateSession(sess); err != nil {
		return record.Session{}, err
	}

	if _, err := j.appendEntry(ctx, sess.ID, record.EntrySessionStart,
		record.TextContent{Text: originalPrompt}, record.ImportanceHigh); err != nil {
		// 首条日志失败则标记 crashed，释放 conversation 的活跃槽位
		// A failed first entry marks the session crashed so the
		// conversation's active slot frees up
		now := time.Now().UTC()
		sess.Status = record.StatusCrashed
		sess.UpdatedAt = now
		sess.CompletedAt = &now
		if saveErr := j.store.SaveSession(sess); saveErr != nil {
			j.log.Warn().Str("session", sess.ID).Err(saveErr).
				Msg("orphaned session could not be marked crashed")
		}
		return record.Session{}, fmt.Errorf("log session start: %w", err)
	}
	return j.store.LoadSession(sess.ID)
}

// GetSession 按 ID 查询会话 / GetSession looks a session up by id
func (j *Journal) GetSession(ctx context.Context, sessionID string) (record.Session, error) {
	_ = ctx
	return j.store.LoadSession(sessionID)
}

// GetActiveSession 查询 conversation 的活跃会话；不存在不报错
// GetActiveSession finds the conversation's active session; absence is not
// an error
func (j *Journal) GetActiveSession(ctx context.Context, conversationID string) (record.Session, bool, error) {
	_ = ctx
	return j.store.ActiveSessionFor(conversationID)
}

// Sessions 列出全部会话，按更新时间倒序
// Sessions lists all sessions, most recently updated first
func (j *Journal) Sessions(ctx context.Context) ([]record.Session, error) {
	_ = ctx
	return j.store.ListSessions()
}

// UpdateStatus 执行状态迁移并广播变更；非法迁移报错
// UpdateStatus performs a status transition and broadcasts the change;
// illegal transitions fail
func (j *Journal) UpdateStatus(ctx context.Context, sessionID string, newStatus record.SessionStatus) (record.Session, error) {
	_ = ctx
	if !newStatus.Valid() {
		return record.Session{}, fmt.Errorf("unknown status %q: %w", newStatus, record.ErrInvalidTransition)
	}

	// 状态迁移与 append 共用会话锁，迁移之间互相串行
	// Transitions share the session lock with appends, so no two transitions
	// race on the same session
	lock := j.appendLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := j.store.LoadSession(sessionID)
	if err != nil {
		return record.Session{}, err
	}
	if !record.CanTransition(sess.Status, newStatus) {
		return record.Session{}, fmt.Errorf("%s -> %s: %w", sess.Status, newStatus, record.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	sess.Status = newStatus
	sess.UpdatedAt = now
	if newStatus.Terminal() {
		sess.CompletedAt = &now
	} else {
		sess.CompletedAt = nil
	}
	if err := j.store.SaveSession(sess); err != nil {
		return record.Session{}, err
	}

	j.hub.PublishStatusChange(sessionID, newStatus)
	return sess, nil
}
