package record

import "errors"

// 核心错误分类，调用方用 errors.Is 匹配
// Core error taxonomy, matched by callers with errors.Is
var (
	// ErrConflict 同一 conversation 已存在活跃会话
	// ErrConflict means an active session already exists for the conversation
	ErrConflict = errors.New("active session already exists for conversation")

	// ErrInvalidTransition 非法状态迁移
	// ErrInvalidTransition means an illegal status transition was requested
	ErrInvalidTransition = errors.New("invalid session status transition")

	// ErrSessionNotActive 向非活跃会话追加条目
	// ErrSessionNotActive means an append hit a non-active session
	ErrSessionNotActive = errors.New("session is not active")

	// ErrNotFound 未知会话或 checkpoint
	// ErrNotFound means the session or checkpoint is unknown
	ErrNotFound = errors.New("not found")

	// ErrSummarization 摘要生成失败或输出不合法
	// ErrSummarization means checkpoint summarization failed or was malformed
	ErrSummarization = errors.New("summarization failed")

	// ErrNoCheckpointAvailable 空会话无法合成恢复上下文
	// ErrNoCheckpointAvailable means resumption was requested on an empty session
	ErrNoCheckpointAvailable = errors.New("no entries or checkpoint available")
)
