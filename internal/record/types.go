package record

import (
	"encoding/json"
	"strings"
	"time"
)

// SessionStatus 会话状态
// SessionStatus is the lifecycle state of a session
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
	StatusCrashed   SessionStatus = "crashed"
)

// allowedTransitions 合法的状态迁移表
// allowedTransitions is the legal status transition table
var allowedTransitions = map[SessionStatus]map[SessionStatus]struct{}{
	StatusActive: {
		StatusPaused:    {},
		StatusCompleted: {},
		StatusCrashed:   {},
	},
	StatusPaused: {
		StatusActive:    {},
		StatusCompleted: {},
		StatusCrashed:   {},
	},
}

// CanTransition 判断状态迁移是否合法
// CanTransition reports whether from -> to is a legal transition
func CanTransition(from, to SessionStatus) bool {
	targets, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Terminal 判断是否终态
// Terminal reports whether the status is terminal
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCrashed
}

// Valid 判断状态值是否已知
// Valid reports whether the status value is known
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusCrashed:
		return true
	}
	return false
}

// Session 一次智能体运行的元数据
// Session is the metadata for one agent run
type Session struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	OriginalPrompt string        `json:"original_prompt"`
	Status         SessionStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	// TokenEstimate/EntryCount 是累计值，折叠不会回退
	// TokenEstimate/EntryCount are cumulative; folding never decrements them
	TokenEstimate int `json:"token_estimate"`
	EntryCount    int `json:"entry_count"`
}

// EntryType 日志条目类型标签
// EntryType tags one kind of journal entry
type EntryType string

const (
	EntryThinking     EntryType = "thinking"
	EntryToolRequest  EntryType = "tool_request"
	EntryToolResult   EntryType = "tool_result"
	EntryToolApproved EntryType = "tool_approved"
	EntryToolRejected EntryType = "tool_rejected"
	EntryFileRead     EntryType = "file_read"
	EntryFileWritten  EntryType = "file_written"
	EntryError        EntryType = "error"
	EntryCheckpoint   EntryType = "checkpoint"
	EntryDecision     EntryType = "decision"
	EntryUserFeedback EntryType = "user_feedback"
	EntrySessionStart EntryType = "session_start"
	EntrySessionEnd   EntryType = "session_end"
)

// Importance 条目重要级
// Importance is the entry importance level
type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceNormal   Importance = "normal"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

// NormalizeImportance 归一化重要级，未知值回退到 normal
// NormalizeImportance normalizes importance, unknown values fall back to normal
func NormalizeImportance(s string) Importance {
	switch Importance(strings.ToLower(strings.TrimSpace(s))) {
	case ImportanceLow:
		return ImportanceLow
	case ImportanceHigh:
		return ImportanceHigh
	case ImportanceCritical:
		return ImportanceCritical
	default:
		return ImportanceNormal
	}
}

// Rank 重要级排序值，用于最小重要级过滤
// Rank is the ordering value used for minimum-importance filtering
func (i Importance) Rank() int {
	switch i {
	case ImportanceLow:
		return 0
	case ImportanceNormal:
		return 1
	case ImportanceHigh:
		return 2
	case ImportanceCritical:
		return 3
	default:
		return 1
	}
}

// Entry 一条不可变的、按会话定序的日志记录
// Entry is one immutable, per-session sequenced journal record
type Entry struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Seq       int64           `json:"seq"`
	Type      EntryType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Content   json.RawMessage `json:"content"`
	// TokenEstimate 由估算器在写入时计算
	// TokenEstimate is computed by the estimator at append time
	TokenEstimate int        `json:"token_estimate"`
	Importance    Importance `json:"importance"`
}

// Checkpoint 覆盖一段连续条目区间的合成摘要
// Checkpoint is a synthesized summary covering a contiguous entry range
type Checkpoint struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	// FromSeq/ToSeq 为闭区间，链式 checkpoint 无缝无重叠
	// FromSeq/ToSeq form a closed range; the chain has no gaps or overlaps
	FromSeq        int64    `json:"from_seq"`
	ToSeq          int64    `json:"to_seq"`
	Summary        string   `json:"summary"`
	KeyDecisions   []string `json:"key_decisions,omitempty"`
	CurrentState   string   `json:"current_state"`
	FilesModified  []string `json:"files_modified,omitempty"`
	PendingActions []string `json:"pending_actions,omitempty"`
}

// ResumptionContext 为中断恢复合成的有界上下文，按需重算、不落盘
// ResumptionContext is the bounded restart context, recomputed on demand and
// never persisted
type ResumptionContext struct {
	OriginalPrompt     string   `json:"original_prompt"`
	WorkSummary        string   `json:"work_summary"`
	KeyDecisions       []string `json:"key_decisions,omitempty"`
	CurrentState       string   `json:"current_state"`
	FilesModified      []string `json:"files_modified,omitempty"`
	PendingActions     []string `json:"pending_actions,omitempty"`
	ErrorHistory       []string `json:"error_history,omitempty"`
	SuggestedNextSteps []string `json:"suggested_next_steps,omitempty"`
	TokenCount         int      `json:"token_count"`
}
