package store

import "journal/internal/record"

// EntryFilter 条目读取过滤条件
// EntryFilter narrows an entry range read
type EntryFilter struct {
	// Since 只返回 seq > Since 的条目 / Only entries with seq > Since
	Since int64
	// Until 只返回 seq <= Until 的条目；0 表示不设上界 / 0 means no upper bound
	Until int64
	// Limit 上限；0 表示仅受硬性安全上限约束 / 0 means only the hard safety cap
	Limit int
	// MinImportance 最小重要级；空值不过滤 / Empty means no importance filter
	MinImportance record.Importance
	// Types 类型白名单；空表示全部 / Empty means all types
	Types []record.EntryType
}

// Store 日志持久化接口 (SQLite 为默认后端)
// Store is the journal persistence interface (SQLite is the default backend)
type Store interface {
	// Session 操作 / Session operations
	CreateSession(s record.Session) error
	SaveSession(s record.Session) error
	LoadSession(id string) (record.Session, error)
	ActiveSessionFor(conversationID string) (record.Session, bool, error)
	ListSessions() ([]record.Session, error)

	// Entry 操作 / Entry operations
	AppendEntry(e record.Entry) (record.Entry, error)
	Entries(sessionID string, filter EntryFilter) ([]record.Entry, error)
	MaxSeq(sessionID string) (int64, error)

	// Checkpoint 操作 / Checkpoint operations
	SaveCheckpoint(cp record.Checkpoint) error
	LatestCheckpoint(sessionID string) (record.Checkpoint, bool, error)
	Checkpoints(sessionID string) ([]record.Checkpoint, error)

	// 生命周期 / Lifecycle
	Close() error
}
