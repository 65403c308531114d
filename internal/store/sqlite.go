package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"journal/internal/record"

	_ "modernc.org/sqlite"
)

// maxEntryRead 单次条目读取的硬性安全上限
// maxEntryRead is the hard safety ceiling for a single entry read
const maxEntryRead = 10000

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接避免写事务升级时的 SQLITE_BUSY；事务本身都很短
	// A single connection avoids SQLITE_BUSY on write upgrades; every
	// transaction here is short
	db.SetMaxOpenConns(1)

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		original_prompt TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'active',
		token_estimate  INTEGER NOT NULL DEFAULT 0,
		entry_count     INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		completed_at    TEXT
	);

	CREATE TABLE IF NOT EXISTS entries (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id     TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq            INTEGER NOT NULL,
		type           TEXT NOT NULL,
		content        TEXT NOT NULL DEFAULT '{}',
		token_estimate INTEGER NOT NULL DEFAULT 0,
		importance     TEXT NOT NULL DEFAULT 'normal',
		created_at     TEXT NOT NULL,
		UNIQUE(session_id, seq)
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id              TEXT PRIMARY KEY,
		session_id      TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		from_seq        INTEGER NOT NULL,
		to_seq          INTEGER NOT NULL,
		summary         TEXT NOT NULL DEFAULT '',
		key_decisions   TEXT NOT NULL DEFAULT '[]',
		current_state   TEXT NOT NULL DEFAULT '',
		files_modified  TEXT NOT NULL DEFAULT '[]',
		pending_actions TEXT NOT NULL DEFAULT '[]',
		created_at      TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active
		ON sessions(conversation_id) WHERE status = 'active';
	CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id, seq);
	CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(session_id, type);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id, to_seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- Session Operations ---

func (s *SQLiteStore) CreateSession(sess record.Session) error {
	if strings.TrimSpace(sess.ID) == "" {
		return fmt.Errorf("session id is empty")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if sess.Status == record.StatusActive {
		var existing string
		err := tx.QueryRow(
			`SELECT id FROM sessions WHERE conversation_id=? AND status=?`,
			sess.ConversationID, record.StatusActive).Scan(&existing)
		switch {
		case err == nil:
			return fmt.Errorf("conversation %s has session %s: %w",
				sess.ConversationID, existing, record.ErrConflict)
		case err != sql.ErrNoRows:
			return fmt.Errorf("check active session: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO sessions (id, conversation_id, original_prompt, status,
			token_estimate, entry_count, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ConversationID, sess.OriginalPrompt, string(sess.Status),
		sess.TokenEstimate, sess.EntryCount,
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt), formatTimePtr(sess.CompletedAt),
	)
	if err != nil {
		// 部分唯一索引兜底并发创建 / Partial unique index backstops concurrent creates
		if isUniqueViolation(err) {
			return fmt.Errorf("conversation %s: %w", sess.ConversationID, record.ErrConflict)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return tx.Commit()
}

// SaveSession 持久化状态字段；计数器由 AppendEntry 事务维护
// SaveSession persists status fields; counters are maintained by the
// AppendEntry transaction
func (s *SQLiteStore) SaveSession(sess record.Session) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET status=?, updated_at=?, completed_at=?
		WHERE id=?`,
		string(sess.Status), formatTime(sess.UpdatedAt), formatTimePtr(sess.CompletedAt), sess.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("conversation %s: %w", sess.ConversationID, record.ErrConflict)
		}
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, record.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) LoadSession(id string) (record.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return record.Session{}, fmt.Errorf("session id is empty")
	}
	row := s.db.QueryRow(`
		SELECT id, conversation_id, original_prompt, status, token_estimate,
			entry_count, created_at, updated_at, completed_at
		FROM sessions WHERE id=?`, id)
	sess, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return record.Session{}, fmt.Errorf("session %s: %w", id, record.ErrNotFound)
		}
		return record.Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) ActiveSessionFor(conversationID string) (record.Session, bool, error) {
	row := s.db.QueryRow(`
		SELECT id, conversation_id, original_prompt, status, token_estimate,
			entry_count, created_at, updated_at, completed_at
		FROM sessions WHERE conversation_id=? AND status=?`,
		conversationID, record.StatusActive)
	sess, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return record.Session{}, false, nil
		}
		return record.Session{}, false, fmt.Errorf("load active session: %w", err)
	}
	return sess, true, nil
}

func (s *SQLiteStore) ListSessions() ([]record.Session, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, original_prompt, status, token_estimate,
			entry_count, created_at, updated_at, completed_at
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []record.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// --- Entry Operations ---

// AppendEntry 在单事务内分配 seq、写入条目并更新会话累计计数
// AppendEntry assigns seq, writes the entry and bumps the cumulative session
// counters in a single transaction
func (s *SQLiteStore) AppendEntry(e record.Entry) (record.Entry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return record.Entry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	if err := tx.QueryRow(`SELECT status FROM sessions WHERE id=?`, e.SessionID).Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return record.Entry{}, fmt.Errorf("session %s: %w", e.SessionID, record.ErrNotFound)
		}
		return record.Entry{}, fmt.Errorf("load session status: %w", err)
	}
	if record.SessionStatus(status) != record.StatusActive {
		return record.Entry{}, fmt.Errorf("session %s is %s: %w", e.SessionID, status, record.ErrSessionNotActive)
	}

	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM entries WHERE session_id=?`,
		e.SessionID).Scan(&e.Seq); err != nil {
		return record.Entry{}, fmt.Errorf("next seq: %w", err)
	}

	content := string(e.Content)
	if content == "" {
		content = "{}"
	}
	res, err := tx.Exec(`
		INSERT INTO entries (session_id, seq, type, content, token_estimate, importance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Seq, string(e.Type), content, e.TokenEstimate,
		string(e.Importance), formatTime(e.Timestamp),
	)
	if err != nil {
		return record.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return record.Entry{}, fmt.Errorf("entry id: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE sessions SET entry_count = entry_count + 1,
			token_estimate = token_estimate + ?, updated_at = ?
		WHERE id=?`,
		e.TokenEstimate, formatTime(e.Timestamp), e.SessionID); err != nil {
		return record.Entry{}, fmt.Errorf("update session counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return record.Entry{}, fmt.Errorf("commit entry: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) Entries(sessionID string, filter EntryFilter) ([]record.Entry, error) {
	if _, err := s.LoadSession(sessionID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, session_id, seq, type, content, token_estimate, importance, created_at
		FROM entries WHERE session_id=? AND seq>?`
	args := []any{sessionID, filter.Since}

	if filter.Until > 0 {
		query += " AND seq<=?"
		args = append(args, filter.Until)
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND type IN (" + strings.Join(placeholders, ",") + ")"
	}
	if filter.MinImportance != "" {
		allowed := importanceAtLeast(filter.MinImportance)
		placeholders := make([]string, len(allowed))
		for i, imp := range allowed {
			placeholders[i] = "?"
			args = append(args, string(imp))
		}
		query += " AND importance IN (" + strings.Join(placeholders, ",") + ")"
	}

	limit := maxEntryRead
	if filter.Limit > 0 && filter.Limit < limit {
		limit = filter.Limit
	}
	query += " ORDER BY seq LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []record.Entry
	for rows.Next() {
		var e record.Entry
		var typ, content, importance, createdAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Seq, &typ, &content,
			&e.TokenEstimate, &importance, &createdAt); err != nil {
			continue
		}
		e.Type = record.EntryType(typ)
		e.Content = json.RawMessage(content)
		e.Importance = record.Importance(importance)
		e.Timestamp = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) MaxSeq(sessionID string) (int64, error) {
	var seq int64
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(seq), 0) FROM entries WHERE session_id=?`,
		sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

// --- Checkpoint Operations ---

func (s *SQLiteStore) SaveCheckpoint(cp record.Checkpoint) error {
	decisions, err := marshalList(cp.KeyDecisions)
	if err != nil {
		return fmt.Errorf("marshal key decisions: %w", err)
	}
	files, err := marshalList(cp.FilesModified)
	if err != nil {
		return fmt.Errorf("marshal files modified: %w", err)
	}
	pending, err := marshalList(cp.PendingActions)
	if err != nil {
		return fmt.Errorf("marshal pending actions: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO checkpoints (id, session_id, from_seq, to_seq, summary,
			key_decisions, current_state, files_modified, pending_actions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.SessionID, cp.FromSeq, cp.ToSeq, cp.Summary,
		decisions, cp.CurrentState, files, pending, formatTime(cp.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestCheckpoint(sessionID string) (record.Checkpoint, bool, error) {
	row := s.db.QueryRow(`
		SELECT id, session_id, from_seq, to_seq, summary, key_decisions,
			current_state, files_modified, pending_actions, created_at
		FROM checkpoints WHERE session_id=? ORDER BY to_seq DESC LIMIT 1`, sessionID)
	cp, err := scanCheckpoint(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return record.Checkpoint{}, false, nil
		}
		return record.Checkpoint{}, false, fmt.Errorf("latest checkpoint: %w", err)
	}
	return cp, true, nil
}

func (s *SQLiteStore) Checkpoints(sessionID string) ([]record.Checkpoint, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, from_seq, to_seq, summary, key_decisions,
			current_state, files_modified, pending_actions, created_at
		FROM checkpoints WHERE session_id=? ORDER BY to_seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []record.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			continue
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

// --- Helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (record.Session, error) {
	var sess record.Session
	var status, createdAt, updatedAt string
	var completedAt sql.NullString
	err := row.Scan(&sess.ID, &sess.ConversationID, &sess.OriginalPrompt, &status,
		&sess.TokenEstimate, &sess.EntryCount, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return record.Session{}, err
	}
	sess.Status = record.SessionStatus(status)
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	if completedAt.Valid && completedAt.String != "" {
		t := parseTime(completedAt.String)
		sess.CompletedAt = &t
	}
	return sess, nil
}

func scanCheckpoint(row rowScanner) (record.Checkpoint, error) {
	var cp record.Checkpoint
	var decisions, files, pending, createdAt string
	err := row.Scan(&cp.ID, &cp.SessionID, &cp.FromSeq, &cp.ToSeq, &cp.Summary,
		&decisions, &cp.CurrentState, &files, &pending, &createdAt)
	if err != nil {
		return record.Checkpoint{}, err
	}
	cp.KeyDecisions = unmarshalList(decisions)
	cp.FilesModified = unmarshalList(files)
	cp.PendingActions = unmarshalList(pending)
	cp.CreatedAt = parseTime(createdAt)
	return cp, nil
}

func marshalList(items []string) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalList(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil
	}
	return items
}

func importanceAtLeast(min record.Importance) []record.Importance {
	all := []record.Importance{
		record.ImportanceLow, record.ImportanceNormal,
		record.ImportanceHigh, record.ImportanceCritical,
	}
	var allowed []record.Importance
	for _, imp := range all {
		if imp.Rank() >= min.Rank() {
			allowed = append(allowed, imp)
		}
	}
	return allowed
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
