package webchat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStore persists conversations and profiles in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ ConversationStore = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store: db is nil")
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			access_code TEXT NOT NULL,
			session_id TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			started_at_ms INTEGER NOT NULL,
			last_activity_ms INTEGER NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS conversations_active_pair
			ON conversations(access_code, session_id) WHERE active = 1;`,
		`CREATE INDEX IF NOT EXISTS conversations_by_code
			ON conversations(access_code, last_activity_ms DESC);`,
		`CREATE TABLE IF NOT EXISTS turns (
			conversation_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL,
			PRIMARY KEY (conversation_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS profiles (
			access_code TEXT PRIMARY KEY,
			total_conversations INTEGER NOT NULL DEFAULT 0,
			total_messages INTEGER NOT NULL DEFAULT 0,
			first_seen_ms INTEGER NOT NULL,
			last_active_ms INTEGER NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite store: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) FindActive(ctx context.Context, accessCode, sessionID string) (*StoredConversation, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store: db is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, access_code, session_id, context, started_at_ms, last_activity_ms
		FROM conversations
		WHERE access_code = ? AND session_id = ? AND active = 1
	`, accessCode, sessionID)

	conv, err := scanConversation(row)
	if err != nil {
		return nil, err
	}
	conv.Turns, err = s.loadTurns(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*StoredConversation, error) {
	var conv StoredConversation
	var startedMs, lastMs int64
	err := row.Scan(&conv.ID, &conv.AccessCode, &conv.SessionID, &conv.Context, &startedMs, &lastMs)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: scan conversation")
	}
	conv.Active = true
	conv.StartedAt = time.UnixMilli(startedMs)
	conv.LastActivity = time.UnixMilli(lastMs)
	return &conv, nil
}

func (s *SQLiteStore) loadTurns(ctx context.Context, conversationID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at_ms
		FROM turns
		WHERE conversation_id = ?
		ORDER BY seq ASC
	`, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: load turns")
	}
	defer func() { _ = rows.Close() }()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		var createdMs int64
		if err := rows.Scan(&t.Role, &t.Content, &createdMs); err != nil {
			return nil, err
		}
		t.CreatedAt = time.UnixMilli(createdMs)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) Upsert(ctx context.Context, accessCode, sessionID string, turns []Turn, studentContext string) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store: db is nil")
	}
	if strings.TrimSpace(accessCode) == "" {
		return errors.New("sqlite store: accessCode is empty")
	}
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("sqlite store: sessionID is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	nowMs := time.Now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite store: begin upsert")
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM conversations
		WHERE access_code = ? AND session_id = ? AND active = 1
	`, accessCode, sessionID).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversations(id, access_code, session_id, context, active, started_at_ms, last_activity_ms)
			VALUES(?, ?, ?, ?, 1, ?, ?)
		`, id, accessCode, sessionID, studentContext, nowMs, nowMs)
		if err != nil {
			return errors.Wrap(err, "sqlite store: insert conversation")
		}
	case err != nil:
		return errors.Wrap(err, "sqlite store: find active")
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE conversations SET context = ?, last_activity_ms = ? WHERE id = ?
		`, studentContext, nowMs, id)
		if err != nil {
			return errors.Wrap(err, "sqlite store: update conversation")
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE conversation_id = ?`, id); err != nil {
		return errors.Wrap(err, "sqlite store: clear turns")
	}
	for i, t := range turns {
		createdMs := t.CreatedAt.UnixMilli()
		if t.CreatedAt.IsZero() {
			createdMs = nowMs
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO turns(conversation_id, seq, role, content, created_at_ms)
			VALUES(?, ?, ?, ?, ?)
		`, id, i, string(t.Role), t.Content, createdMs)
		if err != nil {
			return errors.Wrap(err, "sqlite store: insert turn")
		}
	}

	return errors.Wrap(tx.Commit(), "sqlite store: commit upsert")
}

func (s *SQLiteStore) MarkInactive(ctx context.Context, accessCode, sessionID string) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store: db is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET active = 0
		WHERE access_code = ? AND session_id = ? AND active = 1
	`, accessCode, sessionID)
	return errors.Wrap(err, "sqlite store: mark inactive")
}

func (s *SQLiteStore) List(ctx context.Context, accessCode string, limit, skip int) ([]StoredConversation, int, error) {
	if s == nil || s.db == nil {
		return nil, 0, errors.New("sqlite store: db is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 10
	}
	if skip < 0 {
		skip = 0
	}

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversations WHERE access_code = ?
	`, accessCode).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrap(err, "sqlite store: count conversations")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, access_code, session_id, context, active, started_at_ms, last_activity_ms
		FROM conversations
		WHERE access_code = ?
		ORDER BY last_activity_ms DESC
		LIMIT ? OFFSET ?
	`, accessCode, limit, skip)
	if err != nil {
		return nil, 0, errors.Wrap(err, "sqlite store: list conversations")
	}
	defer func() { _ = rows.Close() }()

	items := []StoredConversation{}
	for rows.Next() {
		var conv StoredConversation
		var active int
		var startedMs, lastMs int64
		if err := rows.Scan(&conv.ID, &conv.AccessCode, &conv.SessionID, &conv.Context, &active, &startedMs, &lastMs); err != nil {
			return nil, 0, err
		}
		conv.Active = active == 1
		conv.StartedAt = time.UnixMilli(startedMs)
		conv.LastActivity = time.UnixMilli(lastMs)
		items = append(items, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range items {
		turns, err := s.loadTurns(ctx, items[i].ID)
		if err != nil {
			return nil, 0, err
		}
		items[i].Turns = turns
	}
	return items, total, nil
}

func (s *SQLiteStore) BumpProfile(ctx context.Context, accessCode string, delta ProfileDelta) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store: db is nil")
	}
	if strings.TrimSpace(accessCode) == "" {
		return errors.New("sqlite store: accessCode is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	nowMs := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles(access_code, total_conversations, total_messages, first_seen_ms, last_active_ms)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(access_code) DO UPDATE SET
			total_conversations = total_conversations + excluded.total_conversations,
			total_messages = total_messages + excluded.total_messages,
			last_active_ms = excluded.last_active_ms
	`, accessCode, delta.Conversations, delta.Messages, nowMs, nowMs)
	return errors.Wrap(err, "sqlite store: bump profile")
}

func (s *SQLiteStore) GetProfile(ctx context.Context, accessCode string) (*Profile, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store: db is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT access_code, total_conversations, total_messages, first_seen_ms, last_active_ms, metadata
		FROM profiles
		WHERE access_code = ?
	`, accessCode)

	var p Profile
	var firstMs, lastMs int64
	var metadata string
	err := row.Scan(&p.AccessCode, &p.TotalConversations, &p.TotalMessages, &firstMs, &lastMs, &metadata)
	if err == sql.ErrNoRows {
		return &Profile{AccessCode: accessCode, Metadata: map[string]any{}}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: get profile")
	}
	p.FirstSeen = time.UnixMilli(firstMs)
	p.LastActive = time.UnixMilli(lastMs)
	p.Metadata = map[string]any{}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &p.Metadata); err != nil {
			return nil, errors.Wrap(err, "sqlite store: decode profile metadata")
		}
	}
	return &p, nil
}

// SQLiteDSNForFile builds a DSN with the pragmas the store expects.
func SQLiteDSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}
