package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/deepakmehta1/travel-mcp-prod/internal/domain"
)

// SQLiteSessionStore implements agent.SessionStore backed by SQLite, so
// conversations and consent survive restarts. Per-session serialization
// is process-local: the locks live in memory, the state in the database.
type SQLiteSessionStore struct {
	db   *DB
	seed []domain.Message

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSQLiteSessionStore creates a session store using the given database.
// New and reset sessions start with copies of the seed transcript.
func NewSQLiteSessionStore(db *DB, seed ...domain.Message) *SQLiteSessionStore {
	return &SQLiteSessionStore{
		db:    db,
		seed:  seed,
		locks: map[string]*sync.Mutex{},
	}
}

func (s *SQLiteSessionStore) GetOrCreate(ctx context.Context, id string) (domain.Session, error) {
	sess := domain.Session{ID: id}
	var grantedAt sql.NullString
	var createdAt, lastActive string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT consent_state, consent_scope, consent_granted_at, created_at, last_active
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.Consent.State, &sess.Consent.Scope, &grantedAt, &createdAt, &lastActive)

	switch {
	case err == sql.ErrNoRows:
		return s.create(ctx, id)
	case err != nil:
		return domain.Session{}, fmt.Errorf("loading session %s: %w", id, err)
	}

	sess.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	sess.LastActive, _ = time.Parse(time.DateTime, lastActive)
	if grantedAt.Valid {
		sess.Consent.GrantedAt, _ = time.Parse(time.DateTime, grantedAt.String)
	}

	msgs, err := s.loadMessages(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	sess.Messages = msgs

	if err := s.touch(ctx, id); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *SQLiteSessionStore) create(ctx context.Context, id string) (domain.Session, error) {
	now := time.Now()
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO sessions (id, consent_state, created_at, last_active) VALUES (?, ?, ?, ?)`,
		id, string(domain.ConsentNone), now.Format(time.DateTime), now.Format(time.DateTime),
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("creating session %s: %w", id, err)
	}
	for _, m := range s.seed {
		if err := s.insertMessage(ctx, id, m); err != nil {
			return domain.Session{}, err
		}
	}
	s.db.log.Debug().Str("session", id).Msg("session created")
	return domain.Session{
		ID:         id,
		Messages:   append([]domain.Message(nil), s.seed...),
		Consent:    domain.Consent{State: domain.ConsentNone},
		CreatedAt:  now,
		LastActive: now,
	}, nil
}

// ensure creates the session row and seed transcript if absent.
func (s *SQLiteSessionStore) ensure(ctx context.Context, id string) error {
	var exists int
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking session %s: %w", id, err)
	}
	if exists > 0 {
		return nil
	}
	_, err = s.create(ctx, id)
	return err
}

func (s *SQLiteSessionStore) Append(ctx context.Context, id string, msgs ...domain.Message) error {
	if err := s.ensure(ctx, id); err != nil {
		return err
	}
	for _, m := range msgs {
		if err := s.insertMessage(ctx, id, m); err != nil {
			return err
		}
	}
	return s.touch(ctx, id)
}

func (s *SQLiteSessionStore) GrantConsent(ctx context.Context, id, scope string) error {
	if err := s.ensure(ctx, id); err != nil {
		return err
	}
	_, err := s.db.sql.ExecContext(ctx,
		`UPDATE sessions
		 SET consent_state = ?, consent_scope = ?, consent_granted_at = ?, last_active = ?
		 WHERE id = ? AND consent_state != ?`,
		string(domain.ConsentGranted), scope, time.Now().Format(time.DateTime),
		time.Now().Format(time.DateTime), id, string(domain.ConsentGranted),
	)
	if err != nil {
		return fmt.Errorf("granting consent for %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteSessionStore) Reset(ctx context.Context, id string) error {
	if err := s.ensure(ctx, id); err != nil {
		return err
	}
	if _, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("clearing transcript for %s: %w", id, err)
	}
	if _, err := s.db.sql.ExecContext(ctx,
		`UPDATE sessions
		 SET consent_state = ?, consent_scope = '', consent_granted_at = NULL, last_active = ?
		 WHERE id = ?`,
		string(domain.ConsentNone), time.Now().Format(time.DateTime), id); err != nil {
		return fmt.Errorf("resetting session %s: %w", id, err)
	}
	for _, m := range s.seed {
		if err := s.insertMessage(ctx, id, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteSessionStore) EvictIdle(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxIdle).Format(time.DateTime)

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id FROM sessions WHERE last_active < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing idle sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning idle session id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("listing idle sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id IN
		 (SELECT id FROM sessions WHERE last_active < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("evicting idle transcripts: %w", err)
	}
	res, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM sessions WHERE last_active < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evicting idle sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.db.log.Info().Int64("evicted", n).Msg("idle sessions removed")
	}

	s.mu.Lock()
	for _, id := range ids {
		s.pruneLockLocked(id)
	}
	s.mu.Unlock()

	return int(n), nil
}

// pruneLockLocked drops an evicted session's mutex unless a request still
// holds it; a held lock stays for the next sweep.
func (s *SQLiteSessionStore) pruneLockLocked(id string) {
	lock, ok := s.locks[id]
	if !ok {
		return
	}
	if lock.TryLock() {
		lock.Unlock()
		delete(s.locks, id)
	}
}

func (s *SQLiteSessionStore) Acquire(id string) func() {
	for {
		s.mu.Lock()
		lock, ok := s.locks[id]
		if !ok {
			lock = &sync.Mutex{}
			s.locks[id] = lock
		}
		s.mu.Unlock()

		lock.Lock()

		// an eviction sweep may have pruned the mutex between the map read
		// and the lock; holding a pruned mutex serializes nothing
		s.mu.Lock()
		current := s.locks[id]
		if current == nil {
			s.locks[id] = lock
			current = lock
		}
		s.mu.Unlock()
		if current == lock {
			return lock.Unlock
		}
		lock.Unlock()
	}
}

func (s *SQLiteSessionStore) touch(ctx context.Context, id string) error {
	_, err := s.db.sql.ExecContext(ctx,
		`UPDATE sessions SET last_active = ? WHERE id = ?`,
		time.Now().Format(time.DateTime), id)
	if err != nil {
		return fmt.Errorf("touching session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteSessionStore) insertMessage(ctx context.Context, id string, m domain.Message) error {
	var toolCallsJSON sql.NullString
	if len(m.ToolCalls) > 0 {
		if data, err := json.Marshal(m.ToolCalls); err == nil {
			toolCallsJSON = sql.NullString{String: string(data), Valid: true}
		}
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, call_id, tool_name, tool_calls, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, m.Role, m.Content, m.CallID, m.ToolName, toolCallsJSON, ts.Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("appending message to %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteSessionStore) loadMessages(ctx context.Context, id string) ([]domain.Message, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT role, content, call_id, tool_name, tool_calls, timestamp
		 FROM messages WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("loading messages for %s: %w", id, err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var ts string
		var toolCallsJSON sql.NullString

		if err := rows.Scan(&m.Role, &m.Content, &m.CallID, &m.ToolName, &toolCallsJSON, &ts); err != nil {
			return nil, fmt.Errorf("scanning message for %s: %w", id, err)
		}
		m.Timestamp, _ = time.Parse(time.DateTime, ts)

		if toolCallsJSON.Valid && toolCallsJSON.String != "" {
			_ = json.Unmarshal([]byte(toolCallsJSON.String), &m.ToolCalls)
		}

		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
