// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kadirpekel/orin/pkg/message"
)

// SQLSessionStore persists session transcripts to a SQL database via
// database/sql, encoding each message's blocks/tool-calls/usage as JSON
// in a single column. dialect picks the schema's AUTOINCREMENT or
// AUTO_INCREMENT keyword; "sqlite3" and "mysql" are supported, matching
// the two drivers this module depends on, and both use "?" placeholders.
type SQLSessionStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLSessionStore opens db (already connected to a sqlite3 or mysql
// database) and ensures the session/message tables exist.
func NewSQLSessionStore(db *sql.DB, dialect string) (*SQLSessionStore, error) {
	s := &SQLSessionStore{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("memory: failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLSessionStore) initSchema() error {
	autoincrement := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == "mysql" {
		autoincrement = "BIGINT PRIMARY KEY AUTO_INCREMENT"
	}

	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS memory_sessions (
	session_id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	last_active_at TIMESTAMP NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS memory_messages (
	id %s,
	session_id TEXT NOT NULL,
	sequence_num BIGINT NOT NULL,
	payload TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`, autoincrement)

	for _, stmt := range splitStatements(schema) {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed (%q): %w", stmt, err)
		}
	}
	return nil
}

func splitStatements(schema string) []string {
	var stmts []string
	start := 0
	for i, r := range schema {
		if r == ';' {
			stmt := schema[start:i]
			start = i + 1
			if trimmed := trimSpace(stmt); trimmed != "" {
				stmts = append(stmts, trimmed)
			}
		}
	}
	return stmts
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// placeholder returns this store's parameter marker. Both supported
// drivers (sqlite3, mysql) use positional "?" placeholders; dialect
// only changes the schema's autoincrement keyword.
func (s *SQLSessionStore) placeholder(int) string {
	return "?"
}

func (s *SQLSessionStore) AppendMessage(ctx context.Context, sessionID string, msg message.Message) error {
	payload, err := encodeMessage(msg)
	if err != nil {
		return fmt.Errorf("memory: failed to encode message: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	seq, err := s.nextSequence(ctx, tx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now()
	insert := fmt.Sprintf(
		"INSERT INTO memory_messages (session_id, sequence_num, payload, created_at) VALUES (%s, %s, %s, %s)",
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
	)
	if _, err := tx.ExecContext(ctx, insert, sessionID, seq, string(payload), now); err != nil {
		return fmt.Errorf("memory: failed to insert message: %w", err)
	}

	if err := s.upsertSessionMetadata(ctx, tx, sessionID, now); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLSessionStore) nextSequence(ctx context.Context, tx *sql.Tx, sessionID string) (int64, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(sequence_num), 0) FROM memory_messages WHERE session_id = %s", s.placeholder(1))
	var max int64
	if err := tx.QueryRowContext(ctx, query, sessionID).Scan(&max); err != nil {
		return 0, fmt.Errorf("memory: failed to read sequence number: %w", err)
	}
	return max + 1, nil
}

func (s *SQLSessionStore) upsertSessionMetadata(ctx context.Context, tx *sql.Tx, sessionID string, now time.Time) error {
	var exists bool
	checkQuery := fmt.Sprintf("SELECT 1 FROM memory_sessions WHERE session_id = %s", s.placeholder(1))
	err := tx.QueryRowContext(ctx, checkQuery, sessionID).Scan(new(int))
	switch {
	case err == sql.ErrNoRows:
		exists = false
	case err != nil:
		return fmt.Errorf("memory: failed to check session existence: %w", err)
	default:
		exists = true
	}

	if !exists {
		insert := fmt.Sprintf(
			"INSERT INTO memory_sessions (session_id, created_at, last_active_at, message_count) VALUES (%s, %s, %s, 1)",
			s.placeholder(1), s.placeholder(2), s.placeholder(3),
		)
		if _, err := tx.ExecContext(ctx, insert, sessionID, now, now); err != nil {
			return fmt.Errorf("memory: failed to create session metadata: %w", err)
		}
		return nil
	}

	update := fmt.Sprintf(
		"UPDATE memory_sessions SET last_active_at = %s, message_count = message_count + 1 WHERE session_id = %s",
		s.placeholder(1), s.placeholder(2),
	)
	if _, err := tx.ExecContext(ctx, update, now, sessionID); err != nil {
		return fmt.Errorf("memory: failed to update session metadata: %w", err)
	}
	return nil
}

func (s *SQLSessionStore) Messages(ctx context.Context, sessionID string, limit int) ([]message.Message, error) {
	query := fmt.Sprintf(
		"SELECT payload FROM memory_messages WHERE session_id = %s ORDER BY sequence_num ASC",
		s.placeholder(1),
	)
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("memory: failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []message.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("memory: failed to scan message row: %w", err)
		}
		msg, err := decodeMessage([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("memory: failed to decode message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *SQLSessionStore) Metadata(ctx context.Context, sessionID string) (SessionMetadata, error) {
	query := fmt.Sprintf(
		"SELECT created_at, last_active_at, message_count FROM memory_sessions WHERE session_id = %s",
		s.placeholder(1),
	)
	var m SessionMetadata
	m.SessionID = sessionID
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&m.CreatedAt, &m.LastActiveAt, &m.MessageCount)
	if err == sql.ErrNoRows {
		return SessionMetadata{SessionID: sessionID}, nil
	}
	if err != nil {
		return SessionMetadata{}, fmt.Errorf("memory: failed to read session metadata: %w", err)
	}
	return m, nil
}

func (s *SQLSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleteMessages := fmt.Sprintf("DELETE FROM memory_messages WHERE session_id = %s", s.placeholder(1))
	if _, err := tx.ExecContext(ctx, deleteMessages, sessionID); err != nil {
		return fmt.Errorf("memory: failed to delete messages: %w", err)
	}

	deleteSession := fmt.Sprintf("DELETE FROM memory_sessions WHERE session_id = %s", s.placeholder(1))
	if _, err := tx.ExecContext(ctx, deleteSession, sessionID); err != nil {
		return fmt.Errorf("memory: failed to delete session: %w", err)
	}

	return tx.Commit()
}

func (s *SQLSessionStore) Close() error {
	return s.db.Close()
}

var _ SessionStore = (*SQLSessionStore)(nil)
