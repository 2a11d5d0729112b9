package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type ChatEntry struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"-"`
	SessionID string          `json:"session_id"`
	Question  string          `json:"question"`
	Answer    string          `json:"answer"`
	Sources   json.RawMessage `json:"sources"`
	CreatedAt time.Time       `json:"created_at"`
}

type ChatSession struct {
	SessionID     string    `json:"session_id"`
	FirstQuestion string    `json:"first_question"`
	MessageCount  int       `json:"message_count"`
	LastActivity  time.Time `json:"last_activity"`
}

func (s *Store) SaveChatEntry(ctx context.Context, entry ChatEntry) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_history (user_id, session_id, question, answer, sources)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, entry.UserID, entry.SessionID, entry.Question, entry.Answer, entry.Sources).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert chat entry: %w", err)
	}
	return id, nil
}

func (s *Store) HistoryByUser(ctx context.Context, userID int64, limit int) ([]ChatEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, session_id, question, answer, sources, created_at
		FROM chat_history WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()
	return scanChatEntries(rows)
}

// SessionHistory returns a session's turns oldest-first so they can be fed
// back into prompt assembly as prior conversation context.
func (s *Store) SessionHistory(ctx context.Context, userID int64, sessionID string, limit int) ([]ChatEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, session_id, question, answer, sources, created_at
		FROM (
			SELECT id, user_id, session_id, question, answer, sources, created_at
			FROM chat_history WHERE user_id = $1 AND session_id = $2
			ORDER BY created_at DESC LIMIT $3
		) recent
		ORDER BY created_at ASC
	`, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query session history: %w", err)
	}
	defer rows.Close()
	return scanChatEntries(rows)
}

func (s *Store) Sessions(ctx context.Context, userID int64) ([]ChatSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id,
		       (ARRAY_AGG(question ORDER BY created_at ASC))[1] AS first_question,
		       COUNT(*) AS message_count,
		       MAX(created_at) AS last_activity
		FROM chat_history
		WHERE user_id = $1
		GROUP BY session_id
		ORDER BY last_activity DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]ChatSession, 0)
	for rows.Next() {
		var session ChatSession
		if err := rows.Scan(&session.SessionID, &session.FirstQuestion, &session.MessageCount, &session.LastActivity); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *Store) ClearHistory(ctx context.Context, userID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM chat_history WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("clear chat history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanChatEntries(rows pgx.Rows) ([]ChatEntry, error) {
	entries := make([]ChatEntry, 0)
	for rows.Next() {
		var entry ChatEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.SessionID, &entry.Question, &entry.Answer, &entry.Sources, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
