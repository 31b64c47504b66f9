package longterm

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Memory is a persisted interaction or fact tied to a session.
type Memory struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	Importance float64   `json:"importance"`
	Tags       []string  `json:"tags"`
	Timestamp  time.Time `json:"timestamp"`
}

// AddMemory stores content for sessionID and returns the new memory id. An
// empty memType is stored as "interaction".
func (s *Store) AddMemory(ctx context.Context, sessionID, content, memType string, importance float64, tags []string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("session id is required")
	}
	if memType == "" {
		memType = "interaction"
	}
	if importance < 0 {
		importance = 0
	}
	if importance > 1 {
		importance = 1
	}
	if tags == nil {
		tags = []string{}
	}
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, session_id, content, type, importance, tags, created_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, sessionID, content, memType, importance, string(rawTags), time.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("add memory: %w", err)
	}
	return id, nil
}

// GetMemory returns every memory for sessionID, oldest first.
func (s *Store) GetMemory(ctx context.Context, sessionID string) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, content, type, importance, tags, created_ns
		FROM memories
		WHERE session_id = ?
		ORDER BY created_ns ASC, rowid ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// CountMemories returns the number of stored memories across all sessions.
func (s *Store) CountMemories(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

// Prune deletes memories below importanceThreshold, oldest first, until at
// most maxMemories remain or no low-importance memories are left. Important
// memories are never pruned. It returns the number of deleted rows.
func (s *Store) Prune(ctx context.Context, maxMemories int, importanceThreshold float64) (int, error) {
	if maxMemories <= 0 {
		maxMemories = DefaultMaxMemories
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	excess := total - maxMemories
	if excess <= 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM memories WHERE id IN (
			SELECT id FROM memories
			WHERE importance < ?
			ORDER BY created_ns ASC, rowid ASC
			LIMIT ?
		)
	`, importanceThreshold, excess)
	if err != nil {
		return 0, fmt.Errorf("prune memories: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune memories: %w", err)
	}
	return int(n), nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var out []Memory
	for rows.Next() {
		var (
			m       Memory
			rawTags string
			ns      int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Content, &m.Type, &m.Importance, &rawTags, &ns); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		if err := json.Unmarshal([]byte(rawTags), &m.Tags); err != nil {
			m.Tags = []string{}
		}
		m.Timestamp = time.Unix(0, ns)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return out, nil
}
