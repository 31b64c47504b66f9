package longterm

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const maxFTSTokens = 12

// Snippet is a unit of retrievable knowledge.
type Snippet struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// UpsertSnippet stores content under source. Storing the same content for the
// same source again is a no-op that returns the existing id.
func (s *Store) UpsertSnippet(ctx context.Context, content, source string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("snippet content is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge (id, content, source, created_ns)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source, content) DO NOTHING
	`, uuid.NewString(), content, source, time.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("upsert snippet: %w", err)
	}

	var id string
	err = s.db.QueryRowContext(ctx, `SELECT id FROM knowledge WHERE source = ? AND content = ?`, source, content).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert snippet: %w", err)
	}
	return id, nil
}

// CountSnippets returns the number of stored snippets.
func (s *Store) CountSnippets(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snippets: %w", err)
	}
	return n, nil
}

// SearchKnowledge returns up to topK snippets matching any word of query,
// best match first. Lower scores rank higher.
func (s *Store) SearchKnowledge(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	match := buildMatchQuery(query)
	if match == "" {
		return []Snippet{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT k.id, k.content, k.source, bm25(knowledge_fts)
		FROM knowledge k
		JOIN knowledge_fts f ON k.pk = f.rowid
		WHERE knowledge_fts MATCH ?
		ORDER BY bm25(knowledge_fts), k.created_ns ASC
		LIMIT ?
	`, match, topK)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	defer rows.Close()

	out := []Snippet{}
	for rows.Next() {
		var sn Snippet
		if err := rows.Scan(&sn.ID, &sn.Content, &sn.Source, &sn.Score); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		out = append(out, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snippets: %w", err)
	}
	return out, nil
}

// buildMatchQuery turns free text into an FTS5 OR-query of quoted words,
// dropping FTS operators and punctuation.
func buildMatchQuery(text string) string {
	reserved := map[string]bool{"and": true, "or": true, "not": true, "near": true}

	var b strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteByte(' ')
	}

	seen := make(map[string]bool)
	var quoted []string
	for _, word := range strings.Fields(b.String()) {
		if reserved[word] || seen[word] {
			continue
		}
		seen[word] = true
		quoted = append(quoted, `"`+word+`"`)
		if len(quoted) == maxFTSTokens {
			break
		}
	}
	return strings.Join(quoted, " OR ")
}
