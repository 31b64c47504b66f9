package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Export writes the buffer as JSON, metadata included.
func (b *ContextBuffer) Export(w io.Writer) error {
	b.mu.Lock()
	data := Data{
		SessionID: b.sessionID,
		CreatedAt: b.createdAt,
		Items:     append([]Item{}, b.items...),
	}
	b.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode memory: %w", err)
	}
	return nil
}

// Import replaces the buffer contents with previously exported data. A
// missing session id gets a fresh one and a missing creation time becomes
// now. Token costs are recomputed from content rather than trusted. The
// limits of this buffer are enforced on the imported items, so an oversized
// export is trimmed from the oldest end. Malformed input, including an
// unknown role, leaves the buffer untouched and returns an error.
func (b *ContextBuffer) Import(r io.Reader) error {
	var data Data
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode memory: %w", err)
	}
	for i := range data.Items {
		it := &data.Items[i]
		if !it.Role.Valid() {
			return fmt.Errorf("item %d: unknown role %q", i, it.Role)
		}
		it.Tokens = EstimateTokens(it.Content)
		if it.Metadata == nil {
			it.Metadata = map[string]any{}
		}
	}

	if data.SessionID == "" {
		data.SessionID = uuid.NewString()
	}
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}
	if data.Items == nil {
		data.Items = []Item{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionID = data.SessionID
	b.createdAt = data.CreatedAt
	b.items = data.Items
	b.evict()
	return nil
}

// SaveFile exports the buffer to path, creating parent directories.
func (b *ContextBuffer) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.Export(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadFile imports a buffer previously written by SaveFile.
func (b *ContextBuffer) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return b.Import(f)
}
