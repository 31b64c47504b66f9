package events

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultFilename is the event log name inside the events directory.
const DefaultFilename = "events.jsonl"

// maxLineSize bounds one JSONL record when reading back.
const maxLineSize = 1 << 20

var errSinkClosed = errors.New("event sink is closed")

// FileSink appends AgentEvents to dir/events.jsonl, one JSON object per line.
// Every Write is flushed before it returns. Safe for concurrent use.
type FileSink struct {
	mu   sync.Mutex
	path string
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// NewFileSink opens (or creates) the event log under dir.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create events dir: %w", err)
	}
	path := filepath.Join(dir, DefaultFilename)

	// Tool inputs can echo what travellers typed, so the log is private.
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}

	buf := bufio.NewWriter(file)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &FileSink{path: path, file: file, buf: buf, enc: enc}, nil
}

func (s *FileSink) Write(evts []AgentEvent) error {
	if len(evts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errSinkClosed
	}

	for i := range evts {
		if err := s.enc.Encode(&evts[i]); err != nil {
			return fmt.Errorf("failed to write %s event: %w", evts[i].Type, err)
		}
	}
	return s.buf.Flush()
}

// WriteOne appends a single event.
func (s *FileSink) WriteOne(evt AgentEvent) error {
	return s.Write([]AgentEvent{evt})
}

// Close flushes and closes the file. Closing twice is a no-op.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}

	flushErr := s.buf.Flush()
	closeErr := s.file.Close()
	s.file = nil
	if flushErr != nil {
		return fmt.Errorf("failed to flush events: %w", flushErr)
	}
	return closeErr
}

// Path is the event log location.
func (s *FileSink) Path() string {
	return s.path
}

// ReadEvents loads every event in a JSONL file, oldest first. Blank lines
// are skipped; a malformed line fails the whole read.
func ReadEvents(path string) ([]AgentEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var evts []AgentEvent
	for line := 1; scanner.Scan(); line++ {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var evt AgentEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		evts = append(evts, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}
	return evts, nil
}

var _ Sink = (*FileSink)(nil)
