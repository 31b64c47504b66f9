// Package gcp holds the Google Cloud integrations: structured logging that
// Cloud Logging understands and Secret Manager access for API keys.
package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/logging"
	"google.golang.org/api/option"

	"github.com/andywolf/concierge/internal/security"
)

// Severity levels for structured logs
const (
	SeverityDebug   = "DEBUG"
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// Field keys that Log lifts out of fields onto the entry itself, so
// concurrent requests sharing one logger can tag their own entries.
const (
	FieldSessionID = "session_id"
	FieldPhase     = "phase"
)

// DefaultLogID is the Cloud Logging log name.
const DefaultLogID = "concierge"

// LogEntry is one structured log line.
type LogEntry struct {
	Severity  string            `json:"severity"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	SessionID string            `json:"sessionId,omitempty"`
	Phase     string            `json:"phase,omitempty"`
	Labels    map[string]string `json:"logging.googleapis.com/labels,omitempty"`
	Fields    map[string]any    `json:"fields,omitempty"`
}

// Logger is the structured logging surface used across the agent.
type Logger interface {
	Log(severity, message string, fields map[string]any)
	Info(msg string)
	Infof(format string, args ...any)
	Warning(msg string)
	Warningf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
	Flush() error
	Close() error
}

// EntrySink receives entries in addition to the local writer.
type EntrySink interface {
	WriteEntry(entry LogEntry)
	Flush() error
	Close() error
}

// CloudLogger writes JSON lines that the Cloud Logging agent can parse and
// optionally forwards each entry to the Cloud Logging API. It also satisfies
// io.Writer so it can back a standard *log.Logger.
type CloudLogger struct {
	mu        sync.Mutex
	writer    io.Writer
	sink      EntrySink
	scrubber  *security.Scrubber
	sessionID string
	labels    map[string]string
	closed    bool
	now       func() time.Time
}

// CloudLoggerOption allows configuring the CloudLogger
type CloudLoggerOption func(*CloudLogger)

// WithWriter sets the writer for JSON lines. A nil writer disables local output.
func WithWriter(w io.Writer) CloudLoggerOption {
	return func(cl *CloudLogger) { cl.writer = w }
}

// WithSessionID sets the session tag for entries that carry no
// FieldSessionID of their own.
func WithSessionID(id string) CloudLoggerOption {
	return func(cl *CloudLogger) { cl.sessionID = id }
}

// WithLabels adds custom labels to all log entries
func WithLabels(labels map[string]string) CloudLoggerOption {
	return func(cl *CloudLogger) {
		for k, v := range labels {
			cl.labels[k] = v
		}
	}
}

// WithScrubber redacts credentials from messages and fields.
func WithScrubber(s *security.Scrubber) CloudLoggerOption {
	return func(cl *CloudLogger) { cl.scrubber = s }
}

// WithSink forwards entries to an additional destination.
func WithSink(s EntrySink) CloudLoggerOption {
	return func(cl *CloudLogger) { cl.sink = s }
}

// NewCloudLogger creates a logger writing to stderr by default.
func NewCloudLogger(opts ...CloudLoggerOption) *CloudLogger {
	cl := &CloudLogger{
		writer: os.Stderr,
		labels: map[string]string{"component": "concierge"},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Log writes a structured log entry
func (cl *CloudLogger) Log(severity, message string, fields map[string]any) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.closed {
		return
	}

	sessionID, phase := cl.sessionID, ""
	if len(fields) > 0 {
		rest := make(map[string]any, len(fields))
		for k, v := range fields {
			switch k {
			case FieldSessionID:
				sessionID = fmt.Sprint(v)
			case FieldPhase:
				phase = fmt.Sprint(v)
			default:
				rest[k] = v
			}
		}
		fields = rest
		if len(fields) == 0 {
			fields = nil
		}
	}

	if cl.scrubber != nil {
		message = cl.scrubber.Scrub(message)
		fields = cl.scrubber.ScrubMap(fields)
	}

	entry := LogEntry{
		Severity:  severity,
		Message:   message,
		Timestamp: cl.now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		Phase:     phase,
		Labels:    cl.labels,
		Fields:    fields,
	}

	if cl.writer != nil {
		fmt.Fprintln(cl.writer, FormatEntry(entry))
	}
	if cl.sink != nil {
		cl.sink.WriteEntry(entry)
	}
}

func (cl *CloudLogger) Debug(msg string) { cl.Log(SeverityDebug, msg, nil) }

func (cl *CloudLogger) Info(msg string) { cl.Log(SeverityInfo, msg, nil) }

func (cl *CloudLogger) Infof(format string, args ...any) {
	cl.Log(SeverityInfo, fmt.Sprintf(format, args...), nil)
}

func (cl *CloudLogger) Warning(msg string) { cl.Log(SeverityWarning, msg, nil) }

func (cl *CloudLogger) Warningf(format string, args ...any) {
	cl.Log(SeverityWarning, fmt.Sprintf(format, args...), nil)
}

func (cl *CloudLogger) Error(msg string) { cl.Log(SeverityError, msg, nil) }

func (cl *CloudLogger) Errorf(format string, args ...any) {
	cl.Log(SeverityError, fmt.Sprintf(format, args...), nil)
}

var prefixPattern = regexp.MustCompile(`^\[[^\]]+\]\s*`)

// Write implements io.Writer. Each call becomes one entry; a leading
// "[component]" tag is stripped and the severity is inferred from the text.
func (cl *CloudLogger) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	msg = prefixPattern.ReplaceAllString(msg, "")
	cl.Log(cl.detectSeverity(msg), msg, nil)
	return len(p), nil
}

// StdLogger returns a *log.Logger backed by cl.
func (cl *CloudLogger) StdLogger() *log.Logger {
	return log.New(cl, "", 0)
}

// StdLoggerWith returns a *log.Logger whose entries carry fields(), read at
// write time. Severity is inferred as in Write.
func (cl *CloudLogger) StdLoggerWith(fields func() map[string]any) *log.Logger {
	return log.New(fieldWriter{cl: cl, fields: fields}, "", 0)
}

type fieldWriter struct {
	cl     *CloudLogger
	fields func() map[string]any
}

func (w fieldWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	msg = prefixPattern.ReplaceAllString(msg, "")
	w.cl.Log(w.cl.detectSeverity(msg), msg, w.fields())
	return len(p), nil
}

func (cl *CloudLogger) detectSeverity(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.HasPrefix(lower, "error") || strings.Contains(lower, "error:") ||
		strings.Contains(lower, "error at") || strings.Contains(lower, "failed"):
		return SeverityError
	case strings.HasPrefix(lower, "warn") || strings.Contains(lower, "warning"):
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Flush ensures all buffered logs are written
func (cl *CloudLogger) Flush() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.closed {
		return nil
	}
	if cl.sink != nil {
		if err := cl.sink.Flush(); err != nil {
			return err
		}
	}
	if syncer, ok := cl.writer.(interface{ Sync() error }); ok {
		_ = syncer.Sync()
	}
	return nil
}

// Close flushes remaining logs and marks the logger as closed
func (cl *CloudLogger) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.closed {
		return nil
	}
	cl.closed = true

	if cl.sink != nil {
		return cl.sink.Close()
	}
	return nil
}

// FormatEntry formats a LogEntry as a single JSON line.
func FormatEntry(entry LogEntry) string {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"severity":"ERROR","message":"failed to marshal log entry: %v"}`, err)
	}
	return string(data)
}

// APISink forwards entries to the Cloud Logging API.
type APISink struct {
	client *logging.Client
	logger *logging.Logger
}

// NewAPISink opens a Cloud Logging client for projectID.
func NewAPISink(ctx context.Context, projectID, logID string, labels map[string]string, opts ...option.ClientOption) (*APISink, error) {
	if logID == "" {
		logID = DefaultLogID
	}
	client, err := logging.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create logging client: %w", err)
	}
	return &APISink{
		client: client,
		logger: client.Logger(logID, logging.CommonLabels(labels)),
	}, nil
}

// WriteEntry enqueues entry; the client batches and sends in the background.
func (s *APISink) WriteEntry(entry LogEntry) {
	if s == nil || s.logger == nil {
		return
	}
	ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	payload := map[string]any{"message": entry.Message}
	if entry.SessionID != "" {
		payload["sessionId"] = entry.SessionID
	}
	if entry.Phase != "" {
		payload["phase"] = entry.Phase
	}
	for k, v := range entry.Fields {
		payload[k] = v
	}
	s.logger.Log(logging.Entry{
		Timestamp: ts,
		Severity:  logging.ParseSeverity(entry.Severity),
		Payload:   payload,
	})
}

func (s *APISink) Flush() error {
	if s == nil || s.logger == nil {
		return nil
	}
	return s.logger.Flush()
}

func (s *APISink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// LoggerConfig selects where logs go.
type LoggerConfig struct {
	Backend   string // "stderr", "stdout" or "gcp"
	ProjectID string
	LogID     string
	Labels    map[string]string
}

// NewLogger builds a CloudLogger for cfg. The "gcp" backend keeps JSON on
// stderr and also ships entries through the Cloud Logging API.
func NewLogger(ctx context.Context, cfg LoggerConfig, opts ...CloudLoggerOption) (*CloudLogger, error) {
	opts = append([]CloudLoggerOption{WithLabels(cfg.Labels)}, opts...)

	switch cfg.Backend {
	case "", "stderr":
		return NewCloudLogger(opts...), nil
	case "stdout":
		return NewCloudLogger(append(opts, WithWriter(os.Stdout))...), nil
	case "gcp":
		projectID := cfg.ProjectID
		if projectID == "" {
			var err error
			if projectID, err = ProjectID(ctx); err != nil {
				return nil, err
			}
		}
		sink, err := NewAPISink(ctx, projectID, cfg.LogID, cfg.Labels)
		if err != nil {
			return nil, err
		}
		return NewCloudLogger(append(opts, WithSink(sink))...), nil
	default:
		return nil, fmt.Errorf("unknown logging backend %q", cfg.Backend)
	}
}

var _ Logger = (*CloudLogger)(nil)
