// Package eventlog appends pipeline events to a line-delimited JSON journal.
package eventlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileName is the journal's name inside the log directory.
const FileName = "pipeline.jsonl"

// Event statuses.
const (
	StatusOK           = "ok"
	StatusNeedsReview  = "needs_review"
	StatusError        = "error"
	StatusTimeout      = "timeout"
	StatusSchemaError  = "schema_error"
	StatusRetryError   = "retry_error"
	StatusResolveError = "resolve_error"
	StatusAborted      = "aborted"
)

// Event is one journal line.
type Event struct {
	Time    time.Time `json:"ts"`
	RunID   string    `json:"run_id"`
	Step    string    `json:"step"`
	JobID   string    `json:"job_id,omitempty"`
	SKU     string    `json:"sku,omitempty"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	Summary string    `json:"summary,omitempty"`
	Tokens  int       `json:"tokens,omitempty"`
}

// Log is an append-only event journal. A nil *Log only mirrors to slog.
type Log struct {
	path  string
	runID string

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// Open opens (creating if needed) the journal in dir. Existing lines are kept.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	return &Log{
		path:  path,
		runID: uuid.NewString(),
		file:  file,
		enc:   json.NewEncoder(file),
	}, nil
}

// Path returns the journal location.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID identifies every event written by this process.
func (l *Log) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Append writes evt and mirrors it to the default slog logger. Write failures
// are logged, never returned.
func (l *Log) Append(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	mirror(evt)
	if l == nil {
		return
	}
	evt.RunID = l.runID

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.enc == nil {
		return
	}
	if err := l.enc.Encode(evt); err != nil {
		slog.Warn("Failed to append event", "path", l.path, "error", err)
	}
}

// Close releases the journal file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.enc = nil
	return err
}

func mirror(evt Event) {
	attrs := []any{"step", evt.Step, "status", evt.Status}
	if evt.JobID != "" {
		attrs = append(attrs, "job_id", evt.JobID)
	}
	if evt.SKU != "" {
		attrs = append(attrs, "sku", evt.SKU)
	}
	if evt.Summary != "" {
		attrs = append(attrs, "summary", evt.Summary)
	}
	if evt.Tokens > 0 {
		attrs = append(attrs, "tokens", evt.Tokens)
	}
	msg := evt.Message
	if msg == "" {
		msg = "Pipeline event"
	}
	switch evt.Status {
	case StatusOK, StatusNeedsReview:
		slog.Info(msg, attrs...)
	case StatusAborted:
		slog.Error(msg, attrs...)
	default:
		slog.Warn(msg, attrs...)
	}
}
