package goLedger

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent is one observable ledger decision: a commit, a rejection, a
// replay, or a failure.
type AuditEvent struct {
	Timestamp      time.Time         `json:"timestamp"`
	EventID        string            `json:"event_id"`
	EventType      string            `json:"event_type"`
	AccountID      string            `json:"account_id,omitempty"`
	Identity       string            `json:"identity,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	IP             string            `json:"ip,omitempty"`
	Success        bool              `json:"success"`
	Error          string            `json:"error,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives events from the engine's dispatcher, one goroutine at
// a time.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit discards the event.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a channel, for tests and custom pipelines.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a sink buffering up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

// Emit forwards the event, honoring context cancellation.
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the sink's receive side.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON line per event.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a line-delimited JSON sink over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit marshals and writes the event. Marshal failures are dropped.
func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
