package goLedger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbolt/goLedger/clock"
)

func auditTestConfig() Config {
	cfg := submitTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false
	return cfg
}

func collectAudit(t *testing.T, sink *ChannelSink, n int) []AuditEvent {
	t.Helper()

	events := make([]AuditEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case event := <-sink.Events():
			events = append(events, event)
		case <-timeout:
			t.Fatalf("timed out waiting for audit events, got %d of %d", len(events), n)
		}
	}
	return events
}

func TestAuditEventsForSubmitLifecycle(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	sink := NewChannelSink(64)
	engine, err := New().
		WithConfig(auditTestConfig()).
		WithRedis(rdb).
		WithClock(clock.NewFake(time.Unix(1700000000, 0))).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "10.1.2.3")

	if _, err := engine.OpenAccount(ctx, "acct-1", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("OpenAccount failed: %v", err)
	}
	if _, err := engine.Submit(ctx, debitReq("acct-1", "req-1", "10", 1)); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := engine.Submit(ctx, debitReq("acct-1", "req-1", "10", 1)); err != nil {
		t.Fatalf("replay Submit failed: %v", err)
	}

	events := collectAudit(t, sink, 3)

	byType := map[string]AuditEvent{}
	for _, event := range events {
		byType[event.EventType] = event
	}

	opened, ok := byType[auditEventAccountOpened]
	if !ok {
		t.Fatal("missing account_opened event")
	}
	if !opened.Success || opened.AccountID != "acct-1" {
		t.Fatalf("unexpected account_opened event: %+v", opened)
	}

	committed, ok := byType[auditEventSubmitCommitted]
	if !ok {
		t.Fatal("missing submit_committed event")
	}
	if !committed.Success || committed.IP != "10.1.2.3" {
		t.Fatalf("unexpected submit_committed event: %+v", committed)
	}
	if committed.Metadata["new_version"] != "2" {
		t.Fatalf("expected new_version metadata, got %+v", committed.Metadata)
	}
	if committed.EventID == "" {
		t.Fatal("events must carry a unique id")
	}
	if want := time.Unix(1700000000, 0).UTC(); !committed.Timestamp.Equal(want) {
		t.Fatalf("event timestamp = %v, want engine clock %v", committed.Timestamp, want)
	}

	replayed, ok := byType[auditEventSubmitReplayed]
	if !ok {
		t.Fatal("missing submit_replayed event")
	}
	if replayed.IdempotencyKey != "req-1" {
		t.Fatalf("unexpected submit_replayed event: %+v", replayed)
	}
}

func TestAuditThrottledEvent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := auditTestConfig()
	cfg.Admission.DefaultPolicy = BucketPolicy{Capacity: 1, RefillRatePerSecond: 0.001}

	sink := NewChannelSink(16)
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(clock.NewFake(time.Unix(1700000000, 0))).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	openTestAccount(t, engine, "acct-1", "100")

	if _, err := engine.Submit(context.Background(), debitReq("acct-1", "req-1", "1", 1)); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	if _, err := engine.Submit(context.Background(), debitReq("acct-1", "req-2", "1", 2)); err == nil {
		t.Fatal("expected throttle")
	}

	events := collectAudit(t, sink, 3)
	var throttle *AuditEvent
	for i := range events {
		if events[i].EventType == auditEventSubmitThrottled {
			throttle = &events[i]
		}
	}
	if throttle == nil {
		t.Fatal("missing submit_throttled event")
	}
	if throttle.Success || throttle.Error != string(auditErrThrottled) {
		t.Fatalf("unexpected throttle event: %+v", throttle)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	engine, _, done := newSubmitEngine(t, submitTestConfig())
	defer done()

	openTestAccount(t, engine, "acct-1", "100")
	if _, err := engine.Submit(context.Background(), debitReq("acct-1", "req-1", "10", 1)); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Audit disabled: no dispatcher, nothing dropped, nothing panics.
	if engine.AuditDropped() != 0 {
		t.Fatal("disabled audit reported drops")
	}
}

type slowSink struct {
	mu       sync.Mutex
	received int
	release  chan struct{}
}

func (s *slowSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
	s.mu.Lock()
	s.received++
	s.mu.Unlock()
}

func TestAuditDropIfFullSheds(t *testing.T) {
	sink := &slowSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the drain goroutine, second fills the buffer,
	// the rest must be shed without blocking.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "x"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected shed events under backpressure")
	}

	close(sink.release)
	d.Close()
}

func TestAuditDispatcherDrainsOnClose(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 32, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{
			EventType: auditEventSubmitCommitted,
			AccountID: "acct-1",
			Timestamp: time.Unix(1700000000, 0),
		})
	}
	d.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 drained events, got %d", len(lines))
	}
	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if event.EventType != auditEventSubmitCommitted || event.AccountID != "acct-1" {
		t.Fatalf("unexpected decoded event: %+v", event)
	}
}

func TestAuditEmitAfterCloseIsNoOp(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4, DropIfFull: true}, NoOpSink{})
	d.Close()
	d.Emit(context.Background(), AuditEvent{EventType: "x"})
	d.Close()
}
