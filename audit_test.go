package voteauth

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func drainEvents(t *testing.T, sink *ChannelSink, want int) []AuditEvent {
	t.Helper()

	events := make([]AuditEvent, 0, want)
	deadline := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for audit events, got %d of %d", len(events), want)
		}
	}
	return events
}

func TestAuditEventsFlowThroughChannelSink(t *testing.T) {
	sink := NewChannelSink(32)
	cfg := engineTestConfig()

	engine, _, users, _, done := newTestEngineWithSink(t, cfg, sink)
	defer done()

	seedUser(t, engine, users, "voter1", "123", nil)

	if _, err := engine.Login(context.Background(), "voter1", "wrong"); err == nil {
		t.Fatal("expected login failure")
	}
	if _, err := engine.Login(context.Background(), "voter1", "123"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	events := drainEvents(t, sink, 2)
	if events[0].EventType != auditEventLoginFailure || events[0].Success {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].EventType != auditEventLoginSuccess || !events[1].Success {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Audit.Enabled = false

	engine, _, users, _, done := newTestEngine(t, cfg)
	defer done()

	seedUser(t, engine, users, "voter1", "123", nil)
	if _, err := engine.Login(context.Background(), "voter1", "123"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if engine.audit != nil {
		t.Fatal("expected no dispatcher when audit is disabled")
	}
	if engine.AuditDropped() != 0 {
		t.Fatal("expected zero dropped events")
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Unix(1234567890, 0),
		EventType: auditEventLogout,
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Unix(1234567891, 0),
		EventType: auditEventLoginFailure,
		Error:     "invalid credentials",
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), buf.String())
	}

	var first AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if first.EventType != auditEventLogout || !first.Success {
		t.Fatalf("unexpected event: %+v", first)
	}
}

func TestDispatcherCloseDrainsBuffer(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8, DropIfFull: true}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventLogout})
	}
	d.Close()

	if got := len(sink.Events()); got != 3 {
		t.Fatalf("expected 3 drained events, got %d", got)
	}

	// Emit after close is a no-op.
	d.Emit(context.Background(), AuditEvent{EventType: auditEventLogout})
	if got := len(sink.Events()); got != 3 {
		t.Fatalf("expected no events after close, got %d", got)
	}
}
