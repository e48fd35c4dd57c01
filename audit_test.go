package statecore

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAuditEventsReachSink(t *testing.T) {
	sink := NewChannelSink(16)

	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.Issue(context.Background(), Principal{ID: "p1"}); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	select {
	case event := <-sink.Events():
		if event.EventType != auditEventTokenIssued {
			t.Fatalf("unexpected event type %q", event.EventType)
		}
		if event.PrincipalID != "p1" {
			t.Fatalf("unexpected principal %q", event.PrincipalID)
		}
		if !event.Success {
			t.Fatal("issue event should be marked success")
		}
		if event.ID == "" {
			t.Fatal("event missing ID")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event delivered")
	}
}

func TestJSONWriterSinkWritesOneEventPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{ID: "1", EventType: auditEventTokenRevoked, PrincipalID: "p1"})
	sink.Emit(context.Background(), AuditEvent{ID: "2", EventType: auditEventRateLimited, Category: "auth"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[1]), &event); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if event.EventType != auditEventRateLimited || event.Category != "auth" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestAuditDispatcherDropsUnderBackpressure(t *testing.T) {
	block := make(chan struct{})
	sink := &blockingSink{release: block}

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the consumer, second fills the buffer, the rest
	// must be dropped rather than stall the caller.
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{ID: "x"})
	}

	waitFor(t, 2*time.Second, func() bool { return d.Dropped() > 0 })

	close(block)
	d.Close()
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
}
