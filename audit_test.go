package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurorafin/identity/tenant"
)

func auditEvent(action string) AuditEvent {
	return AuditEvent{
		TenantID: "demo",
		Entry: tenant.AuditEntry{
			ID:        "entry-1",
			Action:    action,
			Actor:     tenant.Identity{UserID: "user-alice"},
			Severity:  tenant.SeverityInfo,
			Timestamp: time.Now(),
		},
	}
}

func TestChannelSinkReceivesEngineEvents(t *testing.T) {
	sink := NewChannelSink(64)
	cfg := testConfig()

	e, err := New().
		WithConfig(cfg).
		WithSeed("demo", testSeed(t)).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, err := e.Login(context.Background(), "demo", "alice", testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	e.Close() // drains the dispatcher

	var actions []string
	for {
		select {
		case ev := <-sink.Events():
			actions = append(actions, ev.Entry.Action)
			continue
		default:
		}
		break
	}

	found := false
	for _, a := range actions {
		if a == auditEventLoginSuccess {
			found = true
		}
	}
	if !found {
		t.Fatalf("login_success never reached the sink, got %v", actions)
	}
}

func TestJSONWriterSinkWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), auditEvent("login_success"))
	sink.Emit(context.Background(), auditEvent("logout"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	for _, line := range lines {
		var ev AuditEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		if ev.TenantID != "demo" {
			t.Fatalf("tenant lost in encoding: %+v", ev)
		}
	}
}

func TestZerologSinkEmits(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZerologSink(zerolog.New(&buf))

	sink.Emit(context.Background(), auditEvent("impersonation_started"))

	if !bytes.Contains(buf.Bytes(), []byte("impersonation_started")) {
		t.Fatalf("expected action in log output, got %s", buf.String())
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := &blockingSink{release: block}

	d := newAuditDispatcher(AuditConfig{BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the worker, second fills the buffer, the rest
	// must be counted as drops.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), auditEvent("login_failure"))
	}
	close(block)
	d.Close()

	if d.Dropped() == 0 {
		t.Fatal("expected drops under backpressure")
	}
}

func TestDispatcherNilSink(t *testing.T) {
	d := newAuditDispatcher(testConfig().Audit, nil)
	if d != nil {
		t.Fatal("dispatcher without sink should be nil")
	}
	d.Emit(context.Background(), auditEvent("noop")) // nil-safe
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports drops")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
}
