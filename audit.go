package identity

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aurorafin/identity/tenant"
)

// AuditEvent is what sinks receive: the ledger entry plus the tenant it was
// recorded in. The entry has already been appended to the tenant's ledger by
// the time a sink sees it; sinks are export-only.
type AuditEvent struct {
	TenantID string            `json:"tenant_id"`
	Entry    tenant.AuditEntry `json:"entry"`
}

// AuditSink receives audit events from the engine's dispatcher. Emit must
// not block indefinitely; slow sinks cause drops, not engine stalls.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards everything.
type NoOpSink struct{}

// Emit implements AuditSink.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel for consumers that want
// to process them on their own goroutine.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

// Emit implements AuditSink.
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line to w.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink returns a sink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit implements AuditSink.
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
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

// ZerologSink logs every event through a zerolog logger, mirroring the
// engine's own log stream.
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink returns a sink logging at info level.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

// Emit implements AuditSink.
func (s *ZerologSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil {
		return
	}
	ev := s.logger.Info().
		Str("tenant", event.TenantID).
		Str("action", event.Entry.Action).
		Str("actor", event.Entry.Actor.UserID).
		Str("severity", string(event.Entry.Severity)).
		Time("at", event.Entry.Timestamp)
	if event.Entry.TargetID != "" {
		ev = ev.Str("target", event.Entry.TargetID)
	}
	if event.Entry.Impersonated != nil {
		ev = ev.Str("impersonated", event.Entry.Impersonated.UserID)
	}
	if len(event.Entry.Metadata) > 0 {
		ev = ev.Interface("metadata", event.Entry.Metadata)
	}
	ev.Msg("audit")
}
