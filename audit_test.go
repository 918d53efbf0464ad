package clipauth

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), s)
}

func buildAuditTestEngine(t *testing.T, cfg Config, sink AuditSink, up UserProvider) (*Engine, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(up).
		WithAuditSink(sink).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		mr.Close()
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := authTestConfig()
	cfg.Audit.Enabled = false

	up := newSeededUserProvider(t)
	sink := &countingSink{}
	engine, done := buildAuditTestEngine(t, cfg, sink, up)
	defer done()

	_, _ = engine.Login(WithClientIP(context.Background(), "203.0.113.1"), "alice", "wrong-password")
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditEnabledSinkReceivesEventWithFields(t *testing.T) {
	cfg := authTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16
	cfg.Audit.DropIfFull = true

	up := newSeededUserProvider(t)
	sink := newCaptureSink(8)
	engine, done := buildAuditTestEngine(t, cfg, sink, up)
	defer done()

	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.33"), "clip-test/1.0")
	_, _ = engine.Login(ctx, "alice", "super-secret-password")

	select {
	case ev := <-sink.events:
		if ev.EventType == "" {
			t.Fatal("expected event type to be populated")
		}
		if ev.IP != "198.51.100.33" {
			t.Fatalf("expected IP 198.51.100.33, got %q", ev.IP)
		}
		if ev.UserAgent != "clip-test/1.0" {
			t.Fatalf("expected user agent to be carried, got %q", ev.UserAgent)
		}
		if ev.Error == "super-secret-password" {
			t.Fatal("sensitive password leaked in error")
		}
		for _, v := range ev.Metadata {
			if v == "super-secret-password" {
				t.Fatal("sensitive password leaked in metadata")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected audit event to be received")
	}
}

func TestAuditRefreshReuseEmitsEvent(t *testing.T) {
	cfg := authTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = true

	up := newSeededUserProvider(t)
	sink := newCaptureSink(32)
	engine, done := buildAuditTestEngine(t, cfg, sink, up)
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, _, err := engine.Refresh(ctx, result.RefreshToken); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	_, _, _ = engine.Refresh(ctx, result.RefreshToken)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.events:
			if ev.EventType == auditEventRefreshReuseDetected {
				if ev.UserID != "u1" {
					t.Fatalf("expected user id u1 on reuse event, got %q", ev.UserID)
				}
				return
			}
		case <-deadline:
			t.Fatal("expected refresh reuse audit event")
		}
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		UserID:    "u1",
		IP:        "127.0.0.1",
		Success:   true,
	}
	sink.Emit(context.Background(), event)

	if !buf.Contains("login_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"user_id\":\"u1\"") {
		t.Fatal("expected JSON log line to contain user id")
	}
}
