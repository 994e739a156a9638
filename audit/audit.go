// Package audit emits structured security events (logins, refreshes,
// lockouts, logouts) to a pluggable sink through an asynchronous
// dispatcher, so the hot authentication path never blocks on I/O.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one security-relevant occurrence in the engine.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Actions emitted by the engine.
const (
	ActionSignup         = "signup"
	ActionLogin          = "login"
	ActionRefresh        = "refresh"
	ActionLogout         = "logout"
	ActionLockout        = "lockout"
	ActionPasswordChange = "password_change"
)

// Sink receives dispatched events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// JSONLineSink writes one JSON object per line to an io.Writer.
type JSONLineSink struct {
	mu     sync.Mutex
	writer io.Writer
}

func NewJSONLineSink(w io.Writer) *JSONLineSink {
	return &JSONLineSink{writer: w}
}

func (s *JSONLineSink) Emit(_ context.Context, event Event) {
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

// ZapSink logs events through a zap logger at info level, errors at warn.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	if s == nil || s.logger == nil {
		return
	}

	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.Bool("success", event.Success),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.String(k, v))
	}

	if event.Success {
		s.logger.Info("audit: "+event.Action, fields...)
		return
	}
	s.logger.Warn("audit: "+event.Action, fields...)
}

// ChannelSink forwards events into a buffered channel, mainly for tests.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}
