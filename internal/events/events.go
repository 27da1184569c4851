package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Type names a workflow outcome.
type Type string

const (
	TypeAuthenticated     Type = "session.authenticated"
	TypeAuthFailed        Type = "session.auth_failed"
	TypeDiagnosisComplete Type = "diagnosis.completed"
	TypeDiagnosisFailed   Type = "diagnosis.failed"
	TypeProfileCreated    Type = "profile.created"
	TypeProfileFailed     Type = "profile.failed"
)

// Event is one workflow outcome. It never carries the credential or
// image bytes.
type Event struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	OccurredAt   time.Time `json:"occurred_at"`
	Localization string    `json:"localization,omitempty"`
	Code         string    `json:"code,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker operations the client needs.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Publisher sends outcome events to a backend channel. Publishing is
// best effort: failures are logged and never reach the caller.
type Publisher struct {
	backend Backend
	channel string
	logger  *slog.Logger
}

// NewPublisher wraps backend. A nil backend publishes nothing.
func NewPublisher(backend Backend, channel string, logger *slog.Logger) *Publisher {
	if backend == nil {
		backend = Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{backend: backend, channel: channel, logger: logger}
}

// Notify stamps and publishes an event.
func (p *Publisher) Notify(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("encode event", "type", event.Type, "error", err)
		return
	}
	attrs := map[string]string{"type": string(event.Type)}
	if _, err := p.backend.Publish(ctx, p.channel, data, attrs); err != nil {
		p.logger.Warn("publish event", "type", event.Type, "channel", p.channel, "error", err)
	}
}

// Subscribe decodes events from the channel and hands them to fn.
// Undecodable messages are acknowledged and skipped.
func (p *Publisher) Subscribe(ctx context.Context, fn func(Event) error) error {
	return p.backend.Subscribe(ctx, p.channel, func(ctx context.Context, msg Message) error {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			p.logger.Warn("skip undecodable event", "message_id", msg.ID, "error", err)
			return nil
		}
		return fn(event)
	})
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	return p.backend.Close()
}

// Nop drops every published message.
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", nil
}

// Subscribe blocks until ctx is done; nothing is ever delivered.
func (Nop) Subscribe(ctx context.Context, _ string, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (Nop) Close() error { return nil }
