// Package analytics publishes fire-and-forget playback events over NATS.
package analytics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SubjectSourcesResolved = "analytics.streaming.sources_resolved"
	SubjectEmbedFallback   = "analytics.streaming.embed_fallback"
	SubjectProxyRejected   = "analytics.streaming.proxy_rejected"
)

// Event is the envelope sent to all analytics.* subjects.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	UserID     string         `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Sink is the slice of *nats.Conn the publisher needs.
type Sink interface {
	Publish(subject string, data []byte) error
}

// Publisher is safe to use as a nil pointer or with a nil sink; both are no-ops.
type Publisher struct {
	sink Sink
	log  *zap.Logger
	now  func() time.Time
}

func New(sink Sink, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{sink: sink, log: log, now: time.Now}
}

// Publish never surfaces failures to the caller; they are logged at WARN.
func (p *Publisher) Publish(subject, eventName, userID string, props map[string]any) {
	if p == nil || p.sink == nil {
		return
	}
	ev := Event{
		EventID:    uuid.NewString(),
		EventName:  eventName,
		UserID:     userID,
		OccurredAt: p.now().UTC(),
		Properties: props,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("analytics: marshal failed", zap.String("event", eventName), zap.Error(err))
		return
	}
	if err := p.sink.Publish(subject, data); err != nil {
		p.log.Warn("analytics: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}
