package analytics

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type recordingSink struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (s *recordingSink) Publish(subject string, data []byte) error {
	s.subjects = append(s.subjects, subject)
	s.payloads = append(s.payloads, data)
	return s.err
}

func TestPublish_NilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	p.Publish(SubjectSourcesResolved, "sources_resolved", "", nil)
	New(nil, nil).Publish(SubjectSourcesResolved, "sources_resolved", "", nil)
}

func TestPublish_EnvelopeFields(t *testing.T) {
	sink := &recordingSink{}
	p := New(sink, nil)
	p.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("x", 3600)) }

	p.Publish(SubjectEmbedFallback, "embed_fallback", "user-1", map[string]any{"episode_id": "one-piece-100"})

	if len(sink.subjects) != 1 || sink.subjects[0] != SubjectEmbedFallback {
		t.Fatalf("unexpected subjects: %v", sink.subjects)
	}
	var ev Event
	if err := json.Unmarshal(sink.payloads[0], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.EventID == "" || ev.EventName != "embed_fallback" || ev.UserID != "user-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.OccurredAt.Location() != time.UTC || ev.OccurredAt.Hour() != 9 {
		t.Fatalf("expected UTC timestamp, got %s", ev.OccurredAt)
	}
	if ev.Properties["episode_id"] != "one-piece-100" {
		t.Fatalf("unexpected properties: %v", ev.Properties)
	}
}

func TestPublish_SinkErrorIsSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("nats: connection closed")}
	New(sink, nil).Publish(SubjectProxyRejected, "proxy_rejected", "", nil)
	if len(sink.subjects) != 1 {
		t.Fatal("expected one publish attempt")
	}
}
