package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Sink persists audit events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// MemorySink keeps events in process. Used in development and tests.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByUser returns a copy of the events recorded for userID.
func (s *MemorySink) ListByUser(_ context.Context, userID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// All returns a copy of every recorded event.
func (s *MemorySink) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}

// Producer is the publishing half of a broker client.
type Producer interface {
	Produce(ctx context.Context, key, value []byte, headers map[string]string) error
}

// KafkaSink publishes events as JSON keyed by user so one user's events stay
// ordered within a partition.
type KafkaSink struct {
	producer Producer
}

func NewKafkaSink(producer Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	headers := map[string]string{"action": string(event.Action)}
	if event.RequestID != "" {
		headers["request_id"] = event.RequestID
	}
	return s.producer.Produce(ctx, []byte(event.UserID), value, headers)
}
