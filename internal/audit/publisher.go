package audit

import (
	"context"
	"log/slog"

	"geoprivacy/internal/platform/metrics"
	"geoprivacy/pkg/requestcontext"
)

// DefaultBufferSize bounds the number of events awaiting the worker.
const DefaultBufferSize = 1024

// Publisher enqueues events for the Worker. Emit never blocks the caller:
// when the buffer is full the event is dropped and counted.
type Publisher struct {
	inbox   chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func WithBufferSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.inbox = make(chan Event, n)
		}
	}
}

func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{
		inbox:  make(chan Event, DefaultBufferSize),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit stamps the event with request metadata and enqueues it.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"request_id", event.RequestID,
		)
		if p.metrics != nil {
			p.metrics.IncrementAuditEventsDropped()
		}
	}
	return nil
}

// Inbox is the channel the Worker consumes.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}
