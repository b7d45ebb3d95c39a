package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"geoprivacy/internal/audit"
	"geoprivacy/internal/platform/metrics"
	"geoprivacy/pkg/requestcontext"
)

const DefaultCleanupInterval = time.Hour

// Cleaner deletes expired records.
type Cleaner interface {
	CleanExpired(ctx context.Context, now time.Time) (int, error)
}

// TickSource returns a tick channel and a stop function.
type TickSource func(interval time.Duration) (<-chan time.Time, func())

func realTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// Sweeper periodically removes expired proofs. It is owned by the process
// lifecycle: Start launches it, Stop cancels and waits for an in-flight sweep.
type Sweeper struct {
	cleaner  Cleaner
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  AuditPublisher
	tracer   trace.Tracer
	clock    func() time.Time
	ticks    TickSource

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type SweeperOption func(*Sweeper)

func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSweeperMetrics(m *metrics.Metrics) SweeperOption {
	return func(s *Sweeper) { s.metrics = m }
}

func WithSweeperAudit(p AuditPublisher) SweeperOption {
	return func(s *Sweeper) { s.auditor = p }
}

func WithSweeperClock(clock func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithTickSource(src TickSource) SweeperOption {
	return func(s *Sweeper) {
		if src != nil {
			s.ticks = src
		}
	}
}

func NewSweeper(cleaner Cleaner, interval time.Duration, opts ...SweeperOption) *Sweeper {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	s := &Sweeper{
		cleaner:  cleaner,
		interval: interval,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		clock:    time.Now,
		ticks:    realTicker,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the sweep loop in the background. Calling Start on a running
// sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go func() {
		defer close(done)
		s.loop(ctx)
	}()
}

// Stop cancels the loop and blocks until it exits. Safe to call when not started.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run blocks until ctx is cancelled, sweeping on every tick.
func (s *Sweeper) Run(ctx context.Context) error {
	s.loop(ctx)
	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	ticks, stop := s.ticks(s.interval)
	defer stop()
	s.logger.InfoContext(ctx, "proof sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "proof sweeper stopped")
			return
		case <-ticks:
			// Failures are already logged and counted; the next tick retries.
			_, _ = s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns how many records were removed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "proof.Sweep")
	defer span.End()

	now := s.clock()
	ctx = requestcontext.WithTime(ctx, now)
	removed, err := s.cleaner.CleanExpired(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sweep failed")
		s.logger.ErrorContext(ctx, "failed to clean expired location proofs", "error", err)
		if s.metrics != nil {
			s.metrics.IncrementCleanupFailures()
		}
		return 0, err
	}

	span.SetAttributes(attribute.Int("proof.removed", removed))
	if s.metrics != nil {
		s.metrics.AddExpiredProofsCleaned(removed)
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "expired location proofs removed", "count", removed)
		if s.auditor != nil {
			_ = s.auditor.Emit(ctx, audit.Event{
				Action: audit.ActionProofsCleaned,
				Detail: strconv.Itoa(removed),
			})
		}
	}
	return removed, nil
}
