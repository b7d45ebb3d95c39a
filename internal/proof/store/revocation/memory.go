package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryList is the single-instance fallback used when Redis is not
// configured. Expired entries are dropped on lookup and by a sweep that runs
// every sweepEvery revocations.
type InMemoryList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	clock   Clock
	writes  int
}

const sweepEvery = 1024

type InMemoryOption func(*InMemoryList)

func WithClock(clock Clock) InMemoryOption {
	return func(l *InMemoryList) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func NewInMemoryList(opts ...InMemoryOption) *InMemoryList {
	l := &InMemoryList{
		revoked: make(map[string]time.Time),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *InMemoryList) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if token == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	l.writes++
	if l.writes%sweepEvery == 0 {
		l.sweep(now)
	}
	l.revoked[token] = now.Add(ttl)
	return nil
}

func (l *InMemoryList) IsRevoked(_ context.Context, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiresAt, ok := l.revoked[token]
	if !ok {
		return false, nil
	}
	if !l.clock().Before(expiresAt) {
		delete(l.revoked, token)
		return false, nil
	}
	return true, nil
}

// sweep drops entries whose ttl has elapsed. Must be called with l.mu held.
func (l *InMemoryList) sweep(now time.Time) {
	for token, expiresAt := range l.revoked {
		if !now.Before(expiresAt) {
			delete(l.revoked, token)
		}
	}
}

// Len reports how many tokens are tracked, expired or not.
func (l *InMemoryList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.revoked)
}
