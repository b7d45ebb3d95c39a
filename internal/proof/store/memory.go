package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"geoprivacy/internal/proof/models"
	id "geoprivacy/pkg/domain"
	"geoprivacy/pkg/geo"
	"geoprivacy/pkg/platform/sentinel"
)

// InMemoryStore keeps records in process. Every read and write copies the
// record so callers never alias stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[models.Token]*models.Record
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[models.Token]*models.Record),
		now:     time.Now,
	}
}

func (s *InMemoryStore) Save(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.Token]; exists {
		return sentinel.ErrConflict
	}
	stored := record.Clone()
	now := s.now()
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.records[record.Token] = stored
	record.CreatedAt, record.UpdatedAt = now, now
	return nil
}

func (s *InMemoryStore) FindByToken(_ context.Context, token models.Token) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Record, 0)
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) ListByTokens(_ context.Context, tokens []models.Token) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Record, 0, len(tokens))
	for _, token := range tokens {
		if r, ok := s.records[token]; ok {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindValidNearby(_ context.Context, lat, lon, radiusMeters float64, now time.Time) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Record, 0)
	for _, r := range s.records {
		if !r.CheckValidity(now) {
			continue
		}
		if geo.HaversineMeters(lat, lon, r.CenterLat, r.CenterLon) <= radiusMeters {
			out = append(out, r.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Invalidate is idempotent; an unknown token is not an error.
func (s *InMemoryStore) Invalidate(_ context.Context, token models.Token, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[token]; ok {
		r.Invalidate(now)
	}
	return nil
}

// CleanExpired deletes records whose expiration date is before now.
func (s *InMemoryStore) CleanExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, r := range s.records {
		if r.ExpirationDate.Before(now) {
			delete(s.records, token)
			removed++
		}
	}
	return removed, nil
}

func sortNewestFirst(records []*models.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ProofTimestamp.After(records[j].ProofTimestamp)
	})
}
