package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const (
	testLimit  = 10
	testWindow = time.Minute
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore(WithClock(func() time.Time { return s.now }))
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) fill(key string, n int) {
	for range n {
		_, err := s.store.Allow(s.ctx, key, testLimit, testWindow)
		s.Require().NoError(err)
	}
}

func (s *InMemoryStoreSuite) TestAllow() {
	s.Run("first request allowed", func() {
		result, err := s.store.Allow(s.ctx, "proof:user:first", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit, result.Limit)
		s.Equal(testLimit-1, result.Remaining)
		s.Equal(s.now.Add(testWindow), result.ResetAt)
	})

	s.Run("requests up to limit allowed", func() {
		s.fill("proof:user:limit", testLimit-1)
		result, err := s.store.Allow(s.ctx, "proof:user:limit", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(0, result.Remaining)
	})

	s.Run("request over limit denied with retry hint", func() {
		s.fill("proof:user:over", testLimit)
		result, err := s.store.Allow(s.ctx, "proof:user:over", testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(60, result.RetryAfter)
	})

	s.Run("keys are independent", func() {
		s.fill("proof:user:a", testLimit)
		result, err := s.store.Allow(s.ctx, "proof:user:b", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *InMemoryStoreSuite) TestSlidingWindow() {
	s.fill("public:ip:slide", testLimit)

	s.now = s.now.Add(30 * time.Second)
	result, err := s.store.Allow(s.ctx, "public:ip:slide", testLimit, testWindow)
	s.Require().NoError(err)
	s.False(result.Allowed, "still inside the window")
	s.Equal(30, result.RetryAfter)

	s.now = s.now.Add(30 * time.Second)
	result, err = s.store.Allow(s.ctx, "public:ip:slide", testLimit, testWindow)
	s.Require().NoError(err)
	s.True(result.Allowed, "first requests slid out")
}

func (s *InMemoryStoreSuite) TestIdleBucketsAreSwept() {
	for i := range sweepEvery - 1 {
		_, err := s.store.Allow(s.ctx, fmt.Sprintf("public:ip:%d", i), testLimit, testWindow)
		s.Require().NoError(err)
	}
	s.Equal(sweepEvery-1, s.store.Len())

	s.now = s.now.Add(2 * testWindow)
	_, err := s.store.Allow(s.ctx, "public:ip:fresh", testLimit, testWindow)
	s.Require().NoError(err)
	s.Equal(1, s.store.Len())
}

func (s *InMemoryStoreSuite) TestConcurrentAccessNeverOvershoots() {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.store.Allow(s.ctx, "proof:user:race", testLimit, testWindow)
			if err != nil || !result.Allowed {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()
	s.Equal(testLimit, allowed)
}

func TestKeysCannotForgeSegments(t *testing.T) {
	assert.Equal(t, "proof:user:a_ip_b", userKey(ClassProof, "a:ip:b"))
	assert.Equal(t, "public:ip:__1", ipKey(ClassPublic, "::1"))
}
