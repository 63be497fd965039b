package agent

import (
	"context"
	"sync"
	"time"

	"github.com/deepakmehta1/travel-mcp-prod/internal/domain"
)

// SessionStore holds conversation state keyed by an opaque session id.
// Implementations must serialize concurrent requests for the same id via
// Acquire while leaving different ids fully independent.
type SessionStore interface {
	// GetOrCreate returns a snapshot of the session, creating it with the
	// seed transcript and no consent if absent. Touches last-active.
	GetOrCreate(ctx context.Context, id string) (domain.Session, error)

	// Append adds messages to the transcript and touches last-active.
	Append(ctx context.Context, id string, msgs ...domain.Message) error

	// GrantConsent arms payment tools for the session.
	GrantConsent(ctx context.Context, id, scope string) error

	// Reset returns the session to the seed transcript and clears consent.
	Reset(ctx context.Context, id string) error

	// EvictIdle removes sessions idle longer than maxIdle and reports how
	// many were dropped.
	EvictIdle(ctx context.Context, maxIdle time.Duration) (int, error)

	// Acquire blocks until this goroutine holds the session's exclusive
	// slot, then returns the release func.
	Acquire(id string) (release func())
}

// MemoryStore is an in-process SessionStore.
type MemoryStore struct {
	seed []domain.Message
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*domain.Session
	locks    map[string]*sync.Mutex
}

// NewMemoryStore builds a store whose new and reset sessions start with
// copies of the seed transcript (typically the system prompt).
func NewMemoryStore(seed ...domain.Message) *MemoryStore {
	return &MemoryStore{
		seed:     seed,
		now:      time.Now,
		sessions: map[string]*domain.Session{},
		locks:    map[string]*sync.Mutex{},
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	sess.LastActive = s.now()
	return snapshot(sess), nil
}

func (s *MemoryStore) Append(ctx context.Context, id string, msgs ...domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	sess.Messages = append(sess.Messages, msgs...)
	sess.LastActive = s.now()
	return nil
}

func (s *MemoryStore) GrantConsent(ctx context.Context, id, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	if !sess.Consent.Granted() {
		sess.Consent = domain.Consent{
			State:     domain.ConsentGranted,
			GrantedAt: s.now(),
			Scope:     scope,
		}
	}
	sess.LastActive = s.now()
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	sess.Messages = append([]domain.Message(nil), s.seed...)
	sess.Consent = domain.Consent{State: domain.ConsentNone}
	sess.LastActive = s.now()
	return nil
}

func (s *MemoryStore) EvictIdle(ctx context.Context, maxIdle time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxIdle)
	n := 0
	for id, sess := range s.sessions {
		if sess.LastActive.Before(cutoff) {
			delete(s.sessions, id)
			s.pruneLockLocked(id)
			n++
		}
	}
	return n, nil
}

// pruneLockLocked drops an evicted session's mutex unless a request still
// holds it; a held lock stays for the next sweep.
func (s *MemoryStore) pruneLockLocked(id string) {
	lock, ok := s.locks[id]
	if !ok {
		return
	}
	if lock.TryLock() {
		lock.Unlock()
		delete(s.locks, id)
	}
}

func (s *MemoryStore) Acquire(id string) func() {
	for {
		s.mu.Lock()
		lock, ok := s.locks[id]
		if !ok {
			lock = &sync.Mutex{}
			s.locks[id] = lock
		}
		s.mu.Unlock()

		lock.Lock()

		// an eviction sweep may have pruned the mutex between the map read
		// and the lock; holding a pruned mutex serializes nothing
		s.mu.Lock()
		current := s.locks[id]
		if current == nil {
			s.locks[id] = lock
			current = lock
		}
		s.mu.Unlock()
		if current == lock {
			return lock.Unlock
		}
		lock.Unlock()
	}
}

func (s *MemoryStore) getOrCreateLocked(id string) *domain.Session {
	sess, ok := s.sessions[id]
	if !ok {
		now := s.now()
		sess = &domain.Session{
			ID:         id,
			Messages:   append([]domain.Message(nil), s.seed...),
			Consent:    domain.Consent{State: domain.ConsentNone},
			CreatedAt:  now,
			LastActive: now,
		}
		s.sessions[id] = sess
	}
	return sess
}

func snapshot(sess *domain.Session) domain.Session {
	out := *sess
	out.Messages = append([]domain.Message(nil), sess.Messages...)
	return out
}
