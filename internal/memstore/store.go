// Package memstore is an in-process identity store and XP ledger. Every
// mutation happens under the store's own lock, so it offers the same
// atomic upsert-increment guarantee as the PostgreSQL store. It backs the
// "memory" storage driver and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/creator-xp/internal/domain"
)

// Store holds mappings and ledger entries in memory.
type Store struct {
	mu       sync.RWMutex
	mappings map[string]domain.CreatorMapping
	ledger   map[string]domain.LedgerEntry
}

// New returns an empty store.
func New() *Store {
	return &Store{
		mappings: make(map[string]domain.CreatorMapping),
		ledger:   make(map[string]domain.LedgerEntry),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// UpsertMapping inserts or overwrites the mapping for m.Email. An empty
// display name keeps the previously known one only while the member is
// unchanged.
func (s *Store) UpsertMapping(_ context.Context, m domain.CreatorMapping) (*domain.CreatorMapping, error) {
	if m.Email == "" || m.MemberID == "" {
		return nil, domain.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.mappings[m.Email]; ok {
		m.CreatedAt = existing.CreatedAt
		if m.DisplayName == "" && existing.MemberID == m.MemberID {
			m.DisplayName = existing.DisplayName
		}
	} else if m.CreatedAt.IsZero() {
		m.CreatedAt = m.UpdatedAt
	}
	s.mappings[m.Email] = m

	out := m
	return &out, nil
}

// GetMapping returns the mapping for a normalized email.
func (s *Store) GetMapping(_ context.Context, email string) (*domain.CreatorMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mappings[email]
	if !ok {
		return nil, domain.ErrMappingNotFound
	}
	return &m, nil
}

// MappingCount returns the number of stored mappings.
func (s *Store) MappingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mappings)
}

// AwardXP adds xp and one order to memberID's entry, creating it if needed.
func (s *Store) AwardXP(_ context.Context, memberID string, xp int64, at time.Time) (*domain.LedgerEntry, error) {
	if memberID == "" || xp < 0 {
		return nil, domain.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.ledger[memberID]
	e.MemberID = memberID
	e.XP += xp
	e.OrderCount++
	e.UpdatedAt = at
	s.ledger[memberID] = e

	out := e
	return &out, nil
}

// GetEntry returns memberID's ledger entry.
func (s *Store) GetEntry(_ context.Context, memberID string) (*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.ledger[memberID]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return &e, nil
}

// TopEntries returns up to limit entries in ranking order.
func (s *Store) TopEntries(_ context.Context, limit int) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	entries := make([]domain.LedgerEntry, 0, len(s.ledger))
	for _, e := range s.ledger {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return domain.Less(entries[i], entries[j])
	})
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
