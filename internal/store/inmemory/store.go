// Package inmemory provides an in-memory LedgerRepository used by tests,
// the CLI's local mode, and single-instance development. Data is lost on
// restart; production uses the BigQuery-backed repository.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	bq "github.com/dvloznov/statement-ledger/internal/bigquery"
	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Store keeps one ledger per user behind an RWMutex. It enforces the same
// optimistic revision guard as the BigQuery repository so conflict handling
// can be exercised without a live dataset.
type Store struct {
	mu      sync.RWMutex
	ledgers map[string]*domain.Ledger // keyed by user ID
}

// NewStore creates an empty in-memory ledger store.
func NewStore() *Store {
	return &Store{
		ledgers: make(map[string]*domain.Ledger),
	}
}

// GetLedgerByUser implements LedgerRepository. Returns (nil, nil) when the
// user has no ledger.
func (s *Store) GetLedgerByUser(ctx context.Context, userID string) (*domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.ledgers[userID]
	if !exists {
		return nil, nil
	}

	// Return a copy to avoid external modifications.
	return l.Clone(), nil
}

// UpsertLedger implements LedgerRepository. The write only applies when the
// stored revision matches the ledger's revision (zero for a first merge);
// otherwise another merge won the race and the caller gets
// domain.ErrPersistenceConflict.
func (s *Store) UpsertLedger(ctx context.Context, l *domain.Ledger) (*domain.Ledger, error) {
	if l.UserID == "" {
		return nil, fmt.Errorf("UpsertLedger: user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.ledgers[l.UserID]
	if exists {
		if current.Revision != l.Revision {
			return nil, fmt.Errorf("UpsertLedger: user %s revision %d (stored %d): %w",
				l.UserID, l.Revision, current.Revision, domain.ErrPersistenceConflict)
		}
	} else if l.Revision != 0 {
		return nil, fmt.Errorf("UpsertLedger: user %s revision %d but no stored row: %w",
			l.UserID, l.Revision, domain.ErrPersistenceConflict)
	}

	stored := l.Clone()
	stored.Revision = l.Revision + 1
	s.ledgers[l.UserID] = stored

	return stored.Clone(), nil
}

// Close implements LedgerRepository; there is nothing to release.
func (s *Store) Close() error {
	return nil
}

// Ensure Store implements the repository interface.
var _ bq.LedgerRepository = (*Store)(nil)
