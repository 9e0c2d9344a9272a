package store

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
)

// UpsertLedgerEntry records the decision for one ingest candidate.
// Idempotent on the ledger key: exactly one entry per candidate, with
// FirstSeenAt fixed and LastSeenAt advancing on re-evaluation.
//
// The orchestration layer must write an entry for every candidate it
// considers, success or failure, so this path never rejects a
// structurally valid entry.
func (s *Store) UpsertLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	if entry == nil {
		return ErrInvalidInput.WithMessage("ledger entry is required")
	}
	if _, err := mediakey.ParseLedgerKey(entry.LedgerKey); err != nil {
		return ErrMalformedKey.WithCause(err)
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return upsertLedgerEntryTxn(txn, entry)
	})
}

func upsertLedgerEntryTxn(txn *badger.Txn, entry *domain.LedgerEntry) error {
	now := time.Now()
	var existing domain.LedgerEntry
	err := getJSON(txn, []byte(entry.LedgerKey), &existing)
	switch {
	case errors.Is(err, ErrNotFound):
		entry.FirstSeenAt = now
	case err != nil:
		return err
	default:
		entry.FirstSeenAt = existing.FirstSeenAt
	}
	entry.LastSeenAt = now
	return setJSON(txn, []byte(entry.LedgerKey), entry)
}

// UpsertLedgerEntries writes a batch of entries in one transaction.
func (s *Store) UpsertLedgerEntries(ctx context.Context, entries []*domain.LedgerEntry) error {
	for _, entry := range entries {
		if entry == nil {
			return ErrInvalidInput.WithMessage("ledger batch contains nil entry")
		}
		if _, err := mediakey.ParseLedgerKey(entry.LedgerKey); err != nil {
			return ErrMalformedKey.WithCause(err)
		}
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		for _, entry := range entries {
			if err := upsertLedgerEntryTxn(txn, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetLedgerEntry retrieves the decision record for a candidate.
func (s *Store) GetLedgerEntry(ctx context.Context, ledgerKey string) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, []byte(ledgerKey), &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ShouldSkip is the ingest fast path: true when the candidate was already
// rejected and its re-evaluation TTL has not run out. Unknown candidates
// and accepted ones are never skipped here; accepted items short-circuit
// through the idempotent upsert instead.
func (s *Store) ShouldSkip(ctx context.Context, ledgerKey string, now time.Time) (bool, error) {
	entry, err := s.GetLedgerEntry(ctx, ledgerKey)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return entry.State == domain.LedgerRejected && !entry.Expired(now), nil
}

// ListLedgerEntries iterates every ledger entry.
func (s *Store) ListLedgerEntries(ctx context.Context) iter.Seq2[*domain.LedgerEntry, error] {
	return listPrefix[domain.LedgerEntry](s, ctx, "led:")
}

// LedgerEntriesByState returns every entry in one decision state.
func (s *Store) LedgerEntriesByState(ctx context.Context, state domain.LedgerState) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	for entry, err := range s.ListLedgerEntries(ctx) {
		if err != nil {
			return nil, err
		}
		if entry.State == state {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// CountLedgerByState tallies entries per decision state, for diagnostics
// and the no-drop check.
func (s *Store) CountLedgerByState(ctx context.Context) (map[domain.LedgerState]int, error) {
	counts := make(map[domain.LedgerState]int)
	for entry, err := range s.ListLedgerEntries(ctx) {
		if err != nil {
			return nil, err
		}
		counts[entry.State]++
	}
	return counts, nil
}
