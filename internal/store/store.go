// Package store persists the media identity graph in a Badger key-value
// database. Every entity lives under a string key prefix; the source ref,
// variant, ledger and authority keys double as the public wire contract.
//
// All operations take a context, check cancellation on entry, and are safe
// under concurrent callers. A catalog entry (work + source ref + variant)
// is written in one transaction so readers never observe a half-written
// pair. There is no lock spanning repositories: cross-repository
// consistency is eventual and consumers tolerate it.
package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
)

// WorkIndexer keeps an external title index in sync with work writes.
// The store calls it after each successful transaction; index failures are
// logged, never surfaced. Search may lag the store.
type WorkIndexer interface {
	IndexWork(ctx context.Context, work *domain.Work) error
	DeleteWork(ctx context.Context, workKey string) error
}

// NoopWorkIndexer is a no-op implementation for tests.
type NoopWorkIndexer struct{}

// IndexWork is a no-op.
func (NoopWorkIndexer) IndexWork(context.Context, *domain.Work) error { return nil }

// DeleteWork is a no-op.
func (NoopWorkIndexer) DeleteWork(context.Context, string) error { return nil }

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Title indexer for keeping search in sync with work writes.
	// Set via SetWorkIndexer after store creation to avoid the circular
	// dependency between store and search construction.
	indexer WorkIndexer
}

// Open creates a new Store at the given database path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Badger's own logging is too chatty
	opts.SyncWrites = true       // survive crashes without corrupt pairs
	opts.CompactL0OnClose = true // faster next startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &Store{
		db:      db,
		logger:  logger,
		indexer: NoopWorkIndexer{},
	}

	if logger != nil {
		logger.Info("store opened", "path", path)
	}
	return s, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing store")
	}
	return s.db.Close()
}

// SetWorkIndexer attaches a title indexer. Pass nil to detach.
func (s *Store) SetWorkIndexer(idx WorkIndexer) {
	if idx == nil {
		idx = NoopWorkIndexer{}
	}
	s.indexer = idx
}

// DB exposes the underlying database for maintenance tooling (export,
// inspection). Regular callers go through the repository methods.
func (s *Store) DB() *badger.DB {
	return s.db
}

// Shared transaction helpers.

// getJSON reads and unmarshals a value inside a transaction.
// Returns ErrNotFound for a missing key.
func getJSON(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, dest); err != nil {
			return fmt.Errorf("unmarshal %s: %w", key, err)
		}
		return nil
	})
}

// setJSON marshals and writes a value inside a transaction.
func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// unmarshalValue decodes a raw stored value. Split out so iterator
// callbacks share one decode path with getJSON.
func unmarshalValue(val []byte, dest any) error {
	return json.Unmarshal(val, dest)
}

// view runs a read-only transaction after a cancellation check.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// update runs a read-write transaction after a cancellation check.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

// reindexWork pushes a work into the title index, logging on failure.
func (s *Store) reindexWork(ctx context.Context, work *domain.Work) {
	if err := s.indexer.IndexWork(ctx, work); err != nil && s.logger != nil {
		s.logger.Warn("title index update failed", "work_key", work.WorkKey, "error", err)
	}
}
