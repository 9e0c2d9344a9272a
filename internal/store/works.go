package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
)

// UpsertWork creates or updates a canonical work.
// The work key and CreatedAt are durable: on update only mutable fields
// change. Recognition never downgrades from CONFIRMED back to HEURISTIC
// through an upsert; that transition does not exist.
func (s *Store) UpsertWork(ctx context.Context, work *domain.Work) error {
	if work == nil || strings.TrimSpace(work.WorkKey) == "" {
		return ErrInvalidInput.WithMessage("work key is required")
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		return upsertWorkTxn(txn, work)
	})
	if err != nil {
		return err
	}

	s.reindexWork(ctx, work)
	return nil
}

// upsertWorkTxn merges an incoming work over the stored one inside txn.
// The incoming struct is updated in place to the merged state.
func upsertWorkTxn(txn *badger.Txn, work *domain.Work) error {
	key := workDBKey(work.WorkKey)

	var existing domain.Work
	err := getJSON(txn, key, &existing)
	switch {
	case errors.Is(err, ErrNotFound):
		work.InitTimestamps()
		if work.RecognitionState == "" {
			work.RecognitionState = domain.RecognitionHeuristic
		}
	case err != nil:
		return err
	default:
		// Durable fields survive re-ingestion.
		work.CreatedAt = existing.CreatedAt
		if existing.RecognitionState == domain.RecognitionConfirmed {
			work.RecognitionState = domain.RecognitionConfirmed
		} else if work.RecognitionState == "" {
			work.RecognitionState = domain.RecognitionHeuristic
		}
		// Drop the stale updated-at index entry.
		if err := txn.Delete(timestampIndexKey(updatedWorkPrefix, existing.UpdatedAt, work.WorkKey)); err != nil {
			return fmt.Errorf("delete updated index: %w", err)
		}
		work.Touch()
	}

	if err := setJSON(txn, key, work); err != nil {
		return err
	}
	return txn.Set(timestampIndexKey(updatedWorkPrefix, work.UpdatedAt, work.WorkKey), nil)
}

// GetWork retrieves a work by its canonical key.
func (s *Store) GetWork(ctx context.Context, workKey string) (*domain.Work, error) {
	var work domain.Work
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, workDBKey(workKey), &work)
	})
	if err != nil {
		return nil, err
	}
	return &work, nil
}

// GetWorks retrieves a batch of works by key. Missing keys are skipped,
// not errors; the result holds only the works that exist.
func (s *Store) GetWorks(ctx context.Context, workKeys []string) ([]*domain.Work, error) {
	works := make([]*domain.Work, 0, len(workKeys))
	err := s.view(ctx, func(txn *badger.Txn) error {
		for _, key := range workKeys {
			if err := ctx.Err(); err != nil {
				return err
			}
			var work domain.Work
			err := getJSON(txn, workDBKey(key), &work)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			works = append(works, &work)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return works, nil
}

// DeleteWork removes a work. Idempotent. Dependent source refs, relations
// and user state are untouched; diagnostics flags them as orphans if the
// caller forgets to migrate them first.
func (s *Store) DeleteWork(ctx context.Context, workKey string) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		var existing domain.Work
		err := getJSON(txn, workDBKey(workKey), &existing)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(timestampIndexKey(updatedWorkPrefix, existing.UpdatedAt, workKey)); err != nil {
			return fmt.Errorf("delete updated index: %w", err)
		}
		return txn.Delete(workDBKey(workKey))
	})
	if err != nil {
		return err
	}

	if err := s.indexer.DeleteWork(ctx, workKey); err != nil && s.logger != nil {
		s.logger.Warn("title index delete failed", "work_key", workKey, "error", err)
	}
	return nil
}

// ListWorks iterates all works. The iterator honors ctx cancellation.
func (s *Store) ListWorks(ctx context.Context) iter.Seq2[*domain.Work, error] {
	return listPrefix[domain.Work](s, ctx, workPrefix)
}

// WorksUpdatedSince returns the keys of works updated at or after t,
// in update order. This is the incremental-sync window.
func (s *Store) WorksUpdatedSince(ctx context.Context, t time.Time) ([]string, error) {
	return s.updatedSince(ctx, updatedWorkPrefix, t)
}

// CountWorks returns the number of stored works.
func (s *Store) CountWorks(ctx context.Context) (int, error) {
	return s.countPrefix(ctx, workPrefix)
}

// listPrefix iterates all JSON values under a prefix, skipping index keys.
func listPrefix[T any](s *Store, ctx context.Context, prefix string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return unmarshalValue(val, &entity)
				})
				if err != nil {
					yield(nil, err)
					return err
				}
				if !yield(&entity, nil) {
					return nil // consumer stopped early
				}
			}
			return nil
		})
	}
}

// countPrefix counts primary keys under a prefix without loading values.
func (s *Store) countPrefix(ctx context.Context, prefix string) (int, error) {
	count := 0
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// updatedSince walks a timestamp index from t forward and collects the
// referenced entity keys in update order.
func (s *Store) updatedSince(ctx context.Context, prefix string, t time.Time) ([]string, error) {
	var keys []string
	start := timestampIndexKey(prefix, t, "")
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			entityKey, err := timestampIndexEntityKey(it.Item().Key(), prefix)
			if err != nil {
				return err
			}
			keys = append(keys, entityKey)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
