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
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
)

// UpsertSourceRef creates or refreshes a source reference.
// Idempotent on the source key: FirstSeenAt is fixed at first sight,
// LastSeenAt advances on every upsert.
func (s *Store) UpsertSourceRef(ctx context.Context, ref *domain.SourceRef) error {
	if err := validateSourceRef(ref); err != nil {
		return err
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return upsertSourceRefTxn(txn, ref)
	})
}

func validateSourceRef(ref *domain.SourceRef) error {
	if ref == nil {
		return ErrInvalidInput.WithMessage("source ref is required")
	}
	if strings.TrimSpace(ref.WorkKey) == "" {
		return ErrInvalidInput.WithMessage("source ref needs a work key")
	}
	parts, err := mediakey.ParseSourceKey(ref.SourceKey)
	if err != nil {
		return ErrMalformedKey.WithCause(err)
	}
	// The key is derived from these fields; a mismatch means the caller
	// assembled the ref by hand and got it wrong.
	if parts.SourceType != ref.SourceType || parts.AccountKey != ref.AccountKey ||
		parts.ItemKind != ref.ItemKind || parts.ItemKey != ref.ItemKey {
		return ErrMalformedKey.WithMessage("source key does not match ref fields")
	}
	return nil
}

// upsertSourceRefTxn merges an incoming ref over the stored one.
func upsertSourceRefTxn(txn *badger.Txn, ref *domain.SourceRef) error {
	key := []byte(ref.SourceKey)
	now := time.Now()

	var existing domain.SourceRef
	err := getJSON(txn, key, &existing)
	switch {
	case errors.Is(err, ErrNotFound):
		ref.FirstSeenAt = now
	case err != nil:
		return err
	default:
		ref.FirstSeenAt = existing.FirstSeenAt
		// A ref cannot move between works through an upsert; merges go
		// through redirects. Keep the index consistent regardless.
		if existing.WorkKey != ref.WorkKey {
			if err := txn.Delete(workSourceIdxKey(existing.WorkKey, ref.SourceKey)); err != nil {
				return fmt.Errorf("delete work-source index: %w", err)
			}
		}
		if err := txn.Delete(timestampIndexKey(updatedSrcPrefix, existing.LastSeenAt, ref.SourceKey)); err != nil {
			return fmt.Errorf("delete updated index: %w", err)
		}
	}
	ref.LastSeenAt = now
	if ref.Availability == "" {
		ref.Availability = domain.AvailabilityActive
	}

	if err := setJSON(txn, key, ref); err != nil {
		return err
	}
	if err := txn.Set(workSourceIdxKey(ref.WorkKey, ref.SourceKey), nil); err != nil {
		return fmt.Errorf("set work-source index: %w", err)
	}
	return txn.Set(timestampIndexKey(updatedSrcPrefix, ref.LastSeenAt, ref.SourceKey), nil)
}

// GetSourceRef retrieves a source reference by key.
func (s *Store) GetSourceRef(ctx context.Context, sourceKey string) (*domain.SourceRef, error) {
	var ref domain.SourceRef
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, []byte(sourceKey), &ref)
	})
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// SourceRefsForWork returns all source references pointing at a work.
func (s *Store) SourceRefsForWork(ctx context.Context, workKey string) ([]*domain.SourceRef, error) {
	var refs []*domain.SourceRef
	idxPrefix := []byte(workSourceIdxPrefix + workKey + ":")

	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = idxPrefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(idxPrefix); it.ValidForPrefix(idxPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			sourceKey := string(it.Item().Key())[len(idxPrefix):]
			var ref domain.SourceRef
			err := getJSON(txn, []byte(sourceKey), &ref)
			if errors.Is(err, ErrNotFound) {
				continue // stale index entry, diagnostics will flag it
			}
			if err != nil {
				return err
			}
			refs = append(refs, &ref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// ListSourceRefs iterates all source refs, optionally narrowed to one
// source type or one account via the prefix helpers in mediakey.
func (s *Store) ListSourceRefs(ctx context.Context, prefix string) iter.Seq2[*domain.SourceRef, error] {
	if prefix == "" {
		prefix = "src:"
	}
	return listPrefix[domain.SourceRef](s, ctx, prefix)
}

// SourceRefsUpdatedSince returns source keys last seen at or after t.
func (s *Store) SourceRefsUpdatedSince(ctx context.Context, t time.Time) ([]string, error) {
	return s.updatedSince(ctx, updatedSrcPrefix, t)
}

// MarkSourceRefsRemoved walks every ref under the given key prefix,
// flips its availability to REMOVED, and drops its variants, which are
// unplayable once the ref is gone from the source. Batched per
// transaction so a large account clear does not hold one write lock for
// its whole duration. Returns the number of refs updated.
func (s *Store) MarkSourceRefsRemoved(ctx context.Context, prefix string) (int, error) {
	const chunk = 200

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		updated := 0
		err := s.db.Update(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)

			it := txn.NewIterator(opts)

			// Collect first; the write-txn allows one iterator at a
			// time and the variant cleanup below needs its own.
			var refs []*domain.SourceRef
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(refs) < chunk; it.Next() {
				var ref domain.SourceRef
				err := it.Item().Value(func(val []byte) error {
					return unmarshalValue(val, &ref)
				})
				if err != nil {
					it.Close()
					return err
				}
				if ref.Availability == domain.AvailabilityRemoved {
					continue
				}
				refs = append(refs, &ref)
			}
			it.Close()

			for _, ref := range refs {
				ref.Availability = domain.AvailabilityRemoved
				if err := setJSON(txn, []byte(ref.SourceKey), ref); err != nil {
					return err
				}
				if err := deleteVariantsTxn(txn, ref.SourceKey); err != nil {
					return err
				}
				updated++
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += updated
		if updated < chunk {
			return total, nil
		}
	}
}

// DeleteSourceRef removes a ref, its work index entry, and its variants.
// Idempotent.
func (s *Store) DeleteSourceRef(ctx context.Context, sourceKey string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var existing domain.SourceRef
		err := getJSON(txn, []byte(sourceKey), &existing)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := txn.Delete(workSourceIdxKey(existing.WorkKey, sourceKey)); err != nil {
			return fmt.Errorf("delete work-source index: %w", err)
		}
		if err := txn.Delete(timestampIndexKey(updatedSrcPrefix, existing.LastSeenAt, sourceKey)); err != nil {
			return fmt.Errorf("delete updated index: %w", err)
		}
		if err := deleteVariantsTxn(txn, sourceKey); err != nil {
			return err
		}
		return txn.Delete([]byte(sourceKey))
	})
}
