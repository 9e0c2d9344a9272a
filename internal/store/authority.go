package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
)

// UpsertAuthorityRef attaches or refreshes an external catalog identity.
// Idempotent on the authority key. Confirming a ref demotes any other
// CONFIRMED ref of the same (type, namespace) on that work to PROBABLE,
// keeping the at-most-one-confirmed invariant inside one transaction.
func (s *Store) UpsertAuthorityRef(ctx context.Context, ref *domain.AuthorityRef) error {
	if err := validateAuthorityRef(ref); err != nil {
		return err
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		var existing domain.AuthorityRef
		err := getJSON(txn, authDBKey(ref.AuthorityKey), &existing)
		switch {
		case errors.Is(err, ErrNotFound):
			ref.InitTimestamps()
		case err != nil:
			return err
		default:
			ref.CreatedAt = existing.CreatedAt
			ref.Touch()
			if existing.WorkKey != ref.WorkKey {
				if err := txn.Delete(workAuthIdxKey(existing.WorkKey, ref.AuthorityKey)); err != nil {
					return fmt.Errorf("delete work-authority index: %w", err)
				}
			}
		}

		if ref.Status == domain.AuthorityConfirmed {
			if err := demoteSiblingsTxn(txn, ref); err != nil {
				return err
			}
		}

		if err := setJSON(txn, authDBKey(ref.AuthorityKey), ref); err != nil {
			return err
		}
		return txn.Set(workAuthIdxKey(ref.WorkKey, ref.AuthorityKey), nil)
	})
}

func validateAuthorityRef(ref *domain.AuthorityRef) error {
	if ref == nil {
		return ErrInvalidInput.WithMessage("authority ref is required")
	}
	if strings.TrimSpace(ref.WorkKey) == "" {
		return ErrInvalidInput.WithMessage("authority ref needs a work key")
	}
	if strings.TrimSpace(ref.Type) == "" || strings.TrimSpace(ref.Namespace) == "" {
		return ErrInvalidInput.WithMessage("authority ref needs type and namespace")
	}
	want := ref.Type + ":" + ref.Namespace + ":"
	if !strings.HasPrefix(ref.AuthorityKey, want) || len(ref.AuthorityKey) == len(want) {
		return ErrMalformedKey.WithMessage("authority key does not match type and namespace")
	}
	return nil
}

// demoteSiblingsTxn downgrades other CONFIRMED refs of the same
// (type, namespace) on the same work to PROBABLE.
func demoteSiblingsTxn(txn *badger.Txn, ref *domain.AuthorityRef) error {
	prefix := []byte(workAuthIdxPrefix + ref.WorkKey + ":")

	var demote []string
	collect := func() error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			authorityKey := string(it.Item().Key())[len(prefix):]
			if authorityKey == ref.AuthorityKey {
				continue
			}
			var sibling domain.AuthorityRef
			if err := getJSON(txn, authDBKey(authorityKey), &sibling); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			if sibling.Status == domain.AuthorityConfirmed &&
				sibling.Type == ref.Type && sibling.Namespace == ref.Namespace {
				demote = append(demote, authorityKey)
			}
		}
		return nil
	}
	if err := collect(); err != nil {
		return err
	}

	for _, authorityKey := range demote {
		var sibling domain.AuthorityRef
		if err := getJSON(txn, authDBKey(authorityKey), &sibling); err != nil {
			return err
		}
		sibling.Status = domain.AuthorityProbable
		sibling.Touch()
		if err := setJSON(txn, authDBKey(authorityKey), &sibling); err != nil {
			return err
		}
	}
	return nil
}

// GetAuthorityRef retrieves an authority ref by key.
func (s *Store) GetAuthorityRef(ctx context.Context, authorityKey string) (*domain.AuthorityRef, error) {
	var ref domain.AuthorityRef
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, authDBKey(authorityKey), &ref)
	})
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// FindWorkKeyByAuthorityKey is the cross-pipeline dedup lookup: if an
// incoming item's external ID already maps to a work, the caller reuses
// that work instead of minting a new heuristic key. Rejected matches do
// not count.
func (s *Store) FindWorkKeyByAuthorityKey(ctx context.Context, authorityKey string) (string, error) {
	ref, err := s.GetAuthorityRef(ctx, authorityKey)
	if err != nil {
		return "", err
	}
	if ref.Status == domain.AuthorityRejected {
		return "", ErrNotFound.WithMessage("authority match was rejected")
	}
	return ref.WorkKey, nil
}

// AuthorityRefsForWork returns every external identity attached to a work.
func (s *Store) AuthorityRefsForWork(ctx context.Context, workKey string) ([]*domain.AuthorityRef, error) {
	var refs []*domain.AuthorityRef
	idxPrefix := []byte(workAuthIdxPrefix + workKey + ":")

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
			authorityKey := string(it.Item().Key())[len(idxPrefix):]
			var ref domain.AuthorityRef
			err := getJSON(txn, authDBKey(authorityKey), &ref)
			if errors.Is(err, ErrNotFound) {
				continue
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

// DeleteAuthorityRef removes an external identity. Idempotent.
func (s *Store) DeleteAuthorityRef(ctx context.Context, authorityKey string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var existing domain.AuthorityRef
		err := getJSON(txn, authDBKey(authorityKey), &existing)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(workAuthIdxKey(existing.WorkKey, authorityKey)); err != nil {
			return fmt.Errorf("delete work-authority index: %w", err)
		}
		return txn.Delete(authDBKey(authorityKey))
	})
}
