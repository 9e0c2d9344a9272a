package store

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
)

// UpsertVariant creates or updates a playable variant.
// The referenced source ref must already exist; a variant without its ref
// would be unplayable and unreachable.
func (s *Store) UpsertVariant(ctx context.Context, v *domain.Variant) error {
	if err := validateVariant(v); err != nil {
		return err
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(v.SourceKey)); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound.WithMessage("variant references unknown source ref " + v.SourceKey)
		} else if err != nil {
			return err
		}
		return upsertVariantTxn(txn, v)
	})
}

func validateVariant(v *domain.Variant) error {
	if v == nil {
		return ErrInvalidInput.WithMessage("variant is required")
	}
	if strings.TrimSpace(v.Label) == "" {
		return ErrInvalidInput.WithMessage("variant needs a label")
	}
	if _, err := mediakey.ParseSourceKey(v.SourceKey); err != nil {
		return ErrMalformedKey.WithCause(err)
	}
	if v.VariantKey != mediakey.ForVariant(v.SourceKey, v.Label) {
		return ErrMalformedKey.WithMessage("variant key does not match source key and label")
	}
	return nil
}

func upsertVariantTxn(txn *badger.Txn, v *domain.Variant) error {
	var existing domain.Variant
	err := getJSON(txn, variantDBKey(v.VariantKey), &existing)
	switch {
	case errors.Is(err, ErrNotFound):
		v.InitTimestamps()
	case err != nil:
		return err
	default:
		v.CreatedAt = existing.CreatedAt
		v.Touch()
	}
	return setJSON(txn, variantDBKey(v.VariantKey), v)
}

// GetVariant retrieves a variant by key.
func (s *Store) GetVariant(ctx context.Context, variantKey string) (*domain.Variant, error) {
	var v domain.Variant
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, variantDBKey(variantKey), &v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// VariantsForSource returns all variants of one source ref. Variant keys
// embed the source key, so this is a single prefix scan.
func (s *Store) VariantsForSource(ctx context.Context, sourceKey string) ([]*domain.Variant, error) {
	var variants []*domain.Variant
	prefix := variantPrefix + sourceKey + "#"
	for v, err := range listPrefix[domain.Variant](s, ctx, prefix) {
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// VariantsForWork gathers variants across every source ref of a work.
func (s *Store) VariantsForWork(ctx context.Context, workKey string) ([]*domain.Variant, error) {
	refs, err := s.SourceRefsForWork(ctx, workKey)
	if err != nil {
		return nil, err
	}
	var variants []*domain.Variant
	for _, ref := range refs {
		vs, err := s.VariantsForSource(ctx, ref.SourceKey)
		if err != nil {
			return nil, err
		}
		variants = append(variants, vs...)
	}
	return variants, nil
}

// ListVariants iterates every variant in the store.
func (s *Store) ListVariants(ctx context.Context) iter.Seq2[*domain.Variant, error] {
	return listPrefix[domain.Variant](s, ctx, variantPrefix)
}

// DeleteVariant removes a variant. Idempotent.
func (s *Store) DeleteVariant(ctx context.Context, variantKey string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(variantDBKey(variantKey))
	})
}

// deleteVariantsTxn drops every variant of a source ref inside txn.
func deleteVariantsTxn(txn *badger.Txn, sourceKey string) error {
	prefix := []byte(variantPrefix + sourceKey + "#")

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
