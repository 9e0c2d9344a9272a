package store

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
)

// CatalogEntry is the unit the catalog writer persists per ingested item:
// the canonical work, the source ref pointing at it, and (when the item
// carried playback hints) one variant.
type CatalogEntry struct {
	Work      *domain.Work
	SourceRef *domain.SourceRef
	Variant   *domain.Variant // optional
}

// UpsertCatalogEntry writes a work, its source ref and an optional variant
// in one transaction. A reader never sees the ref without the work or the
// variant without the ref; either the whole entry lands or none of it.
// Each part keeps its individual upsert semantics (durable work key and
// CreatedAt, fixed FirstSeenAt, advancing LastSeenAt).
func (s *Store) UpsertCatalogEntry(ctx context.Context, entry CatalogEntry) error {
	if entry.Work == nil || entry.SourceRef == nil {
		return ErrInvalidInput.WithMessage("catalog entry needs work and source ref")
	}
	if entry.SourceRef.WorkKey != entry.Work.WorkKey {
		return ErrInvalidInput.WithMessage("source ref does not point at the entry's work")
	}
	if err := validateSourceRef(entry.SourceRef); err != nil {
		return err
	}
	if entry.Variant != nil {
		if err := validateVariant(entry.Variant); err != nil {
			return err
		}
		if entry.Variant.SourceKey != entry.SourceRef.SourceKey {
			return ErrInvalidInput.WithMessage("variant does not belong to the entry's source ref")
		}
		entry.Variant.WorkKey = entry.Work.WorkKey
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		if err := upsertWorkTxn(txn, entry.Work); err != nil {
			return err
		}
		if err := upsertSourceRefTxn(txn, entry.SourceRef); err != nil {
			return err
		}
		if entry.Variant != nil {
			if err := upsertVariantTxn(txn, entry.Variant); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.reindexWork(ctx, entry.Work)
	return nil
}
