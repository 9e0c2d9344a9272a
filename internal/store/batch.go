package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
)

// EntityBatch is a set of related entities persisted together, typically
// the output of the detail writer (child works, their refs, parent
// relations and variants for one series fetch).
type EntityBatch struct {
	Works      []*domain.Work
	SourceRefs []*domain.SourceRef
	Relations  []*domain.Relation
	Variants   []*domain.Variant
}

// Empty reports whether the batch holds nothing to write.
func (b *EntityBatch) Empty() bool {
	return len(b.Works) == 0 && len(b.SourceRefs) == 0 &&
		len(b.Relations) == 0 && len(b.Variants) == 0
}

// batchChunk bounds how many entities one transaction carries, so large
// series writes do not hold the write lock while readers query.
const batchChunk = 100

// WriteEntityBatch persists a batch with the same merge semantics as the
// individual upserts, chunked across transactions. Works land before the
// refs that point at them, refs before their variants, so a reader mid-
// batch sees a consistent (if incomplete) graph.
func (s *Store) WriteEntityBatch(ctx context.Context, batch *EntityBatch) error {
	if batch == nil || batch.Empty() {
		return nil
	}

	for _, w := range batch.Works {
		if w == nil || w.WorkKey == "" {
			return ErrInvalidInput.WithMessage("batch contains work without key")
		}
	}
	for _, ref := range batch.SourceRefs {
		if err := validateSourceRef(ref); err != nil {
			return err
		}
	}
	for _, v := range batch.Variants {
		if err := validateVariant(v); err != nil {
			return err
		}
	}

	if err := writeChunked(ctx, s, batch.Works, upsertWorkTxn); err != nil {
		return fmt.Errorf("batch works: %w", err)
	}
	if err := writeChunked(ctx, s, batch.SourceRefs, upsertSourceRefTxn); err != nil {
		return fmt.Errorf("batch source refs: %w", err)
	}
	if err := writeChunked(ctx, s, batch.Relations, upsertRelationTxn); err != nil {
		return fmt.Errorf("batch relations: %w", err)
	}
	if err := writeChunked(ctx, s, batch.Variants, upsertVariantTxn); err != nil {
		return fmt.Errorf("batch variants: %w", err)
	}

	for _, w := range batch.Works {
		s.reindexWork(ctx, w)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "entity batch written",
			slog.Int("works", len(batch.Works)),
			slog.Int("source_refs", len(batch.SourceRefs)),
			slog.Int("relations", len(batch.Relations)),
			slog.Int("variants", len(batch.Variants)),
		)
	}
	return nil
}

// upsertRelationTxn mirrors UpsertRelation's merge inside a transaction.
func upsertRelationTxn(txn *badger.Txn, rel *domain.Relation) error {
	key := relationDBKey(rel.ParentWorkKey, rel.OrderIndex, rel.ChildWorkKey)
	var existing domain.Relation
	if err := getJSON(txn, key, &existing); err == nil {
		rel.CreatedAt = existing.CreatedAt
	} else {
		rel.InitCreated()
	}
	return setJSON(txn, key, rel)
}

// writeChunked applies a per-entity transaction function over slices of
// at most batchChunk entities per transaction.
func writeChunked[T any](ctx context.Context, s *Store, items []*T, fn func(*badger.Txn, *T) error) error {
	for start := 0; start < len(items); start += batchChunk {
		end := min(start+batchChunk, len(items))
		err := s.update(ctx, func(txn *badger.Txn) error {
			for _, item := range items[start:end] {
				if err := fn(txn, item); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
