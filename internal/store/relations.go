package store

import (
	"context"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
)

// UpsertRelation records a directed parent->child edge. Idempotent on
// (parent, orderIndex, child). Endpoint existence is not enforced on the
// write path; diagnostics flags dangling edges instead, since parent and
// child may arrive in either order during a sync.
func (s *Store) UpsertRelation(ctx context.Context, rel *domain.Relation) error {
	if rel == nil || strings.TrimSpace(rel.ParentWorkKey) == "" || strings.TrimSpace(rel.ChildWorkKey) == "" {
		return ErrInvalidInput.WithMessage("relation needs parent and child work keys")
	}
	if rel.ParentWorkKey == rel.ChildWorkKey {
		return ErrInvalidInput.WithMessage("relation cannot point at itself")
	}
	if rel.Type == "" {
		rel.Type = domain.RelationRelated
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		key := relationDBKey(rel.ParentWorkKey, rel.OrderIndex, rel.ChildWorkKey)
		var existing domain.Relation
		err := getJSON(txn, key, &existing)
		if err == nil {
			rel.CreatedAt = existing.CreatedAt
		} else {
			rel.InitCreated()
		}
		return setJSON(txn, key, rel)
	})
}

// RelationsForParent returns a parent's child edges in deterministic
// order: the order index is zero-padded into the key, so the prefix scan
// already yields them sorted.
func (s *Store) RelationsForParent(ctx context.Context, parentWorkKey string) ([]*domain.Relation, error) {
	var rels []*domain.Relation
	prefix := string(relationParentPrefix(parentWorkKey))
	for rel, err := range listPrefix[domain.Relation](s, ctx, prefix) {
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// ListRelations iterates every relation edge.
func (s *Store) ListRelations(ctx context.Context) iter.Seq2[*domain.Relation, error] {
	return listPrefix[domain.Relation](s, ctx, relationPrefix)
}

// DeleteRelation removes one edge. Idempotent.
func (s *Store) DeleteRelation(ctx context.Context, rel *domain.Relation) error {
	if rel == nil {
		return nil
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(relationDBKey(rel.ParentWorkKey, rel.OrderIndex, rel.ChildWorkKey))
	})
}

// DeleteRelationsForParent removes all edges under a parent. Idempotent.
// Returns the number of edges removed.
func (s *Store) DeleteRelationsForParent(ctx context.Context, parentWorkKey string) (int, error) {
	prefix := relationParentPrefix(parentWorkKey)
	removed := 0
	err := s.update(ctx, func(txn *badger.Txn) error {
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
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
