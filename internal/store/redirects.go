package store

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
)

// maxRedirectHops bounds redirect resolution. A legitimate merge chain is
// one or two hops; anything near the bound is a data defect.
const maxRedirectHops = 32

// UpsertRedirect records that an obsolete work key now resolves to a
// target. It only stores the mapping; migrating dependent source refs and
// user state to the target is the merge orchestration's responsibility.
func (s *Store) UpsertRedirect(ctx context.Context, obsoleteKey, targetKey string) error {
	if strings.TrimSpace(obsoleteKey) == "" || strings.TrimSpace(targetKey) == "" {
		return ErrInvalidInput.WithMessage("redirect needs obsolete and target keys")
	}
	if obsoleteKey == targetKey {
		return ErrInvalidInput.WithMessage("redirect cannot point at itself")
	}

	redirect := domain.Redirect{
		ObsoleteWorkKey: obsoleteKey,
		TargetWorkKey:   targetKey,
		CreatedAt:       time.Now(),
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		var existing domain.Redirect
		if err := getJSON(txn, redirectDBKey(obsoleteKey), &existing); err == nil {
			redirect.CreatedAt = existing.CreatedAt
		}
		return setJSON(txn, redirectDBKey(obsoleteKey), &redirect)
	})
}

// ResolveWorkKey follows the merge map to the terminal work key.
// An unmapped key resolves to itself. Resolution is transitive and
// bounded: a revisited key or a chain past the hop limit returns
// ErrRedirectCycle instead of looping.
func (s *Store) ResolveWorkKey(ctx context.Context, workKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	current := workKey
	visited := map[string]struct{}{current: {}}

	for hop := 0; hop < maxRedirectHops; hop++ {
		var redirect domain.Redirect
		err := s.view(ctx, func(txn *badger.Txn) error {
			return getJSON(txn, redirectDBKey(current), &redirect)
		})
		if errors.Is(err, ErrNotFound) {
			return current, nil
		}
		if err != nil {
			return "", err
		}

		next := redirect.TargetWorkKey
		if _, seen := visited[next]; seen {
			return "", ErrRedirectCycle.WithMessage("redirect cycle through " + next)
		}
		visited[next] = struct{}{}
		current = next
	}
	return "", ErrRedirectCycle.WithMessage("redirect chain from " + workKey + " exceeds hop bound")
}

// GetRedirect returns the direct mapping for an obsolete key, if any.
func (s *Store) GetRedirect(ctx context.Context, obsoleteKey string) (*domain.Redirect, error) {
	var redirect domain.Redirect
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, redirectDBKey(obsoleteKey), &redirect)
	})
	if err != nil {
		return nil, err
	}
	return &redirect, nil
}

// ListRedirects iterates every recorded merge mapping.
func (s *Store) ListRedirects(ctx context.Context) iter.Seq2[*domain.Redirect, error] {
	return listPrefix[domain.Redirect](s, ctx, redirectPrefix)
}

// DeleteRedirect removes a mapping. Idempotent.
func (s *Store) DeleteRedirect(ctx context.Context, obsoleteKey string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(redirectDBKey(obsoleteKey))
	})
}
