package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
)

// UpsertUserState writes per-(profile, work) state. The pair is the
// identity; profile keys may not contain ":" because the composite
// storage key uses it as the separator.
func (s *Store) UpsertUserState(ctx context.Context, state *domain.UserState) error {
	if err := validateUserState(state); err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, stateDBKey(state.ProfileKey, state.WorkKey), state)
	})
}

func validateUserState(state *domain.UserState) error {
	if state == nil {
		return ErrInvalidInput.WithMessage("user state is required")
	}
	if strings.TrimSpace(state.ProfileKey) == "" || strings.TrimSpace(state.WorkKey) == "" {
		return ErrInvalidInput.WithMessage("user state needs profile and work keys")
	}
	if strings.Contains(state.ProfileKey, ":") {
		return ErrInvalidInput.WithMessage("profile key must not contain ':'")
	}
	return nil
}

// GetUserState retrieves state for one (profile, work) pair.
func (s *Store) GetUserState(ctx context.Context, profileKey, workKey string) (*domain.UserState, error) {
	var state domain.UserState
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, stateDBKey(profileKey, workKey), &state)
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// UserStatesForProfile returns all of one profile's state rows.
// Callers filter for continue-watching, favorites and the like.
func (s *Store) UserStatesForProfile(ctx context.Context, profileKey string) ([]*domain.UserState, error) {
	var states []*domain.UserState
	prefix := statePrefix + profileKey + ":"
	for state, err := range listPrefix[domain.UserState](s, ctx, prefix) {
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// UserStatesForWork returns every profile's state attached to one work.
// Full scan over the state rows; merges are rare enough that no reverse
// index is kept for this.
func (s *Store) UserStatesForWork(ctx context.Context, workKey string) ([]*domain.UserState, error) {
	var states []*domain.UserState
	for state, err := range listPrefix[domain.UserState](s, ctx, statePrefix) {
		if err != nil {
			return nil, err
		}
		if state.WorkKey == workKey {
			states = append(states, state)
		}
	}
	return states, nil
}

// DeleteUserState removes one (profile, work) state row. Idempotent.
func (s *Store) DeleteUserState(ctx context.Context, profileKey, workKey string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(stateDBKey(profileKey, workKey))
	})
}

// MoveUserState re-addresses a profile's state from one work key to
// another, used when works merge. When the profile already has state on
// the target, the richer row wins: the later update timestamp keeps
// position, while flags and watch counts merge.
func (s *Store) MoveUserState(ctx context.Context, profileKey, fromWorkKey, toWorkKey string) error {
	if fromWorkKey == toWorkKey {
		return nil
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		var from domain.UserState
		err := getJSON(txn, stateDBKey(profileKey, fromWorkKey), &from)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		merged := from
		merged.WorkKey = toWorkKey

		var to domain.UserState
		err = getJSON(txn, stateDBKey(profileKey, toWorkKey), &to)
		if err == nil {
			merged = mergeUserState(&from, &to)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		if err := setJSON(txn, stateDBKey(profileKey, toWorkKey), &merged); err != nil {
			return err
		}
		return txn.Delete(stateDBKey(profileKey, fromWorkKey))
	})
}

// mergeUserState combines two state rows for the same profile after a
// work merge. Newer position wins; sticky flags and counts accumulate.
func mergeUserState(from, to *domain.UserState) domain.UserState {
	newer, older := to, from
	if from.UpdatedAt.After(to.UpdatedAt) {
		newer, older = from, to
	}

	merged := *newer
	merged.WorkKey = to.WorkKey
	merged.Watched = newer.Watched || older.Watched
	merged.Favorite = newer.Favorite || older.Favorite
	merged.Watchlist = newer.Watchlist || older.Watchlist
	merged.Hidden = newer.Hidden || older.Hidden
	merged.WatchCount = newer.WatchCount + older.WatchCount
	if merged.Rating == 0 {
		merged.Rating = older.Rating
	}
	return merged
}
