// Package reconcile holds the cross-source maintenance passes: resume
// position approximation between variants of different length, the
// recognition upgrade after authority promotion, and the work merge
// orchestration on top of the redirect map.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
)

// durationDivergence is the relative duration difference above which a
// stored absolute position is considered unreliable and the percentage
// is used instead. Different cuts of the same work (intros, credits,
// broadcast edits) commonly differ by a few percent.
const durationDivergence = 0.02

// ApproximatePosition maps a stored resume position onto a target
// variant of the given duration.
//
// When the stored duration is close to the target the absolute position
// carries over directly. When they diverge, the relative position wins:
// three quarters into one cut is three quarters into another.
func ApproximatePosition(state *domain.UserState, targetDurationMs int64) int64 {
	if state == nil || targetDurationMs <= 0 {
		return 0
	}
	if state.DurationMs > 0 && withinDivergence(state.DurationMs, targetDurationMs) {
		return clampPosition(state.PositionMs, targetDurationMs)
	}
	return clampPosition(int64(state.PositionPercent*float64(targetDurationMs)), targetDurationMs)
}

func withinDivergence(a, b int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	longer := max(a, b)
	return float64(diff)/float64(longer) <= durationDivergence
}

func clampPosition(pos, duration int64) int64 {
	if pos < 0 {
		return 0
	}
	if pos > duration {
		return duration
	}
	return pos
}

// Reconciler runs the stateful passes against the store.
type Reconciler struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a reconciler.
func New(s *store.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: s, logger: logger}
}

// CarryOver moves one profile's state from one work to another and
// returns the migrated row. Used after merges; no-op when the profile
// has no state on the source work.
func (r *Reconciler) CarryOver(ctx context.Context, profileKey, fromWorkKey, toWorkKey string) (*domain.UserState, error) {
	if err := r.store.MoveUserState(ctx, profileKey, fromWorkKey, toWorkKey); err != nil {
		return nil, err
	}
	state, err := r.store.GetUserState(ctx, profileKey, toWorkKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// UpgradeRecognition promotes a work to CONFIRMED when any confirmed
// authority ref points at it. Idempotent; invoked after authority
// promotion, decoupled from the ingest and detail writers.
func (r *Reconciler) UpgradeRecognition(ctx context.Context, workKey string) error {
	workKey, err := r.store.ResolveWorkKey(ctx, workKey)
	if err != nil {
		return err
	}
	work, err := r.store.GetWork(ctx, workKey)
	if err != nil {
		return err
	}
	if work.RecognitionState == domain.RecognitionConfirmed {
		return nil
	}

	refs, err := r.store.AuthorityRefsForWork(ctx, workKey)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if ref.Status == domain.AuthorityConfirmed {
			work.RecognitionState = domain.RecognitionConfirmed
			if err := r.store.UpsertWork(ctx, work); err != nil {
				return err
			}
			r.logger.Info("recognition upgraded", "work_key", workKey, "authority_key", ref.AuthorityKey)
			return nil
		}
	}
	return nil
}

// MergeWorks retires one work in favor of another: records the redirect,
// then migrates source refs, variants, relations, authority refs and
// user state onto the target, and finally removes the obsolete work.
// Future ingests of the retired identity land on the target through the
// redirect map.
func (r *Reconciler) MergeWorks(ctx context.Context, obsoleteKey, targetKey string) error {
	if obsoleteKey == targetKey {
		return store.ErrInvalidInput.WithMessage("cannot merge a work into itself")
	}
	targetKey, err := r.store.ResolveWorkKey(ctx, targetKey)
	if err != nil {
		return err
	}
	if _, err := r.store.GetWork(ctx, targetKey); err != nil {
		return err
	}

	if err := r.store.UpsertRedirect(ctx, obsoleteKey, targetKey); err != nil {
		return err
	}

	migratedRefs, err := r.migrateSourceRefs(ctx, obsoleteKey, targetKey)
	if err != nil {
		return err
	}
	if err := r.migrateRelations(ctx, obsoleteKey, targetKey); err != nil {
		return err
	}
	if err := r.migrateAuthorityRefs(ctx, obsoleteKey, targetKey); err != nil {
		return err
	}
	migratedStates, err := r.migrateUserStates(ctx, obsoleteKey, targetKey)
	if err != nil {
		return err
	}

	if err := r.store.DeleteWork(ctx, obsoleteKey); err != nil {
		return err
	}
	if err := r.UpgradeRecognition(ctx, targetKey); err != nil {
		return err
	}

	r.logger.Info("works merged",
		"obsolete", obsoleteKey,
		"target", targetKey,
		"source_refs", migratedRefs,
		"user_states", migratedStates,
	)
	return nil
}

func (r *Reconciler) migrateSourceRefs(ctx context.Context, fromKey, toKey string) (int, error) {
	refs, err := r.store.SourceRefsForWork(ctx, fromKey)
	if err != nil {
		return 0, err
	}
	for _, ref := range refs {
		variants, err := r.store.VariantsForSource(ctx, ref.SourceKey)
		if err != nil {
			return 0, err
		}
		ref.WorkKey = toKey
		if err := r.store.UpsertSourceRef(ctx, ref); err != nil {
			return 0, err
		}
		for _, v := range variants {
			v.WorkKey = toKey
			if err := r.store.UpsertVariant(ctx, v); err != nil {
				return 0, err
			}
		}
	}
	return len(refs), nil
}

// migrateRelations rehomes edges on both sides: the obsolete work as
// parent and as child. The child side needs a full edge scan; there is
// no reverse index for it.
func (r *Reconciler) migrateRelations(ctx context.Context, fromKey, toKey string) error {
	parentRels, err := r.store.RelationsForParent(ctx, fromKey)
	if err != nil {
		return err
	}
	for _, rel := range parentRels {
		moved := *rel
		moved.ParentWorkKey = toKey
		if moved.ChildWorkKey == toKey {
			continue // collapses to a self-edge, drop it
		}
		if err := r.store.UpsertRelation(ctx, &moved); err != nil {
			return err
		}
	}
	if _, err := r.store.DeleteRelationsForParent(ctx, fromKey); err != nil {
		return err
	}

	for rel, err := range r.store.ListRelations(ctx) {
		if err != nil {
			return err
		}
		if rel.ChildWorkKey != fromKey {
			continue
		}
		if err := r.store.DeleteRelation(ctx, rel); err != nil {
			return err
		}
		if rel.ParentWorkKey == toKey {
			continue
		}
		moved := *rel
		moved.ChildWorkKey = toKey
		if err := r.store.UpsertRelation(ctx, &moved); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) migrateAuthorityRefs(ctx context.Context, fromKey, toKey string) error {
	refs, err := r.store.AuthorityRefsForWork(ctx, fromKey)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		ref.WorkKey = toKey
		if err := r.store.UpsertAuthorityRef(ctx, ref); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) migrateUserStates(ctx context.Context, fromKey, toKey string) (int, error) {
	states, err := r.store.UserStatesForWork(ctx, fromKey)
	if err != nil {
		return 0, err
	}
	for _, state := range states {
		if err := r.store.MoveUserState(ctx, state.ProfileKey, fromKey, toKey); err != nil {
			return 0, err
		}
	}
	return len(states), nil
}
