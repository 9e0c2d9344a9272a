package store_test

import (
	"context"
	"testing"

	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func episodeRelation(parent string, season, episode int) *domain.Relation {
	child := "episode:breaking-bad:2008"
	return &domain.Relation{
		ParentWorkKey: parent,
		ChildWorkKey:  child + keySuffix(season, episode),
		Type:          domain.RelationEpisode,
		Season:        season,
		Episode:       episode,
		OrderIndex:    domain.EpisodeOrderIndex(season, episode),
	}
}

func keySuffix(season, episode int) string {
	return string(rune('a'+season)) + string(rune('a'+episode)) // distinct child keys
}

func TestRelationsDeterministicOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	parent := "series:breaking-bad:2008"

	// Insert out of order.
	require.NoError(t, s.UpsertRelation(ctx, episodeRelation(parent, 2, 1)))
	require.NoError(t, s.UpsertRelation(ctx, episodeRelation(parent, 1, 2)))
	require.NoError(t, s.UpsertRelation(ctx, episodeRelation(parent, 1, 1)))
	require.NoError(t, s.UpsertRelation(ctx, episodeRelation(parent, 1, 10)))

	rels, err := s.RelationsForParent(ctx, parent)
	require.NoError(t, err)
	require.Len(t, rels, 4)

	var order []int
	for _, rel := range rels {
		order = append(order, rel.OrderIndex)
	}
	assert.Equal(t, []int{1001, 1002, 1010, 2001}, order)
}

func TestRelationUpsertIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	parent := "series:breaking-bad:2008"
	require.NoError(t, s.UpsertRelation(ctx, episodeRelation(parent, 1, 1)))
	require.NoError(t, s.UpsertRelation(ctx, episodeRelation(parent, 1, 1)))

	rels, err := s.RelationsForParent(ctx, parent)
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}

func TestRelationValidation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.UpsertRelation(ctx, &domain.Relation{ParentWorkKey: "", ChildWorkKey: "x"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	err = s.UpsertRelation(ctx, &domain.Relation{ParentWorkKey: "series:x:2000", ChildWorkKey: "series:x:2000"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestDeleteRelationsForParent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	parent := "series:breaking-bad:2008"
	require.NoError(t, s.UpsertRelation(ctx, episodeRelation(parent, 1, 1)))
	require.NoError(t, s.UpsertRelation(ctx, episodeRelation(parent, 1, 2)))
	require.NoError(t, s.UpsertRelation(ctx, episodeRelation("series:other:2010", 1, 1)))

	n, err := s.DeleteRelationsForParent(ctx, parent)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rels, err := s.RelationsForParent(ctx, "series:other:2010")
	require.NoError(t, err)
	assert.Len(t, rels, 1, "other parents untouched")
}
