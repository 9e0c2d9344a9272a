package store_test

import (
	"context"
	"testing"

	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthorityRef(workKey, id string, status domain.AuthorityStatus) *domain.AuthorityRef {
	return &domain.AuthorityRef{
		AuthorityKey: "tmdb:movie:" + id,
		WorkKey:      workKey,
		Type:         "tmdb",
		Namespace:    "movie",
		Confidence:   90,
		Status:       status,
		Provenance:   domain.ProvenanceAuto,
	}
}

func TestAuthorityRefUpsertIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ref := testAuthorityRef("movie:fight-club:1999", "550", domain.AuthorityProbable)
	require.NoError(t, s.UpsertAuthorityRef(ctx, ref))

	first, err := s.GetAuthorityRef(ctx, "tmdb:movie:550")
	require.NoError(t, err)

	settle()

	again := testAuthorityRef("movie:fight-club:1999", "550", domain.AuthorityConfirmed)
	require.NoError(t, s.UpsertAuthorityRef(ctx, again))

	got, err := s.GetAuthorityRef(ctx, "tmdb:movie:550")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
	assert.Equal(t, domain.AuthorityConfirmed, got.Status)

	refs, err := s.AuthorityRefsForWork(ctx, "movie:fight-club:1999")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestFindWorkKeyByAuthorityKey(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAuthorityRef(ctx,
		testAuthorityRef("movie:fight-club:1999", "550", domain.AuthorityConfirmed)))

	workKey, err := s.FindWorkKeyByAuthorityKey(ctx, "tmdb:movie:550")
	require.NoError(t, err)
	assert.Equal(t, "movie:fight-club:1999", workKey)

	_, err = s.FindWorkKeyByAuthorityKey(ctx, "tmdb:movie:999999")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindWorkKeyIgnoresRejected(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAuthorityRef(ctx,
		testAuthorityRef("movie:wrong-match:1999", "550", domain.AuthorityRejected)))

	_, err := s.FindWorkKeyByAuthorityKey(ctx, "tmdb:movie:550")
	assert.ErrorIs(t, err, store.ErrNotFound, "a rejected match must not dedup onto the wrong work")
}

func TestConfirmDemotesSibling(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	workKey := "movie:fight-club:1999"
	require.NoError(t, s.UpsertAuthorityRef(ctx, testAuthorityRef(workKey, "550", domain.AuthorityConfirmed)))
	require.NoError(t, s.UpsertAuthorityRef(ctx, testAuthorityRef(workKey, "551", domain.AuthorityConfirmed)))

	refs, err := s.AuthorityRefsForWork(ctx, workKey)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	confirmed := 0
	for _, ref := range refs {
		if ref.Status == domain.AuthorityConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed, "at most one CONFIRMED ref per (type, namespace) per work")
}

func TestConfirmDoesNotDemoteOtherNamespace(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	workKey := "series:breaking-bad:2008"
	tv := &domain.AuthorityRef{
		AuthorityKey: "tmdb:tv:1396",
		WorkKey:      workKey,
		Type:         "tmdb",
		Namespace:    "tv",
		Status:       domain.AuthorityConfirmed,
		Provenance:   domain.ProvenanceAuto,
	}
	imdb := &domain.AuthorityRef{
		AuthorityKey: "imdb:title:tt0903747",
		WorkKey:      workKey,
		Type:         "imdb",
		Namespace:    "title",
		Status:       domain.AuthorityConfirmed,
		Provenance:   domain.ProvenanceManual,
	}
	require.NoError(t, s.UpsertAuthorityRef(ctx, tv))
	require.NoError(t, s.UpsertAuthorityRef(ctx, imdb))

	refs, err := s.AuthorityRefsForWork(ctx, workKey)
	require.NoError(t, err)
	for _, ref := range refs {
		assert.Equal(t, domain.AuthorityConfirmed, ref.Status,
			"different (type, namespace) pairs may both stay confirmed")
	}
}

func TestDeleteAuthorityRefIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAuthorityRef(ctx,
		testAuthorityRef("movie:fight-club:1999", "550", domain.AuthorityProbable)))
	require.NoError(t, s.DeleteAuthorityRef(ctx, "tmdb:movie:550"))
	require.NoError(t, s.DeleteAuthorityRef(ctx, "tmdb:movie:550"))

	refs, err := s.AuthorityRefsForWork(ctx, "movie:fight-club:1999")
	require.NoError(t, err)
	assert.Empty(t, refs)
}
