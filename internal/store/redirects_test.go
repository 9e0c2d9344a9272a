package store_test

import (
	"context"
	"testing"

	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUnmappedKeyIsIdentity(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.ResolveWorkKey(context.Background(), "movie:fight-club:1999")
	require.NoError(t, err)
	assert.Equal(t, "movie:fight-club:1999", got)
}

func TestResolveTransitive(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRedirect(ctx, "movie:a:2000", "movie:b:2000"))
	require.NoError(t, s.UpsertRedirect(ctx, "movie:b:2000", "movie:c:2000"))

	got, err := s.ResolveWorkKey(ctx, "movie:a:2000")
	require.NoError(t, err)
	assert.Equal(t, "movie:c:2000", got)

	// Mid-chain entry resolves too.
	got, err = s.ResolveWorkKey(ctx, "movie:b:2000")
	require.NoError(t, err)
	assert.Equal(t, "movie:c:2000", got)
}

func TestResolveCycleIsErrorNotHang(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRedirect(ctx, "movie:a:2000", "movie:b:2000"))
	require.NoError(t, s.UpsertRedirect(ctx, "movie:b:2000", "movie:c:2000"))
	require.NoError(t, s.UpsertRedirect(ctx, "movie:c:2000", "movie:a:2000"))

	_, err := s.ResolveWorkKey(ctx, "movie:a:2000")
	assert.ErrorIs(t, err, store.ErrRedirectCycle)
}

func TestUpsertRedirectRejectsSelf(t *testing.T) {
	s := setupTestStore(t)

	err := s.UpsertRedirect(context.Background(), "movie:a:2000", "movie:a:2000")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestUpsertRedirectRetarget(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRedirect(ctx, "movie:a:2000", "movie:b:2000"))
	// The mapping is re-pointed when the merge target itself merged.
	require.NoError(t, s.UpsertRedirect(ctx, "movie:a:2000", "movie:c:2000"))

	got, err := s.ResolveWorkKey(ctx, "movie:a:2000")
	require.NoError(t, err)
	assert.Equal(t, "movie:c:2000", got)
}
