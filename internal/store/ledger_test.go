package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerEntryIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	entry := &domain.LedgerEntry{
		LedgerKey: "led:xtream:acct1:12345",
		State:     domain.LedgerAccepted,
		WorkKey:   "movie:fight-club:1999",
	}
	require.NoError(t, s.UpsertLedgerEntry(ctx, entry))

	first, err := s.GetLedgerEntry(ctx, entry.LedgerKey)
	require.NoError(t, err)

	settle()

	require.NoError(t, s.UpsertLedgerEntry(ctx, &domain.LedgerEntry{
		LedgerKey: entry.LedgerKey,
		State:     domain.LedgerAccepted,
		WorkKey:   "movie:fight-club:1999",
	}))

	got, err := s.GetLedgerEntry(ctx, entry.LedgerKey)
	require.NoError(t, err)
	assert.Equal(t, first.FirstSeenAt, got.FirstSeenAt)
	assert.True(t, got.LastSeenAt.After(first.LastSeenAt))

	counts, err := s.CountLedgerByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.LedgerAccepted], "one entry per candidate key")
}

func TestLedgerRejectsMalformedKey(t *testing.T) {
	s := setupTestStore(t)

	err := s.UpsertLedgerEntry(context.Background(), &domain.LedgerEntry{
		LedgerKey: "xtream:acct1:12345",
		State:     domain.LedgerRejected,
	})
	assert.ErrorIs(t, err, store.ErrMalformedKey)
}

func TestShouldSkip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	// Unknown candidate: never skip.
	skip, err := s.ShouldSkip(ctx, "led:xtream:acct1:unknown", now)
	require.NoError(t, err)
	assert.False(t, skip)

	// Rejected with live TTL: skip.
	require.NoError(t, s.UpsertLedgerEntry(ctx, &domain.LedgerEntry{
		LedgerKey:  "led:xtream:acct1:bad",
		State:      domain.LedgerRejected,
		ReasonCode: "no_confident_match",
		RetryAfter: now.Add(time.Hour),
	}))
	skip, err = s.ShouldSkip(ctx, "led:xtream:acct1:bad", now)
	require.NoError(t, err)
	assert.True(t, skip)

	// TTL expired: re-evaluate.
	skip, err = s.ShouldSkip(ctx, "led:xtream:acct1:bad", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, skip)

	// Rejected without TTL: immediately re-evaluable.
	require.NoError(t, s.UpsertLedgerEntry(ctx, &domain.LedgerEntry{
		LedgerKey: "led:xtream:acct1:bad2",
		State:     domain.LedgerRejected,
	}))
	skip, err = s.ShouldSkip(ctx, "led:xtream:acct1:bad2", now)
	require.NoError(t, err)
	assert.False(t, skip)

	// Accepted: never skipped via TTL.
	require.NoError(t, s.UpsertLedgerEntry(ctx, &domain.LedgerEntry{
		LedgerKey: "led:xtream:acct1:good",
		State:     domain.LedgerAccepted,
		WorkKey:   "movie:heat:1995",
	}))
	skip, err = s.ShouldSkip(ctx, "led:xtream:acct1:good", now)
	require.NoError(t, err)
	assert.False(t, skip)
}

func TestLedgerBatchUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	entries := []*domain.LedgerEntry{
		{LedgerKey: "led:m3u:default:1", State: domain.LedgerAccepted, WorkKey: "live:one:live"},
		{LedgerKey: "led:m3u:default:2", State: domain.LedgerSkipped, ReasonCode: "unchanged"},
		{LedgerKey: "led:m3u:default:3", State: domain.LedgerRejected, ReasonCode: "blank_title"},
	}
	require.NoError(t, s.UpsertLedgerEntries(ctx, entries))

	counts, err := s.CountLedgerByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.LedgerAccepted])
	assert.Equal(t, 1, counts[domain.LedgerSkipped])
	assert.Equal(t, 1, counts[domain.LedgerRejected])

	rejected, err := s.LedgerEntriesByState(ctx, domain.LedgerRejected)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "blank_title", rejected[0].ReasonCode)
}
