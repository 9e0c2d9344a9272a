package catalog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/karlokarate/FishIT-Player-sub011/internal/catalog"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWriter(t *testing.T) (*catalog.Writer, *store.Store) {
	t.Helper()

	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	w := catalog.NewWriter(catalog.WriterOptions{Store: s})
	return w, s
}

func testItem(itemKey, title string, year int) *catalog.NormalizedItem {
	return &catalog.NormalizedItem{
		SourceType: domain.SourceXtream,
		AccountKey: "acc1",
		ItemKind:   domain.ItemVOD,
		ItemKey:    itemKey,
		Type:       domain.WorkMovie,
		Title:      title,
		Year:       year,
		PlayHints:  map[string]string{"stream_id": itemKey},
		Container:  "mkv",
		DurationMs: 7_200_000,
	}
}

func TestIngest_CreatesWorkRefVariantAndLedger(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	res, err := w.Ingest(ctx, testItem("101", "The Matrix", 1999))
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerAccepted, res.State)
	assert.Equal(t, "movie:the-matrix:1999", res.WorkKey)

	work, err := s.GetWork(ctx, res.WorkKey)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", work.Title)
	assert.Equal(t, domain.RecognitionHeuristic, work.RecognitionState)

	refs, err := s.SourceRefsForWork(ctx, res.WorkKey)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, domain.AvailabilityActive, refs[0].Availability)

	variants, err := s.VariantsForSource(ctx, refs[0].SourceKey)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "mkv", variants[0].Container)

	ledgerKey, err := mediakey.ForLedger(domain.SourceXtream, "acc1", "101")
	require.NoError(t, err)
	entry, err := s.GetLedgerEntry(ctx, ledgerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerAccepted, entry.State)
	assert.Equal(t, res.WorkKey, entry.WorkKey)
}

func TestIngest_ExternalIDConfirmsRecognition(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	item := testItem("102", "Fight Club", 1999)
	item.ExternalIDs = map[string]string{"tmdb": "550"}

	res, err := w.Ingest(ctx, item)
	require.NoError(t, err)

	work, err := s.GetWork(ctx, res.WorkKey)
	require.NoError(t, err)
	assert.Equal(t, domain.RecognitionConfirmed, work.RecognitionState)

	// The external ID landed as a confirmed authority ref.
	foundKey, err := s.FindWorkKeyByAuthorityKey(ctx, "tmdb:movie:550")
	require.NoError(t, err)
	assert.Equal(t, res.WorkKey, foundKey)
}

func TestIngest_AuthorityDedupReusesWork(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	// First pipeline ingests with the TMDB ID under one title spelling.
	first := testItem("201", "Fight Club", 1999)
	first.ExternalIDs = map[string]string{"tmdb": "550"}
	res1, err := w.Ingest(ctx, first)
	require.NoError(t, err)

	// Second pipeline reports a different title but the same TMDB ID.
	second := testItem("202", "Fight Club (Director's Cut)", 1999)
	second.SourceType = domain.SourceTelegram
	second.ExternalIDs = map[string]string{"tmdb": "550"}
	res2, err := w.Ingest(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, res1.WorkKey, res2.WorkKey)

	refs, err := s.SourceRefsForWork(ctx, res1.WorkKey)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestIngest_FollowsRedirect(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	// The heuristic key the item would mint has been merged away.
	require.NoError(t, s.UpsertRedirect(ctx, "movie:heat:1995", "movie:heat-remastered:1995"))
	require.NoError(t, s.UpsertWork(ctx, &domain.Work{
		WorkKey: "movie:heat-remastered:1995", Type: domain.WorkMovie, Title: "Heat", Year: 1995,
	}))

	res, err := w.Ingest(ctx, testItem("301", "Heat", 1995))
	require.NoError(t, err)
	assert.Equal(t, "movie:heat-remastered:1995", res.WorkKey)
}

func TestIngest_ValidationFailureWritesRejectedEntry(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	bad := testItem("401", "Broken", 2020)
	bad.ItemKind = domain.ItemKind("hologram")

	res, err := w.Ingest(ctx, bad)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, domain.LedgerRejected, res.State)

	ledgerKey, kerr := mediakey.ForLedger(domain.SourceXtream, "acc1", "401")
	require.NoError(t, kerr)
	entry, gerr := s.GetLedgerEntry(ctx, ledgerKey)
	require.NoError(t, gerr)
	assert.Equal(t, domain.LedgerRejected, entry.State)
	assert.False(t, entry.RetryAfter.IsZero())

	// The rejection suppresses re-matching until the TTL runs out.
	res, err = w.Ingest(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerSkipped, res.State)
}

func TestIngest_UnchangedItemSkips(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	item := testItem("501", "Static", 2021)
	item.SourceModifiedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	res, err := w.Ingest(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerAccepted, res.State)

	// Same provider timestamp: nothing to rewrite.
	res, err = w.Ingest(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerSkipped, res.State)
	assert.Equal(t, "movie:static:2021", res.WorkKey)

	// A newer provider timestamp re-ingests.
	item.SourceModifiedAt = item.SourceModifiedAt.Add(time.Hour)
	res, err = w.Ingest(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerAccepted, res.State)

	_, err = s.GetWork(ctx, res.WorkKey)
	require.NoError(t, err)
}

func TestIngest_RejectsEpisodeItems(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	// Episodes arrive from bulk listings without their parent series,
	// often without a title of their own. Keyed by title they would all
	// collapse into one work, so the writer turns them away.
	for _, itemKey := range []string{"ep-1", "ep-2"} {
		ep := testItem(itemKey, "", 2020)
		ep.ItemKind = domain.ItemEpisode
		ep.Type = domain.WorkEpisode

		res, err := w.Ingest(ctx, ep)
		require.Error(t, err)
		require.NotNil(t, res)
		assert.Equal(t, domain.LedgerRejected, res.State)
		assert.Empty(t, res.WorkKey)

		ledgerKey, kerr := mediakey.ForLedger(domain.SourceXtream, "acc1", itemKey)
		require.NoError(t, kerr)
		entry, gerr := s.GetLedgerEntry(ctx, ledgerKey)
		require.NoError(t, gerr)
		assert.Equal(t, domain.LedgerRejected, entry.State)
		assert.Equal(t, "episode_requires_parent", entry.ReasonCode)
	}

	count, err := s.CountWorks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestIngest_UnchangedSkipReportsMergeTarget(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	item := testItem("901", "Twin Release", 2018)
	item.SourceModifiedAt = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	res, err := w.Ingest(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, "movie:twin-release:2018", res.WorkKey)

	// The work gets merged away while the provider keeps re-sending the
	// same timestamp; the ref still carries the pre-merge key.
	require.NoError(t, s.UpsertWork(ctx, &domain.Work{
		WorkKey: "movie:twin-release-4k:2018", Type: domain.WorkMovie, Title: "Twin Release", Year: 2018,
	}))
	require.NoError(t, s.UpsertRedirect(ctx, "movie:twin-release:2018", "movie:twin-release-4k:2018"))

	res, err = w.Ingest(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerSkipped, res.State)
	assert.Equal(t, "movie:twin-release-4k:2018", res.WorkKey)
}

func TestIngestBatch_IsolatesMalformedItem(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	items := make([]*catalog.NormalizedItem, 0, 10)
	for i := range 9 {
		items = append(items, testItem(fmt.Sprintf("batch-%d", i), fmt.Sprintf("Movie %d", i), 2000+i))
	}
	malformed := testItem("", "No Key", 2020)
	items = append(items, malformed)

	accepted, err := w.IngestBatch(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 9, accepted)

	count, err := s.CountWorks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, count)
}

func TestIngestBatch_NoCandidateDropped(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	const n = 7
	items := make([]*catalog.NormalizedItem, 0, n)
	for i := range n {
		items = append(items, testItem(fmt.Sprintf("drop-%d", i), fmt.Sprintf("Title %d", i), 1990+i))
	}
	// One of them fails validation but still gets its ledger entry.
	items[3].ItemKind = domain.ItemKind("hologram")

	accepted, err := w.IngestBatch(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, n-1, accepted)

	counts, err := s.CountLedgerByState(ctx)
	require.NoError(t, err)
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, n, total)
	assert.Equal(t, n-1, counts[domain.LedgerAccepted])
	assert.Equal(t, 1, counts[domain.LedgerRejected])
}

func TestIngestBatch_PropagatesCancellation(t *testing.T) {
	w, _ := setupWriter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []*catalog.NormalizedItem{testItem("601", "Canceled", 2020)}
	_, err := w.IngestBatch(ctx, items)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClearAccount_ScopedToAccount(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	itemA := testItem("701", "Shared Movie", 2020)
	itemB := testItem("701", "Shared Movie", 2020)
	itemB.AccountKey = "acc2"

	_, err := w.Ingest(ctx, itemA)
	require.NoError(t, err)
	_, err = w.Ingest(ctx, itemB)
	require.NoError(t, err)

	require.NoError(t, w.ClearAccount(ctx, domain.SourceXtream, "acc1"))

	refs, err := s.SourceRefsForWork(ctx, "movie:shared-movie:2020")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	for _, ref := range refs {
		if ref.AccountKey == "acc1" {
			assert.Equal(t, domain.AvailabilityRemoved, ref.Availability)
		} else {
			assert.Equal(t, domain.AvailabilityActive, ref.Availability)
		}
	}
}

func TestClearAccount_DropsVariants(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	res, err := w.Ingest(ctx, testItem("711", "Cleared Movie", 2019))
	require.NoError(t, err)

	refs, err := s.SourceRefsForWork(ctx, res.WorkKey)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	variants, err := s.VariantsForSource(ctx, refs[0].SourceKey)
	require.NoError(t, err)
	require.Len(t, variants, 1)

	require.NoError(t, w.ClearAccount(ctx, domain.SourceXtream, "acc1"))

	// The ref stays as a REMOVED tombstone; its variants are gone.
	ref, err := s.GetSourceRef(ctx, refs[0].SourceKey)
	require.NoError(t, err)
	assert.Equal(t, domain.AvailabilityRemoved, ref.Availability)
	variants, err = s.VariantsForSource(ctx, refs[0].SourceKey)
	require.NoError(t, err)
	assert.Empty(t, variants)
}

func TestClearSourceType_MarksAllRefs(t *testing.T) {
	w, s := setupWriter(t)
	ctx := context.Background()

	_, err := w.Ingest(ctx, testItem("801", "First", 2020))
	require.NoError(t, err)
	other := testItem("802", "Second", 2021)
	other.SourceType = domain.SourceTelegram
	_, err = w.Ingest(ctx, other)
	require.NoError(t, err)

	require.NoError(t, w.ClearSourceType(ctx, domain.SourceXtream))

	for ref, err := range s.ListSourceRefs(ctx, "src:") {
		require.NoError(t, err)
		if ref.SourceType == domain.SourceXtream {
			assert.Equal(t, domain.AvailabilityRemoved, ref.Availability)
		} else {
			assert.Equal(t, domain.AvailabilityActive, ref.Availability)
		}
	}
}
