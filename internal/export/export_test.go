package export_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/export"
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
)

func setupExportStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedCatalog(t *testing.T, s *store.Store) (workKey, sourceKey string) {
	t.Helper()
	ctx := context.Background()

	workKey = "movie:the-matrix:1999"
	require.NoError(t, s.UpsertWork(ctx, &domain.Work{
		WorkKey:         workKey,
		Type:            domain.WorkMovie,
		Title:           "The Matrix",
		NormalizedTitle: mediakey.NormalizeTitle("The Matrix"),
		Year:            1999,
		ExternalIDs:     map[string]string{"tmdb": "603"},
	}))

	var err error
	sourceKey, err = mediakey.ForSource(domain.SourceXtream, "acct1", domain.ItemVOD, "603")
	require.NoError(t, err)
	require.NoError(t, s.UpsertSourceRef(ctx, &domain.SourceRef{
		SourceKey:  sourceKey,
		WorkKey:    workKey,
		SourceType: domain.SourceXtream,
		AccountKey: "acct1",
		ItemKind:   domain.ItemVOD,
		ItemKey:    "603",
	}))
	require.NoError(t, s.UpsertVariant(ctx, &domain.Variant{
		VariantKey: mediakey.ForVariant(sourceKey, "hd"),
		WorkKey:    workKey,
		SourceKey:  sourceKey,
		Label:      "hd",
		IsDefault:  true,
		Container:  "mkv",
		DurationMs: 8_160_000,
		PlayHints:  map[string]string{"stream_id": "603"},
	}))
	require.NoError(t, s.UpsertLedgerEntry(ctx, &domain.LedgerEntry{
		LedgerKey:   "led:xtream:acct1:603",
		State:       domain.LedgerAccepted,
		ReasonCode:  "ingested",
		WorkKey:     workKey,
		FirstSeenAt: time.Now(),
		LastSeenAt:  time.Now(),
	}))
	return workKey, sourceKey
}

func TestSnapshotExportsCatalog(t *testing.T) {
	s := setupExportStore(t)
	workKey, sourceKey := seedCatalog(t, s)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "catalog.db")
	require.NoError(t, export.Snapshot(ctx, s, path, nil))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var title string
	var year int
	var externalIDs sql.NullString
	err = db.QueryRowContext(ctx,
		`SELECT title, year, external_ids FROM works WHERE work_key = ?`, workKey).
		Scan(&title, &year, &externalIDs)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", title)
	assert.Equal(t, 1999, year)
	require.True(t, externalIDs.Valid)
	assert.Contains(t, externalIDs.String, `"tmdb"`)

	var refWork string
	err = db.QueryRowContext(ctx,
		`SELECT work_key FROM source_refs WHERE source_key = ?`, sourceKey).Scan(&refWork)
	require.NoError(t, err)
	assert.Equal(t, workKey, refWork)

	var isDefault int
	var durationMs int64
	err = db.QueryRowContext(ctx,
		`SELECT is_default, duration_ms FROM variants WHERE variant_key = ?`,
		mediakey.ForVariant(sourceKey, "hd")).Scan(&isDefault, &durationMs)
	require.NoError(t, err)
	assert.Equal(t, 1, isDefault)
	assert.Equal(t, int64(8_160_000), durationMs)

	var state string
	err = db.QueryRowContext(ctx,
		`SELECT state FROM ledger WHERE ledger_key = 'led:xtream:acct1:603'`).Scan(&state)
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", state)
}

func TestSnapshotEmptyStore(t *testing.T) {
	s := setupExportStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "empty.db")
	require.NoError(t, export.Snapshot(ctx, s, path, nil))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM works`).Scan(&count))
	assert.Zero(t, count)
}

func TestSnapshotRefusesExistingTarget(t *testing.T) {
	s := setupExportStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "catalog.db")
	require.NoError(t, export.Snapshot(ctx, s, path, nil))

	err := export.Snapshot(ctx, s, path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
