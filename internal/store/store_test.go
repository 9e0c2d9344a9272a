package store_test

import (
	"testing"
	"time"

	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testWork(key string) *domain.Work {
	return &domain.Work{
		WorkKey: key,
		Type:    domain.WorkMovie,
		Title:   "Fight Club",
		Year:    1999,
	}
}

func testSourceRef(t *testing.T, workKey, itemKey string) *domain.SourceRef {
	t.Helper()
	sourceKey, err := mediakey.ForSource(domain.SourceXtream, "acct1", domain.ItemVOD, itemKey)
	require.NoError(t, err)
	return &domain.SourceRef{
		SourceKey:  sourceKey,
		WorkKey:    workKey,
		SourceType: domain.SourceXtream,
		AccountKey: "acct1",
		ItemKind:   domain.ItemVOD,
		ItemKey:    itemKey,
	}
}

func testVariant(sourceKey, workKey string) *domain.Variant {
	return &domain.Variant{
		VariantKey: mediakey.ForVariant(sourceKey, "hd"),
		WorkKey:    workKey,
		SourceKey:  sourceKey,
		Label:      "hd",
		IsDefault:  true,
		Container:  "mkv",
		DurationMs: 7_500_000,
		PlayHints:  map[string]string{"stream_id": "42"},
	}
}

// settle gives time.Now() room to advance between two writes whose
// ordering a test asserts on.
func settle() {
	time.Sleep(5 * time.Millisecond)
}
