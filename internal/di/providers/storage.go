package providers

import (
	"log/slog"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/karlokarate/FishIT-Player-sub011/internal/config"
	"github.com/karlokarate/FishIT-Player-sub011/internal/search"
	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the badger-backed catalog store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	dbPath := filepath.Join(cfg.Data.Path, "db")
	s, err := store.Open(dbPath, log)
	if err != nil {
		return nil, err
	}
	log.Info("catalog store opened", "path", dbPath)
	return &StoreHandle{Store: s}, nil
}

// SearchIndexHandle wraps the title index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex opens the bleve title index and hooks it into the
// store so work upserts and deletes keep it current.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	idx, err := search.Open(search.Options{
		DataPath: cfg.Data.IndexPath,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	storeHandle.SetWorkIndexer(idx)

	log.Info("title index opened", "path", cfg.Data.IndexPath)
	return &SearchIndexHandle{Index: idx}, nil
}
