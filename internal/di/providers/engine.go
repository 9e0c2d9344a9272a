package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/karlokarate/FishIT-Player-sub011/internal/catalog"
	"github.com/karlokarate/FishIT-Player-sub011/internal/config"
	"github.com/karlokarate/FishIT-Player-sub011/internal/diag"
	"github.com/karlokarate/FishIT-Player-sub011/internal/match"
	"github.com/karlokarate/FishIT-Player-sub011/internal/reconcile"
)

// ProvideMatchPolicy builds the scoring thresholds from configuration.
func ProvideMatchPolicy(i do.Injector) (match.Policy, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return match.Policy{
		AcceptScore: cfg.Match.AcceptScore,
		ReviewScore: cfg.Match.ReviewScore,
		MinGap:      cfg.Match.MinGap,
	}, nil
}

// ProvideWriter builds the catalog writer.
func ProvideWriter(i do.Injector) (*catalog.Writer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	return catalog.NewWriter(catalog.WriterOptions{
		Store:     storeHandle.Store,
		Logger:    log,
		BatchSize: cfg.Ingest.BatchSize,
		RejectTTL: cfg.Ingest.RejectTTL,
	}), nil
}

// ProvideReconciler builds the merge and user-state reconciler.
func ProvideReconciler(i do.Injector) (*reconcile.Reconciler, error) {
	log := do.MustInvoke[*slog.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	return reconcile.New(storeHandle.Store, log), nil
}

// ProvideScanner builds the diagnostics scanner.
func ProvideScanner(i do.Injector) (*diag.Scanner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	return diag.NewScanner(diag.ScannerOptions{
		Store:         storeHandle.Store,
		Logger:        log,
		RatePerSecond: cfg.Diag.ScanRate,
	}), nil
}
