// Package catalog turns normalized pipeline output into the canonical
// entity graph: one Work per real-world item, a SourceRef per pipeline
// pointer, a Variant per playable encoding, and a ledger entry per
// candidate regardless of outcome.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
	"github.com/karlokarate/FishIT-Player-sub011/internal/validation"
)

// Ledger reason codes written by the ingest path.
const (
	reasonValidationFailed = "validation_failed"
	reasonStorageError     = "storage_error"
	reasonUnchanged        = "unchanged"
	reasonIngested         = "ingested"
	reasonEpisodeIngest    = "episode_requires_parent"
)

// defaultBatchSize bounds one ingest sub-batch so background syncs do not
// starve concurrent readers.
const defaultBatchSize = 50

// defaultRejectTTL is how long a validation rejection suppresses
// re-evaluation of the same candidate.
const defaultRejectTTL = 168 * time.Hour

// Writer ingests normalized items into the store.
type Writer struct {
	store     *store.Store
	logger    *slog.Logger
	validate  *validation.Validator
	batchSize int
	rejectTTL time.Duration
}

// WriterOptions configures a Writer. Zero values fall back to defaults.
type WriterOptions struct {
	Store     *store.Store
	Logger    *slog.Logger
	BatchSize int
	RejectTTL time.Duration
}

// NewWriter creates a catalog writer.
func NewWriter(opts WriterOptions) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	rejectTTL := opts.RejectTTL
	if rejectTTL <= 0 {
		rejectTTL = defaultRejectTTL
	}
	return &Writer{
		store:     opts.Store,
		logger:    logger,
		validate:  validation.New(),
		batchSize: batchSize,
		rejectTTL: rejectTTL,
	}
}

// IngestResult reports what happened to one candidate.
type IngestResult struct {
	WorkKey string
	State   domain.LedgerState
}

// Ingest processes one candidate: validate, dedup against authority
// refs, resolve redirects, then write Work+SourceRef+Variant atomically.
// A ledger entry is written for every candidate whose key can be formed,
// success or failure. Cancellation propagates without a ledger write.
func (w *Writer) Ingest(ctx context.Context, item *NormalizedItem) (*IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if item == nil {
		return nil, store.ErrInvalidInput.WithMessage("item is required")
	}

	ledgerKey, err := mediakey.ForLedger(item.SourceType, item.AccountKey, item.ItemKey)
	if err != nil {
		// Without the key segments there is no ledger identity to record
		// the failure under.
		return nil, err
	}

	// Fast path: a recent rejection suppresses re-evaluation. The
	// existing entry stays as-is so its TTL keeps working.
	skip, err := w.store.ShouldSkip(ctx, ledgerKey, time.Now())
	if err != nil {
		return nil, err
	}
	if skip {
		return &IngestResult{State: domain.LedgerSkipped}, nil
	}

	if err := w.validate.Validate(item); err != nil {
		if lerr := w.writeLedger(ctx, ledgerKey, domain.LedgerRejected, reasonValidationFailed, "", w.rejectTTL); lerr != nil {
			return nil, lerr
		}
		return &IngestResult{State: domain.LedgerRejected}, err
	}

	// Episode identity derives from the parent series, which a bulk
	// candidate does not carry. Keying episodes by their own (often
	// blank) title would collapse distinct episodes into one work, so
	// they only enter through WriteEpisodeEntities.
	if item.ItemKind == domain.ItemEpisode || item.Type == domain.WorkEpisode {
		if lerr := w.writeLedger(ctx, ledgerKey, domain.LedgerRejected, reasonEpisodeIngest, "", w.rejectTTL); lerr != nil {
			return nil, lerr
		}
		return &IngestResult{State: domain.LedgerRejected},
			store.ErrInvalidInput.WithMessage("episode items enter through the series detail path")
	}

	workKey, err := w.resolveWorkKey(ctx, item)
	if err != nil {
		if isCancellation(err) {
			return nil, err
		}
		if lerr := w.writeLedger(ctx, ledgerKey, domain.LedgerRejected, reasonStorageError, "", 0); lerr != nil {
			return nil, lerr
		}
		return &IngestResult{State: domain.LedgerRejected}, err
	}

	// Incremental sync: an unchanged item refreshes nothing but its
	// ledger presence. The stored ref may predate a merge, so its work
	// key is redirect-resolved before it is reported.
	if unchanged, ref := w.isUnchanged(ctx, item); unchanged {
		refWorkKey := ref.WorkKey
		if resolved, rerr := w.store.ResolveWorkKey(ctx, ref.WorkKey); rerr == nil {
			refWorkKey = resolved
		}
		if lerr := w.writeLedger(ctx, ledgerKey, domain.LedgerSkipped, reasonUnchanged, refWorkKey, 0); lerr != nil {
			return nil, lerr
		}
		return &IngestResult{WorkKey: refWorkKey, State: domain.LedgerSkipped}, nil
	}

	entry, err := w.buildEntry(workKey, item)
	if err != nil {
		if lerr := w.writeLedger(ctx, ledgerKey, domain.LedgerRejected, reasonValidationFailed, "", w.rejectTTL); lerr != nil {
			return nil, lerr
		}
		return &IngestResult{State: domain.LedgerRejected}, err
	}

	if err := w.store.UpsertCatalogEntry(ctx, *entry); err != nil {
		if isCancellation(err) {
			return nil, err
		}
		if lerr := w.writeLedger(ctx, ledgerKey, domain.LedgerRejected, reasonStorageError, "", 0); lerr != nil {
			return nil, lerr
		}
		return &IngestResult{State: domain.LedgerRejected}, err
	}

	w.recordAuthorityRefs(ctx, workKey, item)

	if err := w.writeLedger(ctx, ledgerKey, domain.LedgerAccepted, reasonIngested, workKey, 0); err != nil {
		return nil, err
	}
	return &IngestResult{WorkKey: workKey, State: domain.LedgerAccepted}, nil
}

// IngestBatch processes items in bounded sub-batches. Per-item failures
// are logged and isolated; cancellation aborts and is returned as-is.
// Returns the number of accepted items.
func (w *Writer) IngestBatch(ctx context.Context, items []*NormalizedItem) (int, error) {
	runID := uuid.NewString()
	total := len(items)
	accepted := 0
	failed := 0

	w.logger.Info("ingest batch started", "run_id", runID, "items", total)

	for start := 0; start < total; start += w.batchSize {
		end := min(start+w.batchSize, total)
		for _, item := range items[start:end] {
			res, err := w.Ingest(ctx, item)
			if err != nil {
				if isCancellation(err) || ctx.Err() != nil {
					return accepted, err
				}
				failed++
				w.logger.Warn("ingest item failed",
					"run_id", runID,
					"item_key", itemKeyForLog(item),
					"error", err,
				)
				continue
			}
			if res.State == domain.LedgerAccepted {
				accepted++
			}
		}
		w.logger.Info("ingest batch progress",
			"run_id", runID,
			"processed", end,
			"total", total,
			"accepted", accepted,
			"failed", failed,
		)
	}

	w.logger.Info("ingest batch finished",
		"run_id", runID,
		"accepted", accepted,
		"failed", failed,
	)
	return accepted, nil
}

// ClearSourceType marks every ref of one source type REMOVED, e.g. when
// a whole pipeline is disabled.
func (w *Writer) ClearSourceType(ctx context.Context, st domain.SourceType) error {
	if !st.Valid() {
		return store.ErrInvalidInput.WithMessage("unknown source type")
	}
	n, err := w.store.MarkSourceRefsRemoved(ctx, mediakey.SourceKeyPrefix(st))
	if err != nil {
		return err
	}
	w.logger.Info("source type cleared", "source_type", st, "refs", n)
	return nil
}

// ClearAccount marks every ref of one account REMOVED, e.g. when the
// account is deleted.
func (w *Writer) ClearAccount(ctx context.Context, st domain.SourceType, accountKey string) error {
	if !st.Valid() {
		return store.ErrInvalidInput.WithMessage("unknown source type")
	}
	if accountKey == "" {
		return store.ErrInvalidInput.WithMessage("account key is required")
	}
	n, err := w.store.MarkSourceRefsRemoved(ctx, mediakey.AccountKeyPrefix(st, accountKey))
	if err != nil {
		return err
	}
	w.logger.Info("account cleared", "source_type", st, "account_key", accountKey, "refs", n)
	return nil
}

// resolveWorkKey determines the canonical work for an item: an authority
// match reuses the existing work, otherwise the heuristic key is minted.
// Either way the result is redirect-resolved.
func (w *Writer) resolveWorkKey(ctx context.Context, item *NormalizedItem) (string, error) {
	for _, ns := range sortedNamespaces(item.ExternalIDs) {
		authorityKey := mediakey.ForAuthority(ns, authorityNamespace(item.Type), item.ExternalIDs[ns])
		workKey, err := w.store.FindWorkKeyByAuthorityKey(ctx, authorityKey)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		return w.store.ResolveWorkKey(ctx, workKey)
	}
	return w.store.ResolveWorkKey(ctx, mediakey.ForWork(item.Type, item.Title, item.Year))
}

// isUnchanged reports whether the item's provider timestamp is not newer
// than what the stored ref already carries.
func (w *Writer) isUnchanged(ctx context.Context, item *NormalizedItem) (bool, *domain.SourceRef) {
	if item.SourceModifiedAt.IsZero() {
		return false, nil
	}
	sourceKey, err := mediakey.ForSource(item.SourceType, item.AccountKey, item.ItemKind, item.ItemKey)
	if err != nil {
		return false, nil
	}
	ref, err := w.store.GetSourceRef(ctx, sourceKey)
	if err != nil {
		return false, nil
	}
	if ref.SourceModifiedAt.IsZero() || item.SourceModifiedAt.After(ref.SourceModifiedAt) {
		return false, nil
	}
	return true, ref
}

// buildEntry assembles the atomic write unit for one item.
func (w *Writer) buildEntry(workKey string, item *NormalizedItem) (*store.CatalogEntry, error) {
	ref, err := buildSourceRef(workKey, item)
	if err != nil {
		return nil, err
	}
	return &store.CatalogEntry{
		Work:      populateWork(workKey, item),
		SourceRef: ref,
		Variant: buildVariant(workKey, ref.SourceKey, item.PlayHints,
			item.VariantLabel, item.Container, item.DurationMs, item.DefaultVariant),
	}, nil
}

// recordAuthorityRefs persists the item's resolved external IDs as
// confirmed authority refs. Failures only log; the catalog entry already
// landed and the refs are rebuilt on the next sync.
func (w *Writer) recordAuthorityRefs(ctx context.Context, workKey string, item *NormalizedItem) {
	for _, ns := range sortedNamespaces(item.ExternalIDs) {
		ref := &domain.AuthorityRef{
			AuthorityKey: mediakey.ForAuthority(ns, authorityNamespace(item.Type), item.ExternalIDs[ns]),
			WorkKey:      workKey,
			Type:         ns,
			Namespace:    authorityNamespace(item.Type),
			Confidence:   100,
			Status:       domain.AuthorityConfirmed,
			Provenance:   domain.ProvenanceAuto,
		}
		if err := w.store.UpsertAuthorityRef(ctx, ref); err != nil {
			if isCancellation(err) {
				return
			}
			w.logger.Warn("authority ref write failed",
				"authority_key", ref.AuthorityKey, "error", err)
		}
	}
}

func (w *Writer) writeLedger(ctx context.Context, ledgerKey string, state domain.LedgerState, reason, workKey string, ttl time.Duration) error {
	entry := &domain.LedgerEntry{
		LedgerKey:  ledgerKey,
		State:      state,
		ReasonCode: reason,
		WorkKey:    workKey,
	}
	if ttl > 0 {
		entry.RetryAfter = time.Now().Add(ttl)
	}
	return w.store.UpsertLedgerEntry(ctx, entry)
}

// sortedNamespaces keeps dedup lookups deterministic when an item
// carries several external IDs.
func sortedNamespaces(ids map[string]string) []string {
	namespaces := make([]string, 0, len(ids))
	for ns := range ids {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	return namespaces
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func itemKeyForLog(item *NormalizedItem) string {
	if item == nil {
		return ""
	}
	return item.ItemKey
}
