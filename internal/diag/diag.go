// Package diag runs read-only consistency scans over the identity
// graph: dangling relation endpoints, variants without a source ref,
// malformed keys, duplicate works and redirect cycles. Diagnostics never
// write; everything they find is reported, not repaired.
package diag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/karlokarate/FishIT-Player-sub011/internal/id"
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
)

// Report is the outcome of one full scan.
type Report struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Scanned    ScanCounts `json:"scanned"`
	Findings   []Finding  `json:"findings"`
}

// ScanCounts tallies how many entities each pass visited.
type ScanCounts struct {
	Works      int `json:"works"`
	SourceRefs int `json:"source_refs"`
	Variants   int `json:"variants"`
	Relations  int `json:"relations"`
	Redirects  int `json:"redirects"`
	Ledger     int `json:"ledger"`
}

// FindingKind classifies one inconsistency.
type FindingKind string

const (
	FindingOrphanRelation FindingKind = "orphan_relation"
	FindingOrphanVariant  FindingKind = "orphan_variant"
	FindingOrphanRef      FindingKind = "orphan_source_ref"
	FindingMalformedKey   FindingKind = "malformed_key"
	FindingDuplicateWork  FindingKind = "duplicate_work"
	FindingRedirectCycle  FindingKind = "redirect_cycle"
)

// Finding is one detected inconsistency.
type Finding struct {
	Kind   FindingKind `json:"kind"`
	Key    string      `json:"key"`
	Detail string      `json:"detail,omitempty"`
}

// HasProblems reports whether the scan found anything.
func (r *Report) HasProblems() bool {
	return len(r.Findings) > 0
}

// ByKind returns the findings of one kind.
func (r *Report) ByKind(kind FindingKind) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Scanner walks the store off the write path. The per-entity rate limit
// keeps a scan from starving writers on large libraries.
type Scanner struct {
	store   *store.Store
	logger  *slog.Logger
	limiter *rate.Limiter
}

// ScannerOptions configures a scanner. RatePerSecond <= 0 disables
// pacing.
type ScannerOptions struct {
	Store         *store.Store
	Logger        *slog.Logger
	RatePerSecond float64
}

// NewScanner creates a diagnostics scanner.
func NewScanner(opts ScannerOptions) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), int(opts.RatePerSecond))
	}
	return &Scanner{store: opts.Store, logger: logger, limiter: limiter}
}

// Run executes every pass and returns the report. Cancellation aborts
// the scan and propagates.
func (s *Scanner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		ID:        id.MustGenerate("diag"),
		StartedAt: time.Now(),
	}
	s.logger.Info("diagnostics scan started", "report_id", report.ID)

	workKeys, err := s.scanWorks(ctx, report)
	if err != nil {
		return nil, err
	}
	if err := s.scanSourceRefs(ctx, report, workKeys); err != nil {
		return nil, err
	}
	if err := s.scanRelations(ctx, report, workKeys); err != nil {
		return nil, err
	}
	if err := s.scanRedirects(ctx, report); err != nil {
		return nil, err
	}
	if err := s.scanLedger(ctx, report); err != nil {
		return nil, err
	}

	report.FinishedAt = time.Now()
	s.logger.Info("diagnostics scan finished",
		"report_id", report.ID,
		"findings", len(report.Findings),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

func (s *Scanner) pace(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}
	return s.limiter.Wait(ctx)
}

// scanWorks collects the key set and flags duplicate identities: works
// whose normalized title, year and type coincide under distinct keys.
func (s *Scanner) scanWorks(ctx context.Context, report *Report) (map[string]bool, error) {
	workKeys := make(map[string]bool)
	identities := make(map[string]string)

	for work, err := range s.store.ListWorks(ctx) {
		if err != nil {
			return nil, err
		}
		if err := s.pace(ctx); err != nil {
			return nil, err
		}
		report.Scanned.Works++
		workKeys[work.WorkKey] = true

		if work.NormalizedTitle == "" {
			continue
		}
		identity := fmt.Sprintf("%s|%s|%d", work.Type, work.NormalizedTitle, work.Year)
		if firstKey, seen := identities[identity]; seen {
			report.Findings = append(report.Findings, Finding{
				Kind:   FindingDuplicateWork,
				Key:    work.WorkKey,
				Detail: "same identity as " + firstKey,
			})
		} else {
			identities[identity] = work.WorkKey
		}
	}
	return workKeys, nil
}

// scanSourceRefs checks ref keys, their work endpoints, and each ref's
// variants.
func (s *Scanner) scanSourceRefs(ctx context.Context, report *Report, workKeys map[string]bool) error {
	refKeys := make(map[string]bool)

	for ref, err := range s.store.ListSourceRefs(ctx, "src:") {
		if err != nil {
			return err
		}
		if err := s.pace(ctx); err != nil {
			return err
		}
		report.Scanned.SourceRefs++
		refKeys[ref.SourceKey] = true

		if _, perr := mediakey.ParseSourceKey(ref.SourceKey); perr != nil {
			report.Findings = append(report.Findings, Finding{
				Kind: FindingMalformedKey, Key: ref.SourceKey, Detail: perr.Error(),
			})
			continue
		}
		if !workKeys[ref.WorkKey] {
			report.Findings = append(report.Findings, Finding{
				Kind: FindingOrphanRef, Key: ref.SourceKey,
				Detail: "work missing: " + ref.WorkKey,
			})
		}

		variants, verr := s.store.VariantsForSource(ctx, ref.SourceKey)
		if verr != nil {
			return verr
		}
		report.Scanned.Variants += len(variants)
	}

	// Variants whose source ref is gone do not show up under any ref
	// scan; walk the variant space directly.
	for v, err := range s.store.ListVariants(ctx) {
		if err != nil {
			return err
		}
		if err := s.pace(ctx); err != nil {
			return err
		}
		if !refKeys[v.SourceKey] {
			report.Findings = append(report.Findings, Finding{
				Kind: FindingOrphanVariant, Key: v.VariantKey,
				Detail: "source ref missing: " + v.SourceKey,
			})
		}
	}
	return nil
}

func (s *Scanner) scanRelations(ctx context.Context, report *Report, workKeys map[string]bool) error {
	for rel, err := range s.store.ListRelations(ctx) {
		if err != nil {
			return err
		}
		if err := s.pace(ctx); err != nil {
			return err
		}
		report.Scanned.Relations++

		if !workKeys[rel.ParentWorkKey] {
			report.Findings = append(report.Findings, Finding{
				Kind:   FindingOrphanRelation,
				Key:    rel.ParentWorkKey + "->" + rel.ChildWorkKey,
				Detail: "parent missing",
			})
		}
		if !workKeys[rel.ChildWorkKey] {
			report.Findings = append(report.Findings, Finding{
				Kind:   FindingOrphanRelation,
				Key:    rel.ParentWorkKey + "->" + rel.ChildWorkKey,
				Detail: "child missing",
			})
		}
	}
	return nil
}

func (s *Scanner) scanRedirects(ctx context.Context, report *Report) error {
	for redir, err := range s.store.ListRedirects(ctx) {
		if err != nil {
			return err
		}
		if err := s.pace(ctx); err != nil {
			return err
		}
		report.Scanned.Redirects++

		_, rerr := s.store.ResolveWorkKey(ctx, redir.ObsoleteWorkKey)
		if errors.Is(rerr, store.ErrRedirectCycle) {
			report.Findings = append(report.Findings, Finding{
				Kind: FindingRedirectCycle, Key: redir.ObsoleteWorkKey,
				Detail: "resolution does not terminate",
			})
			continue
		}
		if rerr != nil {
			return rerr
		}
	}
	return nil
}

func (s *Scanner) scanLedger(ctx context.Context, report *Report) error {
	for entry, err := range s.store.ListLedgerEntries(ctx) {
		if err != nil {
			return err
		}
		if err := s.pace(ctx); err != nil {
			return err
		}
		report.Scanned.Ledger++

		if _, perr := mediakey.ParseLedgerKey(entry.LedgerKey); perr != nil {
			report.Findings = append(report.Findings, Finding{
				Kind: FindingMalformedKey, Key: entry.LedgerKey, Detail: perr.Error(),
			})
		}
	}
	return nil
}
