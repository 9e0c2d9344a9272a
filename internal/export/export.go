// Package export writes an offline sqlite snapshot of the catalog.
// The snapshot is a plain queryable file for inspection and tooling; it
// is never read back by the engine itself.
package export

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/karlokarate/FishIT-Player-sub011/internal/store"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE works (
	work_key         TEXT PRIMARY KEY,
	type             TEXT NOT NULL,
	title            TEXT,
	normalized_title TEXT,
	year             INTEGER,
	recognition_state TEXT,
	external_ids     TEXT,
	created_at       TEXT,
	updated_at       TEXT
);
CREATE TABLE source_refs (
	source_key    TEXT PRIMARY KEY,
	work_key      TEXT NOT NULL,
	source_type   TEXT,
	account_key   TEXT,
	item_kind     TEXT,
	item_key      TEXT,
	source_title  TEXT,
	availability  TEXT,
	first_seen_at TEXT,
	last_seen_at  TEXT
);
CREATE TABLE variants (
	variant_key TEXT PRIMARY KEY,
	source_key  TEXT NOT NULL,
	work_key    TEXT,
	label       TEXT,
	is_default  INTEGER,
	container   TEXT,
	duration_ms INTEGER,
	play_hints  TEXT
);
CREATE TABLE ledger (
	ledger_key    TEXT PRIMARY KEY,
	state         TEXT NOT NULL,
	reason_code   TEXT,
	work_key      TEXT,
	first_seen_at TEXT,
	last_seen_at  TEXT,
	retry_after   TEXT
);
CREATE INDEX idx_source_refs_work ON source_refs(work_key);
CREATE INDEX idx_variants_source ON variants(source_key);
`

// Snapshot exports the catalog into a new sqlite file at path.
// The target must not exist yet; a snapshot is never appended to.
func Snapshot(ctx context.Context, s *store.Store, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("snapshot target already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open snapshot db: %w", err)
	}
	defer db.Close()

	// A snapshot is written once and read elsewhere; journaling and
	// fsync discipline buy nothing here.
	pragmas := []string{
		"PRAGMA journal_mode=OFF",
		"PRAGMA synchronous=OFF",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}

	start := time.Now()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	works, err := copyWorks(ctx, tx, s)
	if err != nil {
		return err
	}
	refs, err := copySourceRefs(ctx, tx, s)
	if err != nil {
		return err
	}
	variants, err := copyVariants(ctx, tx, s)
	if err != nil {
		return err
	}
	entries, err := copyLedger(ctx, tx, s)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	logger.Info("catalog snapshot written",
		"path", path,
		"works", works,
		"source_refs", refs,
		"variants", variants,
		"ledger", entries,
		"duration", time.Since(start),
	)
	return nil
}

func copyWorks(ctx context.Context, tx *sql.Tx, s *store.Store) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO works
		(work_key, type, title, normalized_title, year, recognition_state, external_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare works insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for work, err := range s.ListWorks(ctx) {
		if err != nil {
			return 0, err
		}
		ids, err := jsonColumn(work.ExternalIDs)
		if err != nil {
			return 0, fmt.Errorf("encode external ids for %s: %w", work.WorkKey, err)
		}
		_, err = stmt.ExecContext(ctx,
			work.WorkKey,
			string(work.Type),
			work.Title,
			work.NormalizedTitle,
			work.Year,
			string(work.RecognitionState),
			ids,
			formatTime(work.CreatedAt),
			formatTime(work.UpdatedAt),
		)
		if err != nil {
			return 0, fmt.Errorf("insert work %s: %w", work.WorkKey, err)
		}
		count++
	}
	return count, nil
}

func copySourceRefs(ctx context.Context, tx *sql.Tx, s *store.Store) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO source_refs
		(source_key, work_key, source_type, account_key, item_kind, item_key, source_title, availability, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare source_refs insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for ref, err := range s.ListSourceRefs(ctx, "src:") {
		if err != nil {
			return 0, err
		}
		_, err = stmt.ExecContext(ctx,
			ref.SourceKey,
			ref.WorkKey,
			string(ref.SourceType),
			ref.AccountKey,
			string(ref.ItemKind),
			ref.ItemKey,
			ref.SourceTitle,
			string(ref.Availability),
			formatTime(ref.FirstSeenAt),
			formatTime(ref.LastSeenAt),
		)
		if err != nil {
			return 0, fmt.Errorf("insert source ref %s: %w", ref.SourceKey, err)
		}
		count++
	}
	return count, nil
}

func copyVariants(ctx context.Context, tx *sql.Tx, s *store.Store) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO variants
		(variant_key, source_key, work_key, label, is_default, container, duration_ms, play_hints)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare variants insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for v, err := range s.ListVariants(ctx) {
		if err != nil {
			return 0, err
		}
		hints, err := jsonColumn(v.PlayHints)
		if err != nil {
			return 0, fmt.Errorf("encode play hints for %s: %w", v.VariantKey, err)
		}
		_, err = stmt.ExecContext(ctx,
			v.VariantKey,
			v.SourceKey,
			v.WorkKey,
			v.Label,
			boolColumn(v.IsDefault),
			v.Container,
			v.DurationMs,
			hints,
		)
		if err != nil {
			return 0, fmt.Errorf("insert variant %s: %w", v.VariantKey, err)
		}
		count++
	}
	return count, nil
}

func copyLedger(ctx context.Context, tx *sql.Tx, s *store.Store) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger
		(ledger_key, state, reason_code, work_key, first_seen_at, last_seen_at, retry_after)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for entry, err := range s.ListLedgerEntries(ctx) {
		if err != nil {
			return 0, err
		}
		_, err = stmt.ExecContext(ctx,
			entry.LedgerKey,
			string(entry.State),
			entry.ReasonCode,
			entry.WorkKey,
			formatTime(entry.FirstSeenAt),
			formatTime(entry.LastSeenAt),
			formatTime(entry.RetryAfter),
		)
		if err != nil {
			return 0, fmt.Errorf("insert ledger entry %s: %w", entry.LedgerKey, err)
		}
		count++
	}
	return count, nil
}

// jsonColumn encodes a map as a JSON text column, empty maps as NULL.
func jsonColumn(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func boolColumn(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
