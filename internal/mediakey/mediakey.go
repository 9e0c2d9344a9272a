// Package mediakey builds the deterministic keys that identify entities
// across pipelines. All functions are pure: the same normalized input
// always yields the same key, so any pipeline can re-ingest idempotently
// without coordination.
//
// Key formats are a wire contract shared with every consumer of the store:
//
//	work:      <type>:<slug>:<year|"live"|"unknown">
//	episode:   episode:<slug>:<year>:s<season>e<episode>
//	source:    src:<sourceType>:<accountKey>:<itemKind>:<itemKey>
//	variant:   <sourceKey>#<label>
//	ledger:    led:<sourceType>:<accountKey>:<itemKey>
//	authority: <authorityType>:<namespace>:<id>
package mediakey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
)

const (
	sourcePrefix = "src:"
	ledgerPrefix = "led:"

	// yearLive marks works without a meaningful year axis (live channels).
	yearLive = "live"
	// yearUnknown is the sentinel for missing years on regular works.
	yearUnknown = "unknown"
	// slugUntitled is the sentinel for a blank title.
	slugUntitled = "untitled"
)

// ForWork builds the canonical work key from normalized metadata.
// Missing inputs fall back to sentinels instead of failing: a blank title
// slugs to "untitled", a zero year to "unknown". Live channels always use
// the "live" year segment regardless of metadata.
func ForWork(t domain.WorkType, title string, year int) string {
	seg := yearSegment(t, year)
	return string(t) + ":" + slugOrUntitled(title) + ":" + seg
}

// ForEpisode builds an episode work key from the *parent series'* title and
// year plus season/episode numbers. Episode titles are often absent or
// unstable across sources, so they never enter the key.
func ForEpisode(seriesTitle string, seriesYear, season, episode int) string {
	seg := yearSegment(domain.WorkEpisode, seriesYear)
	return fmt.Sprintf("%s:%s:%s:s%02de%02d",
		domain.WorkEpisode, slugOrUntitled(seriesTitle), seg, season, episode)
}

// ForSource builds a source reference key. Account key and item key are
// required: multi-account setups would collide without them.
func ForSource(st domain.SourceType, accountKey string, kind domain.ItemKind, itemKey string) (string, error) {
	if !st.Valid() {
		return "", fmt.Errorf("source key: invalid source type %q", st)
	}
	if strings.TrimSpace(accountKey) == "" {
		return "", fmt.Errorf("source key: blank account key")
	}
	if !kind.Valid() {
		return "", fmt.Errorf("source key: invalid item kind %q", kind)
	}
	if strings.TrimSpace(itemKey) == "" {
		return "", fmt.Errorf("source key: blank item key")
	}
	return sourcePrefix + string(st) + ":" + accountKey + ":" + string(kind) + ":" + itemKey, nil
}

// ForVariant builds a variant key from its source key and label.
func ForVariant(sourceKey, label string) string {
	if label == "" {
		label = "default"
	}
	return sourceKey + "#" + label
}

// ForLedger builds the ingest ledger key for a candidate.
func ForLedger(st domain.SourceType, accountKey, itemKey string) (string, error) {
	if !st.Valid() {
		return "", fmt.Errorf("ledger key: invalid source type %q", st)
	}
	if strings.TrimSpace(accountKey) == "" {
		return "", fmt.Errorf("ledger key: blank account key")
	}
	if strings.TrimSpace(itemKey) == "" {
		return "", fmt.Errorf("ledger key: blank item key")
	}
	return ledgerPrefix + string(st) + ":" + accountKey + ":" + itemKey, nil
}

// ForAuthority builds an external catalog key, e.g. "tmdb:movie:550".
func ForAuthority(authorityType, namespace, id string) string {
	return authorityType + ":" + namespace + ":" + id
}

// SourceKeyParts is the decomposition of a source key.
type SourceKeyParts struct {
	SourceType domain.SourceType
	AccountKey string
	ItemKind   domain.ItemKind
	ItemKey    string
}

// ParseSourceKey splits a source key back into its parts.
// The item key may itself contain colons (chat message references do), so
// it absorbs the remainder.
func ParseSourceKey(key string) (SourceKeyParts, error) {
	rest, ok := strings.CutPrefix(key, sourcePrefix)
	if !ok {
		return SourceKeyParts{}, fmt.Errorf("source key %q: missing %q prefix", key, sourcePrefix)
	}
	parts := strings.SplitN(rest, ":", 4)
	if len(parts) != 4 || parts[3] == "" {
		return SourceKeyParts{}, fmt.Errorf("source key %q: want 4 segments after prefix", key)
	}
	st := domain.ParseSourceType(parts[0])
	if !st.Valid() || string(st) != parts[0] {
		return SourceKeyParts{}, fmt.Errorf("source key %q: unknown source type %q", key, parts[0])
	}
	kind := domain.ItemKind(parts[2])
	if !kind.Valid() {
		return SourceKeyParts{}, fmt.Errorf("source key %q: unknown item kind %q", key, parts[2])
	}
	if parts[1] == "" {
		return SourceKeyParts{}, fmt.Errorf("source key %q: blank account key", key)
	}
	return SourceKeyParts{
		SourceType: st,
		AccountKey: parts[1],
		ItemKind:   kind,
		ItemKey:    parts[3],
	}, nil
}

// LedgerKeyParts is the decomposition of a ledger key.
type LedgerKeyParts struct {
	SourceType domain.SourceType
	AccountKey string
	ItemKey    string
}

// ParseLedgerKey splits a ledger key back into its parts.
func ParseLedgerKey(key string) (LedgerKeyParts, error) {
	rest, ok := strings.CutPrefix(key, ledgerPrefix)
	if !ok {
		return LedgerKeyParts{}, fmt.Errorf("ledger key %q: missing %q prefix", key, ledgerPrefix)
	}
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return LedgerKeyParts{}, fmt.Errorf("ledger key %q: want 3 segments after prefix", key)
	}
	st := domain.ParseSourceType(parts[0])
	if !st.Valid() || string(st) != parts[0] {
		return LedgerKeyParts{}, fmt.Errorf("ledger key %q: unknown source type %q", key, parts[0])
	}
	return LedgerKeyParts{
		SourceType: st,
		AccountKey: parts[1],
		ItemKey:    parts[2],
	}, nil
}

// SourceKeyPrefix returns the key prefix shared by all refs of one source
// type, usable for clear/scan operations.
func SourceKeyPrefix(st domain.SourceType) string {
	return sourcePrefix + string(st) + ":"
}

// AccountKeyPrefix returns the key prefix for one (sourceType, account).
func AccountKeyPrefix(st domain.SourceType, accountKey string) string {
	return sourcePrefix + string(st) + ":" + accountKey + ":"
}

func yearSegment(t domain.WorkType, year int) string {
	if t == domain.WorkLiveChannel {
		return yearLive
	}
	if year <= 0 {
		return yearUnknown
	}
	return strconv.Itoa(year)
}

func slugOrUntitled(title string) string {
	s := Slug(title)
	if s == "" {
		return slugUntitled
	}
	return s
}
