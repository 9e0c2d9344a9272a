package catalog

import (
	"time"

	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
)

// NormalizedItem is the pipeline-neutral description of one ingest
// candidate. Pipelines parse their own wire formats and hand the writer
// this shape; no source-specific parsing happens past this point.
type NormalizedItem struct {
	SourceType domain.SourceType `json:"source_type" validate:"required,sourcetype"`
	AccountKey string            `json:"account_key" validate:"required,keysegment"`
	ItemKind   domain.ItemKind   `json:"item_kind" validate:"required,itemkind"`
	ItemKey    string            `json:"item_key" validate:"required"`

	Type  domain.WorkType `json:"type"`
	Title string          `json:"title" validate:"max=500"`
	Year  int             `json:"year,omitempty" validate:"gte=0"`

	RuntimeMs   int64    `json:"runtime_ms,omitempty"`
	PosterRef   string   `json:"poster_ref,omitempty"`
	BackdropRef string   `json:"backdrop_ref,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Plot        string   `json:"plot,omitempty"`
	Cast        []string `json:"cast,omitempty"`
	Directors   []string `json:"directors,omitempty"`
	Adult       bool     `json:"adult,omitempty"`

	// ExternalIDs maps a provider namespace ("tmdb", "imdb") to its ID.
	// A resolved ID makes the work CONFIRMED from the start and is the
	// dedup anchor across pipelines.
	ExternalIDs map[string]string `json:"external_ids,omitempty"`

	SourceModifiedAt time.Time `json:"source_modified_at,omitempty"`

	// Live channel extras.
	EPGChannelID string `json:"epg_channel_id,omitempty"`
	CatchupDays  int    `json:"catchup_days,omitempty"`

	// Variant fields; a variant is written only when PlayHints are present.
	PlayHints      map[string]string `json:"play_hints,omitempty"`
	VariantLabel   string            `json:"variant_label,omitempty"`
	Container      string            `json:"container,omitempty"`
	DurationMs     int64             `json:"duration_ms,omitempty"`
	DefaultVariant bool              `json:"default_variant,omitempty"`
}

// EpisodeItem is one child episode from a series detail fetch.
type EpisodeItem struct {
	Season  int    `json:"season" validate:"gte=0"`
	Episode int    `json:"episode" validate:"gte=0"`
	ItemKey string `json:"item_key" validate:"required"`

	// Title may be blank; episode identity never depends on it.
	Title     string `json:"title,omitempty"`
	Plot      string `json:"plot,omitempty"`
	PosterRef string `json:"poster_ref,omitempty"`
	RuntimeMs int64  `json:"runtime_ms,omitempty"`

	PlayHints      map[string]string `json:"play_hints,omitempty"`
	VariantLabel   string            `json:"variant_label,omitempty"`
	Container      string            `json:"container,omitempty"`
	DurationMs     int64             `json:"duration_ms,omitempty"`
	DefaultVariant bool              `json:"default_variant,omitempty"`
}

// populateWork builds the canonical work for an item. Title derivations
// run through one place so sync-created and detail-created works never
// diverge in casing or sort keys.
func populateWork(workKey string, item *NormalizedItem) *domain.Work {
	work := &domain.Work{
		WorkKey:          workKey,
		Type:             item.Type,
		Title:            item.Title,
		SortTitle:        mediakey.SortTitle(item.Title),
		NormalizedTitle:  mediakey.NormalizeTitle(item.Title),
		Year:             item.Year,
		RuntimeMs:        item.RuntimeMs,
		PosterRef:        item.PosterRef,
		BackdropRef:      item.BackdropRef,
		Rating:           item.Rating,
		Genres:           item.Genres,
		Plot:             item.Plot,
		Cast:             item.Cast,
		Directors:        item.Directors,
		ExternalIDs:      item.ExternalIDs,
		Adult:            item.Adult,
		RecognitionState: domain.RecognitionHeuristic,
	}
	if len(item.ExternalIDs) > 0 {
		work.RecognitionState = domain.RecognitionConfirmed
	}
	return work
}

// buildSourceRef builds the ref pointing the item at its work.
func buildSourceRef(workKey string, item *NormalizedItem) (*domain.SourceRef, error) {
	sourceKey, err := mediakey.ForSource(item.SourceType, item.AccountKey, item.ItemKind, item.ItemKey)
	if err != nil {
		return nil, err
	}
	return &domain.SourceRef{
		SourceKey:        sourceKey,
		WorkKey:          workKey,
		SourceType:       item.SourceType,
		AccountKey:       item.AccountKey,
		ItemKind:         item.ItemKind,
		ItemKey:          item.ItemKey,
		SourceTitle:      item.Title,
		SourceModifiedAt: item.SourceModifiedAt,
		Availability:     domain.AvailabilityActive,
		EPGChannelID:     item.EPGChannelID,
		CatchupDays:      item.CatchupDays,
	}, nil
}

// buildVariant builds the playable variant, or nil when the item carries
// no playback hints.
func buildVariant(workKey, sourceKey string, hints map[string]string, label, container string, durationMs int64, isDefault bool) *domain.Variant {
	if len(hints) == 0 {
		return nil
	}
	return &domain.Variant{
		VariantKey: mediakey.ForVariant(sourceKey, label),
		WorkKey:    workKey,
		SourceKey:  sourceKey,
		Label:      variantLabel(label),
		IsDefault:  isDefault,
		Container:  container,
		DurationMs: durationMs,
		PlayHints:  hints,
	}
}

func variantLabel(label string) string {
	if label == "" {
		return "default"
	}
	return label
}

// authorityNamespace maps a work type to the namespace segment used in
// authority keys ("tmdb:movie:550", "tmdb:tv:1399").
func authorityNamespace(t domain.WorkType) string {
	switch t {
	case domain.WorkMovie:
		return "movie"
	case domain.WorkSeries, domain.WorkEpisode:
		return "tv"
	default:
		return string(t)
	}
}
