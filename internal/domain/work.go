// Package domain contains the core entities of the media identity graph:
// canonical works, the source references and variants that point at them,
// and the bookkeeping records (redirects, authority refs, user state,
// ingest ledger) that keep identities stable across pipelines.
package domain

import "time"

// Work is the canonical entity for one real-world media item.
// Every pipeline that carries the same movie, episode or channel ends up
// pointing at the same Work through its SourceRefs.
type Work struct {
	// WorkKey is the stable identity, derived from normalized metadata
	// (see mediakey). Re-ingestion updates fields but never the key;
	// only an explicit redirect retires a key.
	WorkKey string   `json:"work_key"`
	Type    WorkType `json:"type"`

	Title           string `json:"title"`
	SortTitle       string `json:"sort_title,omitempty"`
	NormalizedTitle string `json:"normalized_title,omitempty"`
	Year            int    `json:"year,omitempty"`
	RuntimeMs       int64  `json:"runtime_ms,omitempty"`

	PosterRef   string   `json:"poster_ref,omitempty"`
	BackdropRef string   `json:"backdrop_ref,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Plot        string   `json:"plot,omitempty"`
	Cast        []string `json:"cast,omitempty"`
	Directors   []string `json:"directors,omitempty"`

	// ExternalIDs maps a namespace ("tmdb", "imdb", ...) to the provider's
	// identifier. Presence of a resolved ID at ingest time is what lets a
	// work start out CONFIRMED instead of HEURISTIC.
	ExternalIDs map[string]string `json:"external_ids,omitempty"`

	Adult            bool             `json:"adult,omitempty"`
	RecognitionState RecognitionState `json:"recognition_state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp to the current time.
func (w *Work) Touch() {
	w.UpdatedAt = time.Now()
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
func (w *Work) InitTimestamps() {
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
}

// HasExternalID reports whether the work carries any resolved external ID.
func (w *Work) HasExternalID() bool {
	return len(w.ExternalIDs) > 0
}

// Relation is a directed parent->child edge between two works,
// e.g. series -> episode.
type Relation struct {
	ParentWorkKey string       `json:"parent_work_key"`
	ChildWorkKey  string       `json:"child_work_key"`
	Type          RelationType `json:"type"`
	Season        int          `json:"season,omitempty"`
	Episode       int          `json:"episode,omitempty"`

	// OrderIndex gives a deterministic global ordering of children that is
	// stable across repeated syncs. For episodes it is season*1000+episode.
	OrderIndex int `json:"order_index"`

	CreatedAt time.Time `json:"created_at"`
}

// InitCreated stamps the edge's creation time.
func (r *Relation) InitCreated() {
	r.CreatedAt = time.Now()
}

// EpisodeOrderIndex computes the deterministic order index for an episode.
func EpisodeOrderIndex(season, episode int) int {
	return season*1000 + episode
}

// Redirect maps a retired work identity to its replacement.
// The store only records the mapping; migrating dependent source refs and
// user state to the target is the merge orchestration's job.
type Redirect struct {
	ObsoleteWorkKey string    `json:"obsolete_work_key"`
	TargetWorkKey   string    `json:"target_work_key"`
	CreatedAt       time.Time `json:"created_at"`
}
