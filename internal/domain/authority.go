package domain

import "time"

// AuthorityRef attaches an external catalog identity to a Work.
// It is the cross-pipeline dedup anchor: an incoming item whose external
// ID already maps to a work reuses that work instead of minting a new
// heuristic key.
type AuthorityRef struct {
	// AuthorityKey is <type>:<namespace>:<id>, e.g. "tmdb:movie:550".
	AuthorityKey string `json:"authority_key"`
	WorkKey      string `json:"work_key"`

	Type      string `json:"type"`
	Namespace string `json:"namespace"`

	// Confidence is the match score that produced this ref (0-100).
	Confidence int             `json:"confidence"`
	Status     AuthorityStatus `json:"status"`
	Provenance Provenance      `json:"provenance"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp to the current time.
func (a *AuthorityRef) Touch() {
	a.UpdatedAt = time.Now()
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
func (a *AuthorityRef) InitTimestamps() {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
}

// UserState is per-(profile, work) playback and library state.
// Identity is the pair itself; there is no surrogate ID, so state follows
// the canonical work across every source that carries it.
type UserState struct {
	ProfileKey string `json:"profile_key"`
	WorkKey    string `json:"work_key"`

	PositionMs int64 `json:"position_ms,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`
	// PositionPercent is PositionMs/DurationMs at the time of the last
	// update. It is what survives a jump to a source whose cut runs a
	// different length.
	PositionPercent float64 `json:"position_percent,omitempty"`

	Watched    bool `json:"watched,omitempty"`
	WatchCount int  `json:"watch_count,omitempty"`
	Favorite   bool `json:"favorite,omitempty"`
	Watchlist  bool `json:"watchlist,omitempty"`
	Hidden     bool `json:"hidden,omitempty"`
	Rating     int  `json:"rating,omitempty"`

	UpdatedAt    time.Time `json:"updated_at"`
	SyncRevision string    `json:"sync_revision,omitempty"`
}

// StateID builds the composite identity "profileKey:workKey".
func StateID(profileKey, workKey string) string {
	return profileKey + ":" + workKey
}

// SetPosition records a playback position against a known duration and
// keeps PositionPercent consistent.
func (s *UserState) SetPosition(positionMs, durationMs int64) {
	s.PositionMs = positionMs
	s.DurationMs = durationMs
	if durationMs > 0 {
		s.PositionPercent = float64(positionMs) / float64(durationMs)
	}
	s.UpdatedAt = time.Now()
}

// LedgerEntry records the decision for one ingest candidate.
// The ledger is the no-drop guarantee: every candidate the orchestration
// considered has exactly one entry, whatever the outcome.
type LedgerEntry struct {
	// LedgerKey is led:<sourceType>:<accountKey>:<itemKey>.
	LedgerKey string `json:"ledger_key"`

	State      LedgerState `json:"state"`
	ReasonCode string      `json:"reason_code,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`

	// WorkKey is set when the candidate was accepted.
	WorkKey string `json:"work_key,omitempty"`

	// RetryAfter, when set on a REJECTED entry, is when the candidate may
	// be re-evaluated. Until then ShouldSkip answers true.
	RetryAfter time.Time `json:"retry_after,omitempty"`
}

// Expired reports whether a rejected entry's re-evaluation TTL has passed.
func (e *LedgerEntry) Expired(now time.Time) bool {
	return e.RetryAfter.IsZero() || !now.Before(e.RetryAfter)
}
