package domain

import "time"

// SourceRef links a Work to one concrete pipeline item.
// Several refs from different sources (or different accounts of the same
// source) may point at the same work.
type SourceRef struct {
	// SourceKey is globally unique and immutable:
	// src:<sourceType>:<accountKey>:<itemKind>:<itemKey>
	SourceKey string `json:"source_key"`
	WorkKey   string `json:"work_key"`

	SourceType SourceType `json:"source_type"`
	AccountKey string     `json:"account_key"`
	ItemKind   ItemKind   `json:"item_kind"`
	ItemKey    string     `json:"item_key"`

	// SourceTitle is the title exactly as the pipeline reported it,
	// kept for diagnostics and re-matching.
	SourceTitle string `json:"source_title,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`

	// SourceModifiedAt is the provider-reported last-modified timestamp.
	// Incremental sync compares against it to skip unchanged items.
	SourceModifiedAt time.Time `json:"source_modified_at,omitempty"`

	Availability Availability `json:"availability"`

	// Live channel extras.
	EPGChannelID string `json:"epg_channel_id,omitempty"`
	CatchupDays  int    `json:"catchup_days,omitempty"`
}

// Variant is one playable encoding reachable through a SourceRef.
type Variant struct {
	// VariantKey is <sourceKey>#<label>.
	VariantKey string `json:"variant_key"`
	WorkKey    string `json:"work_key"`
	SourceKey  string `json:"source_key"`

	Label      string `json:"label"`
	IsDefault  bool   `json:"is_default"`
	Container  string `json:"container,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`

	// PlayHints carries only what is needed to reconstruct a play request
	// (stream id, mime type, ...). Technical metadata has dedicated fields
	// and is never duplicated in here.
	PlayHints map[string]string `json:"play_hints,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp to the current time.
func (v *Variant) Touch() {
	v.UpdatedAt = time.Now()
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
func (v *Variant) InitTimestamps() {
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now
}
