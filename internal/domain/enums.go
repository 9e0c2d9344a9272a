package domain

// Closed enumerations with explicit persisted string forms.
//
// The constant value IS the stored form. Key formats and persisted rows
// depend on these exact strings, so they are spelled out here rather than
// derived from the Go identifier. Changing one is a data migration.

// WorkType classifies a canonical work.
type WorkType string

const (
	WorkMovie       WorkType = "movie"
	WorkSeries      WorkType = "series"
	WorkEpisode     WorkType = "episode"
	WorkLiveChannel WorkType = "live"
	WorkClip        WorkType = "clip"
	WorkAudiobook   WorkType = "audiobook"
	WorkMusicTrack  WorkType = "music"
	WorkUnknown     WorkType = "unknown"
)

// ParseWorkType maps a stored string to a WorkType.
// Unrecognized values map to WorkUnknown.
func ParseWorkType(s string) WorkType {
	switch WorkType(s) {
	case WorkMovie, WorkSeries, WorkEpisode, WorkLiveChannel, WorkClip, WorkAudiobook, WorkMusicTrack:
		return WorkType(s)
	default:
		return WorkUnknown
	}
}

// Valid reports whether t is a known work type (including WorkUnknown).
func (t WorkType) Valid() bool {
	return ParseWorkType(string(t)) == t
}

// IsPlayable reports whether works of this type carry variants directly.
// Series are containers; their episodes are the playable works.
func (t WorkType) IsPlayable() bool {
	return t != WorkSeries && t != WorkUnknown
}

// SourceType identifies the pipeline a source reference came from.
type SourceType string

const (
	SourceXtream   SourceType = "xtream"
	SourceTelegram SourceType = "telegram"
	SourceM3U      SourceType = "m3u"
	SourceLocal    SourceType = "local"
	SourceUnknown  SourceType = "unknown"
)

// ParseSourceType maps a stored string to a SourceType.
func ParseSourceType(s string) SourceType {
	switch SourceType(s) {
	case SourceXtream, SourceTelegram, SourceM3U, SourceLocal:
		return SourceType(s)
	default:
		return SourceUnknown
	}
}

// Valid reports whether t is a known, concrete source type.
// SourceUnknown is not valid for persistence: source keys embed the type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceXtream, SourceTelegram, SourceM3U, SourceLocal:
		return true
	}
	return false
}

// ItemKind classifies a pipeline item within its source.
type ItemKind string

const (
	ItemVOD     ItemKind = "vod"
	ItemSeries  ItemKind = "series"
	ItemEpisode ItemKind = "episode"
	ItemLive    ItemKind = "live"
	ItemClip    ItemKind = "clip"
	ItemAudio   ItemKind = "audio"
)

// ParseItemKind maps a stored string to an ItemKind.
// Unrecognized values map to ItemVOD, the least surprising default for
// a playable item.
func ParseItemKind(s string) ItemKind {
	switch ItemKind(s) {
	case ItemVOD, ItemSeries, ItemEpisode, ItemLive, ItemClip, ItemAudio:
		return ItemKind(s)
	default:
		return ItemVOD
	}
}

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemVOD, ItemSeries, ItemEpisode, ItemLive, ItemClip, ItemAudio:
		return true
	}
	return false
}

// Availability tracks whether a source still offers an item.
type Availability string

const (
	AvailabilityActive  Availability = "ACTIVE"
	AvailabilityMissing Availability = "MISSING"
	AvailabilityRemoved Availability = "REMOVED"
)

// ParseAvailability maps a stored string to an Availability.
// Unrecognized values map to AvailabilityActive so a bad row degrades to
// "still try to play it" rather than hiding content.
func ParseAvailability(s string) Availability {
	switch Availability(s) {
	case AvailabilityMissing, AvailabilityRemoved:
		return Availability(s)
	default:
		return AvailabilityActive
	}
}

// RecognitionState is the confidence level of a work's identity.
type RecognitionState string

const (
	RecognitionHeuristic RecognitionState = "HEURISTIC"
	RecognitionConfirmed RecognitionState = "CONFIRMED"
)

// ParseRecognitionState maps a stored string to a RecognitionState.
// Unrecognized values map to RecognitionHeuristic, never upgrading.
func ParseRecognitionState(s string) RecognitionState {
	if RecognitionState(s) == RecognitionConfirmed {
		return RecognitionConfirmed
	}
	return RecognitionHeuristic
}

// LedgerState records the outcome for one ingest candidate.
type LedgerState string

const (
	LedgerAccepted LedgerState = "ACCEPTED"
	LedgerRejected LedgerState = "REJECTED"
	LedgerSkipped  LedgerState = "SKIPPED"
)

// ParseLedgerState maps a stored string to a LedgerState.
// Unrecognized values map to LedgerSkipped: the candidate was seen but we
// cannot claim it was accepted or rejected.
func ParseLedgerState(s string) LedgerState {
	switch LedgerState(s) {
	case LedgerAccepted, LedgerRejected:
		return LedgerState(s)
	default:
		return LedgerSkipped
	}
}

// AuthorityStatus is the review status of an external catalog match.
type AuthorityStatus string

const (
	AuthorityConfirmed AuthorityStatus = "CONFIRMED"
	AuthorityProbable  AuthorityStatus = "PROBABLE"
	AuthorityRejected  AuthorityStatus = "REJECTED"
)

// ParseAuthorityStatus maps a stored string to an AuthorityStatus.
// Unrecognized values map to AuthorityProbable, never auto-confirming.
func ParseAuthorityStatus(s string) AuthorityStatus {
	switch AuthorityStatus(s) {
	case AuthorityConfirmed, AuthorityRejected:
		return AuthorityStatus(s)
	default:
		return AuthorityProbable
	}
}

// Provenance says whether an authority match was made by a person.
type Provenance string

const (
	ProvenanceAuto   Provenance = "AUTO"
	ProvenanceManual Provenance = "MANUAL"
)

// ParseProvenance maps a stored string to a Provenance.
func ParseProvenance(s string) Provenance {
	if Provenance(s) == ProvenanceManual {
		return ProvenanceManual
	}
	return ProvenanceAuto
}

// RelationType classifies a directed parent->child work edge.
type RelationType string

const (
	RelationEpisode RelationType = "episode"
	RelationRelated RelationType = "related"
)

// ParseRelationType maps a stored string to a RelationType.
func ParseRelationType(s string) RelationType {
	if RelationType(s) == RelationEpisode {
		return RelationEpisode
	}
	return RelationRelated
}
