// Package match scores incoming metadata against candidate works and
// decides whether a candidate can be auto-accepted. Scoring is
// deterministic; the decision thresholds are policy constants tuned to
// avoid false-positive merges between distinct works sharing a title.
package match

import (
	"sort"

	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
)

// Score component weights.
const (
	titleExactScore   = 60
	yearExactScore    = 20
	yearOffByOne      = 15
	yearOffByTwo      = 10
	yearOffByThree    = 5
	kindMatchScore    = 10
	episodeExactScore = 10
	seasonOnlyScore   = 5
)

// Decision is the outcome of evaluating a ranked candidate list.
type Decision string

const (
	DecisionAccept    Decision = "ACCEPT"
	DecisionAmbiguous Decision = "AMBIGUOUS"
	DecisionReject    Decision = "REJECT"
)

// Policy holds the decision thresholds. The defaults are empirically
// chosen; they are configurable rather than assumed correct.
type Policy struct {
	// AcceptScore is the minimum top score for auto-accept when
	// multiple candidates compete.
	AcceptScore int
	// ReviewScore is the minimum score considered a plausible match.
	ReviewScore int
	// MinGap is the required lead of the top candidate over the
	// runner-up for auto-accept.
	MinGap int
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{AcceptScore: 85, ReviewScore: 70, MinGap: 10}
}

// Probe carries the normalized metadata of an incoming item.
type Probe struct {
	Title   string
	Year    int
	Type    domain.WorkType
	Season  int
	Episode int
}

// Candidate is one existing work under consideration.
type Candidate struct {
	WorkKey string
	Title   string
	Year    int
	Type    domain.WorkType
	Season  int
	Episode int
}

// Scored is a candidate with its score breakdown.
type Scored struct {
	Candidate Candidate
	Title     int
	Year      int
	Kind      int
	Episode   int
	Total     int
}

// Outcome reports the decision over a candidate list. Chosen is set only
// for DecisionAccept.
type Outcome struct {
	Decision Decision
	Chosen   *Scored
	Top      *Scored
	Gap      int
}

// ScoreCandidate computes the component scores of one candidate against
// the probe.
func ScoreCandidate(probe Probe, cand Candidate) Scored {
	s := Scored{Candidate: cand}

	s.Title = titleScore(probe.Title, cand.Title)
	s.Year = yearScore(probe.Year, cand.Year)
	if probe.Type != domain.WorkUnknown && probe.Type == cand.Type {
		s.Kind = kindMatchScore
	}
	s.Episode = episodeScore(probe, cand)

	s.Total = s.Title + s.Year + s.Kind + s.Episode
	return s
}

// Rank scores every candidate and sorts descending by total. Ties break
// on work key for determinism.
func Rank(probe Probe, candidates []Candidate) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, ScoreCandidate(probe, c))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Total != scored[j].Total {
			return scored[i].Total > scored[j].Total
		}
		return scored[i].Candidate.WorkKey < scored[j].Candidate.WorkKey
	})
	return scored
}

// Decide applies the policy to a ranked candidate list.
//
// Empty list rejects. A single candidate accepts at ReviewScore. With
// competition the top must clear AcceptScore and lead the runner-up by
// MinGap; a plausible but contested top is AMBIGUOUS, everything else
// rejects.
func Decide(ranked []Scored, policy Policy) Outcome {
	if len(ranked) == 0 {
		return Outcome{Decision: DecisionReject}
	}

	top := ranked[0]
	out := Outcome{Top: &top}

	if len(ranked) == 1 {
		if top.Total >= policy.ReviewScore {
			out.Decision = DecisionAccept
			out.Chosen = &top
		} else {
			out.Decision = DecisionReject
		}
		return out
	}

	out.Gap = top.Total - ranked[1].Total
	switch {
	case top.Total >= policy.AcceptScore && out.Gap >= policy.MinGap:
		out.Decision = DecisionAccept
		out.Chosen = &top
	case top.Total >= policy.ReviewScore:
		out.Decision = DecisionAmbiguous
	default:
		out.Decision = DecisionReject
	}
	return out
}

// Evaluate scores, ranks, and decides in one call.
func Evaluate(probe Probe, candidates []Candidate, policy Policy) Outcome {
	return Decide(Rank(probe, candidates), policy)
}

func titleScore(a, b string) int {
	na := mediakey.NormalizeTitle(a)
	nb := mediakey.NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return titleExactScore
	}
	// Partial credit scales with edit-distance similarity, capped just
	// below the exact-match score.
	sim := stringSimilarity(na, nb)
	return int(sim * float64(titleExactScore-1))
}

func yearScore(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return yearExactScore
	case 1:
		return yearOffByOne
	case 2:
		return yearOffByTwo
	case 3:
		return yearOffByThree
	default:
		return 0
	}
}

func episodeScore(probe Probe, cand Candidate) int {
	if probe.Season == 0 && probe.Episode == 0 {
		return 0
	}
	if probe.Season == cand.Season && probe.Episode == cand.Episode && probe.Episode != 0 {
		return episodeExactScore
	}
	if probe.Season == cand.Season && probe.Season != 0 {
		return seasonOnlyScore
	}
	return 0
}

// stringSimilarity calculates the similarity between two strings (0.0-1.0)
// from their Levenshtein distance.
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	distance := levenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(distance)/float64(maxLen)
}

// levenshteinDistance calculates the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// ReasonCode summarizes an outcome for ledger entries.
func (o Outcome) ReasonCode() string {
	switch o.Decision {
	case DecisionAccept:
		return "match_accepted"
	case DecisionAmbiguous:
		return "match_ambiguous"
	default:
		if o.Top == nil {
			return "no_candidates"
		}
		return "score_below_threshold"
	}
}
