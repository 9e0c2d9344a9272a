package match

import (
	"context"

	"github.com/karlokarate/FishIT-Player-sub011/internal/search"
)

const defaultCandidateLimit = 10

// Searcher retrieves candidate works by title. *search.Index satisfies
// it.
type Searcher interface {
	FindCandidates(ctx context.Context, title string, limit int) ([]search.Candidate, error)
}

// Resolver ties title-index retrieval to scoring: it pulls candidates
// for a probe and runs the decision policy over them.
type Resolver struct {
	searcher Searcher
	policy   Policy
	limit    int
}

// NewResolver creates a resolver with the given policy.
func NewResolver(searcher Searcher, policy Policy) *Resolver {
	return &Resolver{searcher: searcher, policy: policy, limit: defaultCandidateLimit}
}

// Resolve finds candidates for the probe's title and decides. An empty
// index yields a REJECT outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, probe Probe) (Outcome, error) {
	found, err := r.searcher.FindCandidates(ctx, probe.Title, r.limit)
	if err != nil {
		return Outcome{}, err
	}

	candidates := make([]Candidate, 0, len(found))
	for _, f := range found {
		candidates = append(candidates, Candidate{
			WorkKey: f.WorkKey,
			Title:   f.Title,
			Year:    f.Year,
			Type:    f.Type,
		})
	}
	return Evaluate(probe, candidates, r.policy), nil
}
