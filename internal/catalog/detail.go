package catalog

import (
	"context"
	"fmt"

	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
	"github.com/karlokarate/FishIT-Player-sub011/internal/store"
)

// BuildEpisodeEntities turns a series detail fetch into child works,
// source refs, parent relations and variants. Pure builder, no I/O, so
// the orchestrator can validate and batch the result.
//
// Episode identity derives from the parent's title and year plus season
// and episode numbers, never from the (often absent) episode title, so
// repeated syncs land on the same keys.
func BuildEpisodeEntities(episodes []*EpisodeItem, parentWorkKey string, parent *domain.Work, st domain.SourceType, accountKey string) (*store.EntityBatch, error) {
	if parentWorkKey == "" || parent == nil {
		return nil, store.ErrInvalidInput.WithMessage("parent work is required")
	}
	if !st.Valid() {
		return nil, store.ErrInvalidInput.WithMessage("unknown source type")
	}
	if accountKey == "" {
		return nil, store.ErrInvalidInput.WithMessage("account key is required")
	}

	batch := &store.EntityBatch{}
	for _, ep := range episodes {
		if ep == nil || ep.ItemKey == "" {
			return nil, store.ErrInvalidInput.WithMessage("episode without item key")
		}

		workKey := mediakey.ForEpisode(parent.Title, parent.Year, ep.Season, ep.Episode)

		item := &NormalizedItem{
			SourceType:     st,
			AccountKey:     accountKey,
			ItemKind:       domain.ItemEpisode,
			ItemKey:        ep.ItemKey,
			Type:           domain.WorkEpisode,
			Title:          episodeTitle(parent, ep),
			Year:           parent.Year,
			RuntimeMs:      ep.RuntimeMs,
			PosterRef:      ep.PosterRef,
			Plot:           ep.Plot,
			Genres:         parent.Genres,
			Adult:          parent.Adult,
			PlayHints:      ep.PlayHints,
			Container:      ep.Container,
			DurationMs:     ep.DurationMs,
			VariantLabel:   ep.VariantLabel,
			DefaultVariant: ep.DefaultVariant,
		}

		work := populateWork(workKey, item)
		ref, err := buildSourceRef(workKey, item)
		if err != nil {
			return nil, err
		}

		batch.Works = append(batch.Works, work)
		batch.SourceRefs = append(batch.SourceRefs, ref)
		batch.Relations = append(batch.Relations, &domain.Relation{
			ParentWorkKey: parentWorkKey,
			ChildWorkKey:  workKey,
			Type:          domain.RelationEpisode,
			Season:        ep.Season,
			Episode:       ep.Episode,
			OrderIndex:    domain.EpisodeOrderIndex(ep.Season, ep.Episode),
		})
		if v := buildVariant(workKey, ref.SourceKey, ep.PlayHints, ep.VariantLabel, ep.Container, ep.DurationMs, ep.DefaultVariant); v != nil {
			batch.Variants = append(batch.Variants, v)
		}
	}
	return batch, nil
}

// WriteEpisodeEntities builds and persists the episode graph for one
// series detail fetch.
func (w *Writer) WriteEpisodeEntities(ctx context.Context, episodes []*EpisodeItem, parentWorkKey string, st domain.SourceType, accountKey string) (*store.EntityBatch, error) {
	parentWorkKey, err := w.store.ResolveWorkKey(ctx, parentWorkKey)
	if err != nil {
		return nil, err
	}
	parent, err := w.store.GetWork(ctx, parentWorkKey)
	if err != nil {
		return nil, err
	}
	batch, err := BuildEpisodeEntities(episodes, parentWorkKey, parent, st, accountKey)
	if err != nil {
		return nil, err
	}
	if err := w.store.WriteEntityBatch(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// episodeTitle falls back to a derived title when the fetch carried none.
func episodeTitle(parent *domain.Work, ep *EpisodeItem) string {
	if ep.Title != "" {
		return ep.Title
	}
	return fmt.Sprintf("%s S%02dE%02d", parent.Title, ep.Season, ep.Episode)
}
