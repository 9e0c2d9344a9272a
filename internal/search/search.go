// Package search maintains a Bleve index over canonical work titles.
// It backs both the exposed title search and candidate retrieval for
// match scoring. The index is derived data: it lags the store slightly
// and can always be rebuilt from it.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
	"github.com/karlokarate/FishIT-Player-sub011/internal/mediakey"
)

// mappingVersion is bumped whenever the index mapping changes; a mismatch
// on open triggers a rebuild from scratch.
const mappingVersion = "1"

// workDocument is the indexed projection of a work.
type workDocument struct {
	WorkKey         string  `json:"work_key"`
	Title           string  `json:"title"`
	NormalizedTitle string  `json:"normalized_title"`
	Type            string  `json:"type"`
	Year            float64 `json:"year"`
}

// Candidate is one title-search hit, fed into match scoring.
type Candidate struct {
	WorkKey string
	Title   string
	Type    domain.WorkType
	Year    int
	// TextScore is bleve's relevance score, used only for retrieval
	// ordering. Decision-making runs on the match package's scale.
	TextScore float64
}

// Index wraps a Bleve index with work-specific operations.
//
// All methods are safe for concurrent use; the mutex guards against
// index swap during Rebuild.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the index.
type Options struct {
	DataPath string
	Logger   *slog.Logger
}

// Open creates or opens the title index under opts.DataPath.
// A corrupted or version-mismatched index is removed and recreated.
func Open(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "titles.bleve")
	versionPath := filepath.Join(opts.DataPath, "titles.version")

	exists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		exists = true
	}

	rebuild := false
	if exists {
		version, readErr := os.ReadFile(versionPath)
		if readErr != nil || string(version) != mappingVersion {
			logger.Info("title index mapping changed, rebuilding",
				"new_version", mappingVersion)
			rebuild = true
		}
	}

	var index bleve.Index
	var err error
	if exists && !rebuild {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open title index, recreating", "error", err)
			rebuild = true
		}
	}

	if rebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old title index: %w", err)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create title index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write title index version file", "error", err)
		}
	}

	return &Index{index: index, path: indexPath, logger: logger}, nil
}

func buildMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = simple.Name

	doc := bleve.NewDocumentMapping()

	keyMapping := bleve.NewKeywordFieldMapping()
	keyMapping.Store = true
	doc.AddFieldMappingsAt("work_key", keyMapping)

	typeMapping := bleve.NewKeywordFieldMapping()
	typeMapping.Store = true
	doc.AddFieldMappingsAt("type", typeMapping)

	titleMapping := bleve.NewTextFieldMapping()
	titleMapping.Analyzer = simple.Name
	titleMapping.Store = true
	doc.AddFieldMappingsAt("title", titleMapping)

	// Normalized title is the query target: diacritics folded and
	// punctuation collapsed, matching the slug pipeline.
	normMapping := bleve.NewTextFieldMapping()
	normMapping.Analyzer = simple.Name
	normMapping.Store = false
	doc.AddFieldMappingsAt("normalized_title", normMapping)

	yearMapping := bleve.NewNumericFieldMapping()
	yearMapping.Store = true
	doc.AddFieldMappingsAt("year", yearMapping)

	indexMapping.DefaultMapping = doc
	return indexMapping
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

// IndexWork adds or updates a work in the index.
// Implements store.WorkIndexer.
func (i *Index) IndexWork(_ context.Context, work *domain.Work) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Index(work.WorkKey, workDocument{
		WorkKey:         work.WorkKey,
		Title:           work.Title,
		NormalizedTitle: mediakey.NormalizeTitle(work.Title),
		Type:            string(work.Type),
		Year:            float64(work.Year),
	})
}

// DeleteWork removes a work from the index.
// Implements store.WorkIndexer.
func (i *Index) DeleteWork(_ context.Context, workKey string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Delete(workKey)
}

// FindCandidates runs a fuzzy-ish title query and returns up to limit
// candidates for match scoring.
func (i *Index) FindCandidates(ctx context.Context, title string, limit int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	normalized := mediakey.NormalizeTitle(title)
	match := bleve.NewMatchQuery(normalized)
	match.SetField("normalized_title")

	req := bleve.NewSearchRequestOptions(match, limit, 0, false)
	req.Fields = []string{"work_key", "title", "type", "year"}

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("title search: %w", err)
	}

	candidates := make([]Candidate, 0, len(res.Hits))
	for _, hit := range res.Hits {
		c := Candidate{WorkKey: hit.ID, TextScore: hit.Score}
		if title, ok := hit.Fields["title"].(string); ok {
			c.Title = title
		}
		if typ, ok := hit.Fields["type"].(string); ok {
			c.Type = domain.ParseWorkType(typ)
		}
		if year, ok := hit.Fields["year"].(float64); ok {
			c.Year = int(year)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// DocumentCount returns the number of indexed works.
func (i *Index) DocumentCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Rebuild drops and recreates the index, then reindexes every work the
// source iterator yields. Blocks all other index operations.
func (i *Index) Rebuild(ctx context.Context, works func(yield func(*domain.Work, error) bool)) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.index.Close(); err != nil {
		return fmt.Errorf("close title index: %w", err)
	}
	if err := os.RemoveAll(i.path); err != nil {
		return fmt.Errorf("remove title index: %w", err)
	}
	index, err := bleve.New(i.path, buildMapping())
	if err != nil {
		return fmt.Errorf("recreate title index: %w", err)
	}
	i.index = index

	const batchSize = 500
	batch := i.index.NewBatch()
	count := 0
	for work, err := range works {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err = batch.Index(work.WorkKey, workDocument{
			WorkKey:         work.WorkKey,
			Title:           work.Title,
			NormalizedTitle: mediakey.NormalizeTitle(work.Title),
			Type:            string(work.Type),
			Year:            float64(work.Year),
		})
		if err != nil {
			return fmt.Errorf("batch index %s: %w", work.WorkKey, err)
		}
		count++
		if batch.Size() >= batchSize {
			if err := i.index.Batch(batch); err != nil {
				return fmt.Errorf("commit index batch: %w", err)
			}
			batch = i.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := i.index.Batch(batch); err != nil {
			return fmt.Errorf("commit index batch: %w", err)
		}
	}

	i.logger.Info("title index rebuilt", "works", count)
	return nil
}
