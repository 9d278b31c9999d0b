package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driving"
	"github.com/custodia-labs/drivesearch-cli/internal/executor"
	"github.com/custodia-labs/drivesearch-cli/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

const (
	// defaultSearchLimit is the result count when the caller gives none.
	defaultSearchLimit = 10

	// overFetchFactor compensates for file-level deduplication: each
	// store is asked for this multiple of the requested limit.
	overFetchFactor = 4

	// rerankCap is the reranking call's hard per-invocation ceiling.
	rerankCap = 100

	// rerankTextLimit truncates candidate text sent to the reranker,
	// roughly 400 tokens.
	rerankTextLimit = 1600

	// positionBonusStep and positionBonusWindow shape the early-chunk
	// bonus: chunks 0..window-1 gain (window-index)*step. Tunable via
	// SetPositionBonus.
	positionBonusStep   = 0.01
	positionBonusWindow = 10
)

// SearchService resolves queries against the dense and sparse stores
// and reranks the merged candidates.
type SearchService struct {
	dense    driven.VectorStore
	sparse   driven.VectorStore
	reranker driven.Reranker
	exec     *executor.Executor

	bonusStep   float64
	bonusWindow int
}

// NewSearchService creates a search service. The reranker is optional
// (can be nil); without it results are ordered by combined score.
func NewSearchService(
	dense driven.VectorStore,
	sparse driven.VectorStore,
	reranker driven.Reranker,
	exec *executor.Executor,
) *SearchService {
	return &SearchService{
		dense:       dense,
		sparse:      sparse,
		reranker:    reranker,
		exec:        exec,
		bonusStep:   positionBonusStep,
		bonusWindow: positionBonusWindow,
	}
}

// SetPositionBonus tunes the early-chunk preference used during
// file-level deduplication.
func (s *SearchService) SetPositionBonus(step float64, window int) {
	s.bonusStep = step
	s.bonusWindow = window
}

// Search performs a hybrid dense+sparse query, deduplicates to one
// representative chunk per document, reranks, and returns a single
// relevance-ordered list.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	topK := limit * overFetchFactor
	filter := driven.QueryFilter{FileTypes: opts.FileTypes}

	// Both stores are queried in parallel; each side fails soft to an
	// empty set, but both sides failing fails the query.
	var denseHits, sparseHits []driven.QueryHit
	var denseErr, sparseErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		denseHits, denseErr = s.queryStore(ctx, s.dense, query, topK, filter)
	}()
	go func() {
		defer wg.Done()
		sparseHits, sparseErr = s.queryStore(ctx, s.sparse, query, topK, filter)
	}()
	wg.Wait()

	if denseErr != nil {
		logger.Warn("Dense query failed: %v", denseErr)
	}
	if sparseErr != nil {
		logger.Warn("Sparse query failed: %v", sparseErr)
	}
	if denseErr != nil && sparseErr != nil {
		return nil, fmt.Errorf("search: %w", errors.Join(denseErr, sparseErr))
	}

	logger.Debug("Dense: %d hits, sparse: %d hits", len(denseHits), len(sparseHits))

	candidates := mergeHits(denseHits, sparseHits)
	logger.Debug("Merged: %d candidates", len(candidates))

	representatives := s.dedupByDocument(candidates)
	logger.Debug("Deduplicated: %d documents", len(representatives))

	if len(representatives) > rerankCap {
		representatives = representatives[:rerankCap]
	}

	results := s.rerank(ctx, query, representatives, limit)
	if len(results) > limit {
		results = results[:limit]
	}

	logger.Info("Final results: %d", len(results))
	return results, nil
}

func (s *SearchService) queryStore(ctx context.Context, store driven.VectorStore, query string, topK int, filter driven.QueryFilter) ([]driven.QueryHit, error) {
	var hits []driven.QueryHit
	err := s.exec.Execute(ctx, executor.ClassQuery, func(ctx context.Context) error {
		var queryErr error
		hits, queryErr = store.Query(ctx, query, topK, filter)
		return queryErr
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// mergeHits joins the two result sets by vector key. A key present in
// both sides yields one candidate carrying both scores; a missing side
// is recorded as absent, never as zero. The reserved metadata record is
// dropped.
func mergeHits(denseHits, sparseHits []driven.QueryHit) map[string]*domain.Candidate {
	merged := make(map[string]*domain.Candidate, len(denseHits)+len(sparseHits))

	for _, hit := range denseHits {
		c := candidateFromHit(hit)
		if c == nil {
			continue
		}
		c.DenseScore = hit.Score
		c.HasDense = true
		merged[hit.Key] = c
	}

	for _, hit := range sparseHits {
		if existing, ok := merged[hit.Key]; ok {
			existing.SparseScore = hit.Score
			existing.HasSparse = true
			if existing.Text == "" {
				existing.Text = hit.Text
			}
			continue
		}
		c := candidateFromHit(hit)
		if c == nil {
			continue
		}
		c.SparseScore = hit.Score
		c.HasSparse = true
		merged[hit.Key] = c
	}

	return merged
}

func candidateFromHit(hit driven.QueryHit) *domain.Candidate {
	if hit.Key == domain.MetadataKey {
		return nil
	}
	docID, index, err := domain.ParseVectorKey(hit.Key)
	if err != nil {
		// Fall back to the store metadata for malformed keys.
		docID = hit.Metadata.FileID
		index = hit.Metadata.ChunkIndex
	}
	return &domain.Candidate{
		Key:        hit.Key,
		DocumentID: docID,
		ChunkIndex: index,
		Text:       hit.Text,
		Metadata:   hit.Metadata,
	}
}

// dedupByDocument keeps the best-scoring chunk of each document as its
// representative, ordered by combined score descending. Earlier chunks
// get a small bonus so overview content wins ties.
func (s *SearchService) dedupByDocument(candidates map[string]*domain.Candidate) []scoredCandidate {
	best := make(map[string]scoredCandidate, len(candidates))

	for _, c := range candidates {
		score := c.Combined() + s.positionBonus(c.ChunkIndex)
		current, ok := best[c.DocumentID]
		if !ok || score > current.combined {
			best[c.DocumentID] = scoredCandidate{candidate: c, combined: score}
		}
	}

	representatives := make([]scoredCandidate, 0, len(best))
	for _, sc := range best {
		representatives = append(representatives, sc)
	}
	sort.Slice(representatives, func(i, j int) bool {
		if representatives[i].combined != representatives[j].combined {
			return representatives[i].combined > representatives[j].combined
		}
		return representatives[i].candidate.Key < representatives[j].candidate.Key
	})
	return representatives
}

// scoredCandidate pairs a representative with its dedup-time combined
// score so the rerank fallback reuses it.
type scoredCandidate struct {
	candidate *domain.Candidate
	combined  float64
}

func (s *SearchService) positionBonus(chunkIndex int) float64 {
	remaining := s.bonusWindow - chunkIndex
	if remaining <= 0 {
		return 0
	}
	return float64(remaining) * s.bonusStep
}

// rerank reorders the representatives via the reranking service. On
// failure, or without a reranker, the combined-score ordering is kept
// (degraded, not an error).
func (s *SearchService) rerank(ctx context.Context, query string, representatives []scoredCandidate, topN int) []domain.SearchResult {
	fallback := func() []domain.SearchResult {
		results := make([]domain.SearchResult, 0, len(representatives))
		for _, sc := range representatives {
			results = append(results, toResult(sc.candidate, sc.combined, false))
		}
		return results
	}

	if s.reranker == nil || len(representatives) == 0 {
		return fallback()
	}

	docs := make([]driven.RerankDocument, 0, len(representatives))
	byKey := make(map[string]scoredCandidate, len(representatives))
	for _, sc := range representatives {
		docs = append(docs, driven.RerankDocument{
			Key:  sc.candidate.Key,
			Text: truncateRunes(sc.candidate.Text, rerankTextLimit),
		})
		byKey[sc.candidate.Key] = sc
	}

	var scores []driven.RerankScore
	err := s.exec.Execute(ctx, executor.ClassRerank, func(ctx context.Context) error {
		var rerankErr error
		scores, rerankErr = s.reranker.Rerank(ctx, query, docs, topN)
		return rerankErr
	})
	if err != nil {
		logger.Warn("%v, using combined-score ordering: %v", domain.ErrRerankUnavailable, err)
		return fallback()
	}

	results := make([]domain.SearchResult, 0, len(scores))
	for _, score := range scores {
		sc, ok := byKey[score.Key]
		if !ok {
			continue
		}
		results = append(results, toResult(sc.candidate, score.Score, true))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

func toResult(c *domain.Candidate, score float64, reranked bool) domain.SearchResult {
	return domain.SearchResult{
		Key:         c.Key,
		Score:       score,
		Reranked:    reranked,
		DenseScore:  c.DenseScore,
		SparseScore: c.SparseScore,
		Metadata:    c.Metadata,
	}
}

// truncateRunes bounds text at a byte budget without splitting a rune.
func truncateRunes(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
