package query

import (
	"sort"
	"strings"
)

// RRFConstant is the standard Reciprocal Rank Fusion smoothing term.
const RRFConstant = 60

// HybridSearcher fuses BM25 and semantic rankings with Reciprocal Rank
// Fusion: a document's fused score is the sum of 1/(RRFConstant+rank)
// across every ranked list it appears in.
type HybridSearcher struct {
	keyword  *Searcher
	semantic *SemanticSearcher
}

// NewHybridSearcher builds a HybridSearcher over the given keyword and
// semantic searchers. semantic may be nil if no embedding pipeline is
// configured; hybrid search then degrades to BM25-only ranking.
func NewHybridSearcher(keyword *Searcher, semantic *SemanticSearcher) *HybridSearcher {
	return &HybridSearcher{keyword: keyword, semantic: semantic}
}

// Search fetches 3x the requested page size from each underlying mode
// (so fusion has enough candidates to re-rank), fuses their rankings by
// RRF, and returns the requested page of the fused list.
func (h *HybridSearcher) Search(query string, limit, page int) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return emptyResult(query, limit), nil
	}

	fetchK := limit * 3
	if fetchK <= 0 {
		fetchK = 30
	}

	bm25Result, err := h.keyword.Search(query, fetchK, 1)
	if err != nil {
		return Result{}, err
	}

	var semanticHits []Hit
	if h.semantic != nil {
		semanticResult, err := h.semantic.Search(query, fetchK, 1)
		if err != nil {
			return Result{}, err
		}
		semanticHits = semanticResult.Hits
	}

	rrfScores := make(map[string]float64)
	hitData := make(map[string]Hit)

	addRanked := func(hits []Hit) {
		for i, hit := range hits {
			rank := i + 1
			rrfScores[hit.URL] += 1.0 / float64(RRFConstant+rank)
			if _, ok := hitData[hit.URL]; !ok {
				hitData[hit.URL] = hit
			}
		}
	}
	addRanked(bm25Result.Hits)
	addRanked(semanticHits)

	urls := make([]string, 0, len(rrfScores))
	for url := range rrfScores {
		urls = append(urls, url)
	}
	sort.SliceStable(urls, func(i, j int) bool {
		if rrfScores[urls[i]] != rrfScores[urls[j]] {
			return rrfScores[urls[i]] > rrfScores[urls[j]]
		}
		return urls[i] < urls[j]
	})

	total := len(urls)
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit
	end := offset + limit
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}

	hits := make([]Hit, 0, end-offset)
	for _, url := range urls[offset:end] {
		original := hitData[url]
		hits = append(hits, Hit{
			URL:     url,
			Title:   original.Title,
			Content: original.Content,
			Score:   rrfScores[url],
		})
	}

	lastPage := (total + limit - 1) / limit
	if lastPage < 1 {
		lastPage = 1
	}

	return Result{
		Query:    query,
		Total:    total,
		Hits:     hits,
		Page:     page,
		PerPage:  limit,
		LastPage: lastPage,
	}, nil
}
