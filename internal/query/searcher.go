package query

import (
	"sort"
	"strings"

	"github.com/searchengine/searchengine/internal/analyzer"
)

// Hit is one scored search result.
type Hit struct {
	URL     string
	Title   string
	Content string
	Score   float64
}

// Result is a paginated set of hits for one query.
type Result struct {
	Query    string
	Total    int
	Hits     []Hit
	Page     int
	PerPage  int
	LastPage int
}

// Searcher runs BM25 keyword search with AND-logic candidate selection.
type Searcher struct {
	reader IndexReader
	config BM25Config
}

// NewSearcher builds a Searcher over reader.
func NewSearcher(reader IndexReader, config BM25Config) *Searcher {
	return &Searcher{reader: reader, config: config}
}

// Search tokenizes query, finds documents containing every token, scores
// them with BM25 + PageRank, and returns the requested page.
func (s *Searcher) Search(query string, limit, page int) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return emptyResult(query, limit), nil
	}

	tokens := analyzer.Tokenize(query)
	if len(tokens) == 0 {
		return emptyResult(query, limit), nil
	}

	candidates, err := s.findCandidates(tokens)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		return emptyResult(query, limit), nil
	}

	scorer := NewBM25Scorer(s.reader, s.config)
	type scored struct {
		url   string
		score float64
	}
	results := make([]scored, 0, len(candidates))
	for _, url := range candidates {
		sc, err := scorer.Score(url, tokens)
		if err != nil {
			return Result{}, err
		}
		results = append(results, scored{url: url, score: sc})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].url < results[j].url
	})

	return paginate(query, results, limit, page, func(url string) (string, string, error) {
		return s.reader.Document(url)
	}, func(sc scored) (string, float64) { return sc.url, sc.score })
}

// findCandidates intersects the posting lists for every token (AND
// logic): a document must contain all query tokens to qualify.
func (s *Searcher) findCandidates(tokens []string) ([]string, error) {
	first, err := s.reader.CandidateURLs(tokens[0])
	if err != nil {
		return nil, err
	}
	candidates := make(map[string]struct{}, len(first))
	for _, u := range first {
		candidates[u] = struct{}{}
	}

	for _, token := range tokens[1:] {
		if len(candidates) == 0 {
			return nil, nil
		}
		urls, err := s.reader.CandidateURLs(token)
		if err != nil {
			return nil, err
		}
		tokenSet := make(map[string]struct{}, len(urls))
		for _, u := range urls {
			tokenSet[u] = struct{}{}
		}
		for u := range candidates {
			if _, ok := tokenSet[u]; !ok {
				delete(candidates, u)
			}
		}
	}

	out := make([]string, 0, len(candidates))
	for u := range candidates {
		out = append(out, u)
	}
	return out, nil
}

func emptyResult(query string, limit int) Result {
	return Result{Query: query, Total: 0, Hits: nil, Page: 1, PerPage: limit, LastPage: 1}
}

// paginate is a small generic-free helper shared by every search mode:
// given a score-descending slice, a page/limit, and accessors for the
// per-item URL/score and a document lookup, it slices the requested page
// and hydrates title/content for each hit.
func paginate[T any](query string, scoredItems []T, limit, page int, lookup func(url string) (string, string, error), accessor func(T) (string, float64)) (Result, error) {
	total := len(scoredItems)
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
	for _, item := range scoredItems[offset:end] {
		url, score := accessor(item)
		title, content, err := lookup(url)
		if err != nil {
			return Result{}, err
		}
		hits = append(hits, Hit{URL: url, Title: title, Content: content, Score: score})
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
