package query

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// EmbeddingFunc turns query text into a dense vector in the same space as
// indexed document embeddings.
type EmbeddingFunc func(text string) ([]float64, error)

// VectorReader supplies the embeddings the semantic searcher ranks
// against. An empty Embeddings map makes semantic search return an empty
// result rather than an error.
type VectorReader interface {
	Embeddings() (map[string][]float64, error)
	Document(url string) (title string, content string, err error)
}

// refreshInterval matches how often the reference engine's in-memory
// embedding cache is allowed to go stale before a reload.
const refreshInterval = 60 * time.Second

// SemanticSearcher ranks documents by cosine similarity between a query
// embedding and each document's cached embedding, refreshing its
// in-memory cache at most once per refreshInterval.
type SemanticSearcher struct {
	reader VectorReader
	embed  EmbeddingFunc

	mu          sync.Mutex
	cache       map[string][]float64
	cachedAt    time.Time
}

// NewSemanticSearcher builds a SemanticSearcher. embed may be nil, in
// which case Search always returns an empty result (no embedding pipeline
// configured).
func NewSemanticSearcher(reader VectorReader, embed EmbeddingFunc) *SemanticSearcher {
	return &SemanticSearcher{reader: reader, embed: embed}
}

// Search embeds query and ranks every cached document by cosine
// similarity, returning the requested page.
func (s *SemanticSearcher) Search(query string, limit, page int) (Result, error) {
	if strings.TrimSpace(query) == "" || s.embed == nil {
		return emptyResult(query, limit), nil
	}

	queryVec, err := s.embed(query)
	if err != nil {
		return Result{}, err
	}

	cache, err := s.loadCache()
	if err != nil {
		return Result{}, err
	}
	if len(cache) == 0 {
		return emptyResult(query, limit), nil
	}

	type scored struct {
		url   string
		score float64
	}
	results := make([]scored, 0, len(cache))
	for url, vec := range cache {
		results = append(results, scored{url: url, score: cosineSimilarity(queryVec, vec)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].url < results[j].url
	})

	return paginate(query, results, limit, page, s.reader.Document, func(sc scored) (string, float64) {
		return sc.url, sc.score
	})
}

// InvalidateCache forces the next Search call to reload embeddings, used
// after a batch of documents is (re)indexed.
func (s *SemanticSearcher) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = nil
	s.cachedAt = time.Time{}
}

func (s *SemanticSearcher) loadCache() (map[string][]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil && time.Since(s.cachedAt) < refreshInterval {
		return s.cache, nil
	}

	embeddings, err := s.reader.Embeddings()
	if err != nil {
		return nil, err
	}
	s.cache = embeddings
	s.cachedAt = time.Now()
	return s.cache, nil
}

// cosineSimilarity matches the reference engine's epsilon-guarded formula
// so a zero-norm vector never produces a NaN or divide-by-zero.
func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + 1e-9)
}
