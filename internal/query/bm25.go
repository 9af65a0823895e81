// Package query implements the three search modes: BM25 keyword ranking,
// embedding-based semantic similarity, and a hybrid Reciprocal Rank Fusion
// of the two.
package query

import (
	"math"

	"github.com/searchengine/searchengine/internal/searchindex"
)

// BM25Config holds the Okapi BM25 hyperparameters.
type BM25Config struct {
	K1             float64
	B              float64
	TitleBoost     float64
	PageRankWeight float64
}

// DefaultBM25Config matches the reference scorer's tuning.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.2, B: 0.75, TitleBoost: 3.0, PageRankWeight: 0.5}
}

// FieldTermFreq is one field's term frequency for a (token, url) pair.
type FieldTermFreq struct {
	Field    searchindex.Field
	TermFreq int
}

// IndexReader is the read surface of the inverted index the scorer and
// searcher need. Implementations wrap the dialect-aware storage layer.
type IndexReader interface {
	GlobalStats() (searchindex.GlobalStats, error)
	DocLength(url string) (int, error)
	TermFreqs(token, url string) ([]FieldTermFreq, error)
	DocFreq(token string) (int, error)
	PageRank(url string) (float64, error)
	CandidateURLs(token string) ([]string, error)
	Document(url string) (title string, content string, err error)
}

// BM25Scorer scores a document against a tokenized query, blending in
// PageRank when configured with a nonzero weight. A scorer caches global
// stats for its own lifetime the way the reference implementation does,
// so callers should build one per search request, not share it across
// requests that might span an index update.
type BM25Scorer struct {
	reader      IndexReader
	config      BM25Config
	statsLoaded bool
	stats       searchindex.GlobalStats
}

// NewBM25Scorer builds a scorer over reader using config.
func NewBM25Scorer(reader IndexReader, config BM25Config) *BM25Scorer {
	return &BM25Scorer{reader: reader, config: config}
}

// Score computes the combined BM25 + PageRank score for url against the
// given already-tokenized query terms.
func (s *BM25Scorer) Score(url string, tokens []string) (float64, error) {
	bm25, err := s.calculateBM25(url, tokens)
	if err != nil {
		return 0, err
	}

	if s.config.PageRankWeight <= 0 {
		return bm25, nil
	}

	pr, err := s.reader.PageRank(url)
	if err != nil {
		return 0, err
	}
	return bm25 + pr*s.config.PageRankWeight, nil
}

func (s *BM25Scorer) calculateBM25(url string, tokens []string) (float64, error) {
	stats, err := s.globalStats()
	if err != nil {
		return 0, err
	}
	if stats.TotalDocs == 0 || stats.AvgDocLength == 0 {
		return 0, nil
	}

	docLength, err := s.reader.DocLength(url)
	if err != nil {
		return 0, err
	}
	if docLength == 0 {
		docLength = 1
	}

	score := 0.0
	for _, token := range tokens {
		idf, err := s.idf(token, float64(stats.TotalDocs))
		if err != nil {
			return 0, err
		}
		if idf == 0 {
			continue
		}

		termData, err := s.reader.TermFreqs(token, url)
		if err != nil {
			return 0, err
		}

		for _, td := range termData {
			boost := 1.0
			if td.Field == searchindex.FieldTitle {
				boost = s.config.TitleBoost
			}

			lengthNorm := 1 - s.config.B + s.config.B*(float64(docLength)/stats.AvgDocLength)
			tf := float64(td.TermFreq)
			tfSaturated := (tf * (s.config.K1 + 1)) / (tf + s.config.K1*lengthNorm)

			score += idf * tfSaturated * boost
		}
	}

	return score, nil
}

func (s *BM25Scorer) globalStats() (searchindex.GlobalStats, error) {
	if s.statsLoaded {
		return s.stats, nil
	}
	stats, err := s.reader.GlobalStats()
	if err != nil {
		return searchindex.GlobalStats{}, err
	}
	s.stats = stats
	s.statsLoaded = true
	return stats, nil
}

// idf computes the BM25 "+1" inverse document frequency variant, which
// never goes negative for very common terms.
func (s *BM25Scorer) idf(token string, totalDocs float64) (float64, error) {
	df, err := s.reader.DocFreq(token)
	if err != nil {
		return 0, err
	}
	if df == 0 {
		return 0, nil
	}
	dfF := float64(df)
	return math.Log((totalDocs-dfF+0.5)/(dfF+0.5) + 1), nil
}
