// Package searchindex maintains the inverted index: per-(token, url, field)
// term frequency and positions, per-token document frequency, and the
// global (total_docs, avg_doc_length) pair the BM25 scorer needs.
package searchindex

import (
	"time"

	"github.com/searchengine/searchengine/internal/analyzer"
)

// Field identifies which part of a document a posting belongs to.
type Field string

const (
	FieldTitle   Field = "title"
	FieldContent Field = "content"
)

// Document is one row of the documents table.
type Document struct {
	URL       string
	Title     string
	Content   string
	WordCount int
	IndexedAt time.Time
}

// Posting is one (token, url, field) entry of the inverted index.
type Posting struct {
	Token     string
	URL       string
	Field     Field
	TermFreq  int
	Positions []int
}

// GlobalStats is the corpus-wide statistics the BM25 scorer depends on.
type GlobalStats struct {
	TotalDocs    int
	AvgDocLength float64
}

// Writer builds and maintains the inverted index. Implementations persist
// to either SQLite or PostgreSQL through the dialect-aware storage layer.
type Writer interface {
	// IndexDocument tokenizes title and content, replaces url's document
	// row and every existing posting for url, then recomputes document
	// frequency for every token url's fields contain. Atomic: either all
	// of this happens or none of it does.
	IndexDocument(url, title, content string) error

	// UpdateGlobalStats recomputes TotalDocs and AvgDocLength from the
	// documents table. Call after a batch of IndexDocument calls.
	UpdateGlobalStats() error

	// DeleteDocument removes url's document row and every posting for it.
	DeleteDocument(url string) error

	GlobalStats() (GlobalStats, error)

	// Postings returns every posting for token.
	Postings(token string) ([]Posting, error)

	// DocFreq returns how many distinct documents contain token.
	DocFreq(token string) (int, error)

	Close() error
}

// Tokenize title and content the way the Index Writer and Query Engine
// both must, so a query term always matches the same token an indexed
// document would have produced for it.
func Tokenize(text string) []string {
	return analyzer.Tokenize(text)
}

// BuildPostings computes term frequency and position lists for tokens,
// one Posting per distinct token, preserving the analyzer's token order
// for the positions list.
func BuildPostings(url string, field Field, tokens []string) []Posting {
	if len(tokens) == 0 {
		return nil
	}

	order := make([]string, 0, len(tokens))
	positions := make(map[string][]int, len(tokens))
	freq := make(map[string]int, len(tokens))

	for i, tok := range tokens {
		if _, seen := positions[tok]; !seen {
			order = append(order, tok)
		}
		positions[tok] = append(positions[tok], i)
		freq[tok]++
	}

	postings := make([]Posting, 0, len(order))
	for _, tok := range order {
		postings = append(postings, Posting{
			Token:     tok,
			URL:       url,
			Field:     field,
			TermFreq:  freq[tok],
			Positions: positions[tok],
		})
	}
	return postings
}
