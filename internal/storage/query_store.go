package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/searchengine/searchengine/internal/query"
	"github.com/searchengine/searchengine/internal/searchindex"
)

// TermFreqs implements query.IndexReader.
func (d *DB) TermFreqs(token, url string) ([]query.FieldTermFreq, error) {
	rows, err := d.db.Query(d.q(`SELECT field, term_freq FROM inverted_index WHERE token = ? AND url = ?`), token, url)
	if err != nil {
		return nil, fmt.Errorf("storage: term freqs: %w", err)
	}
	defer rows.Close()
	var out []query.FieldTermFreq
	for rows.Next() {
		var field string
		var ftf query.FieldTermFreq
		if err := rows.Scan(&field, &ftf.TermFreq); err != nil {
			return nil, err
		}
		ftf.Field = searchindex.Field(field)
		out = append(out, ftf)
	}
	return out, rows.Err()
}

// PageRank implements query.IndexReader by reading the persisted page_ranks
// table the PageRank Job populates.
func (d *DB) PageRank(url string) (float64, error) {
	var score float64
	err := d.db.QueryRow(d.q(`SELECT score FROM page_ranks WHERE url = ?`), url).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: page rank: %w", err)
	}
	return score, nil
}

// Embeddings implements query.VectorReader.
func (d *DB) Embeddings() (map[string][]float64, error) {
	rows, err := d.db.Query(`SELECT url, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("storage: embeddings: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]float64)
	for rows.Next() {
		var url, vectorJSON string
		if err := rows.Scan(&url, &vectorJSON); err != nil {
			return nil, err
		}
		var vec []float64
		if err := json.Unmarshal([]byte(vectorJSON), &vec); err != nil {
			return nil, fmt.Errorf("storage: unmarshal embedding: %w", err)
		}
		out[url] = vec
	}
	return out, rows.Err()
}
