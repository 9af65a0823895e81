package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/searchengine/searchengine/internal/searchindex"
)

// IndexDocument implements searchindex.Writer.
func (d *DB) IndexDocument(url, title, content string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin index document: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	titleTokens := searchindex.Tokenize(title)
	contentTokens := searchindex.Tokenize(content)
	wordCount := len(contentTokens)

	res, err := tx.Exec(d.q(`UPDATE documents SET title = ?, content = ?, word_count = ?, indexed_at = CURRENT_TIMESTAMP WHERE url = ?`),
		title, content, wordCount, url)
	if err != nil {
		return fmt.Errorf("storage: update document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.Exec(d.q(`INSERT INTO documents (url, title, content, word_count) VALUES (?, ?, ?, ?)`),
			url, title, content, wordCount); err != nil {
			return fmt.Errorf("storage: insert document: %w", err)
		}
	}

	existingTokens, err := tokensForURL(tx, d, url)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(d.q(`DELETE FROM inverted_index WHERE url = ?`), url); err != nil {
		return fmt.Errorf("storage: clear postings: %w", err)
	}

	postings := append(
		searchindex.BuildPostings(url, searchindex.FieldTitle, titleTokens),
		searchindex.BuildPostings(url, searchindex.FieldContent, contentTokens)...,
	)
	newTokens := make(map[string]struct{}, len(postings))
	for _, p := range postings {
		positionsJSON, err := json.Marshal(p.Positions)
		if err != nil {
			return fmt.Errorf("storage: marshal positions: %w", err)
		}
		if _, err := tx.Exec(d.q(`
			INSERT INTO inverted_index (token, url, field, term_freq, positions) VALUES (?, ?, ?, ?, ?)`),
			p.Token, p.URL, string(p.Field), p.TermFreq, string(positionsJSON)); err != nil {
			return fmt.Errorf("storage: insert posting: %w", err)
		}
		newTokens[p.Token] = struct{}{}
	}

	touched := make(map[string]struct{}, len(existingTokens)+len(newTokens))
	for t := range existingTokens {
		touched[t] = struct{}{}
	}
	for t := range newTokens {
		touched[t] = struct{}{}
	}
	for token := range touched {
		if err := recomputeDocFreq(tx, d, token); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func tokensForURL(tx *sql.Tx, d *DB, url string) (map[string]struct{}, error) {
	rows, err := tx.Query(d.q(`SELECT DISTINCT token FROM inverted_index WHERE url = ?`), url)
	if err != nil {
		return nil, fmt.Errorf("storage: lookup existing tokens: %w", err)
	}
	defer rows.Close()
	tokens := make(map[string]struct{})
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, err
		}
		tokens[tok] = struct{}{}
	}
	return tokens, rows.Err()
}

func recomputeDocFreq(tx *sql.Tx, d *DB, token string) error {
	var freq int
	if err := tx.QueryRow(d.q(`SELECT COUNT(DISTINCT url) FROM inverted_index WHERE token = ?`), token).Scan(&freq); err != nil {
		return fmt.Errorf("storage: count doc freq: %w", err)
	}
	if freq == 0 {
		if _, err := tx.Exec(d.q(`DELETE FROM token_stats WHERE token = ?`), token); err != nil {
			return fmt.Errorf("storage: delete token stats: %w", err)
		}
		return nil
	}
	res, err := tx.Exec(d.q(`UPDATE token_stats SET doc_freq = ? WHERE token = ?`), freq, token)
	if err != nil {
		return fmt.Errorf("storage: update token stats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.Exec(d.q(`INSERT INTO token_stats (token, doc_freq) VALUES (?, ?)`), token, freq); err != nil {
			return fmt.Errorf("storage: insert token stats: %w", err)
		}
	}
	return nil
}

// UpdateGlobalStats implements searchindex.Writer.
func (d *DB) UpdateGlobalStats() error {
	var totalDocs int
	var avgLen sql.NullFloat64
	if err := d.db.QueryRow(`SELECT COUNT(*), AVG(word_count) FROM documents`).Scan(&totalDocs, &avgLen); err != nil {
		return fmt.Errorf("storage: compute global stats: %w", err)
	}

	res, err := d.db.Exec(`UPDATE global_stats SET total_docs = ?, avg_doc_length = ? WHERE id = 1`, totalDocs, avgLen.Float64)
	if err != nil {
		return fmt.Errorf("storage: update global stats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := d.db.Exec(`INSERT INTO global_stats (id, total_docs, avg_doc_length) VALUES (1, ?, ?)`, totalDocs, avgLen.Float64); err != nil {
			return fmt.Errorf("storage: insert global stats: %w", err)
		}
	}
	return nil
}

// DeleteDocument implements searchindex.Writer.
func (d *DB) DeleteDocument(url string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin delete document: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tokens, err := tokensForURL(tx, d, url)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(d.q(`DELETE FROM inverted_index WHERE url = ?`), url); err != nil {
		return fmt.Errorf("storage: delete postings: %w", err)
	}
	if _, err := tx.Exec(d.q(`DELETE FROM documents WHERE url = ?`), url); err != nil {
		return fmt.Errorf("storage: delete document: %w", err)
	}
	for token := range tokens {
		if err := recomputeDocFreq(tx, d, token); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GlobalStats implements searchindex.Writer and query.IndexReader.
func (d *DB) GlobalStats() (searchindex.GlobalStats, error) {
	var stats searchindex.GlobalStats
	err := d.db.QueryRow(`SELECT total_docs, avg_doc_length FROM global_stats WHERE id = 1`).Scan(&stats.TotalDocs, &stats.AvgDocLength)
	if err == sql.ErrNoRows {
		return searchindex.GlobalStats{}, nil
	}
	if err != nil {
		return stats, fmt.Errorf("storage: read global stats: %w", err)
	}
	return stats, nil
}

// Postings implements searchindex.Writer.
func (d *DB) Postings(token string) ([]searchindex.Posting, error) {
	rows, err := d.db.Query(d.q(`SELECT token, url, field, term_freq, positions FROM inverted_index WHERE token = ?`), token)
	if err != nil {
		return nil, fmt.Errorf("storage: postings: %w", err)
	}
	defer rows.Close()
	var out []searchindex.Posting
	for rows.Next() {
		var p searchindex.Posting
		var field, positionsJSON string
		if err := rows.Scan(&p.Token, &p.URL, &field, &p.TermFreq, &positionsJSON); err != nil {
			return nil, err
		}
		p.Field = searchindex.Field(field)
		_ = json.Unmarshal([]byte(positionsJSON), &p.Positions)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DocFreq implements searchindex.Writer and query.IndexReader.
func (d *DB) DocFreq(token string) (int, error) {
	var freq int
	err := d.db.QueryRow(d.q(`SELECT doc_freq FROM token_stats WHERE token = ?`), token).Scan(&freq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: doc freq: %w", err)
	}
	return freq, nil
}

// DocLength implements query.IndexReader.
func (d *DB) DocLength(url string) (int, error) {
	var wordCount int
	err := d.db.QueryRow(d.q(`SELECT word_count FROM documents WHERE url = ?`), url).Scan(&wordCount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: doc length: %w", err)
	}
	return wordCount, nil
}

// Document implements query.IndexReader and query.VectorReader.
func (d *DB) Document(url string) (string, string, error) {
	var title, content string
	err := d.db.QueryRow(d.q(`SELECT title, content FROM documents WHERE url = ?`), url).Scan(&title, &content)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("storage: document: %w", err)
	}
	return title, content, nil
}

// CandidateURLs implements query.IndexReader: every distinct url posted
// against token, the BM25 scorer's candidate set for that query term.
func (d *DB) CandidateURLs(token string) ([]string, error) {
	rows, err := d.db.Query(d.q(`SELECT DISTINCT url FROM inverted_index WHERE token = ?`), token)
	if err != nil {
		return nil, fmt.Errorf("storage: candidate urls: %w", err)
	}
	defer rows.Close()
	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}
