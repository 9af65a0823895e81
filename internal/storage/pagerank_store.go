package storage

import (
	"database/sql"
	"fmt"

	"github.com/searchengine/searchengine/internal/dbdialect"
	"github.com/searchengine/searchengine/internal/pagerank"
)

// DocumentURLs implements pagerank.Store.
func (d *DB) DocumentURLs() ([]string, error) {
	rows, err := d.db.Query(`SELECT url FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("storage: document urls: %w", err)
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

// LinkEdges implements pagerank.Store.
func (d *DB) LinkEdges() ([]pagerank.Edge, error) {
	rows, err := d.db.Query(`SELECT src, dst FROM link_edges`)
	if err != nil {
		return nil, fmt.Errorf("storage: link edges: %w", err)
	}
	defer rows.Close()
	var edges []pagerank.Edge
	for rows.Next() {
		var e pagerank.Edge
		if err := rows.Scan(&e.Src, &e.Dst); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// SaveLinkEdges persists src -> dst for every url in dsts, ignoring edges
// already recorded so a page re-indexed after a recrawl doesn't error on
// the (src, dst) primary key.
func (d *DB) SaveLinkEdges(src string, dsts []string) error {
	if len(dsts) == 0 {
		return nil
	}
	var insert string
	if d.dialect.Name() == dbdialect.SQLite {
		insert = `INSERT OR IGNORE INTO link_edges (src, dst) VALUES (?, ?)`
	} else {
		insert = `INSERT INTO link_edges (src, dst) VALUES (?, ?) ` + d.dialect.InsertIgnoreClause("src, dst")
	}
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin save link edges: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, dst := range dsts {
		if _, err := tx.Exec(d.q(insert), src, dst); err != nil {
			return fmt.Errorf("storage: save link edge: %w", err)
		}
	}
	return tx.Commit()
}

// SavePageRanks implements pagerank.Store, rewriting the whole table
// atomically: a full recompute drops ranks for nodes no longer in the
// graph, and a crash or error partway through leaves the previous snapshot
// intact rather than a mix of old and new scores.
func (d *DB) SavePageRanks(scores pagerank.Result) error {
	return d.saveRanks("page_ranks", "url", scores)
}

// SaveDomainRanks implements pagerank.Store.
func (d *DB) SaveDomainRanks(scores pagerank.Result) error {
	return d.saveRanks("domain_ranks", "domain", scores)
}

func (d *DB) saveRanks(table, keyColumn string, scores pagerank.Result) error {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (%s, score) VALUES (?, ?)`, table, keyColumn)

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin save ranks: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return fmt.Errorf("storage: clear %s: %w", table, err)
	}

	for start := 0; start < len(keys); start += pagerank.SaveBatchSize {
		end := start + pagerank.SaveBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		for _, k := range keys[start:end] {
			if _, err := tx.Exec(d.q(insert), k, scores[k]); err != nil {
				return fmt.Errorf("storage: save rank for %s: %w", k, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit save ranks: %w", err)
	}
	return nil
}

// DomainRank implements pagerank.Store.
func (d *DB) DomainRank(domain string) (float64, error) {
	var score float64
	err := d.db.QueryRow(d.q(`SELECT score FROM domain_ranks WHERE domain = ?`), domain).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: domain rank: %w", err)
	}
	return score, nil
}
