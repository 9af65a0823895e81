// Package storage provides the dual-backend (SQLite/PostgreSQL) persistence
// layer shared by every service binary: the URL Store, the seed set, the
// Index Job Queue, the inverted index, PageRank, and analytics events.
package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/searchengine/searchengine/internal/dbdialect"
	"github.com/searchengine/searchengine/internal/indexqueue"
	"github.com/searchengine/searchengine/internal/urlstore"
)

// DB is the shared storage handle, wrapping a single *sql.DB connection pool
// plus the dialect adapter that fills in each backend's SQL differences. It
// implements urlstore.Store, urlstore.SeedStore, indexqueue.Queue,
// searchindex.Writer, pagerank.Store, and analytics.Recorder.
type DB struct {
	db      *sql.DB
	dialect dbdialect.Dialect
}

// Open parses databaseURL's scheme (sqlite:// or postgres://), connects,
// and creates the schema if it does not already exist.
func Open(databaseURL string) (*DB, error) {
	dialect, err := dbdialect.For(databaseURL)
	if err != nil {
		return nil, err
	}

	var driverName, dsn, schema string
	switch dialect.Name() {
	case dbdialect.SQLite:
		driverName = "sqlite"
		dsn = strings.TrimPrefix(databaseURL, "sqlite://")
		schema = sqliteSchema
	case dbdialect.PostgreSQL:
		driverName = "pgx"
		dsn = databaseURL
		schema = postgresSchema
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	if dialect.Name() == dbdialect.SQLite {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		for _, pragma := range []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA busy_timeout = 30000",
		} {
			if _, err := sqlDB.Exec(pragma); err != nil {
				_ = sqlDB.Close()
				return nil, fmt.Errorf("storage: pragma %s: %w", pragma, err)
			}
		}
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}

	return &DB{db: sqlDB, dialect: dialect}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error { return d.db.Close() }

func (d *DB) q(query string) string { return d.dialect.Rebind(query) }

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// ---------------------------------------------------------------- URL Store

// queryExecer is the subset of *sql.DB and *sql.Tx that addWith needs, so
// Add and AddBatch can share one implementation over either a bare
// connection or a transaction.
type queryExecer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Add implements urlstore.Store.
func (d *DB) Add(url string, priority float64, sourceURL string, recrawlThreshold time.Duration) (bool, error) {
	return d.addWith(d.db, url, priority, sourceURL, recrawlThreshold)
}

func (d *DB) addWith(exec queryExecer, url string, priority float64, sourceURL string, recrawlThreshold time.Duration) (bool, error) {
	var status string
	var lastCrawledAt sql.NullTime
	err := exec.QueryRow(d.q(`SELECT status, last_crawled_at FROM urls WHERE url = ?`), url).Scan(&status, &lastCrawledAt)
	switch {
	case err == sql.ErrNoRows:
		_, err := exec.Exec(d.q(`INSERT INTO urls (url, domain, status, priority, source_url) VALUES (?, ?, 'pending', ?, ?)`),
			url, hostnameOf(url), priority, sourceURL)
		if err != nil {
			return false, fmt.Errorf("storage: add url: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("storage: lookup url: %w", err)
	}

	if status == urlstore.StatusPending || status == urlstore.StatusCrawling {
		return false, nil
	}
	if lastCrawledAt.Valid && recrawlThreshold > 0 && time.Since(lastCrawledAt.Time) < recrawlThreshold {
		return false, nil
	}

	_, err = exec.Exec(d.q(`UPDATE urls SET status = 'pending', priority = ?, source_url = ? WHERE url = ?`),
		priority, sourceURL, url)
	if err != nil {
		return false, fmt.Errorf("storage: restore url: %w", err)
	}
	return true, nil
}

// AddBatch implements urlstore.Store, running every url's add in one
// transaction: a failure partway through rolls back the whole batch rather
// than leaving the first N urls committed.
func (d *DB) AddBatch(urls []string, priority float64, sourceURL string, recrawlThreshold time.Duration) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("storage: begin add batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	count := 0
	for _, u := range urls {
		ok, err := d.addWith(tx, u, priority, sourceURL, recrawlThreshold)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: commit add batch: %w", err)
	}
	return count, nil
}

// ClaimBatch implements urlstore.Store's atomic priority-ordered claim.
func (d *DB) ClaimBatch(n int) ([]urlstore.Item, error) {
	if d.dialect.Name() == dbdialect.PostgreSQL {
		return d.claimBatchPostgres(n)
	}
	return d.claimBatchSQLite(n)
}

func (d *DB) claimBatchPostgres(n int) ([]urlstore.Item, error) {
	rows, err := d.db.Query(`
		UPDATE urls SET status = 'crawling'
		WHERE url IN (
			SELECT url FROM urls WHERE status = 'pending'
			ORDER BY priority DESC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING url, domain, status, priority, source_url, crawl_count, created_at, last_crawled_at`, n)
	if err != nil {
		return nil, fmt.Errorf("storage: claim batch: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (d *DB) claimBatchSQLite(n int) ([]urlstore.Item, error) {
	// modernc.org/sqlite honors sql.LevelSerializable as an immediate write
	// transaction, giving the same "reserve the write lock up front" effect
	// as an explicit BEGIN IMMEDIATE would, without racing a second BEGIN
	// against the one sql.DB.BeginTx already issues.
	tx, err := d.db.BeginTx(context.Background(), &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("storage: begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`
		SELECT url, domain, status, priority, source_url, crawl_count, created_at, last_crawled_at
		FROM urls WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("storage: select claim candidates: %w", err)
	}
	items, err := scanItems(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, tx.Commit()
	}

	urls := make([]string, len(items))
	for i, it := range items {
		urls[i] = it.URL
	}
	if _, err := tx.Exec(`UPDATE urls SET status = 'crawling' WHERE url IN (`+placeholders(len(urls))+`)`, toAny(urls)...); err != nil {
		return nil, fmt.Errorf("storage: mark crawling: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("storage: commit claim: %w", err)
	}
	for i := range items {
		items[i].Status = urlstore.StatusCrawling
	}
	return items, nil
}

func scanItems(rows *sql.Rows) ([]urlstore.Item, error) {
	var items []urlstore.Item
	for rows.Next() {
		var it urlstore.Item
		var sourceURL sql.NullString
		var lastCrawledAt sql.NullTime
		if err := rows.Scan(&it.URL, &it.Domain, &it.Status, &it.Priority, &sourceURL, &it.CrawlCount, &it.CreatedAt, &lastCrawledAt); err != nil {
			return nil, fmt.Errorf("storage: scan url row: %w", err)
		}
		it.SourceURL = sourceURL.String
		it.LastCrawledAt = lastCrawledAt.Time
		items = append(items, it)
	}
	return items, rows.Err()
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Record implements urlstore.Store.
func (d *DB) Record(url string, status string) error {
	res, err := d.db.Exec(d.q(`
		UPDATE urls SET status = ?, last_crawled_at = ?, crawl_count = crawl_count + 1 WHERE url = ?`),
		status, time.Now(), url)
	if err != nil {
		return fmt.Errorf("storage: record url: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected > 0 {
		return nil
	}
	_, err = d.db.Exec(d.q(`
		INSERT INTO urls (url, domain, status, crawl_count, last_crawled_at) VALUES (?, ?, ?, 1, ?)`),
		url, hostnameOf(url), status, time.Now())
	if err != nil {
		return fmt.Errorf("storage: insert terminal url: %w", err)
	}
	return nil
}

// RecoverStaleCrawling implements urlstore.Store.
func (d *DB) RecoverStaleCrawling() (int, error) {
	res, err := d.db.Exec(`UPDATE urls SET status = 'pending' WHERE status = 'crawling'`)
	if err != nil {
		return 0, fmt.Errorf("storage: recover stale crawling: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// IsRecentlyCrawled implements urlstore.Store.
func (d *DB) IsRecentlyCrawled(url string, recrawlThreshold time.Duration) (bool, error) {
	var lastCrawledAt sql.NullTime
	err := d.db.QueryRow(d.q(`SELECT last_crawled_at FROM urls WHERE url = ?`), url).Scan(&lastCrawledAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: is recently crawled: %w", err)
	}
	return lastCrawledAt.Valid && time.Since(lastCrawledAt.Time) < recrawlThreshold, nil
}

// Stats implements urlstore.Store.
func (d *DB) Stats() (urlstore.Stats, error) {
	var stats urlstore.Stats
	rows, err := d.db.Query(`SELECT status, COUNT(*) FROM urls GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("storage: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		switch status {
		case urlstore.StatusPending:
			stats.Pending = count
		case urlstore.StatusCrawling:
			stats.Crawling = count
		case urlstore.StatusDone:
			stats.Done = count
		case urlstore.StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// Peek implements urlstore.Store.
func (d *DB) Peek(n int) ([]urlstore.Item, error) {
	rows, err := d.db.Query(d.q(`
		SELECT url, domain, status, priority, source_url, crawl_count, created_at, last_crawled_at
		FROM urls WHERE status = 'pending' ORDER BY priority DESC, created_at ASC LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("storage: peek: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// DomainCounts implements urlstore.Store.
func (d *DB) DomainCounts(limit int) ([]urlstore.DomainCount, error) {
	rows, err := d.db.Query(d.q(`
		SELECT domain, COUNT(*) FROM urls GROUP BY domain ORDER BY COUNT(*) DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: domain counts: %w", err)
	}
	defer rows.Close()
	var out []urlstore.DomainCount
	for rows.Next() {
		var dc urlstore.DomainCount
		if err := rows.Scan(&dc.Domain, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// History implements urlstore.Store. The URL Store keeps only the current
// row per URL, so history is necessarily a single-entry slice; a richer
// per-attempt log would require a separate append-only table.
func (d *DB) History(url string, limit int) ([]urlstore.Item, error) {
	rows, err := d.db.Query(d.q(`
		SELECT url, domain, status, priority, source_url, crawl_count, created_at, last_crawled_at
		FROM urls WHERE url = ? LIMIT ?`), url, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: history: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// ---------------------------------------------------------------- Seed Store

// AddSeeds implements urlstore.SeedStore.
func (d *DB) AddSeeds(urls []string) (int, error) {
	var stmt string
	if d.dialect.Name() == dbdialect.SQLite {
		stmt = `INSERT OR IGNORE INTO seeds (url) VALUES (?)`
	} else {
		stmt = `INSERT INTO seeds (url) VALUES (?) ` + d.dialect.InsertIgnoreClause("url")
	}

	count := 0
	for _, u := range urls {
		res, err := d.db.Exec(d.q(stmt), u)
		if err != nil {
			return count, fmt.Errorf("storage: add seed: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			count++
		}
	}
	return count, nil
}

// RemoveSeeds implements urlstore.SeedStore.
func (d *DB) RemoveSeeds(urls []string) (int, error) {
	count := 0
	for _, u := range urls {
		res, err := d.db.Exec(d.q(`DELETE FROM seeds WHERE url = ?`), u)
		if err != nil {
			return count, fmt.Errorf("storage: remove seed: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			count++
		}
	}
	return count, nil
}

// ListSeeds implements urlstore.SeedStore.
func (d *DB) ListSeeds(limit int) ([]urlstore.Seed, error) {
	rows, err := d.db.Query(d.q(`SELECT url, added_at, last_queued FROM seeds ORDER BY added_at ASC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list seeds: %w", err)
	}
	defer rows.Close()
	var out []urlstore.Seed
	for rows.Next() {
		var s urlstore.Seed
		var lastQueued sql.NullTime
		if err := rows.Scan(&s.URL, &s.AddedAt, &lastQueued); err != nil {
			return nil, err
		}
		s.LastQueued = lastQueued.Time
		out = append(out, s)
	}
	return out, rows.Err()
}

// Requeue implements urlstore.SeedStore.
func (d *DB) Requeue(priority float64) (int, error) {
	seeds, err := d.ListSeeds(1 << 30)
	if err != nil {
		return 0, err
	}
	upsert := `INSERT INTO urls (url, domain, status, priority) VALUES (?, ?, 'pending', ?) ` +
		d.dialect.UpsertClause("url", []string{"status", "priority"})
	count := 0
	for _, s := range seeds {
		if _, err := d.db.Exec(d.q(upsert), s.URL, hostnameOf(s.URL), priority); err != nil {
			return count, fmt.Errorf("storage: requeue seed: %w", err)
		}
		if _, err := d.db.Exec(d.q(`UPDATE seeds SET last_queued = ? WHERE url = ?`), time.Now(), s.URL); err != nil {
			return count, fmt.Errorf("storage: stamp last_queued: %w", err)
		}
		count++
	}
	return count, nil
}

// ---------------------------------------------------------------- Index Job Queue

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func dedupeKeyFor(url, contentHashHex string) string {
	sum := sha256.Sum256([]byte(url + "\n" + contentHashHex))
	return hex.EncodeToString(sum[:])
}

// Enqueue implements indexqueue.Queue.
func (d *DB) Enqueue(url, title, content string, outlinks []string) (indexqueue.EnqueueResult, error) {
	outlinksJSON, err := json.Marshal(outlinks)
	if err != nil {
		return indexqueue.EnqueueResult{}, fmt.Errorf("storage: marshal outlinks: %w", err)
	}
	hash := contentHash(content)
	dedupeKey := dedupeKeyFor(url, hash)

	var existingID int64
	err = d.db.QueryRow(d.q(`SELECT id FROM index_jobs WHERE dedupe_key = ?`), dedupeKey).Scan(&existingID)
	if err == nil {
		return indexqueue.EnqueueResult{JobID: fmt.Sprintf("%d", existingID), Created: false}, nil
	}
	if err != sql.ErrNoRows {
		return indexqueue.EnqueueResult{}, fmt.Errorf("storage: lookup dedupe key: %w", err)
	}

	cfg := indexqueue.DefaultBackoffConfig()
	res, err := d.db.Exec(d.q(`
		INSERT INTO index_jobs (dedupe_key, content_hash, url, title, content, outlinks, max_retries)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		dedupeKey, hash, url, title, content, string(outlinksJSON), cfg.MaxRetries)
	if err != nil {
		return indexqueue.EnqueueResult{}, fmt.Errorf("storage: enqueue job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return indexqueue.EnqueueResult{}, fmt.Errorf("storage: job id: %w", err)
	}
	return indexqueue.EnqueueResult{JobID: fmt.Sprintf("%d", id), Created: true}, nil
}

// Claim implements indexqueue.Queue: recovers expired leases, then leases up
// to limit pending/failed_retry jobs whose available_at has passed, oldest
// first, to workerID.
func (d *DB) Claim(limit int, leaseSeconds int, workerID string) ([]indexqueue.Job, error) {
	if _, err := d.RecoverExpiredLeases(); err != nil {
		return nil, err
	}

	now := time.Now()
	rows, err := d.db.Query(d.q(`
		SELECT id, dedupe_key, content_hash, url, title, content, outlinks, status, retry_count,
		       max_retries, available_at, lease_until, worker_id, last_error, created_at, updated_at
		FROM index_jobs
		WHERE status IN ('pending', 'failed_retry') AND available_at <= ?
		ORDER BY available_at ASC LIMIT ?`), now, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: claim jobs: %w", err)
	}
	jobs, err := scanJobs(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	leaseUntil := now.Add(time.Duration(leaseSeconds) * time.Second)
	for i := range jobs {
		if _, err := d.db.Exec(d.q(`
			UPDATE index_jobs SET status = 'processing', lease_until = ?, worker_id = ?, updated_at = ? WHERE id = ?`),
			leaseUntil, workerID, now, jobs[i].JobID); err != nil {
			return nil, fmt.Errorf("storage: lease job: %w", err)
		}
		jobs[i].Status = indexqueue.StatusProcessing
		jobs[i].LeaseUntil = leaseUntil
		jobs[i].WorkerID = workerID
	}
	return jobs, nil
}

func scanJobs(rows *sql.Rows) ([]indexqueue.Job, error) {
	var jobs []indexqueue.Job
	for rows.Next() {
		var j indexqueue.Job
		var outlinksJSON string
		var title, content, workerID, lastError sql.NullString
		var leaseUntil sql.NullTime
		if err := rows.Scan(&j.JobID, &j.DedupeKey, &j.ContentHash, &j.URL, &title, &content, &outlinksJSON,
			&j.Status, &j.RetryCount, &j.MaxRetries, &j.AvailableAt, &leaseUntil, &workerID, &lastError,
			&j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan job: %w", err)
		}
		j.Title = title.String
		j.Content = content.String
		j.WorkerID = workerID.String
		j.LastError = lastError.String
		j.LeaseUntil = leaseUntil.Time
		_ = json.Unmarshal([]byte(outlinksJSON), &j.Outlinks)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkDone implements indexqueue.Queue.
func (d *DB) MarkDone(jobID string) error {
	_, err := d.db.Exec(d.q(`UPDATE index_jobs SET status = 'done', updated_at = ? WHERE id = ?`), time.Now(), jobID)
	if err != nil {
		return fmt.Errorf("storage: mark job done: %w", err)
	}
	return nil
}

// MarkFailure implements indexqueue.Queue: applies the backoff policy,
// retrying up to max_retries before a permanent failure.
func (d *DB) MarkFailure(jobID string, errMsg string) error {
	var retryCount, maxRetries int
	if err := d.db.QueryRow(d.q(`SELECT retry_count, max_retries FROM index_jobs WHERE id = ?`), jobID).
		Scan(&retryCount, &maxRetries); err != nil {
		return fmt.Errorf("storage: lookup job retry count: %w", err)
	}
	retryCount++
	now := time.Now()

	if retryCount >= maxRetries {
		_, err := d.db.Exec(d.q(`
			UPDATE index_jobs SET status = 'failed_permanent', retry_count = ?, last_error = ?, updated_at = ? WHERE id = ?`),
			retryCount, errMsg, now, jobID)
		if err != nil {
			return fmt.Errorf("storage: mark job failed_permanent: %w", err)
		}
		return nil
	}

	cfg := indexqueue.DefaultBackoffConfig()
	cfg.MaxRetries = maxRetries
	delaySeconds := indexqueue.RetryDelaySeconds(cfg, retryCount)
	availableAt := now.Add(time.Duration(delaySeconds * float64(time.Second)))
	_, err := d.db.Exec(d.q(`
		UPDATE index_jobs SET status = 'failed_retry', retry_count = ?, available_at = ?, last_error = ?, updated_at = ?
		WHERE id = ?`),
		retryCount, availableAt, errMsg, now, jobID)
	if err != nil {
		return fmt.Errorf("storage: mark job failed_retry: %w", err)
	}
	return nil
}

// RecoverExpiredLeases implements indexqueue.Queue: any processing row whose
// lease has lapsed is treated as a failure and re-enters the retry arithmetic.
func (d *DB) RecoverExpiredLeases() (int, error) {
	rows, err := d.db.Query(d.q(`SELECT id FROM index_jobs WHERE status = 'processing' AND lease_until < ?`), time.Now())
	if err != nil {
		return 0, fmt.Errorf("storage: find expired leases: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := d.MarkFailure(id, "lease expired"); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// JobStatus implements indexqueue.Queue.
func (d *DB) JobStatus(jobID string) (indexqueue.Job, error) {
	rows, err := d.db.Query(d.q(`
		SELECT id, dedupe_key, content_hash, url, title, content, outlinks, status, retry_count,
		       max_retries, available_at, lease_until, worker_id, last_error, created_at, updated_at
		FROM index_jobs WHERE id = ?`), jobID)
	if err != nil {
		return indexqueue.Job{}, fmt.Errorf("storage: job status: %w", err)
	}
	defer rows.Close()
	jobs, err := scanJobs(rows)
	if err != nil {
		return indexqueue.Job{}, err
	}
	if len(jobs) == 0 {
		return indexqueue.Job{}, sql.ErrNoRows
	}
	return jobs[0], nil
}

// Stats implements indexqueue.Queue.
func (d *DB) Stats() (indexqueue.Stats, error) {
	var stats indexqueue.Stats
	rows, err := d.db.Query(`SELECT status, COUNT(*) FROM index_jobs GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("storage: queue stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		switch status {
		case indexqueue.StatusPending:
			stats.Pending = count
		case indexqueue.StatusProcessing:
			stats.Processing = count
		case indexqueue.StatusDone:
			stats.Done = count
		case indexqueue.StatusFailedRetry:
			stats.FailedRetry = count
		case indexqueue.StatusFailedPermanent:
			stats.FailedPermanent = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	var oldest sql.NullTime
	if err := d.db.QueryRow(`SELECT MIN(available_at) FROM index_jobs WHERE status IN ('pending', 'failed_retry')`).Scan(&oldest); err == nil && oldest.Valid {
		stats.OldestPendingSeconds = time.Since(oldest.Time).Seconds()
	}
	return stats, nil
}
