package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/searchengine/searchengine/internal/analytics"
)

// RecordImpression implements analytics.Recorder: one row per returned
// result url, or a single zero-rank marker row (empty url) when the query
// returned nothing, so QualitySummary can compute a zero-result rate.
func (d *DB) RecordImpression(requestID, sessionHash, query string, resultURLs []string, mode string) error {
	if len(resultURLs) == 0 {
		return d.insertSearchEvent(requestID, sessionHash, analytics.EventImpression, query, "", 0, mode)
	}
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin record impression: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for rank, url := range resultURLs {
		if _, err := tx.Exec(d.q(`
			INSERT INTO search_events (request_id, session_hash, event_type, query, url, rank, mode)
			VALUES (?, ?, 'impression', ?, ?, ?, ?)`),
			requestID, sessionHash, query, url, rank, mode); err != nil {
			return fmt.Errorf("storage: record impression: %w", err)
		}
	}
	return tx.Commit()
}

// RecordClick implements analytics.Recorder.
func (d *DB) RecordClick(requestID, sessionHash, query, url string, rank int) error {
	return d.insertSearchEvent(requestID, sessionHash, analytics.EventClick, query, url, rank, "")
}

func (d *DB) insertSearchEvent(requestID, sessionHash string, eventType analytics.EventType, query, url string, rank int, mode string) error {
	_, err := d.db.Exec(d.q(`
		INSERT INTO search_events (request_id, session_hash, event_type, query, url, rank, mode)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		requestID, sessionHash, string(eventType), query, url, rank, mode)
	if err != nil {
		return fmt.Errorf("storage: insert search event: %w", err)
	}
	return nil
}

// QualitySummary implements analytics.Recorder, aggregating search_events
// over the trailing window.
func (d *DB) QualitySummary(window time.Duration) (analytics.QualitySummary, error) {
	since := time.Now().Add(-window)
	summary := analytics.QualitySummary{WindowHours: int(window.Hours())}

	var impressionRequests, clickRequests, zeroResultRequests int64
	if err := d.db.QueryRow(d.q(`
		SELECT COUNT(DISTINCT request_id) FROM search_events WHERE event_type = 'impression' AND created_at >= ?`),
		since).Scan(&impressionRequests); err != nil {
		return summary, fmt.Errorf("storage: count impressions: %w", err)
	}
	if err := d.db.QueryRow(d.q(`
		SELECT COUNT(DISTINCT request_id) FROM search_events WHERE event_type = 'click' AND created_at >= ?`),
		since).Scan(&clickRequests); err != nil {
		return summary, fmt.Errorf("storage: count clicks: %w", err)
	}
	if err := d.db.QueryRow(d.q(`
		SELECT COUNT(DISTINCT request_id) FROM search_events
		WHERE event_type = 'impression' AND url = '' AND created_at >= ?`), since).Scan(&zeroResultRequests); err != nil {
		return summary, fmt.Errorf("storage: count zero-result requests: %w", err)
	}

	var meanRank sql.NullFloat64
	if err := d.db.QueryRow(d.q(`
		SELECT AVG(rank) FROM search_events WHERE event_type = 'click' AND created_at >= ?`), since).Scan(&meanRank); err != nil {
		return summary, fmt.Errorf("storage: mean clicked rank: %w", err)
	}

	summary.Impressions = impressionRequests
	summary.Clicks = clickRequests
	summary.MeanClickedRank = meanRank.Float64
	if impressionRequests > 0 {
		summary.ClickThrough = float64(clickRequests) / float64(impressionRequests)
		summary.ZeroResultRate = float64(zeroResultRequests) / float64(impressionRequests)
	}
	return summary, nil
}
