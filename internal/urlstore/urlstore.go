// Package urlstore maps URLs to their crawl lifecycle status and exposes the
// atomic claim operation the Scheduler pulls from. It is the system's
// single source of truth for which URLs exist and what state they are in.
package urlstore

import "time"

// Status values a URL record can hold.
const (
	StatusPending  = "pending"
	StatusCrawling = "crawling"
	StatusDone     = "done"
	StatusFailed   = "failed"
)

// Item is one row of the URL Store.
type Item struct {
	URL           string
	Domain        string
	Status        string
	Priority      float64
	SourceURL     string
	CrawlCount    int
	CreatedAt     time.Time
	LastCrawledAt time.Time
}

// Stats summarizes the URL Store by status.
type Stats struct {
	Pending  int
	Crawling int
	Done     int
	Failed   int
}

// DomainCount is one row of a domain_counts() result.
type DomainCount struct {
	Domain string
	Count  int
}

// Store is the contract the Scheduler and Crawl Worker depend on. It is
// satisfied by both the SQLite and PostgreSQL storage implementations.
type Store interface {
	// Add inserts url fresh as pending, or restores a done/failed row older
	// than recrawlThreshold back to pending with the given priority.
	// Returns true iff a row was inserted or restored.
	Add(url string, priority float64, sourceURL string, recrawlThreshold time.Duration) (bool, error)

	// AddBatch applies Add to every url in one transaction, returning the
	// count of URLs truly added or restored.
	AddBatch(urls []string, priority float64, sourceURL string, recrawlThreshold time.Duration) (int, error)

	// ClaimBatch selects up to n pending rows ordered by priority descending
	// (ties broken by created_at ascending), flips them to crawling, and
	// returns them. No row is ever returned to two concurrent callers.
	ClaimBatch(n int) ([]Item, error)

	// Record sets status (done or failed), last_crawled_at=now, and
	// increments crawl_count. Inserts the row in its terminal state if
	// it was not previously known.
	Record(url string, status string) error

	// RecoverStaleCrawling resets every crawling row back to pending and
	// returns how many rows were reset. Call once at worker startup.
	RecoverStaleCrawling() (int, error)

	// IsRecentlyCrawled reports whether url's last_crawled_at is within
	// recrawlThreshold of now.
	IsRecentlyCrawled(url string, recrawlThreshold time.Duration) (bool, error)

	Stats() (Stats, error)
	Peek(n int) ([]Item, error)
	DomainCounts(limit int) ([]DomainCount, error)

	// History returns the stored row for url. The store keeps one row per
	// URL, so the result holds at most that single current entry.
	History(url string, limit int) ([]Item, error)

	Close() error
}

// Seed is a durable entry-point URL, tracked separately from crawl state so
// clearing crawl history never clears the seed set.
type Seed struct {
	URL        string
	AddedAt    time.Time
	LastQueued time.Time
}

// SeedStore manages the durable seed set consumed by /seeds endpoints.
type SeedStore interface {
	AddSeeds(urls []string) (int, error)
	RemoveSeeds(urls []string) (int, error)
	ListSeeds(limit int) ([]Seed, error)
	// Requeue re-adds every seed to the URL Store as pending, bypassing the
	// recrawl threshold, and stamps last_queued.
	Requeue(priority float64) (int, error)
}
