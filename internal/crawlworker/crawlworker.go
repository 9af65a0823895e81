// Package crawlworker runs the fixed-concurrency pool that turns URLs
// pulled from the Scheduler into fetched, parsed pages: one robots check,
// one HTTP GET, one HTML parse, one Index Job Queue submission, and a set
// of scored outlinks fed back into the URL Store.
package crawlworker

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchengine/searchengine/internal/fetch"
	"github.com/searchengine/searchengine/internal/htmlparse"
	"github.com/searchengine/searchengine/internal/indexqueue"
	"github.com/searchengine/searchengine/internal/robots"
	"github.com/searchengine/searchengine/internal/scheduler"
	"github.com/searchengine/searchengine/internal/scoring"
	"github.com/searchengine/searchengine/internal/urlstore"
)

const (
	maxRetryableAttempts = 3
	priorityDecayStep    = 5
	minPriority           = -100
	maxOutlinksPerPage    = 50
	maxBodyBytes          = 10 * 1024 * 1024
)

// retryableStatuses are the HTTP statuses the reference crawler treats as
// transient: worth retrying rather than failing the URL outright.
var retryableStatuses = map[int]struct{}{
	429: {}, 500: {}, 502: {}, 503: {}, 504: {},
}

// Config controls pool size and per-request limits.
type Config struct {
	Concurrency     int
	RequestTimeout  time.Duration
	IncludePatterns []string
	ExcludePatterns []string
}

// DefaultConfig mirrors the reference worker pool's defaults.
func DefaultConfig() Config {
	return Config{Concurrency: 10, RequestTimeout: 30 * time.Second}
}

// Pool is the fixed-concurrency crawl worker.
type Pool struct {
	config    Config
	scheduler *scheduler.Scheduler
	robots    *robots.Checker
	fetcher   *fetch.Client
	queue     indexqueue.Queue
	store     urlstore.Store
	logger    *slog.Logger

	mu           sync.Mutex
	domainVisits map[string]int
	retries      map[string]int

	stopped atomic.Bool
}

// New builds a crawl worker Pool.
func New(cfg Config, sched *scheduler.Scheduler, robotsChecker *robots.Checker, fetcher *fetch.Client, queue indexqueue.Queue, store urlstore.Store, logger *slog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		config:       cfg,
		scheduler:    sched,
		robots:       robotsChecker,
		fetcher:      fetcher,
		queue:        queue,
		store:        store,
		logger:       logger,
		domainVisits: make(map[string]int),
		retries:      make(map[string]int),
	}
}

// Run starts the worker pool and blocks until ctx is cancelled. It recovers any URLs stranded in "crawling" status from a prior
// crash before spawning workers.
func (p *Pool) Run(ctx context.Context) error {
	if n, err := p.store.RecoverStaleCrawling(); err != nil {
		return err
	} else if n > 0 {
		p.logger.Info("recovered stale crawling urls", "count", n)
	}

	var wg sync.WaitGroup
	for i := 0; i < p.config.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.workerLoop(ctx, id)
		}(i)
	}

	<-ctx.Done()
	p.stopped.Store(true)
	wg.Wait()
	return nil
}

func (p *Pool) workerLoop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		item, ok, err := p.scheduler.Next()
		if err != nil {
			p.logger.Error("scheduler next failed", "worker", id, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		p.scheduler.RecordStart(item.Domain)
		success := p.process(ctx, item)
		p.scheduler.RecordComplete(item.Domain, success)
	}
}

// process runs the full per-URL pipeline and reports whether the fetch
// ultimately succeeded (used only for the scheduler's backoff decision;
// a URL that is permanently failed after retries still reports false).
func (p *Pool) process(ctx context.Context, item urlstore.Item) bool {
	if !p.shouldCrawl(item.URL) {
		_ = p.store.Record(item.URL, urlstore.StatusFailed)
		return false
	}

	allowed, err := p.robots.Allowed(ctx, item.URL)
	if err != nil || !allowed {
		_ = p.store.Record(item.URL, urlstore.StatusFailed)
		return false
	}
	if u, perr := url.Parse(item.URL); perr == nil {
		if delay := p.robots.CrawlDelay(u.Host); delay > 0 {
			p.scheduler.SetCrawlDelay(item.Domain, delay)
		}
	}

	reqCtx := ctx
	if p.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, p.config.RequestTimeout)
		defer cancel()
	}

	resp, err := p.fetcher.Get(reqCtx, item.URL)
	if err != nil {
		return p.handleFailure(item, 0)
	}

	if resp.StatusCode != 200 {
		if _, retryable := retryableStatuses[resp.StatusCode]; retryable {
			return p.handleFailure(item, resp.StatusCode)
		}
		_ = p.store.Record(item.URL, urlstore.StatusFailed)
		return false
	}

	if !strings.Contains(strings.ToLower(resp.ContentType), "html") {
		_ = p.store.Record(item.URL, urlstore.StatusFailed)
		return false
	}
	if len(resp.Body) > maxBodyBytes {
		_ = p.store.Record(item.URL, urlstore.StatusFailed)
		return false
	}

	parser, err := htmlparse.New(item.URL)
	if err != nil {
		_ = p.store.Record(item.URL, urlstore.StatusFailed)
		return false
	}
	parsed, err := parser.Parse(resp.Body)
	if err != nil {
		_ = p.store.Record(item.URL, urlstore.StatusFailed)
		return false
	}

	outlinks := make([]string, 0, len(parsed.Links))
	for _, link := range parsed.Links {
		if link.NoFollow {
			continue
		}
		outlinks = append(outlinks, link.URL)
	}

	if _, err := p.queue.Enqueue(item.URL, parsed.Title, parsed.PlainText, outlinks); err != nil {
		p.logger.Error("index enqueue failed", "url", item.URL, "error", err)
	}

	p.scoreAndAddOutlinks(item, outlinks)

	_ = p.store.Record(item.URL, urlstore.StatusDone)
	delete(p.retries, item.URL)
	return true
}

func (p *Pool) scoreAndAddOutlinks(item urlstore.Item, outlinks []string) {
	if len(outlinks) > maxOutlinksPerPage {
		outlinks = outlinks[:maxOutlinksPerPage]
	}

	for _, link := range outlinks {
		domain := hostnameOf(link)
		if domain == "" {
			continue
		}
		visits := p.visitsFor(domain)
		score := scoring.URLScore(link, item.Priority, visits)
		if _, err := p.store.Add(link, score, item.URL, 24*time.Hour); err != nil {
			p.logger.Error("url store add failed", "url", link, "error", err)
		}
	}

	p.mu.Lock()
	p.domainVisits[item.Domain]++
	p.mu.Unlock()
}

func (p *Pool) visitsFor(domain string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.domainVisits[domain]
}

// handleFailure applies retry classification: up to maxRetryableAttempts
// re-adds the URL with a decayed priority; beyond that it is recorded
// failed with a dead-letter log entry.
func (p *Pool) handleFailure(item urlstore.Item, statusCode int) bool {
	p.mu.Lock()
	p.retries[item.URL]++
	attempts := p.retries[item.URL]
	p.mu.Unlock()

	if attempts > maxRetryableAttempts {
		p.logger.Warn("dead-letter: url exhausted retries",
			"url", item.URL, "status", statusCode, "attempts", attempts)
		_ = p.store.Record(item.URL, urlstore.StatusFailed)
		p.mu.Lock()
		delete(p.retries, item.URL)
		p.mu.Unlock()
		return false
	}

	newPriority := item.Priority - priorityDecayStep
	if newPriority < minPriority {
		newPriority = minPriority
	}
	_ = p.store.Record(item.URL, urlstore.StatusFailed)
	if _, err := p.store.Add(item.URL, newPriority, item.SourceURL, 0); err != nil {
		p.logger.Error("retry re-add failed", "url", item.URL, "error", err)
	}
	return false
}

// shouldCrawl applies include/exclude regex filtering, matching the
// reference worker's URL admission rule.
func (p *Pool) shouldCrawl(rawURL string) bool {
	if len(p.config.ExcludePatterns) > 0 {
		for _, pattern := range p.config.ExcludePatterns {
			if matchPattern(pattern, rawURL) {
				return false
			}
		}
	}
	if len(p.config.IncludePatterns) == 0 {
		return true
	}
	for _, pattern := range p.config.IncludePatterns {
		if matchPattern(pattern, rawURL) {
			return true
		}
	}
	return false
}

// matchPattern reports whether pattern (a regular expression) matches
// somewhere in rawURL. An invalid pattern never matches.
func matchPattern(pattern, rawURL string) bool {
	matched, err := regexp.MatchString(pattern, rawURL)
	if err != nil {
		return false
	}
	return matched
}

func hostnameOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
