// Package robots answers "can I fetch this URL" against a per-host cache of
// parsed robots.txt files, and surfaces the declared Crawl-delay so the
// Scheduler can widen a host's rate-limit floor accordingly.
package robots

import (
	"container/list"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/searchengine/searchengine/internal/fetch"
)

// maxCacheEntries bounds how many hosts' parsed robots.txt rules are kept
// in memory at once; the least-recently-used host is evicted first.
const maxCacheEntries = 10000

// maxConsecutiveFailures is how many robots.txt fetch failures in a row
// block a host before it is given another chance.
const maxConsecutiveFailures = 3

// entry caches one host's parsed rules plus when they were fetched, so a
// stale entry can be refreshed without holding up every caller.
type entry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// Checker answers robots.txt questions for a fixed user agent, fetching
// and caching rules per host.
type Checker struct {
	client      *fetch.Client
	userAgent   string
	ignore      bool
	cacheTTL    time.Duration
	blockedTTL  time.Duration

	mu       sync.RWMutex
	cache    map[string]entry
	lru      *list.List
	lruElems map[string]*list.Element
	failures map[string]int
	blocked  map[string]time.Time
}

// New builds a Checker. If ignore is true, every Allowed call short-circuits
// to true without ever fetching robots.txt (used for trusted-seed crawls).
func New(client *fetch.Client, userAgent string, ignore bool) *Checker {
	return &Checker{
		client:     client,
		userAgent:  userAgent,
		ignore:     ignore,
		cacheTTL:   24 * time.Hour,
		blockedTTL: time.Hour,
		cache:      make(map[string]entry),
		lru:        list.New(),
		lruElems:   make(map[string]*list.Element),
		failures:   make(map[string]int),
		blocked:    make(map[string]time.Time),
	}
}

// Allowed reports whether rawURL may be fetched under the cached robots.txt
// for its host. A host whose robots.txt could not be fetched is treated as
// fully allowed, matching the reference crawler's fail-open behavior, except
// that a host blocked by BlockHost or by maxConsecutiveFailures failed
// fetches in a row is denied until its block expires.
func (c *Checker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	if c.ignore {
		return true, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: invalid url: %w", err)
	}

	if c.isBlocked(parsed.Host) {
		return false, nil
	}

	data, err := c.rulesFor(ctx, parsed.Scheme, parsed.Host)
	if err != nil {
		return true, nil
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}

	group := data.FindGroup(c.userAgent)
	return group.Test(path), nil
}

// CrawlDelay returns the Crawl-delay declared for host's user-agent group,
// or zero if none is declared or robots.txt has not been fetched yet.
func (c *Checker) CrawlDelay(host string) time.Duration {
	c.mu.RLock()
	e, ok := c.cache[host]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.data.FindGroup(c.userAgent).CrawlDelay
}

// BlockHost marks host as unfetchable for blockedTTL, used after repeated
// fetch failures so the crawler stops retrying a dead robots.txt endpoint
// on every single URL.
func (c *Checker) BlockHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked[host] = time.Now().Add(c.blockedTTL)
}

func (c *Checker) isBlocked(host string) bool {
	c.mu.RLock()
	until, ok := c.blocked[host]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(until) {
		c.mu.Lock()
		delete(c.blocked, host)
		c.mu.Unlock()
		return false
	}
	return true
}

func (c *Checker) rulesFor(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	c.mu.Lock()
	e, ok := c.cache[host]
	if ok && time.Since(e.fetchedAt) < c.cacheTTL {
		c.touch(host)
		c.mu.Unlock()
		return e.data, nil
	}
	c.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)
	resp, err := c.client.Get(ctx, robotsURL)
	if err != nil {
		c.recordFailure(host)
		return nil, err
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		c.recordFailure(host)
		return nil, err
	}

	c.mu.Lock()
	c.cache[host] = entry{data: data, fetchedAt: time.Now()}
	c.touch(host)
	c.evictIfOverCapacity()
	c.failures[host] = 0
	c.mu.Unlock()

	return data, nil
}

// recordFailure increments host's consecutive-failure count and blocks it
// for blockedTTL once the threshold is reached, so a dead robots.txt
// endpoint is not retried on every single URL from that host.
func (c *Checker) recordFailure(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[host]++
	if c.failures[host] >= maxConsecutiveFailures {
		c.blocked[host] = time.Now().Add(c.blockedTTL)
		c.failures[host] = 0
	}
}

// touch marks host as most-recently-used. Caller must hold c.mu.
func (c *Checker) touch(host string) {
	if elem, ok := c.lruElems[host]; ok {
		c.lru.MoveToFront(elem)
		return
	}
	c.lruElems[host] = c.lru.PushFront(host)
}

// evictIfOverCapacity drops the least-recently-used cached host once the
// cache exceeds maxCacheEntries. Caller must hold c.mu.
func (c *Checker) evictIfOverCapacity() {
	for len(c.cache) > maxCacheEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			return
		}
		host := oldest.Value.(string)
		c.lru.Remove(oldest)
		delete(c.lruElems, host)
		delete(c.cache, host)
	}
}
