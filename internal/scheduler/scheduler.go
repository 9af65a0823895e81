// Package scheduler selects which queued URL to crawl next, applying
// per-host rate limiting on top of the URL Store's priority ordering so
// that no single domain is hammered while other hosts sit idle.
package scheduler

import (
	"sync"
	"time"

	"github.com/searchengine/searchengine/internal/urlstore"
)

// MaxBackoff caps the exponential failure backoff applied to a host gate.
const MaxBackoff = 3600 * time.Second

// hostGate tracks the rate-limiting state for a single domain.
type hostGate struct {
	nextFetchAt      time.Time
	inFlight         int
	minInterval      time.Duration
	concurrencyLimit int
	failStreak       int
}

// Config controls default rate limits and how much work the Scheduler
// buffers ahead of the host gates.
type Config struct {
	DomainMinInterval  time.Duration
	DomainMaxConcurrent int
	BatchSize          int
}

// DefaultConfig mirrors the defaults of the reference scheduler.
func DefaultConfig() Config {
	return Config{
		DomainMinInterval:   time.Second,
		DomainMaxConcurrent: 2,
		BatchSize:           100,
	}
}

// Scheduler pulls candidate URLs from a Store and hands out only the ones
// whose host gate currently allows another fetch.
type Scheduler struct {
	store  urlstore.Store
	config Config

	mu     sync.Mutex
	gates  map[string]*hostGate
	buffer []urlstore.Item
}

// New builds a Scheduler over the given Store.
func New(store urlstore.Store, config Config) *Scheduler {
	if config.DomainMinInterval <= 0 {
		config.DomainMinInterval = time.Second
	}
	if config.DomainMaxConcurrent <= 0 {
		config.DomainMaxConcurrent = 2
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Scheduler{
		store:  store,
		config: config,
		gates:  make(map[string]*hostGate),
	}
}

// gate returns (creating if needed) the host gate for domain. Caller must
// hold s.mu.
func (s *Scheduler) gate(domain string) *hostGate {
	g, ok := s.gates[domain]
	if ok {
		return g
	}
	g = &hostGate{
		minInterval:      s.config.DomainMinInterval,
		concurrencyLimit: s.config.DomainMaxConcurrent,
	}
	s.gates[domain] = g
	return g
}

// canFetch is the admission predicate: a domain is ready iff its earliest
// next-fetch time has passed and it has spare concurrency.
func (s *Scheduler) canFetch(domain string, now time.Time) bool {
	g := s.gate(domain)
	if now.Before(g.nextFetchAt) {
		return false
	}
	return g.inFlight < g.concurrencyLimit
}

// Next returns the next URL ready to crawl, or ok=false if none is
// currently ready (buffer exhausted or every host gate closed).
func (s *Scheduler) Next() (urlstore.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if item, idx, found := s.pickFromBuffer(now); found {
		s.removeFromBuffer(idx)
		return item, true, nil
	}

	if len(s.buffer) < s.config.BatchSize/2 {
		items, err := s.store.ClaimBatch(s.config.BatchSize)
		if err != nil {
			return urlstore.Item{}, false, err
		}
		s.buffer = append(s.buffer, items...)
	}

	if item, idx, found := s.pickFromBuffer(now); found {
		s.removeFromBuffer(idx)
		return item, true, nil
	}

	return urlstore.Item{}, false, nil
}

// NextBatch returns up to count URLs ready to crawl right now, pulling
// additional batches from the Store as needed until count is satisfied or
// the Store is exhausted.
func (s *Scheduler) NextBatch(count int) ([]urlstore.Item, error) {
	if count <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	result := make([]urlstore.Item, 0, count)

	result = s.drainBufferInto(result, count, now)

	for len(result) < count {
		items, err := s.store.ClaimBatch(s.config.BatchSize)
		if err != nil {
			return result, err
		}
		if len(items) == 0 {
			break
		}
		s.buffer = append(s.buffer, items...)
		before := len(result)
		result = s.drainBufferInto(result, count, now)
		if len(result) == before {
			break
		}
	}

	return result, nil
}

// pickFromBuffer scans the buffer for the first item whose host gate is
// open. Caller must hold s.mu.
func (s *Scheduler) pickFromBuffer(now time.Time) (urlstore.Item, int, bool) {
	for i, item := range s.buffer {
		if s.canFetch(item.Domain, now) {
			return item, i, true
		}
	}
	return urlstore.Item{}, -1, false
}

func (s *Scheduler) removeFromBuffer(idx int) {
	s.buffer = append(s.buffer[:idx], s.buffer[idx+1:]...)
}

// drainBufferInto greedily moves ready items out of the buffer into dst
// until dst has count entries or the buffer has no more ready items.
func (s *Scheduler) drainBufferInto(dst []urlstore.Item, count int, now time.Time) []urlstore.Item {
	remaining := s.buffer[:0:0]
	for _, item := range s.buffer {
		if len(dst) < count && s.canFetch(item.Domain, now) {
			dst = append(dst, item)
			continue
		}
		remaining = append(remaining, item)
	}
	s.buffer = remaining
	return dst
}

// RecordStart marks a fetch as in flight against domain.
func (s *Scheduler) RecordStart(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate(domain).inFlight++
}

// RecordComplete marks a fetch against domain as finished, resetting the
// gate's backoff on success or doubling it (capped at MaxBackoff) on
// failure.
func (s *Scheduler) RecordComplete(domain string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.gate(domain)
	if g.inFlight > 0 {
		g.inFlight--
	}

	now := time.Now()
	if success {
		g.failStreak = 0
		g.nextFetchAt = now.Add(g.minInterval)
		return
	}

	g.failStreak++
	backoff := g.minInterval * time.Duration(1<<uint(g.failStreak))
	if backoff > MaxBackoff {
		backoff = MaxBackoff
	}
	g.nextFetchAt = now.Add(backoff)
}

// SetCrawlDelay raises domain's minimum interval to delay, but only if
// delay exceeds the current floor (monotone: never shrinks a gate that
// robots.txt already widened).
func (s *Scheduler) SetCrawlDelay(domain string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.gate(domain)
	if delay > g.minInterval {
		g.minInterval = delay
	}
}

// ReturnToBuffer puts item back at the front of the buffer, for retry
// after a transient failure.
func (s *Scheduler) ReturnToBuffer(item urlstore.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append([]urlstore.Item{item}, s.buffer...)
}

// BufferSize reports how many items are currently buffered.
func (s *Scheduler) BufferSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Stats summarizes scheduler state for monitoring.
type Stats struct {
	BufferSize        int
	PendingCount      int
	ActiveDomains     int
	BackedOffDomains  int
}

// Stats returns a point-in-time snapshot of scheduler and store state.
func (s *Scheduler) Stats() (Stats, error) {
	s.mu.Lock()
	now := time.Now()
	active := 0
	backedOff := 0
	for _, g := range s.gates {
		if g.inFlight > 0 {
			active++
		}
		if now.Before(g.nextFetchAt) {
			backedOff++
		}
	}
	bufSize := len(s.buffer)
	s.mu.Unlock()

	storeStats, err := s.store.Stats()
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		BufferSize:       bufSize,
		PendingCount:     storeStats.Pending,
		ActiveDomains:    active,
		BackedOffDomains: backedOff,
	}, nil
}
