package scheduler

import (
	"testing"
	"time"

	"github.com/searchengine/searchengine/internal/urlstore"
)

type fakeStore struct {
	urlstore.Store
	batches [][]urlstore.Item
	calls   int
}

func (f *fakeStore) ClaimBatch(n int) ([]urlstore.Item, error) {
	if f.calls >= len(f.batches) {
		return nil, nil
	}
	b := f.batches[f.calls]
	f.calls++
	return b, nil
}

func (f *fakeStore) Stats() (urlstore.Stats, error) {
	return urlstore.Stats{Pending: 3}, nil
}

func TestSchedulerNextReturnsReadyItem(t *testing.T) {
	store := &fakeStore{batches: [][]urlstore.Item{
		{{URL: "https://a.com/1", Domain: "a.com"}},
	}}
	s := New(store, DefaultConfig())

	item, ok, err := s.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !ok {
		t.Fatal("Next() ok = false, want true")
	}
	if item.URL != "https://a.com/1" {
		t.Fatalf("Next() = %v", item)
	}
}

func TestSchedulerRespectsConcurrencyLimit(t *testing.T) {
	store := &fakeStore{batches: [][]urlstore.Item{
		{
			{URL: "https://a.com/1", Domain: "a.com"},
			{URL: "https://a.com/2", Domain: "a.com"},
			{URL: "https://a.com/3", Domain: "a.com"},
		},
	}}
	cfg := DefaultConfig()
	cfg.DomainMaxConcurrent = 2
	cfg.DomainMinInterval = 0
	s := New(store, cfg)

	first, ok, _ := s.Next()
	if !ok {
		t.Fatal("expected first item")
	}
	s.RecordStart(first.Domain)

	second, ok, _ := s.Next()
	if !ok {
		t.Fatal("expected second item")
	}
	s.RecordStart(second.Domain)

	_, ok, _ = s.Next()
	if ok {
		t.Fatal("Next() should be blocked once concurrency limit is reached")
	}
}

func TestSchedulerRecordCompleteBackoffOnFailure(t *testing.T) {
	store := &fakeStore{}
	s := New(store, DefaultConfig())

	s.RecordStart("a.com")
	s.RecordComplete("a.com", false)

	s.mu.Lock()
	g := s.gates["a.com"]
	s.mu.Unlock()

	if g.failStreak != 1 {
		t.Fatalf("failStreak = %d, want 1", g.failStreak)
	}
	if !g.nextFetchAt.After(time.Now()) {
		t.Fatal("nextFetchAt should be in the future after a failure")
	}
}

func TestSchedulerRecordCompleteResetsOnSuccess(t *testing.T) {
	store := &fakeStore{}
	s := New(store, DefaultConfig())

	s.RecordStart("a.com")
	s.RecordComplete("a.com", false)
	s.RecordStart("a.com")
	s.RecordComplete("a.com", true)

	s.mu.Lock()
	g := s.gates["a.com"]
	s.mu.Unlock()

	if g.failStreak != 0 {
		t.Fatalf("failStreak = %d, want 0 after success", g.failStreak)
	}
}

func TestSchedulerSetCrawlDelayIsMonotone(t *testing.T) {
	store := &fakeStore{}
	s := New(store, DefaultConfig())

	s.SetCrawlDelay("a.com", 5*time.Second)
	s.SetCrawlDelay("a.com", 2*time.Second)

	s.mu.Lock()
	g := s.gates["a.com"]
	s.mu.Unlock()

	if g.minInterval != 5*time.Second {
		t.Fatalf("minInterval = %v, want 5s (should not shrink)", g.minInterval)
	}
}

func TestSchedulerReturnToBufferMakesItemAvailableAgain(t *testing.T) {
	store := &fakeStore{}
	s := New(store, DefaultConfig())

	item := urlstore.Item{URL: "https://a.com/retry", Domain: "a.com"}
	s.ReturnToBuffer(item)

	if s.BufferSize() != 1 {
		t.Fatalf("BufferSize() = %d, want 1", s.BufferSize())
	}

	got, ok, err := s.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", got, ok, err)
	}
	if got.URL != item.URL {
		t.Fatalf("Next() = %v, want %v", got, item)
	}
}

func TestSchedulerNextBatchDrainsMultipleStoreBatches(t *testing.T) {
	store := &fakeStore{batches: [][]urlstore.Item{
		{{URL: "https://a.com/1", Domain: "a.com"}},
		{{URL: "https://b.com/1", Domain: "b.com"}},
	}}
	cfg := DefaultConfig()
	cfg.DomainMinInterval = 0
	s := New(store, cfg)

	items, err := s.NextBatch(2)
	if err != nil {
		t.Fatalf("NextBatch() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("NextBatch() returned %d items, want 2", len(items))
	}
}
