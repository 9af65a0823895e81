package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/searchengine/searchengine/internal/fetch"
)

func newTestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
}

func TestCheckerAllowedDefaultsToTrueWhenDisallowedElsewhere(t *testing.T) {
	ts := newTestServer(t, "User-agent: *\nDisallow: /private\n")
	defer ts.Close()

	client := fetch.New(fetch.Config{Timeout: 5 * time.Second})
	c := New(client, "TestBot", false)

	ok, err := c.Allowed(context.Background(), ts.URL+"/public/page")
	if err != nil {
		t.Fatalf("Allowed() error = %v", err)
	}
	if !ok {
		t.Fatal("Allowed() = false, want true for unmatched path")
	}
}

func TestCheckerAllowedFalseForDisallowedPath(t *testing.T) {
	ts := newTestServer(t, "User-agent: *\nDisallow: /private\n")
	defer ts.Close()

	client := fetch.New(fetch.Config{Timeout: 5 * time.Second})
	c := New(client, "TestBot", false)

	ok, err := c.Allowed(context.Background(), ts.URL+"/private/page")
	if err != nil {
		t.Fatalf("Allowed() error = %v", err)
	}
	if ok {
		t.Fatal("Allowed() = true, want false for disallowed path")
	}
}

func TestCheckerIgnoreFlagBypassesFetch(t *testing.T) {
	client := fetch.New(fetch.Config{Timeout: 5 * time.Second})
	c := New(client, "TestBot", true)

	ok, err := c.Allowed(context.Background(), "http://nonexistent.invalid/private")
	if err != nil {
		t.Fatalf("Allowed() error = %v", err)
	}
	if !ok {
		t.Fatal("Allowed() = false, want true when ignore is set")
	}
}

func TestCheckerCrawlDelayFromRobotsTxt(t *testing.T) {
	ts := newTestServer(t, "User-agent: *\nCrawl-delay: 5\n")
	defer ts.Close()

	client := fetch.New(fetch.Config{Timeout: 5 * time.Second})
	c := New(client, "TestBot", false)

	if _, err := c.Allowed(context.Background(), ts.URL+"/page"); err != nil {
		t.Fatalf("Allowed() error = %v", err)
	}

	host := ts.Listener.Addr().String()
	delay := c.CrawlDelay(host)
	if delay != 5*time.Second {
		t.Fatalf("CrawlDelay() = %v, want 5s", delay)
	}
}

func TestCheckerAutoBlocksAfterConsecutiveFailures(t *testing.T) {
	client := fetch.New(fetch.Config{Timeout: 5 * time.Second})
	c := New(client, "TestBot", false)

	host := "unreachable.invalid"
	for i := 0; i < maxConsecutiveFailures; i++ {
		if _, err := c.Allowed(context.Background(), "http://"+host+"/page"); err != nil {
			t.Fatalf("Allowed() error = %v", err)
		}
	}

	if !c.isBlocked(host) {
		t.Fatal("isBlocked() = false after exhausting consecutive failure threshold, want true")
	}
}

func TestCheckerEvictsLeastRecentlyUsedOverCapacity(t *testing.T) {
	ts := newTestServer(t, "User-agent: *\n")
	defer ts.Close()

	client := fetch.New(fetch.Config{Timeout: 5 * time.Second})
	c := New(client, "TestBot", false)

	host := ts.Listener.Addr().String()
	if _, err := c.Allowed(context.Background(), ts.URL+"/page"); err != nil {
		t.Fatalf("Allowed() error = %v", err)
	}
	if _, ok := c.cache[host]; !ok {
		t.Fatal("expected host cached after successful fetch")
	}

	for i := 0; i < maxCacheEntries; i++ {
		c.mu.Lock()
		c.cache[fmt.Sprintf("filler-%d.example", i)] = entry{fetchedAt: time.Now()}
		c.touch(fmt.Sprintf("filler-%d.example", i))
		c.evictIfOverCapacity()
		c.mu.Unlock()
	}

	c.mu.RLock()
	_, stillCached := c.cache[host]
	c.mu.RUnlock()
	if stillCached {
		t.Fatal("expected least-recently-used host evicted once cache exceeded capacity")
	}
}

func TestCheckerBlockHostDeniesUntilExpiry(t *testing.T) {
	client := fetch.New(fetch.Config{Timeout: 5 * time.Second})
	c := New(client, "TestBot", false)
	c.blockedTTL = time.Hour

	c.BlockHost("blocked.example")

	ok, err := c.Allowed(context.Background(), "http://blocked.example/page")
	if err != nil {
		t.Fatalf("Allowed() error = %v", err)
	}
	if ok {
		t.Fatal("Allowed() = true, want false for a blocked host")
	}
}
