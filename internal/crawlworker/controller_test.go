package crawlworker

import (
	"testing"
	"time"

	"github.com/searchengine/searchengine/internal/fetch"
	"github.com/searchengine/searchengine/internal/robots"
	"github.com/searchengine/searchengine/internal/scheduler"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	store := newMemStore()
	sched := scheduler.New(store, scheduler.DefaultConfig())
	client := fetch.New(fetch.Config{})
	checker := robots.New(client, "testbot", false)
	pool := New(DefaultConfig(), sched, checker, client, &memQueue{}, store, nil)
	return NewController(pool)
}

func TestControllerStartReportsRunningStatus(t *testing.T) {
	c := newTestController(t)

	if c.Status().Running {
		t.Fatal("Status().Running = true before Start")
	}
	if err := c.Start(3); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	status := c.Status()
	if !status.Running {
		t.Fatal("Status().Running = false after Start")
	}
	if status.Concurrency != 3 {
		t.Fatalf("Status().Concurrency = %d, want 3", status.Concurrency)
	}

	if err := c.Stop(true); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if c.Status().Running {
		t.Fatal("Status().Running = true after graceful Stop")
	}
}

func TestControllerStartTwiceErrors(t *testing.T) {
	c := newTestController(t)
	if err := c.Start(1); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Stop(true)

	if err := c.Start(1); err != ErrAlreadyRunning {
		t.Fatalf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestControllerStopWithoutStartErrors(t *testing.T) {
	c := newTestController(t)
	if err := c.Stop(false); err != ErrNotRunning {
		t.Fatalf("Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestControllerNonGracefulStopReturnsImmediately(t *testing.T) {
	c := newTestController(t)
	if err := c.Start(1); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	if err := c.Stop(false); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if time.Now().After(deadline) {
		t.Fatal("non-graceful Stop() took too long, want immediate return")
	}
}
