package crawlworker

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyRunning is returned by Start when the pool is already running.
var ErrAlreadyRunning = errors.New("crawlworker: pool already running")

// ErrNotRunning is returned by Stop when the pool is not running.
var ErrNotRunning = errors.New("crawlworker: pool not running")

// Status reports a Controller's point-in-time view of its Pool.
type Status struct {
	Running     bool
	Concurrency int
}

// Controller wraps a Pool with an external start/stop/status surface, so a
// single blocking Run call can be driven by an HTTP control endpoint
// instead of only by the process's own main goroutine.
type Controller struct {
	pool *Pool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewController builds a Controller over pool. pool is not started until
// Start is called.
func NewController(pool *Pool) *Controller {
	return &Controller{pool: pool}
}

// Start spawns the pool's Run loop at the given concurrency (the pool's
// configured default if concurrency <= 0), returning ErrAlreadyRunning if
// a run is already in progress.
func (c *Controller) Start(concurrency int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}
	if concurrency > 0 {
		c.pool.config.Concurrency = concurrency
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	done := c.done
	go func() {
		defer close(done)
		_ = c.pool.Run(ctx)
	}()
	return nil
}

// Stop cancels the running pool. When graceful is true it blocks until
// every in-flight worker has returned; when false it signals cancellation
// and returns immediately, letting workers drain in the background.
func (c *Controller) Stop(graceful bool) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	cancel := c.cancel
	done := c.done
	c.running = false
	c.mu.Unlock()

	cancel()
	if graceful {
		<-done
	}
	return nil
}

// Status reports whether the pool is currently running and at what
// concurrency it was started.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Running: c.running, Concurrency: c.pool.config.Concurrency}
}
