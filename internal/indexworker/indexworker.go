// Package indexworker runs the fixed-concurrency pool that drains the
// Index Job Queue: claim a lease on a batch of jobs, write each into the
// inverted index and the link graph, then mark it done or failed. It is
// the Index Writer's consumer-side counterpart to the Crawl Worker.
package indexworker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/searchengine/searchengine/internal/indexqueue"
	"github.com/searchengine/searchengine/internal/searchindex"
)

// LinkGraph persists the outlink edges a job carries, feeding PageRank.
type LinkGraph interface {
	SaveLinkEdges(src string, dsts []string) error
}

// Config controls pool size and claim/backoff behavior.
type Config struct {
	Concurrency       int
	ClaimBatchSize    int
	LeaseSeconds      int
	StatsFlushEvery   int
	PollInterval      time.Duration
}

// DefaultConfig mirrors the reference indexer's worker pool defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     4,
		ClaimBatchSize:  20,
		LeaseSeconds:    300,
		StatsFlushEvery: 50,
		PollInterval:    500 * time.Millisecond,
	}
}

// Pool is the fixed-concurrency Index Writer worker pool.
type Pool struct {
	config Config
	queue  indexqueue.Queue
	writer searchindex.Writer
	graph  LinkGraph
	logger *slog.Logger

	workerID string

	mu      sync.Mutex
	indexed int

	stopped bool
}

// New builds an indexworker Pool.
func New(cfg Config, queue indexqueue.Queue, writer searchindex.Writer, graph LinkGraph, logger *slog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ClaimBatchSize <= 0 {
		cfg.ClaimBatchSize = 20
	}
	if cfg.LeaseSeconds <= 0 {
		cfg.LeaseSeconds = 300
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		config:   cfg,
		queue:    queue,
		writer:   writer,
		graph:    graph,
		logger:   logger,
		workerID: uuid.NewString(),
	}
}

// Run starts the worker pool and blocks until ctx is cancelled. It
// recovers any jobs stranded under an expired lease from a prior crash
// before the first claim.
func (p *Pool) Run(ctx context.Context) error {
	if n, err := p.queue.RecoverExpiredLeases(); err != nil {
		return err
	} else if n > 0 {
		p.logger.Info("recovered expired index job leases", "count", n)
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
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	wg.Wait()
	return nil
}

func (p *Pool) workerLoop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		jobs, err := p.queue.Claim(p.claimShare(), p.config.LeaseSeconds, p.workerID)
		if err != nil {
			p.logger.Error("claim index jobs failed", "worker", id, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(jobs) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.config.PollInterval):
			}
			continue
		}

		for _, job := range jobs {
			p.process(job)
		}
	}
}

// claimShare splits the pool's total claim batch size evenly across
// workers so no single worker starves the others of leases.
func (p *Pool) claimShare() int {
	n := p.config.ClaimBatchSize / p.config.Concurrency
	if n <= 0 {
		n = 1
	}
	return n
}

// process indexes one job's document, records its outlinks in the link
// graph, and reports the outcome back to the queue.
func (p *Pool) process(job indexqueue.Job) {
	if err := p.writer.IndexDocument(job.URL, job.Title, job.Content); err != nil {
		p.fail(job, err)
		return
	}
	if err := p.graph.SaveLinkEdges(job.URL, job.Outlinks); err != nil {
		p.fail(job, err)
		return
	}
	if err := p.queue.MarkDone(job.JobID); err != nil {
		p.logger.Error("mark index job done failed", "job_id", job.JobID, "error", err)
		return
	}

	p.mu.Lock()
	p.indexed++
	flush := p.indexed%p.config.StatsFlushEvery == 0
	p.mu.Unlock()

	if flush {
		if err := p.writer.UpdateGlobalStats(); err != nil {
			p.logger.Error("update global stats failed", "error", err)
		}
	}
}

func (p *Pool) fail(job indexqueue.Job, cause error) {
	p.logger.Error("index job failed", "job_id", job.JobID, "url", job.URL, "error", cause)
	if err := p.queue.MarkFailure(job.JobID, cause.Error()); err != nil {
		p.logger.Error("mark index job failure failed", "job_id", job.JobID, "error", err)
	}
}
