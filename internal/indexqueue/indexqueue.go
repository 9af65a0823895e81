// Package indexqueue is a durable, dedupe-keyed work queue that sits between
// the Crawl Worker and the Index Writer, giving indexing at-least-once
// delivery with lease-based visibility and bounded exponential-backoff
// retries. Grounded on the claim/lease arithmetic of the reference job
// service, generalized to Go's explicit interface + struct style.
package indexqueue

import "time"

// Job status values.
const (
	StatusPending         = "pending"
	StatusProcessing      = "processing"
	StatusDone            = "done"
	StatusFailedRetry     = "failed_retry"
	StatusFailedPermanent = "failed_permanent"
)

// Job is one row of the index job queue.
type Job struct {
	JobID        string
	URL          string
	Title        string
	Content      string
	Outlinks     []string
	ContentHash  string
	DedupeKey    string
	Status       string
	RetryCount   int
	MaxRetries   int
	AvailableAt  time.Time
	LeaseUntil   time.Time
	WorkerID     string
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EnqueueResult reports whether Enqueue created a new job or hit the
// dedupe key of an existing one.
type EnqueueResult struct {
	JobID   string
	Created bool
}

// BackoffConfig parameterizes the retry/backoff arithmetic shared by
// mark_failure and recover_expired_leases.
type BackoffConfig struct {
	BaseSeconds       float64
	MaxBackoffSeconds float64
	MaxRetries        int
	LeaseSeconds      int
}

// DefaultBackoffConfig matches the reference indexer's defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		BaseSeconds:       30,
		MaxBackoffSeconds: 3600,
		MaxRetries:        5,
		LeaseSeconds:      300,
	}
}

// RetryDelaySeconds computes the exponential backoff delay for the
// retryCount-th failure (1-indexed), capped at cfg.MaxBackoffSeconds.
func RetryDelaySeconds(cfg BackoffConfig, retryCount int) float64 {
	delay := cfg.BaseSeconds
	for i := 1; i < retryCount; i++ {
		delay *= 2
	}
	if delay > cfg.MaxBackoffSeconds {
		return cfg.MaxBackoffSeconds
	}
	return delay
}

// Stats summarizes the queue by status plus the age of the oldest pending job.
type Stats struct {
	Pending             int
	Processing          int
	Done                int
	FailedRetry         int
	FailedPermanent     int
	OldestPendingSeconds float64
}

// Queue is the contract the indexer service's HTTP handler and its worker
// pool depend on.
type Queue interface {
	// Enqueue computes content_hash and dedupe_key and inserts a new job,
	// or returns the existing job_id with Created=false on a dedupe hit.
	Enqueue(url, title, content string, outlinks []string) (EnqueueResult, error)

	// Claim recovers expired leases, then atomically selects up to limit
	// pending/failed_retry rows with available_at <= now, oldest first,
	// marking each processing with a fresh lease owned by workerID.
	Claim(limit int, leaseSeconds int, workerID string) ([]Job, error)

	MarkDone(jobID string) error

	// MarkFailure increments retry_count and transitions to failed_retry
	// (with backoff) or failed_permanent once max_retries is reached.
	MarkFailure(jobID string, errMsg string) error

	// RecoverExpiredLeases treats every processing row whose lease has
	// expired as a failure and applies the same retry arithmetic.
	RecoverExpiredLeases() (int, error)

	JobStatus(jobID string) (Job, error)
	Stats() (Stats, error)

	Close() error
}
