package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/searchengine/searchengine/internal/indexqueue"
	"github.com/searchengine/searchengine/internal/pagerank"
)

// IndexerAPI exposes index job submission, job status, queue status, and
// on-demand PageRank recomputation over HTTP.
type IndexerAPI struct {
	queue         indexqueue.Queue
	pagerankStore pagerank.Store
	pagerankCfg   pagerank.Config
	apiKey        string
}

// NewIndexerAPI builds an IndexerAPI. apiKey gates POST /page: an empty
// apiKey refuses every submission rather than accepting one unauthenticated.
func NewIndexerAPI(queue indexqueue.Queue, store pagerank.Store, cfg pagerank.Config, apiKey string) *IndexerAPI {
	return &IndexerAPI{queue: queue, pagerankStore: store, pagerankCfg: cfg, apiKey: apiKey}
}

// Router builds the mux.Router for the indexer service.
func (a *IndexerAPI) Router(basePath string) http.Handler {
	router := mux.NewRouter()
	base := router.PathPrefix(basePath).Subrouter()

	base.HandleFunc("/status", a.status).Methods(http.MethodGet)
	base.HandleFunc("/page", a.submitPage).Methods(http.MethodPost)
	base.HandleFunc("/jobs/{job_id}", a.jobStatus).Methods(http.MethodGet)
	base.HandleFunc("/pagerank/run", a.runPageRank).Methods(http.MethodPost)
	base.HandleFunc("/pagerank/domain/run", a.runDomainPageRank).Methods(http.MethodPost)
	base.HandleFunc("/health", a.health).Methods(http.MethodGet)

	return corsMiddleware(loggingMiddleware(router))
}

func (a *IndexerAPI) status(w http.ResponseWriter, r *http.Request) {
	stats, err := a.queue.Stats()
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to load queue status", err)
		return
	}
	sendJSON(w, http.StatusOK, stats)
}

// checkAPIKey compares the request's X-API-Key header against the
// configured key in constant time, refusing every request when no key is
// configured.
func (a *IndexerAPI) checkAPIKey(r *http.Request) bool {
	if a.apiKey == "" {
		return false
	}
	got := r.Header.Get("X-API-Key")
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.apiKey)) == 1
}

type submitPageRequest struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Outlinks []string `json:"outlinks,omitempty"`
}

// submitPage implements POST /page: enqueues a crawled page for indexing,
// gated by a constant-time X-API-Key check.
func (a *IndexerAPI) submitPage(w http.ResponseWriter, r *http.Request) {
	if !a.checkAPIKey(r) {
		sendError(w, http.StatusUnauthorized, "invalid or missing X-API-Key", nil)
		return
	}

	var body submitPageRequest
	if err := decodeJSON(r, &body); err != nil {
		sendError(w, http.StatusUnprocessableEntity, "invalid request body", err)
		return
	}
	if body.URL == "" {
		sendError(w, http.StatusUnprocessableEntity, "url must not be empty", nil)
		return
	}

	result, err := a.queue.Enqueue(body.URL, body.Title, body.Content, body.Outlinks)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to enqueue page", err)
		return
	}
	sendJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":       result.JobID,
		"queued":       true,
		"deduplicated": !result.Created,
	})
}

// jobStatus implements GET /jobs/{job_id}.
func (a *IndexerAPI) jobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]
	job, err := a.queue.JobStatus(jobID)
	if err != nil {
		sendError(w, http.StatusNotFound, "job not found", err)
		return
	}
	sendJSON(w, http.StatusOK, job)
}

func (a *IndexerAPI) runPageRank(w http.ResponseWriter, r *http.Request) {
	n, err := pagerank.RunPageRank(a.pagerankStore, a.pagerankCfg)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "pagerank run failed", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]int{"pages_scored": n})
}

func (a *IndexerAPI) runDomainPageRank(w http.ResponseWriter, r *http.Request) {
	n, err := pagerank.RunDomainPageRank(a.pagerankStore, a.pagerankCfg)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "domain pagerank run failed", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]int{"domains_scored": n})
}

// health implements GET /health: queue counts by status plus the age of the
// oldest pending job, so an operator can see backlog growth without
// querying the store directly.
func (a *IndexerAPI) health(w http.ResponseWriter, r *http.Request) {
	stats, err := a.queue.Stats()
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to load queue status", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":                 "ok",
		"pending":                stats.Pending,
		"processing":             stats.Processing,
		"done":                   stats.Done,
		"failed_retry":           stats.FailedRetry,
		"failed_permanent":       stats.FailedPermanent,
		"oldest_pending_seconds": stats.OldestPendingSeconds,
	})
}
