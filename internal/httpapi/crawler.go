package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/searchengine/searchengine/internal/crawlworker"
	"github.com/searchengine/searchengine/internal/scoring"
	"github.com/searchengine/searchengine/internal/seedimport"
	"github.com/searchengine/searchengine/internal/urlstore"
)

// CrawlerAPI exposes crawl queue status, seed management, worker-pool
// control, and the scoring function over HTTP.
type CrawlerAPI struct {
	store  urlstore.Store
	seeds  urlstore.SeedStore
	worker *crawlworker.Controller
}

// NewCrawlerAPI builds a CrawlerAPI over store/seeds, controlling worker
// through the given Controller.
func NewCrawlerAPI(store urlstore.Store, seeds urlstore.SeedStore, worker *crawlworker.Controller) *CrawlerAPI {
	return &CrawlerAPI{store: store, seeds: seeds, worker: worker}
}

// Router builds the mux.Router for the crawler service, with CORS and
// access-log middleware applied.
func (a *CrawlerAPI) Router(basePath string) http.Handler {
	router := mux.NewRouter()
	base := router.PathPrefix(basePath).Subrouter()

	base.HandleFunc("/urls", a.addURLs).Methods(http.MethodPost)
	base.HandleFunc("/status", a.status).Methods(http.MethodGet)
	base.HandleFunc("/domains", a.domainCounts).Methods(http.MethodGet)
	base.HandleFunc("/queue", a.queue).Methods(http.MethodGet)
	base.HandleFunc("/history", a.historyQuery).Methods(http.MethodGet)
	base.HandleFunc("/seeds", a.listSeeds).Methods(http.MethodGet)
	base.HandleFunc("/seeds", a.addSeeds).Methods(http.MethodPost)
	base.HandleFunc("/seeds", a.removeSeeds).Methods(http.MethodDelete)
	base.HandleFunc("/seeds/requeue", a.requeueSeeds).Methods(http.MethodPost)
	base.HandleFunc("/seeds/import-tranco", a.importTranco).Methods(http.MethodPost)
	base.HandleFunc("/urls/{url}/history", a.urlHistory).Methods(http.MethodGet)
	base.HandleFunc("/worker/start", a.workerStart).Methods(http.MethodPost)
	base.HandleFunc("/worker/stop", a.workerStop).Methods(http.MethodPost)
	base.HandleFunc("/worker/status", a.workerStatus).Methods(http.MethodGet)
	base.HandleFunc("/score/predict", a.scorePredict).Methods(http.MethodPost)
	base.HandleFunc("/health", a.health).Methods(http.MethodGet)

	return corsMiddleware(loggingMiddleware(router))
}

func (a *CrawlerAPI) status(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.Stats()
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to load queue status", err)
		return
	}
	sendJSON(w, http.StatusOK, stats)
}

func (a *CrawlerAPI) domainCounts(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 20)
	counts, err := a.store.DomainCounts(limit)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to load domain counts", err)
		return
	}
	sendJSON(w, http.StatusOK, counts)
}

type seedsRequest struct {
	URLs []string `json:"urls"`
}

func (a *CrawlerAPI) listSeeds(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 100)
	seeds, err := a.seeds.ListSeeds(limit)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to list seeds", err)
		return
	}
	sendJSON(w, http.StatusOK, seeds)
}

func (a *CrawlerAPI) addSeeds(w http.ResponseWriter, r *http.Request) {
	var body seedsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	count, err := a.seeds.AddSeeds(body.URLs)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to add seeds", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]int{"added": count})
}

func (a *CrawlerAPI) removeSeeds(w http.ResponseWriter, r *http.Request) {
	var body seedsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	count, err := a.seeds.RemoveSeeds(body.URLs)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to remove seeds", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]int{"removed": count})
}

func (a *CrawlerAPI) requeueSeeds(w http.ResponseWriter, r *http.Request) {
	priority := floatParam(r, "priority", 100)
	count, err := a.seeds.Requeue(priority)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to requeue seeds", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]int{"requeued": count})
}

func (a *CrawlerAPI) urlHistory(w http.ResponseWriter, r *http.Request) {
	url := mux.Vars(r)["url"]
	limit := intParam(r, "limit", 20)
	history, err := a.store.History(url, limit)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to load url history", err)
		return
	}
	sendJSON(w, http.StatusOK, history)
}

func (a *CrawlerAPI) health(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type addURLsRequest struct {
	URLs     []string `json:"urls"`
	Priority float64  `json:"priority"`
}

// addURLs implements POST /urls: validates every URL has an http(s) scheme
// and a host before handing the batch to the URL Store.
func (a *CrawlerAPI) addURLs(w http.ResponseWriter, r *http.Request) {
	var body addURLsRequest
	if err := decodeJSON(r, &body); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(body.URLs) == 0 {
		sendError(w, http.StatusBadRequest, "urls must not be empty", nil)
		return
	}
	for _, raw := range body.URLs {
		parsed, err := url.Parse(raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			sendError(w, http.StatusBadRequest, "invalid url: "+raw, nil)
			return
		}
	}

	count, err := a.store.AddBatch(body.URLs, body.Priority, "", 0)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to add urls", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]int{"added_count": count})
}

// queue implements GET /queue?limit=n: the top-n pending urls by priority.
func (a *CrawlerAPI) queue(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 20)
	items, err := a.store.Peek(limit)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to peek queue", err)
		return
	}
	sendJSON(w, http.StatusOK, items)
}

// historyQuery implements GET /history?url=&limit=n, the query-parameter
// form of urlHistory.
func (a *CrawlerAPI) historyQuery(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		sendError(w, http.StatusBadRequest, "url query parameter is required", nil)
		return
	}
	limit := intParam(r, "limit", 20)
	history, err := a.store.History(target, limit)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to load url history", err)
		return
	}
	sendJSON(w, http.StatusOK, history)
}

// importTranco implements POST /seeds/import-tranco: the request body is a
// Tranco top-sites ZIP, buffered into memory so it can satisfy
// seedimport.ParseZip's io.ReaderAt requirement.
func (a *CrawlerAPI) importTranco(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		sendError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}
	entries, err := seedimport.ParseZip(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid tranco archive", err)
		return
	}

	urls := seedimport.SeedURLs(entries)
	added, err := a.seeds.AddSeeds(urls)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to add imported seeds", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]int{"imported": len(entries), "added": added})
}

type workerStartRequest struct {
	Concurrency int `json:"concurrency"`
}

// workerStart implements POST /worker/start {concurrency}.
func (a *CrawlerAPI) workerStart(w http.ResponseWriter, r *http.Request) {
	var body workerStartRequest
	if err := decodeOptionalJSON(r, &body); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := a.worker.Start(body.Concurrency); err != nil {
		if err == crawlworker.ErrAlreadyRunning {
			sendError(w, http.StatusConflict, "worker already running", err)
			return
		}
		sendError(w, http.StatusInternalServerError, "failed to start worker", err)
		return
	}
	sendJSON(w, http.StatusOK, workerStatusBody(a.worker.Status()))
}

type workerStopRequest struct {
	Graceful bool `json:"graceful"`
}

// workerStop implements POST /worker/stop {graceful}.
func (a *CrawlerAPI) workerStop(w http.ResponseWriter, r *http.Request) {
	var body workerStopRequest
	if err := decodeOptionalJSON(r, &body); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := a.worker.Stop(body.Graceful); err != nil {
		if err == crawlworker.ErrNotRunning {
			sendError(w, http.StatusConflict, "worker not running", err)
			return
		}
		sendError(w, http.StatusInternalServerError, "failed to stop worker", err)
		return
	}
	sendJSON(w, http.StatusOK, workerStatusBody(a.worker.Status()))
}

// workerStatus implements GET /worker/status.
func (a *CrawlerAPI) workerStatus(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, workerStatusBody(a.worker.Status()))
}

func workerStatusBody(s crawlworker.Status) map[string]any {
	return map[string]any{"running": s.Running, "concurrency": s.Concurrency}
}

type scorePredictRequest struct {
	URL         string  `json:"url"`
	ParentScore float64 `json:"parent_score"`
	Visits      int     `json:"visits"`
}

// scorePredict implements POST /score/predict: a pure, side-effect-free
// evaluation of the outlink scoring function.
func (a *CrawlerAPI) scorePredict(w http.ResponseWriter, r *http.Request) {
	var body scorePredictRequest
	if err := decodeJSON(r, &body); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	score := scoring.URLScore(body.URL, body.ParentScore, body.Visits)
	sendJSON(w, http.StatusOK, map[string]float64{"score": score})
}

func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func floatParam(r *http.Request, name string, def float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}
