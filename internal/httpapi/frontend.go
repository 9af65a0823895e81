package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/searchengine/searchengine/internal/analytics"
	"github.com/searchengine/searchengine/internal/analyzer"
	"github.com/searchengine/searchengine/internal/query"
	"github.com/searchengine/searchengine/internal/snippet"
)

// modeSearcher is satisfied by query.Searcher, query.SemanticSearcher, and
// query.HybridSearcher, letting FrontendAPI dispatch on a query string
// without three near-identical handler bodies.
type modeSearcher interface {
	Search(q string, limit, page int) (query.Result, error)
}

// FrontendAPI exposes the public search endpoint plus click tracking and
// the quality dashboard summary.
type FrontendAPI struct {
	bm25          modeSearcher
	semantic      modeSearcher
	hybrid        modeSearcher
	recorder      analytics.Recorder
	sessionSalt   string
	snippetWindow int
	crawlerURL    string
	httpClient    *http.Client
}

// NewFrontendAPI builds a FrontendAPI. semantic may be nil if no embedding
// pipeline is configured; requests for mode=semantic then fall back to
// bm25. crawlerBaseURL is the crawler service's base URL, used to proxy
// GET /predict to its scoring endpoint; it may be empty, in which case
// /predict always reports 503.
func NewFrontendAPI(bm25, semantic, hybrid modeSearcher, recorder analytics.Recorder, sessionSalt, crawlerBaseURL string) *FrontendAPI {
	return &FrontendAPI{
		bm25:          bm25,
		semantic:      semantic,
		hybrid:        hybrid,
		recorder:      recorder,
		sessionSalt:   sessionSalt,
		snippetWindow: 150,
		crawlerURL:    crawlerBaseURL,
		httpClient:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Router builds the mux.Router for the frontend service.
func (a *FrontendAPI) Router(basePath string) http.Handler {
	router := mux.NewRouter()
	base := router.PathPrefix(basePath).Subrouter()

	base.HandleFunc("/search", a.search).Methods(http.MethodGet)
	base.HandleFunc("/search/click", a.click).Methods(http.MethodPost)
	base.HandleFunc("/quality/summary", a.quality).Methods(http.MethodGet)
	base.HandleFunc("/predict", a.predict).Methods(http.MethodGet)
	base.HandleFunc("/health", a.health).Methods(http.MethodGet)

	return corsMiddleware(loggingMiddleware(router))
}

type searchHitResponse struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

type searchResponse struct {
	RequestID string              `json:"request_id"`
	Query     string              `json:"query"`
	Mode      string              `json:"mode"`
	Total     int                 `json:"total"`
	Page      int                 `json:"page"`
	PerPage   int                 `json:"per_page"`
	LastPage  int                 `json:"last_page"`
	Hits      []searchHitResponse `json:"hits"`
}

func (a *FrontendAPI) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	mode := r.URL.Query().Get("mode")
	limit := intParam(r, "limit", 10)
	page := intParam(r, "page", 1)

	searcher := a.resolveSearcher(mode)
	result, err := searcher.Search(q, limit, page)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "search failed", err)
		return
	}

	hits := make([]searchHitResponse, 0, len(result.Hits))
	terms := analyzer.Tokenize(q)
	for i, hit := range result.Hits {
		s := snippet.Generate(hit.Content, terms, a.snippetWindow)
		hits = append(hits, searchHitResponse{
			URL:     hit.URL,
			Title:   hit.Title,
			Snippet: s.Text,
			Score:   hit.Score,
			Rank:    i + 1,
		})
	}

	requestID := RequestID(r.Context())

	if a.recorder != nil {
		urls := make([]string, len(hits))
		for i, h := range hits {
			urls[i] = h.URL
		}
		sessionHash := analytics.SessionHash(a.sessionSalt, clientIdentity(r))
		_ = a.recorder.RecordImpression(requestID, sessionHash, q, urls, mode)
	}

	sendJSON(w, http.StatusOK, searchResponse{
		RequestID: requestID,
		Query:     result.Query,
		Mode:      mode,
		Total:     result.Total,
		Page:      result.Page,
		PerPage:   result.PerPage,
		LastPage:  result.LastPage,
		Hits:      hits,
	})
}

func (a *FrontendAPI) resolveSearcher(mode string) modeSearcher {
	switch mode {
	case "semantic":
		if a.semantic != nil {
			return a.semantic
		}
		return a.bm25
	case "hybrid":
		return a.hybrid
	default:
		return a.bm25
	}
}

type clickRequest struct {
	RequestID string `json:"request_id"`
	Query     string `json:"query"`
	URL       string `json:"url"`
	Rank      int    `json:"rank"`
}

func (a *FrontendAPI) click(w http.ResponseWriter, r *http.Request) {
	var body clickRequest
	if err := decodeJSON(r, &body); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if a.recorder == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sessionHash := analytics.SessionHash(a.sessionSalt, clientIdentity(r))
	if err := a.recorder.RecordClick(body.RequestID, sessionHash, body.Query, body.URL, body.Rank); err != nil {
		sendError(w, http.StatusInternalServerError, "failed to record click", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *FrontendAPI) quality(w http.ResponseWriter, r *http.Request) {
	if a.recorder == nil {
		sendError(w, http.StatusServiceUnavailable, "analytics not configured", nil)
		return
	}
	var window time.Duration
	switch r.URL.Query().Get("window") {
	case "", "24h":
		window = analytics.Window24h
	case "7d":
		window = analytics.Window7d
	default:
		sendError(w, http.StatusBadRequest, "window must be 24h or 7d", nil)
		return
	}
	summary, err := a.recorder.QualitySummary(window)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to load quality summary", err)
		return
	}
	sendJSON(w, http.StatusOK, summary)
}

// predict proxies GET /predict?url=&parent_score=&visits= to the crawler
// service's POST /score/predict, letting the frontend surface the outlink
// scoring function without duplicating its logic.
func (a *FrontendAPI) predict(w http.ResponseWriter, r *http.Request) {
	if a.crawlerURL == "" {
		sendError(w, http.StatusServiceUnavailable, "crawler service not configured", nil)
		return
	}

	q := r.URL.Query()
	target := q.Get("url")
	if target == "" {
		sendError(w, http.StatusBadRequest, "url query parameter is required", nil)
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"url":          target,
		"parent_score": floatParam(r, "parent_score", 0),
		"visits":       intParam(r, "visits", 0),
	})
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to build proxy request", err)
		return
	}

	proxyURL, err := url.JoinPath(a.crawlerURL, "score", "predict")
	if err != nil {
		sendError(w, http.StatusInternalServerError, "invalid crawler base url", err)
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, proxyURL, bytes.NewReader(payload))
	if err != nil {
		sendError(w, http.StatusInternalServerError, "failed to build proxy request", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		sendError(w, http.StatusBadGateway, "crawler service unreachable", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		sendError(w, http.StatusBadGateway, "failed to read crawler response", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

func (a *FrontendAPI) health(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func clientIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
