package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/searchengine/searchengine/internal/pagerank"
)

func TestIndexerAPIStatusReportsQueueStats(t *testing.T) {
	db := newTestStorage(t)
	if _, err := db.Enqueue("https://a.example/page", "title", "content", nil); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	api := NewIndexerAPI(db, db, pagerank.DefaultConfig(), "test-api-key")
	rec := httptest.NewRecorder()
	api.Router("/api/v1").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["Pending"] != 1 {
		t.Fatalf("body[Pending] = %d, want 1", body["Pending"])
	}
}

func TestIndexerAPIRunPageRankOnEmptyIndexScoresNothing(t *testing.T) {
	db := newTestStorage(t)
	api := NewIndexerAPI(db, db, pagerank.DefaultConfig(), "test-api-key")

	rec := httptest.NewRecorder()
	api.Router("/api/v1").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pagerank/run", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["pages_scored"] != 0 {
		t.Fatalf("pages_scored = %d, want 0 for an empty index", body["pages_scored"])
	}
}

func TestIndexerAPIRunPageRankScoresLinkedDocuments(t *testing.T) {
	db := newTestStorage(t)
	if err := db.IndexDocument("https://a.example/1", "t", "c"); err != nil {
		t.Fatalf("IndexDocument() error: %v", err)
	}
	if err := db.IndexDocument("https://a.example/2", "t", "c"); err != nil {
		t.Fatalf("IndexDocument() error: %v", err)
	}
	if err := db.SaveLinkEdges("https://a.example/1", []string{"https://a.example/2"}); err != nil {
		t.Fatalf("SaveLinkEdges() error: %v", err)
	}

	api := NewIndexerAPI(db, db, pagerank.DefaultConfig(), "test-api-key")
	rec := httptest.NewRecorder()
	api.Router("/api/v1").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pagerank/run", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["pages_scored"] != 2 {
		t.Fatalf("pages_scored = %d, want 2", body["pages_scored"])
	}

	score, err := db.PageRank("https://a.example/2")
	if err != nil {
		t.Fatalf("PageRank() error: %v", err)
	}
	if score <= 0 {
		t.Fatalf("PageRank(linked page) = %v, want > 0", score)
	}
}

func TestIndexerAPIHealth(t *testing.T) {
	db := newTestStorage(t)
	if _, err := db.Enqueue("https://a.example/page", "title", "content", nil); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	api := NewIndexerAPI(db, db, pagerank.DefaultConfig(), "test-api-key")

	rec := httptest.NewRecorder()
	api.Router("/api/v1").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["pending"].(float64) != 1 {
		t.Fatalf("pending = %v, want 1", body["pending"])
	}
	if _, ok := body["oldest_pending_seconds"]; !ok {
		t.Fatalf("response missing oldest_pending_seconds: %v", body)
	}
}

func TestIndexerAPISubmitPageRejectsMissingAPIKey(t *testing.T) {
	db := newTestStorage(t)
	api := NewIndexerAPI(db, db, pagerank.DefaultConfig(), "test-api-key")

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"url":"https://a.example/page","title":"t","content":"c"}`)
	api.Router("/api/v1").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/page", body))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body=%s", rec.Code, rec.Body.String())
	}
}

func TestIndexerAPISubmitPageRejectsEmptyConfiguredKey(t *testing.T) {
	db := newTestStorage(t)
	api := NewIndexerAPI(db, db, pagerank.DefaultConfig(), "")

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"url":"https://a.example/page","title":"t","content":"c"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/page", body)
	req.Header.Set("X-API-Key", "")
	api.Router("/api/v1").ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 when no key is configured, body=%s", rec.Code, rec.Body.String())
	}
}

func TestIndexerAPISubmitPageEnqueuesAndReturnsJobID(t *testing.T) {
	db := newTestStorage(t)
	api := NewIndexerAPI(db, db, pagerank.DefaultConfig(), "test-api-key")

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"url":"https://a.example/page","title":"t","content":"c","outlinks":["https://a.example/other"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/page", body)
	req.Header.Set("X-API-Key", "test-api-key")
	api.Router("/api/v1").ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["queued"] != true {
		t.Fatalf("queued = %v, want true", resp["queued"])
	}
	if resp["deduplicated"] != false {
		t.Fatalf("deduplicated = %v, want false for a new page", resp["deduplicated"])
	}
	jobID, _ := resp["job_id"].(string)
	if jobID == "" {
		t.Fatal("job_id missing from response")
	}

	rec = httptest.NewRecorder()
	api.Router("/api/v1").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("jobStatus() = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var job map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job["URL"] != "https://a.example/page" {
		t.Fatalf("job URL = %v, want https://a.example/page", job["URL"])
	}
}

func TestIndexerAPIJobStatusUnknownJobReturnsNotFound(t *testing.T) {
	db := newTestStorage(t)
	api := NewIndexerAPI(db, db, pagerank.DefaultConfig(), "test-api-key")

	rec := httptest.NewRecorder()
	api.Router("/api/v1").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/does-not-exist", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
