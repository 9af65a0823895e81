package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/searchengine/searchengine/internal/urlstore"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAddInsertsNewPendingURL(t *testing.T) {
	db := openTestDB(t)

	added, err := db.Add("https://a.example/page", 10, "", 0)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if !added {
		t.Fatal("Add() = false, want true for a brand new url")
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Pending != 1 {
		t.Fatalf("Stats().Pending = %d, want 1", stats.Pending)
	}
}

func TestAddSkipsURLAlreadyPendingOrCrawling(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Add("https://a.example/page", 10, "", 0); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	added, err := db.Add("https://a.example/page", 5, "", 0)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if added {
		t.Fatal("Add() = true, want false for an already-pending url")
	}
}

func TestAddRespectsRecrawlThreshold(t *testing.T) {
	db := openTestDB(t)

	if err := db.Record("https://a.example/page", urlstore.StatusDone); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	added, err := db.Add("https://a.example/page", 10, "", time.Hour)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if added {
		t.Fatal("Add() = true, want false: url was recrawled inside the threshold")
	}

	added, err = db.Add("https://a.example/page", 10, "", 0)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if !added {
		t.Fatal("Add() = false, want true: zero threshold always allows restore to pending")
	}
}

func TestClaimBatchMarksClaimedURLsCrawling(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.AddBatch([]string{"https://a.example/1", "https://a.example/2"}, 10, "", 0); err != nil {
		t.Fatalf("AddBatch() error: %v", err)
	}

	items, err := db.ClaimBatch(10)
	if err != nil {
		t.Fatalf("ClaimBatch() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ClaimBatch() returned %d items, want 2", len(items))
	}
	for _, it := range items {
		if it.Status != urlstore.StatusCrawling {
			t.Fatalf("claimed item %q has status %q, want %q", it.URL, it.Status, urlstore.StatusCrawling)
		}
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Crawling != 2 || stats.Pending != 0 {
		t.Fatalf("Stats() = %+v, want Crawling=2 Pending=0", stats)
	}
}

func TestClaimBatchOrdersByPriorityThenAge(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Add("https://a.example/low", 1, "", 0); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if _, err := db.Add("https://a.example/high", 9, "", 0); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	items, err := db.ClaimBatch(10)
	if err != nil {
		t.Fatalf("ClaimBatch() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ClaimBatch() returned %d items, want 2", len(items))
	}
	if items[0].URL != "https://a.example/high" {
		t.Fatalf("ClaimBatch()[0] = %q, want the higher-priority url first", items[0].URL)
	}
}

func TestRecordInsertsTerminalRowWhenURLUnknown(t *testing.T) {
	db := openTestDB(t)

	if err := db.Record("https://a.example/never-queued", urlstore.StatusFailed); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("Stats().Failed = %d, want 1", stats.Failed)
	}
}

func TestRecoverStaleCrawlingResetsToPending(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Add("https://a.example/1", 10, "", 0); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if _, err := db.ClaimBatch(10); err != nil {
		t.Fatalf("ClaimBatch() error: %v", err)
	}

	n, err := db.RecoverStaleCrawling()
	if err != nil {
		t.Fatalf("RecoverStaleCrawling() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("RecoverStaleCrawling() = %d, want 1", n)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Pending != 1 || stats.Crawling != 0 {
		t.Fatalf("Stats() = %+v, want Pending=1 Crawling=0", stats)
	}
}

func TestSeedsRoundTripAndRequeue(t *testing.T) {
	db := openTestDB(t)

	added, err := db.AddSeeds([]string{"https://seed.example/a", "https://seed.example/b"})
	if err != nil {
		t.Fatalf("AddSeeds() error: %v", err)
	}
	if added != 2 {
		t.Fatalf("AddSeeds() = %d, want 2", added)
	}

	// re-adding the same seeds is a no-op, not a duplicate.
	added, err = db.AddSeeds([]string{"https://seed.example/a"})
	if err != nil {
		t.Fatalf("AddSeeds() error: %v", err)
	}
	if added != 0 {
		t.Fatalf("AddSeeds() on an existing seed = %d, want 0", added)
	}

	seeds, err := db.ListSeeds(10)
	if err != nil {
		t.Fatalf("ListSeeds() error: %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("ListSeeds() returned %d seeds, want 2", len(seeds))
	}

	queued, err := db.Requeue(50)
	if err != nil {
		t.Fatalf("Requeue() error: %v", err)
	}
	if queued != 2 {
		t.Fatalf("Requeue() = %d, want 2", queued)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Pending != 2 {
		t.Fatalf("Stats().Pending = %d, want 2 after requeue", stats.Pending)
	}

	removed, err := db.RemoveSeeds([]string{"https://seed.example/a"})
	if err != nil {
		t.Fatalf("RemoveSeeds() error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("RemoveSeeds() = %d, want 1", removed)
	}
}

func TestEnqueueDedupesByURLAndContentHash(t *testing.T) {
	db := openTestDB(t)

	first, err := db.Enqueue("https://a.example/page", "Title", "same content", []string{"https://a.example/out"})
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if !first.Created {
		t.Fatal("first Enqueue() Created = false, want true")
	}

	second, err := db.Enqueue("https://a.example/page", "Title", "same content", []string{"https://a.example/out"})
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if second.Created {
		t.Fatal("second Enqueue() with identical content Created = true, want false (deduped)")
	}
	if second.JobID != first.JobID {
		t.Fatalf("second Enqueue() JobID = %q, want the original %q", second.JobID, first.JobID)
	}
}

func TestClaimLeasesJobsAndMarksProcessing(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Enqueue("https://a.example/page", "Title", "content", nil); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	jobs, err := db.Claim(10, 300, "worker-1")
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("Claim() returned %d jobs, want 1", len(jobs))
	}
	if jobs[0].WorkerID != "worker-1" {
		t.Fatalf("Claim()[0].WorkerID = %q, want worker-1", jobs[0].WorkerID)
	}

	again, err := db.Claim(10, 300, "worker-2")
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("Claim() returned %d jobs while lease is live, want 0", len(again))
	}
}

func TestMarkDoneSetsStatusDone(t *testing.T) {
	db := openTestDB(t)

	res, err := db.Enqueue("https://a.example/page", "Title", "content", nil)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if _, err := db.Claim(10, 300, "worker-1"); err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if err := db.MarkDone(res.JobID); err != nil {
		t.Fatalf("MarkDone() error: %v", err)
	}

	job, err := db.JobStatus(res.JobID)
	if err != nil {
		t.Fatalf("JobStatus() error: %v", err)
	}
	if job.Status != "done" {
		t.Fatalf("JobStatus().Status = %q, want done", job.Status)
	}
}

func TestMarkFailureRetriesUntilPermanent(t *testing.T) {
	db := openTestDB(t)

	res, err := db.Enqueue("https://a.example/page", "Title", "content", nil)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	// max_retries defaults to 5; the 5th failure (retry_count == max_retries)
	// is the one that trips permanent failure, not the 6th.
	for i := 0; i < 5; i++ {
		if err := db.MarkFailure(res.JobID, "boom"); err != nil {
			t.Fatalf("MarkFailure() error: %v", err)
		}
	}

	job, err := db.JobStatus(res.JobID)
	if err != nil {
		t.Fatalf("JobStatus() error: %v", err)
	}
	if job.Status != "failed_permanent" {
		t.Fatalf("JobStatus().Status = %q, want failed_permanent after retry_count reaches max_retries", job.Status)
	}
	if job.RetryCount != 5 {
		t.Fatalf("JobStatus().RetryCount = %d, want 5", job.RetryCount)
	}
}

func TestMarkFailureStaysRetryableBelowMaxRetries(t *testing.T) {
	db := openTestDB(t)

	res, err := db.Enqueue("https://a.example/page", "Title", "content", nil)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	for i := 0; i < 4; i++ {
		if err := db.MarkFailure(res.JobID, "boom"); err != nil {
			t.Fatalf("MarkFailure() error: %v", err)
		}
	}

	job, err := db.JobStatus(res.JobID)
	if err != nil {
		t.Fatalf("JobStatus() error: %v", err)
	}
	if job.Status != "failed_retry" {
		t.Fatalf("JobStatus().Status = %q, want failed_retry below max_retries", job.Status)
	}
}

func TestRecoverExpiredLeasesRequeuesAsFailedRetry(t *testing.T) {
	db := openTestDB(t)

	res, err := db.Enqueue("https://a.example/page", "Title", "content", nil)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	// a negative lease duration is already expired by the time Claim returns.
	if _, err := db.Claim(10, -1, "worker-1"); err != nil {
		t.Fatalf("Claim() error: %v", err)
	}

	n, err := db.RecoverExpiredLeases()
	if err != nil {
		t.Fatalf("RecoverExpiredLeases() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("RecoverExpiredLeases() = %d, want 1", n)
	}

	job, err := db.JobStatus(res.JobID)
	if err != nil {
		t.Fatalf("JobStatus() error: %v", err)
	}
	if job.Status != "failed_retry" {
		t.Fatalf("JobStatus().Status = %q, want failed_retry", job.Status)
	}
}

func TestIndexDocumentBuildsPostingsAndDocFreq(t *testing.T) {
	db := openTestDB(t)

	if err := db.IndexDocument("https://a.example/page", "hello world", "hello world wide web"); err != nil {
		t.Fatalf("IndexDocument() error: %v", err)
	}
	if err := db.UpdateGlobalStats(); err != nil {
		t.Fatalf("UpdateGlobalStats() error: %v", err)
	}

	postings, err := db.Postings("hello")
	if err != nil {
		t.Fatalf("Postings() error: %v", err)
	}
	if len(postings) == 0 {
		t.Fatal("Postings(\"hello\") returned nothing, want at least one posting")
	}

	freq, err := db.DocFreq("hello")
	if err != nil {
		t.Fatalf("DocFreq() error: %v", err)
	}
	if freq != 1 {
		t.Fatalf("DocFreq(\"hello\") = %d, want 1", freq)
	}

	stats, err := db.GlobalStats()
	if err != nil {
		t.Fatalf("GlobalStats() error: %v", err)
	}
	if stats.TotalDocs != 1 {
		t.Fatalf("GlobalStats().TotalDocs = %d, want 1", stats.TotalDocs)
	}
}

func TestIndexDocumentReindexClearsStalePostings(t *testing.T) {
	db := openTestDB(t)

	if err := db.IndexDocument("https://a.example/page", "first", "apple banana"); err != nil {
		t.Fatalf("IndexDocument() error: %v", err)
	}
	if err := db.IndexDocument("https://a.example/page", "second", "cherry"); err != nil {
		t.Fatalf("IndexDocument() error: %v", err)
	}

	stale, err := db.Postings("apple")
	if err != nil {
		t.Fatalf("Postings() error: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("Postings(\"apple\") after reindex = %d, want 0 (stale tokens removed)", len(stale))
	}

	fresh, err := db.Postings("cherry")
	if err != nil {
		t.Fatalf("Postings() error: %v", err)
	}
	if len(fresh) == 0 {
		t.Fatal("Postings(\"cherry\") returned nothing, want the reindexed content's posting")
	}
}

func TestDeleteDocumentRemovesPostingsAndRow(t *testing.T) {
	db := openTestDB(t)

	if err := db.IndexDocument("https://a.example/page", "hello", "hello world"); err != nil {
		t.Fatalf("IndexDocument() error: %v", err)
	}
	if err := db.DeleteDocument("https://a.example/page"); err != nil {
		t.Fatalf("DeleteDocument() error: %v", err)
	}

	postings, err := db.Postings("hello")
	if err != nil {
		t.Fatalf("Postings() error: %v", err)
	}
	if len(postings) != 0 {
		t.Fatalf("Postings(\"hello\") after delete = %d, want 0", len(postings))
	}

	title, _, err := db.Document("https://a.example/page")
	if err != nil {
		t.Fatalf("Document() error: %v", err)
	}
	if title != "" {
		t.Fatalf("Document() title = %q after delete, want empty", title)
	}
}

func TestSaveLinkEdgesIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.SaveLinkEdges("https://a.example/src", []string{"https://a.example/dst"}); err != nil {
		t.Fatalf("SaveLinkEdges() error: %v", err)
	}
	// a recrawl that re-discovers the same outlink must not error on the
	// (src, dst) primary key.
	if err := db.SaveLinkEdges("https://a.example/src", []string{"https://a.example/dst"}); err != nil {
		t.Fatalf("SaveLinkEdges() second call error: %v", err)
	}

	edges, err := db.LinkEdges()
	if err != nil {
		t.Fatalf("LinkEdges() error: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("LinkEdges() = %d edges, want 1 after duplicate insert", len(edges))
	}
}

func TestSavePageRanksAndDomainRanksRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if err := db.IndexDocument("https://a.example/page", "t", "c"); err != nil {
		t.Fatalf("IndexDocument() error: %v", err)
	}

	if err := db.SavePageRanks(map[string]float64{"https://a.example/page": 0.42}); err != nil {
		t.Fatalf("SavePageRanks() error: %v", err)
	}
	score, err := db.PageRank("https://a.example/page")
	if err != nil {
		t.Fatalf("PageRank() error: %v", err)
	}
	if score != 0.42 {
		t.Fatalf("PageRank() = %v, want 0.42", score)
	}

	if err := db.SaveDomainRanks(map[string]float64{"a.example": 0.9}); err != nil {
		t.Fatalf("SaveDomainRanks() error: %v", err)
	}
	domainScore, err := db.DomainRank("a.example")
	if err != nil {
		t.Fatalf("DomainRank() error: %v", err)
	}
	if domainScore != 0.9 {
		t.Fatalf("DomainRank() = %v, want 0.9", domainScore)
	}

	// saving again for the same key must update, not duplicate.
	if err := db.SavePageRanks(map[string]float64{"https://a.example/page": 0.55}); err != nil {
		t.Fatalf("SavePageRanks() second call error: %v", err)
	}
	score, err = db.PageRank("https://a.example/page")
	if err != nil {
		t.Fatalf("PageRank() error: %v", err)
	}
	if score != 0.55 {
		t.Fatalf("PageRank() after update = %v, want 0.55", score)
	}
}

func TestSavePageRanksDropsNodesNoLongerInGraph(t *testing.T) {
	db := openTestDB(t)

	if err := db.SavePageRanks(map[string]float64{
		"https://a.example/page": 0.4,
		"https://b.example/page": 0.6,
	}); err != nil {
		t.Fatalf("SavePageRanks() error: %v", err)
	}

	// a fresh recompute that no longer includes b.example/page must drop
	// its stale rank rather than leaving it behind forever.
	if err := db.SavePageRanks(map[string]float64{"https://a.example/page": 0.9}); err != nil {
		t.Fatalf("SavePageRanks() second call error: %v", err)
	}

	score, err := db.PageRank("https://b.example/page")
	if err != nil {
		t.Fatalf("PageRank() error: %v", err)
	}
	if score != 0 {
		t.Fatalf("PageRank(dropped node) = %v, want 0 (no stale row)", score)
	}
}

func TestRecordImpressionAndClickFeedQualitySummary(t *testing.T) {
	db := openTestDB(t)

	if err := db.RecordImpression("req-1", "sess-1", "golang", []string{"https://a.example/1", "https://a.example/2"}, "keyword"); err != nil {
		t.Fatalf("RecordImpression() error: %v", err)
	}
	if err := db.RecordClick("req-1", "sess-1", "golang", "https://a.example/1", 0); err != nil {
		t.Fatalf("RecordClick() error: %v", err)
	}
	if err := db.RecordImpression("req-2", "sess-2", "nomatch", nil, "keyword"); err != nil {
		t.Fatalf("RecordImpression() error for zero-result query: %v", err)
	}

	summary, err := db.QualitySummary(24 * time.Hour)
	if err != nil {
		t.Fatalf("QualitySummary() error: %v", err)
	}
	if summary.Impressions != 2 {
		t.Fatalf("QualitySummary().Impressions = %d, want 2", summary.Impressions)
	}
	if summary.Clicks != 1 {
		t.Fatalf("QualitySummary().Clicks = %d, want 1", summary.Clicks)
	}
	if summary.ZeroResultRate != 0.5 {
		t.Fatalf("QualitySummary().ZeroResultRate = %v, want 0.5", summary.ZeroResultRate)
	}
}
