package storage

// sqliteSchema creates every table this service needs against the
// modernc.org/sqlite driver. Mirrors the shape of the teacher's queue-as-
// results-table design: one lifecycle status column per entity, indexed for
// the access patterns the Scheduler and Index Job Queue actually run.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS urls (
    url TEXT PRIMARY KEY,
    domain TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'crawling', 'done', 'failed')),
    priority REAL NOT NULL DEFAULT 0,
    source_url TEXT,
    crawl_count INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_crawled_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_urls_status_priority ON urls(status, priority DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_urls_domain ON urls(domain);

CREATE TABLE IF NOT EXISTS seeds (
    url TEXT PRIMARY KEY,
    added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_queued DATETIME
);

CREATE TABLE IF NOT EXISTS index_jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    dedupe_key TEXT UNIQUE NOT NULL,
    content_hash TEXT NOT NULL,
    url TEXT NOT NULL,
    title TEXT,
    content TEXT,
    outlinks TEXT,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processing', 'done', 'failed_retry', 'failed_permanent')),
    retry_count INTEGER NOT NULL DEFAULT 0,
    max_retries INTEGER NOT NULL DEFAULT 5,
    available_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    lease_until DATETIME,
    worker_id TEXT,
    last_error TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_index_jobs_status ON index_jobs(status, available_at ASC);

CREATE TABLE IF NOT EXISTS documents (
    url TEXT PRIMARY KEY,
    title TEXT,
    content TEXT,
    word_count INTEGER NOT NULL DEFAULT 0,
    indexed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS inverted_index (
    token TEXT NOT NULL,
    url TEXT NOT NULL,
    field TEXT NOT NULL,
    term_freq INTEGER NOT NULL,
    positions TEXT NOT NULL,
    PRIMARY KEY (token, url, field)
);
CREATE INDEX IF NOT EXISTS idx_inverted_index_token ON inverted_index(token);

CREATE TABLE IF NOT EXISTS token_stats (
    token TEXT PRIMARY KEY,
    doc_freq INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS global_stats (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    total_docs INTEGER NOT NULL DEFAULT 0,
    avg_doc_length REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS link_edges (
    src TEXT NOT NULL,
    dst TEXT NOT NULL,
    PRIMARY KEY (src, dst)
);
CREATE INDEX IF NOT EXISTS idx_link_edges_dst ON link_edges(dst);

CREATE TABLE IF NOT EXISTS page_ranks (
    url TEXT PRIMARY KEY,
    score REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS domain_ranks (
    domain TEXT PRIMARY KEY,
    score REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS embeddings (
    url TEXT PRIMARY KEY,
    vector TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL,
    session_hash TEXT NOT NULL,
    event_type TEXT NOT NULL CHECK (event_type IN ('impression', 'click')),
    query TEXT NOT NULL,
    url TEXT NOT NULL,
    rank INTEGER NOT NULL DEFAULT 0,
    mode TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_search_events_created ON search_events(created_at);
CREATE INDEX IF NOT EXISTS idx_search_events_request ON search_events(request_id);
`

// postgresSchema is the same logical schema realized with PostgreSQL-native
// types (BIGSERIAL, DOUBLE PRECISION, TIMESTAMPTZ).
const postgresSchema = `
CREATE TABLE IF NOT EXISTS urls (
    url TEXT PRIMARY KEY,
    domain TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'crawling', 'done', 'failed')),
    priority DOUBLE PRECISION NOT NULL DEFAULT 0,
    source_url TEXT,
    crawl_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_crawled_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_urls_status_priority ON urls(status, priority DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_urls_domain ON urls(domain);

CREATE TABLE IF NOT EXISTS seeds (
    url TEXT PRIMARY KEY,
    added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_queued TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS index_jobs (
    id BIGSERIAL PRIMARY KEY,
    dedupe_key TEXT UNIQUE NOT NULL,
    content_hash TEXT NOT NULL,
    url TEXT NOT NULL,
    title TEXT,
    content TEXT,
    outlinks TEXT,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processing', 'done', 'failed_retry', 'failed_permanent')),
    retry_count INTEGER NOT NULL DEFAULT 0,
    max_retries INTEGER NOT NULL DEFAULT 5,
    available_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    lease_until TIMESTAMPTZ,
    worker_id TEXT,
    last_error TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_index_jobs_status ON index_jobs(status, available_at ASC);

CREATE TABLE IF NOT EXISTS documents (
    url TEXT PRIMARY KEY,
    title TEXT,
    content TEXT,
    word_count INTEGER NOT NULL DEFAULT 0,
    indexed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS inverted_index (
    token TEXT NOT NULL,
    url TEXT NOT NULL,
    field TEXT NOT NULL,
    term_freq INTEGER NOT NULL,
    positions TEXT NOT NULL,
    PRIMARY KEY (token, url, field)
);
CREATE INDEX IF NOT EXISTS idx_inverted_index_token ON inverted_index(token);

CREATE TABLE IF NOT EXISTS token_stats (
    token TEXT PRIMARY KEY,
    doc_freq INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS global_stats (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    total_docs INTEGER NOT NULL DEFAULT 0,
    avg_doc_length DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS link_edges (
    src TEXT NOT NULL,
    dst TEXT NOT NULL,
    PRIMARY KEY (src, dst)
);
CREATE INDEX IF NOT EXISTS idx_link_edges_dst ON link_edges(dst);

CREATE TABLE IF NOT EXISTS page_ranks (
    url TEXT PRIMARY KEY,
    score DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS domain_ranks (
    domain TEXT PRIMARY KEY,
    score DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS embeddings (
    url TEXT PRIMARY KEY,
    vector TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_events (
    id BIGSERIAL PRIMARY KEY,
    request_id TEXT NOT NULL,
    session_hash TEXT NOT NULL,
    event_type TEXT NOT NULL CHECK (event_type IN ('impression', 'click')),
    query TEXT NOT NULL,
    url TEXT NOT NULL,
    rank INTEGER NOT NULL DEFAULT 0,
    mode TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_search_events_created ON search_events(created_at);
CREATE INDEX IF NOT EXISTS idx_search_events_request ON search_events(request_id);
`
