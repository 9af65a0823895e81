// Package fetch performs the actual outbound HTTP GET for every page and
// robots.txt request, tracking per-request timing and enforcing a response
// size ceiling so a single oversized page cannot exhaust worker memory.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// Auth selects which authentication scheme a Client attaches to outgoing
// requests.
type Auth struct {
	Type         string // "", "basic", "bearer", "apikey"
	Username     string
	Password     string
	BearerToken  string
	APIKeyHeader string
	APIKeyValue  string
}

// Metrics captures per-request timing, surfaced for operational logging.
type Metrics struct {
	TTFB         time.Duration
	DownloadTime time.Duration
	DNSLookup    time.Duration
	TCPConnect   time.Duration
	TLSHandshake time.Duration
}

// Response is the outcome of a successful fetch. Body is truncated to the
// client's MaxBodyBytes; Truncated reports whether that happened.
type Response struct {
	StatusCode    int
	Headers       http.Header
	Body          []byte
	Truncated     bool
	ContentType   string
	ContentLength int64
	FinalURL      string
	Metrics       Metrics
}

// Client performs GET requests with a shared connection pool, an
// authentication scheme, custom headers, and a body size ceiling.
type Client struct {
	http          *http.Client
	userAgent     string
	auth          Auth
	customHeaders map[string]string
	maxBodyBytes  int64
}

// Config controls how a Client is constructed.
type Config struct {
	UserAgent       string
	Timeout         time.Duration
	MaxRedirects    int
	MaxBodyBytes    int64 // 0 means unlimited
	Auth            Auth
	CustomHeaders   map[string]string
}

// New builds a Client from config, applying sane defaults for zero values.
func New(cfg Config) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; SearchEngineBot/1.0)"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("fetch: too many redirects (>%d)", maxRedirects)
			}
			return nil
		},
	}

	headers := cfg.CustomHeaders
	if headers == nil {
		headers = make(map[string]string)
	}

	return &Client{
		http:          httpClient,
		userAgent:     cfg.UserAgent,
		auth:          cfg.Auth,
		customHeaders: headers,
		maxBodyBytes:  cfg.MaxBodyBytes,
	}
}

// Get performs a GET request against rawURL, applying the client's
// authentication, headers, and size ceiling.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	switch c.auth.Type {
	case "basic":
		if c.auth.Username != "" {
			req.SetBasicAuth(c.auth.Username, c.auth.Password)
		}
	case "bearer":
		if c.auth.BearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.auth.BearerToken)
		}
	case "apikey":
		if c.auth.APIKeyHeader != "" {
			req.Header.Set(c.auth.APIKeyHeader, c.auth.APIKeyValue)
		}
	}

	for name, value := range c.customHeaders {
		req.Header.Set(name, value)
	}

	var metrics Metrics
	var dnsStart, connectStart, tlsStart, firstByte time.Time
	trace := &httptrace.ClientTrace{
		DNSStart:     func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone:      func(httptrace.DNSDoneInfo) { metrics.DNSLookup = time.Since(dnsStart) },
		ConnectStart: func(string, string) { connectStart = time.Now() },
		ConnectDone:  func(string, string, error) { metrics.TCPConnect = time.Since(connectStart) },
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			metrics.TLSHandshake = time.Since(tlsStart)
		},
		GotFirstResponseByte: func() { firstByte = time.Now() },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if !firstByte.IsZero() {
		metrics.TTFB = firstByte.Sub(start)
	}

	var reader io.Reader = resp.Body
	truncated := false
	if c.maxBodyBytes > 0 {
		limited := io.LimitReader(resp.Body, c.maxBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			return nil, fmt.Errorf("fetch: read body: %w", err)
		}
		if int64(len(body)) > c.maxBodyBytes {
			body = body[:c.maxBodyBytes]
			truncated = true
		}
		metrics.DownloadTime = time.Since(start)
		return &Response{
			StatusCode:    resp.StatusCode,
			Headers:       resp.Header,
			Body:          body,
			Truncated:     truncated,
			ContentType:   resp.Header.Get("Content-Type"),
			ContentLength: resp.ContentLength,
			FinalURL:      resp.Request.URL.String(),
			Metrics:       metrics,
		}, nil
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	metrics.DownloadTime = time.Since(start)

	return &Response{
		StatusCode:    resp.StatusCode,
		Headers:       resp.Header,
		Body:          body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		FinalURL:      resp.Request.URL.String(),
		Metrics:       metrics,
	}, nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
