// Package htmlparse extracts title, metadata, canonical URL, content hash,
// and outgoing links from a fetched HTML document.
package htmlparse

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is one outgoing anchor found in a document.
type Link struct {
	URL        string
	AnchorText string
	NoFollow   bool
	IsExternal bool
}

// Result is everything extracted from one document.
type Result struct {
	Title        string
	MetaDesc     string
	MetaRobots   string
	CanonicalURL string
	ContentHash  string
	PlainText    string
	Links        []Link
}

// Parser extracts document metadata and outlinks relative to a fixed base
// URL (the page's own URL, for resolving relative hrefs).
type Parser struct {
	baseURL        *url.URL
	allowedSchemes []string
}

// New builds a Parser that resolves relative links against baseURL.
func New(baseURL string) (*Parser, error) {
	return NewWithSchemes(baseURL, []string{"http", "https"})
}

// NewWithSchemes builds a Parser restricted to the given link schemes.
func NewWithSchemes(baseURL string, allowedSchemes []string) (*Parser, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("htmlparse: invalid base URL: %w", err)
	}
	if len(allowedSchemes) == 0 {
		allowedSchemes = []string{"http", "https"}
	}
	return &Parser{baseURL: parsed, allowedSchemes: allowedSchemes}, nil
}

// Parse extracts title, metadata, canonical URL, outlinks, and a SHA-256
// content hash from htmlContent.
func (p *Parser) Parse(htmlContent []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(htmlContent)))
	if err != nil {
		return nil, fmt.Errorf("htmlparse: parse document: %w", err)
	}

	result := &Result{}

	result.Title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		switch strings.ToLower(name) {
		case "description":
			result.MetaDesc = content
		case "robots":
			result.MetaRobots = content
		}
	})

	doc.Find("link[rel=canonical]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		if abs, err := p.resolve(href); err == nil {
			result.CanonicalURL = abs
		}
	})

	result.PlainText = strings.TrimSpace(doc.Find("body").First().Text())

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := p.buildLink(s, href)
		if ok {
			result.Links = append(result.Links, link)
		}
	})

	hash := sha256.Sum256(htmlContent)
	result.ContentHash = fmt.Sprintf("%x", hash)

	return result, nil
}

func (p *Parser) buildLink(s *goquery.Selection, href string) (Link, bool) {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return Link{}, false
	}
	if !p.isAllowedScheme(href) {
		return Link{}, false
	}

	abs, err := p.resolve(href)
	if err != nil || !p.isAllowedScheme(abs) {
		return Link{}, false
	}

	parsed, err := url.Parse(abs)
	if err != nil {
		return Link{}, false
	}

	rel, _ := s.Attr("rel")
	noFollow := false
	for _, token := range strings.Fields(rel) {
		if strings.EqualFold(token, "nofollow") {
			noFollow = true
			break
		}
	}

	return Link{
		URL:        abs,
		AnchorText: strings.TrimSpace(s.Text()),
		NoFollow:   noFollow,
		IsExternal: parsed.Host != p.baseURL.Host,
	}, true
}

func (p *Parser) resolve(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return p.baseURL.ResolveReference(u).String(), nil
}

func (p *Parser) isAllowedScheme(href string) bool {
	if strings.Contains(href, "://") {
		scheme := href[:strings.Index(href, "://")]
		for _, allowed := range p.allowedSchemes {
			if strings.EqualFold(scheme, allowed) {
				return true
			}
		}
		return false
	}

	if strings.Contains(href, ":") && !strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "?") {
		return false
	}

	return true
}
