package htmlparse

import "testing"

const sampleHTML = `
<html>
<head>
<title> Example Page </title>
<meta name="description" content="an example">
<meta name="robots" content="noindex">
<link rel="canonical" href="/canonical-page">
</head>
<body>
<a href="/a">Link A</a>
<a href="https://external.com/b" rel="nofollow">Link B</a>
<a href="#section">Anchor</a>
<a href="javascript:void(0)">JS</a>
</body>
</html>`

func TestParseExtractsTitleAndMeta(t *testing.T) {
	p, err := New("https://example.com/page")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result, err := p.Parse([]byte(sampleHTML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Title != "Example Page" {
		t.Fatalf("Title = %q, want %q", result.Title, "Example Page")
	}
	if result.MetaDesc != "an example" {
		t.Fatalf("MetaDesc = %q", result.MetaDesc)
	}
	if result.MetaRobots != "noindex" {
		t.Fatalf("MetaRobots = %q", result.MetaRobots)
	}
}

func TestParseResolvesCanonicalURL(t *testing.T) {
	p, _ := New("https://example.com/page")
	result, _ := p.Parse([]byte(sampleHTML))
	if result.CanonicalURL != "https://example.com/canonical-page" {
		t.Fatalf("CanonicalURL = %q", result.CanonicalURL)
	}
}

func TestParseSkipsFragmentAndJavascriptLinks(t *testing.T) {
	p, _ := New("https://example.com/page")
	result, _ := p.Parse([]byte(sampleHTML))
	for _, l := range result.Links {
		if l.URL == "" {
			t.Fatalf("got an empty link URL: %+v", l)
		}
	}
	if len(result.Links) != 2 {
		t.Fatalf("len(Links) = %d, want 2", len(result.Links))
	}
}

func TestParseMarksExternalAndNoFollow(t *testing.T) {
	p, _ := New("https://example.com/page")
	result, _ := p.Parse([]byte(sampleHTML))

	var external, internal *Link
	for i := range result.Links {
		if result.Links[i].IsExternal {
			external = &result.Links[i]
		} else {
			internal = &result.Links[i]
		}
	}
	if external == nil || !external.NoFollow {
		t.Fatalf("expected external nofollow link, got %+v", external)
	}
	if internal == nil || internal.IsExternal {
		t.Fatalf("expected internal non-external link, got %+v", internal)
	}
}

func TestParseContentHashDeterministic(t *testing.T) {
	p, _ := New("https://example.com/page")
	a, _ := p.Parse([]byte(sampleHTML))
	b, _ := p.Parse([]byte(sampleHTML))
	if a.ContentHash != b.ContentHash {
		t.Fatalf("ContentHash not deterministic: %v != %v", a.ContentHash, b.ContentHash)
	}
}
