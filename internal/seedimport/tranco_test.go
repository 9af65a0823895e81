package seedimport

import (
	"archive/zip"
	"bytes"
	"testing"
)

func buildTestZip(t *testing.T, csvContent string) (*bytes.Reader, int64) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("top-1m.csv")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.Write([]byte(csvContent)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return bytes.NewReader(buf.Bytes()), int64(buf.Len())
}

func TestParseZipExtractsEntries(t *testing.T) {
	r, size := buildTestZip(t, "1,example.com\n2,another.org\n")
	entries, err := ParseZip(r, size)
	if err != nil {
		t.Fatalf("ParseZip() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Domain != "example.com" || entries[0].Rank != 1 {
		t.Fatalf("entries[0] = %+v", entries[0])
	}
}

func TestParseZipNoCSVMember(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create("readme.txt")
	f.Write([]byte("nothing here"))
	zw.Close()

	_, err := ParseZip(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err == nil {
		t.Fatal("ParseZip() error = nil, want error for missing CSV member")
	}
}

func TestSeedURLsBuildsHTTPSURLs(t *testing.T) {
	urls := SeedURLs([]Entry{{Rank: 1, Domain: "example.com"}})
	if len(urls) != 1 || urls[0] != "https://example.com/" {
		t.Fatalf("SeedURLs() = %v", urls)
	}
}
