// Package seedimport bulk-loads seed URLs from a Tranco top-sites list
// distributed as a ZIP archive containing a single rank,domain CSV.
package seedimport

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Entry is one row of a Tranco list: a domain and its rank (1 = most
// popular).
type Entry struct {
	Rank   int
	Domain string
}

// ParseZip reads a Tranco ZIP archive (as produced by the tranco-list.eu
// download API) and returns every (rank, domain) row from its CSV member.
// It streams the CSV rather than buffering the whole archive in memory.
func ParseZip(r io.ReaderAt, size int64) ([]Entry, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("seedimport: open zip: %w", err)
	}

	var csvFile *zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			csvFile = f
			break
		}
	}
	if csvFile == nil {
		return nil, fmt.Errorf("seedimport: no CSV file found in archive")
	}

	rc, err := csvFile.Open()
	if err != nil {
		return nil, fmt.Errorf("seedimport: open csv member: %w", err)
	}
	defer rc.Close()

	return parseCSV(rc)
}

func parseCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	var entries []Entry
	rank := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("seedimport: parse csv row %d: %w", rank+1, err)
		}
		rank++

		domain := strings.TrimSpace(record[1])
		if domain == "" {
			continue
		}
		entries = append(entries, Entry{Rank: rank, Domain: domain})
	}

	return entries, nil
}

// SeedURLs converts Tranco domain entries into https:// seed URLs, the
// scheme every crawl starts from absent other information.
func SeedURLs(entries []Entry) []string {
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, "https://"+e.Domain+"/")
	}
	return urls
}
