package searchindex

import "testing"

func TestBuildPostingsCountsTermFrequency(t *testing.T) {
	postings := BuildPostings("https://a.com", FieldContent, []string{"fox", "dog", "fox"})

	var fox *Posting
	for i := range postings {
		if postings[i].Token == "fox" {
			fox = &postings[i]
		}
	}
	if fox == nil {
		t.Fatal("expected a posting for 'fox'")
	}
	if fox.TermFreq != 2 {
		t.Fatalf("TermFreq = %d, want 2", fox.TermFreq)
	}
	if len(fox.Positions) != 2 || fox.Positions[0] != 0 || fox.Positions[1] != 2 {
		t.Fatalf("Positions = %v, want [0 2]", fox.Positions)
	}
}

func TestBuildPostingsEmptyTokens(t *testing.T) {
	if postings := BuildPostings("https://a.com", FieldTitle, nil); postings != nil {
		t.Fatalf("BuildPostings() = %v, want nil", postings)
	}
}

func TestBuildPostingsOneEntryPerDistinctToken(t *testing.T) {
	postings := BuildPostings("https://a.com", FieldContent, []string{"a", "b", "a", "c", "b"})
	if len(postings) != 3 {
		t.Fatalf("len(postings) = %d, want 3", len(postings))
	}
}
