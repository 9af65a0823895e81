// Package analyzer turns free text into an ordered, position-preserving
// token stream for both the Index Writer and the Query Engine. Text
// containing CJK code points is segmented one token per CJK code point
// (no morphological segmentation is applied); Latin text is
// whitespace/punctuation-split and stemmed.
// Bilingual stop words are dropped from the output either way.
package analyzer

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// StopWords is the bilingual stop-word set removed from every token stream,
// carried over from the reference analyzer.
var StopWords = map[string]struct{}{
	// English
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "shall": {}, "can": {}, "to": {},
	"of": {}, "in": {}, "for": {}, "on": {}, "with": {}, "at": {}, "by": {},
	"from": {}, "as": {}, "into": {}, "about": {}, "between": {}, "through": {},
	"during": {}, "and": {}, "but": {}, "or": {}, "nor": {}, "not": {},
	"so": {}, "if": {}, "than": {}, "that": {}, "this": {}, "it": {}, "its": {},
	"he": {}, "she": {}, "they": {}, "we": {}, "you": {}, "i": {}, "me": {},
	"my": {}, "your": {}, "his": {}, "her": {}, "our": {}, "their": {},
	// Japanese particles / auxiliaries
	"の": {}, "に": {}, "は": {}, "を": {}, "た": {}, "が": {}, "で": {}, "て": {},
	"と": {}, "し": {}, "れ": {}, "さ": {}, "ある": {}, "いる": {}, "も": {},
	"する": {}, "から": {}, "な": {}, "こと": {}, "として": {}, "い": {}, "や": {},
	"れる": {}, "など": {}, "なっ": {}, "ない": {}, "この": {}, "ため": {},
	"その": {}, "あっ": {}, "よう": {}, "また": {}, "もの": {}, "という": {},
	"あり": {}, "まで": {}, "られ": {}, "なる": {}, "へ": {}, "か": {}, "だ": {},
	"これ": {}, "によって": {}, "により": {}, "おり": {}, "より": {}, "による": {},
	"ず": {}, "なり": {}, "られる": {}, "において": {}, "ば": {}, "なかっ": {},
	"なく": {}, "しかし": {}, "について": {}, "せ": {}, "だっ": {}, "でき": {},
	"それ": {}, "・": {}, "ほか": {}, "です": {}, "ます": {}, "。": {}, "、": {},
}

// Tokenize is deterministic: the same input always produces the same
// ordered token list, preserving position order and performing no
// deduplication.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var raw []string
	if containsCJK(text) {
		raw = segmentCJK(text)
	} else {
		raw = splitLatin(text)
	}

	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.ToLower(tok)
		if tok == "" {
			continue
		}
		if _, stop := StopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// containsCJK reports whether text contains any Hiragana, Katakana, or
// CJK Unified Ideograph code point.
func containsCJK(text string) bool {
	for _, r := range text {
		if isCJKRune(r) {
			return true
		}
	}
	return false
}

func isCJKRune(r rune) bool {
	return (r >= 0x3040 && r <= 0x309F) || // Hiragana
		(r >= 0x30A0 && r <= 0x30FF) || // Katakana
		(r >= 0x4E00 && r <= 0x9FFF) // CJK Unified Ideographs
}

// segmentCJK splits text into runs of contiguous script class: a run of
// CJK code points becomes one token per codepoint (short-unit style,
// favoring recall the way SplitMode.A does in the reference analyzer),
// everything else is split the way splitLatin does.
func segmentCJK(text string) []string {
	var tokens []string
	var latinRun strings.Builder

	flushLatin := func() {
		if latinRun.Len() > 0 {
			tokens = append(tokens, splitLatin(latinRun.String())...)
			latinRun.Reset()
		}
	}

	for _, r := range text {
		if isCJKRune(r) {
			flushLatin()
			tokens = append(tokens, string(r))
			continue
		}
		latinRun.WriteRune(r)
	}
	flushLatin()

	return tokens
}

// splitLatin lowercases-and-splits on anything that is not a letter or
// digit, then stems each resulting word with the Snowball English stemmer.
func splitLatin(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		lower := strings.ToLower(f)
		stemmed, err := snowball.Stem(lower, "english", true)
		if err != nil || stemmed == "" {
			tokens = append(tokens, lower)
			continue
		}
		tokens = append(tokens, stemmed)
	}
	return tokens
}
