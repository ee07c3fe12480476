// Package extract provides the built-in technology name extractor. It scans
// posting text for known taxonomy names on word boundaries; richer
// collaborators (LLM-backed) plug in behind the same taxonomy.Extractor
// interface.
package extract

import (
	"context"
	"strings"
	"unicode"
)

// KeywordExtractor recognizes a fixed vocabulary of technology names in free
// text. Matching is case-insensitive and bounded: "Go" matches in "Go
// developer" but not in "Golang ago".
type KeywordExtractor struct {
	vocab []string
}

// NewKeywordExtractor builds an extractor over the given names, typically
// the taxonomy snapshot's names in load order.
func NewKeywordExtractor(names []string) *KeywordExtractor {
	vocab := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			vocab = append(vocab, n)
		}
	}
	return &KeywordExtractor{vocab: vocab}
}

// ExtractNames returns every vocabulary name mentioned in the title or
// description, in vocabulary order.
func (e *KeywordExtractor) ExtractNames(ctx context.Context, title, description string) ([]string, error) {
	text := strings.ToLower(title + "\n" + description)
	var found []string
	for _, name := range e.vocab {
		if containsWord(text, strings.ToLower(name)) {
			found = append(found, name)
		}
	}
	return found, nil
}

// PickPrimary names the candidate mentioned earliest in the title, falling
// back to earliest in the description, then "".
func (e *KeywordExtractor) PickPrimary(ctx context.Context, title, description string, candidates []string) (string, error) {
	if name := earliestMention(strings.ToLower(title), candidates); name != "" {
		return name, nil
	}
	return earliestMention(strings.ToLower(description), candidates), nil
}

func earliestMention(text string, candidates []string) string {
	best, bestPos := "", -1
	for _, cand := range candidates {
		pos := wordIndex(text, strings.ToLower(cand))
		if pos >= 0 && (bestPos < 0 || pos < bestPos) {
			best, bestPos = cand, pos
		}
	}
	return best
}

func containsWord(text, word string) bool {
	return wordIndex(text, word) >= 0
}

// wordIndex reports the rune index of the first occurrence of word in text
// that sits on word boundaries, or -1. A boundary is only required on sides
// where the word itself starts or ends alphanumerically, so names like
// "c++" still match. Both inputs must already be lower-cased.
func wordIndex(text, word string) int {
	rt := []rune(text)
	rw := []rune(word)
	n, m := len(rt), len(rw)
	if m == 0 || m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if !runesEqual(rt[i:i+m], rw) {
			continue
		}
		leftOK := !isAlnum(rw[0]) || i == 0 || !isAlnum(rt[i-1])
		rightOK := !isAlnum(rw[m-1]) || i+m == n || !isAlnum(rt[i+m])
		if leftOK && rightOK {
			return i
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
