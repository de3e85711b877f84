// Package extract turns free-form Portuguese text into knowledge-base
// candidates: concept labels, sentence-scoped co-occurrence links, and a
// coarse intent classification for conversational driving.
package extract

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/sentences"
	"github.com/clipperhouse/uax29/v2/words"
)

// minWordLength is the shortest a single content word may be to stand
// alone as a concept candidate — long enough that a stray word fragment
// from a broken PDF extraction (see pkg/ingest/normalize.go) can't form one
// on its own (§4.F's "safety net").
const minWordLength = 5

// Sentence is one sentence of input together with the concept-label
// candidates found within it. Co-occurrence within a Sentence is the unit
// the cultivation orchestrator uses to decide which concepts to link.
type Sentence struct {
	Text       string
	Candidates []string
}

// Extract splits text into sentences and, within each, identifies concept
// label candidates per three rules: long single content words, short
// n-gram noun phrases built entirely of long content words, and
// capitalised sequences (proper nouns). Candidates are deduplicated
// case-insensitively within a sentence and listed rule by rule: capitalised
// sequences first, then n-grams from longest to shortest, then single words,
// each rule's finds in text order.
func Extract(text string) []Sentence {
	var out []Sentence
	seg := sentences.NewSegmenter([]byte(text))
	for seg.Next() {
		s := strings.TrimSpace(string(seg.Value()))
		if s == "" {
			continue
		}
		out = append(out, Sentence{Text: s, Candidates: candidatesIn(s)})
	}
	return out
}

func candidatesIn(sentence string) []string {
	toks := tokenize(sentence)
	if len(toks) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(label string) {
		lower := strings.ToLower(label)
		if seen[lower] {
			return
		}
		seen[lower] = true
		out = append(out, label)
	}

	// Capitalised sequences (proper nouns), longest run first so "São
	// Paulo" is captured whole rather than as two single-word candidates.
	for _, run := range capitalizedRuns(toks) {
		add(strings.Join(run, " "))
	}

	// 2-4 word noun-phrase-like windows: every word must clear the
	// fragment-pollution guard on its own.
	for n := 4; n >= 2; n-- {
		for i := 0; i+n <= len(toks); i++ {
			window := toks[i : i+n]
			if allMeaningfulLong(window) {
				add(strings.Join(window, " "))
			}
		}
	}

	// Individual long content words, last resort.
	for _, t := range toks {
		lower := strings.ToLower(t)
		if len([]rune(t)) >= minWordLength && !isStopword(lower) && !looksLikeVerb(lower) {
			add(t)
		}
	}

	return out
}

// tokenize returns the words of s, punctuation-only tokens dropped, casing
// preserved for the capitalised-sequence check.
func tokenize(s string) []string {
	var out []string
	seg := words.NewSegmenter([]byte(s))
	for seg.Next() {
		tok := strings.TrimSpace(string(seg.Value()))
		if tok == "" || !containsLetter(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func allMeaningfulLong(words []string) bool {
	for _, w := range words {
		lower := strings.ToLower(w)
		if len([]rune(w)) < minWordLength || isStopword(lower) || looksLikeVerb(lower) {
			return false
		}
	}
	return true
}

// capitalizedRuns finds maximal runs of consecutive capitalised tokens —
// "Universidade de São Paulo" style names where lowercase linking
// prepositions ("de", "do", "da") are tolerated inside the run but not at
// its edges.
func capitalizedRuns(toks []string) [][]string {
	var runs [][]string
	var current []string
	linking := map[string]bool{"de": true, "do": true, "da": true, "dos": true, "das": true}

	flush := func() {
		if len(current) > 0 {
			// trim trailing linking words that never reached another
			// capitalised token
			for len(current) > 0 && linking[strings.ToLower(current[len(current)-1])] {
				current = current[:len(current)-1]
			}
			if len(current) > 0 {
				runs = append(runs, current)
			}
			current = nil
		}
	}

	for _, t := range toks {
		if isCapitalized(t) {
			current = append(current, t)
			continue
		}
		if len(current) > 0 && linking[strings.ToLower(t)] {
			current = append(current, t)
			continue
		}
		flush()
	}
	flush()
	return runs
}

func isCapitalized(tok string) bool {
	runes := []rune(tok)
	if len(runes) < 3 {
		return false
	}
	return unicode.IsUpper(runes[0])
}
