package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/offis-rit/epistemic-core/pkg/extract"
)

// ptBRSuffixes is the closed set of Portuguese nominal/adjectival suffixes
// that commonly end up split from their stem by PDF text extraction, e.g.
// "opera cao" → "operacao".
var ptBRSuffixes = []string{
	"cao", "coes", "cia", "encia", "ancia", "mente", "dade", "avel", "ivel",
	"nal", "gem", "tico", "tica", "tura", "mento", "sao", "soes", "oso",
	"osa", "ivo", "iva", "ismo", "ista",
}

var suffixRegex = regexp.MustCompile(`(?i)(\w+)\s+(` + strings.Join(ptBRSuffixes, "|") + `)\b`)

// fragmentWhitelist holds short words that are legitimate on their own and
// must never be merged into a neighbour even though they fall under the
// fragment heuristic's length window.
var fragmentWhitelist = map[string]bool{
	"sol": true, "caso": true, "base": true, "mais": true, "menos": true,
	"bem": true, "mal": true, "lei": true, "voz": true, "paz": true,
	"chao": true, "mar": true, "sul": true, "leste": true, "oeste": true,
}

// minFragmentSpan is how long a merged run has to become before the
// fragment heuristic stops pulling in further tokens.
const minFragmentSpan = 6

// Normalize repairs text extracted from a PDF before it reaches
// extract.Extract. PDF extractors commonly introduce two kinds of damage in
// PT-BR text: decomposed Unicode accents, and spurious whitespace splitting
// a word from its suffix or breaking it into short fragments. Both are
// corrected here; entity extraction downstream still enforces its own
// five-character floor on any candidate that escapes both layers.
func Normalize(text string) string {
	composed := norm.NFC.String(text)
	joined := suffixRegex.ReplaceAllString(composed, "$1$2")
	return mergeFragments(joined)
}

// mergeFragments implements the second normalisation layer: short,
// lowercase, non-stopword alphabetic tokens are greedily absorbed into the
// tokens that follow them until the accumulated span reads as a real word.
func mergeFragments(text string) string {
	tokens := splitKeepingSeparators(text)

	var out strings.Builder
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		if !isFragmentCandidate(tok) {
			out.WriteString(tok)
			i++
			continue
		}

		merged := tok
		j := i + 1
		end := j
		for len([]rune(merged)) < minFragmentSpan && j < len(tokens) {
			next := tokens[j]
			if strings.TrimSpace(next) == "" {
				j++
				continue
			}
			if !isLowercaseWord(next) || extract.IsStopword(strings.ToLower(next)) {
				break
			}
			merged += next
			j++
			end = j
		}
		out.WriteString(merged)
		i = end
	}
	return out.String()
}

// splitKeepingSeparators breaks text into a sequence where each element is
// either a maximal run of letters or a maximal run of everything else
// (whitespace, punctuation), preserving the original spacing so the result
// can be reassembled without a separate join step.
func splitKeepingSeparators(text string) []string {
	var out []string
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		isLetter := unicode.IsLetter(runes[i])
		j := i + 1
		for j < len(runes) && unicode.IsLetter(runes[j]) == isLetter {
			j++
		}
		out = append(out, string(runes[i:j]))
		i = j
	}
	return out
}

func isLowercaseWord(tok string) bool {
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
		if unicode.IsUpper(r) {
			return false
		}
	}
	return tok != ""
}

// isFragmentCandidate reports whether tok is a 2-4 letter alphabetic token
// that is neither a stopword, a whitelisted short word, nor a conjugated
// verb form — the profile of a PDF-broken word fragment rather than a word
// that is simply short on its own merit.
func isFragmentCandidate(tok string) bool {
	n := len([]rune(tok))
	if n < 2 || n > 4 {
		return false
	}
	if !isLowercaseWord(tok) {
		return false
	}
	lower := strings.ToLower(tok)
	if extract.IsStopword(lower) || fragmentWhitelist[lower] {
		return false
	}
	if extract.LooksLikeVerb(lower) {
		return false
	}
	return true
}
