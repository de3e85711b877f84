package extract

import (
	"regexp"
	"strings"
)

// Pair is an unordered (for co-occurrence) or directed (for copular,
// subject before object) relation between two candidate labels found
// within the same sentence.
type Pair struct {
	Subject string
	Object  string
}

// CooccurringPairs returns every distinct pair of candidates in a
// sentence — the basis for the low-confidence Similarity links §4.C's
// step 5 creates between concepts that merely appear together.
func CooccurringPairs(s Sentence) []Pair {
	var out []Pair
	for i := 0; i < len(s.Candidates); i++ {
		for j := i + 1; j < len(s.Candidates); j++ {
			out = append(out, Pair{Subject: s.Candidates[i], Object: s.Candidates[j]})
		}
	}
	return out
}

// copularRe matches a Portuguese or English copular construction
// ("X é um Y", "X são Y", "X is a Y") and captures the clauses on either
// side of the verb.
var copularRe = regexp.MustCompile(`(?i)^(.*?)\s+(?:é|são|is|are)\s+(?:um|uma|uns|umas|a|an)?\s*(.*)$`)

// CopularPairs scans a sentence for an explicit "X é um Y" / "X is a Y"
// construction and, when both sides contain a known candidate label,
// returns the (subject, object) pair that should receive an Inheritance
// link rather than a mere Similarity one.
func CopularPairs(s Sentence) []Pair {
	m := copularRe.FindStringSubmatch(s.Text)
	if m == nil {
		return nil
	}
	left, right := m[1], m[2]

	subject := candidateWithin(s.Candidates, left)
	object := candidateWithin(s.Candidates, right)
	if subject == "" || object == "" || strings.EqualFold(subject, object) {
		return nil
	}
	return []Pair{{Subject: subject, Object: object}}
}

// candidateWithin returns the candidate, if any, that occurs as a
// substring of clause — the copular regex's clauses are whole phrases, the
// candidate list holds the narrower labels extraction already isolated
// within them.
func candidateWithin(candidates []string, clause string) string {
	lowerClause := strings.ToLower(clause)
	var best string
	for _, c := range candidates {
		if strings.Contains(lowerClause, strings.ToLower(c)) && len(c) > len(best) {
			best = c
		}
	}
	return best
}
