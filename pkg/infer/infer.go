// Package infer implements the NARS-style inference engine: deduction and
// induction over the knowledge base's causal links.
package infer

import (
	"fmt"
	"sort"

	"github.com/offis-rit/epistemic-core/pkg/kb"
	"github.com/offis-rit/epistemic-core/pkg/truth"
)

// Config tunes one inference cycle.
type Config struct {
	// EnergyThreshold is the minimum link energy to be considered a
	// premise.
	EnergyThreshold float64
	// MinConfidence discards a derivation whose resulting truth value's
	// confidence doesn't clear this bar — avoids polluting the store with
	// noise derived from weak premises.
	MinConfidence float64
	// MaxPerCycle caps the number of derivations committed in one
	// photosynthesis cycle, preventing the O(n²) premise scan from
	// flooding the store; derivations are prioritised by the product of
	// their two premises' confidences.
	MaxPerCycle int
}

// DefaultConfig mirrors the original implementation's thresholds
// (energy > 0.3, confidence > 0.05) with a derivation cap this codebase
// adds for the many-concept case the original never had to handle.
func DefaultConfig() Config {
	return Config{EnergyThreshold: 0.3, MinConfidence: 0.05, MaxPerCycle: 50}
}

// Derivation is one committed result of an inference cycle.
type Derivation struct {
	LinkID      string
	WasNew      bool
	Kind        kb.Kind
	Explanation string
}

type candidate struct {
	kind              kb.Kind
	subject, object   string
	truth             truth.Value
	explanation       string
	confidenceProduct float64
}

// Run executes one inference cycle against store and commits every
// surviving derivation via UpsertLink, returning them in commit order
// (highest premise-confidence product first). Precondition violations —
// a dangling concept reference on a stale premise — are skipped silently;
// the engine never fails a cycle over one bad pair.
func Run(store *kb.Store, cfg Config) []Derivation {
	links := store.CausalLinks(cfg.EnergyThreshold)

	// derived keys seen this cycle, so multiple premise-pairs landing on
	// the same (kind, subject, object) don't each commit their own
	// revision — only the strongest candidate per key survives to commit.
	best := make(map[string]candidate)

	for i, li := range links {
		for j, lj := range links {
			if i == j {
				continue
			}
			considerDeduction(store, li, lj, cfg, best)
			considerInduction(store, li, lj, cfg, best)
		}
	}

	ordered := make([]candidate, 0, len(best))
	for _, c := range best {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].confidenceProduct != ordered[j].confidenceProduct {
			return ordered[i].confidenceProduct > ordered[j].confidenceProduct
		}
		return ordered[i].subject < ordered[j].subject
	})
	if cfg.MaxPerCycle > 0 && len(ordered) > cfg.MaxPerCycle {
		ordered = ordered[:cfg.MaxPerCycle]
	}

	out := make([]Derivation, 0, len(ordered))
	for _, c := range ordered {
		participants := []kb.Participant{
			{ConceptID: c.subject, Role: kb.RoleSubject, Position: 0},
			{ConceptID: c.object, Role: kb.RoleObject, Position: 1},
		}
		id, wasNew, err := store.UpsertLink(c.kind, "", participants, c.truth)
		if err != nil {
			// a premise concept was archived between the scan and the
			// commit; skip rather than fail the cycle.
			continue
		}
		out = append(out, Derivation{LinkID: id, WasNew: wasNew, Kind: c.kind, Explanation: c.explanation})
	}
	return out
}

func considerDeduction(store *kb.Store, lsm, lmp *kb.Link, cfg Config, best map[string]candidate) {
	s, m1, ok := subjectObject(lsm)
	if !ok {
		return
	}
	m2, p, ok := subjectObject(lmp)
	if !ok {
		return
	}
	if m1 != m2 || s == p {
		return
	}
	if store.LinkExists(lsm.Kind, s, p) {
		return
	}

	tv := truth.Deduce(lsm.Truth, lmp.Truth)
	if tv.Confidence() <= cfg.MinConfidence {
		return
	}

	key := fmt.Sprintf("%s|%s|%s", lsm.Kind, s, p)
	cp := lsm.Truth.Confidence() * lmp.Truth.Confidence()
	if existing, ok := best[key]; ok && existing.confidenceProduct >= cp {
		return
	}
	best[key] = candidate{
		kind: lsm.Kind, subject: s, object: p, truth: tv,
		explanation:       deductionExplanation(store, s, m1, p, tv),
		confidenceProduct: cp,
	}
}

func considerInduction(store *kb.Store, lsm, lmp *kb.Link, cfg Config, best map[string]candidate) {
	m1, p, ok := subjectObject(lsm)
	if !ok {
		return
	}
	m2, s, ok := subjectObject(lmp)
	if !ok {
		return
	}
	if m1 != m2 || s == p {
		return
	}
	if store.LinkExists(kb.KindSimilarity, s, p) {
		return
	}

	tv := truth.Induce(lsm.Truth, lmp.Truth)
	if tv.Confidence() <= cfg.MinConfidence {
		return
	}

	key := fmt.Sprintf("%s|%s|%s", kb.KindSimilarity, s, p)
	cp := lsm.Truth.Confidence() * lmp.Truth.Confidence()
	if existing, ok := best[key]; ok && existing.confidenceProduct >= cp {
		return
	}
	best[key] = candidate{
		kind: kb.KindSimilarity, subject: s, object: p, truth: tv,
		explanation:       inductionExplanation(store, s, p, m1, tv),
		confidenceProduct: cp,
	}
}

func subjectObject(l *kb.Link) (subject, object string, ok bool) {
	var s, o string
	var sok, ook bool
	for _, p := range l.Participants {
		switch p.Role {
		case kb.RoleSubject:
			s, sok = p.ConceptID, true
		case kb.RoleObject:
			o, ook = p.ConceptID, true
		}
	}
	return s, o, sok && ook
}

func deductionExplanation(store *kb.Store, s, m, p string, tv truth.Value) string {
	return fmt.Sprintf("deduction: if %s -> %s and %s -> %s, then %s may -> %s %s",
		label(store, s), label(store, m), label(store, m), label(store, p), label(store, s), label(store, p), tv)
}

func inductionExplanation(store *kb.Store, s, p, m string, tv truth.Value) string {
	return fmt.Sprintf("induction: %s and %s both relate to %s, so %s ~ %s %s",
		label(store, s), label(store, p), label(store, m), label(store, s), label(store, p), tv)
}

func label(store *kb.Store, id string) string {
	if c, ok := store.Get(id); ok {
		return c.Label
	}
	return "?"
}
