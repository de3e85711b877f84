// Package kb implements the in-memory knowledge base: the concept/link
// store, its label and vector indices, and the snapshot codec.
package kb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/offis-rit/epistemic-core/pkg/truth"
)

// ErrValidation marks a caller-facing input error — too few participants,
// a dangling reference, or similar — distinct from a truth.ErrPrecondition.
var ErrValidation = errors.New("kb: validation error")

// Config carries the externally overridable thresholds of §4.B/§6. Zero
// values are replaced by DefaultConfig's defaults by NewStore.
type Config struct {
	MergeThreshold     float64
	QueryThreshold     float64
	DormantThreshold   float64
	FadingThreshold    float64
	ArchiveAfterTicks  int
	DecayRate          float64
	EvidentialHorizon  float64
	InitialConfidence  float64

	// QuestionEnergyThreshold and QuestionConfidenceThreshold select the
	// germinate phase's reflective-question pool: concepts with energy
	// above the former and confidence below the latter.
	QuestionEnergyThreshold     float64
	QuestionConfidenceThreshold float64
}

// DefaultConfig returns the thresholds named (with concrete defaults) in
// §3/§6 of the specification.
func DefaultConfig() Config {
	return Config{
		MergeThreshold:    0.90,
		QueryThreshold:    0.35,
		DormantThreshold:  0.5,
		FadingThreshold:   0.2,
		ArchiveAfterTicks: 5,
		DecayRate:         0.05,
		EvidentialHorizon: truth.EvidentialHorizon,
		InitialConfidence: 0.6,

		QuestionEnergyThreshold:     0.4,
		QuestionConfidenceThreshold: 0.5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MergeThreshold == 0 {
		c.MergeThreshold = d.MergeThreshold
	}
	if c.QueryThreshold == 0 {
		c.QueryThreshold = d.QueryThreshold
	}
	if c.DormantThreshold == 0 {
		c.DormantThreshold = d.DormantThreshold
	}
	if c.FadingThreshold == 0 {
		c.FadingThreshold = d.FadingThreshold
	}
	if c.ArchiveAfterTicks == 0 {
		c.ArchiveAfterTicks = d.ArchiveAfterTicks
	}
	if c.DecayRate == 0 {
		c.DecayRate = d.DecayRate
	}
	if c.EvidentialHorizon == 0 {
		c.EvidentialHorizon = d.EvidentialHorizon
	}
	if c.InitialConfidence == 0 {
		c.InitialConfidence = d.InitialConfidence
	}
	if c.QuestionEnergyThreshold == 0 {
		c.QuestionEnergyThreshold = d.QuestionEnergyThreshold
	}
	if c.QuestionConfidenceThreshold == 0 {
		c.QuestionConfidenceThreshold = d.QuestionConfidenceThreshold
	}
	return c
}

// Store is the in-memory, single-writer/multi-reader knowledge base. All
// mutation goes through its exclusive lock; readers take the shared lock
// and observe a consistent snapshot (§5).
type Store struct {
	mu sync.RWMutex

	cfg Config

	concepts map[string]*Concept
	links    map[string]*Link

	// labelIndex maps a lowercased, trimmed label to its concept id —
	// case-insensitive exact lookup.
	labelIndex map[string]string

	// conceptLinks is the reverse index: concept id -> ids of links that
	// mention it. Rebuilt from the snapshot's links by Restore.
	conceptLinks map[string][]string

	// clock is a monotonic prune-tick counter, persisted in snapshots.
	clock uint64
}

// NewStore constructs an empty Store with the given configuration (zero
// fields replaced by defaults).
func NewStore(cfg Config) *Store {
	return &Store{
		cfg:          cfg.withDefaults(),
		concepts:     make(map[string]*Concept),
		links:        make(map[string]*Link),
		labelIndex:   make(map[string]string),
		conceptLinks: make(map[string][]string),
	}
}

// Config returns the store's effective (defaulted) configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// UpsertConcept implements §4.B's upsert_concept: a match at cosine >=
// MergeThreshold reinforces and returns the existing id; otherwise a new
// concept is created at full energy and Active state.
func (s *Store) UpsertConcept(label string, embedding []float32) (id string, wasNew bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if best, sim, ok := s.bestMatchLocked(embedding); ok && sim >= s.cfg.MergeThreshold {
		s.reinforceLocked(best.ID, 0.3, sim)
		return best.ID, false, nil
	}

	newID, err := gonanoid.New()
	if err != nil {
		return "", false, fmt.Errorf("kb: generating concept id: %w", err)
	}

	tv, err := truth.New(1.0, s.cfg.InitialConfidence)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", truth.ErrPrecondition, err)
	}

	now := time.Now()
	c := &Concept{
		ID:           newID,
		Label:        strings.TrimSpace(label),
		Embedding:    embedding,
		Truth:        tv,
		Energy:       1.0,
		State:        Active,
		MentionCount: 1,
		CreatedAt:    now,
		LastSeen:     now,
	}
	s.concepts[newID] = c
	s.labelIndex[normalizeLabel(label)] = newID
	return newID, true, nil
}

// bestMatchLocked scans the vector index for the highest-cosine concept
// above no particular floor; callers compare the returned similarity
// against whatever threshold applies to their operation. Ties break by
// highest similarity then lowest id, per §4.B.
func (s *Store) bestMatchLocked(embedding []float32) (*Concept, float32, bool) {
	var best *Concept
	var bestSim float32 = -1
	for _, c := range s.concepts {
		if c.State == Archived || len(c.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(embedding, c.Embedding)
		if sim > bestSim || (sim == bestSim && best != nil && c.ID < best.ID) {
			best, bestSim = c, sim
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best, bestSim, true
}

// ReinforceConcept implements §4.B's reinforce_concept: folds one positive
// observation into the concept's truth, bumps mention_count/last_seen,
// raises energy by evidenceBoost, and promotes Dormant/Fading back to
// Active. Returns ErrValidation if id is unknown or already Archived —
// archived concepts never resurrect (I5).
func (s *Store) ReinforceConcept(id string, evidenceBoost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.concepts[id]
	if !ok {
		return fmt.Errorf("%w: unknown concept %q", ErrValidation, id)
	}
	if c.State == Archived {
		return fmt.Errorf("%w: concept %q is archived", ErrValidation, id)
	}
	s.reinforceLocked(id, evidenceBoost, 0)
	return nil
}

func (s *Store) reinforceLocked(id string, evidenceBoost float64, _ float32) {
	c := s.concepts[id]
	c.reinforce(evidenceBoost, time.Now())
}

// ObserveConcept folds an externally-judged confirm/deny observation into
// the concept's truth value, used by the cultivation orchestrator's
// Confirm/Deny pseudo-phase (§4.E). Returns ErrValidation for an unknown or
// archived concept, matching ReinforceConcept's contract.
func (s *Store) ObserveConcept(id string, positive bool, evidenceBoost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.concepts[id]
	if !ok {
		return fmt.Errorf("%w: unknown concept %q", ErrValidation, id)
	}
	if c.State == Archived {
		return fmt.Errorf("%w: concept %q is archived", ErrValidation, id)
	}
	c.observe(positive, evidenceBoost, time.Now())
	return nil
}

// ObserveLink folds an externally-judged confirm/deny observation into the
// link's truth value.
func (s *Store) ObserveLink(id string, positive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[id]
	if !ok {
		return fmt.Errorf("%w: unknown link %q", ErrValidation, id)
	}
	l.observe(positive)
	return nil
}

// UpsertLink implements §4.B's upsert_link: canonicalises participants,
// creates the link if its canonical id is new, otherwise revises the
// existing link's truth with delta via truth.Revise.
func (s *Store) UpsertLink(kind Kind, customKind string, participants []Participant, delta truth.Value) (id string, wasNew bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(participants) < 2 {
		return "", false, fmt.Errorf("%w: link needs at least 2 participants, got %d", ErrValidation, len(participants))
	}
	for _, p := range participants {
		if _, ok := s.concepts[p.ConceptID]; !ok {
			return "", false, fmt.Errorf("%w: participant references missing concept %q", ErrValidation, p.ConceptID)
		}
	}

	linkID := CanonicalID(kind, customKind, participants)
	if existing, ok := s.links[linkID]; ok {
		existing.Truth = truth.Revise(existing.Truth, delta)
		existing.Energy = clamp01(existing.Energy + 0.1)
		return linkID, false, nil
	}

	l := &Link{
		ID:           linkID,
		Kind:         kind,
		CustomKind:   customKind,
		Participants: participants,
		Truth:        delta,
		Energy:       1.0,
	}
	s.links[linkID] = l
	for _, p := range participants {
		s.conceptLinks[p.ConceptID] = append(s.conceptLinks[p.ConceptID], linkID)
	}
	return linkID, true, nil
}

// ScoredConcept pairs a concept with its similarity score against a query
// embedding.
type ScoredConcept struct {
	Concept    *Concept
	Similarity float32
}

// QuerySimilar returns every non-archived concept whose embedding has
// cosine similarity >= threshold against the given embedding, sorted by
// descending similarity, truncated to limit (0 = unlimited). This backs
// both §4.B's query_by_label (callers pass the label's own embedding) and
// §6's query(text, k).
func (s *Store) QuerySimilar(embedding []float32, threshold float64, limit int) []ScoredConcept {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ScoredConcept
	for _, c := range s.concepts {
		if c.State == Archived || len(c.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(embedding, c.Embedding)
		if float64(sim) >= threshold {
			out = append(out, ScoredConcept{Concept: c, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Concept.ID < out[j].Concept.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FindByLabel performs a case-insensitive exact lookup via the label index.
func (s *Store) FindByLabel(label string) (*Concept, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.labelIndex[normalizeLabel(label)]
	if !ok {
		return nil, false
	}
	c := s.concepts[id]
	return c, c != nil
}

// Get returns the concept with the given id.
func (s *Store) Get(id string) (*Concept, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.concepts[id]
	return c, ok
}

// GetLink returns the link with the given id.
func (s *Store) GetLink(id string) (*Link, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[id]
	return l, ok
}

// LinksFor returns every link that mentions the given concept, via the
// reverse index.
func (s *Store) LinksFor(conceptID string) []*Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.conceptLinks[conceptID]
	out := make([]*Link, 0, len(ids))
	for _, id := range ids {
		if l, ok := s.links[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// LinkExists reports whether a link with the given kind already connects
// subject to object in RoleSubject/RoleObject positions — used by the
// inference engine and the extractor to avoid duplicate derivations.
func (s *Store) LinkExists(kind Kind, subject, object string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.links {
		if l.Kind != kind {
			continue
		}
		sid, sok := l.subjectID()
		oid, ook := l.objectID()
		if sok && ook && sid == subject && oid == object {
			return true
		}
	}
	return false
}

// CausalLinks returns every link whose kind is causal (Kind.IsCausal) and
// whose energy exceeds the threshold — the candidate premise set for the
// inference engine.
func (s *Store) CausalLinks(energyThreshold float64) []*Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Link
	for _, l := range s.links {
		if l.Energy > energyThreshold && l.Kind.IsCausal() {
			out = append(out, l)
		}
	}
	return out
}

// Neighbours implements §4.B's neighbours: a breadth-first traversal
// returning every concept reachable from id within depth links (depth 0
// returns just the seed concept).
func (s *Store) Neighbours(id string, depth int) ([]*Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.concepts[id]; !ok {
		return nil, fmt.Errorf("%w: unknown concept %q", ErrValidation, id)
	}

	visited := map[string]bool{id: true}
	frontier := []string{id}
	for d := 0; d < depth; d++ {
		var next []string
		for _, cid := range frontier {
			for _, linkID := range s.conceptLinks[cid] {
				l, ok := s.links[linkID]
				if !ok {
					continue
				}
				for _, p := range l.Participants {
					if !visited[p.ConceptID] {
						visited[p.ConceptID] = true
						next = append(next, p.ConceptID)
					}
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}

	out := make([]*Concept, 0, len(visited))
	for cid := range visited {
		if c, ok := s.concepts[cid]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ActiveConcepts returns every concept in State Active, sorted by
// descending energy.
func (s *Store) ActiveConcepts() []*Concept {
	return s.filterSorted(func(c *Concept) bool { return c.State == Active })
}

// FadingConcepts returns every concept in State Fading.
func (s *Store) FadingConcepts() []*Concept {
	return s.filterSorted(func(c *Concept) bool { return c.State == Fading })
}

// QuestionCandidates returns concepts with energy above
// Config.QuestionEnergyThreshold and confidence below
// Config.QuestionConfidenceThreshold while still Active — the germinate
// phase's reflective-question pool, sorted by descending energy.
func (s *Store) QuestionCandidates() []*Concept {
	return s.filterSorted(func(c *Concept) bool {
		return c.State == Active && c.Energy > s.cfg.QuestionEnergyThreshold && c.Truth.Confidence() < s.cfg.QuestionConfidenceThreshold
	})
}

func (s *Store) filterSorted(pred func(*Concept) bool) []*Concept {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Concept
	for _, c := range s.concepts {
		if pred(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Energy != out[j].Energy {
			return out[i].Energy > out[j].Energy
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DecayCycle runs one prune tick over the whole store: every concept's
// energy decays and its state is recomputed; every link's energy decays;
// links with an archived endpoint are archived by proxy (their energy is
// forced to zero, per §3's "archiving either endpoint archives the link").
// Returns the ids of concepts that newly entered Fading this cycle.
func (s *Store) DecayCycle() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newlyFading []string
	for _, c := range s.concepts {
		wasFading := c.State == Fading
		c.decay(s.cfg.DecayRate, s.cfg.DormantThreshold, s.cfg.FadingThreshold, s.cfg.ArchiveAfterTicks)
		if !wasFading && c.State == Fading {
			newlyFading = append(newlyFading, c.ID)
		}
	}

	for _, l := range s.links {
		l.decay(s.cfg.DecayRate)
		if s.hasArchivedEndpointLocked(l) {
			l.Energy = 0
		}
	}
	sort.Strings(newlyFading)
	s.clock++
	return newlyFading
}

// Clock returns the store's monotonic prune-tick counter.
func (s *Store) Clock() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock
}

func (s *Store) hasArchivedEndpointLocked(l *Link) bool {
	for _, p := range l.Participants {
		if c, ok := s.concepts[p.ConceptID]; ok && c.State == Archived {
			return true
		}
	}
	return false
}

// ConceptCount returns the number of concepts currently stored.
func (s *Store) ConceptCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.concepts)
}

// LinkCount returns the number of links currently stored.
func (s *Store) LinkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

// DescribeLink renders a link as "[Label1 ->role1, Label2 ->role2] kind
// <truth>", used by event explanations and germinate question templates.
func (s *Store) DescribeLink(l *Link) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parts := make([]string, 0, len(l.Participants))
	for _, p := range l.Participants {
		if c, ok := s.concepts[p.ConceptID]; ok {
			parts = append(parts, fmt.Sprintf("%s ->%s", c.Label, p.Role))
		}
	}
	return fmt.Sprintf("[%s] %s %s", strings.Join(parts, ", "), l.Kind, l.Truth)
}
