package kb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/offis-rit/epistemic-core/pkg/truth"
)

// snapshotVersion tags the document format; bumped whenever a
// backward-incompatible field change is made.
const snapshotVersion = 1

type snapshotTruth struct {
	Frequency  float64 `json:"frequency"`
	Confidence float64 `json:"confidence"`
}

type snapshotParticipant struct {
	ConceptID  string `json:"concept_id"`
	Role       Role   `json:"role"`
	CustomRole string `json:"custom_role,omitempty"`
	Position   int    `json:"position"`
}

type snapshotConcept struct {
	ID           string        `json:"id"`
	Label        string        `json:"label"`
	Embedding    []float32     `json:"embedding"`
	Truth        snapshotTruth `json:"truth"`
	Energy       float64       `json:"energy"`
	State        string        `json:"state"`
	MentionCount uint64        `json:"mention_count"`
	CreatedAt    time.Time     `json:"created_at"`
	LastSeen     time.Time     `json:"last_seen"`
	FadingSince  int           `json:"fading_since"`
}

type snapshotLink struct {
	ID           string                `json:"id"`
	Kind         Kind                  `json:"kind"`
	CustomKind   string                `json:"custom_kind,omitempty"`
	Participants []snapshotParticipant `json:"participants"`
	Truth        snapshotTruth         `json:"truth"`
	Energy       float64               `json:"energy"`
}

// document is the self-describing snapshot format: a version tag, the full
// concept/link sets, and the store's monotonic clock (§6).
type document struct {
	Version  int               `json:"version"`
	Clock    uint64            `json:"clock"`
	Config   Config            `json:"config"`
	Concepts []snapshotConcept `json:"concepts"`
	Links    []snapshotLink    `json:"links"`
}

func stateToString(s State) string {
	return s.String()
}

func stateFromString(s string) (State, error) {
	switch s {
	case "active":
		return Active, nil
	case "dormant":
		return Dormant, nil
	case "fading":
		return Fading, nil
	case "archived":
		return Archived, nil
	default:
		return 0, fmt.Errorf("%w: unknown concept state %q", ErrValidation, s)
	}
}

// Snapshot serialises the whole store as a self-contained document. The
// round trip Restore(Snapshot()) must reproduce every field exactly, modulo
// floating-point rounding within 1 ULP (§4.B, §8).
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := document{
		Version: snapshotVersion,
		Clock:   s.clock,
		Config:  s.cfg,
	}
	for _, c := range s.concepts {
		doc.Concepts = append(doc.Concepts, snapshotConcept{
			ID:           c.ID,
			Label:        c.Label,
			Embedding:    c.Embedding,
			Truth:        snapshotTruth{Frequency: c.Truth.Frequency(), Confidence: c.Truth.Confidence()},
			Energy:       c.Energy,
			State:        stateToString(c.State),
			MentionCount: c.MentionCount,
			CreatedAt:    c.CreatedAt,
			LastSeen:     c.LastSeen,
			FadingSince:  c.fadingSince,
		})
	}
	for _, l := range s.links {
		sp := make([]snapshotParticipant, len(l.Participants))
		for i, p := range l.Participants {
			sp[i] = snapshotParticipant{ConceptID: p.ConceptID, Role: p.Role, CustomRole: p.CustomRole, Position: p.Position}
		}
		doc.Links = append(doc.Links, snapshotLink{
			ID:           l.ID,
			Kind:         l.Kind,
			CustomKind:   l.CustomKind,
			Participants: sp,
			Truth:        snapshotTruth{Frequency: l.Truth.Frequency(), Confidence: l.Truth.Confidence()},
			Energy:       l.Energy,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("kb: marshaling snapshot: %w", err)
	}
	return data, nil
}

// Restore replaces the store's contents with the document encoded in data.
// If strict unmarshalling fails, data is first passed through jsonrepair —
// tolerating a hand-edited or truncated snapshot — before unmarshalling is
// retried, mirroring the lenient-parse fallback chain used elsewhere in
// this codebase for model-produced JSON.
func (s *Store) Restore(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return fmt.Errorf("kb: restoring snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
			return fmt.Errorf("kb: restoring repaired snapshot: %w", err)
		}
	}

	concepts := make(map[string]*Concept, len(doc.Concepts))
	labelIndex := make(map[string]string, len(doc.Concepts))
	for _, sc := range doc.Concepts {
		state, err := stateFromString(sc.State)
		if err != nil {
			return err
		}
		tv, err := truth.NewWithHorizon(sc.Truth.Frequency, sc.Truth.Confidence, doc.Config.EvidentialHorizon)
		if err != nil {
			return fmt.Errorf("kb: restoring concept %q: %w", sc.ID, err)
		}
		concepts[sc.ID] = &Concept{
			ID:           sc.ID,
			Label:        sc.Label,
			Embedding:    sc.Embedding,
			Truth:        tv,
			Energy:       sc.Energy,
			State:        state,
			MentionCount: sc.MentionCount,
			CreatedAt:    sc.CreatedAt,
			LastSeen:     sc.LastSeen,
			fadingSince:  sc.FadingSince,
		}
		labelIndex[normalizeLabel(sc.Label)] = sc.ID
	}

	links := make(map[string]*Link, len(doc.Links))
	conceptLinks := make(map[string][]string)
	for _, sl := range doc.Links {
		tv, err := truth.NewWithHorizon(sl.Truth.Frequency, sl.Truth.Confidence, doc.Config.EvidentialHorizon)
		if err != nil {
			return fmt.Errorf("kb: restoring link %q: %w", sl.ID, err)
		}
		participants := make([]Participant, len(sl.Participants))
		for i, sp := range sl.Participants {
			participants[i] = Participant{ConceptID: sp.ConceptID, Role: sp.Role, CustomRole: sp.CustomRole, Position: sp.Position}
			conceptLinks[sp.ConceptID] = append(conceptLinks[sp.ConceptID], sl.ID)
		}
		links[sl.ID] = &Link{
			ID:           sl.ID,
			Kind:         sl.Kind,
			CustomKind:   sl.CustomKind,
			Participants: participants,
			Truth:        tv,
			Energy:       sl.Energy,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.concepts = concepts
	s.links = links
	s.labelIndex = labelIndex
	s.conceptLinks = conceptLinks
	s.clock = doc.Clock
	if doc.Config.MergeThreshold != 0 {
		s.cfg = doc.Config.withDefaults()
	}
	return nil
}
