package kb

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/offis-rit/epistemic-core/pkg/truth"
)

// Role is a participant's semantic role within a Link, drawn from a closed
// set. Custom roles carry their name separately in Participant.Custom.
type Role string

const (
	RoleSubject    Role = "subject"
	RoleObject     Role = "object"
	RolePredicate  Role = "predicate"
	RoleSource     Role = "source"
	RoleTarget     Role = "target"
	RoleInstrument Role = "instrument"
	RoleContext    Role = "context"
	RoleValue      Role = "value"
	RoleQualifier  Role = "qualifier"
	RoleCustom     Role = "custom"
)

// Kind is a Link's relation type, drawn from a closed set. KindCustom
// carries its name in Link.CustomKind.
type Kind string

const (
	KindInheritance Kind = "inheritance"
	KindSimilarity  Kind = "similarity"
	KindImplication Kind = "implication"
	KindEquivalence Kind = "equivalence"
	KindPartOf      Kind = "part_of"
	KindHasProperty Kind = "has_property"
	KindInstanceOf  Kind = "instance_of"
	KindCatalyzes   Kind = "catalyzes"
	KindInhibits    Kind = "inhibits"
	KindMapsTo      Kind = "maps_to"
	KindCustom      Kind = "custom"
)

// causalKinds are the kinds the inference engine treats as chainable for
// deduction (see pkg/infer).
var causalKinds = map[Kind]bool{
	KindImplication: true,
	KindInheritance: true,
	KindCatalyzes:   true,
}

// IsCausal reports whether links of this kind participate in deductive
// chaining.
func (k Kind) IsCausal() bool { return causalKinds[k] }

// Participant associates a concept with the role it plays in a Link, plus
// its ordinal position among the link's participants.
type Participant struct {
	ConceptID  string
	Role       Role
	Position   int
	CustomRole string // populated only when Role == RoleCustom
}

// Link is an N-ary (N >= 2) relation between concepts.
type Link struct {
	ID          string
	Kind        Kind
	CustomKind  string // populated only when Kind == KindCustom
	Participants []Participant
	Truth       truth.Value
	Energy      float64
}

// CanonicalID computes a Link's identity: a hash of (kind, sorted
// participant (id, role, position) tuples), per §3's canonical-identity
// rule. Two upserts describing the same relation — regardless of the order
// participants were supplied in — collapse onto the same link.
func CanonicalID(kind Kind, customKind string, participants []Participant) string {
	sorted := make([]Participant, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ConceptID != sorted[j].ConceptID {
			return sorted[i].ConceptID < sorted[j].ConceptID
		}
		if sorted[i].Role != sorted[j].Role {
			return sorted[i].Role < sorted[j].Role
		}
		return sorted[i].Position < sorted[j].Position
	})

	var b strings.Builder
	b.WriteString(string(kind))
	if kind == KindCustom {
		b.WriteString(":")
		b.WriteString(customKind)
	}
	for _, p := range sorted {
		fmt.Fprintf(&b, "|%s:%s:%d", p.ConceptID, p.Role, p.Position)
		if p.Role == RoleCustom {
			fmt.Fprintf(&b, ":%s", p.CustomRole)
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// subjectID returns the concept id of the participant with RoleSubject, if
// any — used extensively by the inference engine for binary links.
func (l *Link) subjectID() (string, bool) {
	return l.participantID(RoleSubject)
}

// objectID returns the concept id of the participant with RoleObject, if
// any.
func (l *Link) objectID() (string, bool) {
	return l.participantID(RoleObject)
}

func (l *Link) participantID(role Role) (string, bool) {
	for _, p := range l.Participants {
		if p.Role == role {
			return p.ConceptID, true
		}
	}
	return "", false
}

// observe folds an externally-judged observation into the link's truth
// value, mirroring Concept.observe.
func (l *Link) observe(positive bool) {
	l.Truth = truth.Revise(l.Truth, truth.Observed(positive))
	l.Energy = clamp01(l.Energy + 0.1)
}

// decay applies one prune tick to the link's own energy. Links carry no
// lifecycle state of their own — archiving is driven entirely by their
// endpoints (see Store.DecayCycle).
func (l *Link) decay(decayRate float64) {
	l.Energy = clamp01(l.Energy * (1 - decayRate))
}
