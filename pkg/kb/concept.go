package kb

import (
	"time"

	"github.com/offis-rit/epistemic-core/pkg/truth"
)

// State is one of the four lifecycle states a Concept moves through.
// Archived is terminal: once reached, a concept never leaves it (I5).
type State int

const (
	Active State = iota
	Dormant
	Fading
	Archived
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Dormant:
		return "dormant"
	case Fading:
		return "fading"
	case Archived:
		return "archived"
	default:
		return "unknown"
	}
}

// Concept is the atomic unit of knowledge: a labelled, embedded point with
// a NARS truth value and a decaying activation energy.
type Concept struct {
	ID           string
	Label        string
	Embedding    []float32
	Truth        truth.Value
	Energy       float64
	State        State
	MentionCount uint64
	CreatedAt    time.Time
	LastSeen     time.Time

	// fadingSince counts consecutive prune ticks spent in Fading without
	// reinforcement; once it exceeds archiveAfterTicks the concept is
	// archived. Reset to zero on reinforcement or on leaving Fading.
	fadingSince int
}

// reinforce folds one positive observation into the concept's truth value,
// bumps mention_count and last_seen, raises energy by boost (clamped to
// 1.0), and promotes Dormant/Fading concepts back to Active. Archived
// concepts are immutable by construction — callers must never reinforce one
// (enforced by Store, which issues a fresh concept instead).
func (c *Concept) reinforce(boost float64, now time.Time) {
	c.Truth = truth.Revise(c.Truth, truth.Observed(true))
	c.MentionCount++
	c.LastSeen = now
	c.Energy = clamp01(c.Energy + boost)
	if c.State == Dormant || c.State == Fading {
		c.State = Active
	}
	c.fadingSince = 0
}

// observe folds one externally-judged observation (confirmation or denial,
// rather than mere mention) into the concept's truth value. Unlike
// reinforce, the evidence polarity is caller-supplied instead of always
// positive — used by the cultivation orchestrator's Confirm/Deny
// pseudo-phase.
func (c *Concept) observe(positive bool, boost float64, now time.Time) {
	c.Truth = truth.Revise(c.Truth, truth.Observed(positive))
	c.LastSeen = now
	c.Energy = clamp01(c.Energy + boost)
	if c.State == Dormant || c.State == Fading {
		c.State = Active
	}
	c.fadingSince = 0
}

// decay applies one prune tick: energy multiplied by (1-decay_rate), then
// the lifecycle state is recomputed from thresholds. Archived is terminal
// and skipped entirely.
func (c *Concept) decay(decayRate, dormantThreshold, fadingThreshold float64, archiveAfterTicks int) {
	if c.State == Archived {
		return
	}
	c.Energy = clamp01(c.Energy * (1 - decayRate))

	wasFading := c.State == Fading
	switch {
	case c.Energy > dormantThreshold:
		c.State = Active
	case c.Energy > fadingThreshold:
		c.State = Dormant
	default:
		c.State = Fading
	}

	if c.State == Fading {
		if wasFading {
			c.fadingSince++
		} else {
			c.fadingSince = 1
		}
		if c.fadingSince > archiveAfterTicks {
			c.State = Archived
		}
	} else {
		c.fadingSince = 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
