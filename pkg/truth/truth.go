// Package truth implements the NARS-style truth-value algebra: a pure value
// type carrying non-negative evidence counts, exposed externally as a
// frequency/confidence pair.
package truth

import (
	"errors"
	"fmt"
	"math"
)

// EvidentialHorizon is the NARS constant k controlling how quickly confidence
// grows with accumulated evidence. Configurable per store, defaults to 1.0.
const EvidentialHorizon = 1.0

// maxConfidence is the ceiling every derived or constructed confidence is
// clamped to, keeping invariant I1 (confidence < 1.0) strictly true.
const maxConfidence = 0.9999

// ErrPrecondition marks a violation of a Value constructor's precondition —
// a programmer error that must abort the call rather than surface as a
// domain event.
var ErrPrecondition = errors.New("truth: precondition violation")

// Value is a NARS truth value, stored internally as (positive, negative)
// evidence weights and exposed via Frequency/Confidence/Expectation.
type Value struct {
	positive float64
	negative float64
	horizon  float64
}

// New constructs a Value from an externally observed (frequency, confidence)
// pair. confidence must be in [0, 1) and frequency in [0, 1]; violating
// either is a precondition violation.
func New(frequency, confidence float64) (Value, error) {
	return NewWithHorizon(frequency, confidence, EvidentialHorizon)
}

// NewWithHorizon is New with an explicit evidential horizon, for stores that
// override the default k via configuration.
func NewWithHorizon(frequency, confidence, horizon float64) (Value, error) {
	if frequency < 0 || frequency > 1 {
		return Value{}, fmt.Errorf("%w: frequency %.4f out of [0,1]", ErrPrecondition, frequency)
	}
	if confidence < 0 || confidence >= 1 {
		return Value{}, fmt.Errorf("%w: confidence %.4f out of [0,1)", ErrPrecondition, confidence)
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	wTotal := horizon * confidence / (1 - confidence)
	return Value{
		positive: wTotal * frequency,
		negative: wTotal * (1 - frequency),
		horizon:  horizon,
	}, nil
}

// MustNew is New but panics on a precondition violation; reserved for
// construction of known-good constants (e.g. Proto, tests).
func MustNew(frequency, confidence float64) Value {
	v, err := New(frequency, confidence)
	if err != nil {
		panic(err)
	}
	return v
}

// Proto is the default truth value assigned to a freshly observed but
// unverified claim: frequency 0.5, confidence 0.1.
func Proto() Value {
	return MustNew(0.5, 0.1)
}

// Observed is a single direct-observation evidence unit: strongly frequent
// (1.0) or strongly infrequent (0.0), confidence 0.9. Used to fold
// confirmation/denial feedback into existing truth values via Revise.
func Observed(positive bool) Value {
	if positive {
		return MustNew(1.0, 0.9)
	}
	return MustNew(0.0, 0.9)
}

// Frequency returns w+ / (w+ + w-), defined as 0.5 when no evidence has
// accumulated.
func (v Value) Frequency() float64 {
	total := v.positive + v.negative
	if total <= 0 {
		return 0.5
	}
	return v.positive / total
}

// Confidence returns (w+ + w-) / (w+ + w- + k).
func (v Value) Confidence() float64 {
	k := v.horizonOrDefault()
	total := v.positive + v.negative
	return total / (total + k)
}

// Expectation returns confidence * (frequency - 0.5) + 0.5, NARS's scalar
// summary of a truth value useful for ranking.
func (v Value) Expectation() float64 {
	return v.Confidence()*(v.Frequency()-0.5) + 0.5
}

func (v Value) horizonOrDefault() float64 {
	if v.horizon <= 0 {
		return EvidentialHorizon
	}
	return v.horizon
}

// Revise combines two independent observations of the same claim by summing
// evidence counts componentwise. Commutative and associative.
func Revise(a, b Value) Value {
	return Value{
		positive: a.positive + b.positive,
		negative: a.negative + b.negative,
		horizon:  a.horizonOrDefault(),
	}
}

// Deduce implements S→M (a) + M→P (b) ⊢ S→P, with f = fa*fb, c = fa*fb*ca*cb.
func Deduce(a, b Value) Value {
	fa, fb := a.Frequency(), b.Frequency()
	ca, cb := a.Confidence(), b.Confidence()
	f := fa * fb
	c := clampConfidence(fa * fb * ca * cb)
	return fromExternal(f, c, a.horizonOrDefault())
}

// Induce implements M→P (a) + M→S (b) ⊢ S→P, with f = fb,
// c = (fa*ca*cb) / (fa*ca*cb + k).
func Induce(a, b Value) Value {
	fa, fb := a.Frequency(), b.Frequency()
	ca, cb := a.Confidence(), b.Confidence()
	k := a.horizonOrDefault()
	w := fa * ca * cb
	c := clampConfidence(w / (w + k))
	return fromExternal(fb, c, k)
}

// Abduce implements P→M (a) + S→M (b) ⊢ S→P, with f = fa,
// c = (fb*ca*cb) / (fb*ca*cb + k).
func Abduce(a, b Value) Value {
	fa := a.Frequency()
	ca, cb := a.Confidence(), b.Confidence()
	fb := b.Frequency()
	k := a.horizonOrDefault()
	w := fb * ca * cb
	c := clampConfidence(w / (w + k))
	return fromExternal(fa, c, k)
}

func clampConfidence(c float64) float64 {
	if c > maxConfidence {
		return maxConfidence
	}
	if c < 0 || math.IsNaN(c) {
		return 0
	}
	return c
}

// fromExternal builds a Value from an already-clamped (frequency,
// confidence) pair without re-running the precondition checks of New — used
// internally by the derivation rules, whose outputs are derived quantities
// rather than caller-supplied observations.
func fromExternal(frequency, confidence, horizon float64) Value {
	if confidence >= 1 {
		confidence = maxConfidence
	}
	if confidence < 0 {
		confidence = 0
	}
	wTotal := horizon * confidence / (1 - confidence)
	return Value{
		positive: wTotal * frequency,
		negative: wTotal * (1 - frequency),
		horizon:  horizon,
	}
}

// String renders the value as ⟨f, c⟩ with two decimal places, matching the
// display format used throughout the event log and question templates.
func (v Value) String() string {
	return fmt.Sprintf("⟨%.2f, %.2f⟩", v.Frequency(), v.Confidence())
}
