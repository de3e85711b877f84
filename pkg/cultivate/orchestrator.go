// Package cultivate implements the cultivation orchestrator: the
// turn-by-turn driver that seeds extracted concepts and links into the
// knowledge base, runs inference cycles, asks reflective questions, and
// prunes stale knowledge, all serialised behind a single-writer lease.
package cultivate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/offis-rit/epistemic-core/pkg/embed"
	"github.com/offis-rit/epistemic-core/pkg/events"
	"github.com/offis-rit/epistemic-core/pkg/extract"
	"github.com/offis-rit/epistemic-core/pkg/infer"
	"github.com/offis-rit/epistemic-core/pkg/kb"
	"github.com/offis-rit/epistemic-core/pkg/lease"
	"github.com/offis-rit/epistemic-core/pkg/logger"
	"github.com/offis-rit/epistemic-core/pkg/truth"
)

// cooccurrenceConfidence and copularConfidence seed the two link kinds
// extraction can create directly: a bare mention alongside another
// candidate is weak evidence of relation, an explicit "X é um Y" is much
// stronger.
const (
	cooccurrenceConfidence = 0.10
	copularConfidence      = 0.60
)

// orchestratorLeaseKey is the single key every phase of a given
// Orchestrator contends for — there is exactly one writer at a time,
// regardless of how many goroutines call IngestText/IngestChunk
// concurrently.
const orchestratorLeaseKey = "cultivation"

// Config tunes the orchestrator's cadence. Zero values are replaced by
// DefaultConfig's defaults by New.
type Config struct {
	// GerminateEveryTurns runs the germinate phase once every N completed
	// IngestText turns. 0 is replaced by the default, like every field.
	GerminateEveryTurns int
	// PruneEveryTurns runs one decay cycle every N completed turns.
	PruneEveryTurns int
	// QuestionsPerGermination caps how many reflective questions one
	// germinate phase emits.
	QuestionsPerGermination int
	// Infer tunes the photosynthesise phase's inference cycle.
	Infer infer.Config
}

// DefaultConfig mirrors the cultivation cadence the original implementation
// drove from its own turn counter.
func DefaultConfig() Config {
	return Config{
		GerminateEveryTurns:     2,
		PruneEveryTurns:         10,
		QuestionsPerGermination: 3,
		Infer:                   infer.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.GerminateEveryTurns == 0 {
		c.GerminateEveryTurns = d.GerminateEveryTurns
	}
	if c.PruneEveryTurns == 0 {
		c.PruneEveryTurns = d.PruneEveryTurns
	}
	if c.QuestionsPerGermination == 0 {
		c.QuestionsPerGermination = d.QuestionsPerGermination
	}
	if c.Infer.MaxPerCycle == 0 && c.Infer.EnergyThreshold == 0 && c.Infer.MinConfidence == 0 {
		c.Infer = d.Infer
	}
	return c
}

// ChunkResult summarises the effect of seeding one piece of text.
type ChunkResult struct {
	Intent      extract.Intent
	IntentScore float32
	NewConcepts int
	NewLinks    int
	ConceptIDs  []string
}

// Orchestrator wires the knowledge store, embedder, intent classifier, and
// event bus into the cultivation lifecycle: seed and photosynthesise
// (infer) on every turn, germinate reflective questions and prune on their
// own cadences, and fold confirm/deny replies back into whatever concepts
// were last discussed.
type Orchestrator struct {
	store      *kb.Store
	embedder   embed.Embedder
	classifier *extract.Classifier
	bus        *events.Bus
	leases     *lease.Client
	cfg        Config

	mu            sync.Mutex
	turn          uint64
	lastDiscussed []string
}

// New constructs an Orchestrator. cfg's zero fields are replaced by
// DefaultConfig's defaults.
func New(store *kb.Store, embedder embed.Embedder, bus *events.Bus, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:      store,
		embedder:   embedder,
		classifier: extract.NewClassifier(embedder),
		bus:        bus,
		leases:     lease.New(),
		cfg:        cfg.withDefaults(),
	}
}

// IngestText is the conversational entry point: classify intent, then
// either fold a confirm/deny reply into the concepts last discussed, or
// seed the text's extracted concepts and links and advance the turn
// counter, running photosynthesise every turn and germinate/prune on their
// cadence.
func (o *Orchestrator) IngestText(ctx context.Context, text string) (*ChunkResult, error) {
	var result *ChunkResult
	err := o.leases.WithLease(ctx, orchestratorLeaseKey, lease.Options{Wait: true}, func(ctx context.Context) error {
		start := time.Now()
		o.bus.Publish(events.Event{Kind: events.KindStarted, TotalChunks: 1, TextLen: len(text)})

		intent, score, err := o.classifier.Classify(ctx, text)
		if err != nil {
			o.bus.Publish(events.Event{Kind: events.KindError, Message: err.Error()})
			return err
		}

		if intent == extract.IntentConfirm || intent == extract.IntentDeny {
			o.handleFeedback(intent)
			result = &ChunkResult{Intent: intent, IntentScore: score}
			o.bus.Publish(events.Event{
				Kind:        events.KindCompleted,
				KBConcepts:  o.store.ConceptCount(),
				KBLinks:     o.store.LinkCount(),
				TotalMs:     time.Since(start).Milliseconds(),
			})
			return nil
		}

		r, err := o.seedChunk(ctx, text)
		if err != nil {
			o.bus.Publish(events.Event{Kind: events.KindError, Message: err.Error()})
			return err
		}
		r.Intent, r.IntentScore = intent, score
		result = r

		o.advanceTurn()

		o.bus.Publish(events.Event{
			Kind:        events.KindCompleted,
			NewConcepts: r.NewConcepts,
			NewLinks:    r.NewLinks,
			KBConcepts:  o.store.ConceptCount(),
			KBLinks:     o.store.LinkCount(),
			TotalMs:     time.Since(start).Milliseconds(),
		})
		return nil
	})
	return result, err
}

// IngestChunk seeds a single chunk of already-segmented document text — the
// operation the PDF ingestion pipeline drives once per chunk — without
// running the turn-cadence phases. Callers driving a multi-chunk document
// run Photosynthesise/Germinate/Prune themselves once after every chunk is
// seeded, via the exported phase methods below.
func (o *Orchestrator) IngestChunk(ctx context.Context, text string) (*ChunkResult, error) {
	var result *ChunkResult
	err := o.leases.WithLease(ctx, orchestratorLeaseKey, lease.Options{Wait: true}, func(ctx context.Context) error {
		r, err := o.seedChunk(ctx, text)
		result = r
		return err
	})
	return result, err
}

// Photosynthesise runs one inference cycle over the knowledge base,
// publishing a link_created event for every committed derivation.
func (o *Orchestrator) Photosynthesise() []infer.Derivation {
	derivations := infer.Run(o.store, o.cfg.Infer)
	for _, d := range derivations {
		o.publishDerivation(d)
	}
	return derivations
}

// Germinate emits up to QuestionsPerGermination reflective questions for
// the store's current question candidates.
func (o *Orchestrator) Germinate() {
	candidates := o.store.QuestionCandidates()
	count := 0
	for _, c := range candidates {
		if count >= o.cfg.QuestionsPerGermination {
			break
		}
		q := o.questionFor(c, o.store.LinksFor(c.ID))
		o.bus.Publish(events.Event{Kind: events.KindQuestionGenerated, ConceptID: c.ID, QuestionText: q})
		count++
	}
}

// Prune runs one decay cycle and returns the ids of concepts that newly
// entered the Fading state this cycle.
func (o *Orchestrator) Prune() []string {
	return o.store.DecayCycle()
}

// Turn returns the orchestrator's completed-turn counter.
func (o *Orchestrator) Turn() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turn
}

// Store returns the knowledge base backing this orchestrator, for callers
// that need read-only access (size counts, snapshots) alongside the
// orchestrator's own seeding/cadence operations.
func (o *Orchestrator) Store() *kb.Store {
	return o.store
}

func (o *Orchestrator) advanceTurn() {
	o.mu.Lock()
	o.turn++
	turn := o.turn
	o.mu.Unlock()

	o.Photosynthesise()

	if turn%uint64(o.cfg.GerminateEveryTurns) == 0 {
		o.Germinate()
	}
	if turn%uint64(o.cfg.PruneEveryTurns) == 0 {
		o.Prune()
	}
}

// seedChunk extracts sentences from text, upserts a concept per candidate
// label, and creates an Inheritance link for every copular pair and a
// Similarity link for every remaining co-occurring pair — the heart of
// §4.C's extraction pipeline, shared by every caller that seeds text into
// the store. A candidate whose embedding or upsert fails is skipped with a
// warning; three consecutive failures abort the chunk with the last error.
func (o *Orchestrator) seedChunk(ctx context.Context, text string) (*ChunkResult, error) {
	const maxConsecutiveFailures = 3
	result := &ChunkResult{}
	var touched []string
	failures := 0

	for _, sent := range extract.Extract(text) {
		labelIDs := make(map[string]string, len(sent.Candidates))
		for _, label := range sent.Candidates {
			id, err := o.upsertConceptLabel(ctx, label, result)
			if err != nil {
				failures++
				if failures >= maxConsecutiveFailures {
					return nil, err
				}
				logger.Warn("cultivate: skipping candidate", "label", label, "error", err)
				continue
			}
			failures = 0
			labelIDs[strings.ToLower(label)] = id
			touched = append(touched, id)
		}

		copular := extract.CopularPairs(sent)
		claimed := make(map[string]bool, len(copular)*2)
		for _, pair := range copular {
			o.linkPair(pair, labelIDs, kb.KindInheritance, truth.MustNew(1.0, copularConfidence), result)
			claimed[strings.ToLower(pair.Subject)+"|"+strings.ToLower(pair.Object)] = true
			claimed[strings.ToLower(pair.Object)+"|"+strings.ToLower(pair.Subject)] = true
		}

		for _, pair := range extract.CooccurringPairs(sent) {
			key := strings.ToLower(pair.Subject) + "|" + strings.ToLower(pair.Object)
			if claimed[key] {
				continue
			}
			o.linkPair(pair, labelIDs, kb.KindSimilarity, truth.MustNew(0.5, cooccurrenceConfidence), result)
		}
	}

	if len(touched) > 0 {
		o.mu.Lock()
		o.lastDiscussed = touched
		o.mu.Unlock()
	}
	result.ConceptIDs = touched
	return result, nil
}

func (o *Orchestrator) upsertConceptLabel(ctx context.Context, label string, result *ChunkResult) (string, error) {
	vec, err := o.embedder.Embed(ctx, label, embed.ModeDocument)
	if err != nil {
		return "", fmt.Errorf("cultivate: embedding %q: %w", label, err)
	}
	id, wasNew, err := o.store.UpsertConcept(label, vec)
	if err != nil {
		return "", fmt.Errorf("cultivate: upserting concept %q: %w", label, err)
	}

	kind := events.KindConceptReinforced
	if wasNew {
		result.NewConcepts++
		kind = events.KindConceptCreated
	}
	energy := 0.0
	if c, ok := o.store.Get(id); ok {
		energy = c.Energy
	}
	o.bus.Publish(events.Event{Kind: kind, ConceptID: id, Label: label, Energy: energy})
	return id, nil
}

func (o *Orchestrator) linkPair(pair extract.Pair, labelIDs map[string]string, kind kb.Kind, delta truth.Value, result *ChunkResult) {
	subjectID, ok := labelIDs[strings.ToLower(pair.Subject)]
	if !ok {
		return
	}
	objectID, ok := labelIDs[strings.ToLower(pair.Object)]
	if !ok || subjectID == objectID {
		return
	}

	participants := []kb.Participant{
		{ConceptID: subjectID, Role: kb.RoleSubject, Position: 0},
		{ConceptID: objectID, Role: kb.RoleObject, Position: 1},
	}
	id, wasNew, err := o.store.UpsertLink(kind, "", participants, delta)
	if err != nil {
		return
	}
	if wasNew {
		result.NewLinks++
	}
	o.bus.Publish(events.Event{
		Kind:        events.KindLinkCreated,
		LinkID:      id,
		LinkKind:    string(kind),
		SourceLabel: pair.Subject,
		TargetLabel: pair.Object,
	})
}

func (o *Orchestrator) publishDerivation(d infer.Derivation) {
	e := events.Event{Kind: events.KindLinkCreated, LinkID: d.LinkID, LinkKind: string(d.Kind)}
	if l, ok := o.store.GetLink(d.LinkID); ok {
		for _, p := range l.Participants {
			c, ok := o.store.Get(p.ConceptID)
			if !ok {
				continue
			}
			switch p.Role {
			case kb.RoleSubject:
				e.SourceLabel = c.Label
			case kb.RoleObject:
				e.TargetLabel = c.Label
			}
		}
	}
	o.bus.Publish(e)
}

// handleFeedback folds a confirm/deny reply into the concepts (and their
// incident links) touched by the most recent seedChunk call.
func (o *Orchestrator) handleFeedback(intent extract.Intent) {
	o.mu.Lock()
	targets := o.lastDiscussed
	o.mu.Unlock()

	positive := intent == extract.IntentConfirm
	for _, id := range targets {
		if err := o.store.ObserveConcept(id, positive, 0.2); err != nil {
			continue
		}
		for _, l := range o.store.LinksFor(id) {
			_ = o.store.ObserveLink(l.ID, positive)
		}
	}
}

// questionFor picks a relation or causal-link question when c has a
// qualifying low-confidence incident link, falling back to a plain concept
// question otherwise.
func (o *Orchestrator) questionFor(c *kb.Concept, links []*kb.Link) string {
	for _, l := range links {
		if l.Truth.Confidence() >= 0.5 {
			continue
		}
		otherID := otherParticipant(l, c.ID)
		if otherID == "" {
			continue
		}
		peer, ok := o.store.Get(otherID)
		if !ok {
			continue
		}
		if l.Kind.IsCausal() {
			return questionForCausalLink(c, peer)
		}
		return questionForRelation(c, peer)
	}
	return questionForConcept(c)
}

func otherParticipant(l *kb.Link, exclude string) string {
	for _, p := range l.Participants {
		if p.ConceptID != exclude {
			return p.ConceptID
		}
	}
	return ""
}
