package cultivate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offis-rit/epistemic-core/pkg/embed"
	"github.com/offis-rit/epistemic-core/pkg/events"
	"github.com/offis-rit/epistemic-core/pkg/extract"
	"github.com/offis-rit/epistemic-core/pkg/kb"
	"github.com/offis-rit/epistemic-core/pkg/truth"
)

// hashEmbedder is a deterministic stand-in for a real backend, identical in
// spirit to the one pkg/extract tests against: it derives a vector from the
// text's characters so near-identical strings land close together without
// ever touching the network.
type hashEmbedder struct{ dim int }

func (h *hashEmbedder) Dimension() int { return h.dim }

func (h *hashEmbedder) Embed(_ context.Context, text string, _ embed.Mode) ([]float32, error) {
	out := make([]float32, h.dim)
	for i, r := range text {
		out[i%h.dim] += float32(r % 97)
	}
	return out, nil
}

func (h *hashEmbedder) EmbedBatch(ctx context.Context, texts []string, mode embed.Mode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t, mode)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newTestOrchestrator(cfg Config) (*Orchestrator, *kb.Store, *events.Bus) {
	store := kb.NewStore(kb.DefaultConfig())
	bus := events.NewBus(64)
	return New(store, &hashEmbedder{dim: 16}, bus, cfg), store, bus
}

func TestIngestTextSeedsConceptsAndLinks(t *testing.T) {
	o, store, _ := newTestOrchestrator(DefaultConfig())

	result, err := o.IngestText(context.Background(), "urgencia é um sentimento importante.")
	require.NoError(t, err)
	assert.Equal(t, extract.IntentTeach, result.Intent)
	assert.Greater(t, result.NewConcepts, 0)
	assert.Greater(t, result.NewLinks, 0)
	assert.Greater(t, store.ConceptCount(), 0)
	assert.Greater(t, store.LinkCount(), 0)
}

func TestIngestTextCopularPairBecomesInheritanceNotSimilarity(t *testing.T) {
	o, store, _ := newTestOrchestrator(DefaultConfig())

	result, err := o.IngestText(context.Background(), "urgencia é um sentimento importante.")
	require.NoError(t, err)
	require.NotEmpty(t, result.ConceptIDs)

	foundInheritance := false
	for _, id := range result.ConceptIDs {
		for _, l := range store.LinksFor(id) {
			if l.Kind == kb.KindInheritance {
				foundInheritance = true
			}
		}
	}
	assert.True(t, foundInheritance, "expected the copular sentence to produce an inheritance link")
}

func TestIngestTextConfirmReinforcesLastDiscussed(t *testing.T) {
	o, store, _ := newTestOrchestrator(DefaultConfig())

	taught, err := o.IngestText(context.Background(), "urgencia é um sentimento importante.")
	require.NoError(t, err)
	require.NotEmpty(t, taught.ConceptIDs)

	before := make(map[string]float64, len(taught.ConceptIDs))
	for _, id := range taught.ConceptIDs {
		c, ok := store.Get(id)
		require.True(t, ok)
		before[id] = c.Truth.Confidence()
	}

	confirmed, err := o.IngestText(context.Background(), "sim")
	require.NoError(t, err)
	assert.Equal(t, extract.IntentConfirm, confirmed.Intent)
	assert.Equal(t, 0, confirmed.NewConcepts, "a confirm reply must not seed new concepts")

	for _, id := range taught.ConceptIDs {
		c, ok := store.Get(id)
		require.True(t, ok)
		assert.GreaterOrEqual(t, c.Truth.Confidence(), before[id])
	}
}

func TestIngestTextDenyLowersFrequency(t *testing.T) {
	o, store, _ := newTestOrchestrator(DefaultConfig())

	taught, err := o.IngestText(context.Background(), "urgencia é um sentimento importante.")
	require.NoError(t, err)
	require.NotEmpty(t, taught.ConceptIDs)

	_, err = o.IngestText(context.Background(), "não")
	require.NoError(t, err)

	for _, id := range taught.ConceptIDs {
		c, ok := store.Get(id)
		require.True(t, ok)
		assert.Less(t, c.Truth.Frequency(), 1.0)
	}
}

func TestIngestChunkDoesNotAdvanceTurn(t *testing.T) {
	o, _, _ := newTestOrchestrator(DefaultConfig())

	_, err := o.IngestChunk(context.Background(), "urgencia é um sentimento importante.")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), o.Turn())
}

func TestIngestTextAdvancesTurnAndTriggersCadence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GerminateEveryTurns = 1
	cfg.PruneEveryTurns = 1
	o, _, _ := newTestOrchestrator(cfg)

	_, err := o.IngestText(context.Background(), "urgencia é um sentimento importante.")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), o.Turn())
}

func TestPhotosynthesisePublishesLinkCreatedForDerivation(t *testing.T) {
	o, store, bus := newTestOrchestrator(DefaultConfig())

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	gato, _, err := store.UpsertConcept("gato", unitVec(16, 0))
	require.NoError(t, err)
	felino, _, err := store.UpsertConcept("felino", unitVec(16, 1))
	require.NoError(t, err)
	animal, _, err := store.UpsertConcept("animal", unitVec(16, 2))
	require.NoError(t, err)

	_, _, err = store.UpsertLink(kb.KindInheritance, "", []kb.Participant{
		{ConceptID: gato, Role: kb.RoleSubject}, {ConceptID: felino, Role: kb.RoleObject},
	}, truth.MustNew(0.9, 0.8))
	require.NoError(t, err)
	_, _, err = store.UpsertLink(kb.KindInheritance, "", []kb.Participant{
		{ConceptID: felino, Role: kb.RoleSubject}, {ConceptID: animal, Role: kb.RoleObject},
	}, truth.MustNew(0.95, 0.85))
	require.NoError(t, err)

	derivations := o.Photosynthesise()
	require.NotEmpty(t, derivations)

	select {
	case e := <-ch:
		assert.Equal(t, events.KindLinkCreated, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a link_created event from photosynthesise")
	}
}

func TestGerminateEmitsQuestionForLowConfidenceConcept(t *testing.T) {
	o, store, bus := newTestOrchestrator(DefaultConfig())

	id, _, err := store.UpsertConcept("mistério", unitVec(16, 0))
	require.NoError(t, err)
	c, ok := store.Get(id)
	require.True(t, ok)
	c.Truth = truth.MustNew(0.5, 0.1)
	c.Energy = 0.9

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	o.Germinate()

	select {
	case e := <-ch:
		assert.Equal(t, events.KindQuestionGenerated, e.Kind)
		assert.Equal(t, id, e.ConceptID)
		assert.NotEmpty(t, e.QuestionText)
	case <-time.After(time.Second):
		t.Fatal("expected a question_generated event from germinate")
	}
}

func TestPruneRunsDecayCycle(t *testing.T) {
	o, store, _ := newTestOrchestrator(DefaultConfig())
	id, _, err := store.UpsertConcept("efêmero", unitVec(16, 0))
	require.NoError(t, err)
	c, ok := store.Get(id)
	require.True(t, ok)
	c.Energy = 0.01

	o.Prune()

	c, ok = store.Get(id)
	require.True(t, ok)
	assert.NotEqual(t, kb.Active, c.State)
}

func unitVec(dims, hot int) []float32 {
	v := make([]float32, dims)
	v[hot%dims] = 1
	return v
}
