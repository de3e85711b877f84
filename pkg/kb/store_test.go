package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offis-rit/epistemic-core/pkg/truth"
)

func unitVec(dims int, hot int) []float32 {
	v := make([]float32, dims)
	v[hot%dims] = 1
	return v
}

func TestUpsertConceptCreatesNewWhenNoNeighbour(t *testing.T) {
	s := NewStore(DefaultConfig())
	id, wasNew, err := s.UpsertConcept("gato", unitVec(8, 0))
	require.NoError(t, err)
	assert.True(t, wasNew)
	c, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, 1.0, c.Energy)
	assert.Equal(t, Active, c.State)
	assert.Equal(t, uint64(1), c.MentionCount)
}

func TestUpsertConceptMergesAboveThreshold(t *testing.T) {
	s := NewStore(DefaultConfig())
	emb := unitVec(8, 0)
	id1, _, err := s.UpsertConcept("sustentabilidade", emb)
	require.NoError(t, err)

	id2, wasNew, err := s.UpsertConcept("sustentavel", emb)
	require.NoError(t, err)
	assert.False(t, wasNew)
	assert.Equal(t, id1, id2)

	c, _ := s.Get(id1)
	assert.Equal(t, uint64(2), c.MentionCount)
}

func TestUpsertConceptDistinctEmbeddingsStayDistinct(t *testing.T) {
	s := NewStore(DefaultConfig())
	id1, _, err := s.UpsertConcept("a", unitVec(8, 0))
	require.NoError(t, err)
	id2, _, err := s.UpsertConcept("b", unitVec(8, 4))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, s.ConceptCount())
}

func TestReinforcementRaisesEnergyAndConfidence(t *testing.T) {
	s := NewStore(DefaultConfig())
	emb := unitVec(8, 0)
	id, _, err := s.UpsertConcept("gato", emb)
	require.NoError(t, err)
	c, _ := s.Get(id)
	confAfterFirst := c.Truth.Confidence()

	_, _, err = s.UpsertConcept("gato", emb)
	require.NoError(t, err)

	c, _ = s.Get(id)
	assert.Equal(t, uint64(2), c.MentionCount)
	assert.Greater(t, c.Energy, 0.9)
	assert.Greater(t, c.Truth.Confidence(), confAfterFirst)
}

func TestReinforceConceptRejectsArchived(t *testing.T) {
	s := NewStore(Config{DecayRate: 0.5, DormantThreshold: 0.5, FadingThreshold: 0.2, ArchiveAfterTicks: 1})
	id, _, err := s.UpsertConcept("x", unitVec(8, 0))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		s.DecayCycle()
	}
	c, _ := s.Get(id)
	require.Equal(t, Archived, c.State)

	err = s.ReinforceConcept(id, 0.3)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpsertLinkRejectsFewerThanTwoParticipants(t *testing.T) {
	s := NewStore(DefaultConfig())
	id, _, _ := s.UpsertConcept("a", unitVec(8, 0))
	_, _, err := s.UpsertLink(KindInheritance, "", []Participant{{ConceptID: id, Role: RoleSubject}}, truth.Proto())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpsertLinkRejectsDanglingParticipant(t *testing.T) {
	s := NewStore(DefaultConfig())
	id, _, _ := s.UpsertConcept("a", unitVec(8, 0))
	_, _, err := s.UpsertLink(KindInheritance, "", []Participant{
		{ConceptID: id, Role: RoleSubject},
		{ConceptID: "missing", Role: RoleObject},
	}, truth.Proto())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpsertLinkIsIdempotentOnCanonicalID(t *testing.T) {
	s := NewStore(DefaultConfig())
	a, _, _ := s.UpsertConcept("a", unitVec(8, 0))
	b, _, _ := s.UpsertConcept("b", unitVec(8, 4))

	id1, wasNew1, err := s.UpsertLink(KindInheritance, "", []Participant{
		{ConceptID: a, Role: RoleSubject, Position: 0},
		{ConceptID: b, Role: RoleObject, Position: 1},
	}, truth.MustNew(0.9, 0.5))
	require.NoError(t, err)
	assert.True(t, wasNew1)

	id2, wasNew2, err := s.UpsertLink(KindInheritance, "", []Participant{
		{ConceptID: a, Role: RoleSubject, Position: 0},
		{ConceptID: b, Role: RoleObject, Position: 1},
	}, truth.MustNew(0.8, 0.4))
	require.NoError(t, err)
	assert.False(t, wasNew2)
	assert.Equal(t, id1, id2)

	l, _ := s.GetLink(id1)
	assert.Greater(t, l.Truth.Confidence(), 0.5)
}

func TestNeighboursBFS(t *testing.T) {
	s := NewStore(DefaultConfig())
	a, _, _ := s.UpsertConcept("a", unitVec(8, 0))
	b, _, _ := s.UpsertConcept("b", unitVec(8, 4))
	c, _, _ := s.UpsertConcept("c", unitVec(8, 2))
	_, _, err := s.UpsertLink(KindInheritance, "", []Participant{{ConceptID: a, Role: RoleSubject}, {ConceptID: b, Role: RoleObject}}, truth.Proto())
	require.NoError(t, err)
	_, _, err = s.UpsertLink(KindInheritance, "", []Participant{{ConceptID: b, Role: RoleSubject}, {ConceptID: c, Role: RoleObject}}, truth.Proto())
	require.NoError(t, err)

	n1, err := s.Neighbours(a, 1)
	require.NoError(t, err)
	ids := make(map[string]bool)
	for _, c := range n1 {
		ids[c.ID] = true
	}
	assert.True(t, ids[a])
	assert.True(t, ids[b])
	assert.False(t, ids[c])

	n2, err := s.Neighbours(a, 2)
	require.NoError(t, err)
	assert.Len(t, n2, 3)
}

func TestDecayCycleArchivesAfterConfiguredTicks(t *testing.T) {
	s := NewStore(Config{DecayRate: 0.5, DormantThreshold: 0.5, FadingThreshold: 0.2, ArchiveAfterTicks: 2})
	id, _, err := s.UpsertConcept("x", unitVec(8, 0))
	require.NoError(t, err)

	var sawFading bool
	for i := 0; i < 10; i++ {
		fading := s.DecayCycle()
		for _, fid := range fading {
			if fid == id {
				sawFading = true
			}
		}
	}
	assert.True(t, sawFading)
	c, _ := s.Get(id)
	assert.Equal(t, Archived, c.State)
}

func TestArchivedConceptDoesNotResurrectOnReingest(t *testing.T) {
	s := NewStore(Config{DecayRate: 0.5, DormantThreshold: 0.5, FadingThreshold: 0.2, ArchiveAfterTicks: 1})
	emb := unitVec(8, 0)
	id1, _, err := s.UpsertConcept("x", emb)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		s.DecayCycle()
	}
	c, _ := s.Get(id1)
	require.Equal(t, Archived, c.State)

	id2, wasNew, err := s.UpsertConcept("x", emb)
	require.NoError(t, err)
	assert.True(t, wasNew)
	assert.NotEqual(t, id1, id2)
}

func TestQuerySimilarRespectsThresholdAndOrder(t *testing.T) {
	s := NewStore(DefaultConfig())
	for i := 0; i < 100; i++ {
		_, _, err := s.UpsertConcept("c", unitVec(128, i*5))
		require.NoError(t, err)
	}
	target := unitVec(128, 42*5)
	// construct a query embedding with cosine ~0.38 against concept #42's axis
	query := make([]float32, 128)
	copy(query, target)
	query[(42*5+1)%128] = 2.42 // skew so cosine isn't 1.0 but still clears 0.35

	results := s.QuerySimilar(query, 0.35, 0)
	require.NotEmpty(t, results)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewStore(DefaultConfig())
	a, _, err := s.UpsertConcept("a", unitVec(8, 0))
	require.NoError(t, err)
	b, _, err := s.UpsertConcept("b", unitVec(8, 4))
	require.NoError(t, err)
	_, _, err = s.UpsertLink(KindInheritance, "", []Participant{{ConceptID: a, Role: RoleSubject}, {ConceptID: b, Role: RoleObject}}, truth.MustNew(0.9, 0.5))
	require.NoError(t, err)

	data, err := s.Snapshot()
	require.NoError(t, err)

	restored := NewStore(DefaultConfig())
	require.NoError(t, restored.Restore(data))

	assert.Equal(t, s.ConceptCount(), restored.ConceptCount())
	assert.Equal(t, s.LinkCount(), restored.LinkCount())

	origConcept, _ := s.Get(a)
	restoredConcept, _ := restored.Get(a)
	assert.InDelta(t, origConcept.Truth.Frequency(), restoredConcept.Truth.Frequency(), 1e-9)
	assert.InDelta(t, origConcept.Truth.Confidence(), restoredConcept.Truth.Confidence(), 1e-9)
	assert.Equal(t, origConcept.Label, restoredConcept.Label)
}

func TestConfidenceAlwaysStrictlyBelowOne(t *testing.T) {
	s := NewStore(DefaultConfig())
	emb := unitVec(8, 0)
	id, _, err := s.UpsertConcept("x", emb)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		_, _, err := s.UpsertConcept("x", emb)
		require.NoError(t, err)
	}
	c, _ := s.Get(id)
	assert.Less(t, c.Truth.Confidence(), 1.0)
}
