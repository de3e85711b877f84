package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offis-rit/epistemic-core/pkg/embed"
)

// hashEmbedder is a deterministic stand-in for a real backend: it derives a
// vector from the text's characters so that similar strings land close
// together without ever touching the network.
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

func TestExtractFindsLongContentWordsAndDropsStopwords(t *testing.T) {
	sentences := Extract("A sustentabilidade ambiental é um tema importante.")
	require.Len(t, sentences, 1)
	assert.Contains(t, sentences[0].Candidates, "sustentabilidade")
	assert.Contains(t, sentences[0].Candidates, "ambiental")
	assert.NotContains(t, sentences[0].Candidates, "é")
	assert.NotContains(t, sentences[0].Candidates, "um")
}

func TestExtractCapturesCapitalizedProperNoun(t *testing.T) {
	sentences := Extract("Carlos estudou na Universidade de São Paulo.")
	require.Len(t, sentences, 1)
	assert.Contains(t, sentences[0].Candidates, "Carlos")
	found := false
	for _, c := range sentences[0].Candidates {
		if c == "Universidade de São Paulo" {
			found = true
		}
	}
	assert.True(t, found, "expected compound proper noun candidate, got %v", sentences[0].Candidates)
}

func TestExtractRejectsShortFragment(t *testing.T) {
	sentences := Extract("arm azenagem eficiente")
	require.Len(t, sentences, 1)
	assert.NotContains(t, sentences[0].Candidates, "arm")
}

func TestCooccurringPairsCoversAllCombinations(t *testing.T) {
	s := Sentence{Candidates: []string{"a", "b", "c"}}
	pairs := CooccurringPairs(s)
	assert.Len(t, pairs, 3)
}

func TestCopularPairsDetectsInheritance(t *testing.T) {
	sentences := Extract("urgencia é um sentimento.")
	require.Len(t, sentences, 1)
	pairs := CopularPairs(sentences[0])
	require.Len(t, pairs, 1)
	assert.Equal(t, "urgencia", pairs[0].Subject)
	assert.Equal(t, "sentimento", pairs[0].Object)
}

func TestCopularPairsNoMatchWithoutVerb(t *testing.T) {
	sentences := Extract("a urgencia aumenta todo dia na empresa")
	require.Len(t, sentences, 1)
	assert.Empty(t, CopularPairs(sentences[0]))
}

func TestAverageVectorsHandlesEmpty(t *testing.T) {
	out := averageVectors(nil, 4)
	assert.Len(t, out, 4)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestAverageVectorsAverages(t *testing.T) {
	out := averageVectors([][]float32{{1, 1}, {3, 3}}, 2)
	assert.InDelta(t, 2.0, out[0], 1e-6)
	assert.InDelta(t, 2.0, out[1], 1e-6)
}

func TestClassifierReturnsExactIntentForPrototypePhrase(t *testing.T) {
	c := NewClassifier(&hashEmbedder{dim: 16})
	intent, score, err := c.Classify(context.Background(), "mostre")
	require.NoError(t, err)
	assert.Equal(t, IntentCommand, intent)
	assert.Greater(t, score, float32(0))
}

func TestClassifierPrototypesBuiltOnce(t *testing.T) {
	c := NewClassifier(&hashEmbedder{dim: 16})
	_, _, err := c.Classify(context.Background(), "sim")
	require.NoError(t, err)
	first := c.prototypes
	_, _, err = c.Classify(context.Background(), "não")
	require.NoError(t, err)
	assert.Equal(t, first, c.prototypes)
}
