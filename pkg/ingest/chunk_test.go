package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRespectsParagraphBoundariesWhenTheyFit(t *testing.T) {
	text := "Primeiro paragrafo curto.\n\nSegundo paragrafo curto."
	chunks := Chunk(text, 2000)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "Primeiro")
	assert.Contains(t, chunks[0], "Segundo")
}

func TestChunkSplitsWhenCombinedParagraphsExceedBudget(t *testing.T) {
	a := strings.Repeat("um parágrafo bem longo sobre um assunto qualquer. ", 30)
	b := strings.Repeat("outro parágrafo, também longo, sobre outro assunto. ", 30)
	text := a + "\n\n" + b

	chunks := Chunk(text, 500)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 500)
	}
}

func TestChunkSplitsOversizedParagraphOnSentenceBoundaries(t *testing.T) {
	text := strings.Repeat("Esta é uma frase de teste bem construída. ", 50)
	chunks := Chunk(text, 300)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 300)
	}
}

func TestChunkNeverReturnsEmptyPiece(t *testing.T) {
	chunks := Chunk("texto curto.", 2000)
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}
