package extract

import (
	"context"
	"fmt"
	"sync"

	"github.com/offis-rit/epistemic-core/pkg/embed"
	"github.com/offis-rit/epistemic-core/pkg/kb"
)

// Intent is the coarse classification of a user message. Teach/Ask/Recall/
// Command are the base set; Confirm/Deny are supplemented for the
// cultivation orchestrator's conversational feedback loop (§4.E).
type Intent int

const (
	IntentTeach Intent = iota
	IntentAsk
	IntentRecall
	IntentCommand
	IntentConfirm
	IntentDeny
)

func (i Intent) String() string {
	switch i {
	case IntentAsk:
		return "ask"
	case IntentRecall:
		return "recall"
	case IntentCommand:
		return "command"
	case IntentConfirm:
		return "confirm"
	case IntentDeny:
		return "deny"
	default:
		return "teach"
	}
}

// prototypePhrases seeds each intent's embedding with a handful of
// representative utterances rather than a single brittle example.
var prototypePhrases = map[Intent][]string{
	IntentTeach:   {"isso é", "eu acho que", "na minha experiência", "o fato é que"},
	IntentAsk:     {"o que é", "por que", "como funciona", "qual é o motivo"},
	IntentRecall:  {"você lembra", "o que eu disse sobre", "já falamos sobre isso"},
	IntentCommand: {"mostre", "liste", "execute", "apague"},
	IntentConfirm: {"sim", "exatamente", "isso mesmo", "correto"},
	IntentDeny:    {"não", "não é isso", "incorreto", "errado"},
}

// Classifier classifies a message's intent by comparing its query-mode
// embedding against one prototype vector per intent, built by averaging
// the embeddings of that intent's phrases on first use.
type Classifier struct {
	embedder embed.Embedder

	mu         sync.Mutex
	prototypes map[Intent][]float32
}

// NewClassifier returns a Classifier backed by embedder. Prototype vectors
// are computed lazily on the first Classify call.
func NewClassifier(embedder embed.Embedder) *Classifier {
	return &Classifier{embedder: embedder}
}

func (c *Classifier) ensurePrototypes(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prototypes != nil {
		return nil
	}

	prototypes := make(map[Intent][]float32, len(prototypePhrases))
	for intent, phrases := range prototypePhrases {
		vecs, err := c.embedder.EmbedBatch(ctx, phrases, embed.ModeDocument)
		if err != nil {
			return fmt.Errorf("extract: embedding %s prototypes: %w", intent, err)
		}
		prototypes[intent] = averageVectors(vecs, c.embedder.Dimension())
	}
	c.prototypes = prototypes
	return nil
}

// Classify returns the arg-max intent for text and its cosine score
// against that intent's prototype.
func (c *Classifier) Classify(ctx context.Context, text string) (Intent, float32, error) {
	if err := c.ensurePrototypes(ctx); err != nil {
		return IntentTeach, 0, err
	}

	vec, err := c.embedder.Embed(ctx, text, embed.ModeQuery)
	if err != nil {
		return IntentTeach, 0, fmt.Errorf("extract: embedding message: %w", err)
	}

	c.mu.Lock()
	prototypes := c.prototypes
	c.mu.Unlock()

	best := IntentTeach
	var bestScore float32 = -1
	for intent, proto := range prototypes {
		score := kb.CosineSimilarity(vec, proto)
		if score > bestScore {
			best, bestScore = intent, score
		}
	}
	return best, bestScore, nil
}

func averageVectors(vecs [][]float32, dim int) []float32 {
	out := make([]float32, dim)
	if len(vecs) == 0 {
		return out
	}
	for _, v := range vecs {
		for i := 0; i < dim && i < len(v); i++ {
			out[i] += v[i]
		}
	}
	n := float32(len(vecs))
	for i := range out {
		out[i] /= n
	}
	return out
}
