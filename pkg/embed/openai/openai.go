// Package openai implements pkg/embed.Embedder against an OpenAI-compatible
// embeddings endpoint, for nomic-embed-text-style models that expect a
// "search_document: " / "search_query: " instruction prefix distinguishing
// what's being embedded.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"

	"github.com/offis-rit/epistemic-core/pkg/embed"
)

// maxTransientRetries bounds the attempts EmbedBatch's own retry loop makes
// per request. Every error is retried while the request context is still
// live; the loop does not tell a transient failure from a malformed request.
const maxTransientRetries = 3

// Client embeds text via a single model on an OpenAI-compatible endpoint.
type Client struct {
	model     string
	dimension int
	timeout   time.Duration
	reqLock   *semaphore.Weighted
	api       *openai.Client
}

// Params configures a new Client.
type Params struct {
	Model   string
	BaseURL string
	APIKey  string

	Dimension             int
	MaxConcurrentRequests int64
	Timeout               time.Duration
}

const defaultTimeout = 2 * time.Minute

// New constructs a Client.
func New(params Params) *Client {
	opts := []option.RequestOption{option.WithAPIKey(params.APIKey)}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}
	cli := openai.NewClient(opts...)

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		model:     params.Model,
		dimension: params.Dimension,
		timeout:   timeout,
		reqLock:   semaphore.NewWeighted(maxConcurrent),
		api:       &cli,
	}
}

// Dimension reports the configured vector length.
func (c *Client) Dimension() int { return c.dimension }

func withPrefix(text string, mode embed.Mode) string {
	if mode == embed.ModeQuery {
		return "search_query: " + text
	}
	return "search_document: " + text
}

// Embed returns the embedding of a single piece of text.
func (c *Client) Embed(ctx context.Context, text string, mode embed.Mode) ([]float32, error) {
	res, err := c.EmbedBatch(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("embed/openai: unexpected result size: got %d want 1", len(res))
	}
	return res[0], nil
}

// EmbedBatch embeds every text in a single request, preserving order.
// Blank entries short-circuit to a zero vector without touching the
// network.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, mode embed.Mode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	idx := make([]int, 0, len(texts))
	prefixed := make([]string, 0, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, c.dimension)
			continue
		}
		idx = append(idx, i)
		prefixed = append(prefixed, withPrefix(t, mode))
	}
	if len(prefixed) == 0 {
		return out, nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: prefixed},
		Model: c.model,
	}
	// The SDK's response type isn't named here (it's inferred below), so
	// this mirrors util.RetryWithContext's retry-on-transient-error loop
	// directly rather than going through its generic signature.
	res, err := c.api.Embeddings.New(rCtx, body)
	for attempt := 1; err != nil && rCtx.Err() == nil && attempt < maxTransientRetries; attempt++ {
		res, err = c.api.Embeddings.New(rCtx, body)
	}
	if err != nil {
		return nil, err
	}
	if len(res.Data) != len(prefixed) {
		return nil, fmt.Errorf("embed/openai: response size mismatch: got %d want %d", len(res.Data), len(prefixed))
	}

	for _, d := range res.Data {
		dataIdx := int(d.Index)
		if dataIdx < 0 || dataIdx >= len(idx) {
			return nil, fmt.Errorf("embed/openai: index out of range: %d", d.Index)
		}
		out[idx[dataIdx]] = fitDimension(d.Embedding, c.dimension)
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("embed/openai: missing embedding for index %d", i)
		}
	}
	return out, nil
}

func fitDimension(vec []float64, dim int) []float32 {
	out := make([]float32, dim)
	for i := 0; i < dim && i < len(vec); i++ {
		out[i] = float32(vec[i])
	}
	return out
}
