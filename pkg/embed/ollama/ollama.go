// Package ollama implements pkg/embed.Embedder against a locally-hosted
// Ollama server, for BERTimbau-style embedding models that need no
// model-level distinction between document and query inputs.
package ollama

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"

	"github.com/offis-rit/epistemic-core/internal/util"
	"github.com/offis-rit/epistemic-core/pkg/embed"
)

// maxTransientRetries is the maxTries passed to util.RetryWithContext: every
// error other than a context cancellation or deadline is retried, up to
// three attempts in all, whether it is a server hiccup or a bad request.
const maxTransientRetries = 3

// Client embeds text via a single model on an Ollama server. Requests are
// gated by a weighted semaphore so a burst of concurrent chunk ingestion
// doesn't overrun the server's own request queue.
type Client struct {
	model      string
	dimension  int
	timeout    time.Duration
	reqLock    *semaphore.Weighted
	httpClient *http.Client
	api        *api.Client
}

// Params configures a new Client.
type Params struct {
	Model   string
	BaseURL string

	// Dimension is the vector length returned by Embed/EmbedBatch. Models
	// that emit fewer values are zero-padded; models that emit more are
	// truncated, mirroring the fixed-width contract the knowledge base's
	// vector index relies on.
	Dimension int

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

const defaultTimeout = 2 * time.Minute

// New constructs a Client. BaseURL defaults to Ollama's usual local
// address when empty.
func New(params Params) (*Client, error) {
	var u *url.URL
	var err error
	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{}
	return &Client{
		model:      params.Model,
		dimension:  params.Dimension,
		timeout:    timeout,
		reqLock:    semaphore.NewWeighted(maxConcurrent),
		httpClient: httpClient,
		api:        api.NewClient(u, httpClient),
	}, nil
}

// Dimension reports the configured vector length.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns the embedding of a single piece of text. Blank input
// yields a zero vector rather than a round trip to the model.
func (c *Client) Embed(ctx context.Context, text string, _ embed.Mode) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, c.dimension), nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := util.RetryWithContext(rCtx, maxTransientRetries, func(ctx context.Context) (*api.EmbedResponse, error) {
		return c.api.Embed(ctx, &api.EmbedRequest{Model: c.model, Input: text})
	})
	if err != nil {
		return nil, err
	}
	return fitDimension(flatten(res.Embeddings), c.dimension), nil
}

// EmbedBatch embeds every non-blank text in a single /api/embed request,
// gated by the same semaphore as Embed, preserving input order. Blank
// entries get a zero vector without touching the network.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, _ embed.Mode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	idx := make([]int, 0, len(texts))
	nonBlank := make([]string, 0, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, c.dimension)
			continue
		}
		idx = append(idx, i)
		nonBlank = append(nonBlank, t)
	}
	if len(nonBlank) == 0 {
		return out, nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := util.RetryWithContext(rCtx, maxTransientRetries, func(ctx context.Context) (*api.EmbedResponse, error) {
		return c.api.Embed(ctx, &api.EmbedRequest{Model: c.model, Input: nonBlank})
	})
	if err != nil {
		return nil, err
	}
	for i, vec := range res.Embeddings {
		if i >= len(idx) {
			break
		}
		out[idx[i]] = fitDimension(vec, c.dimension)
	}
	return out, nil
}

func flatten(embeddings [][]float32) []float32 {
	if len(embeddings) == 0 {
		return nil
	}
	return embeddings[0]
}

func fitDimension(vec []float32, dim int) []float32 {
	if dim <= 0 {
		return vec
	}
	if len(vec) == dim {
		return vec
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out
}
