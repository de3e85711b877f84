// Package ingest drives the PDF ingestion pipeline: extract text, repair
// broken PT-BR words, chunk on sentence boundaries, and feed each chunk
// through the cultivation orchestrator's shared seed operation in
// parallel, mirroring the teacher's errgroup-based worker pool in
// pkg/graph/process.go.
package ingest

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/offis-rit/epistemic-core/pkg/cultivate"
	"github.com/offis-rit/epistemic-core/pkg/events"
	"github.com/offis-rit/epistemic-core/pkg/ingest/pdfextract"
)

// Config tunes chunk size and worker concurrency. Zero values fall back to
// the defaults below.
type Config struct {
	ChunkSize int
	Workers   int
}

func (c Config) withDefaults() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = 2000
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	return c
}

// Result summarises a completed PDF ingestion.
type Result struct {
	TotalChunks int
	NewConcepts int
	NewLinks    int
	ExtractMs   int64
	IngestionMs int64
	TotalMs     int64
}

// PDF extracts, normalises, chunks, and ingests a PDF byte blob through
// orch, publishing the same event sequence a plain-text IngestText call
// would produce per chunk, framed by a document-level Started/Completed
// pair. Chunks are seeded concurrently by a worker pool sized to cfg's
// Workers; each worker calls orch.IngestChunk, which itself serialises
// against the orchestrator's single-writer lease, so concurrent workers
// never race on the store. A chunk that fails is reported as an Error event
// and skipped; the job as a whole fails only once ctx is done.
func PDF(ctx context.Context, orch *cultivate.Orchestrator, bus *events.Bus, pdf []byte, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	tTotal := time.Now()

	tExtract := time.Now()
	raw, err := pdfextract.Extract(pdf)
	if err != nil {
		bus.Publish(events.Event{Kind: events.KindError, Message: err.Error()})
		return nil, fmt.Errorf("ingest: extracting pdf text: %w", err)
	}
	text := Normalize(raw)
	extractMs := time.Since(tExtract).Milliseconds()

	if len(text) == 0 {
		bus.Publish(events.Event{Kind: events.KindError, Message: "pdf contains no extractable text"})
		return nil, fmt.Errorf("ingest: pdf contains no extractable text")
	}

	chunks := Chunk(text, cfg.ChunkSize)
	total := len(chunks)

	bus.Publish(events.Event{Kind: events.KindStarted, TextLen: len(text), TotalChunks: total})

	tIngestion := time.Now()

	var mu sync.Mutex
	var newConcepts, newLinks int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			bus.Publish(events.Event{Kind: events.KindChunkStarted, Chunk: i + 1, Total: total, Chars: len(chunk)})

			r, err := orch.IngestChunk(gctx, chunk)
			if err != nil {
				bus.Publish(events.Event{Kind: events.KindError, Message: err.Error()})
				if gctx.Err() != nil {
					return fmt.Errorf("ingest: seeding chunk %d: %w", i+1, err)
				}
				return nil
			}

			mu.Lock()
			newConcepts += r.NewConcepts
			newLinks += r.NewLinks
			mu.Unlock()

			bus.Publish(events.Event{
				Kind:        events.KindChunkCompleted,
				Chunk:       i + 1,
				Total:       total,
				NewConcepts: r.NewConcepts,
				NewLinks:    r.NewLinks,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	orch.Photosynthesise()
	orch.Germinate()
	orch.Prune()

	ingestionMs := time.Since(tIngestion).Milliseconds()
	totalMs := time.Since(tTotal).Milliseconds()

	result := &Result{
		TotalChunks: total,
		NewConcepts: newConcepts,
		NewLinks:    newLinks,
		ExtractMs:   extractMs,
		IngestionMs: ingestionMs,
		TotalMs:     totalMs,
	}

	bus.Publish(events.Event{
		Kind:        events.KindCompleted,
		TotalChunks: total,
		NewConcepts: newConcepts,
		NewLinks:    newLinks,
		KBConcepts:  orch.Store().ConceptCount(),
		KBLinks:     orch.Store().LinkCount(),
		ExtractMs:   extractMs,
		IngestionMs: ingestionMs,
		TotalMs:     totalMs,
	})

	return result, nil
}
