package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"

	"github.com/offis-rit/epistemic-core/pkg/embed"
	"github.com/offis-rit/epistemic-core/pkg/events"
	"github.com/offis-rit/epistemic-core/pkg/ingest"
)

type handlers struct {
	deps Deps
}

type ingestTextRequest struct {
	Text string `json:"text" validate:"required"`
}

type ingestTextResponse struct {
	Intent      string   `json:"intent"`
	NewConcepts int      `json:"new_concepts"`
	NewLinks    int      `json:"new_links"`
	ConceptIDs  []string `json:"concept_ids"`
}

// ingestText implements POST /ingest/text → ingest_text(text).
func (h *handlers) ingestText(c echo.Context) error {
	var req ingestTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.deps.Orch.IngestText(c.Request().Context(), req.Text)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, ingestTextResponse{
		Intent:      result.Intent.String(),
		NewConcepts: result.NewConcepts,
		NewLinks:    result.NewLinks,
		ConceptIDs:  result.ConceptIDs,
	})
}

// ingestPDF implements POST /ingest/pdf (multipart) → ingest_pdf(bytes).
func (h *handlers) ingestPDF(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing multipart field \"file\"")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	pdf, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cfg := ingest.Config{ChunkSize: h.deps.Cfg.ChunkSize, Workers: h.deps.Cfg.IngestWorkers}
	result, err := ingest.PDF(c.Request().Context(), h.deps.Orch, h.deps.Bus, pdf, cfg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

type queryResponseItem struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Similarity float32 `json:"similarity"`
}

// query implements GET /query?text=&k= → query(text, k).
func (h *handlers) query(c echo.Context) error {
	text := c.QueryParam("text")
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing \"text\" query parameter")
	}
	k := 5
	if raw := c.QueryParam("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "\"k\" must be a positive integer")
		}
		k = parsed
	}

	vec, err := h.deps.Embedder.Embed(c.Request().Context(), text, embed.ModeQuery)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	scored := h.deps.Store.QuerySimilar(vec, h.deps.Cfg.QueryThreshold, k)
	out := make([]queryResponseItem, len(scored))
	for i, s := range scored {
		out[i] = queryResponseItem{ID: s.Concept.ID, Label: s.Concept.Label, Similarity: s.Similarity}
	}
	return c.JSON(http.StatusOK, out)
}

// subscribeEvents implements GET /events (SSE) → subscribe_events().
func (h *handlers) subscribeEvents(c echo.Context) error {
	ch, unsubscribe := h.deps.Bus.Subscribe()
	defer unsubscribe()

	res := c.Response()
	res.Header().Set("Content-Type", "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	w := bufio.NewWriter(res)
	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case e, open := <-ch:
			if !open {
				return nil
			}
			if err := writeSSE(w, e); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w *bufio.Writer, e events.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, body); err != nil {
		return err
	}
	return w.Flush()
}

// eventsSchema implements GET /events/schema → JSON Schema of the outbound
// event union, self-describing the shape consumers of /events should
// expect, the same reflection-based schema generation the teacher's
// pkg/ai.GenerateSchema uses for structured AI output.
func (h *handlers) eventsSchema(c echo.Context) error {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&events.Event{})
	return c.JSON(http.StatusOK, schema)
}

// snapshot implements POST /snapshot → snapshot().
func (h *handlers) snapshot(c echo.Context) error {
	data, err := h.deps.Store.Snapshot()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "application/json", data)
}

// restore implements POST /restore → restore(bytes).
func (h *handlers) restore(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.deps.Store.Restore(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type statusResponse struct {
	Ready       bool `json:"ready"`
	ModelLoaded bool `json:"model_loaded"`
	Concepts    int  `json:"concepts"`
	Links       int  `json:"links"`
	Subscribers int  `json:"subscribers"`
}

// status implements GET /status → status().
func (h *handlers) status(c echo.Context) error {
	ready := true
	if h.deps.ReadyFn != nil {
		ready = h.deps.ReadyFn()
	}
	return c.JSON(http.StatusOK, statusResponse{
		Ready:       ready,
		ModelLoaded: h.deps.Embedder != nil,
		Concepts:    h.deps.Store.ConceptCount(),
		Links:       h.deps.Store.LinkCount(),
		Subscribers: h.deps.Bus.SubscriberCount(),
	})
}
