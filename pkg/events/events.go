// Package events defines the cultivation orchestrator's outbound event
// union and a bounded, drop-oldest broadcaster for it.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which of the outbound event shapes an Event carries.
type Kind string

const (
	KindStarted           Kind = "started"
	KindChunkStarted      Kind = "chunk_started"
	KindConceptCreated    Kind = "concept_created"
	KindConceptReinforced Kind = "concept_reinforced"
	KindLinkCreated       Kind = "link_created"
	KindChunkCompleted    Kind = "chunk_completed"
	KindCompleted         Kind = "completed"
	KindError             Kind = "error"
	KindQuestionGenerated Kind = "question_generated"
)

// Event is the single outbound envelope for every cultivation event: a
// stable id/sequence/timestamp plus every field any event kind might
// carry. Fields irrelevant to a given Kind are left zero and omitted from
// JSON — the same flattened-envelope shape the teacher's TraceEvent uses,
// generalised from one tracing domain to this one.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`

	// Started
	TotalChunks int `json:"total_chunks,omitempty"`
	TextLen     int `json:"text_len,omitempty"`

	// ChunkStarted / ChunkCompleted
	Chunk int `json:"chunk,omitempty"`
	Total int `json:"total,omitempty"`
	Chars int `json:"chars,omitempty"`

	// ConceptCreated / ConceptReinforced
	ConceptID  string   `json:"concept_id,omitempty"`
	Label      string   `json:"label,omitempty"`
	Similarity *float32 `json:"similarity,omitempty"`
	Energy     float64  `json:"energy,omitempty"`

	// LinkCreated
	LinkID      string `json:"link_id,omitempty"`
	LinkKind    string `json:"link_kind,omitempty"`
	SourceLabel string `json:"source_label,omitempty"`
	TargetLabel string `json:"target_label,omitempty"`

	// ChunkCompleted / Completed
	NewConcepts int `json:"new_concepts,omitempty"`
	NewLinks    int `json:"new_links,omitempty"`

	// Completed
	KBConcepts  int   `json:"kb_concepts,omitempty"`
	KBLinks     int   `json:"kb_links,omitempty"`
	ExtractMs   int64 `json:"extract_ms,omitempty"`
	IngestionMs int64 `json:"ingestion_ms,omitempty"`
	TotalMs     int64 `json:"total_ms,omitempty"`

	// Error
	Message string `json:"message,omitempty"`

	// QuestionGenerated
	QuestionText string `json:"question_text,omitempty"`
}
