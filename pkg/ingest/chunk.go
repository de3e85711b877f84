package ingest

import (
	"strings"

	"github.com/clipperhouse/uax29/v2/sentences"
	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding mirrors the teacher's encoder/model for token counting;
// it is close enough to any embedding backend's own tokenizer for a
// cross-check to be meaningful.
const defaultEncoding = "cl100k_base"

// maxTokensPerChunk is the hard ceiling enforced on top of the char budget,
// since a char count alone can under-estimate token density for dense
// PT-BR prose.
const maxTokensPerChunk = 512

// Chunk splits normalised text into windows of approximately maxChars
// characters, preferring paragraph then sentence boundaries, with a
// token-budget cross-check so a chunk that is short in characters but
// dense in tokens still gets split.
func Chunk(text string, maxChars int) []string {
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return chunkByChars(text, maxChars)
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	fits := func(candidate string) bool {
		if len(candidate) > maxChars {
			return false
		}
		return len(enc.Encode(candidate, nil, nil)) <= maxTokensPerChunk
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		candidate := paragraph
		if current.Len() > 0 {
			candidate = current.String() + " " + paragraph
		}

		if fits(candidate) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(paragraph)
			continue
		}

		flush()

		if fits(paragraph) {
			current.WriteString(paragraph)
			continue
		}

		for _, sentence := range splitSentences(paragraph) {
			sCandidate := sentence
			if current.Len() > 0 {
				sCandidate = current.String() + " " + sentence
			}
			if fits(sCandidate) {
				if current.Len() > 0 {
					current.WriteString(" ")
				}
				current.WriteString(sentence)
				continue
			}
			flush()
			current.WriteString(sentence)
		}
	}
	flush()

	return chunks
}

func splitSentences(text string) []string {
	var out []string
	seg := sentences.NewSegmenter([]byte(text))
	for seg.Next() {
		s := strings.TrimSpace(string(seg.Value()))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// chunkByChars is the fallback used if the tiktoken encoding table fails to
// load; it respects only the character budget, on paragraph boundaries.
func chunkByChars(text string, maxChars int) []string {
	var chunks []string
	var current strings.Builder

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if current.Len()+len(paragraph)+1 > maxChars && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(paragraph)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}
