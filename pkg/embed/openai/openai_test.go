package openai

import (
	"testing"

	"github.com/offis-rit/epistemic-core/pkg/embed"
)

func TestWithPrefixDistinguishesModes(t *testing.T) {
	doc := withPrefix("gato", embed.ModeDocument)
	query := withPrefix("gato", embed.ModeQuery)
	if doc == query {
		t.Fatalf("expected document and query prefixes to differ, both got %q", doc)
	}
	if doc != "search_document: gato" {
		t.Fatalf("got %q", doc)
	}
	if query != "search_query: gato" {
		t.Fatalf("got %q", query)
	}
}

func TestFitDimensionPadsAndTruncates(t *testing.T) {
	out := fitDimension([]float64{1, 2}, 4)
	if len(out) != 4 {
		t.Fatalf("got len %d, want 4", len(out))
	}
	if out[0] != 1 || out[3] != 0 {
		t.Fatalf("unexpected result: %v", out)
	}

	out = fitDimension([]float64{1, 2, 3, 4, 5}, 2)
	if len(out) != 2 {
		t.Fatalf("got len %d, want 2", len(out))
	}
}
