package keyword

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

func corpusChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "c1", Header: "Movement Phase", Text: "Each model can move up to 6 inches."},
		{ID: "c2", Header: "Accurate x", Text: "Re-roll one attack die."},
		{ID: "c3", Header: "Lethal 5+", Text: "Critical hits on 5+."},
		{ID: "c4", Header: "KOMMANDO - FLUID - CUNNING", Text: "Operative rules."},
		{ID: "c5", Header: "Overwatch", Text: "## Overwatch\nShoot during the opponent's turn."},
	}
}

func TestBuildHarvestsKeywordPatterns(t *testing.T) {
	ix := Build(corpusChunks(), 4, 8)
	keywords := ix.Keywords()

	want := []string{"Accurate", "CUNNING", "FLUID", "KOMMANDO", "Lethal", "Overwatch"}
	if !reflect.DeepEqual(keywords, want) {
		t.Fatalf("unexpected vocabulary: got %v want %v", keywords, want)
	}
}

func TestHeadersForMapsKeywordToHeaders(t *testing.T) {
	ix := Build(corpusChunks(), 4, 8)
	headers := ix.HeadersFor("accurate")
	if len(headers) != 1 || headers[0] != "Accurate x" {
		t.Fatalf("unexpected headers for Accurate: %v", headers)
	}
	if got := ix.HeadersFor("unknown"); got != nil {
		t.Fatalf("unknown keyword should map to nil, got %v", got)
	}
}

func TestOvermatchFilterDropsGenericKeywords(t *testing.T) {
	chunks := make([]domain.Chunk, 0, 6)
	for _, h := range []string{"Strategy Alpha", "Strategy Beta", "Strategy Gamma"} {
		chunks = append(chunks, domain.Chunk{Header: h})
	}
	chunks = append(chunks, domain.Chunk{Header: "Strategy"})

	ix := Build(chunks, 4, 2)
	if got := ix.HeadersFor("strategy"); got != nil {
		t.Fatalf("overmatched keyword should be dropped from the map, got %v", got)
	}
	// Vocabulary itself keeps the term for normalization.
	found := false
	for _, kw := range ix.Keywords() {
		if kw == "Strategy" {
			found = true
		}
	}
	if !found {
		t.Fatalf("vocabulary lost the keyword entirely: %v", ix.Keywords())
	}
}

func TestQueryKeywordsPreservesOrderAndDeduplicates(t *testing.T) {
	ix := Build(corpusChunks(), 4, 8)
	got := ix.QueryKeywords("How does Accurate interact with Lethal and accurate again?")
	want := []string{"Accurate", "Lethal"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected query keywords: got %v want %v", got, want)
	}
}

func TestNormalizeQueryRewritesCanonicalCasing(t *testing.T) {
	ix := Build(corpusChunks(), 4, 8)
	got := ix.NormalizeQuery("how does accurate work with lethal?")
	want := "how does Accurate work with Lethal?"
	if got != want {
		t.Fatalf("normalize: got %q want %q", got, want)
	}
}

func TestNormalizeQueryPreservesPunctuation(t *testing.T) {
	ix := Build(corpusChunks(), 4, 8)
	got := ix.NormalizeQuery(`(accurate), "lethal"!`)
	want := `(Accurate), "Lethal"!`
	if got != want {
		t.Fatalf("normalize: got %q want %q", got, want)
	}
}

func TestMatchesChunkWholeWordOnly(t *testing.T) {
	ix := Build(corpusChunks(), 4, 8)
	chunk := domain.Chunk{Header: "Inaccurate weapons", Text: "Nothing relevant."}
	if ix.MatchesChunk("Accurate", chunk) {
		t.Fatalf("substring inside another word must not match")
	}
	chunk = domain.Chunk{Header: "", Text: "The Accurate rule applies."}
	if !ix.MatchesChunk("Accurate", chunk) {
		t.Fatalf("whole word in text should match")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ix := Build(corpusChunks(), 4, 8)
	if err := SaveCache(dir, ix); err != nil {
		t.Fatalf("SaveCache() error = %v", err)
	}

	loaded, err := LoadCache(dir, 4, 8)
	if err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	if !reflect.DeepEqual(loaded.Keywords(), ix.Keywords()) {
		t.Fatalf("vocabulary mismatch after reload: %v vs %v", loaded.Keywords(), ix.Keywords())
	}
	if !reflect.DeepEqual(loaded.HeadersFor("lethal"), ix.HeadersFor("lethal")) {
		t.Fatalf("header map mismatch after reload")
	}
	if _, err := LoadCache(filepath.Join(dir, "missing"), 4, 8); err == nil {
		t.Fatalf("expected error for missing cache dir")
	}
}

func TestSynonymExpansionAppendsDirectedTerms(t *testing.T) {
	syn := NewSynonyms(map[string][]string{
		"shooting": {"ranged", "attack"},
	})
	got := syn.Expand("rules for shooting?")
	want := "rules for shooting? ranged attack"
	if got != want {
		t.Fatalf("expand: got %q want %q", got, want)
	}
	if got := syn.Expand("movement rules"); got != "movement rules" {
		t.Fatalf("no-op expansion changed query: %q", got)
	}
}
