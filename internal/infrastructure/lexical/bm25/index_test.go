package bm25

import (
	"testing"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

func seedIndex() *Index {
	ix := New(1.5, 0.75)
	ix.Index("core", []domain.Chunk{
		{ID: "c1", Header: "Movement Phase", Text: "Each model can move up to 6 inches during the movement phase."},
		{ID: "c2", Header: "Shooting Phase", Text: "Roll attack dice against the target's defence."},
		{ID: "c3", Header: "Charge", Text: "A charging model moves into engagement range."},
	})
	return ix
}

func TestSearchRanksLexicalOverlapFirst(t *testing.T) {
	ix := seedIndex()
	got := ix.Search("movement phase rules", 10)
	if len(got) == 0 {
		t.Fatalf("expected results")
	}
	if got[0].ID != "c1" {
		t.Fatalf("expected movement chunk first, got %s", got[0].ID)
	}
	for _, c := range got {
		if c.Score <= 0 {
			t.Fatalf("BM25 scores must be positive, got %v", c.Score)
		}
	}
}

func TestSearchDeterministic(t *testing.T) {
	ix := seedIndex()
	first := ix.Search("attack dice", 10)
	second := ix.Search("attack dice", 10)
	if len(first) != len(second) {
		t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Score != second[i].Score {
			t.Fatalf("results differ at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSearchUsesHeaderAndSummaryTokens(t *testing.T) {
	ix := New(1.5, 0.75)
	ix.Index("faq", []domain.Chunk{
		{ID: "f1", Header: "Overwatch", Text: "See the designer commentary.", Summary: "Shooting in the opponent turn."},
	})
	if got := ix.Search("overwatch", 5); len(got) != 1 {
		t.Fatalf("header token should match, got %d results", len(got))
	}
	if got := ix.Search("opponent", 5); len(got) != 1 {
		t.Fatalf("summary token should match, got %d results", len(got))
	}
}

func TestReindexReplacesSource(t *testing.T) {
	ix := seedIndex()
	before := ix.Size()
	ix.Index("core", []domain.Chunk{
		{ID: "c9", Header: "Movement Phase", Text: "Updated movement rules."},
	})
	if ix.Size() != 1 {
		t.Fatalf("reindex should replace chunks, size=%d (was %d)", ix.Size(), before)
	}
	got := ix.Search("movement", 10)
	if len(got) != 1 || got[0].ID != "c9" {
		t.Fatalf("expected only the new chunk, got %+v", got)
	}
}

func TestRemoveDropsSource(t *testing.T) {
	ix := seedIndex()
	ix.Remove("core")
	if ix.Size() != 0 {
		t.Fatalf("expected empty index after remove, size=%d", ix.Size())
	}
	if got := ix.Search("movement", 10); len(got) != 0 {
		t.Fatalf("expected no results after remove, got %d", len(got))
	}
}

func TestSearchEmptyQueryReturnsNil(t *testing.T) {
	ix := seedIndex()
	if got := ix.Search("   ", 10); got != nil {
		t.Fatalf("expected nil for empty query, got %v", got)
	}
}
