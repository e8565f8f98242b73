package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

func storedResult(chunkID, source string) *domain.RetrievalResult {
	return &domain.RetrievalResult{Context: domain.RetrievalContext{
		Chunks:    []domain.Chunk{{ID: chunkID, Source: source, Score: 0.9}},
		ChunkHops: map[string]domain.HopMarker{chunkID: domain.HopInitial},
	}}
}

func TestCacheRoundTrip(t *testing.T) {
	c := New(time.Minute, 8)
	want := storedResult("c1", "core")
	c.Set("How far can I move?", "game-1", want)

	got, ok := c.Get("How far can I move?", "game-1")
	if !ok || got != want {
		t.Fatalf("expected cached result back, ok=%v", ok)
	}
}

func TestCacheKeyNormalizesQueryCasing(t *testing.T) {
	c := New(time.Minute, 8)
	c.Set("  How Far Can I Move?  ", "game-1", storedResult("c1", "core"))

	if _, ok := c.Get("how far can i move?", "game-1"); !ok {
		t.Fatalf("lookup must ignore case and surrounding whitespace")
	}
}

func TestCacheSeparatesContextKeys(t *testing.T) {
	c := New(time.Minute, 8)
	c.Set("q", "game-1", storedResult("c1", "core"))

	if _, ok := c.Get("q", "game-2"); ok {
		t.Fatalf("different context keys must not share entries")
	}
}

func TestCacheExpires(t *testing.T) {
	c := New(10*time.Millisecond, 8)
	c.Set("q", "", storedResult("c1", "core"))
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("q", ""); ok {
		t.Fatalf("entry must expire after the TTL")
	}
}

func TestCacheEvictsOldestAtCapacity(t *testing.T) {
	c := New(time.Minute, 3)
	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("query-%d", i), "", storedResult("c1", "core"))
	}

	if _, ok := c.Get("query-0", ""); ok {
		t.Fatalf("oldest entry must be evicted at capacity")
	}
	if _, ok := c.Get("query-3", ""); !ok {
		t.Fatalf("newest entry must survive eviction")
	}
}

func TestCacheOverwriteKeepsSinglePositionInEvictionOrder(t *testing.T) {
	c := New(time.Minute, 3)
	c.Set("query-0", "", storedResult("c1", "core"))
	c.Set("query-1", "", storedResult("c2", "core"))
	c.Set("query-0", "", storedResult("c3", "core")) // overwrite, moves to the back
	c.Set("query-2", "", storedResult("c4", "core"))
	c.Set("query-3", "", storedResult("c5", "core"))

	if _, ok := c.Get("query-1", ""); ok {
		t.Fatalf("query-1 is now the oldest and must be evicted")
	}
	got, ok := c.Get("query-0", "")
	if !ok {
		t.Fatalf("overwritten entry must survive a stale eviction slot")
	}
	if got.Context.Chunks[0].ID != "c3" {
		t.Fatalf("expected the overwriting result, got chunk %s", got.Context.Chunks[0].ID)
	}
	if _, ok := c.Get("query-3", ""); !ok {
		t.Fatalf("newest entry must survive")
	}
}

func TestCacheInvalidateBySource(t *testing.T) {
	c := New(time.Minute, 8)
	c.Set("about movement", "", storedResult("c1", "kill-team-core"))
	c.Set("about kommandos", "", storedResult("c2", "team-kommando"))

	c.Invalidate("kill-team-core")

	if _, ok := c.Get("about movement", ""); ok {
		t.Fatalf("entries referencing the source must be dropped")
	}
	if _, ok := c.Get("about kommandos", ""); !ok {
		t.Fatalf("unrelated entries must survive invalidation")
	}
}
