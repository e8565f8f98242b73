package chunking

import (
	"strings"
	"testing"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

func testDoc() *domain.Document {
	return &domain.Document{
		ID:      "doc-1",
		Source:  "core-rules-v3",
		DocType: domain.DocTypeCoreRules,
	}
}

func TestSplitSingleChunkWithoutHeadings(t *testing.T) {
	s := NewMarkdownSplitter(100, nil)
	chunks, err := s.Split(testDoc(), "Each model can move up to 6 inches.")
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Header != "" || chunks[0].HeaderLevel != 0 {
		t.Fatalf("expected empty header at level 0, got %q level %d", chunks[0].Header, chunks[0].HeaderLevel)
	}
}

func TestSplitAtSecondLevelHeadings(t *testing.T) {
	content := "intro text\n\n## Movement Phase\nEach model can move up to 6 inches.\n\n## Shooting Phase\nRoll attack dice.\n"
	s := NewMarkdownSplitter(2000, nil)
	chunks, err := s.Split(testDoc(), content)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[1].Header != "Movement Phase" || chunks[1].HeaderLevel != 2 {
		t.Fatalf("unexpected second chunk header: %q level %d", chunks[1].Header, chunks[1].HeaderLevel)
	}
	if !strings.Contains(chunks[1].Text, "6 inches") {
		t.Fatalf("section body lost: %q", chunks[1].Text)
	}
	if chunks[2].Header != "Shooting Phase" {
		t.Fatalf("unexpected third chunk header: %q", chunks[2].Header)
	}
}

func TestSplitCoversSourceText(t *testing.T) {
	content := "preamble\n\n## A\nalpha body\n\n## B\nbeta body\n"
	s := NewMarkdownSplitter(2000, nil)
	chunks, err := s.Split(testDoc(), content)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	joined := ""
	for _, c := range chunks {
		joined += c.Text + "\n"
	}
	for _, want := range []string{"preamble", "## A", "alpha body", "## B", "beta body"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in chunk union, got %q", want, joined)
		}
	}
}

func TestOversizedSectionResplitsAtThirdLevel(t *testing.T) {
	big := strings.Repeat("rules text ", 120)
	content := "## Weapon Rules\n" + big + "\n### Accurate\nRe-roll one attack die.\n### Lethal\nCrits on 5+.\n"
	s := NewMarkdownSplitter(150, nil)
	chunks, err := s.Split(testDoc(), content)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	var headers []string
	for _, c := range chunks {
		headers = append(headers, c.Header)
		if c.HeaderLevel != 2 && c.HeaderLevel != 3 && c.HeaderLevel != 0 {
			t.Fatalf("header level out of range: %d", c.HeaderLevel)
		}
	}
	found := false
	for _, h := range headers {
		if h == "Weapon Rules > Accurate" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected parent > child header, got %v", headers)
	}
}

func TestNoChunkExceedsTokenBudget(t *testing.T) {
	big := strings.Repeat("word ", 3000)
	content := "## Giant Section\n" + big
	s := NewMarkdownSplitter(200, nil)
	chunks, err := s.Split(testDoc(), content)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected paragraph fallback to split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if got := EstimateTokens(c.Text); got > 200 {
			t.Fatalf("chunk exceeds budget: %d tokens", got)
		}
	}
}

func TestChunkIDsStableAcrossRuns(t *testing.T) {
	content := "## Movement Phase\nEach model can move up to 6 inches.\n"
	s := NewMarkdownSplitter(2000, nil)
	first, _ := s.Split(testDoc(), content)
	second, _ := s.Split(testDoc(), content)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("unexpected chunk counts: %d/%d", len(first), len(second))
	}
	if first[0].ID != second[0].ID {
		t.Fatalf("chunk ids differ across runs: %s vs %s", first[0].ID, second[0].ID)
	}
}

func TestFrontMatterStrippedOnlyWhenValid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantStrip bool
	}{
		{
			name:      "valid front matter",
			content:   "---\nsource: core-rules-v3\ndocument_type: core-rules\n---\nbody text",
			wantStrip: true,
		},
		{
			name:      "no closing delimiter",
			content:   "---\nsource: core-rules-v3\nbody text",
			wantStrip: false,
		},
		{
			name:      "no recognized keys",
			content:   "---\nunrelated: value\n---\nbody text",
			wantStrip: false,
		},
		{
			name:      "plain horizontal rule document",
			content:   "body text\n---\nmore text",
			wantStrip: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body := StripFrontMatter(tt.content)
			if tt.wantStrip {
				if fm.Source != "core-rules-v3" {
					t.Fatalf("expected parsed source, got %+v", fm)
				}
				if strings.Contains(body, "---") {
					t.Fatalf("delimiters should be stripped, got %q", body)
				}
			} else if body != tt.content {
				t.Fatalf("content should be preserved, got %q", body)
			}
		})
	}
}
