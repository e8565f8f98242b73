package chunking

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

// chunkNamespace keeps chunk ids stable across runs so the rebuilt lexical
// index and the persisted dense index agree on identity.
var chunkNamespace = uuid.MustParse("7d3a1f0c-9b5e-4c57-8a21-4f0d2b6e9a11")

// TokenCounter measures text in embedding-model tokens.
type TokenCounter func(text string) int

// EstimateTokens approximates the embedding tokenizer at roughly four
// characters per token.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// MarkdownSplitter splits a markdown document lazily: whole document if it
// fits, otherwise at second-level headings, re-splitting oversized
// sections at third-level headings.
type MarkdownSplitter struct {
	MaxTokens  int
	CountToken TokenCounter
}

func NewMarkdownSplitter(maxTokens int, counter TokenCounter) *MarkdownSplitter {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	if counter == nil {
		counter = EstimateTokens
	}
	return &MarkdownSplitter{MaxTokens: maxTokens, CountToken: counter}
}

type section struct {
	header string
	level  int
	text   string
}

func (s *MarkdownSplitter) Split(doc *domain.Document, content string) ([]domain.Chunk, error) {
	fm, body := StripFrontMatter(content)
	applyFrontMatter(doc, fm)

	sections := splitAtHeading(body, "## ")
	if len(sections) == 1 && sections[0].header == "" {
		// No second-level headings: whole document as one chunk when it
		// fits, third-level re-split otherwise.
		if s.CountToken(body) <= s.MaxTokens {
			sections[0].level = 0
		} else {
			sections = s.resplit(sections[0])
		}
	} else {
		expanded := make([]section, 0, len(sections))
		for _, sec := range sections {
			if s.CountToken(sec.text) > s.MaxTokens {
				expanded = append(expanded, s.resplit(sec)...)
				continue
			}
			expanded = append(expanded, sec)
		}
		sections = expanded
	}

	chunks := make([]domain.Chunk, 0, len(sections))
	for _, sec := range sections {
		text := strings.TrimSpace(sec.text)
		if text == "" {
			continue
		}
		pos := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:          chunkID(doc.Source, pos, sec.header),
			Text:        text,
			Header:      sec.header,
			HeaderLevel: sec.level,
			Position:    pos,
			Source:      doc.Source,
			DocType:     doc.DocType,
			Published:   doc.Published,
			Summary:     fm.Summary,
		})
	}
	return chunks, nil
}

// applyFrontMatter copies document metadata out of the front-matter block.
// Documents without front matter fall back to a source derived from the
// uploaded filename.
func applyFrontMatter(doc *domain.Document, fm FrontMatter) {
	if fm.Source != "" {
		doc.Source = fm.Source
	}
	if doc.Source == "" {
		doc.Source = strings.TrimSuffix(doc.Filename, filepath.Ext(doc.Filename))
	}
	if dt := domain.DocType(fm.DocumentType); dt.Valid() {
		doc.DocType = dt
	}
	if doc.DocType == "" {
		doc.DocType = domain.DocTypeCoreRules
	}
	if fm.Section != "" {
		doc.Section = fm.Section
	}
	if fm.LastUpdateDate != "" {
		doc.Published = fm.LastUpdateDate
	}
}

// resplit cuts an oversized section at third-level headings, naming each
// sub-chunk "parent > child". Sections that still exceed the budget fall
// back to paragraph packing so no chunk ever exceeds MaxTokens.
func (s *MarkdownSplitter) resplit(sec section) []section {
	subs := splitAtHeading(sec.text, "### ")
	out := make([]section, 0, len(subs))
	for _, sub := range subs {
		header := sec.header
		level := sec.level
		if sub.header != "" {
			level = 3
			if sec.header != "" {
				header = sec.header + " > " + sub.header
			} else {
				header = sub.header
			}
		}
		if s.CountToken(sub.text) <= s.MaxTokens {
			out = append(out, section{header: header, level: level, text: sub.text})
			continue
		}
		for _, part := range s.packParagraphs(sub.text) {
			out = append(out, section{header: header, level: level, text: part})
		}
	}
	return out
}

func (s *MarkdownSplitter) packParagraphs(text string) []string {
	paragraphs := strings.Split(text, "\n\n")
	out := make([]string, 0, 4)
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		out = append(out, b.String())
		b.Reset()
	}

	for _, p := range paragraphs {
		if s.CountToken(p) > s.MaxTokens {
			flush()
			out = append(out, s.hardSplit(p)...)
			continue
		}
		candidate := p
		if b.Len() > 0 {
			candidate = b.String() + "\n\n" + p
		}
		if s.CountToken(candidate) > s.MaxTokens {
			flush()
			b.WriteString(p)
			continue
		}
		b.Reset()
		b.WriteString(candidate)
	}
	flush()
	return out
}

// hardSplit cuts a paragraph that alone exceeds the budget at word
// boundaries. Last resort; markdown rule text rarely gets here.
func (s *MarkdownSplitter) hardSplit(text string) []string {
	words := strings.Fields(text)
	out := make([]string, 0, 4)
	var b strings.Builder
	for _, w := range words {
		candidate := w
		if b.Len() > 0 {
			candidate = b.String() + " " + w
		}
		if s.CountToken(candidate) > s.MaxTokens && b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
			b.WriteString(w)
			continue
		}
		b.Reset()
		b.WriteString(candidate)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// splitAtHeading splits text at every line starting with the given heading
// prefix. Content before the first heading keeps an empty header. The
// heading line itself stays inside its section so the union of sections
// reproduces the source text.
func splitAtHeading(text, prefix string) []section {
	lines := strings.Split(text, "\n")
	out := []section{{header: "", level: 0}}
	var current strings.Builder
	flush := func() {
		out[len(out)-1].text = current.String()
		current.Reset()
	}

	level := 2
	if prefix == "### " {
		level = 3
	}

	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			flush()
			out = append(out, section{
				header: strings.TrimSpace(strings.TrimPrefix(line, prefix)),
				level:  level,
			})
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()

	if strings.TrimSpace(out[0].text) == "" && len(out) > 1 {
		out = out[1:]
	}
	return out
}

func chunkID(source string, position int, header string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(source+"\x00"+header+"\x00"+strconv.Itoa(position))).String()
}
