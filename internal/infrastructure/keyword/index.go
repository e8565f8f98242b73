package keyword

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/skirmishlab/rulehound/internal/core/domain"
	"github.com/skirmishlab/rulehound/internal/infrastructure/textutil"
)

// ruleNamePattern matches headers of the form "Accurate x" or "Lethal 5+":
// one capitalised rule name followed by a short numeric or x qualifier.
var ruleNamePattern = regexp.MustCompile(`^([A-Z][A-Za-z]+)\s+(?:x|\d+\+?)$`)

// Index is the harvested keyword vocabulary plus the keyword-to-headers
// map that drives the deterministic hop. Built at ingest, immutable after.
type Index struct {
	canonical map[string]string   // lowercased keyword -> canonical casing
	headers   map[string][]string // lowercased keyword -> sorted header strings
	minLen    int
	maxMatch  int
}

// Build harvests keywords from chunk headers (and any second-level heading
// lines inside chunk text) and maps each to the headers it occurs in.
// Keywords matching more than maxMatch headers are dropped from the map:
// too generic to be useful gap signals.
func Build(chunks []domain.Chunk, minLen, maxMatch int) *Index {
	if minLen <= 0 {
		minLen = 4
	}
	if maxMatch <= 0 {
		maxMatch = 8
	}
	ix := &Index{
		canonical: make(map[string]string),
		headers:   make(map[string][]string),
		minLen:    minLen,
		maxMatch:  maxMatch,
	}

	headerSet := make(map[string]struct{})
	for _, chunk := range chunks {
		for _, header := range chunkHeaders(chunk) {
			headerSet[header] = struct{}{}
			for _, kw := range ix.extract(header) {
				key := strings.ToLower(kw)
				if _, seen := ix.canonical[key]; !seen {
					ix.canonical[key] = kw
				}
			}
		}
	}

	allHeaders := make([]string, 0, len(headerSet))
	for h := range headerSet {
		allHeaders = append(allHeaders, h)
	}
	sort.Strings(allHeaders)

	for key, canon := range ix.canonical {
		matcher := wholeWordMatcher(canon)
		var matched []string
		for _, h := range allHeaders {
			if matcher.MatchString(h) {
				matched = append(matched, h)
			}
		}
		if len(matched) == 0 || len(matched) > ix.maxMatch {
			continue
		}
		ix.headers[key] = matched
	}
	return ix
}

func chunkHeaders(chunk domain.Chunk) []string {
	out := make([]string, 0, 2)
	if chunk.Header != "" {
		out = append(out, chunk.Header)
	}
	for _, line := range strings.Split(chunk.Text, "\n") {
		if strings.HasPrefix(line, "## ") {
			if h := strings.TrimSpace(strings.TrimPrefix(line, "## ")); h != "" {
				out = append(out, h)
			}
		}
	}
	return out
}

// extract applies the vocabulary harvesting rules to one header string.
func (ix *Index) extract(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	if m := ruleNamePattern.FindStringSubmatch(header); m != nil {
		if len(m[1]) >= ix.minLen {
			return []string{m[1]}
		}
		return nil
	}

	if strings.Contains(header, " - ") {
		var out []string
		for _, token := range strings.Fields(header) {
			if token == "-" {
				continue
			}
			if len(token) >= ix.minLen && isUpperAlpha(token) {
				out = append(out, token)
			}
		}
		return out
	}

	if !strings.ContainsAny(header, " \t") &&
		len(header) >= ix.minLen &&
		isAlpha(header) &&
		unicode.IsUpper(rune(header[0])) {
		return []string{header}
	}
	return nil
}

// Keywords returns the canonical vocabulary, sorted.
func (ix *Index) Keywords() []string {
	out := make([]string, 0, len(ix.canonical))
	for _, canon := range ix.canonical {
		out = append(out, canon)
	}
	sort.Strings(out)
	return out
}

// HeadersFor returns the headers mapped to a keyword, nil when the
// keyword is unknown or was dropped by the overmatch filter.
func (ix *Index) HeadersFor(kw string) []string {
	return ix.headers[strings.ToLower(kw)]
}

// QueryKeywords intersects the query's tokens with the vocabulary,
// preserving query order and dropping duplicates.
func (ix *Index) QueryKeywords(query string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, token := range textutil.Tokenize(query) {
		canon, ok := ix.canonical[token]
		if !ok {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, canon)
	}
	return out
}

// NormalizeQuery rewrites query tokens that case-fold to a known keyword
// into the vocabulary's canonical casing. Surrounding punctuation stays.
func (ix *Index) NormalizeQuery(query string) string {
	fields := strings.Fields(query)
	for i, field := range fields {
		core, prefix, suffix := trimPunct(field)
		if core == "" {
			continue
		}
		if canon, ok := ix.canonical[strings.ToLower(core)]; ok {
			fields[i] = prefix + canon + suffix
		}
	}
	return strings.Join(fields, " ")
}

// MatchesChunk reports whole-word presence of a keyword in the chunk's
// header or text.
func (ix *Index) MatchesChunk(kw string, chunk domain.Chunk) bool {
	m := wholeWordMatcher(kw)
	return m.MatchString(chunk.Header) || m.MatchString(chunk.Text)
}

func wholeWordMatcher(kw string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
}

func trimPunct(s string) (core, prefix, suffix string) {
	start := 0
	for start < len(s) && !isWordByte(s[start]) {
		start++
	}
	end := len(s)
	for end > start && !isWordByte(s[end-1]) {
		end--
	}
	return s[start:end], s[:start], s[end:]
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return len(s) > 0
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsUpper(r) || !unicode.IsLetter(r) {
			return false
		}
	}
	return len(s) > 0
}
