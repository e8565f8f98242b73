package usecase

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/skirmishlab/rulehound/internal/core/domain"
	"github.com/skirmishlab/rulehound/internal/core/ports"
)

type fakeEmbedder struct {
	queries []string
	vector  []float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, text)
	return f.vector, nil
}

type fakeDense struct {
	responses [][]domain.Chunk
	calls     int
	err       error

	indexed map[string][]domain.Chunk
	deleted []string
}

func (f *fakeDense) IndexChunks(_ context.Context, source string, chunks []domain.Chunk, _ [][]float32) error {
	if f.indexed == nil {
		f.indexed = make(map[string][]domain.Chunk)
	}
	f.indexed[source] = chunks
	return f.err
}

func (f *fakeDense) DeleteBySource(_ context.Context, source string) error {
	f.deleted = append(f.deleted, source)
	return nil
}

func (f *fakeDense) Search(_ context.Context, _ []float32, _ int) ([]domain.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	call := f.calls
	f.calls++
	if call >= len(f.responses) {
		return nil, nil
	}
	out := make([]domain.Chunk, len(f.responses[call]))
	copy(out, f.responses[call])
	return out, nil
}

type fakeLexical struct {
	results  []domain.Chunk
	queries  []string
	indexed  map[string][]domain.Chunk
	removed  []string
	allValue []domain.Chunk
}

func (f *fakeLexical) Index(source string, chunks []domain.Chunk) {
	if f.indexed == nil {
		f.indexed = make(map[string][]domain.Chunk)
	}
	f.indexed[source] = chunks
	f.allValue = append(f.allValue, chunks...)
}

func (f *fakeLexical) Remove(source string) { f.removed = append(f.removed, source) }

func (f *fakeLexical) Search(query string, _ int) []domain.Chunk {
	f.queries = append(f.queries, query)
	out := make([]domain.Chunk, len(f.results))
	copy(out, f.results)
	return out
}

func (f *fakeLexical) All() []domain.Chunk { return f.allValue }

type fakeVocab struct {
	keywords []string
	headers  map[string][]string
	expanded string
}

func (f *fakeVocab) NormalizeQuery(query string) string { return query }

func (f *fakeVocab) ExpandQuery(query string) string {
	if f.expanded != "" {
		return f.expanded
	}
	return query
}

func (f *fakeVocab) QueryKeywords(query string) []string {
	lower := strings.ToLower(query)
	var out []string
	for _, kw := range f.keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			out = append(out, kw)
		}
	}
	return out
}

func (f *fakeVocab) HeadersFor(keyword string) []string {
	return f.headers[strings.ToLower(keyword)]
}

func (f *fakeVocab) MatchesChunk(keyword string, chunk domain.Chunk) bool {
	kw := strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(chunk.Header), kw) ||
		strings.Contains(strings.ToLower(chunk.Text), kw)
}

type judgeReply struct {
	verdict ports.JudgeVerdict
	err     error
}

type fakeJudge struct {
	replies []judgeReply
	calls   int
}

func (f *fakeJudge) EvaluateContext(_ context.Context, _ string, _ []domain.Chunk) (ports.JudgeVerdict, error) {
	if f.calls >= len(f.replies) {
		return ports.JudgeVerdict{CanAnswer: true, Reasoning: "exhausted"}, nil
	}
	reply := f.replies[f.calls]
	f.calls++
	return reply.verdict, reply.err
}

type fakeCache struct {
	entries map[string]*domain.RetrievalResult
	hits    int
	sets    int
}

func (f *fakeCache) key(query, contextKey string) string { return query + "|" + contextKey }

func (f *fakeCache) Get(query, contextKey string) (*domain.RetrievalResult, bool) {
	result, ok := f.entries[f.key(query, contextKey)]
	if ok {
		f.hits++
	}
	return result, ok
}

func (f *fakeCache) Set(query, contextKey string, result *domain.RetrievalResult) {
	if f.entries == nil {
		f.entries = make(map[string]*domain.RetrievalResult)
	}
	f.entries[f.key(query, contextKey)] = result
	f.sets++
}

func (f *fakeCache) Invalidate(string) {}

type fakeRepo struct {
	docs     map[string]*domain.Document
	statuses []domain.DocumentStatus
	err      error
}

func newFakeRepo(docs ...*domain.Document) *fakeRepo {
	repo := &fakeRepo{docs: make(map[string]*domain.Document)}
	for _, doc := range docs {
		repo.docs[doc.ID] = doc
	}
	return repo
}

func (f *fakeRepo) Create(_ context.Context, doc *domain.Document) error {
	if f.err != nil {
		return f.err
	}
	if f.docs == nil {
		f.docs = make(map[string]*domain.Document)
	}
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeRepo) GetBySource(_ context.Context, source string) (*domain.Document, error) {
	for _, doc := range f.docs {
		if doc.Source == source {
			return doc, nil
		}
	}
	return nil, domain.ErrDocumentNotFound
}

func (f *fakeRepo) ListByStatus(_ context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.Status == status {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.statuses = append(f.statuses, status)
	if doc, ok := f.docs[id]; ok {
		doc.Status = status
		doc.Error = errMessage
	}
	return nil
}

func (f *fakeRepo) UpdateMetadata(_ context.Context, doc *domain.Document) error {
	if existing, ok := f.docs[doc.ID]; ok {
		existing.Source = doc.Source
		existing.DocType = doc.DocType
		existing.Section = doc.Section
		existing.Published = doc.Published
	}
	return nil
}

func (f *fakeRepo) SetChunkCount(_ context.Context, id string, count int) error {
	if doc, ok := f.docs[id]; ok {
		doc.ChunkCount = count
	}
	return nil
}

type fakeStorage struct {
	files map[string]string
	err   error
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.files == nil {
		f.files = make(map[string]string)
	}
	f.files[key] = string(raw)
	return nil
}

func (f *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	content, ok := f.files[key]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return io.NopCloser(bytes.NewReader([]byte(content))), nil
}

type fakeQueue struct {
	published []string
	err       error
}

func (f *fakeQueue) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *fakeQueue) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

type fakeVocabBuilder struct {
	rebuilt [][]domain.Chunk
	err     error
}

func (f *fakeVocabBuilder) Rebuild(chunks []domain.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.rebuilt = append(f.rebuilt, chunks)
	return nil
}

type fakeChunker struct {
	chunks []domain.Chunk
	err    error
}

func (f *fakeChunker) Split(doc *domain.Document, _ string) ([]domain.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Chunk, len(f.chunks))
	copy(out, f.chunks)
	for i := range out {
		out[i].Source = doc.Source
	}
	return out, nil
}
