// Package httpadapter exposes the retrieval engine and the corpus
// lifecycle over HTTP.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/skirmishlab/rulehound/internal/core/domain"
	"github.com/skirmishlab/rulehound/internal/core/ports"
	"github.com/skirmishlab/rulehound/internal/core/usecase"
	"github.com/skirmishlab/rulehound/internal/observability/metrics"
)

const serviceName = "rulehound-api"

type Router struct {
	ingestUC  *usecase.IngestDocumentUseCase
	retriever ports.ContextRetriever
	validator ports.QuoteValidator
	generator ports.AnswerGenerator
	repo      ports.DocumentReader
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	ingestUC *usecase.IngestDocumentUseCase,
	retriever ports.ContextRetriever,
	validator ports.QuoteValidator,
	generator ports.AnswerGenerator,
	repo ports.DocumentReader,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		ingestUC:  ingestUC,
		retriever: retriever,
		validator: validator,
		generator: generator,
		repo:      repo,
		metrics:   m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/answer", rt.answer)
	mux.HandleFunc("/v1/quotes/validate", rt.validateQuotes)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingestUC.Upload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type retrieveRequest struct {
	Query        string  `json:"query"`
	ContextKey   string  `json:"context_key"`
	MaxChunks    int     `json:"max_chunks"`
	MinRelevance float64 `json:"min_relevance"`
	UseHybrid    *bool   `json:"use_hybrid"`
	UseMultiHop  *bool   `json:"use_multi_hop"`
}

func (req retrieveRequest) toDomain() domain.RetrievalRequest {
	out := domain.RetrievalRequest{
		Query:        req.Query,
		ContextKey:   req.ContextKey,
		MaxChunks:    req.MaxChunks,
		MinRelevance: req.MinRelevance,
		UseHybrid:    true,
		UseMultiHop:  true,
	}
	if req.UseHybrid != nil {
		out.UseHybrid = *req.UseHybrid
	}
	if req.UseMultiHop != nil {
		out.UseMultiHop = *req.UseMultiHop
	}
	return out
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	start := time.Now()
	result, err := rt.retriever.Retrieve(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	rt.recordRetrieval("/v1/retrieve", req, result, time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

type answerResponse struct {
	Answer    string                  `json:"answer"`
	Retrieval *domain.RetrievalResult `json:"retrieval"`
}

// answer runs retrieval and then the generator over the final context.
func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if rt.generator == nil {
		writeError(w, http.StatusNotImplemented, "answer generation is not configured")
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	start := time.Now()
	result, err := rt.retriever.Retrieve(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	text, err := rt.generator.GenerateAnswer(r.Context(), req.Query, result.Context.Chunks)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	rt.recordRetrieval("/v1/answer", req, result, time.Since(start))
	writeJSON(w, http.StatusOK, answerResponse{Answer: text, Retrieval: result})
}

type validateQuotesRequest struct {
	Quotes []domain.Quote `json:"quotes"`
	Chunks []domain.Chunk `json:"chunks"`
}

func (rt *Router) validateQuotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req validateQuotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Quotes) == 0 {
		writeError(w, http.StatusBadRequest, "quotes are required")
		return
	}

	report := rt.validator.Validate(req.Quotes, req.Chunks)
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) recordRetrieval(endpoint string, req retrieveRequest, result *domain.RetrievalResult, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRetrieval(serviceName, endpoint, result, duration)
	rt.metrics.RecordRetrievalMode(serviceName, endpoint, retrievalMode(req))
}

func retrievalMode(req retrieveRequest) string {
	hybrid := req.UseHybrid == nil || *req.UseHybrid
	multiHop := req.UseMultiHop == nil || *req.UseMultiHop
	switch {
	case hybrid && multiHop:
		return "hybrid_multi_hop"
	case hybrid:
		return "hybrid"
	case multiHop:
		return "dense_multi_hop"
	default:
		return "dense"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
