// Package qdrant is the dense half of the dual index: a thin REST client
// storing one point per chunk, persisted in qdrant's native on-disk
// format. The collection uses Euclid distance on normalized embeddings;
// Search converts the squared distance into a cosine-like similarity via
// sim = max(0, 1 - d/2).
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// IndexChunks upserts the chunks of one document. Point ids are the
// chunk ids, so re-ingest of the same source overwrites in place.
func (c *Client) IndexChunks(ctx context.Context, source string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:     chunk.ID,
			Vector: vectors[i],
			Payload: map[string]any{
				"chunk_id":         chunk.ID,
				"text":             chunk.Text,
				"header":           chunk.Header,
				"header_level":     chunk.HeaderLevel,
				"position":         chunk.Position,
				"source":           source,
				"doc_type":         string(chunk.DocType),
				"publication_date": chunk.Published,
				"summary":          chunk.Summary,
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError("upsert", resp)
	}
	return nil
}

// DeleteBySource removes every point of one document.
func (c *Client) DeleteBySource(ctx context.Context, source string) error {
	body, err := json.Marshal(map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "source", "match": map[string]any{"value": source}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal delete body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("qdrant delete request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError("delete", resp)
	}
	return nil
}

// Search runs a top-N nearest-neighbour query and returns chunks whose
// Score is the converted similarity.
func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Chunk, error) {
	if len(queryVector) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	body, err := json.Marshal(map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "qdrant search", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "qdrant search", statusError("search", resp))
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.Chunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		sim := similarityFromDistance(r.Score)
		out = append(out, domain.Chunk{
			ID:          getString(r.Payload, "chunk_id"),
			Text:        getString(r.Payload, "text"),
			Header:      getString(r.Payload, "header"),
			HeaderLevel: getInt(r.Payload, "header_level"),
			Position:    getInt(r.Payload, "position"),
			Source:      getString(r.Payload, "source"),
			DocType:     domain.DocType(getString(r.Payload, "doc_type")),
			Published:   getString(r.Payload, "publication_date"),
			Summary:     getString(r.Payload, "summary"),
			Score:       sim,
			RawScores:   domain.ChunkScores{VectorSim: sim},
		})
	}
	return out, nil
}

// similarityFromDistance maps the euclidean distance qdrant reports for
// the Euclid metric onto [0,1]. For normalized vectors d² = 2(1 − cos),
// so 1 − d²/2 recovers the cosine; anything past d = √2 is clamped to 0.
func similarityFromDistance(d float64) float64 {
	sim := 1.0 - d*d/2.0
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Euclid",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if it already exists.
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		return statusError("ensure collection", resp)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
	}
	return fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
}

func getString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
