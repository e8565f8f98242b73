package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded DocumentStatus = "uploaded"
	StatusIndexing DocumentStatus = "indexing"
	StatusReady    DocumentStatus = "ready"
	StatusFailed   DocumentStatus = "failed"
)

// Document is one markdown rule document registered in the corpus.
type Document struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	Filename    string         `json:"filename"`
	StoragePath string         `json:"storage_path"`
	DocType     DocType        `json:"doc_type"`
	Section     string         `json:"section,omitempty"`
	Published   string         `json:"publication_date,omitempty"`
	ChunkCount  int            `json:"chunk_count"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
