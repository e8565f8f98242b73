package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

func TestUploadStoresPublishesAndPersists(t *testing.T) {
	repo := newFakeRepo()
	storage := &fakeStorage{}
	queue := &fakeQueue{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "core rules.md", strings.NewReader("# Rules"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("status = %q, want %q", doc.Status, domain.StatusUploaded)
	}
	if !strings.HasSuffix(doc.StoragePath, "_core_rules.md") {
		t.Fatalf("storage path = %q", doc.StoragePath)
	}
	if storage.files[doc.StoragePath] != "# Rules" {
		t.Fatalf("document body not stored")
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("ingestion event not published: %v", queue.published)
	}
	if _, err := repo.GetByID(context.Background(), doc.ID); err != nil {
		t.Fatalf("document metadata not persisted: %v", err)
	}
}

func TestUploadStorageFailure(t *testing.T) {
	storage := &fakeStorage{err: context.DeadlineExceeded}
	uc := NewIngestDocumentUseCase(newFakeRepo(), storage, &fakeQueue{})

	if _, err := uc.Upload(context.Background(), "x.md", strings.NewReader("body")); err == nil {
		t.Fatalf("expected storage error to propagate")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"core rules.md": "core_rules.md",
		"../../evil.md": "evil.md",
		"ops (v2)!.md":  "ops__v2__.md",
		"":              "document.md",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUploadRejectsNonMarkdown(t *testing.T) {
	uc := NewIngestDocumentUseCase(newFakeRepo(), &fakeStorage{}, &fakeQueue{})

	_, err := uc.Upload(context.Background(), "rules.pdf", strings.NewReader("%PDF"))
	if !domain.IsKind(err, domain.ErrInvalidDocument) {
		t.Fatalf("err = %v, want ErrInvalidDocument", err)
	}
}

func TestUploadDerivesProvisionalSource(t *testing.T) {
	uc := NewIngestDocumentUseCase(newFakeRepo(), &fakeStorage{}, &fakeQueue{})

	doc, err := uc.Upload(context.Background(), "Core Rules.md", strings.NewReader("# Rules"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Source != "core_rules" {
		t.Fatalf("source = %q, want %q", doc.Source, "core_rules")
	}
}
