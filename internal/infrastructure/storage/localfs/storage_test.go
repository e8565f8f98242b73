package localfs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

func TestSaveOpenRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := storage.Save(context.Background(), "doc-1_core.md", strings.NewReader("## Movement")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reader, err := storage.Open(context.Background(), "doc-1_core.md")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	raw, _ := io.ReadAll(reader)
	if string(raw) != "## Movement" {
		t.Fatalf("content = %q", raw)
	}
}

func TestOpenMissingDocumentIsTyped(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = storage.Open(context.Background(), "absent.md")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestKeysCannotEscapeBaseDir(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := storage.Save(context.Background(), "../escape.md", strings.NewReader("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := storage.Open(context.Background(), "escape.md"); err != nil {
		t.Fatalf("key must be confined to the base dir: %v", err)
	}
}
