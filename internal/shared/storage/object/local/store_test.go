package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"content-analyzer/internal/shared/storage/object"
)

func TestPutThenOpen(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	n, err := store.Put(ctx, "raw-responses/2026/01/01/item.txt", "text/plain", strings.NewReader(`{"summary":"x"}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n != 15 {
		t.Fatalf("expected 15 bytes written, got %d", n)
	}

	rc, err := store.Open(ctx, "raw-responses/2026/01/01/item.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"summary":"x"}` {
		t.Fatalf("unexpected content: %s", data)
	}
}

func TestPutRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Put(context.Background(), "../escape.txt", "text/plain", strings.NewReader("x"))
	if !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestPutHonorsCanceledContext(t *testing.T) {
	store := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "a.txt", "text/plain", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
