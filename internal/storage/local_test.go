package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/haasonsaas/helmsman/internal/apperr"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	meta, err := store.Put(ctx, "report.md", strings.NewReader("# Report"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if meta.Key == "" || meta.FileName != "report.md" || meta.Size != 8 {
		t.Errorf("meta = %+v", meta)
	}

	rc, got, err := store.Get(ctx, meta.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	content, _ := io.ReadAll(rc)
	if string(content) != "# Report" || got.FileName != "report.md" {
		t.Errorf("content = %q, meta = %+v", content, got)
	}
}

func TestLocalStorage_PutStripsDirectories(t *testing.T) {
	store, _ := NewLocalStorage(t.TempDir())
	meta, err := store.Put(context.Background(), "/home/ubuntu/upload/data.csv", strings.NewReader("a,b"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if meta.FileName != "data.csv" {
		t.Errorf("file name = %q", meta.FileName)
	}
}

func TestLocalStorage_GetMissing(t *testing.T) {
	store, _ := NewLocalStorage(t.TempDir())
	_, _, err := store.Get(context.Background(), "no-such-key")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestLocalStorage_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := NewLocalStorage(t.TempDir())
	meta, _ := store.Put(ctx, "x.txt", strings.NewReader("x"))

	if err := store.Delete(ctx, meta.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := store.Get(ctx, meta.Key); err == nil {
		t.Error("object still readable after Delete")
	}
	// Deleting again is a no-op.
	if err := store.Delete(ctx, meta.Key); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}
