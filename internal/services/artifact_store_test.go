package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newLocalStore(t *testing.T) ArtifactStore {
	t.Helper()
	t.Setenv("STORAGE_PROVIDER", StorageProviderLocal)
	t.Setenv("ARTIFACT_LOCAL_DIR", t.TempDir())
	t.Setenv("ARTIFACT_BASE_URL", "http://localhost:8080/artifacts/")
	store, err := NewArtifactStoreFromEnv(newTestLogger(t))
	if err != nil {
		t.Fatalf("NewArtifactStoreFromEnv: %v", err)
	}
	return store
}

func TestLocalArtifactStorePutAndDelete(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	key := "certificates/abc/CERT-2026-00000001.png"
	if err := store.Put(ctx, key, "image/png", strings.NewReader("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	root := os.Getenv("ARTIFACT_LOCAL_DIR")
	onDisk := filepath.Join(root, "certificates", "abc", "CERT-2026-00000001.png")
	data, err := os.ReadFile(onDisk)
	if err != nil {
		t.Fatalf("read stored artifact: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("artifact content: got=%q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(onDisk); !os.IsNotExist(err) {
		t.Fatalf("artifact should be gone, stat err=%v", err)
	}
	// deleting a missing key is a no-op
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestLocalArtifactStorePublicURLTrimsSlashes(t *testing.T) {
	store := newLocalStore(t)
	got := store.PublicURL("/certificates/x.png")
	want := "http://localhost:8080/artifacts/certificates/x.png"
	if got != want {
		t.Fatalf("public url: want=%q got=%q", want, got)
	}
}

func TestLocalArtifactStoreKeepsKeysInsideRoot(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	escape := filepath.Join(os.Getenv("ARTIFACT_LOCAL_DIR"), "..", "escaped.png")
	if err := store.Put(ctx, "../escaped.png", "image/png", strings.NewReader("x")); err != nil {
		t.Fatalf("Put with traversal key: %v", err)
	}
	if _, err := os.Stat(escape); !os.IsNotExist(err) {
		t.Fatalf("key escaped the artifact root")
	}
	inside := filepath.Join(os.Getenv("ARTIFACT_LOCAL_DIR"), "escaped.png")
	if _, err := os.Stat(inside); err != nil {
		t.Fatalf("cleaned key should land inside root: %v", err)
	}
}

func TestArtifactStoreFromEnvRejectsUnknownProvider(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "s3")
	if _, err := NewArtifactStoreFromEnv(newTestLogger(t)); err == nil {
		t.Fatalf("expected provider rejection")
	}
}
