package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/courseloom/courseloom-backend/internal/utils"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderLocal = "local"
)

// ArtifactStore persists rendered certificate artifacts and hands back the
// public URL recorded on the enrollment. Keys are slash-separated object
// paths like certificates/<enrollment>/<serial>.png.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// NewArtifactStoreFromEnv selects the provider via STORAGE_PROVIDER:
// "gcs" (default) or "local" for disk-backed development setups.
func NewArtifactStoreFromEnv(baseLog *logger.Logger) (ArtifactStore, error) {
	provider := strings.ToLower(utils.GetEnv("STORAGE_PROVIDER", StorageProviderGCS, baseLog))
	switch provider {
	case StorageProviderGCS:
		return NewGCSArtifactStore(baseLog)
	case StorageProviderLocal:
		return NewLocalArtifactStore(baseLog)
	default:
		return nil, fmt.Errorf("invalid STORAGE_PROVIDER=%q (allowed: %q, %q)",
			provider, StorageProviderGCS, StorageProviderLocal)
	}
}

type gcsArtifactStore struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
	cdnDomain     string
}

func NewGCSArtifactStore(baseLog *logger.Logger) (ArtifactStore, error) {
	serviceLog := baseLog.With("service", "ArtifactStore", "provider", StorageProviderGCS)

	bucket := strings.TrimSpace(os.Getenv("CERTIFICATE_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var CERTIFICATE_GCS_BUCKET_NAME")
	}
	cdnDomain := strings.TrimSpace(os.Getenv("CDN_DOMAIN"))

	saPath := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if saPath == "" {
		serviceLog.Warn("GOOGLE_APPLICATION_CREDENTIALS_JSON not set; relying on ambient ADC")
	}
	ctx := context.Background()
	var stClient *storage.Client
	var err error
	if saPath != "" {
		stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
	} else {
		stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &gcsArtifactStore{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucket,
		cdnDomain:     cdnDomain,
	}, nil
}

func (s *gcsArtifactStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := s.storageClient.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %q: %w", key, err)
	}
	return nil
}

func (s *gcsArtifactStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.storageClient.Bucket(s.bucketName).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

func (s *gcsArtifactStore) PublicURL(key string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, key)
}

type localArtifactStore struct {
	log     *logger.Logger
	rootDir string
	baseURL string
}

// NewLocalArtifactStore writes artifacts under ARTIFACT_LOCAL_DIR and serves
// URLs under ARTIFACT_BASE_URL. Development-only; nothing garbage-collects
// the directory.
func NewLocalArtifactStore(baseLog *logger.Logger) (ArtifactStore, error) {
	serviceLog := baseLog.With("service", "ArtifactStore", "provider", StorageProviderLocal)

	rootDir := utils.GetEnv("ARTIFACT_LOCAL_DIR", "./artifacts", baseLog)
	baseURL := strings.TrimRight(utils.GetEnv("ARTIFACT_BASE_URL", "http://localhost:8080/artifacts", baseLog), "/")
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %q: %w", rootDir, err)
	}
	serviceLog.Info("Local artifact store ready", "dir", rootDir)
	return &localArtifactStore{log: serviceLog, rootDir: rootDir, baseURL: baseURL}, nil
}

func (s *localArtifactStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact subdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact file %q: %w", key, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write artifact file %q: %w", key, err)
	}
	return f.Close()
}

func (s *localArtifactStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact file %q: %w", key, err)
	}
	return nil
}

func (s *localArtifactStore) PublicURL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

// resolve keeps keys inside the root dir even when they carry "..".
func (s *localArtifactStore) resolve(key string) (string, error) {
	cleaned := filepath.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	if cleaned == "/" {
		return "", fmt.Errorf("empty artifact key")
	}
	return filepath.Join(s.rootDir, cleaned), nil
}
