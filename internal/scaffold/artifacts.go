package scaffold

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// LocalArtifactSink writes generated SQL artifacts to a directory on disk.
// This is the sandbox target's sink: every scaffolded statement lands
// under {root}/{path} for local inspection, with no cloud dependency.
type LocalArtifactSink struct {
	root string
}

// NewLocalArtifactSink returns a sink rooted at dir, creating it if absent.
func NewLocalArtifactSink(dir string) (*LocalArtifactSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact root %s: %w", dir, err)
	}
	return &LocalArtifactSink{root: dir}, nil
}

// Put writes contents to {root}/{path}, creating parent directories.
func (s *LocalArtifactSink) Put(_ context.Context, path string, contents []byte) error {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, contents, 0o644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", path, err)
	}
	return nil
}

// GCSArtifactSink writes generated SQL artifacts to a Cloud Storage bucket.
// This is the dev target's sink, used in the managed-cloud deployment path
// where generated statements should survive outside any one warehouse's
// local filesystem.
type GCSArtifactSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArtifactSink wraps an already-authenticated storage client scoped
// to bucket, with every object key prefixed by prefix (empty is valid).
func NewGCSArtifactSink(client *storage.Client, bucket, prefix string) *GCSArtifactSink {
	return &GCSArtifactSink{client: client, bucket: bucket, prefix: prefix}
}

// Put uploads contents as the object {prefix}/{path} in the configured bucket.
func (s *GCSArtifactSink) Put(ctx context.Context, path string, contents []byte) error {
	key := path
	if s.prefix != "" {
		key = s.prefix + "/" + path
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/sql"
	if _, err := io.Copy(w, bytes.NewReader(contents)); err != nil {
		_ = w.Close()
		return fmt.Errorf("uploading artifact gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing artifact gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
