// Package archive persists raw run output to a blob store.
// The abstraction keeps the service independent of a specific storage
// backend (Google Cloud Storage, the local filesystem, or memory).
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"notecrawler/internal/crawl"
)

// BlobStore defines the common interface for a blob storage provider.
type BlobStore interface {
	// PutObject uploads data to a specified object path in the blob store
	// and returns the URI of the stored object.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// NoOpStore is a blob store that performs no operations. It is useful for
// running the crawler in a dry-run mode where content is fetched but not saved.
type NoOpStore struct{}

// PutObject for NoOpStore does nothing and always returns an empty URI.
func (NoOpStore) PutObject(_ context.Context, _ string, _ string, _ io.Reader) (string, error) {
	return "", nil
}

// Archiver writes the output of a completed run as JSON artifacts.
type Archiver struct {
	store  BlobStore
	prefix string
	logger *zap.Logger
}

// New creates an Archiver writing under the given path prefix.
func New(store BlobStore, prefix string, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "runs"
	}
	return &Archiver{store: store, prefix: prefix, logger: logger}
}

// SaveRun persists the posts and stats of a run and returns the posts URI.
func (a *Archiver) SaveRun(ctx context.Context, result crawl.RunResult) (string, error) {
	postsPath := fmt.Sprintf("%s/%s/posts.json", a.prefix, result.RunID)
	postsURI, err := a.putJSON(ctx, postsPath, result.Posts)
	if err != nil {
		return "", fmt.Errorf("archive posts: %w", err)
	}

	statsPath := fmt.Sprintf("%s/%s/stats.json", a.prefix, result.RunID)
	if _, err := a.putJSON(ctx, statsPath, result.Stats); err != nil {
		return "", fmt.Errorf("archive stats: %w", err)
	}

	a.logger.Info("archived run output",
		zap.String("run_id", result.RunID.String()),
		zap.String("uri", postsURI),
		zap.Int("posts", len(result.Posts)),
	)
	return postsURI, nil
}

func (a *Archiver) putJSON(ctx context.Context, path string, v any) (string, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", path, err)
	}
	uri, err := a.store.PutObject(ctx, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	return uri, nil
}
