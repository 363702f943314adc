package gcs

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"learngen/sink"
)

type GcsConfig struct {
	Bucket          string
	CredentialsFile string
}

// GcsSink is a blob store backed by a Google Cloud Storage bucket.
type GcsSink struct {
	client *storage.Client
	cfg    GcsConfig
}

func OpenGcsSink(ctx context.Context, cfg GcsConfig) (*GcsSink, error) {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, sink.Unavailable("create storage client", err)
	}
	return &GcsSink{client: client, cfg: cfg}, nil
}

func (p *GcsSink) Put(ctx context.Context, path string, body io.Reader, contentType string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	w := p.client.Bucket(p.cfg.Bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	n, err := io.Copy(w, body)
	if err != nil {
		_ = w.Close()
		return 0, sink.Unavailable("write "+path, err)
	}
	if err := w.Close(); err != nil {
		return 0, sink.Unavailable("close "+path, err)
	}
	return n, nil
}

func (p *GcsSink) Location(path string) string {
	return fmt.Sprintf("gs://%s/%s", p.cfg.Bucket, path)
}

func (p *GcsSink) Close() error {
	return p.client.Close()
}
