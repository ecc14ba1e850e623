package storage

import (
	"context"
	"io"

	"conversation-analytics-service/internal/observability/metrics"
)

// Instrumented records every operation of the wrapped Storage.
type Instrumented struct {
	Storage
	metrics *metrics.Metrics
}

// WithMetrics wraps s so that its operations are counted.
func WithMetrics(s Storage, m *metrics.Metrics) *Instrumented {
	return &Instrumented{Storage: s, metrics: m}
}

// Upload records and delegates.
func (i *Instrumented) Upload(ctx context.Context, path string, reader io.Reader) error {
	err := i.Storage.Upload(ctx, path, reader)
	i.metrics.RecordStorage("upload", err)
	return err
}

// Download records and delegates.
func (i *Instrumented) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, err := i.Storage.Download(ctx, path)
	i.metrics.RecordStorage("download", err)
	return rc, err
}

// Open records and delegates.
func (i *Instrumented) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	rc, err := i.Storage.Open(ctx, uri)
	i.metrics.RecordStorage("open", err)
	return rc, err
}

// List records and delegates.
func (i *Instrumented) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	files, err := i.Storage.List(ctx, prefix)
	i.metrics.RecordStorage("list", err)
	return files, err
}
