// Package storage provides object storage for transcripts, bulk entity job
// files and conversation records.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// FileInfo contains metadata about a stored object.
type FileInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// Storage defines object storage operations relative to one bucket or root.
type Storage interface {
	// Upload writes data from reader to the given path.
	Upload(ctx context.Context, path string, reader io.Reader) error

	// Download returns a reader for the object at the given path.
	// The caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Open returns a reader for an absolute object URI as reported by other
	// services, which may live outside the configured bucket.
	Open(ctx context.Context, uri string) (io.ReadCloser, error)

	// List returns metadata for all objects whose path starts with prefix.
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// URI returns the absolute URI of path, suitable for other services.
	URI(path string) string
}

// ReadAll downloads path and returns its contents.
func ReadAll(ctx context.Context, s Storage, path string) ([]byte, error) {
	rc, err := s.Download(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ParseS3URI splits an S3 location into bucket and key. It accepts
// s3://bucket/key, path-style https://s3.<region>.amazonaws.com/bucket/key
// and virtual-hosted https://bucket.s3.<region>.amazonaws.com/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("storage: parse uri %q: %w", uri, err)
	}
	path := strings.TrimPrefix(u.Path, "/")

	switch {
	case u.Scheme == "s3":
		bucket, key = u.Host, path
	case u.Scheme == "https" || u.Scheme == "http":
		host := u.Hostname()
		pathStyle := strings.HasPrefix(host, "s3.") || strings.HasPrefix(host, "s3-")
		if i := strings.Index(host, ".s3"); i > 0 && !pathStyle {
			bucket, key = host[:i], path
		} else {
			bucket, key, _ = strings.Cut(path, "/")
		}
	default:
		return "", "", fmt.Errorf("storage: unsupported uri %q", uri)
	}

	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("storage: incomplete uri %q", uri)
	}
	return bucket, key, nil
}
