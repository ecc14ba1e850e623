package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"conversation-analytics-service/internal/observability/metrics"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://results/parsed/call.json", "results", "parsed/call.json", false},
		{"https://s3.us-east-1.amazonaws.com/out-bucket/call-1.json", "out-bucket", "call-1.json", false},
		{"https://s3-eu-west-1.amazonaws.com/out/a/b.json", "out", "a/b.json", false},
		{"https://my-bucket.s3.eu-west-1.amazonaws.com/a/b.json", "my-bucket", "a/b.json", false},
		{"ftp://host/file", "", "", true},
		{"s3://bucket-only", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bucket != tt.bucket || key != tt.key {
				t.Errorf("got %q %q, want %q %q", bucket, key, tt.bucket, tt.key)
			}
		})
	}
}

func TestLocal_RoundTripAndList(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	for _, p := range []string{"parsed/b.json", "parsed/a.json", "entities/x.txt"} {
		if err := s.Upload(ctx, p, strings.NewReader(p)); err != nil {
			t.Fatalf("Upload(%s): %v", p, err)
		}
	}

	data, err := ReadAll(ctx, s, "parsed/a.json")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "parsed/a.json" {
		t.Errorf("unexpected contents %q", data)
	}

	files, err := s.List(ctx, "parsed/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 || files[0].Path != "parsed/a.json" || files[1].Path != "parsed/b.json" {
		t.Errorf("unexpected listing %+v", files)
	}

	rc, err := s.Open(ctx, s.URI("entities/x.txt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rc.Close()
}

func TestLocal_NotFound(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if _, err := s.Download(context.Background(), "missing.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestLocal_UploadReportsWriteFailure(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	readErr := errors.New("connection reset")
	err = s.Upload(context.Background(), "parsed/a.json", failingReader{err: readErr})
	if !errors.Is(err, readErr) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}

	// the partial file is closed and can be replaced
	if err := s.Upload(context.Background(), "parsed/a.json", strings.NewReader("ok")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	data, err := ReadAll(context.Background(), s, "parsed/a.json")
	if err != nil || string(data) != "ok" {
		t.Errorf("expected %q, got %q (%v)", "ok", data, err)
	}
}

func TestInstrumented_RecordsOperations(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	s := WithMetrics(local, m)

	_ = s.Upload(context.Background(), "a.txt", strings.NewReader("a"))
	_, _ = s.Download(context.Background(), "missing.txt")

	if got := testutil.ToFloat64(m.StorageOps.WithLabelValues("upload", "ok")); got != 1 {
		t.Errorf("expected 1 upload, got %v", got)
	}
	if got := testutil.ToFloat64(m.StorageOps.WithLabelValues("download", "error")); got != 1 {
		t.Errorf("expected 1 failed download, got %v", got)
	}
}
