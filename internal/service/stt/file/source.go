// Package file serves transcription jobs from result documents that are
// already in storage, for replays and for running without an ASR service.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/service/stt"
	"conversation-analytics-service/internal/storage"
)

// Source reads <prefix>/<job>.json as the result document and, when present,
// <prefix>/<job>.job.json as the job metadata. Without metadata the job is
// reported as COMPLETED with no language code.
type Source struct {
	store    storage.Storage
	prefix   string
	maxBytes int64
}

// New creates a file source.
func New(store storage.Storage, prefix string) *Source {
	return &Source{store: store, prefix: prefix}
}

// WithMaxBytes caps the size of result documents read by Fetch.
func (s *Source) WithMaxBytes(n int64) *Source {
	s.maxBytes = n
	return s
}

// Fetch implements stt.Source.
func (s *Source) Fetch(ctx context.Context, jobName string) (*asr.Job, []byte, error) {
	docPath := path.Join(s.prefix, jobName+".json")
	rc, err := s.store.Download(ctx, docPath)
	if err != nil {
		return nil, nil, fmt.Errorf("file: read %s: %w", docPath, err)
	}
	data, err := stt.ReadLimited(rc, s.maxBytes)
	rc.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("file: read %s: %w", docPath, err)
	}

	job, err := s.job(ctx, jobName)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != asr.StatusCompleted {
		return job, nil, fmt.Errorf("%w: %s is %s", stt.ErrJobNotCompleted, jobName, job.Status)
	}
	if job.TranscriptFileURI == "" {
		job.TranscriptFileURI = s.store.URI(docPath)
	}
	return job, data, nil
}

func (s *Source) job(ctx context.Context, jobName string) (*asr.Job, error) {
	metaPath := path.Join(s.prefix, jobName+".job.json")
	data, err := storage.ReadAll(ctx, s.store, metaPath)
	if errors.Is(err, storage.ErrNotFound) {
		return &asr.Job{Name: jobName, Status: asr.StatusCompleted}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file: read %s: %w", metaPath, err)
	}

	var job asr.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("file: decode %s: %w", metaPath, err)
	}
	if job.Name == "" {
		job.Name = jobName
	}
	if job.Status == "" {
		job.Status = asr.StatusCompleted
	}
	return &job, nil
}

var _ stt.Source = (*Source)(nil)
