// Package stt defines where finished transcription jobs and their result
// documents come from.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"conversation-analytics-service/internal/asr"
)

// ErrJobNotCompleted is returned when a job exists but has not reached the
// COMPLETED state.
var ErrJobNotCompleted = errors.New("stt: transcription job not completed")

// ErrTooLarge is returned when a result document is larger than the
// configured maximum.
var ErrTooLarge = errors.New("stt: result document too large")

// Source looks up a finished transcription job and returns its metadata and
// raw result document.
type Source interface {
	Fetch(ctx context.Context, jobName string) (*asr.Job, []byte, error)
}

// ReadLimited reads r to the end, stopping with ErrTooLarge once more than
// limit bytes have been seen. A limit of zero or less reads without a limit.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
