// Package transcribe reads finished jobs from Amazon Transcribe.
package transcribe

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awstranscribe "github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"

	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/service/stt"
	"conversation-analytics-service/internal/storage"
)

// API is the subset of the Transcribe client used by Source.
type API interface {
	GetTranscriptionJob(ctx context.Context, params *awstranscribe.GetTranscriptionJobInput, optFns ...func(*awstranscribe.Options)) (*awstranscribe.GetTranscriptionJobOutput, error)
}

// Source implements stt.Source on top of Transcribe job metadata. Result
// documents are read through store, which must be able to open the
// transcript URIs Transcribe reports.
type Source struct {
	api      API
	store    storage.Storage
	maxBytes int64
}

// New creates a Transcribe source.
func New(api API, store storage.Storage) *Source {
	return &Source{api: api, store: store}
}

// NewFromConfig creates a source backed by the AWS SDK.
func NewFromConfig(awsCfg aws.Config, store storage.Storage) *Source {
	return New(awstranscribe.NewFromConfig(awsCfg), store)
}

// WithMaxBytes caps the size of transcripts read by Fetch.
func (s *Source) WithMaxBytes(n int64) *Source {
	s.maxBytes = n
	return s
}

// Job returns the metadata of a job without reading its result.
func (s *Source) Job(ctx context.Context, jobName string) (*asr.Job, error) {
	out, err := s.api.GetTranscriptionJob(ctx, &awstranscribe.GetTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: get job %s: %w", jobName, err)
	}
	if out.TranscriptionJob == nil {
		return nil, fmt.Errorf("transcribe: job %s has no details", jobName)
	}
	return convertJob(out.TranscriptionJob), nil
}

// Fetch returns a completed job and its result document.
func (s *Source) Fetch(ctx context.Context, jobName string) (*asr.Job, []byte, error) {
	job, err := s.Job(ctx, jobName)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != asr.StatusCompleted {
		return job, nil, fmt.Errorf("%w: %s is %s", stt.ErrJobNotCompleted, jobName, job.Status)
	}

	uri := job.ResultURI()
	if uri == "" {
		return job, nil, fmt.Errorf("transcribe: job %s has no transcript uri", jobName)
	}
	rc, err := s.store.Open(ctx, uri)
	if err != nil {
		return job, nil, fmt.Errorf("transcribe: open transcript: %w", err)
	}
	defer rc.Close()

	data, err := stt.ReadLimited(rc, s.maxBytes)
	if err != nil {
		return job, nil, fmt.Errorf("transcribe: read transcript: %w", err)
	}
	return job, data, nil
}

func convertJob(j *types.TranscriptionJob) *asr.Job {
	job := &asr.Job{
		Name:                 aws.ToString(j.TranscriptionJobName),
		Status:               string(j.TranscriptionJobStatus),
		LanguageCode:         string(j.LanguageCode),
		MediaFormat:          string(j.MediaFormat),
		MediaSampleRateHertz: int(aws.ToInt32(j.MediaSampleRateHertz)),
		CompletionTime:       aws.ToTime(j.CompletionTime),
	}
	if j.Media != nil {
		job.MediaFileURI = aws.ToString(j.Media.MediaFileUri)
	}
	if j.Transcript != nil {
		job.TranscriptFileURI = aws.ToString(j.Transcript.TranscriptFileUri)
		job.RedactedTranscriptFileURI = aws.ToString(j.Transcript.RedactedTranscriptFileUri)
	}
	if j.Settings != nil {
		job.ChannelIdentification = aws.ToBool(j.Settings.ChannelIdentification)
		job.VocabularyName = aws.ToString(j.Settings.VocabularyName)
	}
	return job
}

var _ stt.Source = (*Source)(nil)
