package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awstranscribe "github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"

	"conversation-analytics-service/internal/service/stt"
	"conversation-analytics-service/internal/storage"
)

type fakeAPI struct {
	job *types.TranscriptionJob
	err error
}

func (f *fakeAPI) GetTranscriptionJob(_ context.Context, in *awstranscribe.GetTranscriptionJobInput, _ ...func(*awstranscribe.Options)) (*awstranscribe.GetTranscriptionJobOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &awstranscribe.GetTranscriptionJobOutput{TranscriptionJob: f.job}, nil
}

func setup(t *testing.T) (string, storage.Storage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	for name, body := range map[string]string{"plain.json": `{"jobName":"plain"}`, "redacted.json": `{"jobName":"redacted"}`} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir, store
}

func completedJob(dir string) *types.TranscriptionJob {
	return &types.TranscriptionJob{
		TranscriptionJobName:   aws.String("call-1"),
		TranscriptionJobStatus: types.TranscriptionJobStatusCompleted,
		LanguageCode:           types.LanguageCodeEnUs,
		MediaFormat:            types.MediaFormatWav,
		MediaSampleRateHertz:   aws.Int32(8000),
		CompletionTime:         aws.Time(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		Media:                  &types.Media{MediaFileUri: aws.String("s3://audio/call-1.wav")},
		Transcript: &types.Transcript{
			TranscriptFileUri: aws.String("file://" + filepath.Join(dir, "plain.json")),
		},
		Settings: &types.Settings{
			ChannelIdentification: aws.Bool(true),
			VocabularyName:        aws.String("products"),
		},
	}
}

func TestFetch_Completed(t *testing.T) {
	dir, store := setup(t)
	src := New(&fakeAPI{job: completedJob(dir)}, store)

	job, data, err := src.Fetch(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != `{"jobName":"plain"}` {
		t.Errorf("unexpected document: %s", data)
	}
	if job.Name != "call-1" || job.LanguageCode != "en-US" || job.MediaFormat != "wav" {
		t.Errorf("unexpected job: %+v", job)
	}
	if job.MediaSampleRateHertz != 8000 || !job.ChannelIdentification || job.VocabularyName != "products" {
		t.Errorf("unexpected job settings: %+v", job)
	}
	if job.MediaFileURI != "s3://audio/call-1.wav" {
		t.Errorf("unexpected media uri: %s", job.MediaFileURI)
	}
}

func TestFetch_MaxBytes(t *testing.T) {
	dir, store := setup(t)
	doc := `{"jobName":"plain"}`

	src := New(&fakeAPI{job: completedJob(dir)}, store).WithMaxBytes(int64(len(doc)) - 1)
	if _, _, err := src.Fetch(context.Background(), "call-1"); !errors.Is(err, stt.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	src = New(&fakeAPI{job: completedJob(dir)}, store).WithMaxBytes(int64(len(doc)))
	if _, data, err := src.Fetch(context.Background(), "call-1"); err != nil || string(data) != doc {
		t.Errorf("expected document at the limit, got %q (%v)", data, err)
	}
}

func TestFetch_PrefersRedacted(t *testing.T) {
	dir, store := setup(t)
	j := completedJob(dir)
	j.Transcript.RedactedTranscriptFileUri = aws.String("file://" + filepath.Join(dir, "redacted.json"))
	src := New(&fakeAPI{job: j}, store)

	_, data, err := src.Fetch(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != `{"jobName":"redacted"}` {
		t.Errorf("expected redacted document, got %s", data)
	}
}

func TestFetch_NotCompleted(t *testing.T) {
	dir, store := setup(t)
	j := completedJob(dir)
	j.TranscriptionJobStatus = types.TranscriptionJobStatusInProgress
	src := New(&fakeAPI{job: j}, store)

	job, _, err := src.Fetch(context.Background(), "call-1")
	if !errors.Is(err, stt.ErrJobNotCompleted) {
		t.Fatalf("expected ErrJobNotCompleted, got %v", err)
	}
	if job == nil || job.Status != "IN_PROGRESS" {
		t.Errorf("expected job metadata with status, got %+v", job)
	}
}

func TestFetch_APIError(t *testing.T) {
	_, store := setup(t)
	src := New(&fakeAPI{err: errors.New("boom")}, store)

	if _, _, err := src.Fetch(context.Background(), "call-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFetch_MissingTranscript(t *testing.T) {
	dir, store := setup(t)
	j := completedJob(dir)
	j.Transcript.TranscriptFileUri = aws.String("file://" + filepath.Join(dir, "gone.json"))
	src := New(&fakeAPI{job: j}, store)

	if _, _, err := src.Fetch(context.Background(), "call-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
