package asr

import "time"

// Job status values reported by the ASR service.
const (
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusInProgress = "IN_PROGRESS"
	StatusQueued     = "QUEUED"
)

// Job is the metadata of a finished transcription job.
type Job struct {
	Name                      string    `json:"name"`
	Status                    string    `json:"status"`
	LanguageCode              string    `json:"languageCode"`
	MediaFormat               string    `json:"mediaFormat"`
	MediaSampleRateHertz      int       `json:"mediaSampleRateHertz"`
	MediaFileURI              string    `json:"mediaFileUri"`
	CompletionTime            time.Time `json:"completionTime"`
	ChannelIdentification     bool      `json:"channelIdentification"`
	VocabularyName            string    `json:"vocabularyName,omitempty"`
	TranscriptFileURI         string    `json:"transcriptFileUri"`
	RedactedTranscriptFileURI string    `json:"redactedTranscriptFileUri,omitempty"`
}

// ResultURI returns the transcript location to read, preferring the redacted copy.
func (j *Job) ResultURI() string {
	if j.RedactedTranscriptFileURI != "" {
		return j.RedactedTranscriptFileURI
	}
	return j.TranscriptFileURI
}
