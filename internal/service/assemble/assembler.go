// Package assemble composes classified turns and conversation aggregates
// into the output record.
package assemble

import (
	"encoding/json"
	"fmt"
	"time"

	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/service/segment"
)

// TimeLayout is the layout of the record's time fields.
const TimeLayout = "2006-01-02 15:04:05.000000"

// Options are the record settings that do not vary per conversation.
type Options struct {
	SpeakerNames   []string
	Location       string
	RecognizerName string
}

// Input is everything the record is built from.
type Input struct {
	Job         asr.Job
	Turns       []*models.SpeechSegment
	Stats       segment.Stats
	Trends      []models.SentimentTrend
	Entities    []models.EntitySummary
	ProcessTime time.Time
}

// Assembler builds conversation records.
type Assembler struct {
	opts Options
}

// New returns an assembler.
func New(opts Options) *Assembler {
	return &Assembler{opts: opts}
}

// Assemble builds the record. It does not modify its input, and equal inputs
// produce equal records.
func (a *Assembler) Assemble(in Input) *models.Conversation {
	processTime := in.ProcessTime.UTC().Format(TimeLayout)
	convTime, location := ConversationTime(in.Job.MediaFileURI, a.opts.Location)
	if convTime == "" {
		convTime = processTime
	}

	channelIdentification := 0
	if in.Job.ChannelIdentification {
		channelIdentification = 1
	}
	completion := ""
	if !in.Job.CompletionTime.IsZero() {
		completion = in.Job.CompletionTime.UTC().Format(time.RFC3339)
	}

	entities := in.Entities
	if entities == nil {
		entities = []models.EntitySummary{}
	}

	return &models.Conversation{
		ConversationAnalytics: models.ConversationAnalytics{
			ConversationTime:     convTime,
			ConversationLocation: location,
			ProcessTime:          processTime,
			LanguageCode:         in.Job.LanguageCode,
			Duration:             duration(in.Turns),
			EntityRecognizerName: a.opts.RecognizerName,
			SpeakerLabels:        a.speakerLabels(in.Stats.MaxSpeakerIndex),
			SentimentTrends:      in.Trends,
			CustomEntities:       entities,
			SourceInformation: []models.SourceInformation{{
				TranscribeJobInfo: models.TranscribeJobInfo{
					TranscriptionJobName:  in.Job.Name,
					CompletionTime:        completion,
					VocabularyName:        in.Job.VocabularyName,
					MediaFormat:           in.Job.MediaFormat,
					MediaSampleRateHertz:  in.Job.MediaSampleRateHertz,
					MediaFileURI:          in.Job.MediaFileURI,
					MediaOriginalURI:      in.Job.MediaFileURI,
					ChannelIdentification: channelIdentification,
					AverageAccuracy:       in.Stats.AverageConfidence(),
				},
			}},
		},
		SpeechSegments: segments(in.Turns),
	}
}

// Encode renders a record as indented JSON.
func Encode(c *models.Conversation) ([]byte, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("assemble: encode record: %w", err)
	}
	return b, nil
}

func (a *Assembler) speakerLabels(maxSpeakerIndex int) []models.SpeakerLabel {
	labels := make([]models.SpeakerLabel, 0, maxSpeakerIndex+1)
	for i := 0; i <= maxSpeakerIndex; i++ {
		display := fmt.Sprintf("Unknown-%d", i)
		if i < len(a.opts.SpeakerNames) && a.opts.SpeakerNames[i] != "" {
			display = a.opts.SpeakerNames[i]
		}
		labels = append(labels, models.SpeakerLabel{
			Speaker:     segment.SpeakerLabel(i),
			DisplayText: display,
		})
	}
	return labels
}

func duration(turns []*models.SpeechSegment) float64 {
	if len(turns) == 0 {
		return 0
	}
	return turns[len(turns)-1].LastWordEnd()
}

func segments(turns []*models.SpeechSegment) []models.SpeechSegmentRecord {
	out := make([]models.SpeechSegmentRecord, 0, len(turns))
	for _, t := range turns {
		rec := models.SpeechSegmentRecord{
			SegmentStartTime:    t.StartTime,
			SegmentEndTime:      t.EndTime,
			SegmentSpeaker:      t.Speaker,
			OriginalText:        t.Text,
			DisplayText:         t.Text,
			SentimentScore:      t.SentimentScore,
			BaseSentimentScores: t.Scores,
			EntitiesDetected:    append([]models.Entity{}, t.Entities...),
			WordConfidence:      append([]models.WordConfidence{}, t.Words...),
		}
		switch t.Sentiment {
		case models.SentimentPositive:
			rec.SentimentIsPositive = 1
		case models.SentimentNegative:
			rec.SentimentIsNegative = 1
		}
		out = append(out, rec)
	}
	return out
}
