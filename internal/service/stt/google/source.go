// Package google reads finished long-running recognitions from Google Cloud
// Speech-to-Text and converts them into ASR result documents.
package google

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/service/stt"
)

const (
	speakerPrefix = "spk_"
	channelPrefix = "ch_"

	// trailing punctuation split off recognized words
	punctuation = ".,?!;:"
)

// Source implements stt.Source. The job name is the name of a
// LongRunningRecognize operation.
type Source struct {
	client *speech.Client
}

// New creates a Google source.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context) (*Source, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google: create speech client: %w", err)
	}
	return &Source{client: c}, nil
}

// Close releases the underlying client.
func (s *Source) Close() error {
	return s.client.Close()
}

// Fetch polls the operation once and converts its response when done.
func (s *Source) Fetch(ctx context.Context, jobName string) (*asr.Job, []byte, error) {
	op := s.client.LongRunningRecognizeOperation(jobName)
	resp, err := op.Poll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("google: poll %s: %w", jobName, err)
	}
	if !op.Done() || resp == nil {
		return &asr.Job{Name: jobName, Status: asr.StatusInProgress},
			nil, fmt.Errorf("%w: %s is still running", stt.ErrJobNotCompleted, jobName)
	}

	meta, err := op.Metadata()
	if err != nil {
		return nil, nil, fmt.Errorf("google: read metadata of %s: %w", jobName, err)
	}

	job, doc := Convert(jobName, meta, resp)
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("google: encode document: %w", err)
	}
	return job, data, nil
}

// Convert builds job metadata and a result document from a finished
// recognition. Diarized results become speaker blocks, multi-channel results
// become channels and anything else is attributed to a single speaker.
func Convert(name string, meta *speechpb.LongRunningRecognizeMetadata, resp *speechpb.LongRunningRecognizeResponse) (*asr.Job, *asr.Document) {
	job := &asr.Job{
		Name:   name,
		Status: asr.StatusCompleted,
	}
	if meta != nil {
		job.MediaFileURI = meta.GetUri()
		job.MediaFormat = strings.TrimPrefix(path.Ext(meta.GetUri()), ".")
		if t := meta.GetLastUpdateTime(); t != nil {
			job.CompletionTime = t.AsTime()
		}
	}

	var transcript strings.Builder
	channels := map[int32][]*speechpb.WordInfo{}
	var diarized []*speechpb.WordInfo
	for _, r := range resp.GetResults() {
		if job.LanguageCode == "" {
			job.LanguageCode = r.GetLanguageCode()
		}
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		if transcript.Len() > 0 && alt.GetTranscript() != "" {
			transcript.WriteByte(' ')
		}
		transcript.WriteString(strings.TrimSpace(alt.GetTranscript()))

		words := alt.GetWords()
		if len(words) > 0 && words[0].GetSpeakerTag() > 0 {
			// each diarized result repeats every word so far
			diarized = words
			continue
		}
		channels[r.GetChannelTag()] = append(channels[r.GetChannelTag()], words...)
	}

	doc := &asr.Document{
		JobName: name,
		Status:  asr.StatusCompleted,
		Results: asr.Results{
			Transcripts: []asr.Transcript{{Transcript: transcript.String()}},
		},
	}

	switch {
	case len(diarized) > 0:
		doc.Results.SpeakerLabels = speakerBlocks(diarized, &doc.Results.Items)
	case len(channels) > 1:
		tags := make([]int32, 0, len(channels))
		for tag := range channels {
			tags = append(tags, tag)
		}
		slices.Sort(tags)

		labels := &asr.ChannelLabels{NumberOfChannels: len(tags)}
		for _, tag := range tags {
			ch := asr.Channel{ChannelLabel: fmt.Sprintf("%s%d", channelPrefix, max(tag-1, 0))}
			for _, w := range channels[tag] {
				ch.Items = append(ch.Items, items(w, "")...)
			}
			doc.Results.Items = append(doc.Results.Items, ch.Items...)
			labels.Channels = append(labels.Channels, ch)
		}
		doc.Results.ChannelLabels = labels
		job.ChannelIdentification = true
	default:
		var words []*speechpb.WordInfo
		for _, ws := range channels {
			words = append(words, ws...)
		}
		slices.SortStableFunc(words, func(a, b *speechpb.WordInfo) int {
			return cmp.Compare(a.GetStartTime().AsDuration(), b.GetStartTime().AsDuration())
		})
		doc.Results.SpeakerLabels = speakerBlocks(words, &doc.Results.Items)
	}
	return job, doc
}

// speakerBlocks groups consecutive words with the same speaker tag and
// appends their items to flat.
func speakerBlocks(words []*speechpb.WordInfo, flat *[]asr.Item) *asr.SpeakerLabels {
	labels := &asr.SpeakerLabels{}
	speakers := map[int32]bool{}
	var cur *asr.SpeakerSegment

	for _, w := range words {
		label := fmt.Sprintf("%s%d", speakerPrefix, max(w.GetSpeakerTag()-1, 0))
		speakers[w.GetSpeakerTag()] = true

		its := items(w, label)
		word := its[0]
		if cur == nil || cur.SpeakerLabel != label {
			labels.Segments = append(labels.Segments, asr.SpeakerSegment{
				StartTime:    word.StartTime,
				SpeakerLabel: label,
			})
			cur = &labels.Segments[len(labels.Segments)-1]
		}
		cur.EndTime = word.EndTime
		cur.Items = append(cur.Items, asr.WordRef{StartTime: word.StartTime, EndTime: word.EndTime, SpeakerLabel: label})
		*flat = append(*flat, its...)
	}
	labels.Speakers = len(speakers)
	return labels
}

// items converts a recognized word into a pronunciation item followed by a
// punctuation item when the word carries trailing punctuation.
func items(w *speechpb.WordInfo, label string) []asr.Item {
	text := w.GetWord()
	trimmed := strings.TrimRight(text, punctuation)
	if trimmed == "" {
		trimmed = text
	}
	conf := asr.Number(w.GetConfidence())

	out := []asr.Item{{
		StartTime:    asr.Number(seconds(w.GetStartTime().AsDuration())),
		EndTime:      asr.Number(seconds(w.GetEndTime().AsDuration())),
		Type:         asr.ItemPronunciation,
		Alternatives: []asr.Alternative{{Confidence: &conf, Content: trimmed}},
		SpeakerLabel: label,
	}}
	if p := text[len(trimmed):]; p != "" {
		zero := asr.Number(0)
		out = append(out, asr.Item{
			Type:         asr.ItemPunctuation,
			Alternatives: []asr.Alternative{{Confidence: &zero, Content: p}},
		})
	}
	return out
}

// seconds rounds to milliseconds, the resolution word timings are reported in.
func seconds(d time.Duration) float64 {
	return float64(d.Round(time.Millisecond).Milliseconds()) / 1000
}

var _ stt.Source = (*Source)(nil)
