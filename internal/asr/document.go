// Package asr holds the ASR job result document and job metadata consumed by
// the segmentation engine.
package asr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Item types in the result item stream.
const (
	ItemPronunciation = "pronunciation"
	ItemPunctuation   = "punctuation"
)

// Mode is the input topology of a result document.
type Mode int

const (
	// ModeSpeaker means words are grouped into diarized speaker blocks.
	ModeSpeaker Mode = iota
	// ModeChannel means words are grouped per audio channel.
	ModeChannel
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSpeaker:
		return "speaker"
	case ModeChannel:
		return "channel"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", m)
	}
}

// ErrNoLabels is returned when a document has neither speaker nor channel labels.
var ErrNoLabels = errors.New("asr: document has no speaker or channel labels")

// Number is a float carried as either a JSON string or a JSON number.
// Transcribe emits times and confidences as strings.
type Number float64

// UnmarshalJSON accepts "1.25", 1.25 and null.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		b = []byte(s)
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("asr: invalid number %q: %w", b, err)
	}
	*n = Number(f)
	return nil
}

// Float returns the value as a float64.
func (n Number) Float() float64 { return float64(n) }

// Document is a Transcribe-format job result.
type Document struct {
	JobName   string  `json:"jobName"`
	AccountID string  `json:"accountId,omitempty"`
	Status    string  `json:"status,omitempty"`
	Results   Results `json:"results"`
}

// Results holds the transcript text, the flat item stream and the labels.
type Results struct {
	Transcripts   []Transcript   `json:"transcripts"`
	SpeakerLabels *SpeakerLabels `json:"speaker_labels,omitempty"`
	ChannelLabels *ChannelLabels `json:"channel_labels,omitempty"`
	Items         []Item         `json:"items" validate:"dive"`
}

// Transcript is the full plain-text transcript.
type Transcript struct {
	Transcript string `json:"transcript"`
}

// SpeakerLabels contains speaker diarization information.
type SpeakerLabels struct {
	Speakers int              `json:"speakers"`
	Segments []SpeakerSegment `json:"segments" validate:"dive"`
}

// SpeakerSegment is one contiguous block attributed to a speaker.
type SpeakerSegment struct {
	StartTime    Number    `json:"start_time"`
	EndTime      Number    `json:"end_time"`
	SpeakerLabel string    `json:"speaker_label" validate:"required"`
	Items        []WordRef `json:"items"`
}

// WordRef points at a pronunciation item by its timing.
type WordRef struct {
	StartTime    Number `json:"start_time"`
	EndTime      Number `json:"end_time"`
	SpeakerLabel string `json:"speaker_label,omitempty"`
}

// ChannelLabels contains per-channel item streams.
type ChannelLabels struct {
	NumberOfChannels int       `json:"number_of_channels"`
	Channels         []Channel `json:"channels" validate:"dive"`
}

// Channel is the item stream of a single audio channel.
type Channel struct {
	ChannelLabel string `json:"channel_label" validate:"required"`
	Items        []Item `json:"items" validate:"dive"`
}

// Item is a word or punctuation token.
type Item struct {
	StartTime    Number        `json:"start_time"`
	EndTime      Number        `json:"end_time"`
	Type         string        `json:"type" validate:"required,oneof=pronunciation punctuation"`
	Alternatives []Alternative `json:"alternatives" validate:"required,min=1,dive"`
	SpeakerLabel string        `json:"speaker_label,omitempty"`
}

// IsPunctuation reports whether the item is a punctuation token.
func (i Item) IsPunctuation() bool { return i.Type == ItemPunctuation }

// Alternative is one transcription candidate. Confidence is nil on redacted
// items, which carry their confidence in Redactions instead.
type Alternative struct {
	Confidence *Number     `json:"confidence,omitempty"`
	Content    string      `json:"content"`
	Redactions []Redaction `json:"redactions,omitempty"`
}

// Redaction describes a PII redaction applied to an alternative.
type Redaction struct {
	Confidence Number `json:"confidence"`
	Type       string `json:"type,omitempty"`
	Category   string `json:"category,omitempty"`
}

// Mode reports the document topology. Channel labels win when both are present.
func (d *Document) Mode() (Mode, error) {
	switch {
	case d.Results.ChannelLabels != nil && len(d.Results.ChannelLabels.Channels) > 0:
		return ModeChannel, nil
	case d.Results.SpeakerLabels != nil:
		return ModeSpeaker, nil
	default:
		return 0, ErrNoLabels
	}
}

// Parse decodes a result document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("asr: decode document: %w", err)
	}
	return &doc, nil
}
