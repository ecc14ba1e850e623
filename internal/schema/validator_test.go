package schema

import (
	"errors"
	"strings"
	"testing"

	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/models"
)

func validDocument() *asr.Document {
	c := asr.Number(0.9)
	doc := &asr.Document{JobName: "call-1"}
	doc.Results.Items = []asr.Item{
		{StartTime: 0, EndTime: 0.5, Type: asr.ItemPronunciation, Alternatives: []asr.Alternative{{Confidence: &c, Content: "hi"}}},
		{Type: asr.ItemPunctuation, Alternatives: []asr.Alternative{{Content: "."}}},
	}
	doc.Results.SpeakerLabels = &asr.SpeakerLabels{Segments: []asr.SpeakerSegment{{
		StartTime:    0,
		EndTime:      0.5,
		SpeakerLabel: "spk_0",
		Items:        []asr.WordRef{{StartTime: 0, EndTime: 0.5}},
	}}}
	return doc
}

func TestDocument(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *asr.Document)
		wantErr string
	}{
		{"valid", func(*asr.Document) {}, ""},
		{"unknown item type", func(d *asr.Document) { d.Results.Items[0].Type = "word" }, "oneof"},
		{"no alternatives", func(d *asr.Document) { d.Results.Items[0].Alternatives = nil }, "required"},
		{"missing speaker label", func(d *asr.Document) { d.Results.SpeakerLabels.Segments[0].SpeakerLabel = "" }, "required"},
		{"no labels", func(d *asr.Document) { d.Results.SpeakerLabels = nil }, "no speaker or channel labels"},
		{"reversed timing", func(d *asr.Document) { d.Results.Items[0].EndTime = -1 }, "before it starts"},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			tt.mutate(doc)

			err := v.Document(doc)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestDocument_ChannelItems(t *testing.T) {
	doc := validDocument()
	doc.Results.SpeakerLabels = nil
	doc.Results.ChannelLabels = &asr.ChannelLabels{Channels: []asr.Channel{{
		ChannelLabel: "ch_0",
		Items:        []asr.Item{{StartTime: 2, EndTime: 1, Type: asr.ItemPronunciation, Alternatives: []asr.Alternative{{Content: "x"}}}},
	}}}

	err := New().Document(doc)
	if err == nil || !strings.Contains(err.Error(), "ch_0") {
		t.Fatalf("expected channel timing error, got %v", err)
	}
}

func TestValidate_JobCompleted(t *testing.T) {
	v := New()

	if err := v.Validate(models.JobCompleted{JobName: "call-1"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.Validate(models.JobCompleted{}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for missing job name, got %v", err)
	}
	if err := v.Validate(models.JobCompleted{EventType: "other", JobName: "x"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for wrong event type, got %v", err)
	}
}

func TestDocument_Nil(t *testing.T) {
	if err := New().Document(nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}
