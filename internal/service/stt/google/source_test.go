package google

import (
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"conversation-analytics-service/internal/asr"
)

func word(text string, start, end float64, tag int32) *speechpb.WordInfo {
	return &speechpb.WordInfo{
		Word:       text,
		StartTime:  durationpb.New(time.Duration(start * float64(time.Second))),
		EndTime:    durationpb.New(time.Duration(end * float64(time.Second))),
		Confidence: 0.5,
		SpeakerTag: tag,
	}
}

func result(channel int32, transcript string, words ...*speechpb.WordInfo) *speechpb.SpeechRecognitionResult {
	return &speechpb.SpeechRecognitionResult{
		ChannelTag:   channel,
		LanguageCode: "en-us",
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: transcript, Words: words}},
	}
}

func TestConvert_Diarized(t *testing.T) {
	meta := &speechpb.LongRunningRecognizeMetadata{
		Uri:            "gs://audio/call.flac",
		LastUpdateTime: timestamppb.New(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
	}
	resp := &speechpb.LongRunningRecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		result(0, "hello there, hi", word("hello", 0, 0.5, 0), word("there,", 0.5, 1, 0), word("hi", 1.5, 2, 0)),
		result(0, "", word("hello", 0, 0.5, 1), word("there,", 0.5, 1, 1), word("hi", 1.5, 2, 2)),
	}}

	job, doc := Convert("op-1", meta, resp)

	if job.Status != asr.StatusCompleted || job.LanguageCode != "en-us" {
		t.Errorf("unexpected job: %+v", job)
	}
	if job.MediaFormat != "flac" || job.MediaFileURI != "gs://audio/call.flac" {
		t.Errorf("unexpected media: %+v", job)
	}
	if !job.CompletionTime.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("unexpected completion time: %v", job.CompletionTime)
	}

	mode, err := doc.Mode()
	if err != nil || mode != asr.ModeSpeaker {
		t.Fatalf("expected speaker mode, got %v, %v", mode, err)
	}
	segs := doc.Results.SpeakerLabels.Segments
	if len(segs) != 2 {
		t.Fatalf("expected 2 speaker blocks, got %d", len(segs))
	}
	if segs[0].SpeakerLabel != "spk_0" || len(segs[0].Items) != 2 || segs[0].EndTime != 1 {
		t.Errorf("unexpected first block: %+v", segs[0])
	}
	if segs[1].SpeakerLabel != "spk_1" || segs[1].StartTime != 1.5 {
		t.Errorf("unexpected second block: %+v", segs[1])
	}
	if doc.Results.SpeakerLabels.Speakers != 2 {
		t.Errorf("expected 2 speakers, got %d", doc.Results.SpeakerLabels.Speakers)
	}

	// hello, there, ",", hi
	if len(doc.Results.Items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(doc.Results.Items))
	}
	if p := doc.Results.Items[2]; !p.IsPunctuation() || p.Alternatives[0].Content != "," {
		t.Errorf("expected split punctuation, got %+v", p)
	}
	if w := doc.Results.Items[1]; w.Alternatives[0].Content != "there" {
		t.Errorf("expected trimmed word, got %q", w.Alternatives[0].Content)
	}
}

func TestConvert_Channels(t *testing.T) {
	resp := &speechpb.LongRunningRecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		result(2, "hi", word("hi", 0.2, 0.4, 0)),
		result(1, "hello", word("hello", 0, 0.5, 0)),
	}}

	job, doc := Convert("op-2", nil, resp)

	if !job.ChannelIdentification {
		t.Error("expected channel identification")
	}
	mode, err := doc.Mode()
	if err != nil || mode != asr.ModeChannel {
		t.Fatalf("expected channel mode, got %v, %v", mode, err)
	}
	chs := doc.Results.ChannelLabels.Channels
	if len(chs) != 2 || chs[0].ChannelLabel != "ch_0" || chs[1].ChannelLabel != "ch_1" {
		t.Fatalf("unexpected channels: %+v", chs)
	}
	if chs[0].Items[0].Alternatives[0].Content != "hello" {
		t.Errorf("expected channel 1 words first, got %+v", chs[0].Items)
	}
}

func TestConvert_SingleSpeaker(t *testing.T) {
	resp := &speechpb.LongRunningRecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		result(0, "one", word("one", 0, 0.5, 0)),
		result(0, "two", word("two", 1, 1.5, 0)),
	}}

	_, doc := Convert("op-3", nil, resp)

	segs := doc.Results.SpeakerLabels.Segments
	if len(segs) != 1 || segs[0].SpeakerLabel != "spk_0" || len(segs[0].Items) != 2 {
		t.Fatalf("expected one block with 2 words, got %+v", segs)
	}
	if doc.Results.Transcripts[0].Transcript != "one two" {
		t.Errorf("unexpected transcript: %q", doc.Results.Transcripts[0].Transcript)
	}
}

func TestSeconds(t *testing.T) {
	if got := seconds(1234567 * time.Microsecond); got != 1.235 {
		t.Errorf("seconds = %v, want 1.235", got)
	}
}
