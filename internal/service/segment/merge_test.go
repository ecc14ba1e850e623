package segment

import (
	"testing"

	"conversation-analytics-service/internal/models"
)

func turn(speaker string, start, end float64, text string) *models.SpeechSegment {
	s := models.NewSpeechSegment(speaker, start, end)
	s.Text = text
	s.Words = []models.WordConfidence{{Text: text, Confidence: 0.9, StartTime: start, EndTime: end}}
	return s
}

func TestMerge_AbsorbsSameSpeakerShortGap(t *testing.T) {
	turns := []*models.SpeechSegment{
		turn("spk_0", 0.0, 1.0, "good"),
		turn("spk_0", 2.0, 3.0, "morning"),
		turn("spk_1", 1.0, 1.5, "hi"),
	}

	merged := Merge(turns)
	if len(merged) != 3 {
		t.Fatalf("expected 3 turns (interleaved speaker), got %d", len(merged))
	}

	merged = Merge([]*models.SpeechSegment{
		turn("spk_0", 0.0, 1.0, "good"),
		turn("spk_0", 2.0, 3.0, "morning"),
	})
	if len(merged) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(merged))
	}
	got := merged[0]
	if got.Text != "good morning" {
		t.Errorf("expected 'good morning', got %q", got.Text)
	}
	if got.EndTime != 3.0 {
		t.Errorf("expected end 3.0, got %v", got.EndTime)
	}
	if len(got.Words) != 2 || got.Words[1].Text != " morning" {
		t.Errorf("expected second word ' morning', got %+v", got.Words)
	}
}

func TestMerge_KeepsLongGap(t *testing.T) {
	merged := Merge([]*models.SpeechSegment{
		turn("spk_0", 0.0, 1.0, "a"),
		turn("spk_0", 4.0, 5.0, "b"),
	})
	if len(merged) != 2 {
		t.Errorf("expected 2 turns, got %d", len(merged))
	}
}

func TestMerge_SortsStable(t *testing.T) {
	merged := Merge([]*models.SpeechSegment{
		turn("spk_1", 5.0, 6.0, "later"),
		turn("spk_0", 0.0, 1.0, "first"),
		turn("spk_2", 0.0, 0.5, "tie"),
	})
	want := []string{"first", "tie", "later"}
	for i, w := range want {
		if merged[i].Text != w {
			t.Errorf("position %d: expected %q, got %q", i, w, merged[i].Text)
		}
	}
}

func TestMerge_NoAdjacentSameSpeakerShortGap(t *testing.T) {
	input := []*models.SpeechSegment{
		turn("spk_1", 9.0, 9.5, "f"),
		turn("spk_0", 0.0, 0.5, "a"),
		turn("spk_0", 0.7, 1.0, "b"),
		turn("spk_1", 1.1, 2.0, "c"),
		turn("spk_1", 2.1, 2.5, "d"),
		turn("spk_0", 3.0, 4.0, "e"),
	}

	merged := Merge(input)
	for i := 1; i < len(merged); i++ {
		prev, cur := merged[i-1], merged[i]
		if cur.StartTime < prev.StartTime {
			t.Errorf("turn %d out of order", i)
		}
		if prev.Speaker == cur.Speaker && cur.StartTime-prev.EndTime < MergeGap {
			t.Errorf("turns %d and %d should have merged", i-1, i)
		}
	}
	if len(merged) != 4 {
		t.Errorf("expected 4 turns, got %d", len(merged))
	}
}
