package trend

import (
	"math"
	"testing"

	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/service/sentiment"
)

func scored(speaker string, s models.Sentiment, score float64) *models.SpeechSegment {
	t := models.NewSpeechSegment(speaker, 0, 1)
	t.Sentiment = s
	t.SentimentScore = score
	return t
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCalculate_SinglePositiveAtThreshold(t *testing.T) {
	c := sentiment.NewClassifier(0.4, 0.4, 0)
	turns := []*models.SpeechSegment{scored("spk_0", models.SentimentPositive, 0.4)}

	got := Calculate(turns, 0, c)
	if len(got) != 1 {
		t.Fatalf("expected 1 trend, got %d", len(got))
	}
	if got[0].SentimentChange != 0 {
		t.Errorf("expected change 0, got %v", got[0].SentimentChange)
	}
	if got[0].AverageSentiment != c.Rebase(turns[0]) {
		t.Errorf("expected average %v, got %v", c.Rebase(turns[0]), got[0].AverageSentiment)
	}
}

func TestCalculate_AverageDilutedByNeutralTurns(t *testing.T) {
	c := sentiment.NewClassifier(0.4, 0.4, 0)
	turns := []*models.SpeechSegment{
		models.NewSpeechSegment("spk_0", 0, 1),
		scored("spk_0", models.SentimentPositive, 1.0),
		scored("spk_1", models.SentimentNegative, 0.7),
		models.NewSpeechSegment("spk_0", 0, 1),
		scored("spk_0", models.SentimentNegative, 1.0),
	}

	got := Calculate(turns, 1, c)

	// spk_0: rebased +1.0 then -1.0 across four turns
	if !near(got[0].AverageSentiment, 0) {
		t.Errorf("spk_0 average = %v, want 0", got[0].AverageSentiment)
	}
	if !near(got[0].SentimentChange, -2.0) {
		t.Errorf("spk_0 change = %v, want -2", got[0].SentimentChange)
	}
	// spk_1: one negative turn rebased to -0.5
	if !near(got[1].AverageSentiment, -0.5) {
		t.Errorf("spk_1 average = %v, want -0.5", got[1].AverageSentiment)
	}
	if got[1].SentimentChange != 0 {
		t.Errorf("spk_1 change = %v, want 0", got[1].SentimentChange)
	}
}

func TestCalculate_SpeakerWithoutTurns(t *testing.T) {
	c := sentiment.NewClassifier(0.4, 0.4, 0)
	turns := []*models.SpeechSegment{scored("spk_0", models.SentimentPositive, 0.7)}

	got := Calculate(turns, 2, c)
	if len(got) != 3 {
		t.Fatalf("expected 3 trends, got %d", len(got))
	}
	for _, tr := range got[1:] {
		if tr.AverageSentiment != 0 || tr.SentimentChange != 0 {
			t.Errorf("expected zero trend for %s, got %+v", tr.Speaker, tr)
		}
	}
	if got[2].Speaker != "spk_2" {
		t.Errorf("expected spk_2, got %s", got[2].Speaker)
	}
}

func TestCalculate_FirstScoredTurnNotFirstTurn(t *testing.T) {
	c := sentiment.NewClassifier(0.4, 0.4, 0)
	turns := []*models.SpeechSegment{
		models.NewSpeechSegment("spk_0", 0, 1),
		scored("spk_0", models.SentimentPositive, 0.7),
		scored("spk_0", models.SentimentPositive, 1.0),
		models.NewSpeechSegment("spk_0", 0, 1),
	}

	got := Calculate(turns, 0, c)
	if !near(got[0].SentimentChange, 0.5) {
		t.Errorf("change = %v, want 0.5", got[0].SentimentChange)
	}
}
