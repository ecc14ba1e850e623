// Package sentiment classifies turn sentiment from raw NLP probabilities.
package sentiment

import (
	"unicode/utf8"

	"conversation-analytics-service/internal/models"
)

// Defaults for the classifier thresholds.
const (
	DefaultMinPositive   = 0.4
	DefaultMinNegative   = 0.4
	DefaultMinTextLength = 16
)

// Classifier assigns categorical sentiment to turns.
type Classifier struct {
	MinPositive   float64
	MinNegative   float64
	MinTextLength int
}

// NewClassifier returns a classifier with the given thresholds. A
// non-positive minTextLength selects DefaultMinTextLength.
func NewClassifier(minPositive, minNegative float64, minTextLength int) *Classifier {
	if minTextLength <= 0 {
		minTextLength = DefaultMinTextLength
	}
	return &Classifier{
		MinPositive:   minPositive,
		MinNegative:   minNegative,
		MinTextLength: minTextLength,
	}
}

// Eligible reports whether the turn is long enough to be scored.
func (c *Classifier) Eligible(turn *models.SpeechSegment) bool {
	return utf8.RuneCountInString(turn.Text) >= c.MinTextLength
}

// Classify records the raw distribution on the turn and sets its sentiment.
// Negative is checked before Positive; both thresholds are inclusive.
func (c *Classifier) Classify(turn *models.SpeechSegment, scores models.SentimentScores) {
	turn.Scores = scores
	switch {
	case scores.Negative >= c.MinNegative:
		turn.Sentiment = models.SentimentNegative
		turn.SentimentScore = scores.Negative
	case scores.Positive >= c.MinPositive:
		turn.Sentiment = models.SentimentPositive
		turn.SentimentScore = scores.Positive
	default:
		turn.Sentiment = models.SentimentNeutral
		turn.SentimentScore = models.UnsetScore
	}
}

// Rebase maps a scored turn's polarity probability from [threshold, 1] onto
// [0, 1], negated for Negative turns. Unscored turns rebase to 0.
func (c *Classifier) Rebase(turn *models.SpeechSegment) float64 {
	switch turn.Sentiment {
	case models.SentimentPositive:
		return (turn.SentimentScore - c.MinPositive) / (1 - c.MinPositive)
	case models.SentimentNegative:
		return -(turn.SentimentScore - c.MinNegative) / (1 - c.MinNegative)
	default:
		return 0
	}
}
