// Package trend derives per-speaker sentiment trends from classified turns.
package trend

import (
	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/service/segment"
)

// Rebaser maps a classified turn to its signed, threshold-independent score.
type Rebaser interface {
	Rebase(turn *models.SpeechSegment) float64
}

// Calculate returns one trend per speaker index in [0, maxSpeakerIndex].
// The average divides by every turn of the speaker, scored or not; a
// speaker with no turns gets zeros.
func Calculate(turns []*models.SpeechSegment, maxSpeakerIndex int, r Rebaser) []models.SentimentTrend {
	trends := make([]models.SentimentTrend, 0, maxSpeakerIndex+1)
	for i := 0; i <= maxSpeakerIndex; i++ {
		speaker := segment.SpeakerLabel(i)

		var (
			count       int
			sum         float64
			first, last float64
			seenScored  bool
		)
		for _, turn := range turns {
			if turn.Speaker != speaker {
				continue
			}
			count++
			if !turn.IsScored() {
				continue
			}
			score := r.Rebase(turn)
			sum += score
			if !seenScored {
				first, seenScored = score, true
			}
			last = score
		}

		average := 0.0
		if count > 0 {
			average = sum / float64(count)
		}
		trends = append(trends, models.SentimentTrend{
			Speaker:          speaker,
			AverageSentiment: average,
			SentimentChange:  last - first,
		})
	}
	return trends
}
