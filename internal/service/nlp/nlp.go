// Package nlp defines the sentiment and entity detection collaborators used
// to enrich turns.
package nlp

import (
	"context"

	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/service/entity"
)

// Detector scores one piece of text at a time.
type Detector interface {
	// DetectSentiment returns the raw sentiment distribution of text.
	DetectSentiment(ctx context.Context, text, language string) (models.SentimentScores, error)

	// DetectEntities returns the standard entities found in text.
	DetectEntities(ctx context.Context, text, language string) ([]models.Entity, error)

	// DetectLanguage returns the dominant language code of text, or "".
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// BulkDetector runs an asynchronous custom entity job over many lines and
// blocks until it reaches a terminal state. A job that fails, stops or times
// out returns an error wrapping entity.ErrBulkIncomplete.
type BulkDetector interface {
	DetectBulk(ctx context.Context, name string, lines []string, language string) ([]entity.LineEntities, error)
}

// Static is a Detector that never calls out. Every text is Neutral, carries
// no entities and has no detectable language.
type Static struct{}

// DetectSentiment returns models.NeutralScores.
func (Static) DetectSentiment(context.Context, string, string) (models.SentimentScores, error) {
	return models.NeutralScores, nil
}

// DetectEntities returns no entities.
func (Static) DetectEntities(context.Context, string, string) ([]models.Entity, error) {
	return nil, nil
}

// DetectLanguage returns "".
func (Static) DetectLanguage(context.Context, string) (string, error) {
	return "", nil
}

var _ Detector = Static{}
