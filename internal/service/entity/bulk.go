package entity

import (
	"errors"

	"conversation-analytics-service/internal/models"
)

// ErrBulkIncomplete marks a bulk detection job that failed, was stopped or
// timed out. The conversation proceeds without custom entities.
var ErrBulkIncomplete = errors.New("entity: bulk detection job did not complete")

// LineEntities are the entities found on one input line of a bulk job. Line
// is the zero-based turn index.
type LineEntities struct {
	Line     int             `json:"Line"`
	Entities []models.Entity `json:"Entities"`
}

// Join attaches bulk results to turns by line index. Lines beyond the turn
// list are ignored. It returns the number of accepted entities.
func (a *Aggregator) Join(turns []*models.SpeechSegment, results []LineEntities, allow []string) int {
	accepted := 0
	for _, line := range results {
		if line.Line < 0 || line.Line >= len(turns) {
			continue
		}
		for _, e := range line.Entities {
			if a.Accept(turns[line.Line], e, allow) {
				accepted++
			}
		}
	}
	return accepted
}

// Lines renders turn texts one per line as bulk job input.
func Lines(turns []*models.SpeechSegment) []string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Text
	}
	return lines
}
