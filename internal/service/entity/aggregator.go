// Package entity filters detected entities onto turns and summarizes them
// per conversation.
package entity

import (
	"slices"

	"conversation-analytics-service/internal/models"
)

// Aggregator collects accepted entity values per type for one conversation.
// It is not safe for concurrent use.
type Aggregator struct {
	threshold float64
	order     []string
	values    map[string][]string
}

// NewAggregator returns an aggregator that accepts entities scoring at or
// above threshold.
func NewAggregator(threshold float64) *Aggregator {
	return &Aggregator{
		threshold: threshold,
		values:    make(map[string][]string),
	}
}

// Accept attaches e to turn and records its text when the score meets the
// threshold and the type is in allow (an empty allow-list accepts any type).
func (a *Aggregator) Accept(turn *models.SpeechSegment, e models.Entity, allow []string) bool {
	if e.Score < a.threshold {
		return false
	}
	if len(allow) > 0 && !slices.Contains(allow, e.Type) {
		return false
	}
	a.Record(e.Type, e.Text)
	turn.Entities = append(turn.Entities, e)
	return true
}

// Record adds a value to the conversation summary without touching any turn.
func (a *Aggregator) Record(entityType, value string) {
	if _, ok := a.values[entityType]; !ok {
		a.order = append(a.order, entityType)
	}
	a.values[entityType] = append(a.values[entityType], value)
}

// Summary returns the deduplicated values per type, types and values both in
// first-seen order.
func (a *Aggregator) Summary() []models.EntitySummary {
	out := make([]models.EntitySummary, 0, len(a.order))
	for _, name := range a.order {
		unique := dedup(a.values[name])
		out = append(out, models.EntitySummary{
			Name:   name,
			Count:  len(unique),
			Values: unique,
		})
	}
	return out
}

func dedup(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	return unique
}
