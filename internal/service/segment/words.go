package segment

import (
	"errors"
	"fmt"

	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/models"
)

var (
	// ErrNoPronunciation is returned when a timed word has no matching
	// pronunciation item.
	ErrNoPronunciation = errors.New("segment: no pronunciation item for word")
	// ErrNoConfidence is returned when an alternative has neither a
	// confidence nor a redaction confidence.
	ErrNoConfidence = errors.New("segment: alternative has no confidence")
)

type timing struct {
	start, end float64
}

// wordIndex resolves timed words against one item stream.
type wordIndex struct {
	items  []asr.Item
	byTime map[timing][]int
}

func newWordIndex(items []asr.Item) *wordIndex {
	x := &wordIndex{items: items, byTime: make(map[timing][]int)}
	for i, it := range items {
		if it.Type != asr.ItemPronunciation {
			continue
		}
		k := timing{it.StartTime.Float(), it.EndTime.Float()}
		x.byTime[k] = append(x.byTime[k], i)
	}
	return x
}

// extract resolves the best alternative for the word at [start, end] and
// attaches trailing punctuation. leadingSpace is false only for the first
// word of a turn.
func (x *wordIndex) extract(start, end float64, leadingSpace bool) (models.WordConfidence, error) {
	matches := x.byTime[timing{start, end}]
	if len(matches) == 0 {
		return models.WordConfidence{}, fmt.Errorf("%w at [%g, %g]", ErrNoPronunciation, start, end)
	}

	var (
		content string
		best    float64
		found   bool
	)
	for _, i := range matches {
		item := x.items[i]
		for _, alt := range item.Alternatives {
			conf, err := confidence(item, alt)
			if err != nil {
				return models.WordConfidence{}, fmt.Errorf("%w at [%g, %g]", err, start, end)
			}
			if !found || conf > best {
				content, best, found = alt.Content, conf, true
			}
		}
	}
	if !found {
		return models.WordConfidence{}, fmt.Errorf("%w at [%g, %g]", ErrNoPronunciation, start, end)
	}

	if next := matches[0] + 1; next < len(x.items) && x.items[next].IsPunctuation() {
		if alts := x.items[next].Alternatives; len(alts) > 0 {
			content += alts[0].Content
		}
	}
	if leadingSpace {
		content = " " + content
	}

	return models.WordConfidence{
		Text:       content,
		Confidence: best,
		StartTime:  start,
		EndTime:    end,
	}, nil
}

// confidence returns the alternative's confidence, falling back to the
// redaction confidence of the item's first alternative.
func confidence(item asr.Item, alt asr.Alternative) (float64, error) {
	if alt.Confidence != nil {
		return alt.Confidence.Float(), nil
	}
	if len(item.Alternatives) > 0 && len(item.Alternatives[0].Redactions) > 0 {
		return item.Alternatives[0].Redactions[0].Confidence.Float(), nil
	}
	return 0, ErrNoConfidence
}
