package segment

import (
	"cmp"
	"slices"

	"conversation-analytics-service/internal/models"
)

// MergeGap is the largest gap in seconds across which two same-speaker turns
// are coalesced after sorting.
const MergeGap = 3.0

// Merge orders channel-mode turns by start time and coalesces adjacent turns
// of the same speaker separated by less than MergeGap. Absorbed turns are
// modified in place and dropped from the returned list.
func Merge(turns []*models.SpeechSegment) []*models.SpeechSegment {
	sorted := slices.Clone(turns)
	slices.SortStableFunc(sorted, func(a, b *models.SpeechSegment) int {
		return cmp.Compare(a.StartTime, b.StartTime)
	})

	merged := make([]*models.SpeechSegment, 0, len(sorted))
	for _, turn := range sorted {
		if n := len(merged); n > 0 {
			prev := merged[n-1]
			if prev.Speaker == turn.Speaker && turn.StartTime-prev.EndTime < MergeGap {
				absorb(prev, turn)
				continue
			}
		}
		merged = append(merged, turn)
	}
	return merged
}

func absorb(into, from *models.SpeechSegment) {
	into.EndTime = max(into.EndTime, from.EndTime)
	into.Text += " " + from.Text
	if len(from.Words) > 0 {
		from.Words[0].Text = " " + from.Words[0].Text
	}
	into.Words = append(into.Words, from.Words...)
}
