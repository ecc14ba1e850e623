package segment

import (
	"errors"
	"fmt"

	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/models"
)

// Turn boundary thresholds in seconds.
const (
	// SpeakerGap starts a new turn in speaker mode when the gap between
	// blocks is at least this long.
	SpeakerGap = 3.0
	// ChannelGap starts a new turn in channel mode when the gap between
	// words exceeds this.
	ChannelGap = 0.1
)

// Stats accumulates word-level totals across a conversation.
type Stats struct {
	WordCount       int
	ConfidenceSum   float64
	MaxSpeakerIndex int
}

// AverageConfidence returns ConfidenceSum/WordCount, or 0 with no words.
func (s Stats) AverageConfidence() float64 {
	if s.WordCount == 0 {
		return 0
	}
	return s.ConfidenceSum / float64(s.WordCount)
}

func (s *Stats) observeWord(w models.WordConfidence) {
	s.WordCount++
	s.ConfidenceSum += w.Confidence
}

func (s *Stats) observeSpeaker(index int) {
	if index > s.MaxSpeakerIndex {
		s.MaxSpeakerIndex = index
	}
}

// ErrUnknownMode is returned for a document topology Build cannot segment.
var ErrUnknownMode = errors.New("segment: unknown document mode")

// Result is the output of Build. In channel mode Turns are grouped by
// channel and must be passed through Merge before use.
type Result struct {
	Mode  asr.Mode
	Turns []*models.SpeechSegment
	Stats Stats
}

// builder is the per-conversation turn state.
type builder struct {
	turns       []*models.SpeechSegment
	current     *models.SpeechSegment
	lastSpeaker string
	lastEnd     float64
	stats       Stats
}

func (b *builder) open(speaker string, start, end float64) {
	b.current = models.NewSpeechSegment(speaker, start, end)
	b.turns = append(b.turns, b.current)
}

func (b *builder) add(w models.WordConfidence) {
	b.current.Words = append(b.current.Words, w)
	b.current.Text += w.Text
	b.stats.observeWord(w)
}

// Build groups the document's words into turns.
func Build(doc *asr.Document) (*Result, error) {
	mode, err := doc.Mode()
	if err != nil {
		return nil, err
	}

	b := &builder{}
	switch mode {
	case asr.ModeChannel:
		err = b.channels(doc.Results.ChannelLabels.Channels)
	case asr.ModeSpeaker:
		err = b.speakers(doc.Results.SpeakerLabels.Segments, doc.Results.Items)
	default:
		err = fmt.Errorf("%w: %v", ErrUnknownMode, mode)
	}
	if err != nil {
		return nil, err
	}

	return &Result{Mode: mode, Turns: b.turns, Stats: b.stats}, nil
}

func (b *builder) speakers(blocks []asr.SpeakerSegment, items []asr.Item) error {
	words := newWordIndex(items)
	for _, block := range blocks {
		if len(block.Items) == 0 {
			continue
		}
		speaker, index, err := Canonical(block.SpeakerLabel)
		if err != nil {
			return err
		}
		b.stats.observeSpeaker(index)

		start, end := block.StartTime.Float(), block.EndTime.Float()
		newTurn := b.current == nil || speaker != b.lastSpeaker || start-b.lastEnd >= SpeakerGap
		if newTurn {
			b.open(speaker, start, end)
		} else {
			b.current.EndTime = end
		}
		b.lastSpeaker, b.lastEnd = speaker, end

		for i, ref := range block.Items {
			w, err := words.extract(ref.StartTime.Float(), ref.EndTime.Float(), !(newTurn && i == 0))
			if err != nil {
				return err
			}
			b.add(w)
		}
	}
	return nil
}

func (b *builder) channels(channels []asr.Channel) error {
	for _, ch := range channels {
		if len(ch.Items) == 0 {
			continue
		}
		speaker, index, err := Canonical(ch.ChannelLabel)
		if err != nil {
			return err
		}
		b.stats.observeSpeaker(index)

		words := newWordIndex(ch.Items)
		for _, item := range ch.Items {
			if item.Type != asr.ItemPronunciation {
				continue
			}
			start, end := item.StartTime.Float(), item.EndTime.Float()
			newTurn := b.current == nil || speaker != b.lastSpeaker || start-b.lastEnd > ChannelGap
			if newTurn {
				b.open(speaker, start, end)
			} else {
				b.current.EndTime = end
			}
			b.lastSpeaker, b.lastEnd = speaker, end

			w, err := words.extract(start, end, !newTurn)
			if err != nil {
				return err
			}
			b.add(w)
		}
	}
	return nil
}
