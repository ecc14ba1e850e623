package models

// Sentiment is the categorical sentiment of a turn.
type Sentiment string

const (
	SentimentNeutral  Sentiment = "Neutral"
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
)

// UnsetScore is the sentiment score of a turn that is not Positive or Negative.
const UnsetScore = -1.0

// SentimentScores is a raw sentiment probability distribution.
type SentimentScores struct {
	Positive float64 `json:"Positive"`
	Negative float64 `json:"Negative"`
	Neutral  float64 `json:"Neutral"`
	Mixed    float64 `json:"Mixed"`
}

// NeutralScores is the distribution assigned when no NLP language is available.
var NeutralScores = SentimentScores{Neutral: 1}

// Entity is a named entity detected in a turn. Offsets are character offsets
// into the turn text.
type Entity struct {
	Type        string  `json:"Type"`
	Text        string  `json:"Text"`
	BeginOffset int     `json:"BeginOffset"`
	EndOffset   int     `json:"EndOffset"`
	Score       float64 `json:"Score"`
}

// WordConfidence is one rendered word of a turn. Text carries the leading
// space and any trailing punctuation.
type WordConfidence struct {
	Text       string  `json:"Text"`
	Confidence float64 `json:"Confidence"`
	StartTime  float64 `json:"StartTime"`
	EndTime    float64 `json:"EndTime"`
}

// SpeechSegment is one turn of the conversation.
type SpeechSegment struct {
	StartTime      float64
	EndTime        float64
	Speaker        string
	Text           string
	Words          []WordConfidence
	Sentiment      Sentiment
	SentimentScore float64
	Scores         SentimentScores
	Entities       []Entity
}

// NewSpeechSegment returns an empty Neutral turn.
func NewSpeechSegment(speaker string, start, end float64) *SpeechSegment {
	return &SpeechSegment{
		StartTime:      start,
		EndTime:        end,
		Speaker:        speaker,
		Sentiment:      SentimentNeutral,
		SentimentScore: UnsetScore,
	}
}

// IsScored reports whether the turn carries a Positive or Negative sentiment.
func (s *SpeechSegment) IsScored() bool {
	return s.Sentiment == SentimentPositive || s.Sentiment == SentimentNegative
}

// LastWordEnd returns the end time of the final word, or the turn end when
// the turn has no words.
func (s *SpeechSegment) LastWordEnd() float64 {
	if len(s.Words) == 0 {
		return s.EndTime
	}
	return s.Words[len(s.Words)-1].EndTime
}
