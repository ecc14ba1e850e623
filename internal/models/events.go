// Package models defines the conversation data structures and the events
// exchanged over Kafka.
package models

// Event types.
const (
	EventJobCompleted          = "transcription.job.completed"
	EventTurnAnalyzed          = "conversation.turn.analyzed"
	EventConversationProcessed = "conversation.processed"
)

// JobCompleted is the inbound notification that an ASR job has finished.
type JobCompleted struct {
	EventType string `json:"eventType" validate:"omitempty,eq=transcription.job.completed"`
	JobName   string `json:"jobName" validate:"required,max=200"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// TurnAnalyzed is published once per turn of a processed conversation.
type TurnAnalyzed struct {
	EventType      string  `json:"eventType"`
	RunID          string  `json:"runId"`
	JobName        string  `json:"jobName"`
	SegmentID      string  `json:"segmentId"`
	Speaker        string  `json:"speaker"`
	StartTime      float64 `json:"startTime"`
	EndTime        float64 `json:"endTime"`
	Text           string  `json:"text"`
	Sentiment      string  `json:"sentiment"`
	SentimentScore float64 `json:"sentimentScore"`
	EntityCount    int     `json:"entityCount"`
	Timestamp      int64   `json:"timestamp"`
}

// ConversationProcessed wraps a finished record for the conversations topic.
type ConversationProcessed struct {
	EventType string        `json:"eventType"`
	RunID     string        `json:"runId"`
	JobName   string        `json:"jobName"`
	Timestamp int64         `json:"timestamp"`
	Record    *Conversation `json:"record"`
}
