package models

// Conversation is the structured record produced for one conversation.
type Conversation struct {
	ConversationAnalytics ConversationAnalytics `json:"ConversationAnalytics"`
	SpeechSegments        []SpeechSegmentRecord `json:"SpeechSegments"`
}

// ConversationAnalytics is the conversation-level header.
type ConversationAnalytics struct {
	ConversationTime     string              `json:"ConversationTime"`
	ConversationLocation string              `json:"ConversationLocation"`
	ProcessTime          string              `json:"ProcessTime"`
	LanguageCode         string              `json:"LanguageCode"`
	Duration             float64             `json:"Duration"`
	EntityRecognizerName string              `json:"EntityRecognizerName,omitempty"`
	SpeakerLabels        []SpeakerLabel      `json:"SpeakerLabels"`
	SentimentTrends      []SentimentTrend    `json:"SentimentTrends"`
	CustomEntities       []EntitySummary     `json:"CustomEntities"`
	SourceInformation    []SourceInformation `json:"SourceInformation"`
}

// SpeakerLabel maps a canonical speaker to its display text.
type SpeakerLabel struct {
	Speaker     string `json:"Speaker"`
	DisplayText string `json:"DisplayText"`
}

// SentimentTrend is the per-speaker sentiment summary.
type SentimentTrend struct {
	Speaker          string  `json:"Speaker"`
	AverageSentiment float64 `json:"AverageSentiment"`
	SentimentChange  float64 `json:"SentimentChange"`
}

// EntitySummary is the deduplicated list of values seen for one entity type.
type EntitySummary struct {
	Name   string   `json:"Name"`
	Count  int      `json:"Count"`
	Values []string `json:"Values"`
}

// SourceInformation describes where the transcript came from.
type SourceInformation struct {
	TranscribeJobInfo TranscribeJobInfo `json:"TranscribeJobInfo"`
}

// TranscribeJobInfo is the ASR job metadata carried into the record.
type TranscribeJobInfo struct {
	TranscriptionJobName  string  `json:"TranscriptionJobName"`
	CompletionTime        string  `json:"CompletionTime"`
	VocabularyName        string  `json:"VocabularyName,omitempty"`
	MediaFormat           string  `json:"MediaFormat"`
	MediaSampleRateHertz  int     `json:"MediaSampleRateHertz"`
	MediaFileURI          string  `json:"MediaFileUri"`
	MediaOriginalURI      string  `json:"MediaOriginalUri"`
	ChannelIdentification int     `json:"ChannelIdentification"`
	AverageAccuracy       float64 `json:"AverageAccuracy"`
}

// SpeechSegmentRecord is the rendered form of a turn.
type SpeechSegmentRecord struct {
	SegmentStartTime    float64          `json:"SegmentStartTime"`
	SegmentEndTime      float64          `json:"SegmentEndTime"`
	SegmentSpeaker      string           `json:"SegmentSpeaker"`
	OriginalText        string           `json:"OriginalText"`
	DisplayText         string           `json:"DisplayText"`
	TextEdited          int              `json:"TextEdited"`
	SentimentIsPositive int              `json:"SentimentIsPositive"`
	SentimentIsNegative int              `json:"SentimentIsNegative"`
	SentimentScore      float64          `json:"SentimentScore"`
	BaseSentimentScores SentimentScores  `json:"BaseSentimentScores"`
	EntitiesDetected    []Entity         `json:"EntitiesDetected"`
	WordConfidence      []WordConfidence `json:"WordConfidence"`
}
