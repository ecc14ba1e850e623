// Package events publishes conversation results to Kafka and consumes
// transcription job notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/observability/metrics"
	"conversation-analytics-service/internal/service/segment"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes turn and conversation events to separate Kafka topics.
type Publisher struct {
	writerTurns         messageWriter
	writerConversations messageWriter
	principal           string
	topicTurns          string
	topicConversations  string
	enabled             bool
	metrics             *metrics.Metrics
	now                 func() time.Time
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers            []string
	TopicTurns         string
	TopicConversations string
	Principal          string
	Enabled            bool
}

// New creates a publisher. A nil or disabled config, or one without brokers,
// yields a log-only publisher.
func New(cfg *Config, m *metrics.Metrics) *Publisher {
	if m == nil {
		m = metrics.DefaultMetrics
	}

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{metrics: m, now: time.Now}
	}

	p := &Publisher{
		principal:          cfg.Principal,
		topicTurns:         cfg.TopicTurns,
		topicConversations: cfg.TopicConversations,
		metrics:            m,
		now:                time.Now,
	}
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p.writerTurns = newWriter(cfg.Brokers, cfg.TopicTurns, transport)
	p.writerConversations = newWriter(cfg.Brokers, cfg.TopicConversations, transport)
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTurns", cfg.TopicTurns).
		Str("topicConversations", cfg.TopicConversations).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")
	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishTurns publishes one event per turn, keyed by segment ID so a
// conversation's turns land on consistent partitions.
func (p *Publisher) PublishTurns(ctx context.Context, runID, jobName string, record *models.Conversation) error {
	ts := p.now().UnixMilli()
	msgs := make([]kafka.Message, 0, len(record.SpeechSegments))
	for i, s := range record.SpeechSegments {
		ev := models.TurnAnalyzed{
			EventType:      models.EventTurnAnalyzed,
			RunID:          runID,
			JobName:        jobName,
			SegmentID:      segment.ID(jobName, i),
			Speaker:        s.SegmentSpeaker,
			StartTime:      s.SegmentStartTime,
			EndTime:        s.SegmentEndTime,
			Text:           s.DisplayText,
			Sentiment:      sentimentOf(s),
			SentimentScore: s.SentimentScore,
			EntityCount:    len(s.EntitiesDetected),
			Timestamp:      ts,
		}
		msg, err := p.message(ev.SegmentID, runID, models.EventTurnAnalyzed, ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.publish(ctx, p.writerTurns, p.topicTurns, models.EventTurnAnalyzed, msgs)
}

// PublishConversation publishes the finished record, keyed by job name.
func (p *Publisher) PublishConversation(ctx context.Context, runID, jobName string, record *models.Conversation) error {
	ev := models.ConversationProcessed{
		EventType: models.EventConversationProcessed,
		RunID:     runID,
		JobName:   jobName,
		Timestamp: p.now().UnixMilli(),
		Record:    record,
	}
	msg, err := p.message(jobName, runID, models.EventConversationProcessed, ev)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.writerConversations, p.topicConversations, models.EventConversationProcessed, []kafka.Message{msg})
}

func (p *Publisher) message(key, runID, eventType string, event any) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("events: marshal %s: %w", eventType, err)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
			{Key: "runId", Value: []byte(runID)},
		},
	}, nil
}

// publish writes messages to one writer, or only logs them when disabled.
func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType string, msgs []kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	start := time.Now()

	for _, m := range msgs {
		log.Debug().
			Str("principal", p.principal).
			Str("topic", topic).
			Str("key", string(m.Key)).
			RawJSON("payload", m.Value).
			Msg("Publishing event")
	}

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Int("messages", len(msgs)).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return fmt.Errorf("events: write %s: %w", topic, err)
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTurns != nil {
		if e := p.writerTurns.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing turns writer")
			err = e
		}
	}
	if p.writerConversations != nil {
		if e := p.writerConversations.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing conversations writer")
			err = e
		}
	}
	return err
}

func sentimentOf(s models.SpeechSegmentRecord) string {
	switch {
	case s.SentimentIsNegative == 1:
		return string(models.SentimentNegative)
	case s.SentimentIsPositive == 1:
		return string(models.SentimentPositive)
	default:
		return string(models.SentimentNeutral)
	}
}
