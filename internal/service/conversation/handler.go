// Package conversation coordinates one conversation from job lookup to the
// persisted record and published events.
package conversation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/observability/logging"
	"conversation-analytics-service/internal/observability/metrics"
	"conversation-analytics-service/internal/service/assemble"
	"conversation-analytics-service/internal/service/pipeline"
	"conversation-analytics-service/internal/service/stt"
	"conversation-analytics-service/internal/storage"
	"conversation-analytics-service/internal/store"
)

// ErrLimitExceeded is returned when a conversation exceeds a configured limit.
var ErrLimitExceeded = errors.New("conversation: limit exceeded")

// Limits define safety guardrails for one conversation.
type Limits struct {
	MaxTranscriptBytes int64         // Max size of the raw result document
	ProcessTimeout     time.Duration // Max wall time from fetch to publish
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxTranscriptBytes: 50 * 1024 * 1024, // 50MB (several hours of speech)
		ProcessTimeout:     45 * time.Minute, // covers a bulk entity job
	}
}

// Processor runs the engine.
type Processor interface {
	Process(ctx context.Context, in pipeline.Input) (*models.Conversation, error)
}

// DocumentValidator checks a parsed result document.
type DocumentValidator interface {
	Document(doc *asr.Document) error
}

// Index stores and serves processed conversations.
type Index interface {
	Save(ctx context.Context, sum store.Summary, record *models.Conversation) error
	Get(ctx context.Context, jobName string) (*store.Summary, *models.Conversation, error)
	List(ctx context.Context, limit int) ([]store.Summary, error)
}

// Publisher announces processed conversations.
type Publisher interface {
	PublishTurns(ctx context.Context, runID, jobName string, record *models.Conversation) error
	PublishConversation(ctx context.Context, runID, jobName string, record *models.Conversation) error
}

// Config holds handler settings.
type Config struct {
	ResultsPrefix string
	Limits        Limits
}

// Result describes one processed conversation.
type Result struct {
	RunID     string
	ResultURI string
	Record    *models.Conversation
}

// Handler processes conversations end to end. Safe for concurrent use.
type Handler struct {
	source    stt.Source
	validator DocumentValidator
	engine    Processor
	results   storage.Storage
	index     Index
	publisher Publisher
	cfg       Config
	metrics   *metrics.Metrics

	now      func() time.Time
	newRunID func() string
}

// NewHandler creates a handler.
func NewHandler(
	source stt.Source,
	validator DocumentValidator,
	engine Processor,
	results storage.Storage,
	index Index,
	publisher Publisher,
	cfg Config,
	m *metrics.Metrics,
) *Handler {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Handler{
		source:    source,
		validator: validator,
		engine:    engine,
		results:   results,
		index:     index,
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// Process fetches a finished job, runs the engine and persists and publishes
// the record.
func (h *Handler) Process(ctx context.Context, jobName string) (res *Result, err error) {
	runID := h.newRunID()
	logger := logging.WithConversation(jobName, runID)

	if h.cfg.Limits.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Limits.ProcessTimeout)
		defer cancel()
	}

	start := time.Now()
	h.metrics.RecordConversationStart()
	defer func() {
		h.metrics.RecordConversationEnd(err == nil, time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) {
			h.metrics.RecordLimitExceeded("process_timeout")
			err = fmt.Errorf("%w: %s exceeded %s: %w", ErrLimitExceeded, jobName, h.cfg.Limits.ProcessTimeout, err)
		}
		if err != nil {
			logger.Error().Err(err).Msg("Conversation processing failed")
		}
	}()

	job, data, err := h.source.Fetch(ctx, jobName)
	if errors.Is(err, stt.ErrTooLarge) {
		h.metrics.RecordLimitExceeded("transcript_bytes")
		return nil, fmt.Errorf("%w: %s: %w", ErrLimitExceeded, jobName, err)
	}
	if err != nil {
		return nil, err
	}
	if limit := h.cfg.Limits.MaxTranscriptBytes; limit > 0 && int64(len(data)) > limit {
		h.metrics.RecordLimitExceeded("transcript_bytes")
		return nil, fmt.Errorf("%w: %s transcript is %d bytes, max %d", ErrLimitExceeded, jobName, len(data), limit)
	}

	doc, err := asr.Parse(data)
	if err != nil {
		return nil, err
	}
	if h.validator != nil {
		if err := h.validator.Document(doc); err != nil {
			return nil, err
		}
	}

	record, err := h.engine.Process(ctx, pipeline.Input{
		Job:         job,
		Document:    doc,
		RunID:       runID,
		ProcessTime: h.now(),
	})
	if err != nil {
		return nil, err
	}

	uri, err := h.persist(ctx, runID, jobName, record)
	if err != nil {
		return nil, err
	}

	if h.publisher != nil {
		if err := h.publisher.PublishTurns(ctx, runID, jobName, record); err != nil {
			return nil, err
		}
		if err := h.publisher.PublishConversation(ctx, runID, jobName, record); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("resultUri", uri).
		Int("turns", len(record.SpeechSegments)).
		Dur("elapsed", time.Since(start)).
		Msg("Conversation stored")
	return &Result{RunID: runID, ResultURI: uri, Record: record}, nil
}

// persist writes the record document and its index row.
func (h *Handler) persist(ctx context.Context, runID, jobName string, record *models.Conversation) (string, error) {
	data, err := assemble.Encode(record)
	if err != nil {
		return "", err
	}

	p := path.Join(h.cfg.ResultsPrefix, jobName+".json")
	if err := h.results.Upload(ctx, p, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("conversation: upload record: %w", err)
	}
	uri := h.results.URI(p)

	if h.index != nil {
		sum := store.Summary{
			JobName:      jobName,
			RunID:        runID,
			LanguageCode: record.ConversationAnalytics.LanguageCode,
			Turns:        len(record.SpeechSegments),
			Duration:     record.ConversationAnalytics.Duration,
			ResultURI:    uri,
			ProcessedAt:  h.now(),
		}
		if err := h.index.Save(ctx, sum, record); err != nil {
			return "", fmt.Errorf("conversation: index record: %w", err)
		}
	}
	return uri, nil
}

// HandleJobCompleted processes the job named by a notification.
func (h *Handler) HandleJobCompleted(ctx context.Context, ev models.JobCompleted) error {
	_, err := h.Process(ctx, ev.JobName)
	return err
}

// Get returns an indexed conversation.
func (h *Handler) Get(ctx context.Context, jobName string) (*store.Summary, *models.Conversation, error) {
	return h.index.Get(ctx, jobName)
}

// List returns indexed conversations, most recent first.
func (h *Handler) List(ctx context.Context, limit int) ([]store.Summary, error) {
	return h.index.List(ctx, limit)
}

// Refresh reprocesses every indexed conversation in turn. A failed job does
// not stop the others; all failures are returned joined.
func (h *Handler) Refresh(ctx context.Context) (int, error) {
	all, err := h.index.List(ctx, 0)
	if err != nil {
		return 0, err
	}

	done := 0
	var errs []error
	for _, sum := range all {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := h.Process(ctx, sum.JobName); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sum.JobName, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}
