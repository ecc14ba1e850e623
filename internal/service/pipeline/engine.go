// Package pipeline runs one conversation through segmentation, merging,
// enrichment, trend calculation and assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/observability/logging"
	"conversation-analytics-service/internal/observability/metrics"
	"conversation-analytics-service/internal/service/assemble"
	"conversation-analytics-service/internal/service/entity"
	"conversation-analytics-service/internal/service/nlp"
	"conversation-analytics-service/internal/service/segment"
	"conversation-analytics-service/internal/service/sentiment"
	"conversation-analytics-service/internal/service/trend"
)

// maxDetectBytes bounds the text sent for dominant language detection.
const maxDetectBytes = 5000

// Entity sources, used as metric labels.
const (
	sourceStandard  = "standard"
	sourceCustom    = "custom"
	sourceStringMap = "stringmap"
)

// Options configure enrichment and assembly.
type Options struct {
	Classifier      *sentiment.Classifier
	Languages       []string
	EntityThreshold float64
	StandardTypes   []string
	CustomTypes     []string
	RecognizerName  string
	// StringMaps are keyed by NLP language and used when no recognizer is
	// configured.
	StringMaps map[string]*entity.StringMap
	Assemble   assemble.Options
}

// Input is one conversation to process.
type Input struct {
	Job         *asr.Job
	Document    *asr.Document
	RunID       string
	ProcessTime time.Time
}

// Engine turns ASR documents into conversation records.
// Safe for concurrent use; runs share no mutable state.
type Engine struct {
	detector  nlp.Detector
	bulk      nlp.BulkDetector
	opts      Options
	assembler *assemble.Assembler
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// New creates an engine. bulk may be nil when no custom recognizer is used.
func New(detector nlp.Detector, bulk nlp.BulkDetector, opts Options, m *metrics.Metrics) *Engine {
	if detector == nil {
		detector = nlp.Static{}
	}
	if opts.Classifier == nil {
		opts.Classifier = sentiment.NewClassifier(sentiment.DefaultMinPositive, sentiment.DefaultMinNegative, sentiment.DefaultMinTextLength)
	}
	if opts.Languages == nil {
		opts.Languages = sentiment.DefaultLanguages
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	opts.Assemble.RecognizerName = opts.RecognizerName
	return &Engine{
		detector:  detector,
		bulk:      bulk,
		opts:      opts,
		assembler: assemble.New(opts.Assemble),
		metrics:   m,
		tracer:    otel.Tracer("conversation-analytics-service/pipeline"),
	}
}

// run carries the state of one Process call between stages.
type run struct {
	job       asr.Job
	lc        *Lifecycle
	log       zerolog.Logger
	segmented *segment.Result
	turns     []*models.SpeechSegment
	entities  []models.EntitySummary
	trends    []models.SentimentTrend
	record    *models.Conversation
}

// Process runs every stage in order. Any stage error fails the run.
func (e *Engine) Process(ctx context.Context, in Input) (*models.Conversation, error) {
	if in.Job == nil || in.Document == nil {
		return nil, errors.New("pipeline: job and document are required")
	}

	ctx, span := e.tracer.Start(ctx, "pipeline.Process", trace.WithAttributes(
		attribute.String("job.name", in.Job.Name),
		attribute.String("run.id", in.RunID),
	))
	defer span.End()

	r := &run{
		job: *in.Job,
		lc:  NewLifecycle(in.RunID),
		log: logging.WithConversation(in.Job.Name, in.RunID),
	}

	stages := []struct {
		stage Stage
		fn    func(context.Context, *run) error
	}{
		{StageSegmented, func(_ context.Context, r *run) (err error) {
			r.segmented, err = segment.Build(in.Document)
			if err == nil {
				r.turns = r.segmented.Turns
			}
			return err
		}},
		{StageMerged, e.merge},
		{StageEnriched, e.enrich},
		{StageTrended, e.trend},
		{StageAssembled, func(_ context.Context, r *run) error {
			r.record = e.assembler.Assemble(assemble.Input{
				Job:         r.job,
				Turns:       r.turns,
				Stats:       r.segmented.Stats,
				Trends:      r.trends,
				Entities:    r.entities,
				ProcessTime: in.ProcessTime,
			})
			return nil
		}},
	}

	for _, s := range stages {
		if err := e.stage(ctx, r, s.stage, s.fn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	r.log.Info().
		Int("turns", len(r.turns)).
		Str("mode", r.segmented.Mode.String()).
		Str("language", r.job.LanguageCode).
		Msg("Conversation processed")
	return r.record, nil
}

func (e *Engine) stage(ctx context.Context, r *run, to Stage, fn func(context.Context, *run) error) error {
	ctx, span := e.tracer.Start(ctx, "pipeline."+strings.ToLower(to.String()))
	defer span.End()

	start := time.Now()
	err := fn(ctx, r)
	e.metrics.RecordStage(strings.ToLower(to.String()), time.Since(start).Seconds())

	if err == nil {
		err = r.lc.Advance(to)
	}
	if err != nil {
		r.lc.Fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Error().Err(err).Str("stage", to.String()).Msg("Conversation failed")
		return fmt.Errorf("pipeline: %s: %w", strings.ToLower(to.String()), err)
	}
	return nil
}

// merge orders channel-mode turns and absorbs fragments. Speaker-mode turns
// are already time-ordered and pass through unchanged.
func (e *Engine) merge(_ context.Context, r *run) error {
	if r.segmented.Mode == asr.ModeChannel {
		r.turns = segment.Merge(r.turns)
	}
	words := 0
	for _, t := range r.turns {
		words += len(t.Words)
	}
	e.metrics.RecordTurns(r.segmented.Mode.String(), len(r.turns), words)
	return nil
}

func (e *Engine) enrich(ctx context.Context, r *run) error {
	if r.job.LanguageCode == "" {
		detected, err := e.detector.DetectLanguage(ctx, sample(r.turns))
		if err != nil {
			return fmt.Errorf("detect language: %w", err)
		}
		r.job.LanguageCode = detected
	}

	lang := sentiment.ResolveLanguage(r.job.LanguageCode, e.opts.Languages)
	log := logging.WithStage(r.job.Name, r.lc.RunID(), "enrich")
	log.Debug().Str("asrLanguage", r.job.LanguageCode).Str("nlpLanguage", lang).Msg("Language resolved")

	agg := entity.NewAggregator(e.opts.EntityThreshold)
	standard := 0
	for _, turn := range r.turns {
		if !e.opts.Classifier.Eligible(turn) {
			e.metrics.RecordSentiment(string(turn.Sentiment))
			continue
		}
		if lang == "" {
			e.opts.Classifier.Classify(turn, models.NeutralScores)
			e.metrics.RecordSentiment(string(turn.Sentiment))
			continue
		}

		scores, err := e.detector.DetectSentiment(ctx, turn.Text, lang)
		if err != nil {
			return fmt.Errorf("detect sentiment: %w", err)
		}
		e.opts.Classifier.Classify(turn, scores)
		e.metrics.RecordSentiment(string(turn.Sentiment))

		found, err := e.detector.DetectEntities(ctx, turn.Text, lang)
		if err != nil {
			return fmt.Errorf("detect entities: %w", err)
		}
		for _, ent := range found {
			if agg.Accept(turn, ent, e.opts.StandardTypes) {
				standard++
			}
		}
	}
	e.metrics.RecordEntities(sourceStandard, standard)

	if lang != "" {
		if err := e.custom(ctx, r, lang, agg, log); err != nil {
			return err
		}
	}

	r.entities = agg.Summary()
	return nil
}

// custom adds entities from the bulk recognizer or, without one, from the
// language's string map.
func (e *Engine) custom(ctx context.Context, r *run, lang string, agg *entity.Aggregator, log zerolog.Logger) error {
	if e.bulk != nil && e.opts.RecognizerName != "" {
		if len(r.turns) == 0 {
			return nil
		}
		results, err := e.bulk.DetectBulk(ctx, r.job.Name, entity.Lines(r.turns), lang)
		if errors.Is(err, entity.ErrBulkIncomplete) {
			log.Warn().Err(err).Msg("Continuing without custom entities")
			return nil
		}
		if err != nil {
			return fmt.Errorf("detect custom entities: %w", err)
		}
		e.metrics.RecordEntities(sourceCustom, agg.Join(r.turns, results, e.opts.CustomTypes))
		return nil
	}

	if m := e.opts.StringMaps[lang]; m != nil {
		e.metrics.RecordEntities(sourceStringMap, m.Apply(r.turns, agg))
	}
	return nil
}

func (e *Engine) trend(_ context.Context, r *run) error {
	r.trends = trend.Calculate(r.turns, r.segmented.Stats.MaxSpeakerIndex, e.opts.Classifier)
	return nil
}

// sample joins turn texts up to maxDetectBytes without splitting a rune.
func sample(turns []*models.SpeechSegment) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(t.Text)
		if b.Len() >= maxDetectBytes {
			break
		}
	}
	s := strings.TrimSpace(b.String())
	if len(s) <= maxDetectBytes {
		return s
	}
	s = s[:maxDetectBytes]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
