package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"conversation-analytics-service/internal/cloud"
	"conversation-analytics-service/internal/config"
	"conversation-analytics-service/internal/events"
	"conversation-analytics-service/internal/observability/metrics"
	"conversation-analytics-service/internal/schema"
	"conversation-analytics-service/internal/service/assemble"
	"conversation-analytics-service/internal/service/conversation"
	"conversation-analytics-service/internal/service/entity"
	"conversation-analytics-service/internal/service/nlp"
	"conversation-analytics-service/internal/service/nlp/comprehend"
	"conversation-analytics-service/internal/service/pipeline"
	"conversation-analytics-service/internal/service/sentiment"
	"conversation-analytics-service/internal/service/stt"
	"conversation-analytics-service/internal/service/stt/file"
	"conversation-analytics-service/internal/service/stt/google"
	"conversation-analytics-service/internal/service/stt/transcribe"
	"conversation-analytics-service/internal/storage"
	"conversation-analytics-service/internal/store"
)

// Services are the wired components shared by the server and the CLI.
type Services struct {
	Storage       storage.Storage
	Source        stt.Source
	Store         *store.Store
	Publisher     *events.Publisher
	Validator     *schema.Validator
	Engine        *pipeline.Engine
	Conversations *conversation.Handler

	closers []func() error
}

// Build wires the configured providers into a conversation handler.
func (a *Application) Build(ctx context.Context, m *metrics.Metrics) (*Services, error) {
	cfg := a.Cfg
	logger := a.Logger.With().Str("method", "Build").Logger()
	s := &Services{Validator: schema.New()}

	var awsCfg aws.Config
	if needsAWS(cfg) {
		var err error
		awsCfg, err = cloud.Load(ctx, cloud.Config{Region: cfg.AWS.Region, Endpoint: cfg.AWS.Endpoint})
		if err != nil {
			return nil, err
		}
	}

	switch cfg.Storage.Provider {
	case "s3":
		st, err := storage.NewS3(awsCfg, cfg.Storage.Bucket, cfg.AWS.Endpoint != "")
		if err != nil {
			return nil, err
		}
		s.Storage = storage.WithMetrics(st, m)
	default:
		st, err := storage.NewLocal(cfg.Storage.LocalRoot)
		if err != nil {
			return nil, err
		}
		s.Storage = storage.WithMetrics(st, m)
	}

	var source stt.Source
	switch cfg.ASR.Provider {
	case "google":
		g, err := google.New(ctx)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, g.Close)
		source = g
	case "file":
		source = file.New(s.Storage, cfg.ASR.FilePrefix).WithMaxBytes(cfg.Limits.MaxTranscriptBytes)
	default:
		source = transcribe.NewFromConfig(awsCfg, s.Storage).WithMaxBytes(cfg.Limits.MaxTranscriptBytes)
	}
	s.Source = source

	var detector nlp.Detector = nlp.Static{}
	var bulk nlp.BulkDetector
	if cfg.NLP.Provider == "comprehend" {
		client := comprehend.NewFromConfig(awsCfg, s.Storage, comprehend.Config{
			Retries:           cfg.NLP.Retries,
			RetryDelay:        cfg.NLP.RetryDelay,
			RecognizerName:    cfg.Entities.RecognizerName,
			DataAccessRoleARN: cfg.Entities.JobRoleARN,
			EntityPrefix:      cfg.Storage.EntityPrefix,
			PollInterval:      cfg.Entities.JobPollInterval,
			JobTimeout:        cfg.Entities.JobTimeout,
		}, m)
		detector = client
		if cfg.Entities.RecognizerName != "" {
			bulk = client
		}
	}

	stringMaps, err := loadStringMaps(ctx, s.Storage, cfg.Entities.StringMapFile, cfg.NLP.Languages)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Engine = pipeline.New(detector, bulk, pipeline.Options{
		Classifier:      sentiment.NewClassifier(cfg.Sentiment.MinPositive, cfg.Sentiment.MinNegative, cfg.Sentiment.MinTextLength),
		Languages:       cfg.NLP.Languages,
		EntityThreshold: cfg.Entities.Threshold,
		StandardTypes:   cfg.Entities.StandardTypes,
		CustomTypes:     cfg.Entities.CustomTypes,
		RecognizerName:  cfg.Entities.RecognizerName,
		StringMaps:      stringMaps,
		Assemble: assemble.Options{
			SpeakerNames: cfg.Speakers.Names,
			Location:     cfg.Speakers.Location,
		},
	}, m)

	s.Store, err = store.Open(cfg.Store.Path)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, s.Store.Close)

	s.Publisher = events.New(&events.Config{
		Enabled:            cfg.Kafka.Enabled,
		Brokers:            cfg.Kafka.Brokers,
		TopicTurns:         cfg.Kafka.TopicTurns,
		TopicConversations: cfg.Kafka.TopicConversations,
		Principal:          cfg.Kafka.Principal,
	}, m)
	s.closers = append(s.closers, s.Publisher.Close)

	s.Conversations = conversation.NewHandler(source, s.Validator, s.Engine, s.Storage, s.Store, s.Publisher,
		conversation.Config{
			ResultsPrefix: cfg.Storage.ResultsPrefix,
			Limits: conversation.Limits{
				MaxTranscriptBytes: cfg.Limits.MaxTranscriptBytes,
				ProcessTimeout:     cfg.Limits.ProcessTimeout,
			},
		}, m)

	logger.Info().
		Str("storage", cfg.Storage.Provider).
		Str("asr", cfg.ASR.Provider).
		Str("nlp", cfg.NLP.Provider).
		Int("stringMaps", len(stringMaps)).
		Msg("Services wired")
	return s, nil
}

// Close releases the services in reverse order of creation.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

func needsAWS(cfg *config.Configuration) bool {
	return cfg.Storage.Provider == "s3" || cfg.ASR.Provider == "transcribe" || cfg.NLP.Provider == "comprehend"
}

// loadStringMaps reads one map per language from the language-specific keys
// of base. Languages without a map file are skipped.
func loadStringMaps(ctx context.Context, st storage.Storage, base string, languages []string) (map[string]*entity.StringMap, error) {
	if base == "" {
		return nil, nil
	}
	maps := make(map[string]*entity.StringMap)
	for _, lang := range languages {
		rc, err := st.Download(ctx, entity.StringMapKey(base, lang))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("app: string map for %s: %w", lang, err)
		}
		m, err := entity.LoadStringMap(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("app: string map for %s: %w", lang, err)
		}
		maps[lang] = m
	}
	return maps, nil
}
