// Package comprehend implements the NLP collaborators on Amazon Comprehend.
package comprehend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscomprehend "github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v5"

	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/observability/metrics"
	"conversation-analytics-service/internal/service/nlp"
	"conversation-analytics-service/internal/storage"
)

// API is the subset of the Comprehend client used here.
type API interface {
	DetectSentiment(ctx context.Context, params *awscomprehend.DetectSentimentInput, optFns ...func(*awscomprehend.Options)) (*awscomprehend.DetectSentimentOutput, error)
	DetectEntities(ctx context.Context, params *awscomprehend.DetectEntitiesInput, optFns ...func(*awscomprehend.Options)) (*awscomprehend.DetectEntitiesOutput, error)
	DetectDominantLanguage(ctx context.Context, params *awscomprehend.DetectDominantLanguageInput, optFns ...func(*awscomprehend.Options)) (*awscomprehend.DetectDominantLanguageOutput, error)
	StartEntitiesDetectionJob(ctx context.Context, params *awscomprehend.StartEntitiesDetectionJobInput, optFns ...func(*awscomprehend.Options)) (*awscomprehend.StartEntitiesDetectionJobOutput, error)
	DescribeEntitiesDetectionJob(ctx context.Context, params *awscomprehend.DescribeEntitiesDetectionJobInput, optFns ...func(*awscomprehend.Options)) (*awscomprehend.DescribeEntitiesDetectionJobOutput, error)
	ListEntityRecognizers(ctx context.Context, params *awscomprehend.ListEntityRecognizersInput, optFns ...func(*awscomprehend.Options)) (*awscomprehend.ListEntityRecognizersOutput, error)
}

// Config holds Comprehend client settings.
type Config struct {
	// Retries is the number of extra attempts for throttled calls.
	Retries    int
	RetryDelay time.Duration

	// Bulk custom entity job settings.
	RecognizerName    string
	DataAccessRoleARN string
	EntityPrefix      string
	PollInterval      time.Duration
	JobTimeout        time.Duration
}

// DefaultConfig returns the default client settings.
func DefaultConfig() Config {
	return Config{
		Retries:      1,
		RetryDelay:   3 * time.Second,
		EntityPrefix: "entity-detection",
		PollInterval: 30 * time.Second,
		JobTimeout:   30 * time.Minute,
	}
}

// Client implements nlp.Detector and nlp.BulkDetector.
type Client struct {
	api     API
	store   storage.Storage
	cfg     Config
	metrics *metrics.Metrics

	mu            sync.Mutex
	recognizerARN string
}

// New creates a client. store holds bulk job input and output and may be nil
// when bulk detection is not used. Zero durations and an empty prefix take
// the DefaultConfig values.
func New(api API, store storage.Storage, cfg Config, m *metrics.Metrics) *Client {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	def := DefaultConfig()
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.EntityPrefix == "" {
		cfg.EntityPrefix = def.EntityPrefix
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	return &Client{api: api, store: store, cfg: cfg, metrics: m}
}

// NewFromConfig creates a client backed by the AWS SDK.
func NewFromConfig(awsCfg aws.Config, store storage.Storage, cfg Config, m *metrics.Metrics) *Client {
	return New(awscomprehend.NewFromConfig(awsCfg), store, cfg, m)
}

// DetectSentiment returns the raw sentiment distribution of text.
func (c *Client) DetectSentiment(ctx context.Context, text, language string) (models.SentimentScores, error) {
	var out *awscomprehend.DetectSentimentOutput
	err := c.call(ctx, "sentiment", func() (err error) {
		out, err = c.api.DetectSentiment(ctx, &awscomprehend.DetectSentimentInput{
			Text:         aws.String(text),
			LanguageCode: types.LanguageCode(language),
		})
		return err
	})
	if err != nil {
		return models.SentimentScores{}, err
	}
	s := out.SentimentScore
	if s == nil {
		return models.SentimentScores{}, errors.New("comprehend: sentiment response has no scores")
	}
	return models.SentimentScores{
		Positive: float64(aws.ToFloat32(s.Positive)),
		Negative: float64(aws.ToFloat32(s.Negative)),
		Neutral:  float64(aws.ToFloat32(s.Neutral)),
		Mixed:    float64(aws.ToFloat32(s.Mixed)),
	}, nil
}

// DetectEntities returns the standard entities found in text.
func (c *Client) DetectEntities(ctx context.Context, text, language string) ([]models.Entity, error) {
	var out *awscomprehend.DetectEntitiesOutput
	err := c.call(ctx, "entities", func() (err error) {
		out, err = c.api.DetectEntities(ctx, &awscomprehend.DetectEntitiesInput{
			Text:         aws.String(text),
			LanguageCode: types.LanguageCode(language),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	entities := make([]models.Entity, 0, len(out.Entities))
	for _, e := range out.Entities {
		entities = append(entities, models.Entity{
			Type:        string(e.Type),
			Text:        aws.ToString(e.Text),
			BeginOffset: int(aws.ToInt32(e.BeginOffset)),
			EndOffset:   int(aws.ToInt32(e.EndOffset)),
			Score:       float64(aws.ToFloat32(e.Score)),
		})
	}
	return entities, nil
}

// DetectLanguage returns the highest scoring language of text.
func (c *Client) DetectLanguage(ctx context.Context, text string) (string, error) {
	var out *awscomprehend.DetectDominantLanguageOutput
	err := c.call(ctx, "language", func() (err error) {
		out, err = c.api.DetectDominantLanguage(ctx, &awscomprehend.DetectDominantLanguageInput{
			Text: aws.String(text),
		})
		return err
	})
	if err != nil {
		return "", err
	}

	best, bestScore := "", float32(-1)
	for _, l := range out.Languages {
		if score := aws.ToFloat32(l.Score); score > bestScore {
			best, bestScore = aws.ToString(l.LanguageCode), score
		}
	}
	return best, nil
}

// call runs fn, retrying throttled attempts up to cfg.Retries times.
func (c *Client) call(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err != nil && !throttled(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(max(c.cfg.Retries, 0)+1)),
	)
	c.metrics.RecordNLPCall(operation, err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("comprehend: %s: %w", operation, err)
	}
	return nil
}

func throttled(err error) bool {
	var tooMany *types.TooManyRequestsException
	if errors.As(err, &tooMany) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "ThrottlingException" || strings.Contains(code, "Throttl")
	}
	return false
}

var (
	_ nlp.Detector     = (*Client)(nil)
	_ nlp.BulkDetector = (*Client)(nil)
)
