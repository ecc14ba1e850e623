// Package config loads service configuration from the environment, an
// optional YAML file and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ListSeparator separates list values given as a single string.
const ListSeparator = " | "

// Configuration is the complete service configuration.
type Configuration struct {
	Service       ServiceConfig
	Sentiment     SentimentConfig
	NLP           NLPConfig
	Entities      EntitiesConfig
	Speakers      SpeakersConfig
	ASR           ASRConfig
	AWS           AWSConfig
	Storage       StorageConfig
	Store         StoreConfig
	Kafka         KafkaConfig
	Limits        LimitsConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service and its listeners.
type ServiceConfig struct {
	Name      string `validate:"required"`
	Principal string `validate:"required"`
	GRPCPort  string `validate:"required,numeric"`
	HTTPPort  string `validate:"required,numeric"`
}

type SentimentConfig struct {
	MinPositive   float64 `validate:"gt=0,lt=1"`
	MinNegative   float64 `validate:"gt=0,lt=1"`
	MinTextLength int     `validate:"gt=0"`
}

type NLPConfig struct {
	Provider   string   `validate:"oneof=none comprehend"`
	Languages  []string `validate:"min=1,dive,required"`
	Retries    int      `validate:"gte=0"`
	RetryDelay time.Duration
}

// EntitiesConfig controls entity detection. A RecognizerName selects the
// bulk custom entity job; otherwise StringMapFile, if set, is used.
type EntitiesConfig struct {
	Threshold       float64 `validate:"gte=0,lte=1"`
	StandardTypes   []string
	CustomTypes     []string
	RecognizerName  string
	StringMapFile   string
	JobRoleARN      string
	JobPollInterval time.Duration `validate:"gt=0"`
	JobTimeout      time.Duration `validate:"gt=0"`
}

type SpeakersConfig struct {
	Names    []string
	Location string `validate:"required"`
}

type ASRConfig struct {
	Provider   string `validate:"oneof=transcribe google file"`
	FilePrefix string
}

type AWSConfig struct {
	Region   string
	Endpoint string
}

type StorageConfig struct {
	Provider      string `validate:"oneof=s3 local"`
	Bucket        string `validate:"required_if=Provider s3"`
	LocalRoot     string `validate:"required_if=Provider local"`
	ResultsPrefix string
	EntityPrefix  string
}

type StoreConfig struct {
	Path string `validate:"required"`
}

// KafkaConfig holds broker settings. When disabled, events are only logged.
type KafkaConfig struct {
	Enabled            bool
	Brokers            []string `validate:"required_if=Enabled true"`
	TopicJobs          string
	TopicTurns         string `validate:"required"`
	TopicConversations string `validate:"required"`
	GroupID            string
	Principal          string
}

type LimitsConfig struct {
	MaxTranscriptBytes int64         `validate:"gt=0"`
	ProcessTimeout     time.Duration `validate:"gt=0"`
}

type ObservabilityConfig struct {
	MetricsAddr string `validate:"required"`
	LogLevel    string `validate:"oneof=trace debug info warn error"`
	LogFormat   string `validate:"oneof=json console"`
}

var defaults = map[string]any{
	"service.name":      "conversation-analytics-service",
	"service.principal": "svc-conversation-analytics",
	"grpc.port":         "50051",
	"http.port":         "8080",
	"metrics.addr":      ":9090",
	"log.level":         "info",
	"log.format":        "json",

	"sentiment.min_positive":    0.4,
	"sentiment.min_negative":    0.4,
	"sentiment.min_text_length": 16,

	"nlp.provider":    "none",
	"nlp.languages":   "en | es | fr | de | it | pt | ar | hi | ja | ko | zh | zh-TW",
	"nlp.retries":     3,
	"nlp.retry_delay": "1s",

	"entities.threshold":         0.5,
	"entities.standard_types":    "LOCATION",
	"entities.custom_types":      "",
	"entities.recognizer_name":   "",
	"entities.string_map_file":   "",
	"entities.job_role_arn":      "",
	"entities.job_poll_interval": "60s",
	"entities.job_timeout":       "30m",

	"speakers.names":        "Agent | Caller",
	"conversation.location": "Etc/UTC",

	"asr.provider":    "transcribe",
	"asr.file_prefix": "transcripts",

	"aws.region":   "us-east-1",
	"aws.endpoint": "",

	"storage.provider":       "local",
	"storage.bucket":         "",
	"storage.local_root":     "data",
	"storage.results_prefix": "parsedFiles",
	"storage.entity_prefix":  "entity",

	"store.path": "data/conversations.db",

	"kafka.enabled":             false,
	"kafka.brokers":             "localhost:9092",
	"kafka.topic_jobs":          "transcription.job.completed",
	"kafka.topic_turns":         "conversation.turn.analyzed",
	"kafka.topic_conversations": "conversation.processed",
	"kafka.group_id":            "conversation-analytics",
	"kafka.principal":           "",

	"limits.max_transcript_bytes": 50 * 1024 * 1024,
	"limits.process_timeout":      "45m",
}

// Load reads configuration. A .env file in the working directory is loaded
// first without overriding variables already set, then CONFIG_FILE (YAML) if
// named, and the environment wins over both.
func Load() (*Configuration, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	cfg := build(v)
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func build(v *viper.Viper) *Configuration {
	cfg := &Configuration{
		Service: ServiceConfig{
			Name:      v.GetString("service.name"),
			Principal: v.GetString("service.principal"),
			GRPCPort:  v.GetString("grpc.port"),
			HTTPPort:  v.GetString("http.port"),
		},
		Sentiment: SentimentConfig{
			MinPositive:   v.GetFloat64("sentiment.min_positive"),
			MinNegative:   v.GetFloat64("sentiment.min_negative"),
			MinTextLength: v.GetInt("sentiment.min_text_length"),
		},
		NLP: NLPConfig{
			Provider:   v.GetString("nlp.provider"),
			Languages:  list(v, "nlp.languages"),
			Retries:    v.GetInt("nlp.retries"),
			RetryDelay: v.GetDuration("nlp.retry_delay"),
		},
		Entities: EntitiesConfig{
			Threshold:       v.GetFloat64("entities.threshold"),
			StandardTypes:   list(v, "entities.standard_types"),
			CustomTypes:     list(v, "entities.custom_types"),
			RecognizerName:  v.GetString("entities.recognizer_name"),
			StringMapFile:   v.GetString("entities.string_map_file"),
			JobRoleARN:      v.GetString("entities.job_role_arn"),
			JobPollInterval: v.GetDuration("entities.job_poll_interval"),
			JobTimeout:      v.GetDuration("entities.job_timeout"),
		},
		Speakers: SpeakersConfig{
			Names:    list(v, "speakers.names"),
			Location: v.GetString("conversation.location"),
		},
		ASR: ASRConfig{
			Provider:   v.GetString("asr.provider"),
			FilePrefix: v.GetString("asr.file_prefix"),
		},
		AWS: AWSConfig{
			Region:   v.GetString("aws.region"),
			Endpoint: v.GetString("aws.endpoint"),
		},
		Storage: StorageConfig{
			Provider:      v.GetString("storage.provider"),
			Bucket:        v.GetString("storage.bucket"),
			LocalRoot:     v.GetString("storage.local_root"),
			ResultsPrefix: v.GetString("storage.results_prefix"),
			EntityPrefix:  v.GetString("storage.entity_prefix"),
		},
		Store: StoreConfig{
			Path: v.GetString("store.path"),
		},
		Kafka: KafkaConfig{
			Enabled:            v.GetBool("kafka.enabled"),
			Brokers:            list(v, "kafka.brokers"),
			TopicJobs:          v.GetString("kafka.topic_jobs"),
			TopicTurns:         v.GetString("kafka.topic_turns"),
			TopicConversations: v.GetString("kafka.topic_conversations"),
			GroupID:            v.GetString("kafka.group_id"),
			Principal:          v.GetString("kafka.principal"),
		},
		Limits: LimitsConfig{
			MaxTranscriptBytes: v.GetInt64("limits.max_transcript_bytes"),
			ProcessTimeout:     v.GetDuration("limits.process_timeout"),
		},
		Observability: ObservabilityConfig{
			MetricsAddr: v.GetString("metrics.addr"),
			LogLevel:    strings.ToLower(v.GetString("log.level")),
			LogFormat:   strings.ToLower(v.GetString("log.format")),
		},
	}

	// Kafka principal falls back to service principal
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}
	return cfg
}

// list reads a key that is either a YAML sequence or a single string of
// ListSeparator separated values. Empty items are dropped.
func list(v *viper.Viper, key string) []string {
	var raw []string
	switch value := v.Get(key).(type) {
	case string:
		raw = strings.Split(value, strings.TrimSpace(ListSeparator))
	default:
		raw = v.GetStringSlice(key)
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
