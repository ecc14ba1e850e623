package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Service defaults
	if cfg.Service.Principal != "svc-conversation-analytics" {
		t.Errorf("expected default principal 'svc-conversation-analytics', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}

	// Sentiment defaults
	if cfg.Sentiment.MinPositive != 0.4 || cfg.Sentiment.MinNegative != 0.4 {
		t.Errorf("expected default thresholds 0.4/0.4, got %v/%v", cfg.Sentiment.MinPositive, cfg.Sentiment.MinNegative)
	}
	if cfg.Sentiment.MinTextLength != 16 {
		t.Errorf("expected default min text length 16, got %d", cfg.Sentiment.MinTextLength)
	}

	// NLP and entity defaults
	if cfg.NLP.Provider != "none" {
		t.Errorf("expected default NLP provider 'none', got %s", cfg.NLP.Provider)
	}
	if len(cfg.NLP.Languages) != 12 || cfg.NLP.Languages[11] != "zh-TW" {
		t.Errorf("unexpected default languages %v", cfg.NLP.Languages)
	}
	if !reflect.DeepEqual(cfg.Entities.StandardTypes, []string{"LOCATION"}) {
		t.Errorf("expected default standard types [LOCATION], got %v", cfg.Entities.StandardTypes)
	}
	if len(cfg.Entities.CustomTypes) != 0 {
		t.Errorf("expected no default custom types, got %v", cfg.Entities.CustomTypes)
	}
	if cfg.Entities.Threshold != 0.5 {
		t.Errorf("expected default threshold 0.5, got %v", cfg.Entities.Threshold)
	}

	// Limits defaults
	if cfg.Limits.MaxTranscriptBytes != 50*1024*1024 {
		t.Errorf("expected default max transcript bytes 50MB, got %d", cfg.Limits.MaxTranscriptBytes)
	}
	if cfg.Limits.ProcessTimeout != 45*time.Minute {
		t.Errorf("expected default process timeout 45m, got %v", cfg.Limits.ProcessTimeout)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("GRPC_PORT", "9999")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SENTIMENT_MIN_POSITIVE", "0.6")
	t.Setenv("NLP_PROVIDER", "comprehend")
	t.Setenv("NLP_LANGUAGES", "en | es")
	t.Setenv("ENTITIES_CUSTOM_TYPES", "PRODUCT | ORDER_ID")
	t.Setenv("SPEAKERS_NAMES", "Agent | Customer | Supervisor")
	t.Setenv("ASR_PROVIDER", "file")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092 | kafka-2:9092")
	t.Setenv("LIMITS_PROCESS_TIMEOUT", "10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
	if cfg.Sentiment.MinPositive != 0.6 {
		t.Errorf("expected min positive 0.6, got %v", cfg.Sentiment.MinPositive)
	}
	if !reflect.DeepEqual(cfg.NLP.Languages, []string{"en", "es"}) {
		t.Errorf("unexpected languages %v", cfg.NLP.Languages)
	}
	if !reflect.DeepEqual(cfg.Entities.CustomTypes, []string{"PRODUCT", "ORDER_ID"}) {
		t.Errorf("unexpected custom types %v", cfg.Entities.CustomTypes)
	}
	if !reflect.DeepEqual(cfg.Speakers.Names, []string{"Agent", "Customer", "Supervisor"}) {
		t.Errorf("unexpected speaker names %v", cfg.Speakers.Names)
	}
	if cfg.ASR.Provider != "file" {
		t.Errorf("expected ASR provider 'file', got %s", cfg.ASR.Provider)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("unexpected kafka config %+v", cfg.Kafka)
	}
	if cfg.Limits.ProcessTimeout != 10*time.Minute {
		t.Errorf("expected process timeout 10m, got %v", cfg.Limits.ProcessTimeout)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "config.yaml")
	yaml := `
nlp:
  languages: [en, fr]
speakers:
  names:
    - Rep
    - Client
entities:
  threshold: 0.8
`
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", file)
	t.Setenv("ENTITIES_THRESHOLD", "0.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !reflect.DeepEqual(cfg.NLP.Languages, []string{"en", "fr"}) {
		t.Errorf("expected languages from file, got %v", cfg.NLP.Languages)
	}
	if !reflect.DeepEqual(cfg.Speakers.Names, []string{"Rep", "Client"}) {
		t.Errorf("expected speaker names from file, got %v", cfg.Speakers.Names)
	}
	// environment wins over the file
	if cfg.Entities.Threshold != 0.7 {
		t.Errorf("expected env threshold 0.7, got %v", cfg.Entities.Threshold)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STORE_PATH=from-dotenv.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("STORE_PATH") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "from-dotenv.db" {
		t.Errorf("expected store path from .env, got %s", cfg.Store.Path)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown nlp provider", "NLP_PROVIDER", "watson"},
		{"unknown asr provider", "ASR_PROVIDER", "whisper"},
		{"threshold above one", "ENTITIES_THRESHOLD", "1.5"},
		{"positive threshold of one", "SENTIMENT_MIN_POSITIVE", "1"},
		{"negative threshold of one", "SENTIMENT_MIN_NEGATIVE", "1.0"},
		{"positive threshold of zero", "SENTIMENT_MIN_POSITIVE", "0"},
		{"negative threshold of zero", "SENTIMENT_MIN_NEGATIVE", "0"},
		{"non-numeric port", "GRPC_PORT", "grpc"},
		{"unparseable timeout", "LIMITS_PROCESS_TIMEOUT", "soon"},
		{"s3 without bucket", "STORAGE_PROVIDER", "s3"},
		{"unknown log level", "LOG_LEVEL", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVICE_PRINCIPAL", "my-service")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}
