package app

import (
	"io"
	"os"
	"time"

	"conversation-analytics-service/internal/config"
	"conversation-analytics-service/internal/observability/logging"

	"github.com/rs/zerolog"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	return NewWithOutput(cfg, os.Stdout)
}

// NewWithOutput is New with logs written to out.
func NewWithOutput(cfg *config.Configuration, out io.Writer) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger(out)

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Conversation analytics application created")
	return a
}

// setupLogger configures the global logger and derives the application logger.
func (a *Application) setupLogger(out io.Writer) {
	logCfg := logging.DefaultConfig()
	if level := a.Cfg.Observability.LogLevel; level != "" {
		logCfg.Level = level
	}
	if format := a.Cfg.Observability.LogFormat; format != "" {
		logCfg.Format = format
	}
	if os.Getenv("ENV") == "dev" {
		logCfg.Format = "console"
	}
	logging.InitWriter(logCfg, out)

	a.Logger = logging.Logger().With().
		Str("service", a.Cfg.Service.Name).
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", logCfg.Format).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// Start records the startup time before traffic is served.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("asrProvider", a.Cfg.ASR.Provider).
		Str("nlpProvider", a.Cfg.NLP.Provider).
		Bool("kafkaEnabled", a.Cfg.Kafka.Enabled).
		Msg("Conversation analytics service starting")

	return nil
}

// Uptime reports how long the service has been running.
func (a *Application) Uptime() time.Duration {
	if a.StartupTime.IsZero() {
		return 0
	}
	return time.Since(a.StartupTime)
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().
		Dur("uptime", a.Uptime()).
		Msg("Conversation analytics service shutting down")
}
