package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "conversation-analytics-service/internal/api/grpc"
	"conversation-analytics-service/internal/app"
	"conversation-analytics-service/internal/config"
	"conversation-analytics-service/internal/events"
	apihttp "conversation-analytics-service/internal/http"
	"conversation-analytics-service/internal/observability"
	"conversation-analytics-service/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.DefaultMetrics
	services, err := application.Build(ctx, m)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire services")
	}
	defer services.Close()

	ready := services.Store.Ping

	// Observability server: metrics, health and readiness
	obs := observability.NewServer(cfg.Observability.MetricsAddr, nil, map[string]observability.ReadyFunc{
		"store": ready,
	})
	obs.Start()

	// gRPC server
	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}
	server := grpc.NewServer(grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m)))

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	grpcapi.Register(server, services.Conversations)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(server)

	go func() {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC server started")
		if err := server.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("gRPC serve failed")
		}
	}()

	// HTTP API
	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           apihttp.NewRouter(application, services.Conversations, ready),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	// Job-completed notifications
	var consumer *events.Consumer
	if cfg.Kafka.Enabled && cfg.Kafka.TopicJobs != "" {
		consumer = events.NewConsumer(events.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.TopicJobs,
			GroupID: cfg.Kafka.GroupID,
		}, services.Conversations.HandleJobCompleted, services.Validator, m)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Kafka consumer stopped")
				stop()
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("Shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Kafka consumer")
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down HTTP server")
	}
	server.GracefulStop()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down observability server")
	}
	application.Shutdown()
}
