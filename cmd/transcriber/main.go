// Command transcriber runs the meeting transcription service: an HTTP API
// that accepts audio uploads and processes them asynchronously through
// preprocessing, speaker diarization, transcription, and alignment.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillsenselab/meet-transcriber/internal/audio"
	"github.com/skillsenselab/meet-transcriber/internal/component"
	"github.com/skillsenselab/meet-transcriber/internal/config"
	"github.com/skillsenselab/meet-transcriber/internal/diarization"
	"github.com/skillsenselab/meet-transcriber/internal/diarization/pyannote"
	"github.com/skillsenselab/meet-transcriber/internal/jobstore"
	"github.com/skillsenselab/meet-transcriber/internal/logger"
	"github.com/skillsenselab/meet-transcriber/internal/observability"
	"github.com/skillsenselab/meet-transcriber/internal/pipeline"
	"github.com/skillsenselab/meet-transcriber/internal/provider"
	"github.com/skillsenselab/meet-transcriber/internal/redis"
	"github.com/skillsenselab/meet-transcriber/internal/server"
	"github.com/skillsenselab/meet-transcriber/internal/service"
	"github.com/skillsenselab/meet-transcriber/internal/transcription/whisper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("meet-transcriber").Fatal("Failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger.Init(cfg.Logging)
	log := logger.New(&cfg.Logging, cfg.Name)
	logger.SetGlobalLogger(log)

	log.Info("Starting service", map[string]interface{}{
		"name":        cfg.Name,
		"version":     cfg.Version,
		"environment": cfg.Environment,
	})

	ctx := context.Background()

	metrics := setupObservability(ctx, cfg, log)

	store := setupStore(ctx, cfg, log)

	pre := audio.NewPreprocessor(cfg.Audio, log)
	transcriber := whisper.NewProvider(cfg.Whisper)
	var diarizer diarization.Provider = pyannote.NewProvider(cfg.Pyannote)

	orch := pipeline.New(cfg.Pipeline, store, pre, transcriber, diarizer, metrics, log)
	svc := service.New(store, orch, cfg.Audio, log)

	providers := provider.NewRegistry[provider.Provider]()
	providers.Register(transcriber)
	providers.Register(diarizer)

	registry := component.NewRegistry()
	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()
	server.NewHandler(svc, registry, providers, cfg.Name).Register(srv.GinEngine())

	mustRegister(registry, orch, log)
	mustRegister(registry, srv, log)

	if err := registry.StartAll(ctx); err != nil {
		log.Fatal("Startup failed", map[string]interface{}{"error": err.Error()})
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutdown signal received", map[string]interface{}{"signal": sig.String()})

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := registry.StopAll(shutdownCtx); err != nil {
		log.Error("Shutdown finished with errors", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}

// setupObservability initializes OTLP metrics and tracing when enabled and
// returns the pipeline metrics instruments. Returns nil metrics when
// telemetry is disabled; all record calls are nil-safe.
func setupObservability(ctx context.Context, cfg *config.Config, log *logger.Logger) *observability.Metrics {
	if !cfg.Observability.Enabled {
		return nil
	}

	if _, err := observability.InitTracer(ctx, cfg.Observability.TracerConfigFor(cfg.Name, cfg.Version, cfg.Environment)); err != nil {
		log.Warn("Tracer init failed, continuing without tracing", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if _, err := observability.InitMeter(ctx, cfg.Observability.MeterConfigFor(cfg.Name, cfg.Version, cfg.Environment)); err != nil {
		log.Warn("Meter init failed, continuing without metrics", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
	if err != nil {
		log.Warn("Metric instrument creation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return metrics
}

// setupStore returns the Redis-backed job store when Redis is enabled and
// reachable, otherwise the in-memory store.
func setupStore(ctx context.Context, cfg *config.Config, log *logger.Logger) jobstore.Store {
	if cfg.Redis.Enabled {
		client, err := redis.New(cfg.Redis, log)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if perr := client.Ping(pingCtx); perr == nil {
				log.Info("Using Redis job store", map[string]interface{}{"addr": cfg.Redis.Addr})
				return jobstore.NewRedisStore(client, cfg.JobStore.TTL, log)
			}
			_ = client.Close()
		}
		log.Warn("Redis unavailable, falling back to in-memory job store", map[string]interface{}{
			"addr": cfg.Redis.Addr,
		})
	}
	log.Info("Using in-memory job store")
	return jobstore.NewMemoryStore(cfg.JobStore.TTL)
}

func mustRegister(r *component.Registry, c component.Component, log *logger.Logger) {
	if err := r.Register(c); err != nil {
		log.Fatal("Component registration failed", map[string]interface{}{
			"component": c.Name(),
			"error":     err.Error(),
		})
	}
}
