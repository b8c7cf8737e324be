// Command worker is the MOFRAC-Engine batch featurization worker.  It
// consumes featurization requests from Kafka, runs the decomposition and
// descriptor pipeline for each structure, and emits completed/failed events.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/MOFRAC-Engine/internal/application/featurization"
	"github.com/turtacn/MOFRAC-Engine/internal/bootstrap"
	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/prometheus"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	workerCount := flag.Int("workers", 0, "number of concurrent consumers (default: worker.concurrency)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Kafka.Enabled {
		fmt.Fprintln(os.Stderr, "the worker requires kafka.enabled in the configuration")
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	if err := run(cfg, logger, *workerCount); err != nil {
		logger.Error("worker failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger, workerCount int) error {
	workers := cfg.Worker.Concurrency
	if workerCount > 0 {
		workers = workerCount
	}
	if workers < 1 {
		workers = 1
	}

	metrics, collector, err := initMetrics(cfg, logger)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	backends, err := bootstrap.Build(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer backends.Close()

	service := featurization.NewService(backends.Deps)
	handler := requestHandler(cfg, service, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Each consumer joins the same group, so partitions of the request topic
	// are balanced across them.
	consumers := make([]*kafka.Consumer, 0, workers)
	for i := 0; i < workers; i++ {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfigFromApp(cfg.Kafka, cfg.Worker), logger)
		if err != nil {
			closeConsumers(consumers, logger)
			return fmt.Errorf("kafka consumer: %w", err)
		}
		consumer.Subscribe(kafka.TopicFeaturizationRequested, handler)
		if err := consumer.Start(ctx); err != nil {
			closeConsumers(consumers, logger)
			return fmt.Errorf("kafka consumer start: %w", err)
		}
		consumers = append(consumers, consumer)
	}

	healthSrv := startHealthServer(cfg, collector, logger)

	logger.Info("worker started",
		logging.Int("consumers", workers),
		logging.String("topic", kafka.TopicFeaturizationRequested),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", logging.String("signal", sig.String()))

	cancel()
	closeConsumers(consumers, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if healthSrv != nil {
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", logging.Err(err))
		}
	}

	logger.Info("worker stopped")
	return nil
}

// requestHandler decodes featurization requests and runs the pipeline.  A
// returned error triggers the consumer's retry and dead-letter handling;
// structure-level failures are absorbed by the service and reported through
// failed events instead.
func requestHandler(cfg *config.Config, service featurization.Service, logger logging.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		env, err := kafka.DecodeEnvelope(msg)
		if err != nil {
			return err
		}
		var payload kafka.FeaturizationRequestedPayload
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}

		req := featurization.NewRequest(payload.StructurePath, cfg)
		if payload.Depth > 0 {
			req.Depth = payload.Depth
		}
		if payload.OutputPath != "" {
			req.OutputPath = payload.OutputPath
		}

		res, err := service.Featurize(ctx, req)
		if err != nil {
			return err
		}
		logger.Info("featurization request processed",
			logging.String("structure", res.Name),
			logging.String("status", res.Status),
			logging.Int("descriptors", len(res.Values)),
		)
		return nil
	}
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	// No config file; defaults and MOFRAC_* env vars still apply.
	return config.LoadFromEnv()
}

func newLogger(cfg config.LogConfig) (logging.Logger, error) {
	format := "json"
	if cfg.Format == "text" {
		format = "console"
	}
	outputs := []string{"stdout"}
	if cfg.Output != "" {
		outputs = []string{cfg.Output}
	}
	return logging.NewLogger(logging.LogConfig{
		Level:       cfg.Level,
		Format:      format,
		OutputPaths: outputs,
	})
}

func initMetrics(cfg *config.Config, logger logging.Logger) (*prom.AppMetrics, prom.MetricsCollector, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil, nil
	}
	collector, err := prom.NewMetricsCollector(prom.CollectorConfig{
		Namespace:            "mofrac",
		Subsystem:            "worker",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return prom.RegisterAppMetrics(collector), collector, nil
}

// startHealthServer exposes liveness/readiness probes plus the Prometheus
// exposition endpoint when metrics are enabled.
func startHealthServer(cfg *config.Config, collector prom.MetricsCollector, logger logging.Logger) *http.Server {
	addr := cfg.Metrics.Addr
	if addr == "" {
		addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if collector != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, collector.Handler())
	}

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("health server listening", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
}

func closeConsumers(consumers []*kafka.Consumer, logger logging.Logger) {
	for _, c := range consumers {
		if err := c.Close(); err != nil {
			logger.Warn("consumer close error", logging.Err(err))
		}
	}
}
