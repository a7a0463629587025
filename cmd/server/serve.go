package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/diagnosis-service/internal/audit"
	"github.com/SyedDaiam9101/diagnosis-service/internal/cache"
	"github.com/SyedDaiam9101/diagnosis-service/internal/config"
	"github.com/SyedDaiam9101/diagnosis-service/internal/configstore"
	"github.com/SyedDaiam9101/diagnosis-service/internal/handler"
	"github.com/SyedDaiam9101/diagnosis-service/internal/inference"
	"github.com/SyedDaiam9101/diagnosis-service/internal/logging"
	"github.com/SyedDaiam9101/diagnosis-service/internal/probe"
	"github.com/SyedDaiam9101/diagnosis-service/internal/service"
	"github.com/SyedDaiam9101/diagnosis-service/internal/tracing"
	"github.com/SyedDaiam9101/diagnosis-service/internal/validation"
	"github.com/SyedDaiam9101/diagnosis-service/internal/version"
)

func runServer(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting "+serviceName,
		zap.String("version", version.Full()),
		zap.Int("port", cfg.Port),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("metrics_port", cfg.MetricsPort),
		zap.String("model", cfg.Model),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Bool("otel", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry tracer
	var tracerShutdown func(context.Context) error
	if cfg.OTELEnabled {
		tracerShutdown, err = tracing.Init(serviceName, version.Version, cfg.OTELEndpoint, logger)
		if err != nil {
			logger.Warn("failed to initialize tracer", zap.Error(err))
		}
	}

	// A missing or corrupt artifact is fatal: there is no partial-service mode
	logger.Info("loading model", zap.String("path", cfg.Model), zap.String("format", cfg.ModelFormat))
	model, err := inference.Load(cfg.Model, inference.LoadOptions{
		Format:        cfg.ModelFormat,
		Name:          cfg.ModelName,
		SharedLibrary: cfg.ONNXLibrary,
		InputName:     cfg.ONNXInput,
		LabelOutput:   cfg.ONNXLabelOutput,
		ProbaOutput:   cfg.ONNXProbaOutput,
		NumFeatures:   validation.FeatureCount,
		NumClasses:    cfg.NumClasses,
	})
	if err != nil {
		return err
	}
	handle := inference.NewHandle(model)
	defer inference.ShutdownRuntime()
	defer handle.Close()
	logger.Info("model loaded", zap.String("model", model.Name()))

	opts := []service.Option{service.WithLogger(logger)}

	if c := newCache(cfg, logger); c != nil {
		defer c.Close()
		opts = append(opts, service.WithCache(c))
	}

	if cfg.AuditDB != "" {
		auditLog, err := audit.Open(cfg.AuditDB, cfg.AuditRetention, logger)
		if err != nil {
			return err
		}
		defer auditLog.Close()

		if err := auditLog.StartPruning(cfg.AuditPruneSchedule); err != nil {
			return err
		}
		if err := auditLog.RecordModelEvent(context.Background(), model.Name(), audit.EventLoaded); err != nil {
			logger.Warn("audit record failed", zap.Error(err))
		}
		opts = append(opts, service.WithRecorder(auditLog))
		logger.Info("prediction audit log enabled", zap.String("path", cfg.AuditDB))
	}

	hp := probe.New(serviceName, cfg.OTELEnabled)
	opts = append(opts, service.WithUnloadHook(hp.ModelUnloaded))

	svc := service.New(handle, configstore.New(), opts...)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.NewRouter(handler.New(svc), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsServer := startMetricsServer(cfg.MetricsPort, hp, logger)

	go func() {
		logger.Info("gRPC health server listening", zap.Int("port", cfg.GRPCPort))
		if err := hp.Listen(cfg.GRPCPort); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", zap.String("addr", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	hp.SetServing()
	logger.Info(serviceName + " is ready to accept requests")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", zap.String("signal", sig.String()))
	case err := <-serveErr:
		runErr = fmt.Errorf("HTTP server failed: %w", err)
	}

	hp.SetNotServing()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Warn("HTTP API shutdown", zap.Error(err))
	}
	hp.Shutdown()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
	if tracerShutdown != nil {
		if err := tracerShutdown(ctx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}

	logger.Info("server shutdown complete")
	return runErr
}

func newCache(cfg *config.Config, logger *zap.Logger) cache.Cache {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := cache.NewRedis(ctx, cfg.Redis, cfg.CacheTTL)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without cache", zap.Error(err))
			return nil
		}
		logger.Info("Redis prediction cache connected", zap.String("addr", cfg.Redis))
		return c

	case config.CacheMemory:
		return cache.NewLRU(cfg.CacheSize, cfg.CacheTTL)

	default:
		return nil
	}
}

func startMetricsServer(port int, hp *probe.Probe, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	probes := hp.HTTPHandler()
	mux.Handle("/healthz", probes)
	mux.Handle("/readyz", probes)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	return server
}
