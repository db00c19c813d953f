package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"activityinsight/internal/analytics"
	"activityinsight/internal/config"
	"activityinsight/internal/db"
	"activityinsight/internal/http/handlers"
	"activityinsight/internal/logger"
	"activityinsight/internal/sink"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		zl.Fatal("failed to connect database", zap.String("dsn", db.MaskDSN(cfg.DatabaseURL)), zap.Error(err))
	}
	zl.Info("database ready", zap.String("dsn", db.MaskDSN(cfg.DatabaseURL)))

	metrics := handlers.NewMetrics()
	fanout := buildSinks(cfg, zl, metrics)
	defer func() {
		if err := fanout.Close(); err != nil {
			zl.Warn("closing sinks", zap.Error(err))
		}
	}()

	svc := analytics.NewService(db.NewActivityStore(sqlDB), fanout, zl)
	server := &fasthttp.Server{
		Name: "activityinsight",
		Handler: handlers.NewRouter(handlers.Deps{
			Service: svc,
			Config:  cfg,
			Metrics: metrics,
			Log:     zl,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zl.Info("activityinsight listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			zl.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			zl.Warn("graceful shutdown failed", zap.Error(err))
		}
	}
}

// buildSinks wires the optional Kafka and InfluxDB mirrors. A sink that cannot
// be created is skipped; the service runs without it.
func buildSinks(cfg *config.Config, zl *zap.Logger, metrics *handlers.Metrics) *sink.Multi {
	var fanout *sink.Multi
	report := func(name string, err error) { fanout.Report(name, err) }

	var sinks []sink.Sink
	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, sink.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, report))
		zl.Info("kafka sink enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	if cfg.InfluxURL != "" {
		influx, err := sink.NewInfluxSink(sink.InfluxConfig{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		}, report)
		if err != nil {
			zl.Warn("influxdb sink disabled", zap.String("url", cfg.InfluxURL), zap.Error(err))
		} else {
			sinks = append(sinks, influx)
			zl.Info("influxdb sink enabled", zap.String("url", cfg.InfluxURL), zap.String("bucket", cfg.InfluxBucket))
		}
	}

	fanout = sink.NewMulti(zl, metrics.SinkError, sinks...)
	return fanout
}
