// cmd/ingress/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/cleaner"
	"github.com/David-Botos/sales-ingress/pkg/config"
	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/converter"
	"github.com/David-Botos/sales-ingress/pkg/loader"
	"github.com/David-Botos/sales-ingress/pkg/logging"
	"github.com/David-Botos/sales-ingress/pkg/transfer"
)

func main() {
	entitiesFlag := flag.String("entities", "", "comma separated entities to run (default: ENTITIES or all)")
	once := flag.Bool("once", false, "run once even when CRON_SCHEDULE is set")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	entities := cfg.Entities
	if *entitiesFlag != "" {
		entities = splitList(*entitiesFlag)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = run(ctx, cfg, entities, *once, logger)
	stop()
	_ = logger.Sync()
	if err != nil {
		logger.Error("Ingress failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, entities []string, once bool, logger *zap.Logger) error {
	factory := connector.NewConnectorFactory(cfg, logger)
	source, target, err := factory.CreateAllConnectors(ctx)
	if err != nil {
		return err
	}
	defer source.Close()
	defer target.Close()

	if err := target.Validate(ctx); err != nil {
		return fmt.Errorf("target database not usable: %w", err)
	}

	dialect, err := converter.DialectForDriver(target.Driver())
	if err != nil {
		return err
	}
	typeConverter := converter.NewTypeConverter(logger, dialect)
	sink := loader.NewLoader(target, typeConverter, logger).WithBatchSize(cfg.ChunkSize)

	extractors, err := transfer.BuildExtractors(cfg, source, logger)
	if err != nil {
		return err
	}

	metrics, err := transfer.NewMetrics(prometheus.DefaultRegisterer, logger)
	if err != nil {
		return err
	}

	pipeline := transfer.NewPipeline(
		extractors,
		cleaner.NewRegistry(transfer.CleanerOptions(cfg.Cleaning)),
		sink,
		transfer.NewVerifier(target, sink.Schema(), logger),
		metrics,
		logger,
	).WithWorkerCount(cfg.WorkerPoolSize).WithRetryDelay(cfg.RetryDelay)

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Metrics server shutdown failed", zap.Error(err))
			}
		}()
	}

	runOnce := func() error {
		summary, err := pipeline.Run(ctx, entities)
		if err != nil {
			return err
		}
		fmt.Println(pipeline.GenerateReport())
		return summary.Err()
	}

	if cfg.CronSchedule == "" || once {
		return runOnce()
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.CronSchedule, func() {
		if err := runOnce(); err != nil {
			logger.Error("Scheduled run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid CRON_SCHEDULE %q: %w", cfg.CronSchedule, err)
	}

	logger.Info("Scheduler started", zap.String("schedule", cfg.CronSchedule))
	c.Start()
	<-ctx.Done()

	logger.Info("Stopping scheduler")
	<-c.Stop().Done()
	return nil
}

func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
