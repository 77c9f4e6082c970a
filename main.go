package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bootjp/wholesale/driver"
	"github.com/bootjp/wholesale/internal"
	"github.com/bootjp/wholesale/internal/config"
	"github.com/bootjp/wholesale/txn"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := internal.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	logger = logger.With(slog.String("run", uuid.NewString()), slog.Int("shard", cfg.Shard))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("run failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := driver.NewMetrics(reg)

	handlers := txn.NewHandlers(st, internal.NewSyncWriter(os.Stdout), txn.WithLogger(logger))
	d := driver.New(driver.Options{
		Shard:          cfg.Shard,
		PoolSize:       cfg.PoolSize,
		TransactionDir: cfg.TransactionDir,
		MetricsDir:     cfg.MetricsDir,
	}, driver.NewExecutor(handlers), logger,
		driver.WithMetrics(metrics),
		driver.WithRetryPolicy(driver.RetryPolicy{
			Attempts:   cfg.Retry.Attempts,
			MinBackoff: cfg.Retry.MinBackoff(),
			MaxBackoff: cfg.Retry.MaxBackoff(),
		}),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(runCtx)
	if cfg.MetricsAddress != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: time.Second,
		}
		eg.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.WithStack(err)
			}
			return nil
		})
		eg.Go(func() error {
			<-egCtx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			return errors.WithStack(srv.Shutdown(shutdownCtx))
		})
	}

	var runErr error
	eg.Go(func() error {
		defer cancel()
		start := time.Now()
		rep := d.Run(egCtx)
		logger.Info("shard finished", slog.Duration("elapsed", time.Since(start)), slog.String("throughput", rep.Throughput.Row()))
		runErr = rep.Write(cfg.MetricsDir)
		return nil
	})

	err = eg.Wait()
	return errors.CombineErrors(errors.CombineErrors(runErr, err), closeStore(context.Background()))
}
