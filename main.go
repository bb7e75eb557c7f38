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

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"oran-rapps/internal/config"
	"oran-rapps/internal/observability/logging"
	"oran-rapps/internal/observability/metrics"
	"oran-rapps/internal/reconcile"
)

func main() {
	flags := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	rappName := flags.String("rapp", config.EnergySaving, "rApp to run: energy-saving or slice-prb")
	configPath := flags.String("config", "config.json", "configuration file (JSON or YAML)")
	generateData := flags.Bool("generate-data", false, "write synthetic telemetry before starting")
	flags.Bool("use-sme", false, "discover service URLs through SME")
	flags.Bool("random-predictions", false, "replace the inference service with random predictions")
	printConfig := flags.Bool("print-config", false, "print the effective configuration and exit")
	_ = flags.Parse(os.Args[1:])

	bootstrap, err := logging.New("info", "json")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath, *rappName, flags)
	if err != nil {
		bootstrap.Fatalw("configuration rejected", "path", *configPath, "err", err)
	}
	if *printConfig {
		out, err := cfg.YAML()
		if err != nil {
			bootstrap.Fatalw("config dump failed", "err", err)
		}
		_, _ = os.Stdout.Write(out)
		return
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		bootstrap.Fatalw("logger setup failed", "err", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With("rapp", cfg.Name)
	if cfg.File == "" {
		logger.Warnw("configuration file not found, using defaults and RAPP_* environment", "path", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	endpoints := resolveEndpoints(ctx, cfg, logger)

	history, db, err := openHistory(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("decision history setup failed", "err", err)
	}
	if db != nil {
		defer db.Close()
	}
	metrics.Init(db, logger)

	source, err := buildSource(ctx, cfg, endpoints, *generateData, logger)
	if err != nil {
		logger.Fatalw("telemetry source setup failed", "err", err)
	}
	predictor, err := buildPredictor(cfg)
	if err != nil {
		logger.Fatalw("predictor setup failed", "err", err)
	}
	events, closeEvents := buildPublishers(cfg, logger)
	defer closeEvents()

	rapp, err := buildRApp(cfg, endpoints, rappDeps{
		source:    source,
		predictor: predictor,
		history:   history,
		events:    events,
		logger:    logger,
	})
	if err != nil {
		logger.Fatalw("rapp setup failed", "err", err)
	}

	loop, err := reconcile.NewLoop(cfg.Name, cfg.IntervalDuration(), rapp.cycle, logger)
	if err != nil {
		logger.Fatalw("loop setup failed", "err", err)
	}

	router, err := newRouter(cfg, loop, history, logger)
	if err != nil {
		logger.Fatalw("router setup failed", "err", err)
	}
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infow("http listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return shutdown(shutdownCtx, server, loop, logger)
	})
	if rapp.afterStart != nil {
		group.Go(func() error {
			rapp.afterStart(gctx)
			return nil
		})
	}

	loop.Start(gctx)
	logger.Infow("rapp started", "interval", cfg.IntervalDuration())

	if err := group.Wait(); err != nil {
		logger.Fatalw("rapp exited with error", "err", err)
	}
	logger.Infow("rapp stopped")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type stoppable interface {
	Stop()
	WaitContext(ctx context.Context) error
}

// shutdown closes the HTTP server first so no trigger reaches the loop,
// then stops scheduling and waits for the in-flight cycle until ctx ends.
func shutdown(ctx context.Context, server shutdowner, loop stoppable, logger *zap.SugaredLogger) error {
	err := server.Shutdown(ctx)
	loop.Stop()
	if waitErr := loop.WaitContext(ctx); waitErr != nil {
		logging.OrNop(logger).Warnw("in-flight cycle still running at shutdown deadline", "err", waitErr)
	}
	return err
}
