package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lguibr/clinic/clinic"
	"github.com/lguibr/clinic/logging"
	"github.com/lguibr/clinic/monitoring"
	"github.com/lguibr/clinic/server"
	"github.com/lguibr/clinic/utils"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.ParseArgs(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if !errors.Is(err, utils.ErrUsage) {
			fmt.Fprintln(os.Stderr, utils.ErrUsage)
		}
		os.Exit(2)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	feed := server.NewServer(logger, metrics)

	c, err := clinic.New(clinic.Options{
		Doctors:         cfg.Doctors,
		Patients:        cfg.Patients,
		Generator:       utils.NewRandom(cfg.Seed),
		Sink:            clinic.MultiSink{clinic.NewLogSink(logger.Named("events")), metrics, feed},
		Logger:          logger,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to create clinic", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Listen != "" {
		httpServer := &http.Server{Addr: cfg.Listen, Handler: feed.Routes(reg)}
		g.Go(func() error {
			logger.Info("live feed listening", zap.String("addr", cfg.Listen))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		report, err := c.Run(gctx)
		if report != nil {
			feed.SetReport(report)
		}
		if err != nil {
			return err
		}
		if cfg.Listen != "" {
			logger.Info("run finished, report served until interrupted", zap.String("path", "/report"))
		}
		return nil
	})

	err = g.Wait()
	switch {
	case err == nil:
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		logger.Warn("interrupted")
	default:
		logger.Fatal("clinic run failed", zap.Error(err))
	}
}
