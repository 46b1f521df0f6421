package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/pundLedger/pkg/auth"
	"github.com/mcclellann/pundLedger/pkg/config"
	"github.com/mcclellann/pundLedger/pkg/ledger"
	"github.com/mcclellann/pundLedger/pkg/report"
	"github.com/mcclellann/pundLedger/pkg/store"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}
	if cfg.UsesDefaultSecret() {
		logger.Warn("JWT_SECRET is not set, using the development placeholder")
	}

	ctx := context.Background()
	storage, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatalf("Failed to open %s store: %v", cfg.DBDriver, err)
	}
	defer storage.Close()

	l := ledger.NewLedger(storage, logger, ledger.WithFundLimit(cfg.EnforceFundLimit))
	authService := auth.NewService(storage, cfg.JWTSecret, cfg.TokenExpiry, logger)

	var archiver report.Archiver
	if cfg.ReportsBucket != "" {
		s3Archiver, err := report.NewS3Archiver(ctx, cfg.ReportsBucket, cfg.ReportsRegion, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			logger.Fatalf("Failed to configure report archive: %v", err)
		}
		archiver = s3Archiver
		logger.WithField("bucket", cfg.ReportsBucket).Info("Report archiving enabled")
	}
	exporter := report.NewExporter(l, archiver, logger)

	server := NewServer(l, authService, exporter, logger)

	c := cron.New()
	_, err = c.AddFunc(cfg.PenaltySweepSchedule, func() {
		logger.Info("Running overdue penalty sweep")
		res, err := l.SweepPenalties(context.Background())
		entry := logger.WithFields(logrus.Fields{
			"punds":        res.Punds,
			"payments":     res.Payments,
			"installments": res.Installments,
		})
		if err != nil {
			entry.WithError(err).Error("Penalty sweep finished with errors")
			return
		}
		entry.Info("Penalty sweep complete")
	})
	if err != nil {
		logger.Fatalf("Invalid PENALTY_SWEEP_SCHEDULE %q: %v", cfg.PenaltySweepSchedule, err)
	}
	c.Start()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	logger.Info("Server stopped")
}
