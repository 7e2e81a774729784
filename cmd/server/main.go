package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/labcards/internal/catalog"
	"github.com/DoyleJ11/labcards/internal/config"
	"github.com/DoyleJ11/labcards/internal/httpapi"
	"github.com/DoyleJ11/labcards/internal/hub"
	"github.com/DoyleJ11/labcards/internal/random"
	"github.com/DoyleJ11/labcards/internal/session"
	"github.com/DoyleJ11/labcards/internal/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:], ".env")
	if err != nil {
		zap.NewExample().Fatal("invalid config", zap.Error(err))
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(dev bool) *zap.Logger {
	build := zap.NewProduction
	if dev {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func run(cfg config.Config, logger *zap.Logger) error {
	// Refuse to serve without every suit; draws would be ill-defined.
	set, err := catalog.LoadDir(cfg.MaterialsDir)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", zap.String("dir", cfg.MaterialsDir), zap.Int("cards", set.Len()))
	for _, suit := range catalog.SuitOrder {
		logger.Info("suit available", zap.String("suit", string(suit)), zap.Int("cards", set.Count(suit)))
	}

	rng, err := random.NewRand()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(logger.Named("hub"), cfg.OutboxSize)
	sess := session.New(ctx, session.Config{
		Catalog: set,
		Mode:    cfg.DrawMode(),
		Shuffle: rng.Shuffle,
		Hub:     h,
		Logger:  logger.Named("session"),
	})

	// Build the router *with* the session injected
	handler := httpapi.SetupRoutes(httpapi.Deps{
		Session:          sess,
		Logger:           logger,
		StaticDir:        cfg.StaticDir,
		InstructionsPath: cfg.InstructionsPath(),
		WS: ws.Options{
			WriteTimeout:   cfg.WriteTimeout,
			PingInterval:   cfg.PingInterval,
			OriginPatterns: cfg.AllowedOrigins,
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("mode", cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Websocket connections are hijacked, so Shutdown does not wait for
		// them; closing the session ends their writers.
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			err = multierr.Append(err, srv.Close())
		}
		sess.Close()
		logger.Info("shutdown complete")
		return err
	})

	return g.Wait()
}
