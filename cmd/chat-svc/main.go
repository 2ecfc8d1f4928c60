package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"gochat/internal/wire"
)

func main() {
	app, cleanup, err := wire.InitializeApplication()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize chat service")
	}
	defer cleanup()

	cfg := app.Config
	logger := app.Log

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      app.HTTP,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	opsLis, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, cfg.Server.OpsPort))
	if err != nil {
		logger.Fatal().Err(err).Str("port", cfg.Server.OpsPort).Msg("failed to listen on ops port")
	}

	go func() {
		logger.Info().Str("port", cfg.Server.OpsPort).Msg("ops server running")
		if err := app.Ops.Serve(opsLis); err != nil {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("environment", cfg.Server.Environment).
			Str("store", cfg.Database.Driver).
			Str("identity", cfg.Platform.IdentityMode).
			Bool("redis", cfg.Redis.Enabled).
			Msg("chat service running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat service")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http shutdown did not complete")
	}
	app.Ops.GracefulStop()

	logger.Info().Msg("chat service stopped")
}
