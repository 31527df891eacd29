package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jrsteele09/matka-backoffice/devbackend"
	"github.com/jrsteele09/matka-backoffice/internal/config"
	"github.com/jrsteele09/matka-backoffice/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("dev backend failed")
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	cfg := config.New()
	logging.Setup(cfg, cfg.GetEnv())

	backend, err := devbackend.New(devbackend.Options{
		AdminUsername: cfg.GetDevAdminUsername(),
		AdminPassword: cfg.GetDevAdminPassword(),
		JWTSecret:     cfg.GetDevJWTSecret(),
		TokenTTL:      cfg.GetDevTokenTTL(),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: cfg.GetDevBackendPort(), Handler: backend, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := listenAndServe(srv); err != nil {
			log.Err(err).Msg("dev backend stopped serving")
		}
	}()
	waitForStopSignal()
	return shutdown(srv)
}

func listenAndServe(srv *http.Server) error {
	log.Info().Str("addr", srv.Addr).Msg("dev backend listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
