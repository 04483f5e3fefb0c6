// Package server runs the HTTP listener with ordered, deadline-bound
// shutdown hooks.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nowbridge/nowbridge/internal/config"
)

// Serve starts the server and blocks until it stops or is signalled.
// On SIGINT/SIGTERM the listener drains within the configured timeout, then
// the shutdown hooks run with whatever deadline remains.
func Serve(cfg config.ServerConfig, server *http.Server, hooks *ShutdownHooks) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		errCh <- server.ListenAndServe()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-signalCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown requested")
	}

	timeout := time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("listener drain failed")
	}

	hooks.Execute(ctx)

	return nil
}
