package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/nowbridge/nowbridge/internal/artwork"
	"github.com/nowbridge/nowbridge/internal/config"
	"github.com/nowbridge/nowbridge/internal/dispatch"
	"github.com/nowbridge/nowbridge/internal/flow"
	"github.com/nowbridge/nowbridge/internal/observe"
	"github.com/nowbridge/nowbridge/internal/playback"
	"github.com/nowbridge/nowbridge/internal/requestlog"
	"github.com/nowbridge/nowbridge/internal/server"
	"github.com/nowbridge/nowbridge/internal/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justinas/alice"
)

func configureServerRoutes(cfg config.Config) http.Handler {
	// wrap a mux such that HTTP telemetry is configured by default
	muxWithoutTelemetry := http.NewServeMux()
	mux := observe.NewMux(muxWithoutTelemetry)

	// The request body size is fairly limited: both endpoints are GET-only
	// and carry their input in the query string and cookies.
	requestLimitBytes := int64(20 << 10) // 20 KB
	requestLimiter := maxRequestSize(requestLimitBytes)

	standardRouteMiddleware := alice.New(requestLimiter, requestlog.Middleware())

	// shared outbound dispatcher: token exchange, now-playing and artwork
	// calls all flow through it
	dispatcher := dispatch.New(&http.Client{
		Transport: configureHTTPTransport(cfg.Server),
	})

	tokens := token.NewStore(cfg.Spotify, dispatcher)
	authFlow := flow.NewController(cfg.Spotify)
	resolver := artwork.NewResolver(cfg.Search, dispatcher)
	assembler := playback.NewAssembler(cfg.Spotify, dispatcher, resolver)

	mux.Handle("GET /current-song", standardRouteMiddleware.Then(handleGetCurrentSong(tokens, authFlow, assembler)))
	mux.Handle("GET /authorize-callback", standardRouteMiddleware.Then(handleAuthorizeCallback(tokens, authFlow, assembler)))

	// healthchecks are not included in telemetry
	muxWithoutTelemetry.Handle("GET /healthcheck", alice.New(requestLimiter).Then(handleHealthCheck()))

	return mux
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launchServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	cfg, err := config.Load(context.Background())
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	cfg.LogSummary(log.Logger)

	handler := configureServerRoutes(cfg)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		MaxHeaderBytes:    20 << 10,         // 20 KB
		ReadHeaderTimeout: 20 * time.Second, // Prevent Slowloris attacks
	}

	hooks := &server.ShutdownHooks{}
	hooks.Add("idle connections", func() error {
		httpServer.SetKeepAlivesEnabled(false)
		return nil
	})

	if err := server.Serve(cfg.Server, httpServer, hooks); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func configureLogging() {
	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHTTPTransport(cfg config.ServerConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHTTPMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHTTPMaxConnsPerHost

	return transport
}
