// Package requestlog logs every inbound request with a correlation id, the
// resolved status and the elapsed time.
package requestlog

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Middleware returns a handler wrapper that attaches a request-scoped logger
// (carrying a fresh request id) to the context and writes one summary line
// per request.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger := log.With().Str("request_id", uuid.NewString()).Logger()
			r = r.WithContext(logger.WithContext(r.Context()))

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", recorder.status).
				Int64("elapsed_ms", time.Since(start).Milliseconds()).
				Msg("request")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
