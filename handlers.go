package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nowbridge/nowbridge/internal/flow"
	"github.com/nowbridge/nowbridge/internal/playback"
	"github.com/nowbridge/nowbridge/internal/token"
	"github.com/rs/zerolog/log"
)

// HTTPStatuser provides HTTP status information for errors
type HTTPStatuser interface {
	Status() (int, string)
}

// handleGetCurrentSong serves the primary endpoint. A user without a live
// token or refresh entry is redirected into the authorization flow; everyone
// else gets their currently playing track as JSON.
func handleGetCurrentSong(tokens *token.Store, authFlow *flow.Controller, assembler *playback.Assembler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		username := r.URL.Query().Get("username")
		if username == "" {
			writeJSONError(w, http.StatusBadRequest, "username query parameter required")
			return
		}

		record, err := tokens.GetValid(r.Context(), username)
		if errors.Is(err, token.ErrNotAuthorized) {
			if err := authFlow.Begin(w, r, username); err != nil {
				status, message := errorStatus(err)
				log.Info().Msgf("authorization initiation failed: %v", err)
				writeJSONError(w, status, message)
			}
			return
		}
		if err != nil {
			status, message := errorStatus(err)
			log.Info().Msgf("token retrieval failed: %v", err)
			writeJSONError(w, status, message)
			return
		}

		respondTrackInfo(w, r, assembler, record)
	})
}

// handleAuthorizeCallback completes the provider round-trip: CSRF
// validation, authorization-code exchange, then the same assembly pipeline
// as a direct current-song request.
func handleAuthorizeCallback(tokens *token.Store, authFlow *flow.Controller, assembler *playback.Assembler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		username, code, err := authFlow.Callback(w, r)
		if err != nil {
			status, message := errorStatus(err)
			log.Info().Msgf("callback validation failed: %v", err)
			writeJSONError(w, status, message)
			return
		}

		record, err := tokens.ExchangeCode(r.Context(), username, code)
		if err != nil {
			status, message := errorStatus(err)
			log.Info().Msgf("authorization code exchange failed: %v", err)
			writeJSONError(w, status, message)
			return
		}

		respondTrackInfo(w, r, assembler, record)
	})
}

func respondTrackInfo(w http.ResponseWriter, r *http.Request, assembler *playback.Assembler, record token.Record) {
	info, err := assembler.Assemble(r.Context(), record)
	if err != nil {
		status, message := errorStatus(err)
		log.Info().Msgf("playback assembly failed: %v", err)
		writeJSONError(w, status, message)
		return
	}

	marshalled, err := json.Marshal(info)
	if err != nil {
		requestError(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(marshalled); err != nil {
		// record failure to log: trying to respond to the client at this
		// point will likely fail
		log.Info().Msgf("failed to write response: %v", err)
	}
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSONError writes a JSON error response with the given status code and message.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// At this point the status code has been written, so we can only log
		log.Info().Msgf("failed to write JSON error response: %v", err)
	}
}

// errorStatus extracts HTTP status code and message from an error.
// Returns (StatusInternalServerError, StatusText) for errors that don't implement HTTPStatuser.
func errorStatus(err error) (int, string) {
	var statuser HTTPStatuser
	if errors.As(err, &statuser) {
		return statuser.Status()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func requestError(w http.ResponseWriter, statusCode int) {
	http.Error(w, http.StatusText(statusCode), statusCode)
}

// drainRequestBody drains the request body by reading and discarding the contents.
// This is useful to ensure the request body is fully consumed, which is important
// for connection reuse in HTTP/1 clients.
func drainRequestBody(r *http.Request) {
	if r.Body != nil {
		// 5kb max: after this we'll assume the client is broken or malicious
		// and close the connection
		io.CopyN(io.Discard, r.Body, 5*1024*1024)
	}
}
