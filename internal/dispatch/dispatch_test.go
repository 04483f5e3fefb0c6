package dispatch_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/nowbridge/nowbridge/internal/dispatch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "value", r.URL.Query().Get("key"))
		assert.Equal(t, "Bearer token-value", r.Header.Get("Authorization"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := dispatch.New(nil)
	body, err := client.Send(context.Background(), http.MethodGet, server.URL, dispatch.Options{
		Headers:    map[string]string{"Authorization": "Bearer token-value"},
		Query:      url.Values{"key": {"value"}},
		ExpectBody: true,
	})

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestSend_FormBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	}))
	defer server.Close()

	client := dispatch.New(nil)
	body, err := client.Send(context.Background(), http.MethodPost, server.URL, dispatch.Options{
		Form: url.Values{"grant_type": {"refresh_token"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "created", string(body))
}

func TestSend_NoContentYieldsNilBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := dispatch.New(nil)
	body, err := client.Send(context.Background(), http.MethodGet, server.URL, dispatch.Options{})

	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestSend_StatusFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer server.Close()

	client := dispatch.New(nil)
	_, err := client.Send(context.Background(), http.MethodGet, server.URL, dispatch.Options{})

	var derr *dispatch.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, dispatch.KindStatus, derr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, derr.StatusCode)
	assert.Equal(t, "rate limited", string(derr.Body))

	status, message := derr.Status()
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate limited", message)
}

func TestSend_TransportFailure(t *testing.T) {
	// closed server: connection refused
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := dispatch.New(nil)
	_, err := client.Send(context.Background(), http.MethodGet, server.URL, dispatch.Options{})

	var derr *dispatch.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, dispatch.KindTransport, derr.Kind)
	assert.Zero(t, derr.StatusCode)

	status, _ := derr.Status()
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestSend_EmptyBodyFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := dispatch.New(nil)
	_, err := client.Send(context.Background(), http.MethodGet, server.URL, dispatch.Options{
		ExpectBody: true,
	})

	var derr *dispatch.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, dispatch.KindEmptyBody, derr.Kind)
}

func TestSend_EmptyBodyAllowedWhenNotExpected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := dispatch.New(nil)
	body, err := client.Send(context.Background(), http.MethodGet, server.URL, dispatch.Options{})

	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestSend_UnparseableURLLogsAttempt(t *testing.T) {
	var logged bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&logged)
	t.Cleanup(func() { log.Logger = original })

	client := dispatch.New(nil)
	_, err := client.Send(context.Background(), http.MethodGet, "http://example.com/\x7f", dispatch.Options{
		Query: url.Values{"key": {"value"}},
	})

	var derr *dispatch.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, dispatch.KindTransport, derr.Kind)

	// even a request that never leaves the process logs its attempt
	assert.Contains(t, logged.String(), `"status":"unknown"`)
	assert.Contains(t, logged.String(), `"method":"GET"`)
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &dispatch.Error{Kind: dispatch.KindTransport, Err: cause}

	assert.ErrorIs(t, err, cause)
}
