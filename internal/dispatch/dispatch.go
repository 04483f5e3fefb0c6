// Package dispatch issues single outbound HTTP requests and normalizes
// transport and status failures into a uniform error payload. Retry policy
// belongs to callers: a failed dispatch is reported once and never repeated
// internally.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// acceptedStatuses are the response codes treated as success.
var acceptedStatuses = []int{
	http.StatusOK,
	http.StatusCreated,
	http.StatusNoContent,
}

const defaultTimeout = 5 * time.Second

// FailureKind classifies a dispatch failure.
type FailureKind int

const (
	// KindTransport means no response was obtainable (DNS, timeout,
	// connection refused).
	KindTransport FailureKind = iota + 1
	// KindStatus means a response arrived with a status outside the
	// accepted set.
	KindStatus
	// KindEmptyBody means the status was accepted but a required body was
	// missing.
	KindEmptyBody
)

// Error is the uniform failure payload surfaced by Send. StatusCode is zero
// for transport failures; for status failures it carries the dependency's
// code and Body its response body.
type Error struct {
	Kind       FailureKind
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("dispatch %s %s: no response: %v", e.Method, e.URL, e.Err)
	case KindEmptyBody:
		return fmt.Sprintf("dispatch %s %s: expected body but got nothing", e.Method, e.URL)
	default:
		return fmt.Sprintf("dispatch %s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the failure to an HTTP status for the inbound response.
// Status failures surface the dependency's own code; transport and
// empty-body failures report the upstream as unavailable.
func (e *Error) Status() (int, string) {
	if e.Kind == KindStatus {
		return e.StatusCode, string(e.Body)
	}
	return http.StatusBadGateway, "upstream unavailable"
}

// Options shapes a single outbound request.
type Options struct {
	Headers map[string]string
	Query   url.Values
	Form    url.Values
	JSON    any // marshalled as the request body when non-nil

	// ExpectBody requires a non-empty response body on success.
	ExpectBody bool
}

// Client issues outbound requests with a per-call timeout.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// New creates a dispatch client using the supplied HTTP client. A nil client
// selects http.DefaultClient.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		timeout:    defaultTimeout,
	}
}

// Send issues one request and returns the raw response body. A 204 response
// yields a nil body. Every attempt, successful or not, is logged with its
// status and latency. The returned error is always a *Error.
func (c *Client) Send(ctx context.Context, method, rawURL string, opts Options) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(ctx, method, rawURL, opts)
	if err != nil {
		log.Info().
			Str("method", method).
			Str("url", rawURL).
			Str("status", "unknown").
			Int64("elapsed_ms", 0).
			Msg("dispatch")
		return nil, &Error{Kind: KindTransport, Method: method, URL: rawURL, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Info().
			Str("method", method).
			Str("url", rawURL).
			Str("status", "unknown").
			Int64("elapsed_ms", elapsed.Milliseconds()).
			Msg("dispatch")
		return nil, &Error{Kind: KindTransport, Method: method, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	log.Info().
		Str("method", method).
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Int64("elapsed_ms", elapsed.Milliseconds()).
		Msg("dispatch")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: method, URL: rawURL, Err: err}
	}

	if !slices.Contains(acceptedStatuses, resp.StatusCode) {
		return nil, &Error{
			Kind:       KindStatus,
			Method:     method,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	if opts.ExpectBody && len(body) == 0 {
		return nil, &Error{
			Kind:       KindEmptyBody,
			Method:     method,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
		}
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	return body, nil
}

func (c *Client) buildRequest(ctx context.Context, method, rawURL string, opts Options) (*http.Request, error) {
	if len(opts.Query) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		for k, vs := range opts.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}

	var body io.Reader
	contentType := ""

	switch {
	case opts.JSON != nil:
		encoded, err := json.Marshal(opts.JSON)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	case len(opts.Form) > 0:
		body = strings.NewReader(opts.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}
