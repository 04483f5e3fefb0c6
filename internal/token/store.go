// Package token owns the access-token lifecycle for the music provider: a
// TTL-bound per-user cache of access tokens, a permanent map of refresh
// tokens, and the renew-or-fetch decision.
package token

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/nowbridge/nowbridge/internal/cache"
	"github.com/nowbridge/nowbridge/internal/config"
	"github.com/nowbridge/nowbridge/internal/dispatch"
	"github.com/rs/zerolog/log"
)

const (
	// tokenCacheSize bounds the number of users with a cached access token.
	tokenCacheSize = 10

	// tokenCacheTTL is an upper bound on residency: each record's own
	// ExpiresAt is authoritative and always shorter-lived than this.
	tokenCacheTTL = time.Hour
)

// ErrNotAuthorized indicates the user has neither a live access token nor a
// refresh token: the authorization flow must be restarted.
var ErrNotAuthorized = errors.New("user has not authorized playback access")

// ErrInvalidClientKeys indicates the provider client credentials are not
// configured, so no token exchange can be attempted.
var ErrInvalidClientKeys = errors.New("invalid keys: spotify client credentials not configured")

// ExchangeError reports a failed token exchange with the provider.
type ExchangeError struct {
	Username string
	Err      error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange for %q failed: %v", e.Username, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// Record is the access-token material for one user. It is replaced whole on
// every exchange, never partially updated.
type Record struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`

	ExpiresAt time.Time `json:"-"`
}

// Live reports whether the record can still be served.
func (r Record) Live() bool {
	return r.AccessToken != "" && time.Now().Before(r.ExpiresAt)
}

// AuthorizationHeader formats the record as a bearer header value.
func (r Record) AuthorizationHeader() string {
	tokenType := r.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType + " " + r.AccessToken
}

// Store caches access tokens per user and retains refresh tokens
// indefinitely, so an expired access token can be renewed silently.
//
// Concurrent requests for the same user racing through an expired token may
// each trigger an exchange; the last write wins. The cost is one extra
// provider call, not a correctness problem, so exchanges are not serialized.
type Store struct {
	cfg        config.SpotifyConfig
	dispatcher *dispatch.Client

	tokens *cache.Memory[Record]

	mu      sync.RWMutex
	refresh map[string]string
}

// NewStore creates a token store using the supplied dispatcher for provider
// calls.
func NewStore(cfg config.SpotifyConfig, dispatcher *dispatch.Client) *Store {
	return &Store{
		cfg:        cfg,
		dispatcher: dispatcher,
		tokens:     cache.NewMemory[Record](tokenCacheTTL, tokenCacheSize),
		refresh:    make(map[string]string),
	}
}

// GetValid returns a live access token for the user. A cached live record is
// returned without any network call; an expired record with a known refresh
// token triggers exactly one refresh exchange; otherwise ErrNotAuthorized is
// returned and the caller must restart the authorization flow.
func (s *Store) GetValid(ctx context.Context, username string) (Record, error) {
	if record, ok := s.tokens.Get(username); ok {
		if record.Live() {
			return record, nil
		}
		s.tokens.Invalidate(username)
	}

	refreshToken, ok := s.refreshTokenFor(username)
	if !ok {
		return Record{}, ErrNotAuthorized
	}

	log.Debug().Str("username", username).Msg("access token expired, refreshing")

	record, err := s.exchange(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return Record{}, &ExchangeError{Username: username, Err: err}
	}

	s.put(username, record)
	return record, nil
}

// ExchangeCode performs the authorization-code exchange after a successful
// callback. The provider must return a refresh token on this path.
func (s *Store) ExchangeCode(ctx context.Context, username, code string) (Record, error) {
	record, err := s.exchange(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {s.cfg.RedirectURL},
	})
	if err != nil {
		return Record{}, &ExchangeError{Username: username, Err: err}
	}

	if record.RefreshToken == "" {
		return Record{}, &ExchangeError{
			Username: username,
			Err:      errors.New("authorization response carried no refresh token"),
		}
	}

	s.put(username, record)
	return record, nil
}

func (s *Store) exchange(ctx context.Context, form url.Values) (Record, error) {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return Record{}, ErrInvalidClientKeys
	}

	body, err := s.dispatcher.Send(ctx, http.MethodPost, s.cfg.TokenURL, dispatch.Options{
		Headers: map[string]string{
			"Authorization": basicAuth(s.cfg.ClientID, s.cfg.ClientSecret),
		},
		Form:       form,
		ExpectBody: true,
	})
	if err != nil {
		return Record{}, err
	}

	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return Record{}, fmt.Errorf("malformed token response: %w", err)
	}
	record.ExpiresAt = time.Now().Add(time.Duration(record.ExpiresIn) * time.Second)

	return record, nil
}

// put replaces the user's access token and, when the provider issued one,
// the refresh token. Providers commonly omit the refresh token on refresh
// responses; the previously stored one is kept in that case.
func (s *Store) put(username string, record Record) {
	s.tokens.Set(username, record)

	if record.RefreshToken != "" {
		s.mu.Lock()
		s.refresh[username] = record.RefreshToken
		s.mu.Unlock()
	}
}

func (s *Store) refreshTokenFor(username string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refreshToken, ok := s.refresh[username]
	return refreshToken, ok
}

// basicAuth builds the provider's client authentication header. The
// credential pair is never logged.
func basicAuth(clientID, clientSecret string) string {
	credentials := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
	return "Basic " + credentials
}
