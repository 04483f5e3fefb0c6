// Package flow drives the three-step OAuth authorization dance with the
// music provider: initiate with a redirect, wait for the provider callback,
// and validate the callback's CSRF correlation before any token exchange.
package flow

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nowbridge/nowbridge/internal/cache"
	"github.com/nowbridge/nowbridge/internal/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	// StateCookie carries the CSRF state across the provider round-trip.
	StateCookie = "nowbridge_auth_state"
	// UsernameCookie correlates the callback with the requesting user.
	UsernameCookie = "nowbridge_auth_user"

	stateTTL      = 10 * time.Minute
	stateCapacity = 1000
	stateBytes    = 24
)

// ValidationError is a client/flow integrity failure: always 400-class and
// never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "authorization callback rejected: " + e.Reason
}

func (e *ValidationError) Status() (int, string) {
	return http.StatusBadRequest, e.Reason
}

var (
	ErrMissingCookies  = &ValidationError{Reason: "correlation cookies missing"}
	ErrStateMismatch   = &ValidationError{Reason: "state does not match authorization request"}
	ErrMissingUsername = &ValidationError{Reason: "username cookie missing"}
	ErrMissingCode     = &ValidationError{Reason: "authorization code missing"}
)

// Controller manages per-user authorization round-trips. Issued states are
// held in a short-TTL registry and consumed exactly once: replaying a
// callback, valid or not, fails.
type Controller struct {
	cfg    config.SpotifyConfig
	oauth  *oauth2.Config
	states *cache.Memory[string]
}

func NewController(cfg config.SpotifyConfig) *Controller {
	return &Controller{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      []string{"user-read-currently-playing"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		states: cache.NewMemory[string](stateTTL, stateCapacity),
	}
}

// Begin starts an authorization round-trip: registers a fresh CSRF state for
// the user, sets both correlation cookies, and redirects to the provider's
// authorize URL.
func (c *Controller) Begin(w http.ResponseWriter, r *http.Request, username string) error {
	if !c.cfg.Valid() {
		return errors.New("invalid keys: spotify oauth client not fully configured")
	}

	state, err := randomState()
	if err != nil {
		return fmt.Errorf("could not generate state: %w", err)
	}

	c.states.Set(state, username)

	setCookie(w, StateCookie, state)
	setCookie(w, UsernameCookie, username)

	log.Info().Str("username", username).Msg("redirecting to provider for authorization")
	http.Redirect(w, r, c.oauth.AuthCodeURL(state), http.StatusFound)

	return nil
}

// Callback validates a provider callback and, on success, consumes the CSRF
// state and returns the username and authorization code for exchange.
// Validation failures never mutate token state.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) (username, code string, err error) {
	stateCookie, cookieErr := r.Cookie(StateCookie)
	if cookieErr != nil {
		return "", "", ErrMissingCookies
	}

	state := r.URL.Query().Get("state")
	if state == "" || state != stateCookie.Value {
		return "", "", ErrStateMismatch
	}

	registered, ok := c.states.Get(state)
	if !ok {
		// expired, or already consumed by an earlier callback
		return "", "", ErrStateMismatch
	}

	userCookie, cookieErr := r.Cookie(UsernameCookie)
	if cookieErr != nil || userCookie.Value == "" {
		return "", "", ErrMissingUsername
	}
	if userCookie.Value != registered {
		return "", "", ErrStateMismatch
	}

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		return "", "", &ValidationError{Reason: "provider refused authorization: " + providerErr}
	}

	code = r.URL.Query().Get("code")
	if code == "" {
		return "", "", ErrMissingCode
	}

	// all checks passed: the state is consumed and may not be replayed
	c.states.Invalidate(state)
	clearCookie(w, StateCookie)
	clearCookie(w, UsernameCookie)

	return userCookie.Value, code, nil
}

func setCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func randomState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
