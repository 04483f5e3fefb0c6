package config

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server  ServerConfig
	Spotify SpotifyConfig
	Search  SearchConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=8888"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	OutgoingHTTPMaxIdleConns    int `env:"SERVER_OUTGOING_MAX_IDLE_CONNS, default=100"`
	OutgoingHTTPMaxConnsPerHost int `env:"SERVER_OUTGOING_MAX_CONNS_PER_HOST, default=20"`
}

// SpotifyConfig holds the OAuth client credentials for the music provider.
// The URL fields have production defaults and are overridable for testing.
type SpotifyConfig struct {
	ClientID     string `env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	RedirectURL  string `env:"SPOTIFY_REDIRECT_URL"`

	AuthURL  string `env:"SPOTIFY_AUTH_URL, default=https://accounts.spotify.com/authorize"`
	TokenURL string `env:"SPOTIFY_TOKEN_URL, default=https://accounts.spotify.com/api/token"`
	APIURL   string `env:"SPOTIFY_API_URL, default=https://api.spotify.com/v1"`
}

// SearchConfig holds the Google Custom Search credentials used for album
// artwork lookup.
type SearchConfig struct {
	APIURL   string `env:"GOOGLE_SEARCH_API_URL, default=https://www.googleapis.com/customsearch/v1"`
	APIKey   string `env:"GOOGLE_API_KEY"`
	EngineID string `env:"GOOGLE_SEARCH_ENGINE_ID"`
}

// Load reads configuration from the OS environment. Malformed values (a
// non-numeric port, for example) fail the load; missing credentials do not,
// and are reported separately by MissingCredentials.
func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})

	return cfg, err
}

// MissingCredentials returns the names of credential settings that are empty.
// An empty credential is not fatal at startup: the endpoints that need it
// fail descriptively when called.
func (c Config) MissingCredentials() []string {
	var missing []string

	for _, s := range []struct {
		key   string
		value string
	}{
		{"SPOTIFY_CLIENT_ID", c.Spotify.ClientID},
		{"SPOTIFY_CLIENT_SECRET", c.Spotify.ClientSecret},
		{"SPOTIFY_REDIRECT_URL", c.Spotify.RedirectURL},
		{"GOOGLE_API_KEY", c.Search.APIKey},
		{"GOOGLE_SEARCH_ENGINE_ID", c.Search.EngineID},
	} {
		if s.value == "" {
			missing = append(missing, s.key)
		}
	}

	return missing
}

// Valid reports whether the Spotify OAuth client is fully configured.
func (c SpotifyConfig) Valid() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// Valid reports whether the image search client is fully configured.
func (c SearchConfig) Valid() bool {
	return c.APIURL != "" && c.APIKey != "" && c.EngineID != ""
}

// LogSummary writes the resolved non-secret configuration at startup.
func (c Config) LogSummary(logger zerolog.Logger) {
	logger.Info().
		Int("port", c.Server.Port).
		Str("spotify_api_url", c.Spotify.APIURL).
		Str("search_api_url", c.Search.APIURL).
		Str("redirect_url", c.Spotify.RedirectURL).
		Msg("configuration loaded")

	for _, key := range c.MissingCredentials() {
		logger.Warn().Str("key", key).Msg("credential not configured; dependent endpoints will fail")
	}
}
