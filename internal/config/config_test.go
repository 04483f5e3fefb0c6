package config

import (
	"context"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadFrom resolves configuration from a fixed map, isolating tests from the
// developer's real environment.
func loadFrom(t *testing.T, env map[string]string) (Config, error) {
	t.Helper()
	return load(context.Background(), envconfig.MapLookuper(env))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadFrom(t, nil)
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, "https://accounts.spotify.com/api/token", cfg.Spotify.TokenURL)
	assert.Equal(t, "https://www.googleapis.com/customsearch/v1", cfg.Search.APIURL)
}

func TestLoad_PortOverride(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{"SERVER_PORT": "9999"})
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoad_NonNumericPortFails(t *testing.T) {
	_, err := loadFrom(t, map[string]string{"SERVER_PORT": "eight-thousand"})
	assert.Error(t, err)
}

func TestMissingCredentials_AllAbsent(t *testing.T) {
	cfg, err := loadFrom(t, nil)
	require.NoError(t, err)

	missing := cfg.MissingCredentials()
	assert.ElementsMatch(t, []string{
		"SPOTIFY_CLIENT_ID",
		"SPOTIFY_CLIENT_SECRET",
		"SPOTIFY_REDIRECT_URL",
		"GOOGLE_API_KEY",
		"GOOGLE_SEARCH_ENGINE_ID",
	}, missing)
}

func TestMissingCredentials_NoneMissing(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{
		"SPOTIFY_CLIENT_ID":       "client-id",
		"SPOTIFY_CLIENT_SECRET":   "client-secret",
		"SPOTIFY_REDIRECT_URL":    "http://localhost:8888/authorize-callback",
		"GOOGLE_API_KEY":          "search-key",
		"GOOGLE_SEARCH_ENGINE_ID": "engine-id",
	})
	require.NoError(t, err)

	assert.Empty(t, cfg.MissingCredentials())
	assert.True(t, cfg.Spotify.Valid())
	assert.True(t, cfg.Search.Valid())
}

func TestSearchConfig_InvalidWhenKeyMissing(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{
		"GOOGLE_SEARCH_ENGINE_ID": "engine-id",
	})
	require.NoError(t, err)
	assert.False(t, cfg.Search.Valid())
}
