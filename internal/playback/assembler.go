// Package playback fetches the provider's "now playing" state and shapes it
// into the stable track structure served to clients.
package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/nowbridge/nowbridge/internal/config"
	"github.com/nowbridge/nowbridge/internal/dispatch"
	"github.com/nowbridge/nowbridge/internal/token"
)

// Album is the album portion of a TrackInfo.
type Album struct {
	Name        string   `json:"name"`
	ReleaseDate string   `json:"release_date"`
	Images      []string `json:"images"`
}

// TrackInfo is the response shape for a current-song request. It is built
// fresh for every request and never cached; only its upstream inputs are.
type TrackInfo struct {
	IsPlaying bool     `json:"is_playing"`
	Name      string   `json:"name"`
	Artists   []string `json:"artists"`
	Album     Album    `json:"album"`
}

// ArtworkResolver resolves album image URLs for a track when the provider
// supplies none. Implementations must never fail the request: a lookup
// problem yields an empty result.
type ArtworkResolver interface {
	Resolve(ctx context.Context, track TrackInfo) []string
}

// nowPlayingResponse is the provider's raw currently-playing payload.
type nowPlayingResponse struct {
	IsPlaying bool `json:"is_playing"`
	Item      struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Name        string `json:"name"`
			ReleaseDate string `json:"release_date"`
			Images      []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
	} `json:"item"`
}

// Assembler builds TrackInfo values from the provider's now-playing
// endpoint, backfilling album name and artwork where the provider leaves
// gaps.
type Assembler struct {
	cfg        config.SpotifyConfig
	dispatcher *dispatch.Client
	artwork    ArtworkResolver
}

func NewAssembler(cfg config.SpotifyConfig, dispatcher *dispatch.Client, artwork ArtworkResolver) *Assembler {
	return &Assembler{
		cfg:        cfg,
		dispatcher: dispatcher,
		artwork:    artwork,
	}
}

// Assemble fetches the user's currently playing track. When nothing is
// playing the zero-valued TrackInfo is returned and no artwork resolution is
// attempted.
func (a *Assembler) Assemble(ctx context.Context, record token.Record) (TrackInfo, error) {
	body, err := a.dispatcher.Send(ctx, http.MethodGet, a.cfg.APIURL+"/me/player/currently-playing", dispatch.Options{
		Headers: map[string]string{
			"Authorization": record.AuthorizationHeader(),
		},
	})
	if err != nil {
		return TrackInfo{}, err
	}

	// the provider answers 204 with no body when nothing is playing
	if len(body) == 0 {
		return notPlaying(), nil
	}

	var raw nowPlayingResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return TrackInfo{}, fmt.Errorf("malformed now-playing response: %w", err)
	}

	if !raw.IsPlaying {
		return notPlaying(), nil
	}

	info := TrackInfo{
		IsPlaying: true,
		Name:      raw.Item.Name,
		Artists:   []string{},
		Album: Album{
			Name:        raw.Item.Album.Name,
			ReleaseDate: raw.Item.Album.ReleaseDate,
			Images:      []string{},
		},
	}

	for _, artist := range raw.Item.Artists {
		if artist.Name == "" {
			continue
		}
		info.Artists = append(info.Artists, artist.Name)
	}

	for _, image := range raw.Item.Album.Images {
		info.Album.Images = append(info.Album.Images, image.URL)
	}

	if info.Album.Name == "" {
		info.Album.Name = albumFromTrackName(info.Name)
	}

	if len(info.Album.Images) == 0 && a.artwork != nil {
		info.Album.Images = a.artwork.Resolve(ctx, info)
		if info.Album.Images == nil {
			info.Album.Images = []string{}
		}
	}

	return info, nil
}

func notPlaying() TrackInfo {
	return TrackInfo{
		Artists: []string{},
		Album:   Album{Images: []string{}},
	}
}

// Track names often embed the album in a qualifier such as
// "Song (Deluxe Edition)" or "Song [Remix]". Patterns are tried in priority
// order; the last occurrence of the first matching pattern wins. The hyphen
// capture is greedy so a span containing hyphens of its own (a B-Side, say)
// survives intact.
var albumPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\(([^()]*)\)`),
	regexp.MustCompile(`\[([^\[\]]*)\]`),
	regexp.MustCompile(`-(.*)-`),
}

func albumFromTrackName(name string) string {
	for _, pattern := range albumPatterns {
		matches := pattern.FindAllStringSubmatch(name, -1)
		if len(matches) == 0 {
			continue
		}
		return strings.TrimSpace(matches[len(matches)-1][1])
	}
	return ""
}
