// Package artwork resolves album art through an image-search provider with
// a long-lived cache. Resolution is a soft dependency: every failure here is
// absorbed and reported as an empty result, so a search outage never
// degrades the playback response.
package artwork

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nowbridge/nowbridge/internal/cache"
	"github.com/nowbridge/nowbridge/internal/config"
	"github.com/nowbridge/nowbridge/internal/dispatch"
	"github.com/nowbridge/nowbridge/internal/playback"
	"github.com/rs/zerolog/log"
)

const (
	// Album art rarely changes, so cached results stay useful for hours.
	cacheTTL      = 10 * time.Hour
	cacheCapacity = 500

	resultCount = 3
)

// Resolver finds album image URLs via the configured search provider,
// consulting a TTL cache keyed by the exact search term.
type Resolver struct {
	cfg        config.SearchConfig
	dispatcher *dispatch.Client
	cache      *cache.Memory[[]string]
}

func NewResolver(cfg config.SearchConfig, dispatcher *dispatch.Client) *Resolver {
	return &Resolver{
		cfg:        cfg,
		dispatcher: dispatcher,
		cache:      cache.NewMemory[[]string](cacheTTL, cacheCapacity),
	}
}

// searchResponse is the subset of the search provider's payload in use.
type searchResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
}

// Resolve returns image URLs for the track's album, possibly empty. It
// never returns an error: a missing search configuration, an empty search
// term, or any dispatch failure yields an empty result.
func (r *Resolver) Resolve(ctx context.Context, track playback.TrackInfo) []string {
	term := searchTerm(track)
	if term == "" {
		return nil
	}

	if !r.cfg.Valid() {
		log.Warn().Msg("invalid keys: image search not configured, skipping artwork resolution")
		return nil
	}

	if links, ok := r.cache.Get(term); ok {
		return links
	}

	body, err := r.dispatcher.Send(ctx, http.MethodGet, r.cfg.APIURL, dispatch.Options{
		Query: url.Values{
			"q":          {term},
			"key":        {r.cfg.APIKey},
			"cx":         {r.cfg.EngineID},
			"num":        {strconv.Itoa(resultCount)},
			"safe":       {"medium"},
			"searchType": {"image"},
		},
		ExpectBody: true,
	})
	if err != nil {
		log.Warn().Err(err).Str("term", term).Msg("artwork search failed, continuing without images")
		return nil
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		log.Warn().Err(err).Str("term", term).Msg("malformed artwork search response")
		return nil
	}

	links := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Link == "" {
			continue
		}
		links = append(links, item.Link)
	}

	r.cache.Set(term, links)
	return links
}

// searchTerm derives the query for a track: album plus artists when both are
// known, album plus track name as a fallback, otherwise track name plus
// artists. Fields are space-joined in that fixed order.
func searchTerm(track playback.TrackInfo) string {
	var parts []string

	if track.Album.Name != "" {
		parts = append(parts, track.Album.Name)
		if len(track.Artists) > 0 {
			parts = append(parts, track.Artists...)
		} else if track.Name != "" {
			parts = append(parts, track.Name)
		}
	} else {
		if track.Name != "" {
			parts = append(parts, track.Name)
		}
		parts = append(parts, track.Artists...)
	}

	return strings.TrimSpace(strings.Join(parts, " "))
}
