package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/pluviograph/backend-go/internal/cache"
	"github.com/pluviograph/backend-go/pkg/http/client"
)

// Location is a resolved place.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"displayName"`
}

// Geocoder resolves free-text place names to coordinates through a
// Nominatim-style endpoint. The direct request is tried first; on
// failure the same lookup is replayed through a relay URL, which
// exists to sidestep upstream access restrictions.
type Geocoder struct {
	direct   client.Interface
	relay    client.Interface
	baseURL  string
	relayURL string
	cache    *cache.ResponseCache
}

type Options struct {
	BaseURL  string
	RelayURL string
	Client   client.Interface
	// RelayClient issues the relayed request; defaults to a bare
	// client when RelayURL is set.
	RelayClient client.Interface
	Cache       *cache.ResponseCache
}

func New(opts Options) *Geocoder {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if opts.Client == nil {
		opts.Client = client.New(client.Options{BaseURL: opts.BaseURL})
	}
	if opts.RelayClient == nil && opts.RelayURL != "" {
		opts.RelayClient = client.New(client.Options{})
	}

	return &Geocoder{
		direct:   opts.Client,
		relay:    opts.RelayClient,
		baseURL:  opts.BaseURL,
		relayURL: opts.RelayURL,
		cache:    opts.Cache,
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Locate resolves place to coordinates. A place the geocoder does not
// know is reported as (zero Location, false, nil) so callers can
// distinguish "no match" from "lookup failed".
func (g *Geocoder) Locate(ctx context.Context, place string) (Location, bool, error) {
	cacheKey := cache.Key("geocode", place)
	if g.cache != nil {
		var cached []Location
		if g.cache.GetJSON(ctx, cacheKey, &cached) {
			if len(cached) == 0 {
				return Location{}, false, nil
			}
			return cached[0], true, nil
		}
	}

	path := fmt.Sprintf("/search?format=json&limit=1&q=%s", url.QueryEscape(place))

	var results []nominatimResult
	err := g.direct.GetJSON(ctx, path, &results)
	if err != nil && g.relay != nil {
		log.Debug().Err(err).Str("place", place).Msg("Direct geocode failed, trying relay")
		relayPath := g.relayURL + url.QueryEscape(g.baseURL+path)
		err = g.relay.GetJSON(ctx, relayPath, &results)
	}
	if err != nil {
		return Location{}, false, fmt.Errorf("geocoding %q: %w", place, err)
	}

	if len(results) == 0 {
		if g.cache != nil {
			g.cache.PutJSON(ctx, cacheKey, []Location{})
		}
		return Location{}, false, nil
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return Location{}, false, fmt.Errorf("geocoding %q: malformed coordinates in response", place)
	}

	loc := Location{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: results[0].DisplayName,
	}

	if g.cache != nil {
		g.cache.PutJSON(ctx, cacheKey, []Location{loc})
	}

	return loc, true, nil
}
