package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"github.com/pluviograph/backend-go/internal/api"
	"github.com/pluviograph/backend-go/internal/cache"
	"github.com/pluviograph/backend-go/internal/datasource"
	"github.com/pluviograph/backend-go/internal/models"
)

const defaultProvider = "noaa-cdo"

// StationsHandler serves station search, datatype discovery and the
// provider catalog from one endpoint, switching on query parameters
// the way the frontend issues them.
type StationsHandler struct {
	registry *datasource.Registry
	options  datasource.Options
	// credentials maps provider id to its token so one provider's
	// secret never reaches another's adapter.
	credentials map[string]string
	// snapshots, when configured, serves coordinate searches from the
	// per-provider station list in S3 before going upstream.
	snapshots *cache.S3StationCache
}

func NewStationsHandler(registry *datasource.Registry, options datasource.Options, credentials map[string]string) *StationsHandler {
	return &StationsHandler{registry: registry, options: options, credentials: credentials}
}

// WithSnapshots enables the S3 station list fast path.
func (h *StationsHandler) WithSnapshots(snapshots *cache.S3StationCache) *StationsHandler {
	h.snapshots = snapshots
	return h
}

func providerOptions(base datasource.Options, credentials map[string]string, providerID string) datasource.Options {
	opts := base
	opts.Token = credentials[providerID]
	opts.APIKey = ""
	return opts
}

func (h *StationsHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	params := request.QueryStringParameters

	if _, ok := params["providers"]; ok {
		return api.Success(api.NewProvidersResponse(h.registry.List()))
	}

	providerID := params["provider"]
	if providerID == "" {
		providerID = defaultProvider
	}

	ds, err := h.registry.Create(providerID, providerOptions(h.options, h.credentials, providerID))
	if err != nil {
		return providerError(providerID, err)
	}

	opts := parseSearchOptions(params)

	// Datatype discovery for a known station.
	if stationID, ok := params["stationId"]; ok {
		datatypes, err := ds.AvailableDataTypes(ctx, stationID, opts)
		if err != nil {
			log.Error().Err(err).Str("provider", providerID).Str("station_id", stationID).
				Msg("Listing datatypes failed")
			return api.Error("Error listing data types", http.StatusInternalServerError)
		}
		return api.Success(api.NewDataTypesResponse(stationID, datatypes))
	}

	// City search takes precedence over coordinates.
	if city, ok := params["city"]; ok {
		stations, err := ds.FindStationsByCity(ctx, city, opts)
		if err != nil {
			log.Error().Err(err).Str("provider", providerID).Str("city", city).
				Msg("City search failed")
			return api.Error("Error finding stations", http.StatusInternalServerError)
		}
		return api.Success(api.NewStationsResponse(stations))
	}

	lat, lon, err := api.ParseCoordinates(params)
	if err != nil {
		var invalidCoordErr api.InvalidCoordinatesError
		if errors.As(err, &invalidCoordErr) {
			return api.Error(err.Error(), http.StatusBadRequest)
		}
		return api.Error("Invalid parameters", http.StatusBadRequest)
	}

	stations, err := h.searchCoords(ctx, ds, providerID, lat, lon, opts)
	if err != nil {
		log.Error().Err(err).Str("provider", providerID).Msg("Coordinate search failed")
		return api.Error("Error finding stations", http.StatusInternalServerError)
	}

	return api.Success(api.NewStationsResponse(stations))
}

// searchCoords consults the S3 station snapshot before the provider:
// inventories are large and change slowly, so a snapshot hit saves an
// upstream round trip entirely. Upstream results merge back into the
// snapshot best-effort.
func (h *StationsHandler) searchCoords(ctx context.Context, ds datasource.DataSource, providerID string, lat, lon float64, opts datasource.SearchOptions) ([]models.Station, error) {
	if h.snapshots != nil {
		if snap, err := h.snapshots.GetStations(ctx, providerID); err == nil && len(snap) > 0 {
			if filtered := filterByBounds(snap, lat, lon, opts); len(filtered) > 0 {
				log.Debug().Str("provider", providerID).Int("count", len(filtered)).
					Msg("Station search served from snapshot")
				return filtered, nil
			}
		}
	}

	stations, err := ds.FindStationsByCoords(ctx, lat, lon, opts)
	if err != nil {
		return nil, err
	}
	if h.snapshots != nil && len(stations) > 0 {
		h.mergeSnapshot(ctx, providerID, stations)
	}
	return stations, nil
}

func filterByBounds(stations []models.Station, lat, lon float64, opts datasource.SearchOptions) []models.Station {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = datasource.DefaultBuffer
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = datasource.DefaultLimit
	}

	var out []models.Station
	for _, s := range stations {
		if s.Latitude < lat-buffer || s.Latitude > lat+buffer ||
			s.Longitude < lon-buffer || s.Longitude > lon+buffer {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (h *StationsHandler) mergeSnapshot(ctx context.Context, providerID string, found []models.Station) {
	existing, err := h.snapshots.GetStations(ctx, providerID)
	if err != nil {
		return
	}

	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s.ID] = true
	}

	added := false
	for _, s := range found {
		if !seen[s.ID] {
			existing = append(existing, s)
			added = true
		}
	}
	if !added {
		return
	}

	if err := h.snapshots.SaveStations(ctx, providerID, existing); err != nil {
		log.Debug().Err(err).Str("provider", providerID).Msg("Station snapshot write failed")
	}
}

func parseSearchOptions(params map[string]string) datasource.SearchOptions {
	opts := datasource.SearchOptions{DatasetID: params["datasetId"]}
	if limitStr, ok := params["limit"]; ok {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			opts.Limit = limit
		}
	}
	if bufferStr, ok := params["buffer"]; ok {
		if buffer, err := strconv.ParseFloat(bufferStr, 64); err == nil {
			opts.Buffer = buffer
		}
	}
	return opts
}

func providerError(providerID string, err error) (events.APIGatewayProxyResponse, error) {
	switch {
	case errors.Is(err, datasource.ErrUnknownProvider):
		return api.Error("Unknown provider: "+providerID, http.StatusNotFound)
	case errors.Is(err, datasource.ErrCredentialsRequired):
		return api.Error("Provider requires an API key: "+providerID, http.StatusUnauthorized)
	default:
		return api.Error("Error creating provider", http.StatusInternalServerError)
	}
}
