package datasource

import (
	"context"
	"time"

	"github.com/pluviograph/backend-go/internal/geocode"
	"github.com/pluviograph/backend-go/internal/models"
)

const (
	// DefaultLimit caps station search results when the caller does
	// not ask for a specific count.
	DefaultLimit = 20
	// DefaultBuffer is the bounding-box half-width in degrees around
	// a search coordinate.
	DefaultBuffer = 0.25
	// maxPages bounds transparent pagination so a misbehaving
	// upstream cannot loop us forever.
	maxPages = 25
	// pageSize is the per-request record limit for paginated fetches.
	pageSize = 1000
)

// SearchOptions tune station searches and datatype discovery. Zero
// values mean provider defaults.
type SearchOptions struct {
	Limit     int
	Buffer    float64
	DatasetID string
}

func (o SearchOptions) limitOrDefault() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

func (o SearchOptions) bufferOrDefault() float64 {
	if o.Buffer <= 0 {
		return DefaultBuffer
	}
	return o.Buffer
}

// DataSource is the capability contract every provider adapter
// implements. Search misses and stations without discoverable
// parameters are empty results, not errors.
type DataSource interface {
	Capabilities() models.ProviderCapabilities

	// FindStationsByCity geocodes city and delegates to coordinate
	// search. An unresolvable city yields an empty slice.
	FindStationsByCity(ctx context.Context, city string, opts SearchOptions) ([]models.Station, error)

	// FindStationsByCoords returns stations inside a bounding box of
	// half-width opts.Buffer degrees centered on (lat, lon), capped
	// at opts.Limit results. Grid providers synthesize one virtual
	// station at the exact coordinate instead.
	FindStationsByCoords(ctx context.Context, lat, lon float64, opts SearchOptions) ([]models.Station, error)

	// AvailableDataTypes lists the parameters observable at a
	// station, with coverage bounds clamped to the station's own.
	AvailableDataTypes(ctx context.Context, stationID string, opts SearchOptions) ([]models.DataType, error)

	// FetchData returns normalized records for every requested
	// station and parameter inside the date range, paginating
	// upstream results transparently.
	FetchData(ctx context.Context, params models.FetchParams) ([]models.TimeSeriesRecord, error)
}

// Geocoder is the slice of the geocoding helper adapters consume.
type Geocoder interface {
	Locate(ctx context.Context, place string) (geocode.Location, bool, error)
}

// boundingBox returns (minLat, minLon, maxLat, maxLon) for a square of
// half-width buffer degrees around the point.
func boundingBox(lat, lon, buffer float64) (float64, float64, float64, float64) {
	return lat - buffer, lon - buffer, lat + buffer, lon + buffer
}

// filterDataTypes keeps only ids present in the provider's supported
// set; an empty or fully-invalid selection falls back to defaults so a
// stale UI selection never hard-fails a request.
func filterDataTypes(requested []string, supported map[string]bool, defaults []string) []string {
	var kept []string
	for _, id := range requested {
		if supported[id] {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return defaults
	}
	return kept
}

// clampToWindow drops records outside the requested date range.
// Upstreams apply date bounds loosely and can return samples just past
// the boundary; the end date is inclusive of its whole day.
func clampToWindow(records []models.TimeSeriesRecord, params models.FetchParams) []models.TimeSeriesRecord {
	start, err := time.Parse("2006-01-02", params.StartDate)
	if err != nil {
		return records
	}
	end, err := time.Parse("2006-01-02", params.EndDate)
	if err != nil {
		return records
	}
	end = end.Add(24*time.Hour - time.Second)
	return models.FilterWindow(records, start, end)
}
