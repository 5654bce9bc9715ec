package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluviograph/backend-go/internal/models"
)

func TestGridStationIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := GridStationID(41.8756, -87.6244)
	assert.Equal(t, "GRID:41.8756,-87.6244", id)

	lat, lon, ok := ParseGridStationID(id)
	require.True(t, ok)
	assert.InDelta(t, 41.8756, lat, 1e-9)
	assert.InDelta(t, -87.6244, lon, 1e-9)
}

func TestParseGridStationIDRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", "KORD", "GRID:", "GRID:41.8756", "GRID:a,b", "GRID:41.8,-87.6,extra"} {
		_, _, ok := ParseGridStationID(id)
		assert.False(t, ok, id)
	}
}

func TestGriddedFindStationsByCoordsSynthesizesVirtualStation(t *testing.T) {
	t.Parallel()

	adapter := NewGridded(Options{})

	stations, err := adapter.FindStationsByCoords(context.Background(), 41.8756, -87.6244, SearchOptions{})

	require.NoError(t, err)
	require.Len(t, stations, 1)
	got := stations[0]
	assert.Equal(t, "GRID:41.8756,-87.6244", got.ID)
	assert.Equal(t, models.SourceGridded, got.Source)
	assert.True(t, got.IsVirtual)
	assert.InDelta(t, 41.8756, got.Latitude, 1e-9)
}

func TestGriddedFindStationsByCity(t *testing.T) {
	t.Parallel()

	adapter := NewGridded(Options{Geocoder: chicagoGeocoder()})

	stations, err := adapter.FindStationsByCity(context.Background(), "Chicago", SearchOptions{})

	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.True(t, stations[0].IsVirtual)
}

func TestGriddedAvailableDataTypes(t *testing.T) {
	t.Parallel()

	adapter := NewGridded(Options{})

	datatypes, err := adapter.AvailableDataTypes(context.Background(), GridStationID(41.9, -87.6), SearchOptions{})
	require.NoError(t, err)
	require.Len(t, datatypes, 1)
	assert.Equal(t, "precipitation_amount", datatypes[0].ID)

	// Non-grid identifiers get an empty list, not an error.
	datatypes, err = adapter.AvailableDataTypes(context.Background(), "KORD", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, datatypes)
}

func TestGriddedFetchDataReturnsEmpty(t *testing.T) {
	t.Parallel()

	adapter := NewGridded(Options{})

	records, err := adapter.FetchData(context.Background(), models.FetchParams{
		StationIDs: []string{GridStationID(41.9, -87.6)},
		StartDate:  "2024-11-01",
		EndDate:    "2024-11-02",
	})

	require.NoError(t, err)
	assert.Empty(t, records)
}
