package datasource

import (
	"context"

	"github.com/pluviograph/backend-go/internal/geocode"
)

// mockGeocoder returns a fixed location, recording lookups.
type mockGeocoder struct {
	location geocode.Location
	found    bool
	err      error
	calls    int
}

func (m *mockGeocoder) Locate(_ context.Context, _ string) (geocode.Location, bool, error) {
	m.calls++
	return m.location, m.found, m.err
}

func chicagoGeocoder() *mockGeocoder {
	return &mockGeocoder{
		location: geocode.Location{Latitude: 41.8756, Longitude: -87.6244, DisplayName: "Chicago"},
		found:    true,
	}
}
