package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluviograph/backend-go/internal/api"
	"github.com/pluviograph/backend-go/internal/cache"
	"github.com/pluviograph/backend-go/internal/datasource"
	"github.com/pluviograph/backend-go/internal/models"
)

type fakeSource struct {
	stations  []models.Station
	datatypes []models.DataType
	records   map[string][]models.TimeSeriesRecord
	errs      map[string]error
	searchErr error

	lastOpts datasource.SearchOptions
	lastCity string
}

func (f *fakeSource) Capabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{ID: "fake", Name: "Fake Provider"}
}

func (f *fakeSource) FindStationsByCity(_ context.Context, city string, opts datasource.SearchOptions) ([]models.Station, error) {
	f.lastCity = city
	f.lastOpts = opts
	return f.stations, f.searchErr
}

func (f *fakeSource) FindStationsByCoords(_ context.Context, _, _ float64, opts datasource.SearchOptions) ([]models.Station, error) {
	f.lastOpts = opts
	return f.stations, f.searchErr
}

func (f *fakeSource) AvailableDataTypes(_ context.Context, _ string, opts datasource.SearchOptions) ([]models.DataType, error) {
	f.lastOpts = opts
	return f.datatypes, f.searchErr
}

func (f *fakeSource) FetchData(_ context.Context, params models.FetchParams) ([]models.TimeSeriesRecord, error) {
	id := params.StationIDs[0]
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.records[id], nil
}

func newTestRegistry(source *fakeSource) *datasource.Registry {
	registry := datasource.NewRegistry()
	registry.Register(source.Capabilities(), func(datasource.Options) datasource.DataSource {
		return source
	})
	registry.Register(models.ProviderCapabilities{ID: "locked", RequiresAPIKey: true},
		func(datasource.Options) datasource.DataSource { return source })
	return registry
}

func request(params map[string]string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{QueryStringParameters: params}
}

func TestStationsHandlerCoordinateSearch(t *testing.T) {
	source := &fakeSource{stations: []models.Station{{ID: "S1", Name: "First"}}}
	h := NewStationsHandler(newTestRegistry(source), datasource.Options{}, nil)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{
		"provider": "fake",
		"lat":      "41.8756",
		"lon":      "-87.6244",
		"limit":    "5",
		"buffer":   "0.5",
	}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, source.lastOpts.Limit)
	assert.InDelta(t, 0.5, source.lastOpts.Buffer, 1e-9)

	var body api.StationsResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "stations", body.ResponseType)
	require.Len(t, body.Stations, 1)
	assert.Equal(t, "S1", body.Stations[0].ID)
}

func TestStationsHandlerCitySearch(t *testing.T) {
	source := &fakeSource{stations: []models.Station{{ID: "S1"}}}
	h := NewStationsHandler(newTestRegistry(source), datasource.Options{}, nil)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{
		"provider": "fake",
		"city":     "Chicago",
	}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Chicago", source.lastCity)
}

func TestStationsHandlerDataTypes(t *testing.T) {
	units := "mm"
	source := &fakeSource{datatypes: []models.DataType{{ID: "PRCP", Name: "Precipitation", Units: &units}}}
	h := NewStationsHandler(newTestRegistry(source), datasource.Options{}, nil)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{
		"provider":  "fake",
		"stationId": "S1",
	}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.DataTypesResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "dataTypes", body.ResponseType)
	assert.Equal(t, "S1", body.StationID)
	require.Len(t, body.DataTypes, 1)
	assert.Equal(t, "PRCP", body.DataTypes[0].ID)
}

func TestStationsHandlerProviderCatalog(t *testing.T) {
	h := NewStationsHandler(newTestRegistry(&fakeSource{}), datasource.Options{}, nil)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{"providers": ""}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.ProvidersResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	require.Len(t, body.Providers, 2)
	assert.Equal(t, "fake", body.Providers[0].ID)
}

func TestStationsHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   int
	}{
		{"unknown provider", map[string]string{"provider": "nope", "lat": "0", "lon": "0"}, http.StatusNotFound},
		{"missing credentials", map[string]string{"provider": "locked", "lat": "0", "lon": "0"}, http.StatusUnauthorized},
		{"invalid coordinates", map[string]string{"provider": "fake", "lat": "91", "lon": "0"}, http.StatusBadRequest},
		{"missing coordinates", map[string]string{"provider": "fake"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStationsHandler(newTestRegistry(&fakeSource{}), datasource.Options{}, nil)
			resp, err := h.HandleRequest(context.Background(), request(tt.params))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

type snapshotS3 struct {
	objects map[string][]byte
}

func (m *snapshotS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := m.objects[*params.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (m *snapshotS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[*params.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func TestStationsHandlerServesFromSnapshot(t *testing.T) {
	snapshots := cache.NewS3StationCache(&snapshotS3{}, "stations-bucket", time.Hour)
	require.NoError(t, snapshots.SaveStations(context.Background(), "fake", []models.Station{
		{ID: "NEAR", Latitude: 41.9, Longitude: -87.7},
		{ID: "FAR", Latitude: 10.0, Longitude: 10.0},
	}))

	// Any upstream call would be a snapshot miss.
	source := &fakeSource{searchErr: errors.New("should not reach upstream")}
	h := NewStationsHandler(newTestRegistry(source), datasource.Options{}, nil).WithSnapshots(snapshots)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{
		"provider": "fake",
		"lat":      "41.8756",
		"lon":      "-87.6244",
	}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.StationsResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	require.Len(t, body.Stations, 1)
	assert.Equal(t, "NEAR", body.Stations[0].ID)
}

func TestStationsHandlerMergesUpstreamIntoSnapshot(t *testing.T) {
	snapshots := cache.NewS3StationCache(&snapshotS3{}, "stations-bucket", time.Hour)

	source := &fakeSource{stations: []models.Station{{ID: "S1", Latitude: 41.9, Longitude: -87.7}}}
	h := NewStationsHandler(newTestRegistry(source), datasource.Options{}, nil).WithSnapshots(snapshots)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{
		"provider": "fake",
		"lat":      "41.8756",
		"lon":      "-87.6244",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	saved, err := snapshots.GetStations(context.Background(), "fake")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "S1", saved[0].ID)
}

func TestStationsHandlerCredentialsAreScopedPerProvider(t *testing.T) {
	source := &fakeSource{stations: []models.Station{{ID: "S1"}}}
	credentials := map[string]string{"locked": "secret"}
	h := NewStationsHandler(newTestRegistry(source), datasource.Options{}, credentials)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{
		"provider": "locked",
		"lat":      "41.8756",
		"lon":      "-87.6244",
	}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStationsHandlerSearchFailure(t *testing.T) {
	source := &fakeSource{searchErr: errors.New("upstream down")}
	h := NewStationsHandler(newTestRegistry(source), datasource.Options{}, nil)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{
		"provider": "fake",
		"lat":      "41.8756",
		"lon":      "-87.6244",
	}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSeriesHandlerPartialBatch(t *testing.T) {
	source := &fakeSource{
		records: map[string][]models.TimeSeriesRecord{
			"A": {{
				Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				Value:     1.5,
				StationID: "A",
				Parameter: "PRCP",
			}},
		},
		errs: map[string]error{"B": errors.New("boom")},
	}
	h := NewSeriesHandler(newTestRegistry(source), datasource.Options{}, nil)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{
		"provider":   "fake",
		"stationIds": "A,B",
		"startDate":  "2024-01-01",
		"endDate":    "2024-01-31",
	}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.SeriesResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "series", body.ResponseType)
	assert.Equal(t, "fake", body.Provider)
	require.NotNil(t, body.Result)
	assert.Equal(t, "partial", string(body.Result.Status))
	assert.Equal(t, []string{"A"}, body.Result.Succeeded)
	require.Len(t, body.Result.Failed, 1)
	assert.Equal(t, "B", body.Result.Failed[0].StationID)
	require.Len(t, body.Result.Records, 1)
	assert.InDelta(t, 1.5, body.Result.Records[0].Value, 1e-9)
}

func TestSeriesHandlerMissingParams(t *testing.T) {
	h := NewSeriesHandler(newTestRegistry(&fakeSource{}), datasource.Options{}, nil)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{
		"provider":   "fake",
		"stationIds": "A",
	}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body api.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Contains(t, body.Error, "startDate")
}

func TestSeriesHandlerUnknownProvider(t *testing.T) {
	h := NewSeriesHandler(newTestRegistry(&fakeSource{}), datasource.Options{}, nil)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{
		"provider":   "nope",
		"stationIds": "A",
		"startDate":  "2024-01-01",
		"endDate":    "2024-01-02",
	}))

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
