package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pluviograph/backend-go/internal/cache"
	"github.com/pluviograph/backend-go/internal/models"
	"github.com/pluviograph/backend-go/pkg/http/client"
)

const (
	synopticProviderID = "synoptic"
	// milesPerDegree approximates one degree of latitude for the
	// radius-based station search.
	milesPerDegree = 69.0
)

var synopticVariables = struct {
	supported map[string]bool
	defaults  []string
}{
	supported: map[string]bool{
		"precip_accum":          true,
		"precip_accum_one_hour": true,
		"air_temp":              true,
	},
	defaults: []string{"precip_accum_one_hour"},
}

func SynopticCapabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{
		ID:                    synopticProviderID,
		Name:                  "Synoptic Mesonet",
		RequiresAPIKey:        true,
		SupportsStationSearch: true,
		SupportsSpatialSearch: true,
		MaxDateRangeDays:      31,
	}
}

// Synoptic is the mesonet adapter. Authentication travels as a token
// query parameter on every request.
type Synoptic struct {
	httpClient client.Interface
	token      string
	cache      *cache.ResponseCache
	geocoder   Geocoder
}

func NewSynoptic(opts Options) *Synoptic {
	return &Synoptic{
		httpClient: client.New(client.Options{
			BaseURL: opts.BaseURL,
			Timeout: opts.Timeout,
		}),
		token:    opts.credential(),
		cache:    opts.Cache,
		geocoder: opts.Geocoder,
	}
}

func (s *Synoptic) Capabilities() models.ProviderCapabilities { return SynopticCapabilities() }

// wrapErr builds a provider error without leaking the token. API
// errors keep their chain for status classification; transport errors
// embed the request URL, token included, so those are redacted.
func (s *Synoptic) wrapErr(op string, err error) error {
	var apiErr *client.APIError
	if s.token == "" || errors.As(err, &apiErr) {
		return newProviderError(synopticProviderID, op, err)
	}
	redacted := strings.ReplaceAll(err.Error(), s.token, "REDACTED")
	return newProviderError(synopticProviderID, op, errors.New(redacted))
}

type synopticStation struct {
	STID           string `json:"STID"`
	Name           string `json:"NAME"`
	Latitude       string `json:"LATITUDE"`
	Longitude      string `json:"LONGITUDE"`
	Elevation      string `json:"ELEVATION"`
	Timezone       string `json:"TIMEZONE"`
	PeriodOfRecord struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"PERIOD_OF_RECORD"`
	SensorVariables map[string]map[string]json.RawMessage `json:"SENSOR_VARIABLES"`
	Observations    map[string]json.RawMessage            `json:"OBSERVATIONS"`
}

type synopticResponse struct {
	Station []synopticStation `json:"STATION"`
	Summary struct {
		ResponseCode    int    `json:"RESPONSE_CODE"`
		ResponseMessage string `json:"RESPONSE_MESSAGE"`
	} `json:"SUMMARY"`
}

func (st synopticStation) toModel() models.Station {
	lat, _ := strconv.ParseFloat(st.Latitude, 64)
	lon, _ := strconv.ParseFloat(st.Longitude, 64)

	station := models.Station{
		ID:        st.STID,
		Source:    models.SourceSynoptic,
		Name:      st.Name,
		Latitude:  lat,
		Longitude: lon,
		MinDate:   isoDate(st.PeriodOfRecord.Start),
		MaxDate:   isoDate(st.PeriodOfRecord.End),
	}
	if st.Timezone != "" {
		tz := st.Timezone
		station.Timezone = &tz
	}
	if elev, err := strconv.ParseFloat(st.Elevation, 64); err == nil {
		station.Elevation = &elev
	}
	return station
}

func isoDate(timestamp string) string {
	if len(timestamp) >= 10 {
		return timestamp[:10]
	}
	return ""
}

func (s *Synoptic) FindStationsByCity(ctx context.Context, city string, opts SearchOptions) ([]models.Station, error) {
	loc, found, err := s.geocoder.Locate(ctx, city)
	if err != nil {
		return nil, newProviderError(synopticProviderID, "geocoding city", err)
	}
	if !found {
		return []models.Station{}, nil
	}
	return s.FindStationsByCoords(ctx, loc.Latitude, loc.Longitude, opts)
}

func (s *Synoptic) FindStationsByCoords(ctx context.Context, lat, lon float64, opts SearchOptions) ([]models.Station, error) {
	limit := opts.limitOrDefault()
	buffer := opts.bufferOrDefault()

	cacheKey := cache.Key("synoptic:search",
		fmt.Sprintf("%.4f", lat), fmt.Sprintf("%.4f", lon),
		fmt.Sprintf("%d", limit), fmt.Sprintf("%.4f", buffer))

	var stations []models.Station
	if s.cache != nil && s.cache.GetJSON(ctx, cacheKey, &stations) {
		return stations, nil
	}

	radiusMiles := buffer * milesPerDegree
	path := fmt.Sprintf("/stations/metadata?token=%s&radius=%.4f,%.4f,%.1f&limit=%d&status=active",
		s.token, lat, lon, radiusMiles, limit)

	var resp synopticResponse
	if err := s.httpClient.GetJSON(ctx, path, &resp); err != nil {
		return nil, s.wrapErr("searching stations", err)
	}

	stations = make([]models.Station, 0, len(resp.Station))
	for _, st := range resp.Station {
		stations = append(stations, st.toModel())
	}

	if s.cache != nil {
		s.cache.PutJSON(ctx, cacheKey, stations)
	}
	return stations, nil
}

func (s *Synoptic) AvailableDataTypes(ctx context.Context, stationID string, _ SearchOptions) ([]models.DataType, error) {
	cacheKey := cache.Key("synoptic:datatypes", stationID)

	var datatypes []models.DataType
	if s.cache != nil && s.cache.GetJSON(ctx, cacheKey, &datatypes) {
		return datatypes, nil
	}

	path := fmt.Sprintf("/stations/metadata?token=%s&stid=%s&sensorvars=1", s.token, stationID)

	var resp synopticResponse
	if err := s.httpClient.GetJSON(ctx, path, &resp); err != nil {
		return nil, s.wrapErr("listing sensor variables", err)
	}

	datatypes = []models.DataType{}
	if len(resp.Station) > 0 {
		st := resp.Station[0]
		station := st.toModel()
		for variable := range st.SensorVariables {
			dt := models.DataType{ID: variable, Name: variable}
			datatypes = append(datatypes, dt.ClampTo(station))
		}
	}

	if s.cache != nil {
		s.cache.PutJSON(ctx, cacheKey, datatypes)
	}
	return datatypes, nil
}

func (s *Synoptic) FetchData(ctx context.Context, params models.FetchParams) ([]models.TimeSeriesRecord, error) {
	variables := filterDataTypes(params.DataTypes, synopticVariables.supported, synopticVariables.defaults)
	units := unitsOrDefault(params.Units)

	cacheKey := cache.Key("synoptic:data", strings.Join(params.StationIDs, ","),
		params.StartDate, params.EndDate, string(units),
		strings.Join(variables, ","))

	var records []models.TimeSeriesRecord
	if s.cache != nil && s.cache.GetJSON(ctx, cacheKey, &records) {
		return records, nil
	}

	unitsParam := "english"
	if units == models.UnitsMetric {
		unitsParam = "metric"
	}

	path := fmt.Sprintf("/stations/timeseries?token=%s&stid=%s&start=%s&end=%s&vars=%s&units=%s&obtimezone=utc",
		s.token, strings.Join(params.StationIDs, ","),
		synopticTime(params.StartDate, false), synopticTime(params.EndDate, true),
		strings.Join(variables, ","), unitsParam)

	var resp synopticResponse
	if err := s.httpClient.GetJSON(ctx, path, &resp); err != nil {
		return nil, s.wrapErr("fetching timeseries", err)
	}

	records = []models.TimeSeriesRecord{}
	for _, st := range resp.Station {
		records = append(records, parseSynopticObservations(st, variables)...)
	}

	records = clampToWindow(records, params)
	models.SortRecords(records)

	if s.cache != nil {
		s.cache.PutJSON(ctx, cacheKey, records)
	}
	return records, nil
}

// synopticTime converts an ISO date into the YYYYMMDDhhmm stamp the
// timeseries endpoint wants, end dates running to end of day.
func synopticTime(isoDate string, endOfDay bool) string {
	compact := strings.ReplaceAll(isoDate, "-", "")
	if endOfDay {
		return compact + "2359"
	}
	return compact + "0000"
}

// parseSynopticObservations joins the parallel arrays in OBSERVATIONS:
// one date_time array plus one value array per requested variable,
// suffixed with the sensor set number.
func parseSynopticObservations(st synopticStation, variables []string) []models.TimeSeriesRecord {
	rawTimes, ok := st.Observations["date_time"]
	if !ok {
		return nil
	}

	var timestamps []string
	if err := json.Unmarshal(rawTimes, &timestamps); err != nil {
		return nil
	}

	var records []models.TimeSeriesRecord
	for _, variable := range variables {
		raw, ok := st.Observations[variable+"_set_1"]
		if !ok {
			continue
		}

		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			continue
		}

		interval := models.IntervalInstant
		if strings.Contains(variable, "one_hour") {
			interval = models.IntervalHourly
		}

		for i, v := range values {
			if i >= len(timestamps) || v == nil {
				continue
			}
			ts, err := time.Parse(time.RFC3339, timestamps[i])
			if err != nil {
				continue
			}
			records = append(records, models.TimeSeriesRecord{
				Timestamp: ts.UTC(),
				Value:     *v,
				Interval:  interval,
				Source:    models.SourceSynoptic,
				StationID: st.STID,
				Parameter: variable,
			})
		}
	}

	return records
}
