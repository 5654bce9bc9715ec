package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pluviograph/backend-go/internal/cache"
	"github.com/pluviograph/backend-go/internal/models"
	"github.com/pluviograph/backend-go/pkg/http/client"
)

const (
	noaaProviderID     = "noaa-cdo"
	noaaDefaultDataset = "GHCND"
)

// noaaDatasetInterval maps sub-datasets to their sampling interval in
// minutes.
var noaaDatasetInterval = map[string]int{
	"GHCND":      models.IntervalDaily,
	"GSOM":       43200,
	"PRECIP_HLY": models.IntervalHourly,
	"PRECIP_15":  models.IntervalQuarterly,
}

// noaaDatasetTypes whitelists the parameter ids each sub-dataset
// serves; the first default is used when a request carries none that
// apply.
var noaaDatasetTypes = map[string]struct {
	supported map[string]bool
	defaults  []string
}{
	"GHCND":      {map[string]bool{"PRCP": true, "SNOW": true, "SNWD": true, "TMAX": true, "TMIN": true}, []string{"PRCP"}},
	"GSOM":       {map[string]bool{"PRCP": true, "TAVG": true}, []string{"PRCP"}},
	"PRECIP_HLY": {map[string]bool{"HPCP": true}, []string{"HPCP"}},
	"PRECIP_15":  {map[string]bool{"QPCP": true, "QGAG": true}, []string{"QPCP"}},
}

func NOAACapabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{
		ID:                    noaaProviderID,
		Name:                  "NOAA Climate Data Online",
		RequiresAPIKey:        true,
		SupportsStationSearch: true,
		SupportsSpatialSearch: true,
		MaxDateRangeDays:      366,
	}
}

// NOAA is the station-archive adapter. The archive splits its holdings
// into sub-datasets with distinct station identifier schemes; the
// embedded resolver translates between them.
type NOAA struct {
	httpClient client.Interface
	cache      *cache.ResponseCache
	geocoder   Geocoder
	resolver   *IdentifierResolver
}

func NewNOAA(opts Options) *NOAA {
	httpClient := client.New(client.Options{
		BaseURL: opts.BaseURL,
		Timeout: opts.Timeout,
		Headers: map[string]string{"token": opts.credential()},
	})
	return &NOAA{
		httpClient: httpClient,
		cache:      opts.Cache,
		geocoder:   opts.Geocoder,
		resolver:   NewIdentifierResolver(nil),
	}
}

func (n *NOAA) Capabilities() models.ProviderCapabilities { return NOAACapabilities() }

type noaaStationsResponse struct {
	Metadata struct {
		Resultset struct {
			Offset int `json:"offset"`
			Count  int `json:"count"`
			Limit  int `json:"limit"`
		} `json:"resultset"`
	} `json:"metadata"`
	Results []noaaStation `json:"results"`
}

type noaaStation struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Elevation    *float64 `json:"elevation"`
	MinDate      string   `json:"mindate"`
	MaxDate      string   `json:"maxdate"`
	DataCoverage float64  `json:"datacoverage"`
}

func (s noaaStation) toModel() models.Station {
	return models.Station{
		ID:           s.ID,
		Source:       models.SourceNOAA,
		Name:         s.Name,
		Latitude:     s.Latitude,
		Longitude:    s.Longitude,
		Elevation:    s.Elevation,
		MinDate:      s.MinDate,
		MaxDate:      s.MaxDate,
		DataCoverage: s.DataCoverage,
	}
}

func (n *NOAA) FindStationsByCity(ctx context.Context, city string, opts SearchOptions) ([]models.Station, error) {
	loc, found, err := n.geocoder.Locate(ctx, city)
	if err != nil {
		return nil, newProviderError(noaaProviderID, "geocoding city", err)
	}
	if !found {
		return []models.Station{}, nil
	}
	return n.FindStationsByCoords(ctx, loc.Latitude, loc.Longitude, opts)
}

func (n *NOAA) FindStationsByCoords(ctx context.Context, lat, lon float64, opts SearchOptions) ([]models.Station, error) {
	limit := opts.limitOrDefault()
	buffer := opts.bufferOrDefault()
	dataset := opts.DatasetID
	if dataset == "" {
		dataset = noaaDefaultDataset
	}

	cacheKey := cache.Key("noaa:search",
		fmt.Sprintf("%.4f", lat), fmt.Sprintf("%.4f", lon),
		fmt.Sprintf("%d", limit), fmt.Sprintf("%.4f", buffer), dataset)

	var stations []models.Station
	if n.cache != nil && n.cache.GetJSON(ctx, cacheKey, &stations) {
		return stations, nil
	}

	minLat, minLon, maxLat, maxLon := boundingBox(lat, lon, buffer)
	path := fmt.Sprintf("/stations?datasetid=%s&extent=%.4f,%.4f,%.4f,%.4f&limit=%d&sortfield=name",
		url.QueryEscape(dataset), minLat, minLon, maxLat, maxLon, limit)

	var resp noaaStationsResponse
	if err := n.httpClient.GetJSON(ctx, path, &resp); err != nil {
		return nil, newProviderError(noaaProviderID, "searching stations", err)
	}

	stations = make([]models.Station, 0, len(resp.Results))
	for _, s := range resp.Results {
		stations = append(stations, s.toModel())
	}

	if n.cache != nil {
		n.cache.PutJSON(ctx, cacheKey, stations)
	}
	return stations, nil
}

type noaaDataTypesResponse struct {
	Results []struct {
		ID           string  `json:"id"`
		Name         string  `json:"name"`
		MinDate      string  `json:"mindate"`
		MaxDate      string  `json:"maxdate"`
		DataCoverage float64 `json:"datacoverage"`
	} `json:"results"`
}

func (n *NOAA) AvailableDataTypes(ctx context.Context, stationID string, opts SearchOptions) ([]models.DataType, error) {
	cacheKey := cache.Key("noaa:datatypes", stationID)

	var datatypes []models.DataType
	if n.cache != nil && n.cache.GetJSON(ctx, cacheKey, &datatypes) {
		return datatypes, nil
	}

	// Station bounds are needed to clamp datatype coverage, which the
	// archive reports over the whole network rather than per station.
	station, err := n.fetchStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/datatypes?stationid=%s&limit=%d", url.QueryEscape(stationID), pageSize)

	var resp noaaDataTypesResponse
	if err := n.httpClient.GetJSON(ctx, path, &resp); err != nil {
		return nil, newProviderError(noaaProviderID, "listing datatypes", err)
	}

	datatypes = make([]models.DataType, 0, len(resp.Results))
	for _, dt := range resp.Results {
		d := models.DataType{
			ID:           dt.ID,
			Name:         dt.Name,
			MinDate:      dt.MinDate,
			MaxDate:      dt.MaxDate,
			DataCoverage: dt.DataCoverage,
		}
		if station != nil {
			d = d.ClampTo(*station)
		}
		datatypes = append(datatypes, d)
	}

	if n.cache != nil {
		n.cache.PutJSON(ctx, cacheKey, datatypes)
	}
	return datatypes, nil
}

func (n *NOAA) fetchStation(ctx context.Context, stationID string) (*models.Station, error) {
	var s noaaStation
	path := "/stations/" + url.PathEscape(stationID)
	if err := n.httpClient.GetJSON(ctx, path, &s); err != nil {
		return nil, newProviderError(noaaProviderID, "fetching station", err)
	}
	if s.ID == "" {
		return nil, nil
	}
	station := s.toModel()
	return &station, nil
}

type noaaDataResponse struct {
	Results []struct {
		Date       string   `json:"date"`
		DataType   string   `json:"datatype"`
		Station    string   `json:"station"`
		Value      *float64 `json:"value"`
		Attributes string   `json:"attributes"`
	} `json:"results"`
}

func (n *NOAA) FetchData(ctx context.Context, params models.FetchParams) ([]models.TimeSeriesRecord, error) {
	dataset := params.DatasetID
	if dataset == "" {
		dataset = noaaDefaultDataset
	}

	types := noaaDatasetTypes[dataset]
	datatypes := filterDataTypes(params.DataTypes, types.supported, types.defaults)

	interval, ok := noaaDatasetInterval[dataset]
	if !ok {
		interval = models.IntervalDaily
	}

	var all []models.TimeSeriesRecord
	for _, stationID := range params.StationIDs {
		records, err := n.fetchStationData(ctx, dataset, stationID, datatypes, params, interval)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}

	all = clampToWindow(all, params)
	models.SortRecords(all)
	return all, nil
}

func (n *NOAA) fetchStationData(ctx context.Context, dataset, stationID string, datatypes []string, params models.FetchParams, interval int) ([]models.TimeSeriesRecord, error) {
	resolved := n.resolver.Resolve(dataset, stationID)
	if resolved != stationID {
		log.Debug().Str("station_id", stationID).Str("resolved", resolved).
			Str("dataset_id", dataset).Msg("Resolved archive identifier")
	}

	cacheKey := cache.Key("noaa:data", dataset, stationID,
		params.StartDate, params.EndDate, string(unitsOrDefault(params.Units)),
		strings.Join(datatypes, ","))

	var records []models.TimeSeriesRecord
	if n.cache != nil && n.cache.GetJSON(ctx, cacheKey, &records) {
		return records, nil
	}

	query := url.Values{}
	query.Set("datasetid", dataset)
	query.Set("stationid", resolved)
	query.Set("startdate", params.StartDate)
	query.Set("enddate", params.EndDate)
	query.Set("units", string(unitsOrDefault(params.Units)))
	query.Set("limit", fmt.Sprintf("%d", pageSize))
	for _, dt := range datatypes {
		query.Add("datatypeid", dt)
	}

	// The archive pages with a 1-based offset; loop until a short
	// page or the safety cap.
	for page := 0; page < maxPages; page++ {
		query.Set("offset", fmt.Sprintf("%d", page*pageSize+1))

		var resp noaaDataResponse
		if err := n.httpClient.GetJSON(ctx, "/data?"+query.Encode(), &resp); err != nil {
			return nil, newProviderError(noaaProviderID, "fetching data", err)
		}

		for _, row := range resp.Results {
			if row.Date == "" || row.Value == nil {
				continue
			}
			ts, err := time.Parse("2006-01-02T15:04:05", row.Date)
			if err != nil {
				continue
			}
			records = append(records, models.TimeSeriesRecord{
				Timestamp:   ts.UTC(),
				Value:       *row.Value,
				Interval:    interval,
				Source:      models.SourceNOAA,
				StationID:   stationID,
				Parameter:   row.DataType,
				QualityFlag: strings.Trim(row.Attributes, ","),
			})
		}

		if len(resp.Results) < pageSize {
			break
		}
	}

	if n.cache != nil {
		n.cache.PutJSON(ctx, cacheKey, records)
	}
	return records, nil
}

func unitsOrDefault(u models.UnitSystem) models.UnitSystem {
	if u == "" {
		return models.UnitsStandard
	}
	return u
}
