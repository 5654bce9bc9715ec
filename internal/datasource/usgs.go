package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pluviograph/backend-go/internal/cache"
	"github.com/pluviograph/backend-go/internal/models"
	"github.com/pluviograph/backend-go/pkg/http/client"
)

const (
	usgsProviderID = "usgs-nwis"
	// usgsMissingValue is the sentinel the water services emit for
	// absent samples.
	usgsMissingValue = "-999999"
)

var usgsParameters = struct {
	supported map[string]bool
	defaults  []string
}{
	supported: map[string]bool{
		"00045": true, // precipitation, total, inches
		"00060": true, // discharge, cubic feet per second
		"00065": true, // gage height, feet
	},
	defaults: []string{"00045"},
}

func USGSCapabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{
		ID:                    usgsProviderID,
		Name:                  "USGS Water Services",
		RequiresAPIKey:        false,
		SupportsStationSearch: true,
		SupportsSpatialSearch: true,
		MaxDateRangeDays:      120,
	}
}

// USGS is the real-time hydrology adapter over the NWIS site and
// instantaneous-values services. No authentication required.
type USGS struct {
	httpClient client.Interface
	cache      *cache.ResponseCache
	geocoder   Geocoder
}

func NewUSGS(opts Options) *USGS {
	return &USGS{
		httpClient: client.New(client.Options{
			BaseURL: opts.BaseURL,
			Timeout: opts.Timeout,
		}),
		cache:    opts.Cache,
		geocoder: opts.Geocoder,
	}
}

func (u *USGS) Capabilities() models.ProviderCapabilities { return USGSCapabilities() }

func (u *USGS) FindStationsByCity(ctx context.Context, city string, opts SearchOptions) ([]models.Station, error) {
	loc, found, err := u.geocoder.Locate(ctx, city)
	if err != nil {
		return nil, newProviderError(usgsProviderID, "geocoding city", err)
	}
	if !found {
		return []models.Station{}, nil
	}
	return u.FindStationsByCoords(ctx, loc.Latitude, loc.Longitude, opts)
}

func (u *USGS) FindStationsByCoords(ctx context.Context, lat, lon float64, opts SearchOptions) ([]models.Station, error) {
	limit := opts.limitOrDefault()
	buffer := opts.bufferOrDefault()

	cacheKey := cache.Key("usgs:search",
		fmt.Sprintf("%.4f", lat), fmt.Sprintf("%.4f", lon),
		fmt.Sprintf("%d", limit), fmt.Sprintf("%.4f", buffer))

	var stations []models.Station
	if u.cache != nil && u.cache.GetJSON(ctx, cacheKey, &stations) {
		return stations, nil
	}

	minLat, minLon, maxLat, maxLon := boundingBox(lat, lon, buffer)
	// The site service takes west,south,east,north.
	path := fmt.Sprintf("/site/?format=rdb&bBox=%.4f,%.4f,%.4f,%.4f&hasDataTypeCd=iv&siteStatus=active",
		minLon, minLat, maxLon, maxLat)

	resp, err := u.httpClient.Get(ctx, path)
	if err != nil {
		return nil, newProviderError(usgsProviderID, "searching sites", err)
	}

	stations = parseRDBSites(string(resp.Body))
	if len(stations) > limit {
		stations = stations[:limit]
	}

	if u.cache != nil {
		u.cache.PutJSON(ctx, cacheKey, stations)
	}
	return stations, nil
}

// parseRDBSites reads the tab-delimited RDB format the site service
// emits: comment lines, a header row, a column-width row, then data.
func parseRDBSites(body string) []models.Station {
	stations := []models.Station{}
	var columns map[string]int

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if columns == nil {
			columns = make(map[string]int, len(fields))
			for i, name := range fields {
				columns[name] = i
			}
			continue
		}
		// The row after the header carries column widths (e.g. "5s").
		if len(fields) > 0 && isWidthSpec(fields[0]) {
			continue
		}

		get := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(fields) {
				return ""
			}
			return fields[i]
		}

		siteNo := get("site_no")
		if siteNo == "" {
			continue
		}

		lat, latErr := strconv.ParseFloat(get("dec_lat_va"), 64)
		lon, lonErr := strconv.ParseFloat(get("dec_long_va"), 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		station := models.Station{
			ID:        siteNo,
			Source:    models.SourceUSGS,
			Name:      get("station_nm"),
			Latitude:  lat,
			Longitude: lon,
			Metadata:  map[string]string{"siteType": get("site_tp_cd")},
		}
		if alt, err := strconv.ParseFloat(get("alt_va"), 64); err == nil {
			station.Elevation = &alt
		}
		stations = append(stations, station)
	}

	return stations
}

func isWidthSpec(field string) bool {
	if field == "" {
		return false
	}
	last := field[len(field)-1]
	if last != 's' && last != 'd' && last != 'n' {
		return false
	}
	return isDigits(field[:len(field)-1])
}

type usgsIVResponse struct {
	Value struct {
		TimeSeries []struct {
			SourceInfo struct {
				SiteName string `json:"siteName"`
				SiteCode []struct {
					Value string `json:"value"`
				} `json:"siteCode"`
				GeoLocation struct {
					GeogLocation struct {
						Latitude  float64 `json:"latitude"`
						Longitude float64 `json:"longitude"`
					} `json:"geogLocation"`
				} `json:"geoLocation"`
			} `json:"sourceInfo"`
			Variable struct {
				VariableCode []struct {
					Value string `json:"value"`
				} `json:"variableCode"`
				VariableName string `json:"variableName"`
				Unit         struct {
					UnitCode string `json:"unitCode"`
				} `json:"unit"`
			} `json:"variable"`
			Values []struct {
				Value []struct {
					Value      string   `json:"value"`
					Qualifiers []string `json:"qualifiers"`
					DateTime   string   `json:"dateTime"`
				} `json:"value"`
			} `json:"values"`
		} `json:"timeSeries"`
	} `json:"value"`
}

func (u *USGS) AvailableDataTypes(ctx context.Context, stationID string, _ SearchOptions) ([]models.DataType, error) {
	cacheKey := cache.Key("usgs:datatypes", stationID)

	var datatypes []models.DataType
	if u.cache != nil && u.cache.GetJSON(ctx, cacheKey, &datatypes) {
		return datatypes, nil
	}

	// A one-day instantaneous-values probe reveals which parameters
	// the site currently reports.
	path := fmt.Sprintf("/iv/?format=json&sites=%s&period=P1D", stationID)

	var resp usgsIVResponse
	if err := u.httpClient.GetJSON(ctx, path, &resp); err != nil {
		return nil, newProviderError(usgsProviderID, "listing parameters", err)
	}

	datatypes = []models.DataType{}
	seen := map[string]bool{}
	for _, series := range resp.Value.TimeSeries {
		if len(series.Variable.VariableCode) == 0 {
			continue
		}
		code := series.Variable.VariableCode[0].Value
		if seen[code] {
			continue
		}
		seen[code] = true

		unit := series.Variable.Unit.UnitCode
		datatypes = append(datatypes, models.DataType{
			ID:    code,
			Name:  series.Variable.VariableName,
			Units: &unit,
		})
	}

	if u.cache != nil {
		u.cache.PutJSON(ctx, cacheKey, datatypes)
	}
	return datatypes, nil
}

func (u *USGS) FetchData(ctx context.Context, params models.FetchParams) ([]models.TimeSeriesRecord, error) {
	parameters := filterDataTypes(params.DataTypes, usgsParameters.supported, usgsParameters.defaults)
	units := unitsOrDefault(params.Units)

	sites := make([]string, 0, len(params.StationIDs))
	for _, id := range params.StationIDs {
		// Accept both bare site numbers and namespaced ids.
		sites = append(sites, strings.TrimPrefix(id, "USGS:"))
	}

	cacheKey := cache.Key("usgs:data", strings.Join(sites, ","),
		params.StartDate, params.EndDate, string(units),
		strings.Join(parameters, ","))

	var records []models.TimeSeriesRecord
	if u.cache != nil && u.cache.GetJSON(ctx, cacheKey, &records) {
		return records, nil
	}

	path := fmt.Sprintf("/iv/?format=json&sites=%s&startDT=%s&endDT=%s&parameterCd=%s",
		strings.Join(sites, ","), params.StartDate, params.EndDate,
		strings.Join(parameters, ","))

	var resp usgsIVResponse
	if err := u.httpClient.GetJSON(ctx, path, &resp); err != nil {
		return nil, newProviderError(usgsProviderID, "fetching instantaneous values", err)
	}

	records = []models.TimeSeriesRecord{}
	for _, series := range resp.Value.TimeSeries {
		if len(series.SourceInfo.SiteCode) == 0 || len(series.Variable.VariableCode) == 0 {
			continue
		}
		siteNo := series.SourceInfo.SiteCode[0].Value
		parameter := series.Variable.VariableCode[0].Value
		unitCode := series.Variable.Unit.UnitCode

		for _, block := range series.Values {
			for _, v := range block.Value {
				if v.Value == "" || v.Value == usgsMissingValue || v.DateTime == "" {
					continue
				}
				raw, err := strconv.ParseFloat(v.Value, 64)
				if err != nil {
					continue
				}
				ts, err := time.Parse(time.RFC3339, v.DateTime)
				if err != nil {
					continue
				}

				record := models.TimeSeriesRecord{
					Timestamp: ts.UTC(),
					Value:     raw,
					Interval:  models.IntervalInstant,
					Source:    models.SourceUSGS,
					StationID: siteNo,
					Parameter: parameter,
				}
				if len(v.Qualifiers) > 0 {
					record.QualityFlag = strings.Join(v.Qualifiers, ",")
				}
				// Only precipitation depth is unit-converted; stage
				// and discharge pass through in native units.
				if parameter == "00045" {
					converted := models.ConvertPrecip(raw, unitCode, units)
					if converted != raw {
						original := raw
						originalUnits := unitCode
						record.Value = converted
						record.OriginalValue = &original
						record.OriginalUnits = &originalUnits
					}
				}
				records = append(records, record)
			}
		}
	}

	records = clampToWindow(records, params)
	models.SortRecords(records)

	if u.cache != nil {
		u.cache.PutJSON(ctx, cacheKey, records)
	}
	return records, nil
}
