package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/pluviograph/backend-go/internal/batch"
	"github.com/pluviograph/backend-go/internal/models"
)

type APIResponse struct {
	ResponseType string `json:"responseType"`
}

type StationsResponse struct {
	APIResponse
	Stations []models.Station `json:"stations"`
}

type DataTypesResponse struct {
	APIResponse
	StationID string            `json:"stationId"`
	DataTypes []models.DataType `json:"dataTypes"`
}

type SeriesResponse struct {
	APIResponse
	Provider string        `json:"provider"`
	Result   *batch.Result `json:"result"`
}

type ProvidersResponse struct {
	APIResponse
	Providers []models.ProviderCapabilities `json:"providers"`
}

type ErrorResponse struct {
	APIResponse
	Error string `json:"error"`
}

func NewStationsResponse(stations []models.Station) *StationsResponse {
	return &StationsResponse{
		APIResponse: APIResponse{ResponseType: "stations"},
		Stations:    stations,
	}
}

func NewDataTypesResponse(stationID string, datatypes []models.DataType) *DataTypesResponse {
	return &DataTypesResponse{
		APIResponse: APIResponse{ResponseType: "dataTypes"},
		StationID:   stationID,
		DataTypes:   datatypes,
	}
}

func NewSeriesResponse(provider string, result *batch.Result) *SeriesResponse {
	return &SeriesResponse{
		APIResponse: APIResponse{ResponseType: "series"},
		Provider:    provider,
		Result:      result,
	}
}

func NewProvidersResponse(providers []models.ProviderCapabilities) *ProvidersResponse {
	return &ProvidersResponse{
		APIResponse: APIResponse{ResponseType: "providers"},
		Providers:   providers,
	}
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		APIResponse: APIResponse{ResponseType: "error"},
		Error:       message,
	}
}

// Response helpers
func Success(body interface{}) (events.APIGatewayProxyResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Error("Internal Server Error", http.StatusInternalServerError)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(jsonBody),
	}, nil
}

func Error(message string, statusCode int) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(NewErrorResponse(message))

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}, nil
}

// Parameter parsing helpers
func ParseCoordinates(params map[string]string) (float64, float64, error) {
	latStr, hasLat := params["lat"]
	lonStr, hasLon := params["lon"]

	if !hasLat || !hasLon {
		return 0, 0, MissingCoordinatesError{}
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, err
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, err
	}

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, InvalidCoordinatesError{}
	}

	return lat, lon, nil
}

// ParseFetchParams reads the series request parameters. stationIds,
// startDate and endDate are required; the rest default.
func ParseFetchParams(params map[string]string) (models.FetchParams, error) {
	ids := splitList(params["stationIds"])
	if len(ids) == 0 {
		return models.FetchParams{}, MissingParameterError{Name: "stationIds"}
	}
	start := params["startDate"]
	if start == "" {
		return models.FetchParams{}, MissingParameterError{Name: "startDate"}
	}
	end := params["endDate"]
	if end == "" {
		return models.FetchParams{}, MissingParameterError{Name: "endDate"}
	}

	units := models.UnitsStandard
	if params["units"] == string(models.UnitsMetric) {
		units = models.UnitsMetric
	}

	return models.FetchParams{
		StationIDs: ids,
		StartDate:  start,
		EndDate:    end,
		Units:      units,
		DataTypes:  splitList(params["dataTypes"]),
		DatasetID:  params["datasetId"],
	}, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type InvalidCoordinatesError struct{}

func (e InvalidCoordinatesError) Error() string {
	return "Invalid coordinates"
}

type MissingCoordinatesError struct{}

func (e MissingCoordinatesError) Error() string {
	return "Missing lat/lon parameters"
}

type MissingParameterError struct {
	Name string
}

func (e MissingParameterError) Error() string {
	return "Missing required parameter: " + e.Name
}
