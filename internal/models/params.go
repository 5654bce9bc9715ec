package models

// UnitSystem selects the unit family normalized values are reported in.
type UnitSystem string

const (
	UnitsStandard UnitSystem = "standard" // inches, °F
	UnitsMetric   UnitSystem = "metric"   // millimeters, °C
)

// FetchParams describes one time-series request: which stations, which
// parameters, over which window, in which units. DatasetID is only
// meaningful for providers that split their archive into sub-datasets.
type FetchParams struct {
	StationIDs []string   `json:"stationIds"`
	StartDate  string     `json:"startDate"` // ISO date, inclusive
	EndDate    string     `json:"endDate"`   // ISO date, inclusive
	Units      UnitSystem `json:"units"`
	DataTypes  []string   `json:"datatypes"`
	DatasetID  string     `json:"datasetId,omitempty"`
}

// ForStation returns a copy of the params narrowed to a single station.
func (p FetchParams) ForStation(stationID string) FetchParams {
	out := p
	out.StationIDs = []string{stationID}
	return out
}

// ProviderCapabilities is the static per-provider declaration the UI and
// the registry use to gate operations before dispatch.
type ProviderCapabilities struct {
	ID                        string `json:"id"`
	Name                      string `json:"name"`
	RequiresAPIKey            bool   `json:"requiresApiKey"`
	SupportsStationSearch     bool   `json:"supportsStationSearch"`
	SupportsSpatialSearch     bool   `json:"supportsSpatialSearch"`
	SupportsGridInterpolation bool   `json:"supportsGridInterpolation"`
	MaxDateRangeDays          int    `json:"maxDateRangeDays,omitempty"`
}
