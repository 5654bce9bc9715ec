package models

type Source string

const (
	SourceNOAA     Source = "NOAA"
	SourceUSGS     Source = "USGS"
	SourceSynoptic Source = "SYNOPTIC"
	SourceGridded  Source = "GRIDDED"
)

type Station struct {
	ID           string            `json:"id"`
	Source       Source            `json:"source"`
	Name         string            `json:"name"`
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	Elevation    *float64          `json:"elevation,omitempty"`
	Timezone     *string           `json:"timezone,omitempty"`
	MinDate      string            `json:"mindate,omitempty"`
	MaxDate      string            `json:"maxdate,omitempty"`
	DataCoverage float64           `json:"datacoverage"`
	IsVirtual    bool              `json:"isVirtual"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// DataType describes one measurable quantity a station exposes, with
// its own coverage bounds. Bounds use ISO dates (2006-01-02).
type DataType struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MinDate      string  `json:"mindate,omitempty"`
	MaxDate      string  `json:"maxdate,omitempty"`
	DataCoverage float64 `json:"datacoverage"`
	Units        *string `json:"units,omitempty"`
}

// ClampTo narrows the datatype's coverage bounds so they never fall
// outside what the owning station itself claims to cover. Upstream
// archives routinely report datatype bounds wider than the station's
// period of record (e.g. 1781 for a station installed in 1948).
func (d DataType) ClampTo(s Station) DataType {
	if s.MinDate != "" && (d.MinDate == "" || d.MinDate < s.MinDate) {
		d.MinDate = s.MinDate
	}
	if s.MaxDate != "" && (d.MaxDate == "" || d.MaxDate > s.MaxDate) {
		d.MaxDate = s.MaxDate
	}
	return d
}
