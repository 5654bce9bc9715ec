package models

import (
	"sort"
	"time"
)

// Sampling intervals in minutes. Zero means instantaneous or irregular.
const (
	IntervalInstant   = 0
	IntervalQuarterly = 15
	IntervalHourly    = 60
	IntervalDaily     = 1440
)

// TimeSeriesRecord is the single normalized record shape every provider
// adapter produces. Values are already converted to the unit system the
// request asked for; the pre-conversion value is retained for audit.
type TimeSeriesRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	Value         float64   `json:"value"`
	Interval      int       `json:"interval"`
	Source        Source    `json:"source"`
	StationID     string    `json:"stationId"`
	Parameter     string    `json:"parameter"`
	QualityFlag   string    `json:"qualityFlag,omitempty"`
	OriginalValue *float64  `json:"originalValue,omitempty"`
	OriginalUnits *string   `json:"originalUnits,omitempty"`
}

// SortRecords orders records ascending by timestamp, grouping by station
// so each station's series stays contiguous.
func SortRecords(records []TimeSeriesRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StationID != records[j].StationID {
			return records[i].StationID < records[j].StationID
		}
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}

// FilterWindow drops records outside [start, end]. Upstream services
// occasionally return samples just past the requested range boundary.
func FilterWindow(records []TimeSeriesRecord, start, end time.Time) []TimeSeriesRecord {
	filtered := records[:0]
	for _, r := range records {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
