package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataTypeClampTo(t *testing.T) {
	station := Station{
		ID:      "GHCND:USW00094846",
		MinDate: "2000-01-01",
		MaxDate: "2020-01-01",
	}

	tests := []struct {
		name        string
		dt          DataType
		wantMinDate string
		wantMaxDate string
	}{
		{
			name:        "bounds wider than station",
			dt:          DataType{ID: "PRCP", MinDate: "1781-01-01", MaxDate: "2025-01-01"},
			wantMinDate: "2000-01-01",
			wantMaxDate: "2020-01-01",
		},
		{
			name:        "bounds inside station",
			dt:          DataType{ID: "PRCP", MinDate: "2005-06-01", MaxDate: "2010-06-01"},
			wantMinDate: "2005-06-01",
			wantMaxDate: "2010-06-01",
		},
		{
			name:        "missing bounds inherit station bounds",
			dt:          DataType{ID: "PRCP"},
			wantMinDate: "2000-01-01",
			wantMaxDate: "2020-01-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clamped := tt.dt.ClampTo(station)
			assert.Equal(t, tt.wantMinDate, clamped.MinDate)
			assert.Equal(t, tt.wantMaxDate, clamped.MaxDate)
		})
	}
}

func TestDataTypeClampToStationWithoutBounds(t *testing.T) {
	dt := DataType{ID: "PRCP", MinDate: "1990-01-01", MaxDate: "2024-12-31"}
	clamped := dt.ClampTo(Station{ID: "USGS:05531300"})

	assert.Equal(t, "1990-01-01", clamped.MinDate)
	assert.Equal(t, "2024-12-31", clamped.MaxDate)
}
