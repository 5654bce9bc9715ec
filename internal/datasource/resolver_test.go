package datasource

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolverPassThrough(t *testing.T) {
	t.Parallel()

	r := NewIdentifierResolver(nil)

	tests := []struct {
		name      string
		datasetID string
		stationID string
		want      string
	}{
		{
			name:      "ghcnd id queried against ghcnd",
			datasetID: "GHCND",
			stationID: "GHCND:USW00094846",
			want:      "GHCND:USW00094846",
		},
		{
			name:      "coop id queried against hourly archive",
			datasetID: "PRECIP_HLY",
			stationID: "COOP:114198",
			want:      "COOP:114198",
		},
		{
			name:      "wban id queried against quarter-hour archive",
			datasetID: "PRECIP_15",
			stationID: "WBAN:94846",
			want:      "WBAN:94846",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.datasetID, tt.stationID))
		})
	}
}

func TestResolverHeuristics(t *testing.T) {
	t.Parallel()

	r := NewIdentifierResolver(nil)

	tests := []struct {
		name      string
		datasetID string
		stationID string
		want      string
	}{
		{
			name:      "six digit raw code maps to cooperative network",
			datasetID: "PRECIP_HLY",
			stationID: "GHCND:114198",
			want:      "COOP:114198",
		},
		{
			name:      "five digit raw code maps to wban",
			datasetID: "PRECIP_15",
			stationID: "GHCND:94846",
			want:      "WBAN:94846",
		},
		{
			name:      "us-prefixed code maps to ghcnd",
			datasetID: "GHCND",
			stationID: "COOP:USW00094846",
			want:      "GHCND:USW00094846",
		},
		{
			name:      "bare six digit code",
			datasetID: "PRECIP_HLY",
			stationID: "114198",
			want:      "COOP:114198",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.datasetID, tt.stationID))
		})
	}
}

func TestResolverFallbackNeverFails(t *testing.T) {
	t.Parallel()

	r := NewIdentifierResolver(nil)

	// Shapes no heuristic recognizes.
	ids := []string{"XYZ:??weird??", "1234567890", "", "FOO:", "::::"}
	for _, id := range ids {
		resolved := r.Resolve("PRECIP_HLY", id)
		assert.True(t, strings.Contains(resolved, ":"), "resolved id must be namespaced: %q", resolved)
	}

	assert.Equal(t, "PRECIP_HLY:ABC123XYZ", r.Resolve("PRECIP_HLY", "GHCND:ABC123XYZ"))
	assert.Equal(t, "SOMESET:94846x", r.Resolve("SOMESET", "94846x"))
}

func TestResolverCustomRules(t *testing.T) {
	t.Parallel()

	r := NewIdentifierResolver([]ResolutionRule{
		{
			Name:      "everything-is-coop",
			Namespace: "COOP",
			Matches:   func(string) bool { return true },
		},
	})

	assert.Equal(t, "COOP:anything", r.Resolve("PRECIP_HLY", "anything"))
}
