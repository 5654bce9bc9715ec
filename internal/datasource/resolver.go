package datasource

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// The climate archive addresses the same physical station differently
// depending on which sub-dataset is queried: the daily archive uses
// GHCND ids, the hourly archives use COOP or WBAN codes. Translation
// is heuristic; the archive publishes no complete mapping table.

// ResolutionRule re-derives a namespace from the bare station code.
// Rules are tried in order; the first whose namespace is valid for the
// target dataset and whose Matches accepts the raw code wins.
type ResolutionRule struct {
	Name      string
	Namespace string
	Matches   func(raw string) bool
}

// IdentifierResolver maps (datasetID, stationID) into the identifier
// scheme the target sub-dataset expects. Resolve never fails: when no
// rule matches it falls back to "<datasetID>:<raw>", a well-formed,
// traceable identifier even if upstream ultimately rejects it.
type IdentifierResolver struct {
	rules []ResolutionRule
	// datasetNamespaces lists which namespaces each sub-dataset
	// accepts; the first entry doubles as the pass-through check.
	datasetNamespaces map[string][]string
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DefaultResolutionRules cover the identifier shapes observed in the
// archive: 6-digit cooperative-network codes, 5-digit airport (WBAN)
// codes, and US-prefixed GHCN-Daily codes.
func DefaultResolutionRules() []ResolutionRule {
	return []ResolutionRule{
		{
			Name:      "coop-6-digit",
			Namespace: "COOP",
			Matches:   func(raw string) bool { return len(raw) == 6 && isDigits(raw) },
		},
		{
			Name:      "wban-5-digit",
			Namespace: "WBAN",
			Matches:   func(raw string) bool { return len(raw) == 5 && isDigits(raw) },
		},
		{
			Name:      "ghcnd-us-code",
			Namespace: "GHCND",
			Matches:   func(raw string) bool { return strings.HasPrefix(raw, "US") },
		},
	}
}

func defaultDatasetNamespaces() map[string][]string {
	return map[string][]string{
		"GHCND":      {"GHCND"},
		"GSOM":       {"GHCND"},
		"PRECIP_HLY": {"COOP", "WBAN"},
		"PRECIP_15":  {"COOP", "WBAN"},
	}
}

func NewIdentifierResolver(rules []ResolutionRule) *IdentifierResolver {
	if rules == nil {
		rules = DefaultResolutionRules()
	}
	return &IdentifierResolver{
		rules:             rules,
		datasetNamespaces: defaultDatasetNamespaces(),
	}
}

// Resolve returns the station identifier to use when querying
// datasetID. Best effort: see the type comment.
func (r *IdentifierResolver) Resolve(datasetID, stationID string) string {
	namespaces := r.datasetNamespaces[datasetID]

	prefix, raw := splitIdentifier(stationID)

	// Already in a namespace the target dataset accepts.
	for _, ns := range namespaces {
		if prefix == ns {
			return stationID
		}
	}

	for _, rule := range r.rules {
		if !namespaceAllowed(rule.Namespace, namespaces) {
			continue
		}
		if rule.Matches(raw) {
			log.Trace().Str("rule", rule.Name).Str("station_id", stationID).
				Str("dataset_id", datasetID).Msg("Resolved station identifier")
			return rule.Namespace + ":" + raw
		}
	}

	// Unknown shape: prefix with the dataset's own name so the result
	// is at least well formed and traceable in upstream error logs.
	return datasetID + ":" + raw
}

func splitIdentifier(id string) (prefix, raw string) {
	if i := strings.Index(id, ":"); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}

func namespaceAllowed(ns string, allowed []string) bool {
	// A dataset with no declared namespaces accepts any rule.
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == ns {
			return true
		}
	}
	return false
}
