package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pluviograph/backend-go/internal/cache"
	"github.com/pluviograph/backend-go/internal/datasource"
	"github.com/pluviograph/backend-go/internal/models"
	"github.com/pluviograph/backend-go/pkg/http/client"
)

// Status summarizes a batch outcome.
type Status string

const (
	StatusFresh   Status = "fresh"   // every station fetched
	StatusPartial Status = "partial" // some stations failed
	StatusFailed  Status = "failed"  // every station failed
)

// maxDisplayedErrors caps the per-station messages surfaced to the
// caller; the rest collapse into a "+N more" summary line.
const maxDisplayedErrors = 3

// StationError names the station a fetch failed for, with a short
// display message rather than a raw error chain.
type StationError struct {
	StationID string `json:"stationId"`
	Message   string `json:"message"`
}

// Result aggregates a fan-out fetch. Fingerprint identifies the
// request parameters the data corresponds to, so callers can compare
// a later request against what is already loaded.
type Result struct {
	Records     []models.TimeSeriesRecord `json:"records"`
	Succeeded   []string                  `json:"succeeded"`
	Failed      []StationError            `json:"failed"`
	Status      Status                    `json:"status"`
	Fingerprint string                    `json:"fingerprint"`
}

// DisplayErrors returns the capped error list plus a summary entry
// when more failures occurred than are shown.
func (r *Result) DisplayErrors() []string {
	out := make([]string, 0, maxDisplayedErrors+1)
	for i, fe := range r.Failed {
		if i == maxDisplayedErrors {
			out = append(out, fmt.Sprintf("+%d more", len(r.Failed)-maxDisplayedErrors))
			break
		}
		out = append(out, fmt.Sprintf("%s: %s", fe.StationID, fe.Message))
	}
	return out
}

type stationResult struct {
	stationID string
	records   []models.TimeSeriesRecord
	err       error
}

// Orchestrator fans a multi-station fetch out to one adapter call per
// station so a single station's failure never poisons the batch.
type Orchestrator struct{}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{}
}

// FetchAll issues one FetchData call per station concurrently, joins
// on the full set, and aggregates successes and failures separately.
// It never returns an error for per-station failures; the Result
// carries them.
func (o *Orchestrator) FetchAll(ctx context.Context, ds datasource.DataSource, params models.FetchParams) *Result {
	results := make(chan stationResult, len(params.StationIDs))

	for _, stationID := range params.StationIDs {
		stationID := stationID
		go func() {
			records, err := ds.FetchData(ctx, params.ForStation(stationID))
			results <- stationResult{stationID: stationID, records: records, err: err}
		}()
	}

	result := &Result{
		Records:     []models.TimeSeriesRecord{},
		Fingerprint: Fingerprint(params),
	}

	// Completion order is undefined; join on the whole set before
	// aggregating.
	for range params.StationIDs {
		sr := <-results
		if sr.err != nil {
			log.Warn().Err(sr.err).Str("station_id", sr.stationID).Msg("Station fetch failed")
			result.Failed = append(result.Failed, StationError{
				StationID: sr.stationID,
				Message:   classifyError(sr.err),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, sr.stationID)
		result.Records = append(result.Records, sr.records...)
	}

	models.SortRecords(result.Records)

	switch {
	case len(result.Failed) == 0:
		result.Status = StatusFresh
	case len(result.Succeeded) == 0:
		result.Status = StatusFailed
		result.Records = []models.TimeSeriesRecord{}
	default:
		result.Status = StatusPartial
	}

	return result
}

// Fingerprint builds a deterministic identity for a fetch request so
// later requests can be compared against loaded data.
func Fingerprint(params models.FetchParams) string {
	return cache.Key("batch",
		strings.Join(params.StationIDs, ","),
		params.StartDate, params.EndDate,
		string(params.Units),
		strings.Join(params.DataTypes, ","),
		params.DatasetID)
}

// classifyError turns a fetch failure into a short display message.
// Retries already happened below this layer; classification here is
// for the user, not for policy.
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "Timeout"
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("HTTP %d", apiErr.StatusCode)
	}

	// Client-side timeouts surface as transport errors with a timeout
	// flag rather than a status code.
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return "Timeout"
	}

	return err.Error()
}
