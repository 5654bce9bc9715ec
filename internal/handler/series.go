package handler

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"github.com/pluviograph/backend-go/internal/api"
	"github.com/pluviograph/backend-go/internal/batch"
	"github.com/pluviograph/backend-go/internal/datasource"
)

// SeriesHandler serves multi-station timeseries fetches. Per-station
// failures never fail the response; the batch result carries them.
type SeriesHandler struct {
	registry     *datasource.Registry
	options      datasource.Options
	credentials  map[string]string
	orchestrator *batch.Orchestrator
}

func NewSeriesHandler(registry *datasource.Registry, options datasource.Options, credentials map[string]string) *SeriesHandler {
	return &SeriesHandler{
		registry:     registry,
		options:      options,
		credentials:  credentials,
		orchestrator: batch.NewOrchestrator(),
	}
}

func (h *SeriesHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	params := request.QueryStringParameters

	providerID := params["provider"]
	if providerID == "" {
		providerID = defaultProvider
	}

	fetchParams, err := api.ParseFetchParams(params)
	if err != nil {
		return api.Error(err.Error(), http.StatusBadRequest)
	}

	ds, err := h.registry.Create(providerID, providerOptions(h.options, h.credentials, providerID))
	if err != nil {
		return providerError(providerID, err)
	}

	result := h.orchestrator.FetchAll(ctx, ds, fetchParams)

	log.Info().Str("provider", providerID).
		Int("stations", len(fetchParams.StationIDs)).
		Int("records", len(result.Records)).
		Int("failed", len(result.Failed)).
		Str("status", string(result.Status)).
		Msg("Series fetch complete")

	return api.Success(api.NewSeriesResponse(providerID, result))
}
