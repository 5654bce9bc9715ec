package main

import (
	"context"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/pluviograph/backend-go/internal/cache"
	"github.com/pluviograph/backend-go/internal/config"
	"github.com/pluviograph/backend-go/internal/datasource"
	"github.com/pluviograph/backend-go/internal/geocode"
	"github.com/pluviograph/backend-go/internal/handler"
)

var (
	seriesHandler *handler.SeriesHandler
	setupOnce     sync.Once
)

func init() {
	setupOnce.Do(func() {
		cfg := config.LoadFromEnv()
		cfg.InitializeLogging()

		log.Info().Str("env", cfg.Environment).Msg("Starting series handler")

		cacheConfig := config.GetCacheConfig()

		var backend cache.Backend
		switch cacheConfig.Backend {
		case "redis":
			backend = cache.NewRedisBackend(cacheConfig.RedisAddr, cacheConfig.RedisPassword, cacheConfig.RedisDB)
		case "dynamo":
			dynamoClient, err := cache.NewDynamoClient(context.Background())
			if err != nil {
				log.Fatal().Err(err).Msg("Failed initializing DynamoDB client")
			}
			backend = cache.NewDynamoBackend(dynamoClient, cacheConfig.DynamoTableName)
		default:
			backend = cache.NewMemoryBackend()
		}

		responseCache, err := cache.NewResponseCache(cache.ResponseCacheOptions{
			LRUSize: cacheConfig.ResponseLRUSize,
			TTL:     cacheConfig.GetResponseTTL(),
			Backend: backend,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed initializing response cache")
		}

		geocoder := geocode.New(geocode.Options{
			BaseURL:  cfg.GeocoderBaseURL,
			RelayURL: cfg.GeocoderRelayURL,
			Cache:    responseCache,
		})

		registry := datasource.DefaultRegistry(cfg)
		options := datasource.Options{
			Timeout:  cfg.HTTPTimeout,
			Cache:    responseCache,
			Geocoder: geocoder,
		}
		credentials := map[string]string{
			"noaa-cdo": os.Getenv("NOAA_CDO_TOKEN"),
			"synoptic": os.Getenv("SYNOPTIC_TOKEN"),
		}

		seriesHandler = handler.NewSeriesHandler(registry, options, credentials)
	})
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return seriesHandler.HandleRequest(ctx, request)
}

func main() {
	lambda.Start(handleRequest)
}
