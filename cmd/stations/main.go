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
	stationsHandler *handler.StationsHandler
	setupOnce       sync.Once
)

func init() {
	setupOnce.Do(func() {
		cfg := config.LoadFromEnv()
		cfg.InitializeLogging()

		log.Info().Str("env", cfg.Environment).Msg("Starting stations handler")

		cacheConfig := config.GetCacheConfig()
		responseCache, err := buildResponseCache(context.Background(), cacheConfig)
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

		stationsHandler = handler.NewStationsHandler(registry, options, credentials)

		if cacheConfig.StationListS3Bucket != "" {
			s3Client, err := cache.NewS3Client(context.Background())
			if err != nil {
				log.Fatal().Err(err).Msg("Failed initializing S3 client")
			}
			snapshots := cache.NewS3StationCache(s3Client,
				cacheConfig.StationListS3Bucket, cacheConfig.GetStationListTTL())
			stationsHandler = stationsHandler.WithSnapshots(snapshots)
		}
	})
}

// buildResponseCache selects the persistent layer behind the in-memory
// LRU from CACHE_BACKEND.
func buildResponseCache(ctx context.Context, cacheConfig *config.CacheConfig) (*cache.ResponseCache, error) {
	var backend cache.Backend
	switch cacheConfig.Backend {
	case "redis":
		backend = cache.NewRedisBackend(cacheConfig.RedisAddr, cacheConfig.RedisPassword, cacheConfig.RedisDB)
	case "dynamo":
		dynamoClient, err := cache.NewDynamoClient(ctx)
		if err != nil {
			return nil, err
		}
		backend = cache.NewDynamoBackend(dynamoClient, cacheConfig.DynamoTableName)
	default:
		backend = cache.NewMemoryBackend()
	}

	return cache.NewResponseCache(cache.ResponseCacheOptions{
		LRUSize: cacheConfig.ResponseLRUSize,
		TTL:     cacheConfig.GetResponseTTL(),
		Backend: backend,
	})
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return stationsHandler.HandleRequest(ctx, request)
}

func main() {
	lambda.Start(handleRequest)
}
