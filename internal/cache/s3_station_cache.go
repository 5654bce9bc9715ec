package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/pluviograph/backend-go/internal/models"
)

// S3Client defines the S3 operations we need.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client creates an S3 client based on environment.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		log.Debug().Str("endpoint", endpoint).Msg("Using local S3 endpoint")
		return s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}), nil
	}
	return s3.NewFromConfig(cfg), nil
}

// S3StationCache snapshots whole station lists per provider in S3.
// Station inventories are large and change slowly, so they live in a
// bulk object store instead of the row-oriented response cache.
type S3StationCache struct {
	client     S3Client
	bucketName string
	ttl        time.Duration
	clock      clock
}

func NewS3StationCache(client S3Client, bucketName string, ttl time.Duration) *S3StationCache {
	if ttl == 0 {
		ttl = 48 * time.Hour
	}
	return &S3StationCache{
		client:     client,
		bucketName: bucketName,
		ttl:        ttl,
		clock:      realClock{},
	}
}

// StationListRecord is the cached station list with expiry metadata.
type StationListRecord struct {
	Stations    []models.Station `json:"stations"`
	LastUpdated int64            `json:"lastUpdated"`
	TTL         int64            `json:"ttl"`
}

func stationListKey(provider string) string {
	return fmt.Sprintf("stations-%s.json", provider)
}

// GetStations returns the cached station list for a provider, or nil
// when absent or expired.
func (c *S3StationCache) GetStations(ctx context.Context, provider string) ([]models.Station, error) {
	if c.bucketName == "" {
		return nil, fmt.Errorf("empty bucket name")
	}

	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(stationListKey(provider)),
	})
	if err != nil {
		// Missing object is a miss, not an error.
		return nil, nil
	}
	defer func(body io.ReadCloser) {
		if closeErr := body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Error closing S3 object body")
		}
	}(result.Body)

	var record StationListRecord
	if err := json.NewDecoder(result.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decoding station list record: %w", err)
	}

	if c.clock.Now().Unix() > record.TTL {
		log.Debug().Str("provider", provider).Msg("Station list cache expired")
		return nil, nil
	}

	return record.Stations, nil
}

// SaveStations writes the provider's station list snapshot.
func (c *S3StationCache) SaveStations(ctx context.Context, provider string, stations []models.Station) error {
	if c.bucketName == "" {
		return fmt.Errorf("empty bucket name")
	}

	now := c.clock.Now().Unix()
	record := StationListRecord{
		Stations:    stations,
		LastUpdated: now,
		TTL:         now + int64(c.ttl.Seconds()),
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(record); err != nil {
		return fmt.Errorf("encoding station list record: %w", err)
	}

	if _, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(stationListKey(provider)),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("putting station list: %w", err)
	}

	log.Debug().Str("provider", provider).Int("station_count", len(stations)).
		Msg("Saved station list snapshot")
	return nil
}
