package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDBClient defines the DynamoDB operations the backend needs,
// narrowed so tests can substitute a mock.
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// NewDynamoClient creates a DynamoDB client based on environment.
func NewDynamoClient(ctx context.Context) (*dynamodb.Client, error) {
	if endpoint := os.Getenv("DYNAMODB_ENDPOINT"); endpoint != "" {
		log.Debug().Str("endpoint", endpoint).Msg("Using local DynamoDB endpoint")
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion("local"),
			awsconfig.WithClientLogMode(aws.LogRetries),
		)
		if err != nil {
			return nil, err
		}
		return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		}), nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg), nil
}

type dynamoRecord struct {
	CacheKey string `dynamodbav:"cacheKey"`
	Payload  []byte `dynamodbav:"payload"`
	TTL      int64  `dynamodbav:"ttl"`
}

// DynamoBackend stores cache entries in a DynamoDB table keyed by
// cacheKey, with a native TTL attribute so stale rows expire server
// side even when never read again.
type DynamoBackend struct {
	client    DynamoDBClient
	tableName string
	clock     clock
}

func NewDynamoBackend(client DynamoDBClient, tableName string) *DynamoBackend {
	if tableName == "" {
		tableName = "response-cache"
	}
	return &DynamoBackend{
		client:    client,
		tableName: tableName,
		clock:     realClock{},
	}
}

func (d *DynamoBackend) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"cacheKey": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting cache item: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var record dynamoRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling cache record: %w", err)
	}

	// DynamoDB TTL deletion lags; treat lapsed rows as absent.
	if d.clock.Now().Unix() > record.TTL {
		return nil, nil
	}

	return record.Payload, nil
}

func (d *DynamoBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	record := dynamoRecord{
		CacheKey: key,
		Payload:  value,
		TTL:      d.clock.Now().Add(ttl).Unix(),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshaling cache record: %w", err)
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("putting cache item: %w", err)
	}
	return nil
}

func (d *DynamoBackend) Delete(ctx context.Context, key string) error {
	if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"cacheKey": &types.AttributeValueMemberS{Value: key},
		},
	}); err != nil {
		return fmt.Errorf("deleting cache item: %w", err)
	}
	return nil
}
