package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// CacheConfig holds all cache-related configuration
type CacheConfig struct {
	// LRU layer settings
	ResponseLRUSize int

	// Response cache TTL (applies to station search, datatype
	// discovery and time-series fetch lookups)
	ResponseTTLHours int

	// Station list snapshot settings
	StationListTTLDays  int
	StationListS3Bucket string

	// Persistent backend selection: "memory", "redis" or "dynamo"
	Backend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DynamoTableName string
}

const (
	defaultResponseLRUSize    = 1000
	defaultResponseTTLHours   = 24
	defaultStationListTTLDays = 2
	defaultBackend            = "memory"
	defaultDynamoTableName    = "response-cache"
)

// GetCacheConfig returns the cache configuration from environment variables or defaults
func GetCacheConfig() *CacheConfig {
	config := &CacheConfig{
		ResponseLRUSize:     getEnvInt("CACHE_RESPONSE_LRU_SIZE", defaultResponseLRUSize),
		ResponseTTLHours:    getEnvInt("CACHE_RESPONSE_TTL_HOURS", defaultResponseTTLHours),
		StationListTTLDays:  getEnvInt("CACHE_STATION_LIST_TTL_DAYS", defaultStationListTTLDays),
		StationListS3Bucket: os.Getenv("CACHE_STATION_LIST_BUCKET"),
		Backend:             getEnvOrDefault("CACHE_BACKEND", defaultBackend),
		RedisAddr:           getEnvOrDefault("CACHE_REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("CACHE_REDIS_PASSWORD"),
		RedisDB:             getEnvInt("CACHE_REDIS_DB", 0),
		DynamoTableName:     getEnvOrDefault("CACHE_DYNAMO_TABLE", defaultDynamoTableName),
	}

	log.Debug().
		Int("ResponseLRUSize", config.ResponseLRUSize).
		Int("ResponseTTLHours", config.ResponseTTLHours).
		Int("StationListTTLDays", config.StationListTTLDays).
		Str("Backend", config.Backend).
		Msg("Cache configuration loaded")

	return config
}

func (c *CacheConfig) GetResponseTTL() time.Duration {
	return time.Duration(c.ResponseTTLHours) * time.Hour
}

func (c *CacheConfig) GetStationListTTL() time.Duration {
	return time.Duration(c.StationListTTLDays) * 24 * time.Hour
}

// Helper functions to get environment variables with defaults
func getEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		log.Warn().Str("key", key).Msg("Invalid integer value in environment variable, using default")
	}
	return defaultVal
}
