package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// clock abstracts time.Now so TTL behaviour is testable.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Entry wraps a cached payload with the write timestamp used for TTL
// checks. Timestamp is epoch milliseconds.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"`
}

// Backend is a persistent byte store behind the in-process LRU layer.
// Implementations are expected to be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// keyEscaper keeps the part separator out of part values so distinct
// tuples can never collapse into the same key.
var keyEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// Key builds a deterministic cache key from an operation name and every
// request parameter that affects the result. Identical parameter tuples
// always produce the same key; any differing tuple changes it.
func Key(op string, parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = keyEscaper.Replace(p)
	}
	return op + ":" + strings.Join(escaped, "|")
}

// ResponseCache is a read-through TTL cache fronting upstream lookups:
// an LRU layer for the hot path, optionally backed by a persistent
// store (Redis, DynamoDB). Expired entries are evicted lazily on read.
type ResponseCache struct {
	lru     *lru.Cache[string, Entry]
	backend Backend
	ttl     time.Duration
	clock   clock
}

type ResponseCacheOptions struct {
	LRUSize int
	TTL     time.Duration
	Backend Backend
	Clock   clock
}

func NewResponseCache(opts ResponseCacheOptions) (*ResponseCache, error) {
	if opts.LRUSize == 0 {
		opts.LRUSize = 1000
	}
	if opts.TTL == 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}

	lruCache, err := lru.New[string, Entry](opts.LRUSize)
	if err != nil {
		return nil, err
	}

	return &ResponseCache{
		lru:     lruCache,
		backend: opts.Backend,
		ttl:     opts.TTL,
		clock:   opts.Clock,
	}, nil
}

// GetJSON looks up key and unmarshals the cached value into v. The
// second return is true only on a fresh hit.
func (c *ResponseCache) GetJSON(ctx context.Context, key string, v interface{}) bool {
	if entry, ok := c.lru.Get(key); ok {
		if c.fresh(entry) {
			if err := json.Unmarshal(entry.Value, v); err == nil {
				log.Debug().Str("key", key).Msg("Cache HIT (lru)")
				return true
			}
		}
		c.lru.Remove(key)
	}

	if c.backend == nil {
		return false
	}

	raw, err := c.backend.Get(ctx, key)
	if err != nil || raw == nil {
		if err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Cache backend read failed")
		}
		return false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return false
	}
	if !c.fresh(entry) {
		// Expired in the backend: best-effort eviction.
		if err := c.backend.Delete(ctx, key); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Cache backend evict failed")
		}
		return false
	}
	if err := json.Unmarshal(entry.Value, v); err != nil {
		return false
	}

	c.lru.Add(key, entry)
	log.Debug().Str("key", key).Msg("Cache HIT (backend)")
	return true
}

// PutJSON stores v under key. Failures are swallowed: the cache is a
// quota optimization, never a correctness requirement.
func (c *ResponseCache) PutJSON(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Cache marshal failed")
		return
	}

	entry := Entry{
		Value:     raw,
		Timestamp: c.clock.Now().UnixMilli(),
	}
	c.lru.Add(key, entry)

	if c.backend == nil {
		return
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.backend.Set(ctx, key, encoded, c.ttl); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Cache backend write failed")
	}
}

// Clear drops the in-process layer. Backend entries age out via TTL.
func (c *ResponseCache) Clear() {
	c.lru.Purge()
}

func (c *ResponseCache) fresh(entry Entry) bool {
	age := c.clock.Now().UnixMilli() - entry.Timestamp
	return age <= c.ttl.Milliseconds()
}
