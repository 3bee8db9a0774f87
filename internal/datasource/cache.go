package datasource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xwb1989/sqlparser"
	"go.uber.org/zap"
)

// DefaultCacheTTL is used when a cache is configured without a TTL
const DefaultCacheTTL = 5 * time.Minute

// CachedStore caches select results in Redis. Any other statement runs
// against the wrapped store and then clears every cached result.
type CachedStore struct {
	store  Store
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStore wraps store with a Redis select cache
func NewCachedStore(store Store, client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{
		store:  store,
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// NewRedisClient creates a Redis client for a cache config
func NewRedisClient(config CacheConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
}

// Connect connects the wrapped store and checks Redis is reachable
func (c *CachedStore) Connect(ctx context.Context) error {
	if err := c.store.Connect(ctx); err != nil {
		return err
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.Warn("select cache unavailable", zap.Error(err))
	}
	return nil
}

// Query serves selects from the cache when possible
func (c *CachedStore) Query(ctx context.Context, statement string) (*Cursor, error) {
	if sqlparser.Preview(statement) != sqlparser.StmtSelect {
		cursor, err := c.store.Query(ctx, statement)
		if err != nil {
			return nil, err
		}
		if err := c.Clear(ctx); err != nil {
			c.logger.Warn("failed to clear select cache", zap.Error(err))
		}
		return cursor, nil
	}

	key := c.key(statement)
	if rows, ok := c.get(ctx, key); ok {
		return NewCursor(rows...), nil
	}

	cursor, err := c.store.Query(ctx, statement)
	if err != nil {
		return nil, err
	}

	data, err := encodeRows(cursor.Rows())
	if err != nil {
		c.logger.Warn("failed to encode rows for cache", zap.Error(err))
		return cursor, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache rows", zap.Error(err))
	}
	return cursor, nil
}

func (c *CachedStore) get(ctx context.Context, key string) ([]Row, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("select cache lookup failed", zap.Error(err))
		}
		return nil, false
	}

	rows, err := decodeRows(data)
	if err != nil {
		c.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	c.logger.Debug("select cache hit", zap.String("key", key))
	return rows, true
}

// cachedValue carries a column value with its Go type so a cache hit
// returns the same types as the store did
type cachedValue struct {
	Kind  string          `json:"k"`
	Value json.RawMessage `json:"v,omitempty"`
}

const (
	kindNull    = "null"
	kindInt64   = "int64"
	kindInt     = "int"
	kindFloat64 = "float64"
	kindBool    = "bool"
	kindString  = "string"
	kindBytes   = "bytes"
	kindTime    = "time"
	kindJSON    = "json"
)

func encodeRows(rows []Row) ([]byte, error) {
	encoded := make([]map[string]cachedValue, 0, len(rows))
	for _, row := range rows {
		values := make(map[string]cachedValue, len(row))
		for column, v := range row {
			cv, err := encodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", column, err)
			}
			values[column] = cv
		}
		encoded = append(encoded, values)
	}
	return json.Marshal(encoded)
}

func encodeValue(v interface{}) (cachedValue, error) {
	var kind string
	switch v.(type) {
	case nil:
		return cachedValue{Kind: kindNull}, nil
	case int64:
		kind = kindInt64
	case int:
		kind = kindInt
	case float64:
		kind = kindFloat64
	case bool:
		kind = kindBool
	case string:
		kind = kindString
	case []byte:
		kind = kindBytes
	case time.Time:
		kind = kindTime
	default:
		kind = kindJSON
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return cachedValue{}, err
	}
	return cachedValue{Kind: kind, Value: raw}, nil
}

func decodeRows(data []byte) ([]Row, error) {
	var encoded []map[string]cachedValue
	if err := json.Unmarshal(data, &encoded); err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(encoded))
	for _, values := range encoded {
		row := make(Row, len(values))
		for column, cv := range values {
			v, err := decodeValue(cv)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", column, err)
			}
			row[column] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeValue(cv cachedValue) (interface{}, error) {
	switch cv.Kind {
	case kindNull:
		return nil, nil
	case kindInt64:
		var v int64
		return v, json.Unmarshal(cv.Value, &v)
	case kindInt:
		var v int
		return v, json.Unmarshal(cv.Value, &v)
	case kindFloat64:
		var v float64
		return v, json.Unmarshal(cv.Value, &v)
	case kindBool:
		var v bool
		return v, json.Unmarshal(cv.Value, &v)
	case kindString:
		var v string
		return v, json.Unmarshal(cv.Value, &v)
	case kindBytes:
		var v []byte
		return v, json.Unmarshal(cv.Value, &v)
	case kindTime:
		var v time.Time
		return v, json.Unmarshal(cv.Value, &v)
	case kindJSON:
		var v interface{}
		return v, json.Unmarshal(cv.Value, &v)
	default:
		return nil, fmt.Errorf("unknown cached kind %q", cv.Kind)
	}
}

func (c *CachedStore) key(statement string) string {
	sum := sha256.Sum256([]byte(statement))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Clear removes every cached result under the prefix
func (c *CachedStore) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Shutdown shuts down the wrapped store and closes the Redis client
func (c *CachedStore) Shutdown(ctx context.Context) error {
	err := c.store.Shutdown(ctx)
	if cerr := c.client.Close(); cerr != nil && !errors.Is(cerr, redis.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}
