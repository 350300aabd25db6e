package feeds

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/swarm/market"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Timeout  time.Duration
}

type RedisOption func(*RedisConfig)

func WithAddr(addr string) RedisOption {
	return func(c *RedisConfig) { c.Addr = addr }
}

func WithPassword(pw string) RedisOption {
	return func(c *RedisConfig) { c.Password = pw }
}

func WithDB(db int) RedisOption {
	return func(c *RedisConfig) { c.DB = db }
}

func WithPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.Prefix = prefix }
}

// RedisSource reads snapshots written by the feature pipeline as hashes
// at <prefix>:features:<asset>. Non-numeric fields are skipped.
type RedisSource struct {
	client *redis.Client
	prefix string
	log    zerolog.Logger
}

// NewRedisSource connects and pings the server.
func NewRedisSource(log zerolog.Logger, opts ...RedisOption) (*RedisSource, error) {
	cfg := &RedisConfig{
		Addr:    "localhost:6379",
		Prefix:  "swarm",
		Timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		ReadTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisSourceFromClient(client, cfg.Prefix, log), nil
}

func NewRedisSourceFromClient(client *redis.Client, prefix string, log zerolog.Logger) *RedisSource {
	return &RedisSource{client: client, prefix: prefix, log: log}
}

func (r *RedisSource) Key(asset string) string {
	return FeatureKey(r.prefix, asset)
}

func (r *RedisSource) Snapshot(ctx context.Context, asset string) (market.Features, error) {
	key := r.Key(asset)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return market.Features{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return market.Features{}, ErrNoSnapshot
	}

	f, skipped := ParseFields(asset, fields, time.Now().UTC())
	if len(skipped) > 0 {
		r.log.Debug().Str("key", key).Strs("skipped", skipped).Msg("non-numeric feature fields")
	}
	return f, nil
}

// Publish writes a snapshot so other processes can read it.
func (r *RedisSource) Publish(ctx context.Context, f market.Features) error {
	if f.Empty() {
		return nil
	}
	vals := make(map[string]any, len(f.Values)+1)
	for k, v := range f.Values {
		vals[k] = v
	}
	vals[timestampField] = f.Time.UTC().Format(time.RFC3339Nano)
	return r.client.HSet(ctx, r.Key(f.Asset), vals).Err()
}

func (r *RedisSource) Close() error {
	return r.client.Close()
}

const timestampField = "timestamp"

func FeatureKey(prefix, asset string) string {
	if prefix == "" {
		return "features:" + asset
	}
	return prefix + ":features:" + asset
}

// ParseFields converts a feature hash into a snapshot. The optional
// timestamp field sets the snapshot time; otherwise now is used. It
// returns the names of fields that did not parse as numbers.
func ParseFields(asset string, fields map[string]string, now time.Time) (market.Features, []string) {
	f := market.NewFeatures(asset, now)
	var skipped []string
	for k, s := range fields {
		if k == timestampField {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				f.Time = t.UTC()
			}
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			skipped = append(skipped, k)
			continue
		}
		f.Values[k] = v
	}
	return f, skipped
}
