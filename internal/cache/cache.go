package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Cache stores string values with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Config selects a backend.
type Config struct {
	// Driver is one of none, redis, badger.
	Driver string        `yaml:"driver" env:"DRIVER" json:"driver"`
	TTL    time.Duration `yaml:"ttl" env:"TTL" json:"ttl"`

	Redis  RedisConfig  `yaml:"redis" env:"REDIS" json:"redis"`
	Badger BadgerConfig `yaml:"badger" env:"BADGER" json:"badger"`
}

// DefaultConfig disables caching.
func DefaultConfig() Config {
	return Config{
		Driver: "none",
		TTL:    24 * time.Hour,
		Redis:  DefaultRedisConfig(),
		Badger: BadgerConfig{Dir: "data/cache"},
	}
}

// Validate checks the backend selection.
func (c Config) Validate() error {
	switch c.Driver {
	case "", "none":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required")
		}
	case "badger":
		if !c.Badger.InMemory && c.Badger.Dir == "" {
			return fmt.Errorf("cache.badger.dir is required unless in_memory is set")
		}
	default:
		return fmt.Errorf("unknown cache driver %q", c.Driver)
	}
	if c.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	return nil
}

// Open returns the configured backend.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "redis":
		rc := cfg.Redis
		if rc.DefaultTTL == 0 {
			rc.DefaultTTL = cfg.TTL
		}
		m, err := NewRedisCache(ctx, rc, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "badger":
		b, err := NewBadgerCache(cfg.Badger, cfg.TTL, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return Noop{}, nil
	}
}

// Key derives the cache key of a translation. variant distinguishes plugin
// configurations that translate the same input differently, typically a
// digest of the plugin settings.
func Key(pluginID, variant, src, dst, text string) string {
	h := sha256.New()
	for _, part := range []string{pluginID, variant, src, dst, text} {
		// Length-prefix each part so that ("a","bc") and ("ab","c") differ.
		fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return "mt:" + pluginID + ":" + hex.EncodeToString(h.Sum(nil))
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, error)              { return "", ErrCacheMiss }
func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }
func (Noop) Close() error                                             { return nil }
