package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerConfig configures the embedded backend.
type BadgerConfig struct {
	Dir      string `yaml:"dir" env:"DIR" json:"dir"`
	InMemory bool   `yaml:"in_memory" env:"IN_MEMORY" json:"in_memory"`
}

// BadgerCache BadgerDB 实现的缓存
type BadgerCache struct {
	db         *badger.DB
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewBadgerCache opens the database described by cfg.
func NewBadgerCache(cfg BadgerConfig, defaultTTL time.Duration, logger *zap.Logger) (*BadgerCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	logger = logger.With(zap.String("component", "cache"), zap.String("driver", "badger"))
	logger.Info("cache initialized", zap.String("dir", cfg.Dir), zap.Bool("in_memory", cfg.InMemory))
	return &BadgerCache{db: db, defaultTTL: defaultTTL, logger: logger}, nil
}

// Get 从缓存获取值
func (c *BadgerCache) Get(_ context.Context, key string) (string, error) {
	var value string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache get failed: %w", err)
	}
	return value, nil
}

// Set 写入缓存，ttl 为 0 时使用默认过期时间
func (c *BadgerCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), []byte(value))
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		c.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Close 关闭数据库
func (c *BadgerCache) Close() error {
	c.logger.Info("closing cache")
	return c.db.Close()
}
