package app

import (
	"strings"

	"github.com/charlesng35/bookshelf/internal/cache"
	"github.com/charlesng35/bookshelf/internal/database"
)

// Supported cache drivers.
const (
	CacheDriverMemory   = "memory"
	CacheDriverRedis    = "redis"
	CacheDriverDatabase = "database"
	CacheDriverNone     = "none"
)

// DriverName returns the normalised cache driver, defaulting to memory.
func (c CacheConfig) DriverName() string {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver == "" {
		return CacheDriverMemory
	}
	return driver
}

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:   strings.TrimSpace(c.Redis.Address),
		Username:  strings.TrimSpace(c.Redis.Username),
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		TLS:       c.Redis.TLS,
		Timeout:   c.Redis.Timeout,
		KeyPrefix: c.KeyPrefix,
	}
}

// MemoryStoreConfig fills unset memory cache settings from the package defaults.
func (c CacheConfig) MemoryStoreConfig() cache.MemoryConfig {
	cfg := cache.DefaultMemoryConfig()
	if c.Memory.Capacity > 0 {
		cfg.Capacity = c.Memory.Capacity
	}
	if c.Memory.Shards > 0 {
		cfg.NumShards = c.Memory.Shards
	}
	if c.Memory.EvictionPercentage > 0 {
		cfg.EvictionPercentage = c.Memory.EvictionPercentage
	}
	if c.Memory.MaxTTL > 0 {
		cfg.MaxTTL = c.Memory.MaxTTL
	}
	return cfg
}

// ClientOptions translates ttl, cooldown and timeout settings into client options.
func (c CacheConfig) ClientOptions() []cache.Option {
	return []cache.Option{
		cache.WithDefaultTTL(c.TTL),
		cache.WithCooldown(c.Cooldown),
		cache.WithOperationTimeout(c.OperationTimeout),
	}
}

// ConnectionConfig converts database settings into the database package representation.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	return database.Config{
		Driver:          c.Driver,
		Path:            c.Path,
		DSN:             c.DSN,
		Host:            c.Host,
		Port:            c.Port,
		Name:            c.Name,
		User:            c.User,
		Password:        c.Password,
		Options:         c.Options,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}
