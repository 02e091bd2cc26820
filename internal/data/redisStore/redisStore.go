package redisStore

import (
	"context"
	"os"
	"sync"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

var (
	instances = make(map[int]*Store)
	mu        sync.Mutex
	closeOnce sync.Once
)

type Store struct {
	client *redis.Client
	Type   int
	logger *logger_i.Logger
}

// GetRedisStore returns the shared client for one logical database, or nil
// when redis does not answer a ping. All stores are closed once ctx ends.
func GetRedisStore(ctx context.Context, dbType int) *Store {
	mu.Lock()
	defer mu.Unlock()

	if instance, exists := instances[dbType]; exists {
		return instance
	}
	s := connect(ctx, clientOptions(dbType))
	if s == nil {
		return nil
	}
	instances[dbType] = s
	closeOnce.Do(func() {
		go closeRedisStores(ctx)
	})
	return s
}

// clientOptions prefers REDIS_URL, then REDIS_ADDR, then the built in address.
func clientOptions(dbType int) *redis.Options {
	log := logger_i.NewLogger("RedisStore").With("db", dbType)
	if url := os.Getenv("REDIS_URL"); url != "" {
		opts, err := redis.ParseURL(url)
		if err == nil {
			opts.DB = dbType
			opts.ContextTimeoutEnabled = true
			return opts
		}
		log.Warn("Ignoring malformed REDIS_URL", "error", err)
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = config.RedisAddr
	}
	return &redis.Options{
		Addr:                  addr,
		Password:              config.RedisPassword,
		DB:                    dbType,
		ContextTimeoutEnabled: true,
		ReadTimeout:           config.RedisIOTimeout,
		WriteTimeout:          config.RedisIOTimeout,
	}
}

func connect(ctx context.Context, opts *redis.Options) *Store {
	log := logger_i.NewLogger("RedisStore").With("db", opts.DB, "addr", opts.Addr)
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, config.RedisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Error("Redis is offline", "error", err)
		_ = client.Close()
		return nil
	}
	log.Info("Redis store initialized")
	return &Store{client: client, Type: opts.DB, logger: log}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func closeRedisStores(ctx context.Context) {
	<-ctx.Done()
	mu.Lock()
	defer mu.Unlock()
	for dbType, s := range instances {
		if err := s.Close(); err != nil {
			s.logger.Error("Error closing redis client", "error", err)
			continue
		}
		s.logger.Info("Redis store closed")
		delete(instances, dbType)
	}
}

// NewTestStore wraps an existing client, typically one pointed at miniredis.
func NewTestStore(client *redis.Client) *Store {
	return &Store{client: client, logger: logger_i.NewLogger("RedisStore").With("db", "test")}
}
