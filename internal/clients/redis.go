package clients

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"internet-store/storeinit/internal/config"
	"internet-store/storeinit/internal/orchestrator"
)

const redisProbeName = "redis"

// unlockScript deletes the lock key only while it still holds the caller's
// token, so a run whose lock expired cannot release a successor's lock.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisConn is the subset of Redis behaviour RedisClient needs. It is
// implemented by the real go-redis client and by test doubles.
type redisConn interface {
	PingResult(ctx context.Context) (string, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (int64, error)
	Close() error
}

// realRedisConn adapts a *redis.Client to redisConn. The wrapper exists so
// tests can inject a fake without constructing go-redis command values.
type realRedisConn struct {
	client *redis.Client
}

func (r *realRedisConn) PingResult(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

func (r *realRedisConn) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *realRedisConn) CompareAndDelete(ctx context.Context, key, value string) (int64, error) {
	return unlockScript.Run(ctx, r.client, []string{key}, value).Int64()
}

func (r *realRedisConn) Close() error {
	return r.client.Close()
}

// RedisClient holds the bootstrap lock in Redis so that concurrent
// initializers against the same database run one at a time. It implements
// orchestrator.Locker.
type RedisClient struct {
	cfg  config.RedisConfig
	lock config.LockConfig
	cb   *gobreaker.CircuitBreaker

	mu   sync.Mutex
	conn redisConn
}

// NewRedisClient creates a RedisClient. No connection is opened at
// construction time; the go-redis client is built on first use.
func NewRedisClient(cfg config.RedisConfig, lock config.LockConfig, cb *gobreaker.CircuitBreaker) *RedisClient {
	return &RedisClient{
		cfg:  cfg,
		lock: lock,
		cb:   cb,
	}
}

func (c *RedisClient) client() redisConn {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.conn = &realRedisConn{
			client: redis.NewClient(&redis.Options{
				Addr:     fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port),
				Password: c.cfg.Password,
				DB:       c.cfg.DB,
			}),
		}
	}
	return c.conn
}

// TryLock attempts to take the lock for token. It returns false without error
// when another holder owns it.
func (c *RedisClient) TryLock(ctx context.Context, token string) (bool, error) {
	res, err := c.cb.Execute(func() (any, error) {
		ok, err := c.client().SetNX(ctx, c.lock.Key, token, c.lock.TTL)
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", c.lock.Key, err)
		}
		return ok, nil
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// Unlock releases the lock if token still owns it.
func (c *RedisClient) Unlock(ctx context.Context, token string) error {
	_, err := c.cb.Execute(func() (any, error) {
		n, err := c.client().CompareAndDelete(ctx, c.lock.Key, token)
		if err != nil {
			return nil, fmt.Errorf("releasing lock %s: %w", c.lock.Key, err)
		}
		if n == 0 {
			slog.Warn("bootstrap lock expired before release", "key", c.lock.Key, "ttl", c.lock.TTL.String())
		}
		return nil, nil
	})
	return err
}

// Probe sends a PING command to Redis and validates the PONG response. The call
// is wrapped in the circuit breaker; after 3 consecutive failures the breaker
// opens and subsequent calls return immediately with "circuit open".
func (c *RedisClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		val, err := c.client().PingResult(ctx)
		if err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		if val != "PONG" {
			return nil, fmt.Errorf("unexpected PING response: %q", val)
		}
		return nil, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		return orchestrator.ProbeResult{
			Name:      redisProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     breakerMessage(err),
		}
	}

	return orchestrator.ProbeResult{
		Name:      redisProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}

// Close releases the underlying connection pool.
func (c *RedisClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
