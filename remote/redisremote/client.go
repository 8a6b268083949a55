// Package redisremote is the concrete RemoteOp (spec §6) backing this
// module's region layer: region writes/reads are forwarded to a Redis
// server, with version tags packed into a hash alongside the payload so a
// second process sharing the same Redis instance observes the same
// conflict-resolution state this process would.
package redisremote

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithFields(logrus.Fields{"component": "redisremote"})

// Client wraps a go-redis client, established with a bounded exponential
// backoff instead of the teacher's single Ping-and-fail dial, so a remote
// collaborator that is still starting up does not abort region open.
type Client struct {
	rdb *redis.Client
}

// Config bundles connection parameters the teacher's NewRedisClient
// hard-coded inline.
type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PoolTimeout  time.Duration
	MaxDialRetry time.Duration
}

// DefaultConfig mirrors the teacher's inline defaults.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MaxDialRetry: time.Minute,
	}
}

// NewClient dials Redis, retrying the initial Ping with exponential backoff
// up to cfg.MaxDialRetry before giving up.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
	})

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cfg.MaxDialRetry

	ping := func() error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis ping failed, retrying")
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("redisremote: failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
