package redisremote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/sirupsen/logrus"

	"regioncache/version"
)

// NotifyEvent is what gets published to the invalidation channel whenever
// a remote write commits: other processes subscribed to the same channel
// use it to drive their own local invalidation instead of polling.
type NotifyEvent struct {
	Key        string      `json:"key"`
	VersionTag version.Tag `json:"version_tag"`
	Destroy    bool        `json:"destroy"`
}

// NotificationQueue is a pub/sub fan-out over a dedicated redigo pool — a
// second connection pool from the one go-redis uses for data operations,
// since a blocking Subscribe call must not compete with the pool go-redis
// uses for ordinary request/response traffic (adapted from the teacher's
// PubSubService, which used a single shared client for both).
type NotificationQueue struct {
	pool    *redis.Pool
	channel string
}

// NewNotificationQueue dials addr with a small dedicated pool sized for one
// long-lived subscriber connection plus headroom for publishers.
func NewNotificationQueue(addr, password string, channel string) *NotificationQueue {
	pool := &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			opts := []redis.DialOption{redis.DialConnectTimeout(10 * time.Second)}
			if password != "" {
				opts = append(opts, redis.DialPassword(password))
			}
			return redis.Dial("tcp", addr, opts...)
		},
	}
	return &NotificationQueue{pool: pool, channel: channel}
}

func (q *NotificationQueue) Close() error { return q.pool.Close() }

// Publish announces a remote write so other processes subscribed to the
// same channel can invalidate their local copy.
func (q *NotificationQueue) Publish(event NotifyEvent) error {
	conn := q.pool.Get()
	defer conn.Close()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = conn.Do("PUBLISH", q.channel, payload)
	return err
}

// Subscribe blocks delivering events to handler until ctx is canceled or
// the connection fails. Messages that fail to decode are logged and
// skipped, not fatal — one bad message must not tear down the subscription.
func (q *NotificationQueue) Subscribe(ctx context.Context, handler func(NotifyEvent)) error {
	conn := q.pool.Get()
	defer conn.Close()

	psc := redis.PubSubConn{Conn: conn}
	if err := psc.Subscribe(q.channel); err != nil {
		return err
	}
	defer psc.Unsubscribe(q.channel)

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()

	for {
		switch v := psc.Receive().(type) {
		case redis.Message:
			var event NotifyEvent
			if err := json.Unmarshal(v.Data, &event); err != nil {
				logger.WithError(err).Warn("dropping malformed notification")
				continue
			}
			handler(event)
		case redis.Subscription:
			logger.WithFields(logrus.Fields{"channel": v.Channel, "count": v.Count}).Debug("subscription state changed")
		case error:
			select {
			case <-ctx.Done():
				return nil
			default:
				return v
			}
		}
	}
}
