package redisremote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"regioncache/errs"
)

// releaseScript deletes key only if its value still matches the token this
// Lock instance set, so releasing never removes a lock some other holder
// has since acquired (adapted from the teacher's DistributedLock).
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

// Lock is a Redis-backed mutual-exclusion lock scoped to one key, for
// serializing remote operations that must not interleave across processes
// (e.g. a region-wide clear racing a per-key put). The region package does
// not take it itself.
type Lock struct {
	client *Client
	key    string
	token  string
	expiry time.Duration
}

// NewLock constructs a lock over name, tokened with a fresh uuid so only
// this holder's Release can succeed.
func NewLock(client *Client, name string, expiry time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    fmt.Sprintf("lock:%s", name),
		token:  uuid.New().String(),
		expiry: expiry,
	}
}

// Acquire attempts to set the lock key, succeeding only if it did not
// already exist.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	return l.client.rdb.SetNX(ctx, l.key, l.token, l.expiry).Result()
}

// Release deletes the lock key only if it still holds this instance's
// token, reported as a state error if some other holder already owns it.
func (l *Lock) Release(ctx context.Context) error {
	result, err := l.client.rdb.Eval(ctx, releaseScript, []string{l.key}, l.token).Result()
	if err != nil {
		return err
	}
	if n, ok := result.(int64); !ok || n == 0 {
		return errs.New(errs.KindState, "redisremote: lock not owned by this holder")
	}
	return nil
}
