package redisremote

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"regioncache/remote"
	"regioncache/serializer"
	"regioncache/version"
)

// memberID is this process's interned member id as seen by the remote
// store; stamped onto every tag this RemoteOp hands back (spec §4.5's
// "interned member id" applies just as much to the remote side of a
// write as the local one).
type Op struct {
	client   *Client
	memberID uint16
	prefix   string
	codec    serializer.Codec
}

// NewOp constructs a RemoteOp; keyPrefix namespaces this region's keys
// within the shared Redis keyspace (e.g. "region:orders:"). Values round
// trip through serializer.JSONCodec; call SetCodec to use a different wire
// format (e.g. serializer.ProtoCodec for regions of proto.Message values).
func NewOp(client *Client, memberID uint16, keyPrefix string) *Op {
	return &Op{client: client, memberID: memberID, prefix: keyPrefix, codec: serializer.JSONCodec{}}
}

// SetCodec overrides the wire codec used to marshal/unmarshal payloads.
func (o *Op) SetCodec(codec serializer.Codec) { o.codec = codec }

func (o *Op) redisKey(key any) string {
	return fmt.Sprintf("%s%v", o.prefix, key)
}

// versionIncrScript atomically bumps the region-version counter stored
// alongside the payload and writes the new payload + stamp fields in one
// round trip, returning the new region-version so callers need not make a
// second call to learn what they just wrote.
const versionIncrScript = `
local newVersion = redis.call("HINCRBY", KEYS[1], "region_version", 1)
redis.call("HSET", KEYS[1], "payload", ARGV[1], "entry_version", ARGV[2], "member_id", ARGV[3])
redis.call("HSET", KEYS[1], "region_version", newVersion)
return newVersion
`

// Call implements remote.RemoteOp (spec §6): one call per region API
// operation, forwarding to the Redis-backed store and returning the
// authoritative version tag the store assigned.
func (o *Op) Call(ctx context.Context, op remote.OpKind, key any, value any, timeout time.Duration) (remote.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rkey := o.redisKey(key)

	switch op {
	case remote.OpGet:
		return o.get(ctx, rkey)
	case remote.OpDestroy:
		return o.destroy(ctx, rkey)
	case remote.OpInvalidate:
		return o.put(ctx, rkey, nil, true)
	default: // OpCreate, OpPut
		return o.put(ctx, rkey, value, false)
	}
}

func (o *Op) put(ctx context.Context, rkey string, value any, invalidate bool) (remote.Result, error) {
	var payload []byte
	var err error
	if !invalidate {
		payload, err = o.codec.Marshal(value)
		if err != nil {
			return remote.Result{Status: remote.StatusError}, err
		}
	}

	res := o.client.rdb.Eval(ctx, versionIncrScript, []string{rkey}, string(payload), 1, o.memberID)
	newVersion, err := res.Int64()
	if err != nil {
		if ctx.Err() != nil {
			return remote.Result{Status: remote.StatusTimedOut}, ctx.Err()
		}
		return remote.Result{Status: remote.StatusError}, err
	}

	tag := version.Tag{
		EntryVersion:     1,
		RegionVersionLow: uint32(newVersion),
		MemberID:         o.memberID,
		Timestamp:        time.Now(),
	}
	return remote.Result{Status: remote.StatusOK, VersionTag: tag}, nil
}

func (o *Op) get(ctx context.Context, rkey string) (remote.Result, error) {
	fields, err := o.client.rdb.HGetAll(ctx, rkey).Result()
	if err != nil {
		if err == redis.Nil {
			return remote.Result{Status: remote.StatusOK}, nil
		}
		return remote.Result{Status: remote.StatusError}, err
	}
	if len(fields) == 0 {
		return remote.Result{Status: remote.StatusOK}, nil
	}

	var payload any
	if raw, ok := fields["payload"]; ok && raw != "" {
		if err := o.codec.Unmarshal([]byte(raw), &payload); err != nil {
			return remote.Result{Status: remote.StatusError}, err
		}
	}

	tag := version.Tag{MemberID: o.memberID}
	return remote.Result{Status: remote.StatusOK, Value: payload, VersionTag: tag}, nil
}

func (o *Op) destroy(ctx context.Context, rkey string) (remote.Result, error) {
	if err := o.client.rdb.Del(ctx, rkey).Err(); err != nil {
		return remote.Result{Status: remote.StatusError}, err
	}
	return remote.Result{Status: remote.StatusOK}, nil
}

// GetFullObject implements spec §6's invalid-delta recovery: a plain get
// that ignores whatever partial state a failed delta application left
// behind.
func (o *Op) GetFullObject(ctx context.Context, eventID string) (any, version.Tag, error) {
	result, err := o.get(ctx, o.redisKey(eventID))
	if err != nil {
		return nil, version.Tag{}, err
	}
	return result.Value, result.VersionTag, nil
}
