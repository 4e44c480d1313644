// Package presence is a purely observational, cross-instance directory of
// which documents are currently open and how many local peers each
// instance sees. It is never consulted to decide loop-breaking, dedup, or
// actor lifecycle — only to answer an operator hitting any instance's
// /docs endpoint.
package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Directory is the presence surface the server's WebSocket handler drives
// when a session starts and ends.
type Directory interface {
	Register(ctx context.Context, docName, instanceID string, peerCount int, ttl time.Duration) error
	Unregister(ctx context.Context, docName, instanceID string) error
	Documents(ctx context.Context) ([]string, error)
	PeerCount(ctx context.Context, docName string) (int, error)
}

const docsSetKey = "docrelay:docs"

func instanceKey(docName string) string {
	return "docrelay:doc:" + docName + ":instances"
}

type redisDirectory struct {
	rdb *redis.Client
}

// NewRedisDirectory wraps an already-configured client.
func NewRedisDirectory(rdb *redis.Client) Directory {
	return &redisDirectory{rdb: rdb}
}

// Register records instanceID's current local peer count for docName,
// refreshing the instance key's TTL so a crashed instance ages out rather
// than lingering forever.
func (d *redisDirectory) Register(ctx context.Context, docName, instanceID string, peerCount int, ttl time.Duration) error {
	pipe := d.rdb.Pipeline()
	pipe.SAdd(ctx, docsSetKey, docName)
	pipe.HSet(ctx, instanceKey(docName), instanceID, peerCount)
	pipe.Expire(ctx, instanceKey(docName), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Unregister removes instanceID's entry for docName, dropping docName from
// the documents set entirely once no instance reports it any more.
func (d *redisDirectory) Unregister(ctx context.Context, docName, instanceID string) error {
	if err := d.rdb.HDel(ctx, instanceKey(docName), instanceID).Err(); err != nil {
		return err
	}
	remaining, err := d.rdb.HLen(ctx, instanceKey(docName)).Result()
	if err != nil {
		return err
	}
	if remaining == 0 {
		return d.rdb.SRem(ctx, docsSetKey, docName).Err()
	}
	return nil
}

func (d *redisDirectory) Documents(ctx context.Context) ([]string, error) {
	return d.rdb.SMembers(ctx, docsSetKey).Result()
}

// PeerCount sums every instance's reported count for docName.
func (d *redisDirectory) PeerCount(ctx context.Context, docName string) (int, error) {
	vals, err := d.rdb.HGetAll(ctx, instanceKey(docName)).Result()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, v := range vals {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			continue
		}
		total += n
	}
	return total, nil
}

// NoopDirectory is used when no Redis endpoint is configured; every call
// is a silent no-op so the WebSocket handler's session start/end path
// never has to branch on whether presence tracking is enabled.
type NoopDirectory struct{}

func (NoopDirectory) Register(context.Context, string, string, int, time.Duration) error {
	return nil
}
func (NoopDirectory) Unregister(context.Context, string, string) error { return nil }
func (NoopDirectory) Documents(context.Context) ([]string, error)      { return nil, nil }
func (NoopDirectory) PeerCount(context.Context, string) (int, error)   { return 0, nil }
