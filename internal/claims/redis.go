package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "claim:"

// claimScript takes the key for ARGV[1] when it is free and refreshes the
// TTL when ARGV[1] already holds it.
const claimScript = `
local cur = redis.call('GET', KEYS[1])
if not cur then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return 1
end
if cur == ARGV[1] then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	return 1
end
return 0`

// releaseScript deletes the key only when ARGV[1] holds it.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0`

type evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Close() error
}

// Redis stores one key per claimed sample holding the claimant's user ID.
type Redis struct {
	rdb evaler
	ttl time.Duration
}

// NewRedis connects to addr and verifies the connection with a PING.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

// Claim reports whether userID now holds sampleID.
func (r *Redis) Claim(ctx context.Context, sampleID, userID string) (bool, error) {
	n, err := r.rdb.Eval(ctx, claimScript, []string{keyPrefix + sampleID}, userID, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", sampleID, err)
	}
	return n == 1, nil
}

// Release drops the claim if userID holds it. Releasing a claim held by
// someone else, or an expired one, is a no-op.
func (r *Redis) Release(ctx context.Context, sampleID, userID string) error {
	if err := r.rdb.Eval(ctx, releaseScript, []string{keyPrefix + sampleID}, userID).Err(); err != nil {
		return fmt.Errorf("release %s: %w", sampleID, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
