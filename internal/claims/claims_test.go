package claims

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis interprets the two scripts against an in-memory map.
type fakeRedis struct {
	holders map[string]string
	ttls    map[string]int64
	err     error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{holders: map[string]string{}, ttls: map[string]int64{}}
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	key, user := keys[0], fmt.Sprint(args[0])
	cur, held := f.holders[key]
	switch script {
	case claimScript:
		if !held || cur == user {
			f.holders[key] = user
			f.ttls[key] = args[1].(int64)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	case releaseScript:
		if held && cur == user {
			delete(f.holders, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, errors.New("unknown script"))
}

func (f *fakeRedis) Close() error { return nil }

func TestNoop(t *testing.T) {
	var n Noop
	ok, err := n.Claim(context.Background(), "s1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, n.Release(context.Background(), "s1", "u1"))
}

func TestRedis_ClaimRelease(t *testing.T) {
	fake := newFakeRedis()
	r := &Redis{rdb: fake, ttl: 2 * time.Minute}
	ctx := context.Background()

	ok, err := r.Claim(ctx, "s1", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", fake.holders["claim:s1"])
	assert.Equal(t, int64(120000), fake.ttls["claim:s1"])

	ok, err = r.Claim(ctx, "s1", "bob")
	require.NoError(t, err)
	assert.False(t, ok, "held by another labeler")

	ok, err = r.Claim(ctx, "s1", "alice")
	require.NoError(t, err)
	assert.True(t, ok, "holder may re-claim")

	require.NoError(t, r.Release(ctx, "s1", "bob"))
	assert.Equal(t, "alice", fake.holders["claim:s1"], "release by non-holder is ignored")

	require.NoError(t, r.Release(ctx, "s1", "alice"))
	ok, err = r.Claim(ctx, "s1", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_Errors(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection reset")
	r := &Redis{rdb: fake, ttl: time.Minute}

	_, err := r.Claim(context.Background(), "s1", "alice")
	assert.ErrorContains(t, err, "connection reset")
	assert.ErrorContains(t, r.Release(context.Background(), "s1", "alice"), "release s1")
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedis(ctx, "127.0.0.1:1", "", 0, time.Minute)
	assert.Error(t, err)
}
