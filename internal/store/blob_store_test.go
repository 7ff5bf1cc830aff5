package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lihe8811/AquaSense/internal/config"
)

func newRedisBlobStore(t *testing.T) (*miniredis.Miniredis, *RedisBlobStore) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, Ping(context.Background(), client))
	return mr, NewRedisBlobStore(client)
}

func TestRedisBlobStore_ReadWriteDelete(t *testing.T) {
	mr, bs := newRedisBlobStore(t)
	ctx := context.Background()

	_, err := bs.ReadBlob(ctx, SessionKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, bs.WriteBlob(ctx, SessionKey, []byte(`{"token":"tok"}`), 0))
	require.NoError(t, bs.WriteBlob(ctx, ProfileSurveyKey, []byte(`{"age":30}`), 0))
	blob, err := bs.ReadBlob(ctx, SessionKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"tok"}`, string(blob))
	assert.Zero(t, mr.TTL(SessionKey), "session never expires")

	require.NoError(t, bs.DeleteBlobs(ctx, SessionKey, ProfileSurveyKey, "aquasense:absent"))
	assert.False(t, mr.Exists(SessionKey))
	assert.False(t, mr.Exists(ProfileSurveyKey))

	assert.NoError(t, bs.DeleteBlobs(ctx))
}

func TestRedisBlobStore_SnapshotExpires(t *testing.T) {
	mr, bs := newRedisBlobStore(t)
	ctx := context.Background()
	key := snapshotKeyPrefix + "42"

	require.NoError(t, bs.WriteBlob(ctx, key, []byte(`{}`), 24*time.Hour))
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	mr.FastForward(24*time.Hour + time.Second)
	_, err := bs.ReadBlob(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisBlobStore_ConnectionError(t *testing.T) {
	mr, bs := newRedisBlobStore(t)
	mr.Close()

	_, err := bs.ReadBlob(context.Background(), SessionKey)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
