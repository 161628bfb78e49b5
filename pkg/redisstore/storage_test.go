package redisstore_test

import (
	"context"
	"testing"
	"time"

	"kalm/pkg/redisstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ fiber.Storage = (*redisstore.Storage)(nil)

func newStorage(t *testing.T) (*redisstore.Storage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := redisstore.New(context.Background(), mr.Addr(), "limiter:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStorageSetGetDelete(t *testing.T) {
	s, mr := newStorage(t)

	val, err := s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, s.Set("ip:1", []byte("3"), time.Minute))
	assert.True(t, mr.Exists("limiter:ip:1"))

	val, err = s.Get("ip:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), val)

	require.NoError(t, s.Delete("ip:1"))
	val, err = s.Get("ip:1")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestStorageExpiry(t *testing.T) {
	s, mr := newStorage(t)

	require.NoError(t, s.Set("ip:2", []byte("1"), time.Second))
	mr.FastForward(2 * time.Second)

	val, err := s.Get("ip:2")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestStorageResetOnlyTouchesPrefix(t *testing.T) {
	s, mr := newStorage(t)

	require.NoError(t, mr.Set("other", "keep"))
	require.NoError(t, s.Set("a", []byte("1"), 0))
	require.NoError(t, s.Set("b", []byte("2"), 0))

	require.NoError(t, s.Reset())
	assert.False(t, mr.Exists("limiter:a"))
	assert.False(t, mr.Exists("limiter:b"))
	assert.True(t, mr.Exists("other"))
}

func TestNewFailsWithoutServer(t *testing.T) {
	_, err := redisstore.New(context.Background(), "127.0.0.1:1", "x:")
	assert.Error(t, err)
}
