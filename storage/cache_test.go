package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel-panel/utils"
)

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "covid.csv")

	ok, err := FileCache{}.Restore(ctx, "covid", path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("region,month\n"), 0644))
	ok, err = FileCache{}.Restore(ctx, "covid", path)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = FileCache{}.Restore(ctx, "dir", dir)
	require.NoError(t, err)
	assert.False(t, ok, "a directory is not a cached table")
}

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), mr.Addr(), "", time.Hour, utils.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisCacheStoreAndRestore(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)

	src := filepath.Join(t.TempDir(), "fx_rates.csv")
	content := "month,eurusd\n2020-01-01,1.11\n"
	require.NoError(t, os.WriteFile(src, []byte(content), 0644))
	require.NoError(t, c.Store(ctx, "fx_rates", src))

	got, err := mr.Get("hotel-panel:raw:fx_rates")
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, time.Hour, mr.TTL("hotel-panel:raw:fx_rates"))

	dst := filepath.Join(t.TempDir(), "raw", "fx_rates.csv")
	ok, err := c.Restore(ctx, "fx_rates", dst)
	require.NoError(t, err)
	assert.True(t, ok)

	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, string(raw))
}

func TestRedisCacheMiss(t *testing.T) {
	c, _ := newTestRedisCache(t)

	ok, err := c.Restore(context.Background(), "mobility", filepath.Join(t.TempDir(), "mobility.csv"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCachePrefersLocalFile(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)
	require.NoError(t, mr.Set("hotel-panel:raw:covid", "stale"))

	path := filepath.Join(t.TempDir(), "covid.csv")
	require.NoError(t, os.WriteFile(path, []byte("fresh"), 0644))

	ok, err := c.Restore(ctx, "covid", path)
	require.NoError(t, err)
	assert.True(t, ok)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(raw))
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(context.Background(), addr, "", time.Hour, nil)
	assert.Error(t, err)
}
