package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tagmodel "tagtree/biz/model/tag"
)

func newTestCache(t *testing.T, estimatedKeys uint) (*redisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c, err := NewRedisCache(client, "tagtree:", estimatedKeys, 0.01)
	require.NoError(t, err)
	return c, mr
}

func TestNewRedisCache(t *testing.T) {
	_, err := NewRedisCache(nil, "p:", 0, 0)
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	_, err = NewRedisCache(client, "p:", 100, 1.5)
	assert.Error(t, err, "非法的误判率应该报错")
}

func TestRedisCache_TagRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, 0)

	_, version, err := c.GetTag(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(0), version)

	tag := &tagmodel.Tag{ID: "t1", Name: "A", Operator: "51admin", CreateTime: 1, UpdateTime: 2, Source: tagmodel.SourceAdmin}
	require.NoError(t, c.SetTag(ctx, "t1", version, tag, time.Hour))
	assert.True(t, mr.Exists("tagtree:tag:t1:0"))

	got, _, err := c.GetTag(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, tag, got)

	ttl := mr.TTL("tagtree:tag:t1:0")
	assert.GreaterOrEqual(t, ttl, time.Hour)
	assert.LessOrEqual(t, ttl, time.Hour+time.Duration(float64(time.Hour)*DefaultTTLJitterPercent))

	require.NoError(t, c.DeleteTag(ctx, "t1"))
	assert.False(t, mr.Exists("tagtree:tag:t1:0"))
	_, version, err = c.GetTag(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), version)
}

func TestRedisCache_StaleWriteAfterDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, 0)

	// 读者在失效前拿到版本，查库得到旧值
	_, version, err := c.GetTag(ctx, "t1")
	require.ErrorIs(t, err, ErrNotFound)

	// 写者提交并失效
	require.NoError(t, c.DeleteTag(ctx, "t1"))

	// 读者随后回填旧值，不应被之后的读取看到
	require.NoError(t, c.SetTag(ctx, "t1", version, &tagmodel.Tag{ID: "t1", Name: "old"}, time.Hour))
	_, _, err = c.GetTag(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisCache_NilValue(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, 0)

	require.NoError(t, c.SetTag(ctx, "missing", 0, nil, time.Hour))
	v, err := mr.Get("tagtree:tag:missing:0")
	require.NoError(t, err)
	assert.Equal(t, NilValuePlaceholder, v)

	_, _, err = c.GetTag(ctx, "missing")
	assert.ErrorIs(t, err, ErrNilValue)
}

func TestRedisCache_CorruptedTag(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, 0)

	require.NoError(t, mr.Set("tagtree:tag:bad:0", "{not json"))
	_, _, err := c.GetTag(ctx, "bad")
	assert.Error(t, err)
	assert.False(t, mr.Exists("tagtree:tag:bad:0"), "损坏的数据应被删除")
}

func TestRedisCache_Version(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, 1000)

	v, err := c.Version(ctx, "hierarchy")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	v, err = c.BumpVersion(ctx, "hierarchy")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// 其他进程递增的版本不受布隆过滤器影响
	require.NoError(t, mr.Set("tagtree:ver:other", "7"))
	v, err = c.Version(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	require.NoError(t, mr.Set("tagtree:ver:bad", "x"))
	_, err = c.Version(ctx, "bad")
	assert.Error(t, err)
}

func TestRedisCache_Bytes(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, 0)

	_, err := c.Get(ctx, "hierarchy")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "hierarchy", []byte(`[]`), time.Minute))
	got, err := c.Get(ctx, "hierarchy")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)

	require.NoError(t, c.Delete(ctx, "hierarchy"))
	_, err = c.Get(ctx, "hierarchy")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisCache_BloomFilter(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, 1000)

	t.Run("未写入过的键不访问 Redis", func(t *testing.T) {
		// 绕过缓存直接写入 Redis，过滤器不知道这个 key
		require.NoError(t, mr.Set("tagtree:hierarchy", "[]"))
		_, err := c.Get(ctx, "hierarchy")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("写入后可以命中", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "hierarchy", []byte(`[1]`), time.Minute))
		got, err := c.Get(ctx, "hierarchy")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[1]`), got)
	})

	t.Run("删除后过滤器仍可能命中但 Redis 返回未找到", func(t *testing.T) {
		require.NoError(t, c.SetTag(ctx, "t1", 0, &tagmodel.Tag{ID: "t1", Name: "A"}, time.Minute))
		require.NoError(t, c.DeleteTag(ctx, "t1"))
		_, _, err := c.GetTag(ctx, "t1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAddJitter(t *testing.T) {
	assert.Equal(t, time.Duration(0), addJitter(0))
	assert.Equal(t, -time.Second, addJitter(-time.Second))
	for i := 0; i < 100; i++ {
		got := addJitter(time.Minute)
		assert.GreaterOrEqual(t, got, time.Minute)
		assert.LessOrEqual(t, got, time.Minute+6*time.Second)
	}
}
