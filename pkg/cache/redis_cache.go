package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/willf/bloom"

	tagmodel "tagtree/biz/model/tag"
)

const (
	// NilValuePlaceholder 用于在 Redis 中标记空值，以区分 key 不存在和 key 存在但值为空。
	NilValuePlaceholder = "__NIL_VALUE__"
	// NilValueTTL 空值的 TTL 较短，防止长时间缓存不存在的数据。
	NilValueTTL = 5 * time.Minute
	// DefaultTTLJitterPercent 在基础 TTL 上增加 0% 到 10% 的随机时间。
	DefaultTTLJitterPercent = 0.1
)

// redisCache 实现了 TagCache 和 Cache[[]byte] 接口
type redisCache struct {
	client *redis.Client
	prefix string

	// filter 记录本进程写入过的 key，Test 为 false 的 key 一定没被写过，可以省掉一次 GET
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewRedisCache 创建一个新的 Redis 缓存实例。
// estimatedKeys 为 0 时不启用布隆过滤器。
func NewRedisCache(client *redis.Client, prefix string, estimatedKeys uint, fpRate float64) (*redisCache, error) {
	if client == nil {
		return nil, errors.New("cache: redis client cannot be nil")
	}
	c := &redisCache{
		client: client,
		prefix: prefix,
	}
	if estimatedKeys > 0 {
		if fpRate <= 0 || fpRate >= 1 {
			return nil, fmt.Errorf("cache: invalid bloom false positive rate %v", fpRate)
		}
		c.filter = bloom.NewWithEstimates(estimatedKeys, fpRate)
	}
	return c, nil
}

func (r *redisCache) tagKey(id string, version int64) string {
	return fmt.Sprintf("%stag:%s:%d", r.prefix, id, version)
}

func (r *redisCache) versionKey(name string) string {
	return r.prefix + "ver:" + name
}

func tagVersionName(id string) string {
	return "tag:" + id
}

func (r *redisCache) rawKey(key string) string {
	return r.prefix + key
}

// mightExist 布隆过滤器判断 key 是否可能存在
func (r *redisCache) mightExist(key string) bool {
	if r.filter == nil {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter.Test([]byte(key))
}

func (r *redisCache) remember(key string) {
	if r.filter == nil {
		return
	}
	r.mu.Lock()
	r.filter.Add([]byte(key))
	r.mu.Unlock()
}

// --- TagCache 实现 ---

// GetTag 实现 TagCache 的 GetTag 方法
func (r *redisCache) GetTag(ctx context.Context, id string) (*tagmodel.Tag, int64, error) {
	version, err := r.Version(ctx, tagVersionName(id))
	if err != nil {
		return nil, 0, err
	}
	key := r.tagKey(id, version)
	if !r.mightExist(key) {
		return nil, version, ErrNotFound
	}
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, version, ErrNotFound
	} else if err != nil {
		return nil, version, fmt.Errorf("cache: redis get failed for key %s: %w", key, err)
	}

	if val == NilValuePlaceholder {
		return nil, version, ErrNilValue
	}

	var t tagmodel.Tag
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		// 数据损坏，删除后当作未命中
		r.client.Del(ctx, key)
		return nil, version, fmt.Errorf("cache: failed to unmarshal tag data for key %s: %w", key, err)
	}
	return &t, version, nil
}

// SetTag 实现 TagCache 的 SetTag 方法
func (r *redisCache) SetTag(ctx context.Context, id string, version int64, t *tagmodel.Tag, ttl time.Duration) error {
	key := r.tagKey(id, version)

	if t == nil {
		if err := r.client.Set(ctx, key, NilValuePlaceholder, addJitter(NilValueTTL)).Err(); err != nil {
			return fmt.Errorf("cache: redis set nil value failed for key %s: %w", key, err)
		}
		r.remember(key)
		return nil
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal tag data for key %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, addJitter(ttl)).Err(); err != nil {
		return fmt.Errorf("cache: redis set failed for key %s: %w", key, err)
	}
	r.remember(key)
	return nil
}

// DeleteTag 实现 TagCache 的 DeleteTag 方法
// 先递增版本，再删掉旧版本下的值。慢读者随后写回旧版本也不会被读到，只等 TTL 过期。
func (r *redisCache) DeleteTag(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	cmds := make([]*redis.IntCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.Incr(ctx, r.versionKey(tagVersionName(id)))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: redis incr failed for %d tag versions: %w", len(ids), err)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.tagKey(id, cmds[i].Val()-1)
	}
	// key 不存在时 Del 也会成功返回
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: redis del failed for %d tag keys: %w", len(keys), err)
	}
	return nil
}

// --- Versioner 实现 ---

// Version 直接读 Redis，不经过布隆过滤器，其他进程递增的版本也能看到
func (r *redisCache) Version(ctx context.Context, name string) (int64, error) {
	key := r.versionKey(name)
	v, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("cache: redis get version failed for key %s: %w", key, err)
	}
	return v, nil
}

// BumpVersion 原子递增版本号并返回新值
func (r *redisCache) BumpVersion(ctx context.Context, name string) (int64, error) {
	key := r.versionKey(name)
	v, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: redis incr failed for key %s: %w", key, err)
	}
	return v, nil
}

// --- Cache[[]byte] 实现 ---

// Get 实现 Cache[[]byte] 的 Get 方法
func (r *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	fullKey := r.rawKey(key)
	if !r.mightExist(fullKey) {
		return nil, ErrNotFound
	}
	val, err := r.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("cache: redis get failed for key %s: %w", fullKey, err)
	}
	return val, nil
}

// Set 实现 Cache[[]byte] 的 Set 方法
func (r *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	fullKey := r.rawKey(key)
	if err := r.client.Set(ctx, fullKey, value, addJitter(ttl)).Err(); err != nil {
		return fmt.Errorf("cache: redis set failed for key %s: %w", fullKey, err)
	}
	r.remember(fullKey)
	return nil
}

// Delete 实现 Cache[[]byte] 的 Delete 方法
func (r *redisCache) Delete(ctx context.Context, key string) error {
	fullKey := r.rawKey(key)
	if err := r.client.Del(ctx, fullKey).Err(); err != nil {
		return fmt.Errorf("cache: redis del failed for key %s: %w", fullKey, err)
	}
	return nil
}

// --- 辅助函数 ---

// addJitter 为 TTL 增加随机偏移，防止缓存雪崩
func addJitter(baseTTL time.Duration) time.Duration {
	if baseTTL <= 0 {
		return baseTTL
	}
	jitter := time.Duration(rand.Float64() * DefaultTTLJitterPercent * float64(baseTTL))
	return baseTTL + jitter
}

var _ TagAndByteCache = (*redisCache)(nil)
