package cache

import (
	"context"
	"time"

	tagmodel "tagtree/biz/model/tag"
)

// TagCache 定义标签缓存操作接口
//
// 每个标签带一个版本号，值按 (id, 版本) 存放。读方在查库前拿到版本，回填时写回同一版本；
// 写方提交后递增版本，之后的读取不会再看到旧版本下的数据。
type TagCache interface {
	// GetTag 从缓存中获取标签，同时返回本次读取使用的版本，未命中时也有效。
	// 未命中返回 ErrNotFound；缓存了空值返回 ErrNilValue。
	GetTag(ctx context.Context, id string) (*tagmodel.Tag, int64, error)

	// SetTag 在指定版本下写入标签，tag 为 nil 时缓存空值 (防止缓存穿透)。
	SetTag(ctx context.Context, id string, version int64, tag *tagmodel.Tag, ttl time.Duration) error

	// DeleteTag 使一个或多个标签缓存失效，通常在数据库更新或删除后调用。
	DeleteTag(ctx context.Context, ids ...string) error
}

// Cache 通用的缓存操作接口，T 为缓存的数据类型。
type Cache[T any] interface {
	// Get 未命中返回 ErrNotFound。
	Get(ctx context.Context, key string) (T, error)

	// Set 写入键值对，实现应处理 TTL Jitter。
	Set(ctx context.Context, key string, value T, ttl time.Duration) error

	// Delete 删除指定的 key。
	Delete(ctx context.Context, key string) error
}

// Versioner 维护命名的单调递增版本号，不存在的版本视为 0。
type Versioner interface {
	Version(ctx context.Context, name string) (int64, error)
	BumpVersion(ctx context.Context, name string) (int64, error)
}

// VersionedCache 带版本号的字节缓存，用于整体失效的快照
type VersionedCache interface {
	Cache[[]byte]
	Versioner
}

// TagAndByteCache 组合了标签缓存和字节缓存，repo 层和 service 层都依赖它
type TagAndByteCache interface {
	TagCache
	VersionedCache
}
