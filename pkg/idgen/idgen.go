// Package idgen 提供标签 ID 生成器。ID 只要求全局唯一，不承载业务含义。
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	KindULID   = "ulid"
	KindUUIDv7 = "uuidv7"
)

// Generator 生成全局唯一的字符串 ID，实现必须是并发安全的
type Generator interface {
	NewID() (string, error)
}

// New 根据配置名称创建生成器，空字符串使用 ULID
func New(kind string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindULID:
		return NewULID(), nil
	case KindUUIDv7:
		return UUIDv7{}, nil
	default:
		return nil, fmt.Errorf("idgen: unknown generator kind %q", kind)
	}
}

// ULIDGenerator 单调递增的 ULID，同一毫秒内生成的 ID 仍然有序
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewULID 创建 ULID 生成器
func NewULID() *ULIDGenerator {
	return &ULIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

func (g *ULIDGenerator) NewID() (string, error) {
	// Monotonic 熵源不是并发安全的
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("idgen: generate ulid: %w", err)
	}
	return strings.ToLower(id.String()), nil
}

// UUIDv7 基于时间排序的 UUID
type UUIDv7 struct{}

func (UUIDv7) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("idgen: generate uuidv7: %w", err)
	}
	return id.String(), nil
}

// Func 把普通函数适配成 Generator，测试里常用
type Func func() (string, error)

func (f Func) NewID() (string, error) { return f() }
