// Package keylock 提供进程内按 key 加锁，用于串行化同一父节点下的"先检查后写入"操作。
package keylock

import (
	"sort"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker 按 key 加互斥锁，不再被引用的 key 会被回收
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock 同时锁住多个 key，返回解锁函数。
// key 会先去重并排序，保证多把锁的获取顺序一致，不会互相死锁。空字符串会被忽略。
func (l *Locker) Lock(keys ...string) (unlock func()) {
	ordered := normalize(keys)
	held := make([]*entry, 0, len(ordered))
	for _, k := range ordered {
		e := l.acquire(k)
		e.mu.Lock()
		held = append(held, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.release(ordered[i])
			}
		})
	}
}

func (l *Locker) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(l.locks, key)
	}
}

// size 当前持有的 key 数量
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func normalize(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
