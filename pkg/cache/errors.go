package cache

import "errors"

var (
	// ErrNotFound 表示缓存中未找到指定的键。
	ErrNotFound = errors.New("cache: key not found")

	// ErrNilValue 表示缓存中存储的是一个代表"不存在"的特殊值。
	// 调用方应理解为数据确实不存在，而非缓存读取失败。
	ErrNilValue = errors.New("cache: stored nil value")
)
