package tagquery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedRange 时间范围不是 "<start>-<end>" 格式
var ErrMalformedRange = errors.New("malformed range")

// Range 闭区间，单位为 epoch 毫秒
type Range struct {
	Start int64
	End   int64
}

// ParseRange 解析 "<start>-<end>"，两端都必须是整数
func ParseRange(s string) (Range, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, s)
	}
	start, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("%w: start of %q", ErrMalformedRange, s)
	}
	end, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("%w: end of %q", ErrMalformedRange, s)
	}
	return Range{Start: start, End: end}, nil
}
