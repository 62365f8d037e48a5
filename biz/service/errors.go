package service

import (
	"errors"

	"tagtree/biz/service/tagquery"
)

// 业务错误，调用方用 errors.Is 判断
var (
	// ErrNotFound 引用的标签不存在
	ErrNotFound = errors.New("service: tag not found")
	// ErrImmutableTag 非 admin 来源的标签不允许修改或删除
	ErrImmutableTag = errors.New("service: tag is immutable")
	// ErrDuplicateName 同一父节点下已存在同名标签
	ErrDuplicateName = errors.New("service: duplicate name under parent")
	// ErrMalformedRange 时间范围不是 "<start>-<end>"
	ErrMalformedRange = tagquery.ErrMalformedRange
	// ErrIO 导入文件读取失败
	ErrIO = errors.New("service: import io error")
	// ErrInvalidArgument 参数不合法，例如名称为空或把标签挂到自己下面
	ErrInvalidArgument = errors.New("service: invalid argument")
)
