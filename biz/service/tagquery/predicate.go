// Package tagquery 把分页列表的过滤条件编译成参数化的 Cypher 查询。
// 查询文本只由固定片段和参数名拼成，用户输入全部作为参数绑定。
package tagquery

import (
	"fmt"
	"strings"
)

// Field 可过滤的属性引用，只能取下面的常量
type Field string

const (
	FieldID         Field = "n.id"
	FieldName       Field = "n.name"
	FieldDesc       Field = "n.desc"
	FieldParentName Field = "fp.name"
	FieldCreateTime Field = "n.createTime"
	FieldUpdateTime Field = "n.updateTime"
)

// needsParent 该属性是否需要关联父节点
func (f Field) needsParent() bool {
	return strings.HasPrefix(string(f), "fp.")
}

// Params 查询参数，Bind 为每个值生成不重复的参数名
type Params map[string]any

// Bind 绑定一个值，返回 Cypher 中引用它的占位符
func (p Params) Bind(hint string, value any) string {
	name := fmt.Sprintf("%s%d", hint, len(p))
	p[name] = value
	return "$" + name
}

// Predicate 一个过滤条件
type Predicate interface {
	// Render 返回条件片段，值通过 params 绑定
	Render(params Params) string
	// Field 条件作用的属性
	Field() Field
}

// Equals 精确匹配
type Equals struct {
	On    Field
	Value any
}

func (e Equals) Render(params Params) string {
	return fmt.Sprintf("%s = %s", e.On, params.Bind("eq", e.Value))
}

func (e Equals) Field() Field { return e.On }

// Contains 子串匹配，区分大小写
type Contains struct {
	On    Field
	Value string
}

func (c Contains) Render(params Params) string {
	return fmt.Sprintf("%s CONTAINS %s", c.On, params.Bind("sub", c.Value))
}

func (c Contains) Field() Field { return c.On }

// Between 闭区间匹配
type Between struct {
	On    Field
	Range Range
}

func (b Between) Render(params Params) string {
	return fmt.Sprintf("%s >= %s AND %s <= %s",
		b.On, params.Bind("from", b.Range.Start),
		b.On, params.Bind("to", b.Range.End))
}

func (b Between) Field() Field { return b.On }
