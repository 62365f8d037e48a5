// Package tag 定义标签层级的领域模型。
package tag

import "fmt"

const (
	// NodeLabel 标签节点在图库中的 label
	NodeLabel = "tag"
	// RelationParentOf 父子关系的边类型，同时也是边上 relation 属性的固定取值
	RelationParentOf = "IS_PARENT_OF"
	// DefaultOperator 未指定操作人时使用的系统身份
	DefaultOperator = "51admin"
)

// Source 标签来源，决定标签是否允许通过接口修改
type Source string

const (
	SourceUnset  Source = ""
	SourceNative Source = "native"
	SourceSim51  Source = "51sim"
	SourceAdmin  Source = "admin"
)

// SourceFromString 根据名称解析来源，未知名称返回错误
func SourceFromString(s string) (Source, error) {
	switch Source(s) {
	case SourceUnset, SourceNative, SourceSim51, SourceAdmin:
		return Source(s), nil
	}
	return SourceUnset, fmt.Errorf("tag: unknown source %q", s)
}

func (s Source) String() string {
	return string(s)
}

// Mutable 只有通过接口创建 (admin) 的标签才允许修改和删除
func (s Source) Mutable() bool {
	return s == SourceAdmin
}

// Tag 对应图库中的 tag 节点
type Tag struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Desc       string `json:"desc,omitempty"`
	Operator   string `json:"operator"`
	CreateTime int64  `json:"createTime"` // epoch 毫秒
	UpdateTime int64  `json:"updateTime"` // epoch 毫秒
	Source     Source `json:"source,omitempty"`
}

// NewTag 构造一个新标签，创建时间和更新时间都取 now
func NewTag(name, desc string, source Source, now int64) *Tag {
	return &Tag{
		Name:       name,
		Desc:       desc,
		Operator:   DefaultOperator,
		CreateTime: now,
		UpdateTime: now,
		Source:     source,
	}
}

// TagRelationship 对应 IS_PARENT_OF 边。
// ID 由图库分配，逻辑上以 (Parent.ID, Child.ID) 唯一标识一条边。
type TagRelationship struct {
	ID       int64  `json:"id"`
	Parent   *Tag   `json:"parent"`
	Child    *Tag   `json:"child"`
	Relation string `json:"relation"`
}

// NewTagRelationship 构造 parent -> child 的父子关系
func NewTagRelationship(parent, child *Tag) *TagRelationship {
	return &TagRelationship{
		Parent:   parent,
		Child:    child,
		Relation: RelationParentOf,
	}
}

// TagWithParent 分页查询的一行结果，Parent 可能为空
type TagWithParent struct {
	Tag    *Tag
	Parent *Tag
}
