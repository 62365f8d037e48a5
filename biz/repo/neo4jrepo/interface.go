package neo4jrepo

import (
	"context"

	tagmodel "tagtree/biz/model/tag"
)

// TagRepository 定义了标签节点的数据访问操作。
// Repo 层负责生成业务 ID、与 DAL 交互、模型转换以及缓存逻辑。
type TagRepository interface {
	// FindChildrenNames 返回父节点所有直接子节点的名称。
	FindChildrenNames(ctx context.Context, parentID string) ([]string, error)

	// FindOtherChildrenNames 返回父节点下除 excludeID 外的直接子节点名称，
	// 用于更新时的同级重名校验。
	FindOtherChildrenNames(ctx context.Context, parentID, excludeID string) ([]string, error)

	// FindRoots 返回所有没有入边的标签，按 createTime 升序。
	FindRoots(ctx context.Context) ([]*tagmodel.Tag, error)

	// FindByName 按名称查找标签，未找到返回 ErrTagNotFound。
	FindByName(ctx context.Context, name string) (*tagmodel.Tag, error)

	// FindByID 按 ID 查找标签 (读旁路缓存)，未找到返回 ErrTagNotFound。
	FindByID(ctx context.Context, id string) (*tagmodel.Tag, error)

	// Save 持久化标签。
	// ID 为空时创建新节点并由注入的生成器分配 ID；否则更新 name/desc/operator/updateTime。
	Save(ctx context.Context, tag *tagmodel.Tag) (*tagmodel.Tag, error)

	// DeleteSubtree 删除标签及其全部后代和相关的边，返回被删除的 ID。
	DeleteSubtree(ctx context.Context, id string) ([]string, error)

	// QueryRows 执行动态查询，结果列必须是 n (标签) 和 p (父标签，可为空)。
	QueryRows(ctx context.Context, query string, params map[string]any) ([]tagmodel.TagWithParent, error)

	// QueryCount 执行计数查询，结果列必须是 total。
	QueryCount(ctx context.Context, query string, params map[string]any) (int64, error)
}

// RelationRepository 定义了 IS_PARENT_OF 关系的数据访问操作。
type RelationRepository interface {
	// EdgeExists 判断 parent -> child 的边是否存在。
	EdgeExists(ctx context.Context, parentID, childID string) (bool, error)

	// CreateEdge 创建 parent -> child 的边，边已存在时返回已有的边且 created 为 false。
	CreateEdge(ctx context.Context, parent, child *tagmodel.Tag) (rel *tagmodel.TagRelationship, created bool, err error)

	// DeleteIncomingEdges 删除 child 的全部入边，返回删除数量。
	DeleteIncomingEdges(ctx context.Context, childID string) (int, error)

	// ReplaceParent 在一个事务里删除 child 的全部入边并挂到 parentID 下。
	// parent 不存在时返回的关系为 nil，child 成为根节点。
	ReplaceParent(ctx context.Context, parentID, childID string) (*tagmodel.TagRelationship, error)

	// FindOutgoingEdges 返回 parent 的全部出边，Child 字段已填充。
	FindOutgoingEdges(ctx context.Context, parentID string) ([]*tagmodel.TagRelationship, error)
}
