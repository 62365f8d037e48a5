package neo4jdal

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// TagRow 动态查询返回的一行：标签节点及其 (可选的) 父节点
type TagRow struct {
	Tag    dbtype.Node
	Parent *dbtype.Node
}

// EdgeRow 一条 IS_PARENT_OF 边及其两端节点
type EdgeRow struct {
	Rel    dbtype.Relationship
	Parent dbtype.Node
	Child  dbtype.Node
}

// ReparentResult 替换父节点的结果
type ReparentResult struct {
	Removed int      // 被删除的入边数量
	Created bool     // 是否新建了边
	Edge    *EdgeRow // 父节点不存在时为 nil
}

// TagDAL 定义了 tag 节点数据访问的底层操作
type TagDAL interface {
	ExecCreateTag(ctx context.Context, session neo4j.SessionWithContext, props map[string]any) (dbtype.Node, error)
	ExecUpdateTag(ctx context.Context, session neo4j.SessionWithContext, id string, updates map[string]any) (dbtype.Node, error)
	ExecGetTagByID(ctx context.Context, session neo4j.SessionWithContext, id string) (dbtype.Node, error)
	ExecGetTagByName(ctx context.Context, session neo4j.SessionWithContext, name string) (dbtype.Node, error)
	ExecFindChildNames(ctx context.Context, session neo4j.SessionWithContext, parentID string) ([]string, error)
	ExecFindOtherChildNames(ctx context.Context, session neo4j.SessionWithContext, parentID, excludeID string) ([]string, error)
	ExecFindRoots(ctx context.Context, session neo4j.SessionWithContext) ([]dbtype.Node, error)
	ExecDeleteSubtree(ctx context.Context, session neo4j.SessionWithContext, id string) ([]string /*deleted ids*/, error)
	ExecQueryTagRows(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]any) ([]TagRow, error)
	ExecQueryCount(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]any) (int64, error)
}

// RelationDAL 定义了 IS_PARENT_OF 关系数据访问的底层操作
type RelationDAL interface {
	ExecEdgeExists(ctx context.Context, session neo4j.SessionWithContext, parentID, childID string) (bool, error)
	ExecCreateEdge(ctx context.Context, session neo4j.SessionWithContext, parentID, childID string) (EdgeRow, bool /*created*/, error)
	ExecDeleteIncomingEdges(ctx context.Context, session neo4j.SessionWithContext, childID string) (int, error)
	ExecReplaceParent(ctx context.Context, session neo4j.SessionWithContext, parentID, childID string) (ReparentResult, error)
	ExecFindOutgoingEdges(ctx context.Context, session neo4j.SessionWithContext, parentID string) ([]EdgeRow, error)
}
