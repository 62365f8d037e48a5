package neo4jdal

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	tagmodel "tagtree/biz/model/tag"
)

// neo4jRelationDAL 实现了 RelationDAL 接口，封装 IS_PARENT_OF 关系相关的底层数据库操作。
type neo4jRelationDAL struct{}

// NewRelationDAL 创建一个新的 RelationDAL 实例。
func NewRelationDAL() RelationDAL {
	return &neo4jRelationDAL{}
}

// mergeEdgeQuery 两端节点都存在时才会产生记录；MERGE 保证同一对节点之间最多一条边
const mergeEdgeQuery = `
	MATCH (p:tag {id: $parentId}), (c:tag {id: $childId})
	MERGE (p)-[r:IS_PARENT_OF]->(c)
	ON CREATE SET r.relation = $relation
	RETURN r, p, c`

// edgeWrite 写事务内部返回的结果
type edgeWrite struct {
	row     EdgeRow
	found   bool
	created bool
}

// ExecEdgeExists 判断 parent -> child 的边是否存在。
func (d *neo4jRelationDAL) ExecEdgeExists(ctx context.Context, session neo4j.SessionWithContext, parentID, childID string) (bool, error) {
	existsResult, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `MATCH (p:tag {id: $parentId})-[r:IS_PARENT_OF]->(c:tag {id: $childId}) RETURN count(r) > 0 AS exists`
		result, err := tx.Run(ctx, query, map[string]any{"parentId": parentID, "childId": childID})
		if err != nil {
			return nil, fmt.Errorf("DAL: 运行关系存在性查询失败: %w", err)
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("DAL: 获取关系存在性结果失败: %w", err)
		}
		raw, _ := record.Get("exists")
		exists, _ := raw.(bool)
		return exists, nil
	})
	if err != nil {
		return false, err
	}
	exists, ok := existsResult.(bool)
	if !ok {
		return false, fmt.Errorf("DAL: 事务返回了非预期的布尔类型")
	}
	return exists, nil
}

// ExecCreateEdge 创建 parent -> child 的边，已存在时直接返回已有的边。
// 任一端节点不存在时返回 ErrNotFound。
func (d *neo4jRelationDAL) ExecCreateEdge(ctx context.Context, session neo4j.SessionWithContext, parentID, childID string) (EdgeRow, bool, error) {
	writeResult, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runMergeEdge(ctx, tx, parentID, childID)
	})
	if err != nil {
		return EdgeRow{}, false, err
	}
	w, ok := writeResult.(edgeWrite)
	if !ok {
		return EdgeRow{}, false, fmt.Errorf("DAL: 事务返回了非预期的关系类型")
	}
	if !w.found {
		return EdgeRow{}, false, ErrNotFound
	}
	return w.row, w.created, nil
}

// ExecDeleteIncomingEdges 删除 child 的全部入边，返回删除数量。
func (d *neo4jRelationDAL) ExecDeleteIncomingEdges(ctx context.Context, session neo4j.SessionWithContext, childID string) (int, error) {
	deleteResult, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runDeleteIncoming(ctx, tx, childID)
	})
	if err != nil {
		return 0, fmt.Errorf("DAL: 删除入边事务失败: %w", err)
	}
	removed, ok := deleteResult.(int)
	if !ok {
		return 0, fmt.Errorf("DAL: 删除入边事务返回了非预期的结果类型")
	}
	return removed, nil
}

// ExecReplaceParent 在同一个写事务里先删除 child 的全部入边，再创建 parent -> child。
// parent 不存在时只删除入边，child 成为根节点。
func (d *neo4jRelationDAL) ExecReplaceParent(ctx context.Context, session neo4j.SessionWithContext, parentID, childID string) (ReparentResult, error) {
	writeResult, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		removed, err := runDeleteIncoming(ctx, tx, childID)
		if err != nil {
			return nil, err
		}
		w, err := runMergeEdge(ctx, tx, parentID, childID)
		if err != nil {
			return nil, err
		}
		res := ReparentResult{Removed: removed, Created: w.created}
		if w.found {
			row := w.row
			res.Edge = &row
		}
		return res, nil
	})
	if err != nil {
		return ReparentResult{}, fmt.Errorf("DAL: 替换父节点事务失败: %w", err)
	}
	res, ok := writeResult.(ReparentResult)
	if !ok {
		return ReparentResult{}, fmt.Errorf("DAL: 替换父节点事务返回了非预期的结果类型")
	}
	return res, nil
}

// ExecFindOutgoingEdges 查询 parent 的全部出边及其子节点。
func (d *neo4jRelationDAL) ExecFindOutgoingEdges(ctx context.Context, session neo4j.SessionWithContext, parentID string) ([]EdgeRow, error) {
	readResult, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `MATCH (p:tag {id: $parentId})-[r:IS_PARENT_OF]->(c:tag) RETURN r, p, c`
		result, err := tx.Run(ctx, query, map[string]any{"parentId": parentID})
		if err != nil {
			return nil, fmt.Errorf("DAL: 运行出边查询失败: %w", err)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("DAL: 收集出边结果失败: %w", err)
		}
		rows := make([]EdgeRow, 0, len(records))
		for _, record := range records {
			row, err := edgeRowFromRecord(record)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	rows, ok := readResult.([]EdgeRow)
	if !ok {
		return nil, fmt.Errorf("DAL: 事务返回了非预期的关系列表类型")
	}
	return rows, nil
}

// --- 事务内的公共语句 ---

func runMergeEdge(ctx context.Context, tx neo4j.ManagedTransaction, parentID, childID string) (edgeWrite, error) {
	result, err := tx.Run(ctx, mergeEdgeQuery, map[string]any{
		"parentId": parentID,
		"childId":  childID,
		"relation": tagmodel.RelationParentOf,
	})
	if err != nil {
		return edgeWrite{}, fmt.Errorf("DAL: 运行创建关系查询失败: %w", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return edgeWrite{}, fmt.Errorf("DAL: 收集创建关系结果失败: %w", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return edgeWrite{}, fmt.Errorf("DAL: 获取创建关系摘要失败: %w", err)
	}
	if len(records) == 0 {
		// 任一端节点不存在
		return edgeWrite{}, nil
	}
	row, err := edgeRowFromRecord(records[0])
	if err != nil {
		return edgeWrite{}, err
	}
	return edgeWrite{
		row:     row,
		found:   true,
		created: summary.Counters().RelationshipsCreated() > 0,
	}, nil
}

func runDeleteIncoming(ctx context.Context, tx neo4j.ManagedTransaction, childID string) (int, error) {
	query := `MATCH (:tag)-[r:IS_PARENT_OF]->(c:tag {id: $childId}) DELETE r`
	result, err := tx.Run(ctx, query, map[string]any{"childId": childID})
	if err != nil {
		return 0, fmt.Errorf("query execution failed: %w", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return 0, fmt.Errorf("result consumption failed: %w", err)
	}
	return summary.Counters().RelationshipsDeleted(), nil
}

func edgeRowFromRecord(record *neo4j.Record) (EdgeRow, error) {
	raw, ok := record.Get("r")
	if !ok {
		return EdgeRow{}, fmt.Errorf("DAL: 无法从结果中获取关系 'r'")
	}
	rel, ok := raw.(dbtype.Relationship)
	if !ok {
		return EdgeRow{}, fmt.Errorf("DAL: 结果中的 'r' 不是有效的关系类型")
	}
	parent, err := nodeFromRecord(record, "p")
	if err != nil {
		return EdgeRow{}, err
	}
	child, err := nodeFromRecord(record, "c")
	if err != nil {
		return EdgeRow{}, err
	}
	return EdgeRow{Rel: rel, Parent: parent, Child: child}, nil
}
