package neo4jdal

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// neo4jTagDAL 实现了 TagDAL 接口，封装了与 tag 节点相关的底层数据库操作。
// DAL 层不持有 driver，session 由 repo 层创建并传入。
type neo4jTagDAL struct{}

// NewTagDAL 创建一个新的 TagDAL 实例。
func NewTagDAL() TagDAL {
	return &neo4jTagDAL{}
}

// ExecCreateTag 执行创建 tag 节点的 Cypher 语句。
// props 由 Repo 层构建，已包含业务 id。
func (d *neo4jTagDAL) ExecCreateTag(ctx context.Context, session neo4j.SessionWithContext, props map[string]any) (dbtype.Node, error) {
	nodeResult, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `CREATE (n:tag $props) RETURN n`, map[string]any{"props": props})
		if err != nil {
			return nil, fmt.Errorf("DAL: 运行创建标签查询失败: %w", err)
		}
		// Single 会校验结果只包含一条记录
		record, err := result.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("DAL: 获取创建标签结果失败: %w", err)
		}
		return nodeFromRecord(record, "n")
	})
	if err != nil {
		return dbtype.Node{}, err
	}
	createdNode, ok := nodeResult.(dbtype.Node)
	if !ok {
		return dbtype.Node{}, fmt.Errorf("DAL: 事务返回了非预期的节点类型")
	}
	return createdNode, nil
}

// ExecUpdateTag 用 updates 覆盖节点上的同名属性。
// 节点不存在时返回 ErrNotFound。
func (d *neo4jTagDAL) ExecUpdateTag(ctx context.Context, session neo4j.SessionWithContext, id string, updates map[string]any) (dbtype.Node, error) {
	nodeResult, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `MATCH (n:tag {id: $id}) SET n += $updates RETURN n`
		result, err := tx.Run(ctx, query, map[string]any{"id": id, "updates": updates})
		if err != nil {
			return nil, fmt.Errorf("DAL: 运行更新标签查询失败: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, fmt.Errorf("DAL: 获取更新标签结果失败: %w", err)
		}
		return nodeFromRecord(record, "n")
	})
	if err != nil {
		return dbtype.Node{}, err
	}
	updatedNode, ok := nodeResult.(dbtype.Node)
	if !ok {
		return dbtype.Node{}, fmt.Errorf("DAL: 事务返回了非预期的节点类型")
	}
	return updatedNode, nil
}

// ExecGetTagByID 按业务 id 获取 tag 节点，未找到返回 ErrNotFound。
func (d *neo4jTagDAL) ExecGetTagByID(ctx context.Context, session neo4j.SessionWithContext, id string) (dbtype.Node, error) {
	return d.getSingleTag(ctx, session, `MATCH (n:tag {id: $id}) RETURN n`, map[string]any{"id": id})
}

// ExecGetTagByName 按名称获取 tag 节点。
// 同名节点可能有多个 (成对导入不做去重)，取最早创建的一个。
func (d *neo4jTagDAL) ExecGetTagByName(ctx context.Context, session neo4j.SessionWithContext, name string) (dbtype.Node, error) {
	query := `MATCH (n:tag {name: $name}) RETURN n ORDER BY n.createTime ASC, n.id ASC LIMIT 1`
	return d.getSingleTag(ctx, session, query, map[string]any{"name": name})
}

func (d *neo4jTagDAL) getSingleTag(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]any) (dbtype.Node, error) {
	nodeResult, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, fmt.Errorf("DAL: 运行获取标签查询失败: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, fmt.Errorf("DAL: 获取标签结果失败: %w", err)
		}
		return nodeFromRecord(record, "n")
	})
	if err != nil {
		return dbtype.Node{}, err
	}
	node, ok := nodeResult.(dbtype.Node)
	if !ok {
		return dbtype.Node{}, fmt.Errorf("DAL: 事务返回了非预期的节点类型")
	}
	return node, nil
}

// ExecFindChildNames 查询父节点下所有直接子节点的名称。
func (d *neo4jTagDAL) ExecFindChildNames(ctx context.Context, session neo4j.SessionWithContext, parentID string) ([]string, error) {
	query := `MATCH (p:tag {id: $parentId})-[:IS_PARENT_OF]->(c:tag) RETURN c.name AS name`
	return d.collectNames(ctx, session, query, map[string]any{"parentId": parentID})
}

// ExecFindOtherChildNames 查询父节点下除 excludeID 以外的直接子节点名称。
func (d *neo4jTagDAL) ExecFindOtherChildNames(ctx context.Context, session neo4j.SessionWithContext, parentID, excludeID string) ([]string, error) {
	query := `MATCH (p:tag {id: $parentId})-[:IS_PARENT_OF]->(c:tag) WHERE c.id <> $excludeId RETURN c.name AS name`
	return d.collectNames(ctx, session, query, map[string]any{"parentId": parentID, "excludeId": excludeID})
}

func (d *neo4jTagDAL) collectNames(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]any) ([]string, error) {
	namesResult, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, fmt.Errorf("DAL: 运行子节点名称查询失败: %w", err)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("DAL: 收集子节点名称失败: %w", err)
		}
		names := make([]string, 0, len(records))
		for _, record := range records {
			raw, _ := record.Get("name")
			// 没有 name 属性的节点直接跳过
			if name, ok := raw.(string); ok {
				names = append(names, name)
			}
		}
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	names, ok := namesResult.([]string)
	if !ok {
		return nil, fmt.Errorf("DAL: 事务返回了非预期的名称列表类型")
	}
	return names, nil
}

// ExecFindRoots 查询所有没有入边的 tag 节点，按创建时间升序。
func (d *neo4jTagDAL) ExecFindRoots(ctx context.Context, session neo4j.SessionWithContext) ([]dbtype.Node, error) {
	rootsResult, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `MATCH (t:tag) WHERE NOT (t)<-[:IS_PARENT_OF]-(:tag) RETURN t ORDER BY t.createTime ASC, t.id ASC`
		result, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, fmt.Errorf("DAL: 运行根节点查询失败: %w", err)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("DAL: 收集根节点结果失败: %w", err)
		}
		nodes := make([]dbtype.Node, 0, len(records))
		for _, record := range records {
			node, err := nodeFromRecord(record, "t")
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
		return nodes, nil
	})
	if err != nil {
		return nil, err
	}
	nodes, ok := rootsResult.([]dbtype.Node)
	if !ok {
		return nil, fmt.Errorf("DAL: 事务返回了非预期的节点列表类型")
	}
	return nodes, nil
}

// ExecDeleteSubtree 在一个写事务内删除节点及其全部后代节点，连同所有相关的边。
// 返回被删除节点的业务 id；节点不存在时返回 ErrNotFound。
func (d *neo4jTagDAL) ExecDeleteSubtree(ctx context.Context, session neo4j.SessionWithContext, id string) ([]string, error) {
	deleteResult, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// 存在环时可变长路径也会回到 n，这里把 n 从后代里排除
		query := `
			MATCH (n:tag {id: $id})
			OPTIONAL MATCH (n)-[:IS_PARENT_OF*]->(m:tag)
			WITH n, collect(DISTINCT m) AS descendants
			WITH [n] + [d IN descendants WHERE d <> n] AS doomed
			WITH [d IN doomed | d.id] AS ids, doomed
			FOREACH (d IN doomed | DETACH DELETE d)
			RETURN ids`
		result, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, fmt.Errorf("DAL: 运行删除子树查询失败: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, fmt.Errorf("DAL: 获取删除子树结果失败: %w", err)
		}
		raw, _ := record.Get("ids")
		rawIDs, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("DAL: 无法解析被删除的节点 id 列表")
		}
		ids := make([]string, 0, len(rawIDs))
		for _, v := range rawIDs {
			if s, ok := v.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	ids, ok := deleteResult.([]string)
	if !ok {
		return nil, fmt.Errorf("DAL: 删除子树事务返回了非预期的结果类型")
	}
	return ids, nil
}

// ExecQueryTagRows 执行由上层编译好的参数化查询，结果列必须为 n (tag) 和 p (父节点，可为 null)。
func (d *neo4jTagDAL) ExecQueryTagRows(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]any) ([]TagRow, error) {
	rowsResult, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, fmt.Errorf("DAL: 运行标签分页查询失败: %w", err)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("DAL: 收集标签分页结果失败: %w", err)
		}
		rows := make([]TagRow, 0, len(records))
		for _, record := range records {
			raw, _ := record.Get("n")
			node, ok := raw.(dbtype.Node)
			if !ok {
				// 与查询约定不符的行直接跳过
				continue
			}
			parent, err := optionalNodeFromRecord(record, "p")
			if err != nil {
				return nil, err
			}
			rows = append(rows, TagRow{Tag: node, Parent: parent})
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	rows, ok := rowsResult.([]TagRow)
	if !ok {
		return nil, fmt.Errorf("DAL: 事务返回了非预期的行类型")
	}
	return rows, nil
}

// ExecQueryCount 执行返回单个整数 (列名 total) 的参数化查询。
func (d *neo4jTagDAL) ExecQueryCount(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]any) (int64, error) {
	countResult, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, fmt.Errorf("DAL: 运行计数查询失败: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return int64(0), nil
			}
			return nil, fmt.Errorf("DAL: 获取计数结果失败: %w", err)
		}
		raw, _ := record.Get("total")
		total, ok := raw.(int64)
		if !ok {
			return int64(0), nil
		}
		return total, nil
	})
	if err != nil {
		return 0, err
	}
	total, ok := countResult.(int64)
	if !ok {
		return 0, fmt.Errorf("DAL: 事务返回了非预期的计数类型")
	}
	return total, nil
}

// --- 辅助函数 ---

// singleRecord 取唯一一行结果，没有结果返回 ErrNotFound。
// 不依赖 Single 的错误文案判断空结果。
func singleRecord(ctx context.Context, result neo4j.ResultWithContext) (*neo4j.Record, error) {
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("DAL: 期望一条记录，实际返回 %d 条", len(records))
	}
}

func nodeFromRecord(record *neo4j.Record, key string) (dbtype.Node, error) {
	raw, ok := record.Get(key)
	if !ok {
		return dbtype.Node{}, fmt.Errorf("DAL: 无法从结果中获取节点 '%s'", key)
	}
	node, ok := raw.(dbtype.Node)
	if !ok {
		return dbtype.Node{}, fmt.Errorf("DAL: 结果中的 '%s' 不是有效的节点类型", key)
	}
	return node, nil
}

// optionalNodeFromRecord OPTIONAL MATCH 未匹配时列值为 nil
func optionalNodeFromRecord(record *neo4j.Record, key string) (*dbtype.Node, error) {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return nil, nil
	}
	node, ok := raw.(dbtype.Node)
	if !ok {
		return nil, fmt.Errorf("DAL: 结果中的 '%s' 不是有效的节点类型", key)
	}
	return &node, nil
}
