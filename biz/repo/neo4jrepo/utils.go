package neo4jrepo

import (
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"tagtree/biz/dal/neo4jdal"
	tagmodel "tagtree/biz/model/tag"
)

var (
	// ErrTagNotFound 标签不存在
	ErrTagNotFound = errors.New("repo: tag not found")
	// ErrEdgeEndpointNotFound 创建关系时任一端节点不存在
	ErrEdgeEndpointNotFound = errors.New("repo: edge endpoint not found")
)

// --- 通用辅助函数 ---

// isNotFoundError 检查 DAL 返回的错误是否表示"未找到"
func isNotFoundError(err error) bool {
	return errors.Is(err, neo4jdal.ErrNotFound)
}

// tagToProps 将标签转换为创建节点用的属性 Map，未设置的 source 不写入
func tagToProps(t *tagmodel.Tag) map[string]any {
	props := map[string]any{
		"id":         t.ID,
		"name":       t.Name,
		"desc":       t.Desc,
		"operator":   t.Operator,
		"createTime": t.CreateTime,
		"updateTime": t.UpdateTime,
	}
	if t.Source != tagmodel.SourceUnset {
		props["source"] = t.Source.String()
	}
	return props
}

// mapDbNodeToTag 将 Neo4j 节点对象转换为业务模型
func mapDbNodeToTag(node dbtype.Node) *tagmodel.Tag {
	props := node.Props
	return &tagmodel.Tag{
		ID:         getStringProp(props, "id", ""),
		Name:       getStringProp(props, "name", ""),
		Desc:       getStringProp(props, "desc", ""),
		Operator:   getStringProp(props, "operator", ""),
		CreateTime: getInt64Prop(props, "createTime"),
		UpdateTime: getInt64Prop(props, "updateTime"),
		Source:     parseSource(getStringProp(props, "source", "")),
	}
}

// parseSource 未知来源原样保留，这类标签同样不可修改
func parseSource(raw string) tagmodel.Source {
	source, err := tagmodel.SourceFromString(raw)
	if err != nil {
		return tagmodel.Source(raw)
	}
	return source
}

func mapDbNodesToTags(nodes []dbtype.Node) []*tagmodel.Tag {
	tags := make([]*tagmodel.Tag, 0, len(nodes))
	for _, n := range nodes {
		tags = append(tags, mapDbNodeToTag(n))
	}
	return tags
}

// mapEdgeRowToRelationship 将 DAL 返回的边转换为业务模型
func mapEdgeRowToRelationship(row neo4jdal.EdgeRow) *tagmodel.TagRelationship {
	relation := getStringProp(row.Rel.Props, "relation", "")
	if relation == "" {
		relation = row.Rel.Type
	}
	return &tagmodel.TagRelationship{
		ID:       row.Rel.Id,
		Parent:   mapDbNodeToTag(row.Parent),
		Child:    mapDbNodeToTag(row.Child),
		Relation: relation,
	}
}

func getStringProp(props map[string]any, key string, defaultValue string) string {
	if props == nil {
		return defaultValue
	}
	if val, ok := props[key].(string); ok {
		return val
	}
	return defaultValue
}

// getInt64Prop 驱动把整数解码为 int64，旧数据里也可能是浮点数
func getInt64Prop(props map[string]any, key string) int64 {
	if props == nil {
		return 0
	}
	switch v := props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
