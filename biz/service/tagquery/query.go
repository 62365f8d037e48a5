package tagquery

import (
	"strings"
)

// Filter 分页列表的过滤条件，零值字段表示不过滤
type Filter struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name,omitempty"`
	Desc            string `json:"desc,omitempty"`
	ParentName      string `json:"parentName,omitempty"`
	CreateTimeRange string `json:"createTimeRange,omitempty"` // "<start>-<end>"
	UpdateTimeRange string `json:"updateTimeRange,omitempty"`
}

// Query 由若干 AND 连接的条件组成
type Query struct {
	predicates []Predicate
}

// Where 追加条件
func (q *Query) Where(p ...Predicate) *Query {
	q.predicates = append(q.predicates, p...)
	return q
}

// FromFilter 把过滤条件转换为查询，时间范围格式错误返回 ErrMalformedRange
func FromFilter(f Filter) (*Query, error) {
	q := &Query{}
	if f.ID != "" {
		q.Where(Equals{On: FieldID, Value: f.ID})
	}
	if f.Name != "" {
		q.Where(Contains{On: FieldName, Value: f.Name})
	}
	if f.Desc != "" {
		q.Where(Contains{On: FieldDesc, Value: f.Desc})
	}
	if f.ParentName != "" {
		q.Where(Contains{On: FieldParentName, Value: f.ParentName})
	}
	if f.CreateTimeRange != "" {
		r, err := ParseRange(f.CreateTimeRange)
		if err != nil {
			return nil, err
		}
		q.Where(Between{On: FieldCreateTime, Range: r})
	}
	if f.UpdateTimeRange != "" {
		r, err := ParseRange(f.UpdateTimeRange)
		if err != nil {
			return nil, err
		}
		q.Where(Between{On: FieldUpdateTime, Range: r})
	}
	return q, nil
}

// match 生成 MATCH ... WHERE ... 部分
func (q *Query) match(params Params) string {
	var sb strings.Builder
	sb.WriteString("MATCH (n:tag)")
	for _, p := range q.predicates {
		if p.Field().needsParent() {
			sb.WriteString("<-[:IS_PARENT_OF]-(fp:tag)")
			break
		}
	}
	if len(q.predicates) > 0 {
		conds := make([]string, 0, len(q.predicates))
		for _, p := range q.predicates {
			conds = append(conds, p.Render(params))
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	return sb.String()
}

// Page 分页查询，按 id 升序，每行返回 n 和最多一个父节点 p
func (q *Query) Page(page, pageSize int) (string, Params) {
	params := Params{}
	var sb strings.Builder
	sb.WriteString(q.match(params))
	sb.WriteString(" WITH DISTINCT n")
	sb.WriteString(" OPTIONAL MATCH (n)<-[:IS_PARENT_OF]-(p:tag)")
	sb.WriteString(" WITH n, collect(p)[0] AS p")
	sb.WriteString(" RETURN n, p ORDER BY n.id ASC SKIP $offset LIMIT $pageSize")
	params["offset"] = int64(page-1) * int64(pageSize)
	params["pageSize"] = int64(pageSize)
	return sb.String(), params
}

// Count 与 Page 使用同一组条件的计数查询
func (q *Query) Count() (string, Params) {
	params := Params{}
	return q.match(params) + " RETURN count(DISTINCT n) AS total", params
}
