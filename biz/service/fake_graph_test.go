package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	tagmodel "tagtree/biz/model/tag"
	"tagtree/biz/repo/neo4jrepo"
)

type edgeKey struct{ parent, child string }

// fakeGraph 内存版的标签图，同时实现 TagRepository 和 RelationRepository
type fakeGraph struct {
	mu       sync.Mutex
	tags     map[string]*tagmodel.Tag
	edges    map[edgeKey]int64
	seq      int
	edgeSeq  int64
	writes   int
	rootHits int

	// afterRoots 在 FindRoots 读完数据后执行一次，模拟读取期间的并发写入
	afterRoots func()

	lastQuery  string
	lastParams map[string]any
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		tags:  make(map[string]*tagmodel.Tag),
		edges: make(map[edgeKey]int64),
	}
}

func cloneTag(t *tagmodel.Tag) *tagmodel.Tag {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// --- 测试辅助 ---

// put 直接写入一个标签，绕过服务层
func (g *fakeGraph) put(t *tagmodel.Tag) *tagmodel.Tag {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t.ID == "" {
		g.seq++
		t.ID = fmt.Sprintf("t%d", g.seq)
	}
	g.tags[t.ID] = cloneTag(t)
	return t
}

func (g *fakeGraph) link(parentID, childID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edgeSeq++
	g.edges[edgeKey{parentID, childID}] = g.edgeSeq
}

func (g *fakeGraph) tag(id string) *tagmodel.Tag {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneTag(g.tags[id])
}

func (g *fakeGraph) edgeCount(parentID, childID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.edges[edgeKey{parentID, childID}]; ok {
		return 1
	}
	return 0
}

func (g *fakeGraph) parentsOf(childID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var parents []string
	for k := range g.edges {
		if k.child == childID {
			parents = append(parents, k.parent)
		}
	}
	sort.Strings(parents)
	return parents
}

func (g *fakeGraph) size() (tags, edges int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tags), len(g.edges)
}

func (g *fakeGraph) childNamesLocked(parentID, excludeID string) []string {
	var names []string
	for k := range g.edges {
		if k.parent == parentID && k.child != excludeID {
			if t, ok := g.tags[k.child]; ok {
				names = append(names, t.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// --- TagRepository ---

func (g *fakeGraph) FindChildrenNames(ctx context.Context, parentID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.childNamesLocked(parentID, ""), nil
}

func (g *fakeGraph) FindOtherChildrenNames(ctx context.Context, parentID, excludeID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.childNamesLocked(parentID, excludeID), nil
}

func (g *fakeGraph) FindRoots(ctx context.Context) ([]*tagmodel.Tag, error) {
	roots := g.findRoots()
	g.mu.Lock()
	hook := g.afterRoots
	g.afterRoots = nil
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return roots, nil
}

func (g *fakeGraph) findRoots() []*tagmodel.Tag {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rootHits++
	hasParent := make(map[string]bool)
	for k := range g.edges {
		hasParent[k.child] = true
	}
	var roots []*tagmodel.Tag
	for id, t := range g.tags {
		if !hasParent[id] {
			roots = append(roots, cloneTag(t))
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].CreateTime != roots[j].CreateTime {
			return roots[i].CreateTime < roots[j].CreateTime
		}
		return roots[i].ID < roots[j].ID
	})
	return roots
}

func (g *fakeGraph) FindByName(ctx context.Context, name string) (*tagmodel.Tag, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var found *tagmodel.Tag
	for _, t := range g.tags {
		if t.Name == name && (found == nil || t.CreateTime < found.CreateTime) {
			found = t
		}
	}
	if found == nil {
		return nil, neo4jrepo.ErrTagNotFound
	}
	return cloneTag(found), nil
}

func (g *fakeGraph) FindByID(ctx context.Context, id string) (*tagmodel.Tag, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tags[id]
	if !ok {
		return nil, neo4jrepo.ErrTagNotFound
	}
	return cloneTag(t), nil
}

func (g *fakeGraph) Save(ctx context.Context, tag *tagmodel.Tag) (*tagmodel.Tag, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes++
	if tag.ID == "" {
		g.seq++
		saved := cloneTag(tag)
		saved.ID = fmt.Sprintf("t%d", g.seq)
		g.tags[saved.ID] = saved
		return cloneTag(saved), nil
	}
	existing, ok := g.tags[tag.ID]
	if !ok {
		return nil, neo4jrepo.ErrTagNotFound
	}
	existing.Name = tag.Name
	existing.Desc = tag.Desc
	existing.Operator = tag.Operator
	existing.UpdateTime = tag.UpdateTime
	return cloneTag(existing), nil
}

func (g *fakeGraph) DeleteSubtree(ctx context.Context, id string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.tags[id]; !ok {
		return nil, neo4jrepo.ErrTagNotFound
	}
	g.writes++
	doomed := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for k := range g.edges {
			if k.parent == cur && !doomed[k.child] {
				doomed[k.child] = true
				queue = append(queue, k.child)
			}
		}
	}
	var ids []string
	for d := range doomed {
		delete(g.tags, d)
		ids = append(ids, d)
	}
	for k := range g.edges {
		if doomed[k.parent] || doomed[k.child] {
			delete(g.edges, k)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// QueryRows 只理解分页参数，按 id 升序返回全部标签
func (g *fakeGraph) QueryRows(ctx context.Context, query string, params map[string]any) ([]tagmodel.TagWithParent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastQuery, g.lastParams = query, params
	ids := make([]string, 0, len(g.tags))
	for id := range g.tags {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	offset, _ := params["offset"].(int64)
	limit, _ := params["pageSize"].(int64)
	var rows []tagmodel.TagWithParent
	for i := offset; i < int64(len(ids)) && i < offset+limit; i++ {
		row := tagmodel.TagWithParent{Tag: cloneTag(g.tags[ids[i]])}
		for k := range g.edges {
			if k.child == ids[i] {
				row.Parent = cloneTag(g.tags[k.parent])
				break
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (g *fakeGraph) QueryCount(ctx context.Context, query string, params map[string]any) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int64(len(g.tags)), nil
}

// --- RelationRepository ---

func (g *fakeGraph) EdgeExists(ctx context.Context, parentID, childID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.edges[edgeKey{parentID, childID}]
	return ok, nil
}

func (g *fakeGraph) createEdgeLocked(parentID, childID string) (*tagmodel.TagRelationship, bool, error) {
	p, okP := g.tags[parentID]
	c, okC := g.tags[childID]
	if !okP || !okC {
		return nil, false, neo4jrepo.ErrEdgeEndpointNotFound
	}
	k := edgeKey{parentID, childID}
	id, exists := g.edges[k]
	if !exists {
		g.writes++
		g.edgeSeq++
		id = g.edgeSeq
		g.edges[k] = id
	}
	rel := tagmodel.NewTagRelationship(cloneTag(p), cloneTag(c))
	rel.ID = id
	return rel, !exists, nil
}

func (g *fakeGraph) CreateEdge(ctx context.Context, parent, child *tagmodel.Tag) (*tagmodel.TagRelationship, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createEdgeLocked(parent.ID, child.ID)
}

func (g *fakeGraph) deleteIncomingLocked(childID string) int {
	removed := 0
	for k := range g.edges {
		if k.child == childID {
			delete(g.edges, k)
			removed++
		}
	}
	if removed > 0 {
		g.writes++
	}
	return removed
}

func (g *fakeGraph) DeleteIncomingEdges(ctx context.Context, childID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deleteIncomingLocked(childID), nil
}

func (g *fakeGraph) ReplaceParent(ctx context.Context, parentID, childID string) (*tagmodel.TagRelationship, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleteIncomingLocked(childID)
	if _, ok := g.tags[parentID]; !ok {
		return nil, nil
	}
	rel, _, err := g.createEdgeLocked(parentID, childID)
	return rel, err
}

func (g *fakeGraph) FindOutgoingEdges(ctx context.Context, parentID string) ([]*tagmodel.TagRelationship, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var rels []*tagmodel.TagRelationship
	for k, id := range g.edges {
		if k.parent != parentID {
			continue
		}
		rel := tagmodel.NewTagRelationship(cloneTag(g.tags[k.parent]), cloneTag(g.tags[k.child]))
		rel.ID = id
		rels = append(rels, rel)
	}
	return rels, nil
}

// stepClock 每次调用前进 1 毫秒，保证创建时间严格递增
func stepClock() func() time.Time {
	var mu sync.Mutex
	cur := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Millisecond)
		return cur
	}
}

// recordingPublisher 记录发布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []TagEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	if ev, ok := message.(TagEvent); ok {
		p.events = append(p.events, ev)
	}
	return p.err
}

var (
	_ neo4jrepo.TagRepository      = (*fakeGraph)(nil)
	_ neo4jrepo.RelationRepository = (*fakeGraph)(nil)
)
