package neo4jrepo

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/mock"

	"tagtree/biz/dal/neo4jdal"
)

// fakeSession 只实现 Close，DAL 被 mock 后不会真正使用 session
type fakeSession struct {
	neo4j.SessionWithContext
	closed int
}

func (s *fakeSession) Close(ctx context.Context) error {
	s.closed++
	return nil
}

// fakeDriver 记录打开的 session 及其访问模式
type fakeDriver struct {
	neo4j.DriverWithContext
	sessions []*fakeSession
	modes    []neo4j.AccessMode
}

func (d *fakeDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) neo4j.SessionWithContext {
	s := &fakeSession{}
	d.sessions = append(d.sessions, s)
	d.modes = append(d.modes, config.AccessMode)
	return s
}

func (d *fakeDriver) allClosed() bool {
	for _, s := range d.sessions {
		if s.closed != 1 {
			return false
		}
	}
	return true
}

// MockTagDAL 模拟 neo4jdal.TagDAL
type MockTagDAL struct {
	mock.Mock
}

func (m *MockTagDAL) ExecCreateTag(ctx context.Context, session neo4j.SessionWithContext, props map[string]any) (dbtype.Node, error) {
	args := m.Called(ctx, session, props)
	return args.Get(0).(dbtype.Node), args.Error(1)
}

func (m *MockTagDAL) ExecUpdateTag(ctx context.Context, session neo4j.SessionWithContext, id string, updates map[string]any) (dbtype.Node, error) {
	args := m.Called(ctx, session, id, updates)
	return args.Get(0).(dbtype.Node), args.Error(1)
}

func (m *MockTagDAL) ExecGetTagByID(ctx context.Context, session neo4j.SessionWithContext, id string) (dbtype.Node, error) {
	args := m.Called(ctx, session, id)
	return args.Get(0).(dbtype.Node), args.Error(1)
}

func (m *MockTagDAL) ExecGetTagByName(ctx context.Context, session neo4j.SessionWithContext, name string) (dbtype.Node, error) {
	args := m.Called(ctx, session, name)
	return args.Get(0).(dbtype.Node), args.Error(1)
}

func (m *MockTagDAL) ExecFindChildNames(ctx context.Context, session neo4j.SessionWithContext, parentID string) ([]string, error) {
	args := m.Called(ctx, session, parentID)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockTagDAL) ExecFindOtherChildNames(ctx context.Context, session neo4j.SessionWithContext, parentID, excludeID string) ([]string, error) {
	args := m.Called(ctx, session, parentID, excludeID)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockTagDAL) ExecFindRoots(ctx context.Context, session neo4j.SessionWithContext) ([]dbtype.Node, error) {
	args := m.Called(ctx, session)
	nodes, _ := args.Get(0).([]dbtype.Node)
	return nodes, args.Error(1)
}

func (m *MockTagDAL) ExecDeleteSubtree(ctx context.Context, session neo4j.SessionWithContext, id string) ([]string, error) {
	args := m.Called(ctx, session, id)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockTagDAL) ExecQueryTagRows(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]any) ([]neo4jdal.TagRow, error) {
	args := m.Called(ctx, session, query, params)
	rows, _ := args.Get(0).([]neo4jdal.TagRow)
	return rows, args.Error(1)
}

func (m *MockTagDAL) ExecQueryCount(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]any) (int64, error) {
	args := m.Called(ctx, session, query, params)
	return args.Get(0).(int64), args.Error(1)
}

// MockRelationDAL 模拟 neo4jdal.RelationDAL
type MockRelationDAL struct {
	mock.Mock
}

func (m *MockRelationDAL) ExecEdgeExists(ctx context.Context, session neo4j.SessionWithContext, parentID, childID string) (bool, error) {
	args := m.Called(ctx, session, parentID, childID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRelationDAL) ExecCreateEdge(ctx context.Context, session neo4j.SessionWithContext, parentID, childID string) (neo4jdal.EdgeRow, bool, error) {
	args := m.Called(ctx, session, parentID, childID)
	return args.Get(0).(neo4jdal.EdgeRow), args.Bool(1), args.Error(2)
}

func (m *MockRelationDAL) ExecDeleteIncomingEdges(ctx context.Context, session neo4j.SessionWithContext, childID string) (int, error) {
	args := m.Called(ctx, session, childID)
	return args.Int(0), args.Error(1)
}

func (m *MockRelationDAL) ExecReplaceParent(ctx context.Context, session neo4j.SessionWithContext, parentID, childID string) (neo4jdal.ReparentResult, error) {
	args := m.Called(ctx, session, parentID, childID)
	return args.Get(0).(neo4jdal.ReparentResult), args.Error(1)
}

func (m *MockRelationDAL) ExecFindOutgoingEdges(ctx context.Context, session neo4j.SessionWithContext, parentID string) ([]neo4jdal.EdgeRow, error) {
	args := m.Called(ctx, session, parentID)
	rows, _ := args.Get(0).([]neo4jdal.EdgeRow)
	return rows, args.Error(1)
}

func tagNode(id, name string, source string, createTime int64) dbtype.Node {
	props := map[string]any{
		"id":         id,
		"name":       name,
		"desc":       "",
		"operator":   "51admin",
		"createTime": createTime,
		"updateTime": createTime,
	}
	if source != "" {
		props["source"] = source
	}
	return dbtype.Node{Id: 1, Labels: []string{"tag"}, Props: props}
}
