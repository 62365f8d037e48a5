package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	tagmodel "tagtree/biz/model/tag"
)

// MockTagRepository 模拟 neo4jrepo.TagRepository
type MockTagRepository struct {
	mock.Mock
}

func (m *MockTagRepository) FindChildrenNames(ctx context.Context, parentID string) ([]string, error) {
	args := m.Called(ctx, parentID)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockTagRepository) FindOtherChildrenNames(ctx context.Context, parentID, excludeID string) ([]string, error) {
	args := m.Called(ctx, parentID, excludeID)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockTagRepository) FindRoots(ctx context.Context) ([]*tagmodel.Tag, error) {
	args := m.Called(ctx)
	tags, _ := args.Get(0).([]*tagmodel.Tag)
	return tags, args.Error(1)
}

func (m *MockTagRepository) FindByName(ctx context.Context, name string) (*tagmodel.Tag, error) {
	args := m.Called(ctx, name)
	tag, _ := args.Get(0).(*tagmodel.Tag)
	return tag, args.Error(1)
}

func (m *MockTagRepository) FindByID(ctx context.Context, id string) (*tagmodel.Tag, error) {
	args := m.Called(ctx, id)
	tag, _ := args.Get(0).(*tagmodel.Tag)
	return tag, args.Error(1)
}

func (m *MockTagRepository) Save(ctx context.Context, tag *tagmodel.Tag) (*tagmodel.Tag, error) {
	args := m.Called(ctx, tag)
	saved, _ := args.Get(0).(*tagmodel.Tag)
	return saved, args.Error(1)
}

func (m *MockTagRepository) DeleteSubtree(ctx context.Context, id string) ([]string, error) {
	args := m.Called(ctx, id)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockTagRepository) QueryRows(ctx context.Context, query string, params map[string]any) ([]tagmodel.TagWithParent, error) {
	args := m.Called(ctx, query, params)
	rows, _ := args.Get(0).([]tagmodel.TagWithParent)
	return rows, args.Error(1)
}

func (m *MockTagRepository) QueryCount(ctx context.Context, query string, params map[string]any) (int64, error) {
	args := m.Called(ctx, query, params)
	return args.Get(0).(int64), args.Error(1)
}

// MockRelationRepository 模拟 neo4jrepo.RelationRepository
type MockRelationRepository struct {
	mock.Mock
}

func (m *MockRelationRepository) EdgeExists(ctx context.Context, parentID, childID string) (bool, error) {
	args := m.Called(ctx, parentID, childID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRelationRepository) CreateEdge(ctx context.Context, parent, child *tagmodel.Tag) (*tagmodel.TagRelationship, bool, error) {
	args := m.Called(ctx, parent, child)
	rel, _ := args.Get(0).(*tagmodel.TagRelationship)
	return rel, args.Bool(1), args.Error(2)
}

func (m *MockRelationRepository) DeleteIncomingEdges(ctx context.Context, childID string) (int, error) {
	args := m.Called(ctx, childID)
	return args.Int(0), args.Error(1)
}

func (m *MockRelationRepository) ReplaceParent(ctx context.Context, parentID, childID string) (*tagmodel.TagRelationship, error) {
	args := m.Called(ctx, parentID, childID)
	rel, _ := args.Get(0).(*tagmodel.TagRelationship)
	return rel, args.Error(1)
}

func (m *MockRelationRepository) FindOutgoingEdges(ctx context.Context, parentID string) ([]*tagmodel.TagRelationship, error) {
	args := m.Called(ctx, parentID)
	rels, _ := args.Get(0).([]*tagmodel.TagRelationship)
	return rels, args.Error(1)
}
