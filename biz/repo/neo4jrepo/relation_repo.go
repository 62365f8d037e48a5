package neo4jrepo

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"tagtree/biz/dal/neo4jdal"
	tagmodel "tagtree/biz/model/tag"
)

// neo4jRelationRepo 实现了 RelationRepository 接口。
// 关系本身不缓存，标签缓存里也不保存父子信息，所以边的变更不需要失效缓存。
type neo4jRelationRepo struct {
	driver      neo4j.DriverWithContext
	relationDAL neo4jdal.RelationDAL
	logger      *zap.Logger
}

// NewRelationRepository 创建一个新的 RelationRepository 实例
func NewRelationRepository(driver neo4j.DriverWithContext, relationDAL neo4jdal.RelationDAL, logger *zap.Logger) RelationRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &neo4jRelationRepo{
		driver:      driver,
		relationDAL: relationDAL,
		logger:      logger.Named("relation_repo"),
	}
}

func (r *neo4jRelationRepo) EdgeExists(ctx context.Context, parentID, childID string) (bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	exists, err := r.relationDAL.ExecEdgeExists(ctx, session, parentID, childID)
	if err != nil {
		return false, fmt.Errorf("repo: 调用 DAL 检查关系是否存在失败: %w", err)
	}
	return exists, nil
}

// CreateEdge 创建父子关系，DAL 使用 MERGE，重复调用不会产生第二条边
func (r *neo4jRelationRepo) CreateEdge(ctx context.Context, parent, child *tagmodel.Tag) (*tagmodel.TagRelationship, bool, error) {
	if parent == nil || child == nil {
		return nil, false, fmt.Errorf("repo: 父子标签不能为空")
	}
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	row, created, err := r.relationDAL.ExecCreateEdge(ctx, session, parent.ID, child.ID)
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, fmt.Errorf("repo: 创建关系 %s -> %s: %w", parent.ID, child.ID, ErrEdgeEndpointNotFound)
		}
		return nil, false, fmt.Errorf("repo: 调用 DAL 创建关系失败: %w", err)
	}
	if !created {
		r.logger.Debug("关系已存在，跳过创建", zap.String("parent", parent.ID), zap.String("child", child.ID))
	}
	return mapEdgeRowToRelationship(row), created, nil
}

func (r *neo4jRelationRepo) DeleteIncomingEdges(ctx context.Context, childID string) (int, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	removed, err := r.relationDAL.ExecDeleteIncomingEdges(ctx, session, childID)
	if err != nil {
		return 0, fmt.Errorf("repo: 调用 DAL 删除入边失败: %w", err)
	}
	return removed, nil
}

func (r *neo4jRelationRepo) ReplaceParent(ctx context.Context, parentID, childID string) (*tagmodel.TagRelationship, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	res, err := r.relationDAL.ExecReplaceParent(ctx, session, parentID, childID)
	if err != nil {
		return nil, fmt.Errorf("repo: 调用 DAL 替换父节点失败: %w", err)
	}
	r.logger.Debug("替换父节点",
		zap.String("parent", parentID),
		zap.String("child", childID),
		zap.Int("removed", res.Removed),
		zap.Bool("created", res.Created),
	)
	if res.Edge == nil {
		return nil, nil
	}
	return mapEdgeRowToRelationship(*res.Edge), nil
}

func (r *neo4jRelationRepo) FindOutgoingEdges(ctx context.Context, parentID string) ([]*tagmodel.TagRelationship, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	rows, err := r.relationDAL.ExecFindOutgoingEdges(ctx, session, parentID)
	if err != nil {
		return nil, fmt.Errorf("repo: 调用 DAL 查询出边失败: %w", err)
	}
	rels := make([]*tagmodel.TagRelationship, 0, len(rows))
	for _, row := range rows {
		rels = append(rels, mapEdgeRowToRelationship(row))
	}
	return rels, nil
}
