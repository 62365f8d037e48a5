package neo4jrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"tagtree/biz/dal/neo4jdal"
	tagmodel "tagtree/biz/model/tag"
	"tagtree/pkg/cache"
	"tagtree/pkg/idgen"
)

const (
	// 默认标签缓存时间
	DefaultTagTTL = 1 * time.Hour
)

// neo4jTagRepo 实现了 TagRepository 接口
type neo4jTagRepo struct {
	driver neo4j.DriverWithContext
	tagDAL neo4jdal.TagDAL
	cache  cache.TagCache // 可为 nil
	ids    idgen.Generator
	logger *zap.Logger
	ttl    time.Duration
}

// NewTagRepository 创建一个新的 TagRepository 实例
// 依赖注入 Neo4j 驱动、Tag DAL 实现、缓存实现和 ID 生成器。tagCache 为 nil 时不使用缓存。
func NewTagRepository(
	driver neo4j.DriverWithContext,
	tagDAL neo4jdal.TagDAL,
	tagCache cache.TagCache,
	ids idgen.Generator,
	logger *zap.Logger,
	ttl time.Duration,
) TagRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTagTTL
	}
	return &neo4jTagRepo{
		driver: driver,
		tagDAL: tagDAL,
		cache:  tagCache,
		ids:    ids,
		logger: logger.Named("tag_repo"),
		ttl:    ttl,
	}
}

func (r *neo4jTagRepo) readSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
}

func (r *neo4jTagRepo) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
}

func (r *neo4jTagRepo) FindChildrenNames(ctx context.Context, parentID string) ([]string, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	names, err := r.tagDAL.ExecFindChildNames(ctx, session, parentID)
	if err != nil {
		return nil, fmt.Errorf("repo: 调用 DAL 查询子标签名称失败: %w", err)
	}
	return names, nil
}

func (r *neo4jTagRepo) FindOtherChildrenNames(ctx context.Context, parentID, excludeID string) ([]string, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	names, err := r.tagDAL.ExecFindOtherChildNames(ctx, session, parentID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("repo: 调用 DAL 查询其他子标签名称失败: %w", err)
	}
	return names, nil
}

func (r *neo4jTagRepo) FindRoots(ctx context.Context) ([]*tagmodel.Tag, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	nodes, err := r.tagDAL.ExecFindRoots(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("repo: 调用 DAL 查询根标签失败: %w", err)
	}
	return mapDbNodesToTags(nodes), nil
}

func (r *neo4jTagRepo) FindByName(ctx context.Context, name string) (*tagmodel.Tag, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	node, err := r.tagDAL.ExecGetTagByName(ctx, session, name)
	if err != nil {
		if isNotFoundError(err) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("repo: 调用 DAL 按名称获取标签失败: %w", err)
	}
	return mapDbNodeToTag(node), nil
}

// FindByID 通过 ID 获取标签，应用 Read-Aside 缓存策略
// 回填使用查库前读到的缓存版本，期间有写入的话回填的值不会再被读到。
func (r *neo4jTagRepo) FindByID(ctx context.Context, id string) (*tagmodel.Tag, error) {
	// 1. 尝试从缓存获取
	var (
		version  int64
		backfill = r.cache != nil
	)
	if r.cache != nil {
		cached, v, err := r.cache.GetTag(ctx, id)
		version = v
		switch {
		case err == nil:
			r.logger.Debug("缓存命中", zap.String("id", id))
			return cached, nil
		case errors.Is(err, cache.ErrNilValue):
			// 缓存了空值，表示数据库中不存在
			return nil, ErrTagNotFound
		case !errors.Is(err, cache.ErrNotFound):
			// 缓存出错，继续查库，版本未知时不回填
			r.logger.Warn("缓存获取标签失败", zap.String("id", id), zap.Error(err))
			backfill = false
		}
	}

	// 2. 从数据库获取
	session := r.readSession(ctx)
	defer session.Close(ctx)

	node, err := r.tagDAL.ExecGetTagByID(ctx, session, id)
	if err != nil {
		if isNotFoundError(err) {
			// 缓存空值，防止缓存穿透
			if backfill {
				if setErr := r.cache.SetTag(ctx, id, version, nil, cache.NilValueTTL); setErr != nil {
					r.logger.Warn("缓存设置空值标签失败", zap.String("id", id), zap.Error(setErr))
				}
			}
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("repo: 调用 DAL 获取标签失败: %w", err)
	}
	tag := mapDbNodeToTag(node)

	// 3. 回填缓存
	if backfill {
		if setErr := r.cache.SetTag(ctx, id, version, tag, r.ttl); setErr != nil {
			r.logger.Warn("缓存设置标签失败", zap.String("id", id), zap.Error(setErr))
		}
	}
	return tag, nil
}

// Save 创建或更新标签，更新时应用 Write Invalidation 缓存策略
func (r *neo4jTagRepo) Save(ctx context.Context, tag *tagmodel.Tag) (*tagmodel.Tag, error) {
	if tag == nil {
		return nil, errors.New("repo: 标签不能为空")
	}
	if tag.ID == "" {
		return r.create(ctx, tag)
	}
	return r.update(ctx, tag)
}

func (r *neo4jTagRepo) create(ctx context.Context, tag *tagmodel.Tag) (*tagmodel.Tag, error) {
	// 1. 生成唯一业务 ID
	id, err := r.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("repo: 生成标签 ID 失败: %w", err)
	}
	toCreate := *tag
	toCreate.ID = id

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	// 2. 调用 DAL 层执行数据库操作
	node, err := r.tagDAL.ExecCreateTag(ctx, session, tagToProps(&toCreate))
	if err != nil {
		return nil, fmt.Errorf("repo: 调用 DAL 创建标签失败: %w", err)
	}

	// 新 ID 可能在此前被当作不存在缓存过空值
	r.invalidate(ctx, id)
	return mapDbNodeToTag(node), nil
}

func (r *neo4jTagRepo) update(ctx context.Context, tag *tagmodel.Tag) (*tagmodel.Tag, error) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	updates := map[string]any{
		"name":       tag.Name,
		"desc":       tag.Desc,
		"operator":   tag.Operator,
		"updateTime": tag.UpdateTime,
	}
	node, err := r.tagDAL.ExecUpdateTag(ctx, session, tag.ID, updates)
	if err != nil {
		if isNotFoundError(err) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("repo: 调用 DAL 更新标签失败: %w", err)
	}

	// 先写库再删缓存
	r.invalidate(ctx, tag.ID)
	return mapDbNodeToTag(node), nil
}

func (r *neo4jTagRepo) DeleteSubtree(ctx context.Context, id string) ([]string, error) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	deleted, err := r.tagDAL.ExecDeleteSubtree(ctx, session, id)
	if err != nil {
		if isNotFoundError(err) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("repo: 调用 DAL 删除子树失败: %w", err)
	}
	r.invalidate(ctx, deleted...)
	return deleted, nil
}

func (r *neo4jTagRepo) QueryRows(ctx context.Context, query string, params map[string]any) ([]tagmodel.TagWithParent, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	rows, err := r.tagDAL.ExecQueryTagRows(ctx, session, query, params)
	if err != nil {
		return nil, fmt.Errorf("repo: 调用 DAL 执行分页查询失败: %w", err)
	}
	result := make([]tagmodel.TagWithParent, 0, len(rows))
	for _, row := range rows {
		item := tagmodel.TagWithParent{Tag: mapDbNodeToTag(row.Tag)}
		if row.Parent != nil {
			item.Parent = mapDbNodeToTag(*row.Parent)
		}
		result = append(result, item)
	}
	return result, nil
}

func (r *neo4jTagRepo) QueryCount(ctx context.Context, query string, params map[string]any) (int64, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	total, err := r.tagDAL.ExecQueryCount(ctx, session, query, params)
	if err != nil {
		return 0, fmt.Errorf("repo: 调用 DAL 执行计数查询失败: %w", err)
	}
	return total, nil
}

// invalidate 删除标签缓存，失败只记录日志
func (r *neo4jTagRepo) invalidate(ctx context.Context, ids ...string) {
	if r.cache == nil || len(ids) == 0 {
		return
	}
	if err := r.cache.DeleteTag(ctx, ids...); err != nil {
		r.logger.Warn("缓存删除标签失败", zap.Strings("ids", ids), zap.Error(err))
	}
}
