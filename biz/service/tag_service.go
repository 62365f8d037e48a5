package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	tagmodel "tagtree/biz/model/tag"
	"tagtree/biz/repo/neo4jrepo"
	"tagtree/biz/service/tagquery"
	"tagtree/pkg/cache"
	"tagtree/pkg/keylock"
)

const (
	// DefaultMaxDepth 层级树的最大深度，超过后不再展开
	DefaultMaxDepth = 64
	// DefaultHierarchyTTL 层级树快照的缓存时间
	DefaultHierarchyTTL = 10 * time.Minute

	hierarchyCacheKey    = "hierarchy:snapshot"
	hierarchyVersionName = "hierarchy"
)

// TagService 定义了标签层级服务的业务逻辑接口
type TagService interface {
	// 标签增删改
	AddTag(ctx context.Context, name, desc string, parentID *string) (string, error)
	UpdateTag(ctx context.Context, tagID, name, desc string, parentID *string) error
	DeleteTag(ctx context.Context, tagID string) error
	// 分页列表，page 和 pageSize 必须大于 0
	ListTagsPage(ctx context.Context, filter tagquery.Filter, page, pageSize int) (*tagmodel.TagPage, error)
	// 完整层级树
	GetTagHierarchy(ctx context.Context) ([]*tagmodel.TagView, error)
	// 批量导入
	ImportFromCsv(ctx context.Context, path string) (*ImportReport, error)
	ImportPairedCsv(ctx context.Context, path string) (*ImportReport, error)
}

// tagService 实现了 TagService 接口
type tagService struct {
	tagRepo      neo4jrepo.TagRepository
	relationRepo neo4jrepo.RelationRepository
	logger       *zap.Logger

	// 同一父节点 / 同一标签上的"先检查后写入"串行执行
	locks *keylock.Locker

	snapshot      cache.VersionedCache // 可为 nil
	snapshotTTL   time.Duration
	publisher     EventPublisher // 可为 nil
	routingPrefix string
	maxDepth      int
	now           func() time.Time
}

// Option 配置 tagService 的可选依赖
type Option func(*tagService)

// WithHierarchyCache 缓存层级树快照，任何写操作都会使其失效
func WithHierarchyCache(c cache.VersionedCache, ttl time.Duration) Option {
	return func(s *tagService) {
		s.snapshot = c
		if ttl > 0 {
			s.snapshotTTL = ttl
		}
	}
}

// WithPublisher 写操作成功后发布事件，路由键为 prefix + 事件类型
func WithPublisher(p EventPublisher, routingPrefix string) Option {
	return func(s *tagService) {
		s.publisher = p
		s.routingPrefix = routingPrefix
	}
}

// WithMaxDepth 设置层级树的最大深度
func WithMaxDepth(depth int) Option {
	return func(s *tagService) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithClock 替换时间来源，测试用
func WithClock(now func() time.Time) Option {
	return func(s *tagService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocker 多个服务实例共享同一把进程内锁
func WithLocker(l *keylock.Locker) Option {
	return func(s *tagService) {
		if l != nil {
			s.locks = l
		}
	}
}

// NewTagService 创建一个新的 TagService 实例
// 通过依赖注入传入数据访问层的实现
func NewTagService(tagRepo neo4jrepo.TagRepository, relationRepo neo4jrepo.RelationRepository, logger *zap.Logger, opts ...Option) TagService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &tagService{
		tagRepo:      tagRepo,
		relationRepo: relationRepo,
		logger:       logger.Named("tag_service"),
		locks:        keylock.New(),
		snapshotTTL:  DefaultHierarchyTTL,
		maxDepth:     DefaultMaxDepth,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTag 创建 admin 标签，parentID 不为空时挂到父节点下
func (s *tagService) AddTag(ctx context.Context, name, desc string, parentID *string) (string, error) {
	// 1. 输入验证
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("service: 标签名称不能为空: %w", ErrInvalidArgument)
	}
	pid := optional(parentID)

	var parent *tagmodel.Tag
	if pid != "" {
		unlock := s.locks.Lock(pid)
		defer unlock()

		// 2. 同级重名校验
		names, err := s.tagRepo.FindChildrenNames(ctx, pid)
		if err != nil {
			return "", fmt.Errorf("service: 查询子标签名称失败: %w", err)
		}
		if contains(names, name) {
			s.logger.Info("同级标签重名", zap.String("parentId", pid), zap.String("name", name))
			return "", fmt.Errorf("service: 父标签 %s 下已存在 %q: %w", pid, name, ErrDuplicateName)
		}

		// 父标签不存在时按根标签创建
		parent, err = s.tagRepo.FindByID(ctx, pid)
		if err != nil && !errors.Is(err, neo4jrepo.ErrTagNotFound) {
			return "", fmt.Errorf("service: 查询父标签失败: %w", err)
		}
		if parent == nil {
			s.logger.Warn("父标签不存在，标签将作为根节点创建", zap.String("parentId", pid))
		}
	}

	// 3. 创建标签
	tag, err := s.tagRepo.Save(ctx, tagmodel.NewTag(name, desc, tagmodel.SourceAdmin, s.now().UnixMilli()))
	if err != nil {
		s.logger.Error("创建标签失败", zap.String("name", name), zap.Error(err))
		return "", fmt.Errorf("service: 创建标签失败: %w", err)
	}

	// 4. 建立父子关系
	if parent != nil {
		if err := s.attach(ctx, parent, tag); err != nil {
			return "", err
		}
	}

	s.invalidateHierarchy(ctx)
	s.publish(ctx, TagEvent{Type: EventTagCreated, TagID: tag.ID, ParentID: pid, Source: tag.Source.String()})
	return tag.ID, nil
}

// UpdateTag 更新名称和描述；parentID 为空时保持原有父子关系不变
func (s *tagService) UpdateTag(ctx context.Context, tagID, name, desc string, parentID *string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("service: 标签名称不能为空: %w", ErrInvalidArgument)
	}
	pid := optional(parentID)
	if pid != "" && pid == tagID {
		return fmt.Errorf("service: 标签 %s 不能作为自己的父标签: %w", tagID, ErrInvalidArgument)
	}

	unlock := s.locks.Lock(tagID, pid)
	defer unlock()

	tag, err := s.mutableTag(ctx, tagID)
	if err != nil {
		return err
	}

	if pid != "" {
		names, err := s.tagRepo.FindOtherChildrenNames(ctx, pid, tagID)
		if err != nil {
			return fmt.Errorf("service: 查询其他子标签名称失败: %w", err)
		}
		if contains(names, name) {
			s.logger.Info("同级标签重名", zap.String("parentId", pid), zap.String("name", name))
			return fmt.Errorf("service: 父标签 %s 下已存在 %q: %w", pid, name, ErrDuplicateName)
		}
	}

	tag.Name = name
	tag.Desc = desc
	tag.UpdateTime = s.now().UnixMilli()
	if _, err := s.tagRepo.Save(ctx, tag); err != nil {
		s.logger.Error("更新标签失败", zap.String("id", tagID), zap.Error(err))
		return fmt.Errorf("service: 更新标签失败: %w", err)
	}

	if pid != "" {
		if err := s.reparent(ctx, pid, tagID); err != nil {
			return err
		}
	}

	s.invalidateHierarchy(ctx)
	s.publish(ctx, TagEvent{Type: EventTagUpdated, TagID: tagID, ParentID: pid, Source: tag.Source.String()})
	return nil
}

// DeleteTag 删除标签及其全部后代
func (s *tagService) DeleteTag(ctx context.Context, tagID string) error {
	unlock := s.locks.Lock(tagID)
	defer unlock()

	if _, err := s.mutableTag(ctx, tagID); err != nil {
		return err
	}

	deleted, err := s.tagRepo.DeleteSubtree(ctx, tagID)
	if err != nil {
		if errors.Is(err, neo4jrepo.ErrTagNotFound) {
			// 校验之后被并发删除
			return fmt.Errorf("service: 标签 %s: %w", tagID, ErrNotFound)
		}
		s.logger.Error("删除标签子树失败", zap.String("id", tagID), zap.Error(err))
		return fmt.Errorf("service: 删除标签失败: %w", err)
	}
	s.logger.Info("删除标签子树", zap.String("id", tagID), zap.Int("count", len(deleted)))

	s.invalidateHierarchy(ctx)
	s.publish(ctx, TagEvent{Type: EventTagDeleted, TagID: tagID, IDs: deleted})
	return nil
}

// ListTagsPage 按过滤条件分页查询，total 与分页无关
func (s *tagService) ListTagsPage(ctx context.Context, filter tagquery.Filter, page, pageSize int) (*tagmodel.TagPage, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("service: page=%d pageSize=%d 必须大于 0: %w", page, pageSize, ErrInvalidArgument)
	}
	q, err := tagquery.FromFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("service: 解析过滤条件失败: %w", err)
	}

	pageQuery, pageParams := q.Page(page, pageSize)
	rows, err := s.tagRepo.QueryRows(ctx, pageQuery, pageParams)
	if err != nil {
		return nil, fmt.Errorf("service: 分页查询失败: %w", err)
	}
	countQuery, countParams := q.Count()
	total, err := s.tagRepo.QueryCount(ctx, countQuery, countParams)
	if err != nil {
		return nil, fmt.Errorf("service: 计数查询失败: %w", err)
	}

	list := make([]*tagmodel.TagView, 0, len(rows))
	for _, row := range rows {
		if row.Tag == nil {
			continue
		}
		list = append(list, tagmodel.ToPageView(row))
	}
	return &tagmodel.TagPage{List: list, Total: total}, nil
}

// --- 内部辅助 ---

// mutableTag 获取标签并校验可修改
func (s *tagService) mutableTag(ctx context.Context, tagID string) (*tagmodel.Tag, error) {
	tag, err := s.tagRepo.FindByID(ctx, tagID)
	if err != nil {
		if errors.Is(err, neo4jrepo.ErrTagNotFound) {
			return nil, fmt.Errorf("service: 标签 %s: %w", tagID, ErrNotFound)
		}
		return nil, fmt.Errorf("service: 查询标签失败: %w", err)
	}
	if !tag.Source.Mutable() {
		s.logger.Info("拒绝修改非 admin 标签", zap.String("id", tagID), zap.String("source", tag.Source.String()))
		return nil, fmt.Errorf("service: 标签 %s 来源为 %q: %w", tagID, tag.Source, ErrImmutableTag)
	}
	return tag, nil
}

// attach 父子关系不存在时创建
func (s *tagService) attach(ctx context.Context, parent, child *tagmodel.Tag) error {
	exists, err := s.relationRepo.EdgeExists(ctx, parent.ID, child.ID)
	if err != nil {
		return fmt.Errorf("service: 检查父子关系失败: %w", err)
	}
	if exists {
		return nil
	}
	if _, _, err := s.relationRepo.CreateEdge(ctx, parent, child); err != nil {
		s.logger.Error("创建父子关系失败", zap.String("parentId", parent.ID), zap.String("childId", child.ID), zap.Error(err))
		return fmt.Errorf("service: 创建父子关系失败: %w", err)
	}
	return nil
}

// reparent 删除全部入边后挂到新父节点下；父节点不存在时标签成为根节点
func (s *tagService) reparent(ctx context.Context, parentID, tagID string) error {
	parent, err := s.tagRepo.FindByID(ctx, parentID)
	if err != nil && !errors.Is(err, neo4jrepo.ErrTagNotFound) {
		return fmt.Errorf("service: 查询父标签失败: %w", err)
	}
	if parent == nil {
		s.logger.Warn("父标签不存在，标签将成为根节点", zap.String("parentId", parentID), zap.String("id", tagID))
		if _, err := s.relationRepo.DeleteIncomingEdges(ctx, tagID); err != nil {
			return fmt.Errorf("service: 删除原有父子关系失败: %w", err)
		}
		return nil
	}
	// 删除旧边和创建新边在同一个事务里
	if _, err := s.relationRepo.ReplaceParent(ctx, parentID, tagID); err != nil {
		s.logger.Error("替换父标签失败", zap.String("parentId", parentID), zap.String("id", tagID), zap.Error(err))
		return fmt.Errorf("service: 替换父标签失败: %w", err)
	}
	return nil
}

func (s *tagService) invalidateHierarchy(ctx context.Context) {
	if s.snapshot == nil {
		return
	}
	version, err := s.snapshot.BumpVersion(ctx, hierarchyVersionName)
	if err != nil {
		s.logger.Warn("递增层级树版本失败", zap.Error(err))
		return
	}
	// 旧版本的快照已不可见，删掉只是为了释放空间
	if err := s.snapshot.Delete(ctx, snapshotKey(version-1)); err != nil {
		s.logger.Warn("删除层级树缓存失败", zap.Error(err))
	}
}

func optional(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
