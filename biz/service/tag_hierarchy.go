package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	tagmodel "tagtree/biz/model/tag"
	"tagtree/pkg/cache"
)

// frame 待展开的节点
type frame struct {
	view  *tagmodel.TagView
	depth int
}

// GetTagHierarchy 返回以全部根标签为起点的森林，兄弟节点按创建时间升序。
// 用显式栈做先序遍历，visited 防止数据中出现环或多父节点时重复展开。
// 快照按查库前读到的版本存取，构建期间发生的写入会递增版本，旧快照不会再被读到。
func (s *tagService) GetTagHierarchy(ctx context.Context) ([]*tagmodel.TagView, error) {
	version, versioned := s.hierarchyVersion(ctx)
	if versioned {
		if forest, ok := s.cachedHierarchy(ctx, version); ok {
			return forest, nil
		}
	}

	roots, err := s.tagRepo.FindRoots(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: 查询根标签失败: %w", err)
	}
	sortByCreateTime(roots)

	forest := make([]*tagmodel.TagView, 0, len(roots))
	visited := make(map[string]struct{}, len(roots))
	stack := make([]frame, 0, len(roots))
	for _, root := range roots {
		view := tagmodel.ToView(root)
		forest = append(forest, view)
		visited[root.ID] = struct{}{}
	}
	// 逆序入栈，出栈顺序即先序
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, frame{view: forest[i], depth: 1})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.depth >= s.maxDepth {
			s.logger.Warn("层级超过最大深度，停止展开", zap.String("id", top.view.ID), zap.Int("maxDepth", s.maxDepth))
			continue
		}

		edges, err := s.relationRepo.FindOutgoingEdges(ctx, top.view.ID)
		if err != nil {
			return nil, fmt.Errorf("service: 查询子标签失败 (id: %s): %w", top.view.ID, err)
		}
		children := make([]*tagmodel.Tag, 0, len(edges))
		for _, e := range edges {
			if e == nil || e.Child == nil {
				continue
			}
			if _, seen := visited[e.Child.ID]; seen {
				s.logger.Warn("标签已在层级中出现，跳过", zap.String("parentId", top.view.ID), zap.String("childId", e.Child.ID))
				continue
			}
			visited[e.Child.ID] = struct{}{}
			children = append(children, e.Child)
		}
		sortByCreateTime(children)

		for _, child := range children {
			top.view.Children = append(top.view.Children, tagmodel.ToView(child))
		}
		for i := len(top.view.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{view: top.view.Children[i], depth: top.depth + 1})
		}
	}

	if versioned {
		s.storeHierarchy(ctx, version, forest)
	}
	return forest, nil
}

func snapshotKey(version int64) string {
	return fmt.Sprintf("%s:%d", hierarchyCacheKey, version)
}

// hierarchyVersion 读不到版本时本次不使用快照
func (s *tagService) hierarchyVersion(ctx context.Context) (int64, bool) {
	if s.snapshot == nil {
		return 0, false
	}
	version, err := s.snapshot.Version(ctx, hierarchyVersionName)
	if err != nil {
		s.logger.Warn("读取层级树版本失败", zap.Error(err))
		return 0, false
	}
	return version, true
}

func (s *tagService) cachedHierarchy(ctx context.Context, version int64) ([]*tagmodel.TagView, bool) {
	data, err := s.snapshot.Get(ctx, snapshotKey(version))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.Warn("读取层级树缓存失败", zap.Error(err))
		}
		return nil, false
	}
	var forest []*tagmodel.TagView
	if err := json.Unmarshal(data, &forest); err != nil {
		s.logger.Warn("层级树缓存数据损坏", zap.Error(err))
		return nil, false
	}
	return forest, true
}

func (s *tagService) storeHierarchy(ctx context.Context, version int64, forest []*tagmodel.TagView) {
	data, err := json.Marshal(forest)
	if err != nil {
		s.logger.Warn("序列化层级树失败", zap.Error(err))
		return
	}
	if err := s.snapshot.Set(ctx, snapshotKey(version), data, s.snapshotTTL); err != nil {
		s.logger.Warn("写入层级树缓存失败", zap.Error(err))
	}
}

// sortByCreateTime 创建时间升序，相同时按 ID
func sortByCreateTime(tags []*tagmodel.Tag) {
	sort.SliceStable(tags, func(i, j int) bool {
		if tags[i].CreateTime != tags[j].CreateTime {
			return tags[i].CreateTime < tags[j].CreateTime
		}
		return tags[i].ID < tags[j].ID
	})
}
