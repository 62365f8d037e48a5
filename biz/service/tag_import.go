package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	tagmodel "tagtree/biz/model/tag"
	"tagtree/biz/repo/neo4jrepo"
)

// ImportReport 一次导入的统计
type ImportReport struct {
	Rows    int `json:"rows"`    // 读取的数据行，不含表头
	Created int `json:"created"` // 新建的标签
	Reused  int `json:"reused"`  // 按名称复用的已有标签
	Linked  int `json:"linked"`  // 新建的父子关系
	Skipped int `json:"skipped"` // 被跳过的行
}

// csvRows 逐行读取 CSV，跳过表头
type csvRows struct {
	file   *os.File
	reader *csv.Reader
}

func openCsv(path string) (*csvRows, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("service: 打开导入文件 %s: %w: %w", path, ErrIO, err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows := &csvRows{file: f, reader: r}
	// 表头
	if _, err := rows.next(); err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, err
	}
	return rows, nil
}

// next 返回下一行，去掉行尾的空字段；读完返回 io.EOF
func (c *csvRows) next() ([]string, error) {
	record, err := c.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("service: 读取导入文件: %w: %w", ErrIO, err)
	}
	for len(record) > 0 && record[len(record)-1] == "" {
		record = record[:len(record)-1]
	}
	return record, nil
}

func (c *csvRows) Close() error {
	return c.file.Close()
}

func field(record []string, i int) string {
	if i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}

// ImportFromCsv 两遍导入。
// 第一遍按名称 (第 1 列) 插入或复用标签，描述取第 2 列，来源不设置；
// 第二遍把第 4 列作为父标签名称建立父子关系。重复执行结果不变。
func (s *tagService) ImportFromCsv(ctx context.Context, path string) (*ImportReport, error) {
	// 失败时已提交的行不回滚，缓存同样需要失效
	defer s.invalidateHierarchy(ctx)

	report := &ImportReport{}
	byName, err := s.importTagsPass(ctx, path, report)
	if err != nil {
		return report, err
	}
	if err := s.importEdgesPass(ctx, path, byName, report); err != nil {
		return report, err
	}

	s.logger.Info("CSV 导入完成", zap.String("path", path), zap.Any("report", report))
	s.publish(ctx, TagEvent{Type: EventTagImported})
	return report, nil
}

func (s *tagService) importTagsPass(ctx context.Context, path string, report *ImportReport) (map[string]*tagmodel.Tag, error) {
	rows, err := openCsv(path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*tagmodel.Tag)
	for {
		record, err := rows.next()
		if errors.Is(err, io.EOF) {
			return byName, nil
		}
		if err != nil {
			return nil, err
		}
		report.Rows++

		name := field(record, 0)
		if name == "" {
			report.Skipped++
			continue
		}
		if _, ok := byName[name]; ok {
			continue
		}

		tag, err := s.tagRepo.FindByName(ctx, name)
		switch {
		case err == nil:
			report.Reused++
		case errors.Is(err, neo4jrepo.ErrTagNotFound):
			tag, err = s.tagRepo.Save(ctx, tagmodel.NewTag(name, field(record, 1), tagmodel.SourceUnset, s.now().UnixMilli()))
			if err != nil {
				return nil, fmt.Errorf("service: 导入标签 %q 失败: %w", name, err)
			}
			report.Created++
		default:
			return nil, fmt.Errorf("service: 按名称查询标签 %q 失败: %w", name, err)
		}
		byName[name] = tag
	}
}

func (s *tagService) importEdgesPass(ctx context.Context, path string, byName map[string]*tagmodel.Tag, report *ImportReport) error {
	rows, err := openCsv(path)
	if err != nil {
		return err
	}
	defer rows.Close()

	for {
		record, err := rows.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		parentName := field(record, 3)
		if parentName == "" {
			continue
		}
		child, parent := byName[field(record, 0)], byName[parentName]
		if child == nil || parent == nil {
			s.logger.Warn("父标签或子标签不在导入文件中，跳过", zap.String("child", field(record, 0)), zap.String("parent", parentName))
			report.Skipped++
			continue
		}
		if child.ID == parent.ID {
			report.Skipped++
			continue
		}

		exists, err := s.relationRepo.EdgeExists(ctx, parent.ID, child.ID)
		if err != nil {
			return fmt.Errorf("service: 检查父子关系失败: %w", err)
		}
		if exists {
			continue
		}
		if _, created, err := s.relationRepo.CreateEdge(ctx, parent, child); err != nil {
			return fmt.Errorf("service: 导入父子关系 %q -> %q 失败: %w", parentName, child.Name, err)
		} else if created {
			report.Linked++
		}
	}
}

// ImportPairedCsv 成对导入，来源为 native。
// 第 1 列非空时新建标签并作为当前父标签，第 2 列非空时新建标签挂到当前父标签下。
// 每行都会新建节点，不按名称去重。
func (s *tagService) ImportPairedCsv(ctx context.Context, path string) (*ImportReport, error) {
	rows, err := openCsv(path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	defer s.invalidateHierarchy(ctx)

	report := &ImportReport{}
	var parent *tagmodel.Tag
	for {
		record, err := rows.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, err
		}
		report.Rows++
		if len(record) < 2 {
			report.Skipped++
			continue
		}

		if name := field(record, 0); name != "" {
			parent, err = s.tagRepo.Save(ctx, tagmodel.NewTag(name, "", tagmodel.SourceNative, s.now().UnixMilli()))
			if err != nil {
				return report, fmt.Errorf("service: 导入标签 %q 失败: %w", name, err)
			}
			report.Created++
		}

		name := field(record, 1)
		if name == "" {
			continue
		}
		child, err := s.tagRepo.Save(ctx, tagmodel.NewTag(name, "", tagmodel.SourceNative, s.now().UnixMilli()))
		if err != nil {
			return report, fmt.Errorf("service: 导入标签 %q 失败: %w", name, err)
		}
		report.Created++
		if parent == nil {
			continue
		}
		if err := s.attach(ctx, parent, child); err != nil {
			return report, err
		}
		report.Linked++
	}

	s.logger.Info("成对导入完成", zap.String("path", path), zap.Any("report", report))
	s.publish(ctx, TagEvent{Type: EventTagImported, Source: tagmodel.SourceNative.String()})
	return report, nil
}
