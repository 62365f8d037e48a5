package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// schemaQueries 标签节点的约束和索引
var schemaQueries = []string{
	"CREATE CONSTRAINT tag_id_unique IF NOT EXISTS FOR (t:tag) REQUIRE t.id IS UNIQUE",
	"CREATE INDEX tag_name_index IF NOT EXISTS FOR (t:tag) ON (t.name)",
	"CREATE INDEX tag_create_time_index IF NOT EXISTS FOR (t:tag) ON (t.createTime)",
}

// cypherRunner 执行单条 Cypher，neo4j.SessionWithContext 满足该接口
type cypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any, configurers ...func(*neo4j.TransactionConfig)) (neo4j.ResultWithContext, error)
}

// ApplySchema 创建必要的约束和索引，可重复执行
func ApplySchema(ctx context.Context, driver neo4j.DriverWithContext, logger *zap.Logger) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	return applySchema(ctx, session, logger)
}

func applySchema(ctx context.Context, runner cypherRunner, logger *zap.Logger) error {
	logger.Info("开始应用 Neo4j schema...")

	var appliedCount int
	for _, query := range schemaQueries {
		result, err := runner.Run(ctx, query, nil)
		if err == nil && result != nil {
			_, err = result.Consume(ctx)
		}
		if err != nil {
			if strings.Contains(err.Error(), "already exists") {
				logger.Debug("Schema (索引/约束) 已存在，跳过", zap.String("query", query))
				continue
			}
			logger.Error("执行 schema 查询失败", zap.String("query", query), zap.Error(err))
			return fmt.Errorf("执行 schema 查询失败 '%s': %w", query, err)
		}
		logger.Debug("成功应用 schema", zap.String("query", query))
		appliedCount++
	}

	logger.Info("Neo4j schema 应用完成", zap.Int("applied_count", appliedCount))
	return nil
}
