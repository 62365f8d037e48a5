package database

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tagtree/pkg/config"
)

const (
	neo4jVerifyTimeout = 10 * time.Second
	redisPingTimeout   = 5 * time.Second
)

// poolConfigurer 把连接池配置应用到驱动，未配置 (<=0) 的项保留驱动默认值
func poolConfigurer(cfg config.Neo4jConfig) func(*neo4jconfig.Config) {
	return func(c *neo4jconfig.Config) {
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		}
		if cfg.ConnectionAcquisitionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = time.Duration(cfg.ConnectionAcquisitionTimeout) * time.Second
		}
		if cfg.MaxConnectionLifetime > 0 {
			c.MaxConnectionLifetime = time.Duration(cfg.MaxConnectionLifetime) * time.Second
		}
	}
}

// InitNeo4j 创建驱动、验证连接并应用 Schema。
// Schema 应用失败只记录警告，不影响启动。
func InitNeo4j(ctx context.Context, cfg config.Neo4jConfig, logger *zap.Logger) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		poolConfigurer(cfg),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 Neo4j 驱动失败: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, neo4jVerifyTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("Neo4j 连接验证失败: %w", err)
	}
	logger.Info("成功验证 Neo4j 连接", zap.String("uri", cfg.URI))

	if err := ApplySchema(ctx, driver, logger); err != nil {
		logger.Warn("应用 Neo4j Schema 失败", zap.Error(err))
	}
	return driver, nil
}

// InitRedis 初始化 Redis 客户端并检查连通性
func InitRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("无法连接到 Redis (%s): %w", cfg.Addr, err)
	}
	logger.Info("成功连接到 Redis", zap.String("address", cfg.Addr))
	return client, nil
}
