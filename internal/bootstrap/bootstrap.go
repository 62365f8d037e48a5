package bootstrap

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tagtree/biz/dal/neo4jdal"
	"tagtree/biz/handler/importjob"
	"tagtree/biz/repo/neo4jrepo"
	"tagtree/biz/service"
	dbInfra "tagtree/infrastructure/database"
	"tagtree/infrastructure/rabbitmq"
	"tagtree/pkg/cache"
	"tagtree/pkg/config"
	"tagtree/pkg/idgen"
)

// App 持有初始化完成的全部依赖
type App struct {
	Config  *config.AppConfig
	Logger  *zap.Logger
	Level   zap.AtomicLevel
	Service service.TagService

	driver    neo4j.DriverWithContext
	redis     *redis.Client
	publisher *rabbitmq.Publisher
}

// Init 函数执行所有应用程序的初始化步骤
func Init(ctx context.Context, configPath string) (*App, error) {
	// 1. 加载配置
	cfg, err := config.InitConfig(configPath)
	if err != nil {
		// 在 logger 初始化前，只能用标准 log
		log.Printf("Error: 加载配置失败: %v", err)
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	// 2. 初始化 Zap Logger，配置文件变化时同步日志级别
	logger, level := NewLogger(cfg.Logging.Level)
	config.OnChange(func(c *config.AppConfig) {
		level.SetLevel(ParseLevel(c.Logging.Level))
	})
	logger.Info("Zap Logger 初始化完成", zap.String("level", level.String()))

	app := &App{Config: cfg, Logger: logger, Level: level}

	// 3. 初始化数据库连接
	app.driver, err = dbInfra.InitNeo4j(ctx, cfg.Database.Neo4j, logger)
	if err != nil {
		logger.Error("初始化 Neo4j 失败", zap.Error(err))
		return nil, fmt.Errorf("初始化 Neo4j 失败: %w", err)
	}

	// 4. 初始化缓存 (可选)
	var appCache cache.TagAndByteCache
	if cfg.Cache.Enabled {
		app.redis, err = dbInfra.InitRedis(ctx, cfg.Database.Redis, logger)
		if err != nil {
			app.Close(ctx)
			logger.Error("初始化 Redis 失败", zap.Error(err))
			return nil, fmt.Errorf("初始化 Redis 失败: %w", err)
		}
		appCache, err = InitCache(logger, app.redis, &cfg.Cache)
		if err != nil {
			app.Close(ctx)
			return nil, err
		}
	} else {
		logger.Info("缓存已关闭")
	}

	// 5. 初始化事件发布 (可选)
	var publisher service.EventPublisher
	if cfg.RabbitMQ.Enabled {
		app.publisher, err = rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.ExchangeType, nil, logger)
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("初始化 RabbitMQ Publisher 失败: %w", err)
		}
		publisher = app.publisher
	}

	// 6. 组装 Repository 和 Service
	app.Service, err = InitService(logger, cfg, app.driver, appCache, publisher)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	logger.Info("Service 初始化完成.")
	return app, nil
}

// NewLogger 按配置的级别创建 JSON 格式的 logger
func NewLogger(levelName string) (*zap.Logger, zap.AtomicLevel) {
	level := zap.NewAtomicLevelAt(ParseLevel(levelName))
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr), // stdout 留给命令输出
		level,
	)
	return zap.New(core, zap.AddCaller()), level
}

// ParseLevel 无效的级别按 info 处理
func ParseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		log.Printf("Warning: 无效的日志级别 '%s'，将使用 'info'", name)
		return zapcore.InfoLevel
	}
}

// InitCache 初始化应用缓存
func InitCache(logger *zap.Logger, redisClient *redis.Client, cfg *config.CacheConfig) (cache.TagAndByteCache, error) {
	redisCache, err := cache.NewRedisCache(redisClient, cfg.Prefix, cfg.EstimatedKeys, cfg.FpRate)
	if err != nil {
		return nil, fmt.Errorf("创建 Redis 缓存实例失败: %w", err)
	}
	logger.Info("Redis 缓存实例创建成功", zap.String("prefix", cfg.Prefix))
	return redisCache, nil
}

// InitService 组装 DAL、Repository 和 Service。
// appCache 和 publisher 可为 nil。
func InitService(
	logger *zap.Logger,
	cfg *config.AppConfig,
	driver neo4j.DriverWithContext,
	appCache cache.TagAndByteCache,
	publisher service.EventPublisher,
) (service.TagService, error) {
	ids, err := idgen.New(cfg.IDGen.Kind)
	if err != nil {
		return nil, fmt.Errorf("初始化 ID 生成器失败: %w", err)
	}

	var tagCache cache.TagCache
	if appCache != nil {
		tagCache = appCache
	}
	tagRepo := neo4jrepo.NewTagRepository(driver, neo4jdal.NewTagDAL(), tagCache, ids, logger,
		time.Duration(cfg.Cache.TTL.Tag)*time.Second)
	relationRepo := neo4jrepo.NewRelationRepository(driver, neo4jdal.NewRelationDAL(), logger)

	opts := []service.Option{service.WithMaxDepth(cfg.Hierarchy.MaxDepth)}
	if appCache != nil {
		opts = append(opts, service.WithHierarchyCache(appCache, time.Duration(cfg.Cache.TTL.Hierarchy)*time.Second))
	}
	if publisher != nil {
		opts = append(opts, service.WithPublisher(publisher, cfg.RabbitMQ.EventRoutingPrefix))
	}
	return service.NewTagService(tagRepo, relationRepo, logger, opts...), nil
}

// NewImportConsumer 创建消费导入任务的 Consumer
func (a *App) NewImportConsumer() (*rabbitmq.Consumer, error) {
	mq := a.Config.RabbitMQ
	handler := importjob.NewHandler(a.Service, a.Logger)
	return rabbitmq.NewConsumer(mq.URL, handler.Handle, rabbitmq.ConsumerOptions{
		ExchangeName: mq.Exchange,
		ExchangeType: mq.ExchangeType,
		QueueName:    mq.ImportQueue,
		RoutingKey:   mq.ImportRoutingKey,
	}, a.Logger)
}

// Close 释放所有连接
func (a *App) Close(ctx context.Context) {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("关闭 Redis 连接失败", zap.Error(err))
		}
	}
	if a.driver != nil {
		if err := a.driver.Close(ctx); err != nil {
			a.Logger.Warn("关闭 Neo4j 驱动失败", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
