// Package importjob 消费 RabbitMQ 上的导入任务并调用 TagService 执行。
package importjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"tagtree/biz/service"
	"tagtree/infrastructure/rabbitmq"
)

// 导入模式
const (
	ModeCsv    = "csv"
	ModePaired = "paired"
)

// Job 一条导入任务消息
type Job struct {
	Mode string `json:"mode"`
	Path string `json:"path"`
}

// Importer 导入任务依赖的服务能力
type Importer interface {
	ImportFromCsv(ctx context.Context, path string) (*service.ImportReport, error)
	ImportPairedCsv(ctx context.Context, path string) (*service.ImportReport, error)
}

// Handler 把导入任务转交给服务层
type Handler struct {
	importer Importer
	logger   *zap.Logger
}

func NewHandler(importer Importer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{importer: importer, logger: logger.Named("import_job")}
}

// Decode 解析并校验任务消息
func Decode(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return Job{}, fmt.Errorf("importjob: 消息格式错误: %w", err)
	}
	job.Mode = strings.ToLower(strings.TrimSpace(job.Mode))
	job.Path = strings.TrimSpace(job.Path)
	if job.Path == "" {
		return Job{}, errors.New("importjob: path 不能为空")
	}
	if job.Mode == "" {
		job.Mode = ModeCsv
	}
	if job.Mode != ModeCsv && job.Mode != ModePaired {
		return Job{}, fmt.Errorf("importjob: 未知的导入模式 %q", job.Mode)
	}
	return job, nil
}

// Run 执行一条导入任务
func (h *Handler) Run(ctx context.Context, job Job) (*service.ImportReport, error) {
	switch job.Mode {
	case ModePaired:
		return h.importer.ImportPairedCsv(ctx, job.Path)
	default:
		return h.importer.ImportFromCsv(ctx, job.Path)
	}
}

// Handle 实现 rabbitmq.MessageHandler。
// 消息格式错误和文件读取失败不会因重试而成功，标记为永久错误。
func (h *Handler) Handle(ctx context.Context, d amqp.Delivery) error {
	job, err := Decode(d.Body)
	if err != nil {
		h.logger.Warn("丢弃无法解析的导入任务", zap.String("messageId", d.MessageId), zap.Error(err))
		return rabbitmq.Permanent(err)
	}

	report, err := h.Run(ctx, job)
	if err != nil {
		h.logger.Error("导入任务失败", zap.String("mode", job.Mode), zap.String("path", job.Path), zap.Error(err))
		if errors.Is(err, service.ErrIO) {
			return rabbitmq.Permanent(err)
		}
		return err
	}
	h.logger.Info("导入任务完成", zap.String("mode", job.Mode), zap.String("path", job.Path), zap.Any("report", report))
	return nil
}

var _ rabbitmq.MessageHandler = (*Handler)(nil).Handle
