package cli

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) importCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "从 CSV 文件批量导入标签",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "csv <path>",
			Short: "两遍导入：按名称插入或复用标签，再按第 4 列建立父子关系 (可重复执行)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				report, err := c.app.Service.ImportFromCsv(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			},
		},
		&cobra.Command{
			Use:   "paired <path>",
			Short: "成对导入 native 标签：第 1 列为父标签，第 2 列为子标签 (每次都会新建节点)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				report, err := c.app.Service.ImportPairedCsv(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			},
		},
	)
	return cmd
}

func (c *cli) workerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "从 RabbitMQ 消费导入任务，直到收到 SIGINT/SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.app.Config.RabbitMQ.Enabled {
				return errors.New("rabbitmq.enabled 为 false，worker 无法启动")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer, err := c.app.NewImportConsumer()
			if err != nil {
				return err
			}
			c.app.Logger.Info("导入 worker 已启动", zap.String("queue", c.app.Config.RabbitMQ.ImportQueue))
			return consumer.Run(ctx)
		},
	}
}
