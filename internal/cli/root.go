// Package cli 实现 tagctl 命令行
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tagtree/internal/bootstrap"
)

// DefaultConfigPath 默认配置文件
const DefaultConfigPath = "conf/config.yaml"

// Opener 根据配置文件初始化应用依赖
type Opener func(ctx context.Context, configPath string) (*bootstrap.App, error)

type cli struct {
	configPath string
	open       Opener
	app        *bootstrap.App
}

// NewRootCommand 创建 tagctl 根命令，open 为 nil 时使用 bootstrap.Init
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = bootstrap.Init
	}
	c := &cli{open: open}

	root := &cobra.Command{
		Use:           "tagctl",
		Short:         "标签层级管理工具",
		Long:          "管理 Neo4j 中的标签层级：增删改、分页查询、层级树、CSV 导入以及导入任务 worker。",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd.Context(), c.configPath)
			if err != nil {
				return err
			}
			c.app = app
			return nil
		},
		// 只有 Run 的命令 (help 等) 走这里，closeApp 可重复调用
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.closeApp()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", DefaultConfigPath, "配置文件路径")

	root.AddCommand(
		c.addCommand(),
		c.updateCommand(),
		c.deleteCommand(),
		c.listCommand(),
		c.treeCommand(),
		c.importCommand(),
		c.workerCommand(),
	)
	c.closeAfterRun(root)
	return root
}

// closeAfterRun 包装每个子命令的 RunE，返回后关闭应用。
// RunE 出错时 cobra 不会执行 PersistentPostRun。
func (c *cli) closeAfterRun(cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		c.closeAfterRun(sub)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		defer c.closeApp()
		return run(cmd, args)
	}
}

func (c *cli) closeApp() {
	if c.app == nil {
		return
	}
	c.app.Close(context.Background())
	c.app = nil
}

// Execute 执行根命令
func Execute(ctx context.Context) error {
	return NewRootCommand(nil).ExecuteContext(ctx)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("输出 JSON 失败: %w", err)
	}
	return nil
}

// optionalFlag 只有显式传入时才返回指针
func optionalFlag(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}
