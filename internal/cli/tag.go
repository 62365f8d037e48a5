package cli

import (
	"github.com/spf13/cobra"

	"tagtree/biz/service/tagquery"
)

const defaultPageSize = 10

func (c *cli) addCommand() *cobra.Command {
	var name, desc, parent string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "新建 admin 标签",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.app.Service.AddTag(cmd.Context(), name, desc, optionalFlag(cmd, "parent", parent))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "标签名称")
	cmd.Flags().StringVar(&desc, "desc", "", "标签描述")
	cmd.Flags().StringVar(&parent, "parent", "", "父标签 ID")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) updateCommand() *cobra.Command {
	var name, desc, parent string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "修改 admin 标签，传入 --parent 时同时更换父标签",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Service.UpdateTag(cmd.Context(), args[0], name, desc, optionalFlag(cmd, "parent", parent)); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"id": args[0]})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "标签名称")
	cmd.Flags().StringVar(&desc, "desc", "", "标签描述")
	cmd.Flags().StringVar(&parent, "parent", "", "新的父标签 ID")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "删除 admin 标签及其全部后代",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Service.DeleteTag(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"id": args[0]})
		},
	}
}

// clampPage 页码小于 1 时取 1，每页条数小于 1 时取默认值
func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func (c *cli) listCommand() *cobra.Command {
	var (
		filter         tagquery.Filter
		page, pageSize int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "按条件分页查询标签",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, pageSize = clampPage(page, pageSize)
			result, err := c.app.Service.ListTagsPage(cmd.Context(), filter, page, pageSize)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	f := cmd.Flags()
	f.IntVar(&page, "page", 1, "页码，从 1 开始")
	f.IntVar(&pageSize, "size", defaultPageSize, "每页条数")
	f.StringVar(&filter.ID, "id", "", "标签 ID (精确匹配)")
	f.StringVar(&filter.Name, "name", "", "名称包含")
	f.StringVar(&filter.Desc, "desc", "", "描述包含")
	f.StringVar(&filter.ParentName, "parent-name", "", "父标签名称包含")
	f.StringVar(&filter.CreateTimeRange, "create-time", "", "创建时间范围，毫秒: <start>-<end>")
	f.StringVar(&filter.UpdateTimeRange, "update-time", "", "更新时间范围，毫秒: <start>-<end>")
	return cmd
}

func (c *cli) treeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "输出完整的标签层级树",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			forest, err := c.app.Service.GetTagHierarchy(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), forest)
		},
	}
}
