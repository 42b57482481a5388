package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yeisme/tagdrop/pkg/app"
	"github.com/yeisme/tagdrop/pkg/internal/service"
)

var (
	tagCmd = &cobra.Command{
		Use:   "tag",
		Short: "Tag related commands",
	}

	tagNewCmd = &cobra.Command{
		Use:   "new",
		Short: "register a new tag and print its admin secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				view, secret, err := core.Services.Admin.Create(ctx)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), struct {
					*service.TagView
					Secret string `json:"secret"`
				}{view, secret})
			})
		},
	}
)

// registerTagCommands 注册标签相关命令.
func registerTagCommands() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.AddCommand(tagNewCmd)
}
