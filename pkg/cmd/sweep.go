package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yeisme/tagdrop/pkg/app"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "reap expired tags once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			res, err := core.Services.Sweeper.RunOnce(ctx)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

// registerSweepCommands 注册清理命令.
func registerSweepCommands() {
	rootCmd.AddCommand(sweepCmd)
}
