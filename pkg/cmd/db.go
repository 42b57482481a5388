package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/tagdrop/pkg/app"
	"github.com/yeisme/tagdrop/pkg/internal/model"
)

var (
	dbCmd = &cobra.Command{
		Use:   "db",
		Short: "Database related commands",
	}

	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "create or update the metadata tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				if err := core.Storage.DB.Migrate(ctx, model.All()...); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), "migration complete")

				return nil
			})
		},
	}

	dbStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "print tag, file and download totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				stats, err := core.Storage.Repo.Stats(ctx)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
)

// registerDBCommands 注册数据库相关命令.
func registerDBCommands() {
	rootCmd.AddCommand(dbCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatsCmd)
}
