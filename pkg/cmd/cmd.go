// Package cmd contains the command line applications for the project.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/tagdrop/pkg/app"
	"github.com/yeisme/tagdrop/pkg/configs"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           configs.AppName,
		Short:         "Tag-scoped file drop with expiring tags",
		Version:       configs.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, configPath)
			if err != nil {
				return err
			}

			return a.Run(ctx)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")

	registerBackendsCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerSweepCommands()
	registerTagCommands()
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)

		return err
	}

	return nil
}

// withCore 打开不含 HTTP 的运行时执行 fn，结束后关闭存储.
func withCore(cmd *cobra.Command, fn func(ctx context.Context, core *app.Core) error) error {
	ctx := cmd.Context()

	core, err := app.NewCore(ctx, configPath)
	if err != nil {
		return err
	}

	defer func() { _ = core.Close() }()

	return fn(ctx, core)
}

// printJSON 以缩进 JSON 输出.
func printJSON(w io.Writer, v any) error {
	b, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	_, err = fmt.Fprintln(w, string(b))

	return err
}
