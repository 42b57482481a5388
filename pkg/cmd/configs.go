package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/tagdrop/pkg/configs"
)

var (
	viperDebug bool

	// config 子命令.
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "config subcommands",
	}

	// 打印当前使用的配置文件路径.
	pathCmd = &cobra.Command{
		Use:   "path",
		Short: "print the path of the current config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := configs.NewLoader(configPath)
			if err != nil {
				return err
			}

			cfg := loader.Viper().ConfigFileUsed()
			if cfg == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no config file used (maybe using defaults or env)")

				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), cfg)

			return nil
		},
	}

	// 打印解析后的配置.
	debugCmd = &cobra.Command{
		Use:   "debug",
		Short: "print the current config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := configs.NewLoader(configPath)
			if err != nil {
				return err
			}

			if viperDebug {
				loader.Viper().DebugTo(cmd.ErrOrStderr())
			}

			cfg, err := loader.Load()
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
)

// registerConfigsCommands 注册 CLI 子命令.
func registerConfigsCommands() {
	debugCmd.Flags().BoolVar(&viperDebug, "viper", false, "also dump viper internals to stderr")

	configCmd.AddCommand(pathCmd)
	configCmd.AddCommand(debugCmd)

	rootCmd.AddCommand(configCmd)
}
