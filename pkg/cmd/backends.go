package cmd

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/storage/db"
	"github.com/yeisme/tagdrop/pkg/internal/storage/kv"
	"github.com/yeisme/tagdrop/pkg/internal/storage/mq"
)

var backendsCmd = &cobra.Command{
	Use:     "backends",
	Short:   "list the compiled-in db, kv and mq backends",
	Aliases: []string{"drivers"},
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := configs.NewLoader(configPath)
		if err != nil {
			return err
		}

		cfg, err := loader.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		printBackends(out, "db", names(db.GetRegisteredDBTypes()), string(cfg.DB.Type))
		printBackends(out, "kv", names(kv.GetRegisteredKVTypes()), cfg.KV.Type)
		printBackends(out, "mq", names(mq.GetRegisteredMQTypes()), string(cfg.MQ.Type))

		return nil
	},
}

func names[T ~string](types []T) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}

	slices.Sort(out)

	return out
}

// printBackends 列出某类后端，当前配置使用的以 * 标记.
func printBackends(w io.Writer, kind string, types []string, active string) {
	fmt.Fprintf(w, "%s:\n", kind)

	for _, t := range types {
		mark := " "
		if t == active {
			mark = "*"
		}

		fmt.Fprintf(w, "  %s %s\n", mark, t)
	}
}

func registerBackendsCommands() {
	rootCmd.AddCommand(backendsCmd)
}
