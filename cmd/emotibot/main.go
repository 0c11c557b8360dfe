// Command emotibot runs the emotional chat companion as an HTTP service, an
// interactive terminal chat or a one-shot face renderer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/emotibot/config"
)

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "emotibot",
		Short:         "A chat companion with a mood and a face",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(
		newServeCmd(flags),
		newChatCmd(flags),
		newRenderCmd(),
	)

	return cmd
}

func (f *rootFlags) load() (*config.Config, error) {
	return config.Load(f.configPath)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
