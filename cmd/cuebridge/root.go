package main

import (
	"os"

	"github.com/spf13/cobra"
)

// defaultConfigPath is used when neither --config nor CUEBRIDGE_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cuebridge",
		Short: "Slide annotation to show control bridge",
		Long: `cuebridge listens for slide annotations from presentation hosts and
dispatches the commands they contain to MIDI, lighting, video and network
devices.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default $CUEBRIDGE_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(newServeCmd(), newParseCmd(), newVersionCmd())
	return root
}

// configPath resolves the config file: flag, then environment, then default.
func configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Root().PersistentFlags().GetString("config"); path != "" {
		return path
	}
	if path := os.Getenv("CUEBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
