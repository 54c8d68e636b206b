// agentrelay runs a tool-using agent behind a streaming HTTP endpoint and
// ships the terminal client that plays its responses back.
//
//	agentrelay serve
//	agentrelay chat
//	agentrelay chat "what time is it in Tokyo?"
//	agentrelay tools
package main

import (
	"fmt"
	"os"

	"agentrelay/config"

	"github.com/spf13/cobra"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		config.Log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "agentrelay",
		Short:        "Tool-using agent server and streaming chat client",
		Version:      fmt.Sprintf("%s (%s)", Version, License),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to TOML configuration file (default "+config.DefaultConfigPath()+")")

	rootCmd.AddCommand(
		buildServeCmd(&configPath),
		buildChatCmd(&configPath),
		buildToolsCmd(&configPath),
	)
	return rootCmd
}
