package main

import (
	"github.com/spf13/cobra"
)

func buildServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the agent server",
		Long: `Start the HTTP server that runs the agent loop.

POST /api/v1/chat streams events for one run. Stored sessions, the tool
registry, provider health and Prometheus metrics are served alongside.
The server shuts down gracefully on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

type chatFlags struct {
	model     string
	sessionID string
	tools     []string
	buffered  bool
	serverURL string
}

func buildChatCmd(configPath *string) *cobra.Command {
	var flags chatFlags

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Chat with the agent server",
		Long: `Open the terminal chat client. With a prompt argument the answer is
printed to stdout and the command exits.`,
		Example: `  # Interactive client
  agentrelay chat

  # One-shot question to a specific provider and model
  agentrelay chat --model openai:gpt-4o "summarise the README"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), *configPath, flags, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&flags.model, "model", "m", "", `Model, optionally prefixed by provider ID ("openai:gpt-4o")`)
	cmd.Flags().StringVarP(&flags.sessionID, "session", "s", "", "Continue a stored session")
	cmd.Flags().StringSliceVarP(&flags.tools, "tools", "t", nil, "Offer only these tools")
	cmd.Flags().BoolVar(&flags.buffered, "buffered", false, "Receive whole answers instead of fragments")
	cmd.Flags().StringVar(&flags.serverURL, "server", "", "Server URL (overrides client.server_url)")
	return cmd
}

func buildToolsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the agent can call",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(cmd.Context(), *configPath, cmd.OutOrStdout())
		},
	}
}
