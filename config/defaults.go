package config

import "time"

const (
	DefaultMaxIterations = 10
	DefaultCacheTTL      = 5 * time.Minute
	DefaultOpenTimeout   = 60 * time.Second
	DefaultListen        = "127.0.0.1:8787"
)

func DefaultConfig() *Config {
	return &Config{
		DataDirectory:   "~/.local/share/agentrelay",
		DefaultProvider: "ollama",
		Server: ServerConfig{
			Listen: DefaultListen,
		},
		Agent: AgentConfig{
			MaxIterations: DefaultMaxIterations,
			Stream:        true,
		},
		Providers: []ProviderConfig{
			{
				ID:      "ollama",
				Name:    "Ollama",
				Enabled: true,
				BaseURL: "http://localhost:11434",
				Model:   "llama3.1:latest",
			},
		},
		MCP: MCPConfig{
			CacheTTL: DefaultCacheTTL,
		},
		Client: ClientConfig{
			ServerURL:   "http://" + DefaultListen,
			OpenTimeout: DefaultOpenTimeout,
		},
		KeyBindings: *DefaultKeybindings(),
	}
}

func GenerateConfigTemplate() string {
	return `# agentrelay configuration
# Location: ~/.config/agentrelay/config.toml
# This file uses TOML format: https://toml.io

# Directory where the conversation database and logs are stored
data_directory = "~/.local/share/agentrelay"

# Provider used when a request does not name one
default_provider = "ollama"

[server]
listen = "127.0.0.1:8787"

[agent]
# Maximum number of model calls per run
max_iterations = 10
stream = true
# system_prompt = "You are a helpful assistant."

[[providers]]
id = "ollama"
name = "Ollama"
enabled = true
base_url = "http://localhost:11434"
model = "llama3.1:latest"

# [[providers]]
# id = "openai"
# enabled = true
# api_key_env = "OPENAI_API_KEY"
# model = "gpt-4o-mini"

# [[providers]]
# id = "anthropic"
# enabled = true
# api_key_env = "ANTHROPIC_API_KEY"
# model = "claude-sonnet-4-5-20250929"
# thinking_budget = 2048

[mcp]
# How long a discovered tool server connection is reused
cache_ttl = "5m"

# [[mcp.servers]]
# name = "filesystem"
# url = "http://localhost:3001/mcp"
# transport = "streamable-http"
# enabled = true

[client]
server_url = "http://127.0.0.1:8787"
open_timeout = "60s"

[keybindings]
primary = "alt"
`
}
