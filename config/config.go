package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type AgentConfig struct {
	MaxIterations int    `toml:"max_iterations"`
	Stream        bool   `toml:"stream"`
	SystemPrompt  string `toml:"system_prompt,omitempty"`
}

type ProviderConfig struct {
	ID        string `toml:"id"`
	Name      string `toml:"name,omitempty"`
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url,omitempty"`
	APIKey    string `toml:"api_key,omitempty"`
	APIKeyEnv string `toml:"api_key_env,omitempty"`
	Model     string `toml:"model,omitempty"`

	// ThinkingBudget enables extended thinking on providers that support it.
	ThinkingBudget int64 `toml:"thinking_budget,omitempty"`
}

// MCPServerConfig describes one remote tool server.
type MCPServerConfig struct {
	Name      string            `toml:"name"`
	URL       string            `toml:"url"`
	Transport string            `toml:"transport,omitempty"` // "streamable-http" (default) or "sse"
	Headers   map[string]string `toml:"headers,omitempty"`
	Enabled   bool              `toml:"enabled"`
}

type MCPConfig struct {
	CacheTTL time.Duration     `toml:"cache_ttl"`
	Servers  []MCPServerConfig `toml:"servers"`
}

type ClientConfig struct {
	ServerURL   string        `toml:"server_url"`
	OpenTimeout time.Duration `toml:"open_timeout"`
}

type Config struct {
	DataDirectory   string            `toml:"data_directory"`
	DefaultProvider string            `toml:"default_provider"`
	Server          ServerConfig      `toml:"server"`
	Agent           AgentConfig       `toml:"agent"`
	Providers       []ProviderConfig  `toml:"providers"`
	MCP             MCPConfig         `toml:"mcp"`
	Client          ClientConfig      `toml:"client"`
	KeyBindings     KeyBindingsConfig `toml:"keybindings"`

	unknownKeys []string
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// Provider returns the configuration for the provider with the given id.
func (c *Config) Provider(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// EnabledServers returns the enabled remote tool servers in config order.
func (c *Config) EnabledServers() []MCPServerConfig {
	var servers []MCPServerConfig
	for _, s := range c.MCP.Servers {
		if s.Enabled {
			servers = append(servers, s)
		}
	}
	return servers
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("AGENTRELAY_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if listen := os.Getenv("AGENTRELAY_LISTEN"); listen != "" {
		c.Server.Listen = listen
	}
	if provider := os.Getenv("AGENTRELAY_PROVIDER"); provider != "" {
		c.DefaultProvider = provider
	}
	if model := os.Getenv("AGENTRELAY_MODEL"); model != "" {
		for i := range c.Providers {
			if c.Providers[i].ID == c.DefaultProvider {
				c.Providers[i].Model = model
			}
		}
	}
	if serverURL := os.Getenv("AGENTRELAY_SERVER_URL"); serverURL != "" {
		c.Client.ServerURL = serverURL
	}
	if maxIter := os.Getenv("AGENTRELAY_MAX_ITERATIONS"); maxIter != "" {
		if n, err := strconv.Atoi(maxIter); err == nil && n > 0 {
			c.Agent.MaxIterations = n
		}
	}
}

// Load reads the configuration file at path, creating a default one when it
// does not exist. An empty path means the platform default location.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := ensurePrivateDir(cfg.DataDir()); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.DataDirectory == "" {
		c.DataDirectory = def.DataDirectory
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = def.DefaultProvider
	}
	if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = def.Agent.MaxIterations
	}
	if c.MCP.CacheTTL <= 0 {
		c.MCP.CacheTTL = def.MCP.CacheTTL
	}
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = def.Client.ServerURL
	}
	if c.Client.OpenTimeout <= 0 {
		c.Client.OpenTimeout = def.Client.OpenTimeout
	}
	if len(c.Providers) == 0 {
		c.Providers = def.Providers
	}
}
