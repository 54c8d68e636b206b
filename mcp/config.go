package mcp

import "agentrelay/config"

// ServersFromConfig converts the enabled configured servers, keeping their
// order.
func ServersFromConfig(cfg *config.Config) []Server {
	var servers []Server
	for _, s := range cfg.EnabledServers() {
		transport := s.Transport
		if transport == "" {
			transport = TransportStreamableHTTP
		}
		servers = append(servers, Server{
			Name:      s.Name,
			URL:       s.URL,
			Transport: transport,
			Headers:   s.Headers,
		})
	}
	return servers
}
