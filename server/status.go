package server

import (
	"net/http"

	"agentrelay/provider"
	"agentrelay/tools"
)

type toolInfo struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Origin      tools.Origin `json:"origin"`
	Server      string       `json:"server,omitempty"`
	Interactive bool         `json:"interactive,omitempty"`
	Parameters  any          `json:"parameters"`
}

// handleTools lists the tools a chat request would be offered.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	registry := tools.Build(r.Context(), s.local, s.servers, s.connector)

	list := make([]toolInfo, 0, registry.Len())
	for _, def := range registry.Definitions() {
		list = append(list, toolInfo{
			Name:        def.Name,
			Description: def.Description,
			Origin:      def.Origin,
			Server:      def.Server,
			Interactive: def.Interactive,
			Parameters:  def.Parameters,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": list})
}

// handleModels lists the models of every configured provider. Providers that
// cannot be reached are reported with an error instead of failing the call.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": provider.ListAll(r.Context(), s.providers),
	})
}

type healthResponse struct {
	Status    string            `json:"status"`
	Providers []provider.Health `json:"providers"`
}

// handleHealthz pings every configured provider. The server is "ok" when all
// answer, "degraded" when some do and unavailable when none do.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	results := provider.PingAll(r.Context(), s.providers)

	healthy := 0
	for _, h := range results {
		if h.OK {
			healthy++
		}
	}

	resp := healthResponse{Status: "ok", Providers: results}
	status := http.StatusOK
	switch {
	case len(results) > 0 && healthy == 0:
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	case healthy < len(results):
		resp.Status = "degraded"
	}
	writeJSON(w, status, resp)
}
