package provider

import (
	"context"
	"sort"
	"time"

	"agentrelay/model"

	"github.com/sourcegraph/conc/pool"
)

// PingTimeout bounds a single provider health check.
const PingTimeout = 5 * time.Second

// Health is the reachability of one provider.
type Health struct {
	ProviderID string `json:"provider"`
	Model      string `json:"model"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// PingAll checks every provider concurrently and returns results sorted by
// provider ID.
func PingAll(ctx context.Context, providers map[string]model.Provider) []Health {
	ids := make([]string, 0, len(providers))
	for id := range providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]Health, len(ids))
	p := pool.New().WithMaxGoroutines(4)
	for i, id := range ids {
		p.Go(func() {
			prov := providers[id]
			pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
			defer cancel()

			h := Health{ProviderID: id, Model: prov.GetModel(), OK: true}
			if err := prov.Ping(pingCtx); err != nil {
				h.OK = false
				h.Error = err.Error()
				logger().Debug().Err(err).Str("provider", id).Msg("provider ping failed")
			}
			results[i] = h
		})
	}
	p.Wait()

	return results
}

// Catalog is the model list of one provider. Error is set instead of Models
// when the listing failed.
type Catalog struct {
	ProviderID string            `json:"provider"`
	Models     []model.ModelInfo `json:"models"`
	Error      string            `json:"error,omitempty"`
}

// ListAll queries every provider's models concurrently. A failing provider
// yields a Catalog with Error set rather than failing the whole call.
func ListAll(ctx context.Context, providers map[string]model.Provider) []Catalog {
	p := pool.NewWithResults[Catalog]().WithMaxGoroutines(4)
	for id, prov := range providers {
		p.Go(func() Catalog {
			c := Catalog{ProviderID: id, Models: []model.ModelInfo{}}
			models, err := prov.ListModels(ctx)
			if err != nil {
				c.Error = err.Error()
				logger().Warn().Err(err).Str("provider", id).Msg("listing models failed")
				return c
			}
			if models != nil {
				c.Models = models
			}
			return c
		})
	}

	catalogs := p.Wait()
	sort.Slice(catalogs, func(i, j int) bool {
		return catalogs[i].ProviderID < catalogs[j].ProviderID
	})
	return catalogs
}
