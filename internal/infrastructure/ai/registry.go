package ai

import (
	"contentpipeline/internal/domain"
	"contentpipeline/internal/ports"
)

type registryKey struct {
	family string
	tier   domain.CredentialTier
}

// Registry maps (credential family, tier) to a provider client. It is
// built once at wiring time and injected into the rewrite engine; there is
// no process-wide client cache.
type Registry struct {
	clients map[registryKey]ports.RewriteProvider
}

var _ ports.ProviderResolver = (*Registry)(nil)

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: map[registryKey]ports.RewriteProvider{}}
}

// Register adds or replaces the client for a family/tier pair.
func (r *Registry) Register(family string, tier domain.CredentialTier, client ports.RewriteProvider) {
	if r.clients == nil {
		r.clients = map[registryKey]ports.RewriteProvider{}
	}
	r.clients[registryKey{family: family, tier: tier}] = client
}

// Resolve returns the client for a family/tier pair, if one is registered.
func (r *Registry) Resolve(family string, tier domain.CredentialTier) (ports.RewriteProvider, bool) {
	client, ok := r.clients[registryKey{family: family, tier: tier}]
	return client, ok
}
