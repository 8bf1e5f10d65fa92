package adapters

import (
	"sort"

	"github.com/railzwaylabs/billingcore/internal/payment/domain"
)

// Registry maps a provider name to its signature verifier.
type Registry struct {
	verifiers map[string]domain.Verifier
}

func NewRegistry(verifiers ...domain.Verifier) *Registry {
	r := &Registry{verifiers: make(map[string]domain.Verifier, len(verifiers))}
	for _, v := range verifiers {
		if v == nil {
			continue
		}
		r.verifiers[v.Provider()] = v
	}
	return r
}

func (r *Registry) Verifier(provider string) (domain.Verifier, bool) {
	v, ok := r.verifiers[provider]
	return v, ok
}

func (r *Registry) ProviderExists(provider string) bool {
	_, ok := r.verifiers[provider]
	return ok
}

func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.verifiers))
	for name := range r.verifiers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
