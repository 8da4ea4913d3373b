package keyregistry

import (
	"log/slog"
	"sort"

	"github.com/ruteri/indexer-metadata-gateway/interfaces"
	"go.uber.org/atomic"
)

// snapshot is never mutated after it is published.
type snapshot struct {
	signers map[string]interfaces.AuthorizedSigner
}

// Registry is the process-wide signer registry. Lookups read the current
// snapshot without locking; Reload publishes a complete replacement snapshot
// with a single pointer swap.
type Registry struct {
	current atomic.Pointer[snapshot]
	log     *slog.Logger
}

// New returns an empty registry. Every lookup fails until the first Reload.
func New(log *slog.Logger) *Registry {
	r := &Registry{log: log}
	r.current.Store(&snapshot{signers: map[string]interfaces.AuthorizedSigner{}})
	return r
}

// Lookup returns the signer registered under signerID.
func (r *Registry) Lookup(signerID string) (interfaces.AuthorizedSigner, bool) {
	signer, ok := r.current.Load().signers[signerID]
	return signer, ok
}

// Reload validates cfg and atomically replaces the signer set. On error the
// previous set stays in effect.
func (r *Registry) Reload(cfg *Config) error {
	signers, err := cfg.Build()
	if err != nil {
		return err
	}

	previous := r.current.Swap(&snapshot{signers: signers})
	r.log.Info("Signer registry reloaded",
		slog.Int("signers", len(signers)),
		slog.Int("previousSigners", len(previous.signers)))
	return nil
}

// SignerIDs returns the registered ids in ascending order.
func (r *Registry) SignerIDs() []string {
	signers := r.current.Load().signers
	ids := make([]string, 0, len(signers))
	for id := range signers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
