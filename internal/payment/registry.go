package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Capability is something a gateway offers the storefront.
type Capability string

const (
	CapabilityConfigure       Capability = "configure"
	CapabilityInitiatePayment Capability = "initiate-payment"
	CapabilityRenderReceipt   Capability = "render-receipt"
)

// Descriptor is the registration record of a gateway.
type Descriptor struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Enabled      bool         `json:"enabled"`
	Capabilities []Capability `json:"capabilities"`
}

// Gateway is a payment method the storefront can route checkouts to.
type Gateway interface {
	Descriptor(ctx context.Context) Descriptor
	Initiate(ctx context.Context, orderID uuid.UUID) (*InitiateResult, error)
	Receipt(ctx context.Context, orderID uuid.UUID) (*Receipt, error)
}

// Registry holds the gateways registered at startup.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

// Register adds g under its descriptor id.
func (r *Registry) Register(ctx context.Context, g Gateway) error {
	id := g.Descriptor(ctx).ID
	if id == "" {
		return fmt.Errorf("register gateway: empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.gateways[id]; exists {
		return fmt.Errorf("register gateway: %q already registered", id)
	}
	r.gateways[id] = g
	r.order = append(r.order, id)
	return nil
}

// Get returns the gateway registered under id.
func (r *Registry) Get(id string) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[id]
	return g, ok
}

// List returns descriptors in registration order. Disabled gateways are
// included only when all is true.
func (r *Registry) List(ctx context.Context, all bool) []Descriptor {
	r.mu.RLock()
	ids := append([]string(nil), r.order...)
	r.mu.RUnlock()

	out := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		g, ok := r.Get(id)
		if !ok {
			continue
		}
		d := g.Descriptor(ctx)
		if !all && !d.Enabled {
			continue
		}
		out = append(out, d)
	}
	return out
}
