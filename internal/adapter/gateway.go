package adapter

import (
	"context"
	"sync"

	"bluetray/internal/device"
)

// Gateway is the shared handle to the adapter. Every adapter-level call
// runs under one mutex held for exactly that call. Event channels and
// device handles returned by the gateway are used without the lock, so a
// discovery session reading events never blocks a connect request for
// longer than one adapter call.
type Gateway struct {
	mu      sync.Mutex
	adapter Adapter
}

// NewGateway wraps a backend.
func NewGateway(a Adapter) *Gateway {
	return &Gateway{adapter: a}
}

func (g *Gateway) IsDiscovering(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.adapter.IsDiscovering(ctx)
}

func (g *Gateway) SetDiscoveryFilter(ctx context.Context, f Filter) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.adapter.SetDiscoveryFilter(ctx, f)
}

func (g *Gateway) StartDiscovery(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.adapter.StartDiscovery(ctx)
}

func (g *Gateway) StopDiscovery(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.adapter.StopDiscovery(ctx)
}

func (g *Gateway) DeviceAddresses(ctx context.Context) ([]device.Address, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.adapter.DeviceAddresses(ctx)
}

func (g *Gateway) Device(ctx context.Context, addr device.Address) (Device, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.adapter.Device(ctx, addr)
}

// Events holds the lock only while subscribing.
func (g *Gateway) Events(ctx context.Context) (<-chan Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.adapter.Events(ctx)
}

// Close releases the backend.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.adapter.Close()
}
