// Package registry holds the receivers found by the most recent scan.
package registry

import (
	"sort"
	"sync"

	"go2tv.app/beamdeck/internal/domain"
)

// Registry maps device id to Device. Writers are mutually exclusive with
// each other and with List snapshots.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]domain.Device
}

func New() *Registry {
	return &Registry{devices: map[string]domain.Device{}}
}

// Clear drops every device. The old map is replaced, never mutated, so a
// snapshot taken before the clear stays intact.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.devices = map[string]domain.Device{}
	r.mu.Unlock()
}

// Add stores dev under its id, overwriting any device with the same id.
func (r *Registry) Add(dev domain.Device) string {
	if dev.ID == "" {
		dev.ID = domain.DeviceID(dev.Name, dev.Host)
	}
	r.mu.Lock()
	r.devices[dev.ID] = dev
	r.mu.Unlock()
	return dev.ID
}

func (r *Registry) Lookup(id string) (domain.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[id]
	return dev, ok
}

// List returns a snapshot ordered by id.
func (r *Registry) List() []domain.DeviceSummary {
	r.mu.RLock()
	out := make([]domain.DeviceSummary, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, dev.Summary())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
