// Package telemetry provides an in-process gauge store and the boundary
// adapters that feed it from live collaborator state.
package telemetry

import "sync"

// Hub is a concurrency-safe gauge store. It satisfies ports.Telemetry
// and can be scraped by whatever exporter the process wires up.
type Hub struct {
	mu     sync.RWMutex
	gauges map[string]float64
}

func NewHub() *Hub {
	return &Hub{gauges: make(map[string]float64)}
}

// SetGauge records the latest value for the named gauge.
func (h *Hub) SetGauge(name string, value float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gauges[name] = value
	return nil
}

// Gauge returns the current value of the named gauge.
func (h *Hub) Gauge(name string) (float64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.gauges[name]
	return v, ok
}

// Snapshot returns a copy of all current gauge values.
func (h *Hub) Snapshot() map[string]float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]float64, len(h.gauges))
	for k, v := range h.gauges {
		out[k] = v
	}
	return out
}
