// Port registry
// Tracks which physical I2S ports are claimed, process-wide. A port is held
// by at most one session at a time.
package core

import "sync"

// PortRegistry is the claim table for the fixed set of physical ports.
// The zero value is ready to use with all ports free.
type PortRegistry struct {
	mu   sync.Mutex
	used [NumPorts]bool
}

// NewPortRegistry returns a registry with every port free.
func NewPortRegistry() *PortRegistry {
	return &PortRegistry{}
}

// TryClaim atomically marks a free port as claimed. It returns false without
// mutation if the port is out of range or already claimed; two concurrent
// claims of the same port yield exactly one success.
func (r *PortRegistry) TryClaim(port PortID) bool {
	if port >= NumPorts {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used[port] {
		return false
	}
	r.used[port] = true
	return true
}

// Release unconditionally marks a port as free. Releasing an already-free
// port is a no-op.
func (r *PortRegistry) Release(port PortID) {
	if port >= NumPorts {
		return
	}
	r.mu.Lock()
	r.used[port] = false
	r.mu.Unlock()
}

// IsClaimed reports whether a port is currently held.
func (r *PortRegistry) IsClaimed(port PortID) bool {
	if port >= NumPorts {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used[port]
}

// Global registry shared by the command layer. Tests construct their own.
var portRegistry = NewPortRegistry()
