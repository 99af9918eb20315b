// Package portalloc implements the Port Allocator (C2): finds a free TCP
// port in the configured range for a newly deploying app to listen on.
package portalloc

import (
	"fmt"
	"net"
)

// ErrNoPortAvailable is returned when every port in the configured range is
// already in use.
var ErrNoPortAvailable = fmt.Errorf("no available port in configured range")

// Allocator scans [RangeStart, RangeEnd] for a port nothing is currently
// listening on. It is intentionally TOCTOU-tolerant rather than
// TOCTOU-proof: the probe closes its listener immediately after confirming
// the port is free, so there is a narrow window between the probe and the
// App Supervisor actually binding the port. The Admission Queue's
// MaxConcurrentDeployments cap keeps that window's effective race
// probability low (at most MaxConcurrentDeployments concurrent probes can
// ever overlap), and supervisor.Start surfaces a bind failure as an
// ordinary deployment failure rather than one this package needs to
// prevent outright.
type Allocator struct {
	RangeStart int
	RangeEnd   int

	// InUse reports ports the orchestrator already knows are occupied
	// (e.g. active deployments' internal_port), checked before the
	// network probe so a live handoff that hasn't been released yet isn't
	// re-offered to a new deployment.
	InUse func(port int) bool
}

// Allocate returns the first port in range that is both not in InUse and
// accepts (and immediately releases) a TCP listener.
func (a *Allocator) Allocate() (int, error) {
	for port := a.RangeStart; port <= a.RangeEnd; port++ {
		if a.InUse != nil && a.InUse(port) {
			continue
		}
		if probePort(port) {
			return port, nil
		}
	}
	return 0, ErrNoPortAvailable
}

// probePort reports whether a listener can be opened on port right now.
func probePort(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}
