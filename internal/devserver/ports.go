package devserver

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// probeTimeout bounds a single connect probe. A refused connection returns
// far sooner; the timeout only matters on filtered ports.
const probeTimeout = 250 * time.Millisecond

// PortAllocator finds unused local TCP ports by connect-probing.
//
// Allocation holds one mutex for the whole scan-and-decide window so two
// concurrent callers can never be handed the same instantly-available port.
// The same mutex guards the next-candidate counter that seeds successive
// scans, so callers starting from the same base are handed disjoint windows.
// There is no reservation: the caller must bind the returned port promptly.
type PortAllocator struct {
	// Window is how many consecutive ports are probed before giving up.
	Window int

	// InUse reports whether a port is currently accepting connections.
	// Defaults to a real TCP connect probe; tests inject their own.
	InUse func(port int) bool

	mu   sync.Mutex
	next int
}

// NewPortAllocator creates an allocator probing real local TCP ports.
//
// Parameters:
//   - window: Number of consecutive ports probed per allocation
//
// Returns:
//   - *PortAllocator: A new allocator instance
func NewPortAllocator(window int) *PortAllocator {
	return &PortAllocator{
		Window: window,
		InUse:  portInUse,
	}
}

// Allocate returns the first free port at or after preferredStart, scanning
// at most Window ports from preferredStart. When an earlier allocation from
// the same base already consumed part of the window, scanning resumes after
// it instead of re-probing ports just handed out. A lower or unrelated
// preferredStart resets the counter.
//
// Returns:
//   - int: The free port
//   - error: ErrPortExhausted (wrapped) when the window holds no free port
func (a *PortAllocator) Allocate(preferredStart int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	limit := preferredStart + a.Window
	start := preferredStart
	if a.next > preferredStart && a.next < limit {
		start = a.next
	}

	for port := start; port < limit; port++ {
		if a.InUse(port) {
			log.Debug("Port occupied, trying next", "port", port)
			continue
		}
		a.next = port + 1
		return port, nil
	}

	return 0, fmt.Errorf("%w: scanned %d-%d", ErrPortExhausted, preferredStart, limit-1)
}

// portInUse probes a local port with a short-lived TCP connection. A dial
// error (typically connection refused) means the port is free; a successful
// connect means something is listening.
func portInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
