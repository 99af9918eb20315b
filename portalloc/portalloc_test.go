package portalloc

import (
	"errors"
	"net"
	"testing"
)

func TestAllocator_ReturnsFirstFreePortInRange(t *testing.T) {
	allocator := &Allocator{RangeStart: 20000, RangeEnd: 20010}

	port, err := allocator.Allocate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port < 20000 || port > 20010 {
		t.Errorf("port %d out of configured range", port)
	}
}

func TestAllocator_SkipsPortsMarkedInUse(t *testing.T) {
	allocator := &Allocator{
		RangeStart: 20020,
		RangeEnd:   20022,
		InUse: func(port int) bool {
			return port == 20020 || port == 20021
		},
	}

	port, err := allocator.Allocate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 20022 {
		t.Errorf("expected allocator to skip to 20022, got %d", port)
	}
}

func TestAllocator_SkipsPortActuallyBound(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:20030")
	if err != nil {
		t.Skipf("could not bind test port: %v", err)
	}
	defer listener.Close()

	allocator := &Allocator{RangeStart: 20030, RangeEnd: 20031}

	port, err := allocator.Allocate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 20031 {
		t.Errorf("expected allocator to skip the bound port 20030, got %d", port)
	}
}

func TestAllocator_ReturnsErrNoPortAvailableWhenRangeExhausted(t *testing.T) {
	allocator := &Allocator{
		RangeStart: 20040,
		RangeEnd:   20042,
		InUse:      func(port int) bool { return true },
	}

	_, err := allocator.Allocate()
	if !errors.Is(err, ErrNoPortAvailable) {
		t.Errorf("expected ErrNoPortAvailable, got %v", err)
	}
}
