package devserver

import (
	"errors"
	"net"
	"testing"
)

func TestAllocateReturnsPreferredWhenFree(t *testing.T) {
	a := &PortAllocator{Window: 10, InUse: func(int) bool { return false }}

	port, err := a.Allocate(6000)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if port != 6000 {
		t.Errorf("Allocate = %d, want 6000", port)
	}
}

func TestAllocateSkipsOccupiedPorts(t *testing.T) {
	busy := map[int]bool{6000: true, 6001: true}
	a := &PortAllocator{Window: 10, InUse: func(p int) bool { return busy[p] }}

	port, err := a.Allocate(6000)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if port != 6002 {
		t.Errorf("Allocate = %d, want 6002", port)
	}
}

func TestAllocateExhaustsWindow(t *testing.T) {
	a := &PortAllocator{Window: 3, InUse: func(int) bool { return true }}

	_, err := a.Allocate(6000)
	if !errors.Is(err, ErrPortExhausted) {
		t.Errorf("Allocate error = %v, want ErrPortExhausted", err)
	}
}

func TestAllocateDoesNotRepeatHandedOutPorts(t *testing.T) {
	// The probe sees every port as free, but a port just handed to one
	// caller must not be offered to the next before it gets bound.
	a := &PortAllocator{Window: 5, InUse: func(int) bool { return false }}

	first, err := a.Allocate(6000)
	if err != nil {
		t.Fatalf("first Allocate failed: %v", err)
	}
	second, err := a.Allocate(6000)
	if err != nil {
		t.Fatalf("second Allocate failed: %v", err)
	}
	if first != 6000 || second != 6001 {
		t.Errorf("Allocate pair = (%d, %d), want (6000, 6001)", first, second)
	}
}

func TestAllocateRescansFromBaseAfterWindowConsumed(t *testing.T) {
	a := &PortAllocator{Window: 2, InUse: func(int) bool { return false }}

	for _, want := range []int{6000, 6001, 6000} {
		port, err := a.Allocate(6000)
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		if port != want {
			t.Errorf("Allocate = %d, want %d", port, want)
		}
	}
}

func TestAllocateLowerBaseResetsCounter(t *testing.T) {
	a := &PortAllocator{Window: 10, InUse: func(int) bool { return false }}

	if _, err := a.Allocate(6000); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	port, err := a.Allocate(5000)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if port != 5000 {
		t.Errorf("Allocate = %d, want 5000", port)
	}
}

func TestAllocateDetectsRealListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	defer ln.Close()
	occupied := ln.Addr().(*net.TCPAddr).Port

	a := NewPortAllocator(10)
	port, err := a.Allocate(occupied)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if port == occupied {
		t.Errorf("Allocate returned the listening port %d", occupied)
	}
}
