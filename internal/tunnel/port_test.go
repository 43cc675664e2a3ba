package tunnel

import (
	"sync"
	"testing"
)

func TestAllocateLocalPortDistinctWhileHeld(t *testing.T) {
	const callers = 8

	var mu sync.Mutex
	seen := make(map[int]struct{}, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			port, probe, err := allocateLocalPort()
			if err != nil {
				t.Errorf("allocateLocalPort: %v", err)
				return
			}
			defer probe.Close()

			mu.Lock()
			defer mu.Unlock()
			if _, dup := seen[port]; dup {
				t.Errorf("port %d allocated twice", port)
			}
			seen[port] = struct{}{}
		}()
	}
	wg.Wait()
}

func TestAllocateLocalPortInEphemeralRange(t *testing.T) {
	port, probe, err := allocateLocalPort()
	if err != nil {
		t.Fatalf("allocateLocalPort: %v", err)
	}
	defer probe.Close()
	if port <= 0 || port > 65535 {
		t.Fatalf("port %d out of range", port)
	}
}
