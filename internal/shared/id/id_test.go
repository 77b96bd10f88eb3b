package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestTypedIDs(t *testing.T) {
	tests := []struct {
		prefix string
		id     string
	}{
		{RequestPrefix, NewRequestID().String()},
		{TunnelPrefix, NewTunnelID().String()},
		{TracePrefix, NewTraceID().String()},
	}

	for _, tt := range tests {
		parts := strings.Split(tt.id, "_")
		if len(parts) != 2 {
			t.Fatalf("ID should have format 'prefix_ulid', got: %s", tt.id)
		}
		if parts[0] != tt.prefix {
			t.Errorf("Expected prefix '%s', got '%s'", tt.prefix, parts[0])
		}
		if _, err := ulid.ParseStrict(parts[1]); err != nil {
			t.Errorf("ULID part should be valid: %s", parts[1])
		}
	}
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	gen := NewGenerator()

	prev := gen.Generate().String()
	for i := 0; i < 1000; i++ {
		next := gen.Generate().String()
		if next <= prev {
			t.Fatalf("IDs should be strictly increasing: %s after %s", next, prev)
		}
		prev = next
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const idsPerGoroutine = 100

	var wg sync.WaitGroup
	idChan := make(chan string, goroutines*idsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				idChan <- gen.GenerateWithPrefix(TunnelPrefix)
			}
		}()
	}

	wg.Wait()
	close(idChan)

	seen := make(map[string]bool)
	for id := range idChan {
		if seen[id] {
			t.Errorf("Duplicate ID found in concurrent generation: %s", id)
		}
		seen[id] = true
	}

	if len(seen) != goroutines*idsPerGoroutine {
		t.Errorf("Expected %d unique IDs, got %d", goroutines*idsPerGoroutine, len(seen))
	}
}

func TestDefaultGenerator(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() should return the same instance")
	}
}

func BenchmarkGenerateWithPrefix(b *testing.B) {
	gen := NewGenerator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gen.GenerateWithPrefix(RequestPrefix)
	}
}
