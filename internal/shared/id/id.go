// Package id generates the identifiers that tie log lines together.
//
// Every landing request, forwarded request, tunnel and trace gets a
// prefixed ULID ("req_01H...", "tun_01H...", "trc_01H..."). ULIDs sort by
// creation time, so grepping logs for a prefix yields events in order.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies one inbound HTTP request.
type RequestID string

// TunnelID identifies one forwarded WebSocket tunnel.
type TunnelID string

// TraceID identifies one trace across the bridge's components.
type TraceID string

const (
	RequestPrefix = "req"
	TunnelPrefix  = "tun"
	TracePrefix   = "trc"
)

func (id RequestID) String() string { return string(id) }
func (id TunnelID) String() string  { return string(id) }
func (id TraceID) String() string   { return string(id) }

// Generator generates ULIDs with optional prefixes
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator whose IDs are strictly increasing, even
// within the same millisecond.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: ulid.Monotonic(entropy, 0)}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewTunnelID generates a new tunnel ID
func NewTunnelID() TunnelID {
	return TunnelID(Default().GenerateWithPrefix(TunnelPrefix))
}

// NewTraceID generates a new trace ID
func NewTraceID() TraceID {
	return TraceID(Default().GenerateWithPrefix(TracePrefix))
}
