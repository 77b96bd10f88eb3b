package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Do while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before allowing a probe.
	Cooldown time.Duration
	// IsFailure decides whether an error counts against the target.
	// Defaults to any error except context cancellation.
	IsFailure func(err error) bool
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Counts holds the statistics for the circuit breaker
type Counts struct {
	Requests            uint32
	TotalFailures       uint32
	ConsecutiveFailures uint32
}

// Breaker stops calling a dependency that keeps failing. After Cooldown a
// single probe is let through; its outcome closes or re-opens the breaker.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probing  bool
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}

	if settings.Now == nil {
		settings.Now = time.Now
	}

	return &Breaker{
		name:     name,
		settings: settings,
		now:      settings.Now,
		state:    StateClosed,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh()
	return b.state
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Do runs fn unless the breaker is open. The error from fn is returned
// unchanged; a rejected call returns ErrCircuitOpen.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			b.record(errors.New("panic"))
			panic(r)
		}
		b.record(err)
	}()

	err = fn()
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh()
	switch b.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	b.counts.Requests++
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := b.settings.IsFailure(err)
	wasProbe := b.state == StateHalfOpen
	if wasProbe {
		b.probing = false
	}

	if !failed {
		b.counts.ConsecutiveFailures = 0
		if wasProbe {
			b.setState(StateClosed)
		}
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	if wasProbe || b.counts.ConsecutiveFailures >= b.settings.FailureThreshold {
		b.setState(StateOpen)
	}
}

// refresh moves an open breaker to half-open once the cooldown elapsed.
// Caller holds mu.
func (b *Breaker) refresh() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		b.setState(StateHalfOpen)
	}
}

// setState changes the state of the circuit breaker. Caller holds mu.
func (b *Breaker) setState(state State) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	switch state {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.counts = Counts{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
