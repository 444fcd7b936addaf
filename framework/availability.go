package framework

import (
	"context"
	"sync"

	"github.com/ipfs-shipyard/ipfshttp-tests/client"
)

// AvailabilityState is the tri-state result of the availability probe.
type AvailabilityState int

const (
	Unknown AvailabilityState = iota
	Available
	Unavailable
)

func (s AvailabilityState) String() string {
	switch s {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Probe checks once whether the daemon can be used.
type Probe func(ctx context.Context) error

// ConnectProbe returns a Probe that connects with the given options, checks the daemon
// version and closes the connection again.
func ConnectProbe(opts client.Options) Probe {
	return func(ctx context.Context) error {
		c, err := client.Connect(ctx, opts)
		if err != nil {
			return err
		}
		return c.Close()
	}
}

// Availability memoizes the result of a Probe for the lifetime of a test run. The probe runs at
// most once, even with concurrent callers; after that the answer never changes.
type Availability struct {
	probe    Probe
	state    AvailabilityState
	err      error
	attempts int
	lock     sync.Mutex
}

// NewAvailability creates an unresolved cache around probe.
func NewAvailability(probe Probe) *Availability {
	return &Availability{probe: probe}
}

// IsAvailable runs the probe on the first call and returns the memoized answer afterward.
// Any probe error resolves the cache to Unavailable; Err tells whether the error meant the
// daemon was unreachable or something else went wrong.
func (a *Availability) IsAvailable(ctx context.Context) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.state == Unknown {
		a.attempts++
		if err := a.probe(ctx); err != nil {
			a.state = Unavailable
			a.err = err
		} else {
			a.state = Available
		}
	}
	return a.state == Available
}

// State returns the current state without probing.
func (a *Availability) State() AvailabilityState {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.state
}

// Err returns the probe error, if the probe failed.
func (a *Availability) Err() error {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.err
}

// Unreachable reports whether the probe failed with one of the client's own error kinds,
// meaning the daemon cannot be tested against. Other probe errors are test failures.
func (a *Availability) Unreachable() bool {
	err := a.Err()
	return err != nil && client.IsError(err)
}

// Attempts returns how many times the probe has run; it is never more than one.
func (a *Availability) Attempts() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.attempts
}
