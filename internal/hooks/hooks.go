package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Event names a phase of a build pass
type Event string

const (
	// AfterEmit fires once the build has finished writing output artifacts
	AfterEmit Event = "afterEmit"
	// Done fires at the end of every build pass, after AfterEmit
	Done Event = "done"
)

// BuildResult describes one build pass. Taps receive it as context and may ignore it.
type BuildResult struct {
	ID       string
	Started  time.Time
	Finished time.Time
	ExitCode int
	Output   string
}

// Func is a callback tapped onto an event
type Func func(ctx context.Context, res BuildResult) error

// Plugin registers its callbacks on a Hooks instance
type Plugin interface {
	Apply(h *Hooks)
}

type tap struct {
	name string
	fn   Func
}

// Hooks is the set of lifecycle extension points exposed by the build pipeline
type Hooks struct {
	mu   sync.RWMutex
	taps map[Event][]tap
}

// New returns a Hooks with no taps
func New() *Hooks {
	return &Hooks{taps: make(map[Event][]tap)}
}

// Register applies each plugin in order
func (h *Hooks) Register(plugins ...Plugin) {
	for _, p := range plugins {
		p.Apply(h)
	}
}

// Tap adds fn to the callbacks fired for event
func (h *Hooks) Tap(event Event, name string, fn Func) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taps[event] = append(h.taps[event], tap{name: name, fn: fn})
}

// Taps returns the names tapped onto event in registration order
func (h *Hooks) Taps(event Event) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.taps[event]))
	for _, t := range h.taps[event] {
		names = append(names, t.name)
	}
	return names
}

// Call runs the taps of event serially and stops at the first error
func (h *Hooks) Call(ctx context.Context, event Event, res BuildResult) error {
	h.mu.RLock()
	taps := append([]tap(nil), h.taps[event]...)
	h.mu.RUnlock()

	for _, t := range taps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := t.fn(ctx, res); err != nil {
			return fmt.Errorf("%s hook %s: %w", event, t.name, err)
		}
	}
	return nil
}
