/*
Package event defines the outbound event contract of the leave engine.

PURPOSE:
  The core never sends email or pushes notifications. It emits domain
  events through a Publisher; notification collaborators subscribe on
  the other side of that interface.

IMPLEMENTATIONS:
  - LogPublisher: structured log line per event (default wiring)
  - Recorder:     captures events in memory for tests
*/
package event

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event is a domain event. Payloads are defined next to the code that
// emits them (leave, trial packages).
type Event interface {
	// EventName returns the stable event identifier, e.g.
	// "leave_request.approved".
	EventName() string
}

// Publisher delivers events to interested collaborators. Publish must be
// safe for concurrent use; failures are the publisher's to report, the
// emitting operation has already committed.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// =============================================================================
// LOG PUBLISHER
// =============================================================================

// LogPublisher writes one structured log line per event.
type LogPublisher struct {
	Logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{Logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) {
	p.Logger.Info("event published",
		zap.String("event", e.EventName()),
		zap.Any("payload", e),
	)
}

// =============================================================================
// RECORDER - Test double
// =============================================================================

// Recorder captures published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the events with the given name, in publish order.
func (r *Recorder) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
