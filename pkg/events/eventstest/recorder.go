// Package eventstest provides an in-memory events.Publisher for tests.
package eventstest

import (
	"context"
	"sync"

	"github.com/WorkniceHR/slack/pkg/events"
)

// Recorder keeps published events in memory.
type Recorder struct {
	mu        sync.Mutex
	published []events.Event
}

func (r *Recorder) Publish(_ context.Context, evt *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, *evt)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.published...)
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(t events.Type) []events.Event {
	var out []events.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
